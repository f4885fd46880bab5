// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package graph

import (
	"github.com/juju/collections/set"

	"github.com/juju/kubemirror/core/kind"
	"github.com/juju/kubemirror/core/object"
	"github.com/juju/kubemirror/core/relation"
)

// Options are the presentation inputs of Build.
type Options struct {
	// Hidden holds the kinds never rendered as nodes. Children of a
	// hidden object reparent to its nearest visible ancestor. The root
	// is always rendered.
	Hidden set.Strings

	// Cursors maps a pagination node id (see PageID) to the offset of
	// the page to show. Missing cursors show the first page.
	Cursors map[string]int

	// PageSize defaults to DefaultPageSize.
	PageSize int

	// Declare defaults to AnnotationDeclaration.
	Declare DeclarationFunc
}

// Build returns the graph grown from root by applying the predicates to
// the mirrored collections. It never fails: a branch with no matches
// simply ends, and an unknown root yields a graph of only the root.
func Build(root object.Ref, mirrors Collections, predicates relation.Table, opts Options) Graph {
	if opts.PageSize <= 0 {
		opts.PageSize = DefaultPageSize
	}
	if opts.Declare == nil {
		opts.Declare = AnnotationDeclaration
	}
	if opts.Hidden == nil {
		opts.Hidden = set.NewStrings()
	}
	b := &builder{
		mirrors:    mirrors,
		predicates: predicates,
		opts:       opts,
		placed:     set.NewStrings(),
		linked:     make(map[Edge]bool),
	}

	rootID := NodeID(root)
	obj, ok := mirrors.Get(root)
	b.place(Node{ID: rootID, Type: ObjectNode, Ref: root, Object: obj})
	if ok {
		b.expand(obj, rootID)
	}
	return Graph{Nodes: b.nodes, Edges: b.edges}
}

type builder struct {
	mirrors    Collections
	predicates relation.Table
	opts       Options

	nodes  []Node
	edges  []Edge
	placed set.Strings
	linked map[Edge]bool
}

func (b *builder) place(n Node) bool {
	if b.placed.Contains(n.ID) {
		return false
	}
	b.placed.Add(n.ID)
	b.nodes = append(b.nodes, n)
	return true
}

func (b *builder) link(from, to string) {
	e := Edge{From: from, To: to}
	if from == to || b.linked[e] {
		return
	}
	b.linked[e] = true
	b.edges = append(b.edges, e)
}

// expand attaches the visible children of parent under parentID and
// recurses into each newly placed child.
func (b *builder) expand(parent *object.Object, parentID string) {
	visiting := set.NewStrings(parent.Ref().String())
	children := orderObjects(b.children(parent, visiting), b.opts.Declare)

	var kinds []kind.Kind
	byKind := make(map[kind.Kind][]*object.Object)
	for _, child := range children {
		if _, ok := byKind[child.Kind]; !ok {
			kinds = append(kinds, child.Kind)
		}
		byKind[child.Kind] = append(byKind[child.Kind], child)
	}

	for _, k := range kinds {
		siblings := byKind[k]
		if len(siblings) > b.opts.PageSize {
			siblings = b.paginate(parentID, k, siblings)
		}
		for _, child := range siblings {
			id := NodeID(child.Ref())
			b.link(parentID, id)
			if b.place(Node{ID: id, Type: ObjectNode, Ref: child.Ref(), Object: child}) {
				b.expand(child, id)
			}
		}
	}
}

// paginate places the pagination node for the kind's children under
// parentID and returns the children on the current page.
func (b *builder) paginate(parentID string, k kind.Kind, siblings []*object.Object) []*object.Object {
	id := PageID(parentID, k)
	page := Page{
		Parent:   parentID,
		Kind:     k,
		Offset:   b.opts.Cursors[id],
		PageSize: b.opts.PageSize,
		Total:    len(siblings),
	}
	if page.Offset < 0 || page.Offset >= page.Total {
		page.Offset = 0
	}
	page.Offset -= page.Offset % page.PageSize

	b.link(parentID, id)
	b.place(Node{ID: id, Type: PaginationNode, Page: &page})
	return siblings[page.Offset:page.End()]
}

// children returns the visible children of parent. The children of a
// matching hidden object are collected in its place, so they reparent to
// parent. visiting guards against predicate cycles through hidden kinds.
func (b *builder) children(parent *object.Object, visiting set.Strings) []*object.Object {
	var (
		result []*object.Object
		seen   = set.NewStrings()
	)
	add := func(obj *object.Object) {
		ref := obj.Ref().String()
		if !seen.Contains(ref) {
			seen.Add(ref)
			result = append(result, obj)
		}
	}
	for _, p := range b.predicates.ForParent(parent.Kind) {
		for _, child := range b.mirrors.List(p.ChildKind) {
			ref := child.Ref().String()
			if visiting.Contains(ref) || !p.Match(child, parent) {
				continue
			}
			if !b.opts.Hidden.Contains(string(child.Kind)) {
				add(child)
				continue
			}
			visiting.Add(ref)
			for _, grandchild := range b.children(child, visiting) {
				add(grandchild)
			}
			visiting.Remove(ref)
		}
	}
	return result
}
