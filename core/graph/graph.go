// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package graph builds the directed graph of mirrored objects rendered by
// the dashboard. Building is a pure function of the mirrored collections,
// the predicate table, the set of hidden kinds and the pagination
// cursors; the graph is rebuilt wholesale and never diffed.
package graph

import (
	"fmt"

	"github.com/juju/kubemirror/core/kind"
	"github.com/juju/kubemirror/core/object"
)

// DefaultPageSize is the number of same-kind children a parent shows
// before they are split into pages.
const DefaultPageSize = 5

// Collections gives read access to mirrored collections.
type Collections interface {
	Get(object.Ref) (*object.Object, bool)
	List(kind.Kind) []*object.Object
}

// NodeType distinguishes object nodes from pagination nodes.
type NodeType string

const (
	ObjectNode     NodeType = "object"
	PaginationNode NodeType = "pagination"
)

// Node is one vertex of the graph.
type Node struct {
	ID   string
	Type NodeType

	// Ref and Object are set for object nodes. Object is nil for a root
	// that is not (yet) mirrored.
	Ref    object.Ref
	Object *object.Object

	// Page is set for pagination nodes.
	Page *Page
}

// Page is the state carried by a pagination node. It is enough to move
// between pages without querying the mirror again.
type Page struct {
	Parent   string
	Kind     kind.Kind
	Offset   int
	PageSize int
	Total    int
}

// Index returns the zero based index of the current page.
func (p Page) Index() int {
	return p.Offset / p.PageSize
}

// Pages returns the number of pages.
func (p Page) Pages() int {
	return (p.Total + p.PageSize - 1) / p.PageSize
}

// End returns the offset one past the last child on the current page.
func (p Page) End() int {
	return min(p.Offset+p.PageSize, p.Total)
}

// Next returns the offset of the following page, wrapping to zero.
func (p Page) Next() int {
	if p.End() >= p.Total {
		return 0
	}
	return p.End()
}

// Edge is a directed edge from parent to child.
type Edge struct {
	From string
	To   string
}

// Graph is the result of Build. Nodes are in depth first order starting
// with the root.
type Graph struct {
	Nodes []Node
	Edges []Edge
}

// Node returns the node with the id.
func (g Graph) Node(id string) (Node, bool) {
	for _, n := range g.Nodes {
		if n.ID == id {
			return n, true
		}
	}
	return Node{}, false
}

// Children returns the ids of the nodes the node has edges to, in edge
// order.
func (g Graph) Children(id string) []string {
	var ids []string
	for _, e := range g.Edges {
		if e.From == id {
			ids = append(ids, e.To)
		}
	}
	return ids
}

// NodeID returns the id of the node for an object.
func NodeID(ref object.Ref) string {
	return ref.String()
}

// PageID returns the id of the pagination node of the kind's children
// under a parent. Cursors are keyed by this id.
func PageID(parent string, k kind.Kind) string {
	return fmt.Sprintf("%s#%s", parent, k)
}
