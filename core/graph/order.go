// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package graph

import (
	"sort"
	"strings"

	"github.com/juju/collections/set"

	"github.com/juju/kubemirror/core/object"
)

const (
	// GroupsAnnotation lists, comma separated, the groups an object
	// belongs to.
	GroupsAnnotation = "kubemirror.juju.is/groups"

	// UpsertAfterAnnotation lists, comma separated, the groups that must
	// be placed before the groups of the object.
	UpsertAfterAnnotation = "kubemirror.juju.is/upsert-after"
)

// Declaration is what a sibling declares about its ordering.
type Declaration struct {
	Groups []string
	After  []string
}

// DeclarationFunc returns the ordering declaration of an object.
type DeclarationFunc func(*object.Object) Declaration

// AnnotationDeclaration reads the declaration from the object's
// annotations.
func AnnotationDeclaration(obj *object.Object) Declaration {
	annotations := obj.Annotations()
	return Declaration{
		Groups: splitList(annotations[GroupsAnnotation]),
		After:  splitList(annotations[UpsertAfterAnnotation]),
	}
}

func splitList(value string) []string {
	var result []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			result = append(result, part)
		}
	}
	return result
}

// Order returns the permutation of declarations placing siblings in
// dependency group order.
//
// Groups are the nodes of a graph with an edge X -> G whenever a member
// of G declares it goes after X. Groups are emitted with Kahn's
// algorithm, the earliest declared ready group first, and each emitted
// group emits its members not yet emitted in original order. Groups left
// over by a cycle follow in order of declaration, and siblings without a
// group come last in original order. "After" naming a group nobody
// declares is ignored.
func Order(decls []Declaration) []int {
	var groups []string
	position := make(map[string]int)
	members := make(map[string][]int)
	for i, d := range decls {
		for _, g := range d.Groups {
			if _, ok := position[g]; !ok {
				position[g] = len(groups)
				groups = append(groups, g)
			}
			members[g] = append(members[g], i)
		}
	}

	dependents := make(map[string]set.Strings)
	inDegree := make(map[string]int, len(groups))
	for _, g := range groups {
		inDegree[g] = 0
	}
	for _, d := range decls {
		for _, g := range d.Groups {
			for _, before := range d.After {
				if _, ok := position[before]; !ok || before == g {
					continue
				}
				if dependents[before] == nil {
					dependents[before] = set.NewStrings()
				}
				if dependents[before].Contains(g) {
					continue
				}
				dependents[before].Add(g)
				inDegree[g]++
			}
		}
	}

	var (
		result  []int
		ready   []string
		placed  = make([]bool, len(decls))
		emitted = set.NewStrings()
	)
	emit := func(g string) {
		emitted.Add(g)
		for _, i := range members[g] {
			if !placed[i] {
				placed[i] = true
				result = append(result, i)
			}
		}
	}

	for _, g := range groups {
		if inDegree[g] == 0 {
			ready = append(ready, g)
		}
	}
	for len(ready) > 0 {
		g := ready[0]
		ready = ready[1:]
		emit(g)
		for _, next := range dependents[g].Values() {
			inDegree[next]--
			if inDegree[next] == 0 {
				ready = append(ready, next)
			}
		}
		sort.Slice(ready, func(i, j int) bool {
			return position[ready[i]] < position[ready[j]]
		})
	}

	// Whatever is left sits on a cycle, or behind one.
	for _, g := range groups {
		if !emitted.Contains(g) {
			emit(g)
		}
	}
	for i := range decls {
		if !placed[i] {
			placed[i] = true
			result = append(result, i)
		}
	}
	return result
}

// orderObjects orders siblings with Order.
func orderObjects(siblings []*object.Object, declare DeclarationFunc) []*object.Object {
	decls := make([]Declaration, len(siblings))
	for i, obj := range siblings {
		decls[i] = declare(obj)
	}
	ordered := make([]*object.Object, 0, len(siblings))
	for _, i := range Order(decls) {
		ordered = append(ordered, siblings[i])
	}
	return ordered
}
