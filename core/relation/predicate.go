// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package relation holds the static table of predicates used to infer
// parent/child structure between mirrored objects.
package relation

import (
	"github.com/juju/collections/set"
	"github.com/juju/errors"
	"github.com/juju/loggo"

	"github.com/juju/kubemirror/core/kind"
	"github.com/juju/kubemirror/core/object"
)

var logger = loggo.GetLogger("kubemirror.core.relation")

// MatchFunc reports whether child is a child of parent.
type MatchFunc func(child, parent *object.Object) bool

// Predicate infers an edge from an object of ParentKind to an object
// of ChildKind.
type Predicate struct {
	Name       string
	ParentKind kind.Kind
	ChildKind  kind.Kind
	Match      MatchFunc
}

// Validate ensures the predicate is usable.
func (p Predicate) Validate() error {
	if p.ParentKind == "" || p.ChildKind == "" {
		return errors.NotValidf("predicate %q with empty kind", p.Name)
	}
	if p.Match == nil {
		return errors.NotValidf("predicate %q without match", p.Name)
	}
	return nil
}

// Table is a static list of predicates. The order of the table decides
// the order in which candidate children are found.
type Table []Predicate

// Validate ensures every predicate in the table is usable.
func (t Table) Validate() error {
	for _, p := range t {
		if err := p.Validate(); err != nil {
			return errors.Trace(err)
		}
	}
	return nil
}

// ForParent returns the predicates keyed on the parent kind.
func (t Table) ForParent(parent kind.Kind) []Predicate {
	var result []Predicate
	for _, p := range t {
		if p.ParentKind == parent {
			result = append(result, p)
		}
	}
	return result
}

// Restrict returns the predicates whose kinds are both in kinds.
func (t Table) Restrict(kinds set.Strings) Table {
	var result Table
	for _, p := range t {
		if kinds.Contains(string(p.ParentKind)) && kinds.Contains(string(p.ChildKind)) {
			result = append(result, p)
		}
	}
	return result
}
