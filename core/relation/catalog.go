// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package relation

import (
	"github.com/juju/collections/set"
	"github.com/juju/errors"

	"github.com/juju/kubemirror/core/kind"
)

// Entry is everything known about one kind: where its collection lives
// and which predicates find its children.
type Entry struct {
	kind.Info

	// Children are the predicates keyed on this kind as parent.
	Children []Predicate
}

// Catalog is the finite mapping from kind to Entry. It is resolved once
// per session and read only afterwards.
type Catalog struct {
	entries map[kind.Kind]Entry
	kinds   []kind.Kind
	table   Table
}

// NewCatalog returns a catalog over the registry. Predicates naming a
// kind outside the registry are dropped.
func NewCatalog(registry *kind.Registry, table Table) (*Catalog, error) {
	if registry == nil {
		return nil, errors.NotValidf("nil registry")
	}
	if err := table.Validate(); err != nil {
		return nil, errors.Trace(err)
	}
	kinds := registry.Kinds()
	known := set.NewStrings()
	for _, k := range kinds {
		known.Add(string(k))
	}
	table = table.Restrict(known)

	c := &Catalog{
		entries: make(map[kind.Kind]Entry, len(kinds)),
		kinds:   kinds,
		table:   table,
	}
	for _, k := range kinds {
		info, err := registry.Lookup(k)
		if err != nil {
			return nil, errors.Trace(err)
		}
		c.entries[k] = Entry{
			Info:     info,
			Children: table.ForParent(k),
		}
	}
	return c, nil
}

// DefaultCatalog returns the catalog of the default registry and table.
func DefaultCatalog() *Catalog {
	c, err := NewCatalog(kind.DefaultRegistry(), DefaultTable())
	if err != nil {
		panic(err)
	}
	return c
}

// Resolve returns the entry for a kind.
func (c *Catalog) Resolve(k kind.Kind) (Entry, error) {
	entry, ok := c.entries[k]
	if !ok {
		return Entry{}, errors.NotFoundf("kind %q", k)
	}
	return entry, nil
}

// Kinds returns the catalogued kinds in registry order.
func (c *Catalog) Kinds() []kind.Kind {
	return append([]kind.Kind(nil), c.kinds...)
}

// Table returns the predicates restricted to the catalogued kinds.
func (c *Catalog) Table() Table {
	return c.table
}
