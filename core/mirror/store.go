// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package mirror holds the client side copy of the control plane
// collections, kept converging towards the control plane by applying
// streamed change events.
package mirror

import (
	"sync"

	"github.com/juju/errors"

	"github.com/juju/kubemirror/core/debounce"
	"github.com/juju/kubemirror/core/kind"
	"github.com/juju/kubemirror/core/object"
	"github.com/juju/kubemirror/core/relation"
)

const (
	// RecomputedTopic is published with the new *Snapshot after every
	// recompute.
	RecomputedTopic = "mirror.recomputed"
)

// Event is a change to apply to one collection.
type Event struct {
	Type   object.ChangeType
	Object *object.Object
}

type collection map[object.Key]*object.Object

// Store keeps one keyed collection per kind. Applying an event is
// synchronous; recomputing derived children and publishing a snapshot
// is coalesced over the configured window.
type Store struct {
	config    Config
	debouncer *debounce.Debouncer

	mu          sync.Mutex
	collections map[kind.Kind]collection

	// recomputeMu serialises recomputes so snapshots are published
	// in generation order.
	recomputeMu sync.Mutex
	generation  uint64
	snapshot    *Snapshot
}

// NewStore returns an empty store with a collection for every kind in
// the catalog.
func NewStore(config Config) (*Store, error) {
	if err := config.Validate(); err != nil {
		return nil, errors.Trace(err)
	}
	s := &Store{
		config:      config,
		collections: make(map[kind.Kind]collection),
	}
	for _, k := range config.Catalog.Kinds() {
		s.collections[k] = make(collection)
	}
	s.snapshot = newSnapshot(0, nil, nil)
	s.debouncer = debounce.New(config.Clock, config.Window, s.recompute)
	return s, nil
}

// ApplyEvent applies one change to the collection of the kind:
//   - Added inserts, or replaces an object already present;
//   - Modified replaces, and is ignored for an absent object;
//   - Deleted removes, and is ignored for an absent object.
func (s *Store) ApplyEvent(k kind.Kind, event Event) error {
	if event.Object == nil {
		return errors.NotValidf("%s event without object", event.Type)
	}
	if event.Object.Kind != "" && event.Object.Kind != k {
		return errors.NotValidf("%s object in %s collection", event.Object.Kind, k)
	}

	s.mu.Lock()
	coll, ok := s.collections[k]
	if !ok {
		s.mu.Unlock()
		return errors.NotValidf("event for unknown kind %q", k)
	}
	key := event.Object.Key()
	_, exists := coll[key]

	changed := false
	switch event.Type {
	case object.Added:
		coll[key] = event.Object
		changed = true
	case object.Modified:
		if exists {
			coll[key] = event.Object
			changed = true
		}
	case object.Deleted:
		if exists {
			delete(coll, key)
			changed = true
		}
	default:
		s.mu.Unlock()
		return errors.NotValidf("event type %q", event.Type)
	}
	s.mu.Unlock()

	if !changed {
		s.config.Logger.Tracef("ignoring %s of absent %s/%s", event.Type, k, key)
		return nil
	}
	s.debouncer.Trigger()
	return nil
}

// Get returns the current object for the ref.
func (s *Store) Get(ref object.Ref) (*object.Object, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	obj, ok := s.collections[ref.Kind][ref.Key]
	return obj, ok
}

// List returns the current objects of the kind ordered by key.
func (s *Store) List(k kind.Kind) []*object.Object {
	s.mu.Lock()
	defer s.mu.Unlock()
	return sortedObjects(s.collections[k])
}

// Len returns the number of objects of the kind.
func (s *Store) Len(k kind.Kind) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.collections[k])
}

// Reset empties every collection. The mirror is rebuilt from scratch
// after a reconnect.
func (s *Store) Reset() {
	s.mu.Lock()
	for k := range s.collections {
		s.collections[k] = make(collection)
	}
	s.mu.Unlock()
	s.debouncer.Trigger()
}

// ResetKind empties the collection of one kind. A resubscribed stream
// replays every object that still exists, so what was held before is
// dropped rather than merged.
func (s *Store) ResetKind(k kind.Kind) error {
	s.mu.Lock()
	coll, ok := s.collections[k]
	if !ok {
		s.mu.Unlock()
		return errors.NotValidf("reset of unknown kind %q", k)
	}
	if len(coll) == 0 {
		s.mu.Unlock()
		return nil
	}
	s.collections[k] = make(collection)
	s.mu.Unlock()
	s.debouncer.Trigger()
	return nil
}

// Snapshot returns the view built by the most recent recompute.
func (s *Store) Snapshot() *Snapshot {
	s.recomputeMu.Lock()
	defer s.recomputeMu.Unlock()
	return s.snapshot
}

// Flush runs a pending recompute immediately.
func (s *Store) Flush() {
	s.debouncer.Flush()
}

// Watch returns a watcher notified after every recompute.
func (s *Store) Watch() *Watcher {
	return newWatcher(s.config.Hub)
}

// Close stops any pending recompute. The collections stay readable.
func (s *Store) Close() {
	s.debouncer.Stop()
}

func (s *Store) recompute() {
	s.recomputeMu.Lock()

	s.mu.Lock()
	copied := make(map[kind.Kind]collection, len(s.collections))
	for k, coll := range s.collections {
		cp := make(collection, len(coll))
		for key, obj := range coll {
			cp[key] = obj
		}
		copied[k] = cp
	}
	s.mu.Unlock()

	s.generation++
	derived := deriveChildren(s.config.Catalog.Table(), copied)
	snapshot := newSnapshot(s.generation, copied, derived)
	s.snapshot = snapshot
	s.recomputeMu.Unlock()

	s.config.Logger.Debugf("recomputed mirror generation %d", snapshot.Generation())
	s.config.Hub.Publish(RecomputedTopic, snapshot)
}

// deriveChildren rebuilds the derived children of every object in full.
func deriveChildren(table relation.Table, collections map[kind.Kind]collection) map[object.Ref][]object.Ref {
	derived := make(map[object.Ref][]object.Ref)
	for _, p := range table {
		parents := sortedObjects(collections[p.ParentKind])
		children := sortedObjects(collections[p.ChildKind])
		for _, parent := range parents {
			ref := parent.Ref()
			for _, child := range children {
				if p.Match(child, parent) {
					derived[ref] = append(derived[ref], child.Ref())
				}
			}
		}
	}
	return derived
}
