// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package mirror

import (
	"sort"

	"github.com/juju/kubemirror/core/kind"
	"github.com/juju/kubemirror/core/object"
)

// Snapshot is an immutable view of every collection at one recompute,
// with the derived children of each object filled in.
type Snapshot struct {
	generation uint64
	objects    map[object.Ref]*object.Object
	sorted     map[kind.Kind][]*object.Object
}

func newSnapshot(generation uint64, collections map[kind.Kind]collection, derived map[object.Ref][]object.Ref) *Snapshot {
	s := &Snapshot{
		generation: generation,
		objects:    make(map[object.Ref]*object.Object),
		sorted:     make(map[kind.Kind][]*object.Object, len(collections)),
	}
	for k, coll := range collections {
		objs := sortedObjects(coll)
		for i, obj := range objs {
			obj = obj.WithDerivedChildren(derived[obj.Ref()])
			objs[i] = obj
			s.objects[obj.Ref()] = obj
		}
		s.sorted[k] = objs
	}
	return s
}

// Generation increases by one with every recompute.
func (s *Snapshot) Generation() uint64 {
	return s.generation
}

// Get returns the object for the ref.
func (s *Snapshot) Get(ref object.Ref) (*object.Object, bool) {
	obj, ok := s.objects[ref]
	return obj, ok
}

// List returns the objects of the kind ordered by key. The slice
// must not be modified.
func (s *Snapshot) List(k kind.Kind) []*object.Object {
	return s.sorted[k]
}

// Len returns the total number of objects in the snapshot.
func (s *Snapshot) Len() int {
	return len(s.objects)
}

func sortedObjects(coll collection) []*object.Object {
	objs := make([]*object.Object, 0, len(coll))
	for _, obj := range coll {
		objs = append(objs, obj)
	}
	sort.Slice(objs, func(i, j int) bool {
		return objs[i].Key().Less(objs[j].Key())
	})
	return objs
}
