// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package mirror_test

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/juju/clock/testclock"
	"github.com/juju/errors"
	"github.com/juju/loggo"
	"github.com/juju/pubsub/v2"
	"github.com/juju/testing"
	jc "github.com/juju/testing/checkers"
	gc "gopkg.in/check.v1"

	"github.com/juju/kubemirror/core/kind"
	"github.com/juju/kubemirror/core/mirror"
	"github.com/juju/kubemirror/core/object"
	objecttesting "github.com/juju/kubemirror/core/object/testing"
	"github.com/juju/kubemirror/core/relation"
)

const (
	shortWait = 50 * time.Millisecond
	longWait  = 10 * time.Second
)

type baseSuite struct {
	testing.IsolationSuite

	clock  *testclock.Clock
	hub    *pubsub.SimpleHub
	config mirror.Config
}

func (s *baseSuite) SetUpTest(c *gc.C) {
	s.IsolationSuite.SetUpTest(c)
	s.clock = testclock.NewClock(time.Now())
	s.hub = pubsub.NewSimpleHub(nil)
	s.config = mirror.Config{
		Catalog: relation.DefaultCatalog(),
		Hub:     s.hub,
		Clock:   s.clock,
		Logger:  loggo.GetLogger("test"),
	}
}

func (s *baseSuite) newStore(c *gc.C) *mirror.Store {
	store, err := mirror.NewStore(s.config)
	c.Assert(err, jc.ErrorIsNil)
	s.AddCleanup(func(*gc.C) { store.Close() })
	return store
}

type storeSuite struct {
	baseSuite
}

var _ = gc.Suite(&storeSuite{})

func pod(name string, opts ...objecttesting.Option) *object.Object {
	return objecttesting.NewObject(kind.Pod, "default", name, opts...)
}

func phase(value string) objecttesting.Option {
	return objecttesting.WithField(value, "status", "phase")
}

func (s *baseSuite) apply(c *gc.C, store *mirror.Store, t object.ChangeType, obj *object.Object) {
	err := store.ApplyEvent(obj.Kind, mirror.Event{Type: t, Object: obj})
	c.Assert(err, jc.ErrorIsNil)
}

func (s *storeSuite) TestConfigValidate(c *gc.C) {
	tests := []struct {
		mutate   func(*mirror.Config)
		expected string
	}{
		{func(cfg *mirror.Config) { cfg.Catalog = nil }, "nil Catalog not valid"},
		{func(cfg *mirror.Config) { cfg.Hub = nil }, "nil Hub not valid"},
		{func(cfg *mirror.Config) { cfg.Clock = nil }, "nil Clock not valid"},
		{func(cfg *mirror.Config) { cfg.Logger = nil }, "nil Logger not valid"},
		{func(cfg *mirror.Config) { cfg.Window = -time.Second }, "negative Window not valid"},
	}
	for i, test := range tests {
		c.Logf("test %d", i)
		cfg := s.config
		test.mutate(&cfg)
		err := cfg.Validate()
		c.Check(err, gc.ErrorMatches, test.expected)
		c.Check(err, jc.Satisfies, errors.IsNotValid)
	}
}

func (s *storeSuite) TestAddModifyDelete(c *gc.C) {
	store := s.newStore(c)
	ref := pod("pod-a").Ref()

	s.apply(c, store, object.Added, pod("pod-a"))
	_, ok := store.Get(ref)
	c.Check(ok, jc.IsTrue)

	s.apply(c, store, object.Modified, pod("pod-a", phase("Running")))
	obj, ok := store.Get(ref)
	c.Assert(ok, jc.IsTrue)
	c.Check(obj.Attributes.Object["status"], jc.DeepEquals, map[string]interface{}{"phase": "Running"})

	s.apply(c, store, object.Deleted, pod("pod-a"))
	_, ok = store.Get(ref)
	c.Check(ok, jc.IsFalse)
	c.Check(store.Len(kind.Pod), gc.Equals, 0)
}

func (s *storeSuite) TestAddModifyDeleteAcrossWindow(c *gc.C) {
	s.config.Window = mirror.DefaultWindow
	store := s.newStore(c)

	s.apply(c, store, object.Added, pod("pod-a"))
	s.apply(c, store, object.Modified, pod("pod-a", phase("Running")))
	err := s.clock.WaitAdvance(mirror.DefaultWindow, longWait, 1)
	c.Assert(err, jc.ErrorIsNil)
	s.apply(c, store, object.Deleted, pod("pod-a"))
	store.Flush()

	_, ok := store.Get(pod("pod-a").Ref())
	c.Check(ok, jc.IsFalse)
	_, ok = store.Snapshot().Get(pod("pod-a").Ref())
	c.Check(ok, jc.IsFalse)
}

func (s *storeSuite) TestDuplicateAddedReplaces(c *gc.C) {
	store := s.newStore(c)
	s.apply(c, store, object.Added, pod("pod-a", phase("Pending")))
	s.apply(c, store, object.Added, pod("pod-a", phase("Running")))

	objs := store.List(kind.Pod)
	c.Assert(objs, gc.HasLen, 1)
	c.Check(objs[0].Attributes.Object["status"], jc.DeepEquals, map[string]interface{}{"phase": "Running"})
}

func (s *storeSuite) TestModifiedAbsentIgnored(c *gc.C) {
	store := s.newStore(c)
	w := store.Watch()
	defer w.Stop()

	s.apply(c, store, object.Modified, pod("pod-a"))
	s.apply(c, store, object.Deleted, pod("pod-b"))
	c.Check(store.Len(kind.Pod), gc.Equals, 0)

	select {
	case snapshot := <-w.Changes():
		c.Fatalf("unexpected recompute %d", snapshot.Generation())
	case <-time.After(shortWait):
	}
}

func (s *storeSuite) TestUnknownKind(c *gc.C) {
	registry, err := kind.DefaultRegistry().Restrict(kind.Pod)
	c.Assert(err, jc.ErrorIsNil)
	s.config.Catalog, err = relation.NewCatalog(registry, relation.DefaultTable())
	c.Assert(err, jc.ErrorIsNil)
	store := s.newStore(c)

	secret := objecttesting.NewObject(kind.Secret, "default", "creds")
	err = store.ApplyEvent(kind.Secret, mirror.Event{Type: object.Added, Object: secret})
	c.Assert(err, gc.ErrorMatches, `event for unknown kind "Secret" not valid`)
}

func (s *storeSuite) TestBadEvents(c *gc.C) {
	store := s.newStore(c)
	err := store.ApplyEvent(kind.Pod, mirror.Event{Type: object.Added})
	c.Check(err, gc.ErrorMatches, "Added event without object not valid")

	err = store.ApplyEvent(kind.Pod, mirror.Event{Type: object.Error, Object: pod("pod-a")})
	c.Check(err, gc.ErrorMatches, `event type "Error" not valid`)

	err = store.ApplyEvent(kind.Secret, mirror.Event{Type: object.Added, Object: pod("pod-a")})
	c.Check(err, gc.ErrorMatches, "Pod object in Secret collection not valid")
	c.Check(store.Len(kind.Pod), gc.Equals, 0)
}

func (s *storeSuite) TestBurstCoalescesToOneRecompute(c *gc.C) {
	s.config.Window = mirror.DefaultWindow
	store := s.newStore(c)
	w := store.Watch()
	defer w.Stop()

	for i := 0; i < 20; i++ {
		s.apply(c, store, object.Added, pod(fmt.Sprintf("pod-%02d", i)))
	}
	c.Check(store.Len(kind.Pod), gc.Equals, 20)
	c.Check(store.Snapshot().Generation(), gc.Equals, uint64(0))

	err := s.clock.WaitAdvance(mirror.DefaultWindow, longWait, 1)
	c.Assert(err, jc.ErrorIsNil)

	select {
	case snapshot := <-w.Changes():
		c.Check(snapshot.Generation(), gc.Equals, uint64(1))
		c.Check(snapshot.List(kind.Pod), gc.HasLen, 20)
	case <-time.After(longWait):
		c.Fatalf("no recompute")
	}
	select {
	case snapshot := <-w.Changes():
		c.Fatalf("unexpected second recompute %d", snapshot.Generation())
	case <-time.After(shortWait):
	}
}

func (s *storeSuite) TestDerivedChildrenRebuilt(c *gc.C) {
	store := s.newStore(c)
	rs := objecttesting.NewObject(kind.ReplicaSet, "default", "web-1")
	s.apply(c, store, object.Added, rs)
	s.apply(c, store, object.Added, pod("web-1-a", objecttesting.OwnedBy(rs)))
	s.apply(c, store, object.Added, pod("web-1-b", objecttesting.OwnedBy(rs)))

	got, ok := store.Snapshot().Get(rs.Ref())
	c.Assert(ok, jc.IsTrue)
	c.Check(got.DerivedChildren, jc.DeepEquals, []object.Ref{
		pod("web-1-a").Ref(),
		pod("web-1-b").Ref(),
	})

	s.apply(c, store, object.Deleted, pod("web-1-a"))
	got, ok = store.Snapshot().Get(rs.Ref())
	c.Assert(ok, jc.IsTrue)
	c.Check(got.DerivedChildren, jc.DeepEquals, []object.Ref{pod("web-1-b").Ref()})
}

func (s *storeSuite) TestReset(c *gc.C) {
	store := s.newStore(c)
	s.apply(c, store, object.Added, pod("pod-a"))
	s.apply(c, store, object.Added, objecttesting.NewObject(kind.Namespace, "", "default"))

	store.Reset()
	c.Check(store.Len(kind.Pod), gc.Equals, 0)
	c.Check(store.Len(kind.Namespace), gc.Equals, 0)
	c.Check(store.Snapshot().Len(), gc.Equals, 0)
}

func (s *storeSuite) TestResetKind(c *gc.C) {
	store := s.newStore(c)
	s.apply(c, store, object.Added, pod("pod-a"))
	s.apply(c, store, object.Added, objecttesting.NewObject(kind.Namespace, "", "default"))
	generation := store.Snapshot().Generation()

	c.Assert(store.ResetKind(kind.Pod), jc.ErrorIsNil)
	c.Check(store.Len(kind.Pod), gc.Equals, 0)
	c.Check(store.Len(kind.Namespace), gc.Equals, 1)
	c.Check(store.Snapshot().Generation(), gc.Equals, generation+1)

	// Nothing to drop, nothing to recompute.
	c.Assert(store.ResetKind(kind.Pod), jc.ErrorIsNil)
	c.Check(store.Snapshot().Generation(), gc.Equals, generation+1)

	// A replay after the reset rebuilds the collection.
	s.apply(c, store, object.Added, pod("pod-b"))
	_, ok := store.Get(pod("pod-a").Ref())
	c.Check(ok, jc.IsFalse)
	_, ok = store.Get(pod("pod-b").Ref())
	c.Check(ok, jc.IsTrue)
}

func (s *storeSuite) TestResetUnknownKind(c *gc.C) {
	registry, err := kind.DefaultRegistry().Restrict(kind.Pod)
	c.Assert(err, jc.ErrorIsNil)
	s.config.Catalog, err = relation.NewCatalog(registry, relation.DefaultTable())
	c.Assert(err, jc.ErrorIsNil)
	store := s.newStore(c)

	err = store.ResetKind(kind.Secret)
	c.Check(err, gc.ErrorMatches, `reset of unknown kind "Secret" not valid`)
}

// TestRandomSequences checks that for any sequence of events the final
// collection holds exactly the keys last added and not deleted since,
// with the last applied state.
func (s *storeSuite) TestRandomSequences(c *gc.C) {
	r := rand.New(rand.NewSource(1))
	types := []object.ChangeType{object.Added, object.Modified, object.Deleted}
	for run := 0; run < 50; run++ {
		store := s.newStore(c)
		expected := make(map[string]string)
		for i := 0; i < 200; i++ {
			name := fmt.Sprintf("pod-%d", r.Intn(8))
			value := fmt.Sprintf("v%d", i)
			t := types[r.Intn(len(types))]
			s.apply(c, store, t, pod(name, phase(value)))

			_, present := expected[name]
			switch {
			case t == object.Added:
				expected[name] = value
			case t == object.Modified && present:
				expected[name] = value
			case t == object.Deleted:
				delete(expected, name)
			}
		}

		actual := make(map[string]string)
		for _, obj := range store.List(kind.Pod) {
			actual[obj.Name] = obj.Attributes.Object["status"].(map[string]interface{})["phase"].(string)
		}
		c.Assert(actual, jc.DeepEquals, expected, gc.Commentf("run %d", run))
	}
}
