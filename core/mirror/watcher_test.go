// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package mirror_test

import (
	"time"

	jc "github.com/juju/testing/checkers"
	gc "gopkg.in/check.v1"

	"github.com/juju/kubemirror/core/kind"
	"github.com/juju/kubemirror/core/object"
	objecttesting "github.com/juju/kubemirror/core/object/testing"
)

type watcherSuite struct {
	baseSuite
}

var _ = gc.Suite(&watcherSuite{})

func (s *watcherSuite) TestLatestSnapshotWins(c *gc.C) {
	store := s.newStore(c)
	w := store.Watch()
	defer w.Stop()

	s.apply(c, store, object.Added, objecttesting.NewObject(kind.Pod, "default", "a"))
	s.apply(c, store, object.Added, objecttesting.NewObject(kind.Pod, "default", "b"))

	// Both recomputes are published; a slow reader eventually sees the
	// newest and never a stale one after it.
	deadline := time.After(longWait)
	for {
		select {
		case snapshot := <-w.Changes():
			if snapshot.Generation() == 2 {
				c.Check(snapshot.List(kind.Pod), gc.HasLen, 2)
				return
			}
		case <-deadline:
			c.Fatalf("never saw generation 2")
		}
	}
}

func (s *watcherSuite) TestStopClosesChanges(c *gc.C) {
	store := s.newStore(c)
	w := store.Watch()
	c.Assert(w.Stop(), jc.ErrorIsNil)

	select {
	case _, ok := <-w.Changes():
		c.Check(ok, jc.IsFalse)
	case <-time.After(longWait):
		c.Fatalf("changes not closed")
	}
	// A recompute after stopping must not panic.
	s.apply(c, store, object.Added, objecttesting.NewObject(kind.Pod, "default", "a"))
}
