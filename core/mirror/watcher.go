// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package mirror

import (
	"sync"

	"github.com/juju/pubsub/v2"
	"gopkg.in/tomb.v2"
)

// Watcher notifies its Changes channel with the newest snapshot after
// every recompute. Snapshots published while a previous one is still
// unread replace it, so a slow reader only ever sees the latest.
type Watcher struct {
	tomb    tomb.Tomb
	changes chan *Snapshot

	// We can't send down a closed channel, so protect the sending
	// with a mutex and bool.
	mu     sync.Mutex
	closed bool
}

func newWatcher(hub *pubsub.SimpleHub) *Watcher {
	w := &Watcher{
		changes: make(chan *Snapshot, 1),
	}
	unsub := hub.Subscribe(RecomputedTopic, w.onRecompute)
	w.tomb.Go(func() error {
		<-w.tomb.Dying()
		unsub()
		return nil
	})
	return w
}

// Changes returns the channel of snapshots.
func (w *Watcher) Changes() <-chan *Snapshot {
	return w.changes
}

// Kill is part of the worker.Worker interface.
func (w *Watcher) Kill() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return
	}
	// The watcher must be dying before the channel is closed, or a
	// reader could see the close while the tomb still reads alive.
	w.tomb.Kill(nil)
	w.closed = true
	close(w.changes)
}

// Wait is part of the worker.Worker interface.
func (w *Watcher) Wait() error {
	return w.tomb.Wait()
}

// Stop kills the watcher and waits for it to finish.
func (w *Watcher) Stop() error {
	w.Kill()
	return w.Wait()
}

func (w *Watcher) onRecompute(topic string, data interface{}) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return
	}
	snapshot, ok := data.(*Snapshot)
	if !ok {
		logger.Criticalf("programming error: topic data expected *Snapshot, got %T", data)
		return
	}

	// Never block inside the mutex: drop the unread snapshot in favour
	// of the newer one.
	select {
	case <-w.changes:
	default:
	}
	w.changes <- snapshot
}
