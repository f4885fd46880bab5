// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package debounce coalesces bursts of triggers into a single call made
// once the triggers have been quiet for a window.
package debounce

import (
	"sync"
	"time"

	"github.com/juju/clock"
)

// Debouncer calls a function once a window has passed without another
// Trigger. A zero window calls the function synchronously on every
// Trigger, which keeps tests deterministic.
type Debouncer struct {
	clock  clock.Clock
	window time.Duration
	fn     func()

	mu      sync.Mutex
	timer   clock.Timer
	gen     uint64
	stopped bool
}

// New returns a debouncer calling fn after window of quiet.
func New(clk clock.Clock, window time.Duration, fn func()) *Debouncer {
	if clk == nil {
		clk = clock.WallClock
	}
	return &Debouncer{
		clock:  clk,
		window: window,
		fn:     fn,
	}
}

// Trigger schedules a call, pushing back any call already scheduled.
func (d *Debouncer) Trigger() {
	if d.window <= 0 {
		d.mu.Lock()
		stopped := d.stopped
		d.mu.Unlock()
		if !stopped {
			d.fn()
		}
		return
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return
	}
	if d.timer != nil {
		d.timer.Stop()
	}
	d.gen++
	gen := d.gen
	d.timer = d.clock.AfterFunc(d.window, func() {
		d.fire(gen)
	})
}

func (d *Debouncer) fire(gen uint64) {
	d.mu.Lock()
	if d.stopped || gen != d.gen || d.timer == nil {
		// Superseded by a later trigger, a flush or a stop.
		d.mu.Unlock()
		return
	}
	d.timer = nil
	d.mu.Unlock()

	d.fn()
}

// Flush makes any scheduled call now, returning true if there was one.
func (d *Debouncer) Flush() bool {
	d.mu.Lock()
	if d.stopped || d.timer == nil {
		d.mu.Unlock()
		return false
	}
	d.timer.Stop()
	d.timer = nil
	d.gen++
	d.mu.Unlock()

	d.fn()
	return true
}

// Stop cancels any scheduled call. Later triggers are ignored.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stopped = true
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}
