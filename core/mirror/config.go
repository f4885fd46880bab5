// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package mirror

import (
	"time"

	"github.com/juju/clock"
	"github.com/juju/errors"
	"github.com/juju/pubsub/v2"

	"github.com/juju/kubemirror/core/relation"
)

// DefaultWindow is the default quiescence window used to coalesce
// recomputes.
const DefaultWindow = 50 * time.Millisecond

// Logger represents the logging methods used by the store.
type Logger interface {
	Errorf(string, ...interface{})
	Debugf(string, ...interface{})
	Tracef(string, ...interface{})
}

// Config holds the dependencies of a Store.
type Config struct {
	// Catalog decides which kinds have a collection and how
	// derived children are inferred.
	Catalog *relation.Catalog

	// Hub receives a RecomputedTopic message after every recompute.
	Hub *pubsub.SimpleHub

	Clock  clock.Clock
	Logger Logger

	// Window is the quiescence window. Zero recomputes synchronously
	// on every event.
	Window time.Duration
}

// Validate ensures the config is usable.
func (c Config) Validate() error {
	if c.Catalog == nil {
		return errors.NotValidf("nil Catalog")
	}
	if c.Hub == nil {
		return errors.NotValidf("nil Hub")
	}
	if c.Clock == nil {
		return errors.NotValidf("nil Clock")
	}
	if c.Logger == nil {
		return errors.NotValidf("nil Logger")
	}
	if c.Window < 0 {
		return errors.NotValidf("negative Window")
	}
	return nil
}
