// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package relay multiplexes many control plane change streams over one
// websocket session per client.
package relay

import (
	"context"
	"net/url"
	"time"

	"github.com/juju/clock"
	"github.com/juju/errors"

	"github.com/juju/kubemirror/changestream"
)

//go:generate go run go.uber.org/mock/mockgen -package mocks -destination mocks/opener_mock.go github.com/juju/kubemirror/relay StreamOpener
//go:generate go run go.uber.org/mock/mockgen -package mocks -destination mocks/stream_mock.go github.com/juju/kubemirror/changestream Stream

const (
	// DefaultQueueSize is the number of events a subscription buffers
	// between reading the stream and writing to the session.
	DefaultQueueSize = 100

	// DefaultPingPeriod is how often a session pings its peer.
	DefaultPingPeriod = time.Minute

	// writeWait is how long a single write to the session may take.
	writeWait = 10 * time.Second
)

// StreamOpener opens control plane change streams. It is satisfied by
// *changestream.Client.
type StreamOpener interface {
	OpenStream(ctx context.Context, path string, params url.Values) (changestream.Stream, error)
}

// Logger represents the logging methods called.
type Logger interface {
	Errorf(message string, args ...interface{})
	Warningf(message string, args ...interface{})
	Infof(message string, args ...interface{})
	Debugf(message string, args ...interface{})
	Tracef(message string, args ...interface{})
}

// Config holds the settings shared by every session.
type Config struct {
	Clock   clock.Clock
	Logger  Logger
	Metrics *Collector

	// QueueSize bounds each subscription's event queue. A full queue
	// stalls the stream reader; events are never dropped.
	QueueSize int

	// PingPeriod is the keepalive interval. A peer that stays silent
	// for half as long again is considered gone.
	PingPeriod time.Duration
}

// Validate ensures that the config values are valid.
func (c Config) Validate() error {
	if c.Clock == nil {
		return errors.NotValidf("nil Clock")
	}
	if c.Logger == nil {
		return errors.NotValidf("nil Logger")
	}
	if c.Metrics == nil {
		return errors.NotValidf("nil Metrics")
	}
	if c.QueueSize <= 0 {
		return errors.NotValidf("QueueSize %d", c.QueueSize)
	}
	if c.PingPeriod <= 0 {
		return errors.NotValidf("PingPeriod %v", c.PingPeriod)
	}
	return nil
}

func (c Config) pongWait() time.Duration {
	return c.PingPeriod * 3 / 2
}
