// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package mirrorsync

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"github.com/gorilla/websocket"
	"github.com/juju/clock"
	"github.com/juju/errors"
	"github.com/juju/pubsub/v2"

	"github.com/juju/kubemirror/core/mirror"
	"github.com/juju/kubemirror/core/relation"
)

const (
	// DefaultResubscribeDelay is how long the worker waits before
	// subscribing again to a stream that completed or failed.
	DefaultResubscribeDelay = 2 * time.Second

	// DefaultReconnectDelay is the first delay between attempts to
	// reach the relay.
	DefaultReconnectDelay = time.Second

	// DefaultMaxReconnectDelay caps the back-off between attempts to
	// reach the relay.
	DefaultMaxReconnectDelay = time.Minute
)

// Dialer opens websocket connections. It is satisfied by
// *websocket.Dialer.
type Dialer interface {
	DialContext(ctx context.Context, urlStr string, requestHeader http.Header) (*websocket.Conn, *http.Response, error)
}

// Logger represents the logging methods called.
type Logger interface {
	Errorf(message string, args ...interface{})
	Warningf(message string, args ...interface{})
	Infof(message string, args ...interface{})
	Debugf(message string, args ...interface{})
	Tracef(message string, args ...interface{})
}

// Config holds the dependencies and settings of the worker.
type Config struct {
	// URL is the websocket address of the relay's stream endpoint.
	URL string

	// Token, if set, is presented to the relay as a bearer token.
	Token string

	// Namespace restricts namespaced kinds to one namespace. Empty
	// mirrors the whole cluster.
	Namespace string

	Catalog *relation.Catalog
	Store   *mirror.Store
	Hub     *pubsub.SimpleHub
	Dialer  Dialer
	Clock   clock.Clock
	Logger  Logger

	ResubscribeDelay  time.Duration
	ReconnectDelay    time.Duration
	MaxReconnectDelay time.Duration
}

// Validate ensures that the config values are valid.
func (c Config) Validate() error {
	u, err := url.Parse(c.URL)
	if err != nil || (u.Scheme != "ws" && u.Scheme != "wss") {
		return errors.NotValidf("relay URL %q", c.URL)
	}
	if c.Catalog == nil {
		return errors.NotValidf("nil Catalog")
	}
	if c.Store == nil {
		return errors.NotValidf("nil Store")
	}
	if c.Hub == nil {
		return errors.NotValidf("nil Hub")
	}
	if c.Dialer == nil {
		return errors.NotValidf("nil Dialer")
	}
	if c.Clock == nil {
		return errors.NotValidf("nil Clock")
	}
	if c.Logger == nil {
		return errors.NotValidf("nil Logger")
	}
	if c.ResubscribeDelay <= 0 {
		return errors.NotValidf("ResubscribeDelay %v", c.ResubscribeDelay)
	}
	if c.ReconnectDelay <= 0 || c.MaxReconnectDelay < c.ReconnectDelay {
		return errors.NotValidf("reconnect delays %v..%v", c.ReconnectDelay, c.MaxReconnectDelay)
	}
	return nil
}
