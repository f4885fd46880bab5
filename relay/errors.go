// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package relay

import (
	"path"
	"strings"

	"github.com/juju/errors"

	"github.com/juju/kubemirror/changestream"
	"github.com/juju/kubemirror/relay/params"
)

const (
	// ErrAlreadySubscribed is returned when a session subscribes to a
	// path it is already subscribed to.
	ErrAlreadySubscribed = errors.ConstError("already subscribed")

	// ErrNotSubscribed is returned when a session unsubscribes from a
	// path it is not subscribed to.
	ErrNotSubscribed = errors.ConstError("not subscribed")
)

// validatePath accepts only clean control plane API paths.
func validatePath(p string) error {
	if !strings.HasPrefix(p, "/api/") && !strings.HasPrefix(p, "/apis/") {
		return errors.NotValidf("path %q", p)
	}
	if path.Clean(p) != p || strings.ContainsAny(p, "?#") {
		return errors.NotValidf("path %q", p)
	}
	return nil
}

// requestError reports whether err concerns only the request that caused
// it, leaving the session usable.
func requestError(err error) bool {
	return errors.Is(err, ErrAlreadySubscribed) ||
		errors.Is(err, ErrNotSubscribed) ||
		errors.Is(err, errors.NotValid)
}

// errorCode maps an error onto the code sent to the client.
func errorCode(err error) string {
	switch {
	case errors.Is(err, ErrAlreadySubscribed):
		return params.CodeAlreadySubscribed
	case errors.Is(err, ErrNotSubscribed):
		return params.CodeNotSubscribed
	case errors.Is(err, errors.NotValid):
		return params.CodeBadRequest
	case errors.Is(err, changestream.ErrConnection):
		return params.CodeConnection
	default:
		return params.CodeStream
	}
}
