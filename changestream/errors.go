// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package changestream

import (
	"fmt"

	"github.com/juju/errors"
)

const (
	// ErrConnection is matched by failures to reach the control plane:
	// dial, TLS, or a non-success response.
	ErrConnection = errors.ConstError("connection error")

	// ErrDecode is matched by a record that could not be decoded. Only
	// that record is lost; the stream can still be read.
	ErrDecode = errors.ConstError("decode error")

	// ErrCancelled is returned once cancellation of the stream's
	// context has been observed.
	ErrCancelled = errors.ConstError("stream cancelled")
)

// ConnectionError describes why a stream could not be opened or read.
type ConnectionError struct {
	Path       string
	StatusCode int
	Err        error
}

// Error implements error.
func (e *ConnectionError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: streaming %q: status %d: %v", ErrConnection, e.Path, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s: streaming %q: %v", ErrConnection, e.Path, e.Err)
}

// Unwrap returns the underlying transport error.
func (e *ConnectionError) Unwrap() error {
	return e.Err
}

// Is matches ErrConnection.
func (e *ConnectionError) Is(target error) bool {
	return target == ErrConnection
}

// DecodeError describes a malformed record.
type DecodeError struct {
	Path   string
	Record []byte
	Err    error
}

// Error implements error.
func (e *DecodeError) Error() string {
	return fmt.Sprintf("%s: record from %q: %v", ErrDecode, e.Path, e.Err)
}

// Unwrap returns the underlying decoding error.
func (e *DecodeError) Unwrap() error {
	return e.Err
}

// Is matches ErrDecode.
func (e *DecodeError) Is(target error) bool {
	return target == ErrDecode
}
