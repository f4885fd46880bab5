// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package changestream reads a control plane collection as a long lived
// stream of change records. It is pure transport and holds no state
// beyond the open response.
package changestream

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"sync"

	"github.com/juju/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/watch"

	"github.com/juju/kubemirror/core/object"
)

// Event is one decoded change record.
type Event struct {
	Type object.ChangeType

	// Object is the raw object payload. For an Error event it holds the
	// control plane's status object.
	Object json.RawMessage

	// Path is the collection path the event was read from.
	Path string
}

// Stream is an open change stream.
type Stream interface {
	// Next blocks until the next event. It returns io.EOF when the
	// control plane ends the stream cleanly, an error matching
	// ErrDecode for a malformed record, which can be skipped, and
	// ErrCancelled once the stream's context is done.
	Next() (Event, error)

	// Close releases the connection. It is safe to call more than once.
	Close() error
}

type watchStream struct {
	ctx    context.Context
	path   string
	body   io.ReadCloser
	reader *bufio.Reader

	stop      func() bool
	closeOnce sync.Once
	closeErr  error
}

func newWatchStream(ctx context.Context, path string, body io.ReadCloser) *watchStream {
	s := &watchStream{
		ctx:    ctx,
		path:   path,
		body:   body,
		reader: bufio.NewReader(body),
	}
	// Abort the connection the moment the context is done, rather than
	// when the next record happens to arrive.
	s.stop = context.AfterFunc(ctx, func() {
		_ = s.Close()
	})
	return s
}

// Next is part of the Stream interface.
func (s *watchStream) Next() (Event, error) {
	for {
		if s.ctx.Err() != nil {
			return Event{}, ErrCancelled
		}
		line, err := s.reader.ReadBytes('\n')
		if s.ctx.Err() != nil {
			return Event{}, ErrCancelled
		}
		if record := bytes.TrimSpace(line); len(record) > 0 {
			event, skip, decodeErr := s.decode(record)
			if decodeErr != nil {
				return Event{}, decodeErr
			}
			if !skip {
				return event, nil
			}
		}
		switch {
		case err == io.EOF:
			return Event{}, io.EOF
		case err != nil:
			return Event{}, &ConnectionError{Path: s.path, Err: err}
		}
	}
}

// decode decodes one record. Bookmarks carry no change and are
// skipped.
func (s *watchStream) decode(record []byte) (Event, bool, error) {
	var raw metav1.WatchEvent
	if err := json.Unmarshal(record, &raw); err != nil {
		return Event{}, false, &DecodeError{Path: s.path, Record: record, Err: err}
	}
	var t object.ChangeType
	switch watch.EventType(raw.Type) {
	case watch.Added:
		t = object.Added
	case watch.Modified:
		t = object.Modified
	case watch.Deleted:
		t = object.Deleted
	case watch.Error:
		t = object.Error
	case watch.Bookmark:
		logger.Tracef("bookmark on %q", s.path)
		return Event{}, true, nil
	default:
		return Event{}, false, &DecodeError{
			Path:   s.path,
			Record: record,
			Err:    errors.NotValidf("event type %q", raw.Type),
		}
	}
	if t != object.Error && len(raw.Object.Raw) == 0 {
		return Event{}, false, &DecodeError{
			Path:   s.path,
			Record: record,
			Err:    errors.NotValidf("%s event without object", t),
		}
	}
	return Event{
		Type:   t,
		Object: json.RawMessage(raw.Object.Raw),
		Path:   s.path,
	}, false, nil
}

// Close is part of the Stream interface.
func (s *watchStream) Close() error {
	s.closeOnce.Do(func() {
		s.stop()
		s.closeErr = s.body.Close()
	})
	return errors.Trace(s.closeErr)
}
