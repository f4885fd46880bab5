// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package relay

import (
	"context"
	"encoding/json"
	"io"
	"net/url"

	"github.com/juju/errors"
	"gopkg.in/tomb.v2"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"

	"github.com/juju/kubemirror/changestream"
	"github.com/juju/kubemirror/core/object"
	"github.com/juju/kubemirror/relay/params"
)

// subscription forwards one change stream to its session. A reader
// goroutine fills a bounded queue that the forwarding loop drains, so a
// slow session stalls the stream rather than losing events.
type subscription struct {
	tomb    tomb.Tomb
	session *Session

	id    string
	path  string
	query url.Values
}

func newSubscription(session *Session, id, path string, query url.Values) *subscription {
	return &subscription{
		session: session,
		id:      id,
		path:    path,
		query:   query,
	}
}

func (sub *subscription) start() {
	sub.tomb.Go(sub.loop)
}

// Kill is part of the worker.Worker interface.
func (sub *subscription) Kill() {
	sub.tomb.Kill(nil)
}

// Wait is part of the worker.Worker interface.
func (sub *subscription) Wait() error {
	return sub.tomb.Wait()
}

func (sub *subscription) loop() error {
	metrics := sub.session.config.Metrics
	metrics.subscriptions.Inc()
	defer metrics.subscriptions.Dec()

	ctx := sub.tomb.Context(context.Background())
	stream, err := sub.session.opener.OpenStream(ctx, sub.path, sub.query)
	if err != nil {
		return sub.end(err)
	}
	defer func() { _ = stream.Close() }()

	queue := make(chan changestream.Event, sub.session.config.QueueSize)
	ended := make(chan error, 1)
	sub.tomb.Go(func() error {
		sub.read(stream, queue, ended)
		return nil
	})

	for {
		select {
		case <-sub.tomb.Dying():
			return tomb.ErrDying
		case event, ok := <-queue:
			if !ok {
				return sub.end(<-ended)
			}
			if event.Type == object.Error {
				return sub.end(statusError(event))
			}
			err := sub.session.send(params.Message{
				ID:   sub.id,
				Type: params.DataMessage,
				Path: sub.path,
				Data: &params.Data{
					Type:   string(event.Type),
					Object: event.Object,
				},
			})
			if err != nil {
				return sub.writeFailed(err)
			}
			metrics.forwardedEvent(event.Type)
		}
	}
}

// read moves events from the stream into the queue until the stream
// ends, then reports why on ended and closes the queue.
func (sub *subscription) read(stream changestream.Stream, queue chan<- changestream.Event, ended chan<- error) {
	defer close(queue)
	logger := sub.session.config.Logger
	for {
		event, err := stream.Next()
		if errors.Is(err, changestream.ErrDecode) {
			logger.Warningf("skipping record on %q: %v", sub.path, err)
			sub.session.config.Metrics.decodeErrors.Inc()
			continue
		}
		if err != nil {
			ended <- err
			return
		}
		select {
		case queue <- event:
		case <-sub.tomb.Dying():
			ended <- changestream.ErrCancelled
			return
		}
	}
}

// end finishes the subscription after its stream has stopped. The
// subscription leaves the session's table before the client is told,
// so the client may subscribe again straight away. The tomb is killed
// so a reader blocked on a full queue stops too.
func (sub *subscription) end(reason error) error {
	select {
	case <-sub.tomb.Dying():
		return tomb.ErrDying
	default:
	}
	if errors.Is(reason, changestream.ErrCancelled) {
		return nil
	}
	sub.session.release(sub)
	sub.tomb.Kill(nil)

	var err error
	if reason == io.EOF {
		sub.session.config.Logger.Debugf("stream %q completed", sub.path)
		err = sub.session.sendStatus(sub.id, sub.path, params.StatusCompleted)
	} else {
		sub.session.config.Logger.Infof("stream %q failed: %v", sub.path, reason)
		sub.session.config.Metrics.streamErrors.Inc()
		err = sub.session.sendError(sub.id, sub.path, reason)
	}
	if err != nil {
		return sub.writeFailed(err)
	}
	return nil
}

// writeFailed returns the error that ends the subscription after a
// failed write. A real write failure ends the whole session.
func (sub *subscription) writeFailed(err error) error {
	if errors.Is(err, errSessionClosed) {
		return nil
	}
	return errors.Trace(err)
}

// statusError converts an error event into an error, using the message
// of the status object it carries.
func statusError(event changestream.Event) error {
	var status metav1.Status
	if err := json.Unmarshal(event.Object, &status); err != nil || status.Message == "" {
		return errors.Errorf("stream error")
	}
	return errors.Errorf("stream error: %s", status.Message)
}
