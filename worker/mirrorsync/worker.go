// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package mirrorsync keeps a mirror store in step with the control
// plane by subscribing to every catalogued kind through a relay.
package mirrorsync

import (
	"context"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/juju/clock"
	"github.com/juju/collections/set"
	"github.com/juju/errors"
	"github.com/juju/retry"
	"github.com/juju/worker/v4/catacomb"

	"github.com/juju/kubemirror/core/kind"
	"github.com/juju/kubemirror/core/mirror"
	"github.com/juju/kubemirror/core/object"
	"github.com/juju/kubemirror/relay/params"
)

const writeWait = 10 * time.Second

// Worker mirrors the catalogued kinds into the store.
type Worker struct {
	catacomb catacomb.Catacomb
	config   Config

	// paths maps each subscribed collection path onto its kind.
	paths map[string]kind.Kind

	mu     sync.Mutex
	status Status
}

// NewWorker starts a worker with the supplied config.
func NewWorker(config Config) (*Worker, error) {
	if err := config.Validate(); err != nil {
		return nil, errors.Trace(err)
	}
	w := &Worker{
		config: config,
		paths:  make(map[string]kind.Kind),
	}
	for _, k := range config.Catalog.Kinds() {
		entry, err := config.Catalog.Resolve(k)
		if err != nil {
			return nil, errors.Trace(err)
		}
		w.paths[entry.RelayPath(config.Namespace)] = k
	}
	if err := catacomb.Invoke(catacomb.Plan{
		Site: &w.catacomb,
		Work: w.loop,
	}); err != nil {
		return nil, errors.Trace(err)
	}
	return w, nil
}

// Kill is part of the worker.Worker interface.
func (w *Worker) Kill() {
	w.catacomb.Kill(nil)
}

// Wait is part of the worker.Worker interface.
func (w *Worker) Wait() error {
	return w.catacomb.Wait()
}

// Status returns the current status.
func (w *Worker) Status() Status {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.status
}

func (w *Worker) setStatus(status Status, reason error) {
	w.mu.Lock()
	if w.status == status {
		w.mu.Unlock()
		return
	}
	w.status = status
	w.mu.Unlock()

	change := StatusChange{Status: status}
	if reason != nil {
		change.Reason = reason.Error()
	}
	w.config.Logger.Debugf("mirror %s", status)
	w.config.Hub.Publish(StatusTopic, change)
}

func (w *Worker) loop() error {
	w.setStatus(Connecting, nil)
	for {
		conn, err := w.connect()
		if err != nil {
			if retry.IsRetryStopped(err) {
				return w.catacomb.ErrDying()
			}
			return errors.Trace(err)
		}

		err = w.serve(conn)
		select {
		case <-w.catacomb.Dying():
			return w.catacomb.ErrDying()
		default:
		}

		w.config.Logger.Warningf("relay session lost: %v", err)
		w.config.Store.Reset()
		w.setStatus(Reconnecting, err)
	}
}

// connect dials the relay until it answers or the worker dies.
func (w *Worker) connect() (*websocket.Conn, error) {
	header := http.Header{}
	if w.config.Token != "" {
		header.Set("Authorization", "Bearer "+w.config.Token)
	}
	ctx, cancel := w.scopedContext()
	defer cancel()

	var conn *websocket.Conn
	err := retry.Call(retry.CallArgs{
		Func: func() error {
			c, resp, err := w.config.Dialer.DialContext(ctx, w.config.URL, header)
			if resp != nil && resp.Body != nil {
				_ = resp.Body.Close()
			}
			if err != nil {
				return errors.Annotatef(err, "dialing relay %s", w.config.URL)
			}
			conn = c
			return nil
		},
		NotifyFunc: func(err error, attempt int) {
			w.config.Logger.Debugf("attempt %d: %v", attempt, err)
		},
		Attempts:    retry.UnlimitedAttempts,
		Delay:       w.config.ReconnectDelay,
		BackoffFunc: retry.ExpBackoff(w.config.ReconnectDelay, w.config.MaxReconnectDelay, 2, false),
		Clock:       w.config.Clock,
		Stop:        w.catacomb.Dying(),
	})
	return conn, err
}

// serve subscribes every path over conn and applies what arrives until
// the session fails or the worker dies.
func (w *Worker) serve(conn *websocket.Conn) error {
	messages := make(chan params.Message)
	readErr := make(chan error, 1)
	readerDone := make(chan struct{})
	go func() {
		defer close(readerDone)
		for {
			var msg params.Message
			if err := conn.ReadJSON(&msg); err != nil {
				readErr <- err
				return
			}
			select {
			case messages <- msg:
			case <-w.catacomb.Dying():
				return
			}
		}
	}()
	// Closing the connection unblocks the reader.
	defer func() {
		_ = conn.Close()
		<-readerDone
	}()

	resubscribe := make(chan string)
	done := make(chan struct{})
	timers := make(map[string]clock.Timer)
	defer func() {
		close(done)
		for _, t := range timers {
			t.Stop()
		}
	}()
	schedule := func(path string) {
		if t, ok := timers[path]; ok {
			t.Stop()
		}
		timers[path] = w.config.Clock.AfterFunc(w.config.ResubscribeDelay, func() {
			select {
			case resubscribe <- path:
			case <-done:
			}
		})
	}

	acked := set.NewStrings()
	degraded := set.NewStrings()
	for _, path := range w.sortedPaths() {
		if err := w.subscribe(conn, path); err != nil {
			return errors.Trace(err)
		}
	}

	for {
		select {
		case <-w.catacomb.Dying():
			return w.catacomb.ErrDying()
		case err := <-readErr:
			return errors.Annotate(err, "reading from relay")
		case path := <-resubscribe:
			delete(timers, path)
			if err := w.subscribe(conn, path); err != nil {
				return errors.Trace(err)
			}
		case msg := <-messages:
			k, ok := w.paths[msg.Path]
			if !ok {
				w.config.Logger.Debugf("ignoring message for unknown path %q", msg.Path)
				continue
			}
			switch msg.Type {
			case params.DataMessage:
				w.apply(msg)
				continue
			case params.StatusMessage:
				switch msg.Status() {
				case params.StatusSubscribed:
					// The new stream replays every object that still
					// exists; anything deleted meanwhile must not linger.
					if err := w.config.Store.ResetKind(k); err != nil {
						return errors.Trace(err)
					}
					acked.Add(msg.Path)
					degraded.Remove(msg.Path)
				case params.StatusCompleted:
					w.config.Logger.Debugf("stream %q completed", msg.Path)
					acked.Remove(msg.Path)
					degraded.Add(msg.Path)
					schedule(msg.Path)
				}
			case params.ErrorMessage:
				if msg.Code == params.CodeAlreadySubscribed {
					acked.Add(msg.Path)
					degraded.Remove(msg.Path)
					break
				}
				reason := msg.Err()
				w.config.Logger.Infof("stream %q failed: %v", msg.Path, reason)
				acked.Remove(msg.Path)
				degraded.Add(msg.Path)
				schedule(msg.Path)
				w.setStatus(Degraded, reason)
				continue
			}
			switch {
			case !degraded.IsEmpty():
				w.setStatus(Degraded, nil)
			case acked.Size() == len(w.paths):
				w.setStatus(Live, nil)
			}
		}
	}
}

func (w *Worker) scopedContext() (context.Context, context.CancelFunc) {
	return context.WithCancel(w.catacomb.Context(context.Background()))
}

func (w *Worker) sortedPaths() []string {
	paths := make([]string, 0, len(w.paths))
	for p := range w.paths {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

func (w *Worker) subscribe(conn *websocket.Conn, path string) error {
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	err := conn.WriteJSON(params.Request{
		ID:     string(w.paths[path]),
		Action: params.Subscribe,
		Path:   path,
	})
	return errors.Annotatef(err, "subscribing to %q", path)
}

// apply decodes a data message and applies it to the store. Bad data is
// logged and skipped.
func (w *Worker) apply(msg params.Message) {
	if msg.Data == nil {
		w.config.Logger.Warningf("data message for %q without data", msg.Path)
		return
	}
	k := w.paths[msg.Path]
	obj, err := object.Decode(k, msg.Data.Object)
	if err != nil {
		w.config.Logger.Warningf("skipping %s on %q: %v", msg.Data.Type, msg.Path, err)
		return
	}
	if err := w.config.Store.ApplyEvent(k, mirror.Event{Type: msg.Data.ChangeType(), Object: obj}); err != nil {
		w.config.Logger.Warningf("cannot apply %s of %s: %v", msg.Data.Type, obj.Ref(), err)
	}
}
