// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package relay

import (
	"encoding/json"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/juju/errors"
	"github.com/juju/worker/v4/catacomb"

	"github.com/juju/kubemirror/relay/params"
)

// Session serves one client over one websocket connection. It owns the
// table of the client's subscriptions; every subscription lives at most
// as long as the session.
type Session struct {
	catacomb catacomb.Catacomb
	config   Config
	conn     *websocket.Conn
	opener   StreamOpener

	// writeMu serializes writes to conn.
	writeMu sync.Mutex

	// closing is set before conn is closed, so that writes failing as a
	// result are not mistaken for peer failures.
	closing atomic.Bool

	mu   sync.Mutex
	subs map[string]*subscription
}

// NewSession starts serving conn, opening streams with opener. The
// session closes conn when it stops.
func NewSession(config Config, conn *websocket.Conn, opener StreamOpener) (*Session, error) {
	if err := config.Validate(); err != nil {
		return nil, errors.Trace(err)
	}
	if conn == nil {
		return nil, errors.NotValidf("nil conn")
	}
	if opener == nil {
		return nil, errors.NotValidf("nil opener")
	}
	s := &Session{
		config: config,
		conn:   conn,
		opener: opener,
		subs:   make(map[string]*subscription),
	}
	if err := catacomb.Invoke(catacomb.Plan{
		Site: &s.catacomb,
		Work: s.loop,
	}); err != nil {
		return nil, errors.Trace(err)
	}
	return s, nil
}

// Kill is part of the worker.Worker interface.
func (s *Session) Kill() {
	s.catacomb.Kill(nil)
}

// Wait is part of the worker.Worker interface.
func (s *Session) Wait() error {
	return s.catacomb.Wait()
}

func (s *Session) loop() error {
	s.config.Metrics.sessions.Inc()
	defer s.config.Metrics.sessions.Dec()

	// Closing the connection unblocks the reader.
	requests, readerDone := s.receiveRequests()
	defer func() {
		s.closing.Store(true)
		_ = s.conn.Close()
		<-readerDone
	}()

	pingTimer := s.config.Clock.NewTimer(s.config.PingPeriod)
	defer pingTimer.Stop()

	for {
		select {
		case <-s.catacomb.Dying():
			s.sendClose()
			return s.catacomb.ErrDying()
		case <-pingTimer.Chan():
			deadline := time.Now().Add(writeWait)
			if err := s.conn.WriteControl(websocket.PingMessage, []byte{}, deadline); err != nil {
				// Expected if the other end goes away.
				s.config.Logger.Debugf("failed to write ping: %v", err)
				return errors.Annotate(err, "writing ping")
			}
			pingTimer.Reset(s.config.PingPeriod)
		case result, ok := <-requests:
			if !ok {
				return nil
			}
			if result.err != nil {
				return errors.Trace(result.err)
			}
			if err := s.handle(result.request); err != nil {
				return errors.Trace(err)
			}
		}
	}
}

type requestResult struct {
	request *params.Request
	err     error
}

// receiveRequests reads client requests until the connection fails or
// closes. A malformed request is answered and skipped.
func (s *Session) receiveRequests() (<-chan requestResult, <-chan struct{}) {
	requests := make(chan requestResult)
	done := make(chan struct{})

	_ = s.conn.SetReadDeadline(time.Now().Add(s.config.pongWait()))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(s.config.pongWait()))
	})

	go func() {
		defer close(done)
		defer close(requests)
		for {
			var result requestResult
			_, data, err := s.conn.ReadMessage()
			if err != nil {
				if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					result.err = errors.Annotate(err, "reading request")
				} else {
					s.config.Logger.Debugf("session closed by peer")
					return
				}
			} else {
				var req params.Request
				if err := json.Unmarshal(data, &req); err != nil {
					s.config.Logger.Debugf("malformed request: %v", err)
					if err := s.sendError("", "", errors.NotValidf("request")); err != nil {
						result.err = errors.Trace(err)
					} else {
						continue
					}
				} else {
					result.request = &req
				}
			}
			select {
			case requests <- result:
			case <-s.catacomb.Dying():
				return
			}
			if result.err != nil {
				return
			}
		}
	}()
	return requests, done
}

// handle dispatches one request. Only failures to write to the session
// are returned; failures of the request itself are reported to the
// client.
func (s *Session) handle(req *params.Request) error {
	s.config.Logger.Tracef("request %q %s %q", req.ID, req.Action, req.Path)
	var err error
	switch req.Action {
	case params.Subscribe:
		err = s.Subscribe(req.ID, req.Path, url.Values(req.Params))
	case params.Unsubscribe:
		err = s.Unsubscribe(req.ID, req.Path)
	default:
		err = s.sendError(req.ID, req.Path, errors.NotValidf("action %q", req.Action))
	}
	if err != nil && !requestError(err) {
		return errors.Trace(err)
	}
	return nil
}

// Subscribe starts forwarding the change stream of the collection at
// path, tagging every message with id. The acknowledgement is sent
// before any event. Subscribing twice to the same path fails with
// ErrAlreadySubscribed and leaves the existing subscription alone.
func (s *Session) Subscribe(id, path string, query url.Values) error {
	if err := validatePath(path); err != nil {
		return s.reportRequestError(id, path, err)
	}

	s.mu.Lock()
	if _, ok := s.subs[path]; ok {
		s.mu.Unlock()
		return s.reportRequestError(id, path, errors.Annotatef(ErrAlreadySubscribed, "path %q", path))
	}
	sub := newSubscription(s, id, path, query)
	s.subs[path] = sub
	s.mu.Unlock()

	if err := s.sendStatus(id, path, params.StatusSubscribed); err != nil {
		s.release(sub)
		return errors.Trace(err)
	}
	sub.start()
	if err := s.catacomb.Add(sub); err != nil {
		return errors.Trace(err)
	}
	s.config.Logger.Debugf("subscribed %q to %q", id, path)
	return nil
}

// Unsubscribe stops the subscription to path. Delivery has stopped by
// the time the acknowledgement is sent. Unsubscribing from a path that
// is not subscribed fails with ErrNotSubscribed.
func (s *Session) Unsubscribe(id, path string) error {
	s.mu.Lock()
	sub, ok := s.subs[path]
	if ok {
		delete(s.subs, path)
	}
	s.mu.Unlock()
	if !ok {
		return s.reportRequestError(id, path, errors.Annotatef(ErrNotSubscribed, "path %q", path))
	}

	sub.Kill()
	if err := sub.Wait(); err != nil {
		return errors.Trace(err)
	}
	s.config.Logger.Debugf("unsubscribed %q from %q", id, path)
	return errors.Trace(s.sendStatus(id, path, params.StatusUnsubscribed))
}

// Subscriptions returns the paths with an active subscription.
func (s *Session) Subscriptions() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	paths := make([]string, 0, len(s.subs))
	for p := range s.subs {
		paths = append(paths, p)
	}
	return paths
}

// release removes sub from the table, unless it has been replaced.
func (s *Session) release(sub *subscription) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.subs[sub.path] == sub {
		delete(s.subs, sub.path)
	}
}

// reportRequestError sends err to the client and returns it, or returns
// the write failure if it could not be sent.
func (s *Session) reportRequestError(id, path string, err error) error {
	if sendErr := s.sendError(id, path, err); sendErr != nil {
		return errors.Trace(sendErr)
	}
	return err
}

// errSessionClosed is returned by writes after the session has started
// closing its connection.
const errSessionClosed = errors.ConstError("session closed")

func (s *Session) send(msg params.Message) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := s.conn.WriteJSON(msg); err != nil {
		if s.closing.Load() {
			return errSessionClosed
		}
		return errors.Annotate(err, "writing message")
	}
	return nil
}

func (s *Session) sendStatus(id, path, status string) error {
	return s.send(params.Message{
		ID:   id,
		Type: params.StatusMessage,
		Path: path,
		Data: &params.Data{Type: status},
	})
}

func (s *Session) sendError(id, path string, err error) error {
	return s.send(params.Message{
		ID:    id,
		Type:  params.ErrorMessage,
		Path:  path,
		Error: err.Error(),
		Code:  errorCode(err),
	})
}

// sendClose tells the peer the session is going away.
func (s *Session) sendClose() {
	msg := websocket.FormatCloseMessage(websocket.CloseGoingAway, "")
	_ = s.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
}
