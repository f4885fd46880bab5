// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package relay

import (
	"net/http"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/juju/errors"
)

var websocketUpgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// OpenerFunc returns the stream opener for a session. token is the
// bearer token presented on the upgrade request, if any.
type OpenerFunc func(token string) (StreamOpener, error)

// Handler upgrades requests to relay sessions.
type Handler struct {
	config    Config
	newOpener OpenerFunc

	mu       sync.Mutex
	closed   bool
	sessions map[*Session]struct{}
	wg       sync.WaitGroup
}

// NewHandler returns a handler starting a session per request.
func NewHandler(config Config, newOpener OpenerFunc) (*Handler, error) {
	if err := config.Validate(); err != nil {
		return nil, errors.Trace(err)
	}
	if newOpener == nil {
		return nil, errors.NotValidf("nil opener func")
	}
	return &Handler{
		config:    config,
		newOpener: newOpener,
		sessions:  make(map[*Session]struct{}),
	}, nil
}

// ServeHTTP implements the http.Handler interface. It returns once the
// session has finished.
func (h *Handler) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	token, err := bearerToken(req)
	if err != nil {
		http.Error(w, err.Error(), http.StatusUnauthorized)
		return
	}
	opener, err := h.newOpener(token)
	if err != nil {
		h.config.Logger.Errorf("cannot create stream opener: %v", err)
		http.Error(w, "cannot reach control plane", http.StatusInternalServerError)
		return
	}

	h.mu.Lock()
	closed := h.closed
	if !closed {
		h.wg.Add(1)
	}
	h.mu.Unlock()
	if closed {
		http.Error(w, "relay shutting down", http.StatusServiceUnavailable)
		return
	}
	defer h.wg.Done()

	conn, err := websocketUpgrader.Upgrade(w, req, nil)
	if err != nil {
		h.config.Logger.Errorf("problem initiating websocket: %v", err)
		return
	}
	id := uuid.NewString()
	session, err := NewSession(h.config, conn, opener)
	if err != nil {
		h.config.Logger.Errorf("cannot start session: %v", err)
		_ = conn.Close()
		return
	}
	if !h.track(session) {
		session.Kill()
	}
	defer h.untrack(session)
	h.config.Logger.Debugf("session %s from %s started", id, req.RemoteAddr)

	if err := session.Wait(); err != nil {
		// Usually the peer going away; nothing an operator can act on.
		h.config.Logger.Debugf("session %s ended: %v", id, err)
		return
	}
	h.config.Logger.Debugf("session %s ended", id)
}

func (h *Handler) track(s *Session) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	h.sessions[s] = struct{}{}
	return true
}

func (h *Handler) untrack(s *Session) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.sessions, s)
}

// Kill stops every open session and rejects new ones.
func (h *Handler) Kill() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for s := range h.sessions {
		s.Kill()
	}
}

// Wait blocks until every session has finished. It is only meaningful
// after Kill.
func (h *Handler) Wait() error {
	h.wg.Wait()
	return nil
}

// bearerToken returns the token from the request's Authorization
// header, or "" if there is none.
func bearerToken(req *http.Request) (string, error) {
	header := req.Header.Get("Authorization")
	if header == "" {
		return "", nil
	}
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
		return "", errors.Unauthorizedf("unsupported authorization")
	}
	return strings.TrimSpace(token), nil
}
