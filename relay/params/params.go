// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package params holds the JSON messages exchanged over a relay session.
package params

import (
	"encoding/json"

	"github.com/juju/errors"

	"github.com/juju/kubemirror/core/object"
)

// Action is the action of a client request.
type Action string

const (
	Subscribe   Action = "subscribe"
	Unsubscribe Action = "unsubscribe"
)

// Request is sent from a client to the relay.
type Request struct {
	ID     string              `json:"id"`
	Action Action              `json:"action"`
	Path   string              `json:"path"`
	Params map[string][]string `json:"params,omitempty"`
}

// MessageType is the type of a message sent by the relay.
type MessageType string

const (
	DataMessage   MessageType = "data"
	ErrorMessage  MessageType = "error"
	StatusMessage MessageType = "status"
)

// Status values carried in the data type of a StatusMessage.
const (
	StatusSubscribed   = "subscribed"
	StatusUnsubscribed = "unsubscribed"
	StatusCompleted    = "completed"
)

// Message is sent from the relay to a client. Every message is scoped
// to the id and path of the subscription it concerns.
type Message struct {
	ID   string      `json:"id"`
	Type MessageType `json:"type"`
	Path string      `json:"path"`

	// Data is set for data and status messages.
	Data *Data `json:"data,omitempty"`

	// Error is set for error messages. Code classifies it.
	Error string `json:"error,omitempty"`
	Code  string `json:"code,omitempty"`
}

// Data carries one change, or the status of a StatusMessage.
type Data struct {
	// Type is a change type (Added, Modified, Deleted) for data
	// messages and a status value for status messages.
	Type   string          `json:"type"`
	Object json.RawMessage `json:"object,omitempty"`
}

// ChangeType returns the change type of a data message.
func (d *Data) ChangeType() object.ChangeType {
	return object.ChangeType(d.Type)
}

// Error codes sent to clients.
const (
	CodeBadRequest        = "bad request"
	CodeAlreadySubscribed = "already subscribed"
	CodeNotSubscribed     = "not subscribed"
	CodeConnection        = "connection"
	CodeStream            = "stream"
)

// Status returns the status value of a status message, or "" for any
// other message.
func (m Message) Status() string {
	if m.Type != StatusMessage || m.Data == nil {
		return ""
	}
	return m.Data.Type
}

// Err returns the failure carried by an error message, or nil for any
// other message.
func (m Message) Err() error {
	if m.Type != ErrorMessage {
		return nil
	}
	if m.Error == "" {
		return errors.Errorf("%s error", m.Code)
	}
	return errors.New(m.Error)
}
