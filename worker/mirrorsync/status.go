// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package mirrorsync

// StatusTopic is published with a StatusChange whenever the worker's
// status changes.
const StatusTopic = "mirror.status"

// Status describes how current the mirror is.
type Status string

const (
	// Connecting means the relay has not been reached yet.
	Connecting Status = "connecting"

	// Live means every kind is subscribed and streaming.
	Live Status = "live"

	// Degraded means at least one kind's stream has ended and is
	// waiting to be resubscribed. Its collection may be stale.
	Degraded Status = "degraded"

	// Reconnecting means the session was lost; the mirror has been
	// reset and is rebuilt once the relay is reached again.
	Reconnecting Status = "reconnecting"
)

// StatusChange is the payload published on StatusTopic.
type StatusChange struct {
	Status Status

	// Reason is the error that caused the change, if any.
	Reason string
}
