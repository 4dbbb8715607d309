// Copyright (c) RapidReach
// SPDX-License-Identifier: Apache-2.0

package client

// EventKind identifies a connection lifecycle event.
type EventKind int

// Connection events delivered to the observer.
const (
	EventConnected EventKind = iota
	EventDisconnected
	EventReconnecting
)

// String returns the event name.
func (k EventKind) String() string {
	switch k {
	case EventConnected:
		return "connected"
	case EventDisconnected:
		return "disconnected"
	case EventReconnecting:
		return "reconnecting"
	default:
		return "unknown"
	}
}

// Event describes a connection state change observed by the engine.
type Event struct {
	Kind    EventKind
	Err     error // cause, for EventDisconnected
	Attempt int   // attempt counter, for EventReconnecting
}
