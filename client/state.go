// Copyright (c) RapidReach
// SPDX-License-Identifier: Apache-2.0

package client

import "sync/atomic"

// State represents the client connection state.
type State uint32

// Client states.
const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	StateClosed
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// stateManager handles atomic state transitions.
type stateManager struct {
	state uint32
}

func newStateManager() *stateManager {
	return &stateManager{state: uint32(StateDisconnected)}
}

// get returns the current state.
func (sm *stateManager) get() State {
	return State(atomic.LoadUint32(&sm.state))
}

// set unconditionally sets the state.
func (sm *stateManager) set(s State) {
	atomic.StoreUint32(&sm.state, uint32(s))
}

// transition attempts to transition from expected to new state.
// Returns true if successful.
func (sm *stateManager) transition(from, to State) bool {
	return atomic.CompareAndSwapUint32(&sm.state, uint32(from), uint32(to))
}

// isConnected returns true if the client is connected.
func (sm *stateManager) isConnected() bool {
	return sm.get() == StateConnected
}

// isClosed returns true if the client has been permanently closed.
func (sm *stateManager) isClosed() bool {
	return sm.get() == StateClosed
}
