// Copyright (c) RapidReach
// SPDX-License-Identifier: Apache-2.0

package client

import (
	"sync"
	"time"
)

// pendingType identifies the type of pending operation.
type pendingType int

const (
	pendingPublish pendingType = iota
	pendingSubscribe
	pendingUnsubscribe
)

// pendingOp represents an operation waiting for its acknowledgment.
type pendingOp struct {
	id      uint16
	opType  pendingType
	resp    chan error
	created time.Time

	// Subscription being established or torn down, applied to the
	// registry when the matching ack arrives.
	filter  string
	qos     byte
	handler Handler
}

// pendingStore tracks inflight operations by packet ID.
type pendingStore struct {
	mu       sync.Mutex
	pending  map[uint16]*pendingOp
	nextID   uint16
	maxSize  int
	inflight int
}

func newPendingStore(maxSize int) *pendingStore {
	return &pendingStore{
		pending: make(map[uint16]*pendingOp),
		nextID:  1,
		maxSize: maxSize,
	}
}

// nextPacketID returns the next available packet ID, or 0 if every ID is
// inflight.
func (ps *pendingStore) nextPacketID() uint16 {
	ps.mu.Lock()
	defer ps.mu.Unlock()

	startID := ps.nextID
	for {
		id := ps.nextID
		ps.nextID++
		if ps.nextID == 0 {
			ps.nextID = 1
		}

		if _, exists := ps.pending[id]; !exists {
			return id
		}

		// Wrapped around without finding a free ID
		if ps.nextID == startID {
			return 0
		}
	}
}

// add registers a new pending operation.
func (ps *pendingStore) add(op *pendingOp) error {
	ps.mu.Lock()
	defer ps.mu.Unlock()

	if ps.inflight >= ps.maxSize {
		return ErrMaxInflight
	}

	op.created = time.Now()
	ps.pending[op.id] = op
	ps.inflight++
	return nil
}

// take removes and returns the pending operation for an arriving ack.
func (ps *pendingStore) take(id uint16) *pendingOp {
	ps.mu.Lock()
	defer ps.mu.Unlock()

	op, exists := ps.pending[id]
	if !exists {
		return nil
	}
	delete(ps.pending, id)
	ps.inflight--
	return op
}

// remove drops a pending operation without signaling it.
func (ps *pendingStore) remove(id uint16) {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	if _, exists := ps.pending[id]; exists {
		delete(ps.pending, id)
		ps.inflight--
	}
}

// clear removes all pending operations and signals them as failed.
func (ps *pendingStore) clear(err error) {
	ps.mu.Lock()
	pending := ps.pending
	ps.pending = make(map[uint16]*pendingOp)
	ps.inflight = 0
	ps.mu.Unlock()

	for _, op := range pending {
		op.fail(err)
	}
}

// count returns the number of inflight operations.
func (ps *pendingStore) count() int {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	return ps.inflight
}

// complete signals the waiting caller. resp is buffered so the engine
// never blocks on a caller that already timed out.
func (op *pendingOp) complete() {
	op.resp <- nil
}

func (op *pendingOp) fail(err error) {
	op.resp <- err
}
