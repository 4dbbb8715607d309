// Copyright (c) RapidReach
// SPDX-License-Identifier: Apache-2.0

package client

import (
	"sync"

	"github.com/rapidreach/speakerlink/topics"
)

// Handler is invoked from the worker context for every delivered message.
// For staged-file transfers the payload holds the JSON metadata only and
// stagedPath names the slot file holding the binary tail; for ordinary
// deliveries stagedPath is empty.
type Handler func(topic string, payload []byte, stagedPath string)

// subscription is one slot in the fixed-capacity table.
type subscription struct {
	filter  string
	qos     byte
	handler Handler
	active  bool
}

// registry is a fixed-size subscription table. Memory is bounded by the
// slot count; lookups scan linearly, exact match first, then wildcard
// filters.
type registry struct {
	mu    sync.RWMutex
	slots []subscription
}

func newRegistry(capacity int) *registry {
	return &registry{slots: make([]subscription, capacity)}
}

// add stores a subscription in the first free slot. A subscription with
// the same filter replaces the existing slot in place.
func (r *registry) add(filter string, qos byte, h Handler) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	free := -1
	for i := range r.slots {
		if r.slots[i].active && r.slots[i].filter == filter {
			r.slots[i].qos = qos
			r.slots[i].handler = h
			return i, nil
		}
		if !r.slots[i].active && free < 0 {
			free = i
		}
	}
	if free < 0 {
		return -1, ErrRegistryFull
	}

	r.slots[free] = subscription{filter: filter, qos: qos, handler: h, active: true}
	return free, nil
}

// remove deactivates the slot holding the given filter.
func (r *registry) remove(filter string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i := range r.slots {
		if r.slots[i].active && r.slots[i].filter == filter {
			r.slots[i] = subscription{}
			return true
		}
	}
	return false
}

// match returns the handler for an inbound topic, or nil if no active
// subscription matches. Exact filters win over wildcard filters.
func (r *registry) match(topic string) Handler {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for i := range r.slots {
		if r.slots[i].active && r.slots[i].filter == topic {
			return r.slots[i].handler
		}
	}
	for i := range r.slots {
		if r.slots[i].active && topics.Match(r.slots[i].filter, topic) {
			return r.slots[i].handler
		}
	}
	return nil
}

// active returns a snapshot of all active subscriptions, used to re-assert
// them after a reconnect.
func (r *registry) active() []subscription {
	r.mu.RLock()
	defer r.mu.RUnlock()

	subs := make([]subscription, 0, len(r.slots))
	for i := range r.slots {
		if r.slots[i].active {
			subs = append(subs, r.slots[i])
		}
	}
	return subs
}
