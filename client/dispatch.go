// Copyright (c) RapidReach
// SPDX-License-Identifier: Apache-2.0

package client

import "log/slog"

// workItem carries one delivered message from the engine goroutine to the
// worker. For staged-file transfers the payload is the JSON metadata only
// and stagedPath names the slot file the transfer was staged into, so the
// handler never has to guess which slot belongs to which message.
type workItem struct {
	topic      string
	payload    []byte
	stagedPath string
	handler    Handler
}

// dispatcher runs message handlers on a single worker goroutine so slow
// handler code never stalls socket servicing. The queue is bounded; a full
// queue drops the message rather than blocking the engine.
type dispatcher struct {
	items  chan workItem
	done   chan struct{}
	logger *slog.Logger
}

func newDispatcher(depth int, logger *slog.Logger) *dispatcher {
	d := &dispatcher{
		items:  make(chan workItem, depth),
		done:   make(chan struct{}),
		logger: logger,
	}
	go d.run()
	return d
}

func (d *dispatcher) run() {
	defer close(d.done)
	for item := range d.items {
		item.handler(item.topic, item.payload, item.stagedPath)
	}
}

// submit hands a message to the worker. It never blocks: on a full queue
// the message is dropped and ErrDispatchFull returned.
func (d *dispatcher) submit(item workItem) error {
	select {
	case d.items <- item:
		return nil
	default:
		d.logger.Warn("dispatch queue full, dropping message",
			slog.String("topic", item.topic),
			slog.Int("len", len(item.payload)))
		return ErrDispatchFull
	}
}

// close stops the worker after draining queued items and waits for it to
// exit, so no handler runs on freed state after shutdown.
func (d *dispatcher) close() {
	close(d.items)
	<-d.done
}
