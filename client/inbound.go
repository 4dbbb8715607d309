// Copyright (c) RapidReach
// SPDX-License-Identifier: Apache-2.0

package client

import (
	"fmt"
	"io"
	"log/slog"
	"net"
	"time"

	"github.com/rapidreach/speakerlink/message"
	"github.com/rapidreach/speakerlink/packets"
	"github.com/rapidreach/speakerlink/topics"
)

// transferCeiling bounds how long a single staged transfer may take before
// it is flagged in the log. It does not abort the transfer.
const transferCeiling = 60 * time.Second

// handleInboundPublish consumes one PUBLISH whose fixed header has already
// been read. Whatever branch is taken, exactly RemainingLength bytes are
// consumed from the socket; a failure to do so is returned as a transport
// error so the session is torn down rather than left desynchronized.
func (c *Client) handleInboundPublish(fh packets.FixedHeader) error {
	pub := &packets.Publish{FixedHeader: fh}
	consumed, err := pub.UnpackHead(c.conn)
	if err != nil {
		return err
	}

	payloadLen := fh.RemainingLength - consumed
	if payloadLen < 0 {
		return fmt.Errorf("malformed publish: remaining length %d, head %d", fh.RemainingLength, consumed)
	}

	// Ack before touching the payload, so a slow chunked read cannot look
	// like a delivery timeout to the broker.
	if fh.QoS == 1 {
		ack := &packets.PubAck{
			FixedHeader: packets.FixedHeader{PacketType: packets.PubAckType},
			ID:          pub.ID,
		}
		if err := c.write(ack); err != nil {
			return err
		}
	}

	if c.arena != nil && payloadLen > c.opts.LargeThreshold && topics.Match(c.opts.LargeFilter, pub.TopicName) {
		return c.streamToStage(pub.TopicName, payloadLen)
	}

	payload := make([]byte, payloadLen)
	if _, err := io.ReadFull(c.conn, payload); err != nil {
		return err
	}

	handler := c.registry.match(pub.TopicName)
	if handler == nil {
		c.logger.Debug("no handler for topic, dropping",
			slog.String("topic", pub.TopicName),
			slog.Int("len", payloadLen))
		return nil
	}

	c.dispatch.submit(workItem{topic: pub.TopicName, payload: payload, handler: handler})
	return nil
}

// streamToStage runs the large-payload path: capture the metadata header
// from a bounded prefix, then stream the binary tail to a staged file in
// fixed-size chunks. Parse and resource failures drain the declared length
// and skip the message; only transport failures propagate.
func (c *Client) streamToStage(topic string, payloadLen int) error {
	start := time.Now()

	prefixLen := c.opts.HeaderPrefix
	if prefixLen > payloadLen {
		prefixLen = payloadLen
	}

	prefix := make([]byte, prefixLen)
	if _, err := io.ReadFull(c.conn, prefix); err != nil {
		return err
	}
	remaining := payloadLen - prefixLen

	header, tail, err := message.Split(prefix)
	if err != nil {
		c.logger.Warn("large payload header not parseable, draining",
			slog.String("topic", topic),
			slog.Any("error", err))
		return c.drain(remaining)
	}

	md, err := message.DecodeMetadata(header)
	if err != nil {
		c.logger.Warn("large payload metadata invalid, draining",
			slog.String("topic", topic),
			slog.Any("error", err))
		return c.drain(remaining)
	}

	binaryTotal := len(tail) + remaining
	if md.PayloadSize != binaryTotal {
		c.logger.Warn("declared payload size disagrees with wire, draining",
			slog.String("topic", topic),
			slog.Int("declared", md.PayloadSize),
			slog.Int("available", binaryTotal))
		return c.drain(remaining)
	}

	if free, ferr := c.arena.FreeSpace(); ferr == nil && free < uint64(binaryTotal) {
		c.logger.Warn("not enough space for staged transfer, draining",
			slog.String("topic", topic),
			slog.Uint64("free", free),
			slog.Int("needed", binaryTotal))
		return c.drain(remaining)
	}

	path, consumed, err := c.arena.StageFrom(tail, c.chunkSource(), binaryTotal)
	if err != nil {
		c.logger.Warn("staged transfer aborted",
			slog.String("topic", topic),
			slog.Int("consumed", consumed),
			slog.Any("error", err))
		return c.drain(remaining - consumed)
	}

	if elapsed := time.Since(start); elapsed > transferCeiling {
		c.logger.Warn("staged transfer exceeded time ceiling",
			slog.String("topic", topic),
			slog.Duration("elapsed", elapsed))
	}

	handler := c.registry.match(topic)
	if handler == nil {
		c.logger.Debug("no handler for staged transfer, releasing",
			slog.String("topic", topic))
		c.arena.Release(path)
		return nil
	}

	if err := c.dispatch.submit(workItem{topic: topic, payload: header, stagedPath: path, handler: handler}); err != nil {
		// Nobody will ever consume the slot; reclaim it now.
		c.arena.Release(path)
		return nil
	}

	c.logger.Info("staged transfer complete",
		slog.String("topic", topic),
		slog.String("path", path),
		slog.Int("bytes", binaryTotal),
		slog.Duration("elapsed", time.Since(start)))
	return nil
}

// drain discards n payload bytes still on the wire after an aborted
// transfer. A drain failure is a transport error: the session cannot be
// trusted once the read cursor is off.
func (c *Client) drain(n int) error {
	if n <= 0 {
		return nil
	}
	_, err := io.CopyN(io.Discard, c.chunkSource(), int64(n))
	return err
}

// chunkSource returns a reader over the socket that bounds each chunk read
// with its own deadline.
func (c *Client) chunkSource() io.Reader {
	return &deadlineReader{conn: c.conn, timeout: c.opts.WriteTimeout}
}

type deadlineReader struct {
	conn    net.Conn
	timeout time.Duration
}

func (d *deadlineReader) Read(p []byte) (int, error) {
	d.conn.SetReadDeadline(time.Now().Add(d.timeout))
	return d.conn.Read(p)
}
