// Copyright (c) RapidReach
// SPDX-License-Identifier: Apache-2.0

package audio

import (
	"bytes"
	"log/slog"

	"github.com/rapidreach/speakerlink/message"
	"github.com/rapidreach/speakerlink/stage"
)

// testPingCeiling: payloads below this size that carry no audio metadata
// are treated as connectivity test pings, not audio, and acknowledged in
// the log only.
const testPingCeiling = 100

// Handler turns inbound alert messages into playback queue items. Small
// payloads arrive fully framed; large ones arrive as the metadata header
// alone, with the binary tail already staged to a slot file by the
// transport.
type Handler struct {
	queue  *Queue
	arena  *stage.Arena
	logger *slog.Logger
}

func NewHandler(queue *Queue, arena *stage.Arena, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		queue:  queue,
		arena:  arena,
		logger: logger.With(slog.String("component", "audio_handler")),
	}
}

// Handle processes one delivery. It runs on the dispatch worker, never on
// the transport goroutine, so file I/O here is fine. stagedPath is set by
// the transport when the binary tail was streamed to a slot file.
func (h *Handler) Handle(topic string, payload []byte, stagedPath string) {
	if len(payload) < 4 {
		h.logger.Error("payload too short", slog.Int("len", len(payload)))
		return
	}

	msg, err := message.Parse(payload)
	if err != nil {
		// A small payload without audio metadata is a connectivity test
		// ping, not a malformed alert.
		if len(payload) < testPingCeiling {
			h.logger.Info("test ping", slog.String("topic", topic))
			return
		}
		h.logger.Warn("unparseable audio message",
			slog.String("topic", topic),
			slog.Any("error", err))
		return
	}

	item := Item{
		Volume:    msg.Metadata.Volume,
		Priority:  msg.Metadata.Priority,
		PlayCount: msg.Metadata.PlayCount,
		Interrupt: msg.Metadata.InterruptCurrent,
	}

	if msg.Staged() {
		if stagedPath == "" {
			h.logger.Error("staged transfer announced but no staged file delivered",
				slog.String("topic", topic))
			return
		}
		item.Path = stagedPath
		item.Temp = true
	} else {
		// Small payload carried in memory. Park it in a slot file so the
		// player always reads from disk.
		path, _, err := h.arena.StageFrom(msg.Data, bytes.NewReader(nil), len(msg.Data))
		if err != nil {
			h.logger.Error("failed to stage inline audio",
				slog.String("topic", topic),
				slog.Any("error", err))
			return
		}
		item.Path = path
		item.Temp = true
	}

	if msg.Metadata.SaveToFile && msg.Metadata.Filename != "" {
		saved, err := h.arena.SaveTo(item.Path, msg.Metadata.Filename)
		if err != nil {
			h.logger.Warn("failed to save audio file",
				slog.String("name", msg.Metadata.Filename),
				slog.Any("error", err))
		} else {
			h.logger.Info("audio saved", slog.String("path", saved))
		}
	}

	if msg.Metadata.InterruptCurrent {
		h.queue.StopCurrent()
	}

	if err := h.queue.Enqueue(item); err != nil {
		h.arena.Release(item.Path)
	}
}
