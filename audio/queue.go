// Copyright (c) RapidReach
// SPDX-License-Identifier: Apache-2.0

// Package audio runs the playback side of the speaker: a bounded queue of
// staged opus files consumed by a single worker goroutine that owns the
// player, plus the handler that feeds it from inbound alert messages.
package audio

import (
	"errors"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rapidreach/speakerlink/stage"
)

// DefaultCapacity is the queue depth before enqueues start failing.
const DefaultCapacity = 10

// ErrQueueFull is returned by Enqueue when the queue is at capacity. The
// message is dropped; playback of queued items is never delayed by new
// arrivals.
var ErrQueueFull = errors.New("audio: queue full")

// Item is one playback request. Temp marks a staged slot file that the
// worker deletes once playback is done.
type Item struct {
	Path      string
	Volume    int
	Priority  int
	PlayCount int
	Interrupt bool
	Temp      bool
}

// Queue owns the playback worker. All player calls happen on the worker
// goroutine; other goroutines only enqueue, signal, or observe.
type Queue struct {
	player  Player
	arena   *stage.Arena
	logger  *slog.Logger
	items   chan Item
	stopCh  chan struct{}
	doneCh  chan struct{}
	cancel  chan struct{}
	volume  chan int
	playing atomic.Bool
	ready   bool
	once    sync.Once

	// Timing knobs, fixed at construction. Tests shrink them.
	pollInterval   time.Duration
	enableSettle   time.Duration
	stopSettle     time.Duration
	repeatPause    time.Duration
	deleteGrace    time.Duration
	waitForCurrent time.Duration
	playbackCap    time.Duration
}

// NewQueue builds a queue of the given capacity. The arena may be nil when
// no staged files will ever be enqueued.
func NewQueue(player Player, arena *stage.Arena, capacity int, logger *slog.Logger) *Queue {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Queue{
		player: player,
		arena:  arena,
		logger: logger.With(slog.String("component", "audio_queue")),
		items:  make(chan Item, capacity),
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
		cancel: make(chan struct{}, 1),
		volume: make(chan int, 1),

		pollInterval:   100 * time.Millisecond,
		enableSettle:   500 * time.Millisecond,
		stopSettle:     100 * time.Millisecond,
		repeatPause:    500 * time.Millisecond,
		deleteGrace:    time.Second,
		waitForCurrent: 30 * time.Second,
		playbackCap:    60 * time.Second,
	}
}

// Start launches the playback worker.
func (q *Queue) Start() {
	go q.run()
}

// Close stops the worker and joins it. Safe to call more than once.
func (q *Queue) Close() {
	q.once.Do(func() {
		close(q.stopCh)
		<-q.doneCh
	})
}

// Enqueue adds an item without blocking. A full queue drops the item and
// returns ErrQueueFull.
func (q *Queue) Enqueue(item Item) error {
	select {
	case q.items <- item:
	default:
		q.logger.Error("queue full, dropping item", slog.String("path", item.Path))
		return ErrQueueFull
	}
	q.logger.Info("queued for playback",
		slog.String("path", item.Path),
		slog.Int("depth", len(q.items)),
		slog.Int("capacity", cap(q.items)))
	return nil
}

// StopCurrent interrupts the playback in progress, if any. Queued items are
// unaffected.
func (q *Queue) StopCurrent() {
	select {
	case q.cancel <- struct{}{}:
	default:
	}
}

// SetVolume forwards a volume change, in percent, to the worker. The
// player is touched only from the worker goroutine, so the change is
// applied there; a newer request replaces one still waiting. Per-item
// volume set at playback start still overrides it.
func (q *Queue) SetVolume(percent int) error {
	for {
		select {
		case q.volume <- percent:
			return nil
		default:
			select {
			case <-q.volume:
			default:
			}
		}
	}
}

// Playing reports whether the worker is mid-playback.
func (q *Queue) Playing() bool {
	return q.playing.Load()
}

// Depth reports how many items are waiting.
func (q *Queue) Depth() int {
	return len(q.items)
}

func (q *Queue) run() {
	defer close(q.doneCh)
	q.logger.Info("playback worker started")

	for {
		select {
		case <-q.stopCh:
			if q.player.Playing() {
				q.player.Stop()
			}
			return
		case percent := <-q.volume:
			q.applyVolume(percent)
		case item := <-q.items:
			q.process(item)
		}
	}
}

// applyVolume runs on the worker goroutine only.
func (q *Queue) applyVolume(percent int) {
	level := CodecVolume(percent)
	q.logger.Info("volume change",
		slog.Int("percent", percent),
		slog.Int("codec", level))
	if err := q.player.SetVolume(level); err != nil {
		q.logger.Warn("set volume failed", slog.Any("error", err))
	}
}

func (q *Queue) process(item Item) {
	q.logger.Info("processing playback item",
		slog.String("path", item.Path),
		slog.Int("volume", item.Volume),
		slog.Int("priority", item.Priority),
		slog.Int("play_count", item.PlayCount),
		slog.Bool("interrupt", item.Interrupt))

	if _, err := os.Stat(item.Path); err != nil {
		q.logger.Error("audio file not found", slog.String("path", item.Path))
		q.release(item)
		return
	}

	if !q.ready {
		if err := q.player.Enable(); err != nil {
			q.logger.Error("codec enable failed", slog.Any("error", err))
			q.release(item)
			return
		}
		q.ready = true
		// Codec settle time after power-up.
		q.sleep(q.enableSettle)
	}

	if item.Interrupt {
		if q.player.Playing() {
			q.logger.Info("interrupting current playback")
			q.player.Stop()
			q.sleep(q.stopSettle)
		}
	} else {
		q.waitIdle()
	}

	q.playing.Store(true)
	plays := 0
	for {
		if plays > 0 && !q.sleep(q.repeatPause) {
			break
		}

		level := CodecVolume(item.Volume)
		q.logger.Info("volume request",
			slog.Int("percent", item.Volume),
			slog.Int("codec", level))
		if err := q.player.SetVolume(level); err != nil {
			q.logger.Warn("set volume failed", slog.Any("error", err))
		}

		if err := q.player.Start(item.Path); err != nil {
			q.logger.Error("playback start failed", slog.Any("error", err))
			break
		}

		if !q.waitDone(item.Path) {
			break
		}

		plays++
		// PlayCount zero repeats until interrupted.
		if item.PlayCount > 0 && plays >= item.PlayCount {
			break
		}
	}
	q.playing.Store(false)

	q.release(item)
}

// waitIdle blocks until the player falls idle, the wait ceiling passes, or
// a cancel arrives.
func (q *Queue) waitIdle() {
	deadline := time.Now().Add(q.waitForCurrent)
	for q.player.Playing() {
		if time.Now().After(deadline) {
			q.logger.Warn("timeout waiting for current playback")
			return
		}
		select {
		case <-q.cancel:
			return
		case <-q.stopCh:
			return
		case percent := <-q.volume:
			q.applyVolume(percent)
		case <-time.After(q.pollInterval):
		}
	}
}

// waitDone polls the player until the started file finishes. Returns false
// when playback was cancelled or the queue is shutting down, which ends the
// repeat loop.
func (q *Queue) waitDone(path string) bool {
	deadline := time.Now().Add(q.playbackCap)
	wasPlaying := false

	for time.Now().Before(deadline) {
		now := q.player.Playing()
		if now {
			wasPlaying = true
		}
		if wasPlaying && !now {
			q.logger.Info("playback completed", slog.String("path", path))
			return true
		}

		select {
		case <-q.cancel:
			q.player.Stop()
			q.logger.Info("playback interrupted", slog.String("path", path))
			return false
		case <-q.stopCh:
			q.player.Stop()
			return false
		case percent := <-q.volume:
			q.applyVolume(percent)
		case <-time.After(q.pollInterval):
		}
	}

	q.logger.Warn("playback cap reached", slog.String("path", path))
	return true
}

// release deletes a temporary staged file once the worker is done with it.
// A short grace delay lets the player finish closing the file first.
func (q *Queue) release(item Item) {
	if !item.Temp || q.arena == nil {
		return
	}
	q.sleep(q.deleteGrace)
	if err := q.arena.Release(item.Path); err != nil {
		q.logger.Warn("failed to delete staged file",
			slog.String("path", item.Path),
			slog.Any("error", err))
		return
	}
	q.logger.Debug("staged file deleted", slog.String("path", item.Path))
}

// sleep waits d unless the queue is shutting down. Returns false when the
// wait was cut short.
func (q *Queue) sleep(d time.Duration) bool {
	select {
	case <-q.stopCh:
		return false
	case <-time.After(d):
		return true
	}
}
