// Copyright (c) RapidReach
// SPDX-License-Identifier: Apache-2.0

package audio

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/rapidreach/speakerlink/stage"
)

// framed builds a wire payload: 4-byte hex header length, JSON metadata,
// binary tail.
func framed(header string, tail []byte) []byte {
	buf := []byte(fmt.Sprintf("%04x", len(header)))
	buf = append(buf, header...)
	return append(buf, tail...)
}

func testHandler(t *testing.T) (*Handler, *Queue, *stage.Arena) {
	t.Helper()
	arena := testArena(t)
	q := testQueue(t, &fakePlayer{duration: time.Millisecond}, arena, 4)
	// Worker left stopped so enqueued items can be inspected.
	return NewHandler(q, arena, testLogger()), q, arena
}

func TestHandlerQueuesInlinePayload(t *testing.T) {
	h, q, _ := testHandler(t)

	tail := make([]byte, 200)
	for i := range tail {
		tail[i] = byte(i)
	}
	header := fmt.Sprintf(`{"opusDataSize":%d,"volume":70,"playCount":2,"priority":3}`, len(tail))

	h.Handle("rapidreach/audio/dev1", framed(header, tail), "")

	require.Equal(t, 1, q.Depth())
	item := <-q.items
	require.Equal(t, 70, item.Volume)
	require.Equal(t, 2, item.PlayCount)
	require.Equal(t, 3, item.Priority)
	require.True(t, item.Temp)

	data, err := os.ReadFile(item.Path)
	require.NoError(t, err)
	require.Equal(t, tail, data)
}

func TestHandlerQueuesStagedTransfer(t *testing.T) {
	h, q, arena := testHandler(t)

	// Staged transfers deliver the bare metadata header, which can be
	// well under the test-ping size. It must still be queued as audio.
	staged := stagedFile(t, arena, make([]byte, 2048))
	header := `{"opusDataSize":2048,"volume":55}`

	h.Handle("rapidreach/audio/dev1", []byte(header), staged)

	require.Equal(t, 1, q.Depth())
	item := <-q.items
	require.Equal(t, staged, item.Path)
	require.Equal(t, 55, item.Volume)
	require.True(t, item.Temp)
}

func TestHandlerKeepsStagedPathsPerMessage(t *testing.T) {
	h, q, arena := testHandler(t)

	// Two back-to-back transfers rotate across both slots; each queued
	// item must point at its own file, not whichever slot finished last.
	first := stagedFile(t, arena, []byte("first audio"))
	h.Handle("rapidreach/audio/dev1", []byte(`{"opusDataSize":11}`), first)

	second := stagedFile(t, arena, []byte("second audio"))
	h.Handle("rapidreach/audio/dev1", []byte(`{"opusDataSize":12}`), second)

	require.Equal(t, 2, q.Depth())
	require.NotEqual(t, first, second)
	require.Equal(t, first, (<-q.items).Path)
	require.Equal(t, second, (<-q.items).Path)
}

func TestHandlerDropsStagedHeaderWithoutFile(t *testing.T) {
	h, q, _ := testHandler(t)

	h.Handle("rapidreach/audio/dev1", []byte(`{"opusDataSize":2048}`), "")
	require.Zero(t, q.Depth())
}

func TestHandlerSavesToFile(t *testing.T) {
	saveDir := t.TempDir()
	arena, err := stage.NewArena(t.TempDir(), saveDir, 0, testLogger())
	require.NoError(t, err)
	q := testQueue(t, &fakePlayer{duration: time.Millisecond}, arena, 4)
	h := NewHandler(q, arena, testLogger())

	tail := make([]byte, 150)
	header := fmt.Sprintf(`{"opusDataSize":%d,"saveToFile":true,"filename":"alert.opus"}`, len(tail))

	h.Handle("rapidreach/audio/dev1", framed(header, tail), "")

	require.Equal(t, 1, q.Depth())
	item := <-q.items

	// The permanent copy lands in the save directory, out of reach of
	// the slot rotation.
	saved := filepath.Join(saveDir, "alert.opus")
	require.NotEqual(t, filepath.Dir(item.Path), saveDir)
	data, err := os.ReadFile(saved)
	require.NoError(t, err)
	require.Equal(t, tail, data)
}

func TestHandlerIgnoresTestPing(t *testing.T) {
	h, q, _ := testHandler(t)

	h.Handle("test/mqtt/wrapper", []byte(`{"test":1,"handler":"v2"}`), "")
	require.Zero(t, q.Depth())

	h.Handle("rapidreach/audio/dev1", []byte("x"), "")
	require.Zero(t, q.Depth())
}

func TestHandlerRejectsUnparseablePayload(t *testing.T) {
	h, q, _ := testHandler(t)

	// Big enough to not be a ping, but no metadata framing.
	junk := make([]byte, 300)
	for i := range junk {
		junk[i] = 0xFF
	}
	h.Handle("rapidreach/audio/dev1", junk, "")
	require.Zero(t, q.Depth())

	// Valid framing, missing required opusDataSize.
	header := fmt.Sprintf(`{"volume":50,"comment":"%s"}`, pad(80))
	h.Handle("rapidreach/audio/dev1", []byte(header), "")
	require.Zero(t, q.Depth())
}

func TestHandlerDropsWhenQueueFull(t *testing.T) {
	dir := t.TempDir()
	arena, err := stage.NewArena(dir, "", 0, testLogger())
	require.NoError(t, err)
	q := testQueue(t, &fakePlayer{duration: time.Millisecond}, arena, 2)
	h := NewHandler(q, arena, testLogger())

	for i := 0; i < cap(q.items); i++ {
		require.NoError(t, q.Enqueue(Item{Path: "placeholder"}))
	}

	tail := make([]byte, 150)
	header := fmt.Sprintf(`{"opusDataSize":%d}`, len(tail))
	h.Handle("rapidreach/audio/dev1", framed(header, tail), "")

	// The staged slot must be reclaimed when the enqueue is refused.
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Empty(t, entries)
}

func pad(n int) string {
	b := make([]byte, n)
	for i := range b {
		b[i] = 'x'
	}
	return string(b)
}
