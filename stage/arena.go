// Copyright (c) RapidReach
// SPDX-License-Identifier: Apache-2.0

// Package stage manages the staged-file arena that large audio payloads
// are streamed into. Two slot files alternate so the transfer in flight
// never overwrites the file a handler may still be reading.
package stage

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"sync"

	"golang.org/x/sys/unix"
)

const (
	// SlotCount is the number of alternating staging slots.
	SlotCount = 2

	// DefaultChunkSize is the per-read buffer used while streaming a
	// payload into a slot file.
	DefaultChunkSize = 512

	slotPattern = "mqtt_audio_%d.opus"
)

// Arena errors.
var (
	ErrOutsideArena = errors.New("path is not a staging slot")
	ErrShortRead    = errors.New("source ended before declared size")
)

// Arena owns the staging directory and rotates transfers across its slot
// files. Saved files land in a separate directory so a later transfer can
// never clobber them through the slot rotation.
type Arena struct {
	dir       string
	saveDir   string
	chunkSize int
	logger    *slog.Logger

	mu   sync.Mutex
	next int
	last string
}

// NewArena creates the staging and save directories if needed and returns
// an arena over them. An empty saveDir keeps saved files next to the
// slots.
func NewArena(dir, saveDir string, chunkSize int, logger *slog.Logger) (*Arena, error) {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	if logger == nil {
		logger = slog.Default()
	}
	if saveDir == "" {
		saveDir = dir
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create staging dir: %w", err)
	}
	if err := os.MkdirAll(saveDir, 0o755); err != nil {
		return nil, fmt.Errorf("create save dir: %w", err)
	}
	return &Arena{dir: dir, saveDir: saveDir, chunkSize: chunkSize, logger: logger}, nil
}

// nextPath rotates to the next slot and returns its path.
func (a *Arena) nextPath() string {
	a.mu.Lock()
	defer a.mu.Unlock()

	path := filepath.Join(a.dir, fmt.Sprintf(slotPattern, a.next))
	a.next = (a.next + 1) % SlotCount
	return path
}

// LastStaged returns the path of the most recently completed transfer, or
// an empty string if none has completed yet.
func (a *Arena) LastStaged() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.last
}

// StageFrom streams a payload of total bytes into the next slot file.
// prefix holds bytes already consumed from the source; they count toward
// total but are not read again. The remainder is read from r in fixed-size
// chunks, yielding between chunks so the transfer never monopolizes the
// scheduler.
//
// It returns the slot path and the number of bytes consumed from r, which
// the caller needs to drain the wire after a partial failure. On any
// failure the partial slot file is removed.
func (a *Arena) StageFrom(prefix []byte, r io.Reader, total int) (path string, consumed int, err error) {
	if len(prefix) > total {
		prefix = prefix[:total]
	}

	path = a.nextPath()

	f, err := os.Create(path)
	if err != nil {
		return path, 0, fmt.Errorf("open slot file: %w", err)
	}

	defer func() {
		f.Close()
		if err != nil {
			if rmErr := os.Remove(path); rmErr != nil {
				a.logger.Warn("failed to remove partial slot file",
					slog.String("path", path),
					slog.Any("error", rmErr))
			}
		}
	}()

	if len(prefix) > 0 {
		if _, err = f.Write(prefix); err != nil {
			return path, 0, fmt.Errorf("write staged prefix: %w", err)
		}
	}

	remaining := total - len(prefix)
	buf := make([]byte, a.chunkSize)

	for remaining > 0 {
		n := len(buf)
		if remaining < n {
			n = remaining
		}

		var rn int
		rn, err = io.ReadFull(r, buf[:n])
		consumed += rn
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				err = ErrShortRead
			}
			return path, consumed, err
		}

		if _, err = f.Write(buf[:n]); err != nil {
			return path, consumed, fmt.Errorf("write staged chunk: %w", err)
		}

		remaining -= n
		runtime.Gosched()
	}

	if err = f.Sync(); err != nil {
		return path, consumed, fmt.Errorf("sync slot file: %w", err)
	}

	a.mu.Lock()
	a.last = path
	a.mu.Unlock()

	a.logger.Debug("staged payload",
		slog.String("path", path),
		slog.Int("bytes", total))

	return path, consumed, nil
}

// SaveTo copies a staged slot file to a permanent name in the save
// directory, for transfers flagged to be kept after playback.
func (a *Arena) SaveTo(slotPath, name string) (string, error) {
	dst := filepath.Join(a.saveDir, filepath.Base(name))

	src, err := os.Open(slotPath)
	if err != nil {
		return "", fmt.Errorf("open staged file: %w", err)
	}
	defer src.Close()

	out, err := os.Create(dst)
	if err != nil {
		return "", fmt.Errorf("create saved file: %w", err)
	}

	if _, err := io.Copy(out, src); err != nil {
		out.Close()
		os.Remove(dst)
		return "", fmt.Errorf("copy staged file: %w", err)
	}
	if err := out.Close(); err != nil {
		return "", fmt.Errorf("close saved file: %w", err)
	}

	return dst, nil
}

// Release deletes a slot file after its consumer is done with it. Paths
// outside the slot namespace are refused so a handler cannot delete saved
// or foreign files through the arena.
func (a *Arena) Release(path string) error {
	if !a.isSlot(path) {
		return ErrOutsideArena
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

func (a *Arena) isSlot(path string) bool {
	for i := 0; i < SlotCount; i++ {
		if path == filepath.Join(a.dir, fmt.Sprintf(slotPattern, i)) {
			return true
		}
	}
	return false
}

// FreeSpace reports the free bytes on the filesystem holding the arena.
func (a *Arena) FreeSpace() (uint64, error) {
	var st unix.Statfs_t
	if err := unix.Statfs(a.dir, &st); err != nil {
		return 0, fmt.Errorf("statfs: %w", err)
	}
	return st.Bavail * uint64(st.Bsize), nil
}
