// Copyright (c) RapidReach
// SPDX-License-Identifier: Apache-2.0

package message

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Metadata decoding errors.
var (
	ErrInvalidJSON  = errors.New("invalid JSON metadata")
	ErrMissingSize  = errors.New("missing required field: opusDataSize")
	ErrSizeMismatch = errors.New("payload size mismatch")
)

// Default values applied to fields absent from the metadata header.
const (
	DefaultPriority  = 5
	DefaultPlayCount = 1
	DefaultVolume    = 40
	MaxVolume        = 100
)

// Metadata describes an inbound audio transfer. PayloadSize is the length
// of the binary tail and is the only required field. PlayCount of zero
// means repeat until interrupted.
type Metadata struct {
	PayloadSize      int    `json:"opusDataSize"`
	Priority         int    `json:"priority"`
	PlayCount        int    `json:"playCount"`
	Volume           int    `json:"volume"`
	InterruptCurrent bool   `json:"interruptCurrent"`
	SaveToFile       bool   `json:"saveToFile"`
	Filename         string `json:"filename,omitempty"`
}

// DefaultMetadata returns a Metadata with every optional field at its
// default value.
func DefaultMetadata() Metadata {
	return Metadata{
		Priority:  DefaultPriority,
		PlayCount: DefaultPlayCount,
		Volume:    DefaultVolume,
	}
}

// DecodeMetadata parses a JSON metadata header. Absent optional fields keep
// their defaults; an explicit playCount of zero is preserved. Volume above
// MaxVolume is clamped. A missing or zero opusDataSize is an error.
func DecodeMetadata(data []byte) (Metadata, error) {
	m := DefaultMetadata()
	if err := json.Unmarshal(data, &m); err != nil {
		return Metadata{}, fmt.Errorf("%w: %s", ErrInvalidJSON, err)
	}

	if m.Volume > MaxVolume {
		m.Volume = MaxVolume
	}
	if m.Volume < 0 {
		m.Volume = 0
	}
	if m.PayloadSize <= 0 {
		return Metadata{}, ErrMissingSize
	}

	return m, nil
}

// Encode serializes the metadata back to its JSON wire form.
func (m Metadata) Encode() ([]byte, error) {
	return json.Marshal(m)
}
