// Copyright (c) RapidReach
// SPDX-License-Identifier: Apache-2.0

package message

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeMetadataDefaults(t *testing.T) {
	md, err := DecodeMetadata([]byte(`{"opusDataSize":1234}`))
	require.NoError(t, err)

	assert.Equal(t, 1234, md.PayloadSize)
	assert.Equal(t, DefaultPriority, md.Priority)
	assert.Equal(t, DefaultPlayCount, md.PlayCount)
	assert.Equal(t, DefaultVolume, md.Volume)
	assert.False(t, md.InterruptCurrent)
	assert.False(t, md.SaveToFile)
	assert.Empty(t, md.Filename)
}

func TestDecodeMetadataAllFields(t *testing.T) {
	raw := `{"opusDataSize":5000,"priority":9,"playCount":3,"volume":75,` +
		`"interruptCurrent":true,"saveToFile":true,"filename":"alert.opus"}`

	md, err := DecodeMetadata([]byte(raw))
	require.NoError(t, err)

	assert.Equal(t, 5000, md.PayloadSize)
	assert.Equal(t, 9, md.Priority)
	assert.Equal(t, 3, md.PlayCount)
	assert.Equal(t, 75, md.Volume)
	assert.True(t, md.InterruptCurrent)
	assert.True(t, md.SaveToFile)
	assert.Equal(t, "alert.opus", md.Filename)
}

func TestDecodeMetadataExplicitZeroPlayCount(t *testing.T) {
	// playCount 0 means repeat until interrupted, distinct from the
	// default of 1 when the field is absent.
	md, err := DecodeMetadata([]byte(`{"opusDataSize":100,"playCount":0}`))
	require.NoError(t, err)
	assert.Equal(t, 0, md.PlayCount)
}

func TestDecodeMetadataVolumeClamp(t *testing.T) {
	md, err := DecodeMetadata([]byte(`{"opusDataSize":100,"volume":250}`))
	require.NoError(t, err)
	assert.Equal(t, MaxVolume, md.Volume)

	md, err = DecodeMetadata([]byte(`{"opusDataSize":100,"volume":-5}`))
	require.NoError(t, err)
	assert.Equal(t, 0, md.Volume)
}

func TestDecodeMetadataErrors(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		wantErr error
	}{
		{"missing size", `{"priority":5}`, ErrMissingSize},
		{"zero size", `{"opusDataSize":0}`, ErrMissingSize},
		{"invalid json", `{"opusDataSize":`, ErrInvalidJSON},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := DecodeMetadata([]byte(tc.raw))
			assert.ErrorIs(t, err, tc.wantErr)
		})
	}
}

func TestMetadataRoundTrip(t *testing.T) {
	md := Metadata{
		PayloadSize:      4096,
		Priority:         7,
		PlayCount:        2,
		Volume:           60,
		InterruptCurrent: true,
		SaveToFile:       true,
		Filename:         "chime.opus",
	}

	raw, err := md.Encode()
	require.NoError(t, err)

	got, err := DecodeMetadata(raw)
	require.NoError(t, err)
	assert.Equal(t, md, got)
}

func TestParse(t *testing.T) {
	tail := []byte{0x01, 0x02, 0x03, 0x04}
	header := `{"opusDataSize":4}`

	t.Run("inline payload", func(t *testing.T) {
		msg, err := Parse(prefixed(header, tail))
		require.NoError(t, err)
		assert.False(t, msg.Staged())
		assert.Equal(t, tail, msg.Data)
		assert.Equal(t, len(header), msg.HeaderSize)
	})

	t.Run("staged transfer", func(t *testing.T) {
		// Header only: the binary tail went to a file.
		msg, err := Parse([]byte(`{"opusDataSize":100000}`))
		require.NoError(t, err)
		assert.True(t, msg.Staged())
		assert.Nil(t, msg.Data)
		assert.Equal(t, 100000, msg.Metadata.PayloadSize)
	})

	t.Run("truncated tail", func(t *testing.T) {
		_, err := Parse(prefixed(header, tail[:2]))
		assert.ErrorIs(t, err, ErrSizeMismatch)
	})
}

func TestParseHeader(t *testing.T) {
	msg, err := ParseHeader([]byte(`{"opusDataSize":2048,"volume":80}`))
	require.NoError(t, err)
	assert.True(t, msg.Staged())
	assert.Equal(t, 2048, msg.Metadata.PayloadSize)
	assert.Equal(t, 80, msg.Metadata.Volume)
}
