// Copyright (c) RapidReach
// SPDX-License-Identifier: Apache-2.0

package audio

import "log/slog"

// Codec register range in half-dB steps: -200 is -100 dB (mute), +48 is
// +24 dB.
const (
	CodecMute = -200
	CodecMax  = 48
)

// Player drives the audio output stage. Implementations are expected to be
// non-blocking: Start kicks off playback of an opus file and returns,
// Playing reflects whether the pipeline is still draining it.
type Player interface {
	// Enable powers up the codec. Called once before the first playback.
	Enable() error
	Start(path string) error
	Stop() error
	SetVolume(level int) error
	Playing() bool
}

// CodecVolume maps a percentage volume request onto the codec register
// range. 0-80% spans mute to 0 dB, 80-100% spans 0 dB to +24 dB, so the
// usable listening range gets most of the scale. The mapping is monotonic
// and the result is clamped to the register limits.
func CodecVolume(percent int) int {
	var level int
	switch {
	case percent <= 0:
		return CodecMute
	case percent <= 80:
		level = CodecMute + percent*200/80
	default:
		level = (percent - 80) * 48 / 20
	}
	if level < CodecMute {
		level = CodecMute
	}
	if level > CodecMax {
		level = CodecMax
	}
	return level
}

// NopPlayer satisfies Player without any hardware behind it. Useful when
// the daemon runs on a development host.
type NopPlayer struct {
	Logger *slog.Logger
}

func (p *NopPlayer) Enable() error { return nil }

func (p *NopPlayer) Start(path string) error {
	if p.Logger != nil {
		p.Logger.Info("playback requested", slog.String("path", path))
	}
	return nil
}

func (p *NopPlayer) Stop() error { return nil }

func (p *NopPlayer) SetVolume(level int) error {
	if p.Logger != nil {
		p.Logger.Debug("volume set", slog.Int("level", level))
	}
	return nil
}

func (p *NopPlayer) Playing() bool { return false }
