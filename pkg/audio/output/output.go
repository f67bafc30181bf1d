// ABOUTME: Audio output interface definition
// ABOUTME: Backends pull float samples from a Renderer inside the device callback
package output

import (
	"fmt"
	"sync/atomic"

	"go.uber.org/zap"
)

// Renderer fills interleaved float samples. Implementations add into out,
// so callers zero the buffer first.
type Renderer interface {
	Render(out []float32, channels, sampleRate int)
}

// Output represents an audio output device
type Output interface {
	// Open initializes the device and starts pulling from r
	Open(sampleRate, channels int, r Renderer) error

	// Close releases output resources
	Close() error

	SetVolume(volume int)
	SetMuted(muted bool)
	Volume() int
	Muted() bool
}

// Backend names accepted by New
const (
	BackendMalgo     = "malgo"
	BackendOto       = "oto"
	BackendPortAudio = "portaudio"
	BackendNull      = "null"
)

// New creates an output for the named backend
func New(backend string, logger *zap.SugaredLogger) (Output, error) {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	switch backend {
	case BackendMalgo, "":
		return NewMalgo(logger), nil
	case BackendOto:
		return NewOto(logger), nil
	case BackendPortAudio:
		return NewPortAudio(logger), nil
	case BackendNull:
		return NewNull(logger), nil
	default:
		return nil, fmt.Errorf("unknown audio backend %q", backend)
	}
}

// volume holds software volume (0-100) and mute state
type volume struct {
	level atomic.Int32
	muted atomic.Bool
}

func (v *volume) reset() {
	v.level.Store(100)
	v.muted.Store(false)
}

// SetVolume sets the volume (0-100)
func (v *volume) SetVolume(level int) {
	if level < 0 {
		level = 0
	}
	if level > 100 {
		level = 100
	}
	v.level.Store(int32(level))
}

// SetMuted sets mute state
func (v *volume) SetMuted(muted bool) { v.muted.Store(muted) }

// Volume returns current volume
func (v *volume) Volume() int { return int(v.level.Load()) }

// Muted returns mute state
func (v *volume) Muted() bool { return v.muted.Load() }

func (v *volume) multiplier() float32 {
	if v.muted.Load() {
		return 0
	}
	return float32(v.level.Load()) / 100
}

// render zeroes buf, pulls from r and applies volume with clipping
func (v *volume) render(r Renderer, buf []float32, channels, sampleRate int) {
	for i := range buf {
		buf[i] = 0
	}
	r.Render(buf, channels, sampleRate)

	m := v.multiplier()
	for i, s := range buf {
		s *= m
		if s > 1 {
			s = 1
		} else if s < -1 {
			s = -1
		}
		buf[i] = s
	}
}
