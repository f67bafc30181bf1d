//go:build !portaudio

// ABOUTME: PortAudio stub when library not available
// ABOUTME: Provides compile-time placeholder when PortAudio not installed
package output

import (
	"errors"

	"go.uber.org/zap"
)

// ErrPortAudioDisabled is returned when built without the portaudio tag
var ErrPortAudioDisabled = errors.New("PortAudio support not enabled (build with -tags portaudio)")

// PortAudio output implementation (stub)
type PortAudio struct {
	volume
}

// NewPortAudio creates a new PortAudio output
func NewPortAudio(logger *zap.SugaredLogger) *PortAudio {
	p := &PortAudio{}
	p.volume.reset()
	return p
}

// Open initializes PortAudio
func (p *PortAudio) Open(sampleRate, channels int, r Renderer) error {
	return ErrPortAudioDisabled
}

// Close releases resources
func (p *PortAudio) Close() error {
	return nil
}
