//go:build portaudio

// ABOUTME: PortAudio output implementation
// ABOUTME: Cross-platform audio output using a float32 PortAudio stream callback
package output

import (
	"fmt"

	"github.com/gordonklaus/portaudio"
	"go.uber.org/zap"
)

// PortAudio output implementation
type PortAudio struct {
	volume
	log    *zap.SugaredLogger
	stream *portaudio.Stream
}

// NewPortAudio creates a new PortAudio output
func NewPortAudio(logger *zap.SugaredLogger) *PortAudio {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	p := &PortAudio{log: logger}
	p.volume.reset()
	return p
}

// Open initializes PortAudio
func (p *PortAudio) Open(sampleRate, channels int, r Renderer) error {
	if p.stream != nil {
		return fmt.Errorf("portaudio output already open")
	}
	if err := portaudio.Initialize(); err != nil {
		return fmt.Errorf("failed to initialize portaudio: %w", err)
	}

	stream, err := portaudio.OpenDefaultStream(0, channels, float64(sampleRate), 0, func(out []float32) {
		p.volume.render(r, out, channels, sampleRate)
	})
	if err != nil {
		portaudio.Terminate()
		return fmt.Errorf("failed to open stream: %w", err)
	}

	if err := stream.Start(); err != nil {
		stream.Close()
		portaudio.Terminate()
		return fmt.Errorf("failed to start stream: %w", err)
	}
	p.stream = stream

	p.log.Infof("Audio output initialized: %dHz, %d channels (portaudio/F32)", sampleRate, channels)
	return nil
}

// Close releases resources
func (p *PortAudio) Close() error {
	if p.stream == nil {
		return nil
	}
	if err := p.stream.Stop(); err != nil {
		return err
	}
	if err := p.stream.Close(); err != nil {
		return err
	}
	p.stream = nil
	return portaudio.Terminate()
}
