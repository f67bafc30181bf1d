// ABOUTME: Oto-based audio output implementation
// ABOUTME: Oto pulls float32 little-endian samples through a rendering io.Reader
package output

import (
	"fmt"
	"sync"
	"time"

	"github.com/ebitengine/oto/v3"
	"go.uber.org/zap"
)

// Oto output implementation using oto library
type Oto struct {
	volume
	log *zap.SugaredLogger

	otoCtx     *oto.Context
	player     *oto.Player
	reader     *renderReader
	sampleRate int
	channels   int

	mu sync.Mutex
}

// NewOto creates a new Oto output
func NewOto(logger *zap.SugaredLogger) *Oto {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	o := &Oto{log: logger}
	o.volume.reset()
	return o
}

// Open initializes the output device
func (o *Oto) Open(sampleRate, channels int, r Renderer) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	// oto allows only one context per process
	if o.otoCtx != nil {
		if o.sampleRate != sampleRate || o.channels != channels {
			o.log.Warnf("Format change detected (%dHz %dch -> %dHz %dch) but oto doesn't support reinitialization. Continuing with existing context.",
				o.sampleRate, o.channels, sampleRate, channels)
		}
		o.reader.setRenderer(r)
		if o.player == nil {
			o.startPlayer()
		}
		return nil
	}

	op := &oto.NewContextOptions{
		SampleRate:   sampleRate,
		ChannelCount: channels,
		Format:       oto.FormatFloat32LE,
		BufferSize:   20 * time.Millisecond,
	}

	ctx, readyChan, err := oto.NewContext(op)
	if err != nil {
		return fmt.Errorf("failed to create oto context: %w", err)
	}
	<-readyChan

	o.otoCtx = ctx
	o.sampleRate = sampleRate
	o.channels = channels
	o.reader = &renderReader{vol: &o.volume, channels: channels, sampleRate: sampleRate}
	o.reader.setRenderer(r)
	o.startPlayer()

	o.log.Infof("Audio output initialized: %dHz, %d channels (oto/F32LE)", sampleRate, channels)
	return nil
}

func (o *Oto) startPlayer() {
	o.player = o.otoCtx.NewPlayer(o.reader)
	o.player.Play()
}

// Close releases output resources
func (o *Oto) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.player != nil {
		if err := o.player.Close(); err != nil {
			o.log.Warnf("oto player close error: %v", err)
		}
		o.player = nil
	}
	if o.otoCtx != nil {
		if err := o.otoCtx.Suspend(); err != nil {
			return fmt.Errorf("failed to suspend oto context: %w", err)
		}
	}
	return nil
}

// renderReader adapts a Renderer to io.Reader producing float32 LE frames.
// It never returns io.EOF so the player keeps pulling.
type renderReader struct {
	vol        *volume
	channels   int
	sampleRate int

	mu       sync.Mutex
	renderer Renderer
	buf      []float32
}

func (rr *renderReader) setRenderer(r Renderer) {
	rr.mu.Lock()
	rr.renderer = r
	rr.mu.Unlock()
}

func (rr *renderReader) Read(p []byte) (int, error) {
	rr.mu.Lock()
	defer rr.mu.Unlock()

	frameBytes := 4 * rr.channels
	n := (len(p) / frameBytes) * rr.channels
	if n == 0 {
		return 0, nil
	}
	if cap(rr.buf) < n {
		rr.buf = make([]float32, n)
	}
	buf := rr.buf[:n]

	if rr.renderer == nil {
		for i := range buf {
			buf[i] = 0
		}
	} else {
		rr.vol.render(rr.renderer, buf, rr.channels, rr.sampleRate)
	}
	return encodeFloat32LE(p, buf), nil
}
