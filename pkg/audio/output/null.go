// ABOUTME: Device-less output that renders on a ticker and discards the result
// ABOUTME: Keeps the mixer draining in real time on headless hosts
package output

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
)

const nullPeriod = 10 * time.Millisecond

// Null output pulls audio at the device rate without playing it
type Null struct {
	volume
	log *zap.SugaredLogger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}

	// Peak holds the largest absolute sample of the last period
	peak float32
}

// NewNull creates a null output
func NewNull(logger *zap.SugaredLogger) *Null {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	n := &Null{log: logger}
	n.volume.reset()
	return n
}

// Open starts the render loop
func (n *Null) Open(sampleRate, channels int, r Renderer) error {
	if sampleRate <= 0 || channels <= 0 {
		return errors.New("sample rate and channels must be positive")
	}

	n.mu.Lock()
	defer n.mu.Unlock()
	if n.cancel != nil {
		return errors.New("null output already open")
	}

	ctx, cancel := context.WithCancel(context.Background())
	n.cancel = cancel
	n.done = make(chan struct{})

	frames := sampleRate * int(nullPeriod) / int(time.Second)
	go n.loop(ctx, r, make([]float32, frames*channels), channels, sampleRate)

	n.log.Infof("Audio output initialized: %dHz, %d channels (null)", sampleRate, channels)
	return nil
}

func (n *Null) loop(ctx context.Context, r Renderer, buf []float32, channels, sampleRate int) {
	defer close(n.done)

	ticker := time.NewTicker(nullPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n.volume.render(r, buf, channels, sampleRate)

			var peak float32
			for _, s := range buf {
				if s < 0 {
					s = -s
				}
				if s > peak {
					peak = s
				}
			}
			n.mu.Lock()
			n.peak = peak
			n.mu.Unlock()
		}
	}
}

// Peak returns the largest absolute sample rendered in the last period
func (n *Null) Peak() float32 {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.peak
}

// Close stops the render loop
func (n *Null) Close() error {
	n.mu.Lock()
	cancel, done := n.cancel, n.done
	n.cancel = nil
	n.mu.Unlock()

	if cancel == nil {
		return nil
	}
	cancel()
	<-done
	return nil
}
