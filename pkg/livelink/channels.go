// ABOUTME: Channel handlers plugging the animation decoder and audio mixer into listeners
// ABOUTME: Each handler is both the listener's channel capability and the player's sink
package livelink

import (
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/Resonate-Protocol/livelink-go/pkg/animation"
	"github.com/Resonate-Protocol/livelink-go/pkg/audio/mixer"
	"github.com/Resonate-Protocol/livelink-go/pkg/protocol"
)

const (
	// DefaultAnimationDelayMs is the initial animation delay
	DefaultAnimationDelayMs = 150
	// DefaultAudioDelayMs is the initial audio delay
	DefaultAudioDelayMs = 0
	// MaxDelayMs bounds configurable delays
	MaxDelayMs = 1000
)

func clampDelay(ms int) int {
	if ms < 0 {
		return 0
	}
	if ms > MaxDelayMs {
		return MaxDelayMs
	}
	return ms
}

type delay struct {
	ms atomic.Int32
}

func (d *delay) DelayMs() int { return int(d.ms.Load()) }

func (d *delay) set(ms int) { d.ms.Store(int32(clampDelay(ms))) }

// animationChannel feeds animation payloads to the decoder
type animationChannel struct {
	delay
	decoder *animation.Decoder
}

func newAnimationChannel(decoder *animation.Decoder, delayMs int) *animationChannel {
	c := &animationChannel{decoder: decoder}
	c.set(delayMs)
	return c
}

func (c *animationChannel) Channel() protocol.Channel { return protocol.ChannelAnimation }

func (c *animationChannel) Magic() string { return protocol.AnimationMagic }

func (c *animationChannel) HeaderFPS(payload []byte) (int, bool) {
	return protocol.ParseAnimationHeader(payload)
}

func (c *animationChannel) Deliver(payload []byte) { c.decoder.Deliver(payload) }

// audioChannel turns wave headers into mixer segments and appends sample data.
// Deliver is reached from both the listener goroutine and the player
// goroutine, so it serializes the mixer's producer side.
type audioChannel struct {
	delay
	mixer *mixer.Mixer
	log   *zap.SugaredLogger

	mu sync.Mutex
}

func newAudioChannel(m *mixer.Mixer, delayMs int, logger *zap.SugaredLogger) *audioChannel {
	c := &audioChannel{mixer: m, log: logger}
	c.set(delayMs)
	return c
}

func (c *audioChannel) Channel() protocol.Channel { return protocol.ChannelAudio }

func (c *audioChannel) Magic() string { return protocol.WaveMagic }

// Wave headers carry no frame rate; audio bursts are timed by arrival.
func (c *audioChannel) HeaderFPS(payload []byte) (int, bool) { return 0, false }

func (c *audioChannel) Deliver(payload []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch protocol.Classify(payload, protocol.WaveMagic) {
	case protocol.KindEnd:
		return
	case protocol.KindHeader:
		format, ok := protocol.ParseWaveHeader(payload)
		if !ok {
			c.log.Warnf("Ignoring malformed wave header %q", payload)
			return
		}
		c.log.Infof("Received wave format: %s", format)
		if !format.Accepted() {
			c.log.Warnf("Wave format %s is not playable, its samples will be dropped", format)
		}
		if !c.mixer.AddSegment(format) {
			c.log.Warnf("Too many audio segments queued, dropping wave %s", format)
		}
	default:
		c.mixer.Append(payload)
	}
}
