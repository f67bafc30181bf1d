// ABOUTME: Burst state machine that assigns playback deltas to channel payloads
// ABOUTME: Headers open a timed burst, end markers close it, other data bypasses the scheduler
package listener

import (
	"time"

	"github.com/Resonate-Protocol/livelink-go/internal/player"
	"github.com/Resonate-Protocol/livelink-go/pkg/protocol"
)

// Channel is the behaviour that distinguishes the animation and audio listeners
type Channel interface {
	// Channel identifies the stream
	Channel() protocol.Channel
	// Magic is the header prefix for this stream
	Magic() string
	// HeaderFPS extracts a frame rate from a header payload, if it carries one
	HeaderFPS(payload []byte) (int, bool)
	// Deliver hands a payload received outside a burst straight to the consumer
	Deliver(payload []byte)
	// DelayMs is the configured static delay for payloads outside a burst
	DelayMs() int
}

// Scheduler accepts packets for timed release
type Scheduler interface {
	Push(ch protocol.Channel, pkt player.Packet)
}

// Route describes what the burst controller did with a payload
type Route struct {
	Kind      protocol.Kind
	Delta     time.Duration
	Immediate bool
}

// BurstController tracks whether a channel is inside a timed burst and
// computes each payload's delta. Not safe for concurrent use.
type BurstController struct {
	channel   Channel
	scheduler Scheduler

	fps      int
	lastPush time.Time
	inBurst  bool
}

// NewBurstController creates a controller for one channel
func NewBurstController(channel Channel, scheduler Scheduler) *BurstController {
	return &BurstController{channel: channel, scheduler: scheduler}
}

// Process routes a complete payload received at now
func (b *BurstController) Process(payload []byte, now time.Time) Route {
	ch := b.channel.Channel()

	switch kind := protocol.Classify(payload, b.channel.Magic()); kind {
	case protocol.KindEnd:
		b.fps = 0
		b.lastPush = time.Time{}
		b.inBurst = false
		b.scheduler.Push(ch, player.Packet{Payload: payload, EndFence: true})
		return Route{Kind: kind}

	case protocol.KindHeader:
		b.fps = 0
		if fps, ok := b.channel.HeaderFPS(payload); ok {
			b.fps = fps
		}
		b.lastPush = time.Time{}
		b.inBurst = true
		b.scheduler.Push(ch, player.Packet{Payload: payload, BeginFence: true})
		return Route{Kind: kind}
	}

	if !b.inBurst {
		delay := time.Duration(b.channel.DelayMs()) * time.Millisecond
		b.channel.Deliver(payload)
		return Route{Kind: protocol.KindData, Delta: delay, Immediate: true}
	}

	var delta time.Duration
	switch {
	case b.fps > 0:
		delta = time.Second / time.Duration(b.fps)
	case !b.lastPush.IsZero():
		delta = now.Sub(b.lastPush)
	}
	b.lastPush = now

	b.scheduler.Push(ch, player.Packet{Payload: payload, Delta: delta})
	return Route{Kind: protocol.KindData, Delta: delta}
}

// InBurst reports whether a burst is open
func (b *BurstController) InBurst() bool {
	return b.inBurst
}

// FPS returns the frame rate override of the open burst, or 0
func (b *BurstController) FPS() int {
	return b.fps
}
