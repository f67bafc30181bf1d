// ABOUTME: Dual-channel playback scheduler with a cross-channel fence
// ABOUTME: Releases audio and animation packets after their scheduled delta
package player

import (
	"context"
	"runtime"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/Resonate-Protocol/livelink-go/pkg/protocol"
)

const (
	// DefaultPollInterval is how often the scheduler loop checks armed packets
	DefaultPollInterval = 250 * time.Microsecond

	// FenceOpen is the fence value when no burst is open on any channel
	FenceOpen uint8 = 0xFF
)

// Packet is a payload waiting to be released to its channel sink
type Packet struct {
	Payload    []byte
	Delta      time.Duration // minimum time since the channel's previous dispatch
	BeginFence bool
	EndFence   bool
}

// Sink consumes packets released by the scheduler
type Sink interface {
	Deliver(payload []byte)
}

// SinkFunc adapts a function to Sink
type SinkFunc func(payload []byte)

// Deliver calls f(payload)
func (f SinkFunc) Deliver(payload []byte) { f(payload) }

// Config holds scheduler options
type Config struct {
	// PollInterval between checks. Defaults to DefaultPollInterval.
	PollInterval time.Duration
	// Spin polls continuously, yielding the processor each pass, instead of
	// waiting on a ticker.
	Spin   bool
	Logger *zap.SugaredLogger
}

// ChannelStats tracks per-channel scheduler metrics
type ChannelStats struct {
	Received   int64
	Played     int64
	Dropped    int64
	FenceWaits int64
	Queued     int
	Armed      bool
}

// Stats is a snapshot of scheduler state
type Stats struct {
	Audio     ChannelStats
	Animation ChannelStats
	Fence     uint8
	Resets    int64
}

type entry struct {
	packet Packet
	epoch  uint64
}

type sinkRef struct {
	sink Sink
}

type channelCounters struct {
	received   atomic.Int64
	played     atomic.Int64
	dropped    atomic.Int64
	fenceWaits atomic.Int64
	armed      atomic.Bool
}

// FramePlayer releases packets pushed on two channels once each packet's
// delta has elapsed since the previous dispatch on the same channel.
//
// A begin-fence packet clears its channel's fence bit. An end-fence packet
// sets it and is held until every bit is set again, so a burst never closes
// on one channel while the other is still inside its own burst. If the
// other channel never sends its end marker the held packet waits forever.
type FramePlayer struct {
	config Config
	log    *zap.SugaredLogger

	queues [len(protocol.Channels)]*packetQueue
	sinks  [len(protocol.Channels)]atomic.Pointer[sinkRef]
	stats  [len(protocol.Channels)]channelCounters

	// owned by the loop goroutine
	armed        [len(protocol.Channels)]*entry
	lastPlayed   [len(protocol.Channels)]time.Time
	fence        uint8
	appliedEpoch uint64

	fenceSnapshot atomic.Uint32
	epoch         atomic.Uint64
	resets        atomic.Int64
	running       atomic.Bool
	waiting       [len(protocol.Channels)]bool
}

// New creates a scheduler. Call Run to start releasing packets.
func New(config Config) *FramePlayer {
	if config.PollInterval <= 0 {
		config.PollInterval = DefaultPollInterval
	}
	if config.Logger == nil {
		config.Logger = zap.NewNop().Sugar()
	}

	p := &FramePlayer{
		config: config,
		log:    config.Logger,
		fence:  FenceOpen,
	}
	for i := range p.queues {
		p.queues[i] = newPacketQueue()
	}
	p.fenceSnapshot.Store(uint32(FenceOpen))
	return p
}

// RegisterSink sets the consumer for a channel. Packets are delivered to
// whichever sink is registered at dispatch time.
func (p *FramePlayer) RegisterSink(ch protocol.Channel, sink Sink) {
	if sink == nil {
		p.sinks[ch].Store(nil)
		return
	}
	p.sinks[ch].Store(&sinkRef{sink: sink})
}

// Push enqueues a packet. Never blocks.
func (p *FramePlayer) Push(ch protocol.Channel, pkt Packet) {
	p.queues[ch].push(entry{packet: pkt, epoch: p.epoch.Load()})
	p.stats[ch].received.Add(1)
}

// Reset discards every packet pushed before the call, including armed ones.
// The fence and registered sinks are kept.
func (p *FramePlayer) Reset() {
	p.epoch.Add(1)
	p.resets.Add(1)
}

// Run drives the scheduler until ctx is cancelled
func (p *FramePlayer) Run(ctx context.Context) {
	if !p.running.CompareAndSwap(false, true) {
		p.log.Warnw("Frame player already running")
		return
	}
	defer p.running.Store(false)

	defer p.log.Infof("Frame player stopped")

	if p.config.Spin {
		p.log.Infof("Frame player started (spinning)")
		for ctx.Err() == nil {
			p.poll(time.Now())
			runtime.Gosched()
		}
		return
	}

	p.log.Infof("Frame player started (poll interval %v)", p.config.PollInterval)
	ticker := time.NewTicker(p.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.poll(time.Now())
		}
	}
}

// Running reports whether the loop is active
func (p *FramePlayer) Running() bool {
	return p.running.Load()
}

// poll runs one scheduler pass at the given instant
func (p *FramePlayer) poll(now time.Time) {
	p.applyReset()

	for _, ch := range protocol.Channels {
		if p.armed[ch] == nil {
			p.arm(ch)
		}
	}

	// audio is serviced first on every pass
	for _, ch := range protocol.Channels {
		p.service(ch, now)
	}

	p.fenceSnapshot.Store(uint32(p.fence))
}

func (p *FramePlayer) applyReset() {
	e := p.epoch.Load()
	if e == p.appliedEpoch {
		return
	}
	p.appliedEpoch = e

	for _, ch := range protocol.Channels {
		if p.armed[ch] != nil {
			p.armed[ch] = nil
			p.stats[ch].dropped.Add(1)
			p.stats[ch].armed.Store(false)
		}
		p.waiting[ch] = false
	}
	p.log.Debugw("Frame player reset applied", "epoch", e)
}

func (p *FramePlayer) arm(ch protocol.Channel) {
	for {
		e, ok := p.queues[ch].pop()
		if !ok {
			return
		}
		if e.epoch < p.appliedEpoch {
			p.stats[ch].dropped.Add(1)
			continue
		}
		p.armed[ch] = &e
		p.stats[ch].armed.Store(true)
		return
	}
}

func (p *FramePlayer) service(ch protocol.Channel, now time.Time) {
	e := p.armed[ch]
	if e == nil {
		return
	}
	if now.Sub(p.lastPlayed[ch]) < e.packet.Delta {
		return
	}

	bit := ch.FenceBit()
	if e.packet.BeginFence {
		p.fence &^= bit
	}
	if e.packet.EndFence {
		p.fence |= bit
		if p.fence != FenceOpen {
			if !p.waiting[ch] {
				p.waiting[ch] = true
				p.stats[ch].fenceWaits.Add(1)
				p.log.Debugw("End of burst held by fence", "channel", ch.String(), "fence", p.fence)
			}
			return
		}
		p.waiting[ch] = false
	}

	p.dispatch(ch, e, now)
}

func (p *FramePlayer) dispatch(ch protocol.Channel, e *entry, now time.Time) {
	if ref := p.sinks[ch].Load(); ref != nil {
		ref.sink.Deliver(e.packet.Payload)
	}
	p.armed[ch] = nil
	p.lastPlayed[ch] = now
	p.stats[ch].played.Add(1)
	p.stats[ch].armed.Store(false)
}

// Fence returns the fence mask as of the last scheduler pass
func (p *FramePlayer) Fence() uint8 {
	return uint8(p.fenceSnapshot.Load())
}

// Stats returns scheduler statistics
func (p *FramePlayer) Stats() Stats {
	snap := func(ch protocol.Channel) ChannelStats {
		c := &p.stats[ch]
		return ChannelStats{
			Received:   c.received.Load(),
			Played:     c.played.Load(),
			Dropped:    c.dropped.Load(),
			FenceWaits: c.fenceWaits.Load(),
			Queued:     p.queues[ch].len(),
			Armed:      c.armed.Load(),
		}
	}
	return Stats{
		Audio:     snap(protocol.ChannelAudio),
		Animation: snap(protocol.ChannelAnimation),
		Fence:     p.Fence(),
		Resets:    p.resets.Load(),
	}
}
