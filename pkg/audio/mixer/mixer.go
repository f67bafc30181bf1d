// ABOUTME: Audio mixer that chains wave segments and renders them as float samples
// ABOUTME: Render is safe to call from a real-time device callback
package mixer

import (
	"sync/atomic"

	"github.com/Resonate-Protocol/livelink-go/pkg/audio"
	"github.com/Resonate-Protocol/livelink-go/pkg/audio/ring"
)

const (
	// DefaultSegmentSize is the per-segment ring capacity in bytes
	DefaultSegmentSize = 1 << 20

	// MaxSegments bounds how many segments may be queued ahead of playback
	MaxSegments = 64
)

// Config holds mixer options
type Config struct {
	SegmentSize int
}

// Stats is a snapshot of mixer counters
type Stats struct {
	SegmentsCreated  uint64
	SegmentsRejected uint64
	BytesAppended    uint64
	BytesDropped     uint64
	SamplesRendered  uint64
	Renders          uint64
	Underruns        uint64
	RateMismatches   uint64
	Segments         int
	BufferedBytes    int
	Format           audio.WaveFormat
	Active           bool
}

type segment struct {
	id     uint64
	format audio.WaveFormat
	buf    *ring.Buffer
}

// Mixer buffers incoming audio in a chain of fixed-size segments.
//
// AddSegment and Append form the producer side and must not be called
// concurrently with each other. Render is the consumer side. Segments are
// addressed by monotonically increasing ids stored in a fixed slot table, so
// neither side ever frees memory the other may be reading.
type Mixer struct {
	segmentSize int
	slots       [MaxSegments]atomic.Pointer[segment]

	// tail is the id of the newest segment (0 when none exist).
	// playing is the id of the segment being rendered; it only moves forward.
	tail    atomic.Uint64
	playing atomic.Uint64

	active atomic.Bool

	// Render-side scratch, reused across calls
	scratch []byte

	segmentsCreated  atomic.Uint64
	segmentsRejected atomic.Uint64
	bytesAppended    atomic.Uint64
	bytesDropped     atomic.Uint64
	samplesRendered  atomic.Uint64
	renders          atomic.Uint64
	underruns        atomic.Uint64
	rateMismatches   atomic.Uint64
}

// New creates a mixer
func New(config Config) *Mixer {
	if config.SegmentSize <= 0 {
		config.SegmentSize = DefaultSegmentSize
	}
	m := &Mixer{segmentSize: config.SegmentSize}
	m.playing.Store(1)
	return m
}

// Activate enables rendering
func (m *Mixer) Activate() { m.active.Store(true) }

// Deactivate silences rendering without discarding buffered audio
func (m *Mixer) Deactivate() { m.active.Store(false) }

// Active reports whether the mixer renders
func (m *Mixer) Active() bool { return m.active.Load() }

// AddSegment appends an empty segment with the given format to the chain.
// Returns false when too many segments are already waiting for playback.
func (m *Mixer) AddSegment(format audio.WaveFormat) bool {
	id := m.tail.Load() + 1
	if id-m.playing.Load() >= MaxSegments {
		m.segmentsRejected.Add(1)
		return false
	}

	m.slots[id%MaxSegments].Store(&segment{
		id:     id,
		format: format,
		buf:    ring.New(m.segmentSize),
	})
	m.tail.Store(id)
	m.segmentsCreated.Add(1)
	return true
}

// Append writes audio bytes into the newest segment, chaining new segments
// with the same format whenever the current one fills up. Bytes are dropped
// when no segment exists or its format is not buffered. Returns the number of
// bytes accepted.
func (m *Mixer) Append(data []byte) int {
	accepted := 0
	for len(data) > 0 {
		last := m.newest()
		if last == nil || !last.format.Accepted() {
			break
		}

		n := last.buf.Push(data)
		accepted += n
		data = data[n:]
		if len(data) == 0 {
			break
		}
		if !m.AddSegment(last.format) {
			break
		}
	}

	m.bytesAppended.Add(uint64(accepted))
	if len(data) > 0 {
		m.bytesDropped.Add(uint64(len(data)))
	}

	m.advance()
	return accepted
}

// Render mixes buffered audio into out, which holds interleaved samples for
// the given output channel count. Output is additive. Audio is never
// resampled; a rate mismatch is only counted.
func (m *Mixer) Render(out []float32, channels, sampleRate int) {
	if !m.active.Load() || channels <= 0 {
		return
	}

	m.renders.Add(1)

	cur := m.current()
	if cur != nil && cur.buf.Len() > 0 {
		m.renderSegment(cur, out, channels, sampleRate)
	} else if cur != nil {
		m.underruns.Add(1)
	}

	m.advance()
}

func (m *Mixer) renderSegment(cur *segment, out []float32, channels, sampleRate int) {
	format := cur.format
	stride := format.Stride()
	if stride <= 0 {
		return
	}
	if sampleRate > 0 && format.SamplesPerSecond != sampleRate {
		m.rateMismatches.Add(1)
	}

	srcChannels := format.NumChannels
	if srcChannels <= 0 {
		return
	}

	requested := len(out) / channels
	play := m.availableFrames(cur)
	if play > requested {
		play = requested
	}

	var next *segment
	borrowed := 0
	if requested > play {
		if next = m.successor(cur); next != nil && next.format.Equal(format) {
			borrowed = m.availableFrames(next)
			if borrowed > requested-play {
				borrowed = requested - play
			}
			play += borrowed
		}
	}

	if play < requested {
		m.underruns.Add(1)
	}
	if play <= 0 {
		return
	}

	size := play * srcChannels * stride
	if cap(m.scratch) < size {
		m.scratch = make([]byte, size)
	}
	buf := m.scratch[:size]

	popped := cur.buf.Pop(buf)
	if popped < size && borrowed > 0 {
		popped += next.buf.Pop(buf[popped:])
	}
	buf = buf[:popped]

	if !format.Convertible() {
		return
	}

	// each source frame fills one output frame; mono is copied to every
	// output channel, otherwise channels map one to one and extras stay silent
	mapped := srcChannels
	if mapped > channels {
		mapped = channels
	}
	for f := 0; f < play; f++ {
		dst := out[f*channels : (f+1)*channels]
		src := f * srcChannels * stride

		if srcChannels == 1 {
			if v, ok := audio.DecodeSample(buf, src, format); ok {
				for ch := range dst {
					dst[ch] += v
				}
			}
			continue
		}

		for ch := 0; ch < mapped; ch++ {
			if v, ok := audio.DecodeSample(buf, src+ch*stride, format); ok {
				dst[ch] += v
			}
		}
	}

	m.samplesRendered.Add(uint64(play * channels))
}

// availableFrames returns the buffered amount in source frames. A trailing
// partial frame is rounded up so a dangling sample still gets a slot.
func (m *Mixer) availableFrames(s *segment) int {
	n := s.buf.Len() / s.format.Stride()
	c := s.format.NumChannels
	return (n + c - 1) / c
}

// advance moves playback to the next segment once the current one has
// drained and a successor exists. Called from both producer and consumer.
func (m *Mixer) advance() {
	for {
		p := m.playing.Load()
		if p >= m.tail.Load() {
			return
		}
		cur := m.slots[p%MaxSegments].Load()
		if cur != nil && cur.id == p && cur.buf.Len() > 0 {
			return
		}
		if m.playing.CompareAndSwap(p, p+1) {
			return
		}
	}
}

func (m *Mixer) current() *segment {
	p := m.playing.Load()
	if p > m.tail.Load() {
		return nil
	}
	s := m.slots[p%MaxSegments].Load()
	if s == nil || s.id != p {
		return nil
	}
	return s
}

func (m *Mixer) successor(s *segment) *segment {
	id := s.id + 1
	if id > m.tail.Load() {
		return nil
	}
	next := m.slots[id%MaxSegments].Load()
	if next == nil || next.id != id {
		return nil
	}
	return next
}

func (m *Mixer) newest() *segment {
	t := m.tail.Load()
	if t == 0 {
		return nil
	}
	return m.slots[t%MaxSegments].Load()
}

// Stats returns a snapshot of mixer counters and buffer occupancy
func (m *Mixer) Stats() Stats {
	st := Stats{
		SegmentsCreated:  m.segmentsCreated.Load(),
		SegmentsRejected: m.segmentsRejected.Load(),
		BytesAppended:    m.bytesAppended.Load(),
		BytesDropped:     m.bytesDropped.Load(),
		SamplesRendered:  m.samplesRendered.Load(),
		Renders:          m.renders.Load(),
		Underruns:        m.underruns.Load(),
		RateMismatches:   m.rateMismatches.Load(),
		Active:           m.active.Load(),
	}

	tail := m.tail.Load()
	for id := m.playing.Load(); id <= tail; id++ {
		s := m.slots[id%MaxSegments].Load()
		if s == nil || s.id != id {
			continue
		}
		st.Segments++
		st.BufferedBytes += s.buf.Len()
		st.Format = s.format
	}
	return st
}
