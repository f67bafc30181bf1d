// ABOUTME: Length-prefixed frame encoding and stream reassembly
// ABOUTME: Frames are an 8-byte big-endian length followed by the payload
package protocol

import (
	"encoding/binary"
	"fmt"
	"io"
)

// HeaderSize is the length prefix size in bytes
const HeaderSize = 8

// Channel identifies one of the two logical streams
type Channel int

const (
	ChannelAudio     Channel = 0
	ChannelAnimation Channel = 1
)

// Channels lists every channel in processing order
var Channels = [...]Channel{ChannelAudio, ChannelAnimation}

// FenceBit returns the channel's bit in the cross-channel fence mask
func (c Channel) FenceBit() uint8 {
	return 1 << uint(c)
}

func (c Channel) String() string {
	switch c {
	case ChannelAudio:
		return "audio"
	case ChannelAnimation:
		return "animation"
	default:
		return fmt.Sprintf("channel(%d)", int(c))
	}
}

// EncodeFrame prefixes payload with its length
func EncodeFrame(payload []byte) []byte {
	frame := make([]byte, HeaderSize+len(payload))
	binary.BigEndian.PutUint64(frame, uint64(len(payload)))
	copy(frame[HeaderSize:], payload)
	return frame
}

// WriteFrame writes one framed payload to w in a single write
func WriteFrame(w io.Writer, payload []byte) error {
	if _, err := w.Write(EncodeFrame(payload)); err != nil {
		return fmt.Errorf("failed to write frame: %w", err)
	}
	return nil
}

// Assembler rebuilds frames from arbitrarily split stream reads.
// It is not safe for concurrent use.
type Assembler struct {
	pending []byte
}

// Feed appends p to the pending stream data and calls emit once for every
// complete frame, in order. Each emitted payload is a fresh copy owned by
// the callee. Incomplete trailing data is kept for the next call.
func (a *Assembler) Feed(p []byte, emit func(payload []byte)) {
	a.pending = append(a.pending, p...)

	off := 0
	for len(a.pending)-off >= HeaderSize {
		size := binary.BigEndian.Uint64(a.pending[off : off+HeaderSize])
		body := a.pending[off+HeaderSize:]
		if uint64(len(body)) < size {
			break
		}

		payload := make([]byte, size)
		copy(payload, body[:size])
		off += HeaderSize + int(size)
		emit(payload)
	}

	if off > 0 {
		a.pending = append(a.pending[:0], a.pending[off:]...)
	}
}

// Buffered returns the number of bytes waiting for the rest of a frame
func (a *Assembler) Buffered() int {
	return len(a.pending)
}

// Reset discards any partial frame
func (a *Assembler) Reset() {
	a.pending = a.pending[:0]
}
