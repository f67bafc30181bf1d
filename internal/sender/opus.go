// ABOUTME: Ogg Opus source for the test sender
// ABOUTME: Decodes with libopusfile through hraban/opus at the fixed 48kHz Opus rate
package sender

import (
	"bufio"
	"bytes"
	"fmt"
	"os"

	"gopkg.in/hraban/opus.v2"

	"github.com/Resonate-Protocol/livelink-go/pkg/audio"
)

// OpusSampleRate is the rate libopusfile always decodes to
const OpusSampleRate = 48000

// OpusSource reads from an Ogg Opus file
type OpusSource struct {
	file     *os.File
	stream   *opus.Stream
	channels int
	pcm      []int16
	pending  []byte
}

// OpenOpus creates a new Ogg Opus audio source
func OpenOpus(path string) (*OpusSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open Opus file: %w", err)
	}

	br := bufio.NewReader(f)
	head, _ := br.Peek(512)
	channels := opusHeadChannels(head)
	if channels == 0 {
		f.Close()
		return nil, fmt.Errorf("failed to decode Opus: no OpusHead packet")
	}

	stream, err := opus.NewStream(br)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to decode Opus: %w", err)
	}

	return &OpusSource{
		file:     f,
		stream:   stream,
		channels: channels,
		// 120ms is the longest Opus packet
		pcm: make([]int16, OpusSampleRate*120/1000*channels),
	}, nil
}

// opusHeadChannels finds the identification header in the first Ogg page
// and returns its channel count, or 0 when absent.
func opusHeadChannels(b []byte) int {
	i := bytes.Index(b, []byte("OpusHead"))
	if i < 0 || i+9 >= len(b) {
		return 0
	}
	return int(b[i+9])
}

func (s *OpusSource) Format() audio.WaveFormat {
	return audio.WaveFormat{
		SamplesPerSecond: OpusSampleRate,
		NumChannels:      s.channels,
		BitsPerSample:    16,
		SampleType:       audio.SampleTypePCM,
	}
}

func (s *OpusSource) Read(p []byte) (int, error) {
	for len(s.pending) == 0 {
		n, err := s.stream.Read(s.pcm)
		if err != nil {
			return 0, err
		}
		samples := s.pcm[:n*s.channels]
		out := make([]byte, len(samples)*2)
		for i, v := range samples {
			putInt16(out[i*2:], v)
		}
		s.pending = out
	}

	n := copy(p, s.pending)
	s.pending = s.pending[n:]
	return n, nil
}

func (s *OpusSource) Close() error {
	s.stream.Close()
	return s.file.Close()
}
