// ABOUTME: FLAC source for the test sender
// ABOUTME: Decodes frames with mewkiz/flac and requantizes them to 16-bit PCM
package sender

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/mewkiz/flac"

	"github.com/Resonate-Protocol/livelink-go/pkg/audio"
)

// FLACSource reads from a FLAC file
type FLACSource struct {
	file     *os.File
	stream   *flac.Stream
	format   audio.WaveFormat
	bitDepth int
	pending  []byte
}

// OpenFLAC creates a new FLAC audio source
func OpenFLAC(path string) (*FLACSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open FLAC file: %w", err)
	}

	stream, err := flac.New(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to decode FLAC: %w", err)
	}

	info := stream.Info
	return &FLACSource{
		file:   f,
		stream: stream,
		format: audio.WaveFormat{
			SamplesPerSecond: int(info.SampleRate),
			NumChannels:      int(info.NChannels),
			BitsPerSample:    16,
			SampleType:       audio.SampleTypePCM,
		},
		bitDepth: int(info.BitsPerSample),
	}, nil
}

func (s *FLACSource) Format() audio.WaveFormat { return s.format }

func (s *FLACSource) Read(p []byte) (int, error) {
	for len(s.pending) == 0 {
		frame, err := s.stream.ParseNext()
		if errors.Is(err, io.EOF) {
			return 0, io.EOF
		}
		if err != nil {
			return 0, fmt.Errorf("failed to parse FLAC frame: %w", err)
		}

		channels := s.format.NumChannels
		out := make([]byte, 0, int(frame.BlockSize)*channels*2)
		var tmp [2]byte
		for i := 0; i < int(frame.BlockSize); i++ {
			for ch := 0; ch < channels; ch++ {
				putInt16(tmp[:], requantize16(frame.Subframes[ch].Samples[i], s.bitDepth))
				out = append(out, tmp[:]...)
			}
		}
		s.pending = out
	}

	n := copy(p, s.pending)
	s.pending = s.pending[n:]
	return n, nil
}

func (s *FLACSource) Close() error { return s.file.Close() }

// requantize16 scales a sample of the given bit depth to 16 bits
func requantize16(sample int32, bitDepth int) int16 {
	shift := bitDepth - 16
	if shift > 0 {
		return int16(sample >> shift)
	}
	return int16(sample << -shift)
}
