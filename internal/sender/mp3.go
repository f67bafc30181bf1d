// ABOUTME: MP3 source for the test sender
// ABOUTME: go-mp3 already yields 16-bit little-endian stereo, passed through as is
package sender

import (
	"fmt"
	"os"

	"github.com/hajimehoshi/go-mp3"

	"github.com/Resonate-Protocol/livelink-go/pkg/audio"
)

// MP3Source reads from an MP3 file
type MP3Source struct {
	file    *os.File
	decoder *mp3.Decoder
}

// OpenMP3 creates a new MP3 audio source
func OpenMP3(path string) (*MP3Source, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open MP3 file: %w", err)
	}

	decoder, err := mp3.NewDecoder(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to decode MP3: %w", err)
	}

	return &MP3Source{file: f, decoder: decoder}, nil
}

func (s *MP3Source) Format() audio.WaveFormat {
	return audio.WaveFormat{
		SamplesPerSecond: s.decoder.SampleRate(),
		NumChannels:      2,
		BitsPerSample:    16,
		SampleType:       audio.SampleTypePCM,
	}
}

func (s *MP3Source) Read(p []byte) (int, error) { return s.decoder.Read(p) }

func (s *MP3Source) Close() error { return s.file.Close() }
