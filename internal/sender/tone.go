// ABOUTME: Test tone generator for the sender
// ABOUTME: Generates a mono 16-bit sine wave of fixed length
package sender

import (
	"io"
	"math"
	"time"

	"github.com/Resonate-Protocol/livelink-go/pkg/audio"
)

// DefaultToneFrequency is A4
const DefaultToneFrequency = 440.0

// ToneSource generates a sine wave at half volume
type ToneSource struct {
	frequency   float64
	sampleRate  int
	sampleIndex int
	total       int
}

// NewToneSource creates a tone lasting d at the given rate
func NewToneSource(frequency float64, sampleRate int, d time.Duration) *ToneSource {
	return &ToneSource{
		frequency:  frequency,
		sampleRate: sampleRate,
		total:      int(math.Round(d.Seconds() * float64(sampleRate))),
	}
}

func (s *ToneSource) Format() audio.WaveFormat {
	return audio.WaveFormat{
		SamplesPerSecond: s.sampleRate,
		NumChannels:      1,
		BitsPerSample:    16,
		SampleType:       audio.SampleTypePCM,
	}
}

func (s *ToneSource) Read(p []byte) (int, error) {
	if s.sampleIndex >= s.total {
		return 0, io.EOF
	}

	n := 0
	for n+2 <= len(p) && s.sampleIndex < s.total {
		t := float64(s.sampleIndex) / float64(s.sampleRate)
		v := math.Sin(2 * math.Pi * s.frequency * t)
		putInt16(p[n:], audio.FloatToPCM16(float32(v*0.5)))
		n += 2
		s.sampleIndex++
	}
	return n, nil
}

func (s *ToneSource) Close() error { return nil }
