// ABOUTME: Payload classification and header parsing
// ABOUTME: Distinguishes end markers, channel headers and data packets
package protocol

import (
	"bytes"
	"fmt"
	"math"
	"strings"

	"github.com/Resonate-Protocol/livelink-go/pkg/audio"
)

// Magic words that open a burst on each channel
const (
	AnimationMagic = "A2F"
	WaveMagic      = "WAVE"
)

// EndOfStream closes a burst
const EndOfStream = "EOS"

const headerSeparator = ":"

// Kind classifies a payload
type Kind int

const (
	KindData Kind = iota
	KindHeader
	KindEnd
)

func (k Kind) String() string {
	switch k {
	case KindHeader:
		return "header"
	case KindEnd:
		return "end"
	default:
		return "data"
	}
}

// Classify determines the payload kind for a channel with the given magic.
// Headers must be strictly longer than the magic word itself.
func Classify(payload []byte, magic string) Kind {
	if string(payload) == EndOfStream {
		return KindEnd
	}
	if len(payload) > len(magic) && bytes.HasPrefix(payload, []byte(magic)) {
		return KindHeader
	}
	return KindData
}

// MagicFor returns the header magic word of a channel
func MagicFor(ch Channel) string {
	if ch == ChannelAnimation {
		return AnimationMagic
	}
	return WaveMagic
}

// ParseAnimationHeader extracts the frame rate from "A2F:<fps>".
// Only a two-field header with a positive rate is accepted.
func ParseAnimationHeader(payload []byte) (int, bool) {
	fields := splitHeader(payload)
	if len(fields) != 2 {
		return 0, false
	}
	fps := atoi(fields[1])
	if fps <= 0 {
		return 0, false
	}
	return fps, true
}

// ParseWaveHeader extracts the wave format from
// "WAVE:<rate>:<channels>:<bits>:<type>". Any other field count is rejected.
func ParseWaveHeader(payload []byte) (audio.WaveFormat, bool) {
	fields := splitHeader(payload)
	if len(fields) != 5 {
		return audio.WaveFormat{}, false
	}
	return audio.WaveFormat{
		SamplesPerSecond: atoi(fields[1]),
		NumChannels:      atoi(fields[2]),
		BitsPerSample:    atoi(fields[3]),
		SampleType:       atoi(fields[4]),
	}, true
}

// AnimationHeader builds the header that opens an animation burst
func AnimationHeader(fps int) []byte {
	return []byte(fmt.Sprintf("%s:%d", AnimationMagic, fps))
}

// WaveHeader builds the header that opens an audio burst
func WaveHeader(f audio.WaveFormat) []byte {
	return []byte(fmt.Sprintf("%s:%d:%d:%d:%d", WaveMagic,
		f.SamplesPerSecond, f.NumChannels, f.BitsPerSample, f.SampleType))
}

// splitHeader splits on ':' and drops empty fields
func splitHeader(payload []byte) []string {
	parts := strings.Split(string(payload), headerSeparator)
	fields := parts[:0]
	for _, p := range parts {
		if p != "" {
			fields = append(fields, p)
		}
	}
	return fields
}

// atoi parses the leading integer of s the way C atoi does: leading
// whitespace and a sign are allowed, parsing stops at the first non-digit,
// and no digits yields 0.
func atoi(s string) int {
	s = strings.TrimLeft(s, " \t\r\n")
	neg := false
	if s != "" && (s[0] == '-' || s[0] == '+') {
		neg = s[0] == '-'
		s = s[1:]
	}

	var n int64
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c < '0' || c > '9' {
			break
		}
		n = n*10 + int64(c-'0')
		if n > math.MaxInt32 {
			n = math.MaxInt32 + 1
			break
		}
	}
	if neg {
		n = -n
	}
	if n > math.MaxInt32 {
		return math.MaxInt32
	}
	if n < math.MinInt32 {
		return math.MinInt32
	}
	return int(n)
}
