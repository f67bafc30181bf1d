// ABOUTME: Audio type definitions
// ABOUTME: Defines wave formats and normalized sample conversion
package audio

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Sample types carried in the wave header
const (
	SampleTypePCM   = 1
	SampleTypeFloat = 3
)

// WaveFormat describes an incoming audio segment. Values are taken verbatim
// from the wave header and never change for the life of a segment.
type WaveFormat struct {
	SamplesPerSecond int
	NumChannels      int
	BitsPerSample    int
	SampleType       int
}

// Stride returns bytes per single-channel sample
func (f WaveFormat) Stride() int {
	return f.BitsPerSample / 8
}

// Equal reports field-wise equality
func (f WaveFormat) Equal(o WaveFormat) bool {
	return f == o
}

// Accepted reports whether bytes in this format may be appended to a segment.
// Only PCM and float data in mono or stereo layouts are buffered.
func (f WaveFormat) Accepted() bool {
	if f.Stride() <= 0 {
		return false
	}
	if f.SampleType != SampleTypePCM && f.SampleType != SampleTypeFloat {
		return false
	}
	return f.NumChannels == 1 || f.NumChannels == 2
}

// Convertible reports whether samples in this format produce output
func (f WaveFormat) Convertible() bool {
	switch {
	case f.SampleType == SampleTypeFloat && (f.BitsPerSample == 32 || f.BitsPerSample == 64):
		return true
	case f.SampleType == SampleTypePCM && (f.BitsPerSample == 8 || f.BitsPerSample == 16):
		return true
	}
	return false
}

func (f WaveFormat) String() string {
	kind := "pcm"
	switch f.SampleType {
	case SampleTypeFloat:
		kind = "float"
	case SampleTypePCM:
	default:
		kind = fmt.Sprintf("type%d", f.SampleType)
	}
	return fmt.Sprintf("%dHz/%dch/%dbit/%s", f.SamplesPerSecond, f.NumChannels, f.BitsPerSample, kind)
}

// PCM8ToFloat normalizes a signed 8-bit sample to [-1, 1]
func PCM8ToFloat(s int8) float32 {
	if s >= 0 {
		return float32(s) / math.MaxInt8
	}
	return float32(s) / (math.MaxInt8 + 1)
}

// PCM16ToFloat normalizes a signed 16-bit sample to [-1, 1]
func PCM16ToFloat(s int16) float32 {
	if s >= 0 {
		return float32(s) / math.MaxInt16
	}
	return float32(s) / (math.MaxInt16 + 1)
}

// FloatToPCM16 converts a normalized sample back to 16-bit, clamping out of range input
func FloatToPCM16(v float32) int16 {
	switch {
	case v >= 1:
		return math.MaxInt16
	case v <= -1:
		return math.MinInt16
	case v >= 0:
		return int16(v * math.MaxInt16)
	default:
		return int16(v * (math.MaxInt16 + 1))
	}
}

// DecodeSample reads the little-endian sample starting at buf[i] and
// normalizes it. It returns false when the format is not convertible or the
// sample would extend past the end of buf.
func DecodeSample(buf []byte, i int, f WaveFormat) (float32, bool) {
	stride := f.Stride()
	if stride <= 0 || i < 0 || i+stride > len(buf) {
		return 0, false
	}
	b := buf[i : i+stride]

	switch {
	case f.SampleType == SampleTypeFloat && f.BitsPerSample == 32:
		return math.Float32frombits(binary.LittleEndian.Uint32(b)), true
	case f.SampleType == SampleTypeFloat && f.BitsPerSample == 64:
		return float32(math.Float64frombits(binary.LittleEndian.Uint64(b))), true
	case f.SampleType == SampleTypePCM && f.BitsPerSample == 16:
		return PCM16ToFloat(int16(binary.LittleEndian.Uint16(b))), true
	case f.SampleType == SampleTypePCM && f.BitsPerSample == 8:
		return PCM8ToFloat(int8(b[0])), true
	}
	return 0, false
}

// SampleFrom24Bit converts 24-bit packed bytes to int32 (little-endian)
func SampleFrom24Bit(b [3]byte) int32 {
	val := int32(b[0]) | int32(b[1])<<8 | int32(b[2])<<16
	// Sign extend from 24-bit to 32-bit
	if val&0x800000 != 0 {
		val |= ^0xFFFFFF
	}
	return val
}
