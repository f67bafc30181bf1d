// ABOUTME: Audio fundamentals package providing core types and utilities
// ABOUTME: Defines WaveFormat and sample normalization helpers
// Package audio provides the wave format descriptor shared by the receiver,
// the mixer and the sender.
//
// Supported sample encodings, all little-endian:
//   - 8-bit signed PCM
//   - 16-bit signed PCM
//   - 32-bit IEEE float
//   - 64-bit IEEE float (narrowed to float32)
//
// Example:
//
//	format := audio.WaveFormat{
//	    SamplesPerSecond: 16000,
//	    NumChannels:      1,
//	    BitsPerSample:    16,
//	    SampleType:       audio.SampleTypePCM,
//	}
//
//	v, ok := audio.DecodeSample(buf, 0, format)
package audio
