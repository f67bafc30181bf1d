// ABOUTME: Audio source abstraction for the test sender
// ABOUTME: Opens WAV, MP3, FLAC and Ogg Opus files or generates a test tone
package sender

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/Resonate-Protocol/livelink-go/pkg/audio"
)

// Source provides little-endian sample bytes in the layout described by
// Format. Read returns io.EOF once the source is exhausted.
type Source interface {
	Format() audio.WaveFormat
	Read(p []byte) (int, error)
	Close() error
}

// OpenSource opens an audio file, choosing the decoder by extension
func OpenSource(path string) (Source, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("audio file not found: %w", err)
	}

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".wav", ".wave":
		return OpenWAV(path)
	case ".mp3":
		return OpenMP3(path)
	case ".flac":
		return OpenFLAC(path)
	case ".opus", ".ogg":
		return OpenOpus(path)
	default:
		return nil, fmt.Errorf("unsupported audio format: %s (supported: .wav, .mp3, .flac, .opus)", ext)
	}
}

func putInt16(dst []byte, v int16) {
	dst[0] = byte(v)
	dst[1] = byte(uint16(v) >> 8)
}
