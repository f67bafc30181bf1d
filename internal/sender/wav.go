// ABOUTME: Streaming WAV reader for the test sender
// ABOUTME: Walks RIFF chunks and exposes the data chunk in its native format
package sender

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/Resonate-Protocol/livelink-go/pkg/audio"
)

const waveFormatExtensible = 0xFFFE

// ErrInvalidWAV is returned for files that are not RIFF/WAVE
var ErrInvalidWAV = errors.New("invalid WAV file")

// WAVSource streams the data chunk of a WAV file without conversion
type WAVSource struct {
	closer io.Closer
	data   io.Reader
	format audio.WaveFormat
	size   int64
}

// OpenWAV opens a WAV file from disk
func OpenWAV(path string) (*WAVSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open WAV file: %w", err)
	}
	src, err := NewWAVSource(bufio.NewReader(f))
	if err != nil {
		f.Close()
		return nil, err
	}
	src.closer = f
	return src, nil
}

// NewWAVSource reads the RIFF header from r and positions it at the samples
func NewWAVSource(r io.Reader) (*WAVSource, error) {
	var riff [12]byte
	if _, err := io.ReadFull(r, riff[:]); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidWAV, err)
	}
	if string(riff[0:4]) != "RIFF" || string(riff[8:12]) != "WAVE" {
		return nil, fmt.Errorf("%w: missing RIFF/WAVE header", ErrInvalidWAV)
	}

	var (
		format  audio.WaveFormat
		haveFmt bool
	)
	for {
		var hdr [8]byte
		if _, err := io.ReadFull(r, hdr[:]); err != nil {
			return nil, fmt.Errorf("%w: missing data chunk", ErrInvalidWAV)
		}
		id := string(hdr[0:4])
		size := int64(binary.LittleEndian.Uint32(hdr[4:8]))

		switch id {
		case "fmt ":
			body := make([]byte, size)
			if _, err := io.ReadFull(r, body); err != nil {
				return nil, fmt.Errorf("%w: short fmt chunk", ErrInvalidWAV)
			}
			f, err := parseFmtChunk(body)
			if err != nil {
				return nil, err
			}
			format, haveFmt = f, true
		case "data":
			if !haveFmt {
				return nil, fmt.Errorf("%w: data chunk before fmt chunk", ErrInvalidWAV)
			}
			return &WAVSource{data: io.LimitReader(r, size), format: format, size: size}, nil
		default:
			if _, err := io.CopyN(io.Discard, r, size+size%2); err != nil {
				return nil, fmt.Errorf("%w: truncated %q chunk", ErrInvalidWAV, id)
			}
			continue
		}
		if size%2 == 1 {
			if _, err := io.CopyN(io.Discard, r, 1); err != nil {
				return nil, fmt.Errorf("%w: %v", ErrInvalidWAV, err)
			}
		}
	}
}

func parseFmtChunk(b []byte) (audio.WaveFormat, error) {
	if len(b) < 16 {
		return audio.WaveFormat{}, fmt.Errorf("%w: fmt chunk is %d bytes", ErrInvalidWAV, len(b))
	}
	tag := int(binary.LittleEndian.Uint16(b[0:2]))
	if tag == waveFormatExtensible && len(b) >= 26 {
		// the sub-format GUID starts with the real format tag
		tag = int(binary.LittleEndian.Uint16(b[24:26]))
	}
	return audio.WaveFormat{
		SamplesPerSecond: int(binary.LittleEndian.Uint32(b[4:8])),
		NumChannels:      int(binary.LittleEndian.Uint16(b[2:4])),
		BitsPerSample:    int(binary.LittleEndian.Uint16(b[14:16])),
		SampleType:       tag,
	}, nil
}

func (s *WAVSource) Format() audio.WaveFormat { return s.format }

func (s *WAVSource) Read(p []byte) (int, error) { return s.data.Read(p) }

// DataSize returns the length of the data chunk in bytes
func (s *WAVSource) DataSize() int64 { return s.size }

func (s *WAVSource) Close() error {
	if s.closer != nil {
		return s.closer.Close()
	}
	return nil
}

// EncodeWAV wraps raw sample bytes in a canonical 44-byte WAV header
func EncodeWAV(format audio.WaveFormat, data []byte) []byte {
	blockAlign := format.NumChannels * format.Stride()

	buf := bytes.NewBuffer(make([]byte, 0, 44+len(data)))
	buf.WriteString("RIFF")
	binary.Write(buf, binary.LittleEndian, uint32(36+len(data)))
	buf.WriteString("WAVEfmt ")
	binary.Write(buf, binary.LittleEndian, uint32(16))
	binary.Write(buf, binary.LittleEndian, uint16(format.SampleType))
	binary.Write(buf, binary.LittleEndian, uint16(format.NumChannels))
	binary.Write(buf, binary.LittleEndian, uint32(format.SamplesPerSecond))
	binary.Write(buf, binary.LittleEndian, uint32(format.SamplesPerSecond*blockAlign))
	binary.Write(buf, binary.LittleEndian, uint16(blockAlign))
	binary.Write(buf, binary.LittleEndian, uint16(format.BitsPerSample))
	buf.WriteString("data")
	binary.Write(buf, binary.LittleEndian, uint32(len(data)))
	buf.Write(data)
	return buf.Bytes()
}
