// ABOUTME: Tests for sender audio sources and keyframe loading
// ABOUTME: Covers WAV chunk walking, the tone generator and frame ordering
package sender

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/Resonate-Protocol/livelink-go/pkg/audio"
)

func TestWAVSourceRoundTrip(t *testing.T) {
	format := audio.WaveFormat{SamplesPerSecond: 16000, NumChannels: 2, BitsPerSample: 16, SampleType: audio.SampleTypePCM}
	data := []byte{1, 2, 3, 4, 5, 6, 7, 8}

	src, err := NewWAVSource(bytes.NewReader(EncodeWAV(format, data)))
	if err != nil {
		t.Fatalf("NewWAVSource failed: %v", err)
	}
	if src.Format() != format {
		t.Errorf("expected format %v, got %v", format, src.Format())
	}
	if src.DataSize() != int64(len(data)) {
		t.Errorf("expected data size %d, got %d", len(data), src.DataSize())
	}
	got, err := io.ReadAll(src)
	if err != nil {
		t.Fatalf("ReadAll failed: %v", err)
	}
	if !bytes.Equal(got, data) {
		t.Errorf("expected %v, got %v", data, got)
	}
}

func TestWAVSourceSkipsUnknownChunks(t *testing.T) {
	format := audio.WaveFormat{SamplesPerSecond: 22050, NumChannels: 1, BitsPerSample: 16, SampleType: audio.SampleTypePCM}
	wav := EncodeWAV(format, []byte{9, 9})

	// splice an odd-sized LIST chunk between fmt and data
	list := append([]byte("LIST\x03\x00\x00\x00abc"), 0)
	spliced := append(append(append([]byte{}, wav[:36]...), list...), wav[36:]...)

	src, err := NewWAVSource(bytes.NewReader(spliced))
	if err != nil {
		t.Fatalf("NewWAVSource failed: %v", err)
	}
	got, _ := io.ReadAll(src)
	if !bytes.Equal(got, []byte{9, 9}) {
		t.Errorf("expected data after LIST chunk, got %v", got)
	}
}

func TestWAVSourceExtensibleFormat(t *testing.T) {
	var buf bytes.Buffer
	buf.WriteString("RIFF")
	binary.Write(&buf, binary.LittleEndian, uint32(0))
	buf.WriteString("WAVEfmt ")
	binary.Write(&buf, binary.LittleEndian, uint32(40))
	fmtBody := make([]byte, 40)
	binary.LittleEndian.PutUint16(fmtBody[0:], waveFormatExtensible)
	binary.LittleEndian.PutUint16(fmtBody[2:], 2)
	binary.LittleEndian.PutUint32(fmtBody[4:], 48000)
	binary.LittleEndian.PutUint16(fmtBody[14:], 32)
	binary.LittleEndian.PutUint16(fmtBody[24:], audio.SampleTypeFloat)
	buf.Write(fmtBody)
	buf.WriteString("data")
	binary.Write(&buf, binary.LittleEndian, uint32(0))

	src, err := NewWAVSource(&buf)
	if err != nil {
		t.Fatalf("NewWAVSource failed: %v", err)
	}
	want := audio.WaveFormat{SamplesPerSecond: 48000, NumChannels: 2, BitsPerSample: 32, SampleType: audio.SampleTypeFloat}
	if src.Format() != want {
		t.Errorf("expected %v, got %v", want, src.Format())
	}
}

func TestWAVSourceInvalid(t *testing.T) {
	format := audio.WaveFormat{SamplesPerSecond: 16000, NumChannels: 1, BitsPerSample: 16, SampleType: audio.SampleTypePCM}
	wav := EncodeWAV(format, []byte{1, 2})

	tests := []struct {
		name string
		data []byte
	}{
		{"garbage", []byte("definitely not a wav file")},
		{"empty", nil},
		{"no data chunk", wav[:36]},
		{"data before fmt", append([]byte("RIFF\x00\x00\x00\x00WAVE"), wav[36:]...)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewWAVSource(bytes.NewReader(tt.data)); !errors.Is(err, ErrInvalidWAV) {
				t.Errorf("expected ErrInvalidWAV, got %v", err)
			}
		})
	}
}

func TestOpenSource(t *testing.T) {
	dir := t.TempDir()

	wavPath := filepath.Join(dir, "clip.wav")
	format := audio.WaveFormat{SamplesPerSecond: 16000, NumChannels: 1, BitsPerSample: 16, SampleType: audio.SampleTypePCM}
	if err := os.WriteFile(wavPath, EncodeWAV(format, []byte{0, 0}), 0o644); err != nil {
		t.Fatal(err)
	}
	src, err := OpenSource(wavPath)
	if err != nil {
		t.Fatalf("OpenSource failed: %v", err)
	}
	if src.Format() != format {
		t.Errorf("unexpected format %v", src.Format())
	}
	if err := src.Close(); err != nil {
		t.Errorf("Close failed: %v", err)
	}

	txtPath := filepath.Join(dir, "notes.txt")
	os.WriteFile(txtPath, []byte("hi"), 0o644)
	if _, err := OpenSource(txtPath); err == nil || !strings.Contains(err.Error(), "unsupported") {
		t.Errorf("expected unsupported format error, got %v", err)
	}

	if _, err := OpenSource(filepath.Join(dir, "missing.wav")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestToneSource(t *testing.T) {
	src := NewToneSource(DefaultToneFrequency, 8000, 10*time.Millisecond)

	want := audio.WaveFormat{SamplesPerSecond: 8000, NumChannels: 1, BitsPerSample: 16, SampleType: audio.SampleTypePCM}
	if src.Format() != want {
		t.Errorf("expected %v, got %v", want, src.Format())
	}

	data, err := io.ReadAll(src)
	if err != nil {
		t.Fatalf("ReadAll failed: %v", err)
	}
	if len(data) != 160 {
		t.Fatalf("expected 80 samples (160 bytes), got %d bytes", len(data))
	}
	if first := int16(binary.LittleEndian.Uint16(data)); first != 0 {
		t.Errorf("expected tone to start at zero, got %d", first)
	}
	for i := 0; i < len(data); i += 2 {
		v := int16(binary.LittleEndian.Uint16(data[i:]))
		if v > 16384 || v < -16385 {
			t.Fatalf("sample %d out of half-volume range: %d", i/2, v)
		}
	}
}

func TestRequantize16(t *testing.T) {
	tests := []struct {
		sample   int32
		bitDepth int
		want     int16
	}{
		{100, 16, 100},
		{1<<23 - 1, 24, 32767},
		{-1 << 23, 24, -32768},
		{1, 8, 256},
	}
	for _, tt := range tests {
		if got := requantize16(tt.sample, tt.bitDepth); got != tt.want {
			t.Errorf("requantize16(%d, %d) = %d, want %d", tt.sample, tt.bitDepth, got, tt.want)
		}
	}
}

func TestOpusHeadChannels(t *testing.T) {
	page := append([]byte("OggS\x00\x02junkOpusHead\x01"), 2, 0x38, 0x01)
	if got := opusHeadChannels(page); got != 2 {
		t.Errorf("expected 2 channels, got %d", got)
	}
	if got := opusHeadChannels([]byte("OggS no header here")); got != 0 {
		t.Errorf("expected 0 without OpusHead, got %d", got)
	}
}

func TestLoadFrames(t *testing.T) {
	doc := `{"1": {"B": {}}, "0": { "A" : {"Facial": {"Names": ["x"], "Weights": [0.5]}} }, "3": {}}`

	frames, err := LoadFrames(strings.NewReader(doc))
	if err != nil {
		t.Fatalf("LoadFrames failed: %v", err)
	}
	want := []string{`{"A":{"Facial":{"Names":["x"],"Weights":[0.5]}}}`, `{"B":{}}`}
	if len(frames) != len(want) {
		t.Fatalf("expected %d frames, got %d", len(want), len(frames))
	}
	for i := range want {
		if string(frames[i]) != want[i] {
			t.Errorf("frame %d: expected %s, got %s", i, want[i], frames[i])
		}
	}

	if _, err := LoadFrames(strings.NewReader(`[1,2`)); err == nil {
		t.Error("expected error for malformed file")
	}
}
