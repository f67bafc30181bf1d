// ABOUTME: Audio output tests
// ABOUTME: Verifies backend selection, software volume and the null render loop
package output

import (
	"encoding/binary"
	"math"
	"sync/atomic"
	"testing"
	"time"
)

type constRenderer struct {
	value float32
	calls atomic.Int64
}

func (c *constRenderer) Render(out []float32, channels, sampleRate int) {
	c.calls.Add(1)
	for i := range out {
		out[i] += c.value
	}
}

func TestBackendsImplementOutput(t *testing.T) {
	var _ Output = (*Malgo)(nil)
	var _ Output = (*Oto)(nil)
	var _ Output = (*PortAudio)(nil)
	var _ Output = (*Null)(nil)
}

func TestNewBackend(t *testing.T) {
	tests := []struct {
		backend string
		wantErr bool
	}{
		{BackendMalgo, false},
		{"", false},
		{BackendOto, false},
		{BackendPortAudio, false},
		{BackendNull, false},
		{"alsa", true},
	}

	for _, tt := range tests {
		out, err := New(tt.backend, nil)
		if (err != nil) != tt.wantErr {
			t.Errorf("%q: unexpected error state %v", tt.backend, err)
		}
		if err == nil && out.Volume() != 100 {
			t.Errorf("%q: expected default volume 100, got %d", tt.backend, out.Volume())
		}
	}
}

func TestVolumeRender(t *testing.T) {
	tests := []struct {
		name   string
		volume int
		muted  bool
		input  float32
		want   float32
	}{
		{"full", 100, false, 0.5, 0.5},
		{"half", 50, false, 0.5, 0.25},
		{"muted", 100, true, 0.5, 0},
		{"clip high", 100, false, 1.5, 1},
		{"clip low", 100, false, -2, -1},
		{"volume clamped", 250, false, 0.5, 0.5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var v volume
			v.reset()
			v.SetVolume(tt.volume)
			v.SetMuted(tt.muted)

			buf := []float32{9, 9, 9, 9} // stale data must be cleared
			v.render(&constRenderer{value: tt.input}, buf, 2, 48000)
			for i, s := range buf {
				if s != tt.want {
					t.Errorf("sample %d: expected %v, got %v", i, tt.want, s)
				}
			}
		})
	}
}

func TestEncodeFloat32LE(t *testing.T) {
	dst := make([]byte, 10) // room for two samples only
	n := encodeFloat32LE(dst, []float32{0.5, -1, 0.25})
	if n != 8 {
		t.Fatalf("expected 8 bytes, got %d", n)
	}
	if got := math.Float32frombits(binary.LittleEndian.Uint32(dst[4:])); got != -1 {
		t.Errorf("expected -1, got %v", got)
	}
}

func TestRenderReaderAlignsToFrames(t *testing.T) {
	var v volume
	v.reset()
	rr := &renderReader{vol: &v, channels: 2, sampleRate: 48000}
	rr.setRenderer(&constRenderer{value: 0.5})

	p := make([]byte, 20) // 2.5 stereo frames
	n, err := rr.Read(p)
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if n != 16 {
		t.Errorf("expected 16 bytes, got %d", n)
	}
}

func TestNullOutputPullsRenderer(t *testing.T) {
	r := &constRenderer{value: 0.25}
	out := NewNull(nil)
	if err := out.Open(48000, 2, r); err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if err := out.Open(48000, 2, r); err == nil {
		t.Error("expected second Open to fail")
	}

	deadline := time.Now().Add(2 * time.Second)
	for r.calls.Load() < 2 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if err := out.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if r.calls.Load() < 2 {
		t.Fatalf("expected renderer to be pulled, got %d calls", r.calls.Load())
	}
	if out.Peak() != 0.25 {
		t.Errorf("expected peak 0.25, got %v", out.Peak())
	}
}

func TestMalgoCallbackFollowsRendererSwap(t *testing.T) {
	m := NewMalgo(nil)
	m.channels = 2
	m.sampleRate = 48000

	p := make([]byte, 16)
	m.dataCallback(p, 2)
	for i := 0; i < 4; i++ {
		if got := math.Float32frombits(binary.LittleEndian.Uint32(p[i*4:])); got != 0 {
			t.Fatalf("expected silence without a renderer, got %v", got)
		}
	}

	first, second := &constRenderer{value: 0.25}, &constRenderer{value: 0.5}
	m.renderer.Store(&rendererRef{first})

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 100; i++ {
			m.renderer.Store(&rendererRef{second})
		}
	}()
	for i := 0; i < 100; i++ {
		m.dataCallback(p, 2)
	}
	<-done

	m.dataCallback(p, 2)
	if got := math.Float32frombits(binary.LittleEndian.Uint32(p)); got != 0.5 {
		t.Errorf("expected output from the swapped renderer, got %v", got)
	}
}
