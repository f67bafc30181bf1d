// ABOUTME: Tests for the two-socket sender
// ABOUTME: Captures both channels over loopback and checks framing and ordering
package sender

import (
	"context"
	"errors"
	"io"
	"net"
	"testing"
	"time"

	"github.com/Resonate-Protocol/livelink-go/pkg/protocol"
)

type capture struct {
	ln     net.Listener
	frames chan [][]byte
}

func listen(t *testing.T) *capture {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen failed: %v", err)
	}
	c := &capture{ln: ln, frames: make(chan [][]byte, 1)}
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			close(c.frames)
			return
		}
		defer conn.Close()
		data, _ := io.ReadAll(conn)

		var a protocol.Assembler
		var out [][]byte
		a.Feed(data, func(p []byte) { out = append(out, p) })
		c.frames <- out
	}()
	t.Cleanup(func() { ln.Close() })
	return c
}

func (c *capture) port() int {
	return c.ln.Addr().(*net.TCPAddr).Port
}

func (c *capture) wait(t *testing.T) [][]byte {
	t.Helper()
	select {
	case f := <-c.frames:
		return f
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for capture")
		return nil
	}
}

func TestSenderBurst(t *testing.T) {
	audioCap, animCap := listen(t), listen(t)

	cfg := DefaultConfig()
	cfg.Host = "127.0.0.1"
	cfg.AudioPort = audioCap.port()
	cfg.AnimationPort = animCap.port()
	cfg.ChunkSize = 500
	cfg.FrameTime = 0

	s, err := New(cfg)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if err := s.Connect(context.Background()); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}

	frames := [][]byte{[]byte(`{"A":{}}`), []byte(`{"A":{}}`), []byte(`{}`)}
	src := NewToneSource(DefaultToneFrequency, 16000, 100*time.Millisecond)

	stats, err := s.Run(context.Background(), src, frames)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	s.Close()

	if stats.AudioChunks != 4 || stats.AudioBytes != 3200 || stats.AnimationFrames != 3 {
		t.Errorf("unexpected stats %+v", stats)
	}

	audio := audioCap.wait(t)
	if len(audio) != 6 {
		t.Fatalf("expected header, 4 chunks and EOS on audio, got %d frames", len(audio))
	}
	if string(audio[0]) != "WAVE:16000:1:16:1" {
		t.Errorf("unexpected wave header %q", audio[0])
	}
	if len(audio[1]) != 1000 || len(audio[4]) != 200 {
		t.Errorf("unexpected chunk sizes %d and %d", len(audio[1]), len(audio[4]))
	}
	if string(audio[5]) != protocol.EndOfStream {
		t.Errorf("expected EOS, got %q", audio[5])
	}

	anim := animCap.wait(t)
	want := []string{"A2F:30", `{"A":{}}`, `{"A":{}}`, `{}`, "EOS"}
	if len(anim) != len(want) {
		t.Fatalf("expected %d animation frames, got %d", len(want), len(anim))
	}
	for i := range want {
		if string(anim[i]) != want[i] {
			t.Errorf("animation frame %d: expected %q, got %q", i, want[i], anim[i])
		}
	}
}

func TestSenderPacedWithoutAudio(t *testing.T) {
	animCap := listen(t)

	cfg := DefaultConfig()
	cfg.Host = "127.0.0.1"
	cfg.AnimationPort = animCap.port()
	cfg.AudioPort = 0
	cfg.FrameTime = 2 * time.Millisecond
	cfg.NoAudio = true

	s, err := New(cfg)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if err := s.Connect(context.Background()); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	if _, err := s.Run(context.Background(), nil, [][]byte{[]byte(`{"A":{}}`), []byte(`{"B":{}}`)}); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	s.Close()

	anim := animCap.wait(t)
	want := []string{`{"A":{}}`, `{"B":{}}`, "EOS"}
	if len(anim) != len(want) {
		t.Fatalf("expected %d frames without a header, got %d", len(want), len(anim))
	}
	for i := range want {
		if string(anim[i]) != want[i] {
			t.Errorf("frame %d: expected %q, got %q", i, want[i], anim[i])
		}
	}
}

func TestSenderCancel(t *testing.T) {
	animCap := listen(t)

	cfg := DefaultConfig()
	cfg.Host = "127.0.0.1"
	cfg.AnimationPort = animCap.port()
	cfg.FrameTime = time.Hour
	cfg.NoAudio = true

	s, _ := New(cfg)
	if err := s.Connect(context.Background()); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	defer s.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := s.Run(ctx, nil, [][]byte{[]byte(`{}`)}); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestSenderConfigValidation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero chunk", func(c *Config) { c.ChunkSize = 0 }},
		{"zero fps", func(c *Config) { c.FPS = 0 }},
		{"negative frame time", func(c *Config) { c.FrameTime = -time.Second }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			if _, err := New(cfg); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestSenderRunRequiresConnect(t *testing.T) {
	s, err := New(DefaultConfig())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if _, err := s.Run(context.Background(), nil, nil); !errors.Is(err, ErrNotConnected) {
		t.Errorf("expected ErrNotConnected, got %v", err)
	}
}
