// ABOUTME: Two-socket sender replaying audio and keyframes into a bridge
// ABOUTME: Supports paced streaming at a fixed frame time or a single burst
package sender

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/Resonate-Protocol/livelink-go/pkg/protocol"
)

// Defaults matching the Audio2Face exporter
const (
	DefaultAnimationPort = 12030
	DefaultAudioPort     = 12031
	DefaultChunkSize     = 4000
	DefaultFrameTime     = 33 * time.Millisecond
	DefaultFPS           = 30
)

// ErrNotConnected is returned by Run before Connect succeeds
var ErrNotConnected = errors.New("sender is not connected")

// burstIdle is how long a burst waits when a delayed channel has nothing to send yet
const burstIdle = time.Millisecond

// Config controls a sender run
type Config struct {
	Host          string
	AnimationPort int
	AudioPort     int
	// ChunkSize is the number of samples per channel sent each tick
	ChunkSize int
	// FrameTime is the tick period. Zero sends everything as one burst.
	FrameTime time.Duration
	// FPS is announced in the A2F header of a burst
	FPS            int
	AudioDelay     time.Duration
	AnimationDelay time.Duration
	NoAudio        bool
	Logger         *zap.SugaredLogger
}

// DefaultConfig returns the exporter's defaults against localhost
func DefaultConfig() Config {
	return Config{
		Host:          "localhost",
		AnimationPort: DefaultAnimationPort,
		AudioPort:     DefaultAudioPort,
		ChunkSize:     DefaultChunkSize,
		FrameTime:     DefaultFrameTime,
		FPS:           DefaultFPS,
	}
}

// Stats summarizes a run
type Stats struct {
	AudioChunks     int
	AudioBytes      int64
	AnimationFrames int
	Duration        time.Duration
}

// Sender streams one clip over the two channels
type Sender struct {
	cfg       Config
	log       *zap.SugaredLogger
	audioConn net.Conn
	animConn  net.Conn
}

// New validates cfg and creates an unconnected sender
func New(cfg Config) (*Sender, error) {
	if cfg.ChunkSize <= 0 {
		return nil, fmt.Errorf("chunk size must be positive, got %d", cfg.ChunkSize)
	}
	if cfg.FPS <= 0 {
		return nil, fmt.Errorf("fps must be positive, got %d", cfg.FPS)
	}
	if cfg.FrameTime < 0 {
		return nil, fmt.Errorf("frame time must not be negative, got %s", cfg.FrameTime)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Sender{cfg: cfg, log: logger}, nil
}

// Connect dials the audio port (unless disabled) and the animation port
func (s *Sender) Connect(ctx context.Context) error {
	var d net.Dialer

	if !s.cfg.NoAudio {
		addr := net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.AudioPort))
		s.log.Infof("Connecting to %s for audio data", addr)
		conn, err := d.DialContext(ctx, "tcp", addr)
		if err != nil {
			return fmt.Errorf("failed to connect audio channel: %w", err)
		}
		s.audioConn = conn
	}

	addr := net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.AnimationPort))
	s.log.Infof("Connecting to %s for animation data", addr)
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		s.Close()
		return fmt.Errorf("failed to connect animation channel: %w", err)
	}
	s.animConn = conn
	return nil
}

type run struct {
	src    Source
	frames [][]byte
	buf    []byte
	start  time.Time

	audioHeaderSent bool
	audioDone       bool
	animHeaderSent  bool
	nextFrame       int

	stats Stats
}

func (r *run) done() bool {
	return r.audioDone && r.nextFrame >= len(r.frames)
}

// Run streams src and frames and finishes both channels with EOS. src may
// be nil when audio is disabled. Each tick sends one audio chunk and one
// keyframe. Only a burst announces the animation frame rate, since a
// header is what opens a burst on the receiving side.
func (s *Sender) Run(ctx context.Context, src Source, frames [][]byte) (Stats, error) {
	if s.animConn == nil {
		return Stats{}, ErrNotConnected
	}

	r := &run{src: src, frames: frames, start: time.Now()}
	if s.cfg.NoAudio || src == nil {
		r.audioDone = true
		r.audioHeaderSent = true
	} else {
		f := src.Format()
		r.buf = make([]byte, s.cfg.ChunkSize*f.NumChannels*f.Stride())
		s.log.Infof("Wave data stream header: %s", protocol.WaveHeader(f))
	}
	burst := s.cfg.FrameTime <= 0
	if !burst {
		r.animHeaderSent = true
	}

	if burst {
		for !r.done() {
			if err := ctx.Err(); err != nil {
				return r.stats, err
			}
			sent, err := s.step(r, burst)
			if err != nil {
				return r.stats, err
			}
			if !sent {
				time.Sleep(burstIdle)
			}
		}
	} else {
		ticker := time.NewTicker(s.cfg.FrameTime)
		defer ticker.Stop()
		for !r.done() {
			select {
			case <-ctx.Done():
				return r.stats, ctx.Err()
			case <-ticker.C:
				if _, err := s.step(r, burst); err != nil {
					return r.stats, err
				}
			}
		}
	}

	if err := s.sendEOS(); err != nil {
		return r.stats, err
	}
	r.stats.Duration = time.Since(r.start)
	s.log.Infof("Stream complete: %d audio chunks (%d bytes), %d animation frames in %s",
		r.stats.AudioChunks, r.stats.AudioBytes, r.stats.AnimationFrames, r.stats.Duration.Round(time.Millisecond))
	return r.stats, nil
}

// step sends at most one audio chunk and one keyframe, honouring the
// per-channel start delays. It reports whether anything was written.
func (s *Sender) step(r *run, burst bool) (bool, error) {
	elapsed := time.Since(r.start)
	sent := false

	if !r.audioDone && elapsed >= s.cfg.AudioDelay {
		if !r.audioHeaderSent {
			if err := protocol.WriteFrame(s.audioConn, protocol.WaveHeader(r.src.Format())); err != nil {
				return sent, fmt.Errorf("failed to send wave header: %w", err)
			}
			r.audioHeaderSent = true
			s.log.Debug("Audio header sent")
		}

		n, err := io.ReadFull(r.src, r.buf)
		if n > 0 {
			if werr := protocol.WriteFrame(s.audioConn, r.buf[:n]); werr != nil {
				return sent, fmt.Errorf("failed to send audio chunk: %w", werr)
			}
			r.stats.AudioChunks++
			r.stats.AudioBytes += int64(n)
			sent = true
		}
		switch {
		case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
			r.audioDone = true
			s.log.Debug("All audio sent")
		case err != nil:
			return sent, fmt.Errorf("failed to read audio: %w", err)
		}
	}

	if r.nextFrame < len(r.frames) && elapsed >= s.cfg.AnimationDelay {
		if burst && !r.animHeaderSent {
			if err := protocol.WriteFrame(s.animConn, protocol.AnimationHeader(s.cfg.FPS)); err != nil {
				return sent, fmt.Errorf("failed to send animation header: %w", err)
			}
			r.animHeaderSent = true
			s.log.Debug("Animation header sent")
		}
		if err := protocol.WriteFrame(s.animConn, r.frames[r.nextFrame]); err != nil {
			return sent, fmt.Errorf("failed to send animation frame %d: %w", r.nextFrame, err)
		}
		r.nextFrame++
		r.stats.AnimationFrames++
		sent = true
		if r.nextFrame == len(r.frames) {
			s.log.Debug("All animation frames sent")
		}
	}
	return sent, nil
}

func (s *Sender) sendEOS() error {
	eos := []byte(protocol.EndOfStream)
	if s.audioConn != nil {
		if err := protocol.WriteFrame(s.audioConn, eos); err != nil {
			return fmt.Errorf("failed to send audio EOS: %w", err)
		}
	}
	if err := protocol.WriteFrame(s.animConn, eos); err != nil {
		return fmt.Errorf("failed to send animation EOS: %w", err)
	}
	return nil
}

// Close closes both sockets
func (s *Sender) Close() error {
	var errs []error
	if s.audioConn != nil {
		errs = append(errs, s.audioConn.Close())
		s.audioConn = nil
	}
	if s.animConn != nil {
		errs = append(errs, s.animConn.Close())
		s.animConn = nil
	}
	return errors.Join(errs...)
}
