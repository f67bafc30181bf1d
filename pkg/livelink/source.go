// ABOUTME: High-level live link source combining listeners, frame player and mixer
// ABOUTME: Receives synchronized audio and animation streams from an A2F sender
package livelink

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Resonate-Protocol/livelink-go/internal/listener"
	"github.com/Resonate-Protocol/livelink-go/internal/player"
	"github.com/Resonate-Protocol/livelink-go/pkg/animation"
	"github.com/Resonate-Protocol/livelink-go/pkg/audio/mixer"
	"github.com/Resonate-Protocol/livelink-go/pkg/protocol"
)

var (
	// ErrAlreadyStarted is returned by a second Start
	ErrAlreadyStarted = errors.New("source already started")
	// ErrClosed is returned when starting a closed source
	ErrClosed = errors.New("source closed")
)

// Config holds source configuration
type Config struct {
	// Host to bind both listeners to; empty binds all interfaces
	Host string

	// Connection carries the ports and the output sample rate
	Connection Connection

	// AnimationDelayMs and AudioDelayMs are the initial channel delays,
	// clamped to [0, MaxDelayMs]
	AnimationDelayMs int
	AudioDelayMs     int

	// SegmentSize is the mixer segment capacity in bytes
	SegmentSize int

	// PollInterval and Spin configure the frame player loop
	PollInterval time.Duration
	Spin         bool

	// Consumer additionally receives decoded animation
	Consumer animation.Consumer

	// Observer receives listener events
	Observer listener.Observer

	Logger *zap.SugaredLogger
}

// DefaultConfig returns the default configuration for a connection
func DefaultConfig(conn Connection) Config {
	return Config{
		Connection:       conn,
		AnimationDelayMs: DefaultAnimationDelayMs,
		AudioDelayMs:     DefaultAudioDelayMs,
		SegmentSize:      mixer.DefaultSegmentSize,
		PollInterval:     player.DefaultPollInterval,
	}
}

// Status is a snapshot of the whole source
type Status struct {
	ID               string          `json:"id"`
	Running          bool            `json:"running"`
	Uptime           time.Duration   `json:"uptime"`
	SampleRate       int             `json:"sample_rate"`
	Animation        listener.Status `json:"animation"`
	Audio            listener.Status `json:"audio"`
	AnimationDelayMs int             `json:"animation_delay_ms"`
	AudioDelayMs     int             `json:"audio_delay_ms"`
	Player           player.Stats    `json:"player"`
	Mixer            mixer.Stats     `json:"mixer"`
	Subjects         int             `json:"subjects"`
	FramesDecoded    int64           `json:"frames_decoded"`
	FramesFailed     int64           `json:"frames_failed"`
}

// Source receives an audio stream and an animation stream on two TCP ports,
// plays them back on a shared schedule and exposes the results: audio through
// Mixer, animation through the configured Consumer and Store.
type Source struct {
	id     string
	config Config
	log    *zap.SugaredLogger

	player  *player.FramePlayer
	mixer   *mixer.Mixer
	decoder *animation.Decoder
	store   *animation.Store

	animation *animationChannel
	audio     *audioChannel
	listeners [len(protocol.Channels)]*listener.Listener

	mu        sync.Mutex
	started   bool
	closed    bool
	startedAt time.Time
	cancel    context.CancelFunc
	wg        sync.WaitGroup
}

// NewSource builds a source. Call Start to open the ports.
func NewSource(config Config) (*Source, error) {
	if err := config.Connection.Validate(); err != nil {
		return nil, err
	}
	if config.Logger == nil {
		config.Logger = zap.NewNop().Sugar()
	}

	id := uuid.New().String()
	log := config.Logger.With("source", id)

	s := &Source{
		id:     id,
		config: config,
		log:    log,
		player: player.New(player.Config{
			PollInterval: config.PollInterval,
			Spin:         config.Spin,
			Logger:       log.Named("player"),
		}),
		mixer: mixer.New(mixer.Config{SegmentSize: config.SegmentSize}),
		store: animation.NewStore(),
	}

	consumers := animation.Multi{s.store}
	if config.Consumer != nil {
		consumers = append(consumers, config.Consumer)
	}
	s.decoder = animation.NewDecoder(consumers, log.Named("animation"))

	s.animation = newAnimationChannel(s.decoder, config.AnimationDelayMs)
	s.audio = newAudioChannel(s.mixer, config.AudioDelayMs, log.Named("audio"))

	for _, ch := range []listenerChannel{s.animation, s.audio} {
		port := config.Connection.AnimationPort
		if ch.Channel() == protocol.ChannelAudio {
			port = config.Connection.AudioPort
		}
		s.listeners[ch.Channel()] = listener.New(listener.Config{
			Address:   net.JoinHostPort(config.Host, strconv.Itoa(port)),
			Channel:   ch,
			Scheduler: s.player,
			Observer:  config.Observer,
			Logger:    log.Named("listener"),
		})
	}

	return s, nil
}

type listenerChannel interface {
	listener.Channel
	player.Sink
}

// Start runs the frame player, registers the channel sinks and opens both
// listeners. The mixer is activated once everything is listening.
func (s *Source) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}
	if s.started {
		return ErrAlreadyStarted
	}

	runCtx, cancel := context.WithCancel(ctx)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.player.Run(runCtx)
	}()

	s.player.RegisterSink(protocol.ChannelAnimation, s.animation)
	s.player.RegisterSink(protocol.ChannelAudio, s.audio)

	var opened []*listener.Listener
	for _, ch := range []protocol.Channel{protocol.ChannelAnimation, protocol.ChannelAudio} {
		l := s.listeners[ch]
		if err := l.Start(runCtx); err != nil {
			for _, o := range opened {
				o.Close()
			}
			cancel()
			s.wg.Wait()
			return fmt.Errorf("failed to start %s listener: %w", ch, err)
		}
		opened = append(opened, l)
	}

	s.mixer.Activate()
	s.cancel = cancel
	s.started = true
	s.startedAt = time.Now()

	s.log.Infof("Live link source started (animation %s, audio %s, %d Hz)",
		s.listeners[protocol.ChannelAnimation].Addr(),
		s.listeners[protocol.ChannelAudio].Addr(),
		s.config.Connection.SampleRate)
	return nil
}

// Close stops the listeners, discards pending packets and removes every
// subject. Safe to call more than once.
func (s *Source) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	if !s.started {
		return nil
	}

	var errs []error
	for _, l := range s.listeners {
		if err := l.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			errs = append(errs, err)
		}
	}

	s.player.Reset()
	s.cancel()
	s.wg.Wait()

	s.mixer.Deactivate()
	s.decoder.ClearAllSubjects()

	s.log.Infof("Live link source stopped")
	return errors.Join(errs...)
}

// ID returns the source's unique id
func (s *Source) ID() string {
	return s.id
}

// Addr returns the bound address of a channel's listener, nil before Start
func (s *Source) Addr(ch protocol.Channel) net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.listeners[ch].Addr()
}

// Mixer returns the audio mixer to render from
func (s *Source) Mixer() *mixer.Mixer {
	return s.mixer
}

// Store returns the latest animation state per subject
func (s *Source) Store() *animation.Store {
	return s.store
}

// SampleRate returns the configured output sample rate
func (s *Source) SampleRate() int {
	return s.config.Connection.SampleRate
}

// SetDelay changes a channel's delay, clamped to [0, MaxDelayMs]
func (s *Source) SetDelay(ch protocol.Channel, ms int) {
	switch ch {
	case protocol.ChannelAnimation:
		s.animation.set(ms)
	case protocol.ChannelAudio:
		s.audio.set(ms)
	}
	s.log.Infof("Set %s delay to %dms", ch, clampDelay(ms))
}

// Delay returns a channel's current delay in milliseconds
func (s *Source) Delay(ch protocol.Channel) int {
	if ch == protocol.ChannelAudio {
		return s.audio.DelayMs()
	}
	return s.animation.DelayMs()
}

// Status returns a snapshot of listeners, player, mixer and decoder state
func (s *Source) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	running := s.started && !s.closed

	decoded, failed := s.decoder.Counts()
	st := Status{
		ID:               s.id,
		Running:          running,
		SampleRate:       s.config.Connection.SampleRate,
		Animation:        s.listeners[protocol.ChannelAnimation].Status(),
		Audio:            s.listeners[protocol.ChannelAudio].Status(),
		AnimationDelayMs: s.animation.DelayMs(),
		AudioDelayMs:     s.audio.DelayMs(),
		Player:           s.player.Stats(),
		Mixer:            s.mixer.Stats(),
		Subjects:         s.store.Len(),
		FramesDecoded:    decoded,
		FramesFailed:     failed,
	}
	if running {
		st.Uptime = time.Since(s.startedAt)
	}
	return st
}
