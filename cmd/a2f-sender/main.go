// ABOUTME: Entry point for the test sender
// ABOUTME: Replays an audio file and keyframe export into a running bridge
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Resonate-Protocol/livelink-go/internal/config"
	"github.com/Resonate-Protocol/livelink-go/internal/discovery"
	"github.com/Resonate-Protocol/livelink-go/internal/logging"
	"github.com/Resonate-Protocol/livelink-go/internal/sender"
)

var (
	remoteAddr     = flag.String("remote-addr", "localhost", "Bridge network name/IP address")
	audioPort      = flag.Int("audio-port", sender.DefaultAudioPort, "Audio socket port")
	animationPort  = flag.Int("animation-port", sender.DefaultAnimationPort, "Animation socket port")
	audioFile      = flag.String("audio", "", "Audio file to send (WAV, MP3, FLAC, Opus). If not specified, sends a test tone")
	framesFile     = flag.String("frames", "", "Keyframe JSON export to send")
	chunkSize      = flag.Int("chunk-size", sender.DefaultChunkSize, "Audio samples sent per frame")
	frameTime      = flag.Duration("frame-time", sender.DefaultFrameTime, "Time between frames; 0 sends everything as one burst")
	fps            = flag.Int("fps", sender.DefaultFPS, "Frame rate announced for bursts")
	audioDelay     = flag.Duration("audio-delay", 0, "Delay before sending audio")
	animationDelay = flag.Duration("animation-delay", 0, "Delay before sending keyframes")
	noAudio        = flag.Bool("no-audio", false, "Send no audio data")
	toneLength     = flag.Duration("tone", 3*time.Second, "Length of the generated test tone")
	toneRate       = flag.Int("tone-rate", 16000, "Sample rate of the generated test tone")
	discover       = flag.Bool("discover", false, "Find the bridge via mDNS instead of -remote-addr")
	debug          = flag.Bool("debug", false, "Enable debug logging")
)

func main() {
	flag.Parse()

	level := "info"
	if *debug {
		level = "debug"
	}
	log, err := logging.Init(config.LoggingConfig{Level: level, Format: "console", Output: "stderr"})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialise logging: %v\n", err)
		os.Exit(1)
	}
	defer logging.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := sender.DefaultConfig()
	cfg.Host = *remoteAddr
	cfg.AudioPort = *audioPort
	cfg.AnimationPort = *animationPort
	cfg.ChunkSize = *chunkSize
	cfg.FrameTime = *frameTime
	cfg.FPS = *fps
	cfg.AudioDelay = *audioDelay
	cfg.AnimationDelay = *animationDelay
	cfg.NoAudio = *noAudio
	cfg.Logger = log

	if *discover {
		log.Infof("Browsing for %s bridges...", discovery.ServiceType)
		found, err := discovery.Browse(ctx, 5*time.Second)
		if err != nil {
			log.Fatalf("Discovery failed: %v", err)
		}
		if len(found) == 0 {
			log.Fatalf("No bridge found after 5 seconds")
		}
		b := found[0]
		log.Infof("Discovered %s at %s (animation %d, audio %d, %d Hz)", b.Name, b.Host, b.AnimationPort, b.AudioPort, b.SampleRate)
		cfg.Host = b.Host
		cfg.AnimationPort = b.AnimationPort
		cfg.AudioPort = b.AudioPort
		if b.SampleRate > 0 {
			*toneRate = b.SampleRate
		}
	}

	var frames [][]byte
	if *framesFile != "" {
		frames, err = sender.LoadFramesFile(*framesFile)
		if err != nil {
			log.Fatalf("Failed to load keyframes: %v", err)
		}
		log.Infof("Loaded %d keyframes from %s", len(frames), *framesFile)
	} else {
		log.Warn("No keyframe file given, sending audio only")
	}

	var src sender.Source
	if !*noAudio {
		if *audioFile != "" {
			src, err = sender.OpenSource(*audioFile)
			if err != nil {
				log.Fatalf("Failed to open audio: %v", err)
			}
		} else {
			src = sender.NewToneSource(sender.DefaultToneFrequency, *toneRate, *toneLength)
		}
		defer src.Close()
		log.Infof("Audio format: %s", src.Format())
	}

	s, err := sender.New(cfg)
	if err != nil {
		log.Fatalf("Invalid sender configuration: %v", err)
	}
	if err := s.Connect(ctx); err != nil {
		log.Fatalf("Connection failed: %v", err)
	}
	defer s.Close()

	if _, err := s.Run(ctx, src, frames); err != nil {
		log.Errorf("Stream aborted: %v", err)
		return
	}
}
