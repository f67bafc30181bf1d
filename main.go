// ABOUTME: Entry point for the A2F LiveLink bridge
// ABOUTME: Wires the live link source to audio output, status server, mDNS and TUI
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/Resonate-Protocol/livelink-go/internal/config"
	"github.com/Resonate-Protocol/livelink-go/internal/discovery"
	"github.com/Resonate-Protocol/livelink-go/internal/logging"
	"github.com/Resonate-Protocol/livelink-go/internal/metrics"
	"github.com/Resonate-Protocol/livelink-go/internal/server"
	"github.com/Resonate-Protocol/livelink-go/internal/ui"
	"github.com/Resonate-Protocol/livelink-go/internal/version"
	"github.com/Resonate-Protocol/livelink-go/pkg/audio/output"
	"github.com/Resonate-Protocol/livelink-go/pkg/livelink"
	"github.com/Resonate-Protocol/livelink-go/pkg/protocol"
)

var (
	configPath  = flag.String("config", "", "Path to YAML config file (default: built-in defaults)")
	connection  = flag.String("connection", "", "Connection string <animation port>;<audio port>;<sample rate>, overrides the config")
	backend     = flag.String("backend", "", "Audio backend: malgo, oto, portaudio or null, overrides the config")
	logFile     = flag.String("log-file", "livelink.log", "Log file used while the TUI owns the terminal")
	debug       = flag.Bool("debug", false, "Enable debug logging")
	noTUI       = flag.Bool("no-tui", false, "Disable TUI, use streaming logs instead")
	showVersion = flag.Bool("version", false, "Print version and exit")
)

func main() {
	flag.Parse()

	if *showVersion {
		fmt.Println(version.String())
		return
	}

	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "livelink: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	useTUI := !*noTUI
	if useTUI && (cfg.Logging.Output == "stderr" || cfg.Logging.Output == "stdout") {
		// the dashboard owns the terminal
		cfg.Logging.Output = *logFile
	}

	log, err := logging.Init(cfg.Logging)
	if err != nil {
		return err
	}
	defer logging.Sync()

	log.Infof("Starting %s (connection %s)", version.String(), cfg.Source.ConnectionString())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	m := metrics.New()
	hub := server.NewHub(log.Named("hub"), m)

	srcCfg := livelink.DefaultConfig(livelink.Connection{
		AnimationPort: cfg.Source.AnimationPort,
		AudioPort:     cfg.Source.AudioPort,
		SampleRate:    cfg.Source.SampleRate,
	})
	srcCfg.Host = cfg.Source.Host
	srcCfg.AnimationDelayMs = cfg.Source.AnimationDelayMs
	srcCfg.AudioDelayMs = cfg.Source.AudioDelayMs
	srcCfg.SegmentSize = cfg.Source.SegmentSize
	srcCfg.PollInterval = cfg.Player.PollInterval
	srcCfg.Spin = cfg.Player.Spin
	srcCfg.Consumer = hub
	srcCfg.Observer = m
	srcCfg.Logger = log.Named("source")

	src, err := livelink.NewSource(srcCfg)
	if err != nil {
		return fmt.Errorf("failed to create source: %w", err)
	}
	if err := m.RegisterSource(src); err != nil {
		return fmt.Errorf("failed to register source metrics: %w", err)
	}

	if err := src.Start(ctx); err != nil {
		return err
	}
	defer src.Close()

	out, err := openOutput(cfg.Output, src, log)
	if err != nil {
		return err
	}
	defer out.Close()

	if cfg.HTTP.Enabled {
		srv := server.New(server.Config{
			Address: cfg.HTTP.Address,
			Source:  src,
			Hub:     hub,
			Metrics: m.Handler(),
			Logger:  log.Named("http"),
		})
		if err := srv.Start(); err != nil {
			return err
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				log.Warnf("Status server shutdown error: %v", err)
			}
		}()
	}

	if cfg.Discovery.Enabled {
		disc := discovery.NewManager(discovery.Config{
			ServiceName:   cfg.Discovery.Name,
			AnimationPort: cfg.Source.AnimationPort,
			AudioPort:     cfg.Source.AudioPort,
			SampleRate:    cfg.Source.SampleRate,
			SourceID:      src.ID(),
			Version:       version.Version,
			Logger:        log.Named("mdns"),
		})
		if err := disc.Advertise(); err != nil {
			log.Warnf("mDNS advertisement failed: %v", err)
		} else {
			defer disc.Stop()
		}
	}

	if !useTUI {
		log.Infof("Bridge running, press Ctrl-C to stop")
		<-ctx.Done()
		log.Infof("Shutdown signal received")
		return nil
	}

	model := ui.NewModel(version.String(), src.Status, controller{out: out, src: src}).
		WithVolume(out.Volume(), out.Muted())
	dashboard := ui.New(model)
	go func() {
		if err := dashboard.Run(); err != nil {
			log.Errorf("TUI error: %v", err)
		}
	}()

	select {
	case <-dashboard.Done():
		log.Infof("Received quit signal from TUI")
	case <-ctx.Done():
		log.Infof("Shutdown signal received")
		dashboard.Stop()
		<-dashboard.Done()
	}
	return nil
}

// loadConfig reads the config file and applies flag overrides
func loadConfig() (*config.Config, error) {
	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	if *connection != "" {
		conn, err := livelink.ParseConnectionString(*connection)
		if err != nil {
			return nil, err
		}
		cfg.Source.AnimationPort = conn.AnimationPort
		cfg.Source.AudioPort = conn.AudioPort
		cfg.Source.SampleRate = conn.SampleRate
	}
	if *backend != "" {
		cfg.Output.Backend = *backend
	}
	if *debug {
		cfg.Logging.Level = "debug"
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// openOutput starts the configured device, falling back to the null
// output so the bridge keeps decoding animation without a sound card.
func openOutput(cfg config.OutputConfig, src *livelink.Source, log *zap.SugaredLogger) (output.Output, error) {
	out, err := output.New(cfg.Backend, log.Named("output"))
	if err != nil {
		return nil, err
	}
	out.SetVolume(cfg.Volume)
	out.SetMuted(cfg.Muted)

	if err := out.Open(src.SampleRate(), cfg.Channels, src.Mixer()); err != nil {
		if cfg.Backend == output.BackendNull {
			return nil, fmt.Errorf("failed to open null output: %w", err)
		}
		log.Warnf("Audio output %s unavailable (%v), falling back to null output", cfg.Backend, err)

		out, _ = output.New(output.BackendNull, log.Named("output"))
		out.SetVolume(cfg.Volume)
		out.SetMuted(cfg.Muted)
		if err := out.Open(src.SampleRate(), cfg.Channels, src.Mixer()); err != nil {
			return nil, fmt.Errorf("failed to open null output: %w", err)
		}
	}
	return out, nil
}

// controller routes dashboard keys to the output and the source
type controller struct {
	out output.Output
	src *livelink.Source
}

func (c controller) SetVolume(volume int) { c.out.SetVolume(volume) }

func (c controller) SetMuted(muted bool) { c.out.SetMuted(muted) }

func (c controller) SetDelay(ch protocol.Channel, ms int) { c.src.SetDelay(ch, ms) }
