// ABOUTME: YAML configuration for the live link bridge
// ABOUTME: Loads a file over built-in defaults and validates every section
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// SupportedSampleRates lists the output rates a source may be configured with
var SupportedSampleRates = []int{16000, 22050, 44100, 48000}

// Config represents the complete bridge configuration
type Config struct {
	Source    SourceConfig    `yaml:"source"`
	Player    PlayerConfig    `yaml:"player"`
	Output    OutputConfig    `yaml:"output"`
	HTTP      HTTPConfig      `yaml:"http"`
	Discovery DiscoveryConfig `yaml:"discovery"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// SourceConfig contains listener and delay settings
type SourceConfig struct {
	Host             string `yaml:"host"`
	AnimationPort    int    `yaml:"animation_port"`
	AudioPort        int    `yaml:"audio_port"`
	SampleRate       int    `yaml:"sample_rate"`
	AnimationDelayMs int    `yaml:"animation_delay_ms"`
	AudioDelayMs     int    `yaml:"audio_delay_ms"`
	SegmentSize      int    `yaml:"segment_size"` // bytes
}

// PlayerConfig contains frame player settings
type PlayerConfig struct {
	PollInterval time.Duration `yaml:"poll_interval"`
	Spin         bool          `yaml:"spin"`
}

// OutputConfig contains audio device settings
type OutputConfig struct {
	Backend  string `yaml:"backend"`
	Channels int    `yaml:"channels"`
	Volume   int    `yaml:"volume"`
	Muted    bool   `yaml:"muted"`
}

// HTTPConfig contains status server settings
type HTTPConfig struct {
	Enabled bool   `yaml:"enabled"`
	Address string `yaml:"address"`
}

// DiscoveryConfig contains mDNS advertisement settings
type DiscoveryConfig struct {
	Enabled bool   `yaml:"enabled"`
	Name    string `yaml:"name"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Default returns the built-in configuration
func Default() *Config {
	return &Config{
		Source: SourceConfig{
			AnimationPort:    12030,
			AudioPort:        12031,
			SampleRate:       16000,
			AnimationDelayMs: 150,
			AudioDelayMs:     0,
			SegmentSize:      1 << 20,
		},
		Player: PlayerConfig{
			PollInterval: 250 * time.Microsecond,
		},
		Output: OutputConfig{
			Backend:  "malgo",
			Channels: 2,
			Volume:   100,
		},
		HTTP: HTTPConfig{
			Enabled: true,
			Address: "127.0.0.1:8090",
		},
		Discovery: DiscoveryConfig{
			Enabled: false,
			Name:    "A2F LiveLink",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
			Output: "stderr",
		},
	}
}

// Load reads and parses the configuration file over the defaults
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	config := Default()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return config, nil
}

// Validate performs validation of every section
func (c *Config) Validate() error {
	if err := c.Source.Validate(); err != nil {
		return fmt.Errorf("source config: %w", err)
	}
	if err := c.Player.Validate(); err != nil {
		return fmt.Errorf("player config: %w", err)
	}
	if err := c.Output.Validate(); err != nil {
		return fmt.Errorf("output config: %w", err)
	}
	if err := c.HTTP.Validate(); err != nil {
		return fmt.Errorf("http config: %w", err)
	}
	if err := c.Discovery.Validate(); err != nil {
		return fmt.Errorf("discovery config: %w", err)
	}
	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("logging config: %w", err)
	}
	return nil
}

// Validate validates source configuration
func (s *SourceConfig) Validate() error {
	if s.AnimationPort < 1 || s.AnimationPort > 65535 {
		return fmt.Errorf("animation_port must be between 1 and 65535, got %d", s.AnimationPort)
	}
	if s.AudioPort < 1 || s.AudioPort > 65535 {
		return fmt.Errorf("audio_port must be between 1 and 65535, got %d", s.AudioPort)
	}
	if s.AnimationPort == s.AudioPort {
		return fmt.Errorf("animation_port and audio_port must differ, both are %d", s.AudioPort)
	}

	supported := false
	for _, r := range SupportedSampleRates {
		if s.SampleRate == r {
			supported = true
			break
		}
	}
	if !supported {
		return fmt.Errorf("sample_rate must be one of %v, got %d", SupportedSampleRates, s.SampleRate)
	}

	if s.AnimationDelayMs < 0 || s.AnimationDelayMs > 1000 {
		return fmt.Errorf("animation_delay_ms must be between 0 and 1000, got %d", s.AnimationDelayMs)
	}
	if s.AudioDelayMs < 0 || s.AudioDelayMs > 1000 {
		return fmt.Errorf("audio_delay_ms must be between 0 and 1000, got %d", s.AudioDelayMs)
	}
	if s.SegmentSize < 4096 {
		return fmt.Errorf("segment_size must be at least 4096 bytes, got %d", s.SegmentSize)
	}
	return nil
}

// Validate validates player configuration
func (p *PlayerConfig) Validate() error {
	if p.PollInterval <= 0 && !p.Spin {
		return fmt.Errorf("poll_interval must be positive unless spin is set, got %v", p.PollInterval)
	}
	if p.PollInterval > 100*time.Millisecond {
		return fmt.Errorf("poll_interval must be at most 100ms, got %v", p.PollInterval)
	}
	return nil
}

// Validate validates output configuration
func (o *OutputConfig) Validate() error {
	switch o.Backend {
	case "malgo", "oto", "portaudio", "null":
	default:
		return fmt.Errorf("backend must be one of malgo, oto, portaudio, null, got %q", o.Backend)
	}
	if o.Channels < 1 || o.Channels > 8 {
		return fmt.Errorf("channels must be between 1 and 8, got %d", o.Channels)
	}
	if o.Volume < 0 || o.Volume > 100 {
		return fmt.Errorf("volume must be between 0 and 100, got %d", o.Volume)
	}
	return nil
}

// Validate validates HTTP configuration
func (h *HTTPConfig) Validate() error {
	if h.Enabled && h.Address == "" {
		return fmt.Errorf("http address cannot be empty when HTTP is enabled")
	}
	return nil
}

// Validate validates discovery configuration
func (d *DiscoveryConfig) Validate() error {
	if d.Enabled && d.Name == "" {
		return fmt.Errorf("name cannot be empty when discovery is enabled")
	}
	return nil
}

// Validate validates logging configuration
func (l *LoggingConfig) Validate() error {
	switch l.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("level must be one of debug, info, warn, error, got %q", l.Level)
	}
	switch l.Format {
	case "console", "json":
	default:
		return fmt.Errorf("format must be console or json, got %q", l.Format)
	}
	if l.Output == "" {
		return fmt.Errorf("output cannot be empty")
	}
	return nil
}

// ConnectionString renders the source ports and rate in connection string form
func (s *SourceConfig) ConnectionString() string {
	return fmt.Sprintf("%d;%d;%d", s.AnimationPort, s.AudioPort, s.SampleRate)
}
