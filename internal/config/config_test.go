// ABOUTME: Tests for configuration loading and validation
// ABOUTME: Covers defaults, file overrides and per-section errors
package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefaultIsValid(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
}

func TestConfigValidation(t *testing.T) {
	tests := []struct {
		name     string
		mutate   func(c *Config)
		errorMsg string
	}{
		{"valid", func(c *Config) {}, ""},
		{"bad animation port", func(c *Config) { c.Source.AnimationPort = 70000 }, "animation_port"},
		{"same ports", func(c *Config) { c.Source.AudioPort = c.Source.AnimationPort }, "must differ"},
		{"unsupported rate", func(c *Config) { c.Source.SampleRate = 8000 }, "sample_rate"},
		{"delay too large", func(c *Config) { c.Source.AnimationDelayMs = 1500 }, "animation_delay_ms"},
		{"negative audio delay", func(c *Config) { c.Source.AudioDelayMs = -1 }, "audio_delay_ms"},
		{"tiny segment", func(c *Config) { c.Source.SegmentSize = 16 }, "segment_size"},
		{"zero poll", func(c *Config) { c.Player.PollInterval = 0 }, "poll_interval"},
		{"zero poll with spin", func(c *Config) { c.Player.PollInterval = 0; c.Player.Spin = true }, ""},
		{"unknown backend", func(c *Config) { c.Output.Backend = "alsa" }, "backend"},
		{"volume range", func(c *Config) { c.Output.Volume = 101 }, "volume"},
		{"http without address", func(c *Config) { c.HTTP.Address = "" }, "http address"},
		{"http disabled without address", func(c *Config) { c.HTTP.Enabled = false; c.HTTP.Address = "" }, ""},
		{"discovery without name", func(c *Config) { c.Discovery.Enabled = true; c.Discovery.Name = "" }, "name"},
		{"bad log level", func(c *Config) { c.Logging.Level = "trace" }, "level"},
		{"bad log format", func(c *Config) { c.Logging.Format = "xml" }, "format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Default()
			tt.mutate(c)
			err := c.Validate()

			if tt.errorMsg == "" {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("expected error containing %q", tt.errorMsg)
			}
			if !strings.Contains(err.Error(), tt.errorMsg) {
				t.Errorf("expected error containing %q, got %v", tt.errorMsg, err)
			}
		})
	}
}

func TestLoadOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "livelink.yaml")
	content := `
source:
  sample_rate: 48000
  animation_delay_ms: 200
player:
  poll_interval: 1ms
output:
  backend: "null"
logging:
  level: debug
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	c, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if c.Source.SampleRate != 48000 || c.Source.AnimationDelayMs != 200 {
		t.Errorf("expected source overrides, got %+v", c.Source)
	}
	if c.Source.AnimationPort != 12030 || c.Source.AudioPort != 12031 {
		t.Errorf("expected default ports kept, got %d/%d", c.Source.AnimationPort, c.Source.AudioPort)
	}
	if c.Player.PollInterval != time.Millisecond {
		t.Errorf("expected 1ms poll interval, got %v", c.Player.PollInterval)
	}
	if c.Output.Backend != "null" || c.Output.Channels != 2 {
		t.Errorf("unexpected output config %+v", c.Output)
	}
	if c.Logging.Level != "debug" {
		t.Errorf("expected debug level, got %s", c.Logging.Level)
	}
}

func TestLoadErrors(t *testing.T) {
	dir := t.TempDir()

	if _, err := Load(filepath.Join(dir, "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}

	bad := filepath.Join(dir, "bad.yaml")
	os.WriteFile(bad, []byte("source: [1, 2"), 0o644)
	if _, err := Load(bad); err == nil {
		t.Error("expected parse error")
	}

	invalid := filepath.Join(dir, "invalid.yaml")
	os.WriteFile(invalid, []byte("source:\n  sample_rate: 1234\n"), 0o644)
	if _, err := Load(invalid); err == nil || !strings.Contains(err.Error(), "validation") {
		t.Errorf("expected validation error, got %v", err)
	}
}

func TestConnectionString(t *testing.T) {
	s := Default().Source
	if got := s.ConnectionString(); got != "12030;12031;16000" {
		t.Errorf("unexpected connection string %q", got)
	}
}
