// ABOUTME: Configuration package for the live link bridge
// ABOUTME: YAML file loading with per-section validation
// Package config loads the bridge configuration from YAML.
//
// Missing keys keep their defaults, so a file only needs the settings it
// changes:
//
//	source:
//	  sample_rate: 48000
//	  animation_delay_ms: 200
//	output:
//	  backend: oto
package config
