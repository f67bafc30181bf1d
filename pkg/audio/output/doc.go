// ABOUTME: Audio output package for playing audio
// ABOUTME: Provides the Output interface with malgo, oto, PortAudio and null backends
// Package output provides audio playback backends.
//
// Outputs pull samples from a Renderer on the device's own thread, so the
// renderer must not block. Volume and mute are applied in software after
// rendering.
//
// Example:
//
//	out, err := output.New(output.BackendMalgo, logger)
//	err = out.Open(48000, 2, source.Mixer())
//	defer out.Close()
package output
