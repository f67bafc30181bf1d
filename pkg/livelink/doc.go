// ABOUTME: Package livelink receives A2F audio and animation streams
// ABOUTME: Wires listeners, the frame player, the mixer and the animation decoder
// Package livelink is the entry point for embedding a live link receiver.
//
// Basic usage:
//
//	conn, _ := livelink.ParseConnectionString("12030;12031;16000")
//	src, err := livelink.NewSource(livelink.DefaultConfig(conn))
//	if err != nil {
//		return err
//	}
//	if err := src.Start(ctx); err != nil {
//		return err
//	}
//	defer src.Close()
//
// Audio is pulled from src.Mixer() by an output device. Animation is pushed
// to the configured Consumer and kept in src.Store().
package livelink
