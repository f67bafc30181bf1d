// ABOUTME: Test sender package streaming audio and keyframes to a bridge
// ABOUTME: Provides file decoders, a tone generator and the two-socket sender
// Package sender replays an audio file and a keyframe JSON file into a
// LiveLink bridge the way the Audio2Face exporter does.
//
// Audio goes to the audio port as a WAVE header followed by raw sample
// chunks. Keyframes go to the animation port, optionally preceded by an
// A2F header. Both channels finish with EOS.
package sender
