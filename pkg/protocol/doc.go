// ABOUTME: Wire protocol package for the animation and audio channels
// ABOUTME: Provides framing, reassembly and payload classification
// Package protocol implements the wire format shared by both TCP channels.
//
// Every message is framed as an 8-byte big-endian payload length followed
// by the payload. Payloads are one of:
//   - "EOS": end of a burst
//   - a header: "A2F:<fps>" on the animation channel,
//     "WAVE:<rate>:<channels>:<bits>:<type>" on the audio channel
//   - data: animation JSON or raw little-endian audio samples
//
// Example:
//
//	var asm protocol.Assembler
//	asm.Feed(chunk, func(payload []byte) {
//	    switch protocol.Classify(payload, protocol.AnimationMagic) {
//	    case protocol.KindHeader:
//	        fps, ok := protocol.ParseAnimationHeader(payload)
//	        ...
//	    }
//	})
package protocol
