// ABOUTME: Audio encoder package for packetizing PCM
// ABOUTME: Provides Encoder interface and implementations for PCM, Opus
// Package encode turns generated PCM into stream packets.
//
// Supports: PCM (16, 24 and 32-bit), Opus
//
// All encoders accept int32 samples in 24-bit range. Test sources use them
// to feed the audio queue with the same packets a demuxer would deliver.
//
// Example:
//
//	encoder, err := encode.New(format)
//	packet, err := encoder.Encode(samples)
package encode
