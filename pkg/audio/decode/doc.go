// ABOUTME: Audio decoder package for packet decoding
// ABOUTME: Provides the Decoder interface and implementations for PCM and Opus
// Package decode turns encoded packets into interleaved PCM bytes.
//
// Supports: PCM (8, 16, 24 and 32-bit, float), Opus
//
// Decoders write into a caller-owned buffer and report the sample format
// they produce, so the audio queue can convert without extra copies.
//
// Example:
//
//	decoder, err := decode.New(format)
//	consumed, produced, err := decoder.Decode(packet, pcm)
package decode
