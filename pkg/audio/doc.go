// ABOUTME: Audio fundamentals package providing core types and utilities
// ABOUTME: Defines sample formats, sample buffers, channel layouts and the layout resolver
// Package audio provides fundamental audio types and utilities for PCM playback.
//
// This package defines core types used throughout the audioqueue library:
//   - SampleFormat: in-memory sample encoding (u8, s16, s32, f32, f64)
//   - SampleBuffer: fixed-capacity PCM storage split into channel groups
//   - Layout, Convention, ChannelRole: speaker arrangements and channel orders
//   - Resolve: picks the device buffer shape for a stream and device
//
// It also provides utilities for converting between different sample formats:
//   - 16-bit ↔ 24-bit conversions
//   - any format ↔ normalized float64
//
// Example:
//
//	res, err := audio.Resolve(audio.StreamShape{Channels: 6, Sample: audio.SampleS32}, caps)
//	out := audio.NewSampleBuffer(res.Sample, 192000)
//	out.SetupChannels(res.Layout, audio.ConventionPCM, res.Groups)
//	drained := out.AppendFrom(decoded)
package audio
