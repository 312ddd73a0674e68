// ABOUTME: Audio type definitions
// ABOUTME: Defines sample formats, stream formats, device capabilities and sample conversion
package audio

import (
	"encoding/binary"
	"fmt"
	"math"
)

const (
	// 24-bit audio range constants
	Max24Bit = 8388607  // 2^23 - 1
	Min24Bit = -8388608 // -2^23
)

// SampleFormat identifies the in-memory encoding of a single PCM sample
type SampleFormat int

const (
	SampleUnknown SampleFormat = iota
	SampleU8                   // unsigned 8-bit, 128 is silence
	SampleS16                  // signed 16-bit little-endian
	SampleS32                  // signed 32-bit little-endian
	SampleF32                  // IEEE float32 little-endian
	SampleF64                  // IEEE float64 little-endian
)

// BytesPerSample returns the storage size of one sample
func (f SampleFormat) BytesPerSample() int {
	switch f {
	case SampleU8:
		return 1
	case SampleS16:
		return 2
	case SampleS32, SampleF32:
		return 4
	case SampleF64:
		return 8
	default:
		return 0
	}
}

// IsFloat reports whether the format stores floating point samples
func (f SampleFormat) IsFloat() bool {
	return f == SampleF32 || f == SampleF64
}

func (f SampleFormat) String() string {
	switch f {
	case SampleU8:
		return "u8"
	case SampleS16:
		return "s16"
	case SampleS32:
		return "s32"
	case SampleF32:
		return "f32"
	case SampleF64:
		return "f64"
	default:
		return fmt.Sprintf("unknown(%d)", int(f))
	}
}

// ParseSampleFormat maps a short name ("s16", "f32", ...) to a SampleFormat
func ParseSampleFormat(name string) (SampleFormat, error) {
	switch name {
	case "u8":
		return SampleU8, nil
	case "s16":
		return SampleS16, nil
	case "s32":
		return SampleS32, nil
	case "f32":
		return SampleF32, nil
	case "f64":
		return SampleF64, nil
	}
	return SampleUnknown, fmt.Errorf("unknown sample format: %q", name)
}

// Format describes audio stream format
type Format struct {
	Codec       string
	Sample      SampleFormat
	SampleRate  int
	Channels    int
	BitDepth    int
	CodecHeader []byte // For FLAC, Opus, etc.
}

// Capabilities describes what an output device session accepts
type Capabilities struct {
	Float32      bool // mono/stereo float32 buffers
	Float64      bool // mono/stereo float64 buffers
	MultiChannel bool // interleaved 4.0 and 5.1 buffers
}

// ReadSample decodes the sample at the start of b as a value in [-1, 1]
func ReadSample(b []byte, f SampleFormat) float64 {
	switch f {
	case SampleU8:
		return (float64(b[0]) - 128) / 128
	case SampleS16:
		return float64(int16(binary.LittleEndian.Uint16(b))) / 32768
	case SampleS32:
		return float64(int32(binary.LittleEndian.Uint32(b))) / 2147483648
	case SampleF32:
		return float64(math.Float32frombits(binary.LittleEndian.Uint32(b)))
	case SampleF64:
		return math.Float64frombits(binary.LittleEndian.Uint64(b))
	}
	return 0
}

// WriteSample encodes v (nominally in [-1, 1]) at the start of b, clipping
// integer formats to their range
func WriteSample(b []byte, f SampleFormat, v float64) {
	switch f {
	case SampleU8:
		b[0] = byte(clampInt(int64(math.Round(v*128))+128, 0, 255))
	case SampleS16:
		s := clampInt(int64(math.Round(v*32768)), math.MinInt16, math.MaxInt16)
		binary.LittleEndian.PutUint16(b, uint16(int16(s)))
	case SampleS32:
		s := clampInt(int64(math.Round(v*2147483648)), math.MinInt32, math.MaxInt32)
		binary.LittleEndian.PutUint32(b, uint32(int32(s)))
	case SampleF32:
		binary.LittleEndian.PutUint32(b, math.Float32bits(float32(v)))
	case SampleF64:
		binary.LittleEndian.PutUint64(b, math.Float64bits(v))
	}
}

// SampleTo24BitInt decodes one sample of any format into the 24-bit int32 range
func SampleTo24BitInt(b []byte, f SampleFormat) int32 {
	switch f {
	case SampleS16:
		return SampleFromInt16(int16(binary.LittleEndian.Uint16(b)))
	case SampleS32:
		return int32(binary.LittleEndian.Uint32(b)) >> 8
	}
	return int32(clampInt(int64(math.Round(ReadSample(b, f)*8388608)), Min24Bit, Max24Bit))
}

func clampInt(v, lo, hi int64) int64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// SampleToInt16 converts int32 sample to int16 (for 16-bit playback)
func SampleToInt16(sample int32) int16 {
	// Right-shift to convert 24-bit (or 16-bit) to 16-bit range
	return int16(sample >> 8)
}

// SampleFromInt16 converts int16 sample to int32 (left-justified in 24-bit)
func SampleFromInt16(sample int16) int32 {
	// Left-shift to position 16-bit value in upper bits
	return int32(sample) << 8
}

// SampleTo24Bit converts int32 to 24-bit packed bytes (little-endian)
func SampleTo24Bit(sample int32) [3]byte {
	// Take lower 24 bits, pack little-endian
	return [3]byte{
		byte(sample),
		byte(sample >> 8),
		byte(sample >> 16),
	}
}

// SampleFrom24Bit converts 24-bit packed bytes to int32 (little-endian)
func SampleFrom24Bit(b [3]byte) int32 {
	// Reconstruct 24-bit value and sign-extend to 32-bit
	val := int32(b[0]) | int32(b[1])<<8 | int32(b[2])<<16
	// Sign extend from 24-bit to 32-bit
	if val&0x800000 != 0 {
		val |= ^0xFFFFFF // Set upper 8 bits to 1 for negative values
	}
	return val
}
