// ABOUTME: Tests for PCM decoder
// ABOUTME: Tests passthrough, 24-bit widening and output buffer limits
package decode

import (
	"encoding/binary"
	"errors"
	"testing"

	"github.com/Resonate-Protocol/audioqueue/pkg/audio"
)

func TestNewPCM(t *testing.T) {
	tests := []struct {
		name   string
		format audio.Format
		want   audio.SampleFormat
	}{
		{"16-bit", audio.Format{Codec: "pcm", Channels: 2, BitDepth: 16}, audio.SampleS16},
		{"24-bit", audio.Format{Codec: "pcm", Channels: 2, BitDepth: 24}, audio.SampleS32},
		{"8-bit", audio.Format{Codec: "pcm", Channels: 1, BitDepth: 8}, audio.SampleU8},
		{"explicit float", audio.Format{Codec: "pcm", Channels: 6, Sample: audio.SampleF32}, audio.SampleF32},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			decoder, err := NewPCM(tt.format)
			if err != nil {
				t.Fatalf("failed to create decoder: %v", err)
			}
			if got := decoder.SampleFormat(); got != tt.want {
				t.Errorf("expected %s, got %s", tt.want, got)
			}
		})
	}
}

func TestPCMDecode16Bit(t *testing.T) {
	decoder, err := NewPCM(audio.Format{Codec: "pcm", SampleRate: 48000, Channels: 2, BitDepth: 16})
	if err != nil {
		t.Fatalf("failed to create decoder: %v", err)
	}

	input := []byte{0x00, 0x01, 0x02, 0x03}
	pcm := make([]byte, 16)
	consumed, produced, err := decoder.Decode(input, pcm)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if consumed != 4 || produced != 4 {
		t.Errorf("expected 4/4 bytes, got %d/%d", consumed, produced)
	}
	if got := int16(binary.LittleEndian.Uint16(pcm[2:])); got != 770 {
		t.Errorf("expected second sample 770, got %d", got)
	}
}

func TestPCMDecode24Bit(t *testing.T) {
	decoder, err := NewPCM(audio.Format{Codec: "pcm", SampleRate: 192000, Channels: 2, BitDepth: 24})
	if err != nil {
		t.Fatalf("failed to create decoder: %v", err)
	}

	// 0x020100 and a negative sample 0xFFFFFE
	input := []byte{0x00, 0x01, 0x02, 0xFE, 0xFF, 0xFF}
	pcm := make([]byte, 8)
	consumed, produced, err := decoder.Decode(input, pcm)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if consumed != 6 || produced != 8 {
		t.Errorf("expected 6/8 bytes, got %d/%d", consumed, produced)
	}

	if got := int32(binary.LittleEndian.Uint32(pcm)); got != 0x020100<<8 {
		t.Errorf("expected first sample %d, got %d", 0x020100<<8, got)
	}
	if got := int32(binary.LittleEndian.Uint32(pcm[4:])); got != -2<<8 {
		t.Errorf("expected second sample %d, got %d", -2<<8, got)
	}
}

func TestPCMDecodeStopsAtOutputCapacity(t *testing.T) {
	decoder, _ := NewPCM(audio.Format{Codec: "pcm", Channels: 2, BitDepth: 16})

	input := make([]byte, 40) // 10 frames
	pcm := make([]byte, 18)   // room for 4 whole frames

	consumed, produced, err := decoder.Decode(input, pcm)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if consumed != 16 || produced != 16 {
		t.Errorf("expected 16/16 bytes, got %d/%d", consumed, produced)
	}
}

func TestNewPCM_InvalidCodec(t *testing.T) {
	decoder, err := NewPCM(audio.Format{Codec: "opus", SampleRate: 48000, Channels: 2, BitDepth: 16})
	if err == nil {
		t.Fatal("expected error for invalid codec, got nil")
	}
	if decoder != nil {
		t.Fatal("expected decoder to be nil for invalid codec")
	}

	expectedError := "invalid codec for PCM decoder: opus"
	if err.Error() != expectedError {
		t.Errorf("expected error %q, got %q", expectedError, err.Error())
	}
}

func TestNewPCM_UnsupportedBitDepth(t *testing.T) {
	_, err := NewPCM(audio.Format{Codec: "pcm", SampleRate: 48000, Channels: 2, BitDepth: 12})
	if err == nil {
		t.Fatal("expected error for unsupported bit depth, got nil")
	}

	expectedError := "unsupported bit depth: 12 (supported: 8, 16, 24, 32)"
	if err.Error() != expectedError {
		t.Errorf("expected error %q, got %q", expectedError, err.Error())
	}
}

func TestPCMDecode_EmptyInput(t *testing.T) {
	decoder, _ := NewPCM(audio.Format{Codec: "pcm", Channels: 2, BitDepth: 16})

	consumed, produced, err := decoder.Decode([]byte{}, make([]byte, 8))
	if err != nil {
		t.Fatalf("decode failed with empty input: %v", err)
	}
	if consumed != 0 || produced != 0 {
		t.Errorf("expected nothing decoded, got %d/%d", consumed, produced)
	}
}

func TestNewUnknownCodec(t *testing.T) {
	_, err := New(audio.Format{Codec: "aac", Channels: 2})
	if !errors.Is(err, ErrUnsupportedCodec) {
		t.Errorf("expected ErrUnsupportedCodec, got %v", err)
	}
}
