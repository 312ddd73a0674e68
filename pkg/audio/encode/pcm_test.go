// ABOUTME: Unit tests for PCM encoder
// ABOUTME: Tests 16, 24 and 32-bit PCM encoding
package encode

import (
	"encoding/binary"
	"strings"
	"testing"

	"github.com/Resonate-Protocol/audioqueue/pkg/audio"
)

func TestNewPCM(t *testing.T) {
	tests := []struct {
		name        string
		format      audio.Format
		wantErr     bool
		errContains string
	}{
		{name: "valid 16-bit PCM", format: audio.Format{Codec: "pcm", SampleRate: 48000, Channels: 2, BitDepth: 16}},
		{name: "valid 24-bit PCM", format: audio.Format{Codec: "pcm", SampleRate: 48000, Channels: 2, BitDepth: 24}},
		{name: "valid 32-bit PCM", format: audio.Format{Codec: "pcm", SampleRate: 48000, Channels: 2, BitDepth: 32}},
		{
			name:        "invalid codec",
			format:      audio.Format{Codec: "opus", SampleRate: 48000, Channels: 2, BitDepth: 16},
			wantErr:     true,
			errContains: "invalid codec",
		},
		{
			name:        "unsupported bit depth",
			format:      audio.Format{Codec: "pcm", SampleRate: 48000, Channels: 2, BitDepth: 12},
			wantErr:     true,
			errContains: "unsupported bit depth",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			encoder, err := NewPCM(tt.format)
			if tt.wantErr {
				if err == nil {
					t.Errorf("NewPCM() expected error, got nil")
				} else if !strings.Contains(err.Error(), tt.errContains) {
					t.Errorf("NewPCM() error = %v, want error containing %v", err, tt.errContains)
				}
				return
			}
			if err != nil {
				t.Errorf("NewPCM() unexpected error = %v", err)
			}
			if encoder.FrameSize() != 0 {
				t.Errorf("FrameSize() = %d, want 0", encoder.FrameSize())
			}
		})
	}
}

var testSamples = []int32{
	0,         // silence
	0x7FFF00,  // max positive 16-bit (left-justified in 24-bit)
	-0x800000, // max negative
	0x123456,  // arbitrary positive value
	-0x567890, // arbitrary negative value
}

func TestPCMEncoder_Encode16Bit(t *testing.T) {
	encoder, err := NewPCM(audio.Format{Codec: "pcm", SampleRate: 48000, Channels: 1, BitDepth: 16})
	if err != nil {
		t.Fatalf("NewPCM() failed: %v", err)
	}

	output, err := encoder.Encode(testSamples)
	if err != nil {
		t.Fatalf("Encode() failed: %v", err)
	}
	if len(output) != len(testSamples)*2 {
		t.Fatalf("Encode() output size = %d, want %d", len(output), len(testSamples)*2)
	}
	for i, sample := range testSamples {
		expected := audio.SampleToInt16(sample)
		actual := int16(binary.LittleEndian.Uint16(output[i*2:]))
		if actual != expected {
			t.Errorf("Sample %d: got %d, want %d", i, actual, expected)
		}
	}
}

func TestPCMEncoder_Encode24Bit(t *testing.T) {
	encoder, err := NewPCM(audio.Format{Codec: "pcm", SampleRate: 48000, Channels: 1, BitDepth: 24})
	if err != nil {
		t.Fatalf("NewPCM() failed: %v", err)
	}

	output, err := encoder.Encode(testSamples)
	if err != nil {
		t.Fatalf("Encode() failed: %v", err)
	}
	for i, sample := range testSamples {
		expected := audio.SampleTo24Bit(sample)
		actual := [3]byte{output[i*3], output[i*3+1], output[i*3+2]}
		if actual != expected {
			t.Errorf("Sample %d: got %v, want %v", i, actual, expected)
		}
	}
}

func TestPCMEncoder_Encode32BitReadsBack(t *testing.T) {
	encoder, err := NewPCM(audio.Format{Codec: "pcm", SampleRate: 48000, Channels: 1, BitDepth: 32})
	if err != nil {
		t.Fatalf("NewPCM() failed: %v", err)
	}

	output, err := encoder.Encode(testSamples)
	if err != nil {
		t.Fatalf("Encode() failed: %v", err)
	}
	for i, sample := range testSamples {
		if got := audio.SampleTo24BitInt(output[i*4:], audio.SampleS32); got != sample {
			t.Errorf("Sample %d: got %d, want %d", i, got, sample)
		}
	}
}
