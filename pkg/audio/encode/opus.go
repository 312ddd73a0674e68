// ABOUTME: Opus audio encoder
// ABOUTME: Encodes 20ms frames of int32 samples to Opus packets
package encode

import (
	"fmt"

	"github.com/Resonate-Protocol/audioqueue/pkg/audio"
	"gopkg.in/hraban/opus.v2"
)

// maxOpusPacket is the largest packet libopus recommends
const maxOpusPacket = 4000

// OpusEncoder encodes Opus audio
type OpusEncoder struct {
	encoder    *opus.Encoder
	sampleRate int
	channels   int
	frameSize  int
	pcm        []int16
	packet     []byte
}

// NewOpus creates a new Opus encoder
func NewOpus(format audio.Format) (Encoder, error) {
	if format.Codec != "opus" {
		return nil, fmt.Errorf("invalid codec for Opus encoder: %s", format.Codec)
	}

	encoder, err := opus.NewEncoder(format.SampleRate, format.Channels, opus.AppAudio)
	if err != nil {
		return nil, fmt.Errorf("failed to create opus encoder: %w", err)
	}

	// Opus frame size depends on sample rate
	frameSize := format.SampleRate / 50 // 20ms frame

	return &OpusEncoder{
		encoder:    encoder,
		sampleRate: format.SampleRate,
		channels:   format.Channels,
		frameSize:  frameSize,
		pcm:        make([]int16, frameSize*format.Channels),
		packet:     make([]byte, maxOpusPacket),
	}, nil
}

// FrameSize returns the frames per packet (20ms)
func (e *OpusEncoder) FrameSize() int {
	return e.frameSize
}

// Encode converts exactly one frame of int32 samples to an Opus packet
func (e *OpusEncoder) Encode(samples []int32) ([]byte, error) {
	if len(samples) != len(e.pcm) {
		return nil, fmt.Errorf("%w: got %d samples, want %d", ErrFrameSize, len(samples), len(e.pcm))
	}
	for i, sample := range samples {
		e.pcm[i] = audio.SampleToInt16(sample)
	}

	n, err := e.encoder.Encode(e.pcm, e.packet)
	if err != nil {
		return nil, fmt.Errorf("opus encode error: %w", err)
	}

	out := make([]byte, n)
	copy(out, e.packet[:n])
	return out, nil
}

// Close releases resources
func (e *OpusEncoder) Close() error {
	return nil
}
