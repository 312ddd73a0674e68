// ABOUTME: Opus audio decoder
// ABOUTME: Decodes one Opus packet per call to signed 16-bit PCM
package decode

import (
	"encoding/binary"
	"fmt"

	"github.com/Resonate-Protocol/audioqueue/pkg/audio"
	"gopkg.in/hraban/opus.v2"
)

// maxOpusFrame is 120ms at 48kHz
const maxOpusFrame = 5760

// OpusDecoder decodes Opus audio
type OpusDecoder struct {
	decoder *opus.Decoder
	format  audio.Format
	pcm16   []int16
}

// NewOpus creates a new Opus decoder
func NewOpus(format audio.Format) (Decoder, error) {
	if format.Codec != "opus" {
		return nil, fmt.Errorf("invalid codec for Opus decoder: %s", format.Codec)
	}

	dec, err := opus.NewDecoder(format.SampleRate, format.Channels)
	if err != nil {
		return nil, fmt.Errorf("failed to create opus decoder: %w", err)
	}

	return &OpusDecoder{
		decoder: dec,
		format:  format,
		pcm16:   make([]int16, maxOpusFrame*format.Channels),
	}, nil
}

// Decode consumes a whole Opus packet
func (d *OpusDecoder) Decode(data, pcm []byte) (int, int, error) {
	if len(data) == 0 {
		return 0, 0, nil
	}

	n, err := d.decoder.Decode(data, d.pcm16)
	if err != nil {
		return len(data), 0, fmt.Errorf("opus decode failed: %w", err)
	}

	samples := n * d.format.Channels
	if samples*2 > len(pcm) {
		return len(data), 0, fmt.Errorf("opus frame of %d samples exceeds output buffer", samples)
	}
	for i := 0; i < samples; i++ {
		binary.LittleEndian.PutUint16(pcm[i*2:], uint16(d.pcm16[i]))
	}
	return len(data), samples * 2, nil
}

// Flush resets the decoder state
func (d *OpusDecoder) Flush() {
	dec, err := opus.NewDecoder(d.format.SampleRate, d.format.Channels)
	if err != nil {
		return
	}
	d.decoder = dec
}

// SampleFormat returns the produced sample format
func (d *OpusDecoder) SampleFormat() audio.SampleFormat {
	return audio.SampleS16
}

// Close releases decoder resources
func (d *OpusDecoder) Close() error {
	return nil
}
