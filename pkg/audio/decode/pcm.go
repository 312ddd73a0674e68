// ABOUTME: PCM audio decoder
// ABOUTME: Passes 8/16/32-bit PCM through and widens packed 24-bit PCM to 32-bit
package decode

import (
	"encoding/binary"
	"fmt"

	"github.com/Resonate-Protocol/audioqueue/pkg/audio"
)

// PCMDecoder decodes PCM audio
type PCMDecoder struct {
	in       int // bytes per input sample
	out      audio.SampleFormat
	channels int
}

// NewPCM creates a new PCM decoder. Sample selects the output format;
// without it BitDepth picks one (24-bit input is widened to S32).
func NewPCM(format audio.Format) (Decoder, error) {
	if format.Codec != "pcm" {
		return nil, fmt.Errorf("invalid codec for PCM decoder: %s", format.Codec)
	}
	if format.Channels < 1 {
		return nil, fmt.Errorf("invalid channel count: %d", format.Channels)
	}

	d := &PCMDecoder{channels: format.Channels}
	switch {
	case format.BitDepth == 24:
		d.in, d.out = 3, audio.SampleS32
	case format.Sample != audio.SampleUnknown:
		d.in, d.out = format.Sample.BytesPerSample(), format.Sample
	case format.BitDepth == 8:
		d.in, d.out = 1, audio.SampleU8
	case format.BitDepth == 16:
		d.in, d.out = 2, audio.SampleS16
	case format.BitDepth == 32:
		d.in, d.out = 4, audio.SampleS32
	default:
		return nil, fmt.Errorf("unsupported bit depth: %d (supported: 8, 16, 24, 32)", format.BitDepth)
	}
	return d, nil
}

// Decode copies as many whole frames as fit into pcm
func (d *PCMDecoder) Decode(data, pcm []byte) (int, int, error) {
	outBPS := d.out.BytesPerSample()
	frames := len(data) / (d.in * d.channels)
	if room := len(pcm) / (outBPS * d.channels); frames > room {
		frames = room
	}
	samples := frames * d.channels

	if d.in == outBPS {
		n := copy(pcm, data[:samples*d.in])
		return n, n, nil
	}

	// packed 24-bit to S32
	for i := 0; i < samples; i++ {
		b := [3]byte{data[i*3], data[i*3+1], data[i*3+2]}
		binary.LittleEndian.PutUint32(pcm[i*4:], uint32(audio.SampleFrom24Bit(b)<<8))
	}
	return samples * 3, samples * 4, nil
}

// Flush is a no-op; PCM carries no state between packets
func (d *PCMDecoder) Flush() {}

// SampleFormat returns the produced sample format
func (d *PCMDecoder) SampleFormat() audio.SampleFormat {
	return d.out
}

// Close releases resources
func (d *PCMDecoder) Close() error {
	return nil
}
