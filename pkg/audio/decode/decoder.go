// ABOUTME: Decoder interface definition
// ABOUTME: Common interface for packet decoders feeding the audio queue
package decode

import (
	"errors"
	"fmt"

	"github.com/Resonate-Protocol/audioqueue/pkg/audio"
)

// ErrUnsupportedCodec is returned by New for codecs without a decoder
var ErrUnsupportedCodec = errors.New("unsupported codec")

// Decoder turns encoded packets into interleaved PCM bytes
type Decoder interface {
	// Decode consumes encoded bytes from data and writes PCM in the
	// decoder's sample format into pcm. It returns how many bytes of data
	// were consumed and how many bytes of pcm were produced; a call may
	// produce nothing.
	Decode(data, pcm []byte) (consumed, produced int, err error)

	// Flush drops any state carried between packets
	Flush()

	// SampleFormat is the format of the produced PCM
	SampleFormat() audio.SampleFormat

	// Close releases decoder resources
	Close() error
}

// New opens a decoder for a stream format
func New(format audio.Format) (Decoder, error) {
	switch format.Codec {
	case "pcm":
		return NewPCM(format)
	case "opus":
		return NewOpus(format)
	}
	return nil, fmt.Errorf("%w: %q", ErrUnsupportedCodec, format.Codec)
}
