// ABOUTME: Encoder interface definition
// ABOUTME: Common interface for encoders packetizing generated PCM
package encode

import (
	"errors"
	"fmt"

	"github.com/Resonate-Protocol/audioqueue/pkg/audio"
)

var (
	// ErrUnsupportedCodec is returned by New for codecs without an encoder
	ErrUnsupportedCodec = errors.New("unsupported codec")

	// ErrFrameSize is returned when a packet does not hold exactly one frame
	ErrFrameSize = errors.New("wrong frame size")
)

// Encoder encodes PCM int32 samples (24-bit range) into packets
type Encoder interface {
	// Encode converts interleaved PCM samples to one encoded packet
	Encode(samples []int32) ([]byte, error)

	// FrameSize is the number of frames each packet must carry, 0 for any
	FrameSize() int

	// Close releases encoder resources
	Close() error
}

// New creates an encoder for a stream format
func New(format audio.Format) (Encoder, error) {
	switch format.Codec {
	case "pcm":
		return NewPCM(format)
	case "opus":
		return NewOpus(format)
	}
	return nil, fmt.Errorf("%w: %q", ErrUnsupportedCodec, format.Codec)
}
