//go:build !portaudio

// ABOUTME: PortAudio stub when library not available
// ABOUTME: Provides compile-time placeholder when PortAudio not installed
package output

import (
	"errors"

	"github.com/Resonate-Protocol/audioqueue/pkg/audio"
)

var errNoPortAudio = errors.New("PortAudio support not enabled (build with -tags portaudio)")

// PortAudio device (stub)
type PortAudio struct {
	*Soft
}

// NewPortAudio creates a new PortAudio device
func NewPortAudio(sampleRate int) *PortAudio {
	if sampleRate == 0 {
		sampleRate = 48000
	}
	return &PortAudio{Soft: NewSoft(sampleRate)}
}

// Open always fails without PortAudio support
func (p *PortAudio) Open(name string) (audio.Capabilities, error) {
	return audio.Capabilities{}, errNoPortAudio
}

// Connected is always false
func (p *PortAudio) Connected() bool {
	return false
}

// Close releases resources
func (p *PortAudio) Close() error {
	return nil
}
