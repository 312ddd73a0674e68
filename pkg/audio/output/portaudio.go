//go:build portaudio

// ABOUTME: PortAudio device implementation
// ABOUTME: Cross-platform playback of the software mix using PortAudio
package output

import (
	"fmt"
	"sync"

	"github.com/Resonate-Protocol/audioqueue/pkg/audio"
	"github.com/gordonklaus/portaudio"
)

// PortAudio plays the software mix through a PortAudio stream
type PortAudio struct {
	*Soft

	sampleRate int
	mu         sync.Mutex
	stream     *portaudio.Stream
}

// NewPortAudio creates a PortAudio device mixing at sampleRate
func NewPortAudio(sampleRate int) *PortAudio {
	if sampleRate == 0 {
		sampleRate = 48000
	}
	return &PortAudio{
		Soft:       NewSoft(sampleRate),
		sampleRate: sampleRate,
	}
}

// Open initializes PortAudio on the named device ("" for the default one)
func (p *PortAudio) Open(name string) (audio.Capabilities, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.stream != nil {
		return audio.Capabilities{Float32: true}, nil
	}
	if err := portaudio.Initialize(); err != nil {
		return audio.Capabilities{}, fmt.Errorf("failed to initialize portaudio: %w", err)
	}

	p.Soft.Reset(p.sampleRate)
	stream, err := p.openStream(name)
	if err != nil {
		portaudio.Terminate()
		return audio.Capabilities{}, fmt.Errorf("failed to open stream: %w", err)
	}
	if err := stream.Start(); err != nil {
		stream.Close()
		portaudio.Terminate()
		return audio.Capabilities{}, fmt.Errorf("failed to start stream: %w", err)
	}

	p.stream = stream
	return audio.Capabilities{Float32: true}, nil
}

func (p *PortAudio) openStream(name string) (*portaudio.Stream, error) {
	if name == "" {
		return portaudio.OpenDefaultStream(0, 2, float64(p.sampleRate), 0, p.Soft.Mix)
	}

	devices, err := portaudio.Devices()
	if err != nil {
		return nil, err
	}
	for _, dev := range devices {
		if dev.Name == name && dev.MaxOutputChannels >= 2 {
			params := portaudio.HighLatencyParameters(nil, dev)
			params.Output.Channels = 2
			params.SampleRate = float64(p.sampleRate)
			return portaudio.OpenStream(params, p.Soft.Mix)
		}
	}
	return nil, fmt.Errorf("playback device not found: %q", name)
}

// Connected reports whether the stream is open
func (p *PortAudio) Connected() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stream != nil
}

// Close releases resources
func (p *PortAudio) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.stream == nil {
		return nil
	}
	if err := p.stream.Stop(); err != nil {
		return err
	}
	if err := p.stream.Close(); err != nil {
		return err
	}
	p.stream = nil
	p.Soft.Reset(p.sampleRate)
	return portaudio.Terminate()
}
