// ABOUTME: Test tone generator for audio source
// ABOUTME: Generates a seekable sine wave, endless or of fixed length
package source

import (
	"io"
	"math"
	"sync"
)

const (
	defaultToneFrequency = 440.0 // A4 note
	defaultToneRate      = 48000
	defaultToneChannels  = 2
	defaultToneAmplitude = 0.5
	maxSample24          = 8388607
)

// ToneConfig describes a test tone
type ToneConfig struct {
	Frequency  float64 // Hz (default: 440)
	SampleRate int     // default: 48000
	Channels   int     // default: 2
	Amplitude  float64 // 0..1 (default: 0.5)
	Duration   float64 // seconds, 0 for endless
}

// Tone generates a sine wave on every channel
type Tone struct {
	config ToneConfig

	mu    sync.Mutex
	frame uint64
	total uint64 // 0 for endless
}

// NewTone creates a test tone generator
func NewTone(config ToneConfig) *Tone {
	if config.Frequency == 0 {
		config.Frequency = defaultToneFrequency
	}
	if config.SampleRate == 0 {
		config.SampleRate = defaultToneRate
	}
	if config.Channels == 0 {
		config.Channels = defaultToneChannels
	}
	if config.Amplitude == 0 {
		config.Amplitude = defaultToneAmplitude
	}

	return &Tone{
		config: config,
		total:  uint64(config.Duration * float64(config.SampleRate)),
	}
}

func (s *Tone) Read(samples []int32) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	channels := s.config.Channels
	frames := len(samples) / channels
	if s.total > 0 {
		if s.frame >= s.total {
			return 0, io.EOF
		}
		if left := s.total - s.frame; uint64(frames) > left {
			frames = int(left)
		}
	}

	step := 2 * math.Pi * s.config.Frequency / float64(s.config.SampleRate)
	scale := maxSample24 * s.config.Amplitude
	for i := 0; i < frames; i++ {
		v := int32(math.Sin(step*float64(s.frame+uint64(i))) * scale)
		for ch := 0; ch < channels; ch++ {
			samples[i*channels+ch] = v
		}
	}
	s.frame += uint64(frames)

	return frames * channels, nil
}

// Seek moves the tone to the given position in seconds
func (s *Tone) Seek(seconds float64) error {
	if seconds < 0 {
		seconds = 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.frame = uint64(seconds * float64(s.config.SampleRate))
	if s.total > 0 && s.frame > s.total {
		s.frame = s.total
	}
	return nil
}

func (s *Tone) SampleRate() int { return s.config.SampleRate }
func (s *Tone) Channels() int   { return s.config.Channels }
func (s *Tone) Metadata() (string, string, string) {
	return "Test Tone", "audioqueue", "Reference Signal"
}
func (s *Tone) Close() error { return nil }
