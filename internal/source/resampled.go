// ABOUTME: Sample-rate converting wrapper around a Source
// ABOUTME: Brings file rates to what the Opus encoder accepts
package source

import (
	"github.com/Resonate-Protocol/audioqueue/pkg/audio/resample"
)

// Resampled wraps a Source and resamples to a target sample rate
type Resampled struct {
	source      Source
	resampler   *resample.Resampler
	targetRate  int
	inputBuffer []int32
}

// NewResampled creates a resampling wrapper around an audio source
func NewResampled(source Source, targetRate int) *Resampled {
	inputRate := source.SampleRate()
	channels := source.Channels()

	// 100ms of input per read
	inputSamples := (inputRate * channels * 100) / 1000

	return &Resampled{
		source:      source,
		resampler:   resample.New(inputRate, targetRate, channels),
		targetRate:  targetRate,
		inputBuffer: make([]int32, inputSamples),
	}
}

func (r *Resampled) Read(samples []int32) (int, error) {
	neededInput := r.resampler.InputSamplesNeeded(len(samples))
	if neededInput > len(r.inputBuffer) {
		neededInput = len(r.inputBuffer)
	}
	channels := r.source.Channels()
	if neededInput < channels {
		neededInput = channels
	}

	n, err := r.source.Read(r.inputBuffer[:neededInput])
	if n == 0 {
		return 0, err
	}

	return r.resampler.Resample(r.inputBuffer[:n], samples), nil
}

// Seek moves the wrapped source when it is seekable
func (r *Resampled) Seek(seconds float64) error {
	seeker, ok := r.source.(Seeker)
	if !ok {
		return ErrNotSeekable
	}
	if err := seeker.Seek(seconds); err != nil {
		return err
	}
	r.resampler.Reset()
	return nil
}

func (r *Resampled) SampleRate() int { return r.targetRate }
func (r *Resampled) Channels() int   { return r.source.Channels() }
func (r *Resampled) Metadata() (string, string, string) {
	return r.source.Metadata()
}
func (r *Resampled) Close() error {
	return r.source.Close()
}

// seekable reports whether src can Seek, looking through resamplers
func seekable(src Source) bool {
	if r, ok := src.(*Resampled); ok {
		return seekable(r.source)
	}
	_, ok := src.(Seeker)
	return ok
}
