// ABOUTME: Audio device interface definition
// ABOUTME: Source/buffer queue model shared by all playback backends
package output

import (
	"errors"
	"fmt"

	"github.com/Resonate-Protocol/audioqueue/pkg/audio"
)

var (
	// ErrDeviceUnavailable is returned when no device session could be opened
	ErrDeviceUnavailable = errors.New("audio device unavailable")

	// ErrDeviceDisconnected is reported when an open device goes away
	ErrDeviceDisconnected = errors.New("audio device disconnected")

	errUnknownSource = errors.New("unknown source")
	errUnknownBuffer = errors.New("unknown buffer")
	errNotProcessed  = errors.New("buffer not processed")
)

// SourceID names a playback source on a device
type SourceID uint32

// BufferID names a sample buffer on a device
type BufferID uint32

// SourceState is the playback state of a device source
type SourceState int

const (
	SourceInitial SourceState = iota
	SourcePlaying
	SourcePaused
	SourceStopped
)

func (s SourceState) String() string {
	switch s {
	case SourceInitial:
		return "INITIAL"
	case SourcePlaying:
		return "PLAYING"
	case SourcePaused:
		return "PAUSED"
	case SourceStopped:
		return "STOPPED"
	}
	return fmt.Sprintf("UNKNOWN(%d)", int(s))
}

// Device is a playback device exposing sources that play queues of buffers.
// Processed buffers are the ones a source has finished playing; they stay
// queued until the caller unqueues them for refilling.
type Device interface {
	// Open starts a session on the named device ("" for the default one)
	Open(name string) (audio.Capabilities, error)
	// Close ends the session, releasing all sources and buffers
	Close() error
	// Connected reports whether the session still reaches the hardware
	Connected() bool

	GenSources(n int) ([]SourceID, error)
	DeleteSources(srcs []SourceID) error
	GenBuffers(n int) ([]BufferID, error)
	DeleteBuffers(bufs []BufferID) error

	// BufferData uploads interleaved samples into a buffer
	BufferData(buf BufferID, format audio.SampleFormat, channels int, data []byte, rate int) error
	QueueBuffers(src SourceID, bufs ...BufferID) error
	// UnqueueBuffers removes up to n processed buffers from the head of the queue
	UnqueueBuffers(src SourceID, n int) ([]BufferID, error)

	Processed(src SourceID) int
	Queued(src SourceID) int
	State(src SourceID) SourceState
	// SecOffset returns the playback position in seconds from the head of the queue
	SecOffset(src SourceID) float64

	// PlayAll, PauseAll and StopAll change every source in one step
	PlayAll(srcs []SourceID) error
	PauseAll(srcs []SourceID) error
	StopAll(srcs []SourceID) error

	SetSourcePosition(src SourceID, pos audio.Vec3, relative bool) error
	SetListenerGain(gain float32) error

	// Drained is signalled whenever a buffer finishes playing
	Drained() <-chan struct{}
}
