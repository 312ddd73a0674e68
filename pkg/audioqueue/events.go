// ABOUTME: Control events steering the audio queue worker
// ABOUTME: Mutex-protected FIFO drained one event per worker iteration
package audioqueue

import (
	"fmt"
	"log"
	"math"

	"github.com/Resonate-Protocol/audioqueue/pkg/audio/output"
)

// gainEpsilon is the smallest gain change applied to the device
const gainEpsilon = 1e-7

// EventKind is a playback control request
type EventKind int

const (
	EventNone EventKind = iota
	EventPlay
	EventStop
	EventPause
	EventResume
	EventSeek
)

func (k EventKind) String() string {
	switch k {
	case EventNone:
		return "none"
	case EventPlay:
		return "play"
	case EventStop:
		return "stop"
	case EventPause:
		return "pause"
	case EventResume:
		return "resume"
	case EventSeek:
		return "seek"
	}
	return fmt.Sprintf("event(%d)", int(k))
}

// ParseEventKind maps a control name to its event
func ParseEventKind(name string) (EventKind, error) {
	for k := EventPlay; k <= EventSeek; k++ {
		if k.String() == name {
			return k, nil
		}
	}
	return EventNone, fmt.Errorf("unknown event: %q", name)
}

type event struct {
	kind    EventKind
	seconds float64
}

// PushEvent queues a control event for the worker. Seek moves the clock
// to seconds right away so Pts reflects the target before the worker runs.
func (q *AudioQueue) PushEvent(kind EventKind, seconds float64) {
	q.mu.Lock()
	q.events = append(q.events, event{kind: kind, seconds: seconds})
	switch kind {
	case EventPlay, EventResume:
		q.playing = true
	case EventStop, EventPause:
		q.playing = false
	case EventSeek:
		q.clock.Restart(seconds)
	}
	q.mu.Unlock()

	q.signal()
}

// SetGain sets the listener gain applied to every source
func (q *AudioQueue) SetGain(gain float32) {
	q.mu.Lock()
	q.gain = gain
	q.mu.Unlock()

	q.signal()
}

// Gain returns the requested listener gain
func (q *AudioQueue) Gain() float32 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.gain
}

// SwitchDevice asks the worker to reopen the session on the named device
func (q *AudioQueue) SwitchDevice(name string) {
	q.mu.Lock()
	q.switchTo = name
	q.switchPending = true
	q.mu.Unlock()

	q.signal()
}

// IsPlaying reports whether playback was requested by the last control event
func (q *AudioQueue) IsPlaying() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.playing
}

func (q *AudioQueue) signal() {
	select {
	case q.wake <- struct{}{}:
	default:
	}
}

// parseEvents applies a pending device switch or gain change and at most
// one control event. It returns true when the caller must not resume
// playback from the buffered backlog in this cycle.
func (q *AudioQueue) parseEvents() bool {
	q.mu.Lock()
	if q.switchPending {
		name := q.switchTo
		q.switchPending = false
		q.mu.Unlock()

		q.switchDevice(name)
		return true
	}
	gain := q.gain
	var ev event
	if len(q.events) > 0 {
		ev = q.events[0]
		q.events = q.events[1:]
	}
	q.mu.Unlock()

	if math.Abs(float64(gain-q.appliedGain)) > gainEpsilon {
		log.Printf("Audio volume changed from %.3f to %.3f", q.appliedGain, gain)
		q.appliedGain = gain
		q.mgr.SetGain(gain)
	}

	defer q.reportState()

	switch ev.kind {
	case EventPlay:
		q.emptyDevice()
		q.clock.Restart(0)
	case EventStop:
		q.clock.Pause()
		q.emptyDevice()
	case EventPause:
		q.clock.Pause()
		q.mgr.PauseAll()
	case EventResume:
		q.clock.Resume()
		if q.mgr.State() == output.SourcePaused {
			q.mgr.PlayAll()
		}
	case EventSeek:
		q.emptyDevice()
		q.clock.Restart(ev.seconds)
		q.src.Clear()
		q.out.Clear()
		log.Printf("Audio seek to %.3fs", ev.seconds)
		return true
	}
	return false
}

// switchDevice reopens the session on name, falling back to the default
// device, and reshapes the buffers for whatever the new device supports
func (q *AudioQueue) switchDevice(name string) {
	log.Printf("Switching audio device to %q", name)
	if err := q.mgr.Reopen(name); err != nil {
		log.Printf("Failed to switch audio device: %v", err)
		q.notify(err)
	}
	q.publishSession()
	q.reconfigure()
}
