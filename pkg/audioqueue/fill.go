// ABOUTME: Fill cycle streaming the output buffer into the device ring
// ABOUTME: Starts playback when the ring fills and keeps the clock aligned with the device
package audioqueue

import (
	"log"
	"time"

	"github.com/Resonate-Protocol/audioqueue/pkg/audio/output"
)

// bogusPTS marks anchors too large to be a real presentation time
const bogusPTS = 100000.0

// fillBuffers queues the output buffer, retrying while the device ring is
// full, and reports whether it was queued. Control events keep being served
// while waiting unless ignoreEvents is set. Returns early when the output
// buffer is discarded by an event, when the device reconnects, or on
// shutdown.
//
// With ignoreEvents set the wait is bounded: the buffer is dropped once
// playback is no longer wanted or the device stays full past the drain
// timeout, so pending events are never held back for long.
func (q *AudioQueue) fillBuffers(pts float64, ignoreEvents bool) bool {
	if !ignoreEvents {
		q.parseEvents()
		if q.out.WholeSize() == 0 {
			return false
		}
	}

	deadline := time.Now().Add(q.mgr.DrainTimeout())
	skipResume := false
	for {
		res := q.mgr.Queue(q.ctx, q.out)
		if res.Flushed {
			q.hist.Reset()
		}
		if res.Queued {
			if res.Start {
				q.startPlayback(pts)
			}
			return true
		}

		// ring is full
		if !ignoreEvents {
			skipResume = q.parseEvents()
			if q.out.WholeSize() == 0 {
				return false
			}
		} else if !q.IsPlaying() || time.Now().After(deadline) {
			log.Printf("Device ring stays full, dropping %d bytes of output", q.out.WholeSize())
			return false
		}
		if q.quitting() {
			return false
		}
		if !q.checkConnected() {
			return false
		}

		if !skipResume && !q.mgr.IsPlaying() && q.IsPlaying() {
			// the ring is full on a stopped device: play the backlog
			q.startPlayback(pts)
		} else {
			q.correctDrift(pts)
		}
		if q.out.WholeSize() == 0 {
			return false
		}
		q.waitDrain()
	}
}

// flushTail queues what is left of the output buffer when a stream ends. A
// stream too short to fill the ring is started here when playback is
// wanted, since no further buffer will complete the ring.
func (q *AudioQueue) flushTail() {
	if q.out.WholeSize() != 0 && q.fillBuffers(q.pts, true) {
		q.hist.Push(q.out.WholeSize())
	}
	q.out.Clear()
	q.src.Clear()

	if q.quitting() || !q.IsPlaying() || q.mgr.IsPlaying() {
		return
	}
	if q.mgr.Pending() > 0 {
		q.startPlayback(q.pts)
	}
}

// inFlight estimates the seconds of audio staged ahead of the speaker
func (q *AudioQueue) inFlight() float64 {
	second := q.out.SecondSize()
	if second == 0 {
		return 0
	}
	return float64(q.hist.Sum()+q.out.WholeSize()) / float64(second)
}

// startPlayback anchors the clock at the time now audible and starts every
// source at once, pausing again if playback was not requested
func (q *AudioQueue) startPlayback(pts float64) {
	anchor := pts - q.inFlight()
	if anchor >= bogusPTS {
		anchor = 0
	}

	playing := q.IsPlaying()
	if playing {
		q.clock.StartAt(anchor)
	} else {
		q.clock.Restart(anchor)
	}
	q.lastDriftPTS = pts

	q.mgr.PlayAll()
	if q.checkConnected() {
		log.Printf("Audio was stopped, playing from %.3fs", anchor)
	}
	if !playing {
		q.mgr.PauseAll()
	}
	q.reportState()
}

// correctDrift moves the clock forward to the position the device reports,
// at most once per timestamp
func (q *AudioQueue) correctDrift(pts float64) {
	if pts == q.lastDriftPTS {
		return
	}
	anchor := pts - (q.inFlight() - q.mgr.SecOffset())
	if anchor >= bogusPTS {
		return
	}
	q.lastDriftPTS = pts
	q.clock.Advance(anchor)
}

// checkConnected reopens the session when the device went away. It returns
// false after a reconnect, once the buffers are reshaped for the new
// session; playback resynchronizes from the next timestamp.
func (q *AudioQueue) checkConnected() bool {
	if q.mgr.CheckConnected() {
		return true
	}

	q.publishSession()
	q.notify(ErrDeviceDisconnected)
	if q.mgr.SessionState() != output.SessionReady {
		q.notify(ErrDeviceUnavailable)
	}
	q.reconfigure()
	q.prevState = -1
	return false
}

// waitDrain blocks until the device finishes a buffer, a control event
// arrives, the queue closes or the retry interval passes
func (q *AudioQueue) waitDrain() {
	timer := time.NewTimer(q.config.RetryInterval)
	defer timer.Stop()

	select {
	case <-q.mgr.Drained():
	case <-q.wake:
	case <-q.ctx.Done():
	case <-timer.C:
	}
}
