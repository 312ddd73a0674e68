// ABOUTME: Playback clock package
// ABOUTME: Provides the pausable presentation clock used by the audio queue
// Package sync provides the playback clock that tracks the audible position.
//
// The clock is anchored whenever playback (re)starts and can only be nudged
// forward by drift correction, so readers never observe time going backwards
// except after an explicit restart.
//
// Example:
//
//	clock := sync.NewClock()
//	clock.StartAt(12.5)
//	pos := clock.Elapsed()
package sync
