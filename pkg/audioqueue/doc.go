// ABOUTME: Audio queue package
// ABOUTME: Decode-and-playback engine streaming packets to an output device in sync with a clock
// Package audioqueue runs the decode-consume loop of a player.
//
// An AudioQueue owns one worker goroutine. The worker pops packets from a
// PacketSource, decodes them, reshapes the frames for the device and keeps
// a ring of device buffers filled. The playback clock is anchored whenever
// playback starts and nudged forward from the device position while the
// ring is full.
//
// The controlling side steers the worker with events and reads the clock:
//
//	q := audioqueue.New(audioqueue.Config{OnError: handleError})
//	defer q.Close()
//
//	if err := q.Init(audioqueue.StreamParams{Format: format}); err != nil {
//		return err
//	}
//	q.PushEvent(audioqueue.EventPlay, 0)
//	q.Push(ctx, audioqueue.MarkerPacket(audioqueue.PacketStart))
//	q.Push(ctx, audioqueue.DataPacket(payload, pts))
//
//	pos := q.Pts()
package audioqueue
