// ABOUTME: Audio output package for playing audio
// ABOUTME: Provides the Device model, playback backends and the buffer ring manager
// Package output streams PCM buffers to playback devices.
//
// A Device exposes sources that play queues of buffers. The Soft mixer
// implements that model in process; Oto, Malgo, PortAudio and Null feed its
// stereo mix to real or simulated hardware. Manager keeps a ring of RingSize
// buffers per source filled from audio.SampleBuffer values.
//
// Example:
//
//	dev := output.NewMalgo(48000)
//	mgr := output.NewManager(dev, output.ManagerConfig{})
//	if err := mgr.Open(""); err != nil {
//		return err
//	}
//	res := mgr.Queue(ctx, buf)
package output
