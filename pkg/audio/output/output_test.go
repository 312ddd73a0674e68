// ABOUTME: Audio device model tests
// ABOUTME: Verifies backend interfaces and software mixer source states
package output

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/Resonate-Protocol/audioqueue/pkg/audio"
	"github.com/Resonate-Protocol/audioqueue/pkg/audio/resample"
)

func TestBackendsImplementDevice(t *testing.T) {
	var _ Device = (*Null)(nil)
	var _ Device = (*Oto)(nil)
	var _ Device = (*Malgo)(nil)
	var _ Device = (*PortAudio)(nil)
}

func TestSourceStateString(t *testing.T) {
	tests := []struct {
		state SourceState
		want  string
	}{
		{SourceInitial, "INITIAL"},
		{SourcePlaying, "PLAYING"},
		{SourcePaused, "PAUSED"},
		{SourceStopped, "STOPPED"},
	}
	for _, tt := range tests {
		if got := tt.state.String(); got != tt.want {
			t.Errorf("expected %s, got %s", tt.want, got)
		}
	}
}

// monoS16 returns frames of a constant mono S16 sample
func monoS16(frames int, value int16) []byte {
	data := make([]byte, frames*2)
	for i := 0; i < frames; i++ {
		binary.LittleEndian.PutUint16(data[i*2:], uint16(value))
	}
	return data
}

func newSoftSource(t *testing.T, s *Soft, buffers int, frames int, rate int) (SourceID, []BufferID) {
	t.Helper()
	srcs, err := s.GenSources(1)
	if err != nil {
		t.Fatalf("GenSources failed: %v", err)
	}
	bufs, err := s.GenBuffers(buffers)
	if err != nil {
		t.Fatalf("GenBuffers failed: %v", err)
	}
	for _, b := range bufs {
		if err := s.BufferData(b, audio.SampleS16, 1, monoS16(frames, 16384), rate); err != nil {
			t.Fatalf("BufferData failed: %v", err)
		}
	}
	return srcs[0], bufs
}

func TestSoftPlayEmptyQueueStaysStopped(t *testing.T) {
	s := NewSoft(48000)
	srcs, _ := s.GenSources(1)

	if s.State(srcs[0]) != SourceInitial {
		t.Fatalf("expected INITIAL, got %s", s.State(srcs[0]))
	}
	s.PlayAll(srcs)
	if s.State(srcs[0]) != SourceStopped {
		t.Errorf("expected STOPPED, got %s", s.State(srcs[0]))
	}
}

func TestSoftSourceLifecycle(t *testing.T) {
	s := NewSoft(48000)
	src, bufs := newSoftSource(t, s, 2, 100, 48000)
	srcs := []SourceID{src}

	if err := s.QueueBuffers(src, bufs...); err != nil {
		t.Fatalf("QueueBuffers failed: %v", err)
	}
	s.PlayAll(srcs)
	if s.State(src) != SourcePlaying {
		t.Fatalf("expected PLAYING, got %s", s.State(src))
	}

	s.Mix(make([]float32, 2*150))
	if got := s.Processed(src); got != 1 {
		t.Errorf("expected 1 processed, got %d", got)
	}
	if got := s.SecOffset(src); math.Abs(got-150.0/48000) > 1e-9 {
		t.Errorf("expected offset %v, got %v", 150.0/48000, got)
	}

	s.PauseAll(srcs)
	s.Mix(make([]float32, 2*100))
	if s.State(src) != SourcePaused {
		t.Errorf("expected PAUSED, got %s", s.State(src))
	}
	if got := s.Processed(src); got != 1 {
		t.Errorf("paused source advanced: %d processed", got)
	}

	s.PlayAll(srcs)
	s.Mix(make([]float32, 2*100))
	if s.State(src) != SourceStopped {
		t.Errorf("expected STOPPED after queue ran out, got %s", s.State(src))
	}
	if got := s.Processed(src); got != 2 {
		t.Errorf("expected 2 processed, got %d", got)
	}

	select {
	case <-s.Drained():
	default:
		t.Error("expected a drain notification")
	}
}

func TestSoftUnqueueOnlyProcessed(t *testing.T) {
	s := NewSoft(48000)
	src, bufs := newSoftSource(t, s, 3, 100, 48000)
	s.QueueBuffers(src, bufs...)

	if _, err := s.UnqueueBuffers(src, 1); err == nil {
		t.Error("expected error unqueueing an unplayed buffer")
	}

	s.PlayAll([]SourceID{src})
	s.Mix(make([]float32, 2*100))

	got, err := s.UnqueueBuffers(src, 1)
	if err != nil {
		t.Fatalf("UnqueueBuffers failed: %v", err)
	}
	if len(got) != 1 || got[0] != bufs[0] {
		t.Errorf("expected [%d], got %v", bufs[0], got)
	}
	if s.Queued(src) != 2 || s.Processed(src) != 0 {
		t.Errorf("expected 2 queued 0 processed, got %d/%d", s.Queued(src), s.Processed(src))
	}
}

func TestSoftStopMarksAllProcessed(t *testing.T) {
	s := NewSoft(48000)
	src, bufs := newSoftSource(t, s, 3, 100, 48000)
	s.QueueBuffers(src, bufs...)
	s.PlayAll([]SourceID{src})

	s.StopAll([]SourceID{src})
	if got := s.Processed(src); got != 3 {
		t.Errorf("expected 3 processed after stop, got %d", got)
	}
	if got := s.SecOffset(src); got != 0 {
		t.Errorf("expected 0 offset when stopped, got %v", got)
	}

	// replay starts from the head of the queue
	s.PlayAll([]SourceID{src})
	if s.Processed(src) != 0 || s.State(src) != SourcePlaying {
		t.Errorf("expected rewind on play, got %d processed, %s", s.Processed(src), s.State(src))
	}
}

func TestSoftResamplesToMixerRate(t *testing.T) {
	s := NewSoft(48000)
	src, bufs := newSoftSource(t, s, 1, 100, 24000)
	s.QueueBuffers(src, bufs...)
	s.PlayAll([]SourceID{src})

	s.Mix(make([]float32, 2*150))
	if s.Processed(src) != 0 {
		t.Error("24kHz buffer should last 200 frames at 48kHz")
	}
	s.Mix(make([]float32, 2*100))
	if s.Processed(src) != 1 {
		t.Error("expected buffer to be processed")
	}
}

func TestSoftResamplerCarriesAcrossBuffers(t *testing.T) {
	s := NewSoft(48000)
	src, bufs := newSoftSource(t, s, 8, 100, 44100)
	for _, b := range bufs {
		if err := s.QueueBuffers(src, b); err != nil {
			t.Fatalf("QueueBuffers failed: %v", err)
		}
	}

	total := 0
	for _, b := range bufs {
		total += s.buffers[b].frames
	}

	// the stream converts as if it were one chunk
	whole := make([]int32, 800)
	want := len(resample.New(44100, 48000, 1).Convert(whole))
	if total != want {
		t.Errorf("expected %d frames across the queue, got %d", want, total)
	}

	// a queued buffer is not converted twice when replayed
	s.StopAll([]SourceID{src})
	s.PlayAll([]SourceID{src})
	if got := s.buffers[bufs[0]].frames; got != 109 {
		t.Errorf("expected first buffer to keep 109 frames, got %d", got)
	}
}

func TestSoftPanningAndGain(t *testing.T) {
	tests := []struct {
		name  string
		pos   audio.Vec3
		gain  float32
		left  float64
		right float64
	}{
		{"front left", audio.RoleFrontLeft.Position(), 1, 0.5, 0},
		{"front right", audio.RoleFrontRight.Position(), 1, 0, 0.5},
		{"center", audio.Vec3{}, 1, 0.5 * math.Sqrt2 / 2, 0.5 * math.Sqrt2 / 2},
		{"rear left", audio.RoleRearLeft.Position(), 1, 0.5 * rearAttenuation, 0},
		{"half gain", audio.RoleFrontLeft.Position(), 0.5, 0.25, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewSoft(48000)
			src, bufs := newSoftSource(t, s, 1, 10, 48000)
			s.SetSourcePosition(src, tt.pos, true)
			s.SetListenerGain(tt.gain)
			s.QueueBuffers(src, bufs...)
			s.PlayAll([]SourceID{src})

			out := make([]float32, 2*4)
			s.Mix(out)
			if math.Abs(float64(out[0])-tt.left) > 1e-3 {
				t.Errorf("left: expected %v, got %v", tt.left, out[0])
			}
			if math.Abs(float64(out[1])-tt.right) > 1e-3 {
				t.Errorf("right: expected %v, got %v", tt.right, out[1])
			}
		})
	}
}

func TestSoftRejectsBadBufferData(t *testing.T) {
	s := NewSoft(48000)
	bufs, _ := s.GenBuffers(1)

	if err := s.BufferData(bufs[0], audio.SampleS16, 3, make([]byte, 12), 48000); err == nil {
		t.Error("expected error for 3 channels")
	}
	if err := s.BufferData(bufs[0], audio.SampleUnknown, 2, make([]byte, 12), 48000); err == nil {
		t.Error("expected error for unknown format")
	}
	if err := s.BufferData(bufs[0], audio.SampleS16, 2, make([]byte, 12), 0); err == nil {
		t.Error("expected error for zero rate")
	}
}

func TestHistory(t *testing.T) {
	h := NewHistory(3)

	for _, size := range []int{100, 200, 300} {
		h.Push(size)
	}
	if h.Sum() != 600 || h.Len() != 3 {
		t.Errorf("expected sum 600 len 3, got %d/%d", h.Sum(), h.Len())
	}

	h.Push(50)
	if h.Sum() != 550 {
		t.Errorf("expected oldest entry evicted, sum 550, got %d", h.Sum())
	}

	h.Reset()
	if h.Sum() != 0 || h.Len() != 0 {
		t.Errorf("expected empty history, got %d/%d", h.Sum(), h.Len())
	}
	if h.Depth() != 3 {
		t.Errorf("expected depth 3, got %d", h.Depth())
	}
}

func TestNullOpenNames(t *testing.T) {
	n := NewNull(NullConfig{Manual: true})

	if _, err := n.Open("speakers"); err == nil {
		t.Error("expected error for unknown device name")
	}
	if _, err := n.Open("null"); err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer n.Close()

	if !n.Connected() {
		t.Error("expected connected after open")
	}
	n.Disconnect()
	if n.Connected() {
		t.Error("expected disconnected")
	}
}
