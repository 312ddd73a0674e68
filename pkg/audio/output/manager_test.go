// ABOUTME: Tests for the device output manager
// ABOUTME: Exercises the buffer ring fill cycle against a manually driven Null device
package output

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Resonate-Protocol/audioqueue/pkg/audio"
)

const testFrames = 100

func newTestManager(t *testing.T, caps audio.Capabilities) (*Manager, *Null) {
	t.Helper()
	dev := NewNull(NullConfig{SampleRate: 48000, Manual: true, Capabilities: caps})
	m := NewManager(dev, ManagerConfig{DrainTimeout: 100 * time.Millisecond, PollInterval: time.Millisecond})
	if err := m.Open(""); err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(m.Close)
	return m, dev
}

// stereoBuffer returns a full stereo buffer of testFrames frames
func stereoBuffer(format audio.SampleFormat) *audio.SampleBuffer {
	size := testFrames * 2 * format.BytesPerSample()
	buf := audio.NewSampleBuffer(format, size)
	buf.SetupChannels(audio.LayoutStereo, audio.ConventionPCM, 1)
	buf.SetRate(48000)
	buf.SetSize(size)
	return buf
}

func TestManagerInitialFillStartsOnFullRing(t *testing.T) {
	m, dev := newTestManager(t, audio.Capabilities{})
	ctx := context.Background()
	buf := stereoBuffer(audio.SampleS16)

	for i := 0; i < RingSize; i++ {
		res := m.Queue(ctx, buf)
		if !res.Queued {
			t.Fatalf("buffer %d not queued", i)
		}
		wantStart := i == RingSize-1
		if res.Start != wantStart {
			t.Errorf("buffer %d: expected start=%v, got %v", i, wantStart, res.Start)
		}
	}

	src := m.Sources()[0]
	if got := dev.Queued(src); got != RingSize {
		t.Errorf("expected %d queued, got %d", RingSize, got)
	}

	m.PlayAll()
	if res := m.Queue(ctx, buf); res.Queued {
		t.Error("expected full ring to refuse the buffer")
	}
	if got := dev.Queued(src); got > RingSize {
		t.Errorf("ring exceeded %d: %d", RingSize, got)
	}
	if got := m.QueueReady(0); got != 0 {
		t.Errorf("expected no room, got %d", got)
	}
}

func TestManagerSteadyStateRecyclesBuffers(t *testing.T) {
	m, dev := newTestManager(t, audio.Capabilities{})
	ctx := context.Background()
	buf := stereoBuffer(audio.SampleS16)

	for i := 0; i < RingSize; i++ {
		m.Queue(ctx, buf)
	}
	m.PlayAll()

	for cycle := 0; cycle < 5; cycle++ {
		dev.Advance(testFrames)
		if got := m.QueueReady(0); got != 1 {
			t.Errorf("cycle %d: expected 1 ready, got %d", cycle, got)
		}
		res := m.Queue(ctx, buf)
		if !res.Queued || res.Start || res.Flushed {
			t.Errorf("cycle %d: unexpected result %+v", cycle, res)
		}
		src := m.Sources()[0]
		if got := dev.Queued(src); got != RingSize {
			t.Errorf("cycle %d: expected %d queued, got %d", cycle, RingSize, got)
		}
		if !m.IsPlaying() {
			t.Errorf("cycle %d: expected source to keep playing", cycle)
		}
	}
}

func TestManagerEmptyBufferInSteadyState(t *testing.T) {
	m, dev := newTestManager(t, audio.Capabilities{})
	ctx := context.Background()
	buf := stereoBuffer(audio.SampleS16)

	for i := 0; i < RingSize; i++ {
		m.Queue(ctx, buf)
	}
	m.PlayAll()
	dev.Advance(testFrames)

	buf.Clear()
	res := m.Queue(ctx, buf)
	if !res.Queued {
		t.Error("expected empty buffer to be skipped as queued")
	}
	if got := dev.Processed(m.Sources()[0]); got != 1 {
		t.Errorf("expected processed buffer left in place, got %d", got)
	}
}

func TestManagerFormatChangeFlushesFirst(t *testing.T) {
	m, dev := newTestManager(t, audio.Capabilities{Float32: true})
	ctx := context.Background()

	s16 := stereoBuffer(audio.SampleS16)
	m.Queue(ctx, s16)
	m.Queue(ctx, s16)

	res := m.Queue(ctx, stereoBuffer(audio.SampleF32))
	if !res.Flushed {
		t.Error("expected format change to flush")
	}
	if res.Start {
		t.Error("flushed ring should not start with one buffer")
	}
	if got := dev.Queued(m.Sources()[0]); got != 1 {
		t.Errorf("expected only the new-format buffer queued, got %d", got)
	}
}

func TestManagerRateChangeFlushes(t *testing.T) {
	m, dev := newTestManager(t, audio.Capabilities{})
	ctx := context.Background()

	buf := stereoBuffer(audio.SampleS16)
	m.Queue(ctx, buf)

	buf.SetRate(44100)
	buf.SetSize(buf.PlaneCapacity())
	if res := m.Queue(ctx, buf); !res.Flushed {
		t.Error("expected rate change to flush")
	}
	if got := dev.Queued(m.Sources()[0]); got != 1 {
		t.Errorf("expected 1 queued, got %d", got)
	}
}

func TestManagerStoppedAfterUnderrunRestarts(t *testing.T) {
	m, dev := newTestManager(t, audio.Capabilities{})
	ctx := context.Background()
	buf := stereoBuffer(audio.SampleS16)

	for i := 0; i < RingSize; i++ {
		m.Queue(ctx, buf)
	}
	m.PlayAll()
	dev.Advance(testFrames * (RingSize + 1))

	if m.State() != SourceStopped {
		t.Fatalf("expected underrun to stop the source, got %s", m.State())
	}

	res := m.Queue(ctx, buf)
	if !res.Flushed || !res.Queued {
		t.Errorf("expected drained ring to be flushed and refilled, got %+v", res)
	}
	if got := dev.Queued(m.Sources()[0]); got != 1 {
		t.Errorf("expected 1 queued after restart, got %d", got)
	}
}

func TestManagerSplitSourcesForSurround(t *testing.T) {
	m, dev := newTestManager(t, audio.Capabilities{})
	ctx := context.Background()

	res, err := audio.Resolve(audio.StreamShape{Channels: 6, Sample: audio.SampleS16}, m.Caps())
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if err := m.ConfigureSources(res); err != nil {
		t.Fatalf("ConfigureSources failed: %v", err)
	}

	size := 6 * testFrames * 2
	buf := audio.NewSampleBuffer(audio.SampleS16, size)
	buf.SetupChannels(audio.Layout51, audio.ConventionPCM, 6)
	buf.SetRate(48000)
	buf.SetSize(buf.PlaneCapacity())

	for i := 0; i < RingSize; i++ {
		m.Queue(ctx, buf)
	}

	srcs := m.Sources()
	if len(srcs) != 6 {
		t.Fatalf("expected 6 active sources, got %d", len(srcs))
	}
	for i, src := range srcs {
		if got := dev.Queued(src); got != RingSize {
			t.Errorf("source %d: expected %d queued, got %d", i, RingSize, got)
		}
	}

	m.PlayAll()
	dev.Advance(testFrames)
	if r := m.Queue(ctx, buf); !r.Queued {
		t.Error("expected every group to be refilled")
	}
	for i, src := range srcs {
		if got := dev.Queued(src); got != RingSize {
			t.Errorf("source %d: expected %d queued after refill, got %d", i, RingSize, got)
		}
	}
}

func TestManagerPendingCountsUnplayedBuffers(t *testing.T) {
	m, dev := newTestManager(t, audio.Capabilities{})
	ctx := context.Background()
	buf := stereoBuffer(audio.SampleS16)

	m.Queue(ctx, buf)
	m.Queue(ctx, buf)
	if got := m.Pending(); got != 2 {
		t.Errorf("expected 2 pending, got %d", got)
	}

	m.PlayAll()
	dev.Advance(testFrames + 1)
	if got := m.Pending(); got != 1 {
		t.Errorf("expected 1 pending after a buffer played, got %d", got)
	}

	m.StopAll()
	if got := m.Pending(); got != 0 {
		t.Errorf("expected nothing pending after stop, got %d", got)
	}
}

func TestManagerDrainTimeout(t *testing.T) {
	dev := NewNull(NullConfig{SampleRate: 48000, Manual: true})
	if got := NewManager(dev, ManagerConfig{}).DrainTimeout(); got != 2*time.Second {
		t.Errorf("expected default drain timeout of 2s, got %v", got)
	}

	m, dev := newTestManager(t, audio.Capabilities{})
	ctx := context.Background()

	res, err := audio.Resolve(audio.StreamShape{Channels: 6, Sample: audio.SampleS16}, m.Caps())
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if err := m.ConfigureSources(res); err != nil {
		t.Fatalf("ConfigureSources failed: %v", err)
	}

	buf := audio.NewSampleBuffer(audio.SampleS16, 6*testFrames*2)
	buf.SetupChannels(audio.Layout51, audio.ConventionPCM, 6)
	buf.SetRate(48000)
	buf.SetSize(buf.PlaneCapacity())
	for i := 0; i < RingSize; i++ {
		m.Queue(ctx, buf)
	}
	m.PlayAll()

	// one rear source stalls while the others drain
	srcs := m.Sources()
	stuck := srcs[4]
	if err := dev.PauseAll([]SourceID{stuck}); err != nil {
		t.Fatalf("PauseAll failed: %v", err)
	}
	dev.Advance(testFrames + 1)

	start := time.Now()
	if r := m.Queue(ctx, buf); r.Queued {
		t.Error("expected the stalled source to block the refill")
	}
	if elapsed := time.Since(start); elapsed < 90*time.Millisecond || elapsed > time.Second {
		t.Errorf("expected to give up after the drain timeout, took %v", elapsed)
	}
	if got := dev.Processed(srcs[0]); got != 1 {
		t.Errorf("expected the reference buffer left unrecycled, got %d processed", got)
	}
	if got := dev.Processed(stuck); got != 0 {
		t.Errorf("expected stalled source to hold its buffers, got %d processed", got)
	}
}

func TestManagerDisconnectReopens(t *testing.T) {
	m, dev := newTestManager(t, audio.Capabilities{})
	first := m.SessionID()

	if !m.CheckConnected() {
		t.Fatal("expected connected session")
	}

	dev.Disconnect()
	if m.CheckConnected() {
		t.Error("expected disconnect to be reported")
	}
	if m.SessionState() != SessionReady {
		t.Errorf("expected reopened session, got %s", m.SessionState())
	}
	if m.SessionID() == first {
		t.Error("expected a new session id")
	}
	if !m.CheckConnected() {
		t.Error("expected reopened session to be connected")
	}
}

func TestManagerNamedDeviceFallsBack(t *testing.T) {
	dev := NewNull(NullConfig{Manual: true})
	m := NewManager(dev, ManagerConfig{})

	if err := m.Open("missing"); err != nil {
		t.Fatalf("expected fallback to default device, got %v", err)
	}
	defer m.Close()
	if m.SessionState() != SessionReady {
		t.Errorf("expected ready, got %s", m.SessionState())
	}
}

type brokenDevice struct {
	*Null
}

func (b *brokenDevice) Open(name string) (audio.Capabilities, error) {
	return audio.Capabilities{}, errors.New("no hardware")
}

func TestManagerFailedSessionDropsData(t *testing.T) {
	m := NewManager(&brokenDevice{NewNull(NullConfig{Manual: true})}, ManagerConfig{})

	err := m.Open("")
	if !errors.Is(err, ErrDeviceUnavailable) {
		t.Fatalf("expected ErrDeviceUnavailable, got %v", err)
	}
	if m.SessionState() != SessionFailed {
		t.Errorf("expected failed session, got %s", m.SessionState())
	}

	res := m.Queue(context.Background(), stereoBuffer(audio.SampleS16))
	if !res.Queued || res.Start {
		t.Errorf("expected data to be dropped, got %+v", res)
	}
	if got := m.QueueReady(0); got != 0 {
		t.Errorf("expected 0 ready, got %d", got)
	}
}

func TestManagerQueueReadyNeverNegative(t *testing.T) {
	m, _ := newTestManager(t, audio.Capabilities{})
	ctx := context.Background()
	buf := stereoBuffer(audio.SampleS16)

	for i := 0; i < RingSize+2; i++ {
		m.Queue(ctx, buf)
		for g := -1; g <= MaxSources; g++ {
			if got := m.QueueReady(g); got < 0 || got > RingSize {
				t.Fatalf("QueueReady(%d) out of range: %d", g, got)
			}
		}
	}
}

func TestManagerGainAppliedToDevice(t *testing.T) {
	m, dev := newTestManager(t, audio.Capabilities{})

	m.SetGain(0.25)
	if got := dev.ListenerGain(); got != 0.25 {
		t.Errorf("expected gain 0.25, got %v", got)
	}

	// gain survives a reopen
	m.Reopen("")
	if got := dev.ListenerGain(); got != 0.25 {
		t.Errorf("expected gain 0.25 after reopen, got %v", got)
	}
}
