// ABOUTME: Tests for audio sources and the packet streamer
// ABOUTME: Uses the test tone and a recording queue in place of files and devices
package source

import (
	"context"
	"errors"
	"io"
	"math"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/Resonate-Protocol/audioqueue/pkg/audioqueue"
)

func TestNewSourceErrors(t *testing.T) {
	dir := t.TempDir()
	wav := filepath.Join(dir, "clip.wav")
	if err := os.WriteFile(wav, []byte("RIFF"), 0o644); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name string
		path string
		want error
	}{
		{"missing file", filepath.Join(dir, "missing.mp3"), ErrNotFound},
		{"unsupported extension", wav, ErrUnsupported},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.path)
			if !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestNewSourceDefaultsToTone(t *testing.T) {
	src, err := New("")
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer src.Close()

	if _, ok := src.(*Tone); !ok {
		t.Fatalf("expected *Tone, got %T", src)
	}
	if src.SampleRate() != 48000 || src.Channels() != 2 {
		t.Errorf("unexpected tone shape: %dHz %dch", src.SampleRate(), src.Channels())
	}
}

func TestNewHTTPMP3Status(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	if _, err := New(srv.URL + "/stream.mp3"); err == nil {
		t.Error("expected error for 404 stream")
	}
}

func TestToneRead(t *testing.T) {
	tone := NewTone(ToneConfig{Frequency: 1000, SampleRate: 8000, Channels: 2, Amplitude: 1})
	samples := make([]int32, 16)

	n, err := tone.Read(samples)
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if n != 16 {
		t.Fatalf("expected 16 samples, got %d", n)
	}

	// 1kHz at 8kHz peaks on the third frame
	if samples[0] != 0 {
		t.Errorf("expected first sample 0, got %d", samples[0])
	}
	if samples[4] != samples[5] {
		t.Errorf("expected both channels equal, got %d and %d", samples[4], samples[5])
	}
	if math.Abs(float64(samples[4])-maxSample24) > 1 {
		t.Errorf("expected peak near %d, got %d", maxSample24, samples[4])
	}
}

func TestToneDurationEndsWithEOF(t *testing.T) {
	tone := NewTone(ToneConfig{SampleRate: 1000, Channels: 1, Duration: 0.01})
	samples := make([]int32, 8)

	n, err := tone.Read(samples)
	if err != nil || n != 8 {
		t.Fatalf("expected 8 samples, got %d (%v)", n, err)
	}
	n, err = tone.Read(samples)
	if err != nil || n != 2 {
		t.Fatalf("expected 2 remaining samples, got %d (%v)", n, err)
	}
	if _, err := tone.Read(samples); !errors.Is(err, io.EOF) {
		t.Errorf("expected EOF, got %v", err)
	}

	if err := tone.Seek(0.005); err != nil {
		t.Fatalf("Seek failed: %v", err)
	}
	n, _ = tone.Read(samples)
	if n != 5 {
		t.Errorf("expected 5 samples after seek, got %d", n)
	}
}

func TestResampledRate(t *testing.T) {
	tone := NewTone(ToneConfig{SampleRate: 24000, Channels: 2})
	r := NewResampled(tone, 48000)
	if r.SampleRate() != 48000 {
		t.Errorf("expected 48000, got %d", r.SampleRate())
	}

	samples := make([]int32, 960*2)
	n, err := r.Read(samples)
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if n == 0 || n%2 != 0 {
		t.Errorf("expected whole stereo frames, got %d samples", n)
	}
	if err := r.Seek(1); err != nil {
		t.Errorf("expected seekable wrapper, got %v", err)
	}
}

type recordingQueue struct {
	mu      sync.Mutex
	params  []audioqueue.StreamParams
	packets []*audioqueue.Packet
	events  []audioqueue.EventKind
	discard int
}

func (q *recordingQueue) Init(params audioqueue.StreamParams) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.params = append(q.params, params)
	return nil
}

func (q *recordingQueue) Push(ctx context.Context, p *audioqueue.Packet) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.packets = append(q.packets, p)
	return nil
}

func (q *recordingQueue) PushEvent(kind audioqueue.EventKind, seconds float64) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.events = append(q.events, kind)
}

func (q *recordingQueue) Discard() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.discard++
	q.packets = nil
}

func TestStreamerPCM(t *testing.T) {
	tone := NewTone(ToneConfig{SampleRate: 48000, Channels: 2, Duration: 0.05})
	q := &recordingQueue{}

	s, err := NewStreamer(tone, q, StreamerConfig{})
	if err != nil {
		t.Fatalf("NewStreamer failed: %v", err)
	}
	if err := s.Run(context.Background()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if len(q.params) != 1 {
		t.Fatalf("expected one Init, got %d", len(q.params))
	}
	f := q.params[0].Format
	if f.Codec != "pcm" || f.BitDepth != 24 || f.SampleRate != 48000 || f.Channels != 2 {
		t.Errorf("unexpected format: %+v", f)
	}

	// start, 20ms, 20ms, 10ms, end
	kinds := []audioqueue.PacketKind{
		audioqueue.PacketStart,
		audioqueue.PacketData,
		audioqueue.PacketData,
		audioqueue.PacketData,
		audioqueue.PacketEnd,
	}
	if len(q.packets) != len(kinds) {
		t.Fatalf("expected %d packets, got %d", len(kinds), len(q.packets))
	}
	for i, want := range kinds {
		if q.packets[i].Kind != want {
			t.Errorf("packet %d: expected %s, got %s", i, want, q.packets[i].Kind)
		}
	}

	wantPTS := []float64{0, 0.02, 0.04}
	for i, pts := range wantPTS {
		p := q.packets[i+1]
		if !p.HasPTS || math.Abs(p.PTS-pts) > 1e-9 {
			t.Errorf("packet %d: expected pts %.3f, got %.3f", i+1, pts, p.PTS)
		}
	}
	if got := len(q.packets[3].Data); got != 480*2*3 {
		t.Errorf("expected short tail of %d bytes, got %d", 480*2*3, got)
	}
}

func TestStreamerSeek(t *testing.T) {
	tone := NewTone(ToneConfig{SampleRate: 48000, Channels: 2, Duration: 0.75})
	q := &recordingQueue{}

	s, err := NewStreamer(tone, q, StreamerConfig{ChunkMs: 250})
	if err != nil {
		t.Fatalf("NewStreamer failed: %v", err)
	}
	if err := s.Seek(0.5); err != nil {
		t.Fatalf("Seek failed: %v", err)
	}
	if len(q.events) != 1 || q.events[0] != audioqueue.EventSeek {
		t.Fatalf("expected one seek event, got %v", q.events)
	}

	if err := s.Run(context.Background()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	// the seek discards the start marker pushed before it
	if q.discard != 2 {
		t.Errorf("expected 2 discards, got %d", q.discard)
	}
	if len(q.packets) != 3 {
		t.Fatalf("expected flush, data and end, got %d packets", len(q.packets))
	}
	if q.packets[0].Kind != audioqueue.PacketFlush {
		t.Errorf("expected flush first, got %s", q.packets[0].Kind)
	}
	if p := q.packets[1]; p.PTS != 0.5 {
		t.Errorf("expected pts 0.5 after seek, got %.3f", p.PTS)
	}
	if s.Position() != 0.75 {
		t.Errorf("expected position 0.75, got %.3f", s.Position())
	}
}

func TestStreamerSeekLiveSource(t *testing.T) {
	src := &HTTPMP3{}
	var s Streamer
	s.source = src
	if err := s.Seek(1); !errors.Is(err, ErrNotSeekable) {
		t.Errorf("expected ErrNotSeekable, got %v", err)
	}
}

func TestStreamerOpusResamples(t *testing.T) {
	tone := NewTone(ToneConfig{SampleRate: 24000, Channels: 2, Duration: 0.1})
	q := &recordingQueue{}

	s, err := NewStreamer(tone, q, StreamerConfig{Codec: "opus"})
	if err != nil {
		t.Fatalf("NewStreamer failed: %v", err)
	}
	f := s.Format()
	if f.SampleRate != 48000 || f.Codec != "opus" {
		t.Fatalf("unexpected format: %+v", f)
	}

	if err := s.Run(context.Background()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	data := 0
	for _, p := range q.packets {
		if p.Kind == audioqueue.PacketData {
			data++
		}
	}
	if data < 4 {
		t.Errorf("expected at least 4 opus packets for 100ms, got %d", data)
	}
	if last := q.packets[len(q.packets)-1]; last.Kind != audioqueue.PacketEnd {
		t.Errorf("expected end marker last, got %s", last.Kind)
	}
}

func TestStreamerStopsOnCancel(t *testing.T) {
	q := &recordingQueue{}
	s, err := NewStreamer(NewTone(ToneConfig{}), q, StreamerConfig{})
	if err != nil {
		t.Fatalf("NewStreamer failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := s.Run(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestSeekableLooksThroughResampler(t *testing.T) {
	tone := NewTone(ToneConfig{SampleRate: 24000})
	if !seekable(NewResampled(tone, 48000)) {
		t.Error("expected resampled tone to be seekable")
	}
	if seekable(&Resampled{source: &HTTPMP3{}}) {
		t.Error("expected resampled stream to be unseekable")
	}
}
