// ABOUTME: Software mixer implementing the source/buffer queue model
// ABOUTME: Backends embed it and pull stereo float32 frames through Mix
package output

import (
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/Resonate-Protocol/audioqueue/pkg/audio"
	"github.com/Resonate-Protocol/audioqueue/pkg/audio/resample"
)

const rearAttenuation = 0.70710678

type softBuffer struct {
	channels int
	samples  []int32 // interleaved, 24-bit range
	rate     int     // rate of samples; converted to the mixer rate when queued
	frames   int
	gains    [][2]float32 // per-channel pan for multichannel data
}

type softSource struct {
	state    SourceState
	queue    []BufferID
	current  int // index of the playing buffer; buffers before it are processed
	frame    int // frame position inside the playing buffer
	pos      audio.Vec3
	relative bool
	pan      [2]float32

	// conversion state carried across the buffers of one stream
	resampler    *resample.Resampler
	resampleRate int
	resampleCh   int
}

// convert brings b to the mixer rate with the source's resampler, which is
// replaced when the input rate or channel count changes
func (so *softSource) convert(b *softBuffer, rate int) {
	if b.rate == rate || b.frames == 0 {
		b.rate = rate
		return
	}
	if so.resampler == nil || so.resampleRate != b.rate || so.resampleCh != b.channels {
		so.resampler = resample.New(b.rate, rate, b.channels)
		so.resampleRate = b.rate
		so.resampleCh = b.channels
	}
	b.samples = so.resampler.Convert(b.samples)
	b.frames = len(b.samples) / b.channels
	b.rate = rate
}

// Soft mixes all playing sources down to interleaved stereo float32.
// Stopping a source marks its whole queue processed; playing a stopped
// source replays what is still queued from the head.
type Soft struct {
	mu      sync.Mutex
	rate    int
	nextID  uint32
	buffers map[BufferID]*softBuffer
	sources map[SourceID]*softSource
	gain    float32
	drained chan struct{}
}

// NewSoft creates a mixer producing frames at rate Hz
func NewSoft(rate int) *Soft {
	s := &Soft{drained: make(chan struct{}, 1)}
	s.Reset(rate)
	return s
}

// Reset drops every source and buffer and switches the mixer rate
func (s *Soft) Reset(rate int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.rate = rate
	s.buffers = make(map[BufferID]*softBuffer)
	s.sources = make(map[SourceID]*softSource)
	s.gain = 1
}

// Rate returns the mixer output rate
func (s *Soft) Rate() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rate
}

func (s *Soft) GenSources(n int) ([]SourceID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := make([]SourceID, n)
	for i := range ids {
		s.nextID++
		id := SourceID(s.nextID)
		src := &softSource{state: SourceInitial}
		src.pan = panGains(src.pos)
		s.sources[id] = src
		ids[i] = id
	}
	return ids, nil
}

func (s *Soft) DeleteSources(srcs []SourceID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, id := range srcs {
		if _, ok := s.sources[id]; !ok {
			return fmt.Errorf("%w: %d", errUnknownSource, id)
		}
		delete(s.sources, id)
	}
	return nil
}

func (s *Soft) GenBuffers(n int) ([]BufferID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := make([]BufferID, n)
	for i := range ids {
		s.nextID++
		id := BufferID(s.nextID)
		s.buffers[id] = &softBuffer{}
		ids[i] = id
	}
	return ids, nil
}

func (s *Soft) DeleteBuffers(bufs []BufferID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, id := range bufs {
		if _, ok := s.buffers[id]; !ok {
			return fmt.Errorf("%w: %d", errUnknownBuffer, id)
		}
		delete(s.buffers, id)
	}
	return nil
}

// BufferData decodes data into 24-bit samples. Data at another rate is
// resampled to the mixer rate once the buffer is queued on a source.
func (s *Soft) BufferData(buf BufferID, format audio.SampleFormat, channels int, data []byte, rate int) error {
	bps := format.BytesPerSample()
	if bps == 0 {
		return fmt.Errorf("%w: %v", audio.ErrUnsupportedFormat, format)
	}
	layout, ok := audio.LayoutForChannels(channels)
	if !ok {
		return fmt.Errorf("%w: %d", audio.ErrUnsupportedChannels, channels)
	}
	if rate <= 0 {
		return fmt.Errorf("invalid sample rate: %d", rate)
	}

	frames := len(data) / (bps * channels)
	samples := make([]int32, frames*channels)
	for i := range samples {
		samples[i] = audio.SampleTo24BitInt(data[i*bps:], format)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.buffers[buf]
	if !ok {
		return fmt.Errorf("%w: %d", errUnknownBuffer, buf)
	}
	b.channels = channels
	b.samples = samples
	b.rate = rate
	b.frames = frames
	b.gains = b.gains[:0]
	if channels > 1 {
		for _, role := range layout.Roles(audio.ConventionPCM) {
			b.gains = append(b.gains, panGains(role.Position()))
		}
	}
	return nil
}

func (s *Soft) QueueBuffers(src SourceID, bufs ...BufferID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	so, ok := s.sources[src]
	if !ok {
		return fmt.Errorf("%w: %d", errUnknownSource, src)
	}
	for _, id := range bufs {
		if _, ok := s.buffers[id]; !ok {
			return fmt.Errorf("%w: %d", errUnknownBuffer, id)
		}
	}
	for _, id := range bufs {
		so.convert(s.buffers[id], s.rate)
	}
	so.queue = append(so.queue, bufs...)
	return nil
}

func (s *Soft) UnqueueBuffers(src SourceID, n int) ([]BufferID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	so, ok := s.sources[src]
	if !ok {
		return nil, fmt.Errorf("%w: %d", errUnknownSource, src)
	}
	if n > so.current {
		return nil, fmt.Errorf("%w: want %d, have %d", errNotProcessed, n, so.current)
	}
	out := make([]BufferID, n)
	copy(out, so.queue[:n])
	so.queue = append(so.queue[:0], so.queue[n:]...)
	so.current -= n
	return out, nil
}

// Sources returns the live source ids in creation order
func (s *Soft) Sources() []SourceID {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := make([]SourceID, 0, len(s.sources))
	for id := range s.sources {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func (s *Soft) Processed(src SourceID) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	if so, ok := s.sources[src]; ok {
		return so.current
	}
	return 0
}

func (s *Soft) Queued(src SourceID) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	if so, ok := s.sources[src]; ok {
		return len(so.queue)
	}
	return 0
}

func (s *Soft) State(src SourceID) SourceState {
	s.mu.Lock()
	defer s.mu.Unlock()

	if so, ok := s.sources[src]; ok {
		return so.state
	}
	return SourceStopped
}

func (s *Soft) SecOffset(src SourceID) float64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	so, ok := s.sources[src]
	if !ok || s.rate == 0 || (so.state != SourcePlaying && so.state != SourcePaused) {
		return 0
	}
	frames := so.frame
	for _, id := range so.queue[:so.current] {
		if b, ok := s.buffers[id]; ok {
			frames += b.frames
		}
	}
	return float64(frames) / float64(s.rate)
}

func (s *Soft) PlayAll(srcs []SourceID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, id := range srcs {
		so, ok := s.sources[id]
		if !ok {
			return fmt.Errorf("%w: %d", errUnknownSource, id)
		}
		switch so.state {
		case SourcePlaying:
			continue
		case SourcePaused:
			so.state = SourcePlaying
			continue
		}
		so.current = 0
		so.frame = 0
		if len(so.queue) > 0 {
			so.state = SourcePlaying
		} else {
			so.state = SourceStopped
		}
	}
	return nil
}

func (s *Soft) PauseAll(srcs []SourceID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, id := range srcs {
		so, ok := s.sources[id]
		if !ok {
			return fmt.Errorf("%w: %d", errUnknownSource, id)
		}
		if so.state == SourcePlaying {
			so.state = SourcePaused
		}
	}
	return nil
}

func (s *Soft) StopAll(srcs []SourceID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, id := range srcs {
		so, ok := s.sources[id]
		if !ok {
			return fmt.Errorf("%w: %d", errUnknownSource, id)
		}
		so.state = SourceStopped
		so.current = len(so.queue)
		so.frame = 0
		so.resampler = nil
	}
	return nil
}

func (s *Soft) SetSourcePosition(src SourceID, pos audio.Vec3, relative bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	so, ok := s.sources[src]
	if !ok {
		return fmt.Errorf("%w: %d", errUnknownSource, src)
	}
	so.pos = pos
	so.relative = relative
	so.pan = panGains(pos)
	return nil
}

func (s *Soft) SetListenerGain(gain float32) error {
	if gain < 0 || math.IsNaN(float64(gain)) {
		return fmt.Errorf("invalid gain: %v", gain)
	}
	s.mu.Lock()
	s.gain = gain
	s.mu.Unlock()
	return nil
}

// ListenerGain returns the gain applied to the final mix
func (s *Soft) ListenerGain() float32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gain
}

func (s *Soft) Drained() <-chan struct{} {
	return s.drained
}

// Mix renders len(out)/2 stereo frames from every playing source
func (s *Soft) Mix(out []float32) {
	for i := range out {
		out[i] = 0
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	frames := len(out) / 2
	for _, so := range s.sources {
		if so.state == SourcePlaying {
			s.mixSource(so, out, frames)
		}
	}

	for i, v := range out {
		v *= s.gain
		if v > 1 {
			v = 1
		} else if v < -1 {
			v = -1
		}
		out[i] = v
	}
}

func (s *Soft) mixSource(so *softSource, out []float32, frames int) {
	const scale = 1.0 / 8388608.0

	for f := 0; f < frames; {
		if so.current >= len(so.queue) {
			so.state = SourceStopped
			return
		}
		b := s.buffers[so.queue[so.current]]
		if b == nil || so.frame >= b.frames {
			so.current++
			so.frame = 0
			s.notifyDrained()
			continue
		}

		n := b.frames - so.frame
		if n > frames-f {
			n = frames - f
		}
		for i := 0; i < n; i++ {
			base := (so.frame + i) * b.channels
			o := (f + i) * 2
			if b.channels == 1 {
				v := float32(b.samples[base]) * scale
				out[o] += v * so.pan[0]
				out[o+1] += v * so.pan[1]
				continue
			}
			for ch := 0; ch < b.channels; ch++ {
				v := float32(b.samples[base+ch]) * scale
				out[o] += v * b.gains[ch][0]
				out[o+1] += v * b.gains[ch][1]
			}
		}
		so.frame += n
		f += n
	}

	// finish a buffer that ended exactly on the block boundary
	if so.current < len(so.queue) {
		if b := s.buffers[so.queue[so.current]]; b == nil || so.frame >= b.frames {
			so.current++
			so.frame = 0
			s.notifyDrained()
		}
	}
	if so.current >= len(so.queue) {
		so.state = SourceStopped
	}
}

func (s *Soft) notifyDrained() {
	select {
	case s.drained <- struct{}{}:
	default:
	}
}

// panGains places a position on the stereo field with an equal-power law,
// attenuating sources behind the listener
func panGains(pos audio.Vec3) [2]float32 {
	x := math.Max(-1, math.Min(1, float64(pos.X)))
	angle := (x + 1) * math.Pi / 4
	l, r := math.Cos(angle), math.Sin(angle)
	if pos.Z > 0 {
		l *= rearAttenuation
		r *= rearAttenuation
	}
	return [2]float32{float32(l), float32(r)}
}
