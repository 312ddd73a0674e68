// ABOUTME: Device output manager streaming sample buffers into device sources
// ABOUTME: Owns the device session, the per-source buffer rings and the fill cycle
package output

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/Resonate-Protocol/audioqueue/pkg/audio"
	"github.com/google/uuid"
)

const (
	// RingSize is the number of device buffers each source cycles through
	RingSize = 3

	// MaxSources is the number of sources allocated per session
	MaxSources = 6

	defaultDrainTimeout = 2 * time.Second
	defaultPollInterval = 10 * time.Millisecond
)

// SessionState is the lifecycle of a device session
type SessionState int32

const (
	SessionNotInitialized SessionState = iota
	SessionReady
	SessionFailed
)

func (s SessionState) String() string {
	switch s {
	case SessionNotInitialized:
		return "not-initialized"
	case SessionReady:
		return "ready"
	case SessionFailed:
		return "failed"
	}
	return fmt.Sprintf("unknown(%d)", int32(s))
}

// ManagerConfig holds Manager settings
type ManagerConfig struct {
	// Gain is the initial listener gain (default 1)
	Gain float32
	// DrainTimeout bounds the wait for a non-reference source to drain
	DrainTimeout time.Duration
	// PollInterval is how often drain progress is polled while waiting
	PollInterval time.Duration
}

// QueueResult reports the outcome of one fill cycle
type QueueResult struct {
	// Queued is true when the buffer was accepted (or deliberately dropped)
	Queued bool
	// Start is true when the ring just filled up on a stopped source and
	// playback should begin
	Start bool
	// Flushed is true when stale device queues were emptied first
	Flushed bool
}

// Manager streams sample buffers into a ring of RingSize device buffers per
// source. It is owned by a single goroutine.
type Manager struct {
	dev Device
	cfg ManagerConfig

	state     SessionState
	caps      audio.Capabilities
	sessionID string
	name      string

	sources []SourceID
	buffers [][]BufferID
	free    [][]BufferID
	active  int
	gain    float32

	// shape of the data currently staged on the device
	prevFormat   audio.SampleFormat
	prevRate     int
	prevChannels int

	prevState     SourceState
	prevQueued    int
	prevProcessed int
}

// NewManager creates a manager for a device; no session is opened yet
func NewManager(dev Device, cfg ManagerConfig) *Manager {
	if cfg.Gain == 0 {
		cfg.Gain = 1
	}
	if cfg.DrainTimeout == 0 {
		cfg.DrainTimeout = defaultDrainTimeout
	}
	if cfg.PollInterval == 0 {
		cfg.PollInterval = defaultPollInterval
	}
	return &Manager{
		dev:       dev,
		cfg:       cfg,
		gain:      cfg.Gain,
		active:    1,
		prevState: -1,
	}
}

// Open starts a session on the named device, falling back to the default
// device when the named one cannot be opened
func (m *Manager) Open(name string) error {
	if m.state == SessionReady {
		m.Close()
	}

	caps, err := m.dev.Open(name)
	if err != nil && name != "" {
		log.Printf("Failed to open audio device %q: %v, falling back to default device", name, err)
		caps, err = m.dev.Open("")
	}
	if err != nil {
		m.state = SessionFailed
		return fmt.Errorf("%w: %v", ErrDeviceUnavailable, err)
	}

	if err := m.allocate(); err != nil {
		m.dev.Close()
		m.state = SessionFailed
		return fmt.Errorf("%w: %v", ErrDeviceUnavailable, err)
	}

	for _, src := range m.sources {
		if err := m.dev.SetSourcePosition(src, audio.Vec3{}, true); err != nil {
			log.Printf("Failed to position source %d: %v", src, err)
		}
	}
	if err := m.dev.SetListenerGain(m.gain); err != nil {
		log.Printf("Failed to set listener gain: %v", err)
	}

	m.caps = caps
	m.name = name
	m.sessionID = uuid.New().String()
	m.state = SessionReady
	m.active = 1
	m.forgetFormat()

	log.Printf("Audio session %s opened (device=%q, float32=%v, float64=%v, multichannel=%v)",
		m.sessionID, name, caps.Float32, caps.Float64, caps.MultiChannel)
	return nil
}

func (m *Manager) allocate() error {
	sources, err := m.dev.GenSources(MaxSources)
	if err != nil {
		return fmt.Errorf("generate sources: %w", err)
	}
	m.sources = sources
	m.buffers = make([][]BufferID, len(sources))
	m.free = make([][]BufferID, len(sources))
	for i := range sources {
		bufs, err := m.dev.GenBuffers(RingSize)
		if err != nil {
			return fmt.Errorf("generate buffers for source %d: %w", i, err)
		}
		m.buffers[i] = bufs
		m.free[i] = append([]BufferID(nil), bufs...)
	}
	return nil
}

// Close empties the device queues and ends the session
func (m *Manager) Close() {
	if m.state != SessionReady {
		m.state = SessionNotInitialized
		return
	}

	m.Empty()
	if err := m.dev.DeleteSources(m.sources); err != nil {
		log.Printf("Failed to delete sources: %v", err)
	}
	for _, bufs := range m.buffers {
		if err := m.dev.DeleteBuffers(bufs); err != nil {
			log.Printf("Failed to delete buffers: %v", err)
		}
	}
	if err := m.dev.Close(); err != nil {
		log.Printf("Failed to close audio device: %v", err)
	}

	log.Printf("Audio session %s closed", m.sessionID)
	m.sources = nil
	m.buffers = nil
	m.free = nil
	m.state = SessionNotInitialized
}

// Reopen closes the session and opens a new one on the named device
func (m *Manager) Reopen(name string) error {
	m.Close()
	return m.Open(name)
}

// Caps returns the capabilities of the current session
func (m *Manager) Caps() audio.Capabilities {
	return m.caps
}

// SessionState returns the session lifecycle state
func (m *Manager) SessionState() SessionState {
	return m.state
}

// SessionID identifies the current session in logs
func (m *Manager) SessionID() string {
	return m.sessionID
}

// DeviceName returns the name the session was requested with
func (m *Manager) DeviceName() string {
	return m.name
}

// Sources returns the sources carrying the current layout
func (m *Manager) Sources() []SourceID {
	if m.state != SessionReady {
		return nil
	}
	return m.sources[:m.active]
}

// ConfigureSources empties the device and prepares one source per group of
// the resolution, placing split channels at their speaker positions
func (m *Manager) ConfigureSources(res audio.Resolution) error {
	groups := res.Groups
	if groups < 1 || groups > MaxSources {
		return fmt.Errorf("%w: %d groups", audio.ErrUnsupportedChannels, groups)
	}
	m.active = groups
	if m.state != SessionReady {
		return nil
	}

	m.Empty()
	for i, src := range m.sources {
		var pos audio.Vec3
		if res.Split() && i < len(res.Positions) {
			pos = res.Positions[i]
		}
		if err := m.dev.SetSourcePosition(src, pos, true); err != nil {
			log.Printf("Failed to position source %d: %v", src, err)
		}
	}
	log.Printf("Audio sources configured: %s", res)
	return nil
}

// Empty stops every source and returns all buffers to the free rings
func (m *Manager) Empty() {
	if m.state != SessionReady {
		return
	}
	if err := m.dev.StopAll(m.sources); err != nil {
		log.Printf("Failed to stop sources: %v", err)
	}
	for i, src := range m.sources {
		if n := m.dev.Queued(src); n > 0 {
			if _, err := m.dev.UnqueueBuffers(src, n); err != nil {
				log.Printf("Failed to unqueue %d buffers from source %d: %v", n, src, err)
			}
		}
		m.free[i] = append(m.free[i][:0], m.buffers[i]...)
	}
	m.forgetFormat()
}

func (m *Manager) forgetFormat() {
	m.prevFormat = audio.SampleUnknown
	m.prevRate = 0
	m.prevChannels = 0
}

// State returns the state of the reference source, logging transitions
func (m *Manager) State() SourceState {
	if m.state != SessionReady {
		return SourceStopped
	}
	state := m.dev.State(m.sources[0])
	if state != m.prevState {
		log.Printf("Audio source state: %s", state)
		m.prevState = state
	}
	return state
}

// IsPlaying reports whether the reference source is playing
func (m *Manager) IsPlaying() bool {
	return m.State() == SourcePlaying
}

// Pending returns how many queued buffers the reference source has not
// played yet
func (m *Manager) Pending() int {
	if m.state != SessionReady {
		return 0
	}
	ref := m.sources[0]
	return m.dev.Queued(ref) - m.dev.Processed(ref)
}

// DrainTimeout returns the bound on a single wait for the device to drain
func (m *Manager) DrainTimeout() time.Duration {
	return m.cfg.DrainTimeout
}

// QueueReady returns how many buffers a source group can take right now
func (m *Manager) QueueReady(group int) int {
	if m.state != SessionReady || group < 0 || group >= len(m.sources) {
		return 0
	}
	src := m.sources[group]
	n := RingSize - m.dev.Queued(src) + m.dev.Processed(src)
	if n < 0 {
		return 0
	}
	if n > RingSize {
		return RingSize
	}
	return n
}

// Queue runs one fill cycle for buf. A result with Queued false means the
// ring is full and the caller should wait for the device to drain.
func (m *Manager) Queue(ctx context.Context, buf *audio.SampleBuffer) QueueResult {
	if m.state != SessionReady {
		// nothing can play; let the data go
		return QueueResult{Queued: true}
	}

	ref := m.sources[0]
	state := m.State()
	processed := m.dev.Processed(ref)
	queued := m.dev.Queued(ref)
	if queued != m.prevQueued || processed != m.prevProcessed {
		log.Printf("Audio queue: %d queued, %d processed of %d", queued, processed, RingSize)
		m.prevQueued = queued
		m.prevProcessed = processed
	}

	var res QueueResult
	stopped := state == SourceStopped || state == SourceInitial
	if m.formatChanged(buf) || (stopped && (queued == RingSize || processed > 0)) {
		if queued > 0 {
			log.Printf("Resetting audio queue (format=%s, rate=%d, groups=%d)", buf.Format(), buf.Rate(), buf.Groups())
		}
		m.Empty()
		processed, queued = 0, 0
		state, stopped = SourceStopped, true
		res.Flushed = true
	}

	switch {
	case processed == 0 && queued < RingSize:
		m.rememberFormat(buf)
		for g := 0; g < m.groups(buf); g++ {
			m.stage(g, buf)
		}
		res.Queued = true
		res.Start = stopped && queued+1 == RingSize

	case processed > 0 && (state == SourcePlaying || state == SourcePaused):
		if buf.WholeSize() == 0 {
			log.Printf("Empty output buffer at queue time, skipping")
			res.Queued = true
			return res
		}
		groups := m.groups(buf)
		for g := 1; g < groups; g++ {
			if !m.waitProcessed(ctx, m.sources[g]) {
				return res
			}
		}
		m.rememberFormat(buf)
		for g := 0; g < groups; g++ {
			m.refill(g, buf)
		}
		res.Queued = true
	}
	return res
}

func (m *Manager) groups(buf *audio.SampleBuffer) int {
	g := buf.Groups()
	if g > len(m.sources) {
		g = len(m.sources)
	}
	return g
}

func (m *Manager) formatChanged(buf *audio.SampleBuffer) bool {
	return buf.Format() != m.prevFormat ||
		buf.Rate() != m.prevRate ||
		buf.ChannelsPerGroup() != m.prevChannels
}

func (m *Manager) rememberFormat(buf *audio.SampleBuffer) {
	m.prevFormat = buf.Format()
	m.prevRate = buf.Rate()
	m.prevChannels = buf.ChannelsPerGroup()
}

// stage uploads a group into a free ring buffer and queues it
func (m *Manager) stage(group int, buf *audio.SampleBuffer) {
	free := m.free[group]
	if len(free) == 0 {
		log.Printf("No free buffer for source %d", m.sources[group])
		return
	}
	id := free[0]
	m.free[group] = free[1:]
	m.upload(group, id, buf)
}

// refill recycles the oldest processed buffer of a group
func (m *Manager) refill(group int, buf *audio.SampleBuffer) {
	src := m.sources[group]
	ids, err := m.dev.UnqueueBuffers(src, 1)
	if err != nil || len(ids) == 0 {
		log.Printf("Failed to unqueue buffer from source %d: %v", src, err)
		return
	}
	m.upload(group, ids[0], buf)
}

func (m *Manager) upload(group int, id BufferID, buf *audio.SampleBuffer) {
	src := m.sources[group]
	if err := m.dev.BufferData(id, buf.Format(), buf.ChannelsPerGroup(), buf.Data(group), buf.Rate()); err != nil {
		log.Printf("Failed to upload buffer %d: %v", id, err)
	}
	if err := m.dev.QueueBuffers(src, id); err != nil {
		log.Printf("Failed to queue buffer %d on source %d: %v", id, src, err)
		m.free[group] = append(m.free[group], id)
	}
}

// waitProcessed blocks until src has a processed buffer, giving up after
// the drain timeout
func (m *Manager) waitProcessed(ctx context.Context, src SourceID) bool {
	if m.dev.Processed(src) > 0 {
		return true
	}

	deadline := time.NewTimer(m.cfg.DrainTimeout)
	defer deadline.Stop()
	poll := time.NewTicker(m.cfg.PollInterval)
	defer poll.Stop()

	for {
		select {
		case <-ctx.Done():
			return false
		case <-deadline.C:
			log.Printf("Timed out waiting for source %d to drain", src)
			return false
		case <-m.dev.Drained():
		case <-poll.C:
		}
		if m.dev.Processed(src) > 0 {
			return true
		}
	}
}

// PlayAll starts every active source at once
func (m *Manager) PlayAll() {
	if m.state != SessionReady {
		return
	}
	if err := m.dev.PlayAll(m.Sources()); err != nil {
		log.Printf("Failed to play sources: %v", err)
	}
}

// PauseAll pauses every active source at once
func (m *Manager) PauseAll() {
	if m.state != SessionReady {
		return
	}
	if err := m.dev.PauseAll(m.Sources()); err != nil {
		log.Printf("Failed to pause sources: %v", err)
	}
}

// StopAll stops every active source at once
func (m *Manager) StopAll() {
	if m.state != SessionReady {
		return
	}
	if err := m.dev.StopAll(m.Sources()); err != nil {
		log.Printf("Failed to stop sources: %v", err)
	}
}

// Gain returns the listener gain applied to the session
func (m *Manager) Gain() float32 {
	return m.gain
}

// SetGain applies a listener gain to every source
func (m *Manager) SetGain(gain float32) {
	m.gain = gain
	if m.state != SessionReady {
		return
	}
	if err := m.dev.SetListenerGain(gain); err != nil {
		log.Printf("Failed to set listener gain: %v", err)
	}
}

// SecOffset returns the reference source position inside its queue
func (m *Manager) SecOffset() float64 {
	if m.state != SessionReady {
		return 0
	}
	return m.dev.SecOffset(m.sources[0])
}

// Drained is signalled when the device finishes a buffer
func (m *Manager) Drained() <-chan struct{} {
	return m.dev.Drained()
}

// CheckConnected reports whether the session is still attached to its
// device. On loss it reopens the session on the default device and
// returns false; the caller must reconfigure sources.
func (m *Manager) CheckConnected() bool {
	if m.state != SessionReady || m.dev.Connected() {
		return true
	}

	log.Printf("Audio device was disconnected (session %s)", m.sessionID)
	m.Close()
	if err := m.Open(""); err != nil {
		log.Printf("Failed to reopen audio device: %v", err)
	}
	return false
}
