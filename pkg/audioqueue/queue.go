// ABOUTME: Audio queue worker tying decoder, output buffers, device and clock together
// ABOUTME: Public controller API plus the decode-consume loop running on its own goroutine
package audioqueue

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Resonate-Protocol/audioqueue/pkg/audio"
	"github.com/Resonate-Protocol/audioqueue/pkg/audio/decode"
	"github.com/Resonate-Protocol/audioqueue/pkg/audio/output"
	pkgsync "github.com/Resonate-Protocol/audioqueue/pkg/sync"
)

const (
	// DefaultBufferBytes is the size of the decode and output buffers
	DefaultBufferBytes = 192000

	// DefaultSampleRate is the mixer rate of the default device
	DefaultSampleRate = 48000

	defaultIdleInterval  = 10 * time.Millisecond
	defaultRetryInterval = 10 * time.Millisecond
)

var (
	// ErrDeviceUnavailable is reported when no device session could be opened
	ErrDeviceUnavailable = output.ErrDeviceUnavailable

	// ErrDeviceDisconnected is reported when the device went away mid-stream
	ErrDeviceDisconnected = output.ErrDeviceDisconnected

	// ErrUnsupportedFormat is returned for sample formats and codecs that cannot be played
	ErrUnsupportedFormat = audio.ErrUnsupportedFormat

	// ErrUnsupportedChannels is returned for channel counts that cannot be played
	ErrUnsupportedChannels = audio.ErrUnsupportedChannels

	// ErrInvalidStream is returned when stream parameters cannot be decoded
	ErrInvalidStream = errors.New("invalid stream parameters")

	// ErrClosed is returned after Close
	ErrClosed = errors.New("audio queue closed")
)

// Config holds audio queue configuration
type Config struct {
	// DeviceName selects the output device; empty means the default device
	DeviceName string

	// Device is the output backend (default: malgo at 48kHz)
	Device output.Device

	// Manager tunes the device output manager
	Manager output.ManagerConfig

	// Gain is the initial listener gain (default: 1)
	Gain float32

	// Source supplies packets (default: a PacketQueue of QueueSize)
	Source PacketSource

	// QueueSize is the capacity of the default packet queue (default: 512)
	QueueSize int

	// BufferBytes sizes the decode and output buffers (default: 192000)
	BufferBytes int

	// NewDecoder opens a decoder for a stream (default: decode.New)
	NewDecoder func(audio.Format) (decode.Decoder, error)

	// OnError is called when errors occur
	OnError func(error)

	// OnStateChange is called when the hardware playback state changes
	OnStateChange func(output.SourceState)

	// IdleInterval is the wait between polls of an empty packet source
	IdleInterval time.Duration

	// RetryInterval is the longest wait between fill attempts on a full ring
	RetryInterval time.Duration
}

// StreamParams describes the stream the queue is about to play
type StreamParams struct {
	Format audio.Format

	// StartBase is subtracted from every packet timestamp
	StartBase float64

	// StreamStart is the presentation time announced by the start marker
	StreamStart float64
}

// Status is a snapshot of the queue for display
type Status struct {
	Session   output.SessionState
	SessionID string
	Device    string
	Source    output.SourceState
	Layout    string
	Playing   bool
	Downtime  bool
	Position  float64
	Gain      float32
}

type streamSetup struct {
	params  StreamParams
	decoder decode.Decoder
	res     audio.Resolution
}

// AudioQueue decodes packets from a PacketSource and streams them to an
// output device while keeping a presentation clock in step with what is
// audible. All device and buffer state belongs to one worker goroutine.
type AudioQueue struct {
	config Config
	source PacketSource
	clock  *pkgsync.Clock

	// Shared with the controlling side
	mu            sync.Mutex
	events        []event
	gain          float32
	playing       bool
	switchTo      string
	switchPending bool
	pending       *streamSetup
	session       output.SessionState
	sessionID     string
	device        string
	caps          audio.Capabilities
	sourceState   output.SourceState
	layout        string

	wake      chan struct{}
	ready     chan struct{}
	done      chan struct{}
	ctx       context.Context
	cancel    context.CancelFunc
	quit      atomic.Bool
	downtime  atomic.Bool
	closeOnce sync.Once

	// Owned by the worker
	mgr          *output.Manager
	decoder      decode.Decoder
	params       StreamParams
	shape        audio.StreamShape
	src          *audio.SampleBuffer
	out          *audio.SampleBuffer
	hist         *output.History
	pts          float64
	appliedGain  float32
	lastDriftPTS float64
	prevState    output.SourceState
	dropped      int64
}

// New creates an audio queue and starts its worker, which opens the
// device session in the background
func New(config Config) *AudioQueue {
	if config.Device == nil {
		config.Device = output.NewMalgo(DefaultSampleRate)
	}
	if config.Gain == 0 {
		config.Gain = 1
	}
	if config.QueueSize == 0 {
		config.QueueSize = DefaultQueueSize
	}
	if config.Source == nil {
		config.Source = NewPacketQueue(config.QueueSize)
	}
	if config.BufferBytes == 0 {
		config.BufferBytes = DefaultBufferBytes
	}
	if config.NewDecoder == nil {
		config.NewDecoder = decode.New
	}
	if config.IdleInterval == 0 {
		config.IdleInterval = defaultIdleInterval
	}
	if config.RetryInterval == 0 {
		config.RetryInterval = defaultRetryInterval
	}
	config.Manager.Gain = config.Gain

	ctx, cancel := context.WithCancel(context.Background())

	q := &AudioQueue{
		config:      config,
		source:      config.Source,
		clock:       pkgsync.NewClock(),
		gain:        config.Gain,
		wake:        make(chan struct{}, 1),
		ready:       make(chan struct{}),
		done:        make(chan struct{}),
		ctx:         ctx,
		cancel:      cancel,
		mgr:         output.NewManager(config.Device, config.Manager),
		src:         audio.NewSampleBuffer(audio.SampleS16, config.BufferBytes),
		out:         audio.NewSampleBuffer(audio.SampleS16, config.BufferBytes),
		hist:        output.NewHistory(output.RingSize),
		appliedGain: config.Gain,
		prevState:   -1,
		sourceState: output.SourceInitial,
	}

	go q.run()
	return q
}

// Source returns the packet source the worker consumes
func (q *AudioQueue) Source() PacketSource {
	return q.source
}

// Push adds a packet to the default packet queue
func (q *AudioQueue) Push(ctx context.Context, p *Packet) error {
	pq, ok := q.source.(*PacketQueue)
	if !ok {
		return fmt.Errorf("packet source %T does not accept pushes", q.source)
	}
	if q.quit.Load() {
		return ErrClosed
	}
	return pq.Push(ctx, p)
}

// Discard drops the packets waiting in the default packet queue
func (q *AudioQueue) Discard() {
	if pq, ok := q.source.(*PacketQueue); ok {
		pq.Clear()
	}
}

// Init prepares the queue for a stream: it opens a decoder and resolves
// the channel layout against the device. Errors are also reported through
// OnError.
func (q *AudioQueue) Init(params StreamParams) error {
	if q.quitting() {
		return ErrClosed
	}
	select {
	case <-q.ready:
	case <-q.done:
		return ErrClosed
	}

	q.mu.Lock()
	session, caps := q.session, q.caps
	q.mu.Unlock()

	if session != output.SessionReady {
		return fmt.Errorf("%w: session %s", ErrDeviceUnavailable, session)
	}

	dec, err := q.config.NewDecoder(params.Format)
	if err != nil {
		if errors.Is(err, decode.ErrUnsupportedCodec) {
			err = fmt.Errorf("%w: %w", ErrUnsupportedFormat, err)
		} else {
			err = fmt.Errorf("%w: %w", ErrInvalidStream, err)
		}
		q.notify(err)
		return err
	}

	shape := audio.StreamShape{
		Channels: params.Format.Channels,
		Sample:   dec.SampleFormat(),
		Codec:    params.Format.Codec,
	}
	res, err := audio.Resolve(shape, caps)
	if err != nil {
		dec.Close()
		q.notify(err)
		return err
	}

	log.Printf("Audio stream: %s %dHz %dch -> %s", params.Format.Codec, params.Format.SampleRate, params.Format.Channels, res)

	q.mu.Lock()
	if q.pending != nil {
		q.pending.decoder.Close()
	}
	q.pending = &streamSetup{params: params, decoder: dec, res: res}
	q.mu.Unlock()

	q.signal()
	return nil
}

// Pts returns the presentation time currently audible, in seconds
func (q *AudioQueue) Pts() float64 {
	return q.clock.Elapsed()
}

// IsDowntime reports whether the worker is waiting for packets
func (q *AudioQueue) IsDowntime() bool {
	return q.downtime.Load()
}

// Status returns a snapshot of the queue state
func (q *AudioQueue) Status() Status {
	q.mu.Lock()
	defer q.mu.Unlock()

	return Status{
		Session:   q.session,
		SessionID: q.sessionID,
		Device:    q.device,
		Source:    q.sourceState,
		Layout:    q.layout,
		Playing:   q.playing,
		Downtime:  q.downtime.Load(),
		Position:  q.clock.Elapsed(),
		Gain:      q.gain,
	}
}

// Close stops the worker, closes the device session and releases the
// decoder. It blocks until the worker has exited.
func (q *AudioQueue) Close() error {
	q.closeOnce.Do(func() {
		q.quit.Store(true)
		q.cancel()
		if pq, ok := q.source.(*PacketQueue); ok {
			pq.TryPush(MarkerPacket(PacketQuit))
		}
		<-q.done

		if q.decoder != nil {
			q.decoder.Close()
		}
		q.mu.Lock()
		if q.pending != nil {
			q.pending.decoder.Close()
			q.pending = nil
		}
		q.mu.Unlock()
	})
	return nil
}

func (q *AudioQueue) quitting() bool {
	return q.quit.Load()
}

func (q *AudioQueue) notify(err error) {
	if q.config.OnError != nil {
		q.config.OnError(err)
	}
}

// publishSession copies the session state for the controlling side
func (q *AudioQueue) publishSession() {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.session = q.mgr.SessionState()
	q.sessionID = q.mgr.SessionID()
	q.device = q.mgr.DeviceName()
	q.caps = q.mgr.Caps()
}

// reportState polls the hardware state and reports transitions
func (q *AudioQueue) reportState() {
	state := q.mgr.State()
	if state == q.prevState {
		return
	}
	q.prevState = state

	q.mu.Lock()
	q.sourceState = state
	q.mu.Unlock()

	if q.config.OnStateChange != nil {
		q.config.OnStateChange(state)
	}
}

func (q *AudioQueue) run() {
	defer close(q.done)

	if err := q.mgr.Open(q.config.DeviceName); err != nil {
		log.Printf("Failed to open audio output: %v", err)
		q.notify(err)
	}
	q.publishSession()
	close(q.ready)

	for {
		if q.quitting() {
			q.shutdown()
			return
		}
		q.applyPending()

		// wait for upcoming packets
		if q.source.IsEmpty() {
			q.downtime.Store(true)
			q.parseEvents()
			q.idle()
			continue
		}
		q.downtime.Store(false)

		pkt := q.source.Pop()
		if pkt == nil {
			continue
		}
		switch pkt.Kind {
		case PacketFlush:
			if q.decoder != nil {
				q.decoder.Flush()
			}
			q.out.Clear()
			q.src.Clear()
			q.emptyDevice()
		case PacketStart:
			q.clock.StartAt(q.params.StreamStart - q.params.StartBase)
			q.pts = 0
		case PacketEnd:
			q.flushTail()
			if q.quitting() {
				q.shutdown()
				return
			}
		case PacketQuit:
			q.shutdown()
			return
		default:
			q.decodePacket(pkt)
		}
	}
}

func (q *AudioQueue) idle() {
	timer := time.NewTimer(q.config.IdleInterval)
	defer timer.Stop()

	select {
	case <-q.ctx.Done():
	case <-q.wake:
	case <-timer.C:
	}
}

func (q *AudioQueue) shutdown() {
	q.mgr.Close()
	q.publishSession()
	log.Printf("Audio queue stopped")
}

// applyPending installs a stream prepared by Init
func (q *AudioQueue) applyPending() {
	q.mu.Lock()
	setup := q.pending
	q.pending = nil
	q.mu.Unlock()

	if setup == nil {
		return
	}
	if q.decoder != nil {
		q.decoder.Close()
	}
	q.decoder = setup.decoder
	q.params = setup.params
	q.shape = audio.StreamShape{
		Channels: setup.params.Format.Channels,
		Sample:   setup.decoder.SampleFormat(),
		Codec:    setup.params.Format.Codec,
	}
	q.pts = 0
	q.configure(setup.res)
}

// configure shapes the decode and output buffers and the device sources
// for a resolution
func (q *AudioQueue) configure(res audio.Resolution) {
	rate := q.params.Format.SampleRate

	q.src.SetFormat(q.decoder.SampleFormat())
	q.src.SetRate(rate)
	if err := q.src.SetupChannels(res.Layout, res.SourceOrder, 1); err != nil {
		log.Printf("Failed to set up decode buffer: %v", err)
	}

	q.out.SetFormat(res.Sample)
	q.out.SetRate(rate)
	if err := q.out.SetupChannels(res.Layout, audio.ConventionPCM, res.Groups); err != nil {
		log.Printf("Failed to set up output buffer: %v", err)
	}

	if err := q.mgr.ConfigureSources(res); err != nil {
		log.Printf("Failed to configure audio sources: %v", err)
		q.notify(err)
	}
	q.hist.Reset()

	q.mu.Lock()
	q.layout = res.String()
	q.mu.Unlock()
}

// reconfigure reshapes the current stream for a new device session
func (q *AudioQueue) reconfigure() {
	q.src.Clear()
	q.out.Clear()
	q.hist.Reset()
	if q.decoder == nil {
		return
	}
	res, err := audio.Resolve(q.shape, q.mgr.Caps())
	if err != nil {
		log.Printf("Stream cannot play on the new device: %v", err)
		q.notify(err)
		q.decoder.Close()
		q.decoder = nil
		return
	}
	q.configure(res)
}

// emptyDevice drops everything queued on the device
func (q *AudioQueue) emptyDevice() {
	q.mgr.Empty()
	q.hist.Reset()
}
