// ABOUTME: Main player application orchestration
// ABOUTME: Coordinates all components (source, audio queue, remote, UI)
package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"sync"
	"time"

	"github.com/Resonate-Protocol/audioqueue/internal/discovery"
	"github.com/Resonate-Protocol/audioqueue/internal/protocol"
	"github.com/Resonate-Protocol/audioqueue/internal/remote"
	"github.com/Resonate-Protocol/audioqueue/internal/source"
	"github.com/Resonate-Protocol/audioqueue/internal/ui"
	"github.com/Resonate-Protocol/audioqueue/pkg/audio/output"
	"github.com/Resonate-Protocol/audioqueue/pkg/audioqueue"
)

var (
	// ErrUnknownCommand is returned for commands the player does not handle
	ErrUnknownCommand = errors.New("unknown command")
	// ErrNotStarted is returned by controls that need a stream before Start
	ErrNotStarted = errors.New("player not started")
)

// Config holds player configuration
type Config struct {
	Name       string
	Source     string            // file path or URL; empty plays a test tone
	Tone       source.ToneConfig // used when Source is empty
	Codec      string            // "pcm" or "opus"
	BitDepth   int
	Loop       bool
	DeviceName string
	Device     output.Device // default: malgo
	Gain       float32
	RemotePort int // 0 disables remote control
	EnableMDNS bool
	UseTUI     bool

	// StatusInterval is how often the TUI is refreshed (default 200ms)
	StatusInterval time.Duration

	// OpenSource opens Source (default: source.New)
	OpenSource func(path string) (source.Source, error)
}

// Player represents the main player application
type Player struct {
	config   Config
	queue    *audioqueue.AudioQueue
	streamer *source.Streamer

	mu        sync.Mutex
	remote    *remote.Server
	discovery *discovery.Manager
	tui       *ui.TUI
	streaming bool
	lastErr   string

	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
	once   sync.Once
}

// New creates a new player. The audio queue opens the device right away.
func New(config Config) *Player {
	if config.Name == "" {
		config.Name = "audioqueue"
	}
	if config.StatusInterval == 0 {
		config.StatusInterval = 200 * time.Millisecond
	}
	if config.OpenSource == nil {
		config.OpenSource = source.New
	}

	ctx, cancel := context.WithCancel(context.Background())
	p := &Player{
		config: config,
		ctx:    ctx,
		cancel: cancel,
	}

	p.queue = audioqueue.New(audioqueue.Config{
		DeviceName:    config.DeviceName,
		Device:        config.Device,
		Gain:          config.Gain,
		OnError:       p.handleError,
		OnStateChange: p.handleStateChange,
	})
	return p
}

// Start opens the source and begins playback, then brings up the remote
// server, mDNS advertisement and TUI as configured. It does not block;
// use Done to wait for a quit request.
func (p *Player) Start() error {
	src, err := p.openSource()
	if err != nil {
		return fmt.Errorf("failed to open source: %w", err)
	}

	streamer, err := source.NewStreamer(src, p.queue, source.StreamerConfig{
		Codec:    p.config.Codec,
		BitDepth: p.config.BitDepth,
		Loop:     p.config.Loop,
	})
	if err != nil {
		src.Close()
		return err
	}
	p.mu.Lock()
	p.streamer = streamer
	p.mu.Unlock()

	if p.config.RemotePort > 0 {
		if err := p.startRemote(); err != nil {
			return err
		}
	}

	if p.config.UseTUI {
		p.startTUI()
	}

	p.queue.PushEvent(audioqueue.EventPlay, 0)
	p.startStreaming()
	return nil
}

func (p *Player) openSource() (source.Source, error) {
	if p.config.Source == "" {
		return source.NewTone(p.config.Tone), nil
	}
	return p.config.OpenSource(p.config.Source)
}

// startRemote starts the control server and, when enabled, advertises it
func (p *Player) startRemote() error {
	srv := remote.New(remote.Config{
		Port: p.config.RemotePort,
		Name: p.config.Name,
	}, p)
	if err := srv.Start(); err != nil {
		return fmt.Errorf("failed to start remote control: %w", err)
	}

	p.mu.Lock()
	p.remote = srv
	p.mu.Unlock()

	if !p.config.EnableMDNS {
		return nil
	}

	disc := discovery.NewManager(discovery.Config{
		ServiceName: p.config.Name,
		Port:        p.config.RemotePort,
	})
	if err := disc.Advertise(); err != nil {
		log.Printf("mDNS advertisement failed: %v", err)
		return nil
	}

	p.mu.Lock()
	p.discovery = disc
	p.mu.Unlock()
	return nil
}

// startTUI runs the TUI and routes its key commands back into the player
func (p *Player) startTUI() {
	tui := ui.New(p.config.Name)

	p.mu.Lock()
	p.tui = tui
	p.mu.Unlock()

	go func() {
		if err := tui.Start(); err != nil {
			log.Printf("TUI error: %v", err)
		}
		p.cancel()
	}()

	ctrl := tui.Control()
	p.wg.Add(2)
	go p.handleControls(ctrl)
	go p.statusLoop(tui)
}

// handleControls processes commands issued from the TUI
func (p *Player) handleControls(ctrl *ui.Control) {
	defer p.wg.Done()

	for {
		select {
		case cmd := <-ctrl.Commands:
			if err := p.Command(cmd); err != nil {
				log.Printf("Command %s failed: %v", cmd.Command, err)
				p.updateTUI(ui.StatusMsg{Status: p.Status(), Error: err.Error()})
			}
		case <-ctrl.Quit:
			log.Printf("Received quit signal from TUI")
			p.cancel()
			return
		case <-p.ctx.Done():
			return
		}
	}
}

// statusLoop periodically refreshes the TUI
func (p *Player) statusLoop(tui *ui.TUI) {
	defer p.wg.Done()

	ticker := time.NewTicker(p.config.StatusInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			tui.Update(ui.StatusMsg{Status: p.Status()})
		case <-p.ctx.Done():
			return
		}
	}
}

// startStreaming runs the streamer unless it is already running
func (p *Player) startStreaming() {
	p.mu.Lock()
	if p.streaming || p.ctx.Err() != nil {
		p.mu.Unlock()
		return
	}
	p.streaming = true
	streamer := p.streamer
	p.wg.Add(1)
	p.mu.Unlock()

	go func() {
		defer p.wg.Done()

		err := streamer.Run(p.ctx)

		p.mu.Lock()
		p.streaming = false
		p.mu.Unlock()

		if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, audioqueue.ErrClosed) {
			log.Printf("Streaming stopped: %v", err)
			p.handleError(err)
		}
	}()
}

func (p *Player) currentStreamer() *source.Streamer {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.streamer
}

// Done is closed once the player is asked to quit
func (p *Player) Done() <-chan struct{} {
	return p.ctx.Done()
}

// Play starts playback, from the beginning when the source is seekable
func (p *Player) Play() error {
	streamer := p.currentStreamer()
	if streamer == nil {
		return ErrNotStarted
	}
	p.queue.PushEvent(audioqueue.EventPlay, 0)
	if streamer.Seekable() {
		if err := streamer.Seek(0); err != nil {
			return err
		}
	}
	p.startStreaming()
	return nil
}

// Pause pauses playback
func (p *Player) Pause() {
	p.queue.PushEvent(audioqueue.EventPause, 0)
}

// Resume continues paused playback
func (p *Player) Resume() {
	p.queue.PushEvent(audioqueue.EventResume, 0)
}

// StopPlayback stops playback; Play starts over
func (p *Player) StopPlayback() {
	p.queue.PushEvent(audioqueue.EventStop, 0)
}

// Seek moves playback to seconds
func (p *Player) Seek(seconds float64) error {
	streamer := p.currentStreamer()
	if streamer == nil {
		return ErrNotStarted
	}
	if err := streamer.Seek(seconds); err != nil {
		return err
	}
	p.startStreaming()
	return nil
}

// SetVolume sets the output volume in percent (0-100)
func (p *Player) SetVolume(volume int) {
	if volume < 0 {
		volume = 0
	}
	if volume > 100 {
		volume = 100
	}
	p.queue.SetGain(float32(volume) / 100)
}

// Volume returns the output volume in percent
func (p *Player) Volume() int {
	return int(math.Round(float64(p.queue.Gain()) * 100))
}

// SwitchDevice moves playback to the named device
func (p *Player) SwitchDevice(name string) {
	p.queue.SwitchDevice(name)
}

// Command applies a player command from the TUI or a remote controller
func (p *Player) Command(cmd protocol.PlayerCommand) error {
	log.Printf("Command: %s", cmd.Command)

	switch cmd.Command {
	case protocol.CommandPlay:
		return p.Play()
	case protocol.CommandPause:
		p.Pause()
	case protocol.CommandResume:
		p.Resume()
	case protocol.CommandStop:
		p.StopPlayback()
	case protocol.CommandSeek:
		return p.Seek(cmd.Seconds)
	case protocol.CommandVolume:
		p.SetVolume(cmd.Volume)
	case protocol.CommandDevice:
		p.SwitchDevice(cmd.Device)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownCommand, cmd.Command)
	}
	return nil
}

// Status returns the current player status
func (p *Player) Status() protocol.PlayerStatus {
	st := p.queue.Status()

	status := protocol.PlayerStatus{
		State:     stateName(st.Source),
		Session:   st.Session.String(),
		SessionID: st.SessionID,
		Device:    st.Device,
		Layout:    st.Layout,
		Playing:   st.Playing,
		Downtime:  st.Downtime,
		Position:  st.Position,
		Volume:    int(math.Round(float64(st.Gain) * 100)),
	}

	if streamer := p.currentStreamer(); streamer != nil {
		f := streamer.Format()
		status.Codec = f.Codec
		status.SampleRate = f.SampleRate
		status.Channels = f.Channels
		status.BitDepth = f.BitDepth
		status.Title, status.Artist, status.Album = streamer.Metadata()
	}
	return status
}

// LastError returns the most recent playback error
func (p *Player) LastError() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastErr
}

func stateName(s output.SourceState) string {
	switch s {
	case output.SourceInitial:
		return "initial"
	case output.SourcePlaying:
		return "playing"
	case output.SourcePaused:
		return "paused"
	case output.SourceStopped:
		return "stopped"
	}
	return s.String()
}

// handleError reports queue and streaming errors everywhere they are shown
func (p *Player) handleError(err error) {
	log.Printf("Player error: %v", err)

	p.mu.Lock()
	p.lastErr = err.Error()
	srv, tui := p.remote, p.tui
	p.mu.Unlock()

	if srv != nil {
		srv.NotifyError(err)
	}
	if tui != nil {
		tui.Update(ui.StatusMsg{Status: p.Status(), Error: err.Error()})
	}
}

// handleStateChange pushes hardware state transitions to remotes
func (p *Player) handleStateChange(state output.SourceState) {
	log.Printf("Playback state: %s", stateName(state))

	p.mu.Lock()
	srv := p.remote
	p.mu.Unlock()

	if srv != nil {
		srv.BroadcastStatus()
	}
}

func (p *Player) updateTUI(msg ui.StatusMsg) {
	p.mu.Lock()
	tui := p.tui
	p.mu.Unlock()

	if tui != nil {
		tui.Update(msg)
	}
}

// Stop shuts the player down
func (p *Player) Stop() {
	p.once.Do(func() {
		p.mu.Lock()
		p.cancel()
		srv, disc, tui := p.remote, p.discovery, p.tui
		p.mu.Unlock()

		if disc != nil {
			disc.Stop()
		}
		if srv != nil {
			srv.Stop()
		}
		if tui != nil {
			tui.Stop()
		}

		p.queue.Close()
		p.wg.Wait()

		if streamer := p.currentStreamer(); streamer != nil {
			streamer.Close()
		}
		log.Printf("Player stopped")
	})
}
