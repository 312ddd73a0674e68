// ABOUTME: Null audio device that consumes audio without hardware
// ABOUTME: Driven by a wall-clock ticker or advanced manually in tests
package output

import (
	"fmt"
	"sync"
	"time"

	"github.com/Resonate-Protocol/audioqueue/pkg/audio"
)

// NullConfig configures a Null device
type NullConfig struct {
	SampleRate   int
	Capabilities audio.Capabilities
	// Manual disables the ticker; playback only advances through Advance
	Manual bool
	// Period is the ticker interval (default 10ms)
	Period time.Duration
}

// Null discards mixed audio at real-time speed
type Null struct {
	*Soft

	cfg       NullConfig
	mu        sync.Mutex
	open      bool
	connected bool
	mixed     int64
	stop      chan struct{}
	done      chan struct{}
	scratch   []float32
}

// NewNull creates a Null device
func NewNull(cfg NullConfig) *Null {
	if cfg.SampleRate == 0 {
		cfg.SampleRate = 48000
	}
	if cfg.Period == 0 {
		cfg.Period = 10 * time.Millisecond
	}
	return &Null{
		Soft: NewSoft(cfg.SampleRate),
		cfg:  cfg,
	}
}

// Open starts a session; only the default and "null" device names exist
func (n *Null) Open(name string) (audio.Capabilities, error) {
	if name != "" && name != "null" {
		return audio.Capabilities{}, fmt.Errorf("no such device: %q", name)
	}

	n.mu.Lock()
	defer n.mu.Unlock()

	if n.open {
		return n.cfg.Capabilities, nil
	}
	n.Soft.Reset(n.cfg.SampleRate)
	n.open = true
	n.connected = true

	if !n.cfg.Manual {
		n.stop = make(chan struct{})
		n.done = make(chan struct{})
		go n.run(n.stop, n.done)
	}
	return n.cfg.Capabilities, nil
}

func (n *Null) run(stop, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(n.cfg.Period)
	defer ticker.Stop()

	frames := int(int64(n.cfg.SampleRate) * int64(n.cfg.Period) / int64(time.Second))
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			n.Advance(frames)
		}
	}
}

// Advance mixes and discards frames of audio
func (n *Null) Advance(frames int) {
	n.mu.Lock()
	if !n.open || !n.connected {
		n.mu.Unlock()
		return
	}
	if cap(n.scratch) < frames*2 {
		n.scratch = make([]float32, frames*2)
	}
	buf := n.scratch[:frames*2]
	n.mixed += int64(frames)
	n.mu.Unlock()

	n.Soft.Mix(buf)
}

// Mixed returns the number of frames consumed since creation
func (n *Null) Mixed() int64 {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.mixed
}

// Disconnect simulates the device being unplugged
func (n *Null) Disconnect() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.connected = false
}

// Connected reports whether the device is open and plugged in
func (n *Null) Connected() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.open && n.connected
}

// Close ends the session
func (n *Null) Close() error {
	n.mu.Lock()
	stop, done := n.stop, n.done
	n.stop, n.done = nil, nil
	n.open = false
	n.connected = false
	n.mu.Unlock()

	if stop != nil {
		close(stop)
		<-done
	}
	n.Soft.Reset(n.cfg.SampleRate)
	return nil
}
