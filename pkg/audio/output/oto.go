// ABOUTME: Oto-based audio device implementation
// ABOUTME: Streams the software mix to the default device through one oto player
package output

import (
	"encoding/binary"
	"fmt"
	"log"
	"math"
	"sync"

	"github.com/Resonate-Protocol/audioqueue/pkg/audio"
	"github.com/ebitengine/oto/v3"
)

// oto allows one context per process
var (
	otoOnce sync.Once
	otoCtx  *oto.Context
	otoErr  error
)

func sharedOtoContext(sampleRate int) (*oto.Context, error) {
	otoOnce.Do(func() {
		op := &oto.NewContextOptions{
			SampleRate:   sampleRate,
			ChannelCount: 2,
			Format:       oto.FormatFloat32LE,
		}
		ctx, readyChan, err := oto.NewContext(op)
		if err != nil {
			otoErr = fmt.Errorf("failed to create oto context: %w", err)
			return
		}
		<-readyChan
		otoCtx = ctx
		log.Printf("Audio output initialized: %dHz, 2 channels (oto)", sampleRate)
	})
	return otoCtx, otoErr
}

// Oto plays the software mix on the system default device
type Oto struct {
	*Soft

	sampleRate int
	mu         sync.Mutex
	player     *oto.Player
	scratch    []float32
}

// NewOto creates an oto device mixing at sampleRate
func NewOto(sampleRate int) *Oto {
	if sampleRate == 0 {
		sampleRate = 48000
	}
	return &Oto{
		Soft:       NewSoft(sampleRate),
		sampleRate: sampleRate,
	}
}

// Open starts playback; oto only reaches the default device
func (o *Oto) Open(name string) (audio.Capabilities, error) {
	if name != "" && name != "default" {
		return audio.Capabilities{}, fmt.Errorf("oto cannot select device %q", name)
	}

	ctx, err := sharedOtoContext(o.sampleRate)
	if err != nil {
		return audio.Capabilities{}, err
	}
	if err := ctx.Resume(); err != nil {
		return audio.Capabilities{}, fmt.Errorf("failed to resume oto context: %w", err)
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	if o.player == nil {
		o.Soft.Reset(o.sampleRate)
		o.player = ctx.NewPlayer(&otoReader{o: o})
		o.player.Play()
	}
	return audio.Capabilities{Float32: true}, nil
}

// Connected reports whether the oto context is healthy
func (o *Oto) Connected() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.player != nil && otoCtx != nil && otoCtx.Err() == nil
}

// Close stops the player and suspends the shared context
func (o *Oto) Close() error {
	o.mu.Lock()
	player := o.player
	o.player = nil
	o.mu.Unlock()

	if player != nil {
		if err := player.Close(); err != nil {
			log.Printf("Warning: oto player close error: %v", err)
		}
	}
	if otoCtx != nil {
		if err := otoCtx.Suspend(); err != nil {
			log.Printf("Warning: oto suspend error: %v", err)
		}
	}
	o.Soft.Reset(o.sampleRate)
	return nil
}

// otoReader renders the mix as little-endian float32 stereo
type otoReader struct {
	o *Oto
}

func (r *otoReader) Read(p []byte) (int, error) {
	frames := len(p) / 8
	if frames == 0 {
		return 0, nil
	}

	r.o.mu.Lock()
	if cap(r.o.scratch) < frames*2 {
		r.o.scratch = make([]float32, frames*2)
	}
	samples := r.o.scratch[:frames*2]
	r.o.mu.Unlock()

	r.o.Soft.Mix(samples)
	for i, v := range samples {
		binary.LittleEndian.PutUint32(p[i*4:], math.Float32bits(v))
	}
	return frames * 8, nil
}
