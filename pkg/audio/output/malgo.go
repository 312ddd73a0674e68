// ABOUTME: Malgo-based audio device implementation
// ABOUTME: Uses miniaudio via malgo with named device selection and unplug detection
package output

import (
	"encoding/binary"
	"fmt"
	"log"
	"math"
	"strings"
	"sync"

	"github.com/Resonate-Protocol/audioqueue/pkg/audio"
	"github.com/gen2brain/malgo"
)

// Malgo plays the software mix through a miniaudio playback device
type Malgo struct {
	*Soft

	sampleRate int
	mu         sync.Mutex
	malgoCtx   *malgo.AllocatedContext
	device     *malgo.Device
	connected  bool
	scratch    []float32
}

// NewMalgo creates a malgo device mixing at sampleRate
func NewMalgo(sampleRate int) *Malgo {
	if sampleRate == 0 {
		sampleRate = 48000
	}
	return &Malgo{
		Soft:       NewSoft(sampleRate),
		sampleRate: sampleRate,
	}
}

// Open initializes the named playback device ("" for the default one)
func (m *Malgo) Open(name string) (audio.Capabilities, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.device != nil {
		m.closeDevice()
	}

	if m.malgoCtx == nil {
		ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, func(message string) {
			log.Printf("[malgo] %s", strings.TrimSpace(message))
		})
		if err != nil {
			return audio.Capabilities{}, fmt.Errorf("failed to initialize malgo context: %w", err)
		}
		m.malgoCtx = ctx
	}

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Playback)
	deviceConfig.Playback.Format = malgo.FormatF32
	deviceConfig.Playback.Channels = 2
	deviceConfig.SampleRate = uint32(m.sampleRate)
	deviceConfig.Alsa.NoMMap = 1

	if name != "" {
		info, err := m.findDevice(name)
		if err != nil {
			return audio.Capabilities{}, err
		}
		deviceConfig.Playback.DeviceID = info.ID.Pointer()
	}

	m.Soft.Reset(m.sampleRate)

	deviceCallbacks := malgo.DeviceCallbacks{
		Data: func(pOutput, pInput []byte, frameCount uint32) {
			m.dataCallback(pOutput, frameCount)
		},
		Stop: func() {
			m.mu.Lock()
			m.connected = false
			m.mu.Unlock()
		},
	}

	device, err := malgo.InitDevice(m.malgoCtx.Context, deviceConfig, deviceCallbacks)
	if err != nil {
		return audio.Capabilities{}, fmt.Errorf("failed to initialize playback device: %w", err)
	}
	if err := device.Start(); err != nil {
		device.Uninit()
		return audio.Capabilities{}, fmt.Errorf("failed to start device: %w", err)
	}

	m.device = device
	m.connected = true
	log.Printf("Audio output initialized: %dHz, 2 channels, f32 (malgo, device=%q)", m.sampleRate, name)

	return audio.Capabilities{Float32: true, Float64: true, MultiChannel: true}, nil
}

// findDevice looks a playback device up by name (must hold m.mu)
func (m *Malgo) findDevice(name string) (malgo.DeviceInfo, error) {
	infos, err := m.malgoCtx.Devices(malgo.Playback)
	if err != nil {
		return malgo.DeviceInfo{}, fmt.Errorf("failed to list playback devices: %w", err)
	}
	for _, info := range infos {
		if info.Name() == name {
			return info, nil
		}
	}
	return malgo.DeviceInfo{}, fmt.Errorf("playback device not found: %q", name)
}

// PlaybackDevices lists the names of the available playback devices
func (m *Malgo) PlaybackDevices() ([]string, error) {
	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize malgo context: %w", err)
	}
	defer func() {
		_ = ctx.Uninit()
		ctx.Free()
	}()

	infos, err := ctx.Devices(malgo.Playback)
	if err != nil {
		return nil, fmt.Errorf("failed to list playback devices: %w", err)
	}
	names := make([]string, 0, len(infos))
	for _, info := range infos {
		names = append(names, info.Name())
	}
	return names, nil
}

// dataCallback is called by malgo to fill the audio output buffer
func (m *Malgo) dataCallback(pOutput []byte, frameCount uint32) {
	total := int(frameCount) * 2

	m.mu.Lock()
	if cap(m.scratch) < total {
		m.scratch = make([]float32, total)
	}
	samples := m.scratch[:total]
	m.mu.Unlock()

	m.Soft.Mix(samples)
	for i, v := range samples {
		binary.LittleEndian.PutUint32(pOutput[i*4:], math.Float32bits(v))
	}
}

// Connected reports whether the device is still running
func (m *Malgo) Connected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.device != nil && m.connected
}

// Close releases the device and the malgo context
func (m *Malgo) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closeDevice()
	if m.malgoCtx != nil {
		if err := m.malgoCtx.Uninit(); err != nil {
			log.Printf("Warning: malgo context uninit error: %v", err)
		}
		m.malgoCtx.Free()
		m.malgoCtx = nil
	}
	m.Soft.Reset(m.sampleRate)
	return nil
}

// closeDevice stops and uninitializes the device (must hold m.mu)
func (m *Malgo) closeDevice() {
	if m.device == nil {
		return
	}
	// the stop callback takes m.mu
	device := m.device
	m.device = nil
	m.connected = false
	m.mu.Unlock()
	if err := device.Stop(); err != nil {
		log.Printf("Warning: device stop error: %v", err)
	}
	device.Uninit()
	m.mu.Lock()
}
