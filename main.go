// ABOUTME: Entry point for the audioqueue player
// ABOUTME: Parses CLI flags, picks an output backend and runs the player
package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/Resonate-Protocol/audioqueue/internal/app"
	"github.com/Resonate-Protocol/audioqueue/internal/source"
	"github.com/Resonate-Protocol/audioqueue/pkg/audio/output"
	"github.com/Resonate-Protocol/audioqueue/pkg/audioqueue"
)

var (
	file       = flag.String("file", "", "Audio file or http(s) MP3 stream to play (default: test tone)")
	toneFreq   = flag.Float64("tone", 440, "Test tone frequency in Hz when no file is given")
	codec      = flag.String("codec", "pcm", "Packet codec between streamer and queue: pcm or opus")
	loop       = flag.Bool("loop", false, "Restart the source when it ends")
	device     = flag.String("device", "", "Output device name (default: system default)")
	backend    = flag.String("backend", "malgo", "Audio backend: malgo, oto, portaudio or null")
	gain       = flag.Float64("gain", 1.0, "Initial output gain (0-1)")
	name       = flag.String("name", "", "Player friendly name (default: hostname-audioqueue)")
	remotePort = flag.Int("remote-port", 0, "Port for the remote control server (0 disables it)")
	mdns       = flag.Bool("mdns", false, "Advertise the remote control server via mDNS")
	logFile    = flag.String("log-file", "audioqueue.log", "Log file path")
	noTUI      = flag.Bool("no-tui", false, "Disable TUI, use streaming logs instead")
)

func main() {
	flag.Parse()

	useTUI := !*noTUI

	// Set up logging
	f, err := os.OpenFile(*logFile, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
	if err != nil {
		log.Fatalf("error opening log file: %v", err)
	}
	defer func() { _ = f.Close() }()

	if useTUI {
		// TUI mode: log only to file
		log.SetOutput(f)
	} else {
		log.SetOutput(io.MultiWriter(os.Stdout, f))
	}

	playerName := *name
	if playerName == "" {
		hostname, err := os.Hostname()
		if err != nil {
			hostname = "unknown"
		}
		playerName = fmt.Sprintf("%s-audioqueue", hostname)
	}

	dev, err := newDevice(*backend)
	if err != nil {
		log.Fatalf("%v", err)
	}

	log.Printf("Starting audioqueue player: %s (backend %s)", playerName, *backend)

	player := app.New(app.Config{
		Name:       playerName,
		Source:     *file,
		Tone:       source.ToneConfig{Frequency: *toneFreq},
		Codec:      *codec,
		Loop:       *loop,
		DeviceName: *device,
		Device:     dev,
		Gain:       float32(*gain),
		RemotePort: *remotePort,
		EnableMDNS: *mdns,
		UseTUI:     useTUI,
	})

	if err := player.Start(); err != nil {
		player.Stop()
		log.Fatalf("Failed to start player: %v", err)
	}

	// Handle shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-player.Done():
		log.Printf("Player quit")
	case <-sigChan:
		log.Printf("Shutdown signal received")
	}

	player.Stop()
}

// newDevice creates the output device for a backend name
func newDevice(backend string) (output.Device, error) {
	rate := audioqueue.DefaultSampleRate

	switch strings.ToLower(backend) {
	case "malgo":
		return output.NewMalgo(rate), nil
	case "oto":
		return output.NewOto(rate), nil
	case "portaudio":
		return output.NewPortAudio(rate), nil
	case "null":
		return output.NewNull(output.NullConfig{SampleRate: rate}), nil
	}
	return nil, fmt.Errorf("unknown audio backend: %q", backend)
}
