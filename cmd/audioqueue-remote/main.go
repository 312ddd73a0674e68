// ABOUTME: Entry point for the audioqueue remote control
// ABOUTME: Finds a player, sends one command and optionally watches its status
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Resonate-Protocol/audioqueue/internal/discovery"
	"github.com/Resonate-Protocol/audioqueue/internal/protocol"
	"github.com/Resonate-Protocol/audioqueue/internal/remote"
)

var (
	serverAddr = flag.String("server", "", "Player address host:port (skip mDNS)")
	command    = flag.String("cmd", "", "Command: play, pause, resume, stop, seek, volume, device")
	seconds    = flag.Float64("seconds", 0, "Seek target in seconds")
	volume     = flag.Int("volume", 100, "Volume in percent for the volume command")
	device     = flag.String("device", "", "Device name for the device command")
	watch      = flag.Bool("watch", false, "Keep printing player status until interrupted")
	timeout    = flag.Duration("timeout", 3*time.Second, "mDNS browse timeout")
)

func main() {
	flag.Parse()

	addr := *serverAddr
	if addr == "" {
		player, err := discover(*timeout)
		if err != nil {
			log.Fatalf("%v", err)
		}
		addr = player.Addr()
		log.Printf("Discovered %s at %s", player.Name, addr)
	}

	client := remote.NewClient(remote.ClientConfig{ServerAddr: addr})
	if err := client.Connect(); err != nil {
		log.Fatalf("Connection failed: %v", err)
	}
	defer client.Close()

	if *command != "" {
		cmd := protocol.PlayerCommand{
			Command: *command,
			Seconds: *seconds,
			Volume:  *volume,
			Device:  *device,
		}
		if err := client.Send(cmd); err != nil {
			log.Fatalf("Failed to send %s: %v", *command, err)
		}
	}

	if !*watch {
		waitReply(client)
		return
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	for {
		select {
		case st := <-client.Status:
			printStatus(st)
		case perr := <-client.Errors:
			log.Printf("Player error: %s", perr.Error)
		case <-sigChan:
			return
		}
	}
}

// discover browses mDNS and returns the first player found
func discover(timeout time.Duration) (*discovery.PlayerInfo, error) {
	mgr := discovery.NewManager(discovery.Config{BrowseTimeout: timeout})
	defer mgr.Stop()

	if err := mgr.Browse(); err != nil {
		return nil, fmt.Errorf("mDNS browse failed: %w", err)
	}

	select {
	case player := <-mgr.Players():
		return player, nil
	case <-time.After(timeout + time.Second):
		return nil, fmt.Errorf("no player found after %v", timeout)
	}
}

// waitReply prints the newest status once the player goes quiet
func waitReply(client *remote.RemoteClient) {
	var last *protocol.PlayerStatus
	for {
		select {
		case st := <-client.Status:
			last = &st
		case perr := <-client.Errors:
			log.Fatalf("Player error: %s", perr.Error)
		case <-time.After(500 * time.Millisecond):
			if last == nil {
				log.Printf("No reply from player")
				return
			}
			printStatus(*last)
			return
		}
	}
}

func printStatus(st protocol.PlayerStatus) {
	title := st.Title
	if st.Artist != "" {
		title = st.Artist + " - " + title
	}
	fmt.Printf("%-8s %7.1fs vol %3d%%  %s [%s %dHz %dch] device=%s (%s) layout=%s\n",
		st.State, st.Position, st.Volume, title, st.Codec, st.SampleRate, st.Channels,
		orDefault(st.Device), st.Session, st.Layout)
}

func orDefault(s string) string {
	if s == "" {
		return "default"
	}
	return s
}
