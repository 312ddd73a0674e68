// ABOUTME: Packet units consumed by the audio queue worker
// ABOUTME: Data packets with presentation timestamps plus flush/start/end/quit markers
package audioqueue

import (
	"context"
	"fmt"
)

// DefaultQueueSize is the capacity of the default packet queue
const DefaultQueueSize = 512

// PacketKind distinguishes audio data from stream markers
type PacketKind int

const (
	PacketData PacketKind = iota
	PacketFlush
	PacketStart
	PacketEnd
	PacketQuit
)

func (k PacketKind) String() string {
	switch k {
	case PacketData:
		return "data"
	case PacketFlush:
		return "flush"
	case PacketStart:
		return "start"
	case PacketEnd:
		return "end"
	case PacketQuit:
		return "quit"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Packet is one unit of the stream: encoded audio or a marker
type Packet struct {
	Kind PacketKind
	Data []byte
	// PTS is the presentation timestamp in seconds, valid when HasPTS is set
	PTS    float64
	HasPTS bool
}

// DataPacket creates an audio packet presented at pts seconds
func DataPacket(data []byte, pts float64) *Packet {
	return &Packet{Kind: PacketData, Data: data, PTS: pts, HasPTS: true}
}

// MarkerPacket creates a marker packet of the given kind
func MarkerPacket(kind PacketKind) *Packet {
	return &Packet{Kind: kind}
}

// PacketSource supplies packets to the audio queue worker
type PacketSource interface {
	// IsEmpty reports whether Pop would block
	IsEmpty() bool
	// Pop returns the next packet, blocking until one is available
	Pop() *Packet
}

// PacketQueue is a bounded FIFO PacketSource safe for one producer and
// one consumer
type PacketQueue struct {
	ch chan *Packet
}

// NewPacketQueue creates a queue holding up to size packets
func NewPacketQueue(size int) *PacketQueue {
	if size <= 0 {
		size = DefaultQueueSize
	}
	return &PacketQueue{ch: make(chan *Packet, size)}
}

// Push adds a packet, waiting for room until ctx is done
func (q *PacketQueue) Push(ctx context.Context, p *Packet) error {
	select {
	case q.ch <- p:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// TryPush adds a packet if there is room
func (q *PacketQueue) TryPush(p *Packet) bool {
	select {
	case q.ch <- p:
		return true
	default:
		return false
	}
}

func (q *PacketQueue) IsEmpty() bool {
	return len(q.ch) == 0
}

func (q *PacketQueue) Pop() *Packet {
	return <-q.ch
}

// Len returns the number of queued packets
func (q *PacketQueue) Len() int {
	return len(q.ch)
}

// Clear drops every queued packet
func (q *PacketQueue) Clear() {
	for {
		select {
		case <-q.ch:
		default:
			return
		}
	}
}
