// ABOUTME: Streamer encoding a Source into timestamped packets for the audio queue
// ABOUTME: Handles stream setup, markers, seeking and looping
package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"sync"

	"github.com/Resonate-Protocol/audioqueue/pkg/audio"
	"github.com/Resonate-Protocol/audioqueue/pkg/audio/encode"
	"github.com/Resonate-Protocol/audioqueue/pkg/audioqueue"
)

const (
	defaultChunkMs  = 20
	defaultBitDepth = 24
	opusRate        = 48000
)

// Queue is the part of the audio queue the streamer feeds
type Queue interface {
	Init(params audioqueue.StreamParams) error
	Push(ctx context.Context, p *audioqueue.Packet) error
	PushEvent(kind audioqueue.EventKind, seconds float64)
	Discard()
}

// StreamerConfig holds streamer configuration
type StreamerConfig struct {
	Codec    string // "pcm" or "opus" (default: pcm)
	BitDepth int    // PCM bit depth (default: 24)
	ChunkMs  int    // PCM packet length (default: 20)
	Loop     bool   // restart seekable sources at the end
}

// Streamer reads a Source and pushes encoded packets into a Queue
type Streamer struct {
	source  Source
	queue   Queue
	config  StreamerConfig
	format  audio.Format
	encoder encode.Encoder
	frames  int // frames per packet

	mu       sync.Mutex
	seekTo   float64
	seeking  bool
	position uint64 // frames emitted since the last seek
	base     float64
}

// NewStreamer prepares a streamer. Opus streams are resampled to 48kHz.
func NewStreamer(src Source, q Queue, config StreamerConfig) (*Streamer, error) {
	if config.Codec == "" {
		config.Codec = "pcm"
	}
	if config.BitDepth == 0 {
		config.BitDepth = defaultBitDepth
	}
	if config.ChunkMs == 0 {
		config.ChunkMs = defaultChunkMs
	}

	if config.Codec == "opus" && src.SampleRate() != opusRate {
		log.Printf("Resampling %dHz -> %dHz for Opus", src.SampleRate(), opusRate)
		src = NewResampled(src, opusRate)
	}

	format := audio.Format{
		Codec:      config.Codec,
		SampleRate: src.SampleRate(),
		Channels:   src.Channels(),
		BitDepth:   config.BitDepth,
	}
	if config.Codec == "opus" {
		format.BitDepth = 16
	}

	enc, err := encode.New(format)
	if err != nil {
		return nil, fmt.Errorf("failed to create encoder: %w", err)
	}

	frames := enc.FrameSize()
	if frames == 0 {
		frames = format.SampleRate * config.ChunkMs / 1000
	}

	return &Streamer{
		source:  src,
		queue:   q,
		config:  config,
		format:  format,
		encoder: enc,
		frames:  frames,
	}, nil
}

// Format returns the stream format announced to the queue
func (s *Streamer) Format() audio.Format {
	return s.format
}

// Position returns the presentation time of the next packet
func (s *Streamer) Position() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.positionLocked()
}

func (s *Streamer) positionLocked() float64 {
	return s.base + float64(s.position)/float64(s.format.SampleRate)
}

// Seek moves playback to seconds. The queue drops what it holds right
// away; the source jumps before the next packet is read.
func (s *Streamer) Seek(seconds float64) error {
	if !seekable(s.source) {
		return ErrNotSeekable
	}
	if seconds < 0 {
		seconds = 0
	}

	s.mu.Lock()
	s.seekTo = seconds
	s.seeking = true
	s.mu.Unlock()

	s.queue.PushEvent(audioqueue.EventSeek, seconds)
	s.queue.Discard()
	return nil
}

// Seekable reports whether the source supports Seek
func (s *Streamer) Seekable() bool {
	return seekable(s.source)
}

// Metadata returns the source's title, artist and album
func (s *Streamer) Metadata() (title, artist, album string) {
	return s.source.Metadata()
}

// Close releases the encoder and the source
func (s *Streamer) Close() error {
	s.encoder.Close()
	return s.source.Close()
}

// Run initializes the queue and streams until the source ends or ctx is
// cancelled
func (s *Streamer) Run(ctx context.Context) error {
	if err := s.queue.Init(audioqueue.StreamParams{Format: s.format}); err != nil {
		return fmt.Errorf("failed to init audio queue: %w", err)
	}
	if err := s.queue.Push(ctx, audioqueue.MarkerPacket(audioqueue.PacketStart)); err != nil {
		return err
	}

	title, artist, _ := s.source.Metadata()
	log.Printf("Streaming %s - %s (%s %dHz %dch)", title, artist, s.format.Codec, s.format.SampleRate, s.format.Channels)

	samples := make([]int32, s.frames*s.format.Channels)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := s.applySeek(ctx); err != nil {
			return err
		}

		n, err := s.readChunk(samples)
		if n > 0 {
			if perr := s.emit(ctx, samples, n); perr != nil {
				return perr
			}
		}
		if errors.Is(err, io.EOF) {
			if s.config.Loop {
				if seeker, ok := s.source.(Seeker); ok && seekable(s.source) {
					if serr := seeker.Seek(0); serr != nil {
						return serr
					}
					continue
				}
			}
			log.Printf("Source ended at %.3fs", s.Position())
			return s.queue.Push(ctx, audioqueue.MarkerPacket(audioqueue.PacketEnd))
		}
		if err != nil {
			return fmt.Errorf("failed to read audio: %w", err)
		}
	}
}

// applySeek performs a seek requested through Seek
func (s *Streamer) applySeek(ctx context.Context) error {
	s.mu.Lock()
	seeking, target := s.seeking, s.seekTo
	s.seeking = false
	s.mu.Unlock()

	if !seeking {
		return nil
	}

	// anything pushed since the request is stale
	s.queue.Discard()
	if err := s.queue.Push(ctx, audioqueue.MarkerPacket(audioqueue.PacketFlush)); err != nil {
		return err
	}
	if err := s.source.(Seeker).Seek(target); err != nil {
		return err
	}

	s.mu.Lock()
	s.base = target
	s.position = 0
	s.mu.Unlock()
	return nil
}

// readChunk fills samples with whole frames, stopping early at the end of
// the source
func (s *Streamer) readChunk(samples []int32) (int, error) {
	read := 0
	for read < len(samples) {
		n, err := s.source.Read(samples[read:])
		read += n
		if err != nil {
			return read, err
		}
		if n == 0 {
			return read, io.EOF
		}
	}
	return read, nil
}

// emit encodes one chunk and pushes it stamped with its presentation time
func (s *Streamer) emit(ctx context.Context, samples []int32, n int) error {
	channels := s.format.Channels
	n -= n % channels
	if n == 0 {
		return nil
	}

	chunk := samples[:n]
	if s.encoder.FrameSize() > 0 && n < len(samples) {
		// pad the last Opus frame with silence
		clear(samples[n:])
		chunk = samples
	}

	data, err := s.encoder.Encode(chunk)
	if err != nil {
		return fmt.Errorf("failed to encode audio: %w", err)
	}

	s.mu.Lock()
	pts := s.positionLocked()
	s.position += uint64(n / channels)
	s.mu.Unlock()

	return s.queue.Push(ctx, audioqueue.DataPacket(data, pts))
}
