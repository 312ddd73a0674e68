// ABOUTME: Audio sources feeding the player from files, HTTP streams or a test tone
// ABOUTME: Decodes MP3 and FLAC to int32 samples in the 24-bit range
package source

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/hajimehoshi/go-mp3"
	"github.com/mewkiz/flac"
)

var (
	// ErrNotFound is returned for local files that do not exist
	ErrNotFound = errors.New("audio file not found")

	// ErrUnsupported is returned for file types without a decoder
	ErrUnsupported = errors.New("unsupported audio format")

	// ErrNotSeekable is returned when seeking a live stream
	ErrNotSeekable = errors.New("source is not seekable")
)

// Source provides PCM audio samples
type Source interface {
	// Read reads interleaved samples (24-bit range). Returns io.EOF at the end of the audio.
	Read(samples []int32) (int, error)
	// SampleRate returns the sample rate of the audio
	SampleRate() int
	// Channels returns the number of channels
	Channels() int
	// Metadata returns title, artist, album
	Metadata() (title, artist, album string)
	// Close closes the audio source
	Close() error
}

// Seeker is implemented by sources that can jump to a position
type Seeker interface {
	Seek(seconds float64) error
}

// New creates an audio source from a file path or HTTP URL.
// An empty path returns an endless test tone.
func New(pathOrURL string) (Source, error) {
	if pathOrURL == "" {
		return NewTone(ToneConfig{}), nil
	}

	if strings.HasPrefix(pathOrURL, "http://") || strings.HasPrefix(pathOrURL, "https://") {
		log.Printf("Streaming from HTTP URL: %s", pathOrURL)
		return NewHTTPMP3(pathOrURL)
	}

	if _, err := os.Stat(pathOrURL); os.IsNotExist(err) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, pathOrURL)
	}

	ext := strings.ToLower(filepath.Ext(pathOrURL))
	switch ext {
	case ".mp3":
		return NewMP3(pathOrURL)
	case ".flac":
		return NewFLAC(pathOrURL)
	}
	return nil, fmt.Errorf("%w: %s (supported: .mp3, .flac)", ErrUnsupported, ext)
}

func titleFromPath(path string) string {
	name := filepath.Base(path)
	return strings.TrimSuffix(name, filepath.Ext(name))
}

// mp3Frame is the size of one decoded frame: stereo int16
const mp3Frame = 4

// readMP3 reads int16 stereo from an MP3 decoder, scaled to the 24-bit range
func readMP3(dec *mp3.Decoder, buf []byte, samples []int32) ([]byte, int, error) {
	numBytes := len(samples) * 2
	if cap(buf) < numBytes {
		buf = make([]byte, numBytes)
	}
	buf = buf[:numBytes]

	n, err := io.ReadFull(dec, buf)
	if errors.Is(err, io.ErrUnexpectedEOF) {
		err = io.EOF
	}
	numSamples := n / 2
	for i := 0; i < numSamples; i++ {
		samples[i] = int32(int16(binary.LittleEndian.Uint16(buf[i*2:]))) << 8
	}
	if numSamples > 0 && errors.Is(err, io.EOF) {
		// report the tail first
		err = nil
	}
	return buf, numSamples, err
}

// MP3 reads from an MP3 file
type MP3 struct {
	file    *os.File
	decoder *mp3.Decoder
	buf     []byte
	title   string
}

// NewMP3 opens an MP3 file
func NewMP3(filePath string) (*MP3, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open MP3 file: %w", err)
	}

	decoder, err := mp3.NewDecoder(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to decode MP3: %w", err)
	}

	title := titleFromPath(filePath)
	log.Printf("Loaded MP3: %s (sample rate: %d Hz)", title, decoder.SampleRate())

	return &MP3{
		file:    f,
		decoder: decoder,
		title:   title,
	}, nil
}

func (s *MP3) Read(samples []int32) (int, error) {
	var n int
	var err error
	s.buf, n, err = readMP3(s.decoder, s.buf, samples)
	return n, err
}

// Seek moves to the given position in seconds
func (s *MP3) Seek(seconds float64) error {
	if seconds < 0 {
		seconds = 0
	}
	frame := int64(seconds * float64(s.decoder.SampleRate()))
	if _, err := s.decoder.Seek(frame*mp3Frame, io.SeekStart); err != nil {
		return fmt.Errorf("failed to seek MP3: %w", err)
	}
	return nil
}

// Duration returns the length of the file in seconds
func (s *MP3) Duration() float64 {
	return float64(s.decoder.Length()/mp3Frame) / float64(s.decoder.SampleRate())
}

func (s *MP3) SampleRate() int { return s.decoder.SampleRate() }
func (s *MP3) Channels() int   { return 2 } // go-mp3 always decodes to stereo
func (s *MP3) Metadata() (string, string, string) {
	return s.title, "Unknown Artist", "Unknown Album"
}
func (s *MP3) Close() error {
	return s.file.Close()
}

// FLAC reads from a FLAC file
type FLAC struct {
	file     *os.File
	stream   *flac.Stream
	channels int
	bitDepth int
	title    string

	// decoded samples of the current frame not yet returned
	pending []int32
}

// NewFLAC opens a FLAC file
func NewFLAC(filePath string) (*FLAC, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open FLAC file: %w", err)
	}

	stream, err := flac.NewSeek(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to decode FLAC: %w", err)
	}

	info := stream.Info
	title := titleFromPath(filePath)
	log.Printf("Loaded FLAC: %s (sample rate: %d Hz, channels: %d, bit depth: %d)",
		title, info.SampleRate, info.NChannels, info.BitsPerSample)

	return &FLAC{
		file:     f,
		stream:   stream,
		channels: int(info.NChannels),
		bitDepth: int(info.BitsPerSample),
		title:    title,
	}, nil
}

func (s *FLAC) Read(samples []int32) (int, error) {
	read := 0
	for read < len(samples) {
		if len(s.pending) == 0 {
			if err := s.parseFrame(); err != nil {
				if errors.Is(err, io.EOF) && read > 0 {
					return read, nil
				}
				return read, err
			}
		}
		n := copy(samples[read:], s.pending)
		s.pending = s.pending[n:]
		read += n
	}
	return read, nil
}

// parseFrame decodes the next frame into pending, scaled to 24 bits
func (s *FLAC) parseFrame() error {
	frame, err := s.stream.ParseNext()
	if err != nil {
		return err
	}

	blockSize := int(frame.BlockSize)
	out := s.pending[:0]
	if cap(out) < blockSize*s.channels {
		out = make([]int32, 0, blockSize*s.channels)
	}
	for i := 0; i < blockSize; i++ {
		for ch := 0; ch < s.channels; ch++ {
			out = append(out, scaleTo24(frame.Subframes[ch].Samples[i], s.bitDepth))
		}
	}
	s.pending = out
	return nil
}

func scaleTo24(sample int32, bitDepth int) int32 {
	shift := bitDepth - 24
	if shift > 0 {
		return sample >> shift
	}
	return sample << -shift
}

// Seek moves to the given position in seconds
func (s *FLAC) Seek(seconds float64) error {
	if seconds < 0 {
		seconds = 0
	}
	sample := uint64(seconds * float64(s.stream.Info.SampleRate))
	if n := s.stream.Info.NSamples; n > 0 && sample >= n {
		sample = n - 1
	}
	if _, err := s.stream.Seek(sample); err != nil {
		return fmt.Errorf("failed to seek FLAC: %w", err)
	}
	s.pending = s.pending[:0]
	return nil
}

// Duration returns the length of the file in seconds
func (s *FLAC) Duration() float64 {
	return float64(s.stream.Info.NSamples) / float64(s.stream.Info.SampleRate)
}

func (s *FLAC) SampleRate() int { return int(s.stream.Info.SampleRate) }
func (s *FLAC) Channels() int   { return s.channels }
func (s *FLAC) Metadata() (string, string, string) {
	return s.title, "Unknown Artist", "Unknown Album"
}
func (s *FLAC) Close() error {
	return s.file.Close()
}

// HTTPMP3 streams MP3 from an HTTP URL
type HTTPMP3 struct {
	url      string
	response *http.Response
	decoder  *mp3.Decoder
	buf      []byte
}

// NewHTTPMP3 starts streaming an MP3 URL
func NewHTTPMP3(url string) (*HTTPMP3, error) {
	resp, err := http.Get(url)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch HTTP stream: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("HTTP error: %s", resp.Status)
	}

	decoder, err := mp3.NewDecoder(resp.Body)
	if err != nil {
		resp.Body.Close()
		return nil, fmt.Errorf("failed to decode MP3 stream: %w", err)
	}

	log.Printf("Streaming MP3 from HTTP: %s (sample rate: %d Hz)", url, decoder.SampleRate())

	return &HTTPMP3{
		url:      url,
		response: resp,
		decoder:  decoder,
	}, nil
}

func (s *HTTPMP3) Read(samples []int32) (int, error) {
	var n int
	var err error
	s.buf, n, err = readMP3(s.decoder, s.buf, samples)
	return n, err
}

func (s *HTTPMP3) SampleRate() int { return s.decoder.SampleRate() }
func (s *HTTPMP3) Channels() int   { return 2 }
func (s *HTTPMP3) Metadata() (string, string, string) {
	return "HTTP Stream", s.url, ""
}
func (s *HTTPMP3) Close() error {
	return s.response.Body.Close()
}
