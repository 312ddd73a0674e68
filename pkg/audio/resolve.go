// ABOUTME: Channel layout resolver choosing device buffer shape for a stream
// ABOUTME: Picks output sample format, grouping and source channel order per device capabilities
package audio

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"sync"
)

var (
	// ErrUnsupportedChannels is returned for channel counts other than 1, 2, 4 and 6
	ErrUnsupportedChannels = errors.New("unsupported channel count")

	// ErrUnsupportedFormat is returned when the stream sample format is unknown
	ErrUnsupportedFormat = errors.New("unsupported sample format")
)

// LegacyOrderEnv enables legacy 5.1 channel reordering when set to a true value
const LegacyOrderEnv = "AUDIOQUEUE_LEGACY_CHANNEL_ORDER"

// StreamShape is what the decoder produces
type StreamShape struct {
	Channels int
	Sample   SampleFormat
	Codec    string
}

// Resolution is the buffer shape the device output is configured with
type Resolution struct {
	Layout      Layout
	SourceOrder Convention   // interleaving order of decoded frames
	Sample      SampleFormat // output buffer sample format
	Groups      int          // 1 interleaved, or one mono source per channel
	Positions   []Vec3       // per-group position when split
}

// Split reports whether channels are delivered as separate mono sources
func (r Resolution) Split() bool {
	return r.Groups > 1
}

func (r Resolution) String() string {
	return fmt.Sprintf("%s %s groups=%d order=%s", r.Layout, r.Sample, r.Groups, r.SourceOrder)
}

// Resolve picks the output buffer shape for a stream on a device
func Resolve(in StreamShape, caps Capabilities) (Resolution, error) {
	if in.Sample.BytesPerSample() == 0 {
		return Resolution{}, fmt.Errorf("%w: %v", ErrUnsupportedFormat, in.Sample)
	}
	layout, ok := LayoutForChannels(in.Channels)
	if !ok {
		return Resolution{}, fmt.Errorf("%w: %d", ErrUnsupportedChannels, in.Channels)
	}

	res := Resolution{
		Layout:      layout,
		SourceOrder: ConventionPCM,
		Groups:      1,
	}

	switch layout {
	case LayoutMono, LayoutStereo:
		res.Sample = simpleFormat(in.Sample, caps)
		return res, nil
	}

	if layout == Layout51 && LegacyChannelOrder() {
		res.SourceOrder = ConventionFor(in.Codec)
	}

	if caps.MultiChannel {
		res.Sample = multiChannelFormat(in.Sample)
		return res, nil
	}

	// no multichannel support: one positioned mono source per channel
	res.Sample = simpleFormat(in.Sample, caps)
	res.Groups = layout.Channels()
	for _, role := range layout.Roles(ConventionPCM) {
		res.Positions = append(res.Positions, role.Position())
	}
	return res, nil
}

func simpleFormat(in SampleFormat, caps Capabilities) SampleFormat {
	switch {
	case in == SampleU8:
		return SampleU8
	case in == SampleF64 && caps.Float64:
		return SampleF64
	case (in == SampleS32 || in == SampleF32 || in == SampleF64) && caps.Float32:
		return SampleF32
	}
	return SampleS16
}

func multiChannelFormat(in SampleFormat) SampleFormat {
	switch in {
	case SampleU8:
		return SampleU8
	case SampleS32, SampleF32, SampleF64:
		return SampleF32
	}
	return SampleS16
}

// LegacyOrderProbe decides, once per process, whether decoders emit 5.1 in
// their historical codec-specific order. It must be set before the first
// call to LegacyChannelOrder.
var LegacyOrderProbe = func() bool {
	v, ok := os.LookupEnv(LegacyOrderEnv)
	if !ok {
		return false
	}
	on, err := strconv.ParseBool(strings.TrimSpace(v))
	if err != nil {
		log.Printf("Ignoring %s=%q: %v", LegacyOrderEnv, v, err)
		return false
	}
	return on
}

var legacyOrder = sync.OnceValue(func() bool {
	on := LegacyOrderProbe()
	if on {
		log.Printf("Legacy 5.1 channel reordering enabled")
	}
	return on
})

// LegacyChannelOrder reports whether legacy 5.1 reordering applies
func LegacyChannelOrder() bool {
	return legacyOrder()
}

var (
	conventionsMu sync.RWMutex
	conventions   = map[string]Convention{
		"ac3":    ConventionAC3,
		"eac3":   ConventionAC3,
		"vorbis": ConventionVorbis,
	}
)

// RegisterConvention maps a codec family to the order its legacy decoder uses
func RegisterConvention(codec string, c Convention) {
	conventionsMu.Lock()
	defer conventionsMu.Unlock()
	conventions[strings.ToLower(codec)] = c
}

// ConventionFor returns the legacy order for a codec family, PCM if unknown
func ConventionFor(codec string) Convention {
	conventionsMu.RLock()
	defer conventionsMu.RUnlock()
	if c, ok := conventions[strings.ToLower(codec)]; ok {
		return c
	}
	return ConventionPCM
}
