// ABOUTME: Fixed-capacity PCM sample buffer with channel groups
// ABOUTME: Converts, reorders and splits whole frames between buffers without reallocating
package audio

import "fmt"

// SampleBuffer holds PCM data for one layout, either interleaved in a single
// group or split into one group per channel. Storage is allocated once.
type SampleBuffer struct {
	format   SampleFormat
	rate     int
	layout   Layout
	order    Convention
	groups   int
	capacity int

	data   []byte
	planes [][]byte
	sizes  []int

	// frames already consumed when this buffer is the source of AppendFrom
	cursor int
}

// NewSampleBuffer creates a mono buffer holding at most capacity bytes
// across all of its groups
func NewSampleBuffer(format SampleFormat, capacity int) *SampleBuffer {
	b := &SampleBuffer{
		format:   format,
		layout:   LayoutMono,
		order:    ConventionPCM,
		groups:   1,
		capacity: capacity,
		data:     make([]byte, capacity),
	}
	b.layoutPlanes()
	return b
}

// SetFormat changes the sample format and empties the buffer
func (b *SampleBuffer) SetFormat(format SampleFormat) {
	b.format = format
	b.layoutPlanes()
}

// SetRate sets the sample rate in Hz
func (b *SampleBuffer) SetRate(rate int) {
	b.rate = rate
}

// SetupChannels sets the layout, its channel ordering and the number of
// groups (1 for interleaved, or one per channel) and empties the buffer
func (b *SampleBuffer) SetupChannels(layout Layout, order Convention, groups int) error {
	channels := layout.Channels()
	if channels == 0 {
		return fmt.Errorf("invalid layout: %v", layout)
	}
	if groups != 1 && groups != channels {
		return fmt.Errorf("invalid group count %d for %s layout", groups, layout)
	}
	b.layout = layout
	b.order = order
	b.groups = groups
	b.layoutPlanes()
	return nil
}

// layoutPlanes splits storage evenly between groups on whole-frame boundaries
func (b *SampleBuffer) layoutPlanes() {
	b.planes = b.planes[:0]
	b.sizes = b.sizes[:0]
	b.cursor = 0

	gfs := b.GroupFrameSize()
	per := 0
	if gfs > 0 && b.groups > 0 {
		per = (b.capacity / b.groups / gfs) * gfs
	}
	for g := 0; g < b.groups; g++ {
		b.planes = append(b.planes, b.data[g*per:(g+1)*per:(g+1)*per])
		b.sizes = append(b.sizes, 0)
	}
}

func (b *SampleBuffer) Format() SampleFormat   { return b.format }
func (b *SampleBuffer) Rate() int              { return b.rate }
func (b *SampleBuffer) Layout() Layout         { return b.layout }
func (b *SampleBuffer) Convention() Convention { return b.order }
func (b *SampleBuffer) Groups() int            { return b.groups }
func (b *SampleBuffer) Capacity() int          { return b.capacity }

// Channels returns the total channel count across groups
func (b *SampleBuffer) Channels() int {
	return b.layout.Channels()
}

// ChannelsPerGroup returns the number of interleaved channels in each group
func (b *SampleBuffer) ChannelsPerGroup() int {
	if b.groups == 0 {
		return 0
	}
	return b.Channels() / b.groups
}

// GroupFrameSize returns the bytes one frame occupies in a single group
func (b *SampleBuffer) GroupFrameSize() int {
	return b.format.BytesPerSample() * b.ChannelsPerGroup()
}

// FrameSize returns the bytes one frame occupies across all groups
func (b *SampleBuffer) FrameSize() int {
	return b.format.BytesPerSample() * b.Channels()
}

// SecondSize returns the bytes per second of audio across all groups
func (b *SampleBuffer) SecondSize() int {
	return b.rate * b.FrameSize()
}

// PlaneCapacity returns the maximum fill size of each group
func (b *SampleBuffer) PlaneCapacity() int {
	if len(b.planes) == 0 {
		return 0
	}
	return len(b.planes[0])
}

// Plane returns the whole storage of a group, for producers writing in place
func (b *SampleBuffer) Plane(group int) []byte {
	return b.planes[group]
}

// Data returns the filled part of a group
func (b *SampleBuffer) Data(group int) []byte {
	return b.planes[group][:b.sizes[group]]
}

// Size returns the fill size of a group in bytes
func (b *SampleBuffer) Size(group int) int {
	return b.sizes[group]
}

// WholeSize returns the fill size summed over all groups
func (b *SampleBuffer) WholeSize() int {
	total := 0
	for _, s := range b.sizes {
		total += s
	}
	return total
}

// Frames returns the number of whole frames stored
func (b *SampleBuffer) Frames() int {
	gfs := b.GroupFrameSize()
	if gfs == 0 || len(b.sizes) == 0 {
		return 0
	}
	return b.sizes[0] / gfs
}

// Remaining returns the frames not yet consumed by AppendFrom
func (b *SampleBuffer) Remaining() int {
	return b.Frames() - b.cursor
}

// IsFull reports whether no further frame fits
func (b *SampleBuffer) IsFull() bool {
	gfs := b.GroupFrameSize()
	return len(b.sizes) > 0 && b.sizes[0]+gfs > b.PlaneCapacity()
}

// SetSize sets the fill size of every group, truncated to whole frames and
// to capacity, and rewinds the read cursor
func (b *SampleBuffer) SetSize(n int) {
	gfs := b.GroupFrameSize()
	if n > b.PlaneCapacity() {
		n = b.PlaneCapacity()
	}
	if n < 0 {
		n = 0
	}
	if gfs > 0 {
		n -= n % gfs
	}
	for g := range b.sizes {
		b.sizes[g] = n
	}
	b.cursor = 0
}

// Clear empties the buffer
func (b *SampleBuffer) Clear() {
	b.SetSize(0)
}

// AppendFrom moves as many whole frames as fit from src into b, converting
// the sample format, reordering channels from src's convention to b's and
// splitting or interleaving groups as needed. It returns true when src has
// been fully consumed and false when b filled up first; the remainder stays
// in src for the next call. Both buffers must have the same channel count.
func (b *SampleBuffer) AppendFrom(src *SampleBuffer) bool {
	remaining := src.Remaining()
	if remaining <= 0 {
		return true
	}
	if src.Channels() != b.Channels() {
		return true
	}

	dstGFS := b.GroupFrameSize()
	if dstGFS == 0 || src.GroupFrameSize() == 0 {
		return true
	}
	free := (b.PlaneCapacity() - b.sizes[0]) / dstGFS
	n := remaining
	if n > free {
		n = free
	}
	if n <= 0 {
		return false
	}

	srcGFS := src.GroupFrameSize()
	identity := b.layout == LayoutMono || b.layout == LayoutStereo || b.layout == LayoutQuad || src.order == b.order
	if identity && src.format == b.format && src.groups == 1 && b.groups == 1 {
		start := src.cursor * srcGFS
		copy(b.planes[0][b.sizes[0]:], src.planes[0][start:start+n*srcGFS])
	} else {
		b.convertFrames(src, n)
	}

	for g := range b.sizes {
		b.sizes[g] += n * dstGFS
	}
	src.cursor += n
	return src.cursor >= src.Frames()
}

func (b *SampleBuffer) convertFrames(src *SampleBuffer, n int) {
	chMap := b.layout.ChannelMap(src.order, b.order)
	srcBPS := src.format.BytesPerSample()
	dstBPS := b.format.BytesPerSample()
	srcCPG := src.ChannelsPerGroup()
	dstCPG := b.ChannelsPerGroup()
	srcGFS := src.GroupFrameSize()
	dstGFS := b.GroupFrameSize()
	sameFormat := src.format == b.format

	for ch, from := range chMap {
		srcPlane := src.planes[from/srcCPG]
		srcOff := src.cursor*srcGFS + (from%srcCPG)*srcBPS
		dg := ch / dstCPG
		dstPlane := b.planes[dg]
		dstOff := b.sizes[dg] + (ch%dstCPG)*dstBPS

		for f := 0; f < n; f++ {
			in := srcPlane[srcOff : srcOff+srcBPS]
			out := dstPlane[dstOff : dstOff+dstBPS]
			if sameFormat {
				copy(out, in)
			} else {
				WriteSample(out, b.format, ReadSample(in, src.format))
			}
			srcOff += srcGFS
			dstOff += dstGFS
		}
	}
}
