// ABOUTME: Channel layouts, ordering conventions and speaker positions
// ABOUTME: Maps interleaved channel indices between decoder and device orderings
package audio

import "fmt"

// ChannelRole is the speaker a channel is meant for
type ChannelRole int

const (
	RoleCenter ChannelRole = iota
	RoleFrontLeft
	RoleFrontRight
	RoleLFE
	RoleRearLeft
	RoleRearRight
)

func (r ChannelRole) String() string {
	switch r {
	case RoleCenter:
		return "FC"
	case RoleFrontLeft:
		return "FL"
	case RoleFrontRight:
		return "FR"
	case RoleLFE:
		return "LFE"
	case RoleRearLeft:
		return "RL"
	case RoleRearRight:
		return "RR"
	}
	return fmt.Sprintf("role(%d)", int(r))
}

// Vec3 is a listener-relative position (x right, y up, z towards the listener)
type Vec3 struct {
	X, Y, Z float32
}

// Position returns where a split source carrying this role is placed
func (r ChannelRole) Position() Vec3 {
	switch r {
	case RoleFrontLeft:
		return Vec3{-1, 0, -1}
	case RoleFrontRight:
		return Vec3{1, 0, -1}
	case RoleCenter:
		return Vec3{0, 0, -1}
	case RoleRearLeft:
		return Vec3{-1, 0, 1}
	case RoleRearRight:
		return Vec3{1, 0, 1}
	}
	// LFE sits at the listener
	return Vec3{}
}

// Convention is the order in which a producer interleaves channels
type Convention int

const (
	ConventionPCM    Convention = iota // WAVE / device order
	ConventionAC3                      // legacy AC-3 decoder order
	ConventionVorbis                   // legacy Vorbis decoder order
)

func (c Convention) String() string {
	switch c {
	case ConventionPCM:
		return "pcm"
	case ConventionAC3:
		return "ac3"
	case ConventionVorbis:
		return "vorbis"
	}
	return fmt.Sprintf("convention(%d)", int(c))
}

// Layout is a speaker arrangement
type Layout int

const (
	LayoutNone Layout = iota
	LayoutMono        // 1.0
	LayoutStereo      // 2.0
	LayoutQuad        // 4.0
	Layout51          // 5.1
)

// LayoutForChannels returns the layout with the given channel count
func LayoutForChannels(channels int) (Layout, bool) {
	switch channels {
	case 1:
		return LayoutMono, true
	case 2:
		return LayoutStereo, true
	case 4:
		return LayoutQuad, true
	case 6:
		return Layout51, true
	}
	return LayoutNone, false
}

// Channels returns the channel count of the layout
func (l Layout) Channels() int {
	return len(l.Roles(ConventionPCM))
}

func (l Layout) String() string {
	switch l {
	case LayoutMono:
		return "1.0"
	case LayoutStereo:
		return "2.0"
	case LayoutQuad:
		return "4.0"
	case Layout51:
		return "5.1"
	}
	return "none"
}

var (
	rolesMono   = []ChannelRole{RoleCenter}
	rolesStereo = []ChannelRole{RoleFrontLeft, RoleFrontRight}
	rolesQuad   = []ChannelRole{RoleFrontLeft, RoleFrontRight, RoleRearLeft, RoleRearRight}

	roles51PCM    = []ChannelRole{RoleFrontLeft, RoleFrontRight, RoleCenter, RoleLFE, RoleRearLeft, RoleRearRight}
	roles51AC3    = []ChannelRole{RoleLFE, RoleFrontLeft, RoleCenter, RoleFrontRight, RoleRearLeft, RoleRearRight}
	roles51Vorbis = []ChannelRole{RoleFrontLeft, RoleCenter, RoleFrontRight, RoleRearLeft, RoleRearRight, RoleLFE}
)

// Roles returns the channel roles in interleaved order for a convention.
// Only 5.1 differs between conventions.
func (l Layout) Roles(c Convention) []ChannelRole {
	switch l {
	case LayoutMono:
		return rolesMono
	case LayoutStereo:
		return rolesStereo
	case LayoutQuad:
		return rolesQuad
	case Layout51:
		switch c {
		case ConventionAC3:
			return roles51AC3
		case ConventionVorbis:
			return roles51Vorbis
		default:
			return roles51PCM
		}
	}
	return nil
}

// ChannelMap returns, for each channel index in the destination convention,
// the index of the same role in the source convention
func (l Layout) ChannelMap(from, to Convention) []int {
	src := l.Roles(from)
	dst := l.Roles(to)
	m := make([]int, len(dst))
	for i, role := range dst {
		for j, r := range src {
			if r == role {
				m[i] = j
				break
			}
		}
	}
	return m
}
