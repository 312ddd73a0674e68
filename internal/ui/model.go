// ABOUTME: Bubbletea model for player TUI
// ABOUTME: Defines display state, key handling and rendering
package ui

import (
	"fmt"
	"strings"

	"github.com/Resonate-Protocol/audioqueue/internal/protocol"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

const (
	volumeStep = 5
	seekStep   = 5.0
)

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205")).MarginBottom(1)
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("86"))
	valueStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("250"))
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	helpStyle   = lipgloss.NewStyle().Faint(true)
)

// Model represents the TUI state
type Model struct {
	name string

	// Device
	session   string
	sessionID string
	device    string
	layout    string

	// Playback
	state    string
	playing  bool
	downtime bool
	position float64
	volume   int
	muted    int // volume to restore on unmute, 0 when not muted

	// Stream
	codec      string
	sampleRate int
	channels   int
	bitDepth   int

	// Metadata
	title  string
	artist string
	album  string

	lastError string
	showDebug bool
	quitting  bool

	ctrl *Control

	width  int
	height int
}

// Init initializes the model
func (m Model) Init() tea.Cmd {
	return nil
}

// Update handles messages
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
	case StatusMsg:
		m.applyStatus(msg)
	}

	return m, nil
}

// View renders the TUI
func (m Model) View() string {
	if m.quitting {
		return "Shutting down player...\n"
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render(m.name))
	b.WriteString("\n\n")

	b.WriteString(m.renderDevice())
	b.WriteString(m.renderStream())
	b.WriteString(m.renderPlayback())
	if m.showDebug {
		b.WriteString(m.renderDebug())
	}
	if m.lastError != "" {
		b.WriteString(errorStyle.Render("Error: " + m.lastError))
		b.WriteString("\n")
	}
	b.WriteString("\n")
	b.WriteString(helpStyle.Render("space:Pause/Resume  ←/→:Seek  ↑/↓:Volume  m:Mute  p:Play  s:Stop  d:Debug  q:Quit"))

	return b.String()
}

func field(label, value string) string {
	return headerStyle.Render(label+": ") + valueStyle.Render(value) + "\n"
}

// renderDevice renders the output device session
func (m Model) renderDevice() string {
	device := m.device
	if device == "" {
		device = "default"
	}
	return field("Device", fmt.Sprintf("%s (%s)", device, orDash(m.session))) +
		field("Layout", orDash(m.layout))
}

// renderStream renders current stream and metadata
func (m Model) renderStream() string {
	if m.codec == "" {
		return field("Stream", "none")
	}

	s := ""
	if m.title != "" {
		s += field("Track", truncate(m.title, 42))
		if m.artist != "" {
			s += field("Artist", truncate(m.artist, 42))
		}
		if m.album != "" {
			s += field("Album", truncate(m.album, 42))
		}
	}
	s += field("Format", fmt.Sprintf("%s %dHz %s %d-bit", m.codec, m.sampleRate, channelName(m.channels), m.bitDepth))
	return s
}

// renderPlayback renders position, state and volume
func (m Model) renderPlayback() string {
	state := m.state
	if m.downtime && m.playing {
		state += ", waiting for audio"
	}
	muteIcon := ""
	if m.muted > 0 {
		muteIcon = " (muted)"
	}

	return "\n" +
		field("Position", formatPosition(m.position)) +
		field("State", orDash(state)) +
		field("Volume", fmt.Sprintf("[%s] %d%%%s", renderBar(m.volume, 100, 10), m.volume, muteIcon))
}

// renderDebug renders debug information
func (m Model) renderDebug() string {
	return "\n" +
		field("Session ID", orDash(m.sessionID)) +
		field("Requested", fmt.Sprintf("playing=%v downtime=%v", m.playing, m.downtime))
}

// handleKey handles keyboard input
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		m.quitting = true
		m.ctrl.quit()
		return m, tea.Quit
	case " ", "space":
		if m.playing {
			m.playing = false
			m.ctrl.send(protocol.PlayerCommand{Command: protocol.CommandPause})
		} else {
			m.playing = true
			m.ctrl.send(protocol.PlayerCommand{Command: protocol.CommandResume})
		}
	case "p":
		m.playing = true
		m.ctrl.send(protocol.PlayerCommand{Command: protocol.CommandPlay})
	case "s":
		m.playing = false
		m.ctrl.send(protocol.PlayerCommand{Command: protocol.CommandStop})
	case "left":
		m.position -= seekStep
		if m.position < 0 {
			m.position = 0
		}
		m.ctrl.send(protocol.PlayerCommand{Command: protocol.CommandSeek, Seconds: m.position})
	case "right":
		m.position += seekStep
		m.ctrl.send(protocol.PlayerCommand{Command: protocol.CommandSeek, Seconds: m.position})
	case "up":
		m.setVolume(m.volume + volumeStep)
	case "down":
		m.setVolume(m.volume - volumeStep)
	case "m":
		if m.muted > 0 {
			restore := m.muted
			m.muted = 0
			m.setVolume(restore)
		} else if m.volume > 0 {
			restore := m.volume
			m.setVolume(0)
			m.muted = restore
		}
	case "d":
		m.showDebug = !m.showDebug
	}

	return m, nil
}

func (m *Model) setVolume(volume int) {
	if volume > 100 {
		volume = 100
	}
	if volume < 0 {
		volume = 0
	}
	m.volume = volume
	m.muted = 0
	m.ctrl.send(protocol.PlayerCommand{Command: protocol.CommandVolume, Volume: volume})
}

// applyStatus updates model from status message
func (m *Model) applyStatus(msg StatusMsg) {
	st := msg.Status
	m.state = st.State
	m.session = st.Session
	m.sessionID = st.SessionID
	m.device = st.Device
	m.layout = st.Layout
	m.playing = st.Playing
	m.downtime = st.Downtime
	m.position = st.Position
	m.volume = st.Volume
	if st.Volume > 0 {
		m.muted = 0
	}

	if st.Codec != "" {
		m.codec = st.Codec
		m.sampleRate = st.SampleRate
		m.channels = st.Channels
		m.bitDepth = st.BitDepth
	}
	if st.Title != "" {
		m.title = st.Title
		m.artist = st.Artist
		m.album = st.Album
	}
	if msg.Error != "" {
		m.lastError = msg.Error
	}
}

// StatusMsg updates TUI state
type StatusMsg struct {
	Status protocol.PlayerStatus
	Error  string
}

// Utility functions
func renderBar(value, max, width int) string {
	filled := (value * width) / max
	if filled > width {
		filled = width
	}
	if filled < 0 {
		filled = 0
	}
	return strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
}

func truncate(s string, length int) string {
	if len(s) <= length {
		return s
	}
	return s[:length-3] + "..."
}

func channelName(channels int) string {
	switch channels {
	case 1:
		return "Mono"
	case 2:
		return "Stereo"
	case 4:
		return "Quad"
	case 6:
		return "5.1"
	}
	return fmt.Sprintf("%dch", channels)
}

func formatPosition(seconds float64) string {
	if seconds < 0 {
		seconds = 0
	}
	total := int(seconds)
	return fmt.Sprintf("%d:%02d.%d", total/60, total%60, int((seconds-float64(total))*10))
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
