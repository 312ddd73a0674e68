// ABOUTME: TUI initialization and control
// ABOUTME: Wraps the bubbletea program and carries key commands to the player
package ui

import (
	"github.com/Resonate-Protocol/audioqueue/internal/protocol"
	tea "github.com/charmbracelet/bubbletea"
)

// Control carries user requests from the TUI to the player
type Control struct {
	Commands chan protocol.PlayerCommand
	Quit     chan struct{}
}

// NewControl creates a new control handler
func NewControl() *Control {
	return &Control{
		Commands: make(chan protocol.PlayerCommand, 10),
		Quit:     make(chan struct{}, 1),
	}
}

func (c *Control) send(cmd protocol.PlayerCommand) {
	if c == nil {
		return
	}
	select {
	case c.Commands <- cmd:
	default:
		// drop key repeats the player has not caught up with
	}
}

func (c *Control) quit() {
	if c == nil {
		return
	}
	select {
	case c.Quit <- struct{}{}:
	default:
	}
}

// NewModel creates a new TUI model. ctrl may be nil.
func NewModel(name string, ctrl *Control) Model {
	return Model{
		name:   name,
		volume: 100,
		state:  "initial",
		ctrl:   ctrl,
	}
}

// TUI manages the player TUI
type TUI struct {
	program *tea.Program
	updates chan StatusMsg
	ctrl    *Control
}

// New creates a player TUI
func New(name string) *TUI {
	t := &TUI{
		updates: make(chan StatusMsg, 10),
		ctrl:    NewControl(),
	}
	t.program = tea.NewProgram(NewModel(name, t.ctrl), tea.WithAltScreen())
	return t
}

// Control returns the channels carrying user requests
func (t *TUI) Control() *Control {
	return t.ctrl
}

// Start runs the TUI until it quits
func (t *TUI) Start() error {
	go func() {
		for status := range t.updates {
			t.program.Send(status)
		}
	}()

	_, err := t.program.Run()
	return err
}

// Update sends a status update to the TUI
func (t *TUI) Update(status StatusMsg) {
	select {
	case t.updates <- status:
	default:
		// Don't block if channel is full
	}
}

// Stop stops the TUI
func (t *TUI) Stop() {
	t.program.Quit()
}
