// ABOUTME: TUI lifecycle wrapper around the bubbletea program
// ABOUTME: Fans status updates in and user actions out
package ui

import (
	tea "github.com/charmbracelet/bubbletea"
)

// TUI runs the host display and relays user actions
type TUI struct {
	program *tea.Program
	actions chan Action
	updates chan StatusMsg
}

// New creates the TUI; Run must be called to start it
func New() *TUI {
	return &TUI{
		actions: make(chan Action, 10),
		updates: make(chan StatusMsg, 10),
	}
}

// Actions returns the channel of user key commands
func (t *TUI) Actions() <-chan Action {
	return t.actions
}

// Update posts a status change; drops if the display is backed up
func (t *TUI) Update(msg StatusMsg) {
	select {
	case t.updates <- msg:
	default:
	}
}

// Run blocks until the user quits or Stop is called
func (t *TUI) Run() error {
	t.program = tea.NewProgram(NewModel(t.actions), tea.WithAltScreen())

	go func() {
		for msg := range t.updates {
			if t.program != nil {
				t.program.Send(msg)
			}
		}
	}()

	_, err := t.program.Run()
	return err
}

// Stop shuts the display down
func (t *TUI) Stop() {
	if t.program != nil {
		t.program.Quit()
	}
	close(t.updates)
}
