// ABOUTME: Bubbletea model for the host control TUI
// ABOUTME: Shows link status, device mode, and transfer progress
package ui

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/AudioLink-Protocol/audiolink-go/internal/session"
)

// Action is a user request handed to the host loop
type Action int

const (
	ActionToggleRecord Action = iota
	ActionPlay
	ActionStopPlay
	ActionQuit
)

// StatusMsg updates the displayed state. Nil/zero fields leave the
// current value alone, except Err which always replaces.
type StatusMsg struct {
	Connected  *bool
	DeviceName string
	Mode       *session.Mode
	Format     *session.Format
	Transfer   string
	SentBytes  int64
	RecvBytes  int64
	Err        string
}

type tickMsg time.Time

// Model is the TUI state
type Model struct {
	connected  bool
	deviceName string
	mode       session.Mode
	format     session.Format
	transfer   string
	sentBytes  int64
	recvBytes  int64
	lastErr    string

	actions   chan<- Action
	startTime time.Time
	quitting  bool
	width     int
}

// NewModel creates the initial model; actions receives key commands
func NewModel(actions chan<- Action) Model {
	return Model{
		actions:   actions,
		startTime: time.Now(),
	}
}

// Init starts the uptime ticker
func (m Model) Init() tea.Cmd {
	return tickEvery()
}

func tickEvery() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// Update handles messages
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)
	case tea.WindowSizeMsg:
		m.width = msg.Width
	case tickMsg:
		return m, tickEvery()
	case StatusMsg:
		m.applyStatus(msg)
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		m.quitting = true
		m.send(ActionQuit)
		return m, tea.Quit
	case "r":
		m.send(ActionToggleRecord)
	case "p":
		m.send(ActionPlay)
	case "s":
		m.send(ActionStopPlay)
	}
	return m, nil
}

func (m Model) send(a Action) {
	select {
	case m.actions <- a:
	default:
	}
}

func (m *Model) applyStatus(msg StatusMsg) {
	if msg.Connected != nil {
		m.connected = *msg.Connected
	}
	if msg.DeviceName != "" {
		m.deviceName = msg.DeviceName
	}
	if msg.Mode != nil {
		m.mode = *msg.Mode
	}
	if msg.Format != nil {
		m.format = *msg.Format
	}
	if msg.Transfer != "" {
		m.transfer = msg.Transfer
	}
	if msg.SentBytes != 0 {
		m.sentBytes = msg.SentBytes
	}
	if msg.RecvBytes != 0 {
		m.recvBytes = msg.RecvBytes
	}
	m.lastErr = msg.Err
}

// View renders the TUI
func (m Model) View() string {
	if m.quitting {
		return "Closing link...\n"
	}

	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("205")).
		MarginBottom(1)

	headerStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("86"))

	valueStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("250"))

	errStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("196"))

	var b strings.Builder
	b.WriteString(titleStyle.Render("AudioLink Host"))
	b.WriteString("\n\n")

	b.WriteString(headerStyle.Render("Device: "))
	if m.connected {
		name := m.deviceName
		if name == "" {
			name = "(unnamed)"
		}
		b.WriteString(valueStyle.Render(name))
	} else {
		b.WriteString(valueStyle.Render("disconnected"))
	}
	b.WriteString("\n")

	b.WriteString(headerStyle.Render("Mode: "))
	b.WriteString(valueStyle.Render(m.mode.String()))
	b.WriteString("\n")

	b.WriteString(headerStyle.Render("Format: "))
	b.WriteString(valueStyle.Render(m.format.String()))
	b.WriteString("\n")

	if m.transfer != "" {
		b.WriteString(headerStyle.Render("Transfer: "))
		b.WriteString(valueStyle.Render(m.transfer))
		b.WriteString("\n")
	}

	b.WriteString(headerStyle.Render("Traffic: "))
	b.WriteString(valueStyle.Render(fmt.Sprintf("tx %s  rx %s", byteCount(m.sentBytes), byteCount(m.recvBytes))))
	b.WriteString("\n")

	b.WriteString(headerStyle.Render("Uptime: "))
	b.WriteString(valueStyle.Render(time.Since(m.startTime).Round(time.Second).String()))
	b.WriteString("\n")

	if m.lastErr != "" {
		b.WriteString("\n")
		b.WriteString(errStyle.Render("Error: " + m.lastErr))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(lipgloss.NewStyle().Faint(true).Render("r:Record  p:Play  s:Stop  q:Quit"))
	b.WriteString("\n")

	return b.String()
}

func byteCount(n int64) string {
	switch {
	case n >= 1<<20:
		return fmt.Sprintf("%.1fMB", float64(n)/(1<<20))
	case n >= 1<<10:
		return fmt.Sprintf("%.1fKB", float64(n)/(1<<10))
	default:
		return fmt.Sprintf("%dB", n)
	}
}
