package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/muurk/wifiportal/internal/events"
)

// maxWatchLines is how many events the watch view keeps on screen
const maxWatchLines = 20

// EventSource yields daemon events. *events.Feed implements it.
type EventSource interface {
	Next() (events.Message, error)
}

type eventMsg events.Message

type feedClosedMsg struct{ err error }

// WatchModel is a Bubble Tea model that streams daemon events
type WatchModel struct {
	source  EventSource
	addr    string
	spinner spinner.Model
	lines   []events.Message
	err     error
	done    bool
	width   int
}

// NewWatchModel creates a watch model reading from source. addr is only
// displayed.
func NewWatchModel(source EventSource, addr string) WatchModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(PrimaryColor)

	return WatchModel{
		source:  source,
		addr:    addr,
		spinner: s,
		width:   GetTerminalWidth(),
	}
}

// Init implements tea.Model
func (m WatchModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, waitForEvent(m.source))
}

// Update implements tea.Model
func (m WatchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "esc", "ctrl+c":
			m.done = true
			return m, tea.Quit
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width

	case eventMsg:
		m.lines = append(m.lines, events.Message(msg))
		if len(m.lines) > maxWatchLines {
			m.lines = m.lines[len(m.lines)-maxWatchLines:]
		}
		return m, waitForEvent(m.source)

	case feedClosedMsg:
		m.err = msg.err
		m.done = true
		return m, tea.Quit

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

// View implements tea.Model
func (m WatchModel) View() string {
	var b strings.Builder

	if m.done {
		b.WriteString(MutedStyle.Render("  Stopped watching " + m.addr))
	} else {
		b.WriteString(fmt.Sprintf("  %s Watching %s", m.spinner.View(), m.addr))
	}
	b.WriteString("\n\n")

	if len(m.lines) == 0 {
		b.WriteString(MutedStyle.Render("  Waiting for events..."))
		b.WriteString("\n")
	}
	for _, msg := range m.lines {
		b.WriteString("  ")
		b.WriteString(FormatEvent(msg))
		b.WriteString("\n")
	}

	if m.err != nil {
		b.WriteString("\n")
		b.WriteString(ErrorMessageStyle.Render("  Connection closed: " + m.err.Error()))
		b.WriteString("\n")
	}
	if !m.done {
		b.WriteString("\n")
		b.WriteString(MutedStyle.Render("  q: quit"))
	}
	return b.String()
}

// Err returns the error that ended the feed, if any
func (m WatchModel) Err() error {
	return m.err
}

// Events returns the events currently on screen, oldest first
func (m WatchModel) Events() []events.Message {
	return m.lines
}

// FormatEvent renders one event as a single line
func FormatEvent(msg events.Message) string {
	var label string
	switch msg.Type {
	case events.TypeConnected:
		label = lipgloss.NewStyle().Foreground(SuccessColor).Bold(true).Render("CONNECTED   ")
	case events.TypeDisconnected:
		label = lipgloss.NewStyle().Foreground(ErrorColor).Bold(true).Render("DISCONNECTED")
	case events.TypeSaved:
		label = lipgloss.NewStyle().Foreground(WarningColor).Bold(true).Render("SAVED       ")
	default:
		label = fmt.Sprintf("%-12s", strings.ToUpper(msg.Type))
	}

	line := fmt.Sprintf("%s  %s  %s", MutedStyle.Render(msg.Time.Local().Format(time.TimeOnly)), label, msg.SSID)
	if msg.Address != "" {
		line += MutedStyle.Render("  " + msg.Address)
	}
	return line
}

// RunWatch runs the watch model until the user quits or the feed closes
func RunWatch(source EventSource, addr string) error {
	final, err := tea.NewProgram(NewWatchModel(source, addr)).Run()
	if err != nil {
		return err
	}
	if m, ok := final.(WatchModel); ok && m.err != nil {
		return m.err
	}
	return nil
}

func waitForEvent(source EventSource) tea.Cmd {
	return func() tea.Msg {
		msg, err := source.Next()
		if err != nil {
			return feedClosedMsg{err: err}
		}
		return eventMsg(msg)
	}
}
