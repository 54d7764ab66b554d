package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/remakesof/launcher/internal/transfer"
)

const tickInterval = 100 * time.Millisecond

var (
	titleStyle = lipgloss.NewStyle().Bold(true)
	infoStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	errStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	pad        = lipgloss.NewStyle().Padding(1).Render
)

type tickMsg time.Time

// DoneMsg tells the model the install finished, successfully or not
type DoneMsg struct {
	Err error
}

// Model renders install progress from a transfer.LatestSink
type Model struct {
	title    string
	source   *transfer.LatestSink
	cancel   func()
	progress progress.Model
	sample   transfer.Sample
	seen     bool
	done     bool
	canceled bool
	err      error
}

// NewModel creates a progress view. cancel is called when the user quits
// before the install finishes; it may be nil.
func NewModel(title string, source *transfer.LatestSink, cancel func()) Model {
	return Model{
		title:    title,
		source:   source,
		cancel:   cancel,
		progress: progress.New(progress.WithDefaultGradient()),
	}
}

// Init starts the refresh ticker
func (m Model) Init() tea.Cmd {
	return tickCmd()
}

// Update handles key presses, window resizes, ticks and completion
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			if !m.done && m.cancel != nil {
				m.cancel()
			}
			m.canceled = !m.done
			return m, tea.Quit
		}
		return m, nil

	case tea.WindowSizeMsg:
		m.progress.Width = msg.Width - 4
		if m.progress.Width > 80 {
			m.progress.Width = 80
		}
		return m, nil

	case tickMsg:
		if m.done {
			return m, nil
		}
		m.refresh()
		var cmd tea.Cmd
		if m.seen && !m.sample.Indeterminate() {
			cmd = m.progress.SetPercent(m.sample.Fraction())
		}
		return m, tea.Batch(cmd, tickCmd())

	case DoneMsg:
		m.refresh()
		m.done = true
		m.err = msg.Err
		var cmd tea.Cmd
		if msg.Err == nil {
			cmd = m.progress.SetPercent(1)
		}
		return m, tea.Sequence(cmd, tea.Quit)

	case progress.FrameMsg:
		pm, cmd := m.progress.Update(msg)
		m.progress = pm.(progress.Model)
		return m, cmd

	default:
		return m, nil
	}
}

func (m *Model) refresh() {
	if m.source == nil {
		return
	}
	if s, ok := m.source.Load(); ok {
		m.sample = s
		m.seen = true
	}
}

// Canceled reports whether the user quit before the install finished
func (m Model) Canceled() bool {
	return m.canceled
}

// View renders the progress bar and transfer statistics
func (m Model) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render(m.title))
	b.WriteString("\n\n")

	if !m.seen {
		b.WriteString(infoStyle.Render("Connecting..."))
		return pad(b.String()) + "\n"
	}

	b.WriteString(m.progress.View())
	b.WriteString("\n")
	b.WriteString(infoStyle.Render(FormatSample(m.sample)))

	if m.err != nil {
		b.WriteString("\n")
		b.WriteString(errStyle.Render(fmt.Sprintf("Error: %v", m.err)))
	}
	return pad(b.String()) + "\n"
}

// FormatSample renders a sample as a single human-readable line
func FormatSample(s transfer.Sample) string {
	rate := humanize.Bytes(uint64(s.BytesPerSecond)) + "/s"
	if s.Indeterminate() {
		return fmt.Sprintf("%s  •  %s", humanize.Bytes(uint64(s.Transferred)), rate)
	}

	line := fmt.Sprintf("%s / %s (%.1f%%)  •  %s",
		humanize.Bytes(uint64(s.Transferred)), humanize.Bytes(uint64(s.Total)), s.Percent, rate)
	if eta, ok := ETA(s); ok {
		line += "  •  " + eta.Round(time.Second).String() + " left"
	}
	return line
}

// ETA estimates the remaining time from the windowed rate
func ETA(s transfer.Sample) (time.Duration, bool) {
	if s.Indeterminate() || s.BytesPerSecond <= 0 || s.Transferred >= s.Total {
		return 0, false
	}
	remaining := float64(s.Total - s.Transferred)
	return time.Duration(remaining / s.BytesPerSecond * float64(time.Second)), true
}

func tickCmd() tea.Cmd {
	return tea.Tick(tickInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}
