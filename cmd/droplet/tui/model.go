package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// logLines is how many progress lines stay on screen.
const logLines = 8

// ProgressMsg carries the completed percentage in [0, 100].
type ProgressMsg float64

// LogMsg carries one progress line.
type LogMsg string

// DoneMsg is sent once generation has finished.
type DoneMsg struct {
	Err error
}

// Model renders the progress of a single manifest generation.
type Model struct {
	source    string
	spinner   spinner.Model
	bar       progress.Model
	percent   float64
	logs      logTail
	startTime time.Time
	width     int
	height    int
	done      bool
	cancelled bool
	err       error
	cancel    context.CancelFunc
}

// NewModel creates a model for generating a manifest of source. cancel is
// called when the user quits early and may be nil.
func NewModel(source string, cancel context.CancelFunc) Model {
	s := spinner.New()
	s.Spinner = spinner.Points
	s.Style = lipgloss.NewStyle().Foreground(primaryColor)

	return Model{
		source:    source,
		spinner:   s,
		bar:       progress.New(progress.WithDefaultGradient()),
		logs:      newLogTail(logLines),
		startTime: time.Now(),
		width:     80,
		height:    24,
		cancel:    cancel,
	}
}

// Init starts the spinner.
func (m Model) Init() tea.Cmd {
	return m.spinner.Tick
}

// Update handles messages for the model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q", "esc":
			if !m.done {
				m.cancelled = true
				if m.cancel != nil {
					m.cancel()
				}
			}
			return m, tea.Quit
		}
		return m, nil

	case ProgressMsg:
		pct := float64(msg)
		if pct < 0 {
			pct = 0
		}
		if pct > 100 {
			pct = 100
		}
		m.percent = pct
		return m, nil

	case LogMsg:
		m.logs = m.logs.add(string(msg))
		return m, nil

	case DoneMsg:
		m.done = true
		m.err = msg.Err
		return m, tea.Quit

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	return m, nil
}

// View renders the model.
func (m Model) View() string {
	var b strings.Builder

	contentWidth := m.width - 4
	if contentWidth < 40 {
		contentWidth = 40
	}

	b.WriteString("\n")
	b.WriteString(m.renderHeader(contentWidth))
	b.WriteString("\n")
	b.WriteString(renderDivider(contentWidth))
	b.WriteString("\n\n")

	b.WriteString(m.renderStatus(contentWidth))
	b.WriteString("\n\n")

	m.bar.Width = contentWidth - 10
	b.WriteString("  ")
	b.WriteString(m.bar.ViewAs(m.percent / 100))
	b.WriteString(" ")
	b.WriteString(percentStyle.Render(fmt.Sprintf("%5.1f%%", m.percent)))
	b.WriteString("\n")
	b.WriteString(mutedTextStyle.Render("  elapsed " + formatDuration(time.Since(m.startTime))))
	b.WriteString("\n\n")

	for _, line := range m.logs.entries() {
		b.WriteString(logLineStyle.Render("  " + truncate(line, contentWidth-2)))
		b.WriteString("\n")
	}

	content := b.String()
	contentLines := strings.Count(content, "\n") + 1
	if available := m.height - 2; available > contentLines {
		content += strings.Repeat("\n", available-contentLines)
	}

	return outerBoxStyle.Width(m.width - 2).Render(content)
}

func (m Model) renderHeader(width int) string {
	title := titleStyle.Render("  droplet")
	hint := mutedTextStyle.Render("[q to cancel]")

	spacing := width - lipgloss.Width(title) - lipgloss.Width(hint)
	if spacing < 1 {
		spacing = 1
	}
	return title + strings.Repeat(" ", spacing) + hint
}

func (m Model) renderStatus(width int) string {
	switch {
	case m.done && m.err != nil:
		return errorTextStyle.Render(fmt.Sprintf("  Error: %v", m.err))
	case m.done:
		return successTextStyle.Render("  Manifest generated")
	case m.cancelled:
		return mutedTextStyle.Render("  Cancelling...")
	default:
		return fmt.Sprintf("  %s Generating: %s", m.spinner.View(), truncate(m.source, width-20))
	}
}

// Percent returns the last reported progress.
func (m Model) Percent() float64 {
	return m.percent
}

// Done reports whether generation finished.
func (m Model) Done() bool {
	return m.done
}

// Cancelled reports whether the user quit before generation finished.
func (m Model) Cancelled() bool {
	return m.cancelled
}

// Err returns the generation error, if any.
func (m Model) Err() error {
	return m.err
}

// formatDuration formats a duration as M:SS.
func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	mins := d / time.Minute
	secs := (d % time.Minute) / time.Second
	return fmt.Sprintf("%d:%02d", mins, secs)
}

// truncate shortens s from the left so the tail of long paths stays visible.
func truncate(s string, maxLen int) string {
	if maxLen < 4 || len(s) <= maxLen {
		return s
	}
	return "..." + s[len(s)-maxLen+3:]
}
