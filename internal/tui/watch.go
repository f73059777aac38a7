package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"ytarchiver/internal/api"
)

// DefaultInterval is the status polling cadence.
const DefaultInterval = 500 * time.Millisecond

const requestTimeout = 5 * time.Second

// Source is the subset of the API client the watch view needs.
type Source interface {
	Status(ctx context.Context) (api.StatusResponse, error)
	Cancel(ctx context.Context, id string) (api.CancelResponse, error)
}

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))
	mutedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("203")).Bold(true)
	okStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Bold(true)
	panelStyle   = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	pendingStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("252"))
)

type statusMsg struct {
	status api.StatusResponse
	err    error
}

type cancelMsg struct {
	message string
	err     error
}

type tickMsg time.Time

type model struct {
	ctx      context.Context
	source   Source
	interval time.Duration

	status  api.StatusResponse
	loaded  bool
	err     error
	message string
	width   int

	bar     progress.Model
	spinner spinner.Model
}

func newModel(ctx context.Context, source Source, interval time.Duration) model {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return model{
		ctx:      ctx,
		source:   source,
		interval: interval,
		bar:      progress.New(progress.WithDefaultGradient(), progress.WithWidth(40)),
		spinner:  spinner.New(spinner.WithSpinner(spinner.Dot)),
	}
}

// Run shows the watch view until the user quits or ctx is cancelled.
func Run(ctx context.Context, source Source, interval time.Duration) error {
	if source == nil {
		return errors.New("watch requires a status source")
	}
	p := tea.NewProgram(newModel(ctx, source, interval), tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := p.Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}

func (m model) Init() tea.Cmd {
	return tea.Batch(m.fetch(), m.spinner.Tick)
}

func (m model) fetch() tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(m.ctx, requestTimeout)
		defer cancel()
		status, err := m.source.Status(ctx)
		return statusMsg{status: status, err: err}
	}
}

func (m model) tick() tea.Cmd {
	return tea.Tick(m.interval, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m model) cancelCurrent() tea.Cmd {
	if m.status.Current == nil {
		return nil
	}
	id := m.status.Current.ID
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(m.ctx, requestTimeout)
		defer cancel()
		resp, err := m.source.Cancel(ctx, id)
		return cancelMsg{message: resp.Message, err: err}
	}
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.bar.Width = clampInt(msg.Width-12, 10, 80)
		return m, nil
	case statusMsg:
		m.err = msg.err
		if msg.err == nil {
			m.status = msg.status
			m.loaded = true
		}
		return m, m.tick()
	case tickMsg:
		return m, m.fetch()
	case cancelMsg:
		if msg.err != nil {
			m.message = "cancel failed: " + msg.err.Error()
		} else {
			m.message = msg.message
		}
		return m, m.fetch()
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "esc", "ctrl+c":
			return m, tea.Quit
		case "c":
			return m, m.cancelCurrent()
		case "r":
			return m, m.fetch()
		}
	}
	return m, nil
}

func (m model) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("ytarchiver watch"))
	b.WriteString("\n")
	b.WriteString(mutedStyle.Render("c: cancel active | r: refresh | q: quit"))
	b.WriteString("\n\n")

	if !m.loaded {
		if m.err != nil {
			b.WriteString(errorStyle.Render("daemon unreachable: " + m.err.Error()))
		} else {
			b.WriteString(m.spinner.View() + " connecting...")
		}
		b.WriteString("\n")
		return b.String()
	}

	b.WriteString(panelStyle.Render(m.renderCurrent()))
	b.WriteString("\n")
	b.WriteString(panelStyle.Render(m.renderPending()))
	b.WriteString("\n")

	switch {
	case m.err != nil:
		b.WriteString(errorStyle.Render("refresh failed: " + m.err.Error()))
		b.WriteString("\n")
	case m.message != "":
		b.WriteString(okStyle.Render(m.message))
		b.WriteString("\n")
	}
	return b.String()
}

func (m model) renderCurrent() string {
	current := m.status.Current
	prog := m.status.Progress
	if current == nil {
		line := "Idle"
		if prog.Phase == "complete" || prog.Phase == "error" {
			line = fmt.Sprintf("Last job %s: %s", shortID(prog.JobID), prog.Phase)
			if prog.Title != "" {
				line += " (" + prog.Title + ")"
			}
		}
		return mutedStyle.Render(line)
	}

	title := firstNonEmpty(prog.Title, current.Title, current.SourceURL)
	lines := []string{
		m.spinner.View() + " " + titleStyle.Render(title),
		mutedStyle.Render(fmt.Sprintf("%s  %s  %s", shortID(current.ID), current.Format, prog.Phase)),
		m.bar.ViewAs(float64(prog.Percent) / 100),
	}
	return strings.Join(lines, "\n")
}

func (m model) renderPending() string {
	if len(m.status.Pending) == 0 {
		return mutedStyle.Render("No pending jobs")
	}
	lines := make([]string, 0, len(m.status.Pending)+1)
	lines = append(lines, fmt.Sprintf("Pending (%d)", len(m.status.Pending)))
	for i, job := range m.status.Pending {
		label := firstNonEmpty(job.Title, job.SourceURL)
		lines = append(lines, pendingStyle.Render(fmt.Sprintf("%2d. %s  %s", i+1, shortID(job.ID), label)))
	}
	return strings.Join(lines, "\n")
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
