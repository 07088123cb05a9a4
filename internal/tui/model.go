package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
)

// Model is the Bubble Tea model for the TUI progress display.
type Model struct {
	tasks          []Task
	spinner        spinner.Model
	progress       progress.Model
	events         <-chan Event
	done           bool
	username       string
	repository     string
	dryRun         bool
	rateLimited    bool
	rateLimitReset time.Time
}

// doneMsg signals that the events channel was closed.
type doneMsg struct{}

// ModelOption is a functional option for configuring a Model.
type ModelOption func(*Model)

// WithRepository shows the repository in the header.
func WithRepository(repository string) ModelOption {
	return func(m *Model) {
		m.repository = repository
	}
}

// WithDryRun marks the run as a dry run in the header.
func WithDryRun(dryRun bool) ModelOption {
	return func(m *Model) {
		m.dryRun = dryRun
	}
}

// DefaultTasks returns the task list of a run.
func DefaultTasks() []Task {
	return []Task{
		NewTask(TaskAuth, "Authenticating"),
		NewTask(TaskIssues, "Listing open issues"),
		NewTask(TaskExclusions, "Reading ignored columns"),
		NewTask(TaskEvaluate, "Checking activity"),
		NewTask(TaskNotify, "Commenting on stale issues"),
	}
}

// NewModel creates a new TUI model.
func NewModel(events <-chan Event, opts ...ModelOption) Model {
	s := spinner.New()
	s.Spinner = spinner.Dot

	p := progress.New(
		progress.WithScaledGradient("#60a5fa", "#1e3a8a"),
		progress.WithWidth(25),
		progress.WithoutPercentage(),
	)

	m := Model{
		tasks:    DefaultTasks(),
		spinner:  s,
		progress: p,
		events:   events,
	}

	for _, opt := range opts {
		opt(&m)
	}

	return m
}

// Init initializes the model.
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		m.spinner.Tick,
		waitForEvent(m.events),
	)
}

// Update handles messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			return m, tea.Quit
		}

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case progress.FrameMsg:
		progressModel, cmd := m.progress.Update(msg)
		m.progress = progressModel.(progress.Model)
		return m, cmd

	case TaskEvent:
		var cmd tea.Cmd
		m, cmd = m.updateTask(msg)
		return m, tea.Batch(cmd, waitForEvent(m.events))

	case RateLimitEvent:
		m.rateLimited = msg.Limited
		m.rateLimitReset = msg.ResetAt
		return m, waitForEvent(m.events)

	case DoneEvent, doneMsg:
		m.done = true
		return m, tea.Quit
	}

	return m, nil
}

// updateTask updates a task based on a TaskEvent.
func (m Model) updateTask(e TaskEvent) (Model, tea.Cmd) {
	var cmd tea.Cmd
	for i := range m.tasks {
		if m.tasks[i].ID != e.Task {
			continue
		}
		// each event carries the full label of its task
		m.tasks[i].Status = e.Status
		m.tasks[i].Message = e.Message
		m.tasks[i].Count = e.Count
		if e.Progress > 0 {
			m.tasks[i].Progress = e.Progress
			cmd = m.progress.SetPercent(e.Progress)
		}
		if e.Error != nil {
			m.tasks[i].Error = e.Error
		}
		if e.Task == TaskAuth && e.Status == StatusComplete && e.Message != "" {
			m.username = e.Message
		}
		break
	}
	return m, cmd
}

// View renders the model.
func (m Model) View() string {
	var b strings.Builder

	if m.repository != "" {
		header := "  Stale issues in " + repoStyle.Render(m.repository)
		if m.dryRun {
			header += " " + dryRunStyle.Render("(dry run: no comments are posted)")
		}
		b.WriteString(header + "\n\n")
	}

	for _, task := range m.tasks {
		if task.ID == TaskAuth {
			b.WriteString(m.authLine(task) + "\n")
			continue
		}
		b.WriteString(task.View(m.spinner.View(), m.progress) + "\n")
	}

	if m.rateLimited {
		if wait := time.Until(m.rateLimitReset).Round(time.Second); wait > 0 {
			b.WriteString(warnStyle.Render(fmt.Sprintf("\n  Rate limited - requests refused until reset (in %s)\n", wait)))
		}
	}

	// Only show cancel hint while running
	if !m.done {
		b.WriteString(footerStyle.Render("\n  Press Ctrl+C to cancel"))
	}
	b.WriteString("\n")

	return b.String()
}

// authLine shows the login once authentication succeeded.
func (m Model) authLine(task Task) string {
	switch task.Status {
	case StatusComplete:
		if m.username != "" {
			return fmt.Sprintf("  %s Authenticated as %s", iconComplete, userStyle.Render(m.username))
		}
		return task.View(m.spinner.View(), m.progress)
	case StatusRunning:
		return fmt.Sprintf("  %s Authenticating...", spinnerStyle.Render(m.spinner.View()))
	case StatusError:
		return fmt.Sprintf("  %s Authenticating %s", iconError, errorStyle.Render(task.Error.Error()))
	default:
		return task.View(m.spinner.View(), m.progress)
	}
}

// waitForEvent creates a command that waits for the next event.
func waitForEvent(events <-chan Event) tea.Cmd {
	return func() tea.Msg {
		event, ok := <-events
		if !ok {
			return doneMsg{}
		}
		return event
	}
}
