// Package tui renders live progress of a run with Bubble Tea.
package tui

import (
	"io"
	"os"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"golang.org/x/term"
)

// ciEnvVars mark hosted runners whose logs cannot redraw a terminal.
var ciEnvVars = []string{
	"CI",
	"GITHUB_ACTIONS",
	"JENKINS_URL",
	"TRAVIS",
	"CIRCLECI",
	"GITLAB_CI",
	"BUILDKITE",
}

// Program is the progress view of one run.
type Program struct {
	p *tea.Program
}

// NewProgram creates a progress view drawn inline on out. The report is
// written to stdout after the view exits, so out is normally stderr.
func NewProgram(events <-chan Event, out io.Writer, opts ...ModelOption) *Program {
	return &Program{p: tea.NewProgram(NewModel(events, opts...), tea.WithOutput(out))}
}

// Run blocks until the events channel is closed or a DoneEvent arrives.
func (p *Program) Run() error {
	_, err := p.p.Run()
	return err
}

// Write prints a log record above the progress view. Once the view has
// exited the record is dropped, so callers switch writers after Run returns.
func (p *Program) Write(b []byte) (int, error) {
	p.p.Println(strings.TrimRight(string(b), "\n"))
	return len(b), nil
}

// Interactive reports whether a progress view can be drawn on f: it must be
// a terminal and none of the well-known CI variables may be set.
func Interactive(f *os.File, getenv func(string) string) bool {
	for _, v := range ciEnvVars {
		if getenv(v) != "" {
			return false
		}
	}
	return f != nil && term.IsTerminal(int(f.Fd()))
}

// SendEvent sends an event without blocking; a full channel drops it.
func SendEvent(ch chan<- Event, e Event) {
	if ch == nil {
		return
	}
	select {
	case ch <- e:
	default:
	}
}

// SendTaskEvent builds a TaskEvent from opts and sends it.
func SendTaskEvent(ch chan<- Event, task TaskID, status TaskStatus, opts ...TaskEventOption) {
	e := TaskEvent{Task: task, Status: status}
	for _, opt := range opts {
		opt(&e)
	}
	SendEvent(ch, e)
}

// TaskEventOption customizes a TaskEvent.
type TaskEventOption func(*TaskEvent)

// WithMessage sets the label shown next to the task.
func WithMessage(msg string) TaskEventOption {
	return func(e *TaskEvent) { e.Message = msg }
}

// WithCount sets the item count shown when there is no message.
func WithCount(count int) TaskEventOption {
	return func(e *TaskEvent) { e.Count = count }
}

// WithProgress sets the completed fraction, 0 to 1.
func WithProgress(progress float64) TaskEventOption {
	return func(e *TaskEvent) { e.Progress = progress }
}

// WithError attaches the failure that ended the task.
func WithError(err error) TaskEventOption {
	return func(e *TaskEvent) { e.Error = err }
}
