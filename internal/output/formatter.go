// Package output renders a run report as a terminal table, JSON or Markdown.
package output

import (
	"fmt"
	"io"
	"strings"

	"github.com/spiffcs/stale/internal/service"
	"github.com/spiffcs/stale/internal/staleness"
)

// Format represents the output format
type Format string

const (
	FormatTable    Format = "table"
	FormatJSON     Format = "json"
	FormatMarkdown Format = "markdown"
)

// ParseFormat validates an --output value. Empty selects the table.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(s)); f {
	case "":
		return FormatTable, nil
	case FormatTable, FormatJSON, FormatMarkdown:
		return f, nil
	default:
		return "", fmt.Errorf("invalid output format %q: must be table, json or markdown", s)
	}
}

// Formatter defines the interface for output formatters
type Formatter interface {
	Format(report *service.Report, w io.Writer) error
}

// NewFormatter creates a formatter for the specified format
func NewFormatter(format Format) Formatter {
	switch format {
	case FormatJSON:
		return &JSONFormatter{Pretty: true}
	case FormatMarkdown:
		return &MarkdownFormatter{}
	default:
		return &TableFormatter{}
	}
}

// Labels for stale issues that reached the notifier.
const (
	statusCommented     = "commented"
	statusCommentFailed = "comment failed"
	statusDryRun        = "stale (dry run)"
)

// notesByIssue indexes the notifications of report by issue number.
func notesByIssue(report *service.Report) map[int]service.Notification {
	notes := make(map[int]service.Notification, len(report.Notifications))
	for _, note := range report.Notifications {
		notes[note.IssueNumber] = note
	}
	return notes
}

// status is the outcome of d shown in every format. Issues that never
// reached the notifier show why they were or were not flagged.
func status(d staleness.Decision, notes map[int]service.Notification) string {
	if note, ok := notes[d.IssueNumber]; ok && d.Stale {
		switch {
		case note.Err != nil:
			return statusCommentFailed
		case note.DryRun:
			return statusDryRun
		case note.Posted:
			return statusCommented
		}
	}
	return d.Reason.Display()
}
