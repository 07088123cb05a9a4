package output

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
	"golang.org/x/term"

	"github.com/spiffcs/stale/internal/format"
	"github.com/spiffcs/stale/internal/service"
	"github.com/spiffcs/stale/internal/staleness"
)

// Column widths
const (
	colIssue  = 7
	colTitle  = 44
	colDate   = 10
	colAge    = 12
	colStatus = 15
)

// TableFormatter formats output as a terminal table
type TableFormatter struct{}

// hyperlink creates a clickable terminal hyperlink using OSC 8
// Format: \033]8;;URL\033\\TEXT\033]8;;\033\\
func hyperlink(text, url string, w io.Writer) string {
	f, ok := w.(*os.File)
	if !ok || url == "" || !term.IsTerminal(int(f.Fd())) {
		return text
	}
	return fmt.Sprintf("\033]8;;%s\033\\%s\033]8;;\033\\", url, text)
}

// Format outputs the report as a table, stale issues first.
func (f *TableFormatter) Format(report *service.Report, w io.Writer) error {
	if len(report.Decisions) == 0 {
		fmt.Fprintf(w, "No open issues to evaluate in %s.\n", report.Repository)
		printFooter(report, w)
		return nil
	}

	fmt.Fprintf(w, "%s  %s  %s  %s  %s  %s\n",
		format.Pad("Issue", colIssue),
		format.Pad("Title", colTitle),
		format.Pad("Updated", colDate),
		format.Pad("Age", colAge),
		format.Pad("Last event", colDate),
		"Status")
	fmt.Fprintln(w, strings.Repeat("-", colIssue+colTitle+2*colDate+colAge+colStatus+10))

	notes := notesByIssue(report)
	for _, d := range ordered(report.Decisions) {
		issue := format.Pad(fmt.Sprintf("#%d", d.IssueNumber), colIssue)

		// Pad on the plain title; OSC 8 sequences are not colour codes.
		plain := format.Truncate(format.SingleLine(d.Title), colTitle)
		title := hyperlink(plain, d.HTMLURL, w) + strings.Repeat(" ", max(colTitle-format.DisplayWidth(plain), 0))

		st := status(d, notes)

		fmt.Fprintf(w, "%s  %s  %s  %s  %s  %s\n",
			issue,
			title,
			format.Pad(format.Date(d.UpdatedAt), colDate),
			format.Pad(format.Days(d.AgeDays, report.Config.WeekdaysOnly), colAge),
			format.Pad(format.Date(d.LastEventAt), colDate),
			colorStatus(d, st))
	}

	printFooter(report, w)
	return nil
}

// ordered returns stale decisions first, then failures, then active ones,
// each group keeping report order.
func ordered(decisions []staleness.Decision) []staleness.Decision {
	out := make([]staleness.Decision, 0, len(decisions))
	for _, pass := range []func(staleness.Decision) bool{
		func(d staleness.Decision) bool { return d.Stale },
		func(d staleness.Decision) bool { return !d.Stale && d.Err != nil },
		func(d staleness.Decision) bool { return !d.Stale && d.Err == nil },
	} {
		for _, d := range decisions {
			if pass(d) {
				out = append(out, d)
			}
		}
	}
	return out
}

func colorStatus(d staleness.Decision, s string) string {
	switch {
	case d.Err != nil || s == statusCommentFailed:
		return color.YellowString(s)
	case d.Stale:
		return color.RedString(s)
	default:
		return color.GreenString(s)
	}
}

// printFooter prints the run summary line
func printFooter(report *service.Report, w io.Writer) {
	fmt.Fprintln(w)

	parts := []string{
		fmt.Sprintf("%d open", report.Fetched),
		fmt.Sprintf("%d excluded", len(report.Excluded)),
		fmt.Sprintf("%d evaluated", report.Eligible),
		color.New(color.Bold).Sprintf("%d stale", len(report.Stale())),
	}
	if report.DryRun {
		parts = append(parts, "dry run")
	} else {
		parts = append(parts, fmt.Sprintf("%d commented", report.Posted()))
	}
	if n := len(report.Failed()); n > 0 {
		parts = append(parts, color.YellowString("%d comment failures", n))
	}
	if n := report.LookupFailures(); n > 0 {
		parts = append(parts, color.YellowString("%d lookup failures", n))
	}
	if report.RateLimited {
		parts = append(parts, color.YellowString("rate limited"))
	}

	fmt.Fprintf(w, "%s: %s (%s)\n", report.Repository, strings.Join(parts, ", "), format.Duration(report.Duration))
}
