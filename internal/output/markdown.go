package output

import (
	"fmt"
	"io"
	"strings"

	"github.com/spiffcs/stale/internal/format"
	"github.com/spiffcs/stale/internal/service"
)

// MarkdownFormatter formats output as Markdown, suitable for a job summary.
type MarkdownFormatter struct{}

// Format outputs the report as Markdown
func (f *MarkdownFormatter) Format(report *service.Report, w io.Writer) error {
	var b strings.Builder

	fmt.Fprintf(&b, "## Stale issues in %s\n\n", report.Repository)
	fmt.Fprintf(&b, "*Run %s at %s, threshold %s*\n\n",
		report.RunID,
		report.Now.Format("2006-01-02 15:04 MST"),
		format.Days(report.Config.ThresholdDays, report.Config.WeekdaysOnly))

	stale := report.Stale()
	fmt.Fprintf(&b, "- **Open issues:** %d\n", report.Fetched)
	fmt.Fprintf(&b, "- **Excluded by column:** %d\n", len(report.Excluded))
	fmt.Fprintf(&b, "- **Evaluated:** %d\n", report.Eligible)
	fmt.Fprintf(&b, "- **Stale:** %d\n", len(stale))
	if report.DryRun {
		b.WriteString("- **Dry run:** no comments posted\n")
	} else {
		fmt.Fprintf(&b, "- **Commented:** %d\n", report.Posted())
	}
	if n := len(report.Failed()); n > 0 {
		fmt.Fprintf(&b, "- **Comment failures:** %d\n", n)
	}
	if n := report.LookupFailures(); n > 0 {
		fmt.Fprintf(&b, "- **Event lookup failures:** %d\n", n)
	}
	b.WriteString("\n")

	if len(stale) == 0 {
		b.WriteString("No stale issues found.\n")
		_, err := io.WriteString(w, b.String())
		return err
	}

	b.WriteString("| Issue | Title | Last updated | Last event | Status |\n")
	b.WriteString("|---|---|---|---|---|\n")
	notes := notesByIssue(report)
	for _, d := range stale {
		fmt.Fprintf(&b, "| [#%d](%s) | %s | %s | %s | %s |\n",
			d.IssueNumber,
			d.HTMLURL,
			escapeCell(d.Title),
			format.Date(d.UpdatedAt),
			format.Date(d.LastEventAt),
			status(d, notes))
	}

	for _, note := range report.Failed() {
		fmt.Fprintf(&b, "\n> Could not comment on #%d: %s\n", note.IssueNumber, escapeCell(note.Error))
	}

	_, err := io.WriteString(w, b.String())
	return err
}

// escapeCell keeps a value on one table row.
func escapeCell(s string) string {
	return strings.ReplaceAll(format.SingleLine(s), "|", `\|`)
}
