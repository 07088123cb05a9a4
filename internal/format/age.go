package format

import (
	"fmt"
	"time"
)

// DateLayout is the date format used in reports.
const DateLayout = "2006-01-02"

// Days renders an age in days: "today", "1 day", "12 weekdays".
func Days(n int, weekdaysOnly bool) string {
	unit := "day"
	if weekdaysOnly {
		unit = "weekday"
	}
	switch {
	case n <= 0:
		return "today"
	case n == 1:
		return "1 " + unit
	default:
		return fmt.Sprintf("%d %ss", n, unit)
	}
}

// Date renders t as a calendar date, or "-" for the zero time.
func Date(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Format(DateLayout)
}

// Duration renders a run duration compactly: "850ms", "4.2s", "1m30s".
func Duration(d time.Duration) string {
	switch {
	case d < time.Second:
		return fmt.Sprintf("%dms", d.Milliseconds())
	case d < time.Minute:
		return fmt.Sprintf("%.1fs", d.Seconds())
	default:
		return d.Round(time.Second).String()
	}
}
