package output

import (
	"encoding/json"
	"io"

	"github.com/spiffcs/stale/internal/service"
)

// JSONFormatter formats output as JSON
type JSONFormatter struct {
	Pretty bool
}

// JSONSummary holds the counts of a report.
type JSONSummary struct {
	Fetched        int `json:"fetched"`
	Excluded       int `json:"excluded"`
	Eligible       int `json:"eligible"`
	Stale          int `json:"stale"`
	Posted         int `json:"posted"`
	Failed         int `json:"failed"`
	LookupFailures int `json:"lookupFailures"`
}

// JSONOutput wraps the report with its summary for JSON output
type JSONOutput struct {
	*service.Report
	Summary JSONSummary `json:"summary"`
}

// Format outputs the report as JSON
func (f *JSONFormatter) Format(report *service.Report, w io.Writer) error {
	out := JSONOutput{
		Report: report,
		Summary: JSONSummary{
			Fetched:        report.Fetched,
			Excluded:       len(report.Excluded),
			Eligible:       report.Eligible,
			Stale:          len(report.Stale()),
			Posted:         report.Posted(),
			Failed:         len(report.Failed()),
			LookupFailures: report.LookupFailures(),
		},
	}

	encoder := json.NewEncoder(w)
	if f.Pretty {
		encoder.SetIndent("", "  ")
	}
	return encoder.Encode(out)
}
