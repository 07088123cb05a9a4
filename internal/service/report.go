package service

import (
	"errors"
	"time"

	"github.com/spiffcs/stale/internal/staleness"
)

// Notification is the outcome of commenting on one stale issue.
type Notification struct {
	IssueNumber int    `json:"issueNumber"`
	Body        string `json:"body"`
	Posted      bool   `json:"posted"`
	DryRun      bool   `json:"dryRun,omitempty"`
	Error       string `json:"error,omitempty"`
	Err         error  `json:"-"`
}

// Report summarizes one run.
type Report struct {
	RunID         string               `json:"runId"`
	Repository    string               `json:"repository"`
	Now           time.Time            `json:"now"`
	Config        staleness.Config     `json:"config"`
	Fetched       int                  `json:"fetched"`
	Excluded      []string             `json:"excluded"`
	Eligible      int                  `json:"eligible"`
	Decisions     []staleness.Decision `json:"decisions"`
	Notifications []Notification       `json:"notifications"`
	DryRun        bool                 `json:"dryRun"`
	RateLimited   bool                 `json:"rateLimited,omitempty"`
	Duration      time.Duration        `json:"duration"`
}

// Stale returns the decisions that flagged their issue.
func (r *Report) Stale() []staleness.Decision {
	var stale []staleness.Decision
	for _, d := range r.Decisions {
		if d.Stale {
			stale = append(stale, d)
		}
	}
	return stale
}

// LookupFailures returns the number of issues whose events could not be read.
func (r *Report) LookupFailures() int {
	n := 0
	for _, d := range r.Decisions {
		if d.Err != nil {
			n++
		}
	}
	return n
}

// Posted returns the number of comments actually created.
func (r *Report) Posted() int {
	n := 0
	for _, note := range r.Notifications {
		if note.Posted {
			n++
		}
	}
	return n
}

// Failed returns the notifications that could not be posted.
func (r *Report) Failed() []Notification {
	var failed []Notification
	for _, note := range r.Notifications {
		if note.Err != nil {
			failed = append(failed, note)
		}
	}
	return failed
}

// NotifyErr joins every notification failure, or returns nil.
func (r *Report) NotifyErr() error {
	var errs []error
	for _, note := range r.Notifications {
		if note.Err != nil {
			errs = append(errs, note.Err)
		}
	}
	return errors.Join(errs...)
}
