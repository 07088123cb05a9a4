// Package staleness decides which open issues have gone stale.
// It contains no GitHub-specific code: issues, events and cards arrive
// through the interfaces in interfaces.go.
package staleness

import (
	"fmt"
	"strconv"
	"time"
)

// StateOpen is the only issue state the engine evaluates.
const StateOpen = "open"

// Issue is an issue as seen by the engine.
type Issue struct {
	Number        int       `json:"number"`
	Title         string    `json:"title"`
	HTMLURL       string    `json:"htmlUrl"`
	State         string    `json:"state"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
	IsPullRequest bool      `json:"isPullRequest,omitempty"`
}

// Key returns the issue number in the string form used by IssueSet.
func (i Issue) Key() string {
	return strconv.Itoa(i.Number)
}

// IsOpen reports whether the issue is open.
func (i Issue) IsOpen() bool {
	return i.State == StateOpen
}

// Event is a single entry of an issue's activity timeline.
type Event struct {
	IssueNumber int       `json:"issueNumber"`
	Type        string    `json:"type"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Card is a project board card. ContentURL points at the issue it represents.
type Card struct {
	ID         int64  `json:"id"`
	ColumnID   int64  `json:"columnId"`
	ContentURL string `json:"contentUrl"`
}

// Config holds the staleness settings for one run.
// Build it with NewConfig; it is never modified afterwards.
type Config struct {
	ThresholdDays  int     `json:"thresholdDays"`
	WeekdaysOnly   bool    `json:"weekdaysOnly"`
	IgnoredColumns []int64 `json:"ignoredColumns,omitempty"`
}

// NewConfig validates the inputs and returns a Config.
// Duplicate column IDs are collapsed, keeping first-seen order.
func NewConfig(thresholdDays int, weekdaysOnly bool, ignoredColumns []int64) (Config, error) {
	if thresholdDays < 0 {
		return Config{}, &ConfigError{Field: "days-stale", Err: fmt.Errorf("must be >= 0, got %d", thresholdDays)}
	}

	seen := make(map[int64]bool, len(ignoredColumns))
	columns := make([]int64, 0, len(ignoredColumns))
	for _, id := range ignoredColumns {
		if seen[id] {
			continue
		}
		seen[id] = true
		columns = append(columns, id)
	}

	return Config{
		ThresholdDays:  thresholdDays,
		WeekdaysOnly:   weekdaysOnly,
		IgnoredColumns: columns,
	}, nil
}

// Decision is the outcome of evaluating one issue.
type Decision struct {
	IssueNumber  int       `json:"issueNumber"`
	Title        string    `json:"title,omitempty"`
	HTMLURL      string    `json:"htmlUrl,omitempty"`
	Stale        bool      `json:"stale"`
	AgeDays      int       `json:"ageDays"`
	EventAgeDays int       `json:"eventAgeDays,omitempty"`
	HasEvent     bool      `json:"hasEvent"`
	UpdatedAt    time.Time `json:"updatedAt"`
	LastEventAt  time.Time `json:"lastEventAt,omitzero"`
	Reason       Reason    `json:"reason"`
	Err          error     `json:"-"`
}

// Reason explains a Decision.
type Reason string

const (
	ReasonRecentlyUpdated Reason = "recently_updated"
	ReasonRecentEvent     Reason = "recent_event"
	ReasonStale           Reason = "stale"
	ReasonStaleNoEvents   Reason = "stale_no_events"
	ReasonEventLookup     Reason = "event_lookup_failed"
)

// Display returns a short human-readable form of the reason.
func (r Reason) Display() string {
	switch r {
	case ReasonRecentlyUpdated:
		return "updated recently"
	case ReasonRecentEvent:
		return "recent activity"
	case ReasonStale:
		return "stale"
	case ReasonStaleNoEvents:
		return "stale (no events)"
	case ReasonEventLookup:
		return "event lookup failed"
	default:
		return string(r)
	}
}
