// Package constants provides a centralized location for the tunables and
// magic numbers used throughout stale.
package constants

import "time"

// TUI update and display constants
const (
	// TUIUpdateInterval is the minimum time between TUI progress updates.
	TUIUpdateInterval = 50 * time.Millisecond

	// LogThrottlePercent is the interval (in percent) at which progress
	// logs are emitted when not using the TUI.
	LogThrottlePercent = 5

	// TruncationSuffixWidth is the width of the "..." suffix when truncating strings.
	TruncationSuffixWidth = 3
)

// GitHub API constants
const (
	// PerPage is the page size for every list call.
	PerPage = 100

	// MaxIssuePages bounds the open-issue listing.
	MaxIssuePages = 5

	// MaxCardPages bounds the card listing of a single column.
	MaxCardPages = 2

	// HTTPTimeout is the per-request timeout of the GitHub client.
	HTTPTimeout = 30 * time.Second

	// RateLimitLowWatermark is the threshold below which rate limit
	// warnings are logged.
	RateLimitLowWatermark = 100
)

// Run defaults
const (
	// DefaultWorkers bounds concurrent event lookups and comment posts.
	DefaultWorkers = 10

	// DefaultTimeout is the deadline of a whole run.
	DefaultTimeout = 10 * time.Minute
)
