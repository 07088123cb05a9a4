package ghclient

import "github.com/spiffcs/stale/internal/staleness"

// Ensure Client implements the staleness sources and notifier.
var (
	_ staleness.IssueSource = (*Client)(nil)
	_ staleness.EventSource = (*Client)(nil)
	_ staleness.CardSource  = (*Client)(nil)
	_ staleness.Notifier    = (*Client)(nil)
)
