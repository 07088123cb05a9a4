package staleness

import "context"

// IssueSource lists the open issues of a repository.
type IssueSource interface {
	OpenIssues(ctx context.Context) ([]Issue, error)
}

// EventSource returns the most recent event of an issue.
// A nil Event with a nil error means the issue has no events.
type EventSource interface {
	LatestEvent(ctx context.Context, issueNumber int) (*Event, error)
}

// CardSource lists the non-archived cards of a board column.
type CardSource interface {
	ColumnCards(ctx context.Context, columnID int64) ([]Card, error)
}

// ExclusionProvider returns the issues that must not be evaluated.
type ExclusionProvider interface {
	Excluded(ctx context.Context, columnIDs []int64) (IssueSet, error)
}

// Notifier posts a comment on an issue.
type Notifier interface {
	CreateComment(ctx context.Context, issueNumber int, body string) error
}
