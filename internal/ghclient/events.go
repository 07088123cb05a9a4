package ghclient

import (
	"context"
	"fmt"

	gh "github.com/google/go-github/v57/github"

	"github.com/spiffcs/stale/internal/staleness"
)

// LatestEvent returns the most recent event of an issue, or nil when the
// issue has none.
//
// The endpoint lists events oldest first and takes no sort parameter, so
// item 0 of page 1 is the oldest event, not the newest. With one event per
// page the Link header's last page holds the newest one, which costs a
// second request whenever an issue has more than one event. Reading page 1
// only would date every issue by its first event and flag issues with
// recent activity.
func (c *Client) LatestEvent(ctx context.Context, issueNumber int) (*staleness.Event, error) {
	events, resp, err := c.eventPage(ctx, issueNumber, 1)
	if err != nil {
		return nil, err
	}

	if resp.LastPage > 1 {
		events, _, err = c.eventPage(ctx, issueNumber, resp.LastPage)
		if err != nil {
			return nil, err
		}
	}

	if len(events) == 0 {
		return nil, nil
	}

	e := events[len(events)-1]
	return &staleness.Event{
		IssueNumber: issueNumber,
		Type:        e.GetEvent(),
		CreatedAt:   e.GetCreatedAt().Time,
	}, nil
}

func (c *Client) eventPage(ctx context.Context, issueNumber, page int) ([]*gh.IssueEvent, *gh.Response, error) {
	opts := &gh.ListOptions{PerPage: 1, Page: page}
	events, resp, err := c.client.Issues.ListIssueEvents(ctx, c.owner, c.repo, issueNumber, opts)
	if err != nil {
		return nil, nil, fmt.Errorf("listing events of %s#%d (page %d): %w", c.Repository(), issueNumber, page, classifyRateLimit(err))
	}
	logRateLimit(resp, "events", page, len(events))
	return events, resp, nil
}
