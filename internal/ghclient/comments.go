package ghclient

import (
	"context"
	"fmt"

	gh "github.com/google/go-github/v57/github"

	"github.com/spiffcs/stale/internal/log"
)

// CreateComment posts body as a new comment on an issue.
func (c *Client) CreateComment(ctx context.Context, issueNumber int, body string) error {
	comment, _, err := c.client.Issues.CreateComment(ctx, c.owner, c.repo, issueNumber, &gh.IssueComment{
		Body: gh.String(body),
	})
	if err != nil {
		return fmt.Errorf("creating comment on %s#%d: %w", c.Repository(), issueNumber, classifyRateLimit(err))
	}
	log.Debug("comment created", "issue", issueNumber, "comment_id", comment.GetID())
	return nil
}
