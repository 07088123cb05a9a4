package ghclient

import (
	"context"
	"fmt"

	gh "github.com/google/go-github/v57/github"
	"golang.org/x/sync/errgroup"

	"github.com/spiffcs/stale/internal/constants"
	"github.com/spiffcs/stale/internal/log"
	"github.com/spiffcs/stale/internal/staleness"
)

// OpenIssues lists the open issues of the repository, at most
// MaxIssuePages pages of PerPage. The first page is fetched alone to learn
// the page count; the rest are fetched in parallel. Issues seen on more than
// one page are returned once.
func (c *Client) OpenIssues(ctx context.Context) ([]staleness.Issue, error) {
	first, resp, err := c.issuePage(ctx, 1)
	if err != nil {
		return nil, err
	}

	lastPage := min(resp.LastPage, constants.MaxIssuePages)
	if resp.LastPage > constants.MaxIssuePages {
		log.Warn("open issues exceed the listing bound; older pages are skipped",
			"pages", resp.LastPage, "fetched", constants.MaxIssuePages)
	}

	pages := make([][]*gh.Issue, max(lastPage, 1))
	pages[0] = first

	if lastPage > 1 {
		g, gctx := errgroup.WithContext(ctx)
		for page := 2; page <= lastPage; page++ {
			g.Go(func() error {
				issues, _, err := c.issuePage(gctx, page)
				if err != nil {
					return err
				}
				pages[page-1] = issues
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
	}

	seen := make(map[int]bool)
	var result []staleness.Issue
	for _, page := range pages {
		for _, issue := range page {
			if seen[issue.GetNumber()] {
				continue
			}
			seen[issue.GetNumber()] = true
			result = append(result, issueFromGitHub(issue))
		}
	}

	log.Debug("listed open issues", "count", len(result), "pages", len(pages))
	return result, nil
}

func (c *Client) issuePage(ctx context.Context, page int) ([]*gh.Issue, *gh.Response, error) {
	opts := &gh.IssueListByRepoOptions{
		State: staleness.StateOpen,
		ListOptions: gh.ListOptions{
			PerPage: constants.PerPage,
			Page:    page,
		},
	}

	issues, resp, err := c.client.Issues.ListByRepo(ctx, c.owner, c.repo, opts)
	if err != nil {
		return nil, nil, fmt.Errorf("listing issues of %s (page %d): %w", c.Repository(), page, classifyRateLimit(err))
	}
	logRateLimit(resp, "issues", page, len(issues))
	return issues, resp, nil
}

// issueFromGitHub converts a go-github issue. Pull requests are returned by
// the same endpoint and are kept, flagged with IsPullRequest.
func issueFromGitHub(issue *gh.Issue) staleness.Issue {
	return staleness.Issue{
		Number:        issue.GetNumber(),
		Title:         issue.GetTitle(),
		HTMLURL:       issue.GetHTMLURL(),
		State:         issue.GetState(),
		CreatedAt:     issue.GetCreatedAt().Time,
		UpdatedAt:     issue.GetUpdatedAt().Time,
		IsPullRequest: issue.IsPullRequest(),
	}
}
