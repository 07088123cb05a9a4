package ghclient

import (
	"context"
	"fmt"

	gh "github.com/google/go-github/v57/github"

	"github.com/spiffcs/stale/internal/constants"
	"github.com/spiffcs/stale/internal/staleness"
)

// ColumnCards lists the non-archived cards of a classic project column,
// at most MaxCardPages pages of PerPage.
func (c *Client) ColumnCards(ctx context.Context, columnID int64) ([]staleness.Card, error) {
	opts := &gh.ProjectCardListOptions{
		ArchivedState: gh.String("not_archived"),
		ListOptions: gh.ListOptions{
			PerPage: constants.PerPage,
			Page:    1,
		},
	}

	var cards []staleness.Card
	for opts.Page <= constants.MaxCardPages {
		page, resp, err := c.client.Projects.ListProjectCards(ctx, columnID, opts)
		if err != nil {
			return nil, fmt.Errorf("listing cards of column %d (page %d): %w", columnID, opts.Page, classifyRateLimit(err))
		}
		logRateLimit(resp, "cards", opts.Page, len(page))

		for _, card := range page {
			cards = append(cards, staleness.Card{
				ID:         card.GetID(),
				ColumnID:   columnID,
				ContentURL: card.GetContentURL(),
			})
		}

		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}

	return cards, nil
}
