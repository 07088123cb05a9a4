package staleness

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"
)

// trailingNumber matches the issue number at the end of a card content URL,
// e.g. https://api.github.com/repos/owner/repo/issues/42.
var trailingNumber = regexp.MustCompile(`\d+$`)

// IssueSet is a set of issue numbers in decimal string form.
type IssueSet map[string]struct{}

// NewIssueSet returns a set holding the given keys.
func NewIssueSet(keys ...string) IssueSet {
	s := make(IssueSet, len(keys))
	for _, k := range keys {
		s.Add(k)
	}
	return s
}

// Add inserts key into the set.
func (s IssueSet) Add(key string) {
	s[key] = struct{}{}
}

// Has reports whether key is in the set.
func (s IssueSet) Has(key string) bool {
	_, ok := s[key]
	return ok
}

// Sorted returns the keys in numeric order.
func (s IssueSet) Sorted() []string {
	keys := make([]string, 0, len(s))
	for k := range s {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if len(keys[i]) != len(keys[j]) {
			return len(keys[i]) < len(keys[j])
		}
		return keys[i] < keys[j]
	})
	return keys
}

// IssueNumberFromURL extracts the trailing digits of a card content URL.
// Cards without content (notes) or without a trailing number return false.
func IssueNumberFromURL(contentURL string) (string, bool) {
	m := trailingNumber.FindString(contentURL)
	if m == "" {
		return "", false
	}
	return m, true
}

// ParseColumnIDs parses a comma separated list of column IDs.
// Empty and blank entries are skipped.
func ParseColumnIDs(raw string) ([]int64, error) {
	var ids []int64
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			return nil, &ConfigError{Field: "ignore-columns", Err: fmt.Errorf("column id %q is not an integer", part)}
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// ColumnExclusions builds the exclusion set from the cards of board columns.
type ColumnExclusions struct {
	Cards CardSource
}

// NewColumnExclusions returns an ExclusionProvider backed by cards.
func NewColumnExclusions(cards CardSource) *ColumnExclusions {
	return &ColumnExclusions{Cards: cards}
}

// Excluded fetches every column concurrently and collects the issue numbers
// its cards point at. A failure on any column fails the whole call.
func (c *ColumnExclusions) Excluded(ctx context.Context, columnIDs []int64) (IssueSet, error) {
	excluded := NewIssueSet()
	if len(columnIDs) == 0 {
		return excluded, nil
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)

	for _, columnID := range columnIDs {
		g.Go(func() error {
			cards, err := c.Cards.ColumnCards(gctx, columnID)
			if err != nil {
				return &FetchError{Source: fmt.Sprintf("cards of column %d", columnID), Err: err}
			}

			mu.Lock()
			defer mu.Unlock()
			for _, card := range cards {
				if n, ok := IssueNumberFromURL(card.ContentURL); ok {
					excluded.Add(n)
				}
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return excluded, nil
}

// FilterEligible returns the open issues whose number is not excluded.
// Input order is preserved.
func FilterEligible(issues []Issue, excluded IssueSet) []Issue {
	eligible := make([]Issue, 0, len(issues))
	for _, issue := range issues {
		if !issue.IsOpen() || excluded.Has(issue.Key()) {
			continue
		}
		eligible = append(eligible, issue)
	}
	return eligible
}
