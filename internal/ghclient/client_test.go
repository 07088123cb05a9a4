package ghclient_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spiffcs/stale/internal/ghclient"
)

// newTestClient creates a Client for acme/widgets backed by the given handler.
func newTestClient(t *testing.T, handler http.Handler) *ghclient.Client {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := ghclient.NewClientWithHTTPClient(server.Client(), server.URL+"/", "acme/widgets")
	require.NoError(t, err)
	return client
}

type issueJSON struct {
	Number      int            `json:"number"`
	Title       string         `json:"title"`
	State       string         `json:"state"`
	HTMLURL     string         `json:"html_url"`
	Created     string         `json:"created_at"`
	Updated     string         `json:"updated_at"`
	PullRequest map[string]any `json:"pull_request,omitempty"`
}

func openIssue(n int) issueJSON {
	return issueJSON{
		Number:  n,
		Title:   fmt.Sprintf("Issue %d", n),
		State:   "open",
		HTMLURL: fmt.Sprintf("https://github.com/acme/widgets/issues/%d", n),
		Created: "2026-01-01T00:00:00Z",
		Updated: "2026-02-01T12:00:00Z",
	}
}

// pageLink returns a Link header value with next and last relations.
func pageLink(r *http.Request, page, last int) string {
	base := "http://" + r.Host + r.URL.Path
	link := fmt.Sprintf(`<%s?page=%d>; rel="last"`, base, last)
	if page < last {
		link = fmt.Sprintf(`<%s?page=%d>; rel="next", `, base, page+1) + link
	}
	return link
}

func requestedPage(r *http.Request) int {
	page, err := strconv.Atoi(r.URL.Query().Get("page"))
	if err != nil || page == 0 {
		return 1
	}
	return page
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func TestSplitRepository(t *testing.T) {
	tests := []struct {
		in        string
		wantOwner string
		wantRepo  string
		wantErr   bool
	}{
		{"acme/widgets", "acme", "widgets", false},
		{"acme", "", "", true},
		{"acme/", "", "", true},
		{"/widgets", "", "", true},
		{"acme/widgets/extra", "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			owner, repo, err := ghclient.SplitRepository(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantOwner, owner)
			assert.Equal(t, tt.wantRepo, repo)
		})
	}
}

func TestNewClientRequiresToken(t *testing.T) {
	_, err := ghclient.NewClient(context.Background(), "", "acme/widgets")
	assert.ErrorIs(t, err, ghclient.ErrMissingToken)
}

func TestOpenIssues_SinglePage(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /repos/acme/widgets/issues", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "open", r.URL.Query().Get("state"))
		assert.Equal(t, "100", r.URL.Query().Get("per_page"))

		pr := openIssue(3)
		pr.PullRequest = map[string]any{"url": "https://api.github.com/repos/acme/widgets/pulls/3"}
		writeJSON(w, []issueJSON{openIssue(1), openIssue(2), pr})
	})

	issues, err := newTestClient(t, mux).OpenIssues(context.Background())
	require.NoError(t, err)
	require.Len(t, issues, 3)

	assert.Equal(t, 1, issues[0].Number)
	assert.Equal(t, "Issue 1", issues[0].Title)
	assert.Equal(t, "open", issues[0].State)
	assert.Equal(t, "https://github.com/acme/widgets/issues/1", issues[0].HTMLURL)
	assert.Equal(t, time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC), issues[0].UpdatedAt.UTC())
	assert.False(t, issues[0].IsPullRequest)
	assert.True(t, issues[2].IsPullRequest)
}

func TestOpenIssues_PagesAreMergedAndDeduplicated(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /repos/acme/widgets/issues", func(w http.ResponseWriter, r *http.Request) {
		page := requestedPage(r)
		w.Header().Set("Link", pageLink(r, page, 3))
		switch page {
		case 1:
			writeJSON(w, []issueJSON{openIssue(10), openIssue(9)})
		case 2:
			// #9 shifted onto the next page between requests
			writeJSON(w, []issueJSON{openIssue(9), openIssue(8)})
		case 3:
			writeJSON(w, []issueJSON{openIssue(7)})
		}
	})

	issues, err := newTestClient(t, mux).OpenIssues(context.Background())
	require.NoError(t, err)

	var numbers []int
	for _, i := range issues {
		numbers = append(numbers, i.Number)
	}
	assert.Equal(t, []int{10, 9, 8, 7}, numbers)
}

func TestOpenIssues_PageBound(t *testing.T) {
	var mu sync.Mutex
	requested := map[int]int{}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /repos/acme/widgets/issues", func(w http.ResponseWriter, r *http.Request) {
		page := requestedPage(r)
		mu.Lock()
		requested[page]++
		mu.Unlock()

		w.Header().Set("Link", pageLink(r, page, 8))
		writeJSON(w, []issueJSON{openIssue(page)})
	})

	issues, err := newTestClient(t, mux).OpenIssues(context.Background())
	require.NoError(t, err)
	assert.Len(t, issues, 5)
	assert.Equal(t, map[int]int{1: 1, 2: 1, 3: 1, 4: 1, 5: 1}, requested)
}

func TestOpenIssues_Failure(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /repos/acme/widgets/issues", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"message":"boom"}`, http.StatusInternalServerError)
	})

	_, err := newTestClient(t, mux).OpenIssues(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "listing issues of acme/widgets")
}

func TestColumnCards(t *testing.T) {
	var mu sync.Mutex
	var pages []int

	mux := http.NewServeMux()
	mux.HandleFunc("GET /projects/columns/100/cards", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "not_archived", r.URL.Query().Get("archived_state"))
		page := requestedPage(r)
		mu.Lock()
		pages = append(pages, page)
		mu.Unlock()

		w.Header().Set("Link", pageLink(r, page, 3))
		writeJSON(w, []map[string]any{
			{"id": page*10 + 1, "content_url": fmt.Sprintf("https://api.github.com/repos/acme/widgets/issues/%d", page)},
			{"id": page*10 + 2, "note": "a note card"},
		})
	})

	cards, err := newTestClient(t, mux).ColumnCards(context.Background(), 100)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2}, pages, "at most two pages per column")
	require.Len(t, cards, 4)
	assert.Equal(t, int64(11), cards[0].ID)
	assert.Equal(t, int64(100), cards[0].ColumnID)
	assert.Equal(t, "https://api.github.com/repos/acme/widgets/issues/1", cards[0].ContentURL)
	assert.Empty(t, cards[1].ContentURL)
}

func TestLatestEvent(t *testing.T) {
	tests := []struct {
		name     string
		total    int
		wantNil  bool
		wantType string
		wantDate string
	}{
		{name: "no events", total: 0, wantNil: true},
		{name: "single event", total: 1, wantType: "event1", wantDate: "2026-01-01T00:00:00Z"},
		{name: "newest is on the last page", total: 4, wantType: "event4", wantDate: "2026-01-04T00:00:00Z"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var mu sync.Mutex
			var pages []int

			mux := http.NewServeMux()
			mux.HandleFunc("GET /repos/acme/widgets/issues/42/events", func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "1", r.URL.Query().Get("per_page"))
				page := requestedPage(r)
				mu.Lock()
				pages = append(pages, page)
				mu.Unlock()

				if tt.total == 0 {
					writeJSON(w, []any{})
					return
				}
				if tt.total > 1 {
					w.Header().Set("Link", pageLink(r, page, tt.total))
				}
				writeJSON(w, []map[string]any{{
					"id":         page,
					"event":      fmt.Sprintf("event%d", page),
					"created_at": fmt.Sprintf("2026-01-%02dT00:00:00Z", page),
				}})
			})

			event, err := newTestClient(t, mux).LatestEvent(context.Background(), 42)
			require.NoError(t, err)

			if tt.wantNil {
				assert.Nil(t, event)
				return
			}
			require.NotNil(t, event)
			assert.Equal(t, 42, event.IssueNumber)
			assert.Equal(t, tt.wantType, event.Type)
			want, _ := time.Parse(time.RFC3339, tt.wantDate)
			assert.True(t, want.Equal(event.CreatedAt), "created at %v", event.CreatedAt)

			if tt.total > 1 {
				assert.Equal(t, []int{1, tt.total}, pages)
			}
		})
	}
}

func TestCreateComment(t *testing.T) {
	var body string

	mux := http.NewServeMux()
	mux.HandleFunc("POST /repos/acme/widgets/issues/42/comments", func(w http.ResponseWriter, r *http.Request) {
		var payload struct {
			Body string `json:"body"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		body = payload.Body

		w.WriteHeader(http.StatusCreated)
		writeJSON(w, map[string]any{"id": 7, "body": payload.Body})
	})

	err := newTestClient(t, mux).CreateComment(context.Background(), 42, "hello")
	require.NoError(t, err)
	assert.Equal(t, "hello", body)
}

func TestCreateComment_Failure(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /repos/acme/widgets/issues/42/comments", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"message":"Resource not accessible by integration"}`, http.StatusForbidden)
	})

	err := newTestClient(t, mux).CreateComment(context.Background(), 42, "hello")
	require.Error(t, err)
	assert.False(t, errors.Is(err, ghclient.ErrRateLimited))
}

func TestRateLimitedResponse(t *testing.T) {
	var mu sync.Mutex
	hits := 0
	reset := time.Now().Add(time.Hour).Unix()

	mux := http.NewServeMux()
	mux.HandleFunc("GET /repos/acme/widgets/issues", func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		hits++
		mu.Unlock()

		w.Header().Set("X-RateLimit-Limit", "5000")
		w.Header().Set("X-RateLimit-Remaining", "0")
		w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(reset, 10))
		http.Error(w, `{"message":"API rate limit exceeded"}`, http.StatusForbidden)
	})

	client := newTestClient(t, mux)

	_, err := client.OpenIssues(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ghclient.ErrRateLimited)

	status, ok := client.RateLimit()
	require.True(t, ok)
	assert.True(t, status.Limited)
	assert.Equal(t, 0, status.Remaining)
	assert.Equal(t, 5000, status.Limit)

	// Requests are refused locally until the reset time.
	_, err = client.OpenIssues(context.Background())
	assert.ErrorIs(t, err, ghclient.ErrRateLimited)
	assert.Equal(t, 1, hits)
}

func TestRateLimitObserved(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /repos/acme/widgets/issues", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-RateLimit-Limit", "5000")
		w.Header().Set("X-RateLimit-Remaining", "4990")
		w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(time.Now().Add(time.Hour).Unix(), 10))
		writeJSON(w, []issueJSON{})
	})

	client := newTestClient(t, mux)
	_, ok := client.RateLimit()
	assert.False(t, ok)

	_, err := client.OpenIssues(context.Background())
	require.NoError(t, err)

	status, ok := client.RateLimit()
	require.True(t, ok)
	assert.False(t, status.Limited)
	assert.Equal(t, 4990, status.Remaining)
}

func TestAuthenticatedUser(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /user", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{"login": "octocat"})
	})

	login, err := newTestClient(t, mux).AuthenticatedUser(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "octocat", login)
}
