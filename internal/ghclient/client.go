// Package ghclient reads issues, project cards and issue events from the
// GitHub REST API and posts issue comments.
package ghclient

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	gh "github.com/google/go-github/v57/github"
	"golang.org/x/oauth2"

	"github.com/spiffcs/stale/internal/constants"
	"github.com/spiffcs/stale/internal/log"
)

// ErrMissingToken is returned when no credential is configured.
var ErrMissingToken = errors.New("GitHub token not provided")

// Client wraps the GitHub API client for a single repository.
type Client struct {
	client *gh.Client
	owner  string
	repo   string
	rate   *RateLimitState
}

// NewClient creates a client for repository ("owner/name") authenticated
// with a personal access token or Actions token. repository may be empty
// when only account-level calls are made.
func NewClient(ctx context.Context, token, repository string) (*Client, error) {
	if token == "" {
		return nil, ErrMissingToken
	}

	ts := oauth2.StaticTokenSource(
		&oauth2.Token{AccessToken: token},
	)
	tc := oauth2.NewClient(ctx, ts)
	tc.Timeout = constants.HTTPTimeout

	log.Debug("creating GitHub client", "repository", repository, "token", log.SanitizeToken(token))

	return newClient(tc, nil, repository)
}

// NewClientWithHTTPClient creates a Client with a custom http.Client and base URL.
// Tests use it to point the client at an httptest server.
func NewClientWithHTTPClient(httpClient *http.Client, baseURL, repository string) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing base URL: %w", err)
	}
	if !strings.HasSuffix(u.Path, "/") {
		u.Path += "/"
	}
	return newClient(httpClient, u, repository)
}

func newClient(httpClient *http.Client, baseURL *url.URL, repository string) (*Client, error) {
	// an empty repository is allowed for account-level calls such as rate limits
	var owner, repo string
	if repository != "" {
		var err error
		if owner, repo, err = SplitRepository(repository); err != nil {
			return nil, err
		}
	}

	base := httpClient.Transport
	if base == nil {
		base = http.DefaultTransport
	}
	state := &RateLimitState{}
	hc := *httpClient
	hc.Transport = &rateLimitTransport{base: base, state: state}

	client := gh.NewClient(&hc)
	if baseURL != nil {
		client.BaseURL = baseURL
	}

	return &Client{
		client: client,
		owner:  owner,
		repo:   repo,
		rate:   state,
	}, nil
}

// SplitRepository splits "owner/name" into its parts.
func SplitRepository(fullName string) (owner, repo string, err error) {
	parts := strings.Split(fullName, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("invalid repository %q: expected owner/name", fullName)
	}
	return parts[0], parts[1], nil
}

// Repository returns "owner/name".
func (c *Client) Repository() string {
	return c.owner + "/" + c.repo
}

// RateLimit returns the last rate limit observed by this client.
func (c *Client) RateLimit() (RateLimitStatus, bool) {
	return c.rate.Status()
}

// AuthenticatedUser returns the authenticated user's login.
// Installation tokens cannot read /user; callers treat that as non-fatal.
func (c *Client) AuthenticatedUser(ctx context.Context) (string, error) {
	user, _, err := c.client.Users.Get(ctx, "")
	if err != nil {
		return "", fmt.Errorf("failed to get authenticated user: %w", err)
	}
	return user.GetLogin(), nil
}

// RateLimits fetches the current GitHub API rate limit status.
func (c *Client) RateLimits(ctx context.Context) (*gh.RateLimits, error) {
	limits, _, err := c.client.RateLimit.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get rate limits: %w", err)
	}
	return limits, nil
}

// logRateLimit records the quota reported by a list call.
func logRateLimit(resp *gh.Response, what string, page, count int) {
	if resp == nil {
		return
	}
	log.Debug("fetched page",
		"what", what,
		"page", page,
		"count", count,
		"rate_remaining", resp.Rate.Remaining,
		"rate_limit", resp.Rate.Limit)
}
