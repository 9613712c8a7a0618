// Package github implements a stateless client for the GitHub REST API
// endpoints the notifier polls: issue events, issue comments, issues,
// repositories, and search.
package github

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/time/rate"
)

// Typed failures for the credential and upstream error taxonomy.
var (
	// ErrNotConfigured is returned when the access token or root URL is unset.
	ErrNotConfigured = errors.New("github: token and root URL must be configured")
	// ErrUnauthorized wraps 401/403 responses (bad token, rate limit exhausted).
	ErrUnauthorized = errors.New("github: unauthorized")
)

// StatusError is returned for non-2xx responses other than 401/403.
type StatusError struct {
	StatusCode int
	URL        string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("github: unexpected status %d for %s", e.StatusCode, e.URL)
}

// HTTPClient is the interface for performing HTTP requests.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client performs authenticated requests against a GitHub (or GitHub
// Enterprise) REST API. It is stateless apart from a shared rate limiter
// sized for the upstream per-hour budget.
type Client struct {
	httpClient HTTPClient
	apiURL     string
	origin     string
	token      string
	limiter    *rate.Limiter
	timeout    time.Duration
}

// NewClient creates a Client for the given root URL (the web origin, e.g.
// https://github.com) and access token. It fails with ErrNotConfigured if
// either is empty.
func NewClient(rootURL, token string, httpClient HTTPClient) (*Client, error) {
	if rootURL == "" || token == "" {
		return nil, ErrNotConfigured
	}
	apiURL, origin, err := deriveURLs(rootURL)
	if err != nil {
		return nil, fmt.Errorf("parse root URL: %w", err)
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		httpClient: httpClient,
		apiURL:     apiURL,
		origin:     origin,
		token:      token,
		// GitHub allows 5000 requests/hour for public, 15000 for
		// Enterprise. ~1 req/sec stays far inside both.
		limiter: rate.NewLimiter(rate.Limit(1), 5),
		timeout: 30 * time.Second,
	}, nil
}

// Origin returns the web origin used to compose deep links, which differs
// from the API base URL.
func (c *Client) Origin() string {
	return c.origin
}

// deriveURLs maps a web origin to its REST API base URL. github.com (and
// its API host) map to api.github.com; any other host is assumed to be a
// GitHub Enterprise instance serving the API under /api/v3.
func deriveURLs(rootURL string) (apiURL, origin string, err error) {
	u, err := url.Parse(rootURL)
	if err != nil {
		return "", "", err
	}
	if u.Scheme == "" || u.Host == "" {
		return "", "", fmt.Errorf("root URL %q has no scheme or host", rootURL)
	}
	origin = u.Scheme + "://" + u.Host
	if origin == "https://github.com" || origin == "https://api.github.com" {
		return "https://api.github.com", "https://github.com", nil
	}
	return origin + "/api/v3", origin, nil
}

// User is the author or actor attached to an API object.
type User struct {
	Login string `json:"login"`
}

// Label is a label attached to an issue event.
type Label struct {
	Name string `json:"name"`
}

// IssueSummary is the issue embedded in an issue event.
type IssueSummary struct {
	Number int    `json:"number"`
	Title  string `json:"title"`
}

// IssueEvent is one entry from the repository issue events endpoint.
type IssueEvent struct {
	ID        int64        `json:"id"`
	Event     string       `json:"event"`
	Actor     User         `json:"actor"`
	Label     Label        `json:"label"`
	Issue     IssueSummary `json:"issue"`
	CreatedAt time.Time    `json:"created_at"`
}

// IssueComment is one entry from the repository issue comments endpoint.
type IssueComment struct {
	ID        int64     `json:"id"`
	Body      string    `json:"body"`
	HTMLURL   string    `json:"html_url"`
	User      User      `json:"user"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Issue is one entry from the repository issues endpoint.
type Issue struct {
	ID        int64     `json:"id"`
	Number    int       `json:"number"`
	Title     string    `json:"title"`
	Body      string    `json:"body"`
	HTMLURL   string    `json:"html_url"`
	User      User      `json:"user"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Repo is the response of the single-repository endpoint.
type Repo struct {
	ID          int64  `json:"id"`
	FullName    string `json:"full_name"`
	Description string `json:"description"`
	HTMLURL     string `json:"html_url"`
	Private     bool   `json:"private"`
}

// RepoSearchResult is the response of the repository search endpoint.
type RepoSearchResult struct {
	TotalCount int    `json:"total_count"`
	Items      []Repo `json:"items"`
}

// UserSearchResult is the response of the user search endpoint.
type UserSearchResult struct {
	TotalCount int    `json:"total_count"`
	Items      []User `json:"items"`
}

// ListIssueEvents returns the most recent issue-level events for a
// repository. The endpoint has no `since` parameter; callers must
// deduplicate against previously seen event ids.
func (c *Client) ListIssueEvents(ctx context.Context, owner, repo string, perPage int) ([]IssueEvent, error) {
	q := url.Values{}
	q.Set("per_page", strconv.Itoa(perPage))
	var events []IssueEvent
	if err := c.get(ctx, fmt.Sprintf("/repos/%s/%s/issues/events", owner, repo), q, &events); err != nil {
		return nil, err
	}
	return events, nil
}

// ListIssueComments returns repository issue comments sorted by update
// time, newest first. A zero since means no lower bound.
func (c *Client) ListIssueComments(ctx context.Context, owner, repo string, since time.Time, perPage int) ([]IssueComment, error) {
	q := url.Values{}
	q.Set("sort", "updated")
	q.Set("direction", "desc")
	q.Set("per_page", strconv.Itoa(perPage))
	if !since.IsZero() {
		q.Set("since", since.UTC().Format(time.RFC3339))
	}
	var comments []IssueComment
	if err := c.get(ctx, fmt.Sprintf("/repos/%s/%s/issues/comments", owner, repo), q, &comments); err != nil {
		return nil, err
	}
	return comments, nil
}

// ListIssues returns open issues sorted by update time. A zero since means
// no lower bound.
func (c *Client) ListIssues(ctx context.Context, owner, repo string, since time.Time, perPage int) ([]Issue, error) {
	q := url.Values{}
	q.Set("state", "open")
	q.Set("sort", "updated")
	q.Set("page", "1")
	q.Set("per_page", strconv.Itoa(perPage))
	if !since.IsZero() {
		q.Set("since", since.UTC().Format(time.RFC3339))
	}
	var issues []Issue
	if err := c.get(ctx, fmt.Sprintf("/repos/%s/%s/issues", owner, repo), q, &issues); err != nil {
		return nil, err
	}
	return issues, nil
}

// GetRepo fetches a single repository, used to verify a repository exists
// before watching it.
func (c *Client) GetRepo(ctx context.Context, owner, repo string) (*Repo, error) {
	var r Repo
	if err := c.get(ctx, fmt.Sprintf("/repos/%s/%s", owner, repo), nil, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

// SearchRepos searches repositories by free text.
func (c *Client) SearchRepos(ctx context.Context, query string, perPage int) (*RepoSearchResult, error) {
	q := url.Values{}
	q.Set("q", query)
	q.Set("per_page", strconv.Itoa(perPage))
	var res RepoSearchResult
	if err := c.get(ctx, "/search/repositories", q, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// SearchUsers searches users by free text.
func (c *Client) SearchUsers(ctx context.Context, query string, perPage int) (*UserSearchResult, error) {
	q := url.Values{}
	q.Set("q", query)
	q.Set("per_page", strconv.Itoa(perPage))
	var res UserSearchResult
	if err := c.get(ctx, "/search/users", q, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func (c *Client) get(ctx context.Context, path string, query url.Values, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	u := c.apiURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("X-GitHub-Api-Version", "2022-11-28")
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("http get: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return fmt.Errorf("%w (status %d)", ErrUnauthorized, resp.StatusCode)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return &StatusError{StatusCode: resp.StatusCode, URL: u}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 10*1024*1024))
	if err != nil {
		return fmt.Errorf("read body: %w", err)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
