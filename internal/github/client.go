// Package github is a minimal REST client for the pieces of the GitHub API
// the release pipeline consumes: release lookups, commit comparisons, pull
// requests, webhook registration, and repository listing. Every call is keyed
// by an opaque bearer credential supplied per request.
package github

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/shiplog/shiplog/internal/errors"
)

const defaultBaseURL = "https://api.github.com"

// Client talks to the GitHub REST API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL overrides the API base URL. Used for GHES and tests.
func WithBaseURL(base string) Option {
	return func(c *Client) {
		c.baseURL = base
	}
}

// WithTimeout sets the per-call HTTP timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.httpClient.Timeout = d
	}
}

// NewClient creates a GitHub API client.
func NewClient(opts ...Option) *Client {
	c := &Client{
		baseURL: defaultBaseURL,
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Release is a published release as returned by the releases API.
type Release struct {
	ID          int64     `json:"id"`
	TagName     string    `json:"tag_name"`
	Name        string    `json:"name"`
	Body        string    `json:"body"`
	HTMLURL     string    `json:"html_url"`
	Draft       bool      `json:"draft"`
	Prerelease  bool      `json:"prerelease"`
	PublishedAt time.Time `json:"published_at"`
}

// Commit is one entry of a commit comparison range.
type Commit struct {
	SHA    string `json:"sha"`
	Commit struct {
		Message string `json:"message"`
		Author  struct {
			Name string `json:"name"`
		} `json:"author"`
	} `json:"commit"`
	Author *struct {
		Login string `json:"login"`
	} `json:"author"`
}

// Comparison is the result of comparing two refs.
type Comparison struct {
	TotalCommits int      `json:"total_commits"`
	Commits      []Commit `json:"commits"`
}

// PullRequest is a single pull request.
type PullRequest struct {
	Number int    `json:"number"`
	Title  string `json:"title"`
	Body   string `json:"body"`
	User   *struct {
		Login string `json:"login"`
	} `json:"user"`
	Labels []struct {
		Name string `json:"name"`
	} `json:"labels"`
}

// Repo is a repository visible to the authenticated user.
type Repo struct {
	ID       int64  `json:"id"`
	FullName string `json:"full_name"`
	Private  bool   `json:"private"`
	HTMLURL  string `json:"html_url"`
}

// Webhook is a repository webhook registration.
type Webhook struct {
	ID     int64    `json:"id"`
	Active bool     `json:"active"`
	Events []string `json:"events"`
}

// GetReleaseByTag fetches the release published under tag, or ErrTagNotFound
// if the tag has no release.
func (c *Client) GetReleaseByTag(ctx context.Context, token, owner, repo, tag string) (*Release, error) {
	path := fmt.Sprintf("/repos/%s/%s/releases/tags/%s", owner, repo, url.PathEscape(tag))

	var release Release
	if err := c.get(ctx, token, path, &release); err != nil {
		if errors.Is(err, errNotFound) {
			return nil, errors.NewUpstreamError("release lookup failed", errors.ErrTagNotFound).
				WithRepo(owner + "/" + repo).WithTag(tag).WithStatusCode(http.StatusNotFound)
		}
		return nil, err
	}
	return &release, nil
}

// ListReleases fetches the most recent perPage releases, newest first.
func (c *Client) ListReleases(ctx context.Context, token, owner, repo string, perPage int) ([]Release, error) {
	path := fmt.Sprintf("/repos/%s/%s/releases?per_page=%d", owner, repo, perPage)

	var releases []Release
	if err := c.get(ctx, token, path, &releases); err != nil {
		return nil, err
	}
	return releases, nil
}

// CompareCommits fetches the commit range between base and head.
// Commits are returned oldest to newest.
func (c *Client) CompareCommits(ctx context.Context, token, owner, repo, base, head string) (*Comparison, error) {
	path := fmt.Sprintf("/repos/%s/%s/compare/%s...%s",
		owner, repo, url.PathEscape(base), url.PathEscape(head))

	var cmp Comparison
	if err := c.get(ctx, token, path, &cmp); err != nil {
		return nil, err
	}
	return &cmp, nil
}

// GetPullRequest fetches a single pull request by number.
func (c *Client) GetPullRequest(ctx context.Context, token, owner, repo string, number int) (*PullRequest, error) {
	path := fmt.Sprintf("/repos/%s/%s/pulls/%d", owner, repo, number)

	var pr PullRequest
	if err := c.get(ctx, token, path, &pr); err != nil {
		return nil, err
	}
	return &pr, nil
}

// ListUserRepos fetches repositories the credential can administer,
// most recently pushed first.
func (c *Client) ListUserRepos(ctx context.Context, token string, perPage int) ([]Repo, error) {
	path := fmt.Sprintf("/user/repos?sort=pushed&per_page=%d", perPage)

	var repos []Repo
	if err := c.get(ctx, token, path, &repos); err != nil {
		return nil, err
	}
	return repos, nil
}

// CreateWebhook registers a release webhook on the repository, pointing at
// callbackURL and signed with secret. Returns the new webhook's ID.
func (c *Client) CreateWebhook(ctx context.Context, token, owner, repo, callbackURL, secret string) (int64, error) {
	path := fmt.Sprintf("/repos/%s/%s/hooks", owner, repo)

	payload := map[string]any{
		"name":   "web",
		"active": true,
		"events": []string{"release"},
		"config": map[string]string{
			"url":          callbackURL,
			"content_type": "json",
			"secret":       secret,
		},
	}

	var hook Webhook
	if err := c.post(ctx, token, path, payload, &hook); err != nil {
		return 0, err
	}
	return hook.ID, nil
}

// DeleteWebhook removes a webhook registration. A webhook that is already
// gone is not an error.
func (c *Client) DeleteWebhook(ctx context.Context, token, owner, repo string, hookID int64) error {
	path := fmt.Sprintf("/repos/%s/%s/hooks/%d", owner, repo, hookID)

	err := c.do(ctx, token, http.MethodDelete, path, nil, nil)
	if errors.Is(err, errNotFound) {
		return nil
	}
	return err
}

// errNotFound marks a 404 from the API so callers can branch on absence.
var errNotFound = errors.New("github: not found")

func (c *Client) get(ctx context.Context, token, path string, out any) error {
	return c.do(ctx, token, http.MethodGet, path, nil, out)
}

func (c *Client) post(ctx context.Context, token, path string, payload, out any) error {
	return c.do(ctx, token, http.MethodPost, path, payload, out)
}

func (c *Client) do(ctx context.Context, token, method, path string, payload, out any) error {
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("marshal github payload: %w", err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("build github request: %w", err)
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("Authorization", "Bearer "+token)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errors.NewUpstreamError("github request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return errNotFound
	}
	if resp.StatusCode >= 400 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return errors.NewUpstreamError(
			fmt.Sprintf("github responded %s: %s", resp.Status, bytes.TrimSpace(detail)), nil).
			WithStatusCode(resp.StatusCode)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errors.NewUpstreamError("decode github response", err)
	}
	return nil
}
