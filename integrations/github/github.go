// Package github fetches public repositories for the projects panel.
package github

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/jpillora/backoff"
)

const (
	DefaultBaseURL = "https://api.github.com"

	// MaxProjects caps the projects panel
	MaxProjects = 9

	// DefaultCacheTTL keeps the unauthenticated rate limit out of reach
	DefaultCacheTTL = 10 * time.Minute
)

var ErrRateLimited = errors.New("github rate limit exceeded")

// Repo is the subset of the GitHub repository payload the site uses
type Repo struct {
	ID              int64   `json:"id"`
	Name            string  `json:"name"`
	FullName        string  `json:"full_name"`
	Description     *string `json:"description"`
	Language        *string `json:"language"`
	StargazersCount int     `json:"stargazers_count"`
	HTMLURL         string  `json:"html_url"`
	Homepage        *string `json:"homepage,omitempty"`
	Fork            bool    `json:"fork"`
	Archived        bool    `json:"archived"`
	UpdatedAt       string  `json:"updated_at"`
}

type cacheEntry struct {
	repos   []Repo
	fetched time.Time
}

// Client calls the GitHub REST API
type Client struct {
	baseURL    string
	httpClient *http.Client
	cacheTTL   time.Duration

	// retry is the wait before the single retry after a 403
	retry backoff.Backoff

	mu    sync.Mutex
	cache map[string]cacheEntry
}

// NewClient creates a client for api.github.com
func NewClient() *Client {
	return NewClientWithBaseURL(DefaultBaseURL)
}

// NewClientWithBaseURL creates a client for a GitHub compatible API
func NewClientWithBaseURL(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		cacheTTL: DefaultCacheTTL,
		retry: backoff.Backoff{
			Min:    500 * time.Millisecond,
			Max:    5 * time.Second,
			Factor: 2,
		},
		cache: make(map[string]cacheEntry),
	}
}

// SetRetryDelay changes the wait before retrying a rate limited request
func (c *Client) SetRetryDelay(d time.Duration) {
	c.retry = backoff.Backoff{Min: d, Max: d}
}

// SetCacheTTL changes how long fetched repositories are reused. Zero
// disables the cache.
func (c *Client) SetCacheTTL(ttl time.Duration) {
	c.cacheTTL = ttl
}

// FetchRepos returns the public repositories of user, most recently updated
// first. A 403 is retried once after a short wait.
func (c *Client) FetchRepos(ctx context.Context, user string) ([]Repo, error) {
	if user == "" {
		return nil, fmt.Errorf("github user is required")
	}

	if repos, ok := c.cached(user); ok {
		return repos, nil
	}

	endpoint := fmt.Sprintf("%s/users/%s/repos?per_page=100&sort=updated", c.baseURL, url.PathEscape(user))

	repos, status, err := c.get(ctx, endpoint)
	if status == http.StatusForbidden {
		c.retry.Reset()
		select {
		case <-time.After(c.retry.Duration()):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		repos, status, err = c.get(ctx, endpoint)
		if status == http.StatusForbidden {
			return nil, ErrRateLimited
		}
	}
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.cache[user] = cacheEntry{repos: repos, fetched: time.Now()}
	c.mu.Unlock()
	return repos, nil
}

func (c *Client) cached(user string) ([]Repo, bool) {
	if c.cacheTTL <= 0 {
		return nil, false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.cache[user]
	if !ok || time.Since(entry.fetched) > c.cacheTTL {
		return nil, false
	}
	return entry.repos, true
}

func (c *Client) get(ctx context.Context, endpoint string) ([]Repo, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/vnd.github+json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("github request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, resp.StatusCode, fmt.Errorf("GitHub API error: %d", resp.StatusCode)
	}

	var repos []Repo
	if err := json.NewDecoder(resp.Body).Decode(&repos); err != nil {
		return nil, resp.StatusCode, fmt.Errorf("failed to decode repositories: %w", err)
	}
	return repos, resp.StatusCode, nil
}

// SelectOptions controls which repositories become projects
type SelectOptions struct {
	// Featured repositories are shown elsewhere and skipped here
	Featured []string
	// Exclude lists repositories that are never shown
	Exclude []string
	// Limit defaults to MaxProjects
	Limit int
}

// SelectProjects drops forks, archived, excluded and featured repositories,
// then returns the most starred ones. Names match case-insensitively.
func SelectProjects(repos []Repo, opts SelectOptions) []Repo {
	skip := make(map[string]bool, len(opts.Featured)+len(opts.Exclude))
	for _, name := range append(append([]string{}, opts.Featured...), opts.Exclude...) {
		skip[strings.ToLower(name)] = true
	}

	limit := opts.Limit
	if limit <= 0 || limit > MaxProjects {
		limit = MaxProjects
	}

	selected := make([]Repo, 0, len(repos))
	for _, r := range repos {
		if r.Fork || r.Archived || skip[strings.ToLower(r.Name)] {
			continue
		}
		selected = append(selected, r)
	}

	// Stable so equal star counts keep the API's recency order
	sort.SliceStable(selected, func(i, j int) bool {
		return selected[i].StargazersCount > selected[j].StargazersCount
	})

	if len(selected) > limit {
		selected = selected[:limit]
	}
	return selected
}
