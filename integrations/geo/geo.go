// Package geo resolves a visitor's country from their IP address.
package geo

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

const (
	DefaultBaseURL = "https://ipapi.co"

	// MaxCacheEntries bounds the per-address cache
	MaxCacheEntries = 1024
)

// Location is the resolved country. On failure both fields are empty and
// Err carries the reason.
type Location struct {
	Country     string `json:"country,omitempty"`
	CountryCode string `json:"country_code,omitempty"`
	Err         string `json:"error,omitempty"`
}

// Client looks up countries through ipapi.co and remembers every answer,
// failures included, until Reset is called.
type Client struct {
	baseURL    string
	httpClient *http.Client
	maxEntries int

	mu    sync.Mutex
	cache map[string]Location
}

// NewClient creates a client for ipapi.co
func NewClient() *Client {
	return NewClientWithBaseURL(DefaultBaseURL)
}

// NewClientWithBaseURL creates a client for an ipapi compatible API
func NewClientWithBaseURL(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 5 * time.Second,
		},
		maxEntries: MaxCacheEntries,
		cache:      make(map[string]Location),
	}
}

// Country resolves ip. An empty ip asks about the caller's own address.
func (c *Client) Country(ctx context.Context, ip string) Location {
	c.mu.Lock()
	if loc, ok := c.cache[ip]; ok {
		c.mu.Unlock()
		return loc
	}
	c.mu.Unlock()

	loc, err := c.lookup(ctx, ip)
	if err != nil {
		log.Printf("Warning: geolocation failed for %q: %v", ip, err)
		loc = Location{Err: err.Error()}
	}

	c.mu.Lock()
	if _, ok := c.cache[ip]; !ok && len(c.cache) >= c.maxEntries {
		for evict := range c.cache {
			delete(c.cache, evict)
			break
		}
	}
	c.cache[ip] = loc
	c.mu.Unlock()
	return loc
}

// IsUSA reports whether ip resolves to the United States
func (c *Client) IsUSA(ctx context.Context, ip string) bool {
	return c.Country(ctx, ip).CountryCode == "US"
}

// Reset forgets every cached answer
func (c *Client) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cache = make(map[string]Location)
}

func (c *Client) lookup(ctx context.Context, ip string) (Location, error) {
	endpoint := c.baseURL + "/json/"
	if ip != "" {
		endpoint = fmt.Sprintf("%s/%s/json/", c.baseURL, url.PathEscape(ip))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return Location{}, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Location{}, fmt.Errorf("failed to fetch geolocation: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Location{}, fmt.Errorf("failed to fetch geolocation: status %d", resp.StatusCode)
	}

	var data struct {
		CountryName string `json:"country_name"`
		CountryCode string `json:"country_code"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return Location{}, fmt.Errorf("failed to decode geolocation: %w", err)
	}

	return Location{Country: data.CountryName, CountryCode: data.CountryCode}, nil
}
