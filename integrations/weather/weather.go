// Package weather builds a short greeting from the visitor's approximate
// location and the current conditions there.
package weather

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"
)

const (
	DefaultLocateURL   = "https://ipwho.is"
	DefaultFallbackURL = "https://ipapi.co"
	DefaultForecastURL = "https://api.open-meteo.com"

	DefaultCacheTTL = 5 * time.Minute

	// MaxCacheEntries bounds the per-address cache
	MaxCacheEntries = 1024
)

var ErrNoLocation = errors.New("location unavailable")

// RandomSource picks labels and messages
type RandomSource interface {
	Intn(n int) int
}

// Summary is what the site shows next to the game
type Summary struct {
	Key          string   `json:"key"`
	Emoji        string   `json:"emoji"`
	Label        string   `json:"label"`
	Message      string   `json:"message"`
	Color        string   `json:"color"`
	TemperatureC *float64 `json:"temperature_c"`
	Place        *string  `json:"place"`
}

// Summarize picks a label and message for the conditions
func Summarize(code *int, tempC *float64, rng RandomSource) Summary {
	key := Classify(code, tempC)
	c := categories[key]
	return Summary{
		Key:     key,
		Emoji:   c.emoji,
		Color:   c.color,
		Label:   c.labels[rng.Intn(len(c.labels))],
		Message: c.messages[rng.Intn(len(c.messages))],
	}
}

// Location is an approximate position
type Location struct {
	Lat   float64
	Lon   float64
	Place *string
}

// Conditions is the current weather at a location
type Conditions struct {
	TempC *float64
	Code  *int
	IsDay bool
}

type cacheEntry struct {
	summary *Summary
	fetched time.Time
}

// Client resolves locations and forecasts. Summaries are cached per IP.
type Client struct {
	locateURL   string
	fallbackURL string
	forecastURL string
	httpClient  *http.Client
	cacheTTL    time.Duration
	maxEntries  int

	mu    sync.Mutex
	rng   RandomSource
	cache map[string]cacheEntry
}

// Option configures a Client
type Option func(*Client)

// WithURLs points the client at other services
func WithURLs(locate, fallback, forecast string) Option {
	return func(c *Client) {
		c.locateURL = strings.TrimSuffix(locate, "/")
		c.fallbackURL = strings.TrimSuffix(fallback, "/")
		c.forecastURL = strings.TrimSuffix(forecast, "/")
	}
}

// WithRand sets the source used to pick labels and messages
func WithRand(rng RandomSource) Option {
	return func(c *Client) {
		c.rng = rng
	}
}

// WithCacheTTL changes how long summaries are reused
func WithCacheTTL(ttl time.Duration) Option {
	return func(c *Client) {
		c.cacheTTL = ttl
	}
}

// NewClient creates a weather client
func NewClient(opts ...Option) *Client {
	c := &Client{
		locateURL:   DefaultLocateURL,
		fallbackURL: DefaultFallbackURL,
		forecastURL: DefaultForecastURL,
		httpClient: &http.Client{
			Timeout: 4500 * time.Millisecond,
		},
		cacheTTL:   DefaultCacheTTL,
		maxEntries: MaxCacheEntries,
		rng:        rand.New(rand.NewSource(time.Now().UnixNano())),
		cache:      make(map[string]cacheEntry),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Summary returns the greeting for the visitor at ip
func (c *Client) Summary(ctx context.Context, ip string) (*Summary, error) {
	c.mu.Lock()
	if entry, ok := c.cache[ip]; ok && time.Since(entry.fetched) < c.cacheTTL {
		c.mu.Unlock()
		return entry.summary, nil
	}
	c.mu.Unlock()

	loc, err := c.Locate(ctx, ip)
	if err != nil {
		return nil, err
	}
	wx, err := c.Current(ctx, loc.Lat, loc.Lon)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	summary := Summarize(wx.Code, wx.TempC, c.rng)
	summary.TemperatureC = wx.TempC
	summary.Place = loc.Place
	c.store(ip, &summary)
	return &summary, nil
}

// store caches summary for ip. When the cache is full, expired entries are
// dropped first and then an arbitrary one. Callers hold c.mu.
func (c *Client) store(ip string, summary *Summary) {
	if _, ok := c.cache[ip]; !ok && len(c.cache) >= c.maxEntries {
		for key, entry := range c.cache {
			if time.Since(entry.fetched) >= c.cacheTTL {
				delete(c.cache, key)
			}
		}
		for key := range c.cache {
			if len(c.cache) < c.maxEntries {
				break
			}
			delete(c.cache, key)
		}
	}
	c.cache[ip] = cacheEntry{summary: summary, fetched: time.Now()}
}

// Locate asks ipwho.is for the position of ip, falling back to ipapi.co
func (c *Client) Locate(ctx context.Context, ip string) (*Location, error) {
	loc, err := c.locatePrimary(ctx, ip)
	if err == nil {
		return loc, nil
	}
	if errors.Is(err, ErrNoLocation) {
		return nil, err
	}
	return c.locateFallback(ctx, ip)
}

func (c *Client) locatePrimary(ctx context.Context, ip string) (*Location, error) {
	endpoint := c.locateURL + "/"
	if ip != "" {
		endpoint += url.PathEscape(ip)
	}

	var data struct {
		Success         *bool    `json:"success"`
		Latitude        *float64 `json:"latitude"`
		Longitude       *float64 `json:"longitude"`
		City            string   `json:"city"`
		Region          string   `json:"region"`
		CountryCode     string   `json:"country_code"`
		CountryCodeISO3 string   `json:"country_code_iso3"`
	}
	if err := c.getJSON(ctx, endpoint, &data); err != nil {
		return nil, err
	}
	if data.Success != nil && !*data.Success {
		return nil, ErrNoLocation
	}
	if data.Latitude == nil || data.Longitude == nil {
		return nil, ErrNoLocation
	}

	country := data.CountryCode
	if country == "" {
		country = data.CountryCodeISO3
	}
	return &Location{
		Lat:   *data.Latitude,
		Lon:   *data.Longitude,
		Place: place(data.City, country, data.Region),
	}, nil
}

func (c *Client) locateFallback(ctx context.Context, ip string) (*Location, error) {
	endpoint := c.fallbackURL + "/json/"
	if ip != "" {
		endpoint = fmt.Sprintf("%s/%s/json/", c.fallbackURL, url.PathEscape(ip))
	}

	var data struct {
		Latitude    *float64 `json:"latitude"`
		Longitude   *float64 `json:"longitude"`
		Lat         *float64 `json:"lat"`
		Lon         *float64 `json:"lon"`
		City        string   `json:"city"`
		Region      string   `json:"region"`
		CountryCode string   `json:"country_code"`
	}
	if err := c.getJSON(ctx, endpoint, &data); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoLocation, err)
	}

	lat, lon := data.Latitude, data.Longitude
	if lat == nil {
		lat = data.Lat
	}
	if lon == nil {
		lon = data.Lon
	}
	if lat == nil || lon == nil || math.IsNaN(*lat) || math.IsNaN(*lon) {
		return nil, ErrNoLocation
	}

	return &Location{
		Lat:   *lat,
		Lon:   *lon,
		Place: place(data.City, data.CountryCode, data.Region),
	}, nil
}

// place renders "City, CC", or the country or region alone
func place(city, country, region string) *string {
	var p string
	switch {
	case city != "" && country != "":
		p = city + ", " + country
	case city != "":
		p = city
	case country != "":
		p = country
	case region != "":
		p = region
	default:
		return nil
	}
	return &p
}

// Current fetches the current conditions from open-meteo. Both the
// "current" and the legacy "current_weather" response shapes are accepted.
func (c *Client) Current(ctx context.Context, lat, lon float64) (*Conditions, error) {
	q := url.Values{}
	q.Set("latitude", strconv.FormatFloat(lat, 'f', -1, 64))
	q.Set("longitude", strconv.FormatFloat(lon, 'f', -1, 64))
	q.Set("current", "temperature_2m,weather_code,is_day")
	q.Set("timezone", "auto")

	var data struct {
		Current *struct {
			Temperature2m *float64 `json:"temperature_2m"`
			WeatherCode   *int     `json:"weather_code"`
			IsDay         *int     `json:"is_day"`
		} `json:"current"`
		CurrentWeather *struct {
			Temperature *float64 `json:"temperature"`
			WeatherCode *int     `json:"weathercode"`
			IsDay       *int     `json:"is_day"`
		} `json:"current_weather"`
	}
	if err := c.getJSON(ctx, c.forecastURL+"/v1/forecast?"+q.Encode(), &data); err != nil {
		return nil, err
	}

	wx := &Conditions{}
	var isDay *int
	if cur := data.Current; cur != nil {
		wx.TempC, wx.Code, isDay = cur.Temperature2m, cur.WeatherCode, cur.IsDay
	}
	if legacy := data.CurrentWeather; legacy != nil {
		if wx.TempC == nil {
			wx.TempC = legacy.Temperature
		}
		if wx.Code == nil {
			wx.Code = legacy.WeatherCode
		}
		if isDay == nil {
			isDay = legacy.IsDay
		}
	}
	wx.IsDay = isDay == nil || *isDay == 1
	return wx, nil
}

func (c *Client) getJSON(ctx context.Context, endpoint string, result interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("HTTP %d", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
