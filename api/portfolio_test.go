package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/wricardo/snake-arcade/integrations/github"
	"github.com/wricardo/snake-arcade/integrations/hire"
	"github.com/wricardo/snake-arcade/integrations/seasonal"
	"github.com/wricardo/snake-arcade/integrations/weather"
	"github.com/wricardo/snake-arcade/store"
)

type MockProjects struct {
	FetchReposFunc func(ctx context.Context, user string) ([]github.Repo, error)
}

func (m *MockProjects) FetchRepos(ctx context.Context, user string) ([]github.Repo, error) {
	return m.FetchReposFunc(ctx, user)
}

type MockWeather struct {
	SummaryFunc func(ctx context.Context, ip string) (*weather.Summary, error)
}

func (m *MockWeather) Summary(ctx context.Context, ip string) (*weather.Summary, error) {
	return m.SummaryFunc(ctx, ip)
}

type MockTheme struct {
	lastIP string
}

func (m *MockTheme) Theme(ctx context.Context, ip string) seasonal.Theme {
	m.lastIP = ip
	return seasonal.Halloween
}

type MockHire struct {
	SubmitFunc func(ctx context.Context, form hire.Form, clientIP string) (*store.Inquiry, error)
}

func (m *MockHire) Submit(ctx context.Context, form hire.Form, clientIP string) (*store.Inquiry, error) {
	return m.SubmitFunc(ctx, form, clientIP)
}

func TestPortfolioDisabled(t *testing.T) {
	server := setupTestServer(t, &MockGameService{})

	for _, path := range []string{"/api/projects", "/api/weather", "/api/theme"} {
		if w := serve(server, makeRequest("GET", path, nil)); w.Code != http.StatusNoContent {
			t.Errorf("%s: expected 204, got %d", path, w.Code)
		}
	}
	if w := serve(server, makeRequest("POST", "/api/hire", hire.Form{})); w.Code != http.StatusServiceUnavailable {
		t.Errorf("Expected 503 from hire without a submitter, got %d", w.Code)
	}
}

func TestProjects(t *testing.T) {
	var gotUser string
	projects := &MockProjects{
		FetchReposFunc: func(ctx context.Context, user string) ([]github.Repo, error) {
			gotUser = user
			return []github.Repo{
				{Name: "snake", StargazersCount: 3},
				{Name: "fork", StargazersCount: 50, Fork: true},
				{Name: "site", StargazersCount: 9},
				{Name: "featured", StargazersCount: 40},
			}, nil
		},
	}
	server := setupTestServer(t, &MockGameService{}, WithPortfolio(&Portfolio{
		Projects:   projects,
		GitHubUser: "wricardo",
		Featured:   []string{"featured"},
	}))

	w := serve(server, makeRequest("GET", "/api/projects", nil))
	var repos []github.Repo
	parseResponse(t, w, &repos)
	if gotUser != "wricardo" {
		t.Errorf("Expected wricardo, got %s", gotUser)
	}
	if len(repos) != 2 || repos[0].Name != "site" || repos[1].Name != "snake" {
		t.Errorf("Unexpected projects %+v", repos)
	}

	projects.FetchReposFunc = func(ctx context.Context, user string) ([]github.Repo, error) {
		return nil, github.ErrRateLimited
	}
	if w := serve(server, makeRequest("GET", "/api/projects", nil)); w.Code != http.StatusNoContent {
		t.Errorf("Expected 204 when GitHub fails, got %d", w.Code)
	}
}

func TestWeatherAndTheme(t *testing.T) {
	var weatherIP string
	wx := &MockWeather{
		SummaryFunc: func(ctx context.Context, ip string) (*weather.Summary, error) {
			weatherIP = ip
			return &weather.Summary{Key: weather.Sunny, Label: "Sunny"}, nil
		},
	}
	theme := &MockTheme{}
	server := setupTestServer(t, &MockGameService{}, WithPortfolio(&Portfolio{Weather: wx, Theme: theme}))

	req := makeRequest("GET", "/api/weather", nil)
	req.RemoteAddr = "198.51.100.9:4000"
	req.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.1")
	w := serve(server, req)
	var summary weather.Summary
	parseResponse(t, w, &summary)
	if summary.Key != weather.Sunny || weatherIP != "198.51.100.9" {
		t.Errorf("Unexpected weather %+v for %s", summary, weatherIP)
	}

	req = makeRequest("GET", "/api/theme", nil)
	req.RemoteAddr = "198.51.100.4:5555"
	w = serve(server, req)
	var got seasonal.Theme
	parseResponse(t, w, &got)
	if got.Name != "Halloween" || theme.lastIP != "198.51.100.4" {
		t.Errorf("Unexpected theme %s for %s", got.Name, theme.lastIP)
	}

	wx.SummaryFunc = func(ctx context.Context, ip string) (*weather.Summary, error) {
		return nil, weather.ErrNoLocation
	}
	if w := serve(server, makeRequest("GET", "/api/weather", nil)); w.Code != http.StatusNoContent {
		t.Errorf("Expected 204 when weather fails, got %d", w.Code)
	}
}

func TestClientIP(t *testing.T) {
	tests := []struct {
		name  string
		trust bool
		fwd   string
		want  string
	}{
		{"untrusted ignores header", false, "203.0.113.7", "198.51.100.4"},
		{"trusted uses first hop", true, "203.0.113.7, 10.0.0.1", "203.0.113.7"},
		{"trusted without header", true, "", "198.51.100.4"},
		{"trusted with empty hop", true, " , 10.0.0.1", "198.51.100.4"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			theme := &MockTheme{}
			server := setupTestServer(t, &MockGameService{},
				WithPortfolio(&Portfolio{Theme: theme}),
				WithTrustedProxy(tt.trust),
			)

			req := makeRequest("GET", "/api/theme", nil)
			req.RemoteAddr = "198.51.100.4:5555"
			if tt.fwd != "" {
				req.Header.Set("X-Forwarded-For", tt.fwd)
			}
			serve(server, req)
			if theme.lastIP != tt.want {
				t.Errorf("Expected client IP %s, got %s", tt.want, theme.lastIP)
			}
		})
	}
}

func TestHire_SpoofedForwardedForKeepsCooldown(t *testing.T) {
	db, err := store.Open(":memory:")
	if err != nil {
		t.Fatalf("Failed to open store: %v", err)
	}
	defer db.Close()

	submitter := hire.NewSubmitter("", db, time.Hour)
	server := setupTestServer(t, &MockGameService{}, WithPortfolio(&Portfolio{Hire: submitter}))

	body := map[string]string{"company": "Acme", "pay": "$1", "contact": "a@b.c", "jobDetails": "games"}
	for i, want := range []int{http.StatusOK, http.StatusTooManyRequests, http.StatusTooManyRequests} {
		req := makeRequest("POST", "/api/hire", body)
		req.RemoteAddr = "198.51.100.4:5555"
		req.Header.Set("X-Forwarded-For", fmt.Sprintf("203.0.113.%d", i+1))
		if w := serve(server, req); w.Code != want {
			t.Fatalf("Request %d: expected %d, got %d", i, want, w.Code)
		}
	}

	if n, err := db.CountInquiries(context.Background()); err != nil || n != 1 {
		t.Errorf("Expected 1 stored inquiry, got %d (%v)", n, err)
	}
}

func TestHire(t *testing.T) {
	submitter := &MockHire{}
	server := setupTestServer(t, &MockGameService{}, WithPortfolio(&Portfolio{Hire: submitter}))

	tests := []struct {
		name    string
		err     error
		status  int
		success bool
	}{
		{"sent", nil, http.StatusOK, true},
		{"missing field", fmt.Errorf("%w: pay", hire.ErrMissingField), http.StatusBadRequest, false},
		{"cooldown", fmt.Errorf("%w: try again in 3h0m0s", hire.ErrCooldown), http.StatusTooManyRequests, false},
		{"delivery", fmt.Errorf("%w: refused", hire.ErrDelivery), http.StatusInternalServerError, false},
		{"store", errors.New("disk full"), http.StatusInternalServerError, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotForm hire.Form
			submitter.SubmitFunc = func(ctx context.Context, form hire.Form, clientIP string) (*store.Inquiry, error) {
				gotForm = form
				if tt.err != nil {
					return nil, tt.err
				}
				return &store.Inquiry{UUID: "f1e2"}, nil
			}

			body := map[string]string{"company": "Acme", "pay": "$1", "contact": "a@b.c", "jobDetails": "games"}
			w := serve(server, makeRequest("POST", "/api/hire", body))
			if w.Code != tt.status {
				t.Fatalf("Expected %d, got %d", tt.status, w.Code)
			}

			var resp struct {
				Success bool   `json:"success"`
				Message string `json:"message"`
			}
			parseResponse(t, w, &resp)
			if resp.Success != tt.success || resp.Message == "" {
				t.Errorf("Unexpected banner %+v", resp)
			}
			if gotForm.JobDetails != "games" {
				t.Errorf("Expected jobDetails to be decoded, got %+v", gotForm)
			}
		})
	}
}
