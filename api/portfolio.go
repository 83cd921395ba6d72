package api

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net"
	"net/http"
	"strings"

	"github.com/wricardo/snake-arcade/integrations/github"
	"github.com/wricardo/snake-arcade/integrations/hire"
	"github.com/wricardo/snake-arcade/integrations/seasonal"
	"github.com/wricardo/snake-arcade/integrations/weather"
	"github.com/wricardo/snake-arcade/store"
)

// ProjectSource lists a user's repositories
type ProjectSource interface {
	FetchRepos(ctx context.Context, user string) ([]github.Repo, error)
}

// WeatherSource summarizes the weather near a visitor
type WeatherSource interface {
	Summary(ctx context.Context, ip string) (*weather.Summary, error)
}

// ThemeSource picks the seasonal theme for a visitor
type ThemeSource interface {
	Theme(ctx context.Context, ip string) seasonal.Theme
}

// HireSubmitter relays contact form submissions
type HireSubmitter interface {
	Submit(ctx context.Context, form hire.Form, clientIP string) (*store.Inquiry, error)
}

// Portfolio holds the collaborators behind the site's side panels. Any of
// them may be nil; their endpoints then answer 204.
type Portfolio struct {
	Projects   ProjectSource
	GitHubUser string
	Featured   []string
	Exclude    []string

	Weather WeatherSource
	Theme   ThemeSource
	Hire    HireSubmitter
}

// clientIP returns the visitor address. The first X-Forwarded-For hop is
// only honored behind a trusted proxy.
func (s *Server) clientIP(r *http.Request) string {
	if s.trustProxy {
		if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
			if ip := strings.TrimSpace(strings.Split(fwd, ",")[0]); ip != "" {
				return ip
			}
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func (s *Server) handleProjects(w http.ResponseWriter, r *http.Request) {
	p := s.portfolio
	if p == nil || p.Projects == nil || p.GitHubUser == "" {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	repos, err := p.Projects.FetchRepos(r.Context(), p.GitHubUser)
	if err != nil {
		log.Printf("Warning: Failed to fetch projects for %s: %v", p.GitHubUser, err)
		w.WriteHeader(http.StatusNoContent)
		return
	}

	projects := github.SelectProjects(repos, github.SelectOptions{
		Featured: p.Featured,
		Exclude:  p.Exclude,
	})
	respondJSON(w, http.StatusOK, projects)
}

func (s *Server) handleWeather(w http.ResponseWriter, r *http.Request) {
	p := s.portfolio
	if p == nil || p.Weather == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	summary, err := p.Weather.Summary(r.Context(), s.clientIP(r))
	if err != nil {
		log.Printf("Warning: Weather unavailable: %v", err)
		w.WriteHeader(http.StatusNoContent)
		return
	}
	respondJSON(w, http.StatusOK, summary)
}

func (s *Server) handleTheme(w http.ResponseWriter, r *http.Request) {
	p := s.portfolio
	if p == nil || p.Theme == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	respondJSON(w, http.StatusOK, p.Theme.Theme(r.Context(), s.clientIP(r)))
}

func (s *Server) handleHire(w http.ResponseWriter, r *http.Request) {
	p := s.portfolio
	if p == nil || p.Hire == nil {
		respondJSON(w, http.StatusServiceUnavailable, map[string]interface{}{
			"success": false,
			"message": "The contact form is not available right now.",
		})
		return
	}

	var form hire.Form
	if err := json.NewDecoder(r.Body).Decode(&form); err != nil {
		respondJSON(w, http.StatusBadRequest, map[string]interface{}{
			"success": false,
			"message": "Invalid request body",
		})
		return
	}

	inq, err := p.Hire.Submit(r.Context(), form, s.clientIP(r))
	if err != nil {
		status := http.StatusInternalServerError
		message := "There was an error sending your inquiry. Please try again."
		switch {
		case errors.Is(err, hire.ErrMissingField):
			status = http.StatusBadRequest
			message = "Please fill in every field."
		case errors.Is(err, hire.ErrCooldown):
			status = http.StatusTooManyRequests
			message = "You already sent an inquiry recently. Please try again later."
		default:
			log.Printf("Warning: Hire inquiry failed: %v", err)
		}
		respondJSON(w, status, map[string]interface{}{
			"success": false,
			"message": message,
		})
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": "Thanks! Your inquiry has been sent.",
		"id":      inq.UUID,
	})
}
