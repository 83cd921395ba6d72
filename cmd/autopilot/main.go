// Command autopilot plays snake against a running server. It creates a
// session over REST, follows the tick stream over the session WebSocket and
// answers every tick with a turn frame chosen by Strategy.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/urfave/cli/v3"

	"github.com/wricardo/snake-arcade/game/engine"
	"github.com/wricardo/snake-arcade/game/service"
)

// frame mirrors the server's outgoing WebSocket message
type frame struct {
	SessionID string            `json:"session_id"`
	GameState *engine.GameState `json:"game_state"`
	Event     string            `json:"event"`
}

// command is an inbound control frame
type command struct {
	Type      string `json:"type"`
	Direction string `json:"direction,omitempty"`
}

type Client struct {
	baseURL   string
	sessionID string
	client    *http.Client
}

func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// CreateSession starts a new session with the given preset
func (c *Client) CreateSession(ctx context.Context, configID string) (*service.SessionInfo, error) {
	body, err := json.Marshal(map[string]string{"config_id": configID})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/api/sessions", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	defer resp.Body.Close()

	data, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return nil, fmt.Errorf("create session failed: %s - %s", resp.Status, strings.TrimSpace(string(data)))
	}

	var session service.SessionInfo
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, fmt.Errorf("parse session response: %w", err)
	}

	c.sessionID = session.ID
	return &session, nil
}

// wsURL turns the server URL into the session WebSocket URL
func (c *Client) wsURL() (string, error) {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return "", err
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = "/ws"
	u.RawQuery = url.Values{"session": {c.sessionID}}.Encode()
	return u.String(), nil
}

// Result summarizes one finished game
type Result struct {
	Score int
	Ticks int
	Cause engine.DeathCause
}

// Play connects to the session and steers until the given number of games
// have ended or ctx is cancelled. Each game after the first starts with a
// reset.
func (c *Client) Play(ctx context.Context, strategy *Strategy, games int, verbose bool) ([]Result, error) {
	target, err := c.wsURL()
	if err != nil {
		return nil, err
	}

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, target, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", target, err)
	}
	defer conn.Close()

	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	send := func(cmd command) error {
		conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
		return conn.WriteJSON(cmd)
	}

	var results []Result
	lastTick := -1
	finished := false
	for len(results) < games {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return results, ctx.Err()
			}
			return results, fmt.Errorf("read: %w", err)
		}

		// Queued frames arrive newline separated
		for _, raw := range bytes.Split(data, []byte{'\n'}) {
			var msg frame
			if err := json.Unmarshal(raw, &msg); err != nil || msg.GameState == nil {
				continue
			}
			state := msg.GameState

			if state.IsOver() {
				if finished {
					continue
				}
				finished = true
				results = append(results, Result{Score: state.Score, Ticks: state.Tick, Cause: state.DeathCause})
				log.Printf("Game %d: score=%d length=%d ticks=%d cause=%s",
					len(results), state.Score, state.Length(), state.Tick, state.DeathCause)
				lastTick = -1
				if len(results) < games {
					strategy.Reset()
					if err := send(command{Type: "reset"}); err != nil {
						return results, err
					}
				}
				continue
			}
			finished = false

			if state.RunState == engine.Paused {
				if err := send(command{Type: "resume"}); err != nil {
					return results, err
				}
				continue
			}

			if state.Tick == lastTick {
				continue
			}
			lastTick = state.Tick

			direction := strategy.NextMove(state)
			if verbose && state.Tick%20 == 0 {
				log.Printf("tick=%d head=(%d,%d) score=%d next=%s",
					state.Tick, state.Head().X, state.Head().Y, state.Score, direction)
			}
			if direction == "" || direction == string(state.Direction) {
				continue
			}
			if err := send(command{Type: "turn", Direction: direction}); err != nil {
				return results, err
			}
		}
	}
	return results, nil
}

func main() {
	cmd := &cli.Command{
		Name:  "autopilot",
		Usage: "Play snake against a running server",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "url", Value: "http://localhost:8080", Usage: "Game server URL", Sources: cli.EnvVars("SNAKE_URL")},
			&cli.StringFlag{Name: "config", Value: "slow", Usage: "Preset to play"},
			&cli.IntFlag{Name: "games", Value: 3, Usage: "Games to play before exiting"},
			&cli.BoolFlag{Name: "v", Usage: "Verbose output"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			games := int(cmd.Int("games"))
			if games < 1 {
				return errors.New("games must be at least 1")
			}

			client := NewClient(cmd.String("url"))
			log.Printf("Connecting to game server at %s", cmd.String("url"))

			session, err := client.CreateSession(ctx, cmd.String("config"))
			if err != nil {
				return err
			}
			log.Printf("Session created: %s (%s, %dms)", session.ID, session.ConfigName, session.TickMillis)

			results, err := client.Play(ctx, NewStrategy(), games, cmd.Bool("v"))
			if err != nil {
				return err
			}

			best := 0
			for _, r := range results {
				if r.Score > best {
					best = r.Score
				}
			}
			log.Printf("Best score over %d games: %d (session %s)", len(results), best, session.ID)
			return nil
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		log.Fatal(err)
	}
}
