package service

import (
	"time"

	"github.com/wricardo/snake-arcade/game/engine"
)

// SessionInfo provides information about a game session
type SessionInfo struct {
	ID             string             `json:"id"`
	ConfigName     string             `json:"config_name"`
	CreatedAt      time.Time          `json:"created_at"`
	LastAccessedAt time.Time          `json:"last_accessed_at"`
	TickMillis     int                `json:"tick_ms"`
	GameState      *engine.GameState  `json:"game_state"`
	GameConfig     *engine.GameConfig `json:"game_config"`
}

// TurnResult contains the result of a direction request
type TurnResult struct {
	// Accepted is false when the request reverses the current direction or
	// the game is over
	Accepted  bool              `json:"accepted"`
	Direction string            `json:"direction"`
	GameState *engine.GameState `json:"game_state"`
	Message   string            `json:"message"`
}

// StepResult contains the result of a manual tick
type StepResult struct {
	Outcome        string            `json:"outcome"`
	Direction      string            `json:"direction,omitempty"`
	GameState      *engine.GameState `json:"game_state"`
	Message        string            `json:"message"`
	SafeMoves      []string          `json:"safe_moves"`
	DistanceToFood int               `json:"distance_to_food"`
}

// ConfigInfo provides information about a game configuration
type ConfigInfo struct {
	Filename    string `json:"filename"`
	ConfigID    string `json:"config_id"` // The identifier to use for session creation
	Name        string `json:"name"`      // Display name
	Description string `json:"description"`
	GridSize    int    `json:"grid_size"`
	TickMillis  int    `json:"tick_ms"`
}
