package service

import (
	"context"
	"errors"

	"github.com/wricardo/snake-arcade/game/engine"
	"github.com/wricardo/snake-arcade/store"
)

var (
	ErrSessionNotFound  = errors.New("session not found")
	ErrInvalidDirection = errors.New("invalid direction")
	ErrGameNotOver      = errors.New("game is not over")
	ErrScoresDisabled   = errors.New("leaderboard is not configured")
	ErrConfigNotFound   = errors.New("configuration not found")
	ErrInvalidConfig    = errors.New("invalid configuration")
)

// GameService defines all game-related operations
type GameService interface {
	// Session Management
	CreateSession(ctx context.Context, configName string) (*SessionInfo, error)
	GetSession(ctx context.Context, sessionID string) (*SessionInfo, error)
	ListSessions(ctx context.Context) ([]*SessionInfo, error)
	DeleteSession(ctx context.Context, sessionID string) error

	// Game Operations
	Turn(ctx context.Context, sessionID, direction string) (*TurnResult, error)
	Pause(ctx context.Context, sessionID string) (*engine.GameState, error)
	Resume(ctx context.Context, sessionID string) (*engine.GameState, error)
	Toggle(ctx context.Context, sessionID string) (*engine.GameState, error)
	Reset(ctx context.Context, sessionID string) (*engine.GameState, error)
	Step(ctx context.Context, sessionID string) (*StepResult, error)

	// Game State
	GetGameState(ctx context.Context, sessionID string) (*engine.GameState, error)

	// Configuration
	ListConfigs(ctx context.Context) ([]*ConfigInfo, error)
	LoadConfig(ctx context.Context, configName string) (*engine.GameConfig, error)
	SaveConfig(ctx context.Context, configName string, config *engine.GameConfig) error

	// Leaderboard
	Leaderboard(ctx context.Context, configName string, limit int) ([]store.Score, error)
	SubmitScore(ctx context.Context, sessionID, player string) (*store.Score, error)
}

// SessionManager defines session storage operations
type SessionManager interface {
	Create(id string, config *engine.GameConfig) (*Session, error)
	Get(id string) (*Session, error)
	GetOrCreate(id string, config *engine.GameConfig) (*Session, error)
	List() []*Session
	Delete(id string) error
	UpdateLastAccessed(id string) error
	Save(id string) error
	SetObserver(observer SessionObserver)
}

// ConfigManager handles game configuration loading
type ConfigManager interface {
	LoadConfig(name string) (*engine.GameConfig, error)
	ListConfigs() ([]*ConfigInfo, error)
	GetDefault() *engine.GameConfig
	SaveConfig(name string, config *engine.GameConfig) error
}

// ScoreStore records finished games
type ScoreStore interface {
	RecordScore(ctx context.Context, score store.Score) (int64, error)
	TopScores(ctx context.Context, configName string, limit int) ([]store.Score, error)
	SetPlayer(ctx context.Context, id int64, player string) (*store.Score, error)
}

// Broadcaster pushes state updates to connected clients
type Broadcaster interface {
	BroadcastToSession(sessionID string, state *engine.GameState)
	BroadcastEvent(sessionID string, event string, data interface{})
}

// SessionObserver receives updates produced by session tick loops. Calls
// arrive on the loop goroutine of the session.
type SessionObserver interface {
	SessionTicked(sessionID string, state *engine.GameState)
	SessionOver(sessionID string, state *engine.GameState)
}
