package service

import (
	"context"
	"time"

	"github.com/wricardo/snake-arcade/game/engine"
	"github.com/wricardo/snake-arcade/game/loop"
)

// snapshotTimeout bounds how long a reader waits for the loop goroutine
const snapshotTimeout = 2 * time.Second

// Session represents an active game session. The engine is owned by the
// runner goroutine once Start has been called; read it through State.
type Session struct {
	ID             string
	ConfigID       string
	Engine         engine.Engine
	Runner         *loop.Runner
	Config         *engine.GameConfig
	CreatedAt      time.Time
	LastAccessedAt time.Time
}

// NewSession wraps an engine with a runner ticking at the configured period
func NewSession(id, configID string, config *engine.GameConfig, eng engine.Engine) *Session {
	now := time.Now()
	return &Session{
		ID:             id,
		ConfigID:       configID,
		Engine:         eng,
		Runner:         loop.New(eng),
		Config:         config,
		CreatedAt:      now,
		LastAccessedAt: now,
	}
}

// Start launches the tick loop and forwards its updates to observer
func (s *Session) Start(ctx context.Context, observer SessionObserver) {
	if observer != nil {
		id := s.ID
		s.Runner.OnTick = func(state *engine.GameState) {
			observer.SessionTicked(id, state)
		}
		s.Runner.OnGameOver = func(state *engine.GameState) {
			observer.SessionOver(id, state)
		}
	}
	s.Runner.Start(ctx)
	<-s.Runner.Started()
}

// Stop ends the tick loop
func (s *Session) Stop() {
	s.Runner.Stop()
}

// State returns a snapshot of the game. Once the loop has stopped the engine
// is read directly.
func (s *Session) State() *engine.GameState {
	select {
	case <-s.Runner.Done():
		return s.Engine.Snapshot()
	default:
	}

	ctx, cancel := context.WithTimeout(context.Background(), snapshotTimeout)
	defer cancel()
	state, err := s.Runner.Snapshot(ctx)
	if err != nil {
		select {
		case <-s.Runner.Done():
			return s.Engine.Snapshot()
		default:
		}
		return nil
	}
	return state
}
