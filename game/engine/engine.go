package engine

import (
	"fmt"
	"math/rand"
	"time"
)

// Engine provides the main interface for game operations
type Engine interface {
	// Game state management
	GetState() *GameState
	Snapshot() *GameState
	SetState(state *GameState) error
	Reset() *GameState
	IsGameOver() bool
	IsPaused() bool
	GetScore() int

	// Input and simulation
	Turn(direction Direction) bool
	Step() (*GameState, Step)
	Pause() bool
	Resume() bool
	TogglePause() RunState
	PendingDirection() Direction

	// Configuration
	GetConfig() *GameConfig
	SetConfig(config *GameConfig) error
	TickInterval() time.Duration
}

// GameEngine implements the Engine interface.
// It is not safe for concurrent use; loop.Runner serializes access.
type GameEngine struct {
	state  *GameState
	config *GameConfig
	input  *InputBuffer
	rng    RandomSource
}

// NewEngine creates a new game engine with the provided configuration
func NewEngine(config *GameConfig) (*GameEngine, error) {
	return NewEngineWithRand(config, rand.New(rand.NewSource(time.Now().UnixNano())))
}

// NewEngineWithRand creates a new game engine using rng for food placement
func NewEngineWithRand(config *GameConfig, rng RandomSource) (*GameEngine, error) {
	if err := ValidateGameConfig(config); err != nil {
		return nil, err
	}
	if rng == nil {
		return nil, fmt.Errorf("random source cannot be nil")
	}

	state := InitGameStateFromConfig(config, rng)
	return &GameEngine{
		config: config,
		state:  state,
		input:  NewInputBuffer(state.Direction),
		rng:    rng,
	}, nil
}

// NewEngineWithDefaults creates a new game engine with the default configuration
func NewEngineWithDefaults() *GameEngine {
	engine, err := NewEngine(DefaultGameConfig())
	if err != nil {
		// The built-in configuration is always valid
		panic(err)
	}
	return engine
}

// GetState returns the current game state
func (e *GameEngine) GetState() *GameState {
	return e.state
}

// Snapshot returns a deep copy of the current state for rendering
func (e *GameEngine) Snapshot() *GameState {
	return e.state.Clone()
}

// SetState sets the game state (used for persistence loading)
func (e *GameEngine) SetState(state *GameState) error {
	if state == nil {
		return fmt.Errorf("state cannot be nil")
	}
	if len(state.Snake) == 0 {
		return fmt.Errorf("state must contain at least one snake cell")
	}
	if state.GridSize != e.config.GridSize {
		return fmt.Errorf("state grid size %d does not match config grid size %d", state.GridSize, e.config.GridSize)
	}
	e.state = state
	e.input.Reset(state.Direction)
	return nil
}

// Reset reinitializes the game from the configuration
func (e *GameEngine) Reset() *GameState {
	e.state = InitGameStateFromConfig(e.config, e.rng)
	e.input.Reset(e.state.Direction)
	return e.state
}

// IsGameOver returns whether the game is over
func (e *GameEngine) IsGameOver() bool {
	return e.state.RunState == Over
}

// IsPaused returns whether the game is paused
func (e *GameEngine) IsPaused() bool {
	return e.state.RunState == Paused
}

// GetScore returns the current score
func (e *GameEngine) GetScore() int {
	return e.state.Score
}

// Turn buffers a directional request for the next tick.
// It returns false when the request is rejected: the game is over, the
// direction is invalid, or it reverses the last applied direction.
func (e *GameEngine) Turn(direction Direction) bool {
	if e.state.RunState == Over {
		return false
	}
	return e.input.Push(direction)
}

// PendingDirection returns the buffered request, if any
func (e *GameEngine) PendingDirection() Direction {
	return e.input.Pending()
}

// Step applies exactly one tick using the buffered direction
func (e *GameEngine) Step() (*GameState, Step) {
	next, step := Advance(e.state, e.input.Take(), e.rng)
	if step.Outcome == OutcomeIdle {
		return e.state, step
	}

	next.Message = stepMessage(e.config, next, step)
	e.state = next
	e.input.Commit(e.state.Direction)
	return e.state, step
}

// Pause suspends a running game
func (e *GameEngine) Pause() bool {
	if e.state.RunState != Running {
		return false
	}
	e.state.RunState = Paused
	if e.config.Messages.Paused != "" {
		e.state.Message = e.config.Messages.Paused
	}
	return true
}

// Resume continues a paused game
func (e *GameEngine) Resume() bool {
	if e.state.RunState != Paused {
		return false
	}
	e.state.RunState = Running
	if e.config.Messages.Resumed != "" {
		e.state.Message = e.config.Messages.Resumed
	}
	return true
}

// TogglePause flips between running and paused; an ended game stays over
func (e *GameEngine) TogglePause() RunState {
	switch e.state.RunState {
	case Running:
		e.Pause()
	case Paused:
		e.Resume()
	}
	return e.state.RunState
}

// GetConfig returns the current game configuration
func (e *GameEngine) GetConfig() *GameConfig {
	return e.config
}

// SetConfig sets a new game configuration and resets the game
func (e *GameEngine) SetConfig(config *GameConfig) error {
	if err := ValidateGameConfig(config); err != nil {
		return err
	}

	e.config = config
	e.Reset()
	return nil
}

// TickInterval returns the configured tick period
func (e *GameEngine) TickInterval() time.Duration {
	return e.config.TickInterval()
}
