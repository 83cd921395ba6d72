package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/wricardo/snake-arcade/game/engine"
	"github.com/wricardo/snake-arcade/game/loop"
	"github.com/wricardo/snake-arcade/store"
)

// scoreTimeout bounds leaderboard writes made from tick loops
const scoreTimeout = 5 * time.Second

// gameServiceImpl implements the GameService interface
type gameServiceImpl struct {
	sessions    SessionManager
	configs     ConfigManager
	scores      ScoreStore
	broadcaster Broadcaster

	// scoreIDs maps a session to the leaderboard row of its last game
	scoreIDs map[string]*pendingScore
	mu       sync.RWMutex
}

// pendingScore is a leaderboard write started when a game ended. done is
// closed once id or err is set.
type pendingScore struct {
	done chan struct{}
	id   int64
	err  error
}

// Option configures optional collaborators of the game service
type Option func(*gameServiceImpl)

// WithScoreStore records finished games on the leaderboard
func WithScoreStore(scores ScoreStore) Option {
	return func(s *gameServiceImpl) {
		s.scores = scores
	}
}

// WithBroadcaster pushes every state change to connected clients
func WithBroadcaster(b Broadcaster) Option {
	return func(s *gameServiceImpl) {
		s.broadcaster = b
	}
}

// NewGameService creates a new game service instance and subscribes it to
// the tick loops of the session manager
func NewGameService(sessions SessionManager, configs ConfigManager, opts ...Option) GameService {
	s := &gameServiceImpl{
		sessions: sessions,
		configs:  configs,
		scoreIDs: make(map[string]*pendingScore),
	}
	for _, opt := range opts {
		opt(s)
	}
	sessions.SetObserver(s)
	return s
}

// getConfigID returns the config_id for a given config name, used for consistent API responses
func (s *gameServiceImpl) getConfigID(sess *Session) string {
	if sess.ConfigID != "" {
		return sess.ConfigID
	}
	availableConfigs, err := s.configs.ListConfigs()
	if err == nil {
		for _, cfg := range availableConfigs {
			if cfg.Name == sess.Config.Name {
				return cfg.ConfigID
			}
		}
	}
	if sess.Config.Name == "" {
		return "default"
	}
	return strings.ToLower(sess.Config.Name)
}

func (s *gameServiceImpl) sessionInfo(sess *Session) *SessionInfo {
	return &SessionInfo{
		ID:             sess.ID,
		ConfigName:     s.getConfigID(sess),
		CreatedAt:      sess.CreatedAt,
		LastAccessedAt: sess.LastAccessedAt,
		TickMillis:     int(sess.Runner.Interval() / time.Millisecond),
		GameState:      sess.State(),
		GameConfig:     sess.Config,
	}
}

// getSession looks up a session and marks it as accessed
func (s *gameServiceImpl) getSession(sessionID string) (*Session, error) {
	sess, err := s.sessions.Get(sessionID)
	if err != nil {
		if errors.Is(err, ErrSessionNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrSessionNotFound, err)
	}
	s.sessions.UpdateLastAccessed(sessionID)
	return sess, nil
}

// persist saves the session, logging failures
func (s *gameServiceImpl) persist(sessionID, after string) {
	if err := s.sessions.Save(sessionID); err != nil {
		log.Printf("Warning: Failed to persist session %s after %s: %v", sessionID, after, err)
	}
}

func (s *gameServiceImpl) broadcast(sessionID string, state *engine.GameState) {
	if s.broadcaster != nil && state != nil {
		s.broadcaster.BroadcastToSession(sessionID, state)
	}
}

// CreateSession creates a new game session
func (s *gameServiceImpl) CreateSession(ctx context.Context, configName string) (*SessionInfo, error) {
	var config *engine.GameConfig
	var err error
	if configName != "" {
		config, err = s.configs.LoadConfig(configName)
		if err != nil {
			if errors.Is(err, ErrConfigNotFound) {
				availableConfigs, listErr := s.configs.ListConfigs()
				if listErr == nil && len(availableConfigs) > 0 {
					var configIDs []string
					for _, cfg := range availableConfigs {
						configIDs = append(configIDs, cfg.ConfigID)
					}
					return nil, fmt.Errorf("%w: '%s'. Available configs: %v", ErrConfigNotFound, configName, configIDs)
				}
				return nil, fmt.Errorf("%w: '%s'. Use /api/configs to list available configurations", ErrConfigNotFound, configName)
			}
			return nil, fmt.Errorf("failed to load config %s: %w", configName, err)
		}
	} else {
		config = s.configs.GetDefault()
	}

	// Let session manager generate a proper 4-character ID
	sess, err := s.sessions.Create("", config)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	if configName != "" {
		sess.ConfigID = strings.TrimSuffix(strings.ToLower(configName), ".json")
	}

	log.Printf("[SESSION] created %s (%s, %dx%d @ %s)", sess.ID, config.Name, config.GridSize, config.GridSize, sess.Runner.Interval())
	return s.sessionInfo(sess), nil
}

// GetSession retrieves session information
func (s *gameServiceImpl) GetSession(ctx context.Context, sessionID string) (*SessionInfo, error) {
	sess, err := s.getSession(sessionID)
	if err != nil {
		return nil, err
	}
	return s.sessionInfo(sess), nil
}

// ListSessions returns all active sessions
func (s *gameServiceImpl) ListSessions(ctx context.Context) ([]*SessionInfo, error) {
	sessions := s.sessions.List()
	result := make([]*SessionInfo, 0, len(sessions))
	for _, sess := range sessions {
		result = append(result, s.sessionInfo(sess))
	}
	return result, nil
}

// DeleteSession removes a session and stops its tick loop
func (s *gameServiceImpl) DeleteSession(ctx context.Context, sessionID string) error {
	if err := s.sessions.Delete(sessionID); err != nil {
		return err
	}

	s.mu.Lock()
	delete(s.scoreIDs, strings.ToLower(sessionID))
	s.mu.Unlock()
	return nil
}

// parseDirection accepts direction names as well as key names
func parseDirection(input string) (engine.Direction, bool) {
	if d, ok := engine.ParseDirection(input); ok {
		return d, true
	}
	return engine.KeyToDirection(input)
}

// Turn buffers a direction for the next tick of a session
func (s *gameServiceImpl) Turn(ctx context.Context, sessionID, direction string) (*TurnResult, error) {
	d, ok := parseDirection(direction)
	if !ok {
		return nil, fmt.Errorf("%w: %q (use up, down, left or right)", ErrInvalidDirection, direction)
	}

	sess, err := s.getSession(sessionID)
	if err != nil {
		return nil, err
	}

	res, err := sess.Runner.Turn(ctx, d)
	if err != nil {
		return nil, fmt.Errorf("turn failed: %w", err)
	}

	result := &TurnResult{
		Accepted:  res.Accepted,
		Direction: string(d),
		GameState: res.State,
		Message:   res.State.Message,
	}
	if !res.Accepted {
		switch {
		case res.State.IsOver():
			result.Message = "Game over. Reset to play again."
		default:
			result.Message = fmt.Sprintf("Cannot reverse from %s to %s", res.State.Direction, d)
		}
	}
	return result, nil
}

// command runs a state changing runner command and persists the result
func (s *gameServiceImpl) command(ctx context.Context, sessionID, name string, fn func(*loop.Runner, context.Context) (loop.Result, error)) (*engine.GameState, error) {
	sess, err := s.getSession(sessionID)
	if err != nil {
		return nil, err
	}

	res, err := fn(sess.Runner, ctx)
	if err != nil {
		return nil, fmt.Errorf("%s failed: %w", name, err)
	}

	if res.Accepted {
		s.persist(sessionID, name)
	}
	return res.State, nil
}

// Pause suspends the tick loop of a session
func (s *gameServiceImpl) Pause(ctx context.Context, sessionID string) (*engine.GameState, error) {
	return s.command(ctx, sessionID, "pause", (*loop.Runner).Pause)
}

// Resume restarts the tick loop of a paused session
func (s *gameServiceImpl) Resume(ctx context.Context, sessionID string) (*engine.GameState, error) {
	return s.command(ctx, sessionID, "resume", (*loop.Runner).Resume)
}

// Toggle flips a session between running and paused
func (s *gameServiceImpl) Toggle(ctx context.Context, sessionID string) (*engine.GameState, error) {
	return s.command(ctx, sessionID, "toggle", (*loop.Runner).Toggle)
}

// Reset starts a new game in the session
func (s *gameServiceImpl) Reset(ctx context.Context, sessionID string) (*engine.GameState, error) {
	state, err := s.command(ctx, sessionID, "reset", (*loop.Runner).Reset)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	delete(s.scoreIDs, strings.ToLower(sessionID))
	s.mu.Unlock()
	return state, nil
}

// Step applies exactly one tick to a running session
func (s *gameServiceImpl) Step(ctx context.Context, sessionID string) (*StepResult, error) {
	sess, err := s.getSession(sessionID)
	if err != nil {
		return nil, err
	}

	res, err := sess.Runner.StepOnce(ctx)
	if err != nil {
		return nil, fmt.Errorf("step failed: %w", err)
	}
	state := res.State

	result := &StepResult{
		Outcome:   string(res.Step.Outcome),
		Direction: string(res.Step.Direction),
		GameState: state,
		Message:   state.Message,
		SafeMoves: engine.SafeDirections(state),
	}
	if result.SafeMoves == nil {
		result.SafeMoves = []string{}
	}
	if len(state.Snake) > 0 {
		result.DistanceToFood = engine.ManhattanDistance(state.Head(), state.Food)
	}
	if res.Step.Outcome == engine.OutcomeIdle {
		result.Message = fmt.Sprintf("Game is %s; nothing to step", state.RunState)
	}

	if res.Accepted {
		s.persist(sessionID, "step")
	}
	return result, nil
}

// GetGameState retrieves the current game state
func (s *gameServiceImpl) GetGameState(ctx context.Context, sessionID string) (*engine.GameState, error) {
	sess, err := s.getSession(sessionID)
	if err != nil {
		return nil, err
	}

	state, err := sess.Runner.Snapshot(ctx)
	if err != nil {
		if errors.Is(err, loop.ErrStopped) {
			return sess.Engine.Snapshot(), nil
		}
		return nil, err
	}
	return state, nil
}

// ListConfigs returns available game configurations
func (s *gameServiceImpl) ListConfigs(ctx context.Context) ([]*ConfigInfo, error) {
	return s.configs.ListConfigs()
}

// LoadConfig loads a specific game configuration
func (s *gameServiceImpl) LoadConfig(ctx context.Context, configName string) (*engine.GameConfig, error) {
	return s.configs.LoadConfig(configName)
}

// SaveConfig saves a game configuration to disk
func (s *gameServiceImpl) SaveConfig(ctx context.Context, configName string, config *engine.GameConfig) error {
	return s.configs.SaveConfig(configName, config)
}

// Leaderboard returns the best recorded games
func (s *gameServiceImpl) Leaderboard(ctx context.Context, configName string, limit int) ([]store.Score, error) {
	if s.scores == nil {
		return nil, ErrScoresDisabled
	}
	return s.scores.TopScores(ctx, strings.ToLower(configName), limit)
}

// SubmitScore attaches a player name to the recorded result of a finished game
func (s *gameServiceImpl) SubmitScore(ctx context.Context, sessionID, player string) (*store.Score, error) {
	if s.scores == nil {
		return nil, ErrScoresDisabled
	}

	sess, err := s.getSession(sessionID)
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	pending, ok := s.scoreIDs[strings.ToLower(sess.ID)]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrGameNotOver
	}

	select {
	case <-pending.done:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	if pending.err != nil {
		return nil, fmt.Errorf("failed to record score: %w", pending.err)
	}

	return s.scores.SetPlayer(ctx, pending.id, player)
}

// SessionTicked forwards tick snapshots to connected clients
func (s *gameServiceImpl) SessionTicked(sessionID string, state *engine.GameState) {
	s.broadcast(sessionID, state)
}

// SessionOver records the finished game on the leaderboard. It runs on the
// session loop goroutine, so persistence and the score write happen
// asynchronously.
func (s *gameServiceImpl) SessionOver(sessionID string, state *engine.GameState) {
	log.Printf("[GAME OVER] session %s: score %d, length %d, cause %s", sessionID, state.Score, state.Length(), state.DeathCause)

	if s.broadcaster != nil {
		s.broadcaster.BroadcastEvent(sessionID, "game_over", map[string]interface{}{
			"score":  state.Score,
			"length": state.Length(),
			"cause":  state.DeathCause,
		})
	}

	go s.persist(sessionID, "game over")

	if s.scores == nil {
		return
	}

	pending := &pendingScore{done: make(chan struct{})}
	s.mu.Lock()
	s.scoreIDs[strings.ToLower(sessionID)] = pending
	s.mu.Unlock()

	go s.recordScore(sessionID, state, pending)
}

// recordScore writes the finished game to the leaderboard off the tick loop
func (s *gameServiceImpl) recordScore(sessionID string, state *engine.GameState, pending *pendingScore) {
	defer close(pending.done)

	configID := strings.ToLower(state.ConfigName)
	if sess, err := s.sessions.Get(sessionID); err == nil {
		configID = s.getConfigID(sess)
	}

	ctx, cancel := context.WithTimeout(context.Background(), scoreTimeout)
	defer cancel()

	pending.id, pending.err = s.scores.RecordScore(ctx, store.Score{
		SessionID:  sessionID,
		Score:      state.Score,
		Length:     state.Length(),
		Ticks:      state.Tick,
		Cause:      string(state.DeathCause),
		ConfigName: configID,
	})
	if pending.err != nil {
		log.Printf("Warning: Failed to record score for session %s: %v", sessionID, pending.err)
	}
}
