package service_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/wricardo/snake-arcade/game/engine"
	"github.com/wricardo/snake-arcade/game/service"
	"github.com/wricardo/snake-arcade/store"
)

// MockSessionManager implements service.SessionManager for testing
type MockSessionManager struct {
	mu       sync.Mutex
	sessions map[string]*service.Session
	observer service.SessionObserver
	saves    int
}

func NewMockSessionManager() *MockSessionManager {
	return &MockSessionManager{
		sessions: make(map[string]*service.Session),
	}
}

func (m *MockSessionManager) Create(id string, config *engine.GameConfig) (*service.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	// Generate ID if empty (mimics real session manager behavior)
	if id == "" {
		id = fmt.Sprintf("t%03d", len(m.sessions)+1)
	}
	if _, exists := m.sessions[id]; exists {
		return nil, errors.New("session already exists")
	}

	eng, err := engine.NewEngine(config)
	if err != nil {
		return nil, err
	}

	session := service.NewSession(id, "", config, eng)
	session.Start(context.Background(), m)
	m.sessions[id] = session
	return session, nil
}

func (m *MockSessionManager) Get(id string) (*service.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	session, exists := m.sessions[strings.ToLower(id)]
	if !exists {
		return nil, service.ErrSessionNotFound
	}
	return session, nil
}

func (m *MockSessionManager) GetOrCreate(id string, config *engine.GameConfig) (*service.Session, error) {
	if session, err := m.Get(id); err == nil {
		return session, nil
	}
	return m.Create(id, config)
}

func (m *MockSessionManager) List() []*service.Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := make([]*service.Session, 0, len(m.sessions))
	for _, session := range m.sessions {
		result = append(result, session)
	}
	return result
}

func (m *MockSessionManager) Delete(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	session, ok := m.sessions[id]
	if !ok {
		return service.ErrSessionNotFound
	}
	session.Stop()
	delete(m.sessions, id)
	return nil
}

func (m *MockSessionManager) UpdateLastAccessed(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if session, exists := m.sessions[id]; exists {
		session.LastAccessedAt = time.Now()
		return nil
	}
	return service.ErrSessionNotFound
}

func (m *MockSessionManager) Save(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saves++
	return nil
}

func (m *MockSessionManager) SetObserver(observer service.SessionObserver) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.observer = observer
}

func (m *MockSessionManager) SessionTicked(id string, state *engine.GameState) {
	m.mu.Lock()
	obs := m.observer
	m.mu.Unlock()
	if obs != nil {
		obs.SessionTicked(id, state)
	}
}

func (m *MockSessionManager) SessionOver(id string, state *engine.GameState) {
	m.mu.Lock()
	obs := m.observer
	m.mu.Unlock()
	if obs != nil {
		obs.SessionOver(id, state)
	}
}

func (m *MockSessionManager) closeAll() {
	for _, s := range m.List() {
		s.Stop()
	}
}

// MockConfigManager implements service.ConfigManager for testing
type MockConfigManager struct {
	configs map[string]*engine.GameConfig
}

func testConfig(name string, grid int, start engine.Cell) *engine.GameConfig {
	config := &engine.GameConfig{
		Name:           name,
		Description:    "Test configuration",
		GridSize:       grid,
		TickMillis:     engine.MaxTickMillis,
		Start:          start,
		StartDirection: engine.Right,
	}
	config.Messages.Welcome = "Welcome!"
	config.Messages.AteFood = "Score: %d"
	config.Messages.HitWall = "Hit wall!"
	config.Messages.HitSelf = "Hit self!"
	config.Messages.Paused = "Paused"
	config.Messages.Resumed = "Go!"
	return config
}

func NewMockConfigManager() *MockConfigManager {
	return &MockConfigManager{
		configs: map[string]*engine.GameConfig{
			"test":  testConfig("test", 10, engine.Cell{X: 5, Y: 5}),
			"small": testConfig("Small", 5, engine.Cell{X: 3, Y: 2}),
		},
	}
}

func (m *MockConfigManager) LoadConfig(name string) (*engine.GameConfig, error) {
	if config, ok := m.configs[name]; ok {
		return config, nil
	}
	return nil, service.ErrConfigNotFound
}

func (m *MockConfigManager) ListConfigs() ([]*service.ConfigInfo, error) {
	var result []*service.ConfigInfo
	for id, config := range m.configs {
		result = append(result, &service.ConfigInfo{
			Filename:    id + ".json",
			ConfigID:    id,
			Name:        config.Name,
			Description: config.Description,
			GridSize:    config.GridSize,
			TickMillis:  config.TickMillis,
		})
	}
	return result, nil
}

func (m *MockConfigManager) GetDefault() *engine.GameConfig {
	return m.configs["test"]
}

func (m *MockConfigManager) SaveConfig(name string, config *engine.GameConfig) error {
	if err := engine.ValidateGameConfig(config); err != nil {
		return err
	}
	m.configs[name] = config
	return nil
}

// MockScoreStore implements service.ScoreStore for testing
type MockScoreStore struct {
	mu     sync.Mutex
	scores []store.Score

	// block, when set, holds RecordScore until it is closed
	block chan struct{}
}

func (m *MockScoreStore) RecordScore(ctx context.Context, score store.Score) (int64, error) {
	if m.block != nil {
		select {
		case <-m.block:
		case <-ctx.Done():
			return 0, ctx.Err()
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	score.ID = int64(len(m.scores) + 1)
	if score.Player == "" {
		score.Player = "anonymous"
	}
	m.scores = append(m.scores, score)
	return score.ID, nil
}

func (m *MockScoreStore) TopScores(ctx context.Context, configName string, limit int) ([]store.Score, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []store.Score
	for _, s := range m.scores {
		if configName == "" || s.ConfigName == configName {
			result = append(result, s)
		}
	}
	return result, nil
}

func (m *MockScoreStore) SetPlayer(ctx context.Context, id int64, player string) (*store.Score, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if id < 1 || int(id) > len(m.scores) {
		return nil, store.ErrNotFound
	}
	m.scores[id-1].Player = player
	sc := m.scores[id-1]
	return &sc, nil
}

func (m *MockScoreStore) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.scores)
}

// MockBroadcaster records broadcasts
type MockBroadcaster struct {
	mu     sync.Mutex
	states map[string]int
	events []string
}

func (b *MockBroadcaster) BroadcastToSession(sessionID string, state *engine.GameState) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.states == nil {
		b.states = map[string]int{}
	}
	b.states[sessionID]++
}

func (b *MockBroadcaster) BroadcastEvent(sessionID string, event string, data interface{}) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, sessionID+":"+event)
}

func (b *MockBroadcaster) stateCount(id string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.states[id]
}

type fixture struct {
	svc         service.GameService
	sessions    *MockSessionManager
	scores      *MockScoreStore
	broadcaster *MockBroadcaster
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		sessions:    NewMockSessionManager(),
		scores:      &MockScoreStore{},
		broadcaster: &MockBroadcaster{},
	}
	f.svc = service.NewGameService(f.sessions, NewMockConfigManager(),
		service.WithScoreStore(f.scores),
		service.WithBroadcaster(f.broadcaster),
	)
	t.Cleanup(f.sessions.closeAll)
	return f
}

func TestGameService_CreateSession(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	t.Run("default config", func(t *testing.T) {
		info, err := f.svc.CreateSession(ctx, "")
		if err != nil {
			t.Fatalf("CreateSession failed: %v", err)
		}
		if info.ConfigName != "test" {
			t.Errorf("Expected config_name 'test', got '%s'", info.ConfigName)
		}
		if info.TickMillis != engine.MaxTickMillis {
			t.Errorf("Expected tick_ms %d, got %d", engine.MaxTickMillis, info.TickMillis)
		}
		state := info.GameState
		if state == nil || len(state.Snake) != 1 || state.Snake[0] != (engine.Cell{X: 5, Y: 5}) {
			t.Fatalf("Unexpected initial state: %+v", state)
		}
		if state.RunState != engine.Running || state.Score != 0 {
			t.Errorf("Expected a running game with score 0, got %+v", state)
		}
	})

	t.Run("named config", func(t *testing.T) {
		info, err := f.svc.CreateSession(ctx, "small")
		if err != nil {
			t.Fatalf("CreateSession failed: %v", err)
		}
		if info.ConfigName != "small" || info.GameState.GridSize != 5 {
			t.Errorf("Expected small 5x5 session, got %s %d", info.ConfigName, info.GameState.GridSize)
		}
	})

	t.Run("unknown config lists alternatives", func(t *testing.T) {
		_, err := f.svc.CreateSession(ctx, "nope")
		if err == nil || !strings.Contains(err.Error(), "Available configs") {
			t.Errorf("Expected helpful error, got %v", err)
		}
	})
}

func TestGameService_SessionLookup(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	info, _ := f.svc.CreateSession(ctx, "test")

	got, err := f.svc.GetSession(ctx, info.ID)
	if err != nil || got.ID != info.ID {
		t.Fatalf("GetSession failed: %v", err)
	}

	list, _ := f.svc.ListSessions(ctx)
	if len(list) != 1 {
		t.Errorf("Expected 1 session, got %d", len(list))
	}

	if _, err := f.svc.GetSession(ctx, "zzzz"); !errors.Is(err, service.ErrSessionNotFound) {
		t.Errorf("Expected ErrSessionNotFound, got %v", err)
	}

	if err := f.svc.DeleteSession(ctx, info.ID); err != nil {
		t.Fatalf("DeleteSession failed: %v", err)
	}
	if _, err := f.svc.GetGameState(ctx, info.ID); !errors.Is(err, service.ErrSessionNotFound) {
		t.Errorf("Expected ErrSessionNotFound after delete, got %v", err)
	}
}

func TestGameService_TurnAndStep(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	info, _ := f.svc.CreateSession(ctx, "test")

	t.Run("reverse is rejected", func(t *testing.T) {
		res, err := f.svc.Turn(ctx, info.ID, "left")
		if err != nil {
			t.Fatalf("Turn failed: %v", err)
		}
		if res.Accepted {
			t.Error("Expected reversal to be rejected")
		}
		if !strings.Contains(res.Message, "Cannot reverse") {
			t.Errorf("Unexpected message %q", res.Message)
		}
	})

	t.Run("invalid direction", func(t *testing.T) {
		_, err := f.svc.Turn(ctx, info.ID, "diagonal")
		if !errors.Is(err, service.ErrInvalidDirection) {
			t.Errorf("Expected ErrInvalidDirection, got %v", err)
		}
	})

	t.Run("key names are accepted", func(t *testing.T) {
		res, err := f.svc.Turn(ctx, info.ID, "ArrowUp")
		if err != nil || !res.Accepted || res.Direction != "up" {
			t.Fatalf("Expected ArrowUp to map to up, got %+v %v", res, err)
		}
	})

	t.Run("step applies the buffered direction", func(t *testing.T) {
		res, err := f.svc.Step(ctx, info.ID)
		if err != nil {
			t.Fatalf("Step failed: %v", err)
		}
		if res.Direction != "up" || res.GameState.Head() != (engine.Cell{X: 5, Y: 4}) {
			t.Errorf("Expected head at (5,4) moving up, got %v %s", res.GameState.Head(), res.Direction)
		}
		if res.Outcome != "moved" && res.Outcome != "ate" {
			t.Errorf("Unexpected outcome %s", res.Outcome)
		}
		if len(res.SafeMoves) == 0 {
			t.Error("Expected safe moves to be reported")
		}
	})

	t.Run("state is broadcast", func(t *testing.T) {
		if f.broadcaster.stateCount(info.ID) == 0 {
			t.Error("Expected at least one broadcast for the session")
		}
	})
}

func TestGameService_PauseResumeToggle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	info, _ := f.svc.CreateSession(ctx, "test")

	state, err := f.svc.Pause(ctx, info.ID)
	if err != nil || state.RunState != engine.Paused {
		t.Fatalf("Expected paused, got %v %v", state, err)
	}

	res, _ := f.svc.Step(ctx, info.ID)
	if res.Outcome != "idle" || res.GameState.Tick != 0 {
		t.Errorf("Expected idle step while paused, got %s tick %d", res.Outcome, res.GameState.Tick)
	}

	state, _ = f.svc.Resume(ctx, info.ID)
	if state.RunState != engine.Running || state.Message != "Go!" {
		t.Errorf("Expected running with resume message, got %s %q", state.RunState, state.Message)
	}

	state, _ = f.svc.Toggle(ctx, info.ID)
	if state.RunState != engine.Paused {
		t.Errorf("Expected toggle to pause, got %s", state.RunState)
	}
}

func TestGameService_GameOverRecordsScore(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	info, _ := f.svc.CreateSession(ctx, "small")

	if _, err := f.svc.SubmitScore(ctx, info.ID, "ada"); !errors.Is(err, service.ErrGameNotOver) {
		t.Errorf("Expected ErrGameNotOver before the game ends, got %v", err)
	}

	// Start (3,2) heading right on a 5x5 grid: the second tick hits the wall
	f.svc.Step(ctx, info.ID)
	res, _ := f.svc.Step(ctx, info.ID)
	if res.Outcome != "wall" || res.GameState.RunState != engine.Over {
		t.Fatalf("Expected wall game over, got %s", res.Outcome)
	}

	// SubmitScore waits for the asynchronous leaderboard write
	score, err := f.svc.SubmitScore(ctx, info.ID, "ada")
	if err != nil || score.Player != "ada" {
		t.Errorf("Expected named score, got %+v %v", score, err)
	}

	if f.scores.count() != 1 {
		t.Fatalf("Expected one recorded score, got %d", f.scores.count())
	}

	board, err := f.svc.Leaderboard(ctx, "SMALL", 10)
	if err != nil || len(board) != 1 {
		t.Fatalf("Expected one leaderboard entry, got %v %v", board, err)
	}
	if board[0].Cause != "wall" || board[0].Ticks != res.GameState.Tick {
		t.Errorf("Unexpected leaderboard entry %+v", board[0])
	}

	// Turning after game over is refused
	turn, _ := f.svc.Turn(ctx, info.ID, "up")
	if turn.Accepted {
		t.Error("Expected turn to be refused after game over")
	}

	// Reset forgets the recorded game
	state, _ := f.svc.Reset(ctx, info.ID)
	if state.RunState != engine.Running || state.Tick != 0 {
		t.Errorf("Expected a fresh game after reset, got %+v", state)
	}
	if _, err := f.svc.SubmitScore(ctx, info.ID, "bob"); !errors.Is(err, service.ErrGameNotOver) {
		t.Errorf("Expected ErrGameNotOver after reset, got %v", err)
	}
}

func TestGameService_SlowScoreStoreDoesNotBlockLoop(t *testing.T) {
	f := newFixture(t)
	f.scores.block = make(chan struct{})
	ctx := context.Background()
	info, _ := f.svc.CreateSession(ctx, "small")

	f.svc.Step(ctx, info.ID)
	if res, _ := f.svc.Step(ctx, info.ID); res.Outcome != "wall" {
		t.Fatalf("Expected wall game over, got %s", res.Outcome)
	}

	short, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
	defer cancel()
	if _, err := f.svc.SubmitScore(short, info.ID, "ada"); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Expected SubmitScore to wait for the pending write, got %v", err)
	}

	// The loop keeps serving commands while the write is stuck
	bounded, cancelBounded := context.WithTimeout(ctx, time.Second)
	defer cancelBounded()
	state, err := f.svc.Reset(bounded, info.ID)
	if err != nil || state.RunState != engine.Running {
		t.Fatalf("Expected reset while the score write is pending, got %+v %v", state, err)
	}
	if res, err := f.svc.Step(bounded, info.ID); err != nil || res.GameState.Tick != 1 {
		t.Fatalf("Expected a tick while the score write is pending, got %+v %v", res, err)
	}

	close(f.scores.block)
	deadline := time.Now().Add(time.Second)
	for f.scores.count() != 1 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if f.scores.count() != 1 {
		t.Errorf("Expected the pending score to be recorded, got %d", f.scores.count())
	}
}

func TestGameService_LeaderboardDisabled(t *testing.T) {
	sessions := NewMockSessionManager()
	t.Cleanup(sessions.closeAll)
	svc := service.NewGameService(sessions, NewMockConfigManager())

	if _, err := svc.Leaderboard(context.Background(), "", 10); !errors.Is(err, service.ErrScoresDisabled) {
		t.Errorf("Expected ErrScoresDisabled, got %v", err)
	}
}

func TestGameService_Configs(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	configs, err := f.svc.ListConfigs(ctx)
	if err != nil || len(configs) != 2 {
		t.Fatalf("Expected 2 configs, got %d %v", len(configs), err)
	}

	custom := testConfig("Custom", 12, engine.Cell{X: 1, Y: 1})
	if err := f.svc.SaveConfig(ctx, "custom", custom); err != nil {
		t.Fatalf("SaveConfig failed: %v", err)
	}
	loaded, err := f.svc.LoadConfig(ctx, "custom")
	if err != nil || loaded.GridSize != 12 {
		t.Errorf("Expected saved config, got %+v %v", loaded, err)
	}
}
