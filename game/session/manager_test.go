package session

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/wricardo/snake-arcade/game/engine"
)

// createTestConfig ticks slowly so sessions barely move during a test
func createTestConfig() *engine.GameConfig {
	config := &engine.GameConfig{
		Name:           "Test Config",
		Description:    "Test configuration",
		GridSize:       10,
		TickMillis:     engine.MaxTickMillis,
		Start:          engine.Cell{X: 5, Y: 5},
		StartDirection: engine.Right,
	}
	config.Messages.Welcome = "Welcome!"
	config.Messages.AteFood = "Score: %d"
	config.Messages.HitWall = "Hit wall!"
	config.Messages.HitSelf = "Hit self!"
	config.Messages.Paused = "Paused"
	return config
}

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	m := NewManager()
	t.Cleanup(m.Close)
	return m
}

type recordingObserver struct {
	mu    sync.Mutex
	ticks map[string]int
	over  map[string]int
}

func newRecordingObserver() *recordingObserver {
	return &recordingObserver{ticks: map[string]int{}, over: map[string]int{}}
}

func (o *recordingObserver) SessionTicked(id string, _ *engine.GameState) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.ticks[id]++
}

func (o *recordingObserver) SessionOver(id string, _ *engine.GameState) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.over[id]++
}

func (o *recordingObserver) counts(id string) (int, int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.ticks[id], o.over[id]
}

func TestManager_Create(t *testing.T) {
	manager := newTestManager(t)
	config := createTestConfig()

	t.Run("create with custom ID", func(t *testing.T) {
		session, err := manager.Create("test-session", config)
		if err != nil {
			t.Fatalf("Failed to create session: %v", err)
		}
		if session.ID != "test-session" {
			t.Errorf("Expected session ID 'test-session', got '%s'", session.ID)
		}
		if session.Engine == nil || session.Runner == nil {
			t.Fatal("Expected engine and runner to be initialized")
		}
		select {
		case <-session.Runner.Started():
		default:
			t.Error("Expected runner to be started")
		}
	})

	t.Run("create with auto-generated ID", func(t *testing.T) {
		session, err := manager.Create("", config)
		if err != nil {
			t.Fatalf("Failed to create session: %v", err)
		}
		if len(session.ID) != 4 {
			t.Errorf("Expected 4-character ID, got '%s'", session.ID)
		}
	})

	t.Run("duplicate session ID", func(t *testing.T) {
		_, err := manager.Create("test-session", config)
		if !errors.Is(err, ErrSessionAlreadyExists) {
			t.Errorf("Expected ErrSessionAlreadyExists, got %v", err)
		}
	})

	t.Run("case-insensitive duplicate check", func(t *testing.T) {
		_, err := manager.Create("TEST-SESSION", config)
		if !errors.Is(err, ErrSessionAlreadyExists) {
			t.Errorf("Expected ErrSessionAlreadyExists, got %v", err)
		}
	})

	t.Run("invalid ID", func(t *testing.T) {
		_, err := manager.Create("../evil", config)
		if !errors.Is(err, ErrInvalidSessionID) {
			t.Errorf("Expected ErrInvalidSessionID, got %v", err)
		}
	})

	t.Run("invalid config", func(t *testing.T) {
		bad := createTestConfig()
		bad.GridSize = 1
		if _, err := manager.Create("bad", bad); err == nil {
			t.Error("Expected error for invalid config")
		}
	})
}

func TestManager_Get(t *testing.T) {
	manager := newTestManager(t)
	created, _ := manager.Create("AbC1", createTestConfig())

	t.Run("get existing session", func(t *testing.T) {
		session, err := manager.Get("AbC1")
		if err != nil {
			t.Fatalf("Failed to get session: %v", err)
		}
		if session != created {
			t.Error("Expected the same session instance")
		}
	})

	t.Run("case-insensitive get", func(t *testing.T) {
		session, err := manager.Get("abc1")
		if err != nil {
			t.Fatalf("Failed to get session: %v", err)
		}
		if session != created {
			t.Error("Expected the same session instance")
		}
	})

	t.Run("get non-existent session", func(t *testing.T) {
		_, err := manager.Get("zzzz")
		if !errors.Is(err, ErrSessionNotFound) {
			t.Errorf("Expected ErrSessionNotFound, got %v", err)
		}
	})
}

func TestManager_GetOrCreate(t *testing.T) {
	manager := newTestManager(t)
	config := createTestConfig()

	first, err := manager.GetOrCreate("new1", config)
	if err != nil {
		t.Fatalf("Failed to create session: %v", err)
	}
	second, err := manager.GetOrCreate("NEW1", config)
	if err != nil {
		t.Fatalf("Failed to get session: %v", err)
	}
	if first != second {
		t.Error("Expected GetOrCreate to return the existing session")
	}
	if manager.Count() != 1 {
		t.Errorf("Expected 1 session, got %d", manager.Count())
	}
}

func TestManager_Delete(t *testing.T) {
	manager := newTestManager(t)
	config := createTestConfig()

	t.Run("delete existing session stops its loop", func(t *testing.T) {
		session, _ := manager.Create("del1", config)
		if err := manager.Delete("del1"); err != nil {
			t.Fatalf("Failed to delete session: %v", err)
		}
		select {
		case <-session.Runner.Done():
		case <-time.After(time.Second):
			t.Fatal("Expected runner to stop after delete")
		}
		if _, err := manager.Get("del1"); !errors.Is(err, ErrSessionNotFound) {
			t.Errorf("Expected session to be gone, got %v", err)
		}
	})

	t.Run("delete non-existent session", func(t *testing.T) {
		if err := manager.Delete("nope"); !errors.Is(err, ErrSessionNotFound) {
			t.Errorf("Expected ErrSessionNotFound, got %v", err)
		}
	})

	t.Run("case-insensitive delete", func(t *testing.T) {
		manager.Create("Del2", config)
		if err := manager.Delete("DEL2"); err != nil {
			t.Errorf("Expected case-insensitive delete, got %v", err)
		}
	})

	t.Run("delete from memory", func(t *testing.T) {
		manager.Create("mem1", config)
		if err := manager.DeleteFromMemory("MEM1"); err != nil {
			t.Errorf("Expected delete from memory to succeed, got %v", err)
		}
		if err := manager.DeleteFromMemory("mem1"); !errors.Is(err, ErrSessionNotFound) {
			t.Errorf("Expected ErrSessionNotFound, got %v", err)
		}
	})
}

func TestManager_List(t *testing.T) {
	manager := newTestManager(t)
	config := createTestConfig()

	if len(manager.List()) != 0 {
		t.Error("Expected empty list initially")
	}

	ids := []string{"s1", "s2", "s3"}
	for _, id := range ids {
		manager.Create(id, config)
	}

	sessions := manager.List()
	if len(sessions) != len(ids) {
		t.Fatalf("Expected %d sessions, got %d", len(ids), len(sessions))
	}
	found := map[string]bool{}
	for _, s := range sessions {
		found[s.ID] = true
	}
	for _, id := range ids {
		if !found[id] {
			t.Errorf("Session %s not found in list", id)
		}
	}
}

func TestManager_CleanupExpired(t *testing.T) {
	manager := newTestManager(t)
	config := createTestConfig()

	old, _ := manager.Create("old1", config)
	manager.Create("new1", config)

	manager.mu.Lock()
	old.LastAccessedAt = time.Now().Add(-2 * time.Hour)
	manager.mu.Unlock()

	removed := manager.CleanupExpiredSessions(time.Hour)
	if removed != 1 {
		t.Errorf("Expected 1 removed session, got %d", removed)
	}
	if manager.Count() != 1 {
		t.Errorf("Expected 1 remaining session, got %d", manager.Count())
	}
	select {
	case <-old.Runner.Done():
	case <-time.After(time.Second):
		t.Error("Expected expired session loop to stop")
	}
}

func TestManager_UpdateLastAccessed(t *testing.T) {
	manager := newTestManager(t)
	session, _ := manager.Create("acc1", createTestConfig())

	manager.mu.Lock()
	session.LastAccessedAt = time.Now().Add(-time.Hour)
	before := session.LastAccessedAt
	manager.mu.Unlock()

	if err := manager.UpdateLastAccessed("ACC1"); err != nil {
		t.Fatalf("UpdateLastAccessed failed: %v", err)
	}

	manager.mu.RLock()
	after := session.LastAccessedAt
	manager.mu.RUnlock()
	if !after.After(before) {
		t.Error("Expected last accessed time to move forward")
	}

	if err := manager.UpdateLastAccessed("none"); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("Expected ErrSessionNotFound, got %v", err)
	}
}

func TestManager_Observer(t *testing.T) {
	manager := newTestManager(t)
	config := createTestConfig()
	config.GridSize = 5
	config.Start = engine.Cell{X: 3, Y: 2}

	session, _ := manager.Create("obs1", config)

	// Registered after creation; forwarding still reaches it
	observer := newRecordingObserver()
	manager.SetObserver(observer)

	ctx := context.Background()
	session.Runner.StepOnce(ctx)
	session.Runner.StepOnce(ctx)

	ticks, over := observer.counts("obs1")
	if ticks != 2 {
		t.Errorf("Expected 2 tick notifications, got %d", ticks)
	}
	if over != 1 {
		t.Errorf("Expected 1 game over notification, got %d", over)
	}
}

func TestManager_ConcurrentAccess(t *testing.T) {
	manager := newTestManager(t)
	config := createTestConfig()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			session, err := manager.Create("", config)
			if err != nil {
				t.Errorf("Create failed: %v", err)
				return
			}
			if _, err := manager.Get(strings.ToUpper(session.ID)); err != nil {
				t.Errorf("Get failed: %v", err)
			}
			manager.UpdateLastAccessed(session.ID)
			if session.State() == nil {
				t.Errorf("Expected state for %s", session.ID)
			}
		}()
	}
	wg.Wait()

	if manager.Count() != 20 {
		t.Errorf("Expected 20 sessions, got %d", manager.Count())
	}
}

func TestManager_SessionIsolation(t *testing.T) {
	manager := newTestManager(t)
	config := createTestConfig()

	a, _ := manager.Create("iso1", config)
	b, _ := manager.Create("iso2", config)

	ctx := context.Background()
	a.Runner.Turn(ctx, engine.Down)
	a.Runner.StepOnce(ctx)

	stateA := a.State()
	stateB := b.State()
	if stateA.Head() == stateB.Head() {
		t.Error("Expected sessions to move independently")
	}
	if stateB.Direction != engine.Right {
		t.Errorf("Expected session B to keep its direction, got %s", stateB.Direction)
	}
}

func TestManager_SessionIDGeneration(t *testing.T) {
	manager := newTestManager(t)
	seen := map[string]bool{}
	for i := 0; i < 50; i++ {
		id := manager.generateSessionID()
		if len(id) != 4 {
			t.Errorf("Expected 4-character ID, got %q", id)
		}
		if strings.ToLower(id) != id {
			t.Errorf("Expected lowercase hex ID, got %q", id)
		}
		seen[id] = true
	}
	if len(seen) < 40 {
		t.Errorf("Expected mostly unique IDs, got %d distinct of 50", len(seen))
	}
}
