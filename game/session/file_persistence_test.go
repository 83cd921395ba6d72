package session

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/wricardo/snake-arcade/game/config"
	"github.com/wricardo/snake-arcade/game/engine"
	"github.com/wricardo/snake-arcade/game/service"
)

func newTestPersistence(t *testing.T) (*FilePersistence, *config.Manager, string) {
	t.Helper()
	configManager, err := config.NewManager("../../configs")
	if err != nil {
		t.Fatalf("Failed to create config manager: %v", err)
	}

	dir := t.TempDir()
	persistence, err := NewFilePersistence(dir, configManager)
	if err != nil {
		t.Fatalf("Failed to create file persistence: %v", err)
	}
	return persistence, configManager, dir
}

func newStartedSession(t *testing.T, id string, gameConfig *engine.GameConfig) *service.Session {
	t.Helper()
	eng, err := engine.NewEngine(gameConfig)
	if err != nil {
		t.Fatalf("Failed to create engine: %v", err)
	}
	session := service.NewSession(id, "", gameConfig, eng)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	session.Start(ctx, nil)
	return session
}

// slowCopy keeps the preset name but ticks at the slowest rate so a test
// controls every step
func slowCopy(c *engine.GameConfig) *engine.GameConfig {
	cp := *c
	cp.TickMillis = engine.MaxTickMillis
	return &cp
}

func TestFilePersistence(t *testing.T) {
	persistence, configManager, dir := newTestPersistence(t)
	gameConfig := slowCopy(configManager.GetDefault())

	session := newStartedSession(t, "test1", gameConfig)
	ctx := context.Background()
	session.Runner.Pause(ctx)

	t.Run("Save and Load Session", func(t *testing.T) {
		if err := persistence.Save(session); err != nil {
			t.Fatalf("Failed to save session: %v", err)
		}
		if !persistence.Exists("test1") {
			t.Error("Session file should exist after save")
		}

		loaded, err := persistence.Load("test1")
		if err != nil {
			t.Fatalf("Failed to load session: %v", err)
		}
		if loaded.ID != "test1" {
			t.Errorf("Expected ID test1, got %s", loaded.ID)
		}
		if loaded.ConfigID != "classic" {
			t.Errorf("Expected config id classic, got %s", loaded.ConfigID)
		}
		if loaded.Config.Name != gameConfig.Name {
			t.Errorf("Expected config %s, got %s", gameConfig.Name, loaded.Config.Name)
		}
	})

	t.Run("Save State Changes", func(t *testing.T) {
		session.Runner.Resume(ctx)
		session.Runner.Turn(ctx, engine.Down)
		res, _ := session.Runner.StepOnce(ctx)
		session.Runner.Pause(ctx)

		if err := persistence.Save(session); err != nil {
			t.Fatalf("Failed to save session: %v", err)
		}

		loaded, err := persistence.Load("test1")
		if err != nil {
			t.Fatalf("Failed to load session: %v", err)
		}
		state := loaded.Engine.GetState()
		if state.Head() != res.State.Head() || state.Direction != engine.Down {
			t.Errorf("Expected head %v moving down, got %v moving %s", res.State.Head(), state.Head(), state.Direction)
		}
		if state.Tick != res.State.Tick {
			t.Errorf("Expected tick %d, got %d", res.State.Tick, state.Tick)
		}
	})

	t.Run("Running Game Comes Back Paused", func(t *testing.T) {
		running := newStartedSession(t, "run1", gameConfig)
		if err := persistence.Save(running); err != nil {
			t.Fatalf("Failed to save session: %v", err)
		}

		loaded, err := persistence.Load("run1")
		if err != nil {
			t.Fatalf("Failed to load session: %v", err)
		}
		if loaded.Engine.GetState().RunState != engine.Paused {
			t.Errorf("Expected restored game to be paused, got %s", loaded.Engine.GetState().RunState)
		}
	})

	t.Run("List All Sessions", func(t *testing.T) {
		os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0644)
		os.Mkdir(filepath.Join(dir, "subdir"), 0755)

		ids, err := persistence.ListAll()
		if err != nil {
			t.Fatalf("Failed to list sessions: %v", err)
		}
		found := map[string]bool{}
		for _, id := range ids {
			found[id] = true
		}
		if !found["test1"] || !found["run1"] || len(ids) != 2 {
			t.Errorf("Expected test1 and run1, got %v", ids)
		}
	})

	t.Run("Delete Session", func(t *testing.T) {
		if err := persistence.Delete("run1"); err != nil {
			t.Fatalf("Failed to delete session: %v", err)
		}
		if persistence.Exists("run1") {
			t.Error("Session should not exist after delete")
		}
		if err := persistence.Delete("run1"); !errors.Is(err, ErrSessionNotFound) {
			t.Errorf("Expected ErrSessionNotFound, got %v", err)
		}
	})

	t.Run("Error Cases", func(t *testing.T) {
		if err := persistence.Save(nil); err == nil {
			t.Error("Expected error saving nil session")
		}
		if _, err := persistence.Load("missing"); !errors.Is(err, ErrSessionNotFound) {
			t.Errorf("Expected ErrSessionNotFound, got %v", err)
		}
		if _, err := persistence.Load("../../etc/passwd"); !errors.Is(err, ErrInvalidSessionID) {
			t.Errorf("Expected ErrInvalidSessionID, got %v", err)
		}

		os.WriteFile(filepath.Join(dir, "broken.json"), []byte("{"), 0644)
		if _, err := persistence.Load("broken"); err == nil {
			t.Error("Expected error loading malformed session file")
		}
		os.Remove(filepath.Join(dir, "broken.json"))
	})
}

func TestFilePersistenceFileStructure(t *testing.T) {
	persistence, configManager, dir := newTestPersistence(t)
	session := newStartedSession(t, "Struct1", configManager.GetDefault())

	if err := persistence.Save(session); err != nil {
		t.Fatalf("Failed to save session: %v", err)
	}

	raw, err := os.ReadFile(filepath.Join(dir, "struct1.json"))
	if err != nil {
		t.Fatalf("Expected lowercase session file: %v", err)
	}

	var data map[string]interface{}
	if err := json.Unmarshal(raw, &data); err != nil {
		t.Fatalf("Session file is not valid JSON: %v", err)
	}
	for _, key := range []string{"id", "config_name", "created_at", "last_accessed_at", "game_state"} {
		if _, ok := data[key]; !ok {
			t.Errorf("Expected key %q in session file", key)
		}
	}

	gameState, ok := data["game_state"].(map[string]interface{})
	if !ok {
		t.Fatal("Expected game_state object")
	}
	for _, key := range []string{"snake", "direction", "food", "score", "run_state", "grid_size", "tick"} {
		if _, ok := gameState[key]; !ok {
			t.Errorf("Expected key %q in game_state", key)
		}
	}
}
