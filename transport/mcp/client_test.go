package mcp

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/wricardo/snake-arcade/game/engine"
	"github.com/wricardo/snake-arcade/game/service"
	"github.com/wricardo/snake-arcade/store"
)

func testState() *engine.GameState {
	return &engine.GameState{
		Snake:      []engine.Cell{{X: 2, Y: 1}, {X: 1, Y: 1}, {X: 0, Y: 1}},
		Direction:  engine.Right,
		Food:       engine.Cell{X: 3, Y: 3},
		Score:      2,
		RunState:   engine.Running,
		GridSize:   5,
		Tick:       7,
		ConfigName: "Tiny",
	}
}

func callTool(name string, args map[string]interface{}) mcp.CallToolRequest {
	return mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Name:      name,
			Arguments: args,
		},
	}
}

func resultText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	if result == nil {
		t.Fatal("Expected result, got nil")
	}
	text, ok := result.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatal("Expected text content in result")
	}
	return text.Text
}

func TestNewClient(t *testing.T) {
	baseURL := "http://localhost:8080"
	client := NewClient(baseURL)

	if client.baseURL != baseURL {
		t.Errorf("Expected baseURL %s, got %s", baseURL, client.baseURL)
	}
	if client.httpClient == nil {
		t.Error("Expected HTTP client to be initialized")
	}
	if client.GetMCPServer() == nil {
		t.Error("Expected MCP server to be initialized")
	}
}

func TestClient_apiCall(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Content-Type") != "application/json" {
			t.Errorf("Expected JSON content type, got %q", r.Header.Get("Content-Type"))
		}
		var body map[string]string
		json.NewDecoder(r.Body).Decode(&body)
		json.NewEncoder(w).Encode(map[string]string{"echo": body["direction"]})
	}))
	defer server.Close()

	client := NewClient(server.URL)

	var result map[string]string
	if err := client.apiCall(context.Background(), "POST", "/api", map[string]string{"direction": "up"}, &result); err != nil {
		t.Fatalf("apiCall failed: %v", err)
	}
	if result["echo"] != "up" {
		t.Errorf("Expected echo 'up', got %q", result["echo"])
	}
}

func TestClient_apiCall_Errors(t *testing.T) {
	t.Run("unreachable", func(t *testing.T) {
		client := NewClient("http://127.0.0.1:1")
		if err := client.apiCall(context.Background(), "GET", "/api", nil, nil); err == nil {
			t.Error("Expected error for unreachable server")
		}
	})

	t.Run("error body", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
			json.NewEncoder(w).Encode(map[string]string{"error": "session not found"})
		}))
		defer server.Close()

		err := NewClient(server.URL).apiCall(context.Background(), "GET", "/api", nil, nil)
		if err == nil || err.Error() != "session not found" {
			t.Errorf("Expected 'session not found', got %v", err)
		}
	})

	t.Run("plain status", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
			w.Write([]byte("Internal Server Error"))
		}))
		defer server.Close()

		err := NewClient(server.URL).apiCall(context.Background(), "GET", "/api", nil, nil)
		if err == nil || !strings.Contains(err.Error(), "API error") {
			t.Errorf("Expected 'API error', got %v", err)
		}
	})
}

func TestClient_handleCreateSession(t *testing.T) {
	var gotConfig string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != "POST" || r.URL.Path != "/api/sessions" {
			t.Errorf("Expected POST /api/sessions, got %s %s", r.Method, r.URL.Path)
		}
		var body map[string]string
		json.NewDecoder(r.Body).Decode(&body)
		gotConfig = body["config_id"]

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(service.SessionInfo{
			ID:         "abc123",
			ConfigName: "Tiny",
			TickMillis: 150,
			GameState:  testState(),
		})
	}))
	defer server.Close()

	client := NewClient(server.URL)
	result, err := client.handleCreateSession(context.Background(), callTool("create_session", map[string]interface{}{
		"config_id": "tiny",
	}))
	if err != nil {
		t.Fatalf("handleCreateSession failed: %v", err)
	}

	text := resultText(t, result)
	if gotConfig != "tiny" {
		t.Errorf("Expected config_id 'tiny', got %q", gotConfig)
	}
	for _, want := range []string{"abc123", "Tiny", "150ms", "H"} {
		if !strings.Contains(text, want) {
			t.Errorf("Expected %q in result, got: %s", want, text)
		}
	}
}

func TestClient_handleTurn(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/sessions/abc/turn" {
			t.Errorf("Unexpected path %s", r.URL.Path)
		}
		var body map[string]string
		json.NewDecoder(r.Body).Decode(&body)

		result := service.TurnResult{Direction: body["direction"], GameState: testState()}
		if body["direction"] == "left" {
			result.Message = "cannot reverse"
		} else {
			result.Accepted = true
		}
		json.NewEncoder(w).Encode(result)
	}))
	defer server.Close()

	client := NewClient(server.URL)

	tests := []struct {
		direction string
		want      string
	}{
		{"up", "Turn up queued"},
		{"left", "rejected: cannot reverse"},
	}
	for _, tt := range tests {
		t.Run(tt.direction, func(t *testing.T) {
			result, err := client.handleTurn(context.Background(), callTool("turn", map[string]interface{}{
				"session_id": "abc",
				"direction":  tt.direction,
			}))
			if err != nil {
				t.Fatalf("handleTurn failed: %v", err)
			}
			if text := resultText(t, result); !strings.Contains(text, tt.want) {
				t.Errorf("Expected %q in result, got: %s", tt.want, text)
			}
		})
	}
}

func TestClient_handleStep(t *testing.T) {
	t.Run("stops when the game ends", func(t *testing.T) {
		steps := 0
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/api/sessions/abc/step" {
				t.Errorf("Unexpected path %s", r.URL.Path)
			}
			steps++
			state := testState()
			result := service.StepResult{Outcome: "moved", Direction: "right", GameState: state, SafeMoves: []string{"right", "down"}, DistanceToFood: 3}
			if steps == 2 {
				state.RunState = engine.Over
				state.DeathCause = engine.CauseWall
				result.Outcome = "wall"
				result.SafeMoves = []string{}
			}
			json.NewEncoder(w).Encode(result)
		}))
		defer server.Close()

		result, err := NewClient(server.URL).handleStep(context.Background(), callTool("step", map[string]interface{}{
			"session_id": "abc",
			"count":      float64(5),
		}))
		if err != nil {
			t.Fatalf("handleStep failed: %v", err)
		}

		text := resultText(t, result)
		if steps != 2 {
			t.Errorf("Expected 2 step calls, got %d", steps)
		}
		for _, want := range []string{"Applied 2 of 5 ticks", "GAME OVER (wall)", "Safe moves: none"} {
			if !strings.Contains(text, want) {
				t.Errorf("Expected %q in result, got: %s", want, text)
			}
		}
	})

	t.Run("idle session", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			state := testState()
			state.RunState = engine.Paused
			json.NewEncoder(w).Encode(service.StepResult{Outcome: "idle", GameState: state})
		}))
		defer server.Close()

		result, _ := NewClient(server.URL).handleStep(context.Background(), callTool("step", map[string]interface{}{
			"session_id": "abc",
		}))
		if text := resultText(t, result); !strings.Contains(text, "Applied 0 of 1 ticks") {
			t.Errorf("Expected no ticks applied, got: %s", text)
		}
	})

	t.Run("count out of range", func(t *testing.T) {
		result, _ := NewClient("http://127.0.0.1:1").handleStep(context.Background(), callTool("step", map[string]interface{}{
			"session_id": "abc",
			"count":      float64(maxSteps + 1),
		}))
		if !result.IsError {
			t.Error("Expected error result for count out of range")
		}
	})
}

func TestClient_commands(t *testing.T) {
	var paths []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.Path)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"message": "ok " + r.URL.Path,
			"state":   testState(),
		})
	}))
	defer server.Close()

	client := NewClient(server.URL)
	ctx := context.Background()
	args := map[string]interface{}{"session_id": "abc"}

	client.handlePause(ctx, callTool("pause", args))
	client.handleResume(ctx, callTool("resume", args))
	result, _ := client.handleReset(ctx, callTool("reset_game", args))

	want := []string{"/api/sessions/abc/pause", "/api/sessions/abc/resume", "/api/sessions/abc/reset"}
	if strings.Join(paths, ",") != strings.Join(want, ",") {
		t.Errorf("Expected paths %v, got %v", want, paths)
	}
	if text := resultText(t, result); !strings.Contains(text, "ok /api/sessions/abc/reset") {
		t.Errorf("Expected reset message, got: %s", text)
	}
}

func TestClient_handleSessionErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(map[string]string{"error": "session not found"})
	}))
	defer server.Close()

	client := NewClient(server.URL)
	result, err := client.handleGameState(context.Background(), callTool("game_state", map[string]interface{}{
		"session_id": "missing",
	}))
	if err != nil {
		t.Fatalf("Expected tool error result, got Go error %v", err)
	}
	if !result.IsError {
		t.Error("Expected IsError result")
	}
	if text := resultText(t, result); text != "session not found" {
		t.Errorf("Expected 'session not found', got %q", text)
	}
}

func TestClient_handleListConfigsAndSessions(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/configs":
			json.NewEncoder(w).Encode([]service.ConfigInfo{
				{ConfigID: "classic", Name: "Classic", Description: "The original", GridSize: 20, TickMillis: 120},
			})
		case "/api/sessions":
			json.NewEncoder(w).Encode(map[string]interface{}{
				"count": 1,
				"sessions": []service.SessionInfo{
					{ID: "abc", ConfigName: "Classic", CreatedAt: time.Now(), GameState: testState()},
				},
			})
		default:
			t.Errorf("Unexpected path %s", r.URL.Path)
		}
	}))
	defer server.Close()

	client := NewClient(server.URL)

	result, _ := client.handleListConfigs(context.Background(), callTool("list_configs", nil))
	if text := resultText(t, result); !strings.Contains(text, "Grid: 20x20, Tick: 120ms") {
		t.Errorf("Expected grid and tick in configs, got: %s", text)
	}

	result, _ = client.handleListSessions(context.Background(), callTool("list_sessions", nil))
	if text := resultText(t, result); !strings.Contains(text, "abc (Config: Classic, running, Score: 2") {
		t.Errorf("Expected session line, got: %s", text)
	}
}

func TestClient_handleLeaderboard(t *testing.T) {
	var query string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		query = r.URL.RawQuery
		json.NewEncoder(w).Encode(map[string]interface{}{
			"scores": []store.Score{
				{Player: "ada", Score: 42, Length: 45, Cause: "self", ConfigName: "Classic"},
			},
		})
	}))
	defer server.Close()

	result, _ := NewClient(server.URL).handleLeaderboard(context.Background(), callTool("leaderboard", map[string]interface{}{
		"config_id": "Classic",
		"limit":     float64(5),
	}))
	if query != "config=Classic&limit=5" {
		t.Errorf("Expected query 'config=Classic&limit=5', got %q", query)
	}
	if text := resultText(t, result); !strings.Contains(text, "ada") || !strings.Contains(text, "42") {
		t.Errorf("Expected leaderboard entry, got: %s", text)
	}
}

func TestFormatGameState(t *testing.T) {
	text := formatGameState(testState())

	for _, want := range []string{
		"Head: (2,1)",
		"Length: 3",
		"Score: 2",
		"Food: (3,3)",
		".....\nooH..\n",
	} {
		if !strings.Contains(text, want) {
			t.Errorf("Expected %q in output, got:\n%s", want, text)
		}
	}
}

func TestFormatGameState_Over(t *testing.T) {
	tests := []struct {
		cause engine.DeathCause
		want  string
	}{
		{engine.CauseSelf, "GAME OVER (self)"},
		{engine.CauseBoardFull, "BOARD FULL"},
	}
	for _, tt := range tests {
		t.Run(string(tt.cause), func(t *testing.T) {
			state := testState()
			state.RunState = engine.Over
			state.DeathCause = tt.cause
			if text := formatGameState(state); !strings.Contains(text, tt.want) {
				t.Errorf("Expected %q, got:\n%s", tt.want, text)
			}
		})
	}

	if formatGameState(nil) != "No game state available" {
		t.Error("Expected placeholder for nil state")
	}
}

func TestClient_handleGameInstructions(t *testing.T) {
	result, err := NewClient("http://localhost:8080").handleGameInstructions(context.Background(), callTool("game_instructions", nil))
	if err != nil {
		t.Fatalf("handleGameInstructions failed: %v", err)
	}

	text := resultText(t, result)
	for _, want := range []string{"GAME OBJECTIVE:", "BOARD:", "MOVEMENT:", "GAME OVER:", "STRATEGY TIPS:"} {
		if !strings.Contains(text, want) {
			t.Errorf("Expected '%s' in instructions", want)
		}
	}
}
