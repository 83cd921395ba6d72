package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/wricardo/snake-arcade/game/engine"
	"github.com/wricardo/snake-arcade/game/service"
	"github.com/wricardo/snake-arcade/store"
)

// maxSteps bounds a single step call
const maxSteps = 50

// Client is a thin MCP client that proxies to the REST API
type Client struct {
	baseURL    string
	httpClient *http.Client
	mcpServer  *server.MCPServer
}

// NewClient creates a new MCP client that calls the REST API
func NewClient(baseURL string) *Client {
	c := &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}

	c.initMCPServer()
	return c
}

// initMCPServer initializes the MCP server with all tools
func (c *Client) initMCPServer() {
	c.mcpServer = server.NewMCPServer(
		"Snake Arcade",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithInstructions(`Snake Arcade - MCP Interface

This is a thin client that proxies all requests to the REST API server.

GAME OBJECTIVE:
Steer the snake (H is the head, o the body) to eat food (*). Each food is one
point and grows the snake by one cell. Hitting a wall or your own body ends
the game.

Sessions tick on their own every tick_ms while running. Pause a session and
use the step tool to advance it one tick at a time.

AVAILABLE TOOLS:
- create_session: Create new game session
- list_sessions: List all active sessions
- get_session: Get session details
- game_state: Get current game state with the board
- turn: Request a direction for the next tick
- step: Advance a running session by one or more ticks
- pause / resume: Stop or restart the tick loop
- reset_game: Start a new game in the session
- list_configs: List available configurations
- leaderboard: Best finished games
- game_instructions: Rules and strategy tips`),
	)

	c.registerTools()
}

func sessionProperty() map[string]interface{} {
	return map[string]interface{}{
		"type":        "string",
		"description": "Session ID",
	}
}

// registerTools registers all MCP tools
func (c *Client) registerTools() {
	// Session management
	c.mcpServer.AddTool(mcp.Tool{
		Name:        "create_session",
		Description: "Create a new game session with optional config selection",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"config_id": map[string]interface{}{
					"type":        "string",
					"description": "Config to use, e.g. classic, slow, fast, tiny (optional)",
				},
			},
		},
	}, c.handleCreateSession)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "list_sessions",
		Description: "List all active game sessions",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}, c.handleListSessions)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "get_session",
		Description: "Get details of a specific session",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"session_id": sessionProperty(),
			},
			Required: []string{"session_id"},
		},
	}, c.handleGetSession)

	// Game operations
	c.mcpServer.AddTool(mcp.Tool{
		Name:        "game_state",
		Description: "Get the current game state",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"session_id": sessionProperty(),
			},
			Required: []string{"session_id"},
		},
	}, c.handleGameState)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "turn",
		Description: "Request a direction for the next tick. Reversing onto your own neck is rejected.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"session_id": sessionProperty(),
				"direction": map[string]interface{}{
					"type":        "string",
					"description": "Direction to turn",
					"enum":        []string{"up", "down", "left", "right"},
				},
				"intent": map[string]interface{}{
					"type":        "string",
					"description": "Why this turn; explain your plan",
				},
			},
			Required: []string{"session_id", "direction"},
		},
	}, c.handleTurn)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "step",
		Description: "Advance a running session by one tick (or count ticks), optionally turning first",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"session_id": sessionProperty(),
				"direction": map[string]interface{}{
					"type":        "string",
					"description": "Direction to request before the first tick (optional)",
					"enum":        []string{"up", "down", "left", "right"},
				},
				"count": map[string]interface{}{
					"type":        "number",
					"description": fmt.Sprintf("Ticks to apply, 1-%d (default 1). Stops early when the game ends.", maxSteps),
				},
			},
			Required: []string{"session_id"},
		},
	}, c.handleStep)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "pause",
		Description: "Pause a running session",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"session_id": sessionProperty(),
			},
			Required: []string{"session_id"},
		},
	}, c.handlePause)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "resume",
		Description: "Resume a paused session",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"session_id": sessionProperty(),
			},
			Required: []string{"session_id"},
		},
	}, c.handleResume)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "reset_game",
		Description: "Reset the game to its initial state",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"session_id": sessionProperty(),
			},
			Required: []string{"session_id"},
		},
	}, c.handleReset)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "list_configs",
		Description: "List all available game configurations",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}, c.handleListConfigs)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "leaderboard",
		Description: "Show the best finished games",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"config_id": map[string]interface{}{
					"type":        "string",
					"description": "Only games played with this config (optional)",
				},
				"limit": map[string]interface{}{
					"type":        "number",
					"description": "Number of entries (default 10)",
				},
			},
		},
	}, c.handleLeaderboard)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "game_instructions",
		Description: "Get comprehensive game instructions and rules",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}, c.handleGameInstructions)
}

// GetMCPServer returns the underlying MCP server for serving
func (c *Client) GetMCPServer() *server.MCPServer {
	return c.mcpServer
}

// Helper methods for API calls

func (c *Client) apiCall(ctx context.Context, method, path string, body interface{}, result interface{}) error {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reqBody = bytes.NewBuffer(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return err
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var errResp map[string]string
		json.NewDecoder(resp.Body).Decode(&errResp)
		if msg, ok := errResp["error"]; ok {
			return fmt.Errorf("%s", msg)
		}
		return fmt.Errorf("API error: %d", resp.StatusCode)
	}

	if result != nil && resp.StatusCode != http.StatusNoContent {
		return json.NewDecoder(resp.Body).Decode(result)
	}

	return nil
}

func arguments(request mcp.CallToolRequest) map[string]interface{} {
	args, _ := request.Params.Arguments.(map[string]interface{})
	return args
}

func sessionPath(sessionID, action string) string {
	path := "/api/sessions/" + url.PathEscape(sessionID)
	if action != "" {
		path += "/" + action
	}
	return path
}

// Tool handlers

func (c *Client) handleCreateSession(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := arguments(request)
	configID, _ := args["config_id"].(string)
	if configID == "" {
		configID, _ = args["config_name"].(string)
	}

	body := map[string]string{}
	if configID != "" {
		body["config_id"] = configID
	}

	var session service.SessionInfo
	if err := c.apiCall(ctx, "POST", "/api/sessions", body, &session); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	result := fmt.Sprintf("Created session: %s\nConfig: %s\nTick: %dms\n\n%s",
		session.ID, session.ConfigName, session.TickMillis, formatGameState(session.GameState))
	return mcp.NewToolResultText(result), nil
}

func (c *Client) handleListSessions(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var response struct {
		Count    int                   `json:"count"`
		Sessions []service.SessionInfo `json:"sessions"`
	}

	if err := c.apiCall(ctx, "GET", "/api/sessions", nil, &response); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var result strings.Builder
	fmt.Fprintf(&result, "Active Sessions (%d):\n\n", response.Count)
	for _, s := range response.Sessions {
		status, score := "unknown", 0
		if s.GameState != nil {
			status, score = string(s.GameState.RunState), s.GameState.Score
		}
		fmt.Fprintf(&result, "- %s (Config: %s, %s, Score: %d, Created: %s)\n",
			s.ID, s.ConfigName, status, score, s.CreatedAt.Format("15:04:05"))
	}

	return mcp.NewToolResultText(result.String()), nil
}

func (c *Client) handleGetSession(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessionID, _ := arguments(request)["session_id"].(string)

	var session service.SessionInfo
	if err := c.apiCall(ctx, "GET", sessionPath(sessionID, ""), nil, &session); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(formatSessionInfo(&session)), nil
}

func (c *Client) handleGameState(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessionID, _ := arguments(request)["session_id"].(string)

	var state engine.GameState
	if err := c.apiCall(ctx, "GET", sessionPath(sessionID, "state"), nil, &state); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(formatGameState(&state)), nil
}

func (c *Client) handleTurn(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := arguments(request)
	sessionID, _ := args["session_id"].(string)
	direction, _ := args["direction"].(string)

	var result service.TurnResult
	err := c.apiCall(ctx, "POST", sessionPath(sessionID, "turn"), map[string]string{"direction": direction}, &result)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(formatTurnResult(&result)), nil
}

func (c *Client) handleStep(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := arguments(request)
	sessionID, _ := args["session_id"].(string)
	direction, _ := args["direction"].(string)

	count := 1
	if n, ok := args["count"].(float64); ok {
		count = int(n)
	}
	if count < 1 || count > maxSteps {
		return mcp.NewToolResultError(fmt.Sprintf("count must be between 1 and %d", maxSteps)), nil
	}

	var out strings.Builder
	if direction != "" {
		var turn service.TurnResult
		err := c.apiCall(ctx, "POST", sessionPath(sessionID, "turn"), map[string]string{"direction": direction}, &turn)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		if !turn.Accepted {
			fmt.Fprintf(&out, "Turn %s rejected: %s\n", direction, turn.Message)
		}
	}

	var last service.StepResult
	applied := 0
	for i := 0; i < count; i++ {
		var result service.StepResult
		if err := c.apiCall(ctx, "POST", sessionPath(sessionID, "step"), nil, &result); err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		last = result
		if result.Outcome == string(engine.OutcomeIdle) {
			break
		}
		applied++
		fmt.Fprintf(&out, "%d. %s %s\n", applied, result.Direction, result.Outcome)
		if result.GameState != nil && result.GameState.IsOver() {
			break
		}
	}

	fmt.Fprintf(&out, "\nApplied %d of %d ticks\n", applied, count)
	out.WriteString(formatStepResult(&last))
	return mcp.NewToolResultText(out.String()), nil
}

func (c *Client) command(ctx context.Context, request mcp.CallToolRequest, action string) (*mcp.CallToolResult, error) {
	sessionID, _ := arguments(request)["session_id"].(string)

	var response struct {
		Message string            `json:"message"`
		State   *engine.GameState `json:"state"`
	}
	if err := c.apiCall(ctx, "POST", sessionPath(sessionID, action), nil, &response); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(fmt.Sprintf("%s\n\n%s", response.Message, formatGameState(response.State))), nil
}

func (c *Client) handlePause(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return c.command(ctx, request, "pause")
}

func (c *Client) handleResume(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return c.command(ctx, request, "resume")
}

func (c *Client) handleReset(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return c.command(ctx, request, "reset")
}

func (c *Client) handleListConfigs(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var configs []service.ConfigInfo
	if err := c.apiCall(ctx, "GET", "/api/configs", nil, &configs); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var result strings.Builder
	result.WriteString("Available Configurations:\n\n")
	for _, config := range configs {
		fmt.Fprintf(&result, "• %s (config_id: %s)\n  %s\n  Grid: %dx%d, Tick: %dms\n\n",
			config.Name, config.ConfigID, config.Description, config.GridSize, config.GridSize, config.TickMillis)
	}

	return mcp.NewToolResultText(result.String()), nil
}

func (c *Client) handleLeaderboard(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := arguments(request)
	q := url.Values{}
	if configID, _ := args["config_id"].(string); configID != "" {
		q.Set("config", configID)
	}
	if limit, ok := args["limit"].(float64); ok && limit > 0 {
		q.Set("limit", fmt.Sprintf("%d", int(limit)))
	}

	path := "/api/leaderboard"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	var response struct {
		Scores []store.Score `json:"scores"`
	}
	if err := c.apiCall(ctx, "GET", path, nil, &response); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(formatLeaderboard(response.Scores)), nil
}

func (c *Client) handleGameInstructions(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	instructions := `🐍 Snake Arcade - Complete Instructions

GAME OBJECTIVE:
Eat as much food as possible. Every food is worth one point and makes the
snake one cell longer.

BOARD:
• The board is a square grid (20x20 by default); (0,0) is the top-left corner
• x grows to the right, y grows downwards
• H = head, o = body, * = food, . = empty
• The edges are walls; there is no wraparound

MOVEMENT:
• The snake moves one cell per tick in its current direction
• turn requests a new direction for the next tick; only the last request
  before a tick counts
• Reversing straight back (right -> left, up -> down) is rejected
• The tail cell is vacated on the same tick, so moving into it is safe

GAME OVER:
• Moving off the board (wall)
• Moving into any body cell except the current tail (self)
• Filling the whole board ends the game as a win

TICKING:
• A running session ticks on its own every tick_ms (120ms for classic)
• pause stops the clock; step only applies ticks while the game is running,
  so a slow config is the easiest way to play turn by turn
• reset_game starts a fresh game

STRATEGY TIPS:
• Use safe_moves in the step result to avoid instant death
• distance_to_food is the Manhattan distance from head to food
• Keep an escape route; long snakes trap themselves in corners

TOOLS:
• create_session, list_sessions, get_session
• game_state, turn, step, pause, resume, reset_game
• list_configs, leaderboard`

	return mcp.NewToolResultText(instructions), nil
}

// Formatting helpers

func formatSessionInfo(session *service.SessionInfo) string {
	return fmt.Sprintf("Session: %s\nConfig: %s\nTick: %dms\nCreated: %s\n\n%s",
		session.ID, session.ConfigName, session.TickMillis,
		session.CreatedAt.Format("2006-01-02 15:04:05"),
		formatGameState(session.GameState))
}

func formatGameState(state *engine.GameState) string {
	if state == nil || state.GridSize == 0 {
		return "No game state available"
	}

	var result strings.Builder

	head := "-"
	if len(state.Snake) > 0 {
		head = fmt.Sprintf("(%d,%d)", state.Head().X, state.Head().Y)
	}
	fmt.Fprintf(&result, "Head: %s | Direction: %s | Length: %d | Score: %d | Tick: %d | %s\n",
		head, state.Direction, state.Length(), state.Score, state.Tick, state.RunState)
	fmt.Fprintf(&result, "Food: (%d,%d)\n\n", state.Food.X, state.Food.Y)

	for _, row := range engine.RenderGrid(state) {
		result.WriteString(row)
		result.WriteString("\n")
	}

	if state.IsOver() {
		if state.DeathCause == engine.CauseBoardFull {
			result.WriteString("\n🎉 BOARD FULL!")
		} else {
			fmt.Fprintf(&result, "\n💀 GAME OVER (%s)", state.DeathCause)
		}
	}

	if state.Message != "" {
		fmt.Fprintf(&result, "\nMessage: %s", state.Message)
	}

	return result.String()
}

func formatTurnResult(result *service.TurnResult) string {
	if !result.Accepted {
		return fmt.Sprintf("❌ Turn %s rejected: %s", result.Direction, result.Message)
	}
	return fmt.Sprintf("✅ Turn %s queued for the next tick\n\n%s", result.Direction, formatGameState(result.GameState))
}

func formatStepResult(result *service.StepResult) string {
	var out strings.Builder
	fmt.Fprintf(&out, "Outcome: %s\n", result.Outcome)
	if len(result.SafeMoves) > 0 {
		fmt.Fprintf(&out, "Safe moves: %s\n", strings.Join(result.SafeMoves, ", "))
	} else {
		out.WriteString("Safe moves: none\n")
	}
	fmt.Fprintf(&out, "Distance to food: %d\n\n", result.DistanceToFood)
	out.WriteString(formatGameState(result.GameState))
	return out.String()
}

func formatLeaderboard(scores []store.Score) string {
	if len(scores) == 0 {
		return "No finished games yet"
	}

	var out strings.Builder
	out.WriteString("Leaderboard:\n\n")
	for i, s := range scores {
		fmt.Fprintf(&out, "%2d. %-16s %4d  (%s, length %d, %s)\n",
			i+1, s.Player, s.Score, s.ConfigName, s.Length, s.Cause)
	}
	return out.String()
}
