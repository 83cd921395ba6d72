// Package mcp exposes the snake game to AI agents over the Model Context
// Protocol.
//
// The Client is a thin proxy: every tool call becomes a request against the
// REST API, so agents and browsers share the same sessions and tick loops.
//
// Tools:
//   - create_session, list_sessions, get_session
//   - game_state: board rendered as text (H head, o body, * food)
//   - turn: request a direction for the next tick
//   - step: advance a running session one or more ticks
//   - pause, resume, reset_game
//   - list_configs, leaderboard, game_instructions
//
// Transport Modes:
//   - Stdio: server.ServeStdio(client.GetMCPServer()) for local MCP clients
//   - HTTP: the server binary mounts the MCP server under /mcp
//
// Usage:
//
//	client := mcp.NewClient("http://localhost:8080")
//	server.ServeStdio(client.GetMCPServer())
package mcp
