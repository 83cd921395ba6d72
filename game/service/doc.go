// Package service is the business layer between the transports (HTTP,
// WebSocket, MCP) and the snake engine.
//
// GameService creates and drives sessions. Every session runs its own tick
// loop; the service sends commands into that loop and never touches an
// engine directly. Tick snapshots flow back through SessionObserver, which
// the service implements to broadcast state and record finished games on the
// leaderboard.
//
// Usage:
//
//	sessionMgr := session.NewManager()
//	configMgr, _ := config.NewManager("configs")
//	gameService := service.NewGameService(sessionMgr, configMgr,
//		service.WithScoreStore(db),
//		service.WithBroadcaster(hub),
//	)
//
//	info, err := gameService.CreateSession(ctx, "classic")
//	result, err := gameService.Turn(ctx, info.ID, "up")
package service
