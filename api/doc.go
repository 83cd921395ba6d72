// Package api serves the snake game and the portfolio panels over HTTP.
//
// Game endpoints:
//
//	POST   /api/sessions                {"config_id":"classic"}
//	GET    /api/sessions                ?sort=accessed|created|score&order=asc|desc&limit=N
//	GET    /api/sessions/{id}
//	DELETE /api/sessions/{id}
//	GET    /api/sessions/{id}/state
//	POST   /api/sessions/{id}/turn      {"direction":"up"} or {"key":"ArrowUp"}
//	POST   /api/sessions/{id}/pause
//	POST   /api/sessions/{id}/resume
//	POST   /api/sessions/{id}/toggle
//	POST   /api/sessions/{id}/reset
//	POST   /api/sessions/{id}/step      one manual tick
//	POST   /api/sessions/{id}/score     {"player":"ada"} names a finished game
//	GET    /api/configs
//	POST   /api/configs
//	GET    /api/configs/{name}
//	GET    /api/leaderboard             ?config=classic&limit=10
//	GET    /ws?session={id}
//
// Portfolio endpoints answer 204 when their upstream is unavailable:
//
//	GET  /api/projects
//	GET  /api/weather
//	GET  /api/theme
//	POST /api/hire
//
// Errors are JSON objects {"error": "..."} with a status derived from the
// service error: unknown sessions and configs are 404, bad input 400, a
// score submitted before the game ended 409.
package api
