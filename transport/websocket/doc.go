// Package websocket streams game snapshots to browsers and carries their
// keyboard input back to the game.
//
// A single Hub goroutine owns the client registry. Clients join a session
// with /ws?session=<id>, receive the current state immediately, then one
// state_update per tick or command. Broadcasts never block the tick loop:
// a full queue drops the update and a slow client is disconnected.
//
// Inbound frames are small JSON objects:
//
//	{"type":"turn","direction":"up"}
//	{"type":"key","key":"ArrowLeft"}
//	{"type":"pause"} {"type":"resume"} {"type":"toggle"} {"type":"reset"}
//
// They are applied through the Controller set with SetController. Rejected
// turns and errors are answered to the sending client only.
package websocket
