// Package session keeps the live snake games of the server.
//
// Every session owns an engine and the loop.Runner that ticks it. The
// manager starts the runner when a session is created or restored and stops
// it when the session is deleted or expires.
//
// Session identifiers are 4 hex characters generated from crypto/rand and
// are matched case-insensitively.
//
// With a SessionPersistence configured, sessions are written to disk after
// state changes and reloaded on demand. A restored game always comes back
// paused; nothing advances until a player resumes it.
//
// Usage:
//
//	persistence, _ := session.NewFilePersistence("sessions", configManager)
//	manager := session.NewManagerWithPersistence(persistence)
//	defer manager.Close()
//
//	sess, err := manager.Create("", config)
//	if err != nil {
//		log.Fatal(err)
//	}
//	state := sess.State()
package session
