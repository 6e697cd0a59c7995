// Package session provides session management for the merge puzzle.
//
// The session package implements:
//   - Thread-safe in-memory session storage and retrieval
//   - Unique session ID generation
//   - Starting a new game inside an existing session
//   - Session cleanup and expiration
//
// Core Types:
//
// Manager is the main session manager that handles all session operations.
// Sessions are service.Session values: one game engine plus metadata like
// creation time, last access time and the GameID of the current game.
//
// Session Identifiers:
//
// Sessions use 4-character hex IDs for easy reference and are looked up
// case-insensitively. Every game played in a session gets its own UUID
// GameID, so results of consecutive games never collide.
//
// Games:
//
// A finished game is never reset. Restart builds a new engine from the
// session's configuration and swaps it in. Seeded sessions keep their random
// source across restarts, so a whole sequence of games can be replayed.
//
// Sessions live in memory only and are lost when the process exits.
//
// Usage:
//
//	manager := session.NewManager()
//
//	// Create a new session with a generated ID
//	sess, err := manager.Create("", config, nil)
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	// Play again in the same session
//	sess, err = manager.Restart(sess.ID)
//
//	// Drop sessions idle for an hour
//	removed := manager.CleanupExpiredSessions(time.Hour)
package session
