// Package service provides the business logic layer for the merge puzzle.
//
// The service package defines:
//   - GameService interface for all game operations
//   - Session, configuration, result and event contracts
//   - Request/response types for API operations
//   - Event types describing what each move did
//
// Core Interface:
//
// GameService is the main interface used by the HTTP API and the MCP tools.
// It covers session management, moves, new games, move history,
// configuration access and the leaderboard. Storage and side effects are
// injected as interfaces: SessionManager, ConfigManager, and the optional
// ResultStore and EventPublisher.
//
// Moves:
//
// Move parses the direction, applies it to the session's engine and reports
// whether the board changed. A move that changes nothing is not an error;
// it returns Changed false and spawns no tile. BulkMove runs up to
// engine.MaxBulkMoves moves, skipping past rejected ones and stopping at an
// unknown direction or once the game is over.
//
// Results:
//
// When a move ends the game, the service sends one results.Result for that
// game to the ResultStore. NewGame starts a fresh game with a new GameID in
// the same session.
//
// Usage:
//
//	svc := service.NewGameService(sessionManager, configManager,
//		service.WithResultStore(store),
//		service.WithEventPublisher(publisher))
//
//	info, err := svc.CreateSession(ctx, "classic", nil)
//	result, err := svc.Move(ctx, info.ID, "left")
//	if result.Terminal {
//		board, _ := svc.Leaderboard(ctx, 10)
//	}
package service
