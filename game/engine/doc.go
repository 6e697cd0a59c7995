// Package engine provides the rule engine for the sliding-tile merge puzzle.
//
// The engine package implements the board-state transitions:
//   - Tile spawning from an injectable RandomSource
//   - The canonical line compaction (CompactAndMergeLine)
//   - Directional moves composed from grid transforms and the line algorithm
//   - Score accrual and terminal-state detection
//   - Configuration loading and validation
//
// Core Types:
//
// The Engine interface defines the main contract for game operations,
// implemented by GameEngine. Grid is the square board, GameState a read-only
// snapshot for rendering, and GameConfig a board variant loaded from JSON or
// YAML files.
//
// Usage:
//
//	gameEngine, err := engine.New(4, engine.NewSeededSource(42))
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	// Slide the tiles
//	changed := gameEngine.Move(engine.Left)
//	if gameEngine.IsTerminal() {
//		fmt.Println("final score", gameEngine.Score())
//	}
//
// Game Rules:
//
// Tiles carrying powers of two slide toward the chosen edge. Two equal tiles
// that meet combine into their sum, which is added to the score; a tile merges
// at most once per move. Every move that changes the board spawns a 2 (or,
// less often, a 4) on a random empty cell. A move that changes nothing is
// rejected and spawns nothing. The game ends when the board is full and no
// two neighbouring tiles are equal.
package engine
