package engine

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/samber/lo"
)

var ErrInvalidBoardSize = errors.New("board size must be positive")

// Engine provides the main interface for game operations
type Engine interface {
	// Game state
	GetState() *GameState
	Board() Grid
	Score() int
	MaxTile() int
	IsTerminal() bool

	// Movement operations
	Move(d Direction) bool
	CanMove(d Direction) bool
	GetPossibleMoves() []Direction
	BulkMove(moves []Direction) []bool

	// Configuration
	GetConfig() *GameConfig

	// History
	GetMoveHistory() []MoveHistoryEntry
	GetLastMove() *MoveHistoryEntry
}

// GameEngine implements Engine for a single game instance. A finished game
// is never reset; start a new game by constructing a new GameEngine.
type GameEngine struct {
	board  Grid
	score  int
	rng    RandomSource
	config *GameConfig

	targetReached bool
	lastSpawn     *Tile
	history       []MoveHistoryEntry
	acceptedMoves int
	now           func() time.Time
}

// New creates a game on an empty size x size board and spawns the opening
// tiles (two, or one on a single-cell board). Any positive size is accepted;
// MaxBoardSize only bounds variant files. A nil rng selects NewRandomSource.
func New(size int, rng RandomSource) (*GameEngine, error) {
	if size < MinBoardSize {
		return nil, fmt.Errorf("%w, got %d", ErrInvalidBoardSize, size)
	}
	config := DefaultGameConfig()
	config.BoardSize = size
	config.InitialTiles = min(DefaultInitialTiles, size*size)
	config.TargetTile = 0
	return newEngine(config, rng), nil
}

// NewEngine creates a game from a validated configuration
func NewEngine(config *GameConfig, rng RandomSource) (*GameEngine, error) {
	if err := ValidateGameConfig(config); err != nil {
		return nil, err
	}
	return newEngine(config, rng), nil
}

func newEngine(config *GameConfig, rng RandomSource) *GameEngine {
	if rng == nil {
		rng = NewRandomSource()
	}

	e := &GameEngine{
		board:   NewGrid(config.BoardSize),
		rng:     rng,
		config:  config,
		history: []MoveHistoryEntry{},
		now:     time.Now,
	}
	for i := 0; i < config.InitialTiles; i++ {
		e.spawnTile()
	}
	e.checkTarget()
	return e
}

// NewEngineFromBoard creates a game positioned on an existing board, with
// no opening spawn. The board must be square and hold only legal tiles.
func NewEngineFromBoard(config *GameConfig, board Grid, score int, rng RandomSource) (*GameEngine, error) {
	if err := ValidateGameConfig(config); err != nil {
		return nil, err
	}
	if err := validateBoard(board, config.BoardSize); err != nil {
		return nil, err
	}
	if score < 0 {
		return nil, fmt.Errorf("score must not be negative, got %d", score)
	}
	if rng == nil {
		rng = NewRandomSource()
	}

	e := &GameEngine{
		board:   board.Clone(),
		score:   score,
		rng:     rng,
		config:  config,
		history: []MoveHistoryEntry{},
		now:     time.Now,
	}
	e.checkTarget()
	return e, nil
}

// spawnTile places a 2 (or, with the configured probability, a 4) on a
// uniformly chosen empty cell. A full board is left untouched.
func (e *GameEngine) spawnTile() *Tile {
	empty := e.board.EmptyCells()
	if len(empty) == 0 {
		return nil
	}

	pos := empty[e.rng.Intn(len(empty))]
	value := 2
	if e.rng.Float64() >= 1-e.config.FourProbability {
		value = 4
	}
	e.board[pos.Row][pos.Col] = value

	tile := &Tile{Position: pos, Value: value}
	e.lastSpawn = tile
	return tile
}

// Move slides the board in direction d. A move that leaves the board
// unchanged is rejected: nothing is committed, no tile spawns and Move
// returns false. Otherwise the new board and score are committed, a tile
// spawns and Move returns true.
func (e *GameEngine) Move(d Direction) bool {
	res, err := slide(e.board, d)
	if err != nil {
		return false
	}

	entry := MoveHistoryEntry{
		Direction:  d,
		Changed:    res.changed,
		ScoreAfter: e.score,
		Timestamp:  e.now().Unix(),
		MoveNumber: len(e.history) + 1,
	}

	if res.changed {
		e.board = res.board
		e.score += res.gained
		e.acceptedMoves++
		entry.ScoreGained = res.gained
		entry.ScoreAfter = e.score
		entry.Merges = res.merges
		entry.Spawned = e.spawnTile()
		e.checkTarget()
	}

	e.history = append(e.history, entry)
	return res.changed
}

// CanMove reports whether Move(d) would be accepted, without side effects
func (e *GameEngine) CanMove(d Direction) bool {
	res, err := slide(e.board, d)
	return err == nil && res.changed
}

// GetPossibleMoves returns all directions that would change the board
func (e *GameEngine) GetPossibleMoves() []Direction {
	return lo.Filter(Directions, func(d Direction, _ int) bool {
		return e.CanMove(d)
	})
}

// BulkMove executes moves in sequence, returning whether each changed the
// board. It stops early once the game is terminal.
func (e *GameEngine) BulkMove(moves []Direction) []bool {
	results := make([]bool, 0, len(moves))

	for _, d := range moves {
		if e.IsTerminal() {
			break
		}
		results = append(results, e.Move(d))
	}

	return results
}

// IsTerminal reports whether no move can change the board
func (e *GameEngine) IsTerminal() bool {
	return IsTerminal(e.board)
}

// Board returns a copy of the board
func (e *GameEngine) Board() Grid {
	return e.board.Clone()
}

// Score returns the accumulated merge score
func (e *GameEngine) Score() int {
	return e.score
}

// MaxTile returns the largest tile on the board
func (e *GameEngine) MaxTile() int {
	return e.board.MaxTile()
}

// TargetReached reports whether the configured target tile has appeared
func (e *GameEngine) TargetReached() bool {
	return e.targetReached
}

// AcceptedMoves counts moves that changed the board
func (e *GameEngine) AcceptedMoves() int {
	return e.acceptedMoves
}

// GetConfig returns the game configuration
func (e *GameEngine) GetConfig() *GameConfig {
	return e.config
}

// GetMoveHistory returns a copy of every attempted move
func (e *GameEngine) GetMoveHistory() []MoveHistoryEntry {
	return append([]MoveHistoryEntry(nil), e.history...)
}

// GetLastMove returns the last attempted move, or nil if there are none
func (e *GameEngine) GetLastMove() *MoveHistoryEntry {
	if len(e.history) == 0 {
		return nil
	}
	last := e.history[len(e.history)-1]
	return &last
}

// GetState builds a snapshot of the game. The snapshot shares no memory
// with the engine. It carries move counters only; the history itself is
// read through GetMoveHistory.
func (e *GameEngine) GetState() *GameState {
	terminal := e.IsTerminal()
	state := &GameState{
		Board:         e.board.Clone(),
		BoardSize:     e.board.Size(),
		Score:         e.score,
		MaxTile:       e.board.MaxTile(),
		EmptyCells:    len(e.board.EmptyCells()),
		GameOver:      terminal,
		TargetTile:    e.config.TargetTile,
		TargetReached: e.targetReached,
		ConfigName:    e.config.Name,
		Message:       e.message(terminal),
		TotalMoves:    len(e.history),
		AcceptedMoves: e.acceptedMoves,
		PossibleMoves: e.GetPossibleMoves(),
		BoardHash:     strconv.FormatUint(Fingerprint(e.board), 16),
	}
	if e.lastSpawn != nil {
		spawn := *e.lastSpawn
		state.LastSpawn = &spawn
	}
	return state
}

func (e *GameEngine) message(terminal bool) string {
	switch {
	case terminal:
		return fmt.Sprintf("Game over! Final score: %d", e.score)
	case e.targetReached:
		return fmt.Sprintf("Reached %d! Keep going. Score: %d", e.config.TargetTile, e.score)
	case len(e.history) > 0 && !e.history[len(e.history)-1].Changed:
		return fmt.Sprintf("Nothing moves %s", e.history[len(e.history)-1].Direction)
	}
	return fmt.Sprintf("Score: %d", e.score)
}

func (e *GameEngine) checkTarget() {
	if e.config.TargetTile > 0 && e.board.MaxTile() >= e.config.TargetTile {
		e.targetReached = true
	}
}

func validateBoard(board Grid, size int) error {
	if len(board) != size {
		return fmt.Errorf("board must have %d rows, got %d", size, len(board))
	}
	for i, row := range board {
		if len(row) != size {
			return fmt.Errorf("board row %d must have %d cells, got %d", i, size, len(row))
		}
		for j, v := range row {
			if v != 0 && !IsPowerOfTwoTile(v) {
				return fmt.Errorf("board cell (%d,%d) holds %d, not a power of two", i, j, v)
			}
		}
	}
	return nil
}
