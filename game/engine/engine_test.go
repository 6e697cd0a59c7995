package engine

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/matryer/is"
)

// scriptedSource replays fixed values; once exhausted it returns zeros
type scriptedSource struct {
	ints   []int
	floats []float64
	calls  int
}

func (s *scriptedSource) Intn(n int) int {
	s.calls++
	if len(s.ints) == 0 {
		return 0
	}
	v := s.ints[0]
	s.ints = s.ints[1:]
	return v % n
}

func (s *scriptedSource) Float64() float64 {
	s.calls++
	if len(s.floats) == 0 {
		return 0
	}
	v := s.floats[0]
	s.floats = s.floats[1:]
	return v
}

func configWithSize(size int) *GameConfig {
	config := DefaultGameConfig()
	config.BoardSize = size
	return config
}

func newTestEngine(t *testing.T, board Grid, score int, rng RandomSource) *GameEngine {
	t.Helper()
	e, err := NewEngineFromBoard(configWithSize(len(board)), board, score, rng)
	if err != nil {
		t.Fatalf("Failed to create engine: %v", err)
	}
	e.now = func() time.Time { return time.Unix(1700000000, 0) }
	return e
}

func TestNew(t *testing.T) {
	e, err := New(4, &scriptedSource{ints: []int{0, 0}})
	if err != nil {
		t.Fatalf("Failed to create engine: %v", err)
	}

	if e.Score() != 0 {
		t.Errorf("Expected score 0, got %d", e.Score())
	}
	if got := e.Board().CountTiles(); got != 2 {
		t.Errorf("Expected 2 opening tiles, got %d", got)
	}
	if e.Board().Size() != 4 {
		t.Errorf("Expected board size 4, got %d", e.Board().Size())
	}
	if e.IsTerminal() {
		t.Error("New game should not be terminal")
	}
}

func TestNew_RejectsNonPositiveSize(t *testing.T) {
	for _, size := range []int{0, -1, -16} {
		_, err := New(size, nil)
		if !errors.Is(err, ErrInvalidBoardSize) {
			t.Errorf("New(%d) error = %v, want ErrInvalidBoardSize", size, err)
		}
	}
}

func TestNew_LargerThanVariantLimit(t *testing.T) {
	is := is.New(t)

	e, err := New(MaxBoardSize+4, &scriptedSource{})
	is.NoErr(err)
	is.Equal(e.Board().Size(), MaxBoardSize+4)
	is.Equal(e.Board().CountTiles(), 2)

	// Variant configs keep the limit
	config := DefaultGameConfig()
	config.BoardSize = MaxBoardSize + 4
	_, err = NewEngine(config, nil)
	is.True(err != nil)
}

func TestNew_SingleCellBoard(t *testing.T) {
	is := is.New(t)

	e, err := New(1, &scriptedSource{})
	is.NoErr(err)
	is.Equal(e.Board().CountTiles(), 1)
	is.True(e.IsTerminal())
}

func TestNewEngineFromBoard_Validation(t *testing.T) {
	tests := []struct {
		name  string
		board Grid
		score int
	}{
		{"wrong row count", Grid{{2, 0}, {0, 0}, {0, 0}}, 0},
		{"ragged row", Grid{{2, 0}, {0}}, 0},
		{"not a power of two", Grid{{3, 0}, {0, 0}}, 0},
		{"one is not a tile", Grid{{1, 0}, {0, 0}}, 0},
		{"negative score", Grid{{2, 0}, {0, 0}}, -4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewEngineFromBoard(configWithSize(2), tt.board, tt.score, nil)
			if err == nil {
				t.Error("Expected error, got nil")
			}
		})
	}
}

func TestMove_MergeAndSpawn(t *testing.T) {
	is := is.New(t)
	rng := &scriptedSource{}
	e := newTestEngine(t, Grid{
		{2, 2, 0, 0},
		{0, 0, 0, 0},
		{0, 0, 0, 0},
		{0, 0, 0, 0},
	}, 0, rng)

	changed := e.Move(Left)

	is.True(changed)
	is.Equal(e.Score(), 4)
	board := e.Board()
	is.Equal(board[0][0], 4)
	is.Equal(board.CountTiles(), 2) // merged tile plus one spawn
	is.Equal(board[0][1], 2)        // first empty cell in row-major order

	last := e.GetLastMove()
	is.True(last != nil)
	is.Equal(last.ScoreGained, 4)
	is.Equal(last.Merges, 1)
	is.Equal(last.Spawned.Position, Position{Row: 0, Col: 1})
	is.Equal(last.Spawned.Value, 2)
}

func TestMove_SpawnsFourOnHighDraw(t *testing.T) {
	is := is.New(t)
	rng := &scriptedSource{floats: []float64{0.95}}
	e := newTestEngine(t, Grid{
		{0, 0, 0, 2},
		{0, 0, 0, 0},
		{0, 0, 0, 0},
		{0, 0, 0, 0},
	}, 0, rng)

	is.True(e.Move(Left))
	is.Equal(e.GetLastMove().Spawned.Value, 4)
}

func TestMove_RejectedMoveChangesNothing(t *testing.T) {
	is := is.New(t)
	rng := &scriptedSource{}
	start := Grid{
		{2, 4, 0, 0},
		{4, 2, 0, 0},
		{0, 0, 0, 0},
		{0, 0, 0, 0},
	}
	e := newTestEngine(t, start, 12, rng)

	changed := e.Move(Left)

	is.True(!changed)
	is.Equal(e.Board(), start)
	is.Equal(e.Score(), 12)
	is.Equal(rng.calls, 0) // no spawn
	is.Equal(e.AcceptedMoves(), 0)

	last := e.GetLastMove()
	is.True(last != nil)
	is.True(!last.Changed)
	is.True(last.Spawned == nil)
}

func TestMove_InvalidDirection(t *testing.T) {
	is := is.New(t)
	e := newTestEngine(t, Grid{{2, 0}, {0, 0}}, 0, &scriptedSource{})

	is.True(!e.Move(Direction("diagonal")))
	is.Equal(len(e.GetMoveHistory()), 0)
}

func TestMove_FullLockedBoardRejectsEveryDirection(t *testing.T) {
	locked := Grid{
		{2, 4, 2, 4},
		{4, 2, 4, 2},
		{2, 4, 2, 4},
		{4, 2, 4, 2},
	}
	e := newTestEngine(t, locked, 100, &scriptedSource{})

	for _, d := range Directions {
		if e.Move(d) {
			t.Errorf("Move(%s) on a locked board should be rejected", d)
		}
	}
	if !e.Board().Equal(locked) {
		t.Error("Locked board should not change")
	}
	if e.Score() != 100 {
		t.Errorf("Expected score 100, got %d", e.Score())
	}
	if len(e.GetPossibleMoves()) != 0 {
		t.Errorf("Expected no possible moves, got %v", e.GetPossibleMoves())
	}
}

func TestMove_ScoreNeverDecreasesAndTileCountHolds(t *testing.T) {
	e, err := New(4, NewSeededSource(99))
	if err != nil {
		t.Fatalf("Failed to create engine: %v", err)
	}

	prevScore := e.Score()
	for i := 0; i < 500 && !e.IsTerminal(); i++ {
		before := e.Board().CountTiles()
		d := Directions[i%len(Directions)]
		changed := e.Move(d)
		after := e.Board().CountTiles()

		if e.Score() < prevScore {
			t.Fatalf("score decreased from %d to %d", prevScore, e.Score())
		}
		prevScore = e.Score()

		last := e.GetLastMove()
		if changed && after != before-last.Merges+1 {
			t.Fatalf("move %d: tiles %d -> %d with %d merges", i, before, after, last.Merges)
		}
		if !changed && after != before {
			t.Fatalf("rejected move %d changed tile count %d -> %d", i, before, after)
		}
	}
}

func TestSeededSource_Deterministic(t *testing.T) {
	is := is.New(t)
	a, err := New(4, NewSeededSource(42))
	is.NoErr(err)
	b, err := New(4, NewSeededSource(42))
	is.NoErr(err)

	is.Equal(a.Board(), b.Board())
	for i := 0; i < 40; i++ {
		d := Directions[(i*3)%len(Directions)]
		is.Equal(a.Move(d), b.Move(d))
	}
	is.Equal(a.Board(), b.Board())
	is.Equal(a.Score(), b.Score())
}

func TestCanMove_NoSideEffects(t *testing.T) {
	is := is.New(t)
	rng := &scriptedSource{}
	start := Grid{
		{2, 2, 0, 0},
		{0, 0, 0, 0},
		{0, 0, 0, 0},
		{0, 0, 0, 0},
	}
	e := newTestEngine(t, start, 0, rng)

	is.True(e.CanMove(Left))
	is.True(e.CanMove(Right))
	is.True(e.CanMove(Down))
	is.True(!e.CanMove(Up))
	is.Equal(e.Board(), start)
	is.Equal(rng.calls, 0)
	is.Equal(len(e.GetMoveHistory()), 0)
	is.Equal(e.GetPossibleMoves(), []Direction{Down, Left, Right})
}

func TestBulkMove_StopsWhenTerminal(t *testing.T) {
	is := is.New(t)
	// Right fills the last cell with a 4, locking the board
	rng := &scriptedSource{floats: []float64{0.95}}
	e := newTestEngine(t, Grid{
		{2, 4},
		{8, 0},
	}, 0, rng)

	results := e.BulkMove([]Direction{Right, Left, Up})

	is.Equal(results, []bool{true})
	is.Equal(e.Board(), Grid{{2, 4}, {4, 8}})
	is.True(e.IsTerminal())
}

func TestBulkMove_RejectedMovesContinue(t *testing.T) {
	is := is.New(t)
	e := newTestEngine(t, Grid{
		{2, 0, 0, 0},
		{0, 0, 0, 0},
		{0, 0, 0, 0},
		{0, 0, 0, 0},
	}, 0, &scriptedSource{})

	results := e.BulkMove([]Direction{Left, Up, Right})

	is.Equal(results, []bool{false, false, true})
	is.Equal(len(e.GetMoveHistory()), 3)
	is.Equal(e.AcceptedMoves(), 1)
}

func TestTargetReached(t *testing.T) {
	is := is.New(t)
	config := configWithSize(4)
	config.TargetTile = 8
	e, err := NewEngineFromBoard(config, Grid{
		{4, 4, 0, 0},
		{0, 0, 0, 0},
		{0, 0, 0, 0},
		{0, 0, 0, 0},
	}, 0, &scriptedSource{})
	is.NoErr(err)

	is.True(!e.TargetReached())
	is.True(e.Move(Left))
	is.True(e.TargetReached())
	is.True(!e.IsTerminal()) // play continues past the target

	state := e.GetState()
	is.True(state.TargetReached)
	is.Equal(state.Message, "Reached 8! Keep going. Score: 8")
}

func TestGetState_Snapshot(t *testing.T) {
	is := is.New(t)
	e := newTestEngine(t, Grid{
		{2, 2, 0, 0},
		{0, 0, 0, 0},
		{0, 0, 0, 0},
		{0, 0, 0, 0},
	}, 0, &scriptedSource{})
	e.Move(Left)

	state := e.GetState()
	is.Equal(state.Score, 4)
	is.Equal(state.BoardSize, 4)
	is.Equal(state.MaxTile, 4)
	is.Equal(state.EmptyCells, 14)
	is.Equal(state.TotalMoves, 1)
	is.Equal(state.AcceptedMoves, 1)
	is.True(!state.GameOver)
	is.Equal(state.ConfigName, "classic")
	is.True(state.LastSpawn != nil)
	is.True(state.BoardHash != "")

	// Mutating the snapshot must not reach the engine
	state.Board[0][0] = 2048
	state.LastSpawn.Value = 2048
	is.Equal(e.Board()[0][0], 4)
	is.Equal(e.GetState().LastSpawn.Value, 2)
}

func TestGetState_LeavesHistoryOut(t *testing.T) {
	is := is.New(t)
	e := newTestEngine(t, Grid{
		{2, 2, 0, 0},
		{0, 0, 0, 0},
		{0, 0, 0, 0},
		{0, 0, 0, 0},
	}, 0, &scriptedSource{})
	e.Move(Left)
	e.Move(Left)
	e.Move(Right)

	state := e.GetState()
	is.Equal(state.TotalMoves, 3)
	is.Equal(len(e.GetMoveHistory()), 3)

	data, err := json.Marshal(state)
	is.NoErr(err)
	var fields map[string]json.RawMessage
	is.NoErr(json.Unmarshal(data, &fields))
	_, ok := fields["move_history"]
	is.True(!ok) // snapshots carry counters, not the history
	_, ok = fields["total_moves"]
	is.True(ok)
}

func TestGetState_GameOverMessage(t *testing.T) {
	e := newTestEngine(t, Grid{
		{2, 4},
		{4, 2},
	}, 36, &scriptedSource{})

	state := e.GetState()
	if !state.GameOver {
		t.Error("Expected game over")
	}
	if state.Message != "Game over! Final score: 36" {
		t.Errorf("Unexpected message %q", state.Message)
	}
}

func TestGetMoveHistory_ReturnsCopy(t *testing.T) {
	e := newTestEngine(t, Grid{{2, 0}, {0, 0}}, 0, &scriptedSource{})
	e.Move(Right)

	history := e.GetMoveHistory()
	history[0].ScoreGained = 999

	if e.GetMoveHistory()[0].ScoreGained == 999 {
		t.Error("GetMoveHistory should return a copy")
	}
	if e.GetMoveHistory()[0].Timestamp != 1700000000 {
		t.Errorf("Unexpected timestamp %d", e.GetMoveHistory()[0].Timestamp)
	}
}
