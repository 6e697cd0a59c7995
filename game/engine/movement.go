package engine

import (
	"errors"
	"fmt"
	"strings"
)

var ErrInvalidDirection = errors.New("invalid direction")

// ParseDirection converts user input such as "Left" or "up" into a Direction
func ParseDirection(s string) (Direction, error) {
	switch Direction(strings.ToLower(strings.TrimSpace(s))) {
	case Left:
		return Left, nil
	case Right:
		return Right, nil
	case Up:
		return Up, nil
	case Down:
		return Down, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidDirection, s)
}

// orientation maps a direction onto the canonical leftward slide. apply
// brings the board into the orientation where the move is a left slide and
// undo maps the result back.
type orientation struct {
	apply func(Grid) Grid
	undo  func(Grid) Grid
}

var orientations = map[Direction]orientation{
	Left:  {apply: Grid.Clone, undo: Grid.Clone},
	Right: {apply: Grid.ReverseRows, undo: Grid.ReverseRows},
	Up:    {apply: Grid.Transpose, undo: Grid.Transpose},
	Down:  {apply: transposeReverse, undo: reverseTranspose},
}

func transposeReverse(g Grid) Grid { return g.Transpose().ReverseRows() }

func reverseTranspose(g Grid) Grid { return g.ReverseRows().Transpose() }

// slideResult is the outcome of computing a move without committing it
type slideResult struct {
	board   Grid
	gained  int
	merges  int
	changed bool
}

// slide computes the candidate board for a move in direction d. It never
// mutates g.
func slide(g Grid, d Direction) (slideResult, error) {
	o, ok := orientations[d]
	if !ok {
		return slideResult{}, fmt.Errorf("%w: %q", ErrInvalidDirection, string(d))
	}

	oriented := o.apply(g)
	gained, merges := 0, 0
	for i, row := range oriented {
		out, rowGained, rowMerges := compactLine(row)
		oriented[i] = out
		gained += rowGained
		merges += rowMerges
	}

	candidate := o.undo(oriented)
	return slideResult{
		board:   candidate,
		gained:  gained,
		merges:  merges,
		changed: !candidate.Equal(g),
	}, nil
}
