package main

import (
	"fmt"
	"sort"

	"github.com/samber/lo"

	"github.com/wricardo/mcp-training/mergegame/game/engine"
)

// Strategy picks the next direction for a game that is not terminal. It
// only ever returns a direction the engine would accept.
type Strategy func(g *engine.GameEngine, rng engine.RandomSource) engine.Direction

var strategies = map[string]Strategy{
	"random": randomMove,
	"greedy": greedyMove,
	"corner": cornerMove,
}

func strategyNames() []string {
	names := lo.Keys(strategies)
	sort.Strings(names)
	return names
}

func lookupStrategy(name string) (Strategy, error) {
	s, ok := strategies[name]
	if !ok {
		return nil, fmt.Errorf("unknown strategy %q (available: %v)", name, strategyNames())
	}
	return s, nil
}

// randomMove picks uniformly among the accepted moves.
func randomMove(g *engine.GameEngine, rng engine.RandomSource) engine.Direction {
	moves := g.GetPossibleMoves()
	return moves[rng.Intn(len(moves))]
}

// cornerMove keeps the largest tiles packed into the bottom-left corner.
var cornerOrder = []engine.Direction{engine.Down, engine.Left, engine.Right, engine.Up}

func cornerMove(g *engine.GameEngine, _ engine.RandomSource) engine.Direction {
	for _, d := range cornerOrder {
		if g.CanMove(d) {
			return d
		}
	}
	return cornerOrder[0]
}

// emptyCellWeight values one free cell against points gained this move.
const emptyCellWeight = 4

// greedyMove plays every accepted move on a copy of the board and keeps the
// one with the best immediate gain plus free space. Ties go to the earlier
// direction in engine.Directions.
func greedyMove(g *engine.GameEngine, rng engine.RandomSource) engine.Direction {
	moves := g.GetPossibleMoves()
	best, bestValue := moves[0], -1

	for _, d := range moves {
		trial, err := engine.NewEngineFromBoard(g.GetConfig(), g.Board(), g.Score(), rng)
		if err != nil {
			continue
		}
		trial.Move(d)

		value := trial.Score() - g.Score() + emptyCellWeight*len(trial.Board().EmptyCells())
		if value > bestValue {
			best, bestValue = d, value
		}
	}
	return best
}
