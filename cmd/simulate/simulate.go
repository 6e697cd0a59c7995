package main

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/wricardo/mcp-training/mergegame/game/engine"
)

// gameResult is the outcome of one simulated game
type gameResult struct {
	Score   int
	MaxTile int
	Moves   int
	Reached bool
	Capped  bool
}

type runOptions struct {
	Games    int
	Seed     uint64
	Workers  int
	MaxMoves int
}

func (o runOptions) validate() error {
	switch {
	case o.Games <= 0:
		return errors.New("games must be positive")
	case o.Workers <= 0:
		return errors.New("workers must be positive")
	case o.MaxMoves <= 0:
		return errors.New("max moves must be positive")
	}
	return nil
}

// playGame plays one game to the end, or until maxMoves moves were accepted.
// The seed drives both tile spawning and the strategy, so a seed always
// replays the same game.
func playGame(config *engine.GameConfig, strategy Strategy, seed uint64, maxMoves int) (gameResult, error) {
	rng := engine.NewSeededSource(seed)
	g, err := engine.NewEngine(config, rng)
	if err != nil {
		return gameResult{}, err
	}

	for g.AcceptedMoves() < maxMoves && !g.IsTerminal() {
		d := strategy(g, rng)
		if !g.Move(d) {
			return gameResult{}, fmt.Errorf("strategy chose rejected move %s", d)
		}
	}

	return gameResult{
		Score:   g.Score(),
		MaxTile: g.MaxTile(),
		Moves:   g.AcceptedMoves(),
		Reached: g.TargetReached(),
		Capped:  !g.IsTerminal(),
	}, nil
}

// simulate plays opts.Games games on a bounded pool of workers. Game i uses
// seed opts.Seed+i, so results are stable regardless of the worker count.
func simulate(ctx context.Context, config *engine.GameConfig, strategy Strategy, opts runOptions) ([]gameResult, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}

	results := make([]gameResult, opts.Games)
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.Workers)

	for i := range results {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			r, err := playGame(config, strategy, opts.Seed+uint64(i), opts.MaxMoves)
			if err != nil {
				return fmt.Errorf("game %d: %w", i, err)
			}
			results[i] = r
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// summary aggregates the results of one config and strategy
type summary struct {
	Config     string
	Strategy   string
	Games      int
	Mean       float64
	StdDev     float64
	CI95       float64
	Median     float64
	P90        float64
	Best       int
	MeanMoves  float64
	TargetRate float64
	Capped     int
	MaxTiles   map[int]int
	Scores     []float64
}

// zValue returns the two-tailed z value for a confidence level in percent
func zValue(confidence float64) float64 {
	dist := distuv.Normal{Mu: 0, Sigma: 1}
	return dist.Quantile((1 + confidence/100) / 2)
}

func summarize(config, strategy string, results []gameResult) summary {
	s := summary{
		Config:   config,
		Strategy: strategy,
		Games:    len(results),
		MaxTiles: map[int]int{},
	}
	if len(results) == 0 {
		return s
	}

	scores := make([]float64, len(results))
	moves := make([]float64, len(results))
	reached := 0
	for i, r := range results {
		scores[i] = float64(r.Score)
		moves[i] = float64(r.Moves)
		s.MaxTiles[r.MaxTile]++
		if r.Reached {
			reached++
		}
		if r.Capped {
			s.Capped++
		}
	}
	sort.Float64s(scores)

	s.Mean = stat.Mean(scores, nil)
	if len(scores) > 1 {
		s.StdDev = stat.StdDev(scores, nil)
		s.CI95 = zValue(95) * s.StdDev / math.Sqrt(float64(len(scores)))
	}
	s.Median = stat.Quantile(0.5, stat.Empirical, scores, nil)
	s.P90 = stat.Quantile(0.9, stat.Empirical, scores, nil)
	s.Best = int(scores[len(scores)-1])
	s.MeanMoves = stat.Mean(moves, nil)
	s.TargetRate = float64(reached) / float64(len(results))
	s.Scores = scores
	return s
}
