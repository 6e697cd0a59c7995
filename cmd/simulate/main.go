// Command simulate plays many seeded games per board variant with simple
// strategies and reports score statistics. Runs are reproducible: the same
// seed, config and strategy always produce the same report.
//
// Usage:
//
//	simulate --games 200 --strategy greedy --config classic
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v3"

	"github.com/wricardo/mcp-training/mergegame/game/config"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newCommand().Run(ctx, os.Args); err != nil {
		log.Fatal().Err(err).Msg("simulation failed")
	}
}

func newCommand() *cli.Command {
	return &cli.Command{
		Name:  "simulate",
		Usage: "play seeded merge games and report score statistics",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config-dir", Value: "configs", Usage: "directory containing game configurations"},
			&cli.StringSliceFlag{Name: "config", Usage: "configs to simulate (default: every config in config-dir)"},
			&cli.StringSliceFlag{Name: "strategy", Usage: fmt.Sprintf("strategies to run %v (default: all)", strategyNames())},
			&cli.IntFlag{Name: "games", Value: 100, Usage: "games per config and strategy"},
			&cli.Uint64Flag{Name: "seed", Value: 1, Usage: "seed of the first game"},
			&cli.IntFlag{Name: "workers", Value: runtime.NumCPU(), Usage: "games played concurrently"},
			&cli.IntFlag{Name: "max-moves", Value: 100000, Usage: "stop a game after this many accepted moves"},
			&cli.IntFlag{Name: "bins", Value: 10, Usage: "histogram buckets (0 disables the histogram)"},
			&cli.BoolFlag{Name: "debug", Usage: "enable debug logging"},
		},
		Before: func(ctx context.Context, cmd *cli.Command) (context.Context, error) {
			zerolog.SetGlobalLevel(zerolog.InfoLevel)
			if cmd.Bool("debug") {
				zerolog.SetGlobalLevel(zerolog.DebugLevel)
			}
			log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}).
				With().Timestamp().Logger()
			return ctx, nil
		},
		Action: run,
	}
}

func run(ctx context.Context, cmd *cli.Command) error {
	opts := runOptions{
		Games:    cmd.Int("games"),
		Seed:     cmd.Uint64("seed"),
		Workers:  cmd.Int("workers"),
		MaxMoves: cmd.Int("max-moves"),
	}
	if err := opts.validate(); err != nil {
		return err
	}

	configs, err := config.NewManager(cmd.String("config-dir"))
	if err != nil {
		return err
	}

	configIDs := cmd.StringSlice("config")
	if len(configIDs) == 0 {
		infos, err := configs.ListConfigs()
		if err != nil {
			return err
		}
		for _, info := range infos {
			configIDs = append(configIDs, info.ConfigID)
		}
	}
	if len(configIDs) == 0 {
		return fmt.Errorf("no configs found in %s", cmd.String("config-dir"))
	}

	strategyList := cmd.StringSlice("strategy")
	if len(strategyList) == 0 {
		strategyList = strategyNames()
	}

	for _, id := range configIDs {
		cfg, err := configs.LoadConfig(id)
		if err != nil {
			return fmt.Errorf("config %s: %w", id, err)
		}

		for _, name := range strategyList {
			strategy, err := lookupStrategy(name)
			if err != nil {
				return err
			}

			start := time.Now()
			results, err := simulate(ctx, cfg, strategy, opts)
			if err != nil {
				return fmt.Errorf("%s/%s: %w", id, name, err)
			}
			log.Debug().Str("config", id).Str("strategy", name).Dur("elapsed", time.Since(start)).Msg("simulated")

			if err := printSummary(cmd.Root().Writer, summarize(id, name, results), cmd.Int("bins")); err != nil {
				return err
			}
		}
	}
	return nil
}
