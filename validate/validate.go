// Command validate checks the board variant files in a configs directory
// (./configs unless a directory is given). For each .json, .yaml or .yml file
// it checks:
//   - the file parses and passes engine.ValidateGameConfig
//   - the target tile can actually be built on the board
//   - no two files share a config ID (classic.json and classic.yaml)
//
// It prints a report and exits non-zero if any file is invalid.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/fatih/color"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v3"

	"github.com/wricardo/mcp-training/mergegame/game/engine"
)

// ValidationResult captures the outcome of validating a single file.
// If Valid is true, Errors contains informational messages; otherwise it
// accumulates the validation errors that were found.
type ValidationResult struct {
	File   string
	Valid  bool
	Errors []string
}

func (r *ValidationResult) fail(format string, args ...any) {
	r.Valid = false
	r.Errors = append(r.Errors, fmt.Sprintf(format, args...))
}

func (r *ValidationResult) info(format string, args ...any) {
	r.Errors = append(r.Errors, "✓ "+fmt.Sprintf(format, args...))
}

// validateConfig loads and validates a single configuration file.
func validateConfig(filePath string) ValidationResult {
	result := ValidationResult{
		File:   filepath.Base(filePath),
		Valid:  true,
		Errors: []string{},
	}

	data, err := os.ReadFile(filePath)
	if err != nil {
		result.fail("Failed to read file: %v", err)
		return result
	}

	config, err := engine.ParseGameConfig(filePath, data)
	if err != nil {
		result.fail("Invalid file: %v", err)
		return result
	}

	if err := engine.ValidateGameConfig(config); err != nil {
		result.fail("%v", err)
		return result
	}
	result.info("Board %dx%d, %d opening tiles, four probability %g",
		config.BoardSize, config.BoardSize, config.InitialTiles, config.FourProbability)

	target := validateTarget(config)
	result.Errors = append(result.Errors, target.Errors...)
	if !target.Valid {
		result.Valid = false
	}

	return result
}

// maxReachableTile is the largest tile a board can hold: every cell but one
// filled with a descending chain, plus the spawn that completes it.
func maxReachableTile(config *engine.GameConfig) int {
	cells := config.BoardSize * config.BoardSize
	exp := cells
	if config.FourProbability > 0 {
		exp++
	}
	if exp > 62 {
		return 1 << 62
	}
	return 1 << exp
}

// validateTarget checks that the target tile can be built on the board.
func validateTarget(config *engine.GameConfig) ValidationResult {
	result := ValidationResult{Valid: true, Errors: []string{}}

	if config.TargetTile == 0 {
		result.info("No target tile; games run until the board locks")
		return result
	}

	limit := maxReachableTile(config)
	if config.TargetTile > limit {
		result.fail("Target tile %d cannot be reached on a %dx%d board (largest possible tile is %d)",
			config.TargetTile, config.BoardSize, config.BoardSize, limit)
		return result
	}
	result.info("Target tile %d is reachable (largest possible tile is %d)", config.TargetTile, limit)
	return result
}

// configFiles lists the variant files of dir in name order.
func configFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var files []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(entry.Name())) {
		case ".json", ".yaml", ".yml":
			files = append(files, filepath.Join(dir, entry.Name()))
		}
	}
	sort.Strings(files)
	return files, nil
}

func configID(file string) string {
	base := filepath.Base(file)
	return strings.ToLower(strings.TrimSuffix(base, filepath.Ext(base)))
}

// validateDir validates every variant file in dir and writes a report to w.
// It reports whether all files are valid.
func validateDir(dir string, w io.Writer) (bool, error) {
	files, err := configFiles(dir)
	if err != nil {
		return false, fmt.Errorf("finding config files: %w", err)
	}
	if len(files) == 0 {
		return false, fmt.Errorf("no config files in %s", dir)
	}

	owners := map[string]string{}
	allValid := true
	for _, file := range files {
		result := validateConfig(file)

		id := configID(file)
		if first, dup := owners[id]; dup {
			result.fail("Config ID %q is already defined by %s", id, first)
		} else {
			owners[id] = result.File
		}

		fmt.Fprintf(w, "\n%s %s\n", strings.Repeat("=", 20), result.File)

		if result.Valid {
			color.New(color.FgGreen).Fprintln(w, "✅ VALID")
			for _, info := range result.Errors {
				fmt.Fprintln(w, "  "+info)
			}
		} else {
			color.New(color.FgRed).Fprintln(w, "❌ INVALID")
			allValid = false
			for _, err := range result.Errors {
				if !strings.HasPrefix(err, "✓") {
					fmt.Fprintln(w, "  ❌ "+err)
				}
			}
		}
	}

	fmt.Fprintf(w, "\n%s\n", strings.Repeat("=", 40))
	if allValid {
		fmt.Fprintln(w, "✅ All configurations are valid!")
	} else {
		fmt.Fprintln(w, "❌ Some configurations have errors")
	}
	return allValid, nil
}

func newCommand() *cli.Command {
	return &cli.Command{
		Name:      "validate",
		Usage:     "validate merge game variant files",
		ArgsUsage: "[configs-dir]",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			dir := "configs"
			if cmd.Args().Present() {
				dir = cmd.Args().First()
			}

			ok, err := validateDir(dir, cmd.Root().Writer)
			if err != nil {
				return err
			}
			if !ok {
				return errors.New("some configurations have errors")
			}
			return nil
		},
	}
}

// main validates the configs directory and exits with a non-zero status if
// any file is invalid.
func main() {
	if err := newCommand().Run(context.Background(), os.Args); err != nil {
		log.Fatal().Err(err).Msg("validation failed")
	}
}
