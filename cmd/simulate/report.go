package main

import (
	"fmt"
	"io"
	"sort"

	"github.com/aybabtme/uniplot/histogram"
	"github.com/fatih/color"
	"github.com/samber/lo"
)

const histogramWidth = 40

var (
	headerStyle = color.New(color.FgCyan, color.Bold)
	goodStyle   = color.New(color.FgGreen)
	warnStyle   = color.New(color.FgYellow)
)

// printSummary writes one config/strategy report. bins <= 0 skips the
// histogram.
func printSummary(w io.Writer, s summary, bins int) error {
	headerStyle.Fprintf(w, "=== %s / %s (%d games) ===\n", s.Config, s.Strategy, s.Games)
	if s.Games == 0 {
		fmt.Fprintln(w, "no games played")
		return nil
	}

	fmt.Fprintf(w, "Score: mean %.1f ± %.1f (95%%), stddev %.1f\n", s.Mean, s.CI95, s.StdDev)
	fmt.Fprintf(w, "       median %.0f, p90 %.0f, best %d\n", s.Median, s.P90, s.Best)
	fmt.Fprintf(w, "Moves: mean %.1f\n", s.MeanMoves)

	rate := fmt.Sprintf("Target reached: %.1f%%", s.TargetRate*100)
	if s.TargetRate > 0 {
		goodStyle.Fprintln(w, rate)
	} else {
		warnStyle.Fprintln(w, rate)
	}
	if s.Capped > 0 {
		warnStyle.Fprintf(w, "%d games hit the move cap\n", s.Capped)
	}

	fmt.Fprintln(w, "Max tile:")
	tiles := lo.Keys(s.MaxTiles)
	sort.Sort(sort.Reverse(sort.IntSlice(tiles)))
	for _, tile := range tiles {
		count := s.MaxTiles[tile]
		fmt.Fprintf(w, "  %6d  %4d  (%5.1f%%)\n", tile, count, float64(count)*100/float64(s.Games))
	}

	if bins > 0 {
		fmt.Fprintln(w, "Score distribution:")
		if err := histogram.Fprint(w, histogram.Hist(bins, s.Scores), histogram.Linear(histogramWidth)); err != nil {
			return err
		}
	}
	fmt.Fprintln(w)
	return nil
}
