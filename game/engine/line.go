package engine

// CompactAndMergeLine slides the non-zero values of line toward index 0,
// merging equal neighbours in scan order, and pads the tail with zeros.
// It returns a new slice of the same length together with the sum of all
// merge results. The input is not modified.
//
// A value produced by a merge never merges again in the same pass, so
// [2 2 2 0] becomes [4 2 0 0] and [2 2 2 2] becomes [4 4 0 0].
func CompactAndMergeLine(line []int) ([]int, int) {
	out, gained, _ := compactLine(line)
	return out, gained
}

// compactLine is CompactAndMergeLine that also reports the number of merges.
func compactLine(line []int) ([]int, int, int) {
	out := make([]int, 0, len(line))
	gained, merges := 0, 0

	pending := 0
	for _, v := range line {
		if v == 0 {
			continue
		}
		switch {
		case pending == 0:
			pending = v
		case pending == v:
			out = append(out, pending+v)
			gained += pending + v
			merges++
			pending = 0
		default:
			out = append(out, pending)
			pending = v
		}
	}
	if pending != 0 {
		out = append(out, pending)
	}

	for len(out) < len(line) {
		out = append(out, 0)
	}
	return out, gained, merges
}
