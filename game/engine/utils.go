package engine

import (
	"encoding/binary"
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// NewGrid creates an empty size x size grid
func NewGrid(size int) Grid {
	g := make(Grid, size)
	for i := range g {
		g[i] = make([]int, size)
	}
	return g
}

// Size returns the side length of the grid
func (g Grid) Size() int {
	return len(g)
}

// Clone returns a deep copy of the grid
func (g Grid) Clone() Grid {
	c := make(Grid, len(g))
	for i, row := range g {
		c[i] = append([]int(nil), row...)
	}
	return c
}

// Equal reports whether both grids hold the same values cell by cell
func (g Grid) Equal(other Grid) bool {
	if len(g) != len(other) {
		return false
	}
	for i := range g {
		if len(g[i]) != len(other[i]) {
			return false
		}
		for j := range g[i] {
			if g[i][j] != other[i][j] {
				return false
			}
		}
	}
	return true
}

// Transpose returns a new grid with rows and columns swapped
func (g Grid) Transpose() Grid {
	n := len(g)
	t := NewGrid(n)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			t[j][i] = g[i][j]
		}
	}
	return t
}

// ReverseRows returns a new grid with every row reversed
func (g Grid) ReverseRows() Grid {
	r := make(Grid, len(g))
	for i, row := range g {
		rev := make([]int, len(row))
		for j, v := range row {
			rev[len(row)-1-j] = v
		}
		r[i] = rev
	}
	return r
}

// EmptyCells lists empty positions in row-major order
func (g Grid) EmptyCells() []Position {
	var empty []Position
	for i, row := range g {
		for j, v := range row {
			if v == 0 {
				empty = append(empty, Position{Row: i, Col: j})
			}
		}
	}
	return empty
}

// MaxTile returns the largest value on the grid
func (g Grid) MaxTile() int {
	max := 0
	for _, row := range g {
		for _, v := range row {
			if v > max {
				max = v
			}
		}
	}
	return max
}

// CountTiles counts the non-empty cells
func (g Grid) CountTiles() int {
	count := 0
	for _, row := range g {
		for _, v := range row {
			if v != 0 {
				count++
			}
		}
	}
	return count
}

// IsTerminal reports whether no move can change the grid: every cell is
// filled and no two horizontally or vertically adjacent cells are equal.
func IsTerminal(g Grid) bool {
	n := len(g)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			v := g[i][j]
			if v == 0 {
				return false
			}
			if i+1 < n && g[i+1][j] == v {
				return false
			}
			if j+1 < n && g[i][j+1] == v {
				return false
			}
		}
	}
	return true
}

// IsPowerOfTwoTile reports whether v is a legal tile value (2, 4, 8, ...)
func IsPowerOfTwoTile(v int) bool {
	return v >= 2 && v&(v-1) == 0
}

// Fingerprint hashes the grid contents, including its size
func Fingerprint(g Grid) uint64 {
	d := xxhash.New()
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], uint64(len(g)))
	d.Write(buf[:])
	for _, row := range g {
		for _, v := range row {
			binary.LittleEndian.PutUint64(buf[:], uint64(v))
			d.Write(buf[:])
		}
	}
	return d.Sum64()
}

// String renders the grid as space separated rows, "." marking empty cells
func (g Grid) String() string {
	width := len(strconv.Itoa(g.MaxTile()))
	if width < 1 {
		width = 1
	}
	var sb strings.Builder
	for i, row := range g {
		if i > 0 {
			sb.WriteByte('\n')
		}
		for j, v := range row {
			if j > 0 {
				sb.WriteByte(' ')
			}
			cell := "."
			if v != 0 {
				cell = strconv.Itoa(v)
			}
			sb.WriteString(strings.Repeat(" ", width-len(cell)))
			sb.WriteString(cell)
		}
	}
	return sb.String()
}
