package engine

import (
	"encoding/binary"

	"lukechampine.com/frand"
)

// RandomSource supplies the randomness used for tile spawning. Intn returns
// a value in [0, n) and Float64 a value in [0, 1).
type RandomSource interface {
	Intn(n int) int
	Float64() float64
}

// systemSource draws from frand's process-wide generator
type systemSource struct{}

func (systemSource) Intn(n int) int   { return frand.Intn(n) }
func (systemSource) Float64() float64 { return frand.Float64() }

// NewRandomSource returns a non-deterministic source backed by frand
func NewRandomSource() RandomSource {
	return systemSource{}
}

// NewSeededSource returns a deterministic source: two sources built from the
// same seed produce the same sequence, which makes games replayable.
func NewSeededSource(seed uint64) RandomSource {
	key := make([]byte, 32)
	binary.LittleEndian.PutUint64(key, seed)
	return frand.NewCustom(key, 1024, 12)
}
