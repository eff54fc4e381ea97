// Package orthogonal produces orthogonal (jointly stratified) point sets on
// the reference square [-2,2]². Point sets come from a Generator, either the
// in-process Builtin or a compiled library loaded with LoadBackend, and are
// always obtained through a Bridge, which owns buffer sizing, call
// serialisation and the post-call contract check.
package orthogonal

import (
	"math/rand/v2"
)

// ReferenceLow and ReferenceHigh bound both axes of the square every
// generator fills.
const (
	ReferenceLow  = -2.0
	ReferenceHigh = 2.0
)

// NativeSeed is the seed the compiled routine hands its Mersenne Twister on
// every call. A Builtin with FixedSeed set reseeds with it the same way.
const NativeSeed = 3737

// Generator fills outReal and outImag, both of length major²·runs, with the
// coordinates of an orthogonal sample of the reference square.
type Generator interface {
	Name() string
	Generate(major, runs int, outReal, outImag []float64)
}

// Rand is the randomness the Builtin generator consumes.
type Rand interface {
	Float64() float64
	IntN(n int) int
}

// Builtin implements the orthogonal sampling routine in Go.
//
// The plane is cut into major×major major cells, each split into major²
// fine strata per axis. Row i of the x table holds the fine indices of
// major column i and row j of the y table those of major row j; each run
// shuffles every row, then point (i, j) takes x from xlist[i][j] and y from
// ylist[j][i] with a uniform jitter inside the fine stratum. Every major cell
// and every fine stratum of each axis receives exactly one point per run.
type Builtin struct {
	// Source supplies the permutations and the jitter. When nil the
	// process-wide generator is used, so each call returns a fresh sample.
	Source Rand
	// FixedSeed, with a nil Source, reseeds a private generator with
	// NativeSeed on every call, so every call returns the same sample.
	FixedSeed bool
}

type processRand struct{}

func (processRand) Float64() float64 { return rand.Float64() }
func (processRand) IntN(n int) int   { return rand.IntN(n) }

func (b *Builtin) source() Rand {
	switch {
	case b.Source != nil:
		return b.Source
	case b.FixedSeed:
		return rand.New(rand.NewPCG(NativeSeed, NativeSeed))
	default:
		return processRand{}
	}
}

// Name implements Generator.
func (b *Builtin) Name() string { return "builtin" }

// Generate implements Generator.
func (b *Builtin) Generate(major, runs int, outReal, outImag []float64) {
	r := b.source()

	samples := major * major
	scale := (ReferenceHigh - ReferenceLow) / float64(samples)

	xlist := make([][]int, major)
	ylist := make([][]int, major)
	m := 0
	for i := range major {
		xlist[i] = make([]int, major)
		ylist[i] = make([]int, major)
		for j := range major {
			xlist[i][j] = m
			ylist[i][j] = m
			m++
		}
	}

	idx := 0
	for range runs {
		for i := range major {
			permute(r, xlist[i])
			permute(r, ylist[i])
		}
		for i := range major {
			for j := range major {
				outReal[idx] = ReferenceLow + scale*(float64(xlist[i][j])+r.Float64())
				outImag[idx] = ReferenceLow + scale*(float64(ylist[j][i])+r.Float64())
				idx++
			}
		}
	}
}

// permute shuffles s in place (Fisher-Yates).
func permute(r Rand, s []int) {
	for i := len(s) - 1; i > 0; i-- {
		j := r.IntN(i + 1)
		s[i], s[j] = s[j], s[i]
	}
}
