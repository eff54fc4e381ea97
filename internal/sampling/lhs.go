package sampling

import (
	"fmt"
	"math"
	"strings"

	"github.com/agbru/mandelarea/internal/mandelbrot"
)

// Pairing decides how the stratified draws of the two axes are combined
// into points.
type Pairing int

const (
	// IndependentPermutation shuffles the stratum order of each axis
	// independently before pairing, the classical Latin hypercube.
	IndependentPermutation Pairing = iota
	// PairByIndex pairs the i-th stratum of the real axis with the i-th
	// stratum of the imaginary axis. The axes are then fully correlated and
	// every point sits in a diagonal cell.
	PairByIndex
)

// String implements fmt.Stringer.
func (p Pairing) String() string {
	switch p {
	case IndependentPermutation:
		return "permute"
	case PairByIndex:
		return "index"
	default:
		return fmt.Sprintf("Pairing(%d)", int(p))
	}
}

// ParsePairing parses "permute" or "index".
func ParsePairing(s string) (Pairing, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "permute", "independent", "":
		return IndependentPermutation, nil
	case "index", "by-index":
		return PairByIndex, nil
	}
	return 0, fmt.Errorf("unknown LHS pairing %q (want permute or index)", s)
}

// LatinHypercube splits each axis into N equal strata and draws exactly one
// value per stratum per axis.
type LatinHypercube struct {
	Source  Source
	Pairing Pairing
}

// NewLatinHypercube returns an LHS sampler; a nil src selects DefaultSource.
func NewLatinHypercube(src Source, pairing Pairing) *LatinHypercube {
	if src == nil {
		src = DefaultSource()
	}
	return &LatinHypercube{Source: src, Pairing: pairing}
}

// Method implements Sampler.
func (*LatinHypercube) Method() Method { return LHS }

// Points implements Sampler.
func (*LatinHypercube) Points(size int) int { return size }

// Sample implements Sampler.
func (s *LatinHypercube) Sample(size int, d mandelbrot.Domain) (mandelbrot.Batch, error) {
	if err := checkSize(size, "sample size"); err != nil {
		return nil, err
	}
	xs, ys := LatinHypercubeUnit(size, s.Source, s.Pairing)
	batch := make(mandelbrot.Batch, size)
	for i := range batch {
		batch[i] = d.Scale(xs[i], ys[i])
	}
	return batch, nil
}

// LatinHypercubeUnit returns the unit-square coordinates of an n-point Latin
// hypercube sample before scaling onto a domain.
func LatinHypercubeUnit(n int, src Source, pairing Pairing) (xs, ys []float64) {
	xs = stratified(n, src, pairing == IndependentPermutation)
	ys = stratified(n, src, pairing == IndependentPermutation)
	return xs, ys
}

// stratified draws (k + U)/n for every stratum k, optionally in a random
// stratum order.
func stratified(n int, src Source, shuffle bool) []float64 {
	out := make([]float64, n)
	var order []int
	if shuffle {
		order = src.Perm(n)
	}
	for i := range out {
		k := i
		if shuffle {
			k = order[i]
		}
		u := (float64(k) + src.Float64()) / float64(n)
		if u >= 1 {
			u = math.Nextafter(1, 0)
		}
		out[i] = u
	}
	return out
}
