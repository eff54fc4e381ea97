// Package sampling generates batches of sample points over a domain of the
// complex plane: i.i.d. uniform points, Latin hypercube samples and
// orthogonal samples.
package sampling

import (
	"math/rand/v2"
	"slices"
	"sync"
)

// Source is the randomness a sampler draws from. Implementations must be
// safe for concurrent use.
type Source interface {
	// Float64 returns a uniform value in [0, 1).
	Float64() float64
	// IntN returns a uniform value in [0, n).
	IntN(n int) int
	// Perm returns a uniform random permutation of [0, n).
	Perm(n int) []int
}

type processSource struct{}

func (processSource) Float64() float64 { return rand.Float64() }
func (processSource) IntN(n int) int   { return rand.IntN(n) }
func (processSource) Perm(n int) []int { return rand.Perm(n) }

// DefaultSource returns the process-wide generator. It is seeded randomly at
// start-up and shared by every sampler that is not given its own source.
func DefaultSource() Source { return processSource{} }

type seededSource struct {
	mu sync.Mutex
	r  *rand.Rand
}

// NewSeededSource returns a deterministic source. Two sources built from the
// same seed yield the same sequence when used from one goroutine.
func NewSeededSource(seed uint64) Source {
	return newSeededStream(seed, 0)
}

// streams differ in the PCG increment only, so they never share a sequence.
func newSeededStream(seed, stream uint64) *seededSource {
	return &seededSource{r: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15+stream))}
}

func (s *seededSource) Float64() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.r.Float64()
}

func (s *seededSource) IntN(n int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.r.IntN(n)
}

func (s *seededSource) Perm(n int) []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.r.Perm(n)
}

// MethodSource returns the source method m draws from under seed. A zero
// seed selects the process-wide source. Otherwise every method gets its own
// seeded stream, so estimates running concurrently never interleave draws
// and each one depends on the seed alone.
func MethodSource(seed uint64, m Method) Source {
	if seed == 0 {
		return DefaultSource()
	}
	return newSeededStream(seed, uint64(slices.Index(Methods, m)+1))
}
