package sampling

import (
	"fmt"
	"strings"

	"github.com/agbru/mandelarea/internal/mandelbrot"
	"github.com/agbru/mandelarea/internal/orthogonal"
)

// Method names a sampling strategy.
type Method string

// Supported methods.
const (
	Pure  Method = "pure"
	LHS   Method = "lhs"
	Ortho Method = "ortho"
)

// Methods lists every method in the order results are reported.
var Methods = []Method{Pure, LHS, Ortho}

// DisplayName returns the label used in reports and result file names.
func (m Method) DisplayName() string {
	switch m {
	case Pure:
		return "Pure"
	case LHS:
		return "LHS"
	case Ortho:
		return "Ortho"
	default:
		return string(m)
	}
}

// ParseMethod accepts a method name or display name, case-insensitively.
func ParseMethod(s string) (Method, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "pure", "random", "pure-random":
		return Pure, nil
	case "lhs", "latin-hypercube":
		return LHS, nil
	case "ortho", "orthogonal":
		return Ortho, nil
	}
	return "", fmt.Errorf("unknown sampling method %q", s)
}

// Sampler produces a fresh batch of points on every call.
type Sampler interface {
	// Method identifies the strategy.
	Method() Method
	// Points returns how many points Sample(size, ...) yields.
	Points(size int) int
	// Sample draws a batch over d. The meaning of size is strategy specific:
	// a point count for pure and LHS sampling, a grid side for orthogonal.
	Sample(size int, d mandelbrot.Domain) (mandelbrot.Batch, error)
}

func checkSize(size int, what string) error {
	if size <= 0 {
		return fmt.Errorf("%w: %s must be positive, got %d", mandelbrot.ErrInvalidArgument, what, size)
	}
	return nil
}

// PureRandom draws i.i.d. uniform points.
type PureRandom struct {
	Source Source
}

// NewPureRandom returns a PureRandom sampler; a nil src selects DefaultSource.
func NewPureRandom(src Source) *PureRandom {
	if src == nil {
		src = DefaultSource()
	}
	return &PureRandom{Source: src}
}

// Method implements Sampler.
func (*PureRandom) Method() Method { return Pure }

// Points implements Sampler.
func (*PureRandom) Points(size int) int { return size }

// Sample implements Sampler.
func (s *PureRandom) Sample(size int, d mandelbrot.Domain) (mandelbrot.Batch, error) {
	if err := checkSize(size, "sample size"); err != nil {
		return nil, err
	}
	batch := make(mandelbrot.Batch, size)
	for i := range batch {
		batch[i] = d.Scale(s.Source.Float64(), s.Source.Float64())
	}
	return batch, nil
}

// Orthogonal samples through the orthogonal bridge. Its size argument is the
// grid side M and it returns M² points.
type Orthogonal struct {
	Bridge *orthogonal.Bridge
}

// NewOrthogonal returns an Orthogonal sampler backed by b.
func NewOrthogonal(b *orthogonal.Bridge) *Orthogonal {
	return &Orthogonal{Bridge: b}
}

// Method implements Sampler.
func (*Orthogonal) Method() Method { return Ortho }

// Points implements Sampler.
func (*Orthogonal) Points(size int) int { return size * size }

// Sample implements Sampler. The bridge fills the reference square, which is
// mapped affinely onto d.
func (s *Orthogonal) Sample(size int, d mandelbrot.Domain) (mandelbrot.Batch, error) {
	if err := checkSize(size, "grid side"); err != nil {
		return nil, err
	}
	re, im, err := s.Bridge.Generate(size, 1)
	if err != nil {
		return nil, err
	}
	const span = orthogonal.ReferenceHigh - orthogonal.ReferenceLow
	batch := make(mandelbrot.Batch, len(re))
	for i := range batch {
		u := (re[i] - orthogonal.ReferenceLow) / span
		v := (im[i] - orthogonal.ReferenceLow) / span
		batch[i] = d.Scale(u, v)
	}
	return batch, nil
}
