// Package mandelbrot implements the escape-time membership test for the
// Mandelbrot set, its batch evaluation over sample points, and the Monte Carlo
// area estimate derived from a membership mask.
package mandelbrot

import (
	"errors"
	"fmt"
	"math"
)

// ErrInvalidArgument is returned for inputs the estimation pipeline cannot
// give a meaningful answer for: empty masks, non-positive iteration budgets,
// non-positive sample sizes and degenerate domains.
var ErrInvalidArgument = errors.New("invalid argument")

// ReferenceArea is the best published estimate of the area of the
// Mandelbrot set, used as a sanity reference in reports.
const ReferenceArea = 1.5065918849

// EscapeRadiusSquared is the squared escape radius. An orbit whose squared
// magnitude exceeds it is proven divergent.
const EscapeRadiusSquared = 4.0

// Interval is a closed interval [Low, High] on one axis of the complex plane.
type Interval struct {
	Low  float64 `json:"low"`
	High float64 `json:"high"`
}

// Width returns High - Low.
func (i Interval) Width() float64 { return i.High - i.Low }

// Contains reports whether v lies in the closed interval.
func (i Interval) Contains(v float64) bool { return v >= i.Low && v <= i.High }

// Scale maps a unit-interval value u into the interval with the affine
// transform low + u*(high-low).
func (i Interval) Scale(u float64) float64 { return i.Low + u*(i.High-i.Low) }

func (i Interval) validate(axis string) error {
	if math.IsNaN(i.Low) || math.IsNaN(i.High) || math.IsInf(i.Low, 0) || math.IsInf(i.High, 0) {
		return fmt.Errorf("%w: %s bounds must be finite, got [%g, %g]", ErrInvalidArgument, axis, i.Low, i.High)
	}
	if i.Low >= i.High {
		return fmt.Errorf("%w: %s lower bound %g must be below upper bound %g", ErrInvalidArgument, axis, i.Low, i.High)
	}
	return nil
}

// Domain is the rectangular sampling region of the complex plane. A Domain
// obtained from NewDomain always has Low < High on both axes; it is a value
// type and is never mutated after construction.
type Domain struct {
	Real Interval `json:"real"`
	Imag Interval `json:"imag"`
}

// NewDomain validates the two axis intervals and returns the Domain they span.
func NewDomain(real, imag Interval) (Domain, error) {
	if err := real.validate("real axis"); err != nil {
		return Domain{}, err
	}
	if err := imag.validate("imaginary axis"); err != nil {
		return Domain{}, err
	}
	return Domain{Real: real, Imag: imag}, nil
}

// MustDomain is like NewDomain but panics on invalid bounds. It is meant for
// package-level defaults and tests.
func MustDomain(real, imag Interval) Domain {
	d, err := NewDomain(real, imag)
	if err != nil {
		panic(err)
	}
	return d
}

// DefaultDomain returns the square [-2,2] x [-2,2], which encloses the whole set.
func DefaultDomain() Domain {
	return MustDomain(Interval{Low: -2, High: 2}, Interval{Low: -2, High: 2})
}

// Width returns the extent of the real axis.
func (d Domain) Width() float64 { return d.Real.Width() }

// Height returns the extent of the imaginary axis.
func (d Domain) Height() float64 { return d.Imag.Width() }

// Area returns Width() * Height().
func (d Domain) Area() float64 { return d.Width() * d.Height() }

// Contains reports whether p lies inside the closed rectangle.
func (d Domain) Contains(p Point) bool { return d.Real.Contains(p.Re) && d.Imag.Contains(p.Im) }

// Scale maps a point of the unit square onto the domain.
func (d Domain) Scale(u, v float64) Point {
	return Point{Re: d.Real.Scale(u), Im: d.Imag.Scale(v)}
}

// String implements fmt.Stringer.
func (d Domain) String() string {
	return fmt.Sprintf("[%g, %g] x [%g, %g]", d.Real.Low, d.Real.High, d.Imag.Low, d.Imag.High)
}

// Point is a sample c = Re + Im·i.
type Point struct {
	Re float64 `json:"re"`
	Im float64 `json:"im"`
}

// Batch is an ordered sequence of sample points. A Batch is produced fresh by
// a sampler and is not mutated afterwards.
type Batch []Point

// Mask holds one membership flag per point of a Batch, aligned by index.
// true means the orbit stayed bounded for the whole iteration budget.
type Mask []bool

// Count returns the number of members in the mask.
func (m Mask) Count() int {
	n := 0
	for _, in := range m {
		if in {
			n++
		}
	}
	return n
}
