// Package stats summarises repeated area estimates: moments, error against
// a reference area, normal confidence intervals and Welch's t-test between
// two sampling methods.
package stats

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"
)

// ErrInsufficientData is returned when a statistic needs more observations
// than it was given.
var ErrInsufficientData = errors.New("insufficient data")

// Mean returns the arithmetic mean of xs.
func Mean(xs []float64) (float64, error) {
	if len(xs) == 0 {
		return 0, fmt.Errorf("%w: mean of an empty sample", ErrInsufficientData)
	}
	return stat.Mean(xs, nil), nil
}

// Variance returns the population variance of xs (divisor n).
func Variance(xs []float64) (float64, error) {
	if len(xs) == 0 {
		return 0, fmt.Errorf("%w: variance of an empty sample", ErrInsufficientData)
	}
	return stat.PopVariance(xs, nil), nil
}

// StdDev returns the sample standard deviation of xs (divisor n-1).
func StdDev(xs []float64) (float64, error) {
	if len(xs) < 2 {
		return 0, fmt.Errorf("%w: standard deviation needs two observations, got %d", ErrInsufficientData, len(xs))
	}
	return stat.StdDev(xs, nil), nil
}

// MSE returns the mean squared error of xs against truth.
func MSE(xs []float64, truth float64) (float64, error) {
	if len(xs) == 0 {
		return 0, fmt.Errorf("%w: MSE of an empty sample", ErrInsufficientData)
	}
	return stat.MomentAbout(2, xs, truth, nil), nil
}

// NormalQuantile returns the p-quantile of the standard normal distribution.
func NormalQuantile(p float64) float64 {
	return distuv.UnitNormal.Quantile(p)
}

// Interval is a confidence interval for the mean of a sample.
type Interval struct {
	Level  float64 `json:"level"`
	Mean   float64 `json:"mean"`
	Lower  float64 `json:"lower"`
	Upper  float64 `json:"upper"`
	StdDev float64 `json:"std_dev"`
	// IncludesTrue reports whether the reference value lies in [Lower, Upper].
	IncludesTrue bool `json:"includes_true"`
}

// ConfidenceInterval returns the normal-approximation interval
// mean ± z·s/√n at the given level and checks whether truth falls inside.
func ConfidenceInterval(xs []float64, truth, level float64) (Interval, error) {
	if !(level > 0 && level < 1) {
		return Interval{}, fmt.Errorf("confidence level must be in (0, 1), got %g", level)
	}
	sd, err := StdDev(xs)
	if err != nil {
		return Interval{}, err
	}
	mean, _ := Mean(xs)
	margin := NormalQuantile((1+level)/2) * sd / math.Sqrt(float64(len(xs)))
	ci := Interval{
		Level:  level,
		Mean:   mean,
		Lower:  mean - margin,
		Upper:  mean + margin,
		StdDev: sd,
	}
	ci.IncludesTrue = ci.Lower <= truth && truth <= ci.Upper
	return ci, nil
}

// TTest is the result of Welch's unequal-variance t-test.
type TTest struct {
	T  float64 `json:"t"`
	DF float64 `json:"df"`
	// P is the two-sided p-value.
	P float64 `json:"p"`
}

// WelchTTest tests whether a and b have the same mean without assuming
// equal variances.
func WelchTTest(a, b []float64) (TTest, error) {
	if len(a) < 2 || len(b) < 2 {
		return TTest{}, fmt.Errorf("%w: t-test needs two observations per sample", ErrInsufficientData)
	}
	ma, va := stat.MeanVariance(a, nil)
	mb, vb := stat.MeanVariance(b, nil)
	sa := va / float64(len(a))
	sb := vb / float64(len(b))
	se := sa + sb
	if se == 0 {
		if ma == mb {
			return TTest{T: 0, DF: float64(len(a) + len(b) - 2), P: 1}, nil
		}
		return TTest{T: math.Copysign(math.Inf(1), ma-mb), DF: float64(len(a) + len(b) - 2), P: 0}, nil
	}
	t := (ma - mb) / math.Sqrt(se)
	df := se * se / (sa*sa/float64(len(a)-1) + sb*sb/float64(len(b)-1))
	return TTest{T: t, DF: df, P: StudentTwoSided(t, df)}, nil
}

// StudentTwoSided returns P(|T| >= |t|) for Student's t with df degrees of
// freedom.
func StudentTwoSided(t, df float64) float64 {
	dist := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: df}
	return min(1, 2*dist.CDF(-math.Abs(t)))
}
