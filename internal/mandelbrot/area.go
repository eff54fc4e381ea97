package mandelbrot

import (
	"fmt"
	"math"
)

// EstimateArea converts a membership mask into the Monte Carlo estimate
// (members / N) * width * height. The result is not rounded.
func EstimateArea(mask Mask, d Domain) (float64, error) {
	if len(mask) == 0 {
		return 0, fmt.Errorf("%w: cannot estimate an area from an empty mask", ErrInvalidArgument)
	}
	return float64(mask.Count()) / float64(len(mask)) * d.Width() * d.Height(), nil
}

// Round6 rounds x to six decimals, the precision used when results are
// reported or persisted.
func Round6(x float64) float64 {
	return math.Round(x*1e6) / 1e6
}
