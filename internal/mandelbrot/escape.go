package mandelbrot

import (
	"context"
	"fmt"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// IsMember runs the escape-time test for c = re + im·i: starting from z = 0 it
// iterates z = z² + c at most maxIter times and returns false as soon as
// |z|² > 4. A non-positive maxIter performs no iteration and reports true;
// the batch entry points reject such budgets before getting here.
func IsMember(re, im float64, maxIter int) bool {
	var zr, zi float64
	for i := 0; i < maxIter; i++ {
		zr, zi = step(zr, zi, re, im)
		if escaped(zr, zi) {
			return false
		}
	}
	return true
}

// step advances z² + c by one round. The explicit conversions round every
// product to float64, which keeps the compiler from fusing multiply-adds
// differently in the scalar and batch paths.
func step(zr, zi, cr, ci float64) (float64, float64) {
	return float64(zr*zr) - float64(zi*zi) + cr, float64(2*zr*zi) + ci
}

func escaped(zr, zi float64) bool {
	return float64(zr*zr)+float64(zi*zi) > EscapeRadiusSquared
}

// Evaluate computes the membership mask of a batch. It keeps a list of still
// active indices and only advances those orbits each round, so escaped points
// cost nothing after they leave. The arithmetic is the same sequence of
// float64 operations as IsMember, so the mask is identical index for index to
// calling IsMember on each point.
//
// An empty batch yields an empty mask. maxIter must be positive.
func Evaluate(batch Batch, maxIter int) (Mask, error) {
	if maxIter <= 0 {
		return nil, fmt.Errorf("%w: iteration budget must be positive, got %d", ErrInvalidArgument, maxIter)
	}
	mask := make(Mask, len(batch))
	evaluateInto(batch, mask, maxIter)
	return mask, nil
}

func evaluateInto(batch Batch, mask Mask, maxIter int) {
	n := len(batch)
	if n == 0 {
		return
	}

	cr := make([]float64, n)
	ci := make([]float64, n)
	zr := make([]float64, n)
	zi := make([]float64, n)
	active := make([]int, n)
	for i, p := range batch {
		cr[i], ci[i] = p.Re, p.Im
		active[i] = i
		mask[i] = true
	}

	for iter := 0; iter < maxIter && len(active) > 0; iter++ {
		kept := active[:0]
		for _, k := range active {
			r, m := step(zr[k], zi[k], cr[k], ci[k])
			zr[k], zi[k] = r, m
			if escaped(r, m) {
				mask[k] = false
				continue
			}
			kept = append(kept, k)
		}
		active = kept
	}
}

// MinParallelChunk is the smallest slice of a batch handed to one worker by
// EvaluateParallel. Smaller batches are evaluated on the calling goroutine.
const MinParallelChunk = 4096

// EvaluateParallel is Evaluate split across workers goroutines over
// contiguous chunks of the batch. The result is identical to Evaluate.
// workers <= 0 selects runtime.GOMAXPROCS(0). Cancellation is checked
// before each chunk starts; a chunk already running completes.
func EvaluateParallel(ctx context.Context, batch Batch, maxIter, workers int) (Mask, error) {
	if maxIter <= 0 {
		return nil, fmt.Errorf("%w: iteration budget must be positive, got %d", ErrInvalidArgument, maxIter)
	}
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	mask := make(Mask, len(batch))
	if workers == 1 || len(batch) < 2*MinParallelChunk {
		evaluateInto(batch, mask, maxIter)
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return mask, nil
	}

	chunk := (len(batch) + workers - 1) / workers
	if chunk < MinParallelChunk {
		chunk = MinParallelChunk
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for start := 0; start < len(batch); start += chunk {
		end := min(start+chunk, len(batch))
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			evaluateInto(batch[start:end], mask[start:end], maxIter)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return mask, nil
}
