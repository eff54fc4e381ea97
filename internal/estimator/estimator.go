// Package estimator runs the Monte Carlo pipeline, sampler → batch
// evaluator → area estimate, for one sampling method, and layers metrics,
// tracing, logging and progress reporting around it.
package estimator

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/agbru/mandelarea/internal/mandelbrot"
	"github.com/agbru/mandelarea/internal/sampling"
)

var (
	estimatesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mandelarea_estimates_total",
			Help: "The total number of area estimates processed",
		},
		[]string{"method", "status"},
	)
	estimateDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mandelarea_estimate_duration_seconds",
			Help:    "The duration of area estimates in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 4, 10),
		},
		[]string{"method"},
	)
	pointsEvaluated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mandelarea_points_evaluated_total",
			Help: "The total number of sample points run through the escape-time test",
		},
		[]string{"method"},
	)
)

// progressBlocks is the number of slices a batch is evaluated in. Progress
// is reported and cancellation checked between slices.
const progressBlocks = 10

// Result is the outcome of one estimate.
type Result struct {
	Method sampling.Method `json:"method"`
	// Size is the size argument given to the sampler: a point count for
	// pure and LHS sampling, the grid side for orthogonal sampling.
	Size int `json:"size"`
	// NumSamples is the number of points actually evaluated.
	NumSamples int           `json:"num_samples"`
	MaxIter    int           `json:"max_iter"`
	Members    int           `json:"members"`
	Area       float64       `json:"area"`
	Duration   time.Duration `json:"duration_ns"`
}

// Estimator estimates the area of the Mandelbrot set with one sampling
// method. Implementations are safe for concurrent use, except that
// orthogonal estimates serialise on the bridge.
type Estimator interface {
	// Estimate samples size points (or a size×size orthogonal grid) and
	// returns the area estimate for the iteration budget maxIter.
	Estimate(ctx context.Context, size, maxIter int) (Result, error)

	// EstimateWithObservers is Estimate with progress notifications sent
	// to subject under the given index. A nil subject disables them.
	EstimateWithObservers(ctx context.Context, subject *ProgressSubject, index, size, maxIter int) (Result, error)

	// Method identifies the sampling method.
	Method() sampling.Method

	// Points returns how many points an estimate of size evaluates.
	Points(size int) int
}

// MonteCarlo is the Estimator implementation. It decorates a sampler with
// the shared evaluation pipeline.
type MonteCarlo struct {
	sampler sampling.Sampler
	domain  mandelbrot.Domain
	workers int
}

// New returns a MonteCarlo estimator. workers bounds the goroutines used by
// the batch evaluator; zero selects GOMAXPROCS. It panics if sampler is nil.
func New(sampler sampling.Sampler, domain mandelbrot.Domain, workers int) *MonteCarlo {
	if sampler == nil {
		panic("estimator: the sampler cannot be nil")
	}
	return &MonteCarlo{sampler: sampler, domain: domain, workers: workers}
}

// Method implements Estimator.
func (e *MonteCarlo) Method() sampling.Method { return e.sampler.Method() }

// Points implements Estimator by asking the sampler.
func (e *MonteCarlo) Points(size int) int { return e.sampler.Points(size) }

// Domain returns the region the estimator samples.
func (e *MonteCarlo) Domain() mandelbrot.Domain { return e.domain }

// Estimate implements Estimator.
func (e *MonteCarlo) Estimate(ctx context.Context, size, maxIter int) (Result, error) {
	return e.EstimateWithObservers(ctx, nil, 0, size, maxIter)
}

// EstimateWithObservers implements Estimator.
func (e *MonteCarlo) EstimateWithObservers(ctx context.Context, subject *ProgressSubject, index, size, maxIter int) (res Result, err error) {
	method := e.sampler.Method()
	ctx, span := otel.Tracer("mandelarea/estimator").Start(ctx, "Estimate")
	span.SetAttributes(
		attribute.String("method", string(method)),
		attribute.Int("size", size),
		attribute.Int("max_iter", maxIter),
	)
	defer span.End()

	start := time.Now()
	defer func() {
		duration := time.Since(start)
		status := "success"
		if err != nil {
			status = "error"
			span.RecordError(err)
		}
		estimatesTotal.WithLabelValues(string(method), status).Inc()
		estimateDuration.WithLabelValues(string(method)).Observe(duration.Seconds())
		if err == nil {
			pointsEvaluated.WithLabelValues(string(method)).Add(float64(res.NumSamples))
		}

		log.Debug().
			Str("method", string(method)).
			Int("size", size).
			Int("max_iter", maxIter).
			Float64("area", res.Area).
			Dur("duration", duration).
			Str("status", status).
			Msg("estimate completed")
	}()

	report := func(float64) {}
	if subject != nil {
		report = subject.AsProgressReporter(index)
	}

	if maxIter <= 0 {
		return Result{}, fmt.Errorf("%w: iteration budget must be positive, got %d", mandelbrot.ErrInvalidArgument, maxIter)
	}
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	batch, err := e.sampler.Sample(size, e.domain)
	if err != nil {
		return Result{}, err
	}
	report(0.1)

	mask, err := e.evaluate(ctx, batch, maxIter, report)
	if err != nil {
		return Result{}, err
	}

	area, err := mandelbrot.EstimateArea(mask, e.domain)
	if err != nil {
		return Result{}, err
	}
	report(1.0)

	return Result{
		Method:     method,
		Size:       size,
		NumSamples: len(batch),
		MaxIter:    maxIter,
		Members:    mask.Count(),
		Area:       area,
		Duration:   time.Since(start),
	}, nil
}

// evaluate runs the batch evaluator block by block, reporting progress on
// the (0.1, 1] range and stopping early if ctx is done.
func (e *MonteCarlo) evaluate(ctx context.Context, batch mandelbrot.Batch, maxIter int, report ProgressReporter) (mandelbrot.Mask, error) {
	mask := make(mandelbrot.Mask, 0, len(batch))
	block := max((len(batch)+progressBlocks-1)/progressBlocks, 1)
	for start := 0; start < len(batch); start += block {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		end := min(start+block, len(batch))
		part, err := mandelbrot.EvaluateParallel(ctx, batch[start:end], maxIter, e.workers)
		if err != nil {
			return nil, err
		}
		mask = append(mask, part...)
		report(0.1 + 0.9*float64(end)/float64(len(batch)))
	}
	return mask, nil
}
