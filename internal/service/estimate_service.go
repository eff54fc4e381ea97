// Package service exposes single area estimates to the HTTP layer with
// request validation and ledger recording.
package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/agbru/mandelarea/internal/estimator"
	"github.com/agbru/mandelarea/internal/logging"
	"github.com/agbru/mandelarea/internal/results"
	"github.com/agbru/mandelarea/internal/sampling"
)

var (
	// ErrMaxSamplesExceeded is returned when a request would evaluate more
	// points than the configured limit.
	ErrMaxSamplesExceeded = errors.New("maximum sample count exceeded")
	// ErrMaxIterExceeded is returned when the iteration budget is above the
	// configured limit.
	ErrMaxIterExceeded = errors.New("maximum iteration budget exceeded")
)

// Service estimates the Mandelbrot area on request.
type Service interface {
	// Estimate runs one estimate. size is a point count for pure and LHS
	// sampling and the grid side for orthogonal sampling.
	Estimate(ctx context.Context, method string, size, maxIter int) (estimator.Result, error)
	// Methods lists the methods that can be requested.
	Methods() []sampling.Method
}

// Limits bounds the work a single request may ask for. Zero disables a limit.
type Limits struct {
	MaxSamples int
	MaxIter    int
}

// EstimatorService implements Service on top of an estimator factory.
type EstimatorService struct {
	factory  *estimator.Factory
	limits   Limits
	recorder results.Recorder
	logger   logging.Logger
}

// Ensure EstimatorService implements Service interface.
var _ Service = (*EstimatorService)(nil)

// NewEstimatorService returns a service drawing estimators from factory.
// A nil recorder disables ledger writes.
func NewEstimatorService(factory *estimator.Factory, limits Limits, recorder results.Recorder, logger logging.Logger) *EstimatorService {
	if recorder == nil {
		recorder = results.NopRecorder{}
	}
	if logger == nil {
		logger = logging.Nop()
	}
	return &EstimatorService{factory: factory, limits: limits, recorder: recorder, logger: logger}
}

// Estimate implements Service.
func (s *EstimatorService) Estimate(ctx context.Context, method string, size, maxIter int) (estimator.Result, error) {
	m, err := sampling.ParseMethod(method)
	if err != nil {
		return estimator.Result{}, fmt.Errorf("%w: %q", estimator.ErrUnknownMethod, method)
	}
	est, err := s.factory.Get(m)
	if err != nil {
		return estimator.Result{}, err
	}
	if limit := s.limits.MaxSamples; limit > 0 && (size > limit || est.Points(size) > limit) {
		return estimator.Result{}, ErrMaxSamplesExceeded
	}
	if limit := s.limits.MaxIter; limit > 0 && maxIter > limit {
		return estimator.Result{}, ErrMaxIterExceeded
	}
	res, err := est.Estimate(ctx, size, maxIter)
	if err != nil {
		return estimator.Result{}, err
	}
	if err := s.recorder.Record(ctx, results.Entry{
		Experiment: results.Single,
		Method:     res.Method,
		NumSamples: res.NumSamples,
		MaxIter:    res.MaxIter,
		Area:       res.Area,
		Duration:   res.Duration,
	}); err != nil {
		s.logger.Warn("ledger write failed", logging.Err(err))
	}
	return res, nil
}

// Methods implements Service. A method is listed only once its estimator
// could be built, so ortho is left out when its backend failed to load.
func (s *EstimatorService) Methods() []sampling.Method {
	var out []sampling.Method
	for _, m := range sampling.Methods {
		if _, err := s.factory.Get(m); err == nil {
			out = append(out, m)
		}
	}
	return out
}
