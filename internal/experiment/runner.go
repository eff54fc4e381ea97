package experiment

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/agbru/mandelarea/internal/blob"
	apperrors "github.com/agbru/mandelarea/internal/errors"
	"github.com/agbru/mandelarea/internal/estimator"
	"github.com/agbru/mandelarea/internal/logging"
	"github.com/agbru/mandelarea/internal/results"
	"github.com/agbru/mandelarea/internal/sampling"
)

// ConvergenceTolerance is the distance to the reference area below which an
// estimate is reported as converged.
const ConvergenceTolerance = 1e-5

// ErrNoReference is returned by TrueArea when nothing is cached and no
// orthogonal estimator is available to compute the reference.
var ErrNoReference = errors.New("no reference area available")

// Options configures a Runner.
type Options struct {
	// Repository persists series and the reference area. Nil disables
	// persistence.
	Repository *results.Repository
	// Recorder receives one entry per estimate. Nil selects NopRecorder.
	Recorder results.Recorder
	// Reference computes the reference area when none is cached. It is
	// normally the orthogonal estimator.
	Reference estimator.Estimator
	// TrueAreaGrid and TrueAreaIter size the reference estimate.
	TrueAreaGrid int
	TrueAreaIter int
	// Workers bounds concurrent pure and LHS jobs; zero means unbounded.
	Workers int
	// Sequential runs every job in plan order on one lane. Seeded runs set
	// it so draws from the shared source happen in a fixed order.
	Sequential bool
	// Seed is recorded in the ledger.
	Seed   uint64
	Logger logging.Logger
}

// Runner executes plans.
type Runner struct {
	opts Options
	log  logging.Logger
}

// NewRunner returns a Runner configured by opts.
func NewRunner(opts Options) *Runner {
	if opts.Recorder == nil {
		opts.Recorder = results.NopRecorder{}
	}
	if opts.Logger == nil {
		opts.Logger = logging.Nop()
	}
	if opts.TrueAreaGrid <= 0 {
		opts.TrueAreaGrid = 400
	}
	if opts.TrueAreaIter <= 0 {
		opts.TrueAreaIter = 300
	}
	return &Runner{opts: opts, log: opts.Logger}
}

// Series is the outcome of one method over a plan.
type Series struct {
	Method  sampling.Method  `json:"method"`
	Records []results.Record `json:"records"`
	// Converged lists the indices of records within ConvergenceTolerance of
	// the reference area.
	Converged []int         `json:"converged,omitempty"`
	Duration  time.Duration `json:"duration_ns"`
	// Stored describes the persisted series; zero when persistence is off.
	Stored blob.Info `json:"stored"`
	Err    error     `json:"-"`
}

// Report is the outcome of a plan across methods.
type Report struct {
	Experiment results.Experiment `json:"experiment"`
	// TrueArea is zero when no reference was available.
	TrueArea float64  `json:"true_area"`
	Series   []Series `json:"series"`
}

// Failed returns the joined errors of the failed series.
func (r Report) Failed() error {
	var errs []error
	for _, s := range r.Series {
		if s.Err != nil {
			errs = append(errs, s.Err)
		}
	}
	return errors.Join(errs...)
}

// TrueArea returns the cached reference area, computing and caching it with
// the reference estimator when nothing usable is stored.
func (r *Runner) TrueArea(ctx context.Context) (area float64, cached bool, err error) {
	if repo := r.opts.Repository; repo != nil {
		v, ok, err := repo.LoadTrueArea(ctx)
		if err != nil {
			return 0, false, err
		}
		if ok {
			r.log.Debug("reference area loaded", logging.Float64("area", v))
			return v, true, nil
		}
	}
	v, err := r.ComputeTrueArea(ctx)
	return v, false, err
}

// ComputeTrueArea always recomputes the reference area and stores it.
func (r *Runner) ComputeTrueArea(ctx context.Context) (float64, error) {
	if r.opts.Reference == nil {
		return 0, ErrNoReference
	}
	res, err := r.opts.Reference.Estimate(ctx, r.opts.TrueAreaGrid, r.opts.TrueAreaIter)
	if err != nil {
		return 0, apperrors.EstimationError{Method: r.opts.Reference.Method().DisplayName(), Cause: err}
	}
	r.log.Info("reference area computed",
		logging.Float64("area", res.Area),
		logging.Int("grid", r.opts.TrueAreaGrid),
		logging.Int("max_iter", r.opts.TrueAreaIter),
		logging.Duration("duration", res.Duration))
	if repo := r.opts.Repository; repo != nil {
		if err := repo.SaveTrueArea(ctx, res.Area); err != nil {
			return res.Area, err
		}
	}
	r.record(ctx, results.Single, res)
	return res.Area, nil
}

// Run executes plan for every estimator and persists each successful series.
// Orthogonal jobs always run one at a time on their own lane; pure and LHS
// jobs share a pool bounded by Options.Workers. A failing job fails its
// method's series without stopping the other methods. The subject, when
// non-nil, is notified with the fraction of jobs done per estimator index.
func (r *Runner) Run(ctx context.Context, plan Plan, estimators []estimator.Estimator, subject *estimator.ProgressSubject) (Report, error) {
	if err := plan.Validate(); err != nil {
		return Report{}, err
	}
	report := Report{Experiment: plan.Experiment, Series: make([]Series, len(estimators))}

	truth, _, err := r.TrueArea(ctx)
	switch {
	case errors.Is(err, ErrNoReference):
		r.log.Warn("no reference area, convergence is not checked")
	case err != nil:
		return report, err
	default:
		report.TrueArea = truth
	}

	type methodRun struct {
		ctx     context.Context
		cancel  context.CancelCauseFunc
		records []results.Record
		done    atomic.Int64
		start   time.Time
		elapsed atomic.Int64
	}
	runs := make([]*methodRun, len(estimators))
	for i := range estimators {
		mctx, cancel := context.WithCancelCause(ctx)
		runs[i] = &methodRun{ctx: mctx, cancel: cancel, records: make([]results.Record, len(plan.Jobs)), start: time.Now()}
	}
	defer func() {
		for _, mr := range runs {
			mr.cancel(nil)
		}
	}()

	runJob := func(i, j int) {
		est, mr := estimators[i], runs[i]
		if mr.ctx.Err() != nil {
			return
		}
		job := plan.Jobs[j]
		res, err := est.Estimate(mr.ctx, job.Size(est.Method()), job.MaxIter)
		if err != nil {
			mr.cancel(fmt.Errorf("job %d (side %d, budget %d): %w", j, job.Side, job.MaxIter, err))
			return
		}
		mr.records[j] = results.Record{NumSamples: res.NumSamples, MaxIter: res.MaxIter, Area: res.Area}
		r.log.Debug("estimate",
			logging.String("experiment", string(plan.Experiment)),
			logging.String("method", est.Method().DisplayName()),
			logging.Int("num_samples", res.NumSamples),
			logging.Int("max_iter", res.MaxIter),
			logging.Float64("area", res.Area))
		r.record(mr.ctx, plan.Experiment, res)
		done := mr.done.Add(1)
		mr.elapsed.Store(int64(time.Since(mr.start)))
		if subject != nil {
			subject.Notify(i, float64(done)/float64(len(plan.Jobs)))
		}
	}

	var pool errgroup.Group
	if r.opts.Workers > 0 {
		pool.SetLimit(r.opts.Workers)
	}
	var lane sync.WaitGroup
	lane.Add(1)
	go func() {
		defer lane.Done()
		for i, est := range estimators {
			if !r.opts.Sequential && est.Method() != sampling.Ortho {
				continue
			}
			for j := range plan.Jobs {
				runJob(i, j)
			}
		}
	}()
	if !r.opts.Sequential {
		for j := range plan.Jobs {
			for i, est := range estimators {
				if est.Method() == sampling.Ortho {
					continue
				}
				pool.Go(func() error {
					runJob(i, j)
					return nil
				})
			}
		}
	}
	_ = pool.Wait()
	lane.Wait()

	for i, est := range estimators {
		mr := runs[i]
		s := Series{Method: est.Method(), Duration: time.Duration(mr.elapsed.Load())}
		if cause := context.Cause(mr.ctx); cause != nil {
			s.Err = apperrors.EstimationError{Method: est.Method().DisplayName(), Cause: cause}
			report.Series[i] = s
			continue
		}
		s.Records = mr.records
		if report.TrueArea > 0 {
			s.Converged = r.checkConvergence(plan.Experiment, est.Method(), mr.records, report.TrueArea)
		}
		if repo := r.opts.Repository; repo != nil {
			info, err := repo.SaveSeries(ctx, plan.Experiment, est.Method(), mr.records)
			if err != nil {
				s.Err = err
			}
			s.Stored = info
		}
		report.Series[i] = s
	}

	if err := ctx.Err(); err != nil {
		return report, err
	}
	return report, nil
}

func (r *Runner) checkConvergence(e results.Experiment, m sampling.Method, records []results.Record, truth float64) []int {
	var converged []int
	for i, rec := range records {
		if math.Abs(rec.Area-truth) < ConvergenceTolerance {
			converged = append(converged, i)
			r.log.Info("convergence reached",
				logging.String("experiment", string(e)),
				logging.String("method", m.DisplayName()),
				logging.Int("num_samples", rec.NumSamples),
				logging.Int("max_iter", rec.MaxIter),
				logging.Float64("area", rec.Area))
		}
	}
	return converged
}

func (r *Runner) record(ctx context.Context, e results.Experiment, res estimator.Result) {
	err := r.opts.Recorder.Record(ctx, results.Entry{
		Experiment: e,
		Method:     res.Method,
		NumSamples: res.NumSamples,
		MaxIter:    res.MaxIter,
		Area:       res.Area,
		Duration:   res.Duration,
		Seed:       r.opts.Seed,
	})
	if err != nil {
		r.log.Warn("ledger write failed", logging.Err(err))
	}
}
