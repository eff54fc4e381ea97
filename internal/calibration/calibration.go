package calibration

import (
	"context"
	"errors"
	"fmt"
	"io"
	"runtime"
	"sync"
	"time"

	"github.com/agbru/mandelarea/internal/cli"
	"github.com/agbru/mandelarea/internal/config"
	apperrors "github.com/agbru/mandelarea/internal/errors"
	"github.com/agbru/mandelarea/internal/estimator"
	"github.com/agbru/mandelarea/internal/mandelbrot"
	"github.com/agbru/mandelarea/internal/sampling"
	"github.com/agbru/mandelarea/internal/ui"
)

// Calibration batch defaults.
const (
	DefaultPoints       = 1 << 18
	DefaultMaxIter      = 200
	DefaultTrials       = 3
	DefaultTrialTimeout = 30 * time.Second

	// calibrationSeed fixes the benchmark batch so profiles are comparable.
	calibrationSeed = 3737
)

// ErrNoValidResult is returned when every candidate failed.
var ErrNoValidResult = errors.New("calibration produced no valid result")

// Options configures a calibration run. Zero fields take the defaults.
type Options struct {
	// Points is the size of the benchmark batch.
	Points int
	// MaxIter is the iteration budget of each point.
	MaxIter int
	// Trials is how many times each candidate is timed; the fastest counts.
	Trials int
	// TrialTimeout bounds a single trial.
	TrialTimeout time.Duration
	// Candidates overrides WorkerCandidates.
	Candidates []int
}

func (o Options) withDefaults() Options {
	if o.Points <= 0 {
		o.Points = DefaultPoints
	}
	if o.MaxIter <= 0 {
		o.MaxIter = DefaultMaxIter
	}
	if o.Trials <= 0 {
		o.Trials = DefaultTrials
	}
	if o.TrialTimeout <= 0 {
		o.TrialTimeout = DefaultTrialTimeout
	}
	if len(o.Candidates) == 0 {
		o.Candidates = WorkerCandidates()
	}
	return o
}

// Result is the timing of one worker count.
type Result struct {
	Workers  int
	Duration time.Duration
	Err      error
}

// Outcome gathers the results of a calibration run.
type Outcome struct {
	Results      []Result
	Best         int
	BestDuration time.Duration
	Elapsed      time.Duration
}

// Run times mandelbrot.EvaluateParallel over one fixed batch for each
// candidate worker count and keeps the fastest trial of each. Progress is
// sent to progress when it is non-nil. A cancelled ctx stops the run and is
// returned as the error; a failed or timed-out trial only disqualifies its
// candidate.
//
// Parameters:
//   - ctx: Cancels the whole run.
//   - opts: The benchmark settings; zero fields take their defaults.
//   - progress: Receives the fraction of trials done; may be nil.
//
// Returns:
//   - Outcome: Every candidate's best trial and the fastest worker count.
//   - error: ctx.Err() on cancellation, ErrNoValidResult when every
//     candidate failed.
func Run(ctx context.Context, opts Options, progress chan<- estimator.ProgressUpdate) (Outcome, error) {
	opts = opts.withDefaults()
	start := time.Now()
	var out Outcome

	batch, err := sampling.NewPureRandom(sampling.NewSeededSource(calibrationSeed)).
		Sample(opts.Points, mandelbrot.DefaultDomain())
	if err != nil {
		return out, err
	}

	total := float64(len(opts.Candidates) * opts.Trials)
	done := 0
	for _, workers := range opts.Candidates {
		res := Result{Workers: workers}
		for trial := range opts.Trials {
			if err := ctx.Err(); err != nil {
				out.Elapsed = time.Since(start)
				return out, err
			}
			d, err := timeTrial(ctx, batch, opts, workers)
			if err != nil {
				if ctx.Err() != nil {
					out.Elapsed = time.Since(start)
					return out, ctx.Err()
				}
				res.Err = err
				done += opts.Trials - trial
				break
			}
			if trial == 0 || d < res.Duration {
				res.Duration = d
			}
			done++
			if progress != nil {
				progress <- estimator.ProgressUpdate{Value: float64(done) / total}
			}
		}
		out.Results = append(out.Results, res)
		if res.Err == nil && (out.Best == 0 || res.Duration < out.BestDuration) {
			out.Best, out.BestDuration = res.Workers, res.Duration
		}
	}
	out.Elapsed = time.Since(start)
	if out.Best == 0 {
		return out, ErrNoValidResult
	}
	return out, nil
}

func timeTrial(ctx context.Context, batch mandelbrot.Batch, opts Options, workers int) (time.Duration, error) {
	tctx, cancel := context.WithTimeout(ctx, opts.TrialTimeout)
	defer cancel()
	start := time.Now()
	if _, err := mandelbrot.EvaluateParallel(tctx, batch, opts.MaxIter, workers); err != nil {
		return 0, err
	}
	return time.Since(start), nil
}

// RunCalibration benchmarks the candidate worker counts, prints a summary
// table to out and saves the winner to the profile at profilePath (the
// default path when empty). It returns the process exit code.
func RunCalibration(ctx context.Context, out io.Writer, opts Options, profilePath string) int {
	opts = opts.withDefaults()
	fmt.Fprintf(out, "--- Calibration Mode: Finding the Optimal Worker Count ---\n")
	fmt.Fprintf(out, "%sTesting %d worker counts on %d CPU cores (%d points, %d iterations, best of %d)%s\n",
		ui.ColorCyan(), len(opts.Candidates), runtime.NumCPU(), opts.Points, opts.MaxIter, opts.Trials, ui.ColorReset())

	var wg sync.WaitGroup
	progressChan := make(chan estimator.ProgressUpdate, 8)
	wg.Add(1)
	go cli.DisplayProgress(&wg, progressChan, 1, out)

	outcome, err := Run(ctx, opts, progressChan)
	close(progressChan)
	wg.Wait()

	if err != nil {
		if apperrors.IsContextError(err) {
			fmt.Fprintf(out, "\n%sCalibration interrupted.%s\n", ui.ColorYellow(), ui.ColorReset())
			return apperrors.HandleEstimationError(err, outcome.Elapsed, out, ui.Colors{})
		}
		fmt.Fprintf(out, "\n%sCalibration failed: %v%s\n", ui.ColorRed(), err, ui.ColorReset())
		return apperrors.ExitErrorGeneric
	}

	printCalibrationResults(out, outcome.Results, outcome.Best)
	fmt.Fprintf(out, "\n%s✅ Recommendation for this machine: %s--workers %d%s\n",
		ui.ColorGreen(), ui.ColorYellow(), outcome.Best, ui.ColorReset())

	profile := NewProfile()
	profile.OptimalWorkers = outcome.Best
	profile.Points = opts.Points
	profile.MaxIter = opts.MaxIter
	profile.CalibrationTime = outcome.Elapsed.String()
	saveCalibrationProfile(profile, profilePath, out)
	return apperrors.ExitSuccess
}

// LoadCachedCalibration applies a cached profile to cfg. An explicit
// --workers value always wins, so the profile is only consulted when
// cfg.Workers is zero.
//
// Parameters:
//   - cfg: The configuration to update.
//   - profilePath: The profile file; empty selects the default path.
//
// Returns:
//   - config.AppConfig: cfg, with Workers taken from the profile when applied.
//   - bool: True if the profile was applied.
func LoadCachedCalibration(cfg config.AppConfig, profilePath string) (updated config.AppConfig, ok bool) {
	if cfg.Workers != 0 {
		return cfg, false
	}
	profile, loaded := LoadOrCreateProfile(profilePath)
	if !loaded || profile.OptimalWorkers <= 0 {
		return cfg, false
	}
	updated = cfg
	updated.Workers = profile.OptimalWorkers
	return updated, true
}

func saveCalibrationProfile(profile *Profile, profilePath string, out io.Writer) {
	if profilePath == "" {
		profilePath = GetDefaultProfilePath()
	}
	if err := profile.SaveProfile(profilePath); err != nil {
		fmt.Fprintf(out, "%sWarning: could not save calibration profile: %v%s\n",
			ui.ColorYellow(), err, ui.ColorReset())
		return
	}
	fmt.Fprintf(out, "%sCalibration profile saved to %s%s\n", ui.ColorGreen(), profilePath, ui.ColorReset())
}
