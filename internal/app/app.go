package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/agbru/mandelarea/internal/blob"
	"github.com/agbru/mandelarea/internal/calibration"
	"github.com/agbru/mandelarea/internal/cli"
	"github.com/agbru/mandelarea/internal/config"
	apperrors "github.com/agbru/mandelarea/internal/errors"
	"github.com/agbru/mandelarea/internal/estimator"
	"github.com/agbru/mandelarea/internal/experiment"
	"github.com/agbru/mandelarea/internal/logging"
	"github.com/agbru/mandelarea/internal/orchestration"
	"github.com/agbru/mandelarea/internal/orthogonal"
	"github.com/agbru/mandelarea/internal/results"
	"github.com/agbru/mandelarea/internal/sampling"
	"github.com/agbru/mandelarea/internal/server"
	"github.com/agbru/mandelarea/internal/service"
	"github.com/agbru/mandelarea/internal/ui"
)

// Application represents the mandelarea application instance.
// It owns the estimator factory and the persistence backends built from the
// configuration, and runs one command against them.
type Application struct {
	// Config holds the finalized application configuration.
	Config config.AppConfig
	// Factory provides the estimator of every sampling method.
	Factory *estimator.Factory
	// Repository stores result series and the reference area.
	Repository *results.Repository
	// Ledger records every estimate; nil when the ledger is disabled.
	Ledger *results.Ledger
	// ErrWriter is the writer for error output (typically os.Stderr).
	ErrWriter io.Writer

	logger  logging.Logger
	closers []io.Closer
}

// New builds an Application from a finalized configuration. A native
// orthogonal backend that fails to load does not fail New: the orthogonal
// method reports the load error when it is requested and the other methods
// stay usable.
//
// Parameters:
//   - ctx: Bounds opening the result store and the ledger.
//   - cfg: The validated configuration. A zero Workers may be filled in from
//     the calibration profile.
//   - errWriter: Receives error reports of the commands run on the application.
//
// Returns:
//   - *Application: The wired application; Close releases it.
//   - error: A config error when a store, the ledger or a setting is unusable.
func New(ctx context.Context, cfg config.AppConfig, errWriter io.Writer) (*Application, error) {
	logger := logging.Component("app")
	if updated, ok := calibration.LoadCachedCalibration(cfg, cfg.CalibrationProfile); ok {
		logger.Debug("using calibrated worker count", logging.Int("workers", updated.Workers))
		cfg = updated
	}
	a := &Application{
		Config:    cfg,
		ErrWriter: errWriter,
		logger:    logger,
	}

	domain, err := cfg.Domain()
	if err != nil {
		return nil, apperrors.WrapConfigError(err, "invalid domain")
	}
	pairing, err := cfg.Pairing()
	if err != nil {
		return nil, apperrors.WrapConfigError(err, "invalid --lhs-pairing")
	}
	bridge, orthoErr := a.loadOrthogonal()
	if orthoErr != nil {
		a.logger.Warn("orthogonal backend unavailable", logging.String("backend", cfg.OrthoBackend), logging.Err(orthoErr))
	}
	a.Factory = estimator.NewFactory(estimator.Options{
		Domain:   domain,
		Seed:     cfg.Seed,
		Pairing:  pairing,
		Bridge:   bridge,
		OrthoErr: orthoErr,
		Workers:  cfg.Workers,
	})

	store, err := blob.Open(ctx, blob.Config{
		Driver: blob.Driver(cfg.Store),
		Root:   cfg.ResultsDir,
		S3: blob.S3Config{
			Bucket:    cfg.S3Bucket,
			Region:    cfg.S3Region,
			Endpoint:  cfg.S3Endpoint,
			PathStyle: cfg.S3PathStyle,
		},
	})
	if err != nil {
		a.Close()
		return nil, apperrors.WrapConfigError(err, "cannot open the %s result store", cfg.Store)
	}
	a.Repository = results.NewRepository(store)

	if cfg.LedgerDriver != results.LedgerNone {
		ledger, err := results.OpenLedger(ctx, cfg.LedgerDriver, cfg.LedgerDSN)
		if err != nil {
			a.Close()
			return nil, apperrors.WrapConfigError(err, "cannot open the %s ledger", cfg.LedgerDriver)
		}
		a.Ledger = ledger
		a.closers = append(a.closers, ledger)
	}
	return a, nil
}

// loadOrthogonal builds the orthogonal bridge for the configured backend.
func (a *Application) loadOrthogonal() (*orthogonal.Bridge, error) {
	switch a.Config.OrthoBackend {
	case config.BackendNative:
		lib, err := orthogonal.LoadBackend(orthogonal.HostPlatform(), a.Config.OrthoLibDir)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, lib)
		a.logger.Debug("native orthogonal backend loaded", logging.String("path", lib.Path()))
		return orthogonal.NewBridge(lib), nil
	default:
		return orthogonal.NewBridge(builtinGenerator(a.Config)), nil
	}
}

// builtinGenerator draws from the seeded source under --seed, reseeds per
// call under --ortho-native-seed, and otherwise uses the process-wide
// source so consecutive calls differ.
func builtinGenerator(cfg config.AppConfig) *orthogonal.Builtin {
	switch {
	case cfg.Seed != 0:
		return &orthogonal.Builtin{Source: sampling.MethodSource(cfg.Seed, sampling.Ortho)}
	case cfg.OrthoNativeSeed:
		return &orthogonal.Builtin{FixedSeed: true}
	default:
		return &orthogonal.Builtin{Source: sampling.DefaultSource()}
	}
}

// Close releases the ledger connection and the native library.
func (a *Application) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i].Close())
	}
	a.closers = nil
	return errors.Join(errs...)
}

// recorder returns the ledger as a Recorder, or a no-op when disabled.
func (a *Application) recorder() results.Recorder {
	if a.Ledger == nil {
		return results.NopRecorder{}
	}
	return a.Ledger
}

// RunEstimate runs the selected methods once and prints the comparison.
//
// Parameters:
//   - ctx: Cancels the estimates; the configured timeout is applied on top.
//   - out: The writer for progress and results.
//
// Returns:
//   - int: The process exit code.
func (a *Application) RunEstimate(ctx context.Context, out io.Writer) int {
	ctx, cancel := SetupLifecycle(ctx, a.Config.Timeout)
	defer cancel.Cleanup()

	estimators, err := cli.EstimatorsToRun(a.Config, a.Factory)
	if err != nil {
		a.logger.Warn("some methods are unavailable", logging.Err(err))
		if len(estimators) == 0 {
			return apperrors.HandleEstimationError(err, 0, a.ErrWriter, ui.Colors{})
		}
	}

	if !a.Config.JSONOutput && !a.Config.Quiet {
		cli.PrintExecutionConfig(a.Config, out)
		cli.PrintExecutionMode(estimators, out)
	}

	outcomes := orchestration.ExecuteEstimates(ctx, estimators, a.Config, out)
	for _, o := range outcomes {
		if o.Err != nil {
			continue
		}
		if err := a.recorder().Record(ctx, results.Entry{
			Experiment: results.Single,
			Method:     o.Result.Method,
			NumSamples: o.Result.NumSamples,
			MaxIter:    o.Result.MaxIter,
			Area:       o.Result.Area,
			Duration:   o.Result.Duration,
			Seed:       a.Config.Seed,
		}); err != nil {
			a.logger.Warn("ledger write failed", logging.Err(err))
		}
	}
	return orchestration.AnalyzeComparisonResults(outcomes, a.Config, out)
}

// Plan returns the experiment plan configured for e.
func (a *Application) Plan(e results.Experiment) (experiment.Plan, error) {
	c := a.Config
	switch e {
	case results.Sweep:
		return experiment.GridPlan(c.SweepSides, c.SweepIters), nil
	case results.Repeat:
		return experiment.RepeatPlan(c.RepeatSide, c.RepeatIter, c.Repeats), nil
	case results.Iterations:
		return experiment.IterationPlan(c.IterSweepSide, c.IterSweepMin, c.IterSweepMax, c.IterSweepStep), nil
	default:
		return experiment.Plan{}, apperrors.NewConfigError("experiment %q has no plan", e)
	}
}

// newRunner builds an experiment runner using the orthogonal estimator as
// the reference, when it is available.
func (a *Application) newRunner() *experiment.Runner {
	opts := experiment.Options{
		Repository:   a.Repository,
		Recorder:     a.recorder(),
		TrueAreaGrid: a.Config.TrueAreaGrid,
		TrueAreaIter: a.Config.TrueAreaIter,
		Workers:      a.Config.Workers,
		Sequential:   a.Config.Seed != 0,
		Seed:         a.Config.Seed,
		Logger:       logging.Component("experiment"),
	}
	if ref, err := a.Factory.Get(sampling.Ortho); err == nil {
		opts.Reference = ref
	}
	return experiment.NewRunner(opts)
}

// RunExperiment runs experiment e for the selected methods, persists every
// series and prints a per-method summary.
func (a *Application) RunExperiment(ctx context.Context, e results.Experiment, out io.Writer) int {
	ctx, cancel := SetupLifecycle(ctx, a.Config.Timeout)
	defer cancel.Cleanup()

	plan, err := a.Plan(e)
	if err != nil {
		return apperrors.HandleEstimationError(err, 0, a.ErrWriter, ui.Colors{})
	}
	estimators, err := cli.EstimatorsToRun(a.Config, a.Factory)
	if err != nil {
		a.logger.Warn("some methods are unavailable", logging.Err(err))
		if len(estimators) == 0 {
			return apperrors.HandleEstimationError(err, 0, a.ErrWriter, ui.Colors{})
		}
	}

	if !a.Config.JSONOutput && !a.Config.Quiet {
		cli.PrintExperimentPlan(plan, estimators, out)
	}

	progressOut := out
	if a.Config.Quiet || a.Config.JSONOutput {
		progressOut = io.Discard
	}
	progressChan := make(chan estimator.ProgressUpdate, len(estimators)*orchestration.ProgressBufferMultiplier)
	subject := estimator.NewProgressSubject()
	subject.Register(estimator.NewChannelObserver(progressChan))
	var displayWg sync.WaitGroup
	displayWg.Add(1)
	go cli.DisplayProgress(&displayWg, progressChan, len(estimators), progressOut)

	report, err := a.newRunner().Run(ctx, plan, estimators, subject)
	close(progressChan)
	displayWg.Wait()
	if err != nil {
		return apperrors.HandleEstimationError(err, 0, a.ErrWriter, ui.Colors{})
	}

	if a.Config.JSONOutput {
		if err := cli.WriteReportJSON(out, report); err != nil {
			return apperrors.ExitErrorGeneric
		}
	} else {
		cli.DisplayReport(report, a.Config.Quiet, out)
	}
	return reportExitCode(report)
}

// reportExitCode succeeds when at least one method completed its series.
func reportExitCode(report experiment.Report) int {
	for _, s := range report.Series {
		if s.Err == nil {
			return apperrors.ExitSuccess
		}
	}
	return apperrors.ExitCode(report.Failed())
}

// RunTrueArea prints the reference area, computing and caching it when it is
// missing or when force is set.
func (a *Application) RunTrueArea(ctx context.Context, force bool, out io.Writer) int {
	ctx, cancel := SetupLifecycle(ctx, a.Config.Timeout)
	defer cancel.Cleanup()

	runner := a.newRunner()
	var (
		area   float64
		cached bool
		err    error
	)
	if force {
		area, err = runner.ComputeTrueArea(ctx)
	} else {
		area, cached, err = runner.TrueArea(ctx)
	}
	if err != nil {
		return apperrors.HandleEstimationError(err, 0, a.ErrWriter, ui.Colors{})
	}
	cli.DisplayTrueArea(out, area, cached, a.Config.Quiet)
	return apperrors.ExitSuccess
}

// RunStats loads the stored series of experiment e and prints their
// statistics against the reference area.
func (a *Application) RunStats(ctx context.Context, e results.Experiment, out io.Writer) int {
	ctx, cancel := SetupLifecycle(ctx, a.Config.Timeout)
	defer cancel.Cleanup()

	truth, _, err := a.newRunner().TrueArea(ctx)
	if err != nil {
		return apperrors.HandleEstimationError(err, 0, a.ErrWriter, ui.Colors{})
	}
	analysis, err := experiment.Analyze(ctx, a.Repository, e, truth)
	if err != nil {
		return apperrors.HandleEstimationError(err, 0, a.ErrWriter, ui.Colors{})
	}
	if len(analysis.Summaries) == 0 {
		fmt.Fprintf(a.ErrWriter, "No stored series for the %s experiment. Run it first.\n", e)
		return apperrors.ExitErrorGeneric
	}
	if a.Config.JSONOutput {
		if err := cli.WriteAnalysisJSON(out, analysis); err != nil {
			return apperrors.ExitErrorGeneric
		}
		return apperrors.ExitSuccess
	}
	cli.DisplayAnalysis(analysis, out)
	return apperrors.ExitSuccess
}

// RunServer serves the HTTP API until ctx is canceled or a termination
// signal arrives.
func (a *Application) RunServer(ctx context.Context) int {
	svc := service.NewEstimatorService(a.Factory,
		service.Limits{MaxSamples: a.Config.MaxSamples, MaxIter: a.Config.MaxIterLimit},
		a.recorder(), logging.Component("service"))
	srv := server.NewServer(a.Factory, a.Config,
		server.WithService(svc),
		server.WithLogger(logging.Component("server")))
	if err := srv.Start(ctx); err != nil {
		fmt.Fprintf(a.ErrWriter, "Server error: %v\n", err)
		return apperrors.ExitErrorGeneric
	}
	return apperrors.ExitSuccess
}

// RunCalibration benchmarks the evaluation worker counts and saves the
// fastest to cfg.CalibrationProfile. It needs no stores, so it runs without
// an Application.
//
// Parameters:
//   - ctx: The parent context; cfg.Timeout and termination signals cancel it.
//   - cfg: Supplies the timeout and the profile path.
//   - opts: The benchmark batch, trial count and candidate worker counts.
//   - out: The writer for progress, the summary table and the recommendation.
//
// Returns:
//   - int: The process exit code.
func RunCalibration(ctx context.Context, cfg config.AppConfig, opts calibration.Options, out io.Writer) int {
	ctx, cancel := SetupLifecycle(ctx, cfg.Timeout)
	defer cancel.Cleanup()
	return calibration.RunCalibration(ctx, out, opts, cfg.CalibrationProfile)
}
