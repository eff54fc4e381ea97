// Package config defines mandelarea's runtime configuration: the flags every
// command shares, the MANDELAREA_ environment layer behind them, and the
// validation applied before anything runs.
package config

import (
	"fmt"
	"io"
	"slices"
	"strings"
	"time"

	"github.com/spf13/pflag"

	apperrors "github.com/agbru/mandelarea/internal/errors"
	"github.com/agbru/mandelarea/internal/mandelbrot"
	"github.com/agbru/mandelarea/internal/sampling"
)

// EnvPrefix is the prefix of every environment variable read by mandelarea.
const EnvPrefix = "MANDELAREA_"

// Default configuration values.
const (
	DefaultMethod       = "all"
	DefaultSamples      = 100_000
	DefaultGrid         = 316
	DefaultMaxIter      = 100
	DefaultTimeout      = 30 * time.Minute
	DefaultPairing      = "permute"
	DefaultOrthoBackend = "builtin"
	DefaultStore        = "fs"
	DefaultResultsDir   = "simulation_results"
	DefaultLedgerDriver = "none"
	DefaultLogLevel     = "info"
	DefaultPort         = "8080"
	DefaultMaxSamples   = 4_000_000
	DefaultMaxIterLimit = 10_000

	// The true-area reference run: an orthogonal sample on a 400×400 grid
	// with 300 iterations.
	DefaultTrueAreaGrid = 400
	DefaultTrueAreaIter = 300

	DefaultRepeats    = 100
	DefaultRepeatSide = 400
	DefaultRepeatIter = 300

	DefaultIterSweepSide = 200
	DefaultIterSweepMin  = 60
	DefaultIterSweepMax  = 300
	DefaultIterSweepStep = 20
)

// Default sweep grid: sample-size roots crossed with iteration budgets.
var (
	DefaultSweepSides = []int{80, 100, 120, 140, 160, 200}
	DefaultSweepIters = []int{50, 100, 150, 180, 200, 220, 230}
)

// Orthogonal generator backends.
const (
	BackendBuiltin = "builtin"
	BackendNative  = "native"
)

// AppConfig holds every setting of a mandelarea run.
type AppConfig struct {
	// RealMin, RealMax, ImagMin and ImagMax bound the sampling domain.
	RealMin, RealMax float64
	ImagMin, ImagMax float64

	// Method is "all" or one of pure, lhs, ortho.
	Method string
	// Samples is the point count for pure and LHS sampling.
	Samples int
	// Grid is the orthogonal grid side; the sample holds Grid² points.
	Grid int
	// MaxIter is the escape-time iteration budget.
	MaxIter int
	// Seed makes sampling reproducible when non-zero.
	Seed uint64
	// LHSPairing is "permute" (independent axis permutation) or "index".
	LHSPairing string
	// OrthoBackend is "builtin" or "native".
	OrthoBackend string
	// OrthoLibDir is where the native orthogonal library is looked up.
	OrthoLibDir string
	// OrthoNativeSeed makes the unseeded builtin reseed with the native
	// routine's fixed seed on every call, as the compiled library does.
	OrthoNativeSeed bool
	// Workers bounds concurrent estimates and evaluation goroutines; zero
	// selects GOMAXPROCS.
	Workers int
	// CalibrationProfile is the worker calibration profile. Empty selects
	// the file in the home directory.
	CalibrationProfile string
	// Timeout caps the whole run.
	Timeout time.Duration

	// JSONOutput prints results as JSON.
	JSONOutput bool
	// Quiet prints bare result lines with no progress display.
	Quiet bool
	// NoColor disables ANSI colours. NO_COLOR is honoured too.
	NoColor bool
	// LogLevel is a zerolog level name.
	LogLevel string

	// Store selects the result store driver: fs, memory or s3.
	Store string
	// ResultsDir is the root directory (fs) or key prefix (s3) for results.
	ResultsDir string
	// S3Bucket, S3Region, S3Endpoint and S3PathStyle configure the s3 store.
	S3Bucket    string
	S3Region    string
	S3Endpoint  string
	S3PathStyle bool

	// LedgerDriver is none, sqlite or pgx; LedgerDSN is its data source.
	LedgerDriver string
	LedgerDSN    string

	// TrueAreaGrid and TrueAreaIter define the reference estimate.
	TrueAreaGrid int
	TrueAreaIter int

	// SweepSides and SweepIters define the sweep grid.
	SweepSides []int
	SweepIters []int
	// Repeats, RepeatSide and RepeatIter define the repeat experiment.
	Repeats    int
	RepeatSide int
	RepeatIter int
	// IterSweepSide, IterSweepMin, IterSweepMax and IterSweepStep define
	// the iteration sweep.
	IterSweepSide int
	IterSweepMin  int
	IterSweepMax  int
	IterSweepStep int

	// Port is the HTTP listen port of the serve command.
	Port string
	// MaxSamples and MaxIterLimit cap request parameters in server mode.
	MaxSamples   int
	MaxIterLimit int
}

// Default returns the configuration used when no flag or variable is set.
func Default() AppConfig {
	return AppConfig{
		RealMin: -2, RealMax: 2, ImagMin: -2, ImagMax: 2,
		Method:        DefaultMethod,
		Samples:       DefaultSamples,
		Grid:          DefaultGrid,
		MaxIter:       DefaultMaxIter,
		LHSPairing:    DefaultPairing,
		OrthoBackend:  DefaultOrthoBackend,
		OrthoLibDir:   ".",
		Timeout:       DefaultTimeout,
		LogLevel:      DefaultLogLevel,
		Store:         DefaultStore,
		ResultsDir:    DefaultResultsDir,
		S3Region:      "us-east-1",
		LedgerDriver:  DefaultLedgerDriver,
		TrueAreaGrid:  DefaultTrueAreaGrid,
		TrueAreaIter:  DefaultTrueAreaIter,
		SweepSides:    slices.Clone(DefaultSweepSides),
		SweepIters:    slices.Clone(DefaultSweepIters),
		Repeats:       DefaultRepeats,
		RepeatSide:    DefaultRepeatSide,
		RepeatIter:    DefaultRepeatIter,
		IterSweepSide: DefaultIterSweepSide,
		IterSweepMin:  DefaultIterSweepMin,
		IterSweepMax:  DefaultIterSweepMax,
		IterSweepStep: DefaultIterSweepStep,
		Port:          DefaultPort,
		MaxSamples:    DefaultMaxSamples,
		MaxIterLimit:  DefaultMaxIterLimit,
	}
}

// BindFlags registers every configuration flag on fs, with cfg's current
// values as defaults.
func BindFlags(fs *pflag.FlagSet, cfg *AppConfig) {
	fs.Float64Var(&cfg.RealMin, "re-min", cfg.RealMin, "Lower bound of the real axis.")
	fs.Float64Var(&cfg.RealMax, "re-max", cfg.RealMax, "Upper bound of the real axis.")
	fs.Float64Var(&cfg.ImagMin, "im-min", cfg.ImagMin, "Lower bound of the imaginary axis.")
	fs.Float64Var(&cfg.ImagMax, "im-max", cfg.ImagMax, "Upper bound of the imaginary axis.")

	fs.StringVarP(&cfg.Method, "method", "m", cfg.Method, "Sampling method: all, pure, lhs or ortho.")
	fs.IntVarP(&cfg.Samples, "samples", "n", cfg.Samples, "Number of points for pure and LHS sampling.")
	fs.IntVarP(&cfg.Grid, "grid", "g", cfg.Grid, "Orthogonal grid side M (M² points).")
	fs.IntVarP(&cfg.MaxIter, "iter", "i", cfg.MaxIter, "Escape-time iteration budget.")
	fs.Uint64Var(&cfg.Seed, "seed", cfg.Seed, "Seed for reproducible sampling (0 draws from the process-wide source).")
	fs.StringVar(&cfg.LHSPairing, "lhs-pairing", cfg.LHSPairing, "LHS axis pairing: permute or index.")
	fs.StringVar(&cfg.OrthoBackend, "ortho-backend", cfg.OrthoBackend, "Orthogonal generator: builtin or native.")
	fs.StringVar(&cfg.OrthoLibDir, "ortho-lib-dir", cfg.OrthoLibDir, "Directory holding the native orthogonal library.")
	fs.BoolVar(&cfg.OrthoNativeSeed, "ortho-native-seed", cfg.OrthoNativeSeed, "Reseed the builtin orthogonal generator with the native fixed seed on every call.")
	fs.IntVarP(&cfg.Workers, "workers", "w", cfg.Workers, "Concurrent workers (0 = calibrated profile, else GOMAXPROCS).")
	fs.StringVar(&cfg.CalibrationProfile, "calibration-profile", cfg.CalibrationProfile, "Path of the worker calibration profile.")
	fs.DurationVar(&cfg.Timeout, "timeout", cfg.Timeout, "Maximum run time.")

	fs.BoolVar(&cfg.JSONOutput, "json", cfg.JSONOutput, "Print results as JSON.")
	fs.BoolVarP(&cfg.Quiet, "quiet", "q", cfg.Quiet, "Minimal output for scripts.")
	fs.BoolVar(&cfg.NoColor, "no-color", cfg.NoColor, "Disable colored output (also respects NO_COLOR).")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "Log level: debug, info, warn, error.")

	fs.StringVar(&cfg.Store, "store", cfg.Store, "Result store: fs, memory or s3.")
	fs.StringVar(&cfg.ResultsDir, "results-dir", cfg.ResultsDir, "Results directory (fs) or key prefix (s3).")
	fs.StringVar(&cfg.S3Bucket, "s3-bucket", cfg.S3Bucket, "S3 bucket for the s3 store.")
	fs.StringVar(&cfg.S3Region, "s3-region", cfg.S3Region, "S3 region.")
	fs.StringVar(&cfg.S3Endpoint, "s3-endpoint", cfg.S3Endpoint, "Custom S3 endpoint (e.g. MinIO).")
	fs.BoolVar(&cfg.S3PathStyle, "s3-path-style", cfg.S3PathStyle, "Use path-style S3 addressing.")
	fs.StringVar(&cfg.LedgerDriver, "ledger-driver", cfg.LedgerDriver, "Run ledger database: none, sqlite or pgx.")
	fs.StringVar(&cfg.LedgerDSN, "ledger-dsn", cfg.LedgerDSN, "Run ledger data source name.")

	fs.IntVar(&cfg.TrueAreaGrid, "true-grid", cfg.TrueAreaGrid, "Grid side of the reference (true area) estimate.")
	fs.IntVar(&cfg.TrueAreaIter, "true-iter", cfg.TrueAreaIter, "Iteration budget of the reference estimate.")
	fs.IntSliceVar(&cfg.SweepSides, "sweep-sides", cfg.SweepSides, "Sample-size roots of the sweep grid.")
	fs.IntSliceVar(&cfg.SweepIters, "sweep-iters", cfg.SweepIters, "Iteration budgets of the sweep grid.")
	fs.IntVar(&cfg.Repeats, "repeats", cfg.Repeats, "Number of runs in the repeat experiment.")
	fs.IntVar(&cfg.RepeatSide, "repeat-side", cfg.RepeatSide, "Sample-size root of the repeat experiment.")
	fs.IntVar(&cfg.RepeatIter, "repeat-iter", cfg.RepeatIter, "Iteration budget of the repeat experiment.")
	fs.IntVar(&cfg.IterSweepSide, "iter-sweep-side", cfg.IterSweepSide, "Sample-size root of the iteration sweep.")
	fs.IntVar(&cfg.IterSweepMin, "iter-sweep-min", cfg.IterSweepMin, "First budget of the iteration sweep.")
	fs.IntVar(&cfg.IterSweepMax, "iter-sweep-max", cfg.IterSweepMax, "Last budget of the iteration sweep.")
	fs.IntVar(&cfg.IterSweepStep, "iter-sweep-step", cfg.IterSweepStep, "Budget step of the iteration sweep.")

	fs.StringVar(&cfg.Port, "port", cfg.Port, "HTTP port of the serve command.")
	fs.IntVar(&cfg.MaxSamples, "max-samples", cfg.MaxSamples, "Largest sample count the server accepts.")
	fs.IntVar(&cfg.MaxIterLimit, "max-iter", cfg.MaxIterLimit, "Largest iteration budget the server accepts.")
}

// Finalize applies environment overrides for flags that were not set on the
// command line, normalises string fields and validates the result.
func (c *AppConfig) Finalize(fs *pflag.FlagSet) error {
	applyEnvOverrides(c, fs)
	c.Method = strings.ToLower(strings.TrimSpace(c.Method))
	c.OrthoBackend = strings.ToLower(strings.TrimSpace(c.OrthoBackend))
	c.Store = strings.ToLower(strings.TrimSpace(c.Store))
	c.LedgerDriver = strings.ToLower(strings.TrimSpace(c.LedgerDriver))
	return c.Validate()
}

// Domain returns the validated sampling domain.
func (c AppConfig) Domain() (mandelbrot.Domain, error) {
	return mandelbrot.NewDomain(
		mandelbrot.Interval{Low: c.RealMin, High: c.RealMax},
		mandelbrot.Interval{Low: c.ImagMin, High: c.ImagMax},
	)
}

// Methods returns the sampling methods selected by Method.
func (c AppConfig) Methods() ([]sampling.Method, error) {
	if c.Method == "all" {
		return slices.Clone(sampling.Methods), nil
	}
	m, err := sampling.ParseMethod(c.Method)
	if err != nil {
		return nil, err
	}
	return []sampling.Method{m}, nil
}

// Pairing returns the parsed LHS pairing policy.
func (c AppConfig) Pairing() (sampling.Pairing, error) {
	return sampling.ParsePairing(c.LHSPairing)
}

// SizeFor returns the sampler size argument for m: the grid side for
// orthogonal sampling, the sample count otherwise.
func (c AppConfig) SizeFor(m sampling.Method) int {
	if m == sampling.Ortho {
		return c.Grid
	}
	return c.Samples
}

// Validate checks the semantic consistency of the configuration and returns
// a ConfigError describing the first problem found.
func (c AppConfig) Validate() error {
	if _, err := c.Domain(); err != nil {
		return apperrors.WrapConfigError(err, "invalid domain")
	}
	if _, err := c.Methods(); err != nil {
		return apperrors.NewConfigError("unrecognized method '%s'. Valid methods are: 'all' or [pure, lhs, ortho]", c.Method)
	}
	if _, err := c.Pairing(); err != nil {
		return apperrors.WrapConfigError(err, "invalid --lhs-pairing")
	}
	positive := []struct {
		name  string
		value int
	}{
		{"samples", c.Samples},
		{"grid", c.Grid},
		{"iter", c.MaxIter},
		{"true-grid", c.TrueAreaGrid},
		{"true-iter", c.TrueAreaIter},
		{"repeats", c.Repeats},
		{"repeat-side", c.RepeatSide},
		{"repeat-iter", c.RepeatIter},
		{"iter-sweep-side", c.IterSweepSide},
		{"iter-sweep-min", c.IterSweepMin},
		{"iter-sweep-step", c.IterSweepStep},
		{"max-samples", c.MaxSamples},
		{"max-iter", c.MaxIterLimit},
	}
	for _, p := range positive {
		if p.value <= 0 {
			return apperrors.NewConfigError("--%s must be strictly positive, got %d", p.name, p.value)
		}
	}
	if c.IterSweepMax < c.IterSweepMin {
		return apperrors.NewConfigError("--iter-sweep-max (%d) is below --iter-sweep-min (%d)", c.IterSweepMax, c.IterSweepMin)
	}
	for _, v := range slices.Concat(c.SweepSides, c.SweepIters) {
		if v <= 0 {
			return apperrors.NewConfigError("sweep values must be strictly positive, got %d", v)
		}
	}
	if len(c.SweepSides) == 0 || len(c.SweepIters) == 0 {
		return apperrors.NewConfigError("the sweep grid needs at least one size and one budget")
	}
	if c.Workers < 0 {
		return apperrors.NewConfigError("--workers cannot be negative: %d", c.Workers)
	}
	if c.Timeout <= 0 {
		return apperrors.NewConfigError("timeout value must be strictly positive")
	}
	switch c.OrthoBackend {
	case BackendBuiltin, BackendNative:
	default:
		return apperrors.NewConfigError("unrecognized orthogonal backend '%s' (builtin or native)", c.OrthoBackend)
	}
	switch c.Store {
	case "fs", "memory":
	case "s3":
		if c.S3Bucket == "" {
			return apperrors.NewConfigError("the s3 store requires --s3-bucket")
		}
	default:
		return apperrors.NewConfigError("unrecognized store '%s' (fs, memory or s3)", c.Store)
	}
	switch c.LedgerDriver {
	case "none", "sqlite":
	case "pgx":
		if c.LedgerDSN == "" {
			return apperrors.NewConfigError("the pgx ledger requires --ledger-dsn")
		}
	default:
		return apperrors.NewConfigError("unrecognized ledger driver '%s' (none, sqlite or pgx)", c.LedgerDriver)
	}
	return nil
}

// ParseConfig parses args into an AppConfig without a command tree. It is
// used by tests and tools that embed the flag set directly.
func ParseConfig(programName string, args []string, errorWriter io.Writer) (AppConfig, error) {
	fs := pflag.NewFlagSet(programName, pflag.ContinueOnError)
	fs.SetOutput(errorWriter)
	cfg := Default()
	BindFlags(fs, &cfg)
	setCustomUsage(fs)

	if err := fs.Parse(args); err != nil {
		return AppConfig{}, err
	}
	if err := cfg.Finalize(fs); err != nil {
		fmt.Fprintln(errorWriter, "Configuration error:", err)
		return AppConfig{}, err
	}
	return cfg, nil
}
