package app

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/agbru/mandelarea/internal/calibration"
	"github.com/agbru/mandelarea/internal/config"
	apperrors "github.com/agbru/mandelarea/internal/errors"
	"github.com/agbru/mandelarea/internal/experiment"
	"github.com/agbru/mandelarea/internal/orthogonal"
	"github.com/agbru/mandelarea/internal/results"
	"github.com/agbru/mandelarea/internal/sampling"
)

// testConfig returns a small, fast configuration backed by the memory store.
func testConfig() config.AppConfig {
	cfg := config.Default()
	cfg.Store = "memory"
	cfg.Samples = 2000
	cfg.Grid = 40
	cfg.MaxIter = 50
	cfg.TrueAreaGrid = 30
	cfg.TrueAreaIter = 50
	cfg.Repeats = 5
	cfg.RepeatSide = 20
	cfg.RepeatIter = 40
	cfg.IterSweepSide = 10
	cfg.IterSweepMin = 20
	cfg.IterSweepMax = 60
	cfg.IterSweepStep = 20
	cfg.SweepSides = []int{10, 12}
	cfg.SweepIters = []int{20, 30}
	cfg.Quiet = true
	cfg.Workers = 2
	cfg.Timeout = time.Minute
	return cfg
}

func newTestApp(t *testing.T, cfg config.AppConfig) (*Application, *bytes.Buffer) {
	t.Helper()
	var errBuf bytes.Buffer
	a, err := New(context.Background(), cfg, &errBuf)
	if err != nil {
		t.Fatalf("New() returned unexpected error: %v", err)
	}
	t.Cleanup(func() { _ = a.Close() })
	return a, &errBuf
}

func TestNew(t *testing.T) {
	t.Parallel()
	a, _ := newTestApp(t, testConfig())

	for _, m := range sampling.Methods {
		if !a.Factory.Has(m) {
			t.Errorf("factory is missing %s", m)
		}
		if _, err := a.Factory.Get(m); err != nil {
			t.Errorf("Get(%s) = %v", m, err)
		}
	}
	if a.Repository == nil {
		t.Error("Repository should not be nil")
	}
	if a.Ledger != nil {
		t.Error("Ledger should be nil when the driver is none")
	}
}

func TestNewAppliesCalibrationProfile(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "profile.json")
	profile := calibration.NewProfile()
	profile.OptimalWorkers = 3
	if err := profile.SaveProfile(path); err != nil {
		t.Fatal(err)
	}

	cfg := testConfig()
	cfg.CalibrationProfile = path
	cfg.Workers = 0
	a, _ := newTestApp(t, cfg)
	if a.Config.Workers != 3 {
		t.Errorf("Workers = %d, want 3 from the profile", a.Config.Workers)
	}

	cfg.Workers = 1
	a, _ = newTestApp(t, cfg)
	if a.Config.Workers != 1 {
		t.Errorf("Workers = %d, want the explicit 1", a.Config.Workers)
	}
}

func TestNewWithMissingNativeBackend(t *testing.T) {
	t.Parallel()
	cfg := testConfig()
	cfg.OrthoBackend = config.BackendNative
	cfg.OrthoLibDir = t.TempDir()
	a, _ := newTestApp(t, cfg)

	_, err := a.Factory.Get(sampling.Ortho)
	if !errors.Is(err, orthogonal.ErrBackendUnavailable) && !errors.Is(err, orthogonal.ErrUnsupportedPlatform) {
		t.Fatalf("Get(ortho) = %v, want a backend error", err)
	}
	if _, err := a.Factory.Get(sampling.LHS); err != nil {
		t.Errorf("LHS should stay usable: %v", err)
	}

	// The estimate still runs the remaining methods.
	var out bytes.Buffer
	if code := a.RunEstimate(context.Background(), &out); code != apperrors.ExitSuccess {
		t.Fatalf("RunEstimate exit code = %d", code)
	}
	if lines := strings.Count(out.String(), "\n"); lines != 2 {
		t.Errorf("got %d result lines, want 2:\n%s", lines, out.String())
	}
}

func TestNewErrors(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name   string
		mutate func(*config.AppConfig)
	}{
		{"s3 without bucket", func(c *config.AppConfig) { c.Store = "s3" }},
		{"unknown store", func(c *config.AppConfig) { c.Store = "tape" }},
		{"pgx without dsn", func(c *config.AppConfig) { c.LedgerDriver = results.LedgerPostgres }},
		{"inverted domain", func(c *config.AppConfig) { c.RealMin, c.RealMax = 2, -2 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := testConfig()
			tt.mutate(&cfg)
			_, err := New(context.Background(), cfg, &bytes.Buffer{})
			var cfgErr apperrors.ConfigError
			if !errors.As(err, &cfgErr) {
				t.Fatalf("New() error = %v, want a ConfigError", err)
			}
		})
	}
}

func TestRunEstimateQuiet(t *testing.T) {
	t.Parallel()
	a, _ := newTestApp(t, testConfig())

	var out bytes.Buffer
	if code := a.RunEstimate(context.Background(), &out); code != apperrors.ExitSuccess {
		t.Fatalf("exit code = %d", code)
	}
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("got %d lines, want 3:\n%s", len(lines), out.String())
	}
	wantSamples := []string{"2000", "2000", "1600"}
	for i, line := range lines {
		rec, err := results.ParseRecord(line)
		if err != nil {
			t.Fatalf("line %q: %v", line, err)
		}
		if strconv.Itoa(rec.NumSamples) != wantSamples[i] || rec.MaxIter != 50 {
			t.Errorf("line %d = %q", i, line)
		}
		if rec.Area <= 0 || rec.Area >= 16 {
			t.Errorf("implausible area %v", rec.Area)
		}
	}
}

func TestRunEstimateJSON(t *testing.T) {
	t.Parallel()
	cfg := testConfig()
	cfg.Quiet = false
	cfg.JSONOutput = true
	cfg.Method = "lhs"
	a, _ := newTestApp(t, cfg)

	var out bytes.Buffer
	if code := a.RunEstimate(context.Background(), &out); code != apperrors.ExitSuccess {
		t.Fatalf("exit code = %d", code)
	}
	var docs []struct {
		Method     string `json:"method"`
		NumSamples int    `json:"num_samples"`
	}
	if err := json.Unmarshal(out.Bytes(), &docs); err != nil {
		t.Fatalf("invalid JSON: %v\n%s", err, out.String())
	}
	if len(docs) != 1 || docs[0].Method != "lhs" || docs[0].NumSamples != 2000 {
		t.Errorf("got %+v", docs)
	}
}

func TestRunEstimateRecordsLedger(t *testing.T) {
	t.Parallel()
	cfg := testConfig()
	cfg.LedgerDriver = results.LedgerSQLite
	cfg.LedgerDSN = filepath.Join(t.TempDir(), "ledger.db")
	cfg.Seed = 7
	a, _ := newTestApp(t, cfg)

	if code := a.RunEstimate(context.Background(), &bytes.Buffer{}); code != apperrors.ExitSuccess {
		t.Fatalf("exit code = %d", code)
	}
	entries, err := a.Ledger.Entries(context.Background(), results.Filter{Experiment: results.Single})
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 3 {
		t.Fatalf("got %d ledger entries, want 3", len(entries))
	}
	for _, e := range entries {
		if e.Seed != 7 {
			t.Errorf("entry %+v lost the seed", e)
		}
	}
}

func TestPlan(t *testing.T) {
	t.Parallel()
	a, _ := newTestApp(t, testConfig())

	tests := []struct {
		exp  results.Experiment
		jobs int
	}{
		{results.Sweep, 4},
		{results.Repeat, 5},
		{results.Iterations, 2},
	}
	for _, tt := range tests {
		plan, err := a.Plan(tt.exp)
		if err != nil {
			t.Fatalf("Plan(%s): %v", tt.exp, err)
		}
		if plan.Experiment != tt.exp || len(plan.Jobs) != tt.jobs {
			t.Errorf("Plan(%s) = %s with %d jobs, want %d", tt.exp, plan.Experiment, len(plan.Jobs), tt.jobs)
		}
	}
	if _, err := a.Plan(results.Single); err == nil {
		t.Error("Plan(single) should fail")
	}
}

func TestRunExperimentPersistsSeries(t *testing.T) {
	t.Parallel()
	a, _ := newTestApp(t, testConfig())
	ctx := context.Background()

	var out bytes.Buffer
	if code := a.RunExperiment(ctx, results.Iterations, &out); code != apperrors.ExitSuccess {
		t.Fatalf("exit code = %d", code)
	}
	for _, m := range sampling.Methods {
		records, err := a.Repository.LoadSeries(ctx, results.Iterations, m)
		if err != nil {
			t.Fatalf("LoadSeries(%s): %v", m, err)
		}
		if len(records) != 2 || records[0].MaxIter != 20 || records[1].MaxIter != 40 {
			t.Errorf("%s series = %+v", m, records)
		}
		if !strings.Contains(out.String(), results.SeriesKey(results.Iterations, m)) {
			t.Errorf("quiet output misses the %s key:\n%s", m, out.String())
		}
	}
	if _, ok, err := a.Repository.LoadTrueArea(ctx); err != nil || !ok {
		t.Errorf("reference area not cached: ok=%v err=%v", ok, err)
	}
}

func TestRunExperimentJSON(t *testing.T) {
	t.Parallel()
	cfg := testConfig()
	cfg.Quiet = false
	cfg.JSONOutput = true
	cfg.Method = "pure"
	a, _ := newTestApp(t, cfg)

	var out bytes.Buffer
	if code := a.RunExperiment(context.Background(), results.Sweep, &out); code != apperrors.ExitSuccess {
		t.Fatalf("exit code = %d", code)
	}
	var doc struct {
		Experiment string `json:"experiment"`
		Series     []struct {
			Method  string           `json:"method"`
			Records []results.Record `json:"records"`
		} `json:"series"`
	}
	if err := json.Unmarshal(out.Bytes(), &doc); err != nil {
		t.Fatalf("invalid JSON: %v\n%s", err, out.String())
	}
	if doc.Experiment != "sweep" || len(doc.Series) != 1 || len(doc.Series[0].Records) != 4 {
		t.Errorf("got %+v", doc)
	}
	// Pure sampling draws side² points per job.
	if got := doc.Series[0].Records[0].NumSamples; got != 100 {
		t.Errorf("first job samples = %d, want 100", got)
	}
}

func TestRunTrueArea(t *testing.T) {
	t.Parallel()
	a, _ := newTestApp(t, testConfig())
	ctx := context.Background()

	var first, second, forced bytes.Buffer
	if code := a.RunTrueArea(ctx, false, &first); code != apperrors.ExitSuccess {
		t.Fatalf("exit code = %d", code)
	}
	if code := a.RunTrueArea(ctx, false, &second); code != apperrors.ExitSuccess {
		t.Fatalf("exit code = %d", code)
	}
	if first.String() != second.String() {
		t.Errorf("cached area %q differs from computed %q", second.String(), first.String())
	}
	if code := a.RunTrueArea(ctx, true, &forced); code != apperrors.ExitSuccess {
		t.Fatalf("exit code = %d", code)
	}
	// The unseeded builtin generator restarts from the same seed on every call.
	if forced.String() != first.String() {
		t.Errorf("forced recompute %q differs from %q", forced.String(), first.String())
	}
	if _, err := strconv.ParseFloat(strings.TrimSpace(first.String()), 64); err != nil {
		t.Errorf("quiet output %q is not a number", first.String())
	}
}

func TestRunTrueAreaWithoutReference(t *testing.T) {
	t.Parallel()
	cfg := testConfig()
	cfg.OrthoBackend = config.BackendNative
	cfg.OrthoLibDir = t.TempDir()
	a, errBuf := newTestApp(t, cfg)

	if code := a.RunTrueArea(context.Background(), false, &bytes.Buffer{}); code == apperrors.ExitSuccess {
		t.Fatal("RunTrueArea should fail without a reference estimator")
	}
	if !strings.Contains(errBuf.String(), experiment.ErrNoReference.Error()) {
		t.Errorf("error output = %q", errBuf.String())
	}
}

func TestRunStats(t *testing.T) {
	t.Parallel()
	cfg := testConfig()
	cfg.Seed = 42
	a, errBuf := newTestApp(t, cfg)
	ctx := context.Background()

	if code := a.RunStats(ctx, results.Repeat, &bytes.Buffer{}); code != apperrors.ExitErrorGeneric {
		t.Fatalf("stats before any run: exit code = %d", code)
	}
	if !strings.Contains(errBuf.String(), "No stored series") {
		t.Errorf("error output = %q", errBuf.String())
	}

	if code := a.RunExperiment(ctx, results.Repeat, &bytes.Buffer{}); code != apperrors.ExitSuccess {
		t.Fatalf("repeat exit code = %d", code)
	}
	a.Config.JSONOutput = true
	var out bytes.Buffer
	if code := a.RunStats(ctx, results.Repeat, &out); code != apperrors.ExitSuccess {
		t.Fatalf("stats exit code = %d", code)
	}
	var analysis experiment.Analysis
	if err := json.Unmarshal(out.Bytes(), &analysis); err != nil {
		t.Fatalf("invalid JSON: %v\n%s", err, out.String())
	}
	if len(analysis.Summaries) != 3 || len(analysis.Comparisons) != 3 {
		t.Errorf("got %d summaries and %d comparisons", len(analysis.Summaries), len(analysis.Comparisons))
	}
	for _, s := range analysis.Summaries {
		if s.N != 5 {
			t.Errorf("%s summary has N=%d, want 5", s.Method, s.N)
		}
	}
}

func TestRunServerStopsOnContext(t *testing.T) {
	t.Parallel()
	cfg := testConfig()
	cfg.Port = "0"
	a, _ := newTestApp(t, cfg)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan int, 1)
	go func() { done <- a.RunServer(ctx) }()
	time.Sleep(50 * time.Millisecond)
	cancel()
	select {
	case code := <-done:
		if code != apperrors.ExitSuccess {
			t.Fatalf("RunServer exit code = %d", code)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}

func TestReportExitCode(t *testing.T) {
	t.Parallel()
	boom := apperrors.EstimationError{Method: "Ortho", Cause: context.DeadlineExceeded}
	tests := []struct {
		name   string
		series []experiment.Series
		want   int
	}{
		{"all succeed", []experiment.Series{{Method: sampling.Pure}}, apperrors.ExitSuccess},
		{"partial failure", []experiment.Series{{Method: sampling.Pure}, {Method: sampling.Ortho, Err: boom}}, apperrors.ExitSuccess},
		{"all fail", []experiment.Series{{Method: sampling.Ortho, Err: boom}}, apperrors.ExitErrorTimeout},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := reportExitCode(experiment.Report{Series: tt.series}); got != tt.want {
				t.Errorf("reportExitCode = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestSetupLifecycle(t *testing.T) {
	t.Parallel()

	ctx, c := SetupLifecycle(context.Background(), 10*time.Millisecond)
	defer c.Cleanup()
	select {
	case <-ctx.Done():
		if !errors.Is(ctx.Err(), context.DeadlineExceeded) {
			t.Errorf("ctx.Err() = %v", ctx.Err())
		}
	case <-time.After(time.Second):
		t.Fatal("timeout did not fire")
	}

	ctx, c = SetupLifecycle(context.Background(), 0)
	defer c.Cleanup()
	if _, ok := ctx.Deadline(); ok {
		t.Error("a zero timeout should not set a deadline")
	}
	if c.CancelTimeout != nil {
		t.Error("CancelTimeout should be nil without a timeout")
	}
}

func TestBuiltinGeneratorSelection(t *testing.T) {
	t.Parallel()
	repeats := func(gen *orthogonal.Builtin) bool {
		b := orthogonal.NewBridge(gen)
		re1, _, err := b.Generate(12, 1)
		if err != nil {
			t.Fatal(err)
		}
		re2, _, err := b.Generate(12, 1)
		if err != nil {
			t.Fatal(err)
		}
		for i := range re1 {
			if re1[i] != re2[i] {
				return false
			}
		}
		return true
	}

	cfg := config.Default()
	if gen := builtinGenerator(cfg); repeats(gen) {
		t.Error("unseeded builtin returned the same sample twice")
	}

	cfg.OrthoNativeSeed = true
	if gen := builtinGenerator(cfg); !gen.FixedSeed || !repeats(gen) {
		t.Error("--ortho-native-seed should reseed on every call")
	}

	cfg.Seed = 17
	first, second := builtinGenerator(cfg), builtinGenerator(cfg)
	a, _, _ := orthogonal.NewBridge(first).Generate(12, 1)
	b, _, _ := orthogonal.NewBridge(second).Generate(12, 1)
	for i := range a {
		if a[i] != b[i] {
			t.Fatal("the same --seed should give the same orthogonal sample")
		}
	}
}
