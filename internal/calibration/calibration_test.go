package calibration

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/agbru/mandelarea/internal/config"
	apperrors "github.com/agbru/mandelarea/internal/errors"
	"github.com/agbru/mandelarea/internal/estimator"
)

func TestWorkerCandidates(t *testing.T) {
	t.Parallel()
	tests := []struct {
		numCPU int
		want   []int
	}{
		{0, []int{1}},
		{1, []int{1}},
		{2, []int{1, 2}},
		{4, []int{1, 2, 4}},
		{6, []int{1, 2, 4, 6}},
		{8, []int{1, 2, 4, 8, 16}},
		{12, []int{1, 2, 4, 8, 12, 24}},
	}
	for _, tt := range tests {
		if got := workerCandidates(tt.numCPU); !slices.Equal(got, tt.want) {
			t.Errorf("workerCandidates(%d) = %v, want %v", tt.numCPU, got, tt.want)
		}
	}
	if c := WorkerCandidates(); len(c) == 0 || c[0] != 1 {
		t.Errorf("WorkerCandidates() = %v", c)
	}
}

func smallOptions() Options {
	return Options{Points: 2000, MaxIter: 20, Trials: 2, Candidates: []int{1, 2}}
}

func TestRun(t *testing.T) {
	t.Parallel()
	progress := make(chan estimator.ProgressUpdate, 16)
	out, err := Run(context.Background(), smallOptions(), progress)
	close(progress)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(out.Results) != 2 {
		t.Fatalf("got %d results, want 2", len(out.Results))
	}
	if out.Best != 1 && out.Best != 2 {
		t.Errorf("Best = %d", out.Best)
	}
	for _, r := range out.Results {
		if r.Err != nil {
			t.Errorf("workers %d failed: %v", r.Workers, r.Err)
		}
		if r.Workers == out.Best && r.Duration != out.BestDuration {
			t.Errorf("BestDuration %v does not match result %v", out.BestDuration, r.Duration)
		}
	}

	var last float64
	n := 0
	for u := range progress {
		if u.Value < last {
			t.Errorf("progress went back from %v to %v", last, u.Value)
		}
		last = u.Value
		n++
	}
	if n != 4 || last != 1 {
		t.Errorf("got %d updates ending at %v, want 4 ending at 1", n, last)
	}
}

func TestRunCanceled(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Run(ctx, smallOptions(), nil)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

func TestRunInvalidIterationBudgetUsesDefault(t *testing.T) {
	t.Parallel()
	opts := smallOptions()
	opts.MaxIter = -3
	if got := opts.withDefaults().MaxIter; got != DefaultMaxIter {
		t.Errorf("MaxIter = %d, want %d", got, DefaultMaxIter)
	}
}

func TestRunCalibration(t *testing.T) {
	t.Parallel()
	profilePath := filepath.Join(t.TempDir(), "profile.json")
	var buf bytes.Buffer

	code := RunCalibration(context.Background(), &buf, smallOptions(), profilePath)
	if code != apperrors.ExitSuccess {
		t.Fatalf("exit code %d, output:\n%s", code, buf.String())
	}
	for _, want := range []string{"Calibration Summary", "(Optimal)", "--workers", "profile saved"} {
		if !strings.Contains(buf.String(), want) {
			t.Errorf("output does not contain %q:\n%s", want, buf.String())
		}
	}

	profile, err := LoadProfile(profilePath)
	if err != nil {
		t.Fatal(err)
	}
	if profile.OptimalWorkers != 1 && profile.OptimalWorkers != 2 {
		t.Errorf("OptimalWorkers = %d", profile.OptimalWorkers)
	}
	if profile.Points != 2000 || profile.MaxIter != 20 {
		t.Errorf("profile batch = %d × %d", profile.Points, profile.MaxIter)
	}
}

func TestRunCalibrationCanceled(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	var buf bytes.Buffer
	profilePath := filepath.Join(t.TempDir(), "profile.json")
	if code := RunCalibration(ctx, &buf, smallOptions(), profilePath); code != apperrors.ExitErrorCanceled {
		t.Errorf("exit code %d, want %d", code, apperrors.ExitErrorCanceled)
	}
	if ProfileExists(profilePath) {
		t.Error("an interrupted calibration saved a profile")
	}
}

func TestLoadCachedCalibration(t *testing.T) {
	t.Parallel()
	profilePath := filepath.Join(t.TempDir(), "profile.json")
	cfg := config.Default()
	cfg.Workers = 0

	if _, ok := LoadCachedCalibration(cfg, profilePath); ok {
		t.Error("applied a missing profile")
	}

	profile := NewProfile()
	profile.OptimalWorkers = 5
	if err := profile.SaveProfile(profilePath); err != nil {
		t.Fatal(err)
	}
	updated, ok := LoadCachedCalibration(cfg, profilePath)
	if !ok || updated.Workers != 5 {
		t.Errorf("ok = %v, Workers = %d, want 5", ok, updated.Workers)
	}

	cfg.Workers = 2
	if updated, ok := LoadCachedCalibration(cfg, profilePath); ok || updated.Workers != 2 {
		t.Errorf("an explicit worker count was overridden: ok = %v, Workers = %d", ok, updated.Workers)
	}
}
