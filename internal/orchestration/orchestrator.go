// Package orchestration runs the selected estimators concurrently for one
// estimate command, feeds the shared progress display and summarises the
// outcome.
package orchestration

import (
	"cmp"
	"context"
	"fmt"
	"io"
	"slices"
	"sync"
	"text/tabwriter"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/agbru/mandelarea/internal/cli"
	"github.com/agbru/mandelarea/internal/config"
	apperrors "github.com/agbru/mandelarea/internal/errors"
	"github.com/agbru/mandelarea/internal/estimator"
	"github.com/agbru/mandelarea/internal/sampling"
	"github.com/agbru/mandelarea/internal/ui"
)

// EstimateResult is the outcome of one estimator in a run.
type EstimateResult struct {
	Method sampling.Method
	// Result is the zero value when Err is set.
	Result   estimator.Result
	Duration time.Duration
	Err      error
}

// ProgressBufferMultiplier sizes the progress channel per estimator so
// estimators rarely drop updates while the display is busy.
const ProgressBufferMultiplier = 5

// ExecuteEstimates runs every estimator concurrently with the size and
// iteration budget from cfg and returns one result per estimator, in input
// order. Progress is rendered to out unless cfg.Quiet or cfg.JSONOutput is
// set. A failing estimator does not cancel the others.
//
// Parameters:
//   - ctx: Cancels every running estimate.
//   - estimators: The estimators to run, one result each.
//   - cfg: Supplies the per-method size, the iteration budget, the worker
//     limit and the output mode.
//   - out: The writer for the progress display.
//
// Returns:
//   - []EstimateResult: One result per estimator, in input order.
func ExecuteEstimates(ctx context.Context, estimators []estimator.Estimator, cfg config.AppConfig, out io.Writer) []EstimateResult {
	results := make([]EstimateResult, len(estimators))
	progressChan := make(chan estimator.ProgressUpdate, len(estimators)*ProgressBufferMultiplier)

	subject := estimator.NewProgressSubject()
	subject.Register(estimator.NewChannelObserver(progressChan))

	progressOut := out
	if cfg.Quiet || cfg.JSONOutput {
		progressOut = io.Discard
	}
	var displayWg sync.WaitGroup
	displayWg.Add(1)
	go cli.DisplayProgress(&displayWg, progressChan, len(estimators), progressOut)

	var g errgroup.Group
	if cfg.Workers > 0 {
		g.SetLimit(cfg.Workers)
	}
	for i, est := range estimators {
		g.Go(func() error {
			start := time.Now()
			res, err := est.EstimateWithObservers(ctx, subject, i, cfg.SizeFor(est.Method()), cfg.MaxIter)
			if err != nil {
				err = apperrors.EstimationError{Method: est.Method().DisplayName(), Cause: err}
			}
			results[i] = EstimateResult{Method: est.Method(), Result: res, Duration: time.Since(start), Err: err}
			return nil
		})
	}

	_ = g.Wait()
	close(progressChan)
	displayWg.Wait()

	return results
}

// AnalyzeComparisonResults prints results in the output mode selected by
// cfg and returns the exit code: success when at least one estimator
// completed, otherwise the code of the first failure.
//
// Parameters:
//   - results: The outcomes returned by ExecuteEstimates.
//   - cfg: Selects JSON, quiet or table output.
//   - out: The writer for the report.
//
// Returns:
//   - int: The process exit code.
func AnalyzeComparisonResults(results []EstimateResult, cfg config.AppConfig, out io.Writer) int {
	var firstError error
	successCount := 0
	for _, res := range results {
		if res.Err != nil {
			if firstError == nil {
				firstError = res.Err
			}
			continue
		}
		successCount++
	}

	switch {
	case cfg.JSONOutput:
		outcomes := make([]cli.ResultJSON, len(results))
		for i, res := range results {
			outcomes[i] = cli.ResultJSON{Result: res.Result}
			outcomes[i].Method = res.Method
			if res.Err != nil {
				outcomes[i].Error = res.Err.Error()
			}
		}
		if err := cli.WriteJSON(out, outcomes); err != nil {
			return apperrors.ExitErrorGeneric
		}
		return exitCode(successCount, firstError)
	case cfg.Quiet:
		for _, res := range results {
			if res.Err == nil {
				cli.DisplayQuietResult(out, res.Result)
			}
		}
		return exitCode(successCount, firstError)
	}

	sorted := slices.Clone(results)
	slices.SortStableFunc(sorted, func(a, b EstimateResult) int {
		if (a.Err == nil) != (b.Err == nil) {
			if a.Err == nil {
				return -1
			}
			return 1
		}
		return cmp.Compare(a.Duration, b.Duration)
	})

	fmt.Fprintf(out, "\n--- Comparison Summary ---\n")
	tw := tabwriter.NewWriter(out, 0, 0, 3, ' ', 0)
	fmt.Fprintf(tw, "%sMethod%s\t%sSamples%s\t%sArea%s\t%s|Δ ref|%s\t%sDuration%s\t%sStatus%s\n",
		ui.ColorBold(), ui.ColorReset(), ui.ColorBold(), ui.ColorReset(), ui.ColorBold(), ui.ColorReset(),
		ui.ColorBold(), ui.ColorReset(), ui.ColorBold(), ui.ColorReset(), ui.ColorBold(), ui.ColorReset())
	for _, res := range sorted {
		duration := cli.FormatExecutionDuration(res.Duration)
		if res.Duration == 0 {
			duration = "< 1µs"
		}
		name := ui.Paint(ui.MethodColor(string(res.Method)), res.Method.DisplayName())
		if res.Err != nil {
			fmt.Fprintf(tw, "%s\t-\t-\t-\t%s\t%s❌ Failure (%v)%s\n",
				name, duration, ui.ColorRed(), res.Err, ui.ColorReset())
			continue
		}
		fmt.Fprintf(tw, "%s\t%d\t%.6f\t%.6f\t%s%s%s\t%s✅ Success%s\n",
			name, res.Result.NumSamples, res.Result.Area, cli.AbsDeviation(res.Result.Area),
			ui.ColorYellow(), duration, ui.ColorReset(),
			ui.ColorGreen(), ui.ColorReset())
	}
	if err := tw.Flush(); err != nil {
		fmt.Fprintf(out, "Warning: failed to flush tabwriter: %v\n", err)
	}

	if successCount == 0 {
		fmt.Fprintf(out, "\nGlobal Status: Failure. No method could complete the estimate.\n")
		return apperrors.HandleEstimationError(firstError, 0, out, ui.Colors{})
	}

	fmt.Fprintf(out, "\nGlobal Status: Success. %d of %d methods completed.\n\n", successCount, len(results))
	for _, res := range results {
		if res.Err == nil {
			cli.DisplayResult(res.Result, len(results) == 1, out)
		}
	}
	return apperrors.ExitSuccess
}

func exitCode(successCount int, firstError error) int {
	if successCount == 0 {
		return apperrors.ExitCode(firstError)
	}
	return apperrors.ExitSuccess
}
