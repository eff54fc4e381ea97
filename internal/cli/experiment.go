package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/agbru/mandelarea/internal/estimator"
	"github.com/agbru/mandelarea/internal/experiment"
	"github.com/agbru/mandelarea/internal/ui"
)

// PrintExperimentPlan displays the size of a plan and the methods it runs.
func PrintExperimentPlan(plan experiment.Plan, estimators []estimator.Estimator, out io.Writer) {
	names := make([]string, len(estimators))
	for i, e := range estimators {
		names[i] = ui.Paint(ui.MethodColor(string(e.Method())), e.Method().DisplayName())
	}
	writeOut(out, "--- Experiment: %s%s%s ---\n", ui.ColorBold(), plan.Experiment, ui.ColorReset())
	writeOut(out, "%s%d%s jobs per method", ui.ColorCyan(), len(plan.Jobs), ui.ColorReset())
	if len(plan.Jobs) > 0 {
		first, last := plan.Jobs[0], plan.Jobs[len(plan.Jobs)-1]
		writeOut(out, ", from side %d / %d iterations to side %d / %d iterations", first.Side, first.MaxIter, last.Side, last.MaxIter)
	}
	writeOut(out, ".\nMethods: %s.\n\n", strings.Join(names, ", "))
}

// DisplayReport prints one line per method of an experiment report. In
// quiet mode only the stored keys of the successful series are printed.
func DisplayReport(report experiment.Report, quiet bool, out io.Writer) {
	if quiet {
		for _, s := range report.Series {
			if s.Err == nil && s.Stored.Key != "" {
				fmt.Fprintln(out, s.Stored.Key)
			}
		}
		return
	}

	fmt.Fprintf(out, "\n--- %s results ---\n", report.Experiment)
	if report.TrueArea > 0 {
		fmt.Fprintf(out, "Reference area: %s%.6f%s\n", ui.ColorBold(), report.TrueArea, ui.ColorReset())
	} else {
		fmt.Fprintf(out, "%sNo reference area: convergence was not checked.%s\n", ui.ColorYellow(), ui.ColorReset())
	}
	tw := tabwriter.NewWriter(out, 0, 0, 3, ' ', 0)
	fmt.Fprintf(tw, "%sMethod%s\t%sRuns%s\t%sLast area%s\t%sConverged%s\t%sDuration%s\t%sStored as%s\n",
		ui.ColorBold(), ui.ColorReset(), ui.ColorBold(), ui.ColorReset(), ui.ColorBold(), ui.ColorReset(),
		ui.ColorBold(), ui.ColorReset(), ui.ColorBold(), ui.ColorReset(), ui.ColorBold(), ui.ColorReset())
	for _, s := range report.Series {
		name := ui.Paint(ui.MethodColor(string(s.Method)), s.Method.DisplayName())
		if s.Err != nil {
			fmt.Fprintf(tw, "%s\t-\t-\t-\t%s\t%s❌ %v%s\n",
				name, FormatExecutionDuration(s.Duration), ui.ColorRed(), s.Err, ui.ColorReset())
			continue
		}
		last := "-"
		if n := len(s.Records); n > 0 {
			last = fmt.Sprintf("%.6f", s.Records[n-1].Area)
		}
		stored := s.Stored.Key
		if stored == "" {
			stored = "-"
		}
		fmt.Fprintf(tw, "%s\t%d\t%s\t%d\t%s%s%s\t%s\n",
			name, len(s.Records), last, len(s.Converged),
			ui.ColorYellow(), FormatExecutionDuration(s.Duration), ui.ColorReset(), stored)
	}
	if err := tw.Flush(); err != nil {
		fmt.Fprintf(out, "Warning: failed to flush tabwriter: %v\n", err)
	}
}

type seriesJSON struct {
	experiment.Series
	Error string `json:"error,omitempty"`
}

type reportJSON struct {
	experiment.Report
	Series []seriesJSON `json:"series"`
}

// WriteReportJSON encodes report as indented JSON, with failed series
// carrying their error message.
func WriteReportJSON(out io.Writer, report experiment.Report) error {
	doc := reportJSON{Report: report, Series: make([]seriesJSON, len(report.Series))}
	for i, s := range report.Series {
		doc.Series[i] = seriesJSON{Series: s}
		if s.Err != nil {
			doc.Series[i].Error = s.Err.Error()
		}
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(doc)
}

// DisplayTrueArea prints the reference area and where it came from.
func DisplayTrueArea(out io.Writer, area float64, cached, quiet bool) {
	if quiet {
		fmt.Fprintf(out, "%.6f\n", area)
		return
	}
	origin := "computed"
	if cached {
		origin = "cached"
	}
	fmt.Fprintf(out, "True area of the Mandelbrot set: %s%.6f%s (%s)\n", ui.ColorBold(), area, ui.ColorReset(), origin)
}

// DisplayAnalysis prints the per-method statistics of an analysis followed
// by the pairwise Welch tests.
func DisplayAnalysis(a experiment.Analysis, out io.Writer) {
	fmt.Fprintf(out, "--- Statistics of the %s experiment (reference %.6f) ---\n", a.Experiment, a.TrueArea)
	tw := tabwriter.NewWriter(out, 0, 0, 3, ' ', 0)
	fmt.Fprintf(tw, "Method\tN\tMean\tVariance\tMSE\t%.0f%% CI\tIncludes ref\n", levelPercent(a))
	for _, s := range a.Summaries {
		includes := ui.Paint(ui.ColorRed(), "no")
		if s.CI.IncludesTrue {
			includes = ui.Paint(ui.ColorGreen(), "yes")
		}
		fmt.Fprintf(tw, "%s\t%d\t%.6f\t%.3e\t%.3e\t[%.6f, %.6f]\t%s\n",
			s.Method, s.N, s.Mean, s.Variance, s.MSE, s.CI.Lower, s.CI.Upper, includes)
	}
	if err := tw.Flush(); err != nil {
		fmt.Fprintf(out, "Warning: failed to flush tabwriter: %v\n", err)
	}

	if len(a.Comparisons) > 0 {
		fmt.Fprintf(out, "\n--- Welch t-tests ---\n")
		tw = tabwriter.NewWriter(out, 0, 0, 3, ' ', 0)
		fmt.Fprintf(tw, "Pair\tt\tdf\tp\n")
		for _, c := range a.Comparisons {
			fmt.Fprintf(tw, "%s vs %s\t%.4f\t%.2f\t%.4g\n", c.A.DisplayName(), c.B.DisplayName(), c.Test.T, c.Test.DF, c.Test.P)
		}
		if err := tw.Flush(); err != nil {
			fmt.Fprintf(out, "Warning: failed to flush tabwriter: %v\n", err)
		}
	}
	for _, m := range a.Missing {
		fmt.Fprintf(out, "%sNo stored series for %s.%s\n", ui.ColorYellow(), m.DisplayName(), ui.ColorReset())
	}
}

func levelPercent(a experiment.Analysis) float64 {
	if len(a.Summaries) == 0 || a.Summaries[0].CI.Level == 0 {
		return 95
	}
	return a.Summaries[0].CI.Level * 100
}

// WriteAnalysisJSON encodes a as indented JSON.
func WriteAnalysisJSON(out io.Writer, a experiment.Analysis) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(a)
}
