package cli

import (
	"errors"
	"fmt"
	"io"
	"runtime"
	"strings"

	"github.com/agbru/mandelarea/internal/config"
	"github.com/agbru/mandelarea/internal/estimator"
	"github.com/agbru/mandelarea/internal/sampling"
	"github.com/agbru/mandelarea/internal/ui"
)

// EstimatorsToRun returns the estimators selected by cfg, in the order of
// sampling.Methods. Methods whose sampler cannot be built (typically a
// missing native orthogonal library) are skipped and reported in the joined
// error, so the remaining methods can still run.
func EstimatorsToRun(cfg config.AppConfig, factory *estimator.Factory) ([]estimator.Estimator, error) {
	methods, err := cfg.Methods()
	if err != nil {
		return nil, err
	}
	estimators := make([]estimator.Estimator, 0, len(methods))
	var errs []error
	for _, m := range methods {
		est, err := factory.Get(m)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		estimators = append(estimators, est)
	}
	return estimators, errors.Join(errs...)
}

// PrintExecutionConfig displays the sampling domain, the sample sizes and
// the environment.
func PrintExecutionConfig(cfg config.AppConfig, out io.Writer) {
	writeOut(out, "--- Execution Configuration ---\n")
	writeOut(out, "Estimating the Mandelbrot area over %s[%g, %g] x [%g, %g]%s with %s%d%s iterations and a timeout of %s%s%s.\n",
		ui.ColorMagenta(), cfg.RealMin, cfg.RealMax, cfg.ImagMin, cfg.ImagMax, ui.ColorReset(),
		ui.ColorMagenta(), cfg.MaxIter, ui.ColorReset(),
		ui.ColorYellow(), cfg.Timeout, ui.ColorReset())
	writeOut(out, "Sample sizes: %s%s%s points (pure, LHS), %s%d×%d%s grid (ortho).\n",
		ui.ColorCyan(), formatNumber(cfg.Samples), ui.ColorReset(),
		ui.ColorCyan(), cfg.Grid, cfg.Grid, ui.ColorReset())
	seed := "random"
	if cfg.Seed != 0 {
		seed = fmt.Sprint(cfg.Seed)
	}
	writeOut(out, "Seed: %s%s%s, LHS pairing: %s%s%s, orthogonal backend: %s%s%s.\n",
		ui.ColorCyan(), seed, ui.ColorReset(),
		ui.ColorCyan(), cfg.LHSPairing, ui.ColorReset(),
		ui.ColorCyan(), cfg.OrthoBackend, ui.ColorReset())
	writeOut(out, "Environment: %s%d%s logical processors, Go %s%s%s.\n",
		ui.ColorCyan(), runtime.NumCPU(), ui.ColorReset(), ui.ColorCyan(), runtime.Version(), ui.ColorReset())
}

// PrintExecutionMode displays whether one method or a comparison runs.
func PrintExecutionMode(estimators []estimator.Estimator, out io.Writer) {
	var modeDesc string
	switch len(estimators) {
	case 0:
		modeDesc = "nothing to run"
	case 1:
		m := estimators[0].Method()
		modeDesc = fmt.Sprintf("single estimate with %s sampling", ui.Paint(ui.MethodColor(string(m)), m.DisplayName()))
	default:
		names := make([]string, len(estimators))
		for i, e := range estimators {
			names[i] = e.Method().DisplayName()
		}
		modeDesc = "parallel comparison of " + strings.Join(names, ", ")
	}
	writeOut(out, "Execution mode: %s.\n", modeDesc)
	writeOut(out, "\n--- Starting Execution ---\n")
}

// MethodNames joins the flag names of methods, for help texts.
func MethodNames(methods []sampling.Method) string {
	names := make([]string, len(methods))
	for i, m := range methods {
		names[i] = string(m)
	}
	return strings.Join(names, ", ")
}

func writeOut(out io.Writer, format string, a ...any) {
	fmt.Fprintf(out, format, a...)
}
