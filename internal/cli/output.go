package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"math"

	"github.com/agbru/mandelarea/internal/estimator"
	"github.com/agbru/mandelarea/internal/mandelbrot"
	"github.com/agbru/mandelarea/internal/ui"
)

// OutputConfig selects how results are printed.
type OutputConfig struct {
	// Quiet prints one bare line per result.
	Quiet bool
	// JSON prints results as a JSON document.
	JSON bool
	// Details adds the per-result analysis block.
	Details bool
}

// FormatQuietResult renders res as "<samples> <iterations> <area>", the
// same line layout as the result series files.
func FormatQuietResult(res estimator.Result) string {
	return fmt.Sprintf("%d %d %.6f", res.NumSamples, res.MaxIter, res.Area)
}

// DisplayQuietResult writes FormatQuietResult(res) and a newline.
func DisplayQuietResult(out io.Writer, res estimator.Result) {
	fmt.Fprintln(out, FormatQuietResult(res))
}

// DisplayResult prints the estimate of one method, followed by a short
// analysis when details is set.
func DisplayResult(res estimator.Result, details bool, out io.Writer) {
	color := ui.MethodColor(string(res.Method))
	fmt.Fprintf(out, "%s area estimate: %s%.6f%s (%s of %s points inside, %d iterations)\n",
		ui.Paint(color, res.Method.DisplayName()),
		ui.ColorBold(), mandelbrot.Round6(res.Area), ui.ColorReset(),
		formatNumber(res.Members), formatNumber(res.NumSamples), res.MaxIter)

	if !details {
		return
	}
	fmt.Fprintf(out, "\n%s--- Detailed result analysis ---%s\n", ui.ColorBold(), ui.ColorReset())
	duration := FormatExecutionDuration(res.Duration)
	if res.Duration == 0 {
		duration = "< 1µs"
	}
	fmt.Fprintf(out, "Estimation time         : %s%s%s\n", ui.ColorGreen(), duration, ui.ColorReset())
	if res.NumSamples > 0 {
		fmt.Fprintf(out, "Hit ratio               : %s%.6f%s\n", ui.ColorCyan(), float64(res.Members)/float64(res.NumSamples), ui.ColorReset())
	}
	fmt.Fprintf(out, "Deviation from %.4f   : %s%+.6f%s\n",
		mandelbrot.ReferenceArea, ui.ColorCyan(), res.Area-mandelbrot.ReferenceArea, ui.ColorReset())
}

// ResultJSON is the JSON form of one estimate outcome.
type ResultJSON struct {
	estimator.Result
	Error string `json:"error,omitempty"`
}

// WriteJSON encodes outcomes as an indented JSON array.
func WriteJSON(out io.Writer, outcomes []ResultJSON) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(outcomes)
}

// AbsDeviation returns |area - ReferenceArea|.
func AbsDeviation(area float64) float64 {
	return math.Abs(area - mandelbrot.ReferenceArea)
}
