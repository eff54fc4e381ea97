// Package results persists estimate series and the cached reference area.
//
// A series file holds one run per line, "<num_samples> <max_iter> <area>",
// with the area printed to six decimals. Series files live under a directory
// per experiment and are named after the sampling method.
package results

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"math"
	"path"
	"strconv"
	"strings"

	"github.com/agbru/mandelarea/internal/sampling"
)

// ErrMalformedRecord is returned when a series line cannot be parsed.
var ErrMalformedRecord = errors.New("malformed series record")

// Record is one line of a series file.
type Record struct {
	NumSamples int     `json:"num_samples"`
	MaxIter    int     `json:"max_iter"`
	Area       float64 `json:"area"`
}

// FormatRecord renders r in the series line format, without a newline.
func FormatRecord(r Record) string {
	return fmt.Sprintf("%d %d %.6f", r.NumSamples, r.MaxIter, r.Area)
}

// ParseRecord parses one series line.
func ParseRecord(line string) (Record, error) {
	fields := strings.Fields(line)
	if len(fields) != 3 {
		return Record{}, fmt.Errorf("%w: want 3 fields, got %d in %q", ErrMalformedRecord, len(fields), line)
	}
	n, err := strconv.Atoi(fields[0])
	if err != nil {
		return Record{}, fmt.Errorf("%w: num_samples %q", ErrMalformedRecord, fields[0])
	}
	iter, err := strconv.Atoi(fields[1])
	if err != nil {
		return Record{}, fmt.Errorf("%w: max_iter %q", ErrMalformedRecord, fields[1])
	}
	area, err := strconv.ParseFloat(fields[2], 64)
	if err != nil || math.IsNaN(area) || math.IsInf(area, 0) {
		return Record{}, fmt.Errorf("%w: area %q", ErrMalformedRecord, fields[2])
	}
	return Record{NumSamples: n, MaxIter: iter, Area: area}, nil
}

// WriteSeries writes records one per line.
func WriteSeries(w io.Writer, records []Record) error {
	bw := bufio.NewWriter(w)
	for _, r := range records {
		if _, err := bw.WriteString(FormatRecord(r) + "\n"); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// ReadSeries parses a series. Blank lines are skipped; any other bad line
// fails the whole read with its line number.
func ReadSeries(r io.Reader) ([]Record, error) {
	var out []Record
	sc := bufio.NewScanner(r)
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" {
			continue
		}
		rec, err := ParseRecord(text)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		out = append(out, rec)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// Areas extracts the area column.
func Areas(records []Record) []float64 {
	out := make([]float64, len(records))
	for i, r := range records {
		out[i] = r.Area
	}
	return out
}

// Experiment identifies a family of runs sharing a result directory.
type Experiment string

const (
	// Sweep is the grid of sizes × iteration budgets. Its series sit at
	// the root of the results store.
	Sweep Experiment = "sweep"
	// Repeat is the same size and budget run many times.
	Repeat Experiment = "repeat"
	// Iterations is a fixed size across increasing budgets.
	Iterations Experiment = "iterations"
	// Single is a one-off estimate; it is never written as a series.
	Single Experiment = "single"
)

// Experiments lists the experiments that own a series directory.
var Experiments = []Experiment{Sweep, Repeat, Iterations}

// ParseExperiment accepts an experiment name.
func ParseExperiment(s string) (Experiment, error) {
	switch e := Experiment(strings.ToLower(strings.TrimSpace(s))); e {
	case Sweep, Repeat, Iterations, Single:
		return e, nil
	}
	return "", fmt.Errorf("unknown experiment %q", s)
}

// Dir returns the directory holding the experiment's series, "" for the root.
func (e Experiment) Dir() string {
	switch e {
	case Repeat:
		return "same_iter_and_size"
	case Iterations:
		return "same_size_diff_iter"
	default:
		return ""
	}
}

// SeriesKey returns the store key of the series for method in experiment e.
func SeriesKey(e Experiment, method sampling.Method) string {
	name := "mandelbrotArea_" + method.DisplayName() + ".txt"
	if dir := e.Dir(); dir != "" {
		return path.Join(dir, name)
	}
	return name
}

// TrueAreaKey is the store key of the cached reference area.
const TrueAreaKey = "trueArea.txt"

const trueAreaPrefix = "True Area of the Mandelbrot set samples is"

// FormatTrueArea renders the reference area file content.
func FormatTrueArea(area float64) string {
	return fmt.Sprintf("%s %.6f\n", trueAreaPrefix, area)
}

// ParseTrueArea reads the area from the last field of s. The value must be
// finite and positive.
func ParseTrueArea(s string) (float64, error) {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return 0, fmt.Errorf("%w: empty true area", ErrMalformedRecord)
	}
	last := fields[len(fields)-1]
	v, err := strconv.ParseFloat(last, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) || v <= 0 {
		return 0, fmt.Errorf("%w: true area %q", ErrMalformedRecord, last)
	}
	return v, nil
}
