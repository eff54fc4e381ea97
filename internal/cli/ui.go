// Package cli renders mandelarea runs in the terminal: the progress display
// shared by concurrent estimates, result tables, and the quiet and JSON
// output modes.
package cli

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/briandowns/spinner"

	"github.com/agbru/mandelarea/internal/estimator"
)

// FormatExecutionDuration formats d for display: microseconds below a
// millisecond, milliseconds below a second, and d.String() otherwise.
func FormatExecutionDuration(d time.Duration) string {
	if d < time.Millisecond {
		return fmt.Sprintf("%dµs", d.Microseconds())
	} else if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	return d.Round(time.Millisecond).String()
}

const (
	// ProgressRefreshRate is the refresh period of the progress line.
	ProgressRefreshRate = 200 * time.Millisecond
	// ProgressBarWidth is the width in characters of the progress bar.
	ProgressBarWidth = 40
)

// Spinner abstracts the terminal spinner so DisplayProgress can be tested
// without a terminal.
type Spinner interface {
	Start()
	Stop()
	// UpdateSuffix sets the text shown after the spinner.
	UpdateSuffix(suffix string)
}

// realSpinner adapts *spinner.Spinner to Spinner.
type realSpinner struct {
	s *spinner.Spinner
}

func (rs *realSpinner) Start() { rs.s.Start() }

func (rs *realSpinner) Stop() { rs.s.Stop() }

func (rs *realSpinner) UpdateSuffix(suffix string) {
	rs.s.Lock()
	rs.s.Suffix = suffix
	rs.s.Unlock()
}

var newSpinner = func(options ...spinner.Option) Spinner {
	s := spinner.New(spinner.CharSets[11], ProgressRefreshRate, options...)
	return &realSpinner{s}
}

// ProgressState aggregates the progress of concurrent estimates into one
// average value.
type ProgressState struct {
	progresses    []float64
	numEstimators int
}

// NewProgressState tracks numEstimators independent progress values.
func NewProgressState(numEstimators int) *ProgressState {
	return &ProgressState{
		progresses:    make([]float64, numEstimators),
		numEstimators: numEstimators,
	}
}

// Update records value for the estimator at index. Out-of-range indices are
// ignored and values are clamped to [0, 1].
func (ps *ProgressState) Update(index int, value float64) {
	if index >= 0 && index < len(ps.progresses) {
		ps.progresses[index] = min(max(value, 0), 1)
	}
}

// CalculateAverage returns the mean progress over all estimators.
func (ps *ProgressState) CalculateAverage() float64 {
	if ps.numEstimators == 0 {
		return 0.0
	}
	var total float64
	for _, p := range ps.progresses {
		total += p
	}
	return total / float64(ps.numEstimators)
}

// progressBar renders progress (clamped to [0, 1]) as a bar of length runes.
func progressBar(progress float64, length int) string {
	progress = min(max(progress, 0), 1)
	count := int(progress * float64(length))
	var builder strings.Builder
	builder.Grow(length * 3)
	for i := 0; i < length; i++ {
		if i < count {
			builder.WriteRune('█')
		} else {
			builder.WriteRune('░')
		}
	}
	return builder.String()
}

func progressLabel(numEstimators int) string {
	if numEstimators > 1 {
		return "Avg progress"
	}
	return "Progress"
}

// DisplayProgress renders a spinner and an averaged progress bar with ETA
// until progressChan is closed, then prints a final 100% line. It is meant
// to run in its own goroutine and calls wg.Done on return.
func DisplayProgress(wg *sync.WaitGroup, progressChan <-chan estimator.ProgressUpdate, numEstimators int, out io.Writer) {
	defer wg.Done()
	if numEstimators <= 0 {
		for range progressChan {
		}
		return
	}

	state := NewProgressWithETA(numEstimators)
	s := newSpinner(spinner.WithWriter(out))
	s.Start()
	spinnerStopped := false
	defer func() {
		if !spinnerStopped {
			s.Stop()
		}
	}()

	ticker := time.NewTicker(ProgressRefreshRate)
	defer ticker.Stop()

	label := progressLabel(numEstimators)
	for {
		select {
		case update, ok := <-progressChan:
			if !ok {
				s.Stop()
				spinnerStopped = true
				fmt.Fprintf(out, "%s: %6.2f%% [%s] ETA: %s\n", label, 100.0, progressBar(1.0, ProgressBarWidth), "< 1s")
				return
			}
			state.UpdateWithETA(update.EstimatorIndex, update.Value)
		case <-ticker.C:
			avg := state.CalculateAverage()
			s.UpdateSuffix(fmt.Sprintf(" %s: %6.2f%% [%s] ETA: %s",
				label, avg*100, progressBar(avg, ProgressBarWidth), FormatETA(state.GetETA())))
		}
	}
}

// formatNumber renders n with thousand separators.
func formatNumber(n int) string {
	s := strconv.Itoa(n)
	prefix := ""
	if s[0] == '-' {
		prefix, s = "-", s[1:]
	}
	if len(s) <= 3 {
		return prefix + s
	}
	var builder strings.Builder
	builder.Grow(len(prefix) + len(s) + (len(s)-1)/3)
	builder.WriteString(prefix)
	first := len(s) % 3
	if first == 0 {
		first = 3
	}
	builder.WriteString(s[:first])
	for i := first; i < len(s); i += 3 {
		builder.WriteByte(',')
		builder.WriteString(s[i : i+3])
	}
	return builder.String()
}
