package experiment

import (
	"context"
	"errors"

	"github.com/agbru/mandelarea/internal/blob"
	"github.com/agbru/mandelarea/internal/results"
	"github.com/agbru/mandelarea/internal/sampling"
	"github.com/agbru/mandelarea/internal/stats"
)

// Comparison is a Welch t-test between two methods' series.
type Comparison struct {
	A    sampling.Method `json:"a"`
	B    sampling.Method `json:"b"`
	Test stats.TTest     `json:"test"`
}

// Analysis summarises the stored series of one experiment.
type Analysis struct {
	Experiment  results.Experiment `json:"experiment"`
	TrueArea    float64            `json:"true_area"`
	Summaries   []stats.Summary    `json:"summaries"`
	Comparisons []Comparison       `json:"comparisons"`
	// Missing lists methods with no stored series.
	Missing []sampling.Method `json:"missing,omitempty"`
}

// Analyze loads the series of experiment e for every method and summarises
// them against truth. Methods without a stored series are listed as missing;
// every pair of available methods is compared with Welch's t-test.
func Analyze(ctx context.Context, repo *results.Repository, e results.Experiment, truth float64) (Analysis, error) {
	out := Analysis{Experiment: e, TrueArea: truth}
	areas := make(map[sampling.Method][]float64)
	var present []sampling.Method
	for _, m := range sampling.Methods {
		records, err := repo.LoadSeries(ctx, e, m)
		if errors.Is(err, blob.ErrNotFound) {
			out.Missing = append(out.Missing, m)
			continue
		}
		if err != nil {
			return out, err
		}
		xs := results.Areas(records)
		s, err := stats.Summarize(m.DisplayName(), xs, truth)
		if err != nil {
			return out, err
		}
		out.Summaries = append(out.Summaries, s)
		areas[m] = xs
		present = append(present, m)
	}
	for i := 0; i < len(present); i++ {
		for j := i + 1; j < len(present); j++ {
			a, b := present[i], present[j]
			tt, err := stats.WelchTTest(areas[a], areas[b])
			if err != nil {
				return out, err
			}
			out.Comparisons = append(out.Comparisons, Comparison{A: a, B: b, Test: tt})
		}
	}
	return out, nil
}
