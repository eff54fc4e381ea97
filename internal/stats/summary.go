package stats

// DefaultConfidenceLevel is the level used by Summarize.
const DefaultConfidenceLevel = 0.95

// Summary collects the statistics of one method's repeated estimates.
type Summary struct {
	Method   string   `json:"method"`
	N        int      `json:"n"`
	Mean     float64  `json:"mean"`
	Variance float64  `json:"variance"`
	MSE      float64  `json:"mse"`
	CI       Interval `json:"ci"`
}

// Summarize computes the Summary of areas against the reference truth.
// It needs at least two observations.
func Summarize(method string, areas []float64, truth float64) (Summary, error) {
	ci, err := ConfidenceInterval(areas, truth, DefaultConfidenceLevel)
	if err != nil {
		return Summary{}, err
	}
	variance, _ := Variance(areas)
	mse, _ := MSE(areas, truth)
	return Summary{
		Method:   method,
		N:        len(areas),
		Mean:     ci.Mean,
		Variance: variance,
		MSE:      mse,
		CI:       ci,
	}, nil
}
