package estimator

import (
	"fmt"
	"strconv"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

// ChannelObserver feeds the CLI progress display.
type ChannelObserver struct {
	channel chan<- ProgressUpdate
}

// NewChannelObserver sends to ch; a nil ch discards everything.
func NewChannelObserver(ch chan<- ProgressUpdate) *ChannelObserver {
	return &ChannelObserver{channel: ch}
}

// Update clamps progress to 1 and drops the update when ch is full; the
// display only needs the latest value.
func (o *ChannelObserver) Update(index int, progress float64) {
	if o.channel == nil {
		return
	}
	select {
	case o.channel <- ProgressUpdate{EstimatorIndex: index, Value: min(progress, 1)}:
	default:
	}
}

// LoggingObserver writes a debug line per estimate whenever progress has
// moved by at least threshold since the last line, plus the first and the
// final one.
type LoggingObserver struct {
	logger    zerolog.Logger
	threshold float64
	lastLog   map[int]float64
	mu        sync.Mutex
}

// NewLoggingObserver uses a threshold of 0.1 when threshold <= 0.
func NewLoggingObserver(logger zerolog.Logger, threshold float64) *LoggingObserver {
	if threshold <= 0 {
		threshold = 0.1
	}
	return &LoggingObserver{
		logger:    logger,
		threshold: threshold,
		lastLog:   make(map[int]float64),
	}
}

// Update implements ProgressObserver.
func (o *LoggingObserver) Update(index int, progress float64) {
	o.mu.Lock()
	defer o.mu.Unlock()

	last, seen := o.lastLog[index]
	if seen && progress < 1 && progress-last < o.threshold {
		return
	}
	o.lastLog[index] = progress
	o.logger.Debug().
		Int("estimator", index).
		Str("percent", fmt.Sprintf("%.1f%%", progress*100)).
		Msg("estimate progress")
}

var progressGauge = promauto.NewGaugeVec(
	prometheus.GaugeOpts{
		Name: "mandelarea_estimate_progress",
		Help: "Fraction of the sample evaluated, per running estimate.",
	},
	[]string{"estimator_index"},
)

// MetricsObserver mirrors progress into mandelarea_estimate_progress.
type MetricsObserver struct {
	gauge *prometheus.GaugeVec
}

func NewMetricsObserver() *MetricsObserver {
	return &MetricsObserver{gauge: progressGauge}
}

// Update implements ProgressObserver.
func (o *MetricsObserver) Update(index int, progress float64) {
	o.gauge.WithLabelValues(strconv.Itoa(index)).Set(progress)
}

// ResetMetrics drops the series of finished estimates.
func (o *MetricsObserver) ResetMetrics() {
	o.gauge.Reset()
}

// NoOpObserver ignores every update.
type NoOpObserver struct{}

// Update implements ProgressObserver.
func (NoOpObserver) Update(int, float64) {}
