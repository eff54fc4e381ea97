package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Request metrics. Estimate counts and durations per method come from the
// estimator package; these describe the HTTP layer only.
var (
	requestsInFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "mandelarea_requests_in_flight",
		Help: "Requests currently being served.",
	})
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mandelarea_requests_total",
		Help: "HTTP requests by route and status code.",
	}, []string{"route", "code"})
	requestSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "mandelarea_request_duration_seconds",
		Help:    "HTTP request latency by route.",
		Buckets: prometheus.ExponentialBuckets(0.001, 4, 9),
	}, []string{"route"})
)

// Metrics serves the process-wide Prometheus registry.
type Metrics struct {
	handler http.Handler
}

// NewMetrics returns a Metrics serving the default gatherer.
func NewMetrics() *Metrics {
	return &Metrics{handler: promhttp.Handler()}
}

// observe records one finished request.
func (m *Metrics) observe(route string, code int, elapsed time.Duration) {
	requestsTotal.WithLabelValues(route, strconv.Itoa(code)).Inc()
	requestSeconds.WithLabelValues(route).Observe(elapsed.Seconds())
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	s.metrics.handler.ServeHTTP(w, r)
}

func (s *Server) metricsMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		requestsInFlight.Inc()
		defer requestsInFlight.Dec()

		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next(rec, r)
		s.metrics.observe(r.URL.Path, rec.status, time.Since(start))
	}
}
