package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/agbru/mandelarea/internal/config"
	"github.com/agbru/mandelarea/internal/estimator"
	"github.com/agbru/mandelarea/internal/logging"
	"github.com/agbru/mandelarea/internal/orthogonal"
	"github.com/agbru/mandelarea/internal/sampling"
	"github.com/agbru/mandelarea/internal/service"
)

// mockService records the last request and returns a canned result.
type mockService struct {
	mu       sync.Mutex
	method   string
	size     int
	maxIter  int
	err      error
	delay    time.Duration
	calls    int
	methods  []sampling.Method
	resultFn func(method string, size, maxIter int) estimator.Result
}

func (m *mockService) Estimate(ctx context.Context, method string, size, maxIter int) (estimator.Result, error) {
	m.mu.Lock()
	m.method, m.size, m.maxIter = method, size, maxIter
	m.calls++
	m.mu.Unlock()
	if m.delay > 0 {
		select {
		case <-time.After(m.delay):
		case <-ctx.Done():
			return estimator.Result{}, ctx.Err()
		}
	}
	if m.err != nil {
		return estimator.Result{}, m.err
	}
	if m.resultFn != nil {
		return m.resultFn(method, size, maxIter), nil
	}
	return estimator.Result{Method: sampling.Method(method), Size: size, NumSamples: size, MaxIter: maxIter, Area: 1.5065918849}, nil
}

func (m *mockService) Methods() []sampling.Method {
	if m.methods != nil {
		return m.methods
	}
	return sampling.Methods
}

func createTestServer(t *testing.T, svc service.Service, opts ...Option) *Server {
	t.Helper()
	cfg := config.Default()
	rl := NewRateLimiter(RateLimiterConfig{RequestsPerMinute: 10_000})
	t.Cleanup(rl.Stop)
	opts = append([]Option{WithLogger(logging.Nop()), WithRateLimiter(rl)}, opts...)
	if svc != nil {
		opts = append(opts, WithService(svc))
	}
	factory := estimator.NewFactory(estimator.Options{
		Source: sampling.NewSeededSource(3),
		Bridge: orthogonal.NewBridge(&orthogonal.Builtin{}),
	})
	return NewServer(factory, cfg, opts...)
}

func decode[T any](t *testing.T, body io.Reader) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(body).Decode(&v); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return v
}

func TestHandleEstimate(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name        string
		query       string
		err         error
		wantStatus  int
		wantMethod  string
		wantSize    int
		wantIter    int
		wantMessage string
	}{
		{name: "Defaults", query: "", wantStatus: http.StatusOK, wantMethod: "pure", wantSize: config.DefaultSamples, wantIter: config.DefaultMaxIter},
		{name: "LHS", query: "?method=lhs&samples=5000&iter=250", wantStatus: http.StatusOK, wantMethod: "lhs", wantSize: 5000, wantIter: 250},
		{name: "OrthoGrid", query: "?method=ortho&grid=40", wantStatus: http.StatusOK, wantMethod: "ortho", wantSize: 40, wantIter: config.DefaultMaxIter},
		{name: "OrthoFromSamples", query: "?method=ortho&samples=1700", wantStatus: http.StatusOK, wantMethod: "ortho", wantSize: 41, wantIter: config.DefaultMaxIter},
		{name: "OrthoDefaultGrid", query: "?method=Orthogonal", wantStatus: http.StatusOK, wantMethod: "ortho", wantSize: config.DefaultGrid, wantIter: config.DefaultMaxIter},
		{name: "BadMethod", query: "?method=sobol", wantStatus: http.StatusBadRequest, wantMessage: "Invalid 'method'"},
		{name: "BadSamples", query: "?samples=abc", wantStatus: http.StatusBadRequest, wantMessage: "'samples'"},
		{name: "NegativeIter", query: "?iter=-3", wantStatus: http.StatusBadRequest, wantMessage: "'iter'"},
		{name: "ZeroGrid", query: "?method=ortho&grid=0", wantStatus: http.StatusBadRequest, wantMessage: "'grid'"},
		{name: "SamplesCap", query: "?samples=10", err: service.ErrMaxSamplesExceeded, wantStatus: http.StatusBadRequest, wantMessage: "maximum allowed"},
		{name: "IterCap", query: "?iter=10", err: service.ErrMaxIterExceeded, wantStatus: http.StatusBadRequest, wantMessage: "'iter' exceeds"},
		{name: "BackendMissing", query: "?method=ortho", err: fmt.Errorf("Ortho sampler: %w", orthogonal.ErrBackendUnavailable), wantStatus: http.StatusServiceUnavailable, wantMessage: "unavailable"},
		{name: "Internal", query: "", err: errors.New("boom"), wantStatus: http.StatusInternalServerError, wantMessage: "boom"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			svc := &mockService{err: tt.err}
			srv := createTestServer(t, svc)

			req := httptest.NewRequest(http.MethodGet, "/estimate"+tt.query, http.NoBody)
			w := httptest.NewRecorder()
			srv.handleEstimate(w, req)

			resp := w.Result()
			defer resp.Body.Close()
			if resp.StatusCode != tt.wantStatus {
				t.Fatalf("status = %d, want %d", resp.StatusCode, tt.wantStatus)
			}
			if tt.wantStatus != http.StatusOK {
				errResp := decode[ErrorResponse](t, resp.Body)
				if !strings.Contains(errResp.Message, tt.wantMessage) {
					t.Errorf("message %q does not contain %q", errResp.Message, tt.wantMessage)
				}
				return
			}
			body := decode[Response](t, resp.Body)
			if svc.method != tt.wantMethod || svc.size != tt.wantSize || svc.maxIter != tt.wantIter {
				t.Errorf("service got (%s, %d, %d), want (%s, %d, %d)", svc.method, svc.size, svc.maxIter, tt.wantMethod, tt.wantSize, tt.wantIter)
			}
			if body.Rounded != 1.506592 || body.Area != 1.5065918849 {
				t.Errorf("response = %+v", body)
			}
		})
	}
}

func TestHandleEstimateTimeout(t *testing.T) {
	t.Parallel()
	svc := &mockService{delay: time.Second}
	srv := createTestServer(t, svc, WithTimeouts(Timeouts{RequestTimeout: 10 * time.Millisecond, ShutdownTimeout: time.Second}))
	w := httptest.NewRecorder()
	srv.handleEstimate(w, httptest.NewRequest(http.MethodGet, "/estimate", http.NoBody))
	if w.Code != http.StatusGatewayTimeout {
		t.Errorf("status = %d, want 504", w.Code)
	}
}

func TestEstimateEndToEnd(t *testing.T) {
	t.Parallel()
	srv := createTestServer(t, nil)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	for _, q := range []string{"method=pure&samples=4000&iter=50", "method=lhs&samples=4000&iter=50", "method=ortho&grid=50&iter=50"} {
		resp, err := http.Get(ts.URL + "/estimate?" + q)
		if err != nil {
			t.Fatal(err)
		}
		body := decode[Response](t, resp.Body)
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("%s: status %d", q, resp.StatusCode)
		}
		if body.Area <= 0.5 || body.Area >= 3 {
			t.Errorf("%s: area %v out of plausible range", q, body.Area)
		}
	}

	resp, err := http.Get(ts.URL + "/estimate?samples=5000000")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("over the default sample cap: status %d", resp.StatusCode)
	}
}

func TestHandleHealth(t *testing.T) {
	t.Parallel()
	srv := createTestServer(t, &mockService{})
	w := httptest.NewRecorder()
	srv.handleHealth(w, httptest.NewRequest(http.MethodGet, "/health", http.NoBody))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	body := decode[map[string]any](t, w.Body)
	if body["status"] != "healthy" {
		t.Errorf("body = %v", body)
	}
}

func TestHandleMethods(t *testing.T) {
	t.Parallel()
	srv := createTestServer(t, &mockService{methods: []sampling.Method{sampling.Pure, sampling.LHS}})
	w := httptest.NewRecorder()
	srv.handleMethods(w, httptest.NewRequest(http.MethodGet, "/methods", http.NoBody))
	body := decode[map[string][]string](t, w.Body)
	if got := body["methods"]; len(got) != 2 || got[0] != "pure" || got[1] != "lhs" {
		t.Errorf("methods = %v", got)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	t.Parallel()
	srv := createTestServer(t, &mockService{})
	for _, path := range []string{"/estimate", "/health", "/methods", "/metrics"} {
		w := httptest.NewRecorder()
		srv.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodPost, path, http.NoBody))
		if w.Code != http.StatusMethodNotAllowed {
			t.Errorf("POST %s: status %d", path, w.Code)
		}
	}
}

func TestSecurityHeadersAndPreflight(t *testing.T) {
	t.Parallel()
	srv := createTestServer(t, &mockService{})
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", http.NoBody))
	for _, h := range []string{"X-Content-Type-Options", "X-Frame-Options", "Content-Security-Policy", "Access-Control-Allow-Origin"} {
		if w.Header().Get(h) == "" {
			t.Errorf("missing header %s", h)
		}
	}

	w = httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodOptions, "/estimate", http.NoBody))
	if w.Code != http.StatusNoContent {
		t.Errorf("preflight status = %d", w.Code)
	}
}

func TestRateLimiting(t *testing.T) {
	t.Parallel()
	rl := NewRateLimiter(RateLimiterConfig{RequestsPerMinute: 3})
	t.Cleanup(rl.Stop)
	srv := createTestServer(t, &mockService{}, WithRateLimiter(rl))

	codes := make([]int, 5)
	for i := range codes {
		req := httptest.NewRequest(http.MethodGet, "/health", http.NoBody)
		req.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")
		w := httptest.NewRecorder()
		srv.Handler().ServeHTTP(w, req)
		codes[i] = w.Code
	}
	want := []int{200, 200, 200, 429, 429}
	for i := range want {
		if codes[i] != want[i] {
			t.Fatalf("codes = %v, want %v", codes, want)
		}
	}

	other := httptest.NewRequest(http.MethodGet, "/health", http.NoBody)
	other.RemoteAddr = "[::1]:5555"
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, other)
	if w.Code != http.StatusOK {
		t.Errorf("other client status = %d", w.Code)
	}
}

func TestGetClientIP(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name   string
		xff    string
		realIP string
		remote string
		wantIP string
	}{
		{"ForwardedFirst", "1.2.3.4, 5.6.7.8", "", "9.9.9.9:1", "1.2.3.4"},
		{"RealIP", "", " 4.4.4.4 ", "9.9.9.9:1", "4.4.4.4"},
		{"RemoteV4", "", "", "9.9.9.9:1234", "9.9.9.9"},
		{"RemoteV6", "", "", "[::1]:80", "::1"},
		{"RemoteNoPort", "", "", "8.8.8.8", "8.8.8.8"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			r := httptest.NewRequest(http.MethodGet, "/", http.NoBody)
			r.RemoteAddr = tt.remote
			if tt.xff != "" {
				r.Header.Set("X-Forwarded-For", tt.xff)
			}
			if tt.realIP != "" {
				r.Header.Set("X-Real-IP", tt.realIP)
			}
			if got := getClientIP(r); got != tt.wantIP {
				t.Errorf("getClientIP = %q, want %q", got, tt.wantIP)
			}
		})
	}
}

func TestMetricsEndpoint(t *testing.T) {
	t.Parallel()
	srv := createTestServer(t, nil)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/estimate?samples=1000&iter=20")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()

	resp, err = http.Get(ts.URL + "/metrics")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	data, _ := io.ReadAll(resp.Body)
	for _, name := range []string{"mandelarea_requests_total", "mandelarea_estimates_total"} {
		if !strings.Contains(string(data), name) {
			t.Errorf("/metrics lacks %s", name)
		}
	}
}

func TestOptions(t *testing.T) {
	t.Parallel()
	srv := createTestServer(t, &mockService{}, WithLimits(10, 20), WithTimeouts(Timeouts{RequestTimeout: time.Second}))
	if srv.securityConfig.MaxSamples != 10 || srv.securityConfig.MaxIter != 20 {
		t.Errorf("limits = %+v", srv.securityConfig)
	}
	if srv.timeouts.RequestTimeout != time.Second {
		t.Errorf("timeouts = %+v", srv.timeouts)
	}
	if srv.Addr() != ":"+config.DefaultPort {
		t.Errorf("Addr = %q", srv.Addr())
	}
}

func TestConfigLimitsReachService(t *testing.T) {
	t.Parallel()
	cfg := config.Default()
	cfg.MaxSamples = 100
	rl := NewRateLimiter(DefaultRateLimiterConfig())
	t.Cleanup(rl.Stop)
	srv := NewServer(estimator.NewFactory(estimator.Options{}), cfg, WithLogger(logging.Nop()), WithRateLimiter(rl))
	w := httptest.NewRecorder()
	srv.handleEstimate(w, httptest.NewRequest(http.MethodGet, "/estimate?samples=101", http.NoBody))
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestStartStopsOnContext(t *testing.T) {
	t.Parallel()
	cfg := config.Default()
	cfg.Port = "0"
	srv := NewServer(estimator.NewFactory(estimator.Options{}), cfg, WithLogger(logging.Nop()))
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Start(ctx) }()
	time.Sleep(50 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Start returned %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}
