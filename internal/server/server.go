// Package server provides the HTTP API for on-demand area estimates.
package server

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/agbru/mandelarea/internal/config"
	apperrors "github.com/agbru/mandelarea/internal/errors"
	"github.com/agbru/mandelarea/internal/estimator"
	"github.com/agbru/mandelarea/internal/logging"
	"github.com/agbru/mandelarea/internal/service"
)

// Server wraps an http.Server with the estimate API, its middleware chain
// and graceful shutdown.
type Server struct {
	factory        *estimator.Factory
	service        service.Service
	cfg            config.AppConfig
	httpServer     *http.Server
	mux            *http.ServeMux
	logger         logging.Logger
	shutdownSignal chan os.Signal
	rateLimiter    *RateLimiter
	securityConfig SecurityConfig
	metrics        *Metrics
	timeouts       Timeouts
}

// NewServer creates a Server serving estimates from factory. Limits on
// samples and iterations come from cfg unless overridden by options.
func NewServer(factory *estimator.Factory, cfg config.AppConfig, opts ...Option) *Server {
	security := DefaultSecurityConfig()
	if cfg.MaxSamples > 0 {
		security.MaxSamples = cfg.MaxSamples
	}
	if cfg.MaxIterLimit > 0 {
		security.MaxIter = cfg.MaxIterLimit
	}
	s := &Server{
		factory:        factory,
		cfg:            cfg,
		logger:         logging.NewLogger(os.Stderr, "server"),
		shutdownSignal: make(chan os.Signal, 1),
		securityConfig: security,
		metrics:        NewMetrics(),
		timeouts:       DefaultServerTimeouts(),
	}

	for _, opt := range opts {
		opt(s)
	}

	if s.service == nil {
		s.service = service.NewEstimatorService(s.factory, service.Limits{
			MaxSamples: s.securityConfig.MaxSamples,
			MaxIter:    s.securityConfig.MaxIter,
		}, nil, s.logger)
	}
	if s.rateLimiter == nil {
		s.rateLimiter = NewRateLimiter(DefaultRateLimiterConfig())
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/estimate", s.wrapWithMiddleware(s.handleEstimate))
	mux.HandleFunc("/health", s.wrapWithMiddleware(s.handleHealth))
	mux.HandleFunc("/methods", s.wrapWithMiddleware(s.handleMethods))
	mux.HandleFunc("/metrics", s.wrapWithMiddleware(s.handleMetrics))
	s.mux = mux

	s.httpServer = &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      mux,
		ReadTimeout:  s.timeouts.ReadTimeout,
		WriteTimeout: s.timeouts.WriteTimeout,
		IdleTimeout:  s.timeouts.IdleTimeout,
	}

	return s
}

// Handler returns the routed handler with its middleware, for embedding or
// tests.
func (s *Server) Handler() http.Handler { return s.mux }

// Addr returns the listen address.
func (s *Server) Addr() string { return s.httpServer.Addr }

// wrapWithMiddleware applies the full middleware chain to a handler.
func (s *Server) wrapWithMiddleware(handler http.HandlerFunc) http.HandlerFunc {
	// Apply in reverse order: Security -> RateLimit -> Tracing -> Logging -> Metrics -> Handler
	wrapped := s.metricsMiddleware(handler)
	wrapped = s.loggingMiddleware(wrapped)
	wrapped = tracingMiddleware(wrapped)
	wrapped = RateLimitMiddleware(s.rateLimiter, wrapped)
	wrapped = SecurityMiddleware(s.securityConfig, wrapped)
	return wrapped
}

// Start listens on the configured port until ctx is done or SIGINT/SIGTERM
// arrives, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	signal.Notify(s.shutdownSignal, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(s.shutdownSignal)
	defer s.rateLimiter.Stop()

	errCh := make(chan error, 1)

	go func() {
		s.logger.Info("starting server",
			logging.String("addr", s.httpServer.Addr),
			logging.Int("max_samples", s.securityConfig.MaxSamples),
			logging.Int("max_iter", s.securityConfig.MaxIter))
		s.logger.Printf("Available endpoints:")
		s.logger.Printf("  GET /estimate?method=<pure|lhs|ortho>&samples=<n>&grid=<m>&iter=<budget>")
		s.logger.Printf("  GET /methods")
		s.logger.Printf("  GET /health")
		s.logger.Printf("  GET /metrics")

		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-s.shutdownSignal:
		s.logger.Info("shutdown signal received, initiating graceful shutdown")
	case <-ctx.Done():
		s.logger.Info("context done, initiating graceful shutdown")
	case err := <-errCh:
		return apperrors.NewServerError("server failed to start", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.timeouts.ShutdownTimeout)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return apperrors.NewServerError("failed to gracefully shutdown server", err)
	}

	s.logger.Info("server stopped gracefully")
	return nil
}
