package server

import (
	"time"

	"github.com/agbru/mandelarea/internal/logging"
	"github.com/agbru/mandelarea/internal/service"
)

// Option configures a Server built by NewServer.
type Option func(*Server)

// WithLogger sets the server logger. A nil logger keeps the default.
func WithLogger(logger logging.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithService replaces the estimate service, typically with a mock in tests.
func WithService(svc service.Service) Option {
	return func(s *Server) {
		if svc != nil {
			s.service = svc
		}
	}
}

// WithTimeouts replaces DefaultServerTimeouts.
func WithTimeouts(timeouts Timeouts) Option {
	return func(s *Server) {
		s.timeouts = timeouts
	}
}

// WithRateLimiter installs rl in place of the default limiter. Start stops
// it on shutdown.
func WithRateLimiter(rl *RateLimiter) Option {
	return func(s *Server) {
		s.rateLimiter = rl
	}
}

// WithSecurityConfig replaces the header policy and the estimate caps.
func WithSecurityConfig(config SecurityConfig) Option {
	return func(s *Server) {
		s.securityConfig = config
	}
}

// WithLimits overrides the per-request sample and iteration caps.
func WithLimits(maxSamples, maxIter int) Option {
	return func(s *Server) {
		s.securityConfig.MaxSamples = maxSamples
		s.securityConfig.MaxIter = maxIter
	}
}

// Timeouts bounds the HTTP server. RequestTimeout caps one estimate and
// must stay below WriteTimeout so the error response can still be written.
type Timeouts struct {
	RequestTimeout  time.Duration
	ShutdownTimeout time.Duration
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
}

// DefaultServerTimeouts returns the timeouts used when none are given.
func DefaultServerTimeouts() Timeouts {
	return Timeouts{
		RequestTimeout:  5 * time.Minute,
		ShutdownTimeout: 30 * time.Second,
		ReadTimeout:     10 * time.Second,
		WriteTimeout:    10 * time.Minute,
		IdleTimeout:     2 * time.Minute,
	}
}
