package app

import (
	"context"
	"os/signal"
	"syscall"
	"time"
)

// SetupLifecycle returns a context canceled when timeout elapses or when
// SIGINT or SIGTERM arrives, whichever happens first. A non-positive timeout
// leaves only the signal handling in place.
//
// Parameters:
//   - ctx: The parent context.
//   - timeout: The run time limit; zero or negative for none.
//
// Returns:
//   - context.Context: The lifecycle context.
//   - *CancelFuncs: The cancel functions, released with a deferred Cleanup.
func SetupLifecycle(ctx context.Context, timeout time.Duration) (context.Context, *CancelFuncs) {
	c := &CancelFuncs{}
	if timeout > 0 {
		ctx, c.CancelTimeout = context.WithTimeout(ctx, timeout)
	}
	ctx, c.StopSignals = signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	return ctx, c
}

// CancelFuncs holds the cancel functions of a lifecycle context.
type CancelFuncs struct {
	// CancelTimeout cancels the timeout context; nil without a timeout.
	CancelTimeout context.CancelFunc
	// StopSignals stops listening for OS signals.
	StopSignals context.CancelFunc
}

// Cleanup calls both cancel functions. It is meant to be deferred.
func (c *CancelFuncs) Cleanup() {
	if c.StopSignals != nil {
		c.StopSignals()
	}
	if c.CancelTimeout != nil {
		c.CancelTimeout()
	}
}
