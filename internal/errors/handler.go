package apperrors

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/agbru/mandelarea/internal/mandelbrot"
	"github.com/agbru/mandelarea/internal/orthogonal"
)

// ColorProvider supplies terminal colour codes without importing the ui
// package.
type ColorProvider interface {
	Yellow() string
	Reset() string
}

// DefaultColorProvider provides no color codes (for non-terminal output).
type DefaultColorProvider struct{}

func (d DefaultColorProvider) Yellow() string { return "" }
func (d DefaultColorProvider) Reset() string  { return "" }

// ExitCode maps an error to the process exit status.
func ExitCode(err error) int {
	var (
		cfgErr ConfigError
		valErr ValidationError
	)
	switch {
	case err == nil:
		return ExitSuccess
	case errors.Is(err, context.DeadlineExceeded):
		return ExitErrorTimeout
	case errors.Is(err, context.Canceled):
		return ExitErrorCanceled
	case errors.As(err, &cfgErr),
		errors.Is(err, orthogonal.ErrUnsupportedPlatform),
		errors.Is(err, orthogonal.ErrBackendUnavailable):
		return ExitErrorConfig
	case errors.As(err, &valErr), errors.Is(err, mandelbrot.ErrInvalidArgument):
		return ExitErrorInvalidArgument
	default:
		return ExitErrorGeneric
	}
}

// HandleEstimationError prints a status line describing err to out and
// returns the matching exit code. duration, when positive, is how long the
// run lasted before it failed.
func HandleEstimationError(err error, duration time.Duration, out io.Writer, colors ColorProvider) int {
	if err == nil {
		return ExitSuccess
	}
	if colors == nil {
		colors = DefaultColorProvider{}
	}

	msgSuffix := ""
	if duration > 0 {
		msgSuffix = fmt.Sprintf(" after %s%s%s", colors.Yellow(), duration, colors.Reset())
	}

	code := ExitCode(err)
	switch code {
	case ExitErrorTimeout:
		fmt.Fprintf(out, "Status: Failure (Timeout). The execution limit was reached%s.\n", msgSuffix)
	case ExitErrorCanceled:
		fmt.Fprintf(out, "%sStatus: Canceled%s.%s\n", colors.Yellow(), msgSuffix, colors.Reset())
	case ExitErrorConfig:
		fmt.Fprintf(out, "Status: Configuration error: %v\n", err)
	case ExitErrorInvalidArgument:
		fmt.Fprintf(out, "Status: Invalid argument: %v\n", err)
	default:
		fmt.Fprintf(out, "Status: Failure. An unexpected error occurred: %v\n", err)
	}
	return code
}
