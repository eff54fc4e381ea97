// Package apperrors defines the structured error types shared by the
// command-line, server and experiment layers, and the exit codes the binary
// reports for each class of failure.
//
// Errors are wrapped with fmt.Errorf and %w throughout; every type here
// implements Unwrap where it carries a cause so errors.Is and errors.As see
// the whole chain.
package apperrors

import (
	"context"
	"errors"
	"fmt"
)

// Process exit codes.
const (
	ExitSuccess              = 0   // Successful execution.
	ExitErrorGeneric         = 1   // Unclassified failure.
	ExitErrorTimeout         = 2   // The configured timeout elapsed.
	ExitErrorInvalidArgument = 3   // A size, budget or domain was rejected.
	ExitErrorConfig          = 4   // Bad flags, environment or backend setup.
	ExitErrorCanceled        = 130 // Interrupted (e.g., SIGINT).
)

// ConfigError is a configuration problem the user has to fix before the
// program can run: an invalid flag, an unreadable environment value, or an
// orthogonal backend that cannot be loaded.
type ConfigError struct {
	// Message explains the problem.
	Message string
	// Cause is the underlying error, if any.
	Cause error
}

// Error implements error.
func (e ConfigError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// Unwrap returns the cause.
func (e ConfigError) Unwrap() error { return e.Cause }

// NewConfigError returns a ConfigError with a formatted message.
func NewConfigError(format string, a ...any) error {
	return ConfigError{Message: fmt.Sprintf(format, a...)}
}

// WrapConfigError returns a ConfigError carrying cause, or nil if cause is nil.
func WrapConfigError(cause error, format string, a ...any) error {
	if cause == nil {
		return nil
	}
	return ConfigError{Message: fmt.Sprintf(format, a...), Cause: cause}
}

// EstimationError reports a failed area estimate for one sampling method
// and keeps the original cause.
type EstimationError struct {
	// Method is the sampling method that failed.
	Method string
	// Cause is the underlying error.
	Cause error
}

// Error implements error.
func (e EstimationError) Error() string {
	if e.Method == "" {
		return e.Cause.Error()
	}
	return fmt.Sprintf("%s estimate: %v", e.Method, e.Cause)
}

// Unwrap returns the cause, so errors.Is(err, context.Canceled) and the
// domain sentinels keep working through it.
func (e EstimationError) Unwrap() error { return e.Cause }

// ServerError is a failure of the HTTP server component.
type ServerError struct {
	// Message describes the server operation that failed.
	Message string
	// Cause is the underlying error, if any.
	Cause error
}

// Error implements error.
func (e ServerError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// Unwrap returns the underlying error.
func (e ServerError) Unwrap() error { return e.Cause }

// NewServerError creates a new ServerError with a message and optional cause.
func NewServerError(message string, cause error) error {
	return ServerError{Message: message, Cause: cause}
}

// StorageError reports a failure to read or write persisted results.
type StorageError struct {
	// Op is the operation, e.g. "put" or "query".
	Op string
	// Key identifies the object or table involved.
	Key string
	// Cause is the underlying error.
	Cause error
}

// Error implements error.
func (e StorageError) Error() string {
	return fmt.Sprintf("storage %s %s: %v", e.Op, e.Key, e.Cause)
}

// Unwrap returns the underlying error.
func (e StorageError) Unwrap() error { return e.Cause }

// WrapError wraps err with a formatted context message using %w.
// It returns nil if err is nil.
func WrapError(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	message := fmt.Sprintf(format, args...)
	return fmt.Errorf("%s: %w", message, err)
}

// IsContextError reports whether err is a cancellation or deadline error.
func IsContextError(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

// ValidationError is an input that failed validation, from a request
// parameter or a configuration field.
type ValidationError struct {
	// Field is the name of the field that failed validation.
	Field string
	// Message describes why validation failed.
	Message string
	// Value is the invalid value (optional, may be nil).
	Value any
}

// Error implements error.
func (e ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation error for '%s': %s", e.Field, e.Message)
	}
	return fmt.Sprintf("validation error: %s", e.Message)
}

// NewValidationError creates a new ValidationError.
func NewValidationError(field, message string, value any) error {
	return ValidationError{Field: field, Message: message, Value: value}
}
