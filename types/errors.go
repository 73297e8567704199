package types

import (
	"errors"
	"fmt"
)

// ErrorKind categorizes failures for retry decisions at stage boundaries.
type ErrorKind string

const (
	// ErrTransient failures are retried on the next cycle/attempt.
	ErrTransient ErrorKind = "TRANSIENT"
	// ErrPermanent failures disable the failing component until restart.
	ErrPermanent ErrorKind = "PERMANENT"
)

// CategorizedError wraps an error with a retry category. Collectors and the
// notifier return these so callers can decide between backoff and disable.
type CategorizedError struct {
	Kind ErrorKind
	Err  error
}

func (e *CategorizedError) Error() string {
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *CategorizedError) Unwrap() error { return e.Err }

// Transient wraps err as a retryable failure.
func Transient(err error) error {
	return &CategorizedError{Kind: ErrTransient, Err: err}
}

// Permanent wraps err as a non-retryable failure.
func Permanent(err error) error {
	return &CategorizedError{Kind: ErrPermanent, Err: err}
}

// Transientf is Transient with formatting.
func Transientf(format string, args ...any) error {
	return Transient(fmt.Errorf(format, args...))
}

// Permanentf is Permanent with formatting.
func Permanentf(format string, args ...any) error {
	return Permanent(fmt.Errorf(format, args...))
}

// IsPermanent reports whether err carries the PERMANENT category. Errors
// without a category default to transient.
func IsPermanent(err error) bool {
	var ce *CategorizedError
	if errors.As(err, &ce) {
		return ce.Kind == ErrPermanent
	}
	return false
}

// ConfigError is fatal at startup (exit code 1).
type ConfigError struct {
	Field string
	Err   error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config: %s: %v", e.Field, e.Err)
}

func (e *ConfigError) Unwrap() error { return e.Err }

// StoreError is fatal at any point (exit code 2). Persistence failures
// indicate the process can no longer guarantee its invariants.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store: %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

// InvariantViolation indicates a bug in the correlator or notifier; the
// process aborts rather than emit wrong alerts.
type InvariantViolation struct {
	Detail string
}

func (e *InvariantViolation) Error() string {
	return "invariant violation: " + e.Detail
}
