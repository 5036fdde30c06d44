package utils

import (
	"errors"
	"fmt"
)

// ErrorKind partitions failures into the categories callers react to.
type ErrorKind int

const (
	// KindInternal is the default for unclassified failures.
	KindInternal ErrorKind = iota
	// KindEntityNotFound marks requests for unknown networks, sites,
	// satellites, or links. Client-visible, not retryable.
	KindEntityNotFound
	// KindRepositoryUnavailable marks transient metrics-store failures.
	// Retry policy belongs to the caller, never to the engine.
	KindRepositoryUnavailable
	// KindClassifierUnavailable marks a missing or unusable classifier.
	// Recovered locally via rule-based fallback, never surfaced as fatal.
	KindClassifierUnavailable
	// KindConfiguration marks malformed thresholds or weights detected at
	// construction time, before any data is fetched.
	KindConfiguration
)

// AppError wraps an operation, a failure category, and an underlying error.
type AppError struct {
	Op   string
	Kind ErrorKind
	Msg  string
	Err  error
}

func (e *AppError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Msg)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Msg, e.Err)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// NewAppError constructs an AppError of the given kind.
func NewAppError(op string, kind ErrorKind, msg string, err error) error {
	return &AppError{Op: op, Kind: kind, Msg: msg, Err: err}
}

// KindOf extracts the ErrorKind from err, or KindInternal when err does not
// carry one.
func KindOf(err error) ErrorKind {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindInternal
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind ErrorKind) bool {
	return err != nil && KindOf(err) == kind
}
