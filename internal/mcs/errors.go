package mcs

import (
	"context"
	"errors"
	"net"
)

var (
	// ErrNotEnabled is returned when an operation needs cloud storage but the
	// configuration has it switched off.
	ErrNotEnabled = errors.New("cloud storage is not enabled")

	// ErrInvalidConfig wraps every configuration problem found before a run starts.
	ErrInvalidConfig = errors.New("invalid provider configuration")

	// ErrUnauthorized marks a backend rejection caused by credentials or permissions.
	// It is never retried.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrNotFound is returned when a bucket, object or record does not exist.
	ErrNotFound = errors.New("not found")
)

// TransientError marks a failure that may succeed when the call is repeated.
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string { return e.Err.Error() }
func (e *TransientError) Unwrap() error { return e.Err }

// Transient wraps err as a TransientError. A nil err stays nil.
func Transient(err error) error {
	if err == nil {
		return nil
	}
	return &TransientError{Err: err}
}

// IsTransient reports whether err is worth retrying: explicitly marked
// transient errors, per-attempt deadlines and network timeouts.
// Authorization failures are never transient.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrUnauthorized) || errors.Is(err, context.Canceled) {
		return false
	}

	var te *TransientError
	if errors.As(err, &te) {
		return true
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return true
	}
	return false
}
