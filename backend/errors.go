package backend

import (
	"errors"
	"fmt"
)

// Sentinel errors classifying backend failures.
var (
	// ErrUnavailable marks transient failures: the service was unreachable
	// or refused the call (network errors, timeouts, non-2xx statuses).
	// Callers may retry these.
	ErrUnavailable = errors.New("backend unavailable")

	// ErrBadResponse marks a reply the adapter could not use: undecodable
	// payloads or empty completions. Retrying is unlikely to help.
	ErrBadResponse = errors.New("backend returned bad response")
)

// UnavailableError wraps the transport or service failure behind a
// completion call. It matches ErrUnavailable under errors.Is and unwraps
// to the underlying cause.
type UnavailableError struct {
	Backend string
	Err     error
}

func (e *UnavailableError) Error() string {
	return fmt.Sprintf("backend %s unavailable: %v", e.Backend, e.Err)
}

func (e *UnavailableError) Unwrap() error { return e.Err }

// Is makes the error match ErrUnavailable regardless of the wrapped cause.
func (e *UnavailableError) Is(target error) bool { return target == ErrUnavailable }

// ResponseError reports a reply that arrived but was unusable.
type ResponseError struct {
	Backend string
	Detail  string
}

func (e *ResponseError) Error() string {
	return fmt.Sprintf("backend %s: bad response: %s", e.Backend, e.Detail)
}

// Unwrap makes the error match ErrBadResponse under errors.Is.
func (e *ResponseError) Unwrap() error { return ErrBadResponse }
