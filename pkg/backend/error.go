package backend

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// BackendError wraps provider errors with status metadata.
type BackendError struct {
	Status    int
	Temporary bool
	Err       error
}

func (e *BackendError) Error() string {
	if e == nil {
		return "backend error"
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return fmt.Sprintf("backend error (status=%d)", e.Status)
}

func (e *BackendError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// IsTimeout reports whether an invocation error was a deadline or
// network timeout rather than a hard failure.
func IsTimeout(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	return false
}

// IsTransient reports whether an error is safe to retry on a later
// round.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if IsTimeout(err) {
		return true
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	var backendErr *BackendError
	if errors.As(err, &backendErr) {
		if backendErr.Temporary {
			return true
		}
		if backendErr.Status == 429 || (backendErr.Status >= 500 && backendErr.Status <= 599) {
			return true
		}
	}
	return false
}
