package httputil

import (
	"context"
	"errors"
	"time"
)

// RetryableError marks a failure as transient (connection error, 5xx) so
// that [Retry] attempts the operation again.
type RetryableError struct{ Err error }

func (e *RetryableError) Error() string { return e.Err.Error() }
func (e *RetryableError) Unwrap() error { return e.Err }

// DefaultRetryDelay is the first backoff delay used by registry clients.
const DefaultRetryDelay = 500 * time.Millisecond

// Retry runs fn once plus up to retries more times while it fails with a
// [RetryableError]. Any other error is returned immediately. The delay
// doubles after each failed attempt. With retries <= 0, fn runs exactly once.
//
// The returned error is the last one from fn, with the RetryableError
// marker removed, or ctx.Err() if ctx ends during a backoff.
func Retry(ctx context.Context, retries int, delay time.Duration, fn func() error) error {
	attempts := max(retries, 0) + 1
	var lastErr error

	for i := range attempts {
		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err
		if !isRetryable(err) {
			return err
		}

		if i < attempts-1 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
				delay *= 2
			}
		}
	}
	return unwrapRetryable(lastErr)
}

func isRetryable(err error) bool {
	return errors.As(err, new(*RetryableError))
}

func unwrapRetryable(err error) error {
	var r *RetryableError
	if errors.As(err, &r) && err == error(r) {
		return r.Err
	}
	return err
}
