package httputil

import (
	"context"
	"errors"
	"time"
)

// maxBackoff caps the delay between attempts.
const maxBackoff = 10 * time.Second

// RetryableError marks a transient failure: a transport error, a body read
// error or a 5xx status. [Retry] only retries errors of this type.
type RetryableError struct{ Err error }

func (e *RetryableError) Error() string { return e.Err.Error() }
func (e *RetryableError) Unwrap() error { return e.Err }

// Retry runs fn up to attempts times, doubling delay after each retryable
// failure up to maxBackoff. It returns the last error, or ctx.Err() when
// ctx ends while waiting.
func Retry(ctx context.Context, attempts int, delay time.Duration, fn func() error) error {
	var err error
	for i := range max(attempts, 1) {
		if i > 0 {
			t := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				t.Stop()
				return ctx.Err()
			case <-t.C:
			}
			delay = min(delay*2, maxBackoff)
		}
		if err = fn(); err == nil || !isRetryable(err) {
			return err
		}
	}
	return err
}

func isRetryable(err error) bool {
	return errors.As(err, new(*RetryableError))
}
