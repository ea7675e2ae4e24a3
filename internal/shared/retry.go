package shared

import (
	"context"
	"time"
)

// RetryPolicy bounds how often an operation is attempted.
//
// Retryable decides whether a failed attempt may be repeated; a nil Retryable retries every error.
type RetryPolicy struct {
	Attempts  int
	Backoff   time.Duration
	Retryable func(error) bool
}

// Do runs fn until it succeeds, returns a non-retryable error, or the attempts run out.
//
// It returns the number of attempts made along with the last error.
func (p RetryPolicy) Do(ctx context.Context, fn func(context.Context) error) (int, error) {
	attempts := max(p.Attempts, 1)

	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err = fn(ctx); err == nil {
			return attempt, nil
		}
		if p.Retryable != nil && !p.Retryable(err) {
			return attempt, err
		}
		if attempt == attempts {
			return attempt, err
		}

		if p.Backoff > 0 {
			timer := time.NewTimer(p.Backoff * time.Duration(attempt))
			select {
			case <-ctx.Done():
				timer.Stop()
				return attempt, ctx.Err()
			case <-timer.C:
			}
		} else if ctx.Err() != nil {
			return attempt, ctx.Err()
		}
	}
	return attempts, err
}
