package fetcher

import (
	"context"
	"errors"
	"math"
	"net/http"
	"time"
)

// RetryPolicy bounds how a failed feed fetch is retried.
type RetryPolicy struct {
	// MaxRetries is the number of attempts after the first one.
	MaxRetries int
	// BaseDelay is the pause before the first retry.
	BaseDelay time.Duration
	// Multiplier grows the pause for every further retry.
	Multiplier float64
	// NonRetryable lists HTTP statuses that end the attempt loop immediately.
	NonRetryable map[int]bool
}

// DefaultRetryPolicy retries once after 500ms and gives up at once on
// 401, 403 and 404.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries: 1,
		BaseDelay:  500 * time.Millisecond,
		Multiplier: 2,
		NonRetryable: map[int]bool{
			http.StatusUnauthorized: true,
			http.StatusForbidden:    true,
			http.StatusNotFound:     true,
		},
	}
}

// Delay returns the pause before retry n (1-based).
func (p RetryPolicy) Delay(n int) time.Duration {
	if n < 1 || p.BaseDelay <= 0 {
		return 0
	}
	mult := p.Multiplier
	if mult < 1 {
		mult = 1
	}
	return time.Duration(float64(p.BaseDelay) * math.Pow(mult, float64(n-1)))
}

// Retryable reports whether err is worth another attempt.
func (p RetryPolicy) Retryable(err error) bool {
	if err == nil || errors.Is(err, ErrNoItems) || errors.Is(err, ErrTooLarge) {
		return false
	}
	var se *StatusError
	if errors.As(err, &se) {
		return !p.NonRetryable[se.Code]
	}
	return true
}

func (p RetryPolicy) wait(ctx context.Context, n int) error {
	d := p.Delay(n)
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
