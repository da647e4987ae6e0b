package api

import (
	"errors"
	"math/rand"
	"time"
)

// RetryPolicy computes backoff delays for failed API calls.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	// Jitter disables the random delay component when false (tests).
	Jitter bool
}

// DefaultRetryPolicy matches the client defaults: 3 attempts, 500ms base,
// 8s cap, jittered.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 3, BaseDelay: 500 * time.Millisecond, MaxDelay: 8 * time.Second, Jitter: true}
}

// Delay returns the backoff delay before retry number attempt (1-based:
// attempt 1 is the delay after the first failure). The delay doubles each
// attempt, capped at MaxDelay, with up to 25% additive jitter.
func (p RetryPolicy) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	d := p.BaseDelay << (attempt - 1)
	if d > p.MaxDelay || d <= 0 {
		d = p.MaxDelay
	}
	if p.Jitter && d > 0 {
		d += time.Duration(rand.Int63n(int64(d)/4 + 1))
		if d > p.MaxDelay {
			d = p.MaxDelay
		}
	}
	return d
}

// Backoff decides whether the call should be retried after the given
// failure, and with what delay. attempt is the number of attempts already
// made. A 429 with a server-provided Retry-After overrides the computed
// backoff.
func (p RetryPolicy) Backoff(attempt int, err error) (time.Duration, bool) {
	if attempt >= p.MaxAttempts {
		return 0, false
	}
	if !IsRetryable(err) {
		return 0, false
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.RetryAfter > 0 {
		return apiErr.RetryAfter, true
	}

	return p.Delay(attempt), true
}
