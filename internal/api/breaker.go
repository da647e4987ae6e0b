package api

import (
	"errors"
	"sync"
	"time"
)

// BreakerState is the current state of a circuit breaker.
type BreakerState string

const (
	StateClosed   BreakerState = "closed"
	StateOpen     BreakerState = "open"
	StateHalfOpen BreakerState = "half-open"
)

// Breaker is a circuit breaker for a single endpoint. It opens after
// FailureThreshold consecutive failures, fails fast while open, and after
// ResetTimeout admits a single probe call (half-open). A successful probe
// closes the breaker; a failed probe re-opens it.
type Breaker struct {
	mu        sync.Mutex
	threshold int
	reset     time.Duration

	state    BreakerState
	failures int
	openedAt time.Time
	probing  bool

	now func() time.Time // overridable in tests
}

// NewBreaker creates a closed breaker.
func NewBreaker(threshold int, reset time.Duration) *Breaker {
	return &Breaker{
		threshold: threshold,
		reset:     reset,
		state:     StateClosed,
		now:       time.Now,
	}
}

// Allow reports whether a call may proceed. While open it returns
// ErrCircuitOpen until the reset timeout elapses, then admits exactly one
// probe; concurrent calls during the probe are rejected.
func (b *Breaker) Allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateClosed:
		return nil
	case StateOpen:
		if b.now().Sub(b.openedAt) < b.reset {
			return ErrCircuitOpen
		}
		b.state = StateHalfOpen
		b.probing = true
		return nil
	default: // half-open
		if b.probing {
			return ErrCircuitOpen
		}
		b.probing = true
		return nil
	}
}

// Success records a successful call, closing the breaker and clearing the
// failure count.
func (b *Breaker) Success() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state = StateClosed
	b.failures = 0
	b.probing = false
}

// Failure records a failed call. A failure in half-open re-opens
// immediately; in closed, the breaker opens once the threshold is reached.
func (b *Breaker) Failure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == StateHalfOpen {
		b.open()
		return
	}

	b.failures++
	if b.failures >= b.threshold {
		b.open()
	}
}

// Release abandons an admitted probe without a verdict, so a later call
// may probe again. Used when a call ends without reaching the service,
// for example on context cancellation.
func (b *Breaker) Release() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.probing = false
}

// Settle records the outcome of a finished call. Any response from the
// service, even an error status below 500, proves it is up and counts as
// success; outage-shaped failures count against the threshold; everything
// else releases an admitted probe without deciding.
func (b *Breaker) Settle(err error) {
	var apiErr *APIError
	switch {
	case err == nil:
		b.Success()
	case errors.As(err, &apiErr) && apiErr.StatusCode < 500:
		b.Success()
	case IsRetryable(err):
		b.Failure()
	default:
		b.Release()
	}
}

func (b *Breaker) open() {
	b.state = StateOpen
	b.openedAt = b.now()
	b.failures = 0
	b.probing = false
}

// State returns the current state.
func (b *Breaker) State() BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// breakerSet holds one breaker per endpoint.
type breakerSet struct {
	mu        sync.Mutex
	threshold int
	reset     time.Duration
	breakers  map[string]*Breaker
}

func newBreakerSet(threshold int, reset time.Duration) *breakerSet {
	return &breakerSet{
		threshold: threshold,
		reset:     reset,
		breakers:  make(map[string]*Breaker),
	}
}

func (s *breakerSet) get(endpoint string) *Breaker {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.breakers[endpoint]
	if !ok {
		b = NewBreaker(s.threshold, s.reset)
		s.breakers[endpoint] = b
	}
	return b
}

// States returns a snapshot of all known endpoint breaker states.
func (s *breakerSet) States() map[string]BreakerState {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]BreakerState, len(s.breakers))
	for ep, b := range s.breakers {
		out[ep] = b.State()
	}
	return out
}
