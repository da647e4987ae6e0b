package api

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"
)

func TestBreakerOpensAtThreshold(t *testing.T) {
	b := NewBreaker(3, time.Minute)

	for i := 0; i < 2; i++ {
		if err := b.Allow(); err != nil {
			t.Fatalf("Allow() before threshold: %v", err)
		}
		b.Failure()
	}
	if b.State() != StateClosed {
		t.Fatalf("expected closed after 2 failures, got %s", b.State())
	}

	if err := b.Allow(); err != nil {
		t.Fatalf("Allow(): %v", err)
	}
	b.Failure()

	if b.State() != StateOpen {
		t.Fatalf("expected open after 3 failures, got %s", b.State())
	}
	if err := b.Allow(); !errors.Is(err, ErrCircuitOpen) {
		t.Errorf("expected ErrCircuitOpen while open, got %v", err)
	}
}

func TestBreakerSuccessResetsFailureCount(t *testing.T) {
	b := NewBreaker(2, time.Minute)

	b.Failure()
	b.Success()
	b.Failure()

	if b.State() != StateClosed {
		t.Errorf("expected closed, got %s", b.State())
	}
}

func TestBreakerHalfOpenProbe(t *testing.T) {
	now := time.Now()
	b := NewBreaker(1, 30*time.Second)
	b.now = func() time.Time { return now }

	b.Failure()
	if b.State() != StateOpen {
		t.Fatalf("expected open, got %s", b.State())
	}

	// Before the reset timeout: fail fast.
	now = now.Add(29 * time.Second)
	if err := b.Allow(); !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("expected ErrCircuitOpen before reset timeout, got %v", err)
	}

	// After the reset timeout: exactly one probe admitted.
	now = now.Add(2 * time.Second)
	if err := b.Allow(); err != nil {
		t.Fatalf("expected probe admitted, got %v", err)
	}
	if b.State() != StateHalfOpen {
		t.Fatalf("expected half-open, got %s", b.State())
	}
	if err := b.Allow(); !errors.Is(err, ErrCircuitOpen) {
		t.Errorf("expected concurrent probe rejected, got %v", err)
	}
}

func TestBreakerProbeSuccessCloses(t *testing.T) {
	now := time.Now()
	b := NewBreaker(1, time.Second)
	b.now = func() time.Time { return now }

	b.Failure()
	now = now.Add(2 * time.Second)
	if err := b.Allow(); err != nil {
		t.Fatalf("probe not admitted: %v", err)
	}
	b.Success()

	if b.State() != StateClosed {
		t.Errorf("expected closed after successful probe, got %s", b.State())
	}
	if err := b.Allow(); err != nil {
		t.Errorf("expected calls allowed after close, got %v", err)
	}
}

func TestBreakerProbeFailureReopens(t *testing.T) {
	now := time.Now()
	b := NewBreaker(1, time.Second)
	b.now = func() time.Time { return now }

	b.Failure()
	now = now.Add(2 * time.Second)
	if err := b.Allow(); err != nil {
		t.Fatalf("probe not admitted: %v", err)
	}
	b.Failure()

	if b.State() != StateOpen {
		t.Fatalf("expected re-opened after failed probe, got %s", b.State())
	}
	// The reopen timestamp is fresh: still failing fast just before the
	// new reset deadline.
	now = now.Add(900 * time.Millisecond)
	if err := b.Allow(); !errors.Is(err, ErrCircuitOpen) {
		t.Errorf("expected ErrCircuitOpen after re-open, got %v", err)
	}
}

func TestBreakerReleaseAllowsAnotherProbe(t *testing.T) {
	now := time.Now()
	b := NewBreaker(1, time.Second)
	b.now = func() time.Time { return now }

	b.Failure()
	now = now.Add(2 * time.Second)
	if err := b.Allow(); err != nil {
		t.Fatalf("probe not admitted: %v", err)
	}

	// The probe ends without a verdict, e.g. the caller cancelled.
	b.Release()

	if err := b.Allow(); err != nil {
		t.Errorf("expected a new probe admitted after Release, got %v", err)
	}
}

func TestBreakerSettleOutcomes(t *testing.T) {
	now := time.Now()
	newHalfOpen := func() *Breaker {
		b := NewBreaker(1, time.Second)
		b.now = func() time.Time { return now }
		b.Failure()
		now = now.Add(2 * time.Second)
		if err := b.Allow(); err != nil {
			t.Fatalf("probe not admitted: %v", err)
		}
		return b
	}

	// A 4xx answer means the service is up: the probe closes the breaker.
	b := newHalfOpen()
	b.Settle(&APIError{StatusCode: http.StatusBadRequest})
	if b.State() != StateClosed {
		t.Errorf("4xx probe: expected closed, got %s", b.State())
	}

	// A 5xx answer re-opens.
	b = newHalfOpen()
	b.Settle(&APIError{StatusCode: http.StatusServiceUnavailable})
	if b.State() != StateOpen {
		t.Errorf("5xx probe: expected open, got %s", b.State())
	}

	// Cancellation decides nothing but frees the probe slot.
	b = newHalfOpen()
	b.Settle(context.Canceled)
	if b.State() != StateHalfOpen {
		t.Errorf("cancelled probe: expected half-open, got %s", b.State())
	}
	if err := b.Allow(); err != nil {
		t.Errorf("expected next probe admitted, got %v", err)
	}

	// nil settles as success.
	b = newHalfOpen()
	b.Settle(nil)
	if b.State() != StateClosed {
		t.Errorf("successful probe: expected closed, got %s", b.State())
	}
}

func TestBreakerSetIsPerEndpoint(t *testing.T) {
	s := newBreakerSet(1, time.Minute)

	s.get("GET /api/health").Failure()

	if st := s.get("GET /api/health").State(); st != StateOpen {
		t.Errorf("expected open for tripped endpoint, got %s", st)
	}
	if st := s.get("GET /api/user/profile").State(); st != StateClosed {
		t.Errorf("expected independent endpoint closed, got %s", st)
	}

	states := s.States()
	if len(states) != 2 {
		t.Errorf("expected 2 tracked endpoints, got %d", len(states))
	}
}
