package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"
)

// ErrCircuitOpen is returned without any network I/O when the circuit
// breaker for an endpoint is open.
var ErrCircuitOpen = errors.New("circuit breaker open")

// ErrNotAuthenticated is returned when an authenticated call is attempted
// without a stored session.
var ErrNotAuthenticated = errors.New("not authenticated")

// APIError is a non-2xx response from the backend.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
	RequestID  string
	RetryAfter time.Duration // populated from Retry-After on 429 responses
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("api error %d (%s): %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("api error %d: %s", e.StatusCode, e.Message)
}

// apiErrorBody is the JSON error envelope the backend returns.
type apiErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Error   string `json:"error"` // some endpoints use a bare error string
}

// IsAuthError reports whether err is a 401 response.
func IsAuthError(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusUnauthorized
}

// IsRateLimited reports whether err is a 429 response.
func IsRateLimited(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusTooManyRequests
}

// IsRetryable reports whether err is worth retrying: 5xx responses, 429s,
// timeouts and other transport-level failures. Client errors (4xx other
// than 429), context cancellation and an open breaker are not retryable.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrCircuitOpen) {
		return false
	}

	// A per-request timeout wraps context.DeadlineExceeded, so the
	// timeout check must run before the context sentinels. Expiry of the
	// caller's own context is caught between attempts instead.
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode >= 500 || apiErr.StatusCode == http.StatusTooManyRequests
	}

	// Transport-level failures (connection refused, reset, DNS).
	if errors.As(err, &netErr) {
		return true
	}
	var opErr *net.OpError
	return errors.As(err, &opErr)
}
