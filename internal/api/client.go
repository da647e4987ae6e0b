package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// TokenSource supplies bearer tokens for authenticated calls. Refresh is
// invoked by the client when the backend answers 401; implementations must
// coalesce concurrent refreshes so only one refresh request is in flight.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
	Refresh(ctx context.Context) (string, error)
}

// CallRecord describes the final outcome of one API call, including all
// retry attempts.
type CallRecord struct {
	RequestID string
	Method    string
	Endpoint  string
	Status    int
	Outcome   string // "ok", "error" or "circuit_open"
	Attempts  int
	Latency   time.Duration
}

// RecordFunc receives call records. It must not block; recording failures
// never affect the call itself.
type RecordFunc func(CallRecord)

// Config holds client construction options.
type Config struct {
	BaseURL          string
	HTTPClient       *http.Client // optional; defaults to a 30s-timeout client
	Retry            RetryPolicy
	FailureThreshold int
	ResetTimeout     time.Duration
	Record           RecordFunc // optional call-history hook
}

// Client is a resilient HTTP client for the Oriel backend. Every call goes
// through a per-endpoint circuit breaker and an exponential-backoff retry
// loop; authenticated calls that hit a 401 trigger one token refresh and a
// single replay of the original request.
type Client struct {
	baseURL  string
	http     *http.Client
	retry    RetryPolicy
	breakers *breakerSet
	tokens   TokenSource
	record   RecordFunc
}

// New creates a client for the given backend.
func New(cfg Config) *Client {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	retry := cfg.Retry
	if retry.MaxAttempts == 0 {
		retry = DefaultRetryPolicy()
	}
	threshold := cfg.FailureThreshold
	if threshold == 0 {
		threshold = 5
	}
	reset := cfg.ResetTimeout
	if reset == 0 {
		reset = 30 * time.Second
	}
	return &Client{
		baseURL:  strings.TrimRight(cfg.BaseURL, "/"),
		http:     httpClient,
		retry:    retry,
		breakers: newBreakerSet(threshold, reset),
		record:   cfg.Record,
	}
}

// SetTokenSource attaches the token source. It is set after construction
// because the session manager needs the client to perform its own calls.
func (c *Client) SetTokenSource(ts TokenSource) { c.tokens = ts }

// BaseURL returns the configured backend base URL.
func (c *Client) BaseURL() string { return c.baseURL }

// BreakerStates returns the current breaker state per endpoint.
func (c *Client) BreakerStates() map[string]BreakerState { return c.breakers.States() }

// Do performs an authenticated JSON call. body (if non-nil) is marshalled
// as the request payload; out (if non-nil) receives the decoded response.
func (c *Client) Do(ctx context.Context, method, path string, body, out any) error {
	return c.call(ctx, method, path, body, out, true)
}

// DoPublic performs an unauthenticated JSON call. Used for health checks
// and the auth endpoints themselves, so a refresh can never recurse.
func (c *Client) DoPublic(ctx context.Context, method, path string, body, out any) error {
	return c.call(ctx, method, path, body, out, false)
}

func (c *Client) call(ctx context.Context, method, path string, body, out any, authed bool) error {
	endpoint := method + " " + path
	br := c.breakers.get(endpoint)

	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshalling request for %s: %w", path, err)
		}
	}

	reqID := uuid.NewString()
	start := time.Now()
	attempts := 0
	refreshed := false

	finish := func(status int, outcome string) {
		if c.record != nil {
			c.record(CallRecord{
				RequestID: reqID,
				Method:    method,
				Endpoint:  path,
				Status:    status,
				Outcome:   outcome,
				Attempts:  attempts,
				Latency:   time.Since(start),
			})
		}
	}

	for {
		if err := br.Allow(); err != nil {
			finish(0, "circuit_open")
			return fmt.Errorf("%s %s: %w", method, path, err)
		}

		attempts++
		status, err := c.once(ctx, method, path, payload, out, authed, reqID)
		if err == nil {
			br.Success()
			finish(status, "ok")
			return nil
		}

		// Every outcome settles the breaker, so a half-open probe is
		// never left dangling. A 4xx counts as success: the service
		// answered.
		br.Settle(err)

		// One refresh-and-replay on 401. The refresh call itself goes
		// through DoPublic, so it cannot loop.
		if authed && !refreshed && c.tokens != nil && IsAuthError(err) {
			refreshed = true
			if _, rerr := c.tokens.Refresh(ctx); rerr == nil {
				continue
			}
			finish(status, "error")
			return err
		}

		delay, ok := c.retry.Backoff(attempts, err)
		if !ok {
			finish(status, "error")
			return err
		}

		select {
		case <-ctx.Done():
			finish(status, "error")
			return ctx.Err()
		case <-time.After(delay):
		}
	}
}

// once performs a single HTTP exchange.
func (c *Client) once(ctx context.Context, method, path string, payload []byte, out any, authed bool, reqID string) (int, error) {
	var rdr io.Reader
	if payload != nil {
		rdr = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rdr)
	if err != nil {
		return 0, fmt.Errorf("creating request for %s: %w", path, err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", reqID)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if authed {
		if c.tokens == nil {
			return 0, ErrNotAuthenticated
		}
		tok, err := c.tokens.Token(ctx)
		if err != nil {
			return 0, err
		}
		req.Header.Set("Authorization", "Bearer "+tok)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, fmt.Errorf("reading response from %s: %w", path, err)
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		if out != nil && len(respBody) > 0 {
			if err := json.Unmarshal(respBody, out); err != nil {
				return resp.StatusCode, fmt.Errorf("unmarshalling response from %s: %w", path, err)
			}
		}
		return resp.StatusCode, nil
	}

	return resp.StatusCode, newAPIError(resp, respBody)
}

// newAPIError builds an APIError from a non-2xx response, decoding the
// backend's error envelope when present.
func newAPIError(resp *http.Response, body []byte) *APIError {
	apiErr := &APIError{
		StatusCode: resp.StatusCode,
		RequestID:  resp.Header.Get("X-Request-ID"),
	}

	var envelope apiErrorBody
	if err := json.Unmarshal(body, &envelope); err == nil {
		apiErr.Code = envelope.Code
		apiErr.Message = envelope.Message
		if apiErr.Message == "" {
			apiErr.Message = envelope.Error
		}
	}
	if apiErr.Message == "" {
		apiErr.Message = strings.TrimSpace(string(body))
	}
	if apiErr.Message == "" {
		apiErr.Message = http.StatusText(resp.StatusCode)
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		apiErr.RetryAfter = parseRetryAfter(resp.Header.Get("Retry-After"))
	}

	return apiErr
}

// parseRetryAfter handles both delta-seconds and HTTP-date forms.
func parseRetryAfter(v string) time.Duration {
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil {
		if secs < 0 {
			return 0
		}
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(v); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}
	return 0
}
