package api

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// fakeTokens is a TokenSource with a swappable token.
type fakeTokens struct {
	mu         sync.Mutex
	token      string
	refreshed  int
	refreshErr error
}

func (f *fakeTokens) Token(ctx context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.token, nil
}

func (f *fakeTokens) Refresh(ctx context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.refreshed++
	if f.refreshErr != nil {
		return "", f.refreshErr
	}
	f.token = "fresh-token"
	return f.token, nil
}

func testClient(baseURL string, maxAttempts int) *Client {
	return New(Config{
		BaseURL: baseURL,
		Retry: RetryPolicy{
			MaxAttempts: maxAttempts,
			BaseDelay:   time.Millisecond,
			MaxDelay:    10 * time.Millisecond,
		},
		FailureThreshold: 100,
		ResetTimeout:     time.Minute,
	})
}

func TestDoDecodesResponse(t *testing.T) {
	var gotReqID, gotAccept string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotReqID = r.Header.Get("X-Request-ID")
		gotAccept = r.Header.Get("Accept")
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"status":"ok","version":"1.2.3"}`)
	}))
	defer srv.Close()

	c := testClient(srv.URL, 1)
	var out HealthStatus
	if err := c.DoPublic(context.Background(), http.MethodGet, "/api/health", nil, &out); err != nil {
		t.Fatalf("DoPublic: %v", err)
	}

	if out.Status != "ok" || out.Version != "1.2.3" {
		t.Errorf("unexpected response: %+v", out)
	}
	if gotReqID == "" {
		t.Error("expected X-Request-ID header")
	}
	if gotAccept != "application/json" {
		t.Errorf("expected Accept application/json, got %q", gotAccept)
	}
}

func TestDoRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) <= 2 {
			http.Error(w, "boom", http.StatusInternalServerError)
			return
		}
		io.WriteString(w, `{"status":"ok"}`)
	}))
	defer srv.Close()

	c := testClient(srv.URL, 3)
	var out HealthStatus
	if err := c.DoPublic(context.Background(), http.MethodGet, "/api/health", nil, &out); err != nil {
		t.Fatalf("expected success after retries, got %v", err)
	}
	if calls.Load() != 3 {
		t.Errorf("expected 3 attempts, got %d", calls.Load())
	}
}

func TestDoDoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		io.WriteString(w, `{"code":"invalid_email","message":"a valid email is required"}`)
	}))
	defer srv.Close()

	c := testClient(srv.URL, 5)
	err := c.DoPublic(context.Background(), http.MethodPost, "/api/auth/register", map[string]string{}, nil)
	if err == nil {
		t.Fatal("expected error")
	}

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *APIError, got %T", err)
	}
	if apiErr.StatusCode != http.StatusBadRequest || apiErr.Code != "invalid_email" {
		t.Errorf("unexpected error contents: %+v", apiErr)
	}
	if calls.Load() != 1 {
		t.Errorf("expected 1 attempt, got %d", calls.Load())
	}
}

func TestDoRefreshesOn401(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		if r.Header.Get("Authorization") != "Bearer fresh-token" {
			w.WriteHeader(http.StatusUnauthorized)
			io.WriteString(w, `{"code":"invalid_token","message":"expired"}`)
			return
		}
		io.WriteString(w, `{"id":"u1"}`)
	}))
	defer srv.Close()

	c := testClient(srv.URL, 1)
	tokens := &fakeTokens{token: "stale-token"}
	c.SetTokenSource(tokens)

	var out struct {
		ID string `json:"id"`
	}
	if err := c.Do(context.Background(), http.MethodGet, "/api/user/profile", nil, &out); err != nil {
		t.Fatalf("expected refresh-and-replay to succeed, got %v", err)
	}

	if tokens.refreshed != 1 {
		t.Errorf("expected 1 refresh, got %d", tokens.refreshed)
	}
	if calls.Load() != 2 {
		t.Errorf("expected 2 requests (401 then replay), got %d", calls.Load())
	}
	if out.ID != "u1" {
		t.Errorf("unexpected response: %+v", out)
	}
}

func TestDoRefreshFailureSurfacesAuthError(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := testClient(srv.URL, 3)
	tokens := &fakeTokens{token: "stale", refreshErr: errors.New("refresh rejected")}
	c.SetTokenSource(tokens)

	err := c.Do(context.Background(), http.MethodGet, "/api/user/profile", nil, nil)
	if !IsAuthError(err) {
		t.Fatalf("expected auth error, got %v", err)
	}
	if tokens.refreshed != 1 {
		t.Errorf("expected 1 refresh attempt, got %d", tokens.refreshed)
	}
	if calls.Load() != 1 {
		t.Errorf("expected no replay after failed refresh, got %d requests", calls.Load())
	}
}

func TestDoFailsFastWhenBreakerOpen(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "down", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	var records []CallRecord
	c := New(Config{
		BaseURL:          srv.URL,
		Retry:            RetryPolicy{MaxAttempts: 1, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond},
		FailureThreshold: 2,
		ResetTimeout:     time.Minute,
		Record:           func(rec CallRecord) { records = append(records, rec) },
	})

	ctx := context.Background()
	for i := 0; i < 2; i++ {
		if err := c.DoPublic(ctx, http.MethodGet, "/api/health", nil, nil); err == nil {
			t.Fatal("expected failure")
		}
	}

	err := c.DoPublic(ctx, http.MethodGet, "/api/health", nil, nil)
	if !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("expected ErrCircuitOpen, got %v", err)
	}
	if calls.Load() != 2 {
		t.Errorf("expected fail-fast without network I/O, server saw %d requests", calls.Load())
	}

	last := records[len(records)-1]
	if last.Outcome != "circuit_open" {
		t.Errorf("expected circuit_open record, got %q", last.Outcome)
	}
	if st := c.BreakerStates()["GET /api/health"]; st != StateOpen {
		t.Errorf("expected open breaker, got %s", st)
	}
}

func TestBreakerRecoversAfter4xxProbe(t *testing.T) {
	var calls atomic.Int32
	var mode atomic.Int32 // 0: 503, 1: 400, 2: ok
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		switch mode.Load() {
		case 0:
			http.Error(w, "down", http.StatusServiceUnavailable)
		case 1:
			w.WriteHeader(http.StatusBadRequest)
			io.WriteString(w, `{"code":"invalid_request","message":"bad"}`)
		default:
			io.WriteString(w, `{"status":"ok"}`)
		}
	}))
	defer srv.Close()

	c := New(Config{
		BaseURL:          srv.URL,
		Retry:            RetryPolicy{MaxAttempts: 1, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond},
		FailureThreshold: 1,
		ResetTimeout:     50 * time.Millisecond,
	})
	ctx := context.Background()

	if err := c.DoPublic(ctx, http.MethodGet, "/api/health", nil, nil); err == nil {
		t.Fatal("expected 503 failure")
	}
	if st := c.BreakerStates()["GET /api/health"]; st != StateOpen {
		t.Fatalf("expected open breaker, got %s", st)
	}

	// The probe after the reset timeout is answered with a 4xx. The
	// service is up, so the breaker must close rather than stay wedged.
	mode.Store(1)
	time.Sleep(60 * time.Millisecond)
	err := c.DoPublic(ctx, http.MethodGet, "/api/health", nil, nil)
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 from probe, got %v", err)
	}
	if st := c.BreakerStates()["GET /api/health"]; st != StateClosed {
		t.Fatalf("expected closed breaker after answered probe, got %s", st)
	}

	mode.Store(2)
	before := calls.Load()
	if err := c.DoPublic(ctx, http.MethodGet, "/api/health", nil, nil); err != nil {
		t.Fatalf("expected success after recovery, got %v", err)
	}
	if calls.Load() != before+1 {
		t.Error("expected the recovered call to reach the server")
	}
}

func TestDoRetriesRequestTimeouts(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			time.Sleep(300 * time.Millisecond)
		}
		io.WriteString(w, `{"status":"ok"}`)
	}))
	defer srv.Close()

	c := New(Config{
		BaseURL:          srv.URL,
		HTTPClient:       &http.Client{Timeout: 50 * time.Millisecond},
		Retry:            RetryPolicy{MaxAttempts: 2, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond},
		FailureThreshold: 100,
		ResetTimeout:     time.Minute,
	})

	if err := c.DoPublic(context.Background(), http.MethodGet, "/api/health", nil, nil); err != nil {
		t.Fatalf("expected retry after request timeout, got %v", err)
	}
	if calls.Load() != 2 {
		t.Errorf("expected 2 attempts, got %d", calls.Load())
	}
}

func TestDoRetriesRateLimitWithoutTrippingBreaker(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.Header().Set("Retry-After", "0")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		io.WriteString(w, `{"status":"ok"}`)
	}))
	defer srv.Close()

	c := New(Config{
		BaseURL:          srv.URL,
		Retry:            RetryPolicy{MaxAttempts: 2, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond},
		FailureThreshold: 1,
		ResetTimeout:     time.Minute,
	})

	if err := c.DoPublic(context.Background(), http.MethodGet, "/api/health", nil, nil); err != nil {
		t.Fatalf("expected success after rate-limit retry, got %v", err)
	}
	if calls.Load() != 2 {
		t.Errorf("expected 2 attempts, got %d", calls.Load())
	}
	if st := c.BreakerStates()["GET /api/health"]; st != StateClosed {
		t.Errorf("429 must not trip the breaker, got %s", st)
	}
}

func TestDoWithoutTokenSource(t *testing.T) {
	c := testClient("http://127.0.0.1:0", 1)
	err := c.Do(context.Background(), http.MethodGet, "/api/user/profile", nil, nil)
	if !errors.Is(err, ErrNotAuthenticated) {
		t.Errorf("expected ErrNotAuthenticated, got %v", err)
	}
}

func TestRecordHookCapturesOutcome(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"status":"ok"}`)
	}))
	defer srv.Close()

	var rec CallRecord
	c := New(Config{
		BaseURL: srv.URL,
		Record:  func(r CallRecord) { rec = r },
	})

	if err := c.DoPublic(context.Background(), http.MethodGet, "/api/health", nil, nil); err != nil {
		t.Fatalf("DoPublic: %v", err)
	}

	if rec.Method != http.MethodGet || rec.Endpoint != "/api/health" {
		t.Errorf("unexpected record: %+v", rec)
	}
	if rec.Status != http.StatusOK || rec.Outcome != "ok" || rec.Attempts != 1 {
		t.Errorf("unexpected record: %+v", rec)
	}
	if rec.RequestID == "" {
		t.Error("expected request ID in record")
	}
}

func TestStreamReturnsBodyAndLength(t *testing.T) {
	payload := `{"user":{"id":"u1"}}`
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer tok" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Length", "20")
		io.WriteString(w, payload)
	}))
	defer srv.Close()

	c := testClient(srv.URL, 1)
	c.SetTokenSource(&fakeTokens{token: "tok"})

	body, length, err := c.Stream(context.Background(), "/api/user/export-data")
	if err != nil {
		t.Fatalf("Stream: %v", err)
	}
	defer body.Close()

	data, err := io.ReadAll(body)
	if err != nil {
		t.Fatalf("reading stream: %v", err)
	}
	if string(data) != payload {
		t.Errorf("unexpected body %q", data)
	}
	if length != int64(len(payload)) {
		t.Errorf("expected length %d, got %d", len(payload), length)
	}
}
