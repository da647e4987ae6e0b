package api

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// Stream performs an authenticated GET and returns the raw response body
// for the caller to consume, along with the Content-Length (-1 when the
// backend does not send one). The breaker applies; the retry loop does
// not, since a partially consumed stream cannot be replayed. A 401 gets
// the same single refresh-and-replay as Do.
func (c *Client) Stream(ctx context.Context, path string) (io.ReadCloser, int64, error) {
	endpoint := http.MethodGet + " " + path
	br := c.breakers.get(endpoint)
	reqID := uuid.NewString()
	refreshed := false

	for {
		if err := br.Allow(); err != nil {
			return nil, 0, fmt.Errorf("GET %s: %w", path, err)
		}

		body, length, err := c.streamOnce(ctx, path, reqID)
		if err == nil {
			br.Success()
			return body, length, nil
		}

		br.Settle(err)

		if !refreshed && c.tokens != nil && IsAuthError(err) {
			refreshed = true
			if _, rerr := c.tokens.Refresh(ctx); rerr == nil {
				continue
			}
			return nil, 0, err
		}
		return nil, 0, err
	}
}

func (c *Client) streamOnce(ctx context.Context, path, reqID string) (io.ReadCloser, int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("creating request for %s: %w", path, err)
	}
	req.Header.Set("X-Request-ID", reqID)
	if c.tokens == nil {
		return nil, 0, ErrNotAuthenticated
	}
	tok, err := c.tokens.Token(ctx)
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("Authorization", "Bearer "+tok)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("GET %s: %w", path, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		defer resp.Body.Close()
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
		return nil, 0, newAPIError(resp, respBody)
	}

	return resp.Body, resp.ContentLength, nil
}

// HealthStatus is the backend's /api/health response.
type HealthStatus struct {
	Status  string    `json:"status"`
	Version string    `json:"version,omitempty"`
	Time    time.Time `json:"time,omitempty"`
}

// Health checks backend availability. It is unauthenticated and uses the
// same breaker and retry machinery as every other call.
func (c *Client) Health(ctx context.Context) (*HealthStatus, error) {
	var out HealthStatus
	if err := c.DoPublic(ctx, http.MethodGet, "/api/health", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
