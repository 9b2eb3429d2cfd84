package ai

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"net/http"
	"time"
)

type retryPolicy struct {
	maxRetries int
	base       time.Duration
}

// retryableError is a transient HTTP failure.
type retryableError struct {
	statusCode int
	body       string
}

func (e *retryableError) Error() string {
	return fmt.Sprintf("status %d: %s", e.statusCode, e.body)
}

// doWithRetry retries network errors, 5xx and 429 with quadratic backoff plus
// jitter. Other statuses are returned to the caller untouched.
func doWithRetry(ctx context.Context, client *http.Client, buildReq func() (*http.Request, error), policy retryPolicy, logger *slog.Logger) (*http.Response, error) {
	var lastErr error

	for attempt := 0; attempt <= policy.maxRetries; attempt++ {
		if attempt > 0 {
			base := time.Duration(attempt*attempt) * policy.base
			jitter := time.Duration(rand.Int63n(int64(base/2 + 1)))
			backoff := base + jitter
			logger.Warn("retrying llm request", "attempt", attempt+1, "backoff", backoff)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
		}

		req, err := buildReq()
		if err != nil {
			return nil, fmt.Errorf("build request failed: %w", err)
		}

		resp, err := client.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			lastErr = err
			logger.Warn("llm request failed", "attempt", attempt+1, "error", err)
			continue
		}

		if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
			body, _ := io.ReadAll(resp.Body)
			resp.Body.Close()
			lastErr = &retryableError{statusCode: resp.StatusCode, body: string(body)}
			logger.Warn("llm server error", "attempt", attempt+1, "status", resp.StatusCode)
			continue
		}

		return resp, nil
	}

	return nil, fmt.Errorf("gave up after %d retries: %w", policy.maxRetries, lastErr)
}
