// Package httpx provides shared HTTP plumbing for vendor API clients:
// per-request timeouts, typed status errors, and response body handling
// that never leaks credentials into logs.
package httpx

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/donorbridge/donorbridge/internal/redact"
)

// DefaultTimeout bounds every externally-bound HTTP call.
const DefaultTimeout = 30 * time.Second

// maxErrorBody caps how much of a vendor error body is kept for diagnostics.
const maxErrorBody = 512

// TimeoutError indicates a request exceeded its deadline. Timeouts are
// always retryable.
type TimeoutError struct {
	// Op describes the request that timed out.
	Op string

	// Timeout is the deadline that was exceeded.
	Timeout time.Duration
}

// Error implements the error interface.
func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s: timeout after %s", e.Op, e.Timeout)
}

// Retryable reports that timeouts may be retried.
func (e *TimeoutError) Retryable() bool { return true }

// StatusError indicates a non-2xx vendor response. The body is sanitized
// and truncated at construction so it is always safe to log.
type StatusError struct {
	// Body is the sanitized, truncated response body.
	Body string

	// Status is the HTTP status code.
	Status int
}

// Error implements the error interface.
func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("unexpected status %d", e.Status)
	}
	return fmt.Sprintf("unexpected status %d: %s", e.Status, e.Body)
}

// Retryable reports whether the status indicates a transient condition:
// rate limiting (429) or upstream unavailability (502, 503, 504).
func (e *StatusError) Retryable() bool {
	switch e.Status {
	case http.StatusTooManyRequests,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	default:
		return false
	}
}

// Do executes req with an explicit timeout, converting deadline expiry into
// a typed TimeoutError. A non-positive timeout uses DefaultTimeout.
func Do(ctx context.Context, client *http.Client, req *http.Request, timeout time.Duration) (*http.Response, error) {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	resp, err := client.Do(req.WithContext(reqCtx))
	if err != nil {
		cancel()
		if errors.Is(reqCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			return nil, &TimeoutError{
				Op:      fmt.Sprintf("%s %s", req.Method, req.URL.Redacted()),
				Timeout: timeout,
			}
		}
		return nil, fmt.Errorf("executing request: %w", err)
	}

	// Tie the cancel to body closure so the response stays readable.
	resp.Body = &cancelOnClose{ReadCloser: resp.Body, cancel: cancel}
	return resp, nil
}

// CheckStatus returns a StatusError when the response status is outside the
// 2xx range, draining and sanitizing the body for diagnostics.
func CheckStatus(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	return &StatusError{
		Body:   redact.String(string(body)),
		Status: resp.StatusCode,
	}
}

// cancelOnClose releases the request's timeout context when the body is
// closed.
type cancelOnClose struct {
	io.ReadCloser
	cancel context.CancelFunc
}

// Close closes the body and releases the timeout context.
func (c *cancelOnClose) Close() error {
	err := c.ReadCloser.Close()
	c.cancel()
	return err
}
