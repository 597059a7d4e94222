// Package retry wraps single vendor API calls with bounded retries,
// exponential backoff, and jitter.
package retry

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"math/rand"
	"net"
	"strings"
	"time"

	"github.com/donorbridge/donorbridge/internal/metrics"
	"github.com/donorbridge/donorbridge/internal/redact"
)

const (
	// DefaultInitialDelay is the base backoff delay.
	DefaultInitialDelay = time.Second

	// DefaultMaxDelay caps backoff growth.
	DefaultMaxDelay = 30 * time.Second

	// DefaultMaxRetries is the number of additional attempts beyond the first.
	DefaultMaxRetries = 3

	// NoRetries disables retries entirely: the first attempt is the only
	// attempt. A zero MaxRetries means "use the default", so callers that
	// want zero retries must say so explicitly.
	NoRetries = -1

	// jitterFactor scales the uniform jitter added to each backoff delay.
	jitterFactor = 0.3

	// maxLoggedError bounds the error message length in retry log lines.
	maxLoggedError = 200
)

// Config holds retry behavior for one logical service.
type Config struct {
	// InitialDelay is the base backoff delay. Default 1s.
	InitialDelay time.Duration

	// Logger is the structured logger for retry attempts. Defaults to
	// slog.Default().
	Logger *slog.Logger

	// MaxDelay caps backoff growth. Default 30s.
	MaxDelay time.Duration

	// MaxRetries is the number of additional attempts beyond the first.
	// Zero means the default of 3; NoRetries disables retries.
	MaxRetries int

	// Service names the logical service for logs and metrics.
	Service string
}

// withDefaults fills zero-valued fields.
func (c Config) withDefaults() Config {
	if c.InitialDelay <= 0 {
		c.InitialDelay = DefaultInitialDelay
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	if c.MaxDelay <= 0 {
		c.MaxDelay = DefaultMaxDelay
	}
	switch {
	case c.MaxRetries < 0:
		c.MaxRetries = 0
	case c.MaxRetries == 0:
		c.MaxRetries = DefaultMaxRetries
	}
	return c
}

// retryable is implemented by errors that carry their own classification,
// such as httpx status/timeout errors and circuit-open errors.
type retryable interface {
	Retryable() bool
}

// Do executes op, retrying on transient failures up to cfg.MaxRetries
// additional attempts. Terminal errors propagate immediately without
// consuming a retry. When retries are exhausted, the last error is returned
// unchanged so callers can still classify it.
func Do[T any](ctx context.Context, cfg Config, op func(context.Context) (T, error)) (T, error) {
	cfg = cfg.withDefaults()

	var zero T
	var lastErr error

	for attempt := 0; ; attempt++ {
		result, err := op(ctx)
		if err == nil {
			return result, nil
		}
		if !Retryable(err) {
			return zero, err
		}
		lastErr = err

		if attempt >= cfg.MaxRetries {
			break
		}

		delay := backoff(attempt+1, cfg)
		cfg.Logger.Warn("retrying after transient error",
			"service", cfg.Service,
			"attempt", attempt+1,
			"max_retries", cfg.MaxRetries,
			"delay", delay,
			"error", truncate(redact.Error(err), maxLoggedError))
		metrics.RetryAttempts.WithLabelValues(cfg.Service).Inc()

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return zero, ctx.Err()
		case <-timer.C:
		}
	}

	return zero, lastErr
}

// Retryable classifies an error as transient (retry) or terminal (propagate
// immediately). Timeouts, network and DNS failures, 5xx gateway statuses,
// and rate limiting are transient; auth and validation failures are not.
func Retryable(err error) bool {
	if err == nil {
		return false
	}

	var r retryable
	if errors.As(err, &r) {
		return r.Retryable()
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}

	msg := strings.ToLower(err.Error())
	for _, marker := range []string{
		"timeout",
		"timed out",
		"connection refused",
		"connection reset",
		"broken pipe",
		"no such host",
		"network is unreachable",
		"status 502",
		"status 503",
		"status 504",
		"status 429",
		"too many requests",
		"rate limit",
	} {
		if strings.Contains(msg, marker) {
			return true
		}
	}

	return false
}

// backoff computes the delay before the given retry attempt (1-indexed):
// min(initial * 2^(attempt-1) + jitter, max), jitter uniform in
// [0, 0.3*base].
func backoff(attempt int, cfg Config) time.Duration {
	base := float64(cfg.InitialDelay) * math.Pow(2, float64(attempt-1))
	jitter := rand.Float64() * jitterFactor * base
	delay := base + jitter
	if delay > float64(cfg.MaxDelay) {
		delay = float64(cfg.MaxDelay)
	}
	return time.Duration(delay)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
