package neon

import (
	"errors"
	"log/slog"
	"net/http"
	"time"
)

const (
	// DefaultBaseURL is the production Neon CRM API endpoint.
	DefaultBaseURL = "https://api.neoncrm.com/v2"

	// DefaultPageSize is the number of records requested per page.
	DefaultPageSize = 100

	// DefaultTimeout bounds each HTTP request.
	DefaultTimeout = 30 * time.Second
)

// options holds the configurable settings for the adapter.
type options struct {
	// baseURL is the base URL for API requests.
	baseURL string

	// httpClient is the HTTP client for making requests.
	httpClient *http.Client

	// logger is the structured logger for the adapter.
	logger *slog.Logger

	// pageSize is the requested records per page.
	pageSize int

	// timeout bounds each HTTP request.
	timeout time.Duration
}

// Option configures the adapter.
type Option func(*options) error

// defaultOptions returns the default adapter settings.
func defaultOptions() *options {
	return &options{
		baseURL:  DefaultBaseURL,
		logger:   slog.Default(),
		pageSize: DefaultPageSize,
		timeout:  DefaultTimeout,
	}
}

// WithBaseURL overrides the base URL used for API requests.
func WithBaseURL(baseURL string) Option {
	return func(o *options) error {
		if baseURL == "" {
			return errors.New("base URL cannot be empty")
		}
		o.baseURL = baseURL
		return nil
	}
}

// WithHTTPClient overrides the HTTP client used for requests.
func WithHTTPClient(client *http.Client) Option {
	return func(o *options) error {
		if client == nil {
			return errors.New("HTTP client cannot be nil")
		}
		o.httpClient = client
		return nil
	}
}

// WithLogger overrides the adapter's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) error {
		if logger == nil {
			return errors.New("logger cannot be nil")
		}
		o.logger = logger
		return nil
	}
}

// WithPageSize overrides the number of records requested per page.
func WithPageSize(size int) Option {
	return func(o *options) error {
		if size <= 0 {
			return errors.New("page size must be positive")
		}
		o.pageSize = size
		return nil
	}
}

// WithTimeout overrides the per-request timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(o *options) error {
		if timeout <= 0 {
			return errors.New("timeout must be positive")
		}
		o.timeout = timeout
		return nil
	}
}
