// Package config provides configuration loading from environment variables,
// with a local file fallback for workstation runs.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/donorbridge/donorbridge/internal/retry"
)

const (
	// EnvDynamoDBIndexName is the DynamoDB GSI for querying donations by constituent.
	EnvDynamoDBIndexName = "DONORBRIDGE_DYNAMODB_INDEX_NAME"

	// EnvDynamoDBTableName is the DynamoDB table for synced records.
	EnvDynamoDBTableName = "DONORBRIDGE_DYNAMODB_TABLE_NAME"

	// EnvEnableRollback enables the rollback signal when the failure monitor aborts a run.
	EnvEnableRollback = "DONORBRIDGE_ENABLE_ROLLBACK"

	// EnvFailureThreshold is the failure-rate fraction that aborts a run.
	EnvFailureThreshold = "DONORBRIDGE_FAILURE_THRESHOLD"

	// EnvHTTPTimeout is the per-request vendor API timeout in seconds.
	EnvHTTPTimeout = "DONORBRIDGE_HTTP_TIMEOUT_SECONDS"

	// EnvLogEnabled enables structured log emission. When false, log output
	// is discarded entirely.
	EnvLogEnabled = "DONORBRIDGE_LOG_ENABLED"

	// EnvLogLevel is the minimum log level (debug, info, warn, error).
	EnvLogLevel = "DONORBRIDGE_LOG_LEVEL"

	// EnvMaxConsecutiveFailures is the consecutive-unrecoverable-error ceiling.
	EnvMaxConsecutiveFailures = "DONORBRIDGE_MAX_CONSECUTIVE_FAILURES"

	// EnvMaxEmptyPages is the consecutive-empty-page pagination ceiling.
	EnvMaxEmptyPages = "DONORBRIDGE_MAX_EMPTY_PAGES"

	// EnvMaxPageFetches is the per-run page-fetch pagination ceiling.
	EnvMaxPageFetches = "DONORBRIDGE_MAX_PAGE_FETCHES"

	// EnvMaxPageSize caps the records-per-page an adapter may request.
	EnvMaxPageSize = "DONORBRIDGE_MAX_PAGE_SIZE"

	// EnvMaxRecordsPerRun is the per-run record pagination ceiling.
	EnvMaxRecordsPerRun = "DONORBRIDGE_MAX_RECORDS_PER_RUN"

	// EnvMaxRetries is the maximum retry attempts for transient vendor errors.
	EnvMaxRetries = "DONORBRIDGE_MAX_RETRIES"

	// EnvMetricsAddr is the listen address for the Prometheus metrics endpoint.
	EnvMetricsAddr = "DONORBRIDGE_METRICS_ADDR"

	// EnvMinRecordsForThreshold is the minimum attempted records before the rate trigger arms.
	EnvMinRecordsForThreshold = "DONORBRIDGE_MIN_RECORDS_FOR_THRESHOLD"

	// EnvPageSize is the default records-per-page requested from vendor APIs.
	EnvPageSize = "DONORBRIDGE_PAGE_SIZE"

	// EnvRateLimitDefaultMS is the minimum inter-request delay, in
	// milliseconds, for providers without a delay-table entry.
	EnvRateLimitDefaultMS = "DONORBRIDGE_RATE_LIMIT_DEFAULT_MS"

	// EnvRateLimitDelaysMS overrides the per-provider rate-limit delay table:
	// comma-separated provider=milliseconds pairs, e.g. "neon=150,kindful=250".
	// Providers not listed keep their built-in delays.
	EnvRateLimitDelaysMS = "DONORBRIDGE_RATE_LIMIT_DELAYS_MS"

	// EnvRedisAddr is the Redis address when the redis state backend is selected.
	EnvRedisAddr = "DONORBRIDGE_REDIS_ADDR"

	// EnvRetryDelayMS is the base backoff delay between retries, in milliseconds.
	EnvRetryDelayMS = "DONORBRIDGE_RETRY_DELAY_MS"

	// EnvSecretPrefix is the Secrets Manager name prefix for credential secrets.
	EnvSecretPrefix = "DONORBRIDGE_SECRET_PREFIX"

	// EnvSSMPrefix is the SSM parameter name prefix for sync checkpoints.
	EnvSSMPrefix = "DONORBRIDGE_SSM_PREFIX"

	// EnvStateBackend selects the checkpoint store: ssm or redis.
	EnvStateBackend = "DONORBRIDGE_STATE_BACKEND"
)

// State backend selectors.
const (
	StateBackendRedis = "redis"
	StateBackendSSM   = "ssm"
)

// DynamoDB holds AWS DynamoDB configuration.
type DynamoDB struct {
	// IndexName is the GSI name for querying donations by constituent.
	IndexName string

	// TableName is the name of the DynamoDB table for synced records.
	TableName string
}

// Logging holds structured-logging configuration.
type Logging struct {
	// Enabled controls whether log records are emitted at all. When false,
	// log output is discarded.
	Enabled bool

	// Level is the minimum log level name (debug, info, warn, error).
	Level string
}

// SlogLevel maps the configured level name to a slog level. Unknown names
// map to info.
func (l Logging) SlogLevel() slog.Level {
	switch strings.ToLower(l.Level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Monitor holds failure-threshold monitoring configuration.
type Monitor struct {
	// EnableRollback signals rollback when a threshold abort fires.
	EnableRollback bool

	// FailureThreshold is the failure-rate fraction that aborts a run.
	FailureThreshold float64

	// MaxConsecutiveFailures aborts after this many unrecoverable errors in a row.
	MaxConsecutiveFailures int

	// MinRecordsForThreshold is the minimum attempted records before the
	// rate trigger arms.
	MinRecordsForThreshold int
}

// Pagination holds the per-run paging ceilings.
type Pagination struct {
	// MaxEmptyPages stops paging after this many consecutive empty pages.
	MaxEmptyPages int

	// MaxPageFetches bounds the total page fetches in one run.
	MaxPageFetches int

	// MaxPageSize caps the records-per-page an adapter may request.
	MaxPageSize int

	// MaxRecordsPerRun bounds the total records pulled in one run.
	MaxRecordsPerRun int

	// PageSize is the default records-per-page requested from vendor APIs.
	PageSize int
}

// RateLimit holds outbound request pacing configuration.
type RateLimit struct {
	// DefaultDelay is the minimum inter-request delay for providers without
	// a table entry. Zero uses the built-in default.
	DefaultDelay time.Duration

	// Delays overlays the built-in per-provider delay table. Nil keeps the
	// built-in table unchanged.
	Delays map[string]time.Duration
}

// Redis holds Redis configuration for the optional redis state backend.
type Redis struct {
	// Addr is the Redis server address.
	Addr string
}

// Retry holds retry configuration for transient vendor errors.
type Retry struct {
	// HTTPTimeout bounds each vendor API request.
	HTTPTimeout time.Duration

	// InitialDelay is the base backoff delay before the first retry.
	InitialDelay time.Duration

	// MaxRetries is the maximum retry attempts per operation. An explicit
	// zero disables retries.
	MaxRetries int
}

// Retries converts the configured retry count to the retry package
// convention, where an explicit zero means no retries rather than the
// package default.
func (r Retry) Retries() int {
	if r.MaxRetries == 0 {
		return retry.NoRetries
	}
	return r.MaxRetries
}

// Secrets holds AWS Secrets Manager configuration.
type Secrets struct {
	// Prefix is the secret name prefix for credential secrets.
	Prefix string
}

// SSM holds AWS Systems Manager Parameter Store configuration.
type SSM struct {
	// Prefix is the parameter name prefix for sync checkpoints.
	Prefix string
}

// Settings holds all configuration for the application.
type Settings struct {
	// DynamoDB contains AWS DynamoDB settings.
	DynamoDB DynamoDB

	// Logging contains structured-logging settings.
	Logging Logging

	// MetricsAddr is the Prometheus listen address, empty to disable.
	MetricsAddr string

	// Monitor contains failure-threshold settings.
	Monitor Monitor

	// Pagination contains the per-run paging ceilings and page sizes.
	Pagination Pagination

	// RateLimit contains outbound request pacing settings.
	RateLimit RateLimit

	// Redis contains Redis settings for the redis state backend.
	Redis Redis

	// Retry contains retry and timeout settings.
	Retry Retry

	// Secrets contains AWS Secrets Manager settings.
	Secrets Secrets

	// SSM contains AWS Systems Manager Parameter Store settings.
	SSM SSM

	// StateBackend selects the checkpoint store: ssm or redis.
	StateBackend string
}

func (s *Settings) validate() error {
	var errs []error

	if s.DynamoDB.TableName == "" {
		errs = append(errs, requiredError(EnvDynamoDBTableName))
	}
	switch s.StateBackend {
	case StateBackendSSM:
	case StateBackendRedis:
		if s.Redis.Addr == "" {
			errs = append(errs, requiredError(EnvRedisAddr))
		}
	default:
		errs = append(errs, fmt.Errorf("%s must be %q or %q, got %q",
			EnvStateBackend, StateBackendSSM, StateBackendRedis, s.StateBackend))
	}
	if s.Monitor.FailureThreshold <= 0 || s.Monitor.FailureThreshold >= 1 {
		errs = append(errs, fmt.Errorf("%s must be between 0 and 1 exclusive", EnvFailureThreshold))
	}
	if s.Monitor.MaxConsecutiveFailures < 1 {
		errs = append(errs, fmt.Errorf("%s must be positive", EnvMaxConsecutiveFailures))
	}
	if s.Retry.MaxRetries < 0 {
		errs = append(errs, fmt.Errorf("%s cannot be negative", EnvMaxRetries))
	}
	if s.Retry.InitialDelay <= 0 {
		errs = append(errs, fmt.Errorf("%s must be positive", EnvRetryDelayMS))
	}
	if s.Pagination.PageSize < 1 {
		errs = append(errs, fmt.Errorf("%s must be positive", EnvPageSize))
	}
	if s.Pagination.MaxPageSize < s.Pagination.PageSize {
		errs = append(errs, fmt.Errorf("%s cannot be smaller than %s", EnvMaxPageSize, EnvPageSize))
	}

	return errors.Join(errs...)
}

// Load reads configuration from environment variables.
func Load() (*Settings, error) {
	cfg := &Settings{
		DynamoDB: DynamoDB{
			IndexName: envOrDefault(EnvDynamoDBIndexName, "ConstituentKeyIndex"),
			TableName: strings.TrimSpace(os.Getenv(EnvDynamoDBTableName)),
		},
		Logging:     LogSettings(),
		MetricsAddr: strings.TrimSpace(os.Getenv(EnvMetricsAddr)),
		Monitor: Monitor{
			EnableRollback:         boolOrDefault(EnvEnableRollback, false),
			FailureThreshold:       floatOrDefault(EnvFailureThreshold, 0.10),
			MaxConsecutiveFailures: intOrDefault(EnvMaxConsecutiveFailures, 5),
			MinRecordsForThreshold: intOrDefault(EnvMinRecordsForThreshold, 10),
		},
		Pagination: Pagination{
			MaxEmptyPages:    intOrDefault(EnvMaxEmptyPages, 10),
			MaxPageFetches:   intOrDefault(EnvMaxPageFetches, 1000),
			MaxPageSize:      intOrDefault(EnvMaxPageSize, 500),
			MaxRecordsPerRun: intOrDefault(EnvMaxRecordsPerRun, 50000),
			PageSize:         intOrDefault(EnvPageSize, 100),
		},
		RateLimit: RateLimit{
			DefaultDelay: time.Duration(intOrDefault(EnvRateLimitDefaultMS, 0)) * time.Millisecond,
			Delays:       delayTable(EnvRateLimitDelaysMS),
		},
		Redis: Redis{
			Addr: strings.TrimSpace(os.Getenv(EnvRedisAddr)),
		},
		Retry: Retry{
			HTTPTimeout:  time.Duration(intOrDefault(EnvHTTPTimeout, 30)) * time.Second,
			InitialDelay: time.Duration(intOrDefault(EnvRetryDelayMS, 1000)) * time.Millisecond,
			MaxRetries:   intOrDefault(EnvMaxRetries, 3),
		},
		Secrets: Secrets{
			Prefix: envOrDefault(EnvSecretPrefix, "donorbridge"),
		},
		SSM: SSM{
			Prefix: envOrDefault(EnvSSMPrefix, "/donorbridge"),
		},
		StateBackend: envOrDefault(EnvStateBackend, StateBackendSSM),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// LogSettings reads the logging configuration alone, for entry points that
// build a logger before (or without) loading the full settings.
func LogSettings() Logging {
	return Logging{
		Enabled: boolOrDefault(EnvLogEnabled, true),
		Level:   envOrDefault(EnvLogLevel, "info"),
	}
}

// delayTable parses a comma-separated provider=milliseconds list. Malformed
// or non-positive pairs are skipped, like the other lenient env helpers; an
// empty result is nil so the pacer keeps its built-in table.
func delayTable(key string) map[string]time.Duration {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return nil
	}

	delays := make(map[string]time.Duration)
	for _, pair := range strings.Split(value, ",") {
		name, ms, ok := strings.Cut(strings.TrimSpace(pair), "=")
		if !ok {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSpace(ms))
		if err != nil || n <= 0 {
			continue
		}
		delays[strings.TrimSpace(name)] = time.Duration(n) * time.Millisecond
	}
	if len(delays) == 0 {
		return nil
	}
	return delays
}

func envOrDefault(key string, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func boolOrDefault(key string, defaultValue bool) bool {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultValue
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return defaultValue
	}
	return b
}

func floatOrDefault(key string, defaultValue float64) float64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultValue
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return defaultValue
	}
	return f
}

func intOrDefault(key string, defaultValue int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return n
}

func requiredError(envVar string) error {
	return fmt.Errorf("%s is required", envVar)
}
