// Package main provides the donorbridge CLI: one-shot provider sync runs
// from a workstation or a scheduler.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/donorbridge/donorbridge/internal/breaker"
	"github.com/donorbridge/donorbridge/internal/canonical"
	"github.com/donorbridge/donorbridge/internal/config"
	"github.com/donorbridge/donorbridge/internal/credentials"
	"github.com/donorbridge/donorbridge/internal/pagination"
	"github.com/donorbridge/donorbridge/internal/ratelimit"
	"github.com/donorbridge/donorbridge/internal/retry"
	"github.com/donorbridge/donorbridge/internal/storage"
	"github.com/donorbridge/donorbridge/internal/syncrun"
	"github.com/donorbridge/donorbridge/internal/vendors/factory"
)

const (
	exitAborted = 2
	exitError   = 1
)

func main() {
	providerFlag := flag.String("provider", "", "Provider to sync (required)")
	userFlag := flag.String("user", "", "User whose provider link to sync (required unless -local)")
	sinceFlag := flag.String("since", "", "Override the sync window start (YYYY-MM-DD)")
	dryRun := flag.Bool("dry-run", false, "Log writes instead of executing them")
	local := flag.Bool("local", false, "Use the local config file instead of AWS")
	debug := flag.Bool("debug", false, "Enable debug logging")
	flag.Parse()

	// A local .env is a convenience for development, never required.
	_ = godotenv.Load()

	logCfg := config.LogSettings()
	level := logCfg.SlogLevel()
	if *debug {
		level = slog.LevelDebug
	}
	var handler slog.Handler = tint.NewHandler(os.Stderr, &tint.Options{
		Level:      level,
		TimeFormat: time.RFC3339,
	})
	if !logCfg.Enabled {
		handler = slog.NewTextHandler(io.Discard, nil)
	}
	logger := slog.New(handler)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var err error
	switch flag.Arg(0) {
	case "init":
		err = runInit()
	case "link":
		err = runLink(ctx, logger, *providerFlag, *userFlag)
	case "":
		err = run(ctx, logger, *providerFlag, *userFlag, *sinceFlag, *dryRun, *local)
	default:
		err = fmt.Errorf("unknown command %q (expected init, link, or no command)", flag.Arg(0))
	}
	if err != nil {
		var abortErr *abortedError
		if errors.As(err, &abortErr) {
			logger.Warn("sync aborted", "reason", abortErr.reason)
			os.Exit(exitAborted)
		}
		logger.Error("sync failed", "error", err)
		os.Exit(exitError)
	}
}

// abortedError distinguishes a monitor abort from a hard failure so the two
// get different exit codes.
type abortedError struct {
	reason string
}

func (e *abortedError) Error() string {
	return "sync aborted: " + e.reason
}

func run(ctx context.Context, logger *slog.Logger, providerName, userID, sinceValue string, dryRun, local bool) error {
	if providerName == "" {
		return errors.New("-provider is required")
	}
	provider, err := canonical.ParseProvider(providerName)
	if err != nil {
		return err
	}

	var sinceOverride *time.Time
	if sinceValue != "" {
		t, err := time.Parse("2006-01-02", sinceValue)
		if err != nil {
			return fmt.Errorf("parsing -since: %w", err)
		}
		sinceOverride = &t
	}

	var (
		fields     credentials.Fields
		records    syncrun.RecordStore
		states     syncrun.StateStore
		monitorCfg syncrun.MonitorConfig
		limits     pagination.Limits
		pacer      *ratelimit.Pacer
		pageSize   int
		retryCfg   retry.Config
		timeout    time.Duration
	)

	if local {
		fields, records, states, err = wireLocal(provider)
		if err != nil {
			return err
		}
		pacer = ratelimit.NewPacer(nil, 0)
	} else {
		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("loading configuration: %w", err)
		}
		if cfg.MetricsAddr != "" {
			go serveMetrics(logger, cfg.MetricsAddr)
		}
		fields, records, states, err = wireAWS(ctx, logger, cfg, userID, provider)
		if err != nil {
			return err
		}
		monitorCfg = syncrun.MonitorConfig{
			EnableRollbackOnThreshold: cfg.Monitor.EnableRollback,
			FailureThreshold:          cfg.Monitor.FailureThreshold,
			MaxConsecutiveFailures:    cfg.Monitor.MaxConsecutiveFailures,
			MinRecordsForThreshold:    cfg.Monitor.MinRecordsForThreshold,
		}
		limits = pagination.Limits{
			MaxEmptyBatches: cfg.Pagination.MaxEmptyPages,
			MaxIterations:   cfg.Pagination.MaxPageFetches,
			MaxRecords:      cfg.Pagination.MaxRecordsPerRun,
		}
		pacer = ratelimit.NewPacer(cfg.RateLimit.Delays, cfg.RateLimit.DefaultDelay)
		pageSize = cfg.Pagination.PageSize
		retryCfg = retry.Config{
			InitialDelay: cfg.Retry.InitialDelay,
			MaxRetries:   cfg.Retry.Retries(),
		}
		timeout = cfg.Retry.HTTPTimeout
	}

	// An explicit -since run must not advance the stored checkpoint.
	states = checkpointStates(states, sinceOverride)

	adapter, err := factory.New(provider, fields, factory.Options{
		Logger:   logger,
		PageSize: pageSize,
		Timeout:  timeout,
	})
	if err != nil {
		return err
	}

	runner, err := syncrun.New(syncrun.Config{
		Adapter:       adapter,
		Breakers:      breaker.NewRegistry(breaker.Policy{}, logger),
		DryRun:        dryRun,
		Limits:        limits,
		Logger:        logger,
		Monitor:       syncrun.NewMonitor(monitorCfg),
		Pacer:         pacer,
		Records:       records,
		Retry:         retryCfg,
		SinceOverride: sinceOverride,
		States:        states,
	})
	if err != nil {
		return err
	}

	result, err := runner.Run(ctx)
	if err != nil {
		return err
	}

	logger.Info("run finished",
		"outcome", result.Outcome,
		"request_id", result.RequestID,
		"constituents_synced", result.ConstituentsSynced,
		"donations_synced", result.DonationsSynced,
		"failed_records", result.FailedRecords,
		"pages_fetched", result.PagesFetched)

	if result.Outcome == syncrun.OutcomeAborted {
		return &abortedError{reason: result.AbortReason}
	}
	return nil
}

// checkpointStates guards the stored checkpoint behind a since override: an
// override run reads its window from the override and writes nothing back,
// so the next scheduled run resumes from the real checkpoint.
func checkpointStates(states syncrun.StateStore, sinceOverride *time.Time) syncrun.StateStore {
	if sinceOverride == nil {
		return states
	}
	return storage.NewNoopStateStore(*sinceOverride)
}

// wireLocal builds the stores for a workstation run: credentials from the
// local config file, records in memory, checkpoints in a local state file.
func wireLocal(provider canonical.Provider) (credentials.Fields, syncrun.RecordStore, syncrun.StateStore, error) {
	localCfg, err := config.LoadLocal()
	if err != nil {
		return nil, nil, nil, err
	}

	fields, err := localCfg.ProviderFields(provider)
	if err != nil {
		return nil, nil, nil, err
	}

	statePath, err := config.StateFilePath()
	if err != nil {
		return nil, nil, nil, err
	}
	states, err := storage.NewFileStateStore(statePath, provider)
	if err != nil {
		return nil, nil, nil, err
	}

	return fields, storage.NewMemoryRecordStore(), states, nil
}

// wireAWS builds the stores for a deployed run: credentials from Secrets
// Manager, records in DynamoDB, checkpoints in SSM or Redis.
func wireAWS(ctx context.Context, logger *slog.Logger, cfg *config.Settings, userID string, provider canonical.Provider) (credentials.Fields, syncrun.RecordStore, syncrun.StateStore, error) {
	if userID == "" {
		return nil, nil, nil, errors.New("-user is required")
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("loading AWS config: %w", err)
	}

	records, err := storage.NewRecordStore(
		dynamodb.NewFromConfig(awsCfg), cfg.DynamoDB.TableName, cfg.DynamoDB.IndexName)
	if err != nil {
		return nil, nil, nil, err
	}

	codec := credentials.NewCodec(logger)
	credStore, err := storage.NewCredentialStore(
		secretsmanager.NewFromConfig(awsCfg), codec, cfg.Secrets.Prefix)
	if err != nil {
		return nil, nil, nil, err
	}
	fields, err := credStore.Credentials(ctx, userID, provider)
	if err != nil {
		return nil, nil, nil, err
	}

	var states syncrun.StateStore
	switch cfg.StateBackend {
	case config.StateBackendRedis:
		client := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr})
		states, err = storage.NewRedisStateStore(client, cfg.Secrets.Prefix, provider)
	default:
		states, err = storage.NewStateStore(ssm.NewFromConfig(awsCfg), cfg.SSM.Prefix, provider)
	}
	if err != nil {
		return nil, nil, nil, err
	}

	return fields, records, states, nil
}

// serveMetrics exposes the Prometheus endpoint for scrape-based deployments.
func serveMetrics(logger *slog.Logger, addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	logger.Info("serving metrics", "addr", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		logger.Error("metrics server stopped", "error", err)
	}
}
