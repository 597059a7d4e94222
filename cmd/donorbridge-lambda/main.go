// Package main provides the Lambda handler entry point for donorbridge.
// Each invocation runs one provider sync for one user, typically driven by
// an EventBridge schedule.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/aws/aws-lambda-go/lambda"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
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

// SyncEvent is the invocation payload.
type SyncEvent struct {
	// DryRun logs writes instead of executing them.
	DryRun bool `json:"dryRun"`

	// Provider is the vendor to sync.
	Provider string `json:"provider"`

	// Since optionally overrides the sync window start (RFC 3339).
	Since string `json:"since"`

	// UserID is the user whose provider link to sync.
	UserID string `json:"userId"`
}

// SyncResponse is the invocation result payload.
type SyncResponse struct {
	// AbortReason is set when Outcome is aborted.
	AbortReason string `json:"abortReason,omitempty"`

	// ConstituentsSynced is the number of constituents upserted.
	ConstituentsSynced int `json:"constituentsSynced"`

	// DonationsSynced is the number of donations upserted.
	DonationsSynced int `json:"donationsSynced"`

	// FailedRecords is the number of records that could not be processed.
	FailedRecords int `json:"failedRecords"`

	// Outcome is the final run disposition.
	Outcome string `json:"outcome"`

	// RequestID identifies the run in logs.
	RequestID string `json:"requestId"`

	// RollbackSignaled reports that the abort policy requested rollback.
	RollbackSignaled bool `json:"rollbackSignaled,omitempty"`
}

func main() {
	logCfg := config.LogSettings()
	var handler slog.Handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logCfg.SlogLevel(),
	})
	if !logCfg.Enabled {
		handler = slog.NewTextHandler(io.Discard, nil)
	}
	slog.SetDefault(slog.New(handler))

	lambda.Start(handle)
}

func handle(ctx context.Context, event SyncEvent) (*SyncResponse, error) {
	logger := slog.Default()

	if event.Provider == "" {
		return nil, errors.New("provider is required")
	}
	if event.UserID == "" {
		return nil, errors.New("userId is required")
	}

	provider, err := canonical.ParseProvider(event.Provider)
	if err != nil {
		return nil, err
	}

	var sinceOverride *time.Time
	if event.Since != "" {
		t, err := time.Parse(time.RFC3339, event.Since)
		if err != nil {
			return nil, fmt.Errorf("parsing since: %w", err)
		}
		sinceOverride = &t
	}

	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("loading configuration: %w", err)
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading AWS config: %w", err)
	}

	records, err := storage.NewRecordStore(
		dynamodb.NewFromConfig(awsCfg), cfg.DynamoDB.TableName, cfg.DynamoDB.IndexName)
	if err != nil {
		return nil, err
	}

	codec := credentials.NewCodec(logger)
	credStore, err := storage.NewCredentialStore(
		secretsmanager.NewFromConfig(awsCfg), codec, cfg.Secrets.Prefix)
	if err != nil {
		return nil, err
	}
	fields, err := credStore.Credentials(ctx, event.UserID, provider)
	if err != nil {
		return nil, err
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
		return nil, err
	}

	// An explicit since override must not advance the stored checkpoint.
	if sinceOverride != nil {
		states = storage.NewNoopStateStore(*sinceOverride)
	}

	adapter, err := factory.New(provider, fields, factory.Options{
		Logger:   logger,
		PageSize: cfg.Pagination.PageSize,
		Timeout:  cfg.Retry.HTTPTimeout,
	})
	if err != nil {
		return nil, err
	}

	runner, err := syncrun.New(syncrun.Config{
		Adapter:  adapter,
		Breakers: breaker.NewRegistry(breaker.Policy{}, logger),
		DryRun:   event.DryRun,
		Limits: pagination.Limits{
			MaxEmptyBatches: cfg.Pagination.MaxEmptyPages,
			MaxIterations:   cfg.Pagination.MaxPageFetches,
			MaxRecords:      cfg.Pagination.MaxRecordsPerRun,
		},
		Logger: logger,
		Monitor: syncrun.NewMonitor(syncrun.MonitorConfig{
			EnableRollbackOnThreshold: cfg.Monitor.EnableRollback,
			FailureThreshold:          cfg.Monitor.FailureThreshold,
			MaxConsecutiveFailures:    cfg.Monitor.MaxConsecutiveFailures,
			MinRecordsForThreshold:    cfg.Monitor.MinRecordsForThreshold,
		}),
		Pacer:   ratelimit.NewPacer(cfg.RateLimit.Delays, cfg.RateLimit.DefaultDelay),
		Records: records,
		Retry: retry.Config{
			InitialDelay: cfg.Retry.InitialDelay,
			MaxRetries:   cfg.Retry.Retries(),
		},
		SinceOverride: sinceOverride,
		States:        states,
	})
	if err != nil {
		return nil, err
	}

	result, err := runner.Run(ctx)
	if err != nil {
		return nil, err
	}

	return &SyncResponse{
		AbortReason:        result.AbortReason,
		ConstituentsSynced: result.ConstituentsSynced,
		DonationsSynced:    result.DonationsSynced,
		FailedRecords:      result.FailedRecords,
		Outcome:            string(result.Outcome),
		RequestID:          result.RequestID,
		RollbackSignaled:   result.RollbackSignaled,
	}, nil
}
