package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"

	"github.com/donorbridge/donorbridge/internal/canonical"
	"github.com/donorbridge/donorbridge/internal/config"
	"github.com/donorbridge/donorbridge/internal/credentials"
	"github.com/donorbridge/donorbridge/internal/storage"
)

// runLink encodes a provider's credentials from the local config file and
// stores them in Secrets Manager for scheduled runs. Credential validation
// happens at the start of the next sync, not here.
func runLink(ctx context.Context, logger *slog.Logger, providerName, userID string) error {
	if providerName == "" {
		return errors.New("-provider is required")
	}
	if userID == "" {
		return errors.New("-user is required")
	}

	provider, err := canonical.ParseProvider(providerName)
	if err != nil {
		return err
	}

	localCfg, err := config.LoadLocal()
	if err != nil {
		return err
	}
	fields, err := localCfg.ProviderFields(provider)
	if err != nil {
		return err
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return fmt.Errorf("loading AWS config: %w", err)
	}

	codec := credentials.NewCodec(logger)
	credStore, err := storage.NewCredentialStore(
		secretsmanager.NewFromConfig(awsCfg), codec, cfg.Secrets.Prefix)
	if err != nil {
		return err
	}

	if err := credStore.SaveCredentials(ctx, userID, provider, fields); err != nil {
		return err
	}

	logger.Info("stored provider credentials", "provider", provider, "user", userID)
	return nil
}
