package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"

	"github.com/donorbridge/donorbridge/internal/canonical"
	"github.com/donorbridge/donorbridge/internal/credentials"
)

// SecretsManagerAPI defines the Secrets Manager operations used by the
// credential store.
type SecretsManagerAPI interface {
	// GetSecretValue retrieves a secret value.
	GetSecretValue(
		ctx context.Context,
		params *secretsmanager.GetSecretValueInput,
		optFns ...func(*secretsmanager.Options),
	) (*secretsmanager.GetSecretValueOutput, error)

	// PutSecretValue stores a secret value.
	PutSecretValue(
		ctx context.Context,
		params *secretsmanager.PutSecretValueInput,
		optFns ...func(*secretsmanager.Options),
	) (*secretsmanager.PutSecretValueOutput, error)
}

// CredentialStore keeps each user's per-provider credential bundle in AWS
// Secrets Manager. Bundles are stored as a single opaque token produced by
// the credential codec; the raw fields never leave this package unencoded.
type CredentialStore struct {
	// client is the Secrets Manager API client.
	client SecretsManagerAPI

	// codec encodes and decodes credential bundles.
	codec *credentials.Codec

	// prefix is the secret name prefix.
	prefix string
}

// NewCredentialStore creates a Secrets Manager-backed credential store.
// Secrets are named "<prefix>/<userID>/<provider>".
func NewCredentialStore(client SecretsManagerAPI, codec *credentials.Codec, prefix string) (*CredentialStore, error) {
	if client == nil {
		return nil, errors.New("secrets manager client is required")
	}
	if codec == nil {
		return nil, errors.New("credential codec is required")
	}
	if prefix == "" {
		return nil, errors.New("secret prefix is required")
	}

	return &CredentialStore{
		client: client,
		codec:  codec,
		prefix: prefix,
	}, nil
}

// Credentials returns the decoded credential bundle for one user's provider
// link.
func (s *CredentialStore) Credentials(ctx context.Context, userID string, provider canonical.Provider) (credentials.Fields, error) {
	name, err := s.secretName(userID, provider)
	if err != nil {
		return nil, err
	}

	output, err := s.client.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId: aws.String(name),
	})
	if err != nil {
		return nil, fmt.Errorf("getting secret from Secrets Manager: %w", err)
	}

	if output.SecretString == nil {
		return nil, errors.New("secret has no string value")
	}

	fields, err := s.codec.Decode(*output.SecretString)
	if err != nil {
		return nil, fmt.Errorf("decoding credential token for %s: %w", provider, err)
	}

	return fields, nil
}

// SaveCredentials encodes and stores a credential bundle for one user's
// provider link.
func (s *CredentialStore) SaveCredentials(ctx context.Context, userID string, provider canonical.Provider, fields credentials.Fields) error {
	name, err := s.secretName(userID, provider)
	if err != nil {
		return err
	}

	token, err := s.codec.Encode(fields)
	if err != nil {
		return fmt.Errorf("encoding credential token for %s: %w", provider, err)
	}

	_, err = s.client.PutSecretValue(ctx, &secretsmanager.PutSecretValueInput{
		SecretId:     aws.String(name),
		SecretString: aws.String(token),
	})
	if err != nil {
		return fmt.Errorf("putting secret to Secrets Manager: %w", err)
	}

	return nil
}

// secretName builds the secret name for one user's provider link.
func (s *CredentialStore) secretName(userID string, provider canonical.Provider) (string, error) {
	if userID == "" {
		return "", errors.New("user ID is required")
	}
	if provider == "" {
		return "", errors.New("provider is required")
	}
	return fmt.Sprintf("%s/%s/%s", s.prefix, userID, provider), nil
}
