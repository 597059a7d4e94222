package storage

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/stretchr/testify/require"

	"github.com/donorbridge/donorbridge/internal/canonical"
	"github.com/donorbridge/donorbridge/internal/credentials"
)

type mockSecretsManagerClient struct {
	getSecretValueFunc func(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
	putSecretValueFunc func(ctx context.Context, params *secretsmanager.PutSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.PutSecretValueOutput, error)
}

func (m *mockSecretsManagerClient) GetSecretValue(
	ctx context.Context,
	params *secretsmanager.GetSecretValueInput,
	optFns ...func(*secretsmanager.Options),
) (*secretsmanager.GetSecretValueOutput, error) {
	if m.getSecretValueFunc != nil {
		return m.getSecretValueFunc(ctx, params, optFns...)
	}
	return &secretsmanager.GetSecretValueOutput{}, nil
}

func (m *mockSecretsManagerClient) PutSecretValue(
	ctx context.Context,
	params *secretsmanager.PutSecretValueInput,
	optFns ...func(*secretsmanager.Options),
) (*secretsmanager.PutSecretValueOutput, error) {
	if m.putSecretValueFunc != nil {
		return m.putSecretValueFunc(ctx, params, optFns...)
	}
	return &secretsmanager.PutSecretValueOutput{}, nil
}

func TestNewCredentialStore(t *testing.T) {
	t.Parallel()

	codec := credentials.NewCodec(nil)

	tests := map[string]struct {
		client  SecretsManagerAPI
		codec   *credentials.Codec
		errMsg  string
		prefix  string
		wantErr bool
	}{
		"valid inputs": {
			client: &mockSecretsManagerClient{},
			codec:  codec,
			prefix: "donorbridge",
		},
		"nil client": {
			codec:   codec,
			errMsg:  "secrets manager client is required",
			prefix:  "donorbridge",
			wantErr: true,
		},
		"nil codec": {
			client:  &mockSecretsManagerClient{},
			errMsg:  "credential codec is required",
			prefix:  "donorbridge",
			wantErr: true,
		},
		"empty prefix": {
			client:  &mockSecretsManagerClient{},
			codec:   codec,
			errMsg:  "secret prefix is required",
			wantErr: true,
		},
	}

	for name, tc := range tests {
		tc := tc
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			store, err := NewCredentialStore(tc.client, tc.codec, tc.prefix)

			if tc.wantErr {
				require.Error(t, err)
				require.Contains(t, err.Error(), tc.errMsg)
				require.Nil(t, store)
			} else {
				require.NoError(t, err)
				require.NotNil(t, store)
			}
		})
	}
}

func TestCredentialStore_RoundTrip(t *testing.T) {
	t.Parallel()

	codec := credentials.NewCodec(nil)
	secrets := map[string]string{}

	client := &mockSecretsManagerClient{
		getSecretValueFunc: func(_ context.Context, params *secretsmanager.GetSecretValueInput, _ ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error) {
			value, ok := secrets[*params.SecretId]
			if !ok {
				return nil, errors.New("secret not found")
			}
			return &secretsmanager.GetSecretValueOutput{SecretString: aws.String(value)}, nil
		},
		putSecretValueFunc: func(_ context.Context, params *secretsmanager.PutSecretValueInput, _ ...func(*secretsmanager.Options)) (*secretsmanager.PutSecretValueOutput, error) {
			secrets[*params.SecretId] = *params.SecretString
			return &secretsmanager.PutSecretValueOutput{}, nil
		},
	}

	store, err := NewCredentialStore(client, codec, "donorbridge")
	require.NoError(t, err)

	fields := credentials.Fields{
		"apiKey": "super-secret-key",
		"orgId":  "org-42",
	}
	require.NoError(t, store.SaveCredentials(context.Background(), "user-1", canonical.ProviderNeon, fields))

	// The stored token is opaque, never the raw fields.
	stored := secrets["donorbridge/user-1/neon"]
	require.NotEmpty(t, stored)
	require.NotContains(t, stored, "super-secret-key")

	got, err := store.Credentials(context.Background(), "user-1", canonical.ProviderNeon)
	require.NoError(t, err)
	require.Equal(t, fields, got)
}

func TestCredentialStore_Credentials(t *testing.T) {
	t.Parallel()

	codec := credentials.NewCodec(nil)

	tests := map[string]struct {
		client   *mockSecretsManagerClient
		errMsg   string
		provider canonical.Provider
		userID   string
	}{
		"missing user id": {
			client: &mockSecretsManagerClient{},
			errMsg: "user ID is required",

			provider: canonical.ProviderNeon,
		},
		"missing provider": {
			client: &mockSecretsManagerClient{},
			errMsg: "provider is required",
			userID: "user-1",
		},
		"api error": {
			client: &mockSecretsManagerClient{
				getSecretValueFunc: func(_ context.Context, _ *secretsmanager.GetSecretValueInput, _ ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error) {
					return nil, errors.New("access denied")
				},
			},
			errMsg:   "getting secret from Secrets Manager",
			provider: canonical.ProviderNeon,
			userID:   "user-1",
		},
		"no string value": {
			client:   &mockSecretsManagerClient{},
			errMsg:   "secret has no string value",
			provider: canonical.ProviderNeon,
			userID:   "user-1",
		},
		"malformed token": {
			client: &mockSecretsManagerClient{
				getSecretValueFunc: func(_ context.Context, _ *secretsmanager.GetSecretValueInput, _ ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error) {
					return &secretsmanager.GetSecretValueOutput{SecretString: aws.String("v2:not-base64!!")}, nil
				},
			},
			errMsg:   "decoding credential token",
			provider: canonical.ProviderNeon,
			userID:   "user-1",
		},
	}

	for name, tc := range tests {
		tc := tc
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			store, err := NewCredentialStore(tc.client, codec, "donorbridge")
			require.NoError(t, err)

			fields, err := store.Credentials(context.Background(), tc.userID, tc.provider)
			require.ErrorContains(t, err, tc.errMsg)
			require.Nil(t, fields)
		})
	}
}
