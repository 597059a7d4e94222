package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/aws/aws-sdk-go-v2/service/ssm/types"

	"github.com/donorbridge/donorbridge/internal/canonical"
)

// SSMAPI defines the SSM operations used by the state store.
type SSMAPI interface {
	// GetParameter retrieves a parameter from SSM.
	GetParameter(
		ctx context.Context,
		params *ssm.GetParameterInput,
		optFns ...func(*ssm.Options),
	) (*ssm.GetParameterOutput, error)

	// PutParameter stores a parameter in SSM.
	PutParameter(
		ctx context.Context,
		params *ssm.PutParameterInput,
		optFns ...func(*ssm.Options),
	) (*ssm.PutParameterOutput, error)
}

// StateStore keeps one provider's sync checkpoint in AWS SSM Parameter
// Store. Each provider gets its own parameter so checkpoints never cross
// between integrations.
type StateStore struct {
	// client is the SSM API client.
	client SSMAPI

	// parameterName is the SSM parameter holding the last sync time.
	parameterName string
}

// NewStateStore creates an SSM-backed state store for one provider. The
// parameter name is "<prefix>/<provider>/last-sync-time".
func NewStateStore(client SSMAPI, prefix string, provider canonical.Provider) (*StateStore, error) {
	if client == nil {
		return nil, errors.New("ssm client is required")
	}
	if prefix == "" {
		return nil, errors.New("parameter prefix is required")
	}
	if provider == "" {
		return nil, errors.New("provider is required")
	}

	return &StateStore{
		client:        client,
		parameterName: fmt.Sprintf("%s/%s/last-sync-time", prefix, provider),
	}, nil
}

// LastSyncTime returns the checkpoint of the last successful sync. A missing
// parameter means the provider has never completed a run and returns the
// zero time.
func (s *StateStore) LastSyncTime(ctx context.Context) (time.Time, error) {
	output, err := s.client.GetParameter(ctx, &ssm.GetParameterInput{
		Name: aws.String(s.parameterName),
	})
	if err != nil {
		var notFoundErr *types.ParameterNotFound
		if errors.As(err, &notFoundErr) {
			return time.Time{}, nil
		}
		return time.Time{}, fmt.Errorf("getting parameter from SSM: %w", err)
	}

	if output.Parameter == nil || output.Parameter.Value == nil {
		return time.Time{}, nil
	}

	t, err := time.Parse(time.RFC3339, *output.Parameter.Value)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing time from parameter: %w", err)
	}

	return t, nil
}

// SetLastSyncTime advances the checkpoint.
func (s *StateStore) SetLastSyncTime(ctx context.Context, t time.Time) error {
	_, err := s.client.PutParameter(ctx, &ssm.PutParameterInput{
		Name:      aws.String(s.parameterName),
		Overwrite: aws.Bool(true),
		Type:      types.ParameterTypeString,
		Value:     aws.String(t.Format(time.RFC3339)),
	})
	if err != nil {
		return fmt.Errorf("putting parameter to SSM: %w", err)
	}

	return nil
}
