// Package storage provides persistence implementations for the sync engine:
// synced records in DynamoDB, provider credentials in Secrets Manager, and
// sync checkpoints in SSM Parameter Store or Redis.
package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/donorbridge/donorbridge/internal/canonical"
)

const (
	kindConstituent = "constituent"
	kindDonation    = "donation"
)

// DynamoDBAPI defines the DynamoDB operations used by the record store.
type DynamoDBAPI interface {
	// GetItem retrieves an item from DynamoDB.
	GetItem(
		ctx context.Context,
		params *dynamodb.GetItemInput,
		optFns ...func(*dynamodb.Options),
	) (*dynamodb.GetItemOutput, error)

	// PutItem stores an item in DynamoDB.
	PutItem(
		ctx context.Context,
		params *dynamodb.PutItemInput,
		optFns ...func(*dynamodb.Options),
	) (*dynamodb.PutItemOutput, error)

	// Query retrieves items matching a key condition from DynamoDB.
	Query(
		ctx context.Context,
		params *dynamodb.QueryInput,
		optFns ...func(*dynamodb.Options),
	) (*dynamodb.QueryOutput, error)
}

// RecordStore persists canonical records in a single DynamoDB table.
//
// The table is keyed by record_key ("<provider>/<kind>/<external_id>"), so
// re-syncing a record overwrites the previous version rather than
// duplicating it. Donations additionally carry constituent_key, indexed by a
// GSI, so a constituent's giving history can be read back in one query.
type RecordStore struct {
	// client is the DynamoDB API client.
	client DynamoDBAPI

	// indexName is the name of the constituent-key GSI.
	indexName string

	// tableName is the name of the DynamoDB table.
	tableName string
}

// NewRecordStore creates a DynamoDB-backed record store.
func NewRecordStore(client DynamoDBAPI, tableName string, indexName string) (*RecordStore, error) {
	if client == nil {
		return nil, errors.New("dynamodb client is required")
	}
	if tableName == "" {
		return nil, errors.New("table name is required")
	}
	if indexName == "" {
		return nil, errors.New("index name is required")
	}

	return &RecordStore{
		client:    client,
		indexName: indexName,
		tableName: tableName,
	}, nil
}

// UpsertConstituent writes a constituent record, replacing any previous
// version from the same provider.
func (s *RecordStore) UpsertConstituent(ctx context.Context, c *canonical.Constituent) error {
	if c == nil {
		return errors.New("constituent is required")
	}
	if c.ExternalID == "" {
		return errors.New("constituent external ID is required")
	}

	document, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("serializing constituent: %w", err)
	}

	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.tableName),
		Item: map[string]types.AttributeValue{
			"record_key":  &types.AttributeValueMemberS{Value: recordKey(c.Provider, kindConstituent, c.ExternalID)},
			"provider":    &types.AttributeValueMemberS{Value: string(c.Provider)},
			"kind":        &types.AttributeValueMemberS{Value: kindConstituent},
			"external_id": &types.AttributeValueMemberS{Value: c.ExternalID},
			"email":       &types.AttributeValueMemberS{Value: c.Email},
			"synced_at":   &types.AttributeValueMemberS{Value: c.SyncedAt.Format(time.RFC3339)},
			"document":    &types.AttributeValueMemberS{Value: string(document)},
		},
	})
	if err != nil {
		return fmt.Errorf("putting constituent to DynamoDB: %w", err)
	}

	return nil
}

// UpsertDonation writes a donation record, replacing any previous version
// from the same provider.
func (s *RecordStore) UpsertDonation(ctx context.Context, d *canonical.Donation) error {
	if d == nil {
		return errors.New("donation is required")
	}
	if d.ExternalID == "" {
		return errors.New("donation external ID is required")
	}

	document, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("serializing donation: %w", err)
	}

	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.tableName),
		Item: map[string]types.AttributeValue{
			"record_key":      &types.AttributeValueMemberS{Value: recordKey(d.Provider, kindDonation, d.ExternalID)},
			"provider":        &types.AttributeValueMemberS{Value: string(d.Provider)},
			"kind":            &types.AttributeValueMemberS{Value: kindDonation},
			"external_id":     &types.AttributeValueMemberS{Value: d.ExternalID},
			"constituent_key": &types.AttributeValueMemberS{Value: string(d.Provider) + "/" + d.ConstituentExternalID},
			"synced_at":       &types.AttributeValueMemberS{Value: d.SyncedAt.Format(time.RFC3339)},
			"document":        &types.AttributeValueMemberS{Value: string(document)},
		},
	})
	if err != nil {
		return fmt.Errorf("putting donation to DynamoDB: %w", err)
	}

	return nil
}

// Constituent reads back a synced constituent, or nil if it was never
// synced.
func (s *RecordStore) Constituent(ctx context.Context, provider canonical.Provider, externalID string) (*canonical.Constituent, error) {
	if externalID == "" {
		return nil, errors.New("external ID is required")
	}

	output, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.tableName),
		Key: map[string]types.AttributeValue{
			"record_key": &types.AttributeValueMemberS{Value: recordKey(provider, kindConstituent, externalID)},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("getting constituent from DynamoDB: %w", err)
	}

	if output.Item == nil {
		return nil, nil
	}

	var c canonical.Constituent
	if err := unmarshalDocument(output.Item, &c); err != nil {
		return nil, err
	}
	return &c, nil
}

// DonationsForConstituent returns all synced donations linked to one
// constituent within a provider scope.
func (s *RecordStore) DonationsForConstituent(ctx context.Context, provider canonical.Provider, constituentExternalID string) ([]*canonical.Donation, error) {
	if constituentExternalID == "" {
		return nil, errors.New("constituent external ID is required")
	}

	output, err := s.client.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(s.tableName),
		IndexName:              aws.String(s.indexName),
		KeyConditionExpression: aws.String("constituent_key = :ck"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":ck": &types.AttributeValueMemberS{Value: string(provider) + "/" + constituentExternalID},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("querying donations from DynamoDB: %w", err)
	}

	donations := make([]*canonical.Donation, 0, len(output.Items))
	for _, item := range output.Items {
		var d canonical.Donation
		if err := unmarshalDocument(item, &d); err != nil {
			return nil, err
		}
		donations = append(donations, &d)
	}

	return donations, nil
}

// recordKey builds the table's primary key for one record.
func recordKey(provider canonical.Provider, kind string, externalID string) string {
	return string(provider) + "/" + kind + "/" + externalID
}

// unmarshalDocument decodes the JSON document attribute of a stored item.
func unmarshalDocument(item map[string]types.AttributeValue, out any) error {
	attr, ok := item["document"].(*types.AttributeValueMemberS)
	if !ok {
		return errors.New("item has no document attribute")
	}
	if err := json.Unmarshal([]byte(attr.Value), out); err != nil {
		return fmt.Errorf("parsing document: %w", err)
	}
	return nil
}
