package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/donorbridge/donorbridge/internal/canonical"
)

// RedisStateStore keeps one provider's sync checkpoint in Redis. It serves
// deployments that already run Redis and want checkpoint reads off the AWS
// API path; the SSM store remains the default.
type RedisStateStore struct {
	// client is the Redis client.
	client redis.UniversalClient

	// key is the Redis key holding the last sync time.
	key string
}

// NewRedisStateStore creates a Redis-backed state store for one provider.
// The key is "<prefix>:lastsync:<provider>".
func NewRedisStateStore(client redis.UniversalClient, prefix string, provider canonical.Provider) (*RedisStateStore, error) {
	if client == nil {
		return nil, errors.New("redis client is required")
	}
	if prefix == "" {
		return nil, errors.New("key prefix is required")
	}
	if provider == "" {
		return nil, errors.New("provider is required")
	}

	return &RedisStateStore{
		client: client,
		key:    fmt.Sprintf("%s:lastsync:%s", prefix, provider),
	}, nil
}

// LastSyncTime returns the checkpoint of the last successful sync, or the
// zero time when no run has completed yet.
func (s *RedisStateStore) LastSyncTime(ctx context.Context) (time.Time, error) {
	value, err := s.client.Get(ctx, s.key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return time.Time{}, nil
		}
		return time.Time{}, fmt.Errorf("getting checkpoint from redis: %w", err)
	}

	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing checkpoint value: %w", err)
	}

	return t, nil
}

// SetLastSyncTime advances the checkpoint.
func (s *RedisStateStore) SetLastSyncTime(ctx context.Context, t time.Time) error {
	if err := s.client.Set(ctx, s.key, t.Format(time.RFC3339), 0).Err(); err != nil {
		return fmt.Errorf("setting checkpoint in redis: %w", err)
	}
	return nil
}
