package storage

import (
	"context"
	"time"
)

// NoopStateStore is a state store that never persists anything. Used when a
// run supplies an explicit since override and must not touch the stored
// checkpoint.
type NoopStateStore struct {
	since time.Time
}

// NewNoopStateStore creates a NoopStateStore reporting the given time.
func NewNoopStateStore(since time.Time) *NoopStateStore {
	return &NoopStateStore{since: since}
}

// LastSyncTime returns the configured time.
func (s *NoopStateStore) LastSyncTime(_ context.Context) (time.Time, error) {
	return s.since, nil
}

// SetLastSyncTime does nothing.
func (s *NoopStateStore) SetLastSyncTime(_ context.Context, _ time.Time) error {
	return nil
}
