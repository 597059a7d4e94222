package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/donorbridge/donorbridge/internal/canonical"
)

func TestFileStateStore_RoundTrip(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "state", "checkpoints.json")

	store, err := NewFileStateStore(path, canonical.ProviderNeon)
	require.NoError(t, err)

	// Missing file reads as never-synced.
	got, err := store.LastSyncTime(context.Background())
	require.NoError(t, err)
	require.True(t, got.IsZero())

	checkpoint := time.Date(2026, 7, 15, 10, 30, 0, 0, time.UTC)
	require.NoError(t, store.SetLastSyncTime(context.Background(), checkpoint))

	got, err = store.LastSyncTime(context.Background())
	require.NoError(t, err)
	require.True(t, checkpoint.Equal(got))
}

func TestFileStateStore_PreservesOtherProviders(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "checkpoints.json")

	neonStore, err := NewFileStateStore(path, canonical.ProviderNeon)
	require.NoError(t, err)
	kindfulStore, err := NewFileStateStore(path, canonical.ProviderKindful)
	require.NoError(t, err)

	neonTime := time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC)
	kindfulTime := time.Date(2026, 7, 2, 0, 0, 0, 0, time.UTC)

	require.NoError(t, neonStore.SetLastSyncTime(context.Background(), neonTime))
	require.NoError(t, kindfulStore.SetLastSyncTime(context.Background(), kindfulTime))

	got, err := neonStore.LastSyncTime(context.Background())
	require.NoError(t, err)
	require.True(t, neonTime.Equal(got))
}

func TestFileStateStore_RejectsCorruptFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "checkpoints.json")
	require.NoError(t, os.WriteFile(path, []byte("not json"), 0o600))

	store, err := NewFileStateStore(path, canonical.ProviderNeon)
	require.NoError(t, err)

	_, err = store.LastSyncTime(context.Background())
	require.ErrorContains(t, err, "parsing state file")
}

func TestNewFileStateStoreValidation(t *testing.T) {
	t.Parallel()

	_, err := NewFileStateStore("", canonical.ProviderNeon)
	require.ErrorContains(t, err, "state file path is required")

	_, err = NewFileStateStore("state.json", "")
	require.ErrorContains(t, err, "provider is required")
}

func TestNoopStateStore(t *testing.T) {
	t.Parallel()

	since := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	store := NewNoopStateStore(since)

	got, err := store.LastSyncTime(context.Background())
	require.NoError(t, err)
	require.True(t, since.Equal(got))

	require.NoError(t, store.SetLastSyncTime(context.Background(), time.Now()))

	// The reported time never moves.
	got, err = store.LastSyncTime(context.Background())
	require.NoError(t, err)
	require.True(t, since.Equal(got))
}

func TestNewRedisStateStoreValidation(t *testing.T) {
	t.Parallel()

	_, err := NewRedisStateStore(nil, "donorbridge", canonical.ProviderNeon)
	require.ErrorContains(t, err, "redis client is required")
}
