package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/donorbridge/donorbridge/internal/canonical"
)

// FileStateStore keeps per-provider sync checkpoints in a local JSON file.
// It backs CLI runs on a workstation where no SSM or Redis is available.
type FileStateStore struct {
	path     string
	provider canonical.Provider
}

// NewFileStateStore creates a file-backed state store for one provider.
func NewFileStateStore(path string, provider canonical.Provider) (*FileStateStore, error) {
	if path == "" {
		return nil, errors.New("state file path is required")
	}
	if provider == "" {
		return nil, errors.New("provider is required")
	}
	return &FileStateStore{path: path, provider: provider}, nil
}

// LastSyncTime returns the checkpoint for this provider, or the zero time
// when the file or the provider's entry does not exist.
func (s *FileStateStore) LastSyncTime(_ context.Context) (time.Time, error) {
	checkpoints, err := s.read()
	if err != nil {
		return time.Time{}, err
	}

	value, ok := checkpoints[string(s.provider)]
	if !ok {
		return time.Time{}, nil
	}

	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing checkpoint for %s: %w", s.provider, err)
	}

	return t, nil
}

// SetLastSyncTime advances the checkpoint for this provider, preserving
// other providers' entries.
func (s *FileStateStore) SetLastSyncTime(_ context.Context, t time.Time) error {
	checkpoints, err := s.read()
	if err != nil {
		return err
	}

	checkpoints[string(s.provider)] = t.Format(time.RFC3339)

	data, err := json.MarshalIndent(checkpoints, "", "  ")
	if err != nil {
		return fmt.Errorf("serializing checkpoints: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("creating state directory: %w", err)
	}

	if err := os.WriteFile(s.path, data, 0o600); err != nil {
		return fmt.Errorf("writing state file: %w", err)
	}

	return nil
}

// read loads the checkpoint file, treating a missing file as empty.
func (s *FileStateStore) read() (map[string]string, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]string{}, nil
		}
		return nil, fmt.Errorf("reading state file: %w", err)
	}

	checkpoints := map[string]string{}
	if err := json.Unmarshal(data, &checkpoints); err != nil {
		return nil, fmt.Errorf("parsing state file: %w", err)
	}

	return checkpoints, nil
}
