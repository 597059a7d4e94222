package storage

import (
	"context"
	"sync"

	"github.com/donorbridge/donorbridge/internal/canonical"
)

// MemoryRecordStore keeps canonical records in process memory. It backs
// local CLI runs without AWS access and tests that need to inspect what a
// run wrote.
type MemoryRecordStore struct {
	mu sync.Mutex

	constituents map[string]*canonical.Constituent
	donations    map[string]*canonical.Donation
}

// NewMemoryRecordStore creates an empty in-memory record store.
func NewMemoryRecordStore() *MemoryRecordStore {
	return &MemoryRecordStore{
		constituents: make(map[string]*canonical.Constituent),
		donations:    make(map[string]*canonical.Donation),
	}
}

// UpsertConstituent writes a constituent, replacing any previous version.
func (s *MemoryRecordStore) UpsertConstituent(_ context.Context, c *canonical.Constituent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.constituents[c.Key()] = c
	return nil
}

// UpsertDonation writes a donation, replacing any previous version.
func (s *MemoryRecordStore) UpsertDonation(_ context.Context, d *canonical.Donation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.donations[d.Key()] = d
	return nil
}

// Counts returns the number of stored constituents and donations.
func (s *MemoryRecordStore) Counts() (constituents int, donations int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.constituents), len(s.donations)
}
