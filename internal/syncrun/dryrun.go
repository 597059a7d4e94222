package syncrun

import (
	"context"
	"log/slog"

	"github.com/donorbridge/donorbridge/internal/canonical"
)

// dryRunStore wraps a RecordStore and logs write operations instead of
// executing them.
type dryRunStore struct {
	logger *slog.Logger
	store  RecordStore
}

// newDryRunStore creates a dryRunStore that wraps the given RecordStore.
func newDryRunStore(store RecordStore, logger *slog.Logger) *dryRunStore {
	return &dryRunStore{
		logger: logger,
		store:  store,
	}
}

// UpsertConstituent logs what would be written.
func (d *dryRunStore) UpsertConstituent(_ context.Context, c *canonical.Constituent) error {
	d.logger.Info("[DRY-RUN] would upsert constituent",
		"provider", c.Provider,
		"external_id", c.ExternalID,
		"first_name", c.FirstName,
		"last_name", c.LastName,
		"email", c.Email)
	return nil
}

// UpsertDonation logs what would be written.
func (d *dryRunStore) UpsertDonation(_ context.Context, don *canonical.Donation) error {
	d.logger.Info("[DRY-RUN] would upsert donation",
		"provider", don.Provider,
		"external_id", don.ExternalID,
		"constituent_external_id", don.ConstituentExternalID,
		"amount", don.Amount,
		"type", don.Type,
		"status", don.Status)
	return nil
}
