// Package syncrun orchestrates one provider sync run: paced, retried,
// breaker-gated page fetches, canonical normalization, and run-level
// abort decisions.
package syncrun

import (
	"context"
	"time"

	"github.com/donorbridge/donorbridge/internal/canonical"
	"github.com/donorbridge/donorbridge/internal/vendors"
)

// Adapter is the contract every vendor adapter must satisfy. Adapters
// translate vendor wire formats; the engine never sees them.
type Adapter interface {
	// FetchConstituents fetches one page of raw constituent records changed
	// since the given time.
	FetchConstituents(ctx context.Context, since time.Time, cursor string) (*vendors.Page, error)

	// FetchDonations fetches one page of raw donation records changed since
	// the given time.
	FetchDonations(ctx context.Context, since time.Time, cursor string) (*vendors.Page, error)

	// MapConstituent maps a raw vendor record into the canonical model.
	// Data-quality issues must be recovered with fallbacks inside the
	// mapping, never returned as errors.
	MapConstituent(raw vendors.RawRecord) (*canonical.Constituent, error)

	// MapDonation maps a raw vendor record into the canonical model.
	MapDonation(raw vendors.RawRecord) (*canonical.Donation, error)

	// Provider identifies the vendor.
	Provider() canonical.Provider

	// ValidateCredentials verifies the stored credentials against the
	// vendor API.
	ValidateCredentials(ctx context.Context) error
}

// RecordStore persists canonical records, upserting by the
// (provider, externalId) identity key.
type RecordStore interface {
	// UpsertConstituent writes or overwrites a constituent.
	UpsertConstituent(ctx context.Context, c *canonical.Constituent) error

	// UpsertDonation writes or overwrites a donation.
	UpsertDonation(ctx context.Context, d *canonical.Donation) error
}

// StateStore persists the sync checkpoint between runs.
type StateStore interface {
	// LastSyncTime returns the timestamp of the last successful sync.
	LastSyncTime(ctx context.Context) (time.Time, error)

	// SetLastSyncTime updates the last sync timestamp.
	SetLastSyncTime(ctx context.Context, t time.Time) error
}

// Outcome is the final disposition of a sync run. Aborted is distinct from
// failed: partial success is preserved and reported with counts.
type Outcome string

const (
	// OutcomeAborted means the failure-threshold monitor stopped the run.
	OutcomeAborted Outcome = "aborted"

	// OutcomeCompleted means the run finished, including governor stops.
	OutcomeCompleted Outcome = "completed"

	// OutcomeFailed means a terminal error ended the run.
	OutcomeFailed Outcome = "failed"
)

// Result is the outcome of one sync run.
type Result struct {
	// AbortReason is the human-readable reason when Outcome is aborted.
	AbortReason string

	// ConstituentsSynced is the number of constituents upserted.
	ConstituentsSynced int

	// DonationsSynced is the number of donations upserted.
	DonationsSynced int

	// DryRun indicates no writes were performed.
	DryRun bool

	// Errors is the ordered list of record-level errors.
	Errors []SyncError

	// FailedRecords is the number of records that could not be processed.
	FailedRecords int

	// Outcome is the final run disposition.
	Outcome Outcome

	// PagesFetched is the total vendor pages fetched across both phases.
	PagesFetched int

	// RequestID identifies the run in logs.
	RequestID string

	// RollbackSignaled reports that the abort policy asked the storage
	// layer to treat this run's writes as provisional.
	RollbackSignaled bool

	// StopReasons lists any pagination-governor stop reasons, per phase.
	StopReasons []string
}
