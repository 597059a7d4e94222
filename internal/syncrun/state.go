package syncrun

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/donorbridge/donorbridge/internal/canonical"
)

// Phase is the current stage of a sync run.
type Phase string

const (
	// PhaseConstituents is the first stage: syncing constituent records.
	PhaseConstituents Phase = "constituents"

	// PhaseDonations is the second stage: syncing donation records.
	PhaseDonations Phase = "donations"

	// PhaseComplete means the run finished.
	PhaseComplete Phase = "complete"

	// PhaseFailed means the run ended with a terminal error or abort.
	PhaseFailed Phase = "failed"
)

// SyncError is one record-level error recorded during a run.
type SyncError struct {
	// Code classifies the error, if known (e.g. "upsert", "map").
	Code string

	// Message is the sanitized error message.
	Message string

	// Recoverable reports whether the failure was transient.
	Recoverable bool

	// RecordID is the vendor record identifier, if known.
	RecordID string

	// Timestamp is when the error was recorded.
	Timestamp time.Time
}

// State is the transient, per-invocation run state. It is created at run
// start, mutated by every batch outcome, consulted by the failure-threshold
// monitor, and discarded at run end.
type State struct {
	// CurrentBatch is the batch being processed within the current phase.
	CurrentBatch int

	// Errors is the ordered list of record-level errors.
	Errors []SyncError

	// FailedRecords counts records that could not be processed.
	FailedRecords int

	// Phase is the current run stage.
	Phase Phase

	// ProcessedRecords counts records successfully processed.
	ProcessedRecords int

	// Provider is the vendor being synced.
	Provider canonical.Provider

	// RequestID uniquely identifies the run.
	RequestID string

	// StartedAt is when the run began.
	StartedAt time.Time

	// TotalBatches is the batch count so far within the current phase.
	TotalBatches int

	// TotalRecords counts records attempted (processed + failed).
	TotalRecords int

	// unrecoverableStreak counts consecutive non-recoverable errors.
	unrecoverableStreak int
}

// NewState creates run state with a fresh request ID.
func NewState(provider canonical.Provider) *State {
	return &State{
		Phase:     PhaseConstituents,
		Provider:  provider,
		RequestID: newRequestID(provider),
		StartedAt: time.Now(),
	}
}

// RecordSuccess counts one successfully processed record and breaks any
// consecutive-failure streak.
func (s *State) RecordSuccess() {
	s.ProcessedRecords++
	s.TotalRecords++
	s.unrecoverableStreak = 0
}

// RecordFailure counts one failed record and extends or breaks the
// consecutive unrecoverable-failure streak depending on recoverability.
func (s *State) RecordFailure(e SyncError) {
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}
	s.Errors = append(s.Errors, e)
	s.FailedRecords++
	s.TotalRecords++

	if e.Recoverable {
		s.unrecoverableStreak = 0
	} else {
		s.unrecoverableStreak++
	}
}

// UnrecoverableStreak returns the current run of consecutive non-recoverable
// record errors.
func (s *State) UnrecoverableStreak() int {
	return s.unrecoverableStreak
}

// newRequestID builds a globally unique run identifier embedding the
// provider and start time, e.g. "neon-1711034096123-3f9a2c1b".
func newRequestID(provider canonical.Provider) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return fmt.Sprintf("%s-%d-%s", provider, time.Now().UnixMilli(), suffix)
}
