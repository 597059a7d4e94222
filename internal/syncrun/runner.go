package syncrun

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/donorbridge/donorbridge/internal/breaker"
	"github.com/donorbridge/donorbridge/internal/metrics"
	"github.com/donorbridge/donorbridge/internal/pagination"
	"github.com/donorbridge/donorbridge/internal/ratelimit"
	"github.com/donorbridge/donorbridge/internal/redact"
	"github.com/donorbridge/donorbridge/internal/retry"
	"github.com/donorbridge/donorbridge/internal/vendors"
)

// defaultSyncDays is how far back the first sync of a provider reaches.
const defaultSyncDays = -30

// Config holds the required configuration for creating a Runner.
type Config struct {
	// Adapter is the vendor adapter to sync from.
	Adapter Adapter

	// Breakers is the process-wide circuit breaker registry.
	Breakers *breaker.Registry

	// DryRun indicates whether to skip writes to the record store.
	DryRun bool

	// Limits are the pagination safety ceilings.
	Limits pagination.Limits

	// Logger is the structured logger for the run.
	Logger *slog.Logger

	// Monitor is the failure-threshold monitor. Defaults apply when nil.
	Monitor *Monitor

	// Pacer is the shared per-service rate limiter.
	Pacer *ratelimit.Pacer

	// Records is the canonical record store.
	Records RecordStore

	// Retry configures per-request retry behavior.
	Retry retry.Config

	// SinceOverride optionally overrides the last sync checkpoint.
	SinceOverride *time.Time

	// States persists the sync checkpoint between runs.
	States StateStore
}

// validate checks that all required Config fields are set.
func (c *Config) validate() error {
	var errs []error
	if c.Adapter == nil {
		errs = append(errs, errors.New("adapter is required"))
	}
	if c.Breakers == nil {
		errs = append(errs, errors.New("breaker registry is required"))
	}
	if c.Pacer == nil {
		errs = append(errs, errors.New("pacer is required"))
	}
	if c.Records == nil {
		errs = append(errs, errors.New("record store is required"))
	}
	if c.States == nil {
		errs = append(errs, errors.New("state store is required"))
	}
	return errors.Join(errs...)
}

// Runner executes one provider sync run: constituents first, then
// donations, with every page fetch paced, retried, and breaker-gated, and
// every batch reported to the failure-threshold monitor.
type Runner struct {
	adapter  Adapter
	breakers *breaker.Registry
	dryRun   bool
	limits   pagination.Limits
	logger   *slog.Logger
	monitor  *Monitor
	pacer    *ratelimit.Pacer
	records  RecordStore
	retryCfg retry.Config
	service  string
	since    *time.Time
	states   StateStore
}

// New creates a sync runner.
func New(cfg Config) (*Runner, error) {
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	monitor := cfg.Monitor
	if monitor == nil {
		monitor = NewMonitor(MonitorConfig{})
	}

	records := cfg.Records
	if cfg.DryRun {
		records = newDryRunStore(cfg.Records, logger)
	}

	service := string(cfg.Adapter.Provider())
	retryCfg := cfg.Retry
	if retryCfg.Service == "" {
		retryCfg.Service = service
	}
	if retryCfg.Logger == nil {
		retryCfg.Logger = logger
	}

	return &Runner{
		adapter:  cfg.Adapter,
		breakers: cfg.Breakers,
		dryRun:   cfg.DryRun,
		limits:   cfg.Limits,
		logger:   logger,
		monitor:  monitor,
		pacer:    cfg.Pacer,
		records:  records,
		retryCfg: retryCfg,
		service:  service,
		since:    cfg.SinceOverride,
		states:   cfg.States,
	}, nil
}

// phase bundles the fetch and process steps for one run stage.
type phase struct {
	fetch   func(ctx context.Context, since time.Time, cursor string) (*vendors.Page, error)
	kind    string
	name    Phase
	process func(ctx context.Context, raw vendors.RawRecord) (recordID string, err error)
}

// Run executes a full sync cycle and returns its result. An aborted run is
// a distinguished outcome, not an error: partial progress is preserved and
// reported with counts.
func (r *Runner) Run(ctx context.Context) (*Result, error) {
	state := NewState(r.adapter.Provider())
	result := &Result{DryRun: r.dryRun, RequestID: state.RequestID}

	start := time.Now()
	defer func() {
		metrics.RunDuration.WithLabelValues(r.service).Observe(time.Since(start).Seconds())
		metrics.SyncRunsTotal.WithLabelValues(r.service, string(result.Outcome)).Inc()
	}()

	logger := r.logger.With("request_id", state.RequestID, "provider", r.service)

	since, err := r.resolveSince(ctx, logger)
	if err != nil {
		result.Outcome = OutcomeFailed
		return result, err
	}

	logger.Info("starting sync run", "since", since, "dry_run", r.dryRun)

	if err := r.validateCredentials(ctx); err != nil {
		state.Phase = PhaseFailed
		result.Outcome = OutcomeFailed
		return result, fmt.Errorf("validating %s credentials: %w", r.service, err)
	}

	phases := []phase{
		{
			fetch: r.adapter.FetchConstituents,
			kind:  "constituent",
			name:  PhaseConstituents,
			process: func(ctx context.Context, raw vendors.RawRecord) (string, error) {
				c, err := r.adapter.MapConstituent(raw)
				if err != nil {
					return "", fmt.Errorf("mapping constituent: %w", err)
				}
				if err := r.records.UpsertConstituent(ctx, c); err != nil {
					return c.ExternalID, fmt.Errorf("upserting constituent: %w", err)
				}
				result.ConstituentsSynced++
				return c.ExternalID, nil
			},
		},
		{
			fetch: r.adapter.FetchDonations,
			kind:  "donation",
			name:  PhaseDonations,
			process: func(ctx context.Context, raw vendors.RawRecord) (string, error) {
				d, err := r.adapter.MapDonation(raw)
				if err != nil {
					return "", fmt.Errorf("mapping donation: %w", err)
				}
				if err := r.records.UpsertDonation(ctx, d); err != nil {
					return d.ExternalID, fmt.Errorf("upserting donation: %w", err)
				}
				result.DonationsSynced++
				return d.ExternalID, nil
			},
		},
	}

	for _, ph := range phases {
		state.Phase = ph.name
		abort, err := r.runPhase(ctx, logger, state, result, since, ph)
		if err != nil {
			state.Phase = PhaseFailed
			result.Outcome = OutcomeFailed
			result.Errors = state.Errors
			result.FailedRecords = state.FailedRecords
			return result, err
		}
		if abort.Abort {
			state.Phase = PhaseFailed
			result.AbortReason = abort.Reason
			result.Errors = state.Errors
			result.FailedRecords = state.FailedRecords
			result.Outcome = OutcomeAborted
			result.RollbackSignaled = abort.Rollback
			logger.Warn("sync aborted", "reason", abort.Reason, "rollback", abort.Rollback)
			return result, nil
		}
	}

	state.Phase = PhaseComplete
	result.Errors = state.Errors
	result.FailedRecords = state.FailedRecords
	result.Outcome = OutcomeCompleted

	if !r.dryRun {
		if err := r.states.SetLastSyncTime(ctx, start); err != nil {
			return result, fmt.Errorf("updating last sync time: %w", err)
		}
	}

	logger.Info("sync run completed",
		"constituents_synced", result.ConstituentsSynced,
		"donations_synced", result.DonationsSynced,
		"failed_records", result.FailedRecords,
		"pages_fetched", result.PagesFetched,
		"stop_reasons", result.StopReasons)

	return result, nil
}

// runPhase drives the paging loop for one phase. Pages are fetched strictly
// sequentially: the governor check for page N+1 never races page N.
func (r *Runner) runPhase(
	ctx context.Context,
	logger *slog.Logger,
	state *State,
	result *Result,
	since time.Time,
	ph phase,
) (Abort, error) {
	var (
		consecutiveEmpty int
		cursor           string
		iterations       int
		recordsFetched   int
	)

	state.CurrentBatch = 0
	state.TotalBatches = 0

	for {
		if d := pagination.ShouldContinue(recordsFetched, iterations, consecutiveEmpty, r.limits); !d.Continue {
			logger.Info("pagination governor stopped paging",
				"phase", ph.name, "reason", d.Reason,
				"pages", iterations, "records", recordsFetched)
			result.StopReasons = append(result.StopReasons, fmt.Sprintf("%s: %s", ph.name, d.Reason))
			return Abort{}, nil
		}

		if err := r.pacer.Wait(ctx, r.service); err != nil {
			return Abort{}, err
		}

		page, err := r.fetchPage(ctx, since, cursor, ph.fetch)
		if err != nil {
			return Abort{}, fmt.Errorf("fetching %s page %d: %w", ph.kind, iterations+1, err)
		}

		iterations++
		result.PagesFetched++
		state.CurrentBatch = iterations
		state.TotalBatches = iterations
		metrics.PagesFetched.WithLabelValues(r.service, string(ph.name)).Inc()

		if len(page.Records) == 0 {
			consecutiveEmpty++
		} else {
			consecutiveEmpty = 0
		}
		recordsFetched += len(page.Records)

		for _, raw := range page.Records {
			recordID, err := ph.process(ctx, raw)
			if err != nil {
				recoverable := retry.Retryable(err)
				state.RecordFailure(SyncError{
					Code:        ph.kind,
					Message:     redact.Error(err),
					Recoverable: recoverable,
					RecordID:    recordID,
				})
				metrics.RecordsProcessed.WithLabelValues(r.service, ph.kind, "failed").Inc()
				logger.Error("failed to process record",
					"phase", ph.name,
					"record_id", recordID,
					"recoverable", recoverable,
					"error", redact.Error(err))
			} else {
				state.RecordSuccess()
				metrics.RecordsProcessed.WithLabelValues(r.service, ph.kind, "ok").Inc()
			}

			if abort := r.monitor.ShouldAbort(state); abort.Abort {
				return abort, nil
			}
		}

		if !page.HasMore && page.NextCursor == "" {
			return Abort{}, nil
		}
		cursor = page.NextCursor
	}
}

// fetchPage executes a single page fetch through the circuit breaker and
// retry policy. The breaker sees only success or failure, recorded
// immediately after each attempt.
func (r *Runner) fetchPage(
	ctx context.Context,
	since time.Time,
	cursor string,
	fetch func(context.Context, time.Time, string) (*vendors.Page, error),
) (*vendors.Page, error) {
	return retry.Do(ctx, r.retryCfg, func(ctx context.Context) (*vendors.Page, error) {
		b := r.breakers.Get(r.service)
		if err := b.Allow(); err != nil {
			return nil, err
		}
		page, err := fetch(ctx, since, cursor)
		if err != nil {
			b.RecordFailure()
			return nil, err
		}
		b.RecordSuccess()
		return page, nil
	})
}

// validateCredentials checks stored credentials against the vendor API,
// through the same breaker and retry gate as page fetches.
func (r *Runner) validateCredentials(ctx context.Context) error {
	_, err := retry.Do(ctx, r.retryCfg, func(ctx context.Context) (struct{}, error) {
		b := r.breakers.Get(r.service)
		if err := b.Allow(); err != nil {
			return struct{}{}, err
		}
		if err := r.adapter.ValidateCredentials(ctx); err != nil {
			b.RecordFailure()
			return struct{}{}, err
		}
		b.RecordSuccess()
		return struct{}{}, nil
	})
	return err
}

// resolveSince determines the sync window start from the override, the
// checkpoint store, or the initial-sync default.
func (r *Runner) resolveSince(ctx context.Context, logger *slog.Logger) (time.Time, error) {
	if r.since != nil {
		logger.Info("using override sync time", "since", *r.since)
		return *r.since, nil
	}

	since, err := r.states.LastSyncTime(ctx)
	if err != nil {
		return time.Time{}, fmt.Errorf("getting last sync time: %w", err)
	}

	if since.IsZero() {
		since = time.Now().AddDate(0, 0, defaultSyncDays)
		logger.Info("initial sync detected", "since", since)
	}

	return since, nil
}
