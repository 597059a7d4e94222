package syncrun

import "fmt"

const (
	// DefaultFailureThreshold is the failure-rate fraction that aborts a run.
	DefaultFailureThreshold = 0.10

	// DefaultMaxConsecutiveFailures is the unrecoverable-streak length that
	// aborts a run regardless of the overall rate.
	DefaultMaxConsecutiveFailures = 5

	// DefaultMinRecordsForThreshold is the minimum attempted-record count
	// before the rate trigger can fire. Small syncs never abort on rate.
	DefaultMinRecordsForThreshold = 10
)

// MonitorConfig tunes the failure-threshold monitor.
type MonitorConfig struct {
	// EnableRollbackOnThreshold asks the storage layer to treat an aborted
	// run's writes as provisional. The engine only signals the decision;
	// the rollback mechanism itself lives in the storage layer.
	EnableRollbackOnThreshold bool

	// FailureThreshold is the failure-rate fraction that aborts the run.
	// Default 0.10.
	FailureThreshold float64

	// MaxConsecutiveFailures is the unrecoverable-streak length that aborts
	// the run. Default 5.
	MaxConsecutiveFailures int

	// MinRecordsForThreshold is the minimum attempted-record count before
	// the rate trigger applies. Default 10.
	MinRecordsForThreshold int
}

// withDefaults fills zero-valued fields.
func (c MonitorConfig) withDefaults() MonitorConfig {
	if c.FailureThreshold <= 0 {
		c.FailureThreshold = DefaultFailureThreshold
	}
	if c.MaxConsecutiveFailures <= 0 {
		c.MaxConsecutiveFailures = DefaultMaxConsecutiveFailures
	}
	if c.MinRecordsForThreshold <= 0 {
		c.MinRecordsForThreshold = DefaultMinRecordsForThreshold
	}
	return c
}

// Abort is the monitor's verdict after a record or batch attempt.
type Abort struct {
	// Abort reports whether the run should stop.
	Abort bool

	// Reason is a human-readable explanation when Abort is true.
	Reason string

	// Rollback reports that already-written records of this run should be
	// treated as provisional by the storage layer.
	Rollback bool
}

// Monitor decides whether a sync run should abort based on its record-level
// success/failure ratio and consecutive-failure streak. An abort never
// discards records committed before the trigger fired; it only stops
// further work.
type Monitor struct {
	cfg MonitorConfig
}

// NewMonitor creates a failure-threshold monitor.
func NewMonitor(cfg MonitorConfig) *Monitor {
	return &Monitor{cfg: cfg.withDefaults()}
}

// ShouldAbort evaluates the run state after each record or batch attempt.
// Two independent triggers: the failure rate strictly exceeding the
// threshold (once enough records have been attempted), and a streak of
// consecutive non-recoverable errors (regardless of rate).
func (m *Monitor) ShouldAbort(s *State) Abort {
	if streak := s.UnrecoverableStreak(); streak >= m.cfg.MaxConsecutiveFailures {
		return Abort{
			Abort: true,
			Reason: fmt.Sprintf("%d consecutive unrecoverable record errors (limit %d)",
				streak, m.cfg.MaxConsecutiveFailures),
			Rollback: m.cfg.EnableRollbackOnThreshold,
		}
	}

	if s.TotalRecords >= m.cfg.MinRecordsForThreshold {
		rate := float64(s.FailedRecords) / float64(s.TotalRecords)
		if rate > m.cfg.FailureThreshold {
			return Abort{
				Abort: true,
				Reason: fmt.Sprintf("failure rate %.1f%% exceeds threshold %.1f%% (%d of %d records failed)",
					rate*100, m.cfg.FailureThreshold*100, s.FailedRecords, s.TotalRecords),
				Rollback: m.cfg.EnableRollbackOnThreshold,
			}
		}
	}

	return Abort{}
}
