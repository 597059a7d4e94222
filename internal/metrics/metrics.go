// Package metrics exposes Prometheus collectors for the sync engine.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// BreakerState tracks the current circuit breaker state per service
	// (0=closed, 1=open, 2=half-open).
	BreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "donorbridge_breaker_state",
			Help: "Circuit breaker state per service (0=closed, 1=open, 2=half-open)",
		},
		[]string{"service"},
	)

	// BreakerTransitionsTotal counts breaker state transitions.
	BreakerTransitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "donorbridge_breaker_transitions_total",
			Help: "Total circuit breaker state transitions",
		},
		[]string{"service", "to"},
	)

	// PagesFetched counts vendor API pages fetched per provider and phase.
	PagesFetched = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "donorbridge_pages_fetched_total",
			Help: "Total vendor API pages fetched",
		},
		[]string{"provider", "phase"},
	)

	// RecordsProcessed counts records processed per provider, kind, and outcome.
	RecordsProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "donorbridge_records_processed_total",
			Help: "Total records processed",
		},
		[]string{"provider", "kind", "outcome"},
	)

	// RetryAttempts counts retry attempts per service.
	RetryAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "donorbridge_retry_attempts_total",
			Help: "Total retry attempts",
		},
		[]string{"service"},
	)

	// RunDuration tracks sync run duration per provider.
	RunDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "donorbridge_run_duration_seconds",
			Help:    "Sync run duration in seconds",
			Buckets: prometheus.ExponentialBuckets(1, 2, 12),
		},
		[]string{"provider"},
	)

	// SyncRunsTotal counts completed sync runs per provider and outcome.
	SyncRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "donorbridge_sync_runs_total",
			Help: "Total sync runs by outcome",
		},
		[]string{"provider", "outcome"},
	)
)
