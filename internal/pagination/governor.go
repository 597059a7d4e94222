// Package pagination guards paging loops against runaway vendor APIs.
//
// The governor is independent of any vendor's own continuation signal: even
// when a vendor reports a next-page link forever, the hard ceilings here
// bound the loop. Hitting a ceiling is a normal completion, not a failure.
package pagination

import "fmt"

const (
	// DefaultMaxEmptyBatches stops paging after this many consecutive
	// zero-length pages.
	DefaultMaxEmptyBatches = 10

	// DefaultMaxIterations bounds the total page-fetch calls in one run.
	DefaultMaxIterations = 1000

	// DefaultMaxRecords bounds the total records pulled in one run,
	// matching the account-level quota.
	DefaultMaxRecords = 50000
)

// Limits holds the three hard ceilings for one paging loop.
type Limits struct {
	// MaxEmptyBatches is the consecutive-empty-page ceiling. Default 10.
	MaxEmptyBatches int

	// MaxIterations is the page-fetch ceiling. Default 1000.
	MaxIterations int

	// MaxRecords is the cumulative record ceiling. Default 50000.
	MaxRecords int
}

// DefaultLimits returns the standard ceilings.
func DefaultLimits() Limits {
	return Limits{
		MaxEmptyBatches: DefaultMaxEmptyBatches,
		MaxIterations:   DefaultMaxIterations,
		MaxRecords:      DefaultMaxRecords,
	}
}

// withDefaults fills zero-valued ceilings.
func (l Limits) withDefaults() Limits {
	if l.MaxEmptyBatches <= 0 {
		l.MaxEmptyBatches = DefaultMaxEmptyBatches
	}
	if l.MaxIterations <= 0 {
		l.MaxIterations = DefaultMaxIterations
	}
	if l.MaxRecords <= 0 {
		l.MaxRecords = DefaultMaxRecords
	}
	return l
}

// Decision is the governor's verdict for one more page fetch.
type Decision struct {
	// Continue reports whether the loop may fetch another page.
	Continue bool

	// Reason is a human-readable explanation when Continue is false.
	Reason string
}

// ShouldContinue decides whether a paging loop may fetch another page.
// Whichever ceiling is hit first produces the reason; when the governor says
// stop, the caller must treat the run as completed, not failed.
func ShouldContinue(recordsFetched, iterations, consecutiveEmpty int, limits Limits) Decision {
	limits = limits.withDefaults()

	if iterations >= limits.MaxIterations {
		return Decision{Reason: fmt.Sprintf(
			"reached maximum page fetches (%d)", limits.MaxIterations)}
	}
	if recordsFetched >= limits.MaxRecords {
		return Decision{Reason: fmt.Sprintf(
			"reached maximum records per run (%d)", limits.MaxRecords)}
	}
	if consecutiveEmpty >= limits.MaxEmptyBatches {
		return Decision{Reason: fmt.Sprintf(
			"%d consecutive empty pages despite vendor reporting more", consecutiveEmpty)}
	}

	return Decision{Continue: true}
}

// CursorGuard verifies that an ID-based pagination cursor strictly increases
// after each batch. Vendors that paginate by a monotonically increasing ID
// occasionally return the same page twice; a cursor that fails to advance is
// an unconditional stop condition.
type CursorGuard struct {
	initialized bool
	max         int64
}

// Advance records the maximum ID seen in the latest batch. The first call
// initializes the guard; subsequent calls require strict increase.
func (g *CursorGuard) Advance(newMax int64) Decision {
	if !g.initialized {
		g.initialized = true
		g.max = newMax
		return Decision{Continue: true}
	}

	if newMax <= g.max {
		return Decision{Reason: fmt.Sprintf(
			"pagination cursor did not advance (max id %d, previously %d)", newMax, g.max)}
	}

	g.max = newMax
	return Decision{Continue: true}
}
