package breaker

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/donorbridge/donorbridge/internal/retry"
)

// testPolicy keeps thresholds small and cool-downs short.
func testPolicy() Policy {
	return Policy{
		Cooldown:         50 * time.Millisecond,
		FailureThreshold: 3,
		WindowSize:       20,
	}
}

func TestBreakerOpensAfterConsecutiveFailures(t *testing.T) {
	t.Parallel()

	b := New("neon", testPolicy(), nil)

	for i := 0; i < 2; i++ {
		require.NoError(t, b.Allow())
		b.RecordFailure()
	}
	require.Equal(t, StateClosed, b.State())

	require.NoError(t, b.Allow())
	b.RecordFailure()
	require.Equal(t, StateOpen, b.State())

	err := b.Allow()
	var openErr *OpenError
	require.ErrorAs(t, err, &openErr)
	require.Equal(t, "neon", openErr.Service)
}

func TestOpenErrorIsRetryable(t *testing.T) {
	t.Parallel()

	// The retry policy must treat a circuit-open rejection as transient so
	// an outer loop can succeed once the breaker closes.
	err := &OpenError{Service: "neon", Until: time.Now().Add(time.Minute)}
	require.True(t, retry.Retryable(err))
	require.Contains(t, err.Error(), "circuit open")
}

func TestSuccessResetsConsecutiveFailures(t *testing.T) {
	t.Parallel()

	b := New("neon", testPolicy(), nil)

	b.RecordFailure()
	b.RecordFailure()
	b.RecordSuccess()
	b.RecordFailure()
	b.RecordFailure()

	require.Equal(t, StateClosed, b.State())
}

func TestHalfOpenProbeSuccessCloses(t *testing.T) {
	t.Parallel()

	b := New("neon", testPolicy(), nil)

	for i := 0; i < 3; i++ {
		b.RecordFailure()
	}
	require.Equal(t, StateOpen, b.State())

	time.Sleep(60 * time.Millisecond)

	// Cool-down elapsed: exactly one probe passes.
	require.NoError(t, b.Allow())
	require.Equal(t, StateHalfOpen, b.State())
	require.Error(t, b.Allow())

	b.RecordSuccess()
	require.Equal(t, StateClosed, b.State())
	require.NoError(t, b.Allow())
}

func TestHalfOpenProbeFailureReopens(t *testing.T) {
	t.Parallel()

	b := New("neon", testPolicy(), nil)

	for i := 0; i < 3; i++ {
		b.RecordFailure()
	}

	time.Sleep(60 * time.Millisecond)
	require.NoError(t, b.Allow())

	b.RecordFailure()
	require.Equal(t, StateOpen, b.State())
	require.Error(t, b.Allow())
}

func TestBreakerOpensOnWindowedFailureRate(t *testing.T) {
	t.Parallel()

	b := New("neon", Policy{
		Cooldown:             time.Minute,
		FailureRateThreshold: 0.5,
		FailureThreshold:     100, // keep the consecutive trigger out of the way
		WindowSize:           10,
	}, nil)

	// Alternate success/failure so no consecutive streak forms, but the
	// window fills at a 50% failure rate.
	for i := 0; i < 5; i++ {
		b.RecordSuccess()
		b.RecordFailure()
	}

	require.Equal(t, StateOpen, b.State())
}

func TestReset(t *testing.T) {
	t.Parallel()

	b := New("neon", testPolicy(), nil)

	for i := 0; i < 3; i++ {
		b.RecordFailure()
	}
	require.Equal(t, StateOpen, b.State())

	b.Reset()
	require.Equal(t, StateClosed, b.State())
	require.NoError(t, b.Allow())
}

func TestRegistrySharesBreakersPerService(t *testing.T) {
	t.Parallel()

	r := NewRegistry(testPolicy(), nil)

	a := r.Get("neon")
	b := r.Get("neon")
	require.Same(t, a, b)

	other := r.Get("kindful")
	require.NotSame(t, a, other)
}

func TestRegistryPerServicePolicy(t *testing.T) {
	t.Parallel()

	r := NewRegistry(testPolicy(), nil)
	r.SetPolicy("fragile", Policy{Cooldown: time.Minute, FailureThreshold: 1, WindowSize: 5})

	b := r.Get("fragile")
	b.RecordFailure()
	require.Equal(t, StateOpen, b.State())
}

func TestRegistryResetAll(t *testing.T) {
	t.Parallel()

	r := NewRegistry(testPolicy(), nil)

	b := r.Get("neon")
	for i := 0; i < 3; i++ {
		b.RecordFailure()
	}
	require.Equal(t, StateOpen, b.State())

	r.ResetAll()
	require.Equal(t, StateClosed, b.State())
}
