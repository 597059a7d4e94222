// Package breaker implements a process-wide circuit breaker keyed by logical
// service name. A breaker opens after repeated failures and short-circuits
// further calls until a cool-down elapses, at which point a single probe is
// allowed through to test recovery.
package breaker

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/donorbridge/donorbridge/internal/metrics"
)

// State is the current breaker state.
type State int

const (
	// StateClosed passes calls through and counts failures.
	StateClosed State = iota

	// StateOpen rejects calls immediately.
	StateOpen

	// StateHalfOpen allows a single probe call through.
	StateHalfOpen
)

// String implements fmt.Stringer.
func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// Policy configures when a breaker opens and how long it stays open.
type Policy struct {
	// Cooldown is how long the breaker stays open before allowing a probe.
	// Default 30s.
	Cooldown time.Duration

	// FailureRateThreshold opens the breaker when the failure rate over the
	// sliding window reaches this fraction. Zero disables the rate trigger.
	FailureRateThreshold float64

	// FailureThreshold is the number of consecutive failures that opens the
	// breaker. Default 5.
	FailureThreshold int

	// WindowSize is the sliding window length for the rate trigger.
	// Default 20.
	WindowSize int
}

// DefaultPolicy returns the policy applied to services without an explicit
// one.
func DefaultPolicy() Policy {
	return Policy{
		Cooldown:             30 * time.Second,
		FailureRateThreshold: 0.5,
		FailureThreshold:     5,
		WindowSize:           20,
	}
}

// withDefaults fills zero-valued fields.
func (p Policy) withDefaults() Policy {
	if p.Cooldown <= 0 {
		p.Cooldown = 30 * time.Second
	}
	if p.FailureThreshold <= 0 {
		p.FailureThreshold = 5
	}
	if p.WindowSize <= 0 {
		p.WindowSize = 20
	}
	return p
}

// OpenError is returned when a call is rejected because the circuit is open.
// It is retryable: an outer retry loop may succeed once the breaker closes.
type OpenError struct {
	// Service is the logical service name.
	Service string

	// Until is when the cool-down elapses.
	Until time.Time
}

// Error implements the error interface.
func (e *OpenError) Error() string {
	return fmt.Sprintf("%s: circuit open until %s", e.Service, e.Until.Format(time.RFC3339))
}

// Retryable reports that circuit-open rejections may be retried.
func (e *OpenError) Retryable() bool { return true }

// Breaker is the health gate for one logical service. Callers must invoke
// Allow before each attempt and RecordSuccess or RecordFailure immediately
// after; the breaker never sees call arguments or results.
type Breaker struct {
	mu sync.Mutex

	// consecutiveFailures counts failures since the last success.
	consecutiveFailures int

	// lastFailure is when the most recent failure was recorded.
	lastFailure time.Time

	// logger records state transitions.
	logger *slog.Logger

	// policy is the opening/cool-down configuration.
	policy Policy

	// probeInFlight marks that the half-open probe has been dispatched.
	probeInFlight bool

	// service is the logical service name.
	service string

	// state is the current breaker state.
	state State

	// window is a ring buffer of recent outcomes (true = failure).
	window []bool

	// windowCount is how many outcomes the window holds so far.
	windowCount int

	// windowPos is the next write position in the window.
	windowPos int
}

// New creates a breaker for the named service.
func New(service string, policy Policy, logger *slog.Logger) *Breaker {
	if logger == nil {
		logger = slog.Default()
	}
	policy = policy.withDefaults()
	return &Breaker{
		logger:  logger,
		policy:  policy,
		service: service,
		window:  make([]bool, policy.WindowSize),
	}
}

// Allow reports whether a call may proceed. It returns an *OpenError when
// the circuit is open, and transitions open breakers to half-open once the
// cool-down has elapsed (permitting exactly one probe).
func (b *Breaker) Allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateClosed:
		return nil

	case StateOpen:
		until := b.lastFailure.Add(b.policy.Cooldown)
		if time.Now().Before(until) {
			return &OpenError{Service: b.service, Until: until}
		}
		b.transition(StateHalfOpen)
		b.probeInFlight = true
		return nil

	case StateHalfOpen:
		if b.probeInFlight {
			return &OpenError{Service: b.service, Until: b.lastFailure.Add(b.policy.Cooldown)}
		}
		b.probeInFlight = true
		return nil

	default:
		return nil
	}
}

// RecordSuccess records a successful call. In half-open state the probe
// success closes the circuit.
func (b *Breaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.consecutiveFailures = 0
	b.record(false)

	if b.state == StateHalfOpen {
		b.probeInFlight = false
		b.transition(StateClosed)
	}
}

// RecordFailure records a failed call, opening the circuit when the
// consecutive-failure or windowed failure-rate threshold is reached. In
// half-open state the probe failure reopens the circuit.
func (b *Breaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.consecutiveFailures++
	b.lastFailure = time.Now()
	b.record(true)

	switch b.state {
	case StateHalfOpen:
		b.probeInFlight = false
		b.transition(StateOpen)
	case StateClosed:
		if b.consecutiveFailures >= b.policy.FailureThreshold || b.rateExceeded() {
			b.transition(StateOpen)
		}
	}
}

// State returns the current breaker state.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Reset forcibly returns the breaker to closed, for operational and test
// use.
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.consecutiveFailures = 0
	b.probeInFlight = false
	b.window = make([]bool, b.policy.WindowSize)
	b.windowCount = 0
	b.windowPos = 0
	if b.state != StateClosed {
		b.transition(StateClosed)
	}
}

// record appends an outcome to the sliding window. Callers must hold the
// lock.
func (b *Breaker) record(failure bool) {
	b.window[b.windowPos] = failure
	b.windowPos = (b.windowPos + 1) % len(b.window)
	if b.windowCount < len(b.window) {
		b.windowCount++
	}
}

// rateExceeded reports whether the windowed failure rate reached the policy
// threshold. The window must be full before the rate trigger fires. Callers
// must hold the lock.
func (b *Breaker) rateExceeded() bool {
	if b.policy.FailureRateThreshold <= 0 || b.windowCount < len(b.window) {
		return false
	}
	failures := 0
	for _, failed := range b.window {
		if failed {
			failures++
		}
	}
	return float64(failures)/float64(b.windowCount) >= b.policy.FailureRateThreshold
}

// transition changes state, logging and updating metrics. Callers must hold
// the lock.
func (b *Breaker) transition(to State) {
	from := b.state
	b.state = to
	b.logger.Info("circuit breaker state change",
		"service", b.service,
		"from", from.String(),
		"to", to.String())
	metrics.BreakerState.WithLabelValues(b.service).Set(float64(to))
	metrics.BreakerTransitionsTotal.WithLabelValues(b.service, to.String()).Inc()
}

// Registry holds one breaker per logical service name, created lazily and
// shared process-wide.
type Registry struct {
	mu sync.Mutex

	// breakers maps service name to its breaker.
	breakers map[string]*Breaker

	// defaultPolicy applies to services without an explicit policy.
	defaultPolicy Policy

	// logger is passed to new breakers.
	logger *slog.Logger

	// policies holds per-service policy overrides.
	policies map[string]Policy
}

// NewRegistry creates a breaker registry.
func NewRegistry(defaultPolicy Policy, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		breakers:      make(map[string]*Breaker),
		defaultPolicy: defaultPolicy.withDefaults(),
		logger:        logger,
		policies:      make(map[string]Policy),
	}
}

// SetPolicy sets a per-service policy override. It only affects breakers
// created after the call.
func (r *Registry) SetPolicy(service string, policy Policy) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.policies[service] = policy.withDefaults()
}

// Get returns the breaker for a service, creating it on first use.
func (r *Registry) Get(service string) *Breaker {
	r.mu.Lock()
	defer r.mu.Unlock()

	if b, ok := r.breakers[service]; ok {
		return b
	}

	policy := r.defaultPolicy
	if p, ok := r.policies[service]; ok {
		policy = p
	}
	b := New(service, policy, r.logger)
	r.breakers[service] = b
	return b
}

// ResetAll forcibly closes every breaker in the registry.
func (r *Registry) ResetAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, b := range r.breakers {
		b.Reset()
	}
}
