// Package ratelimit paces outbound vendor API calls.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/donorbridge/donorbridge/internal/canonical"
)

// DefaultDelay is the conservative minimum inter-request delay applied to
// services without an entry in the delay table.
const DefaultDelay = 400 * time.Millisecond

// DefaultDelays is the per-provider minimum inter-request delay table,
// derived from each vendor's published rate limits.
func DefaultDelays() map[string]time.Duration {
	return map[string]time.Duration{
		string(canonical.ProviderBlackbaud):        200 * time.Millisecond,
		string(canonical.ProviderBloomerang):       300 * time.Millisecond,
		string(canonical.ProviderDonorPerfect):     400 * time.Millisecond,
		string(canonical.ProviderKindful):          250 * time.Millisecond,
		string(canonical.ProviderLittleGreenLight): 300 * time.Millisecond,
		string(canonical.ProviderNeon):             150 * time.Millisecond,
		string(canonical.ProviderVirtuous):         200 * time.Millisecond,
	}
}

// Pacer enforces a minimum delay between consecutive calls to the same
// service. This is cooperative pacing, not a token bucket: each waiter
// reserves the next allowed slot under the lock, so concurrent sync runs
// sharing a Pacer space out correctly.
type Pacer struct {
	mu sync.Mutex

	// defaultDelay applies to services not present in delays.
	defaultDelay time.Duration

	// delays is the per-service minimum inter-request delay.
	delays map[string]time.Duration

	// next holds the earliest allowed call time per service.
	next map[string]time.Time
}

// NewPacer creates a pacer. Entries in delays overlay the DefaultDelays
// table, so a partial table only overrides the services it names; a nil
// table keeps the built-in delays. A non-positive defaultDelay uses
// DefaultDelay.
func NewPacer(delays map[string]time.Duration, defaultDelay time.Duration) *Pacer {
	table := DefaultDelays()
	for service, d := range delays {
		table[service] = d
	}
	if defaultDelay <= 0 {
		defaultDelay = DefaultDelay
	}
	return &Pacer{
		defaultDelay: defaultDelay,
		delays:       table,
		next:         make(map[string]time.Time),
	}
}

// Delay returns the minimum inter-request delay for a service.
func (p *Pacer) Delay(serviceKey string) time.Duration {
	if d, ok := p.delays[serviceKey]; ok {
		return d
	}
	return p.defaultDelay
}

// Wait suspends the caller until at least Delay(serviceKey) has elapsed since
// the previous call for the same service, or until the context is done.
func (p *Pacer) Wait(ctx context.Context, serviceKey string) error {
	p.mu.Lock()
	now := time.Now()
	at := p.next[serviceKey]
	if at.Before(now) {
		at = now
	}
	p.next[serviceKey] = at.Add(p.Delay(serviceKey))
	p.mu.Unlock()

	wait := time.Until(at)
	if wait <= 0 {
		return nil
	}

	timer := time.NewTimer(wait)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// TokenBucket is the explicit token-bucket variant used where burst capacity
// matters more than even spacing. Tokens refill continuously at refillRate
// per second based on wall-clock time; an empty bucket blocks the caller for
// one refill interval before re-checking.
type TokenBucket struct {
	mu sync.Mutex

	// lastRefill is when tokens were last credited.
	lastRefill time.Time

	// maxTokens caps the bucket.
	maxTokens float64

	// refillRate is tokens credited per second.
	refillRate float64

	// tokens is the current balance.
	tokens float64
}

// NewTokenBucket creates a full bucket. maxTokens and refillRate must be
// positive.
func NewTokenBucket(maxTokens, refillRate float64) *TokenBucket {
	if maxTokens <= 0 {
		maxTokens = 1
	}
	if refillRate <= 0 {
		refillRate = 1
	}
	return &TokenBucket{
		lastRefill: time.Now(),
		maxTokens:  maxTokens,
		refillRate: refillRate,
		tokens:     maxTokens,
	}
}

// Take consumes one token, blocking until one is available or the context is
// done.
func (b *TokenBucket) Take(ctx context.Context) error {
	for {
		b.mu.Lock()
		b.refill()
		if b.tokens >= 1 {
			b.tokens--
			b.mu.Unlock()
			return nil
		}
		b.mu.Unlock()

		interval := time.Duration(float64(time.Second) / b.refillRate)
		timer := time.NewTimer(interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// refill credits tokens for wall-clock time elapsed since the last refill.
// Callers must hold the lock.
func (b *TokenBucket) refill() {
	now := time.Now()
	elapsed := now.Sub(b.lastRefill).Seconds()
	if elapsed <= 0 {
		return
	}
	b.tokens = min(b.maxTokens, b.tokens+elapsed*b.refillRate)
	b.lastRefill = now
}
