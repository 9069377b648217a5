package cache

import (
	"context"
	"errors"
	"time"

	"github.com/jonwraymond/memocache/resilience"
)

// BreakerState represents the state of a GuardedStore's circuit.
type BreakerState = resilience.State

const (
	BreakerClosed   = resilience.StateClosed
	BreakerOpen     = resilience.StateOpen
	BreakerHalfOpen = resilience.StateHalfOpen
)

// GuardConfig configures a GuardedStore.
type GuardConfig struct {
	// MaxFailures is the number of consecutive failures that opens the circuit.
	// Default: 5
	MaxFailures int

	// ResetTimeout is how long the circuit stays open before a trial operation.
	// Default: 30 seconds
	ResetTimeout time.Duration

	// OpTimeout bounds each store operation. Zero means no bound.
	OpTimeout time.Duration

	// OnStateChange is called when the circuit state changes.
	OnStateChange func(from, to BreakerState)

	// Clock replaces time.Now.
	Clock func() time.Time
}

// GuardedStore shields callers from a failing Store. While the circuit is
// open, Contains reports false, Read returns ErrStoreOpen and Write is
// dropped with ErrStoreOpen, so cached calls degrade to plain execution.
// ErrNotFound is an answer, not a failure, and never trips the circuit.
type GuardedStore struct {
	inner   Store
	breaker *resilience.CircuitBreaker
	timeout *resilience.Timeout
}

// NewGuardedStore wraps inner with a circuit breaker and operation timeout.
func NewGuardedStore(inner Store, config GuardConfig) *GuardedStore {
	g := &GuardedStore{
		inner: inner,
		breaker: resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
			MaxFailures:   config.MaxFailures,
			ResetTimeout:  config.ResetTimeout,
			OnStateChange: config.OnStateChange,
			Clock:         config.Clock,
			IsFailure: func(err error) bool {
				return err != nil && !errors.Is(err, ErrNotFound)
			},
		}),
	}
	if config.OpTimeout > 0 {
		g.timeout = resilience.NewTimeout(resilience.TimeoutConfig{Timeout: config.OpTimeout})
	}
	return g
}

// Contains reports whether inner holds key. Failures and an open circuit
// report false.
func (g *GuardedStore) Contains(ctx context.Context, key string) bool {
	var ok bool
	err := g.run(ctx, func(ctx context.Context) error {
		ok = g.inner.Contains(ctx, key)
		return nil
	})
	return err == nil && ok
}

// Read reads key from inner.
func (g *GuardedStore) Read(ctx context.Context, key string) (*Entry, error) {
	var entry *Entry
	err := g.run(ctx, func(ctx context.Context) error {
		var err error
		entry, err = g.inner.Read(ctx, key)
		return err
	})
	if err != nil {
		return nil, err
	}
	return entry, nil
}

// Write writes entry to inner.
func (g *GuardedStore) Write(ctx context.Context, key string, entry *Entry) error {
	return g.run(ctx, func(ctx context.Context) error {
		return g.inner.Write(ctx, key, entry)
	})
}

// State returns the current circuit state.
func (g *GuardedStore) State() BreakerState {
	return g.breaker.State()
}

// Failures returns the current consecutive failure count.
func (g *GuardedStore) Failures() int {
	return g.breaker.Metrics().Failures
}

// run sends op through the breaker and, when configured, the timeout. The
// results op writes are only read after run returns nil.
func (g *GuardedStore) run(ctx context.Context, op func(context.Context) error) error {
	err := g.breaker.Execute(ctx, func(ctx context.Context) error {
		if g.timeout == nil {
			return op(ctx)
		}
		return g.timeout.Execute(ctx, op)
	})

	switch {
	case errors.Is(err, resilience.ErrCircuitOpen):
		return ErrStoreOpen
	case errors.Is(err, resilience.ErrTimeout):
		return ErrStoreTimeout
	}
	return err
}

// Ensure GuardedStore implements Store
var _ Store = (*GuardedStore)(nil)
