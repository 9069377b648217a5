package cache

import (
	"context"
	"errors"
	"time"

	"github.com/jonwraymond/memocache/observe"
)

// Invocation is the per-call state threaded from OnEntry to OnSuccess.
type Invocation struct {
	// Receiver is the instance a method was called on, nil for functions.
	Receiver any

	// Args holds the argument values positionally. On a hit, reconcilable
	// arguments are updated in place.
	Args []any

	// ReturnValue is set from the cache on a hit and from the body on a miss.
	ReturnValue any

	// Skip is set by OnEntry when the body must not run.
	Skip bool

	// Tag is opaque per-call state set by OnEntry and read by OnSuccess.
	Tag any

	// Accept, when set, rejects cached values the caller cannot use.
	// A rejected entry counts as a miss.
	Accept func(value any) bool
}

// BodyFunc runs the real function body for one invocation.
type BodyFunc func(ctx context.Context) (any, error)

// Coordinator decides, per call of one bound function, whether to serve the
// call from the cache and refreshes the cache after successful executions.
//
// Contract:
//   - Concurrency: safe for concurrent use; configuration is read-only.
//   - Errors: cache faults never fail a call; body errors propagate unchanged
//     and are never cached.
//   - Coalescing: none. Concurrent misses for one key all execute and the
//     last write wins.
type Coordinator struct {
	svc       *Service
	keyer     Keyer
	keyPolicy KeyPolicy
	meta      observe.FuncMeta
	logger    observe.Logger

	stats counters
}

// Meta returns the telemetry identity of the bound function.
func (c *Coordinator) Meta() observe.FuncMeta {
	return c.meta
}

// Stats returns the counters of this bound function.
func (c *Coordinator) Stats() Stats {
	return c.stats.snapshot()
}

// Key returns the cache key for a call with the given receiver and arguments.
func (c *Coordinator) Key(receiver any, args []any) string {
	return c.keyer.BuildKey(receiver, args)
}

// OnEntry runs before the body. On a fresh entry it reconciles the
// arguments, sets ReturnValue and Skip. Otherwise it stores the key in Tag
// for OnSuccess.
func (c *Coordinator) OnEntry(ctx context.Context, inv *Invocation) {
	key := c.keyer.BuildKey(inv.Receiver, inv.Args)
	inv.Tag = key

	entry, outcome := c.lookup(ctx, key)
	if outcome == observe.OutcomeHit && inv.Accept != nil && !inv.Accept(entry.Value) {
		outcome = observe.OutcomeMiss
	}
	c.record(ctx, outcome)

	if outcome != observe.OutcomeHit {
		c.logger.Debug(ctx, "cache "+outcome.String(), observe.Field{Key: "key", Value: key})
		return
	}

	if copied := c.svc.reconcilers.Reconcile(inv.Args, entry.Args); copied > 0 {
		c.stats.reconciled.Add(int64(copied))
		c.svc.stats.reconciled.Add(int64(copied))
		c.svc.inst.Metrics.RecordReconcile(ctx, c.meta, copied)
	}

	inv.ReturnValue = cloneResult(entry.Value)
	inv.Skip = true
	c.logger.Debug(ctx, "cache hit", observe.Field{Key: "key", Value: key})
}

// OnSuccess runs only after the body completed without error. It writes a
// fresh entry under the key OnEntry computed, replacing any previous entry.
func (c *Coordinator) OnSuccess(ctx context.Context, inv *Invocation) {
	if inv.Skip {
		return
	}

	key, ok := inv.Tag.(string)
	if !ok || key == "" {
		c.logger.Warn(ctx, "success without entry key, not caching")
		return
	}

	entry := &Entry{
		Value:     cloneResult(inv.ReturnValue),
		Args:      c.svc.reconcilers.Snapshot(inv.Args),
		CreatedAt: c.svc.now(),
	}
	if err := c.svc.store.Write(ctx, key, entry); err != nil {
		c.stats.writeErrors.Add(1)
		c.svc.stats.writeErrors.Add(1)
		c.logger.Warn(ctx, "cache write failed",
			observe.Field{Key: "key", Value: key},
			observe.Field{Key: "error", Value: err},
		)
		return
	}
	c.stats.writes.Add(1)
	c.svc.stats.writes.Add(1)
}

// Execute drives one invocation: OnEntry, then the body unless the call was
// served from the cache, then OnSuccess if the body returned no error.
func (c *Coordinator) Execute(ctx context.Context, inv *Invocation, body BodyFunc) (any, error) {
	ctx, span := c.svc.inst.Tracer.StartSpan(ctx, c.meta)

	c.OnEntry(ctx, inv)
	if inv.Skip {
		c.svc.inst.Tracer.EndSpan(span, true, nil)
		return inv.ReturnValue, nil
	}

	start := time.Now()
	result, err := body(ctx)
	c.svc.inst.Metrics.RecordExecution(ctx, c.meta, time.Since(start), err)
	c.svc.inst.Tracer.EndSpan(span, false, err)

	if err != nil {
		return result, err
	}

	inv.ReturnValue = result
	c.OnSuccess(ctx, inv)
	return result, nil
}

func (c *Coordinator) lookup(ctx context.Context, key string) (*Entry, observe.Outcome) {
	store := c.svc.store
	if !store.Contains(ctx, key) {
		return nil, observe.OutcomeMiss
	}

	entry, err := store.Read(ctx, key)
	switch {
	case errors.Is(err, ErrNotFound):
		return nil, observe.OutcomeMiss
	case err != nil:
		c.logger.Warn(ctx, "cache read failed, treating as miss",
			observe.Field{Key: "key", Value: key},
			observe.Field{Key: "error", Value: err},
		)
		return nil, observe.OutcomeError
	case entry == nil:
		return nil, observe.OutcomeMiss
	}

	if c.svc.policy.IsExpired(entry.CreatedAt, c.keyPolicy, c.svc.now()) {
		return nil, observe.OutcomeStale
	}
	return entry, observe.OutcomeHit
}

func (c *Coordinator) record(ctx context.Context, outcome observe.Outcome) {
	c.stats.lookup(outcome)
	c.svc.stats.lookup(outcome)
	c.svc.inst.Metrics.RecordLookup(ctx, c.meta, outcome)
}
