package observe

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Outcome is the result of one cache lookup.
type Outcome int

const (
	// OutcomeHit means a fresh entry served the call.
	OutcomeHit Outcome = iota
	// OutcomeMiss means no entry existed.
	OutcomeMiss
	// OutcomeStale means an entry existed but had expired.
	OutcomeStale
	// OutcomeError means the store failed and the lookup counted as a miss.
	OutcomeError
)

// String returns the string representation of the outcome.
func (o Outcome) String() string {
	switch o {
	case OutcomeHit:
		return "hit"
	case OutcomeMiss:
		return "miss"
	case OutcomeStale:
		return "stale"
	case OutcomeError:
		return "error"
	default:
		return "unknown"
	}
}

// Metrics records cache activity for bound functions.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Context: must return quickly.
// - Errors: implementations must not panic.
type Metrics interface {
	// RecordLookup records the outcome of one cache lookup.
	RecordLookup(ctx context.Context, meta FuncMeta, outcome Outcome)

	// RecordExecution records one run of the real function body.
	RecordExecution(ctx context.Context, meta FuncMeta, duration time.Duration, err error)

	// RecordReconcile records how many argument members a hit replayed.
	RecordReconcile(ctx context.Context, meta FuncMeta, members int)
}

type metricsImpl struct {
	lookups      metric.Int64Counter
	storeErrors  metric.Int64Counter
	execCount    metric.Int64Counter
	execErrors   metric.Int64Counter
	durationHist metric.Float64Histogram
	reconciled   metric.Int64Counter
}

// NewMetrics creates the cache instruments on meter.
func NewMetrics(meter metric.Meter) (Metrics, error) {
	lookups, err := meter.Int64Counter(
		"cache.lookups",
		metric.WithDescription("Cache lookups by outcome"),
		metric.WithUnit("{lookup}"),
	)
	if err != nil {
		return nil, err
	}

	storeErrors, err := meter.Int64Counter(
		"cache.store.errors",
		metric.WithDescription("Store failures treated as misses"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		return nil, err
	}

	execCount, err := meter.Int64Counter(
		"cache.exec.total",
		metric.WithDescription("Executions of cached function bodies"),
		metric.WithUnit("{call}"),
	)
	if err != nil {
		return nil, err
	}

	execErrors, err := meter.Int64Counter(
		"cache.exec.errors",
		metric.WithDescription("Cached function bodies that returned an error"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		return nil, err
	}

	durationHist, err := meter.Float64Histogram(
		"cache.exec.duration_ms",
		metric.WithDescription("Cached function body duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	reconciled, err := meter.Int64Counter(
		"cache.reconcile.members",
		metric.WithDescription("Argument members replayed from cached snapshots"),
		metric.WithUnit("{member}"),
	)
	if err != nil {
		return nil, err
	}

	return &metricsImpl{
		lookups:      lookups,
		storeErrors:  storeErrors,
		execCount:    execCount,
		execErrors:   execErrors,
		durationHist: durationHist,
		reconciled:   reconciled,
	}, nil
}

func (m *metricsImpl) RecordLookup(ctx context.Context, meta FuncMeta, outcome Outcome) {
	attrs := append(meta.attributes(), attribute.String("cache.outcome", outcome.String()))
	m.lookups.Add(ctx, 1, metric.WithAttributes(attrs...))

	if outcome == OutcomeError {
		m.storeErrors.Add(ctx, 1, metric.WithAttributes(meta.attributes()...))
	}
}

func (m *metricsImpl) RecordExecution(ctx context.Context, meta FuncMeta, duration time.Duration, err error) {
	opt := metric.WithAttributes(meta.attributes()...)

	m.execCount.Add(ctx, 1, opt)
	if err != nil {
		m.execErrors.Add(ctx, 1, opt)
	}
	m.durationHist.Record(ctx, float64(duration.Milliseconds()), opt)
}

func (m *metricsImpl) RecordReconcile(ctx context.Context, meta FuncMeta, members int) {
	if members <= 0 {
		return
	}
	m.reconciled.Add(ctx, int64(members), metric.WithAttributes(meta.attributes()...))
}

type noopMetrics struct{}

// NewNoopMetrics returns a Metrics that records nothing.
func NewNoopMetrics() Metrics {
	return noopMetrics{}
}

func (noopMetrics) RecordLookup(context.Context, FuncMeta, Outcome)                 {}
func (noopMetrics) RecordExecution(context.Context, FuncMeta, time.Duration, error) {}
func (noopMetrics) RecordReconcile(context.Context, FuncMeta, int)                  {}
