package health

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/jonwraymond/memocache/cache"
)

// DefaultProbeKey is the key StoreChecker writes its probe entry under.
const DefaultProbeKey = "memocache.health:probe"

// BreakerReporter is implemented by stores guarded by a circuit breaker.
type BreakerReporter interface {
	State() cache.BreakerState
}

// StoreChecker verifies a cache.Store by writing and reading back a probe
// entry. An open circuit is reported as degraded: calls still succeed but
// run uncached.
type StoreChecker struct {
	store    cache.Store
	probeKey string
}

// NewStoreChecker creates a checker for store. An empty probeKey selects
// DefaultProbeKey.
func NewStoreChecker(store cache.Store, probeKey string) *StoreChecker {
	if probeKey == "" {
		probeKey = DefaultProbeKey
	}
	return &StoreChecker{store: store, probeKey: probeKey}
}

// Name returns "store".
func (c *StoreChecker) Name() string {
	return "store"
}

// Check runs the probe.
func (c *StoreChecker) Check(ctx context.Context) Result {
	details := map[string]any{"probe_key": c.probeKey}

	if br, ok := c.store.(BreakerReporter); ok {
		state := br.State()
		details["circuit"] = state.String()
		if state != cache.BreakerClosed {
			return Degraded("store circuit " + state.String()).WithDetails(details)
		}
	}

	token := strconv.FormatInt(time.Now().UnixNano(), 10)
	if err := c.store.Write(ctx, c.probeKey, &cache.Entry{Value: token, CreatedAt: time.Now()}); err != nil {
		return Unhealthy("probe write failed", fmt.Errorf("%w: %w", ErrCheckFailed, err)).WithDetails(details)
	}

	entry, err := c.store.Read(ctx, c.probeKey)
	if err != nil {
		return Unhealthy("probe read failed", fmt.Errorf("%w: %w", ErrCheckFailed, err)).WithDetails(details)
	}
	if entry == nil || entry.Value != token {
		return Unhealthy("probe read returned a different entry", ErrProbeMismatch).WithDetails(details)
	}

	return Healthy("store reachable").WithDetails(details)
}

// StatsSource exposes cache counters, such as *cache.Service or
// *cache.Coordinator.
type StatsSource interface {
	Stats() cache.Stats
}

// HitRatioConfig configures a HitRatioChecker.
type HitRatioConfig struct {
	// MinLookups is the number of lookups needed before the ratio is judged.
	// Default: 100
	MinLookups int64

	// WarningRatio is the hit ratio below which the cache is degraded.
	// Default: 0.1
	WarningRatio float64

	// MaxStoreErrorRatio is the share of lookups failing in the store above
	// which the cache is degraded.
	// Default: 0.05
	MaxStoreErrorRatio float64
}

// HitRatioChecker reports a cache as degraded when it stops paying off.
type HitRatioChecker struct {
	source StatsSource
	config HitRatioConfig
}

// NewHitRatioChecker creates a checker over source.
func NewHitRatioChecker(source StatsSource, config HitRatioConfig) *HitRatioChecker {
	if config.MinLookups <= 0 {
		config.MinLookups = 100
	}
	if config.WarningRatio <= 0 || config.WarningRatio >= 1 {
		config.WarningRatio = 0.1
	}
	if config.MaxStoreErrorRatio <= 0 || config.MaxStoreErrorRatio >= 1 {
		config.MaxStoreErrorRatio = 0.05
	}
	return &HitRatioChecker{source: source, config: config}
}

// Name returns "hit_ratio".
func (c *HitRatioChecker) Name() string {
	return "hit_ratio"
}

// Check compares the current counters against the thresholds.
func (c *HitRatioChecker) Check(_ context.Context) Result {
	s := c.source.Stats()
	lookups := s.Lookups()

	details := map[string]any{
		"lookups":      lookups,
		"hits":         s.Hits,
		"misses":       s.Misses,
		"stale":        s.Stale,
		"store_errors": s.StoreErrors,
		"writes":       s.Writes,
		"write_errors": s.WriteErrors,
		"reconciled":   s.Reconciled,
		"hit_ratio":    s.HitRatio(),
	}

	if lookups < c.config.MinLookups {
		return Healthy(fmt.Sprintf("warming up: %d lookups", lookups)).WithDetails(details)
	}

	if errRatio := float64(s.StoreErrors) / float64(lookups); errRatio > c.config.MaxStoreErrorRatio {
		return Degraded(fmt.Sprintf("store errors high: %.1f%%", errRatio*100)).WithDetails(details)
	}

	if ratio := s.HitRatio(); ratio < c.config.WarningRatio {
		return Degraded(fmt.Sprintf("hit ratio low: %.1f%%", ratio*100)).WithDetails(details)
	}

	return Healthy(fmt.Sprintf("hit ratio %.1f%%", s.HitRatio()*100)).WithDetails(details)
}
