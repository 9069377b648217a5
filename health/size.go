package health

import (
	"context"
	"fmt"
	"runtime"
)

// Sizer reports the number of stored entries, such as *cache.MemoryStore.
type Sizer interface {
	Len() int
}

// SizeCheckerConfig configures a SizeChecker.
type SizeCheckerConfig struct {
	// MaxEntries is the expected upper bound on stored entries. Required.
	MaxEntries int

	// WarningThreshold is the fraction of MaxEntries that degrades.
	// Value should be between 0 and 1. Default: 0.8
	WarningThreshold float64

	// CriticalThreshold is the fraction of MaxEntries that is unhealthy.
	// Value should be between 0 and 1. Default: 0.95
	CriticalThreshold float64
}

// SizeChecker watches the growth of a store that never evicts. Stale
// entries are only ever overwritten, so the entry count tracks the number of
// distinct keys seen since start.
type SizeChecker struct {
	store  Sizer
	config SizeCheckerConfig
}

// NewSizeChecker creates a size checker for store.
func NewSizeChecker(store Sizer, config SizeCheckerConfig) *SizeChecker {
	if config.WarningThreshold <= 0 || config.WarningThreshold >= 1 {
		config.WarningThreshold = 0.8
	}
	if config.CriticalThreshold <= 0 || config.CriticalThreshold >= 1 {
		config.CriticalThreshold = 0.95
	}
	if config.CriticalThreshold < config.WarningThreshold {
		config.CriticalThreshold = min(config.WarningThreshold+0.1, 0.99)
	}
	return &SizeChecker{store: store, config: config}
}

// Name returns "store_size".
func (c *SizeChecker) Name() string {
	return "store_size"
}

// Check compares the entry count against MaxEntries.
func (c *SizeChecker) Check(ctx context.Context) Result {
	if err := ctx.Err(); err != nil {
		return Unhealthy("context cancelled", err)
	}

	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	entries := c.store.Len()
	details := map[string]any{
		"entries":      entries,
		"max_entries":  c.config.MaxEntries,
		"heap_alloc":   mem.HeapAlloc,
		"heap_objects": mem.HeapObjects,
		"num_gc":       mem.NumGC,
	}

	if c.config.MaxEntries <= 0 {
		return Healthy(fmt.Sprintf("%d entries, no bound configured", entries)).WithDetails(details)
	}

	usage := float64(entries) / float64(c.config.MaxEntries)
	details["usage_percent"] = usage * 100

	switch {
	case usage >= c.config.CriticalThreshold:
		return Unhealthy(fmt.Sprintf("store size critical: %.1f%%", usage*100), ErrCheckFailed).WithDetails(details)
	case usage >= c.config.WarningThreshold:
		return Degraded(fmt.Sprintf("store size high: %.1f%%", usage*100)).WithDetails(details)
	default:
		return Healthy(fmt.Sprintf("store size normal: %.1f%%", usage*100)).WithDetails(details)
	}
}
