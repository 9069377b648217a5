// Package health reports whether a memoization cache is working and paying
// off.
//
// StoreChecker probes a cache.Store with a write and read back, and reports
// an open circuit on a guarded store as degraded. HitRatioChecker judges the
// counters of a cache.Service or Coordinator. SizeChecker watches the growth
// of a store that never evicts.
//
// An Aggregator runs checkers concurrently and folds their results into the
// worst status seen:
//
//	agg := health.NewAggregator()
//	agg.Register("store", health.NewStoreChecker(store, ""))
//	agg.Register("hit_ratio", health.NewHitRatioChecker(svc, health.HitRatioConfig{}))
//
//	mux := http.NewServeMux()
//	health.RegisterHandlers(mux, agg)
//
// Degraded answers 200 on the HTTP endpoints: calls still succeed, they just
// run uncached.
package health
