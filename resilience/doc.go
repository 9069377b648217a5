// Package resilience provides the failure guards used around cache stores.
//
// A CircuitBreaker stops calling a store after repeated failures and tries
// it again once ResetTimeout has passed. A Timeout bounds a single store
// operation. Both compose around any func(context.Context) error:
//
//	cb := resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
//	    MaxFailures:  5,
//	    ResetTimeout: 30 * time.Second,
//	})
//	to := resilience.NewTimeout(resilience.TimeoutConfig{Timeout: 100 * time.Millisecond})
//
//	err := cb.Execute(ctx, func(ctx context.Context) error {
//	    return to.Execute(ctx, func(ctx context.Context) error {
//	        return store.Write(ctx, key, entry)
//	    })
//	})
//
// The cache package wires both into cache.GuardedStore.
package resilience
