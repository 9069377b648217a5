// Package cache memoizes function calls in process.
//
// A Service holds the store, the process-wide expiry Policy and the registry
// of reconcilable argument types. Binding a function to the Service yields a
// Coordinator, which derives a deterministic key from the function identity
// and its arguments, serves fresh entries without running the function, and
// refreshes the entry after every successful execution. Errors are never
// cached.
//
// When a call is served from the cache, registered pointer arguments get the
// member values the original call left on them, so side effects carried out
// through arguments survive the short-circuit.
//
//	svc, _ := cache.NewService(cache.NewMemoryStore())
//	add := cache.Wrap2(svc.Bind("Add"), func(ctx context.Context, a, b int) (int, error) {
//	    return a + b, nil
//	})
//	sum, _ := add(ctx, 2, 3) // runs, caches "Add|2|3"
//	sum, _ = add(ctx, 2, 3)  // served from the cache
package cache
