package cache

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// Warm calls fn once per argument with at most limit calls in flight, so
// that a wrapped function has fresh entries for known inputs before real
// traffic arrives. A limit <= 0 means no limit.
//
// The first error cancels the remaining calls and is returned. Successful
// calls keep their entries.
func Warm[A any](ctx context.Context, limit int, args []A, fn func(context.Context, A) error) error {
	g, ctx := errgroup.WithContext(ctx)
	if limit > 0 {
		g.SetLimit(limit)
	}

	for _, a := range args {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			return fn(ctx, a)
		})
	}
	return g.Wait()
}
