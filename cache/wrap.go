package cache

import "context"

// Func0 is a cacheable function without arguments.
type Func0[R any] func(ctx context.Context) (R, error)

// Func1 is a cacheable function of one argument.
type Func1[A, R any] func(ctx context.Context, a A) (R, error)

// Func2 is a cacheable function of two arguments.
type Func2[A, B, R any] func(ctx context.Context, a A, b B) (R, error)

// Func3 is a cacheable function of three arguments.
type Func3[A, B, C, R any] func(ctx context.Context, a A, b B, c C) (R, error)

// Method1 is a cacheable method of one argument with an explicit receiver.
type Method1[T, A, R any] func(ctx context.Context, recv T, a A) (R, error)

// Wrap0 decorates fn with the caching behavior of c.
func Wrap0[R any](c *Coordinator, fn Func0[R]) Func0[R] {
	return func(ctx context.Context) (R, error) {
		return invoke(ctx, c, nil, nil, func(ctx context.Context) (R, error) {
			return fn(ctx)
		})
	}
}

// Wrap1 decorates fn with the caching behavior of c.
func Wrap1[A, R any](c *Coordinator, fn Func1[A, R]) Func1[A, R] {
	return func(ctx context.Context, a A) (R, error) {
		return invoke(ctx, c, nil, []any{a}, func(ctx context.Context) (R, error) {
			return fn(ctx, a)
		})
	}
}

// Wrap2 decorates fn with the caching behavior of c.
func Wrap2[A, B, R any](c *Coordinator, fn Func2[A, B, R]) Func2[A, B, R] {
	return func(ctx context.Context, a A, b B) (R, error) {
		return invoke(ctx, c, nil, []any{a, b}, func(ctx context.Context) (R, error) {
			return fn(ctx, a, b)
		})
	}
}

// Wrap3 decorates fn with the caching behavior of c.
func Wrap3[A, B, C, R any](c *Coordinator, fn Func3[A, B, C, R]) Func3[A, B, C, R] {
	return func(ctx context.Context, a A, b B, cc C) (R, error) {
		return invoke(ctx, c, nil, []any{a, b, cc}, func(ctx context.Context) (R, error) {
			return fn(ctx, a, b, cc)
		})
	}
}

// WrapMethod1 decorates a method value. The receiver is passed through to
// the Keyer but does not contribute to the default key.
func WrapMethod1[T, A, R any](c *Coordinator, fn Method1[T, A, R]) Method1[T, A, R] {
	return func(ctx context.Context, recv T, a A) (R, error) {
		return invoke(ctx, c, recv, []any{a}, func(ctx context.Context) (R, error) {
			return fn(ctx, recv, a)
		})
	}
}

func invoke[R any](ctx context.Context, c *Coordinator, recv any, args []any, body func(context.Context) (R, error)) (R, error) {
	inv := &Invocation{
		Receiver: recv,
		Args:     args,
		Accept: func(v any) bool {
			_, ok := asResult[R](v)
			return ok
		},
	}

	v, err := c.Execute(ctx, inv, func(ctx context.Context) (any, error) {
		return body(ctx)
	})
	r, _ := asResult[R](v)
	return r, err
}

// asResult converts a stored value back to R. A nil value is the zero R.
func asResult[R any](v any) (R, bool) {
	if v == nil {
		var zero R
		return zero, true
	}
	r, ok := v.(R)
	return r, ok
}
