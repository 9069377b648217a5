package cache

import (
	"context"
	"testing"
)

func BenchmarkKeyBuilder_Primitives(b *testing.B) {
	kb := NewKeyBuilder(KeyConfig{Method: "Add", GroupName: "math"})
	args := []any{2, 3}

	b.ReportAllocs()
	for b.Loop() {
		_ = kb.BuildKey(nil, args)
	}
}

func BenchmarkKeyBuilder_Map(b *testing.B) {
	kb := NewKeyBuilder(KeyConfig{Method: "Search"})
	args := []any{map[string]any{"query": "test", "limit": 10, "filters": []any{"a", "b"}}}

	b.ReportAllocs()
	for b.Loop() {
		_ = kb.BuildKey(nil, args)
	}
}

func BenchmarkWrap2_Hit(b *testing.B) {
	svc, err := NewService(NewMemoryStore())
	if err != nil {
		b.Fatal(err)
	}
	add := Wrap2(svc.Bind("Add"), func(_ context.Context, a, b int) (int, error) {
		return a + b, nil
	})
	ctx := context.Background()
	_, _ = add(ctx, 2, 3)

	b.ReportAllocs()
	for b.Loop() {
		_, _ = add(ctx, 2, 3)
	}
}

func BenchmarkWrap1_Parallel(b *testing.B) {
	svc, err := NewService(NewMemoryStore())
	if err != nil {
		b.Fatal(err)
	}
	square := Wrap1(svc.Bind("Square"), func(_ context.Context, n int) (int, error) {
		return n * n, nil
	})
	ctx := context.Background()

	b.RunParallel(func(pb *testing.PB) {
		i := 0
		for pb.Next() {
			_, _ = square(ctx, i%16)
			i++
		}
	})
}
