package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// faultyStore fails reads and writes on demand.
type faultyStore struct {
	*MemoryStore
	readErr  error
	writeErr error
}

func (s *faultyStore) Read(ctx context.Context, key string) (*Entry, error) {
	if s.readErr != nil {
		return nil, s.readErr
	}
	return s.MemoryStore.Read(ctx, key)
}

func (s *faultyStore) Write(ctx context.Context, key string, e *Entry) error {
	if s.writeErr != nil {
		return s.writeErr
	}
	return s.MemoryStore.Write(ctx, key, e)
}

func newTestService(t *testing.T, store Store, opts ...ServiceOption) *Service {
	t.Helper()
	svc, err := NewService(store, opts...)
	if err != nil {
		t.Fatalf("NewService() error = %v", err)
	}
	return svc
}

func TestNewService(t *testing.T) {
	if _, err := NewService(nil); !errors.Is(err, ErrNilStore) {
		t.Errorf("NewService(nil) error = %v, want ErrNilStore", err)
	}
	if _, err := NewService(NewMemoryStore(), WithPolicy(Policy{})); !errors.Is(err, ErrInvalidTTL) {
		t.Errorf("NewService(zero TTL) error = %v, want ErrInvalidTTL", err)
	}

	svc := newTestService(t, NewMemoryStore())
	if svc.Policy() != DefaultPolicy() {
		t.Errorf("Policy() = %+v, want default", svc.Policy())
	}
	if svc.Reconcilers() == nil {
		t.Error("Reconcilers() = nil")
	}
}

func TestCoordinator_TTLExpiry(t *testing.T) {
	clock := newFakeClock()
	store := NewMemoryStore()
	svc := newTestService(t, store,
		WithPolicy(Policy{TTL: 60 * time.Second}),
		WithClock(clock.Now),
	)

	var calls atomic.Int32
	add := Wrap2(svc.Bind("Add"), func(_ context.Context, a, b int) (int, error) {
		calls.Add(1)
		return a + b, nil
	})
	ctx := context.Background()

	steps := []struct {
		advance   time.Duration
		wantCalls int32
	}{
		{0, 1},                // t=0: miss, executes
		{10 * time.Second, 1}, // t=10: fresh hit
		{60 * time.Second, 2}, // t=70: stale, executes again
		{10 * time.Second, 2}, // t=80: fresh again
	}

	for i, step := range steps {
		clock.Advance(step.advance)
		sum, err := add(ctx, 2, 3)
		if err != nil {
			t.Fatalf("step %d: error = %v", i, err)
		}
		if sum != 5 {
			t.Fatalf("step %d: sum = %d, want 5", i, sum)
		}
		if got := calls.Load(); got != step.wantCalls {
			t.Errorf("step %d: calls = %d, want %d", i, got, step.wantCalls)
		}
	}

	if !store.Contains(ctx, "Add|2|3") {
		t.Error("entry should be stored under key Add|2|3")
	}

	stats := svc.Stats()
	if stats.Hits != 2 || stats.Misses != 1 || stats.Stale != 1 || stats.Writes != 2 {
		t.Errorf("Stats() = %+v", stats)
	}
	if stats.HitRatio() != 0.5 {
		t.Errorf("HitRatio() = %v, want 0.5", stats.HitRatio())
	}
}

func TestCoordinator_IgnoreTTL(t *testing.T) {
	clock := newFakeClock()
	svc := newTestService(t, NewMemoryStore(),
		WithPolicy(Policy{TTL: time.Second}),
		WithClock(clock.Now),
	)

	var calls int
	get := Wrap1(svc.Bind("Config", WithKeyPolicy(IgnoreTTL)), func(_ context.Context, name string) (string, error) {
		calls++
		return "v-" + name, nil
	})

	for i := 0; i < 3; i++ {
		if _, err := get(context.Background(), "a"); err != nil {
			t.Fatalf("call %d: error = %v", i, err)
		}
		clock.Advance(24 * time.Hour)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestCoordinator_GlobalIgnoreTTL(t *testing.T) {
	clock := newFakeClock()
	svc := newTestService(t, NewMemoryStore(),
		WithPolicy(Policy{IgnoreTTL: true}),
		WithClock(clock.Now),
	)

	var calls int
	now := Wrap0(svc.Bind("Now"), func(context.Context) (int, error) {
		calls++
		return calls, nil
	})

	first, _ := now(context.Background())
	clock.Advance(time.Hour)
	second, _ := now(context.Background())
	if first != 1 || second != 1 || calls != 1 {
		t.Errorf("first=%d second=%d calls=%d, want 1 1 1", first, second, calls)
	}
}

func TestCoordinator_ErrorsNotCached(t *testing.T) {
	store := NewMemoryStore()
	svc := newTestService(t, store)
	errBoom := errors.New("boom")

	var calls int
	div := Wrap2(svc.Bind("Div"), func(_ context.Context, a, b int) (int, error) {
		calls++
		if b == 0 {
			return 0, errBoom
		}
		return a / b, nil
	})
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if _, err := div(ctx, 1, 0); !errors.Is(err, errBoom) {
			t.Fatalf("call %d: error = %v, want errBoom", i, err)
		}
	}
	if calls != 2 {
		t.Errorf("calls = %d, want 2", calls)
	}
	if store.Len() != 0 {
		t.Errorf("store.Len() = %d, want 0", store.Len())
	}
}

func TestCoordinator_ErrorKeepsPreviousEntry(t *testing.T) {
	clock := newFakeClock()
	store := NewMemoryStore()
	svc := newTestService(t, store, WithPolicy(Policy{TTL: time.Minute}), WithClock(clock.Now))

	fail := false
	var calls int
	fn := Wrap1(svc.Bind("F"), func(_ context.Context, n int) (int, error) {
		calls++
		if fail {
			return 0, errors.New("down")
		}
		return n * 10, nil
	})
	ctx := context.Background()

	if _, err := fn(ctx, 1); err != nil {
		t.Fatalf("error = %v", err)
	}
	before, _ := store.Read(ctx, "F|1")

	clock.Advance(2 * time.Minute)
	fail = true
	if _, err := fn(ctx, 1); err == nil {
		t.Fatal("expected error on stale re-execution")
	}
	after, _ := store.Read(ctx, "F|1")
	if before != after {
		t.Error("failed execution should leave the previous entry in place")
	}
	if calls != 2 {
		t.Errorf("calls = %d, want 2", calls)
	}
}

func TestCoordinator_ReconcileOnHit(t *testing.T) {
	reg := NewReconcilers()
	if err := Register(reg, orderMembers()...); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	svc := newTestService(t, NewMemoryStore(), WithReconcilers(reg))

	var calls int
	process := Wrap1(svc.Bind("Process", WithProperties("ID")), func(_ context.Context, o *order) (bool, error) {
		calls++
		o.Status = "Done"
		o.Lines = append(o.Lines, "shipped")
		return true, nil
	})
	ctx := context.Background()

	first := &order{ID: 1, Status: "New"}
	if ok, err := process(ctx, first); err != nil || !ok {
		t.Fatalf("first call = (%v, %v)", ok, err)
	}

	second := &order{ID: 1, Status: "New"}
	ok, err := process(ctx, second)
	if err != nil || !ok {
		t.Fatalf("second call = (%v, %v)", ok, err)
	}
	if calls != 1 {
		t.Fatalf("calls = %d, want 1", calls)
	}
	if second.Status != "Done" {
		t.Errorf("Status = %q, want %q", second.Status, "Done")
	}
	if len(second.Lines) != 1 || second.Lines[0] != "shipped" {
		t.Errorf("Lines = %v, want [shipped]", second.Lines)
	}

	first.Status = "Cancelled"
	third := &order{ID: 1}
	_, _ = process(ctx, third)
	if third.Status != "Done" {
		t.Errorf("entry aliased the first caller's object: Status = %q", third.Status)
	}

	if got := svc.Stats().Reconciled; got != 4 {
		t.Errorf("Stats().Reconciled = %d, want 4", got)
	}
}

func TestCoordinator_PropertyKey(t *testing.T) {
	store := NewMemoryStore()
	svc := newTestService(t, store)

	var calls int
	lookup := Wrap1(svc.Bind("Lookup", WithGroup("crm"), WithProperties("id")), func(_ context.Context, c customer) (string, error) {
		calls++
		return c.Name, nil
	})
	ctx := context.Background()

	n1, _ := lookup(ctx, customer{ID: 7, Name: "Ann"})
	n2, _ := lookup(ctx, customer{ID: 7, Name: "Bob"})
	if calls != 1 || n1 != "Ann" || n2 != "Ann" {
		t.Errorf("calls=%d n1=%q n2=%q, want one call serving Ann twice", calls, n1, n2)
	}
	if !store.Contains(ctx, "crm:Lookup|{id=7}") {
		t.Error("entry should be stored under crm:Lookup|{id=7}")
	}
}

func TestCoordinator_ZeroArgFunctionsDistinct(t *testing.T) {
	svc := newTestService(t, NewMemoryStore())

	a := Wrap0(svc.Bind("A", WithGroup("g")), func(context.Context) (string, error) { return "a", nil })
	b := Wrap0(svc.Bind("B", WithGroup("g")), func(context.Context) (string, error) { return "b", nil })

	ra, _ := a(context.Background())
	rb, _ := b(context.Background())
	if ra != "a" || rb != "b" {
		t.Errorf("a() = %q, b() = %q", ra, rb)
	}
}

func TestCoordinator_ReadErrorIsMiss(t *testing.T) {
	store := &faultyStore{MemoryStore: NewMemoryStore()}
	svc := newTestService(t, store)

	var calls int
	fn := Wrap1(svc.Bind("F"), func(_ context.Context, n int) (int, error) {
		calls++
		return n, nil
	})
	ctx := context.Background()

	_, _ = fn(ctx, 1)
	store.readErr = errors.New("disk gone")
	v, err := fn(ctx, 1)
	if err != nil || v != 1 {
		t.Fatalf("fn() = (%d, %v), want (1, nil)", v, err)
	}
	if calls != 2 {
		t.Errorf("calls = %d, want 2", calls)
	}
	if got := svc.Stats().StoreErrors; got != 1 {
		t.Errorf("Stats().StoreErrors = %d, want 1", got)
	}
}

func TestCoordinator_WriteErrorDropped(t *testing.T) {
	store := &faultyStore{MemoryStore: NewMemoryStore(), writeErr: errors.New("read-only")}
	svc := newTestService(t, store)

	fn := Wrap1(svc.Bind("F"), func(_ context.Context, n int) (int, error) { return n, nil })
	v, err := fn(context.Background(), 3)
	if err != nil || v != 3 {
		t.Fatalf("fn() = (%d, %v), want (3, nil)", v, err)
	}
	if got := svc.Stats().WriteErrors; got != 1 {
		t.Errorf("Stats().WriteErrors = %d, want 1", got)
	}
}

func TestCoordinator_RejectedValueIsMiss(t *testing.T) {
	store := NewMemoryStore()
	svc := newTestService(t, store)
	c := svc.Bind("F")
	ctx := context.Background()

	if err := store.Write(ctx, "F|1", &Entry{Value: "not an int", CreatedAt: time.Now()}); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	var calls int
	fn := Wrap1(c, func(_ context.Context, n int) (int, error) {
		calls++
		return n, nil
	})
	if v, _ := fn(ctx, 1); v != 1 || calls != 1 {
		t.Errorf("fn() = %d with %d calls, want 1 with 1 call", v, calls)
	}
	if got, _ := store.Read(ctx, "F|1"); got.Value != 1 {
		t.Errorf("entry value = %v, want 1", got.Value)
	}
}

func TestCoordinator_NilResultCached(t *testing.T) {
	svc := newTestService(t, NewMemoryStore())

	var calls int
	find := Wrap1(svc.Bind("Find"), func(_ context.Context, id int) (*customer, error) {
		calls++
		return nil, nil
	})

	for i := 0; i < 2; i++ {
		if c, err := find(context.Background(), 1); c != nil || err != nil {
			t.Fatalf("find() = (%v, %v)", c, err)
		}
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestCoordinator_HooksDirect(t *testing.T) {
	svc := newTestService(t, NewMemoryStore())
	c := svc.Bind("Add")
	ctx := context.Background()

	inv := &Invocation{Args: []any{2, 3}}
	c.OnEntry(ctx, inv)
	if inv.Skip {
		t.Fatal("Skip = true on empty store")
	}
	if inv.Tag != "Add|2|3" {
		t.Errorf("Tag = %v, want Add|2|3", inv.Tag)
	}

	inv.ReturnValue = 5
	c.OnSuccess(ctx, inv)

	next := &Invocation{Args: []any{2, 3}}
	c.OnEntry(ctx, next)
	if !next.Skip || next.ReturnValue != 5 {
		t.Errorf("second OnEntry: Skip=%v ReturnValue=%v, want true 5", next.Skip, next.ReturnValue)
	}

	// OnSuccess on a hit must not rewrite the entry.
	next.ReturnValue = 99
	c.OnSuccess(ctx, next)
	again := &Invocation{Args: []any{2, 3}}
	c.OnEntry(ctx, again)
	if again.ReturnValue != 5 {
		t.Errorf("ReturnValue = %v, want 5", again.ReturnValue)
	}

	if got := c.Stats(); got.Hits != 2 || got.Misses != 1 || got.Writes != 1 {
		t.Errorf("Stats() = %+v", got)
	}
}

func TestWrapMethod1_ReceiverIgnored(t *testing.T) {
	svc := newTestService(t, NewMemoryStore())

	type repo struct{ name string }
	var calls int
	get := WrapMethod1(svc.Bind("repo.Get"), func(_ context.Context, r *repo, id int) (string, error) {
		calls++
		return r.name, nil
	})

	v1, _ := get(context.Background(), &repo{name: "first"}, 1)
	v2, _ := get(context.Background(), &repo{name: "second"}, 1)
	if calls != 1 || v1 != "first" || v2 != "first" {
		t.Errorf("calls=%d v1=%q v2=%q", calls, v1, v2)
	}
}

func TestWrap3(t *testing.T) {
	svc := newTestService(t, NewMemoryStore())

	var calls int
	join := Wrap3(svc.Bind("Join"), func(_ context.Context, a, b, sep string) (string, error) {
		calls++
		return a + sep + b, nil
	})

	for i := 0; i < 3; i++ {
		if v, _ := join(context.Background(), "a", "b", "-"); v != "a-b" {
			t.Fatalf("join() = %q", v)
		}
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestCoordinator_ConcurrentMissesAllExecute(t *testing.T) {
	svc := newTestService(t, NewMemoryStore())

	var calls atomic.Int32
	start := make(chan struct{})
	fn := Wrap1(svc.Bind("Slow"), func(_ context.Context, n int) (int, error) {
		calls.Add(1)
		<-start
		return n, nil
	})

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = fn(context.Background(), 1)
		}()
	}
	for calls.Load() < 4 {
		time.Sleep(time.Millisecond)
	}
	close(start)
	wg.Wait()

	if got := svc.Stats().Writes; got != 4 {
		t.Errorf("Writes = %d, want 4", got)
	}
}

func TestFuncNameAndParamsOf(t *testing.T) {
	fn := func(_ context.Context, a int, b string) (int, error) { return a, nil }

	if FuncName(fn) == "" {
		t.Error("FuncName() returned empty name")
	}
	if FuncName(42) != "" {
		t.Error("FuncName(non-func) should be empty")
	}

	params := ParamsOf(fn)
	if len(params) != 2 {
		t.Fatalf("len(ParamsOf()) = %d, want 2", len(params))
	}
	if params[0].Name != "arg0" || params[1].Name != "arg1" {
		t.Errorf("names = %q, %q", params[0].Name, params[1].Name)
	}
}

func TestCoordinator_ResultsNotAliased(t *testing.T) {
	svc := newTestService(t, NewMemoryStore())

	var calls int
	tags := Wrap0(svc.Bind("Tags"), func(context.Context) ([]string, error) {
		calls++
		return []string{"a"}, nil
	})
	limits := Wrap0(svc.Bind("Limits"), func(context.Context) (map[string]int, error) {
		calls++
		return map[string]int{"max": 1}, nil
	})
	ctx := context.Background()

	r1, _ := tags(ctx)
	r1[0] = "mutated"
	r2, _ := tags(ctx)
	if r2[0] != "a" {
		t.Fatalf("hit after miss-caller mutation = %v, want [a]", r2)
	}
	r2[0] = "mutated again"
	if r3, _ := tags(ctx); r3[0] != "a" {
		t.Errorf("hit after hit-caller mutation = %v, want [a]", r3)
	}

	m1, _ := limits(ctx)
	m1["max"] = 99
	if m2, _ := limits(ctx); m2["max"] != 1 {
		t.Errorf("map hit = %v, want max=1", m2)
	}

	if calls != 2 {
		t.Errorf("calls = %d, want 2", calls)
	}
}
