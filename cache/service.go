package cache

import (
	"context"
	"reflect"
	"runtime"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/jonwraymond/memocache/observe"
)

// Service owns the state shared by every cached function: the store, the
// expiry policy, the clock, the reconciler registry and the telemetry sinks.
// It replaces any process-global cache lookup; callers construct it once and
// bind functions to it.
type Service struct {
	store       Store
	policy      Policy
	now         func() time.Time
	reconcilers *Reconcilers
	inst        *observe.Instrumentation

	stats counters
}

// NewService creates a Service over store.
// Defaults: DefaultPolicy, time.Now, an empty Reconcilers registry and no-op
// instrumentation.
func NewService(store Store, opts ...ServiceOption) (*Service, error) {
	if store == nil {
		return nil, ErrNilStore
	}

	s := &Service{
		store:       store,
		policy:      DefaultPolicy(),
		now:         time.Now,
		reconcilers: NewReconcilers(),
		inst:        observe.NoopInstrumentation(),
	}
	for _, opt := range opts {
		opt(s)
	}

	if err := s.policy.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// Bind registers a function under method and returns its Coordinator.
// The key configuration is fixed from here on.
func (s *Service) Bind(method string, opts ...BindOption) *Coordinator {
	cfg := bindConfig{key: KeyConfig{Method: method}}
	for _, opt := range opts {
		opt(&cfg)
	}

	keyer := cfg.keyer
	if keyer == nil {
		keyer = NewKeyBuilder(cfg.key)
	}

	meta := observe.FuncMeta{
		Method: method,
		Group:  cfg.key.GroupName,
		Policy: cfg.key.Policy.String(),
	}

	c := &Coordinator{
		svc:       s,
		keyer:     keyer,
		keyPolicy: cfg.key.Policy,
		meta:      meta,
		logger:    s.inst.Logger.WithFunc(meta),
	}
	c.logger.Debug(context.Background(), "function bound",
		observe.Field{Key: "params", Value: len(cfg.key.Params)},
		observe.Field{Key: "policy", Value: meta.Policy},
	)
	return c
}

// Policy returns the expiry policy.
func (s *Service) Policy() Policy {
	return s.policy
}

// Reconcilers returns the registry of reconcilable argument types.
func (s *Service) Reconcilers() *Reconcilers {
	return s.reconcilers
}

// Store returns the backing store.
func (s *Service) Store() Store {
	return s.store
}

// Stats returns counters aggregated over every bound function.
func (s *Service) Stats() Stats {
	return s.stats.snapshot()
}

// FuncName returns the qualified name of a function value, suitable as the
// method identity passed to Bind.
func FuncName(fn any) string {
	v := reflect.ValueOf(fn)
	if v.Kind() != reflect.Func || v.IsNil() {
		return ""
	}
	if f := runtime.FuncForPC(v.Pointer()); f != nil {
		return f.Name()
	}
	return ""
}

// ParamsOf describes the parameters of a function value. A leading
// context.Context parameter is not part of the cached arguments and is
// skipped.
func ParamsOf(fn any) []Param {
	t := reflect.TypeOf(fn)
	if t == nil || t.Kind() != reflect.Func {
		return nil
	}

	ctxType := reflect.TypeFor[context.Context]()
	params := make([]Param, 0, t.NumIn())
	for i := 0; i < t.NumIn(); i++ {
		in := t.In(i)
		if i == 0 && in == ctxType {
			continue
		}
		params = append(params, Param{Name: "arg" + strconv.Itoa(len(params)), Type: in})
	}
	return params
}

// Stats holds cache activity counters.
type Stats struct {
	Hits        int64
	Misses      int64
	Stale       int64
	StoreErrors int64
	Writes      int64
	WriteErrors int64
	Reconciled  int64
}

// Lookups returns the number of lookups counted.
func (s Stats) Lookups() int64 {
	return s.Hits + s.Misses + s.Stale + s.StoreErrors
}

// HitRatio returns hits over lookups, or 0 when nothing was looked up.
func (s Stats) HitRatio() float64 {
	total := s.Lookups()
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total)
}

type counters struct {
	hits        atomic.Int64
	misses      atomic.Int64
	stale       atomic.Int64
	storeErrors atomic.Int64
	writes      atomic.Int64
	writeErrors atomic.Int64
	reconciled  atomic.Int64
}

func (c *counters) lookup(outcome observe.Outcome) {
	switch outcome {
	case observe.OutcomeHit:
		c.hits.Add(1)
	case observe.OutcomeMiss:
		c.misses.Add(1)
	case observe.OutcomeStale:
		c.stale.Add(1)
	case observe.OutcomeError:
		c.storeErrors.Add(1)
	}
}

func (c *counters) snapshot() Stats {
	return Stats{
		Hits:        c.hits.Load(),
		Misses:      c.misses.Load(),
		Stale:       c.stale.Load(),
		StoreErrors: c.storeErrors.Load(),
		Writes:      c.writes.Load(),
		WriteErrors: c.writeErrors.Load(),
		Reconciled:  c.reconciled.Load(),
	}
}
