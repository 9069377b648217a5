package cache

import (
	"errors"
	"reflect"
	"slices"
	"strings"
	"sync"
)

const (
	tagKey          = "cache"
	reconcileOption = "reconcile"
)

// ErrNoMembers is returned when a type is registered without members.
var ErrNoMembers = errors.New("cache: reconciler needs at least one member")

// Member is one readable and writable member of S that is replayed onto a
// live argument when a call is served from the cache.
type Member[S any] struct {
	// Name identifies the member in logs.
	Name string

	// apply copies src's member onto dst when they differ.
	apply func(dst, src *S) bool

	// detach gives dst its own copy of any shared backing storage.
	detach func(dst *S)
}

// Field declares a comparable member reached through accessor. Members that
// hold interface values whose dynamic type is not comparable are compared
// with reflect.DeepEqual instead of ==.
func Field[S any, V comparable](name string, accessor func(*S) *V) Member[S] {
	equal := func(a, b V) bool { return a == b }
	switch reflect.TypeFor[V]().Kind() {
	case reflect.Interface, reflect.Struct, reflect.Array:
		equal = func(a, b V) bool {
			if reflect.ValueOf(&a).Elem().Comparable() && reflect.ValueOf(&b).Elem().Comparable() {
				return a == b
			}
			return reflect.DeepEqual(a, b)
		}
	}

	return Member[S]{
		Name: name,
		apply: func(dst, src *S) bool {
			d, s := accessor(dst), accessor(src)
			if equal(*d, *s) {
				return false
			}
			*d = *s
			return true
		},
	}
}

// SliceField declares a slice member. Values are cloned, never shared.
func SliceField[S any, E comparable](name string, accessor func(*S) *[]E) Member[S] {
	return Member[S]{
		Name: name,
		apply: func(dst, src *S) bool {
			d, s := accessor(dst), accessor(src)
			if slices.Equal(*d, *s) && (*d == nil) == (*s == nil) {
				return false
			}
			*d = slices.Clone(*s)
			return true
		},
		detach: func(dst *S) {
			d := accessor(dst)
			*d = slices.Clone(*d)
		},
	}
}

// TaggedMembers derives members from the exported fields of S tagged
// `cache:",reconcile"`. Slice and map fields are copied one level deep.
func TaggedMembers[S any]() []Member[S] {
	t := reflect.TypeFor[S]()
	if t.Kind() != reflect.Struct {
		return nil
	}

	var members []Member[S]
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.IsExported() {
			continue
		}
		if _, ok := parseTag(f.Tag.Get(tagKey)); !ok {
			continue
		}

		idx := i
		members = append(members, Member[S]{
			Name: f.Name,
			apply: func(dst, src *S) bool {
				d := reflect.ValueOf(dst).Elem().Field(idx)
				s := reflect.ValueOf(src).Elem().Field(idx)
				if reflect.DeepEqual(d.Interface(), s.Interface()) {
					return false
				}
				d.Set(shallowClone(s))
				return true
			},
			detach: func(dst *S) {
				d := reflect.ValueOf(dst).Elem().Field(idx)
				d.Set(shallowClone(d))
			},
		})
	}
	return members
}

// parseTag splits a cache struct tag into its name and reconcile flag.
func parseTag(tag string) (name string, reconcile bool) {
	name, opts, _ := strings.Cut(tag, ",")
	for opts != "" {
		var opt string
		opt, opts, _ = strings.Cut(opts, ",")
		if opt == reconcileOption {
			reconcile = true
		}
	}
	return name, reconcile
}

// shallowClone copies slice and map containers so the result shares no
// backing storage with v. Other values are returned as is.
func shallowClone(v reflect.Value) reflect.Value {
	switch v.Kind() {
	case reflect.Slice:
		if v.IsNil() {
			return v
		}
		out := reflect.MakeSlice(v.Type(), v.Len(), v.Len())
		reflect.Copy(out, v)
		return out
	case reflect.Map:
		if v.IsNil() {
			return v
		}
		out := reflect.MakeMapWithSize(v.Type(), v.Len())
		iter := v.MapRange()
		for iter.Next() {
			out.SetMapIndex(iter.Key(), iter.Value())
		}
		return out
	default:
		return v
	}
}

// cloneResult copies slice and map return values one level deep so neither
// the caller nor later hits alias the stored entry. Pointers and other values
// are shared as is.
func cloneResult(v any) any {
	if isNil(v) {
		return v
	}
	switch rv := reflect.ValueOf(v); rv.Kind() {
	case reflect.Slice, reflect.Map:
		return shallowClone(rv).Interface()
	}
	return v
}

type slotReconciler struct {
	members   []string
	reconcile func(live, cached any) int
	snapshot  func(live any) any
}

// Reconcilers is the registry of argument types eligible for reconciliation.
// Unregistered types are never reconciled and are stored by reference.
type Reconcilers struct {
	mu     sync.RWMutex
	byType map[reflect.Type]slotReconciler
}

// NewReconcilers creates an empty registry.
func NewReconcilers() *Reconcilers {
	return &Reconcilers{byType: make(map[reflect.Type]slotReconciler)}
}

// Register makes argument slots of type *S reconcilable through members.
// Registering S again replaces its members.
func Register[S any](r *Reconcilers, members ...Member[S]) error {
	if len(members) == 0 {
		return ErrNoMembers
	}
	members = slices.Clone(members)

	names := make([]string, len(members))
	for i, m := range members {
		names[i] = m.Name
	}

	rec := slotReconciler{
		members: names,
		reconcile: func(live, cached any) int {
			l, ok := live.(*S)
			if !ok || l == nil {
				return 0
			}
			c, ok := cached.(*S)
			if !ok || c == nil {
				return 0
			}
			copied := 0
			for _, m := range members {
				if m.apply(l, c) {
					copied++
				}
			}
			return copied
		},
		snapshot: func(live any) any {
			l, ok := live.(*S)
			if !ok || l == nil {
				return live
			}
			snap := *l
			for _, m := range members {
				if m.detach != nil {
					m.detach(&snap)
				}
			}
			return &snap
		},
	}

	r.mu.Lock()
	r.byType[reflect.TypeFor[*S]()] = rec
	r.mu.Unlock()
	return nil
}

// Members returns the registered member names for the argument type t.
func (r *Reconcilers) Members(t reflect.Type) ([]string, bool) {
	rec, ok := r.lookup(t)
	if !ok {
		return nil, false
	}
	return slices.Clone(rec.members), true
}

func (r *Reconcilers) lookup(t reflect.Type) (slotReconciler, bool) {
	if r == nil || t == nil {
		return slotReconciler{}, false
	}
	r.mu.RLock()
	rec, ok := r.byType[t]
	r.mu.RUnlock()
	return rec, ok
}

// Reconcile replays cached argument state onto the live arguments in place
// and returns the number of members copied.
//
// A slot is skipped when the cached value is nil, the live value is nil,
// their runtime types differ, or the type is not registered.
func (r *Reconcilers) Reconcile(live, cached []any) int {
	copied := 0
	for i := 0; i < len(live) && i < len(cached); i++ {
		c, l := cached[i], live[i]
		if isNil(c) || isNil(l) {
			continue
		}
		t := reflect.TypeOf(l)
		if t != reflect.TypeOf(c) {
			continue
		}
		rec, ok := r.lookup(t)
		if !ok {
			continue
		}
		copied += rec.reconcile(l, c)
	}
	return copied
}

// Snapshot copies args for storage. Registered slots are copied one level
// deep so the stored entry does not alias the caller's objects.
func (r *Reconcilers) Snapshot(args []any) []any {
	snap := make([]any, len(args))
	for i, arg := range args {
		snap[i] = arg
		if isNil(arg) {
			continue
		}
		if rec, ok := r.lookup(reflect.TypeOf(arg)); ok {
			snap[i] = rec.snapshot(arg)
		}
	}
	return snap
}

func isNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Interface, reflect.Chan, reflect.Func:
		return rv.IsNil()
	}
	return false
}
