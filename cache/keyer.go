package cache

import (
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"reflect"
	"sort"
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"
)

const (
	keyDelimiter = "|"
	nilToken     = "<nil>"
	hashMarker   = "#"
)

// Keyer derives cache keys for one bound function.
//
// Contract:
// - Determinism: same arguments must produce the same key within a process.
// - Concurrency: implementations must be safe for concurrent use.
// - Errors: BuildKey never fails; unrepresentable values degrade to a coarse token.
type Keyer interface {
	BuildKey(receiver any, args []any) string
}

// PropertyReader lets an argument expose named properties to the
// UseSpecifiedProperties key policy without reflection.
type PropertyReader interface {
	CacheProperty(name string) (any, bool)
}

// Param describes one formal parameter of a bound function.
type Param struct {
	// Name is the parameter name, used in logs only.
	Name string

	// Type is the declared type. It may be nil when unknown.
	Type reflect.Type

	// Exclude leaves this slot out of the key. The slot is still
	// snapshotted and reconciled.
	Exclude bool
}

// KeyConfig is fixed at bind time and read-only afterwards.
type KeyConfig struct {
	// GroupName namespaces keys. Empty means the method identity alone.
	GroupName string

	// Policy selects how argument values contribute to the key.
	Policy KeyPolicy

	// Properties are read, in order, from structured arguments under
	// UseSpecifiedProperties.
	Properties []string

	// Method is the qualified identity of the bound function.
	Method string

	// Params is the declared parameter list. It may be empty.
	Params []Param
}

// KeyBuilder is the default Keyer.
//
// Format: [<group>:]<method>|<arg0>|<arg1>...
//
// Numbers and booleans print bare, strings are Go-quoted, nil prints as <nil>,
// and composite values print in a JSON-like form with sorted map keys. A
// colon or backslash in the group or method is escaped with a backslash.
// Keys longer than MaxKeyLength keep their prefix and replace the argument
// part with the xxhash64 of the full key.
type KeyBuilder struct {
	cfg    KeyConfig
	prefix string
}

// NewKeyBuilder creates a KeyBuilder. The config slices are copied.
func NewKeyBuilder(cfg KeyConfig) *KeyBuilder {
	cfg.Properties = append([]string(nil), cfg.Properties...)
	cfg.Params = append([]Param(nil), cfg.Params...)

	prefix := escapePrefix(cfg.Method)
	if cfg.GroupName != "" {
		prefix = escapePrefix(cfg.GroupName) + ":" + prefix
	}
	return &KeyBuilder{cfg: cfg, prefix: prefix}
}

var prefixEscaper = strings.NewReplacer(`\`, `\\`, ":", `\:`)

// escapePrefix escapes the group separator so distinct group and method
// pairs never share a prefix.
func escapePrefix(s string) string {
	return prefixEscaper.Replace(s)
}

// Config returns a copy of the bound configuration.
func (b *KeyBuilder) Config() KeyConfig {
	cfg := b.cfg
	cfg.Properties = append([]string(nil), b.cfg.Properties...)
	cfg.Params = append([]Param(nil), b.cfg.Params...)
	return cfg
}

// Prefix returns the namespace every key of this builder starts with.
func (b *KeyBuilder) Prefix() string {
	return b.prefix
}

// BuildKey derives the key for one invocation.
//
// The receiver never contributes: two receivers called with equal arguments
// share an entry.
func (b *KeyBuilder) BuildKey(_ any, args []any) string {
	var sb strings.Builder
	sb.WriteString(b.prefix)

	for i, arg := range args {
		if i < len(b.cfg.Params) && b.cfg.Params[i].Exclude {
			continue
		}
		sb.WriteString(keyDelimiter)
		if b.cfg.Policy == UseSpecifiedProperties {
			if part, ok := propertiesPart(arg, b.cfg.Properties); ok {
				sb.WriteString(part)
				continue
			}
		}
		sb.WriteString(formatValue(arg))
	}

	return compactKey(b.prefix, sb.String())
}

// compactKey hashes the argument part of keys that exceed MaxKeyLength.
func compactKey(prefix, key string) string {
	if len(key) <= MaxKeyLength {
		return key
	}

	var sum [8]byte
	binary.BigEndian.PutUint64(sum[:], xxhash.Sum64String(key))
	suffix := keyDelimiter + hashMarker + hex.EncodeToString(sum[:])

	if room := MaxKeyLength - len(suffix); len(prefix) > room {
		prefix = prefix[:room]
	}
	return prefix + suffix
}

// maxKeyDepth bounds how deep formatValue descends into nested values.
const maxKeyDepth = 32

var jsonMarshalerType = reflect.TypeFor[json.Marshaler]()

// formatValue renders one argument. It never fails.
//
// Structs render every field, exported or not, as {"Name":value,...}.
// Values implementing json.Marshaler render as their JSON. Funcs, chans and
// unsafe pointers render as <type:T> in place, so the rest of the value
// still distinguishes keys.
func formatValue(v any) string {
	if v == nil {
		return nilToken
	}
	w := valueWriter{seen: make(map[uintptr]bool)}
	w.write(reflect.ValueOf(v), 0)
	return w.sb.String()
}

type valueWriter struct {
	sb   strings.Builder
	seen map[uintptr]bool
}

func (w *valueWriter) write(rv reflect.Value, depth int) {
	if !rv.IsValid() {
		w.sb.WriteString(nilToken)
		return
	}
	if depth > maxKeyDepth {
		w.sb.WriteString(fallbackToken(rv.Type()))
		return
	}
	if w.writeMarshaler(rv) {
		return
	}

	switch rv.Kind() {
	case reflect.String:
		w.sb.WriteString(strconv.Quote(rv.String()))
	case reflect.Bool:
		w.sb.WriteString(strconv.FormatBool(rv.Bool()))
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		w.sb.WriteString(strconv.FormatInt(rv.Int(), 10))
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		w.sb.WriteString(strconv.FormatUint(rv.Uint(), 10))
	case reflect.Float32:
		w.sb.WriteString(strconv.FormatFloat(rv.Float(), 'g', -1, 32))
	case reflect.Float64:
		w.sb.WriteString(strconv.FormatFloat(rv.Float(), 'g', -1, 64))
	case reflect.Complex64, reflect.Complex128:
		w.sb.WriteString(strconv.FormatComplex(rv.Complex(), 'g', -1, 128))

	case reflect.Interface:
		if rv.IsNil() {
			w.sb.WriteString(nilToken)
			return
		}
		w.write(rv.Elem(), depth+1)

	case reflect.Pointer:
		if rv.IsNil() {
			w.sb.WriteString(nilToken)
			return
		}
		addr := rv.Pointer()
		if w.seen[addr] {
			w.sb.WriteString(fallbackToken(rv.Type()))
			return
		}
		w.seen[addr] = true
		w.write(rv.Elem(), depth+1)
		delete(w.seen, addr)

	case reflect.Slice:
		if rv.IsNil() {
			w.sb.WriteString(nilToken)
			return
		}
		w.writeList(rv, depth)
	case reflect.Array:
		w.writeList(rv, depth)

	case reflect.Map:
		if rv.IsNil() {
			w.sb.WriteString(nilToken)
			return
		}
		w.writeMap(rv, depth)

	case reflect.Struct:
		w.writeStruct(rv, depth)

	case reflect.Func, reflect.Chan:
		if rv.IsNil() {
			w.sb.WriteString(nilToken)
			return
		}
		w.sb.WriteString(fallbackToken(rv.Type()))
	default:
		w.sb.WriteString(fallbackToken(rv.Type()))
	}
}

// writeMarshaler renders values that define their own JSON form. Nil
// pointers and values behind unexported fields are left to the walker.
func (w *valueWriter) writeMarshaler(rv reflect.Value) bool {
	if rv.Kind() == reflect.Interface || !rv.CanInterface() || !rv.Type().Implements(jsonMarshalerType) {
		return false
	}
	if rv.Kind() == reflect.Pointer && rv.IsNil() {
		return false
	}
	b, err := rv.Interface().(json.Marshaler).MarshalJSON()
	if err != nil {
		w.sb.WriteString(fallbackToken(rv.Type()))
		return true
	}
	w.sb.Write(b)
	return true
}

func (w *valueWriter) writeList(rv reflect.Value, depth int) {
	w.sb.WriteByte('[')
	for i := 0; i < rv.Len(); i++ {
		if i > 0 {
			w.sb.WriteByte(',')
		}
		w.write(rv.Index(i), depth+1)
	}
	w.sb.WriteByte(']')
}

// writeMap renders entries sorted by their rendered key.
func (w *valueWriter) writeMap(rv reflect.Value, depth int) {
	type pair struct{ key, val string }
	pairs := make([]pair, 0, rv.Len())

	iter := rv.MapRange()
	for iter.Next() {
		kw := valueWriter{seen: w.seen}
		kw.write(iter.Key(), depth+1)
		vw := valueWriter{seen: w.seen}
		vw.write(iter.Value(), depth+1)
		pairs = append(pairs, pair{kw.sb.String(), vw.sb.String()})
	}
	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].key != pairs[j].key {
			return pairs[i].key < pairs[j].key
		}
		return pairs[i].val < pairs[j].val
	})

	w.sb.WriteByte('{')
	for i, p := range pairs {
		if i > 0 {
			w.sb.WriteByte(',')
		}
		w.sb.WriteString(p.key)
		w.sb.WriteByte(':')
		w.sb.WriteString(p.val)
	}
	w.sb.WriteByte('}')
}

func (w *valueWriter) writeStruct(rv reflect.Value, depth int) {
	t := rv.Type()
	w.sb.WriteByte('{')
	for i := 0; i < t.NumField(); i++ {
		if i > 0 {
			w.sb.WriteByte(',')
		}
		w.sb.WriteString(strconv.Quote(t.Field(i).Name))
		w.sb.WriteByte(':')
		w.write(rv.Field(i), depth+1)
	}
	w.sb.WriteByte('}')
}

func fallbackToken(t reflect.Type) string {
	return "<type:" + t.String() + ">"
}

// propertiesPart renders the named properties of a structured argument as
// {name=value,...}. It reports false for primitives and for structured values
// exposing none of the names, so the caller falls back to the whole value.
func propertiesPart(v any, names []string) (string, bool) {
	if isNil(v) || len(names) == 0 {
		return "", false
	}

	lookup := propertyLookup(v)
	if lookup == nil {
		return "", false
	}

	parts := make([]string, 0, len(names))
	for _, name := range names {
		val, ok := lookup(name)
		if !ok {
			continue
		}
		parts = append(parts, name+"="+formatValue(val))
	}
	if len(parts) == 0 {
		return "", false
	}
	return "{" + strings.Join(parts, ",") + "}", true
}

func propertyLookup(v any) func(string) (any, bool) {
	switch val := v.(type) {
	case PropertyReader:
		return val.CacheProperty
	case map[string]any:
		return func(name string) (any, bool) {
			p, ok := val[name]
			return p, ok
		}
	}

	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return nil
		}
		rv = rv.Elem()
	}
	if rv.Kind() != reflect.Struct {
		return nil
	}

	return func(name string) (any, bool) {
		idx, ok := fieldIndex(rv.Type(), name)
		if !ok {
			return nil, false
		}
		return rv.Field(idx).Interface(), true
	}
}

// fieldIndex finds an exported field by its cache tag name or Go name.
func fieldIndex(t reflect.Type, name string) (int, bool) {
	byName := -1
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.IsExported() {
			continue
		}
		tagName, _ := parseTag(f.Tag.Get(tagKey))
		if tagName == name {
			return i, true
		}
		if f.Name == name && byName < 0 {
			byName = i
		}
	}
	return byName, byName >= 0
}

// Ensure KeyBuilder implements Keyer
var _ Keyer = (*KeyBuilder)(nil)
