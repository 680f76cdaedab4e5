// Package destructure converts arbitrary values attached to a log call into
// loggable property values, redacting sensitive keys along the way.
//
// Policies run in registration order and the first one claiming a value
// wins. Without a claiming policy, mappings are walked recursively with
// sensitive-key masking and everything else renders as a scalar, unless the
// call site asked for a deep walk (the @ template hint), which expands
// exported fields one level.
package destructure

import (
	"fmt"
	"reflect"
	"strings"
	"time"
)

const (
	// Redacted replaces the value of any sensitive key. Masking an already
	// masked structure is a no-op, so the operation is idempotent.
	Redacted = "***"
	// CycleMarker replaces a value already seen on the current walk.
	CycleMarker = "<cycle>"
	// ErrorMarker replaces a value whose destructuring policy panicked.
	ErrorMarker = "<destructure-error>"
)

// Policy inspects a value and may claim it, returning the destructured
// replacement. Returning ok=false passes the value to the next policy.
type Policy func(v any) (out any, ok bool)

// Destructurer applies the policy chain and masking rules.
type Destructurer struct {
	policies  []Policy
	sensitive map[string]struct{}
	onFault   func(error)
}

// New builds a Destructurer. sensitiveKeys are matched case-insensitively
// against mapping keys. onFault, when non-nil, receives policy failures;
// the failure never propagates to the log call site.
func New(sensitiveKeys []string, onFault func(error), policies ...Policy) *Destructurer {
	sensitive := make(map[string]struct{}, len(sensitiveKeys))
	for _, key := range sensitiveKeys {
		key = strings.ToLower(strings.TrimSpace(key))
		if key != "" {
			sensitive[key] = struct{}{}
		}
	}
	return &Destructurer{policies: policies, sensitive: sensitive, onFault: onFault}
}

// Value destructures v with default (shallow) semantics.
func (d *Destructurer) Value(v any) (out any) {
	defer d.recoverFault(&out)
	return d.walk(v, false, make(map[uintptr]struct{}))
}

// Deep destructures v walking exported fields one level deep.
func (d *Destructurer) Deep(v any) (out any) {
	defer d.recoverFault(&out)
	return d.walk(v, true, make(map[uintptr]struct{}))
}

func (d *Destructurer) recoverFault(out *any) {
	if r := recover(); r != nil {
		if d.onFault != nil {
			d.onFault(fmt.Errorf("destructure policy panic: %v", r))
		}
		*out = ErrorMarker
	}
}

func (d *Destructurer) walk(v any, deep bool, visited map[uintptr]struct{}) any {
	for _, policy := range d.policies {
		if out, ok := policy(v); ok {
			return out
		}
	}

	switch v.(type) {
	case nil, string, bool, error,
		int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64,
		float32, float64, time.Time, time.Duration:
		return v
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Interface:
		if rv.IsNil() {
			return nil
		}
		if rv.Kind() == reflect.Pointer {
			if d.seen(rv.Pointer(), visited) {
				return CycleMarker
			}
		}
		return d.walk(rv.Elem().Interface(), deep, visited)
	case reflect.Map:
		if d.seen(rv.Pointer(), visited) {
			return CycleMarker
		}
		return d.walkMap(rv, deep, visited)
	case reflect.Slice:
		if d.seen(rv.Pointer(), visited) {
			return CycleMarker
		}
		return d.walkSeq(rv, deep, visited)
	case reflect.Array:
		return d.walkSeq(rv, deep, visited)
	case reflect.Struct:
		if deep {
			return d.walkStruct(rv, visited)
		}
		return scalar(v)
	default:
		return scalar(v)
	}
}

func (d *Destructurer) seen(ptr uintptr, visited map[uintptr]struct{}) bool {
	if ptr == 0 {
		return false
	}
	if _, ok := visited[ptr]; ok {
		return true
	}
	visited[ptr] = struct{}{}
	return false
}

func (d *Destructurer) walkMap(rv reflect.Value, deep bool, visited map[uintptr]struct{}) any {
	out := make(map[string]any, rv.Len())
	iter := rv.MapRange()
	for iter.Next() {
		key := fmt.Sprint(iter.Key().Interface())
		if d.isSensitive(key) {
			out[key] = Redacted
			continue
		}
		out[key] = d.walk(iter.Value().Interface(), deep, visited)
	}
	return out
}

func (d *Destructurer) walkSeq(rv reflect.Value, deep bool, visited map[uintptr]struct{}) any {
	out := make([]any, rv.Len())
	for i := 0; i < rv.Len(); i++ {
		out[i] = d.walk(rv.Index(i).Interface(), deep, visited)
	}
	return out
}

// walkStruct expands exported fields one level. Field values that are
// themselves structs render as scalars: the walk is deliberately one level
// deep, with only mappings recursing further.
func (d *Destructurer) walkStruct(rv reflect.Value, visited map[uintptr]struct{}) any {
	rt := rv.Type()
	out := make(map[string]any, rt.NumField())
	for i := 0; i < rt.NumField(); i++ {
		field := rt.Field(i)
		if !field.IsExported() {
			continue
		}
		if d.isSensitive(field.Name) {
			out[field.Name] = Redacted
			continue
		}
		out[field.Name] = d.walk(rv.Field(i).Interface(), false, visited)
	}
	return out
}

func (d *Destructurer) isSensitive(key string) bool {
	_, ok := d.sensitive[strings.ToLower(key)]
	return ok
}

func scalar(v any) string {
	if s, ok := v.(fmt.Stringer); ok {
		return s.String()
	}
	return fmt.Sprint(v)
}
