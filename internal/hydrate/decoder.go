// Package hydrate converts loosely typed values (as restored by JSON, YAML or
// TOML backed stores) into the concrete Go types of tracked properties.
package hydrate

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Into returns value converted to t. Raw JSON is decoded into t, assignable
// values are used as-is, numbers are converted when they fit t exactly and
// anything else takes a JSON round trip into a fresh t.
func Into(t reflect.Type, value any) (reflect.Value, error) {
	if t == nil {
		return reflect.Value{}, fmt.Errorf("hydrate: target type is nil")
	}
	if value == nil {
		return reflect.Zero(t), nil
	}
	switch raw := value.(type) {
	case json.RawMessage:
		return decodeJSON(t, raw)
	case json.Number:
		return decodeJSON(t, []byte(raw))
	}

	rv := reflect.ValueOf(value)
	if rv.Type().AssignableTo(t) {
		return rv, nil
	}
	if isNumeric(rv.Kind()) && isNumeric(t.Kind()) {
		return convertNumber(rv, t)
	}
	if convertible(rv.Type(), t) {
		return rv.Convert(t), nil
	}

	buffer, err := json.Marshal(value)
	if err != nil {
		return reflect.Value{}, fmt.Errorf("hydrate: marshal %T: %w", value, err)
	}
	return decodeJSON(t, buffer)
}

// DecodeJSON decodes data into plain Go values. Integers come back as int64
// (uint64 above the int64 range) instead of float64 so they survive being
// re-encoded.
func DecodeJSON(data []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var out any
	if err := dec.Decode(&out); err != nil {
		return nil, err
	}
	return normalizeNumbers(out), nil
}

// ParseDefault decodes a textual default (as found in a struct tag) into t.
// YAML is used so scalars, lists and maps can all be written inline.
func ParseDefault(t reflect.Type, raw string) (any, error) {
	if t == nil {
		return nil, fmt.Errorf("hydrate: target type is nil")
	}
	out := reflect.New(t)
	if t.Kind() == reflect.String {
		out.Elem().SetString(raw)
		return out.Elem().Interface(), nil
	}
	if err := yaml.Unmarshal([]byte(raw), out.Interface()); err != nil {
		return nil, fmt.Errorf("hydrate: parse default %q as %s: %w", raw, t, err)
	}
	return out.Elem().Interface(), nil
}

func decodeJSON(t reflect.Type, buffer []byte) (reflect.Value, error) {
	if t.Kind() == reflect.Interface {
		value, err := DecodeJSON(buffer)
		if err != nil {
			return reflect.Value{}, fmt.Errorf("hydrate: decode into %s: %w", t, err)
		}
		if value == nil {
			return reflect.Zero(t), nil
		}
		rv := reflect.ValueOf(value)
		if !rv.Type().AssignableTo(t) {
			return reflect.Value{}, fmt.Errorf("hydrate: %T does not implement %s", value, t)
		}
		return rv, nil
	}
	out := reflect.New(t)
	if err := json.Unmarshal(buffer, out.Interface()); err != nil {
		return reflect.Value{}, fmt.Errorf("hydrate: decode into %s: %w", t, err)
	}
	return out.Elem(), nil
}

func normalizeNumbers(value any) any {
	switch typed := value.(type) {
	case json.Number:
		if n, err := typed.Int64(); err == nil {
			return n
		}
		if u, err := strconv.ParseUint(typed.String(), 10, 64); err == nil {
			return u
		}
		f, _ := typed.Float64()
		return f
	case map[string]any:
		for key, item := range typed {
			typed[key] = normalizeNumbers(item)
		}
		return typed
	case []any:
		for i, item := range typed {
			typed[i] = normalizeNumbers(item)
		}
		return typed
	default:
		return value
	}
}

// convertNumber converts between numeric kinds, refusing results that
// overflow t, change sign or drop a fractional part.
func convertNumber(rv reflect.Value, t reflect.Type) (reflect.Value, error) {
	out := reflect.New(t).Elem()
	fail := func() (reflect.Value, error) {
		return reflect.Value{}, fmt.Errorf("hydrate: %v (%s) does not fit %s", rv.Interface(), rv.Type(), t)
	}

	switch {
	case isSigned(rv.Kind()):
		n := rv.Int()
		switch {
		case isSigned(t.Kind()):
			if out.OverflowInt(n) {
				return fail()
			}
			out.SetInt(n)
		case isUnsigned(t.Kind()):
			if n < 0 || out.OverflowUint(uint64(n)) {
				return fail()
			}
			out.SetUint(uint64(n))
		default:
			f := float64(n)
			if t.Kind() == reflect.Float32 {
				f = float64(float32(f))
			}
			if f >= math.MaxInt64 || f < math.MinInt64 || int64(f) != n {
				return fail()
			}
			out.SetFloat(f)
		}
	case isUnsigned(rv.Kind()):
		u := rv.Uint()
		switch {
		case isSigned(t.Kind()):
			if u > math.MaxInt64 || out.OverflowInt(int64(u)) {
				return fail()
			}
			out.SetInt(int64(u))
		case isUnsigned(t.Kind()):
			if out.OverflowUint(u) {
				return fail()
			}
			out.SetUint(u)
		default:
			f := float64(u)
			if t.Kind() == reflect.Float32 {
				f = float64(float32(f))
			}
			if f >= math.MaxUint64 || uint64(f) != u {
				return fail()
			}
			out.SetFloat(f)
		}
	default:
		f := rv.Float()
		if math.IsNaN(f) || math.IsInf(f, 0) {
			if isFloat(t.Kind()) {
				out.SetFloat(f)
				return out, nil
			}
			return fail()
		}
		switch {
		case isSigned(t.Kind()):
			if f != math.Trunc(f) || f >= math.MaxInt64 || f < math.MinInt64 || out.OverflowInt(int64(f)) {
				return fail()
			}
			out.SetInt(int64(f))
		case isUnsigned(t.Kind()):
			if f != math.Trunc(f) || f < 0 || f >= math.MaxUint64 || out.OverflowUint(uint64(f)) {
				return fail()
			}
			out.SetUint(uint64(f))
		default:
			if out.OverflowFloat(f) {
				return fail()
			}
			out.SetFloat(f)
		}
	}
	return out, nil
}

// convertible limits the remaining reflect conversions to same-kind
// conversions. Int to string is legal in reflect but never wanted.
func convertible(from, to reflect.Type) bool {
	if !from.ConvertibleTo(to) {
		return false
	}
	return from.Kind() == to.Kind() && from.Kind() != reflect.Slice && from.Kind() != reflect.Map
}

func isNumeric(kind reflect.Kind) bool {
	return isSigned(kind) || isUnsigned(kind) || isFloat(kind)
}

func isSigned(kind reflect.Kind) bool {
	switch kind {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return true
	}
	return false
}

func isUnsigned(kind reflect.Kind) bool {
	switch kind {
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return true
	}
	return false
}

func isFloat(kind reflect.Kind) bool {
	return kind == reflect.Float32 || kind == reflect.Float64
}
