package docstore

import (
	"math"
	"reflect"
	"strings"
	"time"
)

// NormalizeValue converts the Go numeric zoo to int64/float64 and walks nested
// maps and slices. Adapters call it on everything they read; Commit inputs
// are already normalized.
func NormalizeValue(v any) any {
	switch t := v.(type) {
	case int:
		return int64(t)
	case int8:
		return int64(t)
	case int16:
		return int64(t)
	case int32:
		return int64(t)
	case uint8:
		return int64(t)
	case uint16:
		return int64(t)
	case uint32:
		return int64(t)
	case uint64:
		if t > math.MaxInt64 {
			return float64(t)
		}
		return int64(t)
	case float32:
		return float64(t)
	case *time.Time:
		if t == nil {
			return nil
		}
		return t.UTC()
	case time.Time:
		return t.UTC()
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, e := range t {
			out[k] = NormalizeValue(e)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = NormalizeValue(e)
		}
		return out
	case []string:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = e
		}
		return out
	}
	return v
}

// NormalizeFields applies NormalizeValue to every field.
func NormalizeFields(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = NormalizeValue(v)
	}
	return out
}

// String returns v as a string when it is one.
func String(v any) (string, bool) {
	s, ok := v.(string)
	return s, ok
}

// Number returns v as a float64 when it is numeric.
func Number(v any) (float64, bool) {
	switch t := NormalizeValue(v).(type) {
	case int64:
		return float64(t), true
	case float64:
		if math.IsNaN(t) || math.IsInf(t, 0) {
			return 0, false
		}
		return t, true
	}
	return 0, false
}

// Time returns v as a time when it is one.
func Time(v any) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		return t, true
	case *time.Time:
		if t != nil {
			return *t, true
		}
	}
	return time.Time{}, false
}

// IsBlank reports whether v counts as "missing": nil, or a whitespace-only string.
func IsBlank(v any) bool {
	if v == nil {
		return true
	}
	if s, ok := v.(string); ok {
		return strings.TrimSpace(s) == ""
	}
	return false
}

// FieldString returns the trimmed string value of a field, or "" when the
// field is absent, blank, or not a string.
func FieldString(fields map[string]any, field string) string {
	s, ok := fields[field].(string)
	if !ok {
		return ""
	}
	return strings.TrimSpace(s)
}

// Equal compares two normalized values. Numbers compare by value across
// int64/float64 and times compare with time.Equal.
func Equal(a, b any) bool {
	a, b = NormalizeValue(a), NormalizeValue(b)
	if an, ok := Number(a); ok {
		bn, ok := Number(b)
		return ok && an == bn
	}
	if at, ok := Time(a); ok {
		bt, ok := Time(b)
		return ok && at.Equal(bt)
	}
	if IsDelete(a) || IsDelete(b) {
		return IsDelete(a) && IsDelete(b)
	}
	return reflect.DeepEqual(a, b)
}
