package meta

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"
)

// timeLayouts are tried in order when parsing time literals.
var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// ParseValue converts a literal taken from a filter expression into the
// field's scalar value type. Enum literals must be one of EnumValues when
// the field declares any.
func (f *Field) ParseValue(s string) (any, error) {
	switch f.Scalar {
	case String:
		return s, nil
	case Enum:
		if len(f.EnumValues) > 0 && !slices.Contains(f.EnumValues, s) {
			return nil, fmt.Errorf("%q is not a value of enum %s (allowed: %s)", s, f.Name, strings.Join(f.EnumValues, ", "))
		}
		return s, nil
	case Int:
		n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%q is not an integer", s)
		}
		return n, nil
	case Float:
		n, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			return nil, fmt.Errorf("%q is not a number", s)
		}
		return n, nil
	case Bool:
		b, err := strconv.ParseBool(strings.TrimSpace(s))
		if err != nil {
			return nil, fmt.Errorf("%q is not a boolean", s)
		}
		return b, nil
	case Time:
		return parseTime(strings.TrimSpace(s))
	default:
		return nil, fmt.Errorf("field %s is not a scalar", f.Name)
	}
}

// Normalize converts a value read from the store into the field's scalar
// value type. Drivers return integers for booleans and text or []byte for
// times depending on the column type; nil stays nil.
func (f *Field) Normalize(v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	if b, ok := v.([]byte); ok {
		v = string(b)
	}
	switch f.Scalar {
	case Bool:
		switch b := v.(type) {
		case bool:
			return b, nil
		case int64:
			return b != 0, nil
		case int:
			return b != 0, nil
		case string:
			return strconv.ParseBool(b)
		}
	case Int:
		switch n := v.(type) {
		case int64:
			return n, nil
		case int32:
			return int64(n), nil
		case int:
			return int64(n), nil
		case float64:
			return int64(n), nil
		case string:
			return strconv.ParseInt(n, 10, 64)
		}
	case Float:
		switch n := v.(type) {
		case float64:
			return n, nil
		case float32:
			return float64(n), nil
		case int64:
			return float64(n), nil
		case int:
			return float64(n), nil
		case string:
			return strconv.ParseFloat(n, 64)
		}
	case Time:
		switch t := v.(type) {
		case time.Time:
			return t, nil
		case string:
			return parseTime(t)
		}
	case String, Enum:
		if s, ok := v.(string); ok {
			return s, nil
		}
		return fmt.Sprint(v), nil
	}
	return v, nil
}

func parseTime(s string) (time.Time, error) {
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("%q is not a time value", s)
}
