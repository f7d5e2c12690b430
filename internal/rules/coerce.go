package rules

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// CoerceDecimal converts a numeric string, float64, or decimal.Decimal into
// an exact decimal.Decimal. Empty strings are treated as absent (nil, no
// error) so an optional decimal field left blank is not a coercion failure.
func CoerceDecimal(v any) (any, error) {
	switch t := v.(type) {
	case decimal.Decimal:
		return t, nil
	case string:
		if t == "" {
			return nil, nil
		}
		d, err := decimal.NewFromString(t)
		if err != nil {
			return nil, fmt.Errorf("rules: coerce decimal %q: %w", t, err)
		}
		return d, nil
	case float64:
		return decimal.NewFromFloat(t), nil
	case int64:
		return decimal.NewFromInt(t), nil
	default:
		return nil, fmt.Errorf("rules: coerce decimal: unsupported type %T", v)
	}
}

// CoerceUint32 parses v into a uint32.
func CoerceUint32(v any) (any, error) {
	n, err := coerceUint(v, 32)
	if err != nil {
		return nil, err
	}
	if n == nil {
		return nil, nil
	}
	return uint32(n.(uint64)), nil
}

// CoerceUint16 parses v into a uint16.
func CoerceUint16(v any) (any, error) {
	n, err := coerceUint(v, 16)
	if err != nil {
		return nil, err
	}
	if n == nil {
		return nil, nil
	}
	return uint16(n.(uint64)), nil
}

// CoerceUint64 parses v into a uint64.
func CoerceUint64(v any) (any, error) {
	return coerceUint(v, 64)
}

func coerceUint(v any, bits int) (any, error) {
	switch t := v.(type) {
	case uint64:
		return t, nil
	case int:
		if t < 0 {
			return nil, fmt.Errorf("rules: coerce uint%d: negative value %d", bits, t)
		}
		return uint64(t), nil
	case float64:
		if t < 0 {
			return nil, fmt.Errorf("rules: coerce uint%d: negative value %v", bits, t)
		}
		return uint64(t), nil
	case string:
		if t == "" {
			return nil, nil
		}
		n, err := strconv.ParseUint(t, 10, bits)
		if err != nil {
			return nil, fmt.Errorf("rules: coerce uint%d %q: %w", bits, t, err)
		}
		return n, nil
	default:
		return nil, fmt.Errorf("rules: coerce uint%d: unsupported type %T", bits, v)
	}
}

// CoerceInt parses v into an int32.
func CoerceInt(v any) (any, error) {
	switch t := v.(type) {
	case int32:
		return t, nil
	case int:
		return int32(t), nil
	case float64:
		return int32(t), nil
	case string:
		if t == "" {
			return nil, nil
		}
		n, err := strconv.ParseInt(t, 10, 32)
		if err != nil {
			return nil, fmt.Errorf("rules: coerce int %q: %w", t, err)
		}
		return int32(n), nil
	default:
		return nil, fmt.Errorf("rules: coerce int: unsupported type %T", v)
	}
}

// epochLayouts are tried in order when a timestamp arrives as a string
// rather than an integer epoch offset.
var epochLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05.999999999",
	"2006-01-02",
}

// CoerceEpochNanos converts a known epoch-nanosecond field (or an ISO-8601
// string) into a timezone-aware instant, normalized to UTC.
func CoerceEpochNanos(v any) (any, error) {
	switch t := v.(type) {
	case time.Time:
		return t.UTC(), nil
	case int64:
		return time.Unix(0, t).UTC(), nil
	case uint64:
		return time.Unix(0, int64(t)).UTC(), nil
	case float64:
		return time.Unix(0, int64(t)).UTC(), nil
	case string:
		if t == "" {
			return nil, nil
		}
		if n, err := strconv.ParseInt(t, 10, 64); err == nil {
			return time.Unix(0, n).UTC(), nil
		}
		var lastErr error
		for _, layout := range epochLayouts {
			if parsed, err := time.Parse(layout, t); err == nil {
				return parsed.UTC(), nil
			} else {
				lastErr = err
			}
		}
		return nil, fmt.Errorf("rules: coerce timestamp %q: %w", t, lastErr)
	default:
		return nil, fmt.Errorf("rules: coerce timestamp: unsupported type %T", v)
	}
}

// CoerceEnum returns a Coercion that canonicalizes a string through table,
// matching case-insensitively on the input.
func CoerceEnum(table map[string]string) Coercion {
	return func(v any) (any, error) {
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("rules: coerce enum: unsupported type %T", v)
		}
		if s == "" {
			return nil, nil
		}
		if canon, ok := table[strings.ToLower(s)]; ok {
			return canon, nil
		}
		return nil, fmt.Errorf("rules: coerce enum: unrecognized value %q", s)
	}
}

// CoerceEmptyToAbsent returns v unchanged unless it is an empty string, in
// which case it reports the field as absent (nil, no error).
func CoerceEmptyToAbsent(v any) (any, error) {
	if s, ok := v.(string); ok && s == "" {
		return nil, nil
	}
	return v, nil
}
