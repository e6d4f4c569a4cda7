package realestate

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

var nullStrings = map[string]struct{}{
	"":     {},
	"nan":  {},
	"none": {},
	"null": {},
	"n/a":  {},
	"-":    {},
}

func coerceString(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(val)
	case float64:
		if math.IsNaN(val) {
			return ""
		}
		return strconv.FormatFloat(val, 'f', -1, 64)
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case json.Number:
		return val.String()
	case []byte:
		return strings.TrimSpace(string(val))
	case fmt.Stringer:
		return strings.TrimSpace(val.String())
	default:
		return strings.TrimSpace(fmt.Sprintf("%v", v))
	}
}

// coerceFloat parses a numeric cell. Decimal commas are accepted. The boolean is false when
// the cell holds something that is not a number; an empty cell is absent but well formed.
func coerceFloat(v any) (*float64, bool) {
	var f float64
	switch val := v.(type) {
	case nil:
		return nil, true
	case float64:
		f = val
	case float32:
		f = float64(val)
	case int:
		f = float64(val)
	case int64:
		f = float64(val)
	case json.Number:
		parsed, err := val.Float64()
		if err != nil {
			return nil, false
		}
		f = parsed
	default:
		s := coerceString(v)
		if _, ok := nullStrings[strings.ToLower(s)]; ok {
			return nil, true
		}
		parsed, err := strconv.ParseFloat(strings.ReplaceAll(s, ",", "."), 64)
		if err != nil {
			return nil, false
		}
		f = parsed
	}

	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil, true
	}
	return &f, true
}

// coerceInt parses a count cell, truncating fractional values. Counts outside the int32 range
// are malformed.
func coerceInt(v any) (*int, bool) {
	f, ok := coerceFloat(v)
	if f == nil {
		return nil, ok
	}
	if math.Abs(*f) > math.MaxInt32 {
		return nil, false
	}
	i := int(*f)
	return &i, true
}
