package normalize

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Kind tells which variant a Value holds.
type Kind int

const (
	KindNone Kind = iota
	KindScalar
	KindList
	KindRecord
)

// Value is a raw profile or listing field after the ingestion boundary has resolved its shape.
// CRM exports deliver the same column as plain text, as a list literal or as a keyed record
// (for example location hints carrying a "municipio" attribute).
type Value struct {
	Kind   Kind
	Scalar string
	Items  []Value
	Fields []Field
}

// Field is one key of a record Value.
type Field struct {
	Key   string
	Value Value
}

// Scalar wraps s as a scalar Value.
func Scalar(s string) Value {
	return Value{Kind: KindScalar, Scalar: s}
}

// List builds a list Value.
func List(items ...Value) Value {
	return Value{Kind: KindList, Items: items}
}

// Record builds a record Value.
func Record(fields ...Field) Value {
	return Value{Kind: KindRecord, Fields: fields}
}

// IsEmpty reports whether v has no textual content.
func (v Value) IsEmpty() bool {
	for _, leaf := range v.Leaves() {
		if strings.TrimSpace(leaf) != "" {
			return false
		}
	}
	return true
}

// Leaves returns every scalar reachable from v, depth first.
func (v Value) Leaves() []string {
	var out []string
	v.walk(func(s string) { out = append(out, s) })
	return out
}

func (v Value) walk(fn func(string)) {
	switch v.Kind {
	case KindScalar:
		fn(v.Scalar)
	case KindList:
		for _, item := range v.Items {
			item.walk(fn)
		}
	case KindRecord:
		for _, f := range v.Fields {
			f.Value.walk(fn)
		}
	}
}

// Get returns the value stored under key in a record.
func (v Value) Get(key string) (Value, bool) {
	if v.Kind != KindRecord {
		return Value{}, false
	}
	for _, f := range v.Fields {
		if f.Key == key {
			return f.Value, true
		}
	}
	return Value{}, false
}

// String joins the leaves with commas.
func (v Value) String() string {
	return strings.Join(v.Leaves(), ",")
}

// ParseValue resolves a raw decoded field into a Value. Strings that look like list or record
// literals (JSON or Python style) are parsed; anything unparseable stays a scalar.
func ParseValue(raw any) Value {
	switch val := raw.(type) {
	case nil:
		return Value{}
	case Value:
		return val
	case string:
		return parseString(val)
	case []string:
		items := make([]Value, 0, len(val))
		for _, s := range val {
			items = append(items, Scalar(s))
		}
		return List(items...)
	case []any:
		items := make([]Value, 0, len(val))
		for _, item := range val {
			items = append(items, ParseValue(item))
		}
		return List(items...)
	case map[string]any:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		fields := make([]Field, 0, len(keys))
		for _, k := range keys {
			fields = append(fields, Field{Key: k, Value: ParseValue(val[k])})
		}
		return Record(fields...)
	case float64:
		return Scalar(strconv.FormatFloat(val, 'f', -1, 64))
	case json.Number:
		return Scalar(val.String())
	case bool:
		return Scalar(strconv.FormatBool(val))
	case fmt.Stringer:
		return Scalar(val.String())
	default:
		return Scalar(fmt.Sprintf("%v", val))
	}
}

func parseString(s string) Value {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return Value{}
	}

	switch trimmed[0] {
	case '[', '(', '{', '\'', '"':
		if v, err := ParseLiteral(trimmed); err == nil {
			return v
		}
	}
	return Scalar(s)
}
