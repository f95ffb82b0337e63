package domain

import (
	"fmt"
	"sort"
	"strconv"
)

// MetadataValue is a scalar metadata value: string, number, or boolean.
// The closed set keeps the search filter contract well-defined.
type MetadataValue struct {
	kind byte // 's', 'n', 'b'
	s    string
	n    float64
	b    bool
}

func StringValue(v string) MetadataValue  { return MetadataValue{kind: 's', s: v} }
func NumberValue(v float64) MetadataValue { return MetadataValue{kind: 'n', n: v} }
func BoolValue(v bool) MetadataValue      { return MetadataValue{kind: 'b', b: v} }

// String renders the value in its canonical text form.
func (v MetadataValue) String() string {
	switch v.kind {
	case 'n':
		return strconv.FormatFloat(v.n, 'f', -1, 64)
	case 'b':
		return strconv.FormatBool(v.b)
	default:
		return v.s
	}
}

// Interface returns the underlying Go value for JSON encoding.
func (v MetadataValue) Interface() interface{} {
	switch v.kind {
	case 'n':
		return v.n
	case 'b':
		return v.b
	default:
		return v.s
	}
}

// Equal compares two metadata values by kind and content.
func (v MetadataValue) Equal(other MetadataValue) bool {
	return v == other
}

// Metadata is a typed mapping of string keys to scalar values attached to
// documents and records.
type Metadata map[string]MetadataValue

// MetadataFromJSON converts a decoded JSON object into Metadata,
// rejecting nested objects and arrays.
func MetadataFromJSON(raw map[string]interface{}) (Metadata, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	md := make(Metadata, len(raw))
	for k, v := range raw {
		switch t := v.(type) {
		case string:
			md[k] = StringValue(t)
		case float64:
			md[k] = NumberValue(t)
		case bool:
			md[k] = BoolValue(t)
		default:
			return nil, NewDomainErrorWithCause(ErrCodeValidation,
				"metadata values must be string, number, or boolean",
				fmt.Errorf("key %q has type %T", k, v))
		}
	}
	return md, nil
}

// ToJSON returns the metadata as a plain map suitable for JSON encoding.
func (m Metadata) ToJSON() map[string]interface{} {
	if len(m) == 0 {
		return nil
	}
	out := make(map[string]interface{}, len(m))
	for k, v := range m {
		out[k] = v.Interface()
	}
	return out
}

// Matches reports whether every key in filter is present in m with an equal value.
// A nil or empty filter matches everything.
func (m Metadata) Matches(filter Metadata) bool {
	for k, want := range filter {
		got, ok := m[k]
		if !ok || !got.Equal(want) {
			return false
		}
	}
	return true
}

// Keys returns the metadata keys in sorted order.
func (m Metadata) Keys() []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
