package value

import (
	"bytes"
	"fmt"
	"slices"
	"strings"

	json "github.com/goccy/go-json"
	"github.com/shopspring/decimal"
)

// FieldID identifies one configurable input (e.g. "sys.spare_parts_qty").
type FieldID string

// Value is a sealed interface over the scalar kinds an input may hold.
// Only Number and Text implement it.
type Value interface {
	value() // Sealed
	String() string
	Equal(other Value) bool
}

// Number is an exact decimal value.
type Number struct {
	d decimal.Decimal
}

func (Number) value() {}

// NewNumber creates a Number from an integer.
func NewNumber(n int64) Number {
	return Number{d: decimal.NewFromInt(n)}
}

// NumberFromDecimal wraps an existing decimal.
func NumberFromDecimal(d decimal.Decimal) Number {
	return Number{d: d}
}

// ParseNumber parses a decimal literal such as "20", "-3" or "2.5".
// Surrounding whitespace is ignored.
func ParseNumber(s string) (Number, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Number{}, fmt.Errorf("empty number")
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Number{}, fmt.Errorf("parse number %q: %w", s, err)
	}
	return Number{d: d}, nil
}

// Decimal returns the underlying decimal.
func (n Number) Decimal() decimal.Decimal {
	return n.d
}

// String returns the shortest exact representation ("20", "2.5").
func (n Number) String() string {
	return n.d.String()
}

// Equal compares numerically, so 20 equals 20.0.
func (n Number) Equal(other Value) bool {
	o, ok := other.(Number)
	return ok && n.d.Equal(o.d)
}

// MarshalJSON emits a bare JSON number.
func (n Number) MarshalJSON() ([]byte, error) {
	return []byte(n.d.String()), nil
}

// Text is a string value.
type Text string

func (Text) value() {}

// String returns the text itself.
func (t Text) String() string {
	return string(t)
}

// Equal compares byte-for-byte.
func (t Text) Equal(other Value) bool {
	o, ok := other.(Text)
	return ok && t == o
}

// Equal reports whether two values are equal. Nil values are only equal to nil.
func Equal(a, b Value) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Equal(b)
}

// InputSet maps field IDs to their current values.
// Use SortedKeys() for deterministic iteration.
type InputSet map[FieldID]Value

// Clone returns a shallow copy. Values are immutable so a shallow copy is a
// full copy.
func (s InputSet) Clone() InputSet {
	if s == nil {
		return nil
	}
	out := make(InputSet, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}

// Equal reports whether both sets hold the same keys with equal values.
func (s InputSet) Equal(other InputSet) bool {
	if len(s) != len(other) {
		return false
	}
	for k, v := range s {
		ov, ok := other[k]
		if !ok || !Equal(v, ov) {
			return false
		}
	}
	return true
}

// SortedKeys returns keys in byte order.
func (s InputSet) SortedKeys() []FieldID {
	keys := make([]FieldID, 0, len(s))
	for k := range s {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// MarshalJSON implements json.Marshaler with sorted keys.
// NOTE: This is NOT canonical marshaling. Use MarshalCanonical for hashing.
func (s InputSet) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range s.SortedKeys() {
		if i > 0 {
			buf.WriteByte(',')
		}
		keyBytes, err := json.Marshal(string(k))
		if err != nil {
			return nil, fmt.Errorf("marshal key %q: %w", k, err)
		}
		buf.Write(keyBytes)
		buf.WriteByte(':')

		valBytes, err := MarshalValue(s[k])
		if err != nil {
			return nil, fmt.Errorf("marshal value for key %q: %w", k, err)
		}
		buf.Write(valBytes)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON implements json.Unmarshaler for InputSet.
// Numbers are decoded exactly; booleans, null, arrays and objects are rejected.
func (s *InputSet) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	*s = make(InputSet, len(raw))
	for k, v := range raw {
		val, err := UnmarshalValue(v)
		if err != nil {
			return fmt.Errorf("input %q: %w", k, err)
		}
		(*s)[FieldID(k)] = val
	}
	return nil
}

// MarshalValue marshals a single Value to JSON bytes.
func MarshalValue(v Value) ([]byte, error) {
	switch val := v.(type) {
	case Number:
		return val.MarshalJSON()
	case Text:
		return json.Marshal(string(val))
	case nil:
		return nil, fmt.Errorf("nil value")
	default:
		return nil, fmt.Errorf("unknown Value type: %T", v)
	}
}

// UnmarshalValue decodes a JSON scalar into a Value.
// Only strings and numbers are accepted.
func UnmarshalValue(data []byte) (Value, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, fmt.Errorf("empty JSON value")
	}

	switch data[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return nil, err
		}
		return Text(s), nil
	case '-', '0', '1', '2', '3', '4', '5', '6', '7', '8', '9':
		var n json.Number
		if err := json.Unmarshal(data, &n); err != nil {
			return nil, err
		}
		return ParseNumber(n.String())
	default:
		return nil, fmt.Errorf("unsupported JSON value %s: only strings and numbers are allowed", string(data))
	}
}

// FromAny converts a decoded Go value (from YAML or generic JSON) to a Value.
func FromAny(v any) (Value, error) {
	switch val := v.(type) {
	case Value:
		return val, nil
	case string:
		return Text(val), nil
	case int:
		return NewNumber(int64(val)), nil
	case int64:
		return NewNumber(val), nil
	case float64:
		return NumberFromDecimal(decimal.NewFromFloat(val)), nil
	case json.Number:
		return ParseNumber(val.String())
	case nil:
		return nil, fmt.Errorf("null is not a valid input value")
	default:
		return nil, fmt.Errorf("unsupported input value type: %T", v)
	}
}
