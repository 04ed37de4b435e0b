package value

import (
	"bytes"
	"fmt"

	json "github.com/goccy/go-json"
	"golang.org/x/text/unicode/norm"
)

// MarshalCanonical produces canonical JSON for an InputSet.
// CRITICAL: This is the ONLY serialization used for snapshot hashes.
//
// Differences from MarshalJSON:
// 1. Keys and text values are NFC normalized
// 2. No HTML escaping (< > & are NOT escaped)
// 3. Numbers are printed in their shortest exact form, so 20.0 and 20 agree
func MarshalCanonical(s InputSet) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')

	// Normalize keys before sorting; two keys that normalize to the same
	// string would be ambiguous.
	sorted := make(InputSet, len(s))
	for k, v := range s {
		nk := FieldID(norm.NFC.String(string(k)))
		if _, dup := sorted[nk]; dup {
			return nil, fmt.Errorf("duplicate key after NFC normalization: %q", nk)
		}
		sorted[nk] = v
	}

	for i, k := range sorted.SortedKeys() {
		if i > 0 {
			buf.WriteByte(',')
		}
		keyBytes, err := marshalCanonicalString(string(k))
		if err != nil {
			return nil, fmt.Errorf("key %q: %w", k, err)
		}
		buf.Write(keyBytes)
		buf.WriteByte(':')

		valBytes, err := marshalCanonicalValue(sorted[k])
		if err != nil {
			return nil, fmt.Errorf("key %q: %w", k, err)
		}
		buf.Write(valBytes)
	}

	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func marshalCanonicalValue(v Value) ([]byte, error) {
	switch val := v.(type) {
	case Number:
		return []byte(val.String()), nil
	case Text:
		return marshalCanonicalString(string(val))
	case nil:
		return nil, fmt.Errorf("null is forbidden in canonical JSON")
	default:
		return nil, fmt.Errorf("unsupported type for canonical JSON: %T", v)
	}
}

// marshalCanonicalString produces a JSON string with NFC normalization and
// without HTML escaping.
func marshalCanonicalString(s string) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(norm.NFC.String(s)); err != nil {
		return nil, err
	}
	// Encoder adds a trailing newline
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}
