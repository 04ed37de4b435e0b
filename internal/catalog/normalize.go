package catalog

import (
	"errors"
	"fmt"

	"github.com/roach88/rdsquote/internal/value"
)

var (
	// ErrUnknownField is the cause when a field ID is not in the catalog.
	ErrUnknownField = errors.New("unknown field")

	// ErrNotNumeric is the cause when a numeric field receives non-numeric input.
	ErrNotNumeric = errors.New("value must be a number")
)

// NormalizeError is a local validation failure. It never reaches the server.
type NormalizeError struct {
	Field FieldID
	Raw   string
	Err   error
}

func (e *NormalizeError) Error() string {
	return fmt.Sprintf("field %s: %q: %v", e.Field, e.Raw, e.Err)
}

func (e *NormalizeError) Unwrap() error {
	return e.Err
}

// Message is the inline text shown next to the field.
func (e *NormalizeError) Message() string {
	return e.Err.Error()
}

// IsNormalizeError reports whether err is (or wraps) a NormalizeError.
func IsNormalizeError(err error) bool {
	var ne *NormalizeError
	return errors.As(err, &ne)
}

// Normalize converts raw user input according to the field's declared kind.
// Numeric fields parse to a Number; text fields pass raw through verbatim.
// Domain membership is NOT checked here; the server owns that decision.
func (c *Catalog) Normalize(id FieldID, raw string) (value.Value, error) {
	f, ok := c.Field(id)
	if !ok {
		return nil, &NormalizeError{Field: id, Raw: raw, Err: ErrUnknownField}
	}
	if f.Kind != KindNumeric {
		return value.Text(raw), nil
	}
	n, err := value.ParseNumber(raw)
	if err != nil {
		return nil, &NormalizeError{Field: id, Raw: raw, Err: ErrNotNumeric}
	}
	return n, nil
}
