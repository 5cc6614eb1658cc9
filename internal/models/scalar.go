package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Scalar holds a JSON scalar exactly as the upstream API delivered it. Numbers,
// strings and booleans are kept in their textual form; null and absent keys are
// both represented by the zero value.
type Scalar struct {
	raw   string
	valid bool
}

// NewScalar returns a present scalar with the given textual value.
func NewScalar(raw string) Scalar {
	return Scalar{raw: raw, valid: true}
}

// NullScalar returns an absent scalar.
func NullScalar() Scalar {
	return Scalar{}
}

// UnmarshalJSON implements json.Unmarshaler.
func (s *Scalar) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*s = Scalar{}
		return nil
	}

	switch data[0] {
	case '"':
		var str string
		if err := json.Unmarshal(data, &str); err != nil {
			return err
		}
		*s = Scalar{raw: str, valid: true}
	case '{', '[':
		return fmt.Errorf("expected scalar, got %s", string(data))
	default:
		*s = Scalar{raw: string(data), valid: true}
	}
	return nil
}

// MarshalJSON implements json.Marshaler.
func (s Scalar) MarshalJSON() ([]byte, error) {
	if !s.valid {
		return []byte("null"), nil
	}
	return json.Marshal(s.raw)
}

// Valid reports whether the scalar was present and not null.
func (s Scalar) Valid() bool {
	return s.valid
}

// String returns the textual value and whether it was present.
func (s Scalar) String() (string, bool) {
	return s.raw, s.valid
}

// Float coerces the scalar to a float64. It fails for absent, empty and
// non-numeric values.
func (s Scalar) Float() (float64, error) {
	if !s.valid {
		return 0, fmt.Errorf("value is null")
	}
	trimmed := strings.TrimSpace(s.raw)
	if trimmed == "" {
		return 0, fmt.Errorf("value is empty")
	}
	if !isDecimal(trimmed) {
		return 0, fmt.Errorf("invalid number %q: not a decimal literal", s.raw)
	}
	f, err := strconv.ParseFloat(trimmed, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid number %q: %w", s.raw, err)
	}
	return f, nil
}

// Int coerces the scalar to an int64, accepting integral floats such as "3.0".
func (s Scalar) Int() (int64, error) {
	if !s.valid {
		return 0, fmt.Errorf("value is null")
	}
	trimmed := strings.TrimSpace(s.raw)
	if i, err := strconv.ParseInt(trimmed, 10, 64); err == nil {
		return i, nil
	}
	if !isDecimal(trimmed) {
		return 0, fmt.Errorf("invalid integer %q: not a decimal literal", s.raw)
	}
	f, err := strconv.ParseFloat(trimmed, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid integer %q: %w", s.raw, err)
	}
	if f != float64(int64(f)) {
		return 0, fmt.Errorf("invalid integer %q: has a fractional part", s.raw)
	}
	return int64(f), nil
}

// isDecimal rejects the hex, underscore and inf/nan spellings strconv.ParseFloat
// also accepts.
func isDecimal(s string) bool {
	return strings.IndexFunc(s, func(r rune) bool {
		return !strings.ContainsRune("0123456789+-.eE", r)
	}) < 0
}
