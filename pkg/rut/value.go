package rut

import (
	"encoding/json"
	"fmt"
)

// RUT is a validated RUT. The zero value is not a valid RUT.
//
// Invariants:
//   - body is one or more decimal digits
//   - check is the modulo-11 check character of body
type RUT struct {
	body  string
	check string
}

// Parse validates s and returns it as a RUT. The returned error is one of
// the package sentinels and can be matched with errors.Is.
func Parse(s string) (RUT, error) {
	res := Validate(s)
	if !res.Valid {
		return RUT{}, res.Err
	}
	clean := Clean(s)
	n := len(clean) - 1
	return RUT{body: clean[:n], check: clean[n:]}, nil
}

// MustParse is like Parse but panics on invalid input.
// Use only in tests or with literals known to be valid.
func MustParse(s string) RUT {
	r, err := Parse(s)
	if err != nil {
		panic(fmt.Sprintf("rut: MustParse(%q): %v", s, err))
	}
	return r
}

// Body returns the digits before the check character.
func (r RUT) Body() string { return r.body }

// CheckDigit returns the check character, 0-9 or K.
func (r RUT) CheckDigit() string { return r.check }

// String returns the canonical form, e.g. 12.345.678-5.
func (r RUT) String() string {
	if r.IsZero() {
		return ""
	}
	return group([]rune(r.body)) + "-" + r.check
}

// IsZero reports whether r is the zero value.
func (r RUT) IsZero() bool {
	return r.body == ""
}

// MarshalJSON encodes the canonical form.
func (r RUT) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.String())
}

// UnmarshalJSON accepts any separator style and rejects invalid RUTs.
func (r *RUT) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := Parse(s)
	if err != nil {
		return fmt.Errorf("rut %q: %w", s, err)
	}
	*r = parsed
	return nil
}
