// Package rut validates and formats Chilean RUT (Rol Único Tributario) numbers.
//
// A RUT is a body of decimal digits followed by a check character (0-9 or K)
// computed from the body with a modulo-11 weighted checksum. Every function in
// this package is pure: no I/O, no shared state, and malformed input is
// reported through return values instead of panics.
package rut

import (
	"encoding/json"
	"errors"
	"regexp"
	"strconv"
	"strings"
	"unicode"
)

var (
	// ErrEmpty is reported when the input string is empty.
	ErrEmpty = errors.New("RUT must not be empty")
	// ErrTooShort is reported when fewer than two characters remain after cleaning.
	ErrTooShort = errors.New("RUT too short")
	// ErrInvalidBody is reported when the body contains anything but decimal digits.
	ErrInvalidBody = errors.New("RUT contains invalid characters")
	// ErrInvalidCheckDigit is reported when the check character is not 0-9 or K.
	ErrInvalidCheckDigit = errors.New("invalid check digit")
	// ErrChecksumMismatch is reported when the input is well formed but the
	// check character does not match the body.
	ErrChecksumMismatch = errors.New("check digit mismatch")
)

var (
	bodyPattern  = regexp.MustCompile(`^[0-9]+$`)
	checkPattern = regexp.MustCompile(`^[0-9K]$`)
)

// Result is the outcome of Validate.
type Result struct {
	Valid     bool
	Formatted string
	Err       error
}

type resultJSON struct {
	IsValid   bool    `json:"is_valid"`
	Formatted string  `json:"formatted"`
	Error     *string `json:"error"`
}

// MarshalJSON renders the result with a null error when the RUT is valid.
func (r Result) MarshalJSON() ([]byte, error) {
	out := resultJSON{IsValid: r.Valid, Formatted: r.Formatted}
	if r.Err != nil {
		msg := r.Err.Error()
		out.Error = &msg
	}
	return json.Marshal(out)
}

// Clean removes periods, hyphens and whitespace and uppercases what is left.
func Clean(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r == '.' || r == '-' || unicode.IsSpace(r) {
			continue
		}
		b.WriteRune(r)
	}
	return strings.ToUpper(b.String())
}

// Format renders s in canonical form (12.345.678-5) without validating it.
// Inputs that clean to fewer than two characters are returned unchanged.
func Format(s string) string {
	clean := []rune(Clean(s))
	if len(clean) < 2 {
		return s
	}
	n := len(clean) - 1
	return group(clean[:n]) + "-" + string(clean[n])
}

// Validate checks the check character of s against its body and returns the
// canonical rendering of s, valid or not.
func Validate(s string) Result {
	if s == "" {
		return Result{Err: ErrEmpty}
	}

	clean := []rune(Clean(s))
	if len(clean) < 2 {
		return Result{Formatted: s, Err: ErrTooShort}
	}

	n := len(clean) - 1
	body, check := string(clean[:n]), string(clean[n])

	if !bodyPattern.MatchString(body) {
		return Result{Formatted: s, Err: ErrInvalidBody}
	}
	if !checkPattern.MatchString(check) {
		return Result{Formatted: s, Err: ErrInvalidCheckDigit}
	}

	res := Result{
		Valid:     checkDigit(body) == check,
		Formatted: group(clean[:n]) + "-" + check,
	}
	if !res.Valid {
		res.Err = ErrChecksumMismatch
	}
	return res
}

// ComputeCheckDigit returns the check character for a body of decimal digits.
func ComputeCheckDigit(body string) (string, error) {
	if !bodyPattern.MatchString(body) {
		return "", ErrInvalidBody
	}
	return checkDigit(body), nil
}

// checkDigit assumes body has already been matched against bodyPattern.
func checkDigit(body string) string {
	sum, multiplier := 0, 2
	for i := len(body) - 1; i >= 0; i-- {
		sum += int(body[i]-'0') * multiplier
		if multiplier == 7 {
			multiplier = 2
		} else {
			multiplier++
		}
	}

	switch rem := sum % 11; rem {
	case 0:
		return "0"
	case 1:
		return "K"
	default:
		return strconv.Itoa(11 - rem)
	}
}

// group separates runes in clusters of three from the right with periods.
func group(body []rune) string {
	var b strings.Builder
	for i, r := range body {
		if i > 0 && (len(body)-i)%3 == 0 {
			b.WriteByte('.')
		}
		b.WriteRune(r)
	}
	return b.String()
}
