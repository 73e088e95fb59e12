package rut_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medrec/medrec/pkg/rut"
)

func TestClean(t *testing.T) {
	cases := map[string]string{
		"12.345.678-5":    "123456785",
		" 12345678 - 5 ":  "123456785",
		"1-k":             "1K",
		"":                "",
		"\t7.654.321-k\n": "7654321K",
		"abc-def":         "ABCDEF",
	}
	for in, want := range cases {
		assert.Equal(t, want, rut.Clean(in), "Clean(%q)", in)
	}
}

func TestValidate_ChecksumTable(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		valid     bool
		formatted string
		err       error
	}{
		{"valid eight digit body", "12345678-5", true, "12.345.678-5", nil},
		{"wrong check digit", "12345678-9", false, "12.345.678-9", rut.ErrChecksumMismatch},
		{"single digit body", "1-9", true, "1-9", nil},
		{"remainder one yields K", "6-K", true, "6-K", nil},
		{"remainder zero yields 0", "0-0", true, "0-0", nil},
		{"K supplied but computed 3", "76543210-K", false, "76.543.210-K", rut.ErrChecksumMismatch},
		{"76543210 computed 3", "76543210-3", true, "76.543.210-3", nil},
		{"repeated ones", "11.111.111-1", true, "11.111.111-1", nil},
		{"empty", "", false, "", rut.ErrEmpty},
		{"single char", "A", false, "A", rut.ErrTooShort},
		{"junk in body", "123ABC-5", false, "123ABC-5", rut.ErrInvalidBody},
		{"bad check character", "12345678-X", false, "12345678-X", rut.ErrInvalidCheckDigit},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := rut.Validate(tt.input)
			assert.Equal(t, tt.valid, res.Valid)
			assert.Equal(t, tt.formatted, res.Formatted)
			if tt.err == nil {
				assert.NoError(t, res.Err)
			} else {
				assert.ErrorIs(t, res.Err, tt.err)
			}
		})
	}
}

func TestValidate_ErrorMessages(t *testing.T) {
	assert.EqualError(t, rut.Validate("").Err, "RUT must not be empty")
	assert.EqualError(t, rut.Validate("A").Err, "RUT too short")
	assert.EqualError(t, rut.Validate("12a4-5").Err, "RUT contains invalid characters")
	assert.EqualError(t, rut.Validate("1234-Z").Err, "invalid check digit")
	assert.EqualError(t, rut.Validate("12345678-9").Err, "check digit mismatch")
}

func TestValidate_WhitespaceOnlyIsTooShort(t *testing.T) {
	res := rut.Validate("   ")
	assert.False(t, res.Valid)
	assert.ErrorIs(t, res.Err, rut.ErrTooShort)
	assert.Equal(t, "   ", res.Formatted)
}

func TestValidate_PartialTyping(t *testing.T) {
	res := rut.Validate("1")
	assert.ErrorIs(t, res.Err, rut.ErrTooShort)

	res = rut.Validate("12")
	assert.False(t, res.Valid)
	assert.ErrorIs(t, res.Err, rut.ErrChecksumMismatch)
	assert.Equal(t, "1-2", res.Formatted)
}

func TestValidate_SingleDigitBodyFormatsWithoutPeriods(t *testing.T) {
	res := rut.Validate("5-6")
	assert.Equal(t, "5-6", res.Formatted)
	assert.False(t, res.Valid)
	assert.ErrorIs(t, res.Err, rut.ErrChecksumMismatch)
}

func TestValidate_LowercaseKNormalized(t *testing.T) {
	lower := rut.Validate("6-k")
	upper := rut.Validate("6-K")
	assert.True(t, lower.Valid)
	assert.Equal(t, upper.Valid, lower.Valid)
	assert.Equal(t, "6-K", lower.Formatted)

	assert.Equal(t, rut.Validate("1-k").Valid, rut.Validate("1-K").Valid)
	assert.Equal(t, "1-K", rut.Validate("1-k").Formatted)
	assert.Equal(t, "1-K", rut.Validate("1-K").Formatted)
}

func TestValidate_LeadingZerosPreserved(t *testing.T) {
	res := rut.Validate("012345678-5")
	assert.True(t, res.Valid)
	assert.Equal(t, "012.345.678-5", res.Formatted)
}

func TestValidate_SeparatorStyleDoesNotMatter(t *testing.T) {
	a := rut.Validate("12345678-5")
	b := rut.Validate("12.345.678-5")
	c := rut.Validate(" 12345678 - 5 ")
	assert.True(t, a.Valid)
	assert.Equal(t, a.Valid, b.Valid)
	assert.Equal(t, b.Valid, c.Valid)
	assert.Equal(t, a.Formatted, c.Formatted)
}

func TestValidate_RoundTrip(t *testing.T) {
	for _, raw := range []string{"12345678-5", "1-9", "6-k", "7654321-6", "11111111-1"} {
		first := rut.Validate(raw)
		require.True(t, first.Valid, raw)
		assert.Contains(t, first.Formatted, "-")

		second := rut.Validate(first.Formatted)
		assert.True(t, second.Valid, first.Formatted)
		assert.Equal(t, first.Formatted, second.Formatted)
	}
}

func TestValidate_Boundaries(t *testing.T) {
	one := rut.Validate("9-1")
	assert.Equal(t, "9-1", one.Formatted)

	eight := rut.Validate("99999999-9")
	assert.Equal(t, "99.999.999-9", eight.Formatted)

	seven := rut.Validate("1234567-4")
	assert.Equal(t, "1.234.567-4", seven.Formatted)
	assert.True(t, seven.Valid)

	four := rut.Validate("1000-K")
	assert.Equal(t, "1.000-K", four.Formatted)
}

func TestComputeCheckDigit(t *testing.T) {
	cases := map[string]string{
		"12345678": "5",
		"76543210": "3",
		"1":        "9",
		"6":        "K",
		"0":        "0",
		"11111111": "1",
		"1234567":  "4",
	}
	for body, want := range cases {
		got, err := rut.ComputeCheckDigit(body)
		require.NoError(t, err)
		assert.Equal(t, want, got, "body %s", body)

		// whatever the algorithm computes must validate
		assert.True(t, rut.Validate(body+"-"+got).Valid)
	}

	_, err := rut.ComputeCheckDigit("12A")
	assert.ErrorIs(t, err, rut.ErrInvalidBody)
	_, err = rut.ComputeCheckDigit("")
	assert.ErrorIs(t, err, rut.ErrInvalidBody)
}

func TestFormat(t *testing.T) {
	cases := map[string]string{
		"123456785":     "12.345.678-5",
		"12.345.678-5":  "12.345.678-5",
		" 1234567 - k ": "1.234.567-K",
		"1k":            "1-K",
		"A":             "A",
		"":              "",
		"-":             "-",
		"abcdef":        "AB.CDE-F",
	}
	for in, want := range cases {
		assert.Equal(t, want, rut.Format(in), "Format(%q)", in)
	}
}

func TestFormat_Idempotent(t *testing.T) {
	for _, in := range []string{"123456785", "1-9", " 76.543.210 k", "0012", "1A2B3C", "ab"} {
		once := rut.Format(in)
		assert.Equal(t, once, rut.Format(once), "Format(Format(%q))", in)
	}
}

func TestResult_MarshalJSON(t *testing.T) {
	data, err := json.Marshal(rut.Validate("12345678-5"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"is_valid":true,"formatted":"12.345.678-5","error":null}`, string(data))

	data, err = json.Marshal(rut.Validate("123ABC-5"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"is_valid":false,"formatted":"123ABC-5","error":"RUT contains invalid characters"}`, string(data))
}
