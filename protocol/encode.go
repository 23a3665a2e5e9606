package protocol

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/CK6170/tenmadc-go/models"
)

// EncodeMillis renders a milli-unit value as a fixed-width decimal field.
// With 2/2 digits 5000 becomes "05.00"; with 1/3 digits 1500 becomes "1.500".
// The conversion is integer only.
func EncodeMillis(v int, f models.FieldFormat) (string, error) {
	if v < 0 {
		return "", fmt.Errorf("%w: %d is negative", ErrUnencodable, v)
	}
	step := f.Step()
	if v%step != 0 {
		return "", fmt.Errorf("%w: %d is not a multiple of %d", ErrUnencodable, v, step)
	}
	if v > f.Max() {
		return "", fmt.Errorf("%w: %d exceeds %d", ErrUnencodable, v, f.Max())
	}
	digits := fmt.Sprintf("%0*d", f.IntDigits+f.FracDigits, v/step)
	return digits[:f.IntDigits] + "." + digits[f.IntDigits:], nil
}

// DecodeMillis parses a numeric reply in format f back into milli-units.
// Leading zeros may be omitted but the fraction must have exactly
// f.FracDigits digits.
func DecodeMillis(op string, reply []byte, eol string, f models.FieldFormat) (int, error) {
	s := strings.TrimSpace(strings.TrimSuffix(string(reply), eol))
	if s == "" {
		return 0, malformed(op, reply, "empty")
	}
	intPart, fracPart, ok := strings.Cut(s, ".")
	if !ok {
		return 0, malformed(op, reply, "missing decimal point")
	}
	if intPart == "" || len(intPart) > f.IntDigits {
		return 0, malformed(op, reply, "want 1 to %d integer digits", f.IntDigits)
	}
	if len(fracPart) != f.FracDigits {
		return 0, malformed(op, reply, "want %d fraction digits", f.FracDigits)
	}
	if !allDigits(intPart) || !allDigits(fracPart) {
		return 0, malformed(op, reply, "non-digit characters")
	}
	n, err := strconv.Atoi(intPart + fracPart)
	if err != nil {
		return 0, malformed(op, reply, "%v", err)
	}
	return n * f.Step(), nil
}

// DecodeIdentification trims the reply of an identification query.
func DecodeIdentification(reply []byte, eol string) (string, error) {
	s := strings.TrimSpace(strings.TrimSuffix(string(reply), eol))
	if s == "" {
		return "", malformed(OpIdentify, reply, "empty identification")
	}
	return s, nil
}

func allDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
