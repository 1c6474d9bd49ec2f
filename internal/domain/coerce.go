package domain

import (
	"math"
	"strconv"
	"strings"
)

// CoerceInt converts loosely typed text to an integer. Float text is truncated; anything that is
// not a number falls back to zero.
func CoerceInt(value string) int64 {
	if n, ok := ParseIntCell(value); ok {
		return n
	}
	return 0
}

// CoerceFloat converts loosely typed text to a float. Non-numeric text, NaN and infinities fall
// back to zero.
func CoerceFloat(value string) float64 {
	if f := ParseOptionalFloat(value); f != nil {
		return *f
	}
	return 0
}

// ParseOptionalFloat returns nil for empty, non-numeric or non-finite text.
func ParseOptionalFloat(value string) *float64 {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	return &f
}

// Ratio divides num by den and reports a missing value instead of an infinity or NaN.
func Ratio(num, den float64) *float64 {
	if den == 0 {
		return nil
	}
	r := num / den
	if math.IsNaN(r) || math.IsInf(r, 0) {
		return nil
	}
	return &r
}

// Round2 rounds to two decimals, ties to even on the scaled value.
func Round2(v float64) float64 {
	return math.RoundToEven(v*100) / 100
}
