// Package core provides money parsing and handling utilities.
//
// This file contains functions for parsing monetary amounts from strings
// and converting between cents and their decimal representation.
package core

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Money is an amount of the single configured currency, held in cents.
type Money struct {
	Cents int64
}

// ParseDecimal converts a decimal string to signed cents with proper rounding.
//
// It accepts both dot (12.34) and comma (12,34) decimal separators, an
// optional leading sign, an optional exponent (1.5e1), and performs half-up
// rounding on the third decimal place. Only ASCII digits are accepted. Zero
// and negative values are returned as-is so callers can decide how to
// report them.
//
// Examples:
//
//	ParseDecimal("12.34")  -> 1234, nil
//	ParseDecimal("-0,5")   -> -50, nil
//	ParseDecimal("12.345") -> 1235, nil (rounds up)
//	ParseDecimal("12.344") -> 1234, nil
func ParseDecimal(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, ErrInvalidAmount
	}
	s = strings.ReplaceAll(s, ",", ".")

	neg := false
	switch s[0] {
	case '-':
		neg = true
		s = s[1:]
	case '+':
		s = s[1:]
	}

	if i := strings.IndexAny(s, "eE"); i >= 0 {
		expanded, err := expandExponent(s[:i], s[i+1:])
		if err != nil {
			return 0, err
		}
		s = expanded
	}

	parts := strings.Split(s, ".")
	if len(parts) > 2 {
		return 0, ErrInvalidAmount
	}
	intPart := parts[0]
	fracPart := ""
	if len(parts) == 2 {
		fracPart = parts[1]
	}
	if intPart == "" && fracPart == "" {
		return 0, ErrInvalidAmount
	}
	if intPart == "" {
		intPart = "0"
	}
	if !isDigits(intPart) || !isDigits(fracPart) {
		return 0, ErrInvalidAmount
	}

	iv, err := strconv.ParseInt(intPart, 10, 64)
	if err != nil {
		return 0, ErrInvalidAmount
	}
	// Prevent overflow when multiplying by 100
	const maxSafeInt64 = (1<<63 - 1) / 100
	if iv >= maxSafeInt64 {
		return 0, ErrInvalidAmount
	}

	// Take first two fractional digits; then half-up rounding on third
	var fracCents int64
	if len(fracPart) > 0 {
		fracCents = int64(fracPart[0]-'0') * 10
		if len(fracPart) > 1 {
			fracCents += int64(fracPart[1] - '0')
			if len(fracPart) > 2 && fracPart[2] >= '5' {
				fracCents++
			}
		}
	}

	cents := iv*100 + fracCents
	if neg {
		cents = -cents
	}
	return cents, nil
}

func isDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// maxExponent bounds the digits an exponent may add; larger values overflow
// int64 cents anyway.
const maxExponent = 20

// expandExponent rewrites mantissa×10^exp as a plain decimal string by
// moving the decimal point, so no float rounding is involved.
func expandExponent(mantissa, exp string) (string, error) {
	e, err := strconv.Atoi(exp)
	if err != nil || e > maxExponent || e < -maxExponent {
		return "", ErrInvalidAmount
	}
	intPart, fracPart, _ := strings.Cut(mantissa, ".")
	if strings.Contains(fracPart, ".") || (intPart == "" && fracPart == "") {
		return "", ErrInvalidAmount
	}
	if !isDigits(intPart) || !isDigits(fracPart) {
		return "", ErrInvalidAmount
	}

	digits := intPart + fracPart
	point := len(intPart) + e
	switch {
	case point <= 0:
		return "0." + strings.Repeat("0", -point) + digits, nil
	case point >= len(digits):
		return digits + strings.Repeat("0", point-len(digits)), nil
	default:
		return digits[:point] + "." + digits[point:], nil
	}
}

// Add returns m + o.
func (m Money) Add(o Money) Money {
	return Money{Cents: m.Cents + o.Cents}
}

// IsPositive reports whether the amount is strictly greater than zero.
func (m Money) IsPositive() bool {
	return m.Cents > 0
}

// String formats the amount with exactly two fractional digits ("50.50").
func (m Money) String() string {
	cents := m.Cents
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	return fmt.Sprintf("%s%d.%02d", sign, cents/100, cents%100)
}

// MarshalJSON encodes the amount as a JSON number with two decimals.
func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalJSON accepts a JSON number (exponent form included) or a numeric
// string.
func (m *Money) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		data = []byte(s)
	}
	cents, err := ParseDecimal(string(data))
	if err != nil {
		return fmt.Errorf("invalid amount %q: %w", string(data), err)
	}
	m.Cents = cents
	return nil
}
