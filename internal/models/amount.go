package models

import (
	"bytes"
	"errors"
	"math"
	"strconv"
	"strings"
)

// NanoPerJUL is the number of nano-units in one JUL.
const NanoPerJUL Amount = 1_000_000_000

const nanoDigits = 9

// Amount is a token quantity in nano-units.
type Amount uint64

// String formats the amount in JUL with trailing zeros trimmed, e.g. "1.5 JUL".
func (a Amount) String() string {
	return a.Decimal() + " JUL"
}

// Decimal formats the amount in JUL without the unit suffix.
func (a Amount) Decimal() string {
	whole := uint64(a / NanoPerJUL)
	frac := uint64(a % NanoPerJUL)
	if frac == 0 {
		return strconv.FormatUint(whole, 10)
	}
	fs := strconv.FormatUint(frac, 10)
	fs = strings.Repeat("0", nanoDigits-len(fs)) + fs
	return strconv.FormatUint(whole, 10) + "." + strings.TrimRight(fs, "0")
}

// UnmarshalJSON accepts only non-negative JSON integers.
func (a *Amount) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		return &ValidationError{Field: "amount", Reason: "null is not an amount"}
	}
	n, err := strconv.ParseUint(string(data), 10, 64)
	if errors.Is(err, strconv.ErrRange) {
		return &ValidationError{Field: "amount", Reason: "out of range: " + string(data)}
	}
	if err != nil {
		// Integral floats such as 5e9 or 10.0 are tolerated.
		f, ferr := strconv.ParseFloat(string(data), 64)
		if ferr != nil || f < 0 || f != math.Trunc(f) || f >= 0x1p64 {
			return &ValidationError{Field: "amount", Reason: "not a non-negative integer: " + string(data)}
		}
		n = uint64(f)
	}
	*a = Amount(n)
	return nil
}

// ParseJUL parses a decimal JUL quantity such as "12" or "0.25" into nano-units.
func ParseJUL(field, s string) (Amount, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, &ValidationError{Field: field, Reason: "amount is required"}
	}
	if strings.HasPrefix(s, "-") {
		return 0, &ValidationError{Field: field, Reason: "amount must not be negative"}
	}
	whole, frac, _ := strings.Cut(s, ".")
	if whole == "" {
		whole = "0"
	}
	if len(frac) > nanoDigits {
		return 0, &ValidationError{Field: field, Reason: "more than 9 decimal places"}
	}
	w, err := strconv.ParseUint(whole, 10, 64)
	if err != nil {
		return 0, &ValidationError{Field: field, Reason: "not a number: " + s}
	}
	var f uint64
	if frac != "" {
		f, err = strconv.ParseUint(frac+strings.Repeat("0", nanoDigits-len(frac)), 10, 64)
		if err != nil {
			return 0, &ValidationError{Field: field, Reason: "not a number: " + s}
		}
	}
	if w > (math.MaxUint64-f)/uint64(NanoPerJUL) {
		return 0, &ValidationError{Field: field, Reason: "amount overflows"}
	}
	return Amount(w*uint64(NanoPerJUL) + f), nil
}
