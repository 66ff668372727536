// Package core provides money parsing and handling utilities.
//
// Amounts are shillings written in major units. A comma is only ever a
// thousands separator, matching how amounts are displayed in the ledger.
package core

import (
	"strconv"
	"strings"
)

// MaxAmountCents caps a single recorded amount at 10 billion shillings.
// Sums over any realistic period stay far below the int64 range.
const MaxAmountCents int64 = 1_000_000_000_000

// ParseDecimalToCents converts a decimal string to cents with proper rounding.
//
// The decimal separator is a dot. Commas group thousands and must sit
// between groups of exactly three digits; spaces and underscores are
// ignored. The third decimal place rounds half-up. Only ASCII digits are
// accepted, and amounts above MaxAmountCents are rejected.
//
// Examples:
//
//	ParseDecimalToCents("5000")      -> 500000, nil
//	ParseDecimalToCents("5,000")     -> 500000, nil
//	ParseDecimalToCents("1,234.50")  -> 123450, nil
//	ParseDecimalToCents("12.345")    -> 1235, nil (rounds up)
//	ParseDecimalToCents("12,34")     -> 0, ErrInvalidAmount
func ParseDecimalToCents(s string) (int64, error) {
	s = strings.TrimSpace(s)
	s = strings.NewReplacer(" ", "", "_", "").Replace(s)
	if s == "" {
		return 0, ErrInvalidAmount
	}
	intPart, fracPart, hasFrac := strings.Cut(s, ".")
	if hasFrac && strings.Contains(fracPart, ".") {
		return 0, ErrInvalidAmount
	}
	if strings.Contains(fracPart, ",") {
		return 0, ErrInvalidAmount
	}
	intPart, ok := ungroup(intPart)
	if !ok {
		return 0, ErrInvalidAmount
	}
	if intPart == "" {
		if fracPart == "" {
			return 0, ErrInvalidAmount
		}
		intPart = "0"
	}
	if !asciiDigits(intPart) || !asciiDigits(fracPart) {
		return 0, ErrInvalidAmount
	}
	iv, err := strconv.ParseInt(intPart, 10, 64)
	if err != nil || iv > MaxAmountCents/100 {
		return 0, ErrInvalidAmount
	}
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
	if cents > MaxAmountCents {
		return 0, ErrInvalidAmount
	}
	return cents, nil
}

// ungroup strips thousands commas from s. A grouped number needs a
// leading group of one to three digits followed by groups of three.
func ungroup(s string) (string, bool) {
	if !strings.Contains(s, ",") {
		return s, true
	}
	groups := strings.Split(s, ",")
	if n := len(groups[0]); n < 1 || n > 3 {
		return "", false
	}
	for _, g := range groups[1:] {
		if len(g) != 3 {
			return "", false
		}
	}
	return strings.Join(groups, ""), true
}

func asciiDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// ParseMoney is ParseDecimalToCents wrapped as a validated Money.
func ParseMoney(s string) (Money, error) {
	cents, err := ParseDecimalToCents(s)
	if err != nil {
		return Money{}, Invalid("amount", err)
	}
	return Money{Cents: cents}, nil
}

// Major returns the amount in major units for display purposes.
// Use cents for calculations to avoid floating-point drift.
func (m Money) Major() float64 {
	return float64(m.Cents) / 100.0
}
