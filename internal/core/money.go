// Package core defines the domain model: entities, ownership-agnostic
// validation, the error taxonomy, and fixed-point money handling.
package core

import (
	"errors"
	"strings"

	"github.com/shopspring/decimal"
)

// Monetary values are decimal(12,2): at most two decimal places and at
// most twelve significant digits overall.
var maxMoneyAbs = decimal.New(1, 10) // 10^10, i.e. ten integer digits

var ErrInvalidAmount = errors.New("invalid amount")

// ParseMoney parses a user-supplied amount string. It accepts both dot and
// comma decimal separators and rejects values outside decimal(12,2).
func ParseMoney(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(strings.ReplaceAll(s, ",", "."))
	if s == "" {
		return decimal.Zero, ErrInvalidAmount
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, ErrInvalidAmount
	}
	if err := ValidateMoney(d); err != nil {
		return decimal.Zero, err
	}
	return d, nil
}

// ValidateMoney enforces the decimal(12,2) constraint.
func ValidateMoney(d decimal.Decimal) error {
	if d.Exponent() < -2 {
		return errors.New("no more than 2 decimal places allowed")
	}
	if d.Abs().GreaterThanOrEqual(maxMoneyAbs) {
		return errors.New("no more than 12 digits allowed")
	}
	return nil
}

// FormatMoney renders a decimal with exactly two fraction digits.
func FormatMoney(d decimal.Decimal) string {
	return d.StringFixed(2)
}
