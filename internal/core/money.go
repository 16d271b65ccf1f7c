// Package core provides money arithmetic and the ledger domain types.
//
// Every monetary value is a decimal.Decimal. Percentages and averages are
// rounded to two fractional digits, half away from zero, through the helpers
// in this file so the whole module shares one rounding policy.
package core

import (
	"strings"
	"unicode"

	"github.com/shopspring/decimal"
)

// Scale is the number of fractional digits kept in derived amounts.
const Scale = 2

var hundred = decimal.NewFromInt(100)

// Add returns a + b.
func Add(a, b decimal.Decimal) decimal.Decimal {
	return a.Add(b)
}

// Subtract returns a - b. The result may be negative.
func Subtract(a, b decimal.Decimal) decimal.Decimal {
	return a.Sub(b)
}

// Sum adds all values, returning zero for an empty list.
func Sum(values ...decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, v := range values {
		total = total.Add(v)
	}
	return total
}

// Round2 rounds to two fractional digits, half up.
func Round2(d decimal.Decimal) decimal.Decimal {
	return d.Round(Scale)
}

// PercentOf returns part*100/whole rounded to two digits. A zero or negative
// whole yields zero instead of an error.
func PercentOf(part, whole decimal.Decimal) decimal.Decimal {
	if !whole.IsPositive() {
		return decimal.Zero
	}
	return part.Mul(hundred).DivRound(whole, Scale)
}

// Average returns total/count rounded to two digits, zero when count is zero.
func Average(total decimal.Decimal, count int) decimal.Decimal {
	if count <= 0 {
		return decimal.Zero
	}
	return total.DivRound(decimal.NewFromInt(int64(count)), Scale)
}

// ParseAmount parses a positive decimal amount.
//
// Both dot (12.34) and comma (12,34) separators are accepted. Digits past the
// second fractional place are rounded half up. Signs, exponents and
// non-positive results are rejected with ErrInvalidAmount.
//
// Examples:
//
//	ParseAmount("12.34")  -> 12.34
//	ParseAmount("12,345") -> 12.35
func ParseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, ErrInvalidAmount
	}
	s = strings.ReplaceAll(s, ",", ".")
	if strings.Count(s, ".") > 1 {
		return decimal.Zero, ErrInvalidAmount
	}
	for _, r := range s {
		if r != '.' && !unicode.IsDigit(r) {
			return decimal.Zero, ErrInvalidAmount
		}
	}
	if strings.HasPrefix(s, ".") {
		s = "0" + s
	}
	d, err := decimal.NewFromString(strings.TrimSuffix(s, "."))
	if err != nil {
		return decimal.Zero, ErrInvalidAmount
	}
	d = Round2(d)
	if !d.IsPositive() {
		return decimal.Zero, ErrInvalidAmount
	}
	return d, nil
}

// RequirePositive reports ErrInvalidAmount unless d > 0.
func RequirePositive(d decimal.Decimal) error {
	if !d.IsPositive() {
		return ErrInvalidAmount
	}
	return nil
}
