package domain

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Amounts outside these bounds are rejected before any rescaling arithmetic.
const (
	maxAmountExponent = 18
	maxAmountDigits   = 30
)

// AmountInRange reports whether amount is small enough to store and format.
func AmountInRange(amount decimal.Decimal) bool {
	exp := amount.Exponent()
	if exp > maxAmountExponent || exp < -maxAmountExponent {
		return false
	}
	digits := strings.TrimPrefix(amount.Coefficient().String(), "-")
	return len(digits) <= maxAmountDigits
}

// Shillings renders an amount as whole shillings with thousands separators,
// rounding half to even: 1499.5 -> "1,500".
func Shillings(amount decimal.Decimal) string {
	return group(amount.RoundBank(0).String())
}

// Cents renders an amount with two decimals and thousands separators.
func Cents(amount decimal.Decimal) string {
	return group(amount.Round(2).StringFixed(2))
}

// group inserts thousands separators into the integer part of a plain
// decimal string such as "-1234567.50".
func group(s string) string {
	sign := ""
	if strings.HasPrefix(s, "-") {
		sign, s = "-", s[1:]
	}
	whole, frac := s, ""
	if i := strings.IndexByte(s, '.'); i >= 0 {
		whole, frac = s[:i], s[i:]
	}

	var b strings.Builder
	b.Grow(len(sign) + len(whole) + len(whole)/3 + len(frac))
	b.WriteString(sign)
	for i, c := range whole {
		if i > 0 && (len(whole)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(c)
	}
	b.WriteString(frac)
	return b.String()
}
