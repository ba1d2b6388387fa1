package domain

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestShillings(t *testing.T) {
	cases := map[string]string{
		"0":        "0",
		"500":      "500",
		"1500":     "1,500",
		"1499.5":   "1,500",
		"2.5":      "2",
		"-250":     "-250",
		"12345678": "12,345,678",
		"-1234.4":  "-1,234",
		"100000":   "100,000",

		"10000000000000000000":   "10,000,000,000,000,000,000",
		"99999999999999999999.5": "100,000,000,000,000,000,000",
	}
	for in, want := range cases {
		assert.Equal(t, want, Shillings(decimal.RequireFromString(in)), in)
	}
}

func TestCents(t *testing.T) {
	assert.Equal(t, "1,500.00", Cents(decimal.NewFromInt(1500)))
	assert.Equal(t, "0.50", Cents(decimal.RequireFromString("0.5")))
	assert.Equal(t, "-1,234.57", Cents(decimal.RequireFromString("-1234.567")))
	assert.Equal(t, "999.00", Cents(decimal.NewFromInt(999)))
	assert.Equal(t, "12,345,678,901,234,567.89", Cents(decimal.RequireFromString("12345678901234567.89")))
}

func TestAmountInRange(t *testing.T) {
	cases := map[string]bool{
		"500":                  true,
		"0.01":                 true,
		"10000000000000000000": true,
		"1e18":                 true,
		"1e-18":                true,
		"1e19":                 false,
		"1e-19":                false,
		"1e300000000":          false,
		"-1e-300000000":        false,

		"1234567890123456789012345678901": false,
	}
	for in, want := range cases {
		assert.Equal(t, want, AmountInRange(decimal.RequireFromString(in)), in)
	}
}

func TestPlanPrice(t *testing.T) {
	assert.True(t, PlanPrice(PlanBasic).Equal(decimal.NewFromInt(100)))
	assert.True(t, PlanPrice(PlanPremium).Equal(decimal.NewFromInt(300)))
	assert.True(t, PlanPrice("gold").Equal(decimal.NewFromInt(300)))

	_, ok := GetPlan("gold")
	assert.False(t, ok)
}

func TestIsKind(t *testing.T) {
	err := ErrWriteFailure("failed", assert.AnError)
	assert.True(t, IsKind(err, KindWriteFailure))
	assert.False(t, IsKind(err, KindNotFound))
	assert.ErrorIs(t, err, assert.AnError)
	assert.False(t, IsKind(assert.AnError, KindWriteFailure))
}
