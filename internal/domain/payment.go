package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Payment types. Only contributions credit the member's balance when
// recorded through AddPayment.
const (
	PaymentContribution = "contribution"
	PaymentSubscription = "subscription"
	PaymentAdjustment   = "adjustment"
)

// Payment is an immutable ledger row.
type Payment struct {
	ID           int64           `json:"id"`
	Phone        string          `json:"phone"`
	Amount       decimal.Decimal `json:"amount"`
	Date         time.Time       `json:"date"`
	Type         string          `json:"type"`
	Description  string          `json:"description,omitempty"`
	BalanceDelta decimal.Decimal `json:"balanceDelta"` // effect on the member balance when recorded
}

// PaymentView is a payment joined with the owner's display name.
type PaymentView struct {
	Payment
	Name string `json:"name"`
}

// PaymentSummary aggregates contribution payments.
type PaymentSummary struct {
	TotalContributions   decimal.Decimal `json:"totalContributions"`
	MonthlyContributions decimal.Decimal `json:"monthlyContributions"`
	PaymentCount         int             `json:"paymentCount"`
}

// CreatePaymentRequest is the validated input for recording a payment.
type CreatePaymentRequest struct {
	Phone       string          `json:"phone" validate:"required"`
	Amount      decimal.Decimal `json:"amount"`
	Type        string          `json:"type" validate:"omitempty,max=32"`
	Description string          `json:"description" validate:"max=255"`
}

// DashboardStats is the landing summary of the admin dashboard.
type DashboardStats struct {
	TotalMembers         int             `json:"totalMembers"`
	TotalBalance         decimal.Decimal `json:"totalBalance"`
	MonthlyContributions decimal.Decimal `json:"monthlyContributions"`
	TotalContributions   decimal.Decimal `json:"totalContributions"`
	RecentPayments       []*PaymentView  `json:"recentPayments"`
}
