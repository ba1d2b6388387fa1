package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	MemberStatusActive   = "active"
	MemberStatusInactive = "inactive"
)

// Member is a chama member. The phone address is the only identity.
type Member struct {
	Phone          string          `json:"phone"`
	Name           string          `json:"name"`
	Balance        decimal.Decimal `json:"balance"`
	OpeningBalance decimal.Decimal `json:"openingBalance"`
	LastPayment    *time.Time      `json:"lastPayment,omitempty"`
	JoinDate       time.Time       `json:"joinDate"`
	Status         string          `json:"status"`
}

// IsActive reports whether the member takes part in sweeps.
func (m *Member) IsActive() bool {
	return m.Status == MemberStatusActive
}

// CreateMemberRequest is the validated input for registering a member.
type CreateMemberRequest struct {
	Phone   string          `json:"phone" validate:"required,max=32"`
	Name    string          `json:"name" validate:"required,min=1,max=100"`
	Balance decimal.Decimal `json:"balance"`
}

// UpdateMemberRequest is the closed set of member fields an admin may change.
// Nil fields are left untouched.
type UpdateMemberRequest struct {
	Name    *string          `json:"name" validate:"omitempty,min=1,max=100"`
	Status  *string          `json:"status" validate:"omitempty,min=1,max=32"`
	Balance *decimal.Decimal `json:"balance"`
}

// BalanceCheck compares a member's stored balance with the balance derived
// from its payment history.
type BalanceCheck struct {
	Phone   string          `json:"phone"`
	Stored  decimal.Decimal `json:"stored"`
	Derived decimal.Decimal `json:"derived"`
	Drift   decimal.Decimal `json:"drift"`
}

// Consistent reports whether stored and derived balances agree.
func (c *BalanceCheck) Consistent() bool {
	return c.Drift.IsZero()
}
