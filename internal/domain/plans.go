package domain

import (
	"github.com/shopspring/decimal"
)

const (
	PlanBasic   = "basic"
	PlanPremium = "premium"
)

// Plan is a subscription tier of the chama bot.
type Plan struct {
	ID       string          `json:"id"`
	Name     string          `json:"name"`
	Price    decimal.Decimal `json:"price"` // KES per month
	Features []string        `json:"features"`
}

// AvailablePlans returns all available plans.
func AvailablePlans() []Plan {
	return []Plan{
		{
			ID:       PlanBasic,
			Name:     "Basic",
			Price:    decimal.NewFromInt(100),
			Features: []string{"WhatsApp Bot", "Basic Reports", "Payment Tracking"},
		},
		{
			ID:       PlanPremium,
			Name:     "Premium",
			Price:    decimal.NewFromInt(300),
			Features: []string{"All Basic Features", "PDF Reports", "SMS Reminders", "Advanced Analytics"},
		},
	}
}

// GetPlan returns the plan for a given ID.
func GetPlan(id string) (Plan, bool) {
	for _, p := range AvailablePlans() {
		if p.ID == id {
			return p, true
		}
	}
	return Plan{}, false
}

// PlanPrice returns the monthly fee for a plan. Anything that is not basic is
// billed at the premium rate.
func PlanPrice(id string) decimal.Decimal {
	if id != PlanBasic {
		id = PlanPremium
	}
	p, _ := GetPlan(id)
	return p.Price
}
