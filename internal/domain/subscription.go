package domain

import "time"

const SubscriptionActive = "active"

// Subscription is a member's bot plan. One row per phone, replaced on
// re-subscription.
type Subscription struct {
	Phone     string     `json:"phone"`
	Plan      string     `json:"plan"`
	StartDate time.Time  `json:"startDate"`
	EndDate   *time.Time `json:"endDate,omitempty"`
	Status    string     `json:"status"` // active, or anything else for paused
}

// IsActive reports whether the subscription is billed and reminded.
func (s *Subscription) IsActive() bool {
	return s.Status == SubscriptionActive
}

// IsPremium reports whether the subscription unlocks premium features.
func (s *Subscription) IsPremium() bool {
	return s.Plan == PlanPremium
}

// SubscriptionView is a subscription joined with the member name.
type SubscriptionView struct {
	Subscription
	Name string `json:"name"`
}

// CreateSubscriptionRequest is the input for creating a subscription.
type CreateSubscriptionRequest struct {
	Phone string `json:"phone" validate:"required"`
	Plan  string `json:"plan" validate:"required,oneof=basic premium"`
}
