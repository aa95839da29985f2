package domain

import (
	"time"
)

// Subscription statuses.
const (
	SubscriptionActive   = "active"
	SubscriptionCanceled = "canceled"
	SubscriptionPastDue  = "past_due"
)

// Plan describes a purchasable subscription tier. The catalog is defined in
// configuration rather than the database.
type Plan struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Credits      int    `json:"credits"`
	PriceCents   int    `json:"price_cents"`
	Currency     string `json:"currency"`
	IntervalDays int    `json:"interval_days"`
}

// Subscription links a user to a plan at the billing provider.
type Subscription struct {
	ID               string     `json:"id"`
	UserID           string     `json:"user_id"`
	PlanID           string     `json:"plan_id"`
	ProviderRef      string     `json:"provider_ref,omitempty"`
	Status           string     `json:"status"`
	CurrentPeriodEnd *time.Time `json:"current_period_end,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}
