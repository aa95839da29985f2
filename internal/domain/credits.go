package domain

import (
	"time"
)

// CreditLedger tracks a user's spendable balance. The balance is replaced on
// renewal while the lifetime counters only ever accumulate.
type CreditLedger struct {
	UserID          string     `json:"user_id"`
	Balance         int        `json:"balance"`
	LifetimeGranted int64      `json:"lifetime_granted"`
	LifetimeUsed    int64      `json:"lifetime_used"`
	SubscriptionRef string     `json:"subscription_ref,omitempty"`
	LastResetAt     *time.Time `json:"last_reset_at,omitempty"`
	NextResetAt     *time.Time `json:"next_reset_at,omitempty"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// UsageEntry is one consumption taken from a ledger.
type UsageEntry struct {
	ID        int64     `json:"id"`
	UserID    string    `json:"user_id"`
	Amount    int       `json:"amount"`
	Operation string    `json:"operation"`
	Reference string    `json:"reference,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
