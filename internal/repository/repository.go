package repository

import (
	"context"
	"time"

	"github.com/Agamista0/ava-support-backend/internal/domain"
	"github.com/Agamista0/ava-support-backend/pkg/pagination"
)

// SessionRepository defines persistence for login sessions.
type SessionRepository interface {
	// Create inserts a new session row.
	Create(ctx context.Context, session *domain.Session) error

	// GetByID retrieves a session by its unique identifier.
	GetByID(ctx context.Context, id string) (*domain.Session, error)

	// Touch updates last_activity_at. Callers treat failures as non-fatal.
	Touch(ctx context.Context, id string) error

	// IsActive reports whether the session exists, is flagged active, and has
	// not passed its hard expiry.
	IsActive(ctx context.Context, id string) (bool, error)

	// Invalidate flips the active flag. The row is retained for audit.
	Invalidate(ctx context.Context, id string) error

	// InvalidateAllForUser deactivates every active session of the user and
	// returns how many were affected.
	InvalidateAllForUser(ctx context.Context, userID string) (int64, error)

	// ListActive returns the user's active sessions, most recently used first.
	ListActive(ctx context.Context, userID string) ([]domain.Session, error)

	// DeactivateExpired flips the active flag on sessions past their expiry.
	DeactivateExpired(ctx context.Context, now time.Time) (int64, error)
}

// BlacklistRepository defines persistence for revoked token jtis.
type BlacklistRepository interface {
	// Add records a revoked jti. Adding a jti that is already blacklisted is
	// not an error.
	Add(ctx context.Context, token *domain.BlacklistedToken) error

	// IsBlacklisted reports whether the jti has been revoked.
	IsBlacklisted(ctx context.Context, jti string) (bool, error)

	// PurgeExpired removes rows whose token would have expired anyway.
	PurgeExpired(ctx context.Context, now time.Time) (int64, error)
}

// LoginAttemptRepository defines persistence for the lockout bookkeeping.
type LoginAttemptRepository interface {
	// Record appends a login attempt.
	Record(ctx context.Context, attempt *domain.LoginAttempt) error

	// RecentForKey returns up to limit attempts for (email, ip) newer than
	// the window start, newest first.
	RecentForKey(ctx context.Context, email, ip string, since time.Time, limit int) ([]domain.LoginAttempt, error)

	// PruneOlderThan deletes attempts created before the cutoff.
	PruneOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// SecurityEventRepository defines persistence for the audit trail.
type SecurityEventRepository interface {
	// Record appends a security event.
	Record(ctx context.Context, event *domain.SecurityEvent) error

	// PruneOlderThan deletes events created before the cutoff.
	PruneOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// CreditRepository defines persistence for the credits ledger.
type CreditRepository interface {
	// Allocate creates or renews the user's ledger: the balance is replaced,
	// lifetime_granted accumulates, and the reset stamps advance. An empty
	// subscriptionRef leaves the ledger's subscription link untouched.
	Allocate(ctx context.Context, userID string, amount int, subscriptionRef string, resetAt, nextResetAt time.Time) error

	// Consume atomically deducts amount if the balance covers it, returning
	// ErrInsufficientCredits otherwise. Exactly one concurrent caller wins a
	// balance that covers only one of them.
	Consume(ctx context.Context, userID string, amount int) error

	// Get returns the user's ledger.
	Get(ctx context.Context, userID string) (*domain.CreditLedger, error)

	// RecordUsage appends a usage history entry.
	RecordUsage(ctx context.Context, entry *domain.UsageEntry) error

	// ListUsage returns a page of the user's usage history, newest first.
	ListUsage(ctx context.Context, userID string, params pagination.Params) ([]domain.UsageEntry, int, error)
}

// WebhookEventRepository tracks processed webhook event ids for replay
// detection.
type WebhookEventRepository interface {
	// MarkProcessed records the event id. It returns false when the id was
	// already recorded, which callers treat as a replay.
	MarkProcessed(ctx context.Context, eventID, eventType string) (bool, error)
}

// SubscriptionRepository defines persistence for billing subscriptions.
type SubscriptionRepository interface {
	// Create inserts a new subscription.
	Create(ctx context.Context, sub *domain.Subscription) error

	// GetActiveForUser returns the user's active subscription.
	GetActiveForUser(ctx context.Context, userID string) (*domain.Subscription, error)

	// GetByProviderRef returns the subscription with the given provider reference.
	GetByProviderRef(ctx context.Context, ref string) (*domain.Subscription, error)

	// UpdateStatus sets the subscription status.
	UpdateStatus(ctx context.Context, id, status string) error
}
