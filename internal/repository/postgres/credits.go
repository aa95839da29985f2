package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/Agamista0/ava-support-backend/pkg/database"
	apperrors "github.com/Agamista0/ava-support-backend/pkg/errors"
	"github.com/Agamista0/ava-support-backend/pkg/pagination"

	"github.com/Agamista0/ava-support-backend/internal/domain"
)

// CreditRepository implements repository.CreditRepository using PostgreSQL.
type CreditRepository struct {
	db database.DBTX
}

// NewCreditRepository creates a new PostgreSQL-backed credit repository.
func NewCreditRepository(db database.DBTX) *CreditRepository {
	return &CreditRepository{db: db}
}

// Allocate creates or renews the user's ledger. A renewal replaces the
// balance with the plan allotment while lifetime_granted accumulates. An
// empty subscriptionRef keeps whatever subscription link the row already has.
func (r *CreditRepository) Allocate(ctx context.Context, userID string, amount int, subscriptionRef string, resetAt, nextResetAt time.Time) error {
	query := `
		INSERT INTO credit_ledgers (user_id, balance, lifetime_granted, lifetime_used, subscription_ref, last_reset_at, next_reset_at, updated_at)
		VALUES ($1, $2, $2, 0, NULLIF($3, ''), $4, $5, $6)
		ON CONFLICT (user_id) DO UPDATE SET
			balance          = EXCLUDED.balance,
			lifetime_granted = credit_ledgers.lifetime_granted + EXCLUDED.balance,
			subscription_ref = COALESCE(EXCLUDED.subscription_ref, credit_ledgers.subscription_ref),
			last_reset_at    = EXCLUDED.last_reset_at,
			next_reset_at    = EXCLUDED.next_reset_at,
			updated_at       = EXCLUDED.updated_at`

	_, err := r.db.Exec(ctx, query, userID, amount, subscriptionRef, resetAt, nextResetAt, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("allocate credits: %w", err)
	}

	return nil
}

// Consume deducts amount in a single conditional UPDATE. The WHERE clause is
// the overdraw guard: under concurrency the row lock serializes the updates
// and only callers the remaining balance covers see a row affected.
func (r *CreditRepository) Consume(ctx context.Context, userID string, amount int) error {
	if amount <= 0 {
		return apperrors.InvalidInput("amount must be positive")
	}

	query := `
		UPDATE credit_ledgers
		SET balance = balance - $2,
		    lifetime_used = lifetime_used + $2,
		    updated_at = $3
		WHERE user_id = $1 AND balance >= $2`

	ct, err := r.db.Exec(ctx, query, userID, amount, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("consume credits: %w", err)
	}

	if ct.RowsAffected() == 0 {
		return apperrors.InsufficientCredits("credit balance does not cover this operation")
	}

	return nil
}

// Get returns the user's ledger.
func (r *CreditRepository) Get(ctx context.Context, userID string) (*domain.CreditLedger, error) {
	query := `
		SELECT user_id, balance, lifetime_granted, lifetime_used, COALESCE(subscription_ref, ''), last_reset_at, next_reset_at, updated_at
		FROM credit_ledgers
		WHERE user_id = $1`

	var l domain.CreditLedger
	err := r.db.QueryRow(ctx, query, userID).Scan(
		&l.UserID,
		&l.Balance,
		&l.LifetimeGranted,
		&l.LifetimeUsed,
		&l.SubscriptionRef,
		&l.LastResetAt,
		&l.NextResetAt,
		&l.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("scan credit ledger: %w", err)
	}

	return &l, nil
}

// RecordUsage appends a usage history entry.
func (r *CreditRepository) RecordUsage(ctx context.Context, e *domain.UsageEntry) error {
	query := `
		INSERT INTO usage_history (user_id, amount, operation, reference, created_at)
		VALUES ($1, $2, $3, $4, $5)`

	_, err := r.db.Exec(ctx, query, e.UserID, e.Amount, e.Operation, e.Reference, e.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert usage entry: %w", err)
	}

	return nil
}

// ListUsage returns one page of the user's usage history, newest first,
// together with the total count.
func (r *CreditRepository) ListUsage(ctx context.Context, userID string, params pagination.Params) ([]domain.UsageEntry, int, error) {
	var total int
	if err := r.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM usage_history WHERE user_id = $1`, userID,
	).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count usage entries: %w", err)
	}

	query := `
		SELECT id, user_id, amount, operation, reference, created_at
		FROM usage_history
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`

	rows, err := r.db.Query(ctx, query, userID, params.PerPage, params.Offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list usage entries: %w", err)
	}
	defer rows.Close()

	var entries []domain.UsageEntry
	for rows.Next() {
		var e domain.UsageEntry
		if err := rows.Scan(&e.ID, &e.UserID, &e.Amount, &e.Operation, &e.Reference, &e.CreatedAt); err != nil {
			return nil, 0, fmt.Errorf("scan usage entry: %w", err)
		}
		entries = append(entries, e)
	}

	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate usage entries: %w", err)
	}

	if entries == nil {
		entries = []domain.UsageEntry{}
	}

	return entries, total, nil
}

// WebhookEventRepository implements repository.WebhookEventRepository using PostgreSQL.
type WebhookEventRepository struct {
	db database.DBTX
}

// NewWebhookEventRepository creates a new PostgreSQL-backed webhook event repository.
func NewWebhookEventRepository(db database.DBTX) *WebhookEventRepository {
	return &WebhookEventRepository{db: db}
}

// MarkProcessed records the event id before any side effects run. The insert
// is the idempotency gate: a second delivery of the same id inserts nothing
// and returns false.
func (r *WebhookEventRepository) MarkProcessed(ctx context.Context, eventID, eventType string) (bool, error) {
	query := `
		INSERT INTO processed_webhook_events (event_id, event_type, processed_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (event_id) DO NOTHING`

	ct, err := r.db.Exec(ctx, query, eventID, eventType, time.Now().UTC())
	if err != nil {
		return false, fmt.Errorf("mark webhook event processed: %w", err)
	}

	return ct.RowsAffected() > 0, nil
}
