package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/Agamista0/ava-support-backend/pkg/database"
	apperrors "github.com/Agamista0/ava-support-backend/pkg/errors"

	"github.com/Agamista0/ava-support-backend/internal/domain"
)

// SubscriptionRepository implements repository.SubscriptionRepository using PostgreSQL.
type SubscriptionRepository struct {
	db database.DBTX
}

// NewSubscriptionRepository creates a new PostgreSQL-backed subscription repository.
func NewSubscriptionRepository(db database.DBTX) *SubscriptionRepository {
	return &SubscriptionRepository{db: db}
}

// Create inserts a new subscription.
func (r *SubscriptionRepository) Create(ctx context.Context, s *domain.Subscription) error {
	query := `
		INSERT INTO subscriptions (id, user_id, plan_id, provider_ref, status, current_period_end, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err := r.db.Exec(ctx, query,
		s.ID,
		s.UserID,
		s.PlanID,
		s.ProviderRef,
		s.Status,
		s.CurrentPeriodEnd,
		s.CreatedAt,
		s.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert subscription: %w", err)
	}

	return nil
}

// GetActiveForUser returns the user's active subscription.
func (r *SubscriptionRepository) GetActiveForUser(ctx context.Context, userID string) (*domain.Subscription, error) {
	query := `
		SELECT id, user_id, plan_id, provider_ref, status, current_period_end, created_at, updated_at
		FROM subscriptions
		WHERE user_id = $1 AND status = $2
		ORDER BY created_at DESC
		LIMIT 1`

	return r.scanSubscription(ctx, query, userID, domain.SubscriptionActive)
}

// GetByProviderRef returns the subscription with the given provider reference.
func (r *SubscriptionRepository) GetByProviderRef(ctx context.Context, ref string) (*domain.Subscription, error) {
	query := `
		SELECT id, user_id, plan_id, provider_ref, status, current_period_end, created_at, updated_at
		FROM subscriptions
		WHERE provider_ref = $1`

	return r.scanSubscription(ctx, query, ref)
}

// UpdateStatus sets the subscription status.
func (r *SubscriptionRepository) UpdateStatus(ctx context.Context, id, status string) error {
	query := `UPDATE subscriptions SET status = $1, updated_at = $2 WHERE id = $3`

	ct, err := r.db.Exec(ctx, query, status, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("update subscription status: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("subscription", id)
	}

	return nil
}

func (r *SubscriptionRepository) scanSubscription(ctx context.Context, query string, args ...any) (*domain.Subscription, error) {
	var s domain.Subscription
	err := r.db.QueryRow(ctx, query, args...).Scan(
		&s.ID,
		&s.UserID,
		&s.PlanID,
		&s.ProviderRef,
		&s.Status,
		&s.CurrentPeriodEnd,
		&s.CreatedAt,
		&s.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("scan subscription: %w", err)
	}

	return &s, nil
}
