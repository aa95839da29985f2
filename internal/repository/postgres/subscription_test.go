package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/Agamista0/ava-support-backend/pkg/errors"

	"github.com/Agamista0/ava-support-backend/internal/domain"
)

func newSubscriptionFixture(t *testing.T) (*SubscriptionRepository, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	return NewSubscriptionRepository(mock), mock
}

func sampleSubscription() *domain.Subscription {
	now := time.Now().UTC().Truncate(time.Microsecond)
	periodEnd := now.Add(30 * 24 * time.Hour)
	return &domain.Subscription{
		ID:               "sub-1",
		UserID:           "u-1",
		PlanID:           "pro",
		ProviderRef:      "prov_abc",
		Status:           domain.SubscriptionActive,
		CurrentPeriodEnd: &periodEnd,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
}

func subscriptionRows(s *domain.Subscription) *pgxmock.Rows {
	return pgxmock.NewRows([]string{
		"id", "user_id", "plan_id", "provider_ref", "status",
		"current_period_end", "created_at", "updated_at",
	}).AddRow(s.ID, s.UserID, s.PlanID, s.ProviderRef, s.Status,
		s.CurrentPeriodEnd, s.CreatedAt, s.UpdatedAt)
}

func TestSubscriptionRepository_Create(t *testing.T) {
	repo, mock := newSubscriptionFixture(t)
	defer mock.Close()

	s := sampleSubscription()
	mock.ExpectExec("INSERT INTO subscriptions").
		WithArgs(s.ID, s.UserID, s.PlanID, s.ProviderRef, s.Status,
			s.CurrentPeriodEnd, s.CreatedAt, s.UpdatedAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err := repo.Create(context.Background(), s)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSubscriptionRepository_GetActiveForUser(t *testing.T) {
	repo, mock := newSubscriptionFixture(t)
	defer mock.Close()

	s := sampleSubscription()
	mock.ExpectQuery("SELECT .+ FROM subscriptions WHERE user_id = .+ ORDER BY created_at DESC").
		WithArgs(s.UserID, domain.SubscriptionActive).
		WillReturnRows(subscriptionRows(s))

	got, err := repo.GetActiveForUser(context.Background(), s.UserID)
	require.NoError(t, err)
	assert.Equal(t, s.ID, got.ID)
	assert.Equal(t, domain.SubscriptionActive, got.Status)
}

func TestSubscriptionRepository_GetActiveForUser_NotFound(t *testing.T) {
	repo, mock := newSubscriptionFixture(t)
	defer mock.Close()

	mock.ExpectQuery("SELECT .+ FROM subscriptions WHERE user_id =").
		WithArgs("u-1", domain.SubscriptionActive).
		WillReturnError(pgx.ErrNoRows)

	_, err := repo.GetActiveForUser(context.Background(), "u-1")
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrNotFound))
}

func TestSubscriptionRepository_GetByProviderRef(t *testing.T) {
	repo, mock := newSubscriptionFixture(t)
	defer mock.Close()

	s := sampleSubscription()
	mock.ExpectQuery("SELECT .+ FROM subscriptions WHERE provider_ref =").
		WithArgs(s.ProviderRef).
		WillReturnRows(subscriptionRows(s))

	got, err := repo.GetByProviderRef(context.Background(), s.ProviderRef)
	require.NoError(t, err)
	assert.Equal(t, s.UserID, got.UserID)
}

func TestSubscriptionRepository_UpdateStatus(t *testing.T) {
	repo, mock := newSubscriptionFixture(t)
	defer mock.Close()

	mock.ExpectExec("UPDATE subscriptions SET status =").
		WithArgs(domain.SubscriptionCanceled, pgxmock.AnyArg(), "sub-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	err := repo.UpdateStatus(context.Background(), "sub-1", domain.SubscriptionCanceled)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSubscriptionRepository_UpdateStatus_NotFound(t *testing.T) {
	repo, mock := newSubscriptionFixture(t)
	defer mock.Close()

	mock.ExpectExec("UPDATE subscriptions SET status =").
		WithArgs(domain.SubscriptionCanceled, pgxmock.AnyArg(), "ghost").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := repo.UpdateStatus(context.Background(), "ghost", domain.SubscriptionCanceled)
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrNotFound))
}
