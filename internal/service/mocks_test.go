package service

import (
	"context"
	"io"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/Agamista0/ava-support-backend/internal/billing"
	"github.com/Agamista0/ava-support-backend/internal/domain"
	"github.com/Agamista0/ava-support-backend/pkg/pagination"
)

type mockIdentityStore struct{ mock.Mock }

func (m *mockIdentityStore) Register(ctx context.Context, email, password, firstName, lastName string) (*domain.User, error) {
	args := m.Called(ctx, email, password, firstName, lastName)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

func (m *mockIdentityStore) VerifyCredentials(ctx context.Context, email, password string) (*domain.User, error) {
	args := m.Called(ctx, email, password)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

func (m *mockIdentityStore) GetByID(ctx context.Context, id string) (*domain.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

func (m *mockIdentityStore) UpdatePassword(ctx context.Context, userID, newPassword string) error {
	return m.Called(ctx, userID, newPassword).Error(0)
}

type mockSessionRepo struct{ mock.Mock }

func (m *mockSessionRepo) Create(ctx context.Context, s *domain.Session) error {
	return m.Called(ctx, s).Error(0)
}

func (m *mockSessionRepo) GetByID(ctx context.Context, id string) (*domain.Session, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Session), args.Error(1)
}

func (m *mockSessionRepo) Touch(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

func (m *mockSessionRepo) IsActive(ctx context.Context, id string) (bool, error) {
	args := m.Called(ctx, id)
	return args.Bool(0), args.Error(1)
}

func (m *mockSessionRepo) Invalidate(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

func (m *mockSessionRepo) InvalidateAllForUser(ctx context.Context, userID string) (int64, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockSessionRepo) ListActive(ctx context.Context, userID string) ([]domain.Session, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Session), args.Error(1)
}

func (m *mockSessionRepo) DeactivateExpired(ctx context.Context, now time.Time) (int64, error) {
	args := m.Called(ctx, now)
	return args.Get(0).(int64), args.Error(1)
}

type mockBlacklistRepo struct{ mock.Mock }

func (m *mockBlacklistRepo) Add(ctx context.Context, t *domain.BlacklistedToken) error {
	return m.Called(ctx, t).Error(0)
}

func (m *mockBlacklistRepo) IsBlacklisted(ctx context.Context, jti string) (bool, error) {
	args := m.Called(ctx, jti)
	return args.Bool(0), args.Error(1)
}

func (m *mockBlacklistRepo) PurgeExpired(ctx context.Context, now time.Time) (int64, error) {
	args := m.Called(ctx, now)
	return args.Get(0).(int64), args.Error(1)
}

type mockAttemptRepo struct{ mock.Mock }

func (m *mockAttemptRepo) Record(ctx context.Context, a *domain.LoginAttempt) error {
	return m.Called(ctx, a).Error(0)
}

func (m *mockAttemptRepo) RecentForKey(ctx context.Context, email, ip string, since time.Time, limit int) ([]domain.LoginAttempt, error) {
	args := m.Called(ctx, email, ip, since, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.LoginAttempt), args.Error(1)
}

func (m *mockAttemptRepo) PruneOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	args := m.Called(ctx, cutoff)
	return args.Get(0).(int64), args.Error(1)
}

type mockEventRepo struct{ mock.Mock }

func (m *mockEventRepo) Record(ctx context.Context, e *domain.SecurityEvent) error {
	return m.Called(ctx, e).Error(0)
}

func (m *mockEventRepo) PruneOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	args := m.Called(ctx, cutoff)
	return args.Get(0).(int64), args.Error(1)
}

type mockCreditRepo struct{ mock.Mock }

func (m *mockCreditRepo) Allocate(ctx context.Context, userID string, amount int, subscriptionRef string, resetAt, nextResetAt time.Time) error {
	return m.Called(ctx, userID, amount, subscriptionRef, resetAt, nextResetAt).Error(0)
}

func (m *mockCreditRepo) Consume(ctx context.Context, userID string, amount int) error {
	return m.Called(ctx, userID, amount).Error(0)
}

func (m *mockCreditRepo) Get(ctx context.Context, userID string) (*domain.CreditLedger, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.CreditLedger), args.Error(1)
}

func (m *mockCreditRepo) RecordUsage(ctx context.Context, e *domain.UsageEntry) error {
	return m.Called(ctx, e).Error(0)
}

func (m *mockCreditRepo) ListUsage(ctx context.Context, userID string, params pagination.Params) ([]domain.UsageEntry, int, error) {
	args := m.Called(ctx, userID, params)
	if args.Get(0) == nil {
		return nil, args.Int(1), args.Error(2)
	}
	return args.Get(0).([]domain.UsageEntry), args.Int(1), args.Error(2)
}

type mockWebhookRepo struct{ mock.Mock }

func (m *mockWebhookRepo) MarkProcessed(ctx context.Context, eventID, eventType string) (bool, error) {
	args := m.Called(ctx, eventID, eventType)
	return args.Bool(0), args.Error(1)
}

type mockSubscriptionRepo struct{ mock.Mock }

func (m *mockSubscriptionRepo) Create(ctx context.Context, s *domain.Subscription) error {
	return m.Called(ctx, s).Error(0)
}

func (m *mockSubscriptionRepo) GetActiveForUser(ctx context.Context, userID string) (*domain.Subscription, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Subscription), args.Error(1)
}

func (m *mockSubscriptionRepo) GetByProviderRef(ctx context.Context, ref string) (*domain.Subscription, error) {
	args := m.Called(ctx, ref)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Subscription), args.Error(1)
}

func (m *mockSubscriptionRepo) UpdateStatus(ctx context.Context, id, status string) error {
	return m.Called(ctx, id, status).Error(0)
}

type mockProvider struct{ mock.Mock }

func (m *mockProvider) CreateSubscription(ctx context.Context, userID string, plan domain.Plan) (*billing.CheckoutSession, error) {
	args := m.Called(ctx, userID, plan)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*billing.CheckoutSession), args.Error(1)
}

func (m *mockProvider) CancelSubscription(ctx context.Context, providerRef string) error {
	return m.Called(ctx, providerRef).Error(0)
}

type mockClassifier struct{ mock.Mock }

func (m *mockClassifier) Classify(ctx context.Context, subject, message string) (*domain.Classification, error) {
	args := m.Called(ctx, subject, message)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Classification), args.Error(1)
}

type mockTracker struct{ mock.Mock }

func (m *mockTracker) CreateTicket(ctx context.Context, summary, description, category, priority string) (*domain.TicketRef, error) {
	args := m.Called(ctx, summary, description, category, priority)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.TicketRef), args.Error(1)
}

type mockTranscriber struct{ mock.Mock }

func (m *mockTranscriber) Transcribe(ctx context.Context, filename string, audio io.Reader) (string, error) {
	args := m.Called(ctx, filename, audio)
	return args.String(0), args.Error(1)
}
