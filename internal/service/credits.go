package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/Agamista0/ava-support-backend/pkg/logger"
	"github.com/Agamista0/ava-support-backend/pkg/pagination"

	"github.com/Agamista0/ava-support-backend/internal/domain"
	"github.com/Agamista0/ava-support-backend/internal/repository"
)

// renewalPeriod is the fixed interval between credit resets. The next reset
// stamp is informational; renewal is driven by payment webhooks, not a timer.
const renewalPeriod = 30 * 24 * time.Hour

// CreditService owns the credits ledger and its usage history.
type CreditService struct {
	credits repository.CreditRepository
	logger  *slog.Logger

	now func() time.Time
}

// NewCreditService creates a credit service.
func NewCreditService(credits repository.CreditRepository, log *slog.Logger) *CreditService {
	return &CreditService{
		credits: credits,
		logger:  log,
		now:     time.Now,
	}
}

// Allocate grants the user their plan allotment. A renewal replaces any
// remaining balance; unused credits do not roll over. subscriptionRef links
// the ledger to the paying subscription and may be empty for manual grants.
func (s *CreditService) Allocate(ctx context.Context, userID string, amount int, subscriptionRef string) error {
	now := s.now().UTC()
	return s.credits.Allocate(ctx, userID, amount, subscriptionRef, now, now.Add(renewalPeriod))
}

// Consume deducts amount from the user's balance and records the usage. The
// deduction is atomic: of two concurrent consumers that together exceed the
// balance, exactly one succeeds.
func (s *CreditService) Consume(ctx context.Context, userID string, amount int, operation, reference string) error {
	if err := s.credits.Consume(ctx, userID, amount); err != nil {
		return err
	}

	err := s.credits.RecordUsage(ctx, &domain.UsageEntry{
		UserID:    userID,
		Amount:    amount,
		Operation: operation,
		Reference: reference,
		CreatedAt: s.now().UTC(),
	})
	if err != nil {
		// The deduction already happened; a missing history row is an audit
		// gap, not a reason to fail the operation.
		logger.FromContext(ctx).Error("failed to record credit usage",
			slog.String("user_id", userID), slog.String("operation", operation), slog.Any("error", err))
	}

	return nil
}

// Balance returns the user's ledger.
func (s *CreditService) Balance(ctx context.Context, userID string) (*domain.CreditLedger, error) {
	return s.credits.Get(ctx, userID)
}

// Usage returns one page of the user's usage history, newest first.
func (s *CreditService) Usage(ctx context.Context, userID string, params pagination.Params) (pagination.Result[domain.UsageEntry], error) {
	entries, total, err := s.credits.ListUsage(ctx, userID, params)
	if err != nil {
		return pagination.Result[domain.UsageEntry]{}, err
	}
	return pagination.NewResult(entries, total, params), nil
}
