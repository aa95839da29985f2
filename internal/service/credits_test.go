package service

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	apperrors "github.com/Agamista0/ava-support-backend/pkg/errors"
	"github.com/Agamista0/ava-support-backend/pkg/logger"
	"github.com/Agamista0/ava-support-backend/pkg/pagination"

	"github.com/Agamista0/ava-support-backend/internal/domain"
)

func newCreditService(repo *mockCreditRepo) *CreditService {
	return NewCreditService(repo, logger.NewWithWriter("test", "error", io.Discard))
}

func TestCreditService_Allocate_StampsRenewalPeriod(t *testing.T) {
	repo := &mockCreditRepo{}
	svc := newCreditService(repo)
	ctx := context.Background()

	repo.On("Allocate", ctx, "u-1", 100, "prov_9", mock.Anything, mock.Anything).Return(nil)

	require.NoError(t, svc.Allocate(ctx, "u-1", 100, "prov_9"))

	call := repo.Calls[0]
	resetAt := call.Arguments.Get(4).(time.Time)
	nextResetAt := call.Arguments.Get(5).(time.Time)
	assert.Equal(t, renewalPeriod, nextResetAt.Sub(resetAt))
}

func TestCreditService_Consume_RecordsUsage(t *testing.T) {
	repo := &mockCreditRepo{}
	svc := newCreditService(repo)
	ctx := context.Background()

	repo.On("Consume", ctx, "u-1", 1).Return(nil)
	repo.On("RecordUsage", ctx, mock.MatchedBy(func(e *domain.UsageEntry) bool {
		return e.UserID == "u-1" && e.Amount == 1 && e.Operation == "support_request" && e.Reference == "ticket-7"
	})).Return(nil)

	require.NoError(t, svc.Consume(ctx, "u-1", 1, "support_request", "ticket-7"))
	repo.AssertExpectations(t)
}

func TestCreditService_Consume_InsufficientBalance(t *testing.T) {
	repo := &mockCreditRepo{}
	svc := newCreditService(repo)
	ctx := context.Background()

	repo.On("Consume", ctx, "u-1", 5).
		Return(apperrors.InsufficientCredits("credit balance does not cover this operation"))

	err := svc.Consume(ctx, "u-1", 5, "support_request", "")
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrInsufficientCredits))

	// No usage row for a rejected deduction.
	repo.AssertNotCalled(t, "RecordUsage", mock.Anything, mock.Anything)
}

func TestCreditService_Consume_UsageFailureDoesNotFailConsumption(t *testing.T) {
	repo := &mockCreditRepo{}
	svc := newCreditService(repo)
	ctx := context.Background()

	repo.On("Consume", ctx, "u-1", 1).Return(nil)
	repo.On("RecordUsage", ctx, mock.Anything).Return(errors.New("db down"))

	assert.NoError(t, svc.Consume(ctx, "u-1", 1, "transcription", ""))
}

// Exhausting the balance: with 80 credits left, an 80-credit consumption
// succeeds and a subsequent 1-credit consumption is rejected.
func TestCreditService_Consume_ExactlyExhaustingBalance(t *testing.T) {
	repo := &mockCreditRepo{}
	svc := newCreditService(repo)
	ctx := context.Background()

	repo.On("Consume", ctx, "u-1", 80).Return(nil).Once()
	repo.On("RecordUsage", ctx, mock.Anything).Return(nil).Once()
	repo.On("Consume", ctx, "u-1", 1).
		Return(apperrors.InsufficientCredits("credit balance does not cover this operation")).Once()

	require.NoError(t, svc.Consume(ctx, "u-1", 80, "bulk", ""))

	err := svc.Consume(ctx, "u-1", 1, "support_request", "")
	assert.True(t, errors.Is(err, apperrors.ErrInsufficientCredits))
	repo.AssertExpectations(t)
}

func TestCreditService_Balance(t *testing.T) {
	repo := &mockCreditRepo{}
	svc := newCreditService(repo)
	ctx := context.Background()

	repo.On("Get", ctx, "u-1").Return(&domain.CreditLedger{UserID: "u-1", Balance: 42}, nil)

	ledger, err := svc.Balance(ctx, "u-1")
	require.NoError(t, err)
	assert.Equal(t, 42, ledger.Balance)
}

func TestCreditService_Usage_Paginates(t *testing.T) {
	repo := &mockCreditRepo{}
	svc := newCreditService(repo)
	ctx := context.Background()

	params := pagination.Params{Page: 2, PerPage: 10, Offset: 10}
	entries := []domain.UsageEntry{{ID: 11, UserID: "u-1", Amount: 1, Operation: "support_request"}}

	repo.On("ListUsage", ctx, "u-1", params).Return(entries, 25, nil)

	result, err := svc.Usage(ctx, "u-1", params)
	require.NoError(t, err)
	assert.Equal(t, 25, result.TotalCount)
	assert.Equal(t, 2, result.Page)
	assert.Equal(t, 3, result.TotalPages)
	assert.True(t, result.HasNext)
	assert.True(t, result.HasPrev)
	require.Len(t, result.Data, 1)
}
