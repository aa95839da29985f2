package service

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/Agamista0/ava-support-backend/pkg/logger"
)

type sweeperFixture struct {
	sweeper   *Sweeper
	sessions  *mockSessionRepo
	blacklist *mockBlacklistRepo
	attempts  *mockAttemptRepo
	events    *mockEventRepo
}

func newSweeperFixture(t *testing.T) *sweeperFixture {
	t.Helper()
	f := &sweeperFixture{
		sessions:  &mockSessionRepo{},
		blacklist: &mockBlacklistRepo{},
		attempts:  &mockAttemptRepo{},
		events:    &mockEventRepo{},
	}
	f.sweeper = NewSweeper(f.sessions, f.blacklist, f.attempts, f.events,
		logger.NewWithWriter("test", "error", io.Discard))
	return f
}

func TestSweeper_Run(t *testing.T) {
	f := newSweeperFixture(t)
	ctx := context.Background()

	f.sessions.On("DeactivateExpired", ctx, mock.Anything).Return(int64(2), nil)
	f.blacklist.On("PurgeExpired", ctx, mock.Anything).Return(int64(3), nil)
	f.attempts.On("PruneOlderThan", ctx, mock.Anything).Return(int64(4), nil)
	f.events.On("PruneOlderThan", ctx, mock.Anything).Return(int64(5), nil)

	assert.True(t, f.sweeper.Run(ctx))

	f.sessions.AssertExpectations(t)
	f.blacklist.AssertExpectations(t)
	f.attempts.AssertExpectations(t)
	f.events.AssertExpectations(t)
}

func TestSweeper_Run_UsesRetentionCutoffs(t *testing.T) {
	f := newSweeperFixture(t)
	ctx := context.Background()

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	f.sweeper.now = func() time.Time { return now }

	f.sessions.On("DeactivateExpired", ctx, now).Return(int64(0), nil)
	f.blacklist.On("PurgeExpired", ctx, now).Return(int64(0), nil)
	f.attempts.On("PruneOlderThan", ctx, now.Add(-attemptRetention)).Return(int64(0), nil)
	f.events.On("PruneOlderThan", ctx, now.Add(-eventRetention)).Return(int64(0), nil)

	assert.True(t, f.sweeper.Run(ctx))
	f.attempts.AssertExpectations(t)
	f.events.AssertExpectations(t)
}

func TestSweeper_Run_ContinuesPastFailures(t *testing.T) {
	f := newSweeperFixture(t)
	ctx := context.Background()

	f.sessions.On("DeactivateExpired", ctx, mock.Anything).Return(int64(0), errors.New("db down"))
	f.blacklist.On("PurgeExpired", ctx, mock.Anything).Return(int64(0), nil)
	f.attempts.On("PruneOlderThan", ctx, mock.Anything).Return(int64(0), nil)
	f.events.On("PruneOlderThan", ctx, mock.Anything).Return(int64(0), nil)

	// A failing step must not stop the remaining steps.
	assert.True(t, f.sweeper.Run(ctx))
	f.events.AssertExpectations(t)
}

func TestSweeper_Run_SkipsWhileSweepInFlight(t *testing.T) {
	f := newSweeperFixture(t)
	ctx := context.Background()

	entered := make(chan struct{})
	release := make(chan struct{})

	f.sessions.On("DeactivateExpired", ctx, mock.Anything).
		Run(func(mock.Arguments) {
			close(entered)
			<-release
		}).
		Return(int64(0), nil)
	f.blacklist.On("PurgeExpired", ctx, mock.Anything).Return(int64(0), nil)
	f.attempts.On("PruneOlderThan", ctx, mock.Anything).Return(int64(0), nil)
	f.events.On("PruneOlderThan", ctx, mock.Anything).Return(int64(0), nil)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		assert.True(t, f.sweeper.Run(ctx))
	}()

	<-entered
	assert.False(t, f.sweeper.Run(ctx), "overlapping sweep must be skipped")

	close(release)
	wg.Wait()
}
