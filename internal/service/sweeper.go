package service

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/Agamista0/ava-support-backend/internal/repository"
)

// Retention for the append-only bookkeeping tables.
const (
	sweepInterval     = time.Hour
	sweepStartupDelay = 10 * time.Second
	attemptRetention  = 30 * 24 * time.Hour
	eventRetention    = 90 * 24 * time.Hour
)

// Sweeper periodically expires sessions and prunes the blacklist, login
// attempt, and security event tables.
type Sweeper struct {
	sessions  repository.SessionRepository
	blacklist repository.BlacklistRepository
	attempts  repository.LoginAttemptRepository
	events    repository.SecurityEventRepository
	logger    *slog.Logger

	running atomic.Bool
	now     func() time.Time
}

// NewSweeper creates a sweeper over the four swept repositories.
func NewSweeper(
	sessions repository.SessionRepository,
	blacklist repository.BlacklistRepository,
	attempts repository.LoginAttemptRepository,
	events repository.SecurityEventRepository,
	log *slog.Logger,
) *Sweeper {
	return &Sweeper{
		sessions:  sessions,
		blacklist: blacklist,
		attempts:  attempts,
		events:    events,
		logger:    log,
		now:       time.Now,
	}
}

// Start runs the sweep loop until the context is canceled: one pass shortly
// after startup, then one per interval.
func (s *Sweeper) Start(ctx context.Context) {
	startup := time.NewTimer(sweepStartupDelay)
	defer startup.Stop()

	select {
	case <-ctx.Done():
		return
	case <-startup.C:
		s.Run(ctx)
	}

	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Run(ctx)
		}
	}
}

// Run executes a single sweep. If a sweep is already in flight the call is a
// no-op and returns false; a slow database must not stack sweeps.
func (s *Sweeper) Run(ctx context.Context) bool {
	if !s.running.CompareAndSwap(false, true) {
		s.logger.Warn("sweep already in progress, skipping")
		return false
	}
	defer s.running.Store(false)

	now := s.now().UTC()

	sessions, err := s.sessions.DeactivateExpired(ctx, now)
	if err != nil {
		s.logger.Error("sweep: deactivate expired sessions", slog.Any("error", err))
	}

	blacklist, err := s.blacklist.PurgeExpired(ctx, now)
	if err != nil {
		s.logger.Error("sweep: purge expired blacklist rows", slog.Any("error", err))
	}

	attempts, err := s.attempts.PruneOlderThan(ctx, now.Add(-attemptRetention))
	if err != nil {
		s.logger.Error("sweep: prune login attempts", slog.Any("error", err))
	}

	events, err := s.events.PruneOlderThan(ctx, now.Add(-eventRetention))
	if err != nil {
		s.logger.Error("sweep: prune security events", slog.Any("error", err))
	}

	s.logger.Info("sweep complete",
		slog.Int64("sessions_deactivated", sessions),
		slog.Int64("blacklist_purged", blacklist),
		slog.Int64("attempts_pruned", attempts),
		slog.Int64("events_pruned", events),
	)
	return true
}
