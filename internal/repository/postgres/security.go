package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/Agamista0/ava-support-backend/pkg/database"

	"github.com/Agamista0/ava-support-backend/internal/domain"
)

// BlacklistRepository implements repository.BlacklistRepository using PostgreSQL.
type BlacklistRepository struct {
	db database.DBTX
}

// NewBlacklistRepository creates a new PostgreSQL-backed blacklist repository.
func NewBlacklistRepository(db database.DBTX) *BlacklistRepository {
	return &BlacklistRepository{db: db}
}

// Add records a revoked jti. A duplicate jti means the token is already
// revoked, which is the state the caller wanted.
func (r *BlacklistRepository) Add(ctx context.Context, t *domain.BlacklistedToken) error {
	query := `
		INSERT INTO blacklisted_tokens (jti, user_id, reason, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (jti) DO NOTHING`

	_, err := r.db.Exec(ctx, query, t.JTI, t.UserID, t.Reason, t.ExpiresAt, t.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert blacklisted token: %w", err)
	}

	return nil
}

// IsBlacklisted reports whether the jti has been revoked.
func (r *BlacklistRepository) IsBlacklisted(ctx context.Context, jti string) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM blacklisted_tokens WHERE jti = $1)`

	var exists bool
	if err := r.db.QueryRow(ctx, query, jti).Scan(&exists); err != nil {
		return false, fmt.Errorf("check blacklist: %w", err)
	}

	return exists, nil
}

// PurgeExpired removes blacklist rows whose token has expired on its own.
func (r *BlacklistRepository) PurgeExpired(ctx context.Context, now time.Time) (int64, error) {
	query := `DELETE FROM blacklisted_tokens WHERE expires_at <= $1`

	ct, err := r.db.Exec(ctx, query, now)
	if err != nil {
		return 0, fmt.Errorf("purge expired blacklist rows: %w", err)
	}
	return ct.RowsAffected(), nil
}

// LoginAttemptRepository implements repository.LoginAttemptRepository using PostgreSQL.
type LoginAttemptRepository struct {
	db database.DBTX
}

// NewLoginAttemptRepository creates a new PostgreSQL-backed login attempt repository.
func NewLoginAttemptRepository(db database.DBTX) *LoginAttemptRepository {
	return &LoginAttemptRepository{db: db}
}

// Record appends a login attempt.
func (r *LoginAttemptRepository) Record(ctx context.Context, a *domain.LoginAttempt) error {
	query := `
		INSERT INTO login_attempts (email, ip_address, user_agent, success, failure_reason, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`

	_, err := r.db.Exec(ctx, query, a.Email, a.IPAddress, a.UserAgent, a.Success, a.FailureReason, a.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert login attempt: %w", err)
	}

	return nil
}

// RecentForKey returns up to limit attempts for (email, ip) newer than since,
// newest first. The lockout decision reads only this slice.
func (r *LoginAttemptRepository) RecentForKey(ctx context.Context, email, ip string, since time.Time, limit int) ([]domain.LoginAttempt, error) {
	query := `
		SELECT id, email, ip_address, user_agent, success, failure_reason, created_at
		FROM login_attempts
		WHERE email = $1 AND ip_address = $2 AND created_at > $3
		ORDER BY created_at DESC
		LIMIT $4`

	rows, err := r.db.Query(ctx, query, email, ip, since, limit)
	if err != nil {
		return nil, fmt.Errorf("query login attempts: %w", err)
	}
	defer rows.Close()

	var attempts []domain.LoginAttempt
	for rows.Next() {
		var a domain.LoginAttempt
		if err := rows.Scan(&a.ID, &a.Email, &a.IPAddress, &a.UserAgent, &a.Success, &a.FailureReason, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan login attempt: %w", err)
		}
		attempts = append(attempts, a)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate login attempts: %w", err)
	}

	return attempts, nil
}

// PruneOlderThan deletes attempts created before the cutoff.
func (r *LoginAttemptRepository) PruneOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	query := `DELETE FROM login_attempts WHERE created_at < $1`

	ct, err := r.db.Exec(ctx, query, cutoff)
	if err != nil {
		return 0, fmt.Errorf("prune login attempts: %w", err)
	}
	return ct.RowsAffected(), nil
}

// SecurityEventRepository implements repository.SecurityEventRepository using PostgreSQL.
type SecurityEventRepository struct {
	db database.DBTX
}

// NewSecurityEventRepository creates a new PostgreSQL-backed security event repository.
func NewSecurityEventRepository(db database.DBTX) *SecurityEventRepository {
	return &SecurityEventRepository{db: db}
}

// Record appends a security event. A nil user id is stored as NULL.
func (r *SecurityEventRepository) Record(ctx context.Context, e *domain.SecurityEvent) error {
	query := `
		INSERT INTO security_events (user_id, event_type, severity, ip_address, user_agent, details, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	var userID any
	if e.UserID != "" {
		userID = e.UserID
	}

	details := e.Details
	if details == nil {
		details = map[string]string{}
	}

	_, err := r.db.Exec(ctx, query, userID, e.EventType, e.Severity, e.IPAddress, e.UserAgent, details, e.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert security event: %w", err)
	}

	return nil
}

// PruneOlderThan deletes events created before the cutoff.
func (r *SecurityEventRepository) PruneOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	query := `DELETE FROM security_events WHERE created_at < $1`

	ct, err := r.db.Exec(ctx, query, cutoff)
	if err != nil {
		return 0, fmt.Errorf("prune security events: %w", err)
	}
	return ct.RowsAffected(), nil
}
