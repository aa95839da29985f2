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

// SessionRepository implements repository.SessionRepository using PostgreSQL.
type SessionRepository struct {
	db database.DBTX
}

// NewSessionRepository creates a new PostgreSQL-backed session repository.
func NewSessionRepository(db database.DBTX) *SessionRepository {
	return &SessionRepository{db: db}
}

// Create inserts a new session row.
func (r *SessionRepository) Create(ctx context.Context, s *domain.Session) error {
	query := `
		INSERT INTO sessions (id, user_id, device_info, ip_address, user_agent, is_active, created_at, last_activity_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err := r.db.Exec(ctx, query,
		s.ID,
		s.UserID,
		s.DeviceInfo,
		s.IPAddress,
		s.UserAgent,
		s.IsActive,
		s.CreatedAt,
		s.LastActivityAt,
		s.ExpiresAt,
	)
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}

	return nil
}

// GetByID retrieves a session by its id.
func (r *SessionRepository) GetByID(ctx context.Context, id string) (*domain.Session, error) {
	query := `
		SELECT id, user_id, device_info, ip_address, user_agent, is_active, created_at, last_activity_at, expires_at
		FROM sessions
		WHERE id = $1`

	var s domain.Session
	err := r.db.QueryRow(ctx, query, id).Scan(
		&s.ID,
		&s.UserID,
		&s.DeviceInfo,
		&s.IPAddress,
		&s.UserAgent,
		&s.IsActive,
		&s.CreatedAt,
		&s.LastActivityAt,
		&s.ExpiresAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("scan session: %w", err)
	}

	return &s, nil
}

// Touch updates last_activity_at to now.
func (r *SessionRepository) Touch(ctx context.Context, id string) error {
	query := `UPDATE sessions SET last_activity_at = $1 WHERE id = $2 AND is_active = true`

	_, err := r.db.Exec(ctx, query, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("touch session: %w", err)
	}
	return nil
}

// IsActive reports whether the session exists, is flagged active, and has not
// expired. A missing session is simply inactive, not an error.
func (r *SessionRepository) IsActive(ctx context.Context, id string) (bool, error) {
	query := `SELECT is_active AND expires_at > $2 FROM sessions WHERE id = $1`

	var active bool
	err := r.db.QueryRow(ctx, query, id, time.Now().UTC()).Scan(&active)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("check session active: %w", err)
	}

	return active, nil
}

// Invalidate flips the active flag. Invalidating a session that is already
// inactive or missing is not an error.
func (r *SessionRepository) Invalidate(ctx context.Context, id string) error {
	query := `UPDATE sessions SET is_active = false WHERE id = $1`

	_, err := r.db.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("invalidate session: %w", err)
	}
	return nil
}

// InvalidateAllForUser deactivates every active session of the user.
func (r *SessionRepository) InvalidateAllForUser(ctx context.Context, userID string) (int64, error) {
	query := `UPDATE sessions SET is_active = false WHERE user_id = $1 AND is_active = true`

	ct, err := r.db.Exec(ctx, query, userID)
	if err != nil {
		return 0, fmt.Errorf("invalidate sessions for user: %w", err)
	}
	return ct.RowsAffected(), nil
}

// ListActive returns the user's active, unexpired sessions, most recently
// used first.
func (r *SessionRepository) ListActive(ctx context.Context, userID string) ([]domain.Session, error) {
	query := `
		SELECT id, user_id, device_info, ip_address, user_agent, is_active, created_at, last_activity_at, expires_at
		FROM sessions
		WHERE user_id = $1 AND is_active = true AND expires_at > $2
		ORDER BY last_activity_at DESC`

	rows, err := r.db.Query(ctx, query, userID, time.Now().UTC())
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var sessions []domain.Session
	for rows.Next() {
		var s domain.Session
		if err := rows.Scan(
			&s.ID,
			&s.UserID,
			&s.DeviceInfo,
			&s.IPAddress,
			&s.UserAgent,
			&s.IsActive,
			&s.CreatedAt,
			&s.LastActivityAt,
			&s.ExpiresAt,
		); err != nil {
			return nil, fmt.Errorf("scan session row: %w", err)
		}
		sessions = append(sessions, s)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate session rows: %w", err)
	}

	if sessions == nil {
		sessions = []domain.Session{}
	}

	return sessions, nil
}

// DeactivateExpired flips the active flag on sessions past their expiry.
func (r *SessionRepository) DeactivateExpired(ctx context.Context, now time.Time) (int64, error) {
	query := `UPDATE sessions SET is_active = false WHERE is_active = true AND expires_at <= $1`

	ct, err := r.db.Exec(ctx, query, now)
	if err != nil {
		return 0, fmt.Errorf("deactivate expired sessions: %w", err)
	}
	return ct.RowsAffected(), nil
}
