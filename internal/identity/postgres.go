package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/Agamista0/ava-support-backend/pkg/database"
	apperrors "github.com/Agamista0/ava-support-backend/pkg/errors"

	"github.com/Agamista0/ava-support-backend/internal/domain"
)

const bcryptCost = 12

// PostgresStore implements Store against the users table.
type PostgresStore struct {
	db database.DBTX
}

// NewPostgresStore creates a Postgres-backed credential store.
func NewPostgresStore(db database.DBTX) *PostgresStore {
	return &PostgresStore{db: db}
}

// Register creates a user with a bcrypt password hash.
func (s *PostgresStore) Register(ctx context.Context, email, password, firstName, lastName string) (*domain.User, error) {
	if err := ValidatePassword(password); err != nil {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	now := time.Now().UTC()
	user := &domain.User{
		ID:           uuid.New().String(),
		Email:        strings.ToLower(strings.TrimSpace(email)),
		PasswordHash: string(hash),
		FirstName:    firstName,
		LastName:     lastName,
		Role:         domain.RoleUser,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	query := `
		INSERT INTO users (id, email, password_hash, first_name, last_name, role, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err = s.db.Exec(ctx, query,
		user.ID,
		user.Email,
		user.PasswordHash,
		user.FirstName,
		user.LastName,
		user.Role,
		user.IsActive,
		user.CreatedAt,
		user.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, apperrors.AlreadyExists("user", "email", user.Email)
		}
		return nil, fmt.Errorf("insert user: %w", err)
	}

	return user, nil
}

// VerifyCredentials checks the password against the stored hash. Unknown
// email, wrong password, and a deactivated account all return ErrUnauthorized.
func (s *PostgresStore) VerifyCredentials(ctx context.Context, email, password string) (*domain.User, error) {
	user, err := s.getByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.Unauthorized("invalid credentials")
		}
		return nil, err
	}

	if !user.IsActive {
		return nil, apperrors.Unauthorized("invalid credentials")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, apperrors.Unauthorized("invalid credentials")
	}

	return user, nil
}

// GetByID fetches a user by id.
func (s *PostgresStore) GetByID(ctx context.Context, id string) (*domain.User, error) {
	query := `
		SELECT id, email, password_hash, first_name, last_name, role, is_active, created_at, updated_at
		FROM users
		WHERE id = $1`

	return s.scanUser(ctx, query, id)
}

// UpdatePassword replaces the user's password hash.
func (s *PostgresStore) UpdatePassword(ctx context.Context, userID, newPassword string) error {
	if err := ValidatePassword(newPassword); err != nil {
		return err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcryptCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	query := `UPDATE users SET password_hash = $1, updated_at = $2 WHERE id = $3`

	ct, err := s.db.Exec(ctx, query, string(hash), time.Now().UTC(), userID)
	if err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("user", userID)
	}

	return nil
}

func (s *PostgresStore) getByEmail(ctx context.Context, email string) (*domain.User, error) {
	query := `
		SELECT id, email, password_hash, first_name, last_name, role, is_active, created_at, updated_at
		FROM users
		WHERE email = $1`

	return s.scanUser(ctx, query, email)
}

func (s *PostgresStore) scanUser(ctx context.Context, query string, args ...any) (*domain.User, error) {
	var u domain.User

	err := s.db.QueryRow(ctx, query, args...).Scan(
		&u.ID,
		&u.Email,
		&u.PasswordHash,
		&u.FirstName,
		&u.LastName,
		&u.Role,
		&u.IsActive,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("scan user: %w", err)
	}

	return &u, nil
}

// isUniqueViolation checks for a PostgreSQL unique constraint violation (SQLSTATE 23505).
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "23505")
}
