// Package identity owns user credentials. The auth manager talks to the Store
// interface so the credential backend can be swapped without touching the
// session or token machinery.
package identity

import (
	"context"
	"unicode"

	apperrors "github.com/Agamista0/ava-support-backend/pkg/errors"

	"github.com/Agamista0/ava-support-backend/internal/domain"
)

// Store verifies and manages user credentials.
type Store interface {
	// Register creates a user with a hashed password.
	Register(ctx context.Context, email, password, firstName, lastName string) (*domain.User, error)

	// VerifyCredentials checks email+password and returns the user on match.
	// Wrong email and wrong password are indistinguishable to the caller.
	VerifyCredentials(ctx context.Context, email, password string) (*domain.User, error)

	// GetByID fetches a user by id.
	GetByID(ctx context.Context, id string) (*domain.User, error)

	// UpdatePassword replaces the user's password hash.
	UpdatePassword(ctx context.Context, userID, newPassword string) error
}

// ValidatePassword enforces the password policy: at least 8 characters with
// an upper case letter, a lower case letter, and a digit.
func ValidatePassword(password string) error {
	if len(password) < 8 {
		return apperrors.InvalidInput("password must be at least 8 characters")
	}

	var hasUpper, hasLower, hasDigit bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsDigit(r):
			hasDigit = true
		}
	}

	if !hasUpper || !hasLower || !hasDigit {
		return apperrors.InvalidInput("password must contain an upper case letter, a lower case letter, and a digit")
	}
	return nil
}
