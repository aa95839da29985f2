package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"
)

type contextKeyType string

const (
	userIDKey      contextKeyType = "user_id"
	roleKey        contextKeyType = "role"
	sessionIDKey   contextKeyType = "session_id"
	tokenIDKey     contextKeyType = "token_id"
	tokenExpiryKey contextKeyType = "token_expiry"
)

// Claims represents the access token claims extracted by the auth middleware.
type Claims struct {
	UserID    string    `json:"user_id"`
	Role      string    `json:"role"`
	SessionID string    `json:"session_id"`
	TokenID   string    `json:"token_id"`
	ExpiresAt time.Time `json:"expires_at"`
}

// TokenValidator validates a bearer token and returns its claims. Validation
// failures must all surface the same way to the caller, whatever the cause.
type TokenValidator func(ctx context.Context, token string) (*Claims, error)

// Auth validates bearer tokens and injects the claims into the request context.
// Every rejection returns the same 401 body so clients cannot distinguish a
// missing header from an expired or revoked token.
func Auth(validate TokenValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				writeAuthError(w)
				return
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
				writeAuthError(w)
				return
			}

			claims, err := validate(r.Context(), parts[1])
			if err != nil {
				writeAuthError(w)
				return
			}

			ctx := context.WithValue(r.Context(), userIDKey, claims.UserID)
			ctx = context.WithValue(ctx, roleKey, claims.Role)
			ctx = context.WithValue(ctx, sessionIDKey, claims.SessionID)
			ctx = context.WithValue(ctx, tokenIDKey, claims.TokenID)
			ctx = context.WithValue(ctx, tokenExpiryKey, claims.ExpiresAt)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireRole checks that the authenticated user has one of the given roles.
func RequireRole(roles ...string) func(http.Handler) http.Handler {
	roleSet := make(map[string]struct{}, len(roles))
	for _, r := range roles {
		roleSet[r] = struct{}{}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			role := RoleFromContext(r.Context())
			if _, ok := roleSet[role]; !ok {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusForbidden)
				_ = json.NewEncoder(w).Encode(map[string]string{
					"code":    "FORBIDDEN",
					"message": "insufficient permissions",
				})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// UserIDFromContext extracts the user ID from the request context.
func UserIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(userIDKey).(string); ok {
		return id
	}
	return ""
}

// RoleFromContext extracts the user role from the request context.
func RoleFromContext(ctx context.Context) string {
	if role, ok := ctx.Value(roleKey).(string); ok {
		return role
	}
	return ""
}

// SessionIDFromContext extracts the session ID from the request context.
func SessionIDFromContext(ctx context.Context) string {
	if sid, ok := ctx.Value(sessionIDKey).(string); ok {
		return sid
	}
	return ""
}

// TokenIDFromContext extracts the access token's jti from the request context.
func TokenIDFromContext(ctx context.Context) string {
	if jti, ok := ctx.Value(tokenIDKey).(string); ok {
		return jti
	}
	return ""
}

// TokenExpiryFromContext extracts the access token's expiry from the request
// context. The zero time means no authenticated token is attached.
func TokenExpiryFromContext(ctx context.Context) time.Time {
	if exp, ok := ctx.Value(tokenExpiryKey).(time.Time); ok {
		return exp
	}
	return time.Time{}
}

func writeAuthError(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"code":    "UNAUTHORIZED",
		"message": "invalid or missing credentials",
	})
}
