package domain

import (
	"time"
)

// Blacklist reasons recorded when a token jti is revoked.
const (
	RevokeReasonLogout          = "logout"
	RevokeReasonLogoutAll       = "logout_all"
	RevokeReasonRotation        = "rotation"
	RevokeReasonPasswordChanged = "password_changed"
	RevokeReasonSessionRevoked  = "session_revoked"
)

// BlacklistedToken is a revoked token jti. Rows are purged by the sweeper
// once the underlying token would have expired anyway.
type BlacklistedToken struct {
	JTI       string    `json:"jti"`
	UserID    string    `json:"user_id"`
	Reason    string    `json:"reason"`
	ExpiresAt time.Time `json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
}

// LoginAttempt is an append-only record of a credential check, keyed by the
// (email, ip) pair the lockout window is evaluated against.
type LoginAttempt struct {
	ID            int64     `json:"id"`
	Email         string    `json:"email"`
	IPAddress     string    `json:"ip_address"`
	UserAgent     string    `json:"user_agent,omitempty"`
	Success       bool      `json:"success"`
	FailureReason string    `json:"failure_reason,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

// Security event severities.
const (
	SeverityInfo     = "info"
	SeverityWarning  = "warning"
	SeverityCritical = "critical"
)

// Security event types emitted by the auth manager.
const (
	EventUserRegistered  = "user_registered"
	EventLoginSuccess    = "login_success"
	EventLoginFailed     = "login_failed"
	EventAccountLocked   = "account_locked"
	EventLogout          = "logout"
	EventLogoutAll       = "logout_all"
	EventPasswordChanged = "password_changed"
	EventTokenRefreshed  = "token_refreshed"
	EventRefreshRejected = "refresh_rejected"
	EventSessionRevoked  = "session_revoked"
)

// SecurityEvent is an append-only audit record.
type SecurityEvent struct {
	ID        int64             `json:"id"`
	UserID    string            `json:"user_id,omitempty"`
	EventType string            `json:"event_type"`
	Severity  string            `json:"severity"`
	IPAddress string            `json:"ip_address"`
	UserAgent string            `json:"user_agent"`
	Details   map[string]string `json:"details,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
}
