package domain

import (
	"time"
)

// Session represents a single login. A session row is never deleted on
// logout, the is_active flag is flipped so the audit trail survives.
type Session struct {
	ID             string    `json:"id"`
	UserID         string    `json:"user_id"`
	DeviceInfo     string    `json:"device_info"`
	IPAddress      string    `json:"ip_address"`
	UserAgent      string    `json:"user_agent"`
	IsActive       bool      `json:"is_active"`
	CreatedAt      time.Time `json:"created_at"`
	LastActivityAt time.Time `json:"last_activity_at"`
	ExpiresAt      time.Time `json:"expires_at"`
}

// Expired reports whether the session's hard expiry has passed.
func (s *Session) Expired(now time.Time) bool {
	return now.After(s.ExpiresAt)
}
