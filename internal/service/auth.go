package service

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/Agamista0/ava-support-backend/pkg/errors"
	"github.com/Agamista0/ava-support-backend/pkg/logger"

	"github.com/Agamista0/ava-support-backend/internal/auth"
	"github.com/Agamista0/ava-support-backend/internal/domain"
	"github.com/Agamista0/ava-support-backend/internal/identity"
	"github.com/Agamista0/ava-support-backend/internal/repository"
)

// Lockout policy: an (email, ip) pair is locked out when its last
// lockoutThreshold attempts inside lockoutWindow all failed. A single success
// inside the window clears the streak because the fetch is newest-first.
const (
	lockoutThreshold = 5
	lockoutWindow    = 15 * time.Minute
)

// RequestMeta carries the client context attached to sessions, login
// attempts, and security events.
type RequestMeta struct {
	IPAddress  string
	UserAgent  string
	DeviceInfo string
}

// BlacklistCache is an optional read-through cache for revocation verdicts.
type BlacklistCache interface {
	Get(ctx context.Context, jti string) (blacklisted, ok bool)
	Set(ctx context.Context, jti string, blacklisted bool) error
	Invalidate(ctx context.Context, jti string) error
}

// SecurityEventPublisher fans security events out to the event bus.
// Publishing is best-effort; the database audit row is the source of truth.
type SecurityEventPublisher interface {
	PublishSecurity(ctx context.Context, event *domain.SecurityEvent)
}

// AuthManager orchestrates logins, logouts, token rotation, and access
// validation across the identity store, session store, and blacklist.
type AuthManager struct {
	users     identity.Store
	codec     *auth.Codec
	sessions  repository.SessionRepository
	blacklist repository.BlacklistRepository
	attempts  repository.LoginAttemptRepository
	events    repository.SecurityEventRepository
	cache     BlacklistCache
	publisher SecurityEventPublisher
	logger    *slog.Logger

	now func() time.Time
}

// NewAuthManager creates an auth manager. cache and publisher may be nil.
func NewAuthManager(
	users identity.Store,
	codec *auth.Codec,
	sessions repository.SessionRepository,
	blacklist repository.BlacklistRepository,
	attempts repository.LoginAttemptRepository,
	events repository.SecurityEventRepository,
	cache BlacklistCache,
	publisher SecurityEventPublisher,
	log *slog.Logger,
) *AuthManager {
	return &AuthManager{
		users:     users,
		codec:     codec,
		sessions:  sessions,
		blacklist: blacklist,
		attempts:  attempts,
		events:    events,
		cache:     cache,
		publisher: publisher,
		logger:    log,
		now:       time.Now,
	}
}

// Register creates a new user account and signs them in immediately, handing
// back the first session and token pair so the client skips a login round trip.
func (m *AuthManager) Register(ctx context.Context, email, password, firstName, lastName string, meta RequestMeta) (*domain.User, *domain.Session, *domain.TokenPair, error) {
	if err := identity.ValidatePassword(password); err != nil {
		return nil, nil, nil, err
	}

	user, err := m.users.Register(ctx, email, password, firstName, lastName)
	if err != nil {
		return nil, nil, nil, err
	}

	session, pair, err := m.openSession(ctx, user, meta)
	if err != nil {
		return nil, nil, nil, err
	}

	m.recordEvent(ctx, user.ID, domain.EventUserRegistered, domain.SeverityInfo, meta, map[string]string{
		"session_id": session.ID,
	})

	return user, session, pair, nil
}

// Login authenticates the user and mints a session with a token pair.
// A locked-out (email, ip) pair is rejected before the credential check so
// the lockout cannot be used to probe whether an account exists.
func (m *AuthManager) Login(ctx context.Context, email, password string, meta RequestMeta) (*domain.User, *domain.Session, *domain.TokenPair, error) {
	locked, err := m.isLockedOut(ctx, email, meta.IPAddress)
	if err != nil {
		return nil, nil, nil, err
	}
	if locked {
		m.recordEvent(ctx, "", domain.EventAccountLocked, domain.SeverityCritical, meta, map[string]string{
			"email": email,
		})
		return nil, nil, nil, apperrors.Locked("too many failed login attempts, try again later")
	}

	user, err := m.users.VerifyCredentials(ctx, email, password)
	if err != nil {
		m.recordAttempt(ctx, email, meta, false, "invalid_credentials")
		m.recordEvent(ctx, "", domain.EventLoginFailed, domain.SeverityWarning, meta, map[string]string{
			"email": email,
		})
		return nil, nil, nil, apperrors.Unauthorized("invalid credentials")
	}

	session, pair, err := m.openSession(ctx, user, meta)
	if err != nil {
		return nil, nil, nil, err
	}

	m.recordAttempt(ctx, email, meta, true, "")
	m.recordEvent(ctx, user.ID, domain.EventLoginSuccess, domain.SeverityInfo, meta, map[string]string{
		"session_id": session.ID,
	})

	return user, session, pair, nil
}

// Logout revokes the presented access token and deactivates its session.
// The token was already verified by the middleware; its identifiers and
// expiry arrive through the request context. The blacklist row inherits the
// token's own expiry so the sweeper drops it the moment the token would have
// died anyway.
func (m *AuthManager) Logout(ctx context.Context, userID, sessionID, jti string, tokenExpiresAt time.Time, meta RequestMeta) error {
	if err := m.revokeJTI(ctx, userID, jti, domain.RevokeReasonLogout, tokenExpiresAt); err != nil {
		return err
	}

	if err := m.sessions.Invalidate(ctx, sessionID); err != nil {
		return err
	}

	m.recordEvent(ctx, userID, domain.EventLogout, domain.SeverityInfo, meta, map[string]string{
		"session_id": sessionID,
	})
	return nil
}

// LogoutAll revokes the presented token and deactivates every session of the
// user. Access tokens minted by other sessions stay valid until their session
// check fails, which happens on their next request.
func (m *AuthManager) LogoutAll(ctx context.Context, userID, jti string, tokenExpiresAt time.Time, meta RequestMeta) (int64, error) {
	if err := m.revokeJTI(ctx, userID, jti, domain.RevokeReasonLogoutAll, tokenExpiresAt); err != nil {
		return 0, err
	}

	n, err := m.sessions.InvalidateAllForUser(ctx, userID)
	if err != nil {
		return 0, err
	}

	m.recordEvent(ctx, userID, domain.EventLogoutAll, domain.SeverityInfo, meta, map[string]string{
		"sessions_revoked": itoa(n),
	})
	return n, nil
}

// ChangePassword re-authenticates, replaces the credential, revokes every
// session, and hands the caller a fresh session so they stay logged in on the
// current device only.
func (m *AuthManager) ChangePassword(ctx context.Context, userID, currentPassword, newPassword string, meta RequestMeta) (*domain.Session, *domain.TokenPair, error) {
	user, err := m.users.GetByID(ctx, userID)
	if err != nil {
		return nil, nil, err
	}

	if _, err := m.users.VerifyCredentials(ctx, user.Email, currentPassword); err != nil {
		return nil, nil, apperrors.Unauthorized("invalid credentials")
	}

	if err := identity.ValidatePassword(newPassword); err != nil {
		return nil, nil, err
	}

	if err := m.users.UpdatePassword(ctx, userID, newPassword); err != nil {
		return nil, nil, err
	}

	if _, err := m.sessions.InvalidateAllForUser(ctx, userID); err != nil {
		return nil, nil, err
	}

	session, pair, err := m.openSession(ctx, user, meta)
	if err != nil {
		return nil, nil, err
	}

	m.recordEvent(ctx, userID, domain.EventPasswordChanged, domain.SeverityWarning, meta, map[string]string{
		"session_id": session.ID,
	})
	return session, pair, nil
}

// Refresh exchanges a refresh token for a new pair bound to the same session.
// The old refresh token is revoked so it cannot be replayed. Every failure
// collapses to the same unauthorized error.
func (m *AuthManager) Refresh(ctx context.Context, refreshToken string, meta RequestMeta) (*domain.TokenPair, error) {
	claims, err := m.codec.ParseRefreshToken(refreshToken)
	if err != nil {
		m.recordEvent(ctx, "", domain.EventRefreshRejected, domain.SeverityWarning, meta, map[string]string{
			"reason": "malformed",
		})
		return nil, errInvalidToken()
	}

	revoked, err := m.isRevoked(ctx, claims.ID)
	if err != nil || revoked {
		m.recordEvent(ctx, claims.Subject, domain.EventRefreshRejected, domain.SeverityWarning, meta, map[string]string{
			"reason": "revoked",
		})
		return nil, errInvalidToken()
	}

	active, err := m.sessions.IsActive(ctx, claims.SessionID)
	if err != nil || !active {
		m.recordEvent(ctx, claims.Subject, domain.EventRefreshRejected, domain.SeverityWarning, meta, map[string]string{
			"reason": "session_inactive",
		})
		return nil, errInvalidToken()
	}

	user, err := m.users.GetByID(ctx, claims.Subject)
	if err != nil {
		return nil, errInvalidToken()
	}

	if err := m.revokeJTI(ctx, claims.Subject, claims.ID, domain.RevokeReasonRotation, claims.ExpiresAt.Time); err != nil {
		return nil, err
	}

	pair, err := m.codec.IssuePair(user.ID, user.Role, claims.SessionID)
	if err != nil {
		return nil, apperrors.Internal(err)
	}

	if err := m.sessions.Touch(ctx, claims.SessionID); err != nil {
		logger.FromContext(ctx).Warn("failed to touch session on refresh",
			slog.String("session_id", claims.SessionID), slog.Any("error", err))
	}

	m.recordEvent(ctx, user.ID, domain.EventTokenRefreshed, domain.SeverityInfo, meta, map[string]string{
		"session_id": claims.SessionID,
	})
	return pair, nil
}

// ValidateAccess verifies an access token end to end: signature and claims,
// then revocation, then session state. Any failure, including a store error,
// collapses to the same unauthorized result so callers learn nothing about
// which check failed.
func (m *AuthManager) ValidateAccess(ctx context.Context, token string) (*auth.Claims, error) {
	claims, err := m.codec.ParseAccessToken(token)
	if err != nil {
		return nil, errInvalidToken()
	}

	revoked, err := m.isRevoked(ctx, claims.ID)
	if err != nil || revoked {
		return nil, errInvalidToken()
	}

	active, err := m.sessions.IsActive(ctx, claims.SessionID)
	if err != nil || !active {
		return nil, errInvalidToken()
	}

	if err := m.sessions.Touch(ctx, claims.SessionID); err != nil {
		logger.FromContext(ctx).Warn("failed to touch session",
			slog.String("session_id", claims.SessionID), slog.Any("error", err))
	}

	return claims, nil
}

// ListSessions returns the user's active sessions, most recently used first.
func (m *AuthManager) ListSessions(ctx context.Context, userID string) ([]domain.Session, error) {
	return m.sessions.ListActive(ctx, userID)
}

// RevokeSession deactivates one of the user's other sessions. The current
// session must be ended through Logout so the access token is revoked with it.
func (m *AuthManager) RevokeSession(ctx context.Context, userID, sessionID, currentSessionID string, meta RequestMeta) error {
	if sessionID == currentSessionID {
		return apperrors.InvalidInput("use logout to end the current session")
	}

	session, err := m.sessions.GetByID(ctx, sessionID)
	if err != nil {
		return err
	}
	if session.UserID != userID {
		return apperrors.NotFound("session", sessionID)
	}

	if err := m.sessions.Invalidate(ctx, sessionID); err != nil {
		return err
	}

	m.recordEvent(ctx, userID, domain.EventSessionRevoked, domain.SeverityInfo, meta, map[string]string{
		"session_id": sessionID,
	})
	return nil
}

// openSession creates a session row and mints the token pair bound to it.
func (m *AuthManager) openSession(ctx context.Context, user *domain.User, meta RequestMeta) (*domain.Session, *domain.TokenPair, error) {
	now := m.now().UTC()
	session := &domain.Session{
		ID:             uuid.NewString(),
		UserID:         user.ID,
		DeviceInfo:     meta.DeviceInfo,
		IPAddress:      meta.IPAddress,
		UserAgent:      meta.UserAgent,
		IsActive:       true,
		CreatedAt:      now,
		LastActivityAt: now,
		ExpiresAt:      now.Add(m.codec.RefreshTTL()),
	}

	if err := m.sessions.Create(ctx, session); err != nil {
		return nil, nil, err
	}

	pair, err := m.codec.IssuePair(user.ID, user.Role, session.ID)
	if err != nil {
		return nil, nil, apperrors.Internal(err)
	}

	return session, pair, nil
}

// isLockedOut applies the lockout rule to the most recent attempts for the
// (email, ip) pair inside the window.
func (m *AuthManager) isLockedOut(ctx context.Context, email, ip string) (bool, error) {
	since := m.now().Add(-lockoutWindow)
	attempts, err := m.attempts.RecentForKey(ctx, email, ip, since, lockoutThreshold)
	if err != nil {
		return false, err
	}

	if len(attempts) < lockoutThreshold {
		return false, nil
	}
	for _, a := range attempts {
		if a.Success {
			return false, nil
		}
	}
	return true, nil
}

// isRevoked checks the verdict cache first and falls through to the database
// on a miss. Database verdicts are cached; cache errors are ignored.
func (m *AuthManager) isRevoked(ctx context.Context, jti string) (bool, error) {
	if m.cache != nil {
		if revoked, ok := m.cache.Get(ctx, jti); ok {
			return revoked, nil
		}
	}

	revoked, err := m.blacklist.IsBlacklisted(ctx, jti)
	if err != nil {
		return false, err
	}

	if m.cache != nil {
		if cerr := m.cache.Set(ctx, jti, revoked); cerr != nil {
			logger.FromContext(ctx).Warn("failed to cache blacklist verdict", slog.Any("error", cerr))
		}
	}
	return revoked, nil
}

// revokeJTI blacklists a token id and drops its cached verdict. The cache
// invalidation happens after the write so a racing reader re-reads the row.
// The row expires when the token does; a caller without the token's expiry
// passes the zero time and gets the full access TTL as the upper bound.
func (m *AuthManager) revokeJTI(ctx context.Context, userID, jti, reason string, expiresAt time.Time) error {
	now := m.now().UTC()
	if expiresAt.IsZero() {
		expiresAt = now.Add(m.codec.AccessTTL())
	}
	if expiresAt.Before(now) {
		expiresAt = now
	}

	err := m.blacklist.Add(ctx, &domain.BlacklistedToken{
		JTI:       jti,
		UserID:    userID,
		Reason:    reason,
		ExpiresAt: expiresAt,
		CreatedAt: now,
	})
	if err != nil {
		return err
	}

	if m.cache != nil {
		if cerr := m.cache.Invalidate(ctx, jti); cerr != nil {
			logger.FromContext(ctx).Warn("failed to invalidate blacklist verdict",
				slog.String("jti", jti), slog.Any("error", cerr))
		}
	}
	return nil
}

// recordAttempt appends a login attempt. Failures are logged, not returned;
// an unavailable bookkeeping table must not block logins.
func (m *AuthManager) recordAttempt(ctx context.Context, email string, meta RequestMeta, success bool, failureReason string) {
	err := m.attempts.Record(ctx, &domain.LoginAttempt{
		Email:         email,
		IPAddress:     meta.IPAddress,
		UserAgent:     meta.UserAgent,
		Success:       success,
		FailureReason: failureReason,
		CreatedAt:     m.now().UTC(),
	})
	if err != nil {
		logger.FromContext(ctx).Error("failed to record login attempt", slog.Any("error", err))
	}
}

// recordEvent appends a security event to the audit trail and publishes it.
func (m *AuthManager) recordEvent(ctx context.Context, userID, eventType, severity string, meta RequestMeta, details map[string]string) {
	event := &domain.SecurityEvent{
		UserID:    userID,
		EventType: eventType,
		Severity:  severity,
		IPAddress: meta.IPAddress,
		UserAgent: meta.UserAgent,
		Details:   details,
		CreatedAt: m.now().UTC(),
	}

	if err := m.events.Record(ctx, event); err != nil {
		logger.FromContext(ctx).Error("failed to record security event",
			slog.String("event_type", eventType), slog.Any("error", err))
	}

	if m.publisher != nil {
		m.publisher.PublishSecurity(ctx, event)
	}
}

func errInvalidToken() error {
	return apperrors.Unauthorized("invalid or expired token")
}

func itoa(n int64) string {
	return strconv.FormatInt(n, 10)
}
