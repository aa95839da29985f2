package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/Agamista0/ava-support-backend/internal/domain"
)

// tokenTypeRefresh marks refresh tokens. Access tokens carry no type marker,
// so a refresh token presented as an access token is rejected and vice versa.
const tokenTypeRefresh = "refresh"

// Claims are the JWT claims for both token kinds. Role is only set on access
// tokens, TokenType only on refresh tokens. SessionID binds every token to the
// login that minted it.
type Claims struct {
	Role      string `json:"role,omitempty"`
	SessionID string `json:"sid"`
	TokenType string `json:"typ,omitempty"`
	jwt.RegisteredClaims
}

// Codec signs and parses the HS256 token pairs. Parsing checks signature,
// algorithm, issuer, audience, and expiry only; revocation and session state
// are the auth manager's concern.
type Codec struct {
	secret     []byte
	issuer     string
	audience   string
	accessTTL  time.Duration
	refreshTTL time.Duration
}

// NewCodec creates a token codec with the given signing secret and TTLs.
func NewCodec(secret, issuer, audience string, accessTTL, refreshTTL time.Duration) *Codec {
	return &Codec{
		secret:     []byte(secret),
		issuer:     issuer,
		audience:   audience,
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
	}
}

// AccessTTL returns the configured access token lifetime.
func (c *Codec) AccessTTL() time.Duration { return c.accessTTL }

// RefreshTTL returns the configured refresh token lifetime.
func (c *Codec) RefreshTTL() time.Duration { return c.refreshTTL }

// IssuePair mints a new access/refresh token pair bound to the session. Each
// token gets its own jti so they can be revoked independently.
func (c *Codec) IssuePair(userID string, role domain.Role, sessionID string) (*domain.TokenPair, error) {
	access, _, err := c.IssueAccessToken(userID, role, sessionID)
	if err != nil {
		return nil, err
	}

	refresh, _, err := c.IssueRefreshToken(userID, sessionID)
	if err != nil {
		return nil, err
	}

	return &domain.TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresIn:    int64(c.accessTTL.Seconds()),
	}, nil
}

// IssueAccessToken creates a signed access token and returns it with its jti.
func (c *Codec) IssueAccessToken(userID string, role domain.Role, sessionID string) (string, string, error) {
	now := time.Now().UTC()
	jti := uuid.New().String()
	claims := &Claims{
		Role:      string(role),
		SessionID: sessionID,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        jti,
			Subject:   userID,
			Issuer:    c.issuer,
			Audience:  jwt.ClaimStrings{c.audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(c.accessTTL)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secret)
	if err != nil {
		return "", "", fmt.Errorf("sign access token: %w", err)
	}
	return signed, jti, nil
}

// IssueRefreshToken creates a signed refresh token bound to the same session.
func (c *Codec) IssueRefreshToken(userID, sessionID string) (string, string, error) {
	now := time.Now().UTC()
	jti := uuid.New().String()
	claims := &Claims{
		SessionID: sessionID,
		TokenType: tokenTypeRefresh,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        jti,
			Subject:   userID,
			Issuer:    c.issuer,
			Audience:  jwt.ClaimStrings{c.audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(c.refreshTTL)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secret)
	if err != nil {
		return "", "", fmt.Errorf("sign refresh token: %w", err)
	}
	return signed, jti, nil
}

// ParseAccessToken validates an access token's signature, issuer, audience,
// and expiry. Refresh tokens are rejected here by their type marker.
func (c *Codec) ParseAccessToken(tokenString string) (*Claims, error) {
	claims, err := c.parse(tokenString)
	if err != nil {
		return nil, err
	}
	if claims.TokenType != "" {
		return nil, fmt.Errorf("not an access token")
	}
	return claims, nil
}

// ParseRefreshToken validates a refresh token and requires the type marker.
func (c *Codec) ParseRefreshToken(tokenString string) (*Claims, error) {
	claims, err := c.parse(tokenString)
	if err != nil {
		return nil, err
	}
	if claims.TokenType != tokenTypeRefresh {
		return nil, fmt.Errorf("not a refresh token")
	}
	return claims, nil
}

func (c *Codec) parse(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return c.secret, nil
	},
		jwt.WithIssuer(c.issuer),
		jwt.WithAudience(c.audience),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token claims")
	}
	if claims.ID == "" || claims.SessionID == "" || claims.Subject == "" {
		return nil, fmt.Errorf("token missing required claims")
	}

	return claims, nil
}
