package jwtx

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Default token TTL constants. Short access window keeps the blast radius of
// a stolen access token small; the refresh window trades that off against
// how often clients must rotate.
const (
	// DefaultAccessTokenTTL is the default lifetime for access tokens.
	DefaultAccessTokenTTL = 15 * time.Minute

	// DefaultRefreshTokenTTL is the default lifetime for refresh tokens.
	DefaultRefreshTokenTTL = 7 * 24 * time.Hour
)

// Claims are the access-token claims used across the service. The "jti"
// (RegisteredClaims.ID) carries the session identifier that binds the token
// to its server-side session entry; the token alone never grants access.
type Claims struct {
	jwt.RegisteredClaims

	// Email of the authenticated user at session-creation time.
	Email string `json:"email,omitempty"`

	// Roles granted to the user at session-creation time, e.g. ["user"],
	// ["user","admin"]. Snapshot semantics: not re-read per request.
	Roles []string `json:"roles,omitempty"`
}

// NewAccessClaims builds minimally-correct access-token claims. sessionID
// becomes the jti claim.
func NewAccessClaims(
	subject, sessionID string,
	email string,
	roles []string,
	ttl time.Duration,
	issuer string,
	now time.Time,
) Claims {
	return Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        sessionID,
		},
		Email: email,
		Roles: roles,
	}
}

// SessionID returns the jti claim binding this token to its session entry.
func (c *Claims) SessionID() string { return c.ID }

// HasRole reports whether the claims carry the named role.
func (c *Claims) HasRole(role string) bool {
	for _, r := range c.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// ValidateIssuer checks if the issuer matches expected value.
func (c *Claims) ValidateIssuer(expected string) error {
	if expected == "" {
		return nil // nothing to enforce
	}

	if c.Issuer != expected {
		return ErrIssuer
	}

	return nil
}

// ValidateExpiry ensures the token hasn't expired (exp) and isn't before nbf.
func (c *Claims) ValidateExpiry() error {
	now := time.Now().UTC()

	if c.ExpiresAt != nil && now.After(c.ExpiresAt.Time) {
		return ErrExpired
	}

	if c.NotBefore != nil && now.Before(c.NotBefore.Time) {
		return ErrNotYetValid
	}

	return nil
}
