package jwtx

import (
	"errors"

	"github.com/golang-jwt/jwt/v5"
)

// Signer turns claims into a signed JWT string.
type Signer interface {
	Sign(claims Claims) (string, error)
}

// HS256Signer signs access tokens with a single shared secret (HMAC-SHA256).
type HS256Signer struct {
	secret []byte
}

// NewHS256Signer wraps the given signing secret. An empty secret is a
// programming error at the composition root and is rejected outright.
func NewHS256Signer(secret []byte) (*HS256Signer, error) {
	if len(secret) == 0 {
		return nil, errors.New("jwtx: empty signing secret")
	}
	return &HS256Signer{secret: secret}, nil
}

// Sign takes your claims and turns them into a signed JWT string.
func (s *HS256Signer) Sign(claims Claims) (string, error) {
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return t.SignedString(s.secret)
}
