package jwtx

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

var testSecret = []byte("0123456789abcdef0123456789abcdef")

func TestHS256_SignAndVerify(t *testing.T) {
	signer, err := NewHS256Signer(testSecret)
	require.NoError(t, err)
	verifier, err := NewHS256Verifier(testSecret, "phlox-api")
	require.NoError(t, err)

	now := time.Now().UTC()
	claims := NewAccessClaims(
		"user-1", "sess-1",
		"alice@example.com",
		[]string{"user", "admin"},
		15*time.Minute,
		"phlox-api",
		now,
	)

	tokenStr, err := signer.Sign(claims)
	require.NoError(t, err)

	got, err := verifier.Verify(tokenStr)
	require.NoError(t, err)
	require.Equal(t, "user-1", got.Subject)
	require.Equal(t, "sess-1", got.SessionID())
	require.Equal(t, "alice@example.com", got.Email)
	require.True(t, got.HasRole("admin"))
	require.False(t, got.HasRole("moderator"))
}

func TestHS256_RejectsWrongSecret(t *testing.T) {
	signer, err := NewHS256Signer(testSecret)
	require.NoError(t, err)
	verifier, err := NewHS256Verifier([]byte("another-secret-another-secret!!!"), "")
	require.NoError(t, err)

	tokenStr, err := signer.Sign(NewAccessClaims(
		"user-1", "sess-1", "", nil, time.Minute, "", time.Now().UTC(),
	))
	require.NoError(t, err)

	_, err = verifier.Verify(tokenStr)
	require.Error(t, err)
}

func TestHS256_RejectsExpired(t *testing.T) {
	signer, err := NewHS256Signer(testSecret)
	require.NoError(t, err)
	verifier, err := NewHS256Verifier(testSecret, "")
	require.NoError(t, err)

	past := time.Now().UTC().Add(-time.Hour)
	tokenStr, err := signer.Sign(NewAccessClaims(
		"user-1", "sess-1", "", nil, time.Minute, "", past,
	))
	require.NoError(t, err)

	_, err = verifier.Verify(tokenStr)
	require.Error(t, err)
}

func TestHS256_RejectsWrongIssuer(t *testing.T) {
	signer, err := NewHS256Signer(testSecret)
	require.NoError(t, err)
	verifier, err := NewHS256Verifier(testSecret, "phlox-api")
	require.NoError(t, err)

	tokenStr, err := signer.Sign(NewAccessClaims(
		"user-1", "sess-1", "", nil, time.Minute, "someone-else", time.Now().UTC(),
	))
	require.NoError(t, err)

	_, err = verifier.Verify(tokenStr)
	require.ErrorIs(t, err, ErrIssuer)
}

func TestHS256_RejectsGarbage(t *testing.T) {
	verifier, err := NewHS256Verifier(testSecret, "")
	require.NoError(t, err)

	for _, bad := range []string{"", "not-a-jwt", "a.b.c"} {
		_, err := verifier.Verify(bad)
		require.Error(t, err)
	}
}

func TestNewHS256_RejectsEmptySecret(t *testing.T) {
	_, err := NewHS256Signer(nil)
	require.Error(t, err)
	_, err = NewHS256Verifier(nil, "")
	require.Error(t, err)
}
