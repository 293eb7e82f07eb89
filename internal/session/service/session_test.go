package service

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/phlox-social/phlox/internal/session/domain"
	"github.com/phlox-social/phlox/internal/session/store"
	"github.com/phlox-social/phlox/pkg/cryptox"
	"github.com/phlox-social/phlox/pkg/idx"
	"github.com/phlox-social/phlox/pkg/jwtx"
)

const (
	testAccessTTL  = 15 * time.Minute
	testRefreshTTL = 7 * 24 * time.Hour
	testIssuerName = "phlox-test"
)

var testSecret = []byte("test-signing-secret-0123456789ab")

type fixture struct {
	mr       *miniredis.Miniredis
	store    *store.RedisStore
	sessions *Sessions
	issuer   *Issuer
	verifier *jwtx.HS256Verifier
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	logger := slog.Default()
	st := store.NewRedisStore(rdb, logger, testAccessTTL, testRefreshTTL)
	sessions := NewSessions(st, logger)

	signer, err := jwtx.NewHS256Signer(testSecret)
	require.NoError(t, err)
	verifier, err := jwtx.NewHS256Verifier(testSecret, testIssuerName)
	require.NoError(t, err)

	return &fixture{
		mr:       mr,
		store:    st,
		sessions: sessions,
		issuer:   NewIssuer(sessions, signer, logger, testIssuerName, testAccessTTL),
		verifier: verifier,
	}
}

func testPayload(userID string) domain.SessionPayload {
	return domain.SessionPayload{
		Version: domain.PayloadVersion,
		UserID:  userID,
		Email:   userID + "@example.com",
		Roles:   []string{"user"},
	}
}

func TestCheckAccess_LiveSession(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	pair, err := f.issuer.Issue(ctx, testPayload("user-1"), domain.DeviceMeta{})
	require.NoError(t, err)

	require.NoError(t, f.sessions.CheckAccess(ctx, pair.SessionID, "user-1"))
}

func TestCheckAccess_UnexpiredTokenRevokedSession(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	pair, err := f.issuer.Issue(ctx, testPayload("user-1"), domain.DeviceMeta{})
	require.NoError(t, err)

	// The signed token still verifies, but once the session entry is gone
	// the token must stop granting access.
	claims, err := f.verifier.Verify(pair.AccessToken)
	require.NoError(t, err)
	require.Equal(t, pair.SessionID, claims.SessionID())

	require.NoError(t, f.sessions.Revoke(ctx, pair.SessionID))

	err = f.sessions.CheckAccess(ctx, pair.SessionID, "user-1")
	require.ErrorIs(t, err, ErrSessionInvalid)
}

func TestCheckAccess_SubjectMismatch(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	pair, err := f.issuer.Issue(ctx, testPayload("user-1"), domain.DeviceMeta{})
	require.NoError(t, err)

	err = f.sessions.CheckAccess(ctx, pair.SessionID, "someone-else")
	require.ErrorIs(t, err, ErrSessionMismatch)
}

func TestCheckAccess_StoreDownFailsClosed(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	pair, err := f.issuer.Issue(ctx, testPayload("user-1"), domain.DeviceMeta{})
	require.NoError(t, err)

	f.mr.Close()

	err = f.sessions.CheckAccess(ctx, pair.SessionID, "user-1")
	require.ErrorIs(t, err, ErrSessionInvalid)
}

func TestCheckAccess_CorruptEntry(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.mr.Set("session:access:broken", "{{{"))

	err := f.sessions.CheckAccess(ctx, "broken", "user-1")
	require.ErrorIs(t, err, ErrCorruptSession)
}

func TestCheckAccess_TouchesLastSeen(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	pair, err := f.issuer.Issue(ctx, testPayload("user-1"), domain.DeviceMeta{})
	require.NoError(t, err)

	before, err := f.store.GetSessionByID(ctx, pair.SessionID)
	require.NoError(t, err)

	time.Sleep(10 * time.Millisecond)
	require.NoError(t, f.sessions.CheckAccess(ctx, pair.SessionID, "user-1"))

	after, err := f.store.GetSessionByID(ctx, pair.SessionID)
	require.NoError(t, err)
	require.True(t, after.LastSeenAt.After(before.LastSeenAt))
}

func TestList_FlagsCurrentSession(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first, err := f.issuer.Issue(ctx, testPayload("user-1"), domain.DeviceMeta{UserAgent: "phone"})
	require.NoError(t, err)
	second, err := f.issuer.Issue(ctx, testPayload("user-1"), domain.DeviceMeta{UserAgent: "laptop"})
	require.NoError(t, err)

	infos, err := f.sessions.List(ctx, "user-1", second.SessionID)
	require.NoError(t, err)
	require.Len(t, infos, 2)

	byID := map[string]bool{}
	for _, info := range infos {
		byID[info.SessionID] = info.Current
	}
	require.False(t, byID[first.SessionID])
	require.True(t, byID[second.SessionID])
}

func TestIssue_RejectsInvalidPayload(t *testing.T) {
	f := newFixture(t)

	_, err := f.issuer.Issue(context.Background(), domain.SessionPayload{
		Version: 99, UserID: "user-1",
	}, domain.DeviceMeta{})
	require.ErrorIs(t, err, domain.ErrInvalidPayload)
}

func TestIssue_StoreDownStillReturnsTokens(t *testing.T) {
	f := newFixture(t)
	f.mr.Close()

	// Login must survive a cache blip; the pair comes back and simply
	// doesn't grant access until the store recovers.
	pair, err := f.issuer.Issue(context.Background(), testPayload("user-1"), domain.DeviceMeta{})
	require.NoError(t, err)
	require.NotEmpty(t, pair.AccessToken)
	require.NotEmpty(t, pair.RefreshToken)
}

func TestIssue_AccessTokenClaims(t *testing.T) {
	f := newFixture(t)

	pair, err := f.issuer.Issue(context.Background(), testPayload("user-1"), domain.DeviceMeta{})
	require.NoError(t, err)

	claims, err := f.verifier.Verify(pair.AccessToken)
	require.NoError(t, err)
	require.Equal(t, "user-1", claims.Subject)
	require.Equal(t, pair.SessionID, claims.SessionID())
	require.Equal(t, "user-1@example.com", claims.Email)
	require.True(t, claims.HasRole("user"))

	// jti is a parseable session id, not a reused value.
	_, err = idx.Parse(pair.SessionID)
	require.NoError(t, err)
}

func TestRevoker_NeverErrorsWhenStoreDown(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.issuer.Issue(ctx, testPayload("user-1"), domain.DeviceMeta{})
	require.NoError(t, err)

	f.mr.Close()

	revoker := NewRevoker(f.sessions, slog.Default())
	require.NotPanics(t, func() {
		revoker.RevokeAll(ctx, "user-1")
		revoker.RevokeSession(ctx, "whatever")
	})
}

func TestRevokeAll_KillsRefreshTokensToo(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	pair, err := f.issuer.Issue(ctx, testPayload("user-1"), domain.DeviceMeta{})
	require.NoError(t, err)

	revoker := NewRevoker(f.sessions, slog.Default())
	revoker.RevokeAll(ctx, "user-1")

	require.ErrorIs(t, f.sessions.CheckAccess(ctx, pair.SessionID, "user-1"), ErrSessionInvalid)

	_, err = f.issuer.Refresh(ctx, pair.RefreshToken, domain.DeviceMeta{})
	require.ErrorIs(t, err, ErrInvalidRefresh)
}

func TestCreate_NeverStoresRawRefreshToken(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	pair, err := f.issuer.Issue(ctx, testPayload("user-1"), domain.DeviceMeta{})
	require.NoError(t, err)

	fp := cryptox.FingerprintToken(pair.RefreshToken)
	rec, err := f.store.GetSessionByRefreshToken(ctx, fp)
	require.NoError(t, err)
	require.NotNil(t, rec)

	require.NotContains(t, rec.RefreshTokenHash, pair.RefreshToken)
	require.NotEqual(t, pair.RefreshToken, rec.RefreshTokenFP)
	require.True(t, cryptox.VerifySecret(rec.RefreshTokenHash, pair.RefreshToken))
}
