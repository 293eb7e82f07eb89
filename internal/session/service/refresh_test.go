package service

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/phlox-social/phlox/internal/session/domain"
	"github.com/phlox-social/phlox/pkg/cryptox"
)

func TestRefresh_RotatesThePair(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	pair, err := f.issuer.Issue(ctx, testPayload("user-1"), domain.DeviceMeta{UserAgent: "phone"})
	require.NoError(t, err)

	rotated, err := f.issuer.Refresh(ctx, pair.RefreshToken, domain.DeviceMeta{IP: "10.0.0.2"})
	require.NoError(t, err)
	require.NotEqual(t, pair.SessionID, rotated.SessionID)
	require.NotEqual(t, pair.RefreshToken, rotated.RefreshToken)
	require.NotEqual(t, pair.AccessToken, rotated.AccessToken)

	// Payload snapshot carries forward unchanged.
	require.Equal(t, pair.Payload, rotated.Payload)

	// The new session works, the replaced one doesn't.
	require.NoError(t, f.sessions.CheckAccess(ctx, rotated.SessionID, "user-1"))
	require.ErrorIs(t, f.sessions.CheckAccess(ctx, pair.SessionID, "user-1"), ErrSessionInvalid)

	// Device metadata merged: stored agent kept, caller IP applied.
	rec, err := f.store.GetSessionByID(ctx, rotated.SessionID)
	require.NoError(t, err)
	require.Equal(t, "phone", rec.Meta.UserAgent)
	require.Equal(t, "10.0.0.2", rec.Meta.IP)
}

func TestRefresh_SpentTokenIsDead(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	pair, err := f.issuer.Issue(ctx, testPayload("user-1"), domain.DeviceMeta{})
	require.NoError(t, err)

	_, err = f.issuer.Refresh(ctx, pair.RefreshToken, domain.DeviceMeta{})
	require.NoError(t, err)

	_, err = f.issuer.Refresh(ctx, pair.RefreshToken, domain.DeviceMeta{})
	require.ErrorIs(t, err, ErrInvalidRefresh)
}

func TestRefresh_ChainOfRotations(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	pair, err := f.issuer.Issue(ctx, testPayload("user-1"), domain.DeviceMeta{})
	require.NoError(t, err)

	spent := []string{pair.RefreshToken}
	current := pair
	for range 3 {
		current, err = f.issuer.Refresh(ctx, current.RefreshToken, domain.DeviceMeta{})
		require.NoError(t, err)
		spent = append(spent, current.RefreshToken)
	}

	// Every earlier token in the chain is spent; only the newest works.
	for _, token := range spent[:len(spent)-1] {
		_, err := f.issuer.Refresh(ctx, token, domain.DeviceMeta{})
		require.ErrorIs(t, err, ErrInvalidRefresh)
	}
	final, err := f.issuer.Refresh(ctx, spent[len(spent)-1], domain.DeviceMeta{})
	require.NoError(t, err)
	require.NoError(t, f.sessions.CheckAccess(ctx, final.SessionID, "user-1"))
}

func TestRefresh_MissingToken(t *testing.T) {
	f := newFixture(t)

	_, err := f.issuer.Refresh(context.Background(), "", domain.DeviceMeta{})
	require.ErrorIs(t, err, ErrMissingRefreshToken)
}

func TestRefresh_UnknownToken(t *testing.T) {
	f := newFixture(t)

	_, err := f.issuer.Refresh(context.Background(), "completely-made-up", domain.DeviceMeta{})
	require.ErrorIs(t, err, ErrInvalidRefresh)
}

func TestRefresh_ExpiredToken(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	pair, err := f.issuer.Issue(ctx, testPayload("user-1"), domain.DeviceMeta{})
	require.NoError(t, err)

	f.mr.FastForward(testRefreshTTL + time.Second)

	_, err = f.issuer.Refresh(ctx, pair.RefreshToken, domain.DeviceMeta{})
	require.ErrorIs(t, err, ErrInvalidRefresh)
}

func TestRefresh_VerifierMismatchKillsSession(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	pair, err := f.issuer.Issue(ctx, testPayload("user-1"), domain.DeviceMeta{})
	require.NoError(t, err)

	// Tamper with the stored verifier so the entry no longer matches the
	// token that keys it.
	fp := cryptox.FingerprintToken(pair.RefreshToken)
	key := "session:refresh:" + fp
	raw, err := f.mr.Get(key)
	require.NoError(t, err)

	var rec domain.SessionRecord
	require.NoError(t, json.Unmarshal([]byte(raw), &rec))
	otherHash, err := cryptox.HashSecret("some-other-token")
	require.NoError(t, err)
	rec.RefreshTokenHash = otherHash
	tampered, err := json.Marshal(rec)
	require.NoError(t, err)
	require.NoError(t, f.mr.Set(key, string(tampered)))

	_, err = f.issuer.Refresh(ctx, pair.RefreshToken, domain.DeviceMeta{})
	require.ErrorIs(t, err, ErrInvalidRefresh)

	// The suspect session was proactively destroyed.
	require.ErrorIs(t, f.sessions.CheckAccess(ctx, pair.SessionID, "user-1"), ErrSessionInvalid)
	require.False(t, f.mr.Exists(key))
}

func TestRefresh_StoreDownLeavesOldTokenUsable(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	pair, err := f.issuer.Issue(ctx, testPayload("user-1"), domain.DeviceMeta{})
	require.NoError(t, err)

	f.mr.Close()

	_, err = f.issuer.Refresh(ctx, pair.RefreshToken, domain.DeviceMeta{})
	require.Error(t, err)
	// Lookup failure is reported as an invalid token, nothing was deleted.
	require.ErrorIs(t, err, ErrInvalidRefresh)
}

func TestRefresh_AccessEntryExpiredRefreshStillRotates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	pair, err := f.issuer.Issue(ctx, testPayload("user-1"), domain.DeviceMeta{})
	require.NoError(t, err)

	// Past the access window but inside the refresh window: the normal
	// steady state for an idle client coming back.
	f.mr.FastForward(testAccessTTL + time.Minute)

	rotated, err := f.issuer.Refresh(ctx, pair.RefreshToken, domain.DeviceMeta{})
	require.NoError(t, err)
	require.NoError(t, f.sessions.CheckAccess(ctx, rotated.SessionID, "user-1"))

	// The spent refresh entry is gone even though its access twin had
	// already expired.
	fp := cryptox.FingerprintToken(pair.RefreshToken)
	require.False(t, f.mr.Exists("session:refresh:"+fp))
}
