package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/phlox-social/phlox/internal/session/domain"
	"github.com/phlox-social/phlox/internal/session/store"
	"github.com/phlox-social/phlox/pkg/cryptox"
	"github.com/phlox-social/phlox/pkg/idx"
	"github.com/phlox-social/phlox/pkg/jwtx"
)

var (
	// ErrMissingRefreshToken means the client sent no token at all.
	ErrMissingRefreshToken = errors.New("refresh token required")

	// ErrInvalidRefresh covers unknown, expired, revoked and mismatched
	// refresh tokens. Deliberately indistinguishable from outside.
	ErrInvalidRefresh = errors.New("invalid refresh token")
)

// TokenPair is a freshly minted credential set plus the payload snapshot it
// was minted from.
type TokenPair struct {
	SessionID    string
	AccessToken  string
	RefreshToken string
	Payload      domain.SessionPayload
}

// Issuer mints token pairs and rotates them. Each pair gets a brand new
// session id (the access token's jti), an opaque 256-bit refresh token and a
// signed HS256 access token carrying the payload snapshot.
type Issuer struct {
	sessions *Sessions
	signer   jwtx.Signer
	logger   *slog.Logger

	issuer    string
	accessTTL time.Duration
}

func NewIssuer(sessions *Sessions, signer jwtx.Signer, logger *slog.Logger, issuerName string, accessTTL time.Duration) *Issuer {
	if accessTTL <= 0 {
		accessTTL = jwtx.DefaultAccessTokenTTL
	}
	return &Issuer{
		sessions:  sessions,
		signer:    signer,
		logger:    logger.With("component", "issuer"),
		issuer:    issuerName,
		accessTTL: accessTTL,
	}
}

// mint builds a fresh pair without touching the store.
func (i *Issuer) mint(payload domain.SessionPayload) (*TokenPair, error) {
	if err := payload.Validate(); err != nil {
		return nil, err
	}

	sessionID := idx.New().String()
	refreshToken, err := cryptox.GenerateToken(cryptox.TokenSize256)
	if err != nil {
		return nil, fmt.Errorf("generate refresh token: %w", err)
	}

	claims := jwtx.NewAccessClaims(
		payload.UserID, sessionID,
		payload.Email, payload.Roles,
		i.accessTTL, i.issuer, time.Now().UTC(),
	)
	accessToken, err := i.signer.Sign(claims)
	if err != nil {
		return nil, fmt.Errorf("sign access token: %w", err)
	}

	return &TokenPair{
		SessionID:    sessionID,
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		Payload:      payload,
	}, nil
}

// Issue mints a new session for the payload at login. The session write is
// best effort: minting already succeeded, the store may be briefly down, and
// until it recovers every access check on the new tokens fails closed
// anyway. Returning the pair keeps a cache blip from turning into a login
// outage.
func (i *Issuer) Issue(ctx context.Context, payload domain.SessionPayload, meta domain.DeviceMeta) (*TokenPair, error) {
	pair, err := i.mint(payload)
	if err != nil {
		return nil, err
	}

	if err := i.sessions.Create(ctx, pair.SessionID, payload, pair.RefreshToken, meta); err != nil {
		i.logger.Warn("session write failed at issuance",
			"session_id", pair.SessionID,
			"user_id", payload.UserID,
			"err", err,
		)
	}
	return pair, nil
}

// Refresh exchanges a valid refresh token for a brand new pair, rotating the
// session. The old pair is destroyed only after the new one durably exists,
// so a crash mid-rotation leaves the client with a still-working token
// rather than locked out. A concurrent double-spend of the same token can
// briefly yield two live sessions; both remain individually revocable and
// the window closes at the refresh TTL.
func (i *Issuer) Refresh(ctx context.Context, rawToken string, meta domain.DeviceMeta) (*TokenPair, error) {
	if rawToken == "" {
		return nil, ErrMissingRefreshToken
	}

	fp := cryptox.FingerprintToken(rawToken)
	rec, err := i.sessions.store.GetSessionByRefreshToken(ctx, fp)
	if err != nil {
		if errors.Is(err, store.ErrCorruptRecord) {
			// Unusable entry: drop it so it can't shadow the keyspace.
			_ = i.sessions.store.RevokeByRefreshToken(ctx, fp)
		}
		return nil, ErrInvalidRefresh
	}
	if rec == nil {
		return nil, ErrInvalidRefresh
	}

	if !cryptox.VerifySecret(rec.RefreshTokenHash, rawToken) {
		// An entry keyed by this token's fingerprint whose verifier does not
		// match the token is evidence of tampering. Kill the session.
		i.logger.Error("refresh token verifier mismatch, revoking session",
			"session_id", rec.SessionID,
			"user_id", rec.Payload.UserID,
		)
		_ = i.sessions.Revoke(ctx, rec.SessionID)
		_ = i.sessions.store.RevokeByRefreshToken(ctx, fp)
		return nil, ErrInvalidRefresh
	}

	pair, err := i.mint(rec.Payload)
	if err != nil {
		return nil, err
	}

	// Unlike login, the session write here is strict: the old pair is about
	// to be destroyed, so the new one must durably exist first or the
	// client ends up holding nothing.
	if err := i.sessions.Create(ctx, pair.SessionID, rec.Payload, pair.RefreshToken, rec.Meta.Merge(meta)); err != nil {
		return nil, err
	}

	// Revoke the replaced session. Best effort: the old access entry dies at
	// its own TTL anyway, and the old refresh entry is removed explicitly.
	if err := i.sessions.Revoke(ctx, rec.SessionID); err != nil {
		i.logger.Warn("replaced session not revoked", "session_id", rec.SessionID, "err", err)
	}
	if err := i.sessions.store.RevokeByRefreshToken(ctx, fp); err != nil {
		i.logger.Warn("spent refresh token not removed", "err", err)
	}

	i.logger.Info("session rotated",
		"user_id", rec.Payload.UserID,
		"old_session_id", rec.SessionID,
		"new_session_id", pair.SessionID,
	)
	return pair, nil
}
