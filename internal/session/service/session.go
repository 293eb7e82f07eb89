package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/phlox-social/phlox/internal/session/domain"
	"github.com/phlox-social/phlox/internal/session/store"
	"github.com/phlox-social/phlox/pkg/cryptox"
)

var (
	// ErrSessionInvalid covers every access-check failure the client is
	// allowed to learn about: no entry, expired entry, revoked entry or an
	// unreachable store. One error on purpose.
	ErrSessionInvalid = errors.New("session invalid")

	// ErrSessionMismatch means the token's subject and the stored session's
	// owner disagree. Logged loudly; the client still sees a plain 401.
	ErrSessionMismatch = errors.New("session user mismatch")

	// ErrCorruptSession means an entry exists but no longer parses or fails
	// payload validation.
	ErrCorruptSession = errors.New("corrupt session")
)

// Sessions owns the server-side session lifecycle on top of a Store.
type Sessions struct {
	store  store.Store
	logger *slog.Logger
}

func NewSessions(st store.Store, logger *slog.Logger) *Sessions {
	return &Sessions{
		store:  st,
		logger: logger.With("component", "sessions"),
	}
}

// Create hashes the raw refresh token and persists the dual-entry session
// record. The raw token is never stored; only its argon2id verifier and its
// SHA-256 fingerprint are.
func (s *Sessions) Create(
	ctx context.Context,
	sessionID string,
	payload domain.SessionPayload,
	refreshToken string,
	meta domain.DeviceMeta,
) error {
	hash, err := cryptox.HashSecret(refreshToken)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	return s.store.CreateSession(ctx, domain.SessionRecord{
		SessionID:        sessionID,
		Payload:          payload,
		RefreshTokenHash: hash,
		RefreshTokenFP:   cryptox.FingerprintToken(refreshToken),
		Meta:             meta,
		CreatedAt:        now,
		LastSeenAt:       now,
	})
}

// CheckAccess is the per-request authorization gate behind signature
// verification: the session entry must exist (unexpired, unrevoked) and must
// belong to the token's subject. Store failures fail closed.
func (s *Sessions) CheckAccess(ctx context.Context, sessionID, userID string) error {
	rec, err := s.store.GetSessionByID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, store.ErrCorruptRecord) {
			return ErrCorruptSession
		}
		// Unreachable store: deny rather than trust an unverifiable token.
		s.logger.Error("access check failed closed", "session_id", sessionID, "err", err)
		return ErrSessionInvalid
	}
	if rec == nil {
		return ErrSessionInvalid
	}
	if err := rec.Payload.Validate(); err != nil {
		s.logger.Error("session payload failed validation", "session_id", sessionID, "err", err)
		return ErrCorruptSession
	}
	if rec.Payload.UserID != userID {
		s.logger.Error("session/token subject mismatch",
			"session_id", sessionID,
			"token_user_id", userID,
			"session_user_id", rec.Payload.UserID,
		)
		return ErrSessionMismatch
	}

	if err := s.store.TouchLastSeen(ctx, sessionID, time.Now().UTC()); err != nil {
		s.logger.Debug("lastSeen touch failed", "session_id", sessionID, "err", err)
	}
	return nil
}

// List returns the user's live sessions as owner-safe views, flagging the
// session the request came in on.
func (s *Sessions) List(ctx context.Context, userID, currentSessionID string) ([]domain.SessionInfo, error) {
	recs, err := s.store.GetSessionsByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	infos := make([]domain.SessionInfo, 0, len(recs))
	for _, rec := range recs {
		infos = append(infos, domain.SessionInfo{
			SessionID:  rec.SessionID,
			Meta:       rec.Meta,
			CreatedAt:  rec.CreatedAt,
			LastSeenAt: rec.LastSeenAt,
			Current:    rec.SessionID == currentSessionID,
		})
	}
	return infos, nil
}

// Revoke force-expires a single session. Idempotent; failures are logged and
// returned, but callers on best-effort paths may ignore the error.
func (s *Sessions) Revoke(ctx context.Context, sessionID string) error {
	if err := s.store.RevokeBySessionID(ctx, sessionID); err != nil {
		s.logger.Error("session revocation failed", "session_id", sessionID, "err", err)
		return err
	}
	s.logger.Info("session revoked", "session_id", sessionID)
	return nil
}

// RevokeAll force-expires every session for the user.
func (s *Sessions) RevokeAll(ctx context.Context, userID string) error {
	if err := s.store.RevokeAllByUser(ctx, userID); err != nil {
		s.logger.Error("user-wide revocation failed", "user_id", userID, "err", err)
		return err
	}
	return nil
}
