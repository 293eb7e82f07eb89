package service

import (
	"context"
	"log/slog"
)

// Revoker is the fire-and-forget revocation facade handed to subsystems that
// trigger security-sensitive account actions (bans, password changes). It
// never returns an error and never panics: the caller's primary action must
// not be blocked by cache trouble, and revocation stays effective regardless
// because access checks fail closed while the store is unhappy.
type Revoker struct {
	sessions *Sessions
	logger   *slog.Logger
}

func NewRevoker(sessions *Sessions, logger *slog.Logger) *Revoker {
	return &Revoker{
		sessions: sessions,
		logger:   logger.With("component", "revoker"),
	}
}

// RevokeAll force-expires every session for the user. Both outcomes leave an
// audit trail.
func (r *Revoker) RevokeAll(ctx context.Context, userID string) {
	defer func() {
		if p := recover(); p != nil {
			r.logger.Error("audit: revoke-all panicked", "user_id", userID, "panic", p)
		}
	}()

	if err := r.sessions.RevokeAll(ctx, userID); err != nil {
		r.logger.Error("audit: revoke-all failed", "user_id", userID, "err", err)
		return
	}
	r.logger.Info("audit: revoked all sessions", "user_id", userID)
}

// RevokeSession force-expires one session, same contract as RevokeAll.
func (r *Revoker) RevokeSession(ctx context.Context, sessionID string) {
	defer func() {
		if p := recover(); p != nil {
			r.logger.Error("audit: revoke panicked", "session_id", sessionID, "panic", p)
		}
	}()

	if err := r.sessions.Revoke(ctx, sessionID); err != nil {
		r.logger.Error("audit: revoke failed", "session_id", sessionID, "err", err)
	}
}
