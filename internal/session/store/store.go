package store

import (
	"context"
	"errors"
	"time"

	"github.com/phlox-social/phlox/internal/session/domain"
)

// Key namespaces. Every session key lives under one of these prefixes so
// operators can reason about (and scan) the keyspace.
const (
	// accessKeyPrefix + sessionID -> SessionRecord, TTL = access window.
	accessKeyPrefix = "session:access:"

	// refreshKeyPrefix + sha256(refresh token) -> SessionRecord,
	// TTL = refresh window.
	refreshKeyPrefix = "session:refresh:"

	// userKeyPrefix + userID -> set of session ids (reverse index).
	userKeyPrefix = "session:user:"
)

var (
	// ErrUnavailable wraps transport-level store failures. Callers on the
	// authentication path must treat it as "session not found" (fail closed).
	ErrUnavailable = errors.New("session store unavailable")

	// ErrCorruptRecord marks a session entry that exists but no longer
	// parses. Distinct from absence so callers can log it loudly.
	ErrCorruptRecord = errors.New("corrupt session record")
)

// Store is the server-side session store. Lookups return (nil, nil) when no
// entry exists; revocations are idempotent and succeed on already-absent
// entries.
type Store interface {
	// CreateSession writes the access entry, the refresh entry and the
	// user-index membership atomically.
	CreateSession(ctx context.Context, rec domain.SessionRecord) error

	// GetSessionByID looks up the access entry for a session id (token jti).
	GetSessionByID(ctx context.Context, sessionID string) (*domain.SessionRecord, error)

	// GetSessionByRefreshToken looks up the refresh entry by the SHA-256
	// fingerprint of the raw refresh token.
	GetSessionByRefreshToken(ctx context.Context, fingerprint string) (*domain.SessionRecord, error)

	// GetSessionsByUser returns all live sessions for a user, pruning index
	// members whose access entries have expired.
	GetSessionsByUser(ctx context.Context, userID string) ([]domain.SessionRecord, error)

	// RevokeBySessionID deletes the access entry, its paired refresh entry
	// and the user-index membership.
	RevokeBySessionID(ctx context.Context, sessionID string) error

	// RevokeByRefreshToken deletes the refresh entry for a fingerprint.
	RevokeByRefreshToken(ctx context.Context, fingerprint string) error

	// RevokeAllByUser force-expires every session for a user: all access
	// entries, their paired refresh entries and the index itself.
	RevokeAllByUser(ctx context.Context, userID string) error

	// TouchLastSeen updates the lastSeenAt timestamp on the access entry
	// without changing its TTL. Best effort.
	TouchLastSeen(ctx context.Context, sessionID string, at time.Time) error

	// Ping reports store reachability for readiness probes.
	Ping(ctx context.Context) error

	Close() error
}

func accessKey(sessionID string) string { return accessKeyPrefix + sessionID }

func refreshKey(fingerprint string) string { return refreshKeyPrefix + fingerprint }

func userKey(userID string) string { return userKeyPrefix + userID }
