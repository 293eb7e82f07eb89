package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/phlox-social/phlox/internal/session/domain"
)

// RedisStore keeps sessions in Redis. The access and refresh entries are
// written in one transaction so a session is never half-created, and every
// expiry is delegated to Redis TTLs rather than an application sweeper.
type RedisStore struct {
	rdb    *redis.Client
	logger *slog.Logger

	accessTTL  time.Duration
	refreshTTL time.Duration
}

// NewRedisStore wraps an already-constructed client. The client's lifecycle
// belongs to the composition root; Close here closes it on shutdown.
func NewRedisStore(rdb *redis.Client, logger *slog.Logger, accessTTL, refreshTTL time.Duration) *RedisStore {
	return &RedisStore{
		rdb:        rdb,
		logger:     logger.With("component", "session_store"),
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
	}
}

var _ Store = (*RedisStore)(nil)

func (s *RedisStore) CreateSession(ctx context.Context, rec domain.SessionRecord) error {
	if err := rec.Payload.Validate(); err != nil {
		return err
	}
	if rec.SessionID == "" || rec.RefreshTokenFP == "" {
		return errors.New("session record missing id or refresh fingerprint")
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode session record: %w", err)
	}

	_, err = s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, accessKey(rec.SessionID), data, s.accessTTL)
		pipe.Set(ctx, refreshKey(rec.RefreshTokenFP), data, s.refreshTTL)
		pipe.SAdd(ctx, userKey(rec.Payload.UserID), rec.SessionID)
		// The index must outlive its longest member; refreshed on every
		// session creation.
		pipe.Expire(ctx, userKey(rec.Payload.UserID), s.refreshTTL)
		return nil
	})
	if err != nil {
		s.logger.Error("create session failed",
			"session_id", rec.SessionID,
			"user_id", rec.Payload.UserID,
			"err", err,
		)
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

func (s *RedisStore) GetSessionByID(ctx context.Context, sessionID string) (*domain.SessionRecord, error) {
	return s.getRecord(ctx, accessKey(sessionID))
}

func (s *RedisStore) GetSessionByRefreshToken(ctx context.Context, fingerprint string) (*domain.SessionRecord, error) {
	return s.getRecord(ctx, refreshKey(fingerprint))
}

func (s *RedisStore) getRecord(ctx context.Context, key string) (*domain.SessionRecord, error) {
	data, err := s.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		s.logger.Error("session lookup failed", "key", key, "err", err)
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	var rec domain.SessionRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		s.logger.Error("session record does not parse", "key", key, "err", err)
		return nil, fmt.Errorf("%w: %v", ErrCorruptRecord, err)
	}
	return &rec, nil
}

func (s *RedisStore) GetSessionsByUser(ctx context.Context, userID string) ([]domain.SessionRecord, error) {
	ids, err := s.rdb.SMembers(ctx, userKey(userID)).Result()
	if err != nil {
		s.logger.Error("user session index lookup failed", "user_id", userID, "err", err)
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	var (
		live     []domain.SessionRecord
		dangling []any
	)
	for _, id := range ids {
		rec, err := s.getRecord(ctx, accessKey(id))
		if err != nil {
			if errors.Is(err, ErrCorruptRecord) {
				dangling = append(dangling, id)
				continue
			}
			return nil, err
		}
		if rec == nil {
			// Access entry expired out from under the index; Redis sets
			// have no per-member TTL, so the index self-heals here.
			dangling = append(dangling, id)
			continue
		}
		live = append(live, *rec)
	}

	if len(dangling) > 0 {
		if err := s.rdb.SRem(ctx, userKey(userID), dangling...).Err(); err != nil {
			s.logger.Warn("pruning stale index members failed", "user_id", userID, "err", err)
		}
	}
	return live, nil
}

func (s *RedisStore) RevokeBySessionID(ctx context.Context, sessionID string) error {
	rec, err := s.getRecord(ctx, accessKey(sessionID))
	if err != nil && !errors.Is(err, ErrCorruptRecord) {
		return err
	}
	if rec == nil {
		// Already gone (expired or revoked elsewhere, or unparseable): make
		// sure the key is dead and treat as success.
		if err := s.rdb.Del(ctx, accessKey(sessionID)).Err(); err != nil {
			s.logger.Error("revoke session failed", "session_id", sessionID, "err", err)
			return fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		return nil
	}

	_, err = s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, accessKey(sessionID))
		if rec.RefreshTokenFP != "" {
			pipe.Del(ctx, refreshKey(rec.RefreshTokenFP))
		}
		pipe.SRem(ctx, userKey(rec.Payload.UserID), sessionID)
		return nil
	})
	if err != nil {
		s.logger.Error("revoke session failed", "session_id", sessionID, "err", err)
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

func (s *RedisStore) RevokeByRefreshToken(ctx context.Context, fingerprint string) error {
	if err := s.rdb.Del(ctx, refreshKey(fingerprint)).Err(); err != nil {
		s.logger.Error("revoke refresh entry failed", "err", err)
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

func (s *RedisStore) RevokeAllByUser(ctx context.Context, userID string) error {
	ids, err := s.rdb.SMembers(ctx, userKey(userID)).Result()
	if err != nil {
		s.logger.Error("revoke all sessions failed", "user_id", userID, "err", err)
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	// Resolve the paired refresh fingerprints before deleting anything so a
	// banned user can't keep minting tokens from a surviving refresh entry.
	var refreshKeys []string
	for _, id := range ids {
		rec, err := s.getRecord(ctx, accessKey(id))
		if err != nil && !errors.Is(err, ErrCorruptRecord) {
			return err
		}
		if rec != nil && rec.RefreshTokenFP != "" {
			refreshKeys = append(refreshKeys, refreshKey(rec.RefreshTokenFP))
		}
	}

	_, err = s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, id := range ids {
			pipe.Del(ctx, accessKey(id))
		}
		for _, key := range refreshKeys {
			pipe.Del(ctx, key)
		}
		pipe.Del(ctx, userKey(userID))
		return nil
	})
	if err != nil {
		s.logger.Error("revoke all sessions failed", "user_id", userID, "err", err)
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	s.logger.Info("revoked all sessions", "user_id", userID, "count", len(ids))
	return nil
}

func (s *RedisStore) TouchLastSeen(ctx context.Context, sessionID string, at time.Time) error {
	rec, err := s.getRecord(ctx, accessKey(sessionID))
	if err != nil || rec == nil {
		return err
	}

	rec.LastSeenAt = at.UTC()
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode session record: %w", err)
	}

	// KeepTTL: a lastSeen touch must never extend the access window.
	if err := s.rdb.Set(ctx, accessKey(sessionID), data, redis.KeepTTL).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

func (s *RedisStore) Ping(ctx context.Context) error {
	return s.rdb.Ping(ctx).Err()
}

func (s *RedisStore) Close() error {
	return s.rdb.Close()
}
