package service

import (
	"context"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	sessiondomain "github.com/phlox-social/phlox/internal/session/domain"
	sessionsvc "github.com/phlox-social/phlox/internal/session/service"
	sessionstore "github.com/phlox-social/phlox/internal/session/store"
	"github.com/phlox-social/phlox/internal/users/domain"
	"github.com/phlox-social/phlox/internal/users/store"
	"github.com/phlox-social/phlox/internal/users/store/sqlite"
)

type fixture struct {
	users    *Users
	sessions *sessionsvc.Sessions
	mr       *miniredis.Miniredis
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	st, err := sqlite.NewStore(filepath.Join(t.TempDir(), "users.db"))
	require.NoError(t, err)
	require.NoError(t, st.ApplyMigrations())
	t.Cleanup(func() { _ = st.Close() })

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	logger := slog.Default()
	sessStore := sessionstore.NewRedisStore(rdb, logger, 15*time.Minute, 7*24*time.Hour)
	sessions := sessionsvc.NewSessions(sessStore, logger)

	return &fixture{
		users:    NewUsers(st, sessionsvc.NewRevoker(sessions, logger), logger),
		sessions: sessions,
		mr:       mr,
	}
}

func (f *fixture) register(t *testing.T, email string) domain.User {
	t.Helper()
	u, err := f.users.Register(context.Background(), email, "Test User", "correct horse battery", nil)
	require.NoError(t, err)
	return u
}

// openSession plants a live session for the user so revocation side effects
// are observable.
func (f *fixture) openSession(t *testing.T, userID string) string {
	t.Helper()
	sessionID := "sess-" + userID
	err := f.sessions.Create(context.Background(), sessionID, sessiondomain.SessionPayload{
		Version: sessiondomain.PayloadVersion,
		UserID:  userID,
	}, "refresh-"+userID, sessiondomain.DeviceMeta{})
	require.NoError(t, err)
	return sessionID
}

func TestRegisterAndLogin(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	created := f.register(t, "alice@example.com")
	require.Equal(t, []string{domain.RoleUser}, created.Roles)
	require.Equal(t, domain.StatusActive, created.Status)

	u, err := f.users.Login(ctx, "alice@example.com", "correct horse battery")
	require.NoError(t, err)
	require.Equal(t, created.ID, u.ID)

	// Email lookup is case-insensitive.
	_, err = f.users.Login(ctx, "ALICE@example.com", "correct horse battery")
	require.NoError(t, err)
}

func TestLogin_BadCredentials(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.register(t, "alice@example.com")

	_, err := f.users.Login(ctx, "alice@example.com", "wrong password!")
	require.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = f.users.Login(ctx, "nobody@example.com", "correct horse battery")
	require.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestRegister_Validation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.register(t, "alice@example.com")

	_, err := f.users.Register(ctx, "alice@example.com", "Dup", "correct horse battery", nil)
	require.ErrorIs(t, err, ErrEmailTaken)

	_, err = f.users.Register(ctx, "bob@example.com", "Bob", "short", nil)
	require.ErrorIs(t, err, ErrWeakPassword)
}

func TestBan_RevokesSessionsAndBlocksLogin(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	u := f.register(t, "alice@example.com")
	sessionID := f.openSession(t, u.ID)
	require.NoError(t, f.sessions.CheckAccess(ctx, sessionID, u.ID))

	require.NoError(t, f.users.Ban(ctx, u.ID))

	require.Error(t, f.sessions.CheckAccess(ctx, sessionID, u.ID))

	_, err := f.users.Login(ctx, "alice@example.com", "correct horse battery")
	require.ErrorIs(t, err, ErrInvalidCredentials)

	require.NoError(t, f.users.Unban(ctx, u.ID))
	_, err = f.users.Login(ctx, "alice@example.com", "correct horse battery")
	require.NoError(t, err)
}

func TestBan_SucceedsWhenSessionStoreDown(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	u := f.register(t, "alice@example.com")
	f.mr.Close()

	// The ban itself must not fail because revocation could not reach the
	// cache.
	require.NoError(t, f.users.Ban(ctx, u.ID))
}

func TestBan_UnknownUser(t *testing.T) {
	f := newFixture(t)
	require.ErrorIs(t, f.users.Ban(context.Background(), "no-such-id"), store.ErrNotFound)
}

func TestChangePassword(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	u := f.register(t, "alice@example.com")
	sessionID := f.openSession(t, u.ID)

	err := f.users.ChangePassword(ctx, u.ID, "wrong old password", "a brand new password")
	require.ErrorIs(t, err, ErrInvalidCredentials)

	err = f.users.ChangePassword(ctx, u.ID, "correct horse battery", "tiny")
	require.ErrorIs(t, err, ErrWeakPassword)

	require.NoError(t, f.users.ChangePassword(ctx, u.ID, "correct horse battery", "a brand new password"))

	// Old password dead, new one live, all sessions revoked.
	_, err = f.users.Login(ctx, "alice@example.com", "correct horse battery")
	require.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = f.users.Login(ctx, "alice@example.com", "a brand new password")
	require.NoError(t, err)
	require.Error(t, f.sessions.CheckAccess(ctx, sessionID, u.ID))
}
