package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	sessionsvc "github.com/phlox-social/phlox/internal/session/service"
	"github.com/phlox-social/phlox/internal/users/domain"
	"github.com/phlox-social/phlox/internal/users/store"
	"github.com/phlox-social/phlox/pkg/cryptox"
	"github.com/phlox-social/phlox/pkg/idx"
)

var (
	// ErrInvalidCredentials covers unknown email, wrong password and banned
	// accounts alike. Clients get one error; the real reason is logged.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrEmailTaken is returned when registering with an existing email.
	ErrEmailTaken = errors.New("email already registered")

	// ErrWeakPassword rejects passwords under the minimum length.
	ErrWeakPassword = errors.New("password too short")
)

const minPasswordLength = 10

// Users manages account lifecycle. Security-sensitive mutations (bans,
// password changes) revoke all of the affected user's sessions through the
// revoker; the primary action never fails because of cache trouble.
type Users struct {
	store   store.Store
	revoker *sessionsvc.Revoker
	logger  *slog.Logger
}

func NewUsers(st store.Store, revoker *sessionsvc.Revoker, logger *slog.Logger) *Users {
	return &Users{
		store:   st,
		revoker: revoker,
		logger:  logger.With("component", "users"),
	}
}

// Register creates an active account with a hashed password.
func (s *Users) Register(ctx context.Context, email, displayName, password string, roles []string) (domain.User, error) {
	email = normalizeEmail(email)
	if len(password) < minPasswordLength {
		return domain.User{}, ErrWeakPassword
	}

	if _, err := s.store.GetUserByEmail(ctx, email); err == nil {
		return domain.User{}, ErrEmailTaken
	} else if !errors.Is(err, store.ErrNotFound) {
		return domain.User{}, err
	}

	hash, err := cryptox.HashSecret(password)
	if err != nil {
		return domain.User{}, fmt.Errorf("hash password: %w", err)
	}
	if len(roles) == 0 {
		roles = []string{domain.RoleUser}
	}

	u := domain.User{
		ID:           idx.New().String(),
		Email:        email,
		DisplayName:  displayName,
		PasswordHash: hash,
		Roles:        roles,
		Status:       domain.StatusActive,
	}
	if err := s.store.CreateUser(ctx, u); err != nil {
		return domain.User{}, err
	}

	s.logger.Info("user registered", "user_id", u.ID)
	return u, nil
}

// Login verifies credentials and account standing. Both the password check
// and the status check hide behind the same error.
func (s *Users) Login(ctx context.Context, email, password string) (domain.User, error) {
	u, err := s.store.GetUserByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.User{}, ErrInvalidCredentials
		}
		return domain.User{}, err
	}

	if !cryptox.VerifySecret(u.PasswordHash, password) {
		s.logger.Warn("login rejected: bad password", "user_id", u.ID)
		return domain.User{}, ErrInvalidCredentials
	}
	if !u.Active() {
		s.logger.Warn("login rejected: account not active", "user_id", u.ID, "status", u.Status)
		return domain.User{}, ErrInvalidCredentials
	}

	return u, nil
}

func (s *Users) Get(ctx context.Context, id string) (domain.User, error) {
	return s.store.GetUserByID(ctx, id)
}

// ChangePassword verifies the current password, swaps in the new hash and
// force-expires every session so stolen tokens die with the old password.
func (s *Users) ChangePassword(ctx context.Context, userID, current, next string) error {
	u, err := s.store.GetUserByID(ctx, userID)
	if err != nil {
		return err
	}
	if !cryptox.VerifySecret(u.PasswordHash, current) {
		return ErrInvalidCredentials
	}
	if len(next) < minPasswordLength {
		return ErrWeakPassword
	}

	hash, err := cryptox.HashSecret(next)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	if err := s.store.UpdatePasswordHash(ctx, userID, hash); err != nil {
		return err
	}

	s.logger.Info("password changed", "user_id", userID)
	s.revoker.RevokeAll(ctx, userID)
	return nil
}

// Ban deactivates the account and force-expires every session. Even if the
// session store is briefly unreachable, access checks fail closed and the
// remaining entries age out on their TTLs.
func (s *Users) Ban(ctx context.Context, userID string) error {
	if err := s.store.UpdateStatus(ctx, userID, domain.StatusBanned); err != nil {
		return err
	}

	s.logger.Info("user banned", "user_id", userID)
	s.revoker.RevokeAll(ctx, userID)
	return nil
}

// Unban restores the account. Existing sessions are not resurrected; the
// user logs in again.
func (s *Users) Unban(ctx context.Context, userID string) error {
	if err := s.store.UpdateStatus(ctx, userID, domain.StatusActive); err != nil {
		return err
	}
	s.logger.Info("user unbanned", "user_id", userID)
	return nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
