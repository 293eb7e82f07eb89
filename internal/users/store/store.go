package store

import (
	"context"
	"errors"

	"github.com/phlox-social/phlox/internal/users/domain"
)

// ErrNotFound is returned when a requested user does not exist.
var ErrNotFound = errors.New("user not found")

// Store is the persistent user account store.
type Store interface {
	CreateUser(ctx context.Context, u domain.User) error
	GetUserByID(ctx context.Context, id string) (domain.User, error)
	GetUserByEmail(ctx context.Context, email string) (domain.User, error)
	UpdatePasswordHash(ctx context.Context, userID, newHash string) error
	UpdateStatus(ctx context.Context, userID, status string) error

	Ping(ctx context.Context) error
	Close() error
}
