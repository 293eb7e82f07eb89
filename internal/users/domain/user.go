package domain

import "time"

// Account status values. Banned accounts keep their row; only active
// accounts can authenticate.
const (
	StatusActive = "active"
	StatusBanned = "banned"
)

// Role names referenced across the service.
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

type User struct {
	ID           string
	Email        string
	DisplayName  string
	PasswordHash string
	Roles        []string
	Status       string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Active reports whether the account may authenticate.
func (u User) Active() bool { return u.Status == StatusActive }

// HasRole reports whether the user holds the named role.
func (u User) HasRole(role string) bool {
	for _, r := range u.Roles {
		if r == role {
			return true
		}
	}
	return false
}
