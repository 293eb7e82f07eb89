package http

import (
	"encoding/json"
	"errors"
	"net/http"

	usersvc "github.com/phlox-social/phlox/internal/users/service"
	"github.com/phlox-social/phlox/pkg/httpx"
	"github.com/phlox-social/phlox/pkg/slogx"
)

type PasswordHandler struct {
	Users   *usersvc.Users
	Cookies CookieConfig
}

type passwordChangeRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

// ServeHTTP changes the caller's password. Every session dies with the old
// password, including this one, so the cookies are cleared and the client
// must log in again.
func (h *PasswordHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	var req passwordChangeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.CurrentPassword == "" || req.NewPassword == "" {
		httpx.WriteError(w, http.StatusBadRequest, "current and new password required")
		return
	}

	userID := httpx.UserIDFromCtx(ctx)
	err := h.Users.ChangePassword(ctx, userID, req.CurrentPassword, req.NewPassword)
	if err != nil {
		switch {
		case errors.Is(err, usersvc.ErrInvalidCredentials):
			httpx.WriteError(w, http.StatusForbidden, "invalid_credentials")
		case errors.Is(err, usersvc.ErrWeakPassword):
			httpx.WriteError(w, http.StatusBadRequest, "password too short")
		default:
			log.Error("password change failed", "user_id", userID, "err", err)
			httpx.WriteError(w, http.StatusInternalServerError, "internal_error")
		}
		return
	}

	h.Cookies.clearTokenCookies(w)
	w.WriteHeader(http.StatusNoContent)
}
