package http

import (
	"context"
	"errors"
	"net/http"

	usersvc "github.com/phlox-social/phlox/internal/users/service"
	userstore "github.com/phlox-social/phlox/internal/users/store"
	"github.com/phlox-social/phlox/pkg/httpx"
	"github.com/phlox-social/phlox/pkg/slogx"
)

type AdminUsersHandler struct {
	Users *usersvc.Users
}

// HandleBan deactivates an account and force-expires all of its sessions.
func (h *AdminUsersHandler) HandleBan(w http.ResponseWriter, r *http.Request) {
	h.setStatus(w, r, h.Users.Ban)
}

// HandleUnban restores a banned account. Old sessions stay dead.
func (h *AdminUsersHandler) HandleUnban(w http.ResponseWriter, r *http.Request) {
	h.setStatus(w, r, h.Users.Unban)
}

func (h *AdminUsersHandler) setStatus(
	w http.ResponseWriter,
	r *http.Request,
	action func(ctx context.Context, userID string) error,
) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	targetID := r.PathValue("id")
	if targetID == "" {
		httpx.WriteError(w, http.StatusBadRequest, "user id required")
		return
	}

	if err := action(ctx, targetID); err != nil {
		if errors.Is(err, userstore.ErrNotFound) {
			httpx.WriteError(w, http.StatusNotFound, "user not found")
			return
		}
		log.Error("admin status change failed", "target_user_id", targetID, "err", err)
		httpx.WriteError(w, http.StatusInternalServerError, "internal_error")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
