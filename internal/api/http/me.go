package http

import (
	"net/http"

	usersvc "github.com/phlox-social/phlox/internal/users/service"
	"github.com/phlox-social/phlox/pkg/httpx"
	"github.com/phlox-social/phlox/pkg/slogx"
)

type MeHandler struct {
	Users *usersvc.Users
}

type meResponse struct {
	ID          string   `json:"id"`
	Email       string   `json:"email"`
	DisplayName string   `json:"displayName,omitempty"`
	Roles       []string `json:"roles,omitempty"`
	SessionID   string   `json:"sessionId"`
}

// ServeHTTP returns the authenticated user's profile. Reads the user store
// (not just the token snapshot) so the client sees current profile fields.
func (h *MeHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	userID := httpx.UserIDFromCtx(ctx)
	user, err := h.Users.Get(ctx, userID)
	if err != nil {
		log.Error("failed to load user", "user_id", userID, "err", err)
		httpx.WriteError(w, http.StatusInternalServerError, "internal_error")
		return
	}

	httpx.WriteJSON(w, http.StatusOK, meResponse{
		ID:          user.ID,
		Email:       user.Email,
		DisplayName: user.DisplayName,
		Roles:       user.Roles,
		SessionID:   httpx.SessionIDFromCtx(ctx),
	})
}
