package http

import (
	"net/http"

	sessionsvc "github.com/phlox-social/phlox/internal/session/service"
	"github.com/phlox-social/phlox/pkg/httpx"
)

type LogoutHandler struct {
	Sessions *sessionsvc.Sessions
	Cookies  CookieConfig
}

// HandleLogout revokes the current session only. Idempotent: logging out a
// session that is already gone is still a success.
func (h *LogoutHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	sessionID := httpx.SessionIDFromCtx(ctx)
	_ = h.Sessions.Revoke(ctx, sessionID)

	h.Cookies.clearTokenCookies(w)
	w.WriteHeader(http.StatusNoContent)
}

// HandleLogoutAll revokes every session the user has, on every device.
func (h *LogoutHandler) HandleLogoutAll(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID := httpx.UserIDFromCtx(ctx)
	_ = h.Sessions.RevokeAll(ctx, userID)

	h.Cookies.clearTokenCookies(w)
	w.WriteHeader(http.StatusNoContent)
}
