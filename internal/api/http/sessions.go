package http

import (
	"net/http"

	"github.com/phlox-social/phlox/internal/session/domain"
	sessionsvc "github.com/phlox-social/phlox/internal/session/service"
	"github.com/phlox-social/phlox/pkg/httpx"
	"github.com/phlox-social/phlox/pkg/slogx"
)

type SessionListHandler struct {
	Sessions *sessionsvc.Sessions
}

type sessionListResponse struct {
	Sessions []domain.SessionInfo `json:"sessions"`
}

// ServeHTTP lists the caller's live sessions across devices, flagging the
// one this request arrived on.
func (h *SessionListHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	infos, err := h.Sessions.List(ctx, httpx.UserIDFromCtx(ctx), httpx.SessionIDFromCtx(ctx))
	if err != nil {
		log.Error("session list failed", "err", err)
		httpx.WriteError(w, http.StatusInternalServerError, "internal_error")
		return
	}

	httpx.WriteJSON(w, http.StatusOK, sessionListResponse{Sessions: infos})
}
