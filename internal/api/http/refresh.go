package http

import (
	"encoding/json"
	"errors"
	"net/http"

	sessionsvc "github.com/phlox-social/phlox/internal/session/service"
	"github.com/phlox-social/phlox/pkg/httpx"
	"github.com/phlox-social/phlox/pkg/slogx"
)

type RefreshHandler struct {
	Issuer  *sessionsvc.Issuer
	Cookies CookieConfig
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

// ServeHTTP exchanges a refresh token for a rotated pair. The token comes
// from the refresh_token cookie (browsers) or the JSON body (everything
// else). A missing token is a 400; an unacceptable one is a 401 with a
// deliberately unspecific body.
func (h *RefreshHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	raw := refreshTokenFromRequest(r)
	if raw == "" {
		httpx.WriteError(w, http.StatusBadRequest, "refresh token required")
		return
	}

	pair, err := h.Issuer.Refresh(ctx, raw, deviceMetaFromRequest(r))
	if err != nil {
		switch {
		case errors.Is(err, sessionsvc.ErrMissingRefreshToken):
			httpx.WriteError(w, http.StatusBadRequest, "refresh token required")
		case errors.Is(err, sessionsvc.ErrInvalidRefresh):
			httpx.WriteError(w, http.StatusUnauthorized, "invalid_refresh_token")
		default:
			log.Error("refresh failed", "err", err)
			httpx.WriteError(w, http.StatusInternalServerError, "internal_error")
		}
		return
	}

	h.Cookies.setTokenCookies(w, pair.AccessToken, pair.RefreshToken)
	httpx.WriteJSON(w, http.StatusOK, tokenPairResponse{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		User: userResponse{
			ID:    pair.Payload.UserID,
			Email: pair.Payload.Email,
			Roles: pair.Payload.Roles,
		},
	})
}

func refreshTokenFromRequest(r *http.Request) string {
	if c, err := r.Cookie(httpx.RefreshTokenCookie); err == nil && c.Value != "" {
		return c.Value
	}

	var req refreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err == nil {
		return req.RefreshToken
	}
	return ""
}
