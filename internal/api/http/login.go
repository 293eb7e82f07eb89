package http

import (
	"encoding/json"
	"errors"
	"net/http"

	sessiondomain "github.com/phlox-social/phlox/internal/session/domain"
	sessionsvc "github.com/phlox-social/phlox/internal/session/service"
	usersvc "github.com/phlox-social/phlox/internal/users/service"
	"github.com/phlox-social/phlox/pkg/httpx"
	"github.com/phlox-social/phlox/pkg/slogx"
)

type LoginHandler struct {
	Users   *usersvc.Users
	Issuer  *sessionsvc.Issuer
	Cookies CookieConfig
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// ServeHTTP authenticates credentials and mints a fresh token pair. A failed
// session write is deliberately not fatal: the login itself succeeded, the
// tokens are returned and the subsequent access check fails closed until the
// store recovers.
func (h *LoginHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Email == "" || req.Password == "" {
		httpx.WriteError(w, http.StatusBadRequest, "email and password required")
		return
	}

	user, err := h.Users.Login(ctx, req.Email, req.Password)
	if err != nil {
		if errors.Is(err, usersvc.ErrInvalidCredentials) {
			httpx.WriteError(w, http.StatusUnauthorized, "invalid_credentials")
			return
		}
		log.Error("login failed", "err", err)
		httpx.WriteError(w, http.StatusInternalServerError, "internal_error")
		return
	}

	payload := sessiondomain.SessionPayload{
		Version: sessiondomain.PayloadVersion,
		UserID:  user.ID,
		Email:   user.Email,
		Roles:   user.Roles,
	}

	pair, err := h.Issuer.Issue(ctx, payload, deviceMetaFromRequest(r))
	if err != nil {
		log.Error("token issuance failed", "user_id", user.ID, "err", err)
		httpx.WriteError(w, http.StatusInternalServerError, "internal_error")
		return
	}

	h.Cookies.setTokenCookies(w, pair.AccessToken, pair.RefreshToken)
	httpx.WriteJSON(w, http.StatusOK, tokenPairResponse{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		User: userResponse{
			ID:    user.ID,
			Email: user.Email,
			Roles: user.Roles,
		},
	})
}
