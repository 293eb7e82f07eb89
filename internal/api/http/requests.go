package http

import (
	"net/http"

	"github.com/phlox-social/phlox/internal/session/domain"
	"github.com/phlox-social/phlox/pkg/httpx"
)

// deviceMetaFromRequest captures optional per-device metadata. Everything
// here is advisory; absence never blocks authentication.
func deviceMetaFromRequest(r *http.Request) domain.DeviceMeta {
	return domain.DeviceMeta{
		DeviceID:  r.Header.Get("X-Device-ID"),
		UserAgent: r.UserAgent(),
		IP:        httpx.IPKeyExtractor(r),
	}
}

// tokenPairResponse is the JSON shape returned by login and refresh.
type tokenPairResponse struct {
	AccessToken  string       `json:"accessToken"`
	RefreshToken string       `json:"refreshToken"`
	User         userResponse `json:"user"`
}

type userResponse struct {
	ID    string   `json:"id"`
	Email string   `json:"email,omitempty"`
	Roles []string `json:"roles,omitempty"`
}
