package http

import (
	"net/http"
	"time"

	"github.com/phlox-social/phlox/pkg/httpx"
)

// CookieConfig controls how the token pair is written to browser clients.
// There is exactly one cookie name per token.
type CookieConfig struct {
	AccessTTL  time.Duration
	RefreshTTL time.Duration

	// Secure marks cookies HTTPS-only. On everywhere except local dev.
	Secure bool
}

// setTokenCookies writes the pair as httpOnly cookies. Tokens also travel in
// the JSON body for non-browser clients; the cookies exist so browser JS
// never has to hold them.
func (c CookieConfig) setTokenCookies(w http.ResponseWriter, accessToken, refreshToken string) {
	http.SetCookie(w, &http.Cookie{
		Name:     httpx.AccessTokenCookie,
		Value:    accessToken,
		Path:     "/",
		MaxAge:   int(c.AccessTTL.Seconds()),
		HttpOnly: true,
		Secure:   c.Secure,
		SameSite: http.SameSiteLaxMode,
	})
	http.SetCookie(w, &http.Cookie{
		Name:     httpx.RefreshTokenCookie,
		Value:    refreshToken,
		Path:     "/",
		MaxAge:   int(c.RefreshTTL.Seconds()),
		HttpOnly: true,
		Secure:   c.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// clearTokenCookies expires both cookies on logout.
func (c CookieConfig) clearTokenCookies(w http.ResponseWriter) {
	for _, name := range []string{httpx.AccessTokenCookie, httpx.RefreshTokenCookie} {
		http.SetCookie(w, &http.Cookie{
			Name:     name,
			Value:    "",
			Path:     "/",
			MaxAge:   -1,
			HttpOnly: true,
			Secure:   c.Secure,
			SameSite: http.SameSiteLaxMode,
		})
	}
}
