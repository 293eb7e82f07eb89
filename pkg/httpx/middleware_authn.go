package httpx

import (
	"context"
	"net/http"
	"strings"

	"github.com/phlox-social/phlox/pkg/jwtx"
	"github.com/phlox-social/phlox/pkg/slogx"
)

// Canonical cookie names for the token pair. There is exactly one name per
// token; legacy aliases are not honoured.
const (
	AccessTokenCookie  = "access_token"
	RefreshTokenCookie = "refresh_token"
)

// SessionChecker is the server-side half of request authentication: it
// confirms an unexpired session entry exists for the jti and that the entry
// belongs to the same user the token claims. The store entry, not the token
// expiry, is authoritative; that is what makes revocation immediate.
type SessionChecker interface {
	CheckAccess(ctx context.Context, sessionID, userID string) error
}

// AuthnMiddleware authenticates every request: bearer token (header or
// access_token cookie) → signature + expiry → jti/sub claims → session store
// cross-check. Any failure is a hard reject with a uniform 401; the specific
// reason is logged server-side only.
func AuthnMiddleware(v jwtx.Verifier, sessions SessionChecker) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			log := slogx.FromContext(ctx)

			raw := bearerToken(r)
			if raw == "" {
				writeUnauthorized(w)
				return
			}

			claims, err := v.Verify(raw)
			if err != nil {
				log.Warn("access token verification failed", "err", err)
				writeUnauthorized(w)
				return
			}

			sessionID := claims.SessionID()
			userID := claims.Subject
			if sessionID == "" || userID == "" {
				log.Warn("access token missing jti or sub claim")
				writeUnauthorized(w)
				return
			}

			if err := sessions.CheckAccess(ctx, sessionID, userID); err != nil {
				log.Warn("session check rejected request", "err", err, "session_id", sessionID)
				writeUnauthorized(w)
				return
			}

			next.ServeHTTP(w, r.WithContext(contextWithAuth(ctx, claims)))
		})
	}
}

// bearerToken extracts the access token from the Authorization header,
// falling back to the access_token cookie for browser clients.
func bearerToken(r *http.Request) string {
	if authz := r.Header.Get("Authorization"); strings.HasPrefix(authz, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(authz, "Bearer"))
	}
	if c, err := r.Cookie(AccessTokenCookie); err == nil {
		return c.Value
	}
	return ""
}

func contextWithAuth(ctx context.Context, c jwtx.Claims) context.Context {
	ctx = context.WithValue(ctx, CtxKeyUserID, c.Subject)
	ctx = context.WithValue(ctx, CtxKeySessionID, c.SessionID())
	ctx = context.WithValue(ctx, CtxKeyClaims, c)
	return ctx
}

// Uniform rejection: never tell the client which check failed.
func writeUnauthorized(w http.ResponseWriter) {
	w.Header().Set("WWW-Authenticate", `Bearer error="invalid_token"`)
	WriteError(w, http.StatusUnauthorized, "unauthorized")
}
