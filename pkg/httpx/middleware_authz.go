package httpx

import "net/http"

// RequireRole the caller must hold the named role (from the session payload
// snapshot carried in the access-token claims).
func RequireRole(role string) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, ok := claimsFromCtx(r.Context())
			if !ok || !claims.HasRole(role) {
				WriteError(w, http.StatusForbidden, "forbidden")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
