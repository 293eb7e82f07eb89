package http

import (
	"log/slog"
	"net/http"
	"time"

	sessionsvc "github.com/phlox-social/phlox/internal/session/service"
	sessionstore "github.com/phlox-social/phlox/internal/session/store"
	usersvc "github.com/phlox-social/phlox/internal/users/service"
	userstore "github.com/phlox-social/phlox/internal/users/store"
	"github.com/phlox-social/phlox/pkg/httpx"
	"github.com/phlox-social/phlox/pkg/jwtx"
	"github.com/phlox-social/phlox/pkg/slogx"
)

// Router holds shared dependencies for HTTP handlers.
type Router struct {
	Mux         *http.ServeMux
	middlewares []httpx.Middleware

	verifier     jwtx.Verifier
	buildVersion string
	startTime    time.Time
	logger       *slog.Logger

	sessions     *sessionsvc.Sessions
	issuer       *sessionsvc.Issuer
	users        *usersvc.Users
	sessionStore sessionstore.Store
	userStore    userstore.Store

	cookies CookieConfig
}

func NewRouter(
	verifier jwtx.Verifier,
	buildVersion string,
	sessions *sessionsvc.Sessions,
	issuer *sessionsvc.Issuer,
	users *usersvc.Users,
	sessionStore sessionstore.Store,
	userStore userstore.Store,
	cookies CookieConfig,
	logger *slog.Logger,
) *Router {
	r := &Router{
		Mux:          http.NewServeMux(),
		verifier:     verifier,
		buildVersion: buildVersion,
		startTime:    time.Now(),
		sessions:     sessions,
		issuer:       issuer,
		users:        users,
		sessionStore: sessionStore,
		userStore:    userStore,
		cookies:      cookies,
		logger:       logger,
	}

	// Set default middleware chain
	r.middlewares = []httpx.Middleware{
		slogx.HTTPMiddleware(r.logger),
	}

	return r
}

func (r *Router) ApplyRoutes() {
	r.registerAuth()
	r.registerAccount()
	r.registerAdmin()
	r.registerSystem()
}

// ServeHTTP implements http.Handler for Router and applies the global
// middleware chain.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	httpx.Chain(r.Mux, r.middlewares...).ServeHTTP(w, req)
}

func (r *Router) registerAuth() {
	login := &LoginHandler{Users: r.users, Issuer: r.issuer, Cookies: r.cookies}
	r.Mux.Handle("POST /v1/auth/login",
		httpx.Chain(login,
			httpx.RateLimitByIP(httpx.StrictLimit),
		),
	)

	refresh := &RefreshHandler{Issuer: r.issuer, Cookies: r.cookies}
	r.Mux.Handle("POST /v1/auth/refresh",
		httpx.Chain(refresh,
			httpx.RateLimitByIP(httpx.StrictLimit),
		),
	)

	logout := &LogoutHandler{Sessions: r.sessions, Cookies: r.cookies}
	r.Mux.Handle("POST /v1/auth/logout",
		httpx.Chain(http.HandlerFunc(logout.HandleLogout),
			httpx.AuthnMiddleware(r.verifier, r.sessions),
			httpx.RateLimitByUser(httpx.ModerateLimit),
		),
	)
	r.Mux.Handle("POST /v1/auth/logout_all",
		httpx.Chain(http.HandlerFunc(logout.HandleLogoutAll),
			httpx.AuthnMiddleware(r.verifier, r.sessions),
			httpx.RateLimitByUser(httpx.ModerateLimit),
		),
	)

	sessionsHandler := &SessionListHandler{Sessions: r.sessions}
	r.Mux.Handle("GET /v1/auth/sessions",
		httpx.Chain(sessionsHandler,
			httpx.AuthnMiddleware(r.verifier, r.sessions),
			httpx.RateLimitByUser(httpx.LenientLimit),
		),
	)
}

func (r *Router) registerAccount() {
	me := &MeHandler{Users: r.users}
	r.Mux.Handle("GET /v1/me",
		httpx.Chain(me,
			httpx.AuthnMiddleware(r.verifier, r.sessions),
			httpx.RateLimitByUser(httpx.LenientLimit),
		),
	)

	password := &PasswordHandler{Users: r.users, Cookies: r.cookies}
	r.Mux.Handle("POST /v1/auth/password",
		httpx.Chain(password,
			httpx.AuthnMiddleware(r.verifier, r.sessions),
			httpx.RateLimitByUser(httpx.StrictLimit),
		),
	)
}

func (r *Router) registerAdmin() {
	h := &AdminUsersHandler{Users: r.users}

	secureAdmin := func(fn http.HandlerFunc) http.Handler {
		return httpx.Chain(fn,
			httpx.AuthnMiddleware(r.verifier, r.sessions),
			httpx.RequireRole("admin"),
			httpx.RateLimitByUser(httpx.ModerateLimit),
		)
	}

	r.Mux.Handle("POST /v1/admin/users/{id}/ban", secureAdmin(h.HandleBan))
	r.Mux.Handle("POST /v1/admin/users/{id}/unban", secureAdmin(h.HandleUnban))
}

func (r *Router) registerSystem() {
	r.Mux.Handle("GET /livez",
		httpx.Chain(LivezHandler(r.startTime, r.buildVersion),
			httpx.RateLimitByIP(httpx.LenientLimit),
		),
	)
	r.Mux.Handle("GET /readyz",
		httpx.Chain(ReadyzHandler(r.startTime, r.buildVersion, r.sessionStore, r.userStore),
			httpx.RateLimitByIP(httpx.LenientLimit),
		),
	)
}
