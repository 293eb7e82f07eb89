package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	httpapi "github.com/phlox-social/phlox/internal/api/http"
	sessionsvc "github.com/phlox-social/phlox/internal/session/service"
	sessionstore "github.com/phlox-social/phlox/internal/session/store"
	usersvc "github.com/phlox-social/phlox/internal/users/service"
	"github.com/phlox-social/phlox/internal/users/store/sqlite"
	"github.com/phlox-social/phlox/pkg/jwtx"
	"github.com/phlox-social/phlox/pkg/slogx"
)

const (
	// BuildVersion should be set at build time via ldflags. Later problem
	BuildVersion = "v0.1.0"
)

// Application encapsulates the session service with all its dependencies.
// The Redis client is constructed here, once, and handed down; nothing below
// this layer reaches for a global connection.
type Application struct {
	cfg    Config
	logger *slog.Logger

	db           *sqlite.Store
	sessionStore *sessionstore.RedisStore

	sessions *sessionsvc.Sessions
	issuer   *sessionsvc.Issuer
	revoker  *sessionsvc.Revoker
	users    *usersvc.Users

	server *http.Server
	router *httpapi.Router
}

// New creates a new Application instance with all dependencies initialized.
func New(cfg Config) (*Application, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	app := &Application{
		cfg: cfg,
		logger: slogx.New(slogx.Config{
			Service: "phlox-session",
			Version: BuildVersion,
			Env:     cfg.Env,
			Level:   cfg.LogLevel,
			Format:  cfg.LogFormat,
		}),
	}

	if err := app.initDatabase(); err != nil {
		return nil, err
	}
	if err := app.initSessionStore(); err != nil {
		_ = app.db.Close()
		return nil, err
	}
	if err := app.initServices(); err != nil {
		_ = app.db.Close()
		_ = app.sessionStore.Close()
		return nil, err
	}
	app.initHTTP()

	return app, nil
}

// Run starts the application and blocks until shutdown is requested.
func (app *Application) Run() error {
	app.logger.Info("session service starting", "port", app.cfg.Port, "version", BuildVersion)

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- app.server.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server failed: %w", err)
		}
	case sig := <-shutdown:
		app.logger.Info("shutdown signal received", "signal", sig)

		if err := app.Shutdown(); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
	}

	return nil
}

// Shutdown gracefully shuts down the application.
func (app *Application) Shutdown() error {
	app.logger.Info("shutting down session service...")

	ctx, cancel := context.WithTimeout(context.Background(), app.cfg.ShutdownGracePeriod)
	defer cancel()

	if err := app.server.Shutdown(ctx); err != nil {
		app.logger.Error("graceful server shutdown failed", "error", err)
		if err := app.server.Close(); err != nil {
			app.logger.Error("error closing server", "error", err)
		}
	}

	if err := app.sessionStore.Close(); err != nil {
		app.logger.Error("error closing session store", "error", err)
	}

	if err := app.db.Close(); err != nil {
		app.logger.Error("error closing database", "error", err)
		return err
	}

	app.logger.Info("session service stopped")
	return nil
}

func (app *Application) initDatabase() error {
	host := fmt.Sprintf("file:%s?_busy_timeout=5000&_journal_mode=WAL", app.cfg.DatabaseFile)
	db, err := sqlite.NewStore(host)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	app.db = db

	if err := db.ApplyMigrations(); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to apply database migrations: %w", err)
	}

	app.logger.Info("database migrations applied successfully")
	return nil
}

func (app *Application) initSessionStore() error {
	opts, err := redis.ParseURL(app.cfg.RedisURL)
	if err != nil {
		return fmt.Errorf("invalid REDIS_URL: %w", err)
	}
	rdb := redis.NewClient(opts)

	// An unreachable store at boot is survivable: auth fails closed and
	// readiness stays degraded until it comes back. Log it and carry on.
	pingCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		app.logger.Warn("session store unreachable at startup", "err", err)
	}

	app.sessionStore = sessionstore.NewRedisStore(
		rdb, app.logger,
		app.cfg.AccessTokenTTL, app.cfg.RefreshTokenTTL,
	)
	return nil
}

func (app *Application) initServices() error {
	signer, err := jwtx.NewHS256Signer([]byte(app.cfg.SigningSecret))
	if err != nil {
		return err
	}

	app.sessions = sessionsvc.NewSessions(app.sessionStore, app.logger)
	app.issuer = sessionsvc.NewIssuer(
		app.sessions, signer, app.logger,
		app.cfg.Issuer, app.cfg.AccessTokenTTL,
	)
	app.revoker = sessionsvc.NewRevoker(app.sessions, app.logger)
	app.users = usersvc.NewUsers(app.db, app.revoker, app.logger)
	return nil
}

func (app *Application) initHTTP() {
	// Validate() already rejected an empty secret.
	verifier, _ := jwtx.NewHS256Verifier([]byte(app.cfg.SigningSecret), app.cfg.Issuer)

	router := httpapi.NewRouter(
		verifier,
		BuildVersion,
		app.sessions,
		app.issuer,
		app.users,
		app.sessionStore,
		app.db,
		httpapi.CookieConfig{
			AccessTTL:  app.cfg.AccessTokenTTL,
			RefreshTTL: app.cfg.RefreshTokenTTL,
			Secure:     app.cfg.Env != "dev",
		},
		app.logger,
	)
	router.ApplyRoutes()

	app.router = router

	app.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", app.cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 3 * time.Second,
	}
}
