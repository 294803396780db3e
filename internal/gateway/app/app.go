package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	httpapi "github.com/aussiebroadwan/gatekeeper/internal/gateway/http"
	"github.com/aussiebroadwan/gatekeeper/internal/gateway/obs"
	"github.com/aussiebroadwan/gatekeeper/internal/gateway/policy"
	"github.com/aussiebroadwan/gatekeeper/internal/gateway/service"
	"github.com/aussiebroadwan/gatekeeper/internal/gateway/store"
	"github.com/aussiebroadwan/gatekeeper/internal/gateway/store/drivers/sqlite"
	"github.com/aussiebroadwan/gatekeeper/pkg/guardx"
	"github.com/aussiebroadwan/gatekeeper/pkg/jwtx"
	"github.com/aussiebroadwan/gatekeeper/pkg/slogx"
)

const (
	// BuildVersion should be set at build time via ldflags.
	BuildVersion = "v0.1.0"
)

// Application encapsulates the gateway with all its dependencies.
type Application struct {
	cfg    Config
	logger *slog.Logger

	db       store.Store
	codec    *jwtx.Codec
	registry *guardx.Registry
	metrics  *obs.Metrics

	authService     *service.AuthService
	identityService *service.IdentityService
	guardedCaller   *service.GuardedCaller
	externalClient  *service.ExternalClient

	server *http.Server
	router *httpapi.Router
}

// New creates an Application with all dependencies initialized.
func New(cfg Config) (*Application, error) {
	app := &Application{
		cfg: cfg,
		logger: slogx.New(slogx.Config{
			Service: "gateway",
			Version: BuildVersion,
			Env:     cfg.Env,
			Level:   cfg.LogLevel,
			Format:  cfg.LogFormat,
		}),
	}

	codec, err := jwtx.NewCodec([]byte(cfg.SigningSecret), cfg.Issuer)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize token codec: %w", err)
	}
	app.codec = codec

	if err := app.initDatabase(); err != nil {
		return nil, err
	}

	app.metrics = obs.NewMetrics()

	breakerCfg := cfg.Breaker
	breakerCfg.OnStateChange = app.metrics.BreakerHook()
	app.registry = guardx.NewRegistry(breakerCfg, cfg.Limiter, app.logger)

	app.initServices()
	app.initHTTP()

	return app, nil
}

// Run starts the application and blocks until shutdown is requested.
func (app *Application) Run() error {
	app.logger.Info("gateway starting", "port", app.cfg.Port, "version", BuildVersion)

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
	app.logger.Info("shutting down gateway...")

	ctx, cancel := context.WithTimeout(context.Background(), app.cfg.ShutdownGracePeriod)
	defer cancel()

	if err := app.server.Shutdown(ctx); err != nil {
		app.logger.Error("graceful server shutdown failed", "error", err)
		if err := app.server.Close(); err != nil {
			app.logger.Error("error closing server", "error", err)
		}
	}

	if err := app.db.Close(); err != nil {
		app.logger.Error("error closing database", "error", err)
		return err
	}

	app.logger.Info("gateway stopped")
	return nil
}

// initDatabase initializes the identity store and applies migrations.
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

func (app *Application) initServices() {
	app.identityService = &service.IdentityService{Store: app.db}
	app.authService = &service.AuthService{
		Store:     app.db,
		Codec:     app.codec,
		AccessTTL: app.cfg.AccessTTL,
	}
	app.guardedCaller = &service.GuardedCaller{
		Codec:    app.codec,
		Identity: app.identityService,
		Registry: app.registry,
	}
	app.externalClient = service.NewExternalClient(
		app.guardedCaller,
		app.cfg.ServiceABase,
		app.cfg.ServiceBBase,
	)
}

func (app *Application) initHTTP() {
	app.router = httpapi.NewRouter(
		app.codec,
		policy.Default(),
		policy.DefaultCORS(),
		app.registry,
		app.metrics,
		BuildVersion,
		app.db,
		app.logger,
	)
	app.router.AuthService = app.authService
	app.router.IdentityService = app.identityService
	app.router.ExternalClient = app.externalClient
	app.router.ApplyRoutes()

	app.server = &http.Server{
		Addr:    fmt.Sprintf(":%d", app.cfg.Port),
		Handler: app.router,
	}
}
