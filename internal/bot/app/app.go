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

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/time/rate"

	"github.com/eventops/staffbot/internal/bot/handler"
	bothttp "github.com/eventops/staffbot/internal/bot/http"
	"github.com/eventops/staffbot/internal/bot/metrics"
	"github.com/eventops/staffbot/internal/bot/platform"
	"github.com/eventops/staffbot/internal/bot/service"
	"github.com/eventops/staffbot/internal/bot/store"
	"github.com/eventops/staffbot/internal/bot/store/drivers/sqlite"
	"github.com/eventops/staffbot/pkg/slogx"
)

// BuildVersion should be set at build time via ldflags.
const BuildVersion = "v0.1.0"

// Application wires the bot together: store, services, event dispatcher and
// the operational sidecar. The chat transport delivers events by calling
// Dispatcher().Handle; the gateway implementation is injected so the
// transport binding stays outside this module.
type Application struct {
	cfg     Config
	logger  *slog.Logger
	gateway platform.Gateway

	db        store.Store
	collector *metrics.Collector
	registry  *prometheus.Registry

	registration *service.Registration
	directory    *service.Directory
	roleSync     *service.RoleSync
	nickname     *service.Nickname

	dispatcher *handler.Dispatcher
	server     *http.Server
}

// New creates an Application with all dependencies initialized.
func New(cfg Config, gateway platform.Gateway) (*Application, error) {
	app := &Application{
		cfg:     cfg,
		gateway: gateway,
		logger: slogx.New(slogx.Config{
			Service: "staffbot",
			Version: BuildVersion,
			Env:     cfg.Env,
			Level:   cfg.LogLevel,
			Format:  cfg.LogFormat,
		}),
	}

	if err := app.initDatabase(); err != nil {
		return nil, err
	}

	app.registry = prometheus.NewRegistry()
	app.collector = metrics.NewCollector(app.registry)

	app.initServices()
	app.initDispatcher()
	app.initHTTP()

	return app, nil
}

// Dispatcher exposes the event entrypoint for the chat transport binding.
func (app *Application) Dispatcher() *handler.Dispatcher { return app.dispatcher }

// Run starts the sidecar server and blocks until shutdown is requested.
func (app *Application) Run() error {
	app.logger.Info("staffbot starting", "port", app.cfg.Port, "version", BuildVersion)

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
	app.logger.Info("shutting down staffbot...")

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

	app.logger.Info("staffbot stopped")
	return nil
}

func (app *Application) initDatabase() error {
	dsn := fmt.Sprintf("file:%s?_busy_timeout=5000&_journal_mode=WAL", app.cfg.DatabaseFile)
	db, err := sqlite.NewStore(dsn)
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
	app.registration = &service.Registration{
		Store:            app.db,
		Metrics:          app.collector,
		ProfileURLPrefix: app.cfg.ProfileURLPrefix,
		MinProfileURLLen: app.cfg.MinProfileURLLen,
	}
	app.directory = &service.Directory{Store: app.db}
	app.roleSync = &service.RoleSync{
		Store:   app.db,
		Gateway: app.gateway,
		Metrics: app.collector,
		Limiter: rate.NewLimiter(rate.Limit(app.cfg.RoleCallsPerSecond), 1),
	}
	app.nickname = &service.Nickname{
		Store:          app.db,
		Gateway:        app.gateway,
		Metrics:        app.collector,
		TeamRolePrefix: app.cfg.TeamRolePrefix,
	}
}

func (app *Application) initDispatcher() {
	app.dispatcher = &handler.Dispatcher{
		Registration: app.registration,
		Directory:    app.directory,
		RoleSync:     app.roleSync,
		Nickname:     app.nickname,
		Gateway:      app.gateway,
		Logger:       app.logger,
	}
}

func (app *Application) initHTTP() {
	app.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", app.cfg.Port),
		Handler:           bothttp.NewRouter(BuildVersion, app.db, app.registry),
		ReadHeaderTimeout: 3 * time.Second,
	}
}
