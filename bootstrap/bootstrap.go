// Package bootstrap wires all dependencies and starts the application.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/tollgate/tollgate/adapters/clock"
	gatehttp "github.com/tollgate/tollgate/adapters/http"
	"github.com/tollgate/tollgate/adapters/idgen"
	"github.com/tollgate/tollgate/adapters/metrics"
	"github.com/tollgate/tollgate/adapters/sqlite"
	"github.com/tollgate/tollgate/app"
	"github.com/tollgate/tollgate/config"
	"github.com/tollgate/tollgate/ports"
)

// App represents the running application.
type App struct {
	Logger     zerolog.Logger
	Config     *config.Holder
	DB         *sqlite.DB
	HTTPServer *http.Server
	Metrics    *metrics.Collector
	Registry   *prometheus.Registry

	gateService    *app.GateService
	billingService *app.BillingService
	upstream       *gatehttp.UpstreamClient

	billingCancel context.CancelFunc
	billingDone   chan struct{}
}

// New creates and initializes the application from a config file.
// The file is watched afterwards: hot-reloadable settings take effect
// without a restart.
func New(configPath string) (*App, error) {
	holder, err := config.NewHolder(configPath, newLogger(config.LoggingConfig{Level: "info", Format: "json"}))
	if err != nil {
		return nil, err
	}

	a, err := build(holder)
	if err != nil {
		holder.Stop()
		return nil, err
	}

	if err := holder.WatchFile(); err != nil {
		a.Logger.Warn().Err(err).Msg("config file watch unavailable")
	}
	holder.WatchSignals()

	return a, nil
}

func build(holder *config.Holder) (*App, error) {
	cfg := holder.Get()
	logger := newLogger(cfg.Logging)

	logger.Info().Msg("initializing tollgate")

	a := &App{
		Logger: logger,
		Config: holder,
	}

	db, err := sqlite.Open(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate database: %w", err)
	}
	a.DB = db
	logger.Info().Str("path", cfg.Database.Path).Msg("database ready")

	var gateMetrics ports.Metrics = metrics.Noop{}
	if cfg.Metrics.Enabled {
		a.Registry = prometheus.NewRegistry()
		a.Metrics = metrics.New(a.Registry)
		gateMetrics = a.Metrics
		logger.Info().Msg("prometheus metrics enabled")
	}

	upstream, err := gatehttp.NewUpstreamClient(gatehttp.UpstreamConfig{
		BaseURL:         cfg.Upstream.URL,
		Timeout:         cfg.Upstream.Timeout,
		MaxIdleConns:    cfg.Upstream.MaxIdleConns,
		IdleConnTimeout: cfg.Upstream.IdleConnTimeout,
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create upstream client: %w", err)
	}
	a.upstream = upstream

	keys := sqlite.NewKeyStore(db)
	accounts := sqlite.NewAccountStore(db)
	ledger := sqlite.NewLedger(db)
	billingStore := sqlite.NewBillingStore(db)

	a.gateService = app.NewGateService(app.GateDeps{
		Keys:     keys,
		Accounts: accounts,
		Ledger:   ledger,
		Upstream: upstream,
		Clock:    clock.Real{},
		IDGen:    idgen.UUID{},
		Metrics:  gateMetrics,
		Logger:   logger,
	}, app.GateConfig{
		KeyPrefix:      cfg.Gate.KeyPrefix,
		FreeDailyLimit: cfg.Gate.FreeDailyLimit,
	})

	a.billingService = app.NewBillingService(app.BillingDeps{
		Store:   billingStore,
		Clock:   clock.Real{},
		Metrics: gateMetrics,
		Logger:  logger,
	}, app.BillingConfig{
		Interval:        cfg.Billing.Interval,
		RequestsPerUnit: cfg.Billing.RequestsPerUnit,
	})

	holder.OnChange(func(newCfg *config.Config) {
		a.gateService.UpdateConfig(newCfg.Gate.FreeDailyLimit)
		if level, err := zerolog.ParseLevel(newCfg.Logging.Level); err == nil {
			zerolog.SetGlobalLevel(level)
		}
	})

	gateHandler := gatehttp.NewGateHandler(a.gateService, logger)
	healthHandler := gatehttp.NewHealthHandler(upstream)
	router := gatehttp.NewRouterWithConfig(gateHandler, healthHandler, logger, gatehttp.RouterConfig{
		Metrics:  a.Metrics,
		Gatherer: a.Registry,
	})

	a.HTTPServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	return a, nil
}

// StartBilling launches the billing cycle in the background.
// A cycle failure stops billing until restart but never the process.
func (a *App) StartBilling() {
	if a.billingDone != nil {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	a.billingCancel = cancel
	a.billingDone = make(chan struct{})

	go func() {
		defer close(a.billingDone)
		if err := a.billingService.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			a.Logger.Error().Err(err).Msg("billing cycle stopped")
		}
	}()
}

// Run starts the billing cycle and the HTTP server, blocking until shutdown.
func (a *App) Run() error {
	a.StartBilling()

	errCh := make(chan error, 1)
	go func() {
		a.Logger.Info().
			Str("addr", a.HTTPServer.Addr).
			Msg("starting http server")
		if err := a.HTTPServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case sig := <-quit:
		a.Logger.Info().Str("signal", sig.String()).Msg("shutting down")
	}

	return a.Shutdown()
}

// Shutdown gracefully stops the application.
func (a *App) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if a.billingCancel != nil {
		a.billingCancel()
		select {
		case <-a.billingDone:
		case <-ctx.Done():
			a.Logger.Error().Msg("billing cycle did not stop in time")
		}
		a.billingCancel = nil
		a.billingDone = nil
	}

	if a.HTTPServer != nil {
		if err := a.HTTPServer.Shutdown(ctx); err != nil {
			a.Logger.Error().Err(err).Msg("http server shutdown error")
		}
	}

	if a.upstream != nil {
		a.upstream.Close()
	}

	if a.Config != nil {
		a.Config.Stop()
		a.Config = nil
	}

	if a.DB != nil {
		if err := a.DB.Close(); err != nil {
			a.Logger.Error().Err(err).Msg("database close error")
		}
		a.DB = nil
	}

	a.Logger.Info().Msg("shutdown complete")
	return nil
}

func newLogger(cfg config.LoggingConfig) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if cfg.Format == "console" {
		output := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
		return zerolog.New(output).With().Timestamp().Logger()
	}

	return zerolog.New(os.Stdout).With().Timestamp().Logger()
}
