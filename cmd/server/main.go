// Package main is the entrypoint for the application errors service.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kiranshivaraju/apperrors/internal/api"
	"github.com/kiranshivaraju/apperrors/internal/api/handler"
	mw "github.com/kiranshivaraju/apperrors/internal/api/middleware"
	"github.com/kiranshivaraju/apperrors/internal/cleanup"
	"github.com/kiranshivaraju/apperrors/internal/config"
	"github.com/kiranshivaraju/apperrors/internal/health"
	"github.com/kiranshivaraju/apperrors/internal/lock"
	"github.com/kiranshivaraju/apperrors/internal/logger"
	"github.com/kiranshivaraju/apperrors/internal/metrics"
	"github.com/kiranshivaraju/apperrors/internal/reporter"
	"github.com/kiranshivaraju/apperrors/internal/store"
	"github.com/kiranshivaraju/apperrors/pkg/models"
	"github.com/prometheus/client_golang/prometheus"
)

const shutdownTimeout = 30 * time.Second

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "server failed: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// 1. Load config; fail fast on invalid config
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log, err := logger.New(cfg.Log.Level, cfg.Log.Pretty)
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer func() { _ = log.Sync() }()
	log.Info("config loaded", logger.String("store", cfg.Store.Type), logger.String("env", cfg.Server.Env))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 2. Wire store, probe, sweeper and routes
	a, err := newApp(ctx, cfg, log, prometheus.DefaultRegisterer)
	if err != nil {
		return err
	}
	defer a.close()

	if a.sweeper != nil {
		a.sweeper.Start(ctx)
		defer a.sweeper.Stop()
	}

	// 3. Start HTTP server
	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      a.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("server listening", logger.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
		log.Info("shutdown signal received, draining connections...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	log.Info("server stopped gracefully")
	return nil
}

type app struct {
	host     models.HostIdentity
	store    store.ErrorStore
	reporter *reporter.Reporter
	sweeper  *cleanup.Sweeper
	router   http.Handler
	closers  []func()
}

// newApp builds every component from cfg. The sweeper is returned stopped.
func newApp(ctx context.Context, cfg *config.Config, log logger.Logger, reg prometheus.Registerer) (*app, error) {
	a := &app{}
	ok := false
	defer func() {
		if !ok {
			a.close()
		}
	}()

	if err := metrics.Register(reg); err != nil {
		return nil, fmt.Errorf("register metrics: %w", err)
	}

	host, err := resolveHost(cfg.Host)
	if err != nil {
		return nil, fmt.Errorf("resolve host identity: %w", err)
	}
	a.host = host
	log.Info("host identity",
		logger.String("host_name", host.HostName),
		logger.String("ip_address", host.IPAddress),
		logger.Int("port", host.Port))

	s, closeStore, err := store.Open(ctx, cfg, log)
	if err != nil {
		return nil, fmt.Errorf("open error store: %w", err)
	}
	a.store = s
	a.closers = append(a.closers, closeStore)

	a.reporter = reporter.New(s, host, log.With(logger.String("component", "reporter")))

	var probe handler.RecentErrorsChecker
	if cfg.Health.Enabled {
		probe = health.NewRecentErrorsProbe(s, cfg.Health.Window(), health.WithHost(host))
		log.Info("recent errors health check enabled", logger.Duration("window", cfg.Health.Window()))
	}

	if cfg.Cleanup.Enabled && cfg.Store.Type != config.StoreNoop {
		sw, err := newSweeper(ctx, cfg, s, log)
		if err != nil {
			return nil, err
		}
		a.sweeper = sw.sweeper
		a.closers = append(a.closers, sw.close)
	}

	errs := handler.NewErrors(s, log)
	a.router = api.NewRouter(api.Dependencies{
		Logger:           log,
		Auth:             mw.NewAdminAuth(cfg.Admin.TokenHash),
		Reporter:         a.reporter,
		HealthHandler:    handler.NewHealthHandler(s, probe, log),
		ListErrors:       errs.List,
		GetError:         errs.Get,
		ResolveError:     errs.Resolve,
		ResolveAllErrors: errs.ResolveAll,
		MetricsHandler:   metrics.Handler(),
	})

	ok = true
	return a, nil
}

type sweeperSetup struct {
	sweeper *cleanup.Sweeper
	close   func()
}

func newSweeper(ctx context.Context, cfg *config.Config, s store.ErrorStore, log logger.Logger) (sweeperSetup, error) {
	setup := sweeperSetup{close: func() {}}

	strategy, err := cleanup.ParseStrategy(cfg.Cleanup.Strategy)
	if err != nil {
		return setup, err
	}

	var opts []cleanup.Option
	if cfg.Redis.URL != "" {
		locker, err := lock.NewRedisLocker(cfg.Redis.URL)
		if err != nil {
			return setup, fmt.Errorf("create redis locker: %w", err)
		}
		if err := locker.Ping(ctx); err != nil {
			_ = locker.Close()
			return setup, fmt.Errorf("ping redis: %w", err)
		}
		log.Info("redis connected; cleanup runs are coordinated across instances")
		opts = append(opts, cleanup.WithLocker(locker))
		setup.close = func() { _ = locker.Close() }
	}

	sw, err := cleanup.New(s, cleanup.Config{
		Name:                cfg.Cleanup.JobName,
		Strategy:            strategy,
		ResolvedRetention:   cfg.Cleanup.ResolvedRetention,
		UnresolvedRetention: cfg.Cleanup.UnresolvedRetention,
		InitialDelay:        cfg.Cleanup.InitialDelay,
		Interval:            cfg.Cleanup.Interval,
	}, log, opts...)
	if err != nil {
		setup.close()
		return sweeperSetup{close: func() {}}, fmt.Errorf("create cleanup job: %w", err)
	}
	setup.sweeper = sw
	return setup, nil
}

// resolveHost detects the host identity and applies configured overrides.
func resolveHost(hc config.HostConfig) (models.HostIdentity, error) {
	detected, err := models.DetectHostIdentity(hc.Port)
	if err != nil && (hc.Name == "" || hc.IPAddress == "") {
		return models.HostIdentity{}, err
	}
	name, ip := detected.HostName, detected.IPAddress
	if hc.Name != "" {
		name = hc.Name
	}
	if hc.IPAddress != "" {
		ip = hc.IPAddress
	}
	return models.NewHostIdentity(name, ip, hc.Port)
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
