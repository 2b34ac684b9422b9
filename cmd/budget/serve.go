package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"budget/internal/cli"
	apphttp "budget/internal/http"
	"budget/internal/log"
	"budget/internal/services"
)

func (a *app) serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.runServe(cmd.Context())
		},
	}
}

func (a *app) runServe(ctx context.Context) error {
	cfg, logger := a.cfg, a.logger

	be, err := cli.OpenBackend(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := be.Cleanup(); err != nil {
			logger.Error("Backend cleanup failed", log.FieldError, err)
		}
	}()

	categories := services.NewCategoryService(be.Store, logger.WithComponent(log.ComponentCategory))
	if _, err := categories.EnsureDefaults(ctx); err != nil {
		return fmt.Errorf("seed default categories: %w", err)
	}

	analytics := services.NewAnalyticsService(be.Store,
		services.WithCacheTTL(cfg.AnalyticsCacheTTL),
		services.WithAnalyticsLogger(logger.WithComponent(log.ComponentAnalytics)))

	expenseOpts := []services.ExpenseOption{
		services.WithInvalidator(analytics),
		services.WithExpenseLogger(logger.WithComponent(log.ComponentExpense)),
	}
	if be.Events != nil {
		expenseOpts = append(expenseOpts, services.WithPublisher(be.Events))
	}
	expenses := services.NewExpenseService(be.Store, expenseOpts...)

	opts := []apphttp.Option{
		apphttp.WithLogger(logger.WithComponent(log.ComponentHTTP)),
		apphttp.WithDiagnostic(cfg.Diagnostic()),
		apphttp.WithRateLimit(cfg.RateLimitRPM),
		apphttp.WithCORSOrigins(cfg.CORSAllowedOrigins),
		apphttp.WithReadinessCheck("store", be.Store.Ping),
		apphttp.WithGauge("backend", func() any { return cfg.DataBackend }),
		apphttp.WithGauge("events_enabled", func() any { return be.Events != nil }),
	}
	if be.Events != nil {
		events := be.Events
		opts = append(opts, apphttp.WithReadinessCheck("amqp", func(context.Context) error {
			if !events.Healthy() {
				return errors.New("AMQP circuit breaker open")
			}
			return nil
		}))
	}
	if c := analytics.Cache(); c != nil {
		opts = append(opts,
			apphttp.WithCacheCleanup(c),
			apphttp.WithGauge("analytics_cache_entries", func() any { return c.Size() }))
	}

	srv := apphttp.NewServer(":"+cfg.Port, apphttp.Services{
		Expenses:   expenses,
		Analytics:  analytics,
		Categories: categories,
	}, opts...)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("Starting budget server",
			log.FieldOperation, log.OpStartup,
			"port", cfg.Port,
			log.FieldBackend, cfg.DataBackend,
			"env", cfg.AppEnv,
			"events_enabled", be.Events != nil)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen on :%s: %w", cfg.Port, err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()

		start := time.Now()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown: %w", err)
		}
		logger.Info("Server stopped gracefully",
			log.FieldOperation, log.OpShutdown,
			"took", time.Since(start).String())
		return nil
	})
	return g.Wait()
}
