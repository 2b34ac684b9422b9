package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"budget/internal/cli"
	"budget/internal/config"
	"budget/internal/log"
	"budget/internal/worker"
)

const statsInterval = time.Minute

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	cli.LoadEnvFile()

	cfg, err := cli.LoadConfig(config.NewViper())
	if err != nil {
		return err
	}
	logger := cli.SetupLogger(cfg.LogLevel)
	if !cfg.EventsEnabled() {
		return errors.New("AMQP_URL is required to run the audit worker")
	}
	if cfg.DataBackend == config.BackendMemory {
		logger.Warn("Audit trail is kept in memory and lost on exit", log.FieldBackend, cfg.DataBackend)
	}

	ctx, cancel := cli.SignalContext(context.Background(), logger)
	defer cancel()

	be, err := cli.OpenBackend(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := be.Cleanup(); err != nil {
			logger.Error("Backend cleanup failed", log.FieldError, err)
		}
	}()
	if be.Events == nil {
		return fmt.Errorf("cannot reach AMQP broker at %s", cfg.AMQPURL)
	}

	w := worker.NewAuditWorker(be.Store, logger.WithComponent(log.ComponentWorker))
	logger.Info("Starting budget-worker",
		log.FieldBackend, cfg.DataBackend,
		"exchange", cfg.AMQPExchange,
		"queue", cfg.AMQPQueue)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer cancel()
		return w.Run(gctx, be.Events)
	})
	g.Go(func() error {
		ticker := time.NewTicker(statsInterval)
		defer ticker.Stop()
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-ticker.C:
				processed, failed := w.Stats()
				logger.Info("Audit worker stats", "processed", processed, "failed", failed)
			}
		}
	})

	if err := g.Wait(); err != nil {
		return fmt.Errorf("audit worker: %w", err)
	}
	logger.Info("Worker shutdown complete")
	return nil
}
