package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"budget/internal/config"
	"budget/internal/log"
	"budget/internal/storage"
	"budget/internal/storage/postgres"
)

func (a *app) migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations",
		Long: `Bring the configured SQL backend up to the latest schema version.

The server applies pending migrations on start as well; this command
is for running them ahead of a deploy.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			status, _ := cmd.Flags().GetBool("status")
			return a.runMigrate(status)
		},
	}
	cmd.Flags().Bool("status", false, "print the current schema version without applying changes")
	return cmd
}

func (a *app) runMigrate(statusOnly bool) error {
	cfg, logger := a.cfg, a.logger.WithComponent(log.ComponentStorage)

	switch cfg.DataBackend {
	case config.BackendSQLite:
		if !statusOnly {
			logger.Info("Running database migrations",
				log.FieldOperation, log.OpMigrate,
				log.FieldBackend, cfg.DataBackend,
				"db_path", cfg.SQLiteDBPath)
			if err := storage.RunMigrations(cfg.SQLiteDBPath); err != nil {
				return fmt.Errorf("migrate %s: %w", cfg.SQLiteDBPath, err)
			}
		}
		version, dirty, err := storage.MigrationVersion(cfg.SQLiteDBPath)
		if err != nil {
			return fmt.Errorf("read migration version: %w", err)
		}
		logger.Info("Database schema", "version", version, "dirty", dirty)
	case config.BackendPostgres:
		if statusOnly {
			return errors.New("--status is only supported for the sqlite backend")
		}
		logger.Info("Running database migrations",
			log.FieldOperation, log.OpMigrate,
			log.FieldBackend, cfg.DataBackend)
		if err := postgres.RunMigrations(cfg.DatabaseURL); err != nil {
			return fmt.Errorf("migrate postgres: %w", err)
		}
		logger.Info("Database migrations completed")
	default:
		logger.Info("Nothing to migrate", log.FieldBackend, cfg.DataBackend)
	}
	return nil
}
