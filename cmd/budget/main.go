package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"budget/internal/cli"
	"budget/internal/config"
	"budget/internal/log"
)

// app carries what PersistentPreRunE prepares for every subcommand.
type app struct {
	v      *viper.Viper
	cfg    *config.Config
	logger *log.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{v: config.NewViper()}

	root := &cobra.Command{
		Use:   "budget",
		Short: "Personal expense tracker API",
		Long: `budget serves a JSON API for recording expenses against a fixed
set of categories and reporting monthly and per-category totals.

Running budget without a subcommand starts the server.`,
		SilenceUsage: true,
		PersistentPreRunE: func(*cobra.Command, []string) error {
			cfg, err := cli.LoadConfig(a.v)
			if err != nil {
				return err
			}
			a.cfg = cfg
			a.logger = cli.SetupLogger(cfg.LogLevel)
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.runServe(cmd.Context())
		},
	}

	if err := config.BindFlags(a.v, root.PersistentFlags()); err != nil {
		panic(err)
	}

	root.AddCommand(a.serveCmd(), a.migrateCmd(), a.seedCmd())
	return root
}

func main() {
	cli.LoadEnvFile()

	ctx, cancel := cli.SignalContext(context.Background(), log.Default(log.ComponentApp))
	err := newRootCmd().ExecuteContext(ctx)
	cancel()

	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
