package main

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"budget/internal/cli"
	"budget/internal/log"
	"budget/internal/services"
)

func (a *app) seedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Insert the default categories into an empty store",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.runSeed(cmd.Context(), cmd.OutOrStdout())
		},
	}
}

func (a *app) runSeed(ctx context.Context, out io.Writer) error {
	be, err := cli.OpenBackend(ctx, a.cfg, a.logger)
	if err != nil {
		return err
	}
	defer be.Cleanup()

	categories := services.NewCategoryService(be.Store, a.logger.WithComponent(log.ComponentCategory))
	n, err := categories.EnsureDefaults(ctx)
	if err != nil {
		return fmt.Errorf("seed default categories: %w", err)
	}
	if n == 0 {
		fmt.Fprintln(out, "categories already present, nothing seeded")
		return nil
	}
	fmt.Fprintf(out, "seeded %d default categories\n", n)
	return nil
}
