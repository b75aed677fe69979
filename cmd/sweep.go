package cmd

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/bnema/account-broker/internal/adapters/watch"
	"github.com/bnema/account-broker/internal/application"
	"github.com/spf13/cobra"
)

func newSweepCmd(app *app) *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Run the maintenance sweeper and accounts file watcher until interrupted",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if err := app.load(ctx); err != nil {
				return err
			}

			interval := app.cfg.SweepInterval
			if interval <= 0 {
				interval = application.DefaultSweepInterval
			}
			sweeper := application.NewSweeper(app.broker, interval, app.logger)

			// The watcher registers the parent directory, which must exist
			// even before the first save.
			accountsPath := app.repo.AccountsPath()
			if err := os.MkdirAll(filepath.Dir(accountsPath), 0o700); err != nil {
				return err
			}
			watcher := watch.NewWatcher(accountsPath, app.broker, app.logger)

			watchErr := make(chan error, 1)
			go func() {
				watchErr <- watcher.Run(ctx)
			}()

			sweeper.Run(ctx)

			if err := <-watchErr; err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		},
	}
}
