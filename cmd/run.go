package cmd

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/bnema/account-broker/internal/application"
	"github.com/bnema/account-broker/internal/domain"
	"github.com/spf13/cobra"
)

func newRunCmd(app *app) *cobra.Command {
	var pinned string

	cmd := &cobra.Command{
		Use:   "run -- <command> [args...]",
		Short: "Run a command with a pool-selected account in its environment",
		Args: func(_ *cobra.Command, args []string) error {
			if len(args) == 0 {
				return fmt.Errorf("run requires a command after '--'")
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if err := app.load(ctx); err != nil {
				return err
			}

			workspaceRoot, err := os.Getwd()
			if err != nil {
				return fmt.Errorf("resolve workspace root: %w", err)
			}
			fingerprint := envOrDefault("AB_WINDOW_FINGERPRINT", "default")
			sessionKey := application.LogicalSessionKey(filepath.Clean(workspaceRoot), fingerprint)

			var account domain.Account
			var upstreamSession string
			err = app.broker.WithKeyLock(sessionKey, func() error {
				// A still-valid affinity hint keeps the session on the same
				// account; a pinned flag overrides it.
				if pinned == "" {
					if id, token, ok := app.broker.AffinityHint(sessionKey); ok {
						picked, pickErr := app.broker.Pick(ctx, id)
						if pickErr == nil {
							account = picked
							upstreamSession = token
							return nil
						}
					}
				}

				picked, pickErr := app.broker.Pick(ctx, domain.AccountID(pinned))
				if pickErr != nil {
					return pickErr
				}

				account = picked
				upstreamSession = upstreamSessionToken(sessionKey, picked.ID)
				app.broker.RecordAffinity(sessionKey, picked.ID, upstreamSession)
				return nil
			})
			if err != nil {
				return err
			}

			session, err := app.service.SessionCredential(ctx, account.ID)
			if err != nil {
				return fmt.Errorf("resolve session credential: %w", err)
			}

			child := exec.CommandContext(ctx, args[0], args[1:]...)
			child.Stdout = cmd.OutOrStdout()
			child.Stderr = cmd.ErrOrStderr()
			child.Stdin = cmd.InOrStdin()
			child.Env = append(os.Environ(),
				"AB_ACCOUNT="+string(account.ID),
				"AB_SESSION="+session,
				"AB_CONFIG_ID="+account.Credential.ConfigID,
				"AB_SESSION_KEY="+sessionKey,
				"AB_UPSTREAM_SESSION="+upstreamSession,
			)

			runErr := child.Run()
			if runErr == nil {
				_ = app.broker.ReportOutcome(account.ID, domain.SuccessOutcome())
				return nil
			}

			var exitErr *exec.ExitError
			if errors.As(runErr, &exitErr) {
				_ = app.broker.ReportOutcome(account.ID, domain.FailureOutcome(runErr))
				return fmt.Errorf("child exited with status %d", exitErr.ExitCode())
			}

			return fmt.Errorf("run child command: %w", runErr)
		},
	}

	cmd.Flags().StringVar(&pinned, "account", "", "Pin a specific account ID")

	return cmd
}
