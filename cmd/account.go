package cmd

import (
	"fmt"
	"time"

	"github.com/bnema/account-broker/internal/application"
	"github.com/bnema/account-broker/internal/domain"
	"github.com/spf13/cobra"
)

const expiresFlagLayout = "2006-01-02 15:04:05"

func newAccountCmd(app *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "account",
		Short: "Manage pooled accounts",
	}

	cmd.AddCommand(
		newAccountListCmd(app),
		newAccountAddCmd(app),
		newAccountRemoveCmd(app),
		newAccountEnableCmd(app),
		newAccountDisableCmd(app),
	)

	return cmd
}

func newAccountListCmd(app *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List configured accounts",
		RunE: func(cmd *cobra.Command, _ []string) error {
			accounts, err := app.service.ListAccounts(cmd.Context())
			if err != nil {
				return err
			}

			for _, account := range accounts {
				marker := ""
				if account.Disabled {
					marker = "\t(disabled)"
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s%s\n", account.ID, account.Name, marker)
			}

			return nil
		},
	}
}

func newAccountAddCmd(app *app) *cobra.Command {
	var (
		id       string
		name     string
		session  string
		configID string
		expires  string
	)

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add an account with its session credential",
		RunE: func(cmd *cobra.Command, _ []string) error {
			var expiresAt *time.Time
			if expires != "" {
				parsed, err := time.ParseInLocation(expiresFlagLayout, expires, time.Local)
				if err != nil {
					return fmt.Errorf("parse --expires (want %q): %w", expiresFlagLayout, err)
				}
				expiresAt = &parsed
			}

			account, err := app.service.AddAccount(cmd.Context(), application.AddAccountCommand{
				ID:        domain.AccountID(id),
				Name:      name,
				Session:   session,
				ConfigID:  configID,
				ExpiresAt: expiresAt,
			})
			if err != nil {
				return err
			}

			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Added account %s (%s)\n", account.ID, account.Name)
			return nil
		},
	}

	cmd.Flags().StringVar(&id, "id", "", "Account ID")
	cmd.Flags().StringVar(&name, "name", "", "Display name")
	cmd.Flags().StringVar(&session, "session", "", "Session credential value")
	cmd.Flags().StringVar(&configID, "config-id", "", "Upstream config ID")
	cmd.Flags().StringVar(&expires, "expires", "", "Expiry timestamp, e.g. \"2026-06-01 12:00:00\"")
	_ = cmd.MarkFlagRequired("id")
	_ = cmd.MarkFlagRequired("session")

	return cmd
}

func newAccountRemoveCmd(app *app) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <account-id>",
		Short: "Remove an account and its stored credential",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := domain.AccountID(args[0])
			if err := app.service.RemoveAccount(cmd.Context(), id); err != nil {
				return err
			}

			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Removed account %s\n", id)
			return nil
		},
	}
}

func newAccountEnableCmd(app *app) *cobra.Command {
	return &cobra.Command{
		Use:   "enable <account-id>",
		Short: "Clear an account's manual disable flag",
		Args:  cobra.ExactArgs(1),
		RunE:  setDisabledRunE(app, false, "Enabled"),
	}
}

func newAccountDisableCmd(app *app) *cobra.Command {
	return &cobra.Command{
		Use:   "disable <account-id>",
		Short: "Manually exclude an account from selection",
		Args:  cobra.ExactArgs(1),
		RunE:  setDisabledRunE(app, true, "Disabled"),
	}
}

func setDisabledRunE(app *app, disabled bool, verb string) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		if err := app.load(cmd.Context()); err != nil {
			return err
		}

		id := domain.AccountID(args[0])
		if err := app.broker.SetDisabled(cmd.Context(), id, disabled); err != nil {
			return err
		}

		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s account %s\n", verb, id)
		return nil
	}
}
