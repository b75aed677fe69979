package cmd

import (
	"fmt"

	"github.com/bnema/account-broker/internal/domain"
	"github.com/spf13/cobra"
)

func newPoolCmd(app *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pool",
		Short: "Select accounts and report upstream outcomes",
	}

	cmd.AddCommand(
		newPoolPickCmd(app),
		newPoolReportCmd(app),
		newPoolStatusCmd(app),
		newPoolReloadCmd(app),
	)

	return cmd
}

func newPoolPickCmd(app *app) *cobra.Command {
	var pinned string
	var sessionKey string

	cmd := &cobra.Command{
		Use:   "pick",
		Short: "Pick a usable account from the pool",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := app.load(cmd.Context()); err != nil {
				return err
			}

			pick := func() error {
				if sessionKey != "" {
					if id, _, ok := app.broker.AffinityHint(sessionKey); ok {
						account, err := app.broker.Pick(cmd.Context(), id)
						if err == nil {
							_, _ = fmt.Fprintln(cmd.OutOrStdout(), account.ID)
							return nil
						}
					}
				}

				account, err := app.broker.Pick(cmd.Context(), domain.AccountID(pinned))
				if err != nil {
					return err
				}

				if sessionKey != "" {
					app.broker.RecordAffinity(sessionKey, account.ID, upstreamSessionToken(sessionKey, account.ID))
				}

				_, _ = fmt.Fprintln(cmd.OutOrStdout(), account.ID)
				return nil
			}

			if sessionKey == "" {
				return pick()
			}
			return app.broker.WithKeyLock(sessionKey, pick)
		},
	}

	cmd.Flags().StringVar(&pinned, "account", "", "Pin a specific account ID")
	cmd.Flags().StringVar(&sessionKey, "session", "", "Logical session key for sticky selection")

	return cmd
}

func newPoolReportCmd(app *app) *cobra.Command {
	var (
		account    string
		status     int
		failure    bool
		capability string
	)

	cmd := &cobra.Command{
		Use:   "report",
		Short: "Report an upstream outcome for an account",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := app.load(cmd.Context()); err != nil {
				return err
			}

			outcome, err := buildOutcome(status, failure, capability)
			if err != nil {
				return err
			}

			id := domain.AccountID(account)
			if err := app.broker.ReportOutcome(id, outcome); err != nil {
				return err
			}

			action := domain.Classify(outcome)
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Recorded outcome for %s: %s\n", id, action.Kind)
			return nil
		},
	}

	cmd.Flags().StringVar(&account, "account", "", "Account the outcome belongs to")
	cmd.Flags().IntVar(&status, "status", 0, "Upstream HTTP status code (0 for success)")
	cmd.Flags().BoolVar(&failure, "failure", false, "Report a non-HTTP failure (network, parse)")
	cmd.Flags().StringVar(&capability, "capability", "", "Capability the request targeted (text, images, videos)")
	_ = cmd.MarkFlagRequired("account")

	return cmd
}

func buildOutcome(status int, failure bool, capability string) (domain.Outcome, error) {
	if failure {
		return domain.FailureOutcome(fmt.Errorf("reported upstream failure")), nil
	}
	if status == 0 {
		return domain.SuccessOutcome(), nil
	}

	if capability != "" {
		parsed, ok := domain.ParseCapability(capability)
		if !ok {
			return domain.Outcome{}, fmt.Errorf("unknown capability %q", capability)
		}
		return domain.HTTPCapabilityOutcome(status, parsed, nil), nil
	}

	return domain.HTTPOutcome(status, nil), nil
}

func newPoolStatusCmd(app *app) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show a script-friendly line per account",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := app.load(cmd.Context()); err != nil {
				return err
			}

			for _, status := range app.broker.HealthSnapshot() {
				state := "usable"
				switch {
				case status.Disabled:
					state = "disabled"
				case status.Reason == domain.CooldownReasonDisabled:
					state = fmt.Sprintf("unavailable failures=%d", status.Failures)
				case status.Reason == domain.CooldownReasonCooldown:
					state = fmt.Sprintf("cooldown %ds", status.CooldownSeconds)
				case status.Expiry == domain.ExpiryExpired:
					state = "expired"
				case !status.Usable:
					state = "unavailable"
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", status.ID, state)
			}

			return nil
		},
	}
}

func newPoolReloadCmd(app *app) *cobra.Command {
	return &cobra.Command{
		Use:   "reload",
		Short: "Reload accounts from disk, resetting error state",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := app.broker.Reload(cmd.Context()); err != nil {
				return err
			}

			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Reloaded %d accounts\n", len(app.broker.HealthSnapshot()))
			return nil
		},
	}
}

func upstreamSessionToken(sessionKey string, id domain.AccountID) string {
	return sessionKey + ":" + string(id)
}
