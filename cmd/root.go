package cmd

import "github.com/spf13/cobra"

func Execute() error {
	return newRootCmd().Execute()
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "ab",
		Short:         "Account Broker (ab): rotate pooled backend accounts",
		Long:          "ab (Account Broker) shares a finite pool of backend accounts across concurrent sessions: fair rotation, per-account health tracking with cooldowns, session affinity and an accounts-file watcher.",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	app, err := wireApp()
	if err != nil {
		rootCmd.RunE = func(_ *cobra.Command, _ []string) error {
			return err
		}
		return rootCmd
	}

	rootCmd.AddCommand(
		newVersionCmd(),
		newStatusCmd(app),
		newAccountCmd(app),
		newPoolCmd(app),
		newRunCmd(app),
		newSweepCmd(app),
	)

	return rootCmd
}
