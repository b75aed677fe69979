package cmd

import (
	"encoding/json"
	"fmt"

	statusadapter "github.com/bnema/account-broker/internal/adapters/render/status"
	"github.com/spf13/cobra"
)

func newStatusCmd(app *app) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show pool health for every account",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := app.load(cmd.Context()); err != nil {
				return err
			}

			statuses := app.broker.HealthSnapshot()
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(statuses)
			}

			rendered := statusadapter.Render(statuses, statusadapter.RenderOptions{Now: app.now()})
			_, err := fmt.Fprintln(cmd.OutOrStdout(), rendered)
			return err
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")

	return cmd
}
