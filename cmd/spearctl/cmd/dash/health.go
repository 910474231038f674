package dash

import (
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/ShakedSchnarch/spearhead/pkg/sdk/dashboard"
)

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check whether the backend is reachable",
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := open(cmd.Context())
		if err != nil {
			return err
		}
		health, err := d.Health(cmd.Context())
		if err != nil {
			return err
		}
		if health.Status == dashboard.StatusOnline {
			pterm.Success.Printf("Backend online (version %s)\n", orDash(health.Version))
			return nil
		}
		pterm.Warning.Printf("Backend offline at %s\n", d.Client().BaseURL())
		return nil
	},
}
