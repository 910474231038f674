package auth

import (
	"fmt"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/ShakedSchnarch/spearhead/cmd/spearctl/internal/config"
)

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "End the session and reset the view to battalion scope",
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := config.Dashboard(cmd.Context())
		if err != nil {
			return err
		}
		if err := d.Store().Logout(cmd.Context()); err != nil {
			return fmt.Errorf("failed to log out: %w", err)
		}
		pterm.Success.Println("Logged out")
		pterm.Info.Println("Unset SPEARHEAD_TOKEN and SPEARHEAD_SESSION to stay signed out")
		return nil
	},
}
