package auth

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/ShakedSchnarch/spearhead/cmd/spearctl/internal/config"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Display authentication status",
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := config.Dashboard(cmd.Context())
		if err != nil {
			return err
		}
		st := d.Store().State()

		pterm.DefaultSection.Println("Authentication Status")
		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintf(w, "PHASE\t%s\n", st.Phase)
		fmt.Fprintf(w, "BACKEND\t%s\n", d.Client().BaseURL())
		if st.User != nil {
			fmt.Fprintf(w, "EMAIL\t%s\n", orDash(st.User.Email))
			restricted := "no"
			if st.Restricted() {
				restricted = "yes (" + st.User.Platoon + ")"
			}
			fmt.Fprintf(w, "RESTRICTED\t%s\n", restricted)
		}
		fmt.Fprintf(w, "PLATOON\t%s\n", orDash(st.Platoon))
		fmt.Fprintf(w, "VIEW\t%s\n", st.ViewMode)
		if exp, ok := st.TokenExpiry(); ok {
			fmt.Fprintf(w, "EXPIRES\t%s\n", exp.Format(time.RFC1123))
		}
		w.Flush()

		health, err := d.Health(cmd.Context())
		if err != nil {
			pterm.Warning.Printf("Backend check failed: %v\n", err)
			return nil
		}
		if health.Version != "" {
			pterm.Info.Printf("Backend %s (version %s)\n", health.Status, health.Version)
		} else {
			pterm.Info.Printf("Backend %s\n", health.Status)
		}
		return nil
	},
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
