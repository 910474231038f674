package cmd

import (
	"fmt"
	"os"
	"sort"
	"text/tabwriter"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/ShakedSchnarch/spearhead/cmd/spearctl/internal/config"
	"github.com/ShakedSchnarch/spearhead/pkg/sdk/syncer"
)

var syncTarget string

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Synchronize the form spreadsheets now",
	Long: `Asks the backend to synchronize the Google spreadsheets. Without --target
a platoon user syncs their platoon and everyone else syncs all platoons.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := config.Dashboard(cmd.Context())
		if err != nil {
			return err
		}
		target := syncTarget
		if target == "" {
			target = syncer.Target(d.Store().State())
		}

		spinner, _ := pterm.DefaultSpinner.Start(fmt.Sprintf("Synchronizing %s...", target))
		result, err := d.Sync(cmd.Context(), target)
		if err != nil {
			spinner.Fail("Synchronization failed")
			return err
		}
		spinner.Success("Synchronization complete")

		names := make([]string, 0, len(result))
		for name := range result {
			names = append(names, name)
		}
		sort.Strings(names)
		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "TARGET\tINSERTED\tUPDATED")
		for _, name := range names {
			fmt.Fprintf(w, "%s\t%d\t%d\n", name, result[name].Inserted, result[name].Updated)
		}
		w.Flush()
		return nil
	},
}

func init() {
	syncCmd.Flags().StringVar(&syncTarget, "target", "", "Platoon to sync, or \"all\"")
}
