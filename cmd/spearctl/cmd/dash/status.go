package dash

import (
	"fmt"
	"os"
	"sort"
	"text/tabwriter"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/ShakedSchnarch/spearhead/pkg/sdk"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the spreadsheet synchronization status",
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := open(cmd.Context())
		if err != nil {
			return err
		}
		status, err := d.SyncStatus(cmd.Context())
		if err != nil {
			return explain(err)
		}
		PrintSyncStatus(status)
		return nil
	},
}

// PrintSyncStatus renders the per-file synchronization status.
func PrintSyncStatus(status *sdk.SyncStatus) {
	state := "disabled"
	if status.Enabled {
		state = "enabled"
	}
	pterm.DefaultSection.Printf("Synchronization %s\n", state)

	names := make([]string, 0, len(status.Files))
	for name := range status.Files {
		names = append(names, name)
	}
	sort.Strings(names)

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "FILE\tSTATUS\tSOURCE\tLAST SYNC\tETAG")
	for _, name := range names {
		f := status.Files[name]
		last := "-"
		if f.LastSync != nil {
			last = *f.LastSync
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", name, orDash(f.Status), orDash(f.Source), last, orDash(f.ETag))
	}
	w.Flush()
}
