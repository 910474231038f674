package dash

import (
	"fmt"
	"os"
	"sort"
	"text/tabwriter"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

var coverageCmd = &cobra.Command{
	Use:   "coverage",
	Short: "Show weekly reporting coverage per platoon",
	Long: `Shows how completely each platoon reported. When no week is stored the
latest week reported by the backend becomes the stored week.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := open(cmd.Context())
		if err != nil {
			return err
		}
		coverage, err := d.Coverage(cmd.Context())
		if err != nil {
			return explain(err)
		}

		pterm.DefaultSection.Printf("Coverage (week %s)\n", orDash(coverage.Week))
		names := make([]string, 0, len(coverage.Platoons))
		for name := range coverage.Platoons {
			names = append(names, name)
		}
		sort.Strings(names)

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "PLATOON\tFORMS\tTANKS\tEXPECTED\tLAST SEEN")
		for _, name := range names {
			c := coverage.Platoons[name]
			lastSeen := "-"
			if c.LastSeen != nil {
				lastSeen = *c.LastSeen
			}
			fmt.Fprintf(w, "%s\t%d\t%d\t%d\t%s\n", name, c.Forms, c.DistinctTanks, c.ExpectedTanks, lastSeen)
		}
		w.Flush()

		for _, a := range coverage.Anomalies {
			pterm.Warning.Printf("%s: %s (%s)\n", a.Platoon, a.Reason, a.Severity)
		}
		return nil
	},
}
