package dash

import (
	"fmt"
	"os"
	"sort"
	"text/tabwriter"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

var summaryCmd = &cobra.Command{
	Use:   "summary",
	Short: "Show the forms summary for the current view",
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := open(cmd.Context())
		if err != nil {
			return err
		}
		summary, err := d.Summary(cmd.Context())
		if err != nil {
			return explain(err)
		}

		title := fmt.Sprintf("Summary (%s, week %s)", summary.Mode, orDash(summary.Week))
		if summary.Platoon != "" {
			title = fmt.Sprintf("Summary of %s (week %s)", summary.Platoon, orDash(summary.Week))
		}
		pterm.DefaultSection.Println(title)
		printTree(summary.Summary)

		if len(summary.Platoons) > 0 {
			names := make([]string, 0, len(summary.Platoons))
			for name := range summary.Platoons {
				names = append(names, name)
			}
			sort.Strings(names)
			for _, name := range names {
				pterm.DefaultSection.WithLevel(2).Println(name)
				printTree(summary.Platoons[name])
			}
		}
		return nil
	},
}

func printTree(values map[string]any) {
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	for _, k := range keys {
		fmt.Fprintf(w, "%s\t%s\n", k, cell(values[k]))
	}
	w.Flush()
}
