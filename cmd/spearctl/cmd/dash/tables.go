package dash

import (
	"sort"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

var tablesCmd = &cobra.Command{
	Use:   "tables",
	Short: "Show the dashboard tables, trends and insights",
	Long: `Fetches totals, gaps, delta, variance, trends, insights and form status
together. A table that failed is reported and the rest are still shown.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := open(cmd.Context())
		if err != nil {
			return err
		}
		view, err := d.Tabular(cmd.Context())
		if err != nil {
			return explain(err)
		}

		printRows("Totals", view.Totals)
		printRows("Gaps", view.Gaps)
		printRows("Delta", view.Delta)
		printRows("Variance", view.Variance)
		printRows("Trends", view.Trends)
		if view.FormsStatus != nil {
			printRows("Forms reported", view.FormsStatus.OK)
			printRows("Forms missing", view.FormsStatus.Gaps)
		}
		if view.Insights != nil {
			pterm.DefaultSection.Println("Insights")
			pterm.Println(view.Insights.Content)
		}

		failed := make([]string, 0, len(view.Errors))
		for name := range view.Errors {
			failed = append(failed, name)
		}
		sort.Strings(failed)
		for _, name := range failed {
			pterm.Warning.Printf("%s unavailable: %v\n", name, view.Errors[name])
		}
		return nil
	},
}
