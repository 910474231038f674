package dash

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/ShakedSchnarch/spearhead/pkg/sdk"
)

var intelCmd = &cobra.Command{
	Use:   "intel",
	Short: "Show readiness intelligence",
}

var intelBattalionCmd = &cobra.Command{
	Use:   "battalion",
	Short: "Show battalion readiness and platoon ranking",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := open(cmd.Context())
		if err != nil {
			return err
		}
		view, err := d.BattalionIntel(cmd.Context())
		if err != nil {
			return explain(err)
		}

		pterm.DefaultSection.Printf("Battalion readiness %.1f (week %s)\n", view.BattalionScore, orDash(view.Week))
		names := view.Ranking
		if len(names) == 0 {
			for name := range view.Platoons {
				names = append(names, name)
			}
			sort.Slice(names, func(i, j int) bool {
				return view.Platoons[names[i]].ReadinessScore > view.Platoons[names[j]].ReadinessScore
			})
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "RANK\tPLATOON\tREADINESS\tTANKS")
		for i, name := range names {
			p := view.Platoons[name]
			fmt.Fprintf(w, "%d\t%s\t%.1f\t%d\n", i+1, name, p.ReadinessScore, p.TankCount)
		}
		w.Flush()

		if len(view.TopGaps) > 0 {
			pterm.Info.Printf("Top gaps: %s\n", strings.Join(view.TopGaps, ", "))
		}
		return nil
	},
}

var intelPlatoonCmd = &cobra.Command{
	Use:   "platoon [name]",
	Short: "Show platoon readiness per tank",
	Long:  `Shows the readiness of a platoon. Without a name the selected platoon is used.`,
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := open(cmd.Context())
		if err != nil {
			return err
		}
		name := ""
		if len(args) == 1 {
			name = args[0]
		}
		view, err := d.PlatoonIntel(cmd.Context(), name)
		if err != nil {
			return explain(err)
		}

		pterm.DefaultSection.Printf("%s readiness %.1f (week %s)\n", view.Platoon, view.ReadinessScore, orDash(view.Week))
		printTanks(view.Tanks)
		if len(view.CriticalItems) > 0 {
			pterm.Warning.Printf("Critical items: %s\n", strings.Join(view.CriticalItems, ", "))
		}
		return nil
	},
}

var intelTankCmd = &cobra.Command{
	Use:   "tank <id>",
	Short: "Show the readiness score of one tank",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := open(cmd.Context())
		if err != nil {
			return err
		}
		view, err := d.TankScore(cmd.Context(), args[0])
		if err != nil {
			return explain(err)
		}

		pterm.DefaultSection.Printf("Tank %s\n", view.TankID)
		printTanks([]sdk.TankScoreView{*view})

		categories := make([]string, 0, len(view.CategoryScores))
		for c := range view.CategoryScores {
			categories = append(categories, c)
		}
		sort.Strings(categories)
		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		for _, c := range categories {
			fmt.Fprintf(w, "%s\t%.1f\n", c, view.CategoryScores[c])
		}
		w.Flush()
		return nil
	},
}

func printTanks(tanks []sdk.TankScoreView) {
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "TANK\tPLATOON\tSCORE\tGRADE\tCRITICAL GAPS")
	for _, t := range tanks {
		grade := "-"
		if t.Grade != nil {
			grade = *t.Grade
		}
		gaps := "-"
		if len(t.CriticalGaps) > 0 {
			gaps = strings.Join(t.CriticalGaps, ", ")
		}
		fmt.Fprintf(w, "%s\t%s\t%.1f\t%s\t%s\n", t.TankID, orDash(t.Platoon), t.Score, grade, gaps)
	}
	w.Flush()
}

func init() {
	intelCmd.AddCommand(intelBattalionCmd)
	intelCmd.AddCommand(intelPlatoonCmd)
	intelCmd.AddCommand(intelTankCmd)
}
