package prefs

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/ShakedSchnarch/spearhead/cmd/spearctl/internal/config"
	"github.com/ShakedSchnarch/spearhead/pkg/sdk/session"
)

// PrefsCmd is the parent command for stored preferences
var PrefsCmd = &cobra.Command{
	Use:   "prefs",
	Short: "Show or change stored preferences",
}

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the stored preferences",
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := config.Dashboard(cmd.Context())
		if err != nil {
			return err
		}
		printPreferences(d.Store().State().Preferences)
		return nil
	},
}

var (
	setBase    string
	setSection string
	setWeek    string
	setView    string
	setTopN    string
)

var setCmd = &cobra.Command{
	Use:   "set",
	Short: "Change stored preferences",
	Long: `Changes one or more stored preferences. Unset flags keep their value.
An invalid top-N falls back to 5 and an unknown view falls back to battalion.`,
	Example: `  spearctl prefs set --view platoon --top-n 10
  spearctl prefs set --week 2026-W05 --section armament`,
	RunE: func(cmd *cobra.Command, args []string) error {
		flags := cmd.Flags()
		var changes []session.Change
		if flags.Changed("base") {
			changes = append(changes, session.SetAPIBase(setBase))
		}
		if flags.Changed("section") {
			changes = append(changes, session.SetSection(setSection))
		}
		if flags.Changed("week") {
			changes = append(changes, session.SetWeek(setWeek))
		}
		if flags.Changed("view") {
			changes = append(changes, session.SetViewMode(session.ViewMode(setView)))
		}
		if flags.Changed("top-n") {
			changes = append(changes, session.SetTopN(setTopN))
		}
		if len(changes) == 0 {
			return fmt.Errorf("nothing to change (see --help)")
		}

		d, err := config.Dashboard(cmd.Context())
		if err != nil {
			return err
		}
		if err := d.Store().Update(cmd.Context(), changes...); err != nil {
			return fmt.Errorf("failed to save preferences: %w", err)
		}
		pterm.Success.Println("Preferences saved")
		printPreferences(d.Store().State().Preferences)
		return nil
	},
}

func printPreferences(p session.Preferences) {
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "API BASE\t%s\n", orDash(p.APIBase))
	fmt.Fprintf(w, "SECTION\t%s\n", orDash(p.Section))
	fmt.Fprintf(w, "WEEK\t%s\n", orDash(p.Week))
	fmt.Fprintf(w, "VIEW\t%s\n", p.ViewMode)
	fmt.Fprintf(w, "TOP N\t%d\n", p.TopN)
	w.Flush()
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func init() {
	setCmd.Flags().StringVar(&setBase, "base", "", "Backend base URL")
	setCmd.Flags().StringVar(&setSection, "section", "", "Section filter (empty for all)")
	setCmd.Flags().StringVar(&setWeek, "week", "", "Selected week, e.g. 2026-W05 (empty for latest)")
	setCmd.Flags().StringVar(&setView, "view", "", "View mode: battalion or platoon")
	setCmd.Flags().StringVar(&setTopN, "top-n", "", "Rows per table")

	PrefsCmd.AddCommand(showCmd)
	PrefsCmd.AddCommand(setCmd)
}
