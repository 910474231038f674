package dash

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/ShakedSchnarch/spearhead/cmd/spearctl/internal/config"
	"github.com/ShakedSchnarch/spearhead/pkg/sdk"
	"github.com/ShakedSchnarch/spearhead/pkg/sdk/dashboard"
	"github.com/ShakedSchnarch/spearhead/pkg/sdk/session"
)

// DashCmd is the parent command for dashboard reads
var DashCmd = &cobra.Command{
	Use:   "dash",
	Short: "Read the readiness dashboard",
	Long: `Reads dashboard data for the stored preferences (week, section, view
mode and top-N). Use --for to select a platoon for this run.`,
}

var selectPlatoon string

func init() {
	DashCmd.PersistentFlags().StringVar(&selectPlatoon, "for", "", "Select a platoon for this run")

	DashCmd.AddCommand(healthCmd)
	DashCmd.AddCommand(summaryCmd)
	DashCmd.AddCommand(coverageCmd)
	DashCmd.AddCommand(statusCmd)
	DashCmd.AddCommand(tablesCmd)
	DashCmd.AddCommand(intelCmd)
}

// open returns the dashboard with the --for selection applied.
func open(ctx context.Context) (*dashboard.Dashboard, error) {
	d, err := config.Dashboard(ctx)
	if err != nil {
		return nil, err
	}
	if selectPlatoon != "" {
		if err := d.Store().Update(ctx, session.SetPlatoon(selectPlatoon)); err != nil {
			return nil, err
		}
	}
	return d, nil
}

// explain turns the errors a user can act on into guidance.
func explain(err error) error {
	switch {
	case err == nil:
		return nil
	case sdk.IsAuthError(err):
		return fmt.Errorf("session expired or missing: run 'spearctl auth login'")
	case errors.Is(err, dashboard.ErrPlatoonRequired):
		return fmt.Errorf("%w: pass --for <platoon> or sign in as a platoon user", err)
	default:
		return err
	}
}

func printRows(title string, rows []sdk.Row) {
	pterm.DefaultSection.Println(title)
	if len(rows) == 0 {
		fmt.Println("(no rows)")
		return
	}

	colSet := make(map[string]struct{})
	for _, row := range rows {
		for col := range row {
			colSet[col] = struct{}{}
		}
	}
	cols := make([]string, 0, len(colSet))
	for col := range colSet {
		cols = append(cols, col)
	}
	sort.Strings(cols)

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, strings.ToUpper(strings.Join(cols, "\t")))
	for _, row := range rows {
		cells := make([]string, len(cols))
		for i, col := range cols {
			cells[i] = cell(row[col])
		}
		fmt.Fprintln(w, strings.Join(cells, "\t"))
	}
	w.Flush()
}

func cell(v any) string {
	switch v := v.(type) {
	case nil:
		return "-"
	case string:
		if v == "" {
			return "-"
		}
		return v
	case float64:
		return fmt.Sprintf("%.4g", v)
	default:
		return fmt.Sprint(v)
	}
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
