package cmd

import (
	"fmt"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/ShakedSchnarch/spearhead/cmd/spearctl/cmd/dash"
	"github.com/ShakedSchnarch/spearhead/cmd/spearctl/internal/config"
	"github.com/ShakedSchnarch/spearhead/pkg/sdk"
	"github.com/ShakedSchnarch/spearhead/pkg/sdk/landing"
	"github.com/ShakedSchnarch/spearhead/pkg/sdk/notify"
	"github.com/ShakedSchnarch/spearhead/pkg/sdk/query"
	"github.com/ShakedSchnarch/spearhead/pkg/sdk/session"
	"github.com/ShakedSchnarch/spearhead/pkg/sdk/storage"
)

var watchLogin bool

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Stay signed in and follow synchronization until interrupted",
	Long: `Keeps a session open: the spreadsheets are synchronized once per sign-in,
the synchronization status is refreshed every 30 seconds, notifications are
printed as they arrive, and preference changes made by other spearctl runs
are picked up. With --login the browser sign-in runs first.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		gc := config.MustFromContext(ctx)
		d, err := config.Dashboard(ctx)
		if err != nil {
			return err
		}
		store := d.Store()

		stopNotices := d.Notices().Subscribe(printNotice)
		defer stopNotices()

		stopSync := d.StartAutoSync(ctx)
		defer stopSync()

		if watchLogin && store.State().Phase != session.PhaseAuthenticated {
			if _, err := landing.Authenticate(ctx, store, landing.AuthOptions{
				APIBase:   d.Client().BaseURL(),
				LoginPath: gc.Config.LoginPath,
				Open: func(loginURL string) {
					pterm.Info.Printf("Sign in at: %s\n", loginURL)
				},
			}); err != nil {
				return fmt.Errorf("login failed: %w", err)
			}
			pterm.Success.Println("Signed in")
		}
		if store.State().Phase != session.PhaseAuthenticated {
			pterm.Warning.Println("Not signed in; only public data will load (use --login or --token)")
		}

		stopStatus := d.WatchSyncStatus(ctx, func(r query.Result[*sdk.SyncStatus]) {
			switch {
			case r.IsFetching:
			case r.Err != nil:
				pterm.Warning.Printf("Sync status unavailable: %v\n", r.Err)
			case r.HasData:
				pterm.Info.Printf("Sync status at %s\n", time.Now().Format(time.TimeOnly))
				dash.PrintSyncStatus(r.Data)
			}
		})
		defer stopStatus()

		if f, ok := gc.ClientProvider.FileBackend(ctx); ok {
			watcher, err := storage.NewWatcher(f)
			if err != nil {
				pterm.Warning.Printf("Not following preference changes: %v\n", err)
			} else {
				defer watcher.Stop()
				go followPreferences(cmd, watcher, store)
			}
		}

		<-ctx.Done()
		pterm.Info.Println("Stopped")
		return nil
	},
}

func followPreferences(cmd *cobra.Command, watcher *storage.Watcher, store *session.Store) {
	ctx := cmd.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case change, ok := <-watcher.Changes():
			if !ok {
				return
			}
			if change.Key != session.StorageKey {
				continue
			}
			store.Reload(ctx)
			p := store.State().Preferences
			pterm.Info.Printf("Preferences changed: view %s, week %s, top %d\n", p.ViewMode, orDash(p.Week), p.TopN)
		case err, ok := <-watcher.Errors():
			if !ok {
				return
			}
			pterm.Warning.Printf("Preference watch: %v\n", err)
		}
	}
}

func printNotice(n notify.Notice) {
	switch n.Level {
	case notify.LevelError:
		pterm.Error.Println(n.Message)
	case notify.LevelWarning:
		pterm.Warning.Println(n.Message)
	case notify.LevelSuccess:
		pterm.Success.Println(n.Message)
	default:
		pterm.Info.Println(n.Message)
	}
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func init() {
	watchCmd.Flags().BoolVar(&watchLogin, "login", false, "Sign in through the browser first")
}
