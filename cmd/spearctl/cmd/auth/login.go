package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"github.com/zitadel/oidc/v3/pkg/client/rp/cli"

	"github.com/ShakedSchnarch/spearhead/cmd/spearctl/internal/config"
	"github.com/ShakedSchnarch/spearhead/pkg/sdk/landing"
	"github.com/ShakedSchnarch/spearhead/pkg/sdk/session"
)

var (
	loginTimeout time.Duration
	noBrowser    bool
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Sign in through the browser",
	Long: `Opens the backend login page in the browser and waits for the OAuth
provider to redirect back to a local callback. The landing parameters of
the redirect become the session of this run, and the command prints the
environment variables that carry it into later runs.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		gc := config.MustFromContext(cmd.Context())
		d, err := config.Dashboard(cmd.Context())
		if err != nil {
			return err
		}

		store := d.Store()
		if store.State().Phase == session.PhaseAuthenticated {
			if err := store.Logout(cmd.Context()); err != nil {
				return fmt.Errorf("failed to drop current session: %w", err)
			}
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), loginTimeout)
		defer cancel()

		payload, err := landing.Authenticate(ctx, store, landing.AuthOptions{
			APIBase:   d.Client().BaseURL(),
			LoginPath: gc.Config.LoginPath,
			Open: func(loginURL string) {
				pterm.Info.Printf("Sign in at: %s\n", loginURL)
				if !noBrowser {
					cli.OpenBrowser(loginURL)
				}
			},
		})
		if err != nil {
			return fmt.Errorf("login failed: %w", err)
		}

		st := store.State()
		pterm.Success.Println("Login successful")
		if st.User != nil && st.User.Email != "" {
			pterm.Info.Printf("Signed in as: %s\n", st.User.Email)
		}
		if st.Platoon != "" {
			pterm.Info.Printf("Platoon: %s (view: %s)\n", st.Platoon, st.ViewMode)
		}
		if exp, ok := st.TokenExpiry(); ok {
			pterm.Info.Printf("Token expires at: %s\n", exp.Format(time.RFC1123))
		}

		fmt.Println("------------------------------------------------------------")
		fmt.Println("Credentials are not stored. To reuse this session run:")
		if payload.Token != "" {
			fmt.Printf("  export SPEARHEAD_TOKEN=%q\n", payload.Token)
		}
		if payload.Session != "" {
			fmt.Printf("  export SPEARHEAD_SESSION=%q\n", payload.Session)
		}
		if payload.Email != "" {
			fmt.Printf("  export SPEARHEAD_EMAIL=%q\n", payload.Email)
		}
		if payload.Platoon != "" {
			fmt.Printf("  export SPEARHEAD_PLATOON=%q\n", payload.Platoon)
		}
		return nil
	},
}

func init() {
	loginCmd.Flags().DurationVar(&loginTimeout, "wait", 5*time.Minute, "How long to wait for the browser sign-in")
	loginCmd.Flags().BoolVar(&noBrowser, "no-browser", false, "Print the login address instead of opening a browser")
}
