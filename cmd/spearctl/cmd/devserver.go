package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/ShakedSchnarch/spearhead/internal/devserver"
)

var devOpts struct {
	addr    string
	token   string
	email   string
	platoon string
	latency time.Duration
}

var devserverCmd = &cobra.Command{
	Use:    "devserver",
	Short:  "Run a local stand-in for the readiness backend",
	Long:   `Serves fixture data on every backend route, with an instant dev login.`,
	Hidden: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		backend := devserver.New(devserver.Options{
			Token:        devOpts.token,
			LoginEmail:   devOpts.email,
			LoginPlatoon: devOpts.platoon,
			Latency:      devOpts.latency,
			LogRequests:  true,
		})
		server := &http.Server{
			Addr:              devOpts.addr,
			Handler:           backend.Router(),
			ReadHeaderTimeout: 10 * time.Second,
		}

		errCh := make(chan error, 1)
		go func() {
			errCh <- server.ListenAndServe()
		}()
		pterm.Info.Printf("Dev backend listening on %s\n", devOpts.addr)

		select {
		case err := <-errCh:
			if errors.Is(err, http.ErrServerClosed) {
				return nil
			}
			return fmt.Errorf("dev backend: %w", err)
		case <-cmd.Context().Done():
		}

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(ctx)
	},
}

func init() {
	devserverCmd.Flags().StringVar(&devOpts.addr, "addr", "127.0.0.1:8000", "Listen address")
	devserverCmd.Flags().StringVar(&devOpts.token, "require-token", "", "Require this bearer token")
	devserverCmd.Flags().StringVar(&devOpts.email, "login-email", "officer@example.com", "Email returned by the dev login")
	devserverCmd.Flags().StringVar(&devOpts.platoon, "login-platoon", "", "Platoon returned by the dev login")
	devserverCmd.Flags().DurationVar(&devOpts.latency, "latency", 0, "Delay every response")
}
