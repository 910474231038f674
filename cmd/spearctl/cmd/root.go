package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ShakedSchnarch/spearhead/cmd/spearctl/cmd/auth"
	"github.com/ShakedSchnarch/spearhead/cmd/spearctl/cmd/dash"
	"github.com/ShakedSchnarch/spearhead/cmd/spearctl/cmd/prefs"
	"github.com/ShakedSchnarch/spearhead/cmd/spearctl/internal/client"
	"github.com/ShakedSchnarch/spearhead/cmd/spearctl/internal/config"
	"github.com/ShakedSchnarch/spearhead/cmd/spearctl/internal/logging"
	"github.com/ShakedSchnarch/spearhead/cmd/spearctl/internal/telemetry"
)

var (
	cfgFile string
	closers []io.Closer
)

var rootCmd = &cobra.Command{
	Use:   "spearctl",
	Short: "Spearhead CLI - battalion readiness dashboard client",
	Long: `spearctl talks to the Spearhead readiness backend: sign in, synchronize
the form spreadsheets, browse readiness summaries and intelligence, and
upload or export data. Preferences persist between runs; credentials do not.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cfgFile != "" {
			viper.SetConfigFile(cfgFile)
			if err := viper.ReadInConfig(); err != nil {
				return fmt.Errorf("failed to read config file: %w", err)
			}
		}

		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}

		logger, logCloser := logging.New(logging.Options{File: cfg.LogFile, Debug: cfg.Debug})
		defaults := cfg.Preferences()
		provider := client.NewProvider(client.Options{
			APIBase:       cfg.APIBase,
			Timeout:       cfg.Timeout,
			SessionHeader: cfg.SessionHeader,
			StorageKind:   cfg.Storage,
			StoragePath:   cfg.StoragePath,
			Defaults:      &defaults,
			Login:         cfg.LoginPayload(),
			Logger:        logger,
		})
		closers = append(closers, provider)
		if cfg.Debug || cfg.LogFile != "" {
			closers = append(closers, telemetry.Install(logger))
		}
		closers = append(closers, logCloser)

		cmd.SetContext(config.InjectConfig(cmd.Context(), &config.GlobalConfig{
			Config:         cfg,
			ClientProvider: provider,
		}))
		return nil
	},
}

// Execute runs the root command
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()

	for _, c := range closers {
		if cerr := c.Close(); cerr != nil {
			fmt.Fprintln(os.Stderr, cerr)
		}
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "Config file (yaml, json or toml)")
	flags.String("api-base", "", "Backend base URL (env: SPEARHEAD_API_BASE)")
	flags.Duration("timeout", 0, "Per-request timeout (env: SPEARHEAD_TIMEOUT)")
	flags.String("storage", "", "Preference storage: file, sqlite or memory (env: SPEARHEAD_STORAGE)")
	flags.String("storage-path", "", "Storage directory or database path (env: SPEARHEAD_STORAGE_PATH)")
	flags.String("token", "", "Access token for this run only (env: SPEARHEAD_TOKEN)")
	flags.String("session", "", "OAuth session identifier for this run only (env: SPEARHEAD_SESSION)")
	flags.String("email", "", "Signed-in user email (env: SPEARHEAD_EMAIL)")
	flags.String("platoon", "", "Platoon of the signed-in user (env: SPEARHEAD_PLATOON)")
	flags.Bool("debug", false, "Log diagnostics to stderr (env: SPEARHEAD_DEBUG)")
	flags.String("log-file", "", "Write diagnostics to a rotated log file (env: SPEARHEAD_LOG_FILE)")

	for key, flag := range map[string]string{
		"api_base":     "api-base",
		"timeout":      "timeout",
		"storage":      "storage",
		"storage_path": "storage-path",
		"token":        "token",
		"session":      "session",
		"email":        "email",
		"platoon":      "platoon",
		"debug":        "debug",
		"log_file":     "log-file",
	} {
		_ = viper.BindPFlag(key, flags.Lookup(flag))
	}

	rootCmd.AddCommand(auth.AuthCmd)
	rootCmd.AddCommand(prefs.PrefsCmd)
	rootCmd.AddCommand(dash.DashCmd)
	rootCmd.AddCommand(syncCmd)
	rootCmd.AddCommand(importCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(ingestCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(devserverCmd)
}
