package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/ShakedSchnarch/spearhead/pkg/sdk/session"
	"github.com/ShakedSchnarch/spearhead/pkg/sdk/storage"
)

// EnvPrefix prefixes every environment variable read by Load.
const EnvPrefix = "SPEARHEAD"

// Config holds the spearctl configuration
type Config struct {
	// Backend base URL. Empty falls back to the stored apiBase preference.
	APIBase string

	// Per-request timeout
	Timeout time.Duration

	// Header carrying the OAuth session identifier
	SessionHeader string

	// Login path on the backend for the browser flow
	LoginPath string

	// Preference storage backend and its location
	Storage     storage.Kind
	StoragePath string

	// Ephemeral credentials; never written to storage
	Token   string
	Session string
	Email   string
	Platoon string

	// Enable debug logging to stderr
	Debug bool

	// Rotated log file; takes precedence over stderr
	LogFile string

	// Preferences used when nothing valid is stored
	Defaults DefaultsConfig
}

// DefaultsConfig are the startup preference defaults.
type DefaultsConfig struct {
	Section  string
	TopN     int
	ViewMode string
}

// Load reads configuration from flags bound to viper, SPEARHEAD_ environment
// variables and an optional config file, in that order of precedence.
func Load() (*Config, error) {
	viper.SetEnvPrefix(EnvPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	viper.SetDefault("timeout", 30*time.Second)
	viper.SetDefault("storage", string(storage.KindFile))
	viper.SetDefault("login_path", "/auth/login")
	viper.SetDefault("defaults.top_n", session.DefaultTopN)
	viper.SetDefault("defaults.view_mode", string(session.ViewBattalion))

	cfg := &Config{
		APIBase:       strings.TrimRight(viper.GetString("api_base"), "/"),
		Timeout:       viper.GetDuration("timeout"),
		SessionHeader: viper.GetString("session_header"),
		LoginPath:     viper.GetString("login_path"),
		Storage:       storage.Kind(viper.GetString("storage")),
		StoragePath:   viper.GetString("storage_path"),
		Token:         viper.GetString("token"),
		Session:       viper.GetString("session"),
		Email:         viper.GetString("email"),
		Platoon:       viper.GetString("platoon"),
		Debug:         viper.GetBool("debug"),
		LogFile:       viper.GetString("log_file"),
		Defaults: DefaultsConfig{
			Section:  viper.GetString("defaults.section"),
			TopN:     viper.GetInt("defaults.top_n"),
			ViewMode: viper.GetString("defaults.view_mode"),
		},
	}

	switch cfg.Storage {
	case storage.KindFile, storage.KindSQLite, storage.KindMemory:
	default:
		return nil, fmt.Errorf("unknown storage %q (want file, sqlite or memory)", cfg.Storage)
	}
	if cfg.Timeout < 0 {
		return nil, fmt.Errorf("timeout must not be negative")
	}
	if mode := session.ViewMode(cfg.Defaults.ViewMode); !mode.Valid() {
		return nil, fmt.Errorf("unknown default view mode %q", cfg.Defaults.ViewMode)
	}
	return cfg, nil
}

// Preferences are the configured defaults as session preferences.
func (c *Config) Preferences() session.Preferences {
	return session.Preferences{
		APIBase:  c.APIBase,
		Section:  c.Defaults.Section,
		TopN:     c.Defaults.TopN,
		ViewMode: session.ViewMode(c.Defaults.ViewMode),
	}
}

// LoginPayload returns the ephemeral credentials, or nil when none are set.
func (c *Config) LoginPayload() *session.LoginPayload {
	if c.Token == "" && c.Session == "" {
		return nil
	}
	return &session.LoginPayload{
		Token:        c.Token,
		OAuthSession: c.Session,
		Email:        c.Email,
		Platoon:      c.Platoon,
	}
}
