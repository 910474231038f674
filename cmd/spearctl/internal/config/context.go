package config

import (
	"context"

	"github.com/ShakedSchnarch/spearhead/cmd/spearctl/internal/client"
	"github.com/ShakedSchnarch/spearhead/pkg/sdk/dashboard"
)

type contextKey string

const configKey contextKey = "spearctl-config"

// GlobalConfig holds shared configuration for all spearctl commands.
// The root command injects it into the cobra command context.
type GlobalConfig struct {
	Config         *Config
	ClientProvider *client.Provider
}

// InjectConfig adds config to the cobra command context.
func InjectConfig(ctx context.Context, cfg *GlobalConfig) context.Context {
	return context.WithValue(ctx, configKey, cfg)
}

// FromContext retrieves config from the cobra command context.
func FromContext(ctx context.Context) (*GlobalConfig, bool) {
	cfg, ok := ctx.Value(configKey).(*GlobalConfig)
	return cfg, ok
}

// MustFromContext retrieves config from context or panics. Only for RunE
// functions running under the root command.
func MustFromContext(ctx context.Context) *GlobalConfig {
	cfg, ok := FromContext(ctx)
	if !ok {
		panic("spearctl: config not found in context - this is a bug in spearctl")
	}
	return cfg
}

// Dashboard opens the dashboard shared by this invocation.
func Dashboard(ctx context.Context) (*dashboard.Dashboard, error) {
	return MustFromContext(ctx).ClientProvider.Dashboard(ctx)
}
