// Package dashboard wires the session store, request gateway, query cache
// and sync coordinator into the reads and mutations the readiness
// dashboard performs.
package dashboard

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"

	"github.com/ShakedSchnarch/spearhead/pkg/sdk"
	"github.com/ShakedSchnarch/spearhead/pkg/sdk/ingest"
	"github.com/ShakedSchnarch/spearhead/pkg/sdk/notify"
	"github.com/ShakedSchnarch/spearhead/pkg/sdk/query"
	"github.com/ShakedSchnarch/spearhead/pkg/sdk/session"
	"github.com/ShakedSchnarch/spearhead/pkg/sdk/storage"
	"github.com/ShakedSchnarch/spearhead/pkg/sdk/syncer"
)

// ErrPlatoonRequired is returned by platoon-scoped reads while no platoon
// is selected. No request is issued.
var ErrPlatoonRequired = errors.New("no platoon selected")

// Config is the explicit startup configuration.
type Config struct {
	// Gateway.BaseURL falls back to the stored apiBase preference.
	Gateway    sdk.Config
	Backend    storage.Backend
	Defaults   *session.Preferences
	HTTPClient *http.Client
	Metrics    *sdk.GatewayMetrics
	CacheSize  int
	Logger     *log.Logger
}

// Dashboard is the client-side orchestration layer.
type Dashboard struct {
	client    *sdk.Client
	store     *session.Store
	cache     *query.Cache
	sync      *syncer.Coordinator
	notices   *notify.Center
	validator *ingest.Validator
	logger    *log.Logger

	unsubscribe func()
}

// Open builds every component from cfg and loads the stored preferences.
func Open(ctx context.Context, cfg Config) (*Dashboard, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = log.New(os.Stderr, "[dashboard] ", log.LstdFlags)
	}
	backend := cfg.Backend
	if backend == nil {
		backend = storage.NewMemory()
	}

	notices := notify.NewCenter()
	storeOpts := []session.Option{session.WithLogger(logger), session.WithNotices(notices)}
	if cfg.Defaults != nil {
		storeOpts = append(storeOpts, session.WithDefaults(*cfg.Defaults))
	}
	store := session.New(ctx, backend, storeOpts...)

	gateway := cfg.Gateway
	if gateway.BaseURL == "" {
		gateway.BaseURL = store.State().APIBase
	}
	clientOpts := []sdk.ClientOption{
		sdk.WithCredentials(store),
		sdk.WithUnauthorizedHandler(store.HandleUnauthorized),
		sdk.WithLogger(logger),
		sdk.WithMetrics(cfg.Metrics),
	}
	if cfg.HTTPClient != nil {
		clientOpts = append(clientOpts, sdk.WithHTTPClient(cfg.HTTPClient))
	}
	client, err := sdk.NewClient(gateway, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("create gateway: %w", err)
	}

	validator, err := ingest.NewValidator(len(ingest.Kinds()) + 1)
	if err != nil {
		return nil, err
	}

	cache := query.New(query.WithSize(cfg.CacheSize))
	d := &Dashboard{
		client:    client,
		store:     store,
		cache:     cache,
		sync:      syncer.New(client, cache, syncer.WithLogger(logger), syncer.WithNotices(notices)),
		notices:   notices,
		validator: validator,
		logger:    logger,
	}
	d.unsubscribe = store.Subscribe(d.onSessionChange)
	return d, nil
}

// Close detaches the dashboard from the store.
func (d *Dashboard) Close() {
	d.unsubscribe()
}

// Store returns the session store.
func (d *Dashboard) Store() *session.Store { return d.store }

// Client returns the request gateway.
func (d *Dashboard) Client() *sdk.Client { return d.client }

// Cache returns the query cache.
func (d *Dashboard) Cache() *query.Cache { return d.cache }

// Notices returns the notification center.
func (d *Dashboard) Notices() *notify.Center { return d.notices }

// Coordinator returns the sync coordinator.
func (d *Dashboard) Coordinator() *syncer.Coordinator { return d.sync }

// Scope is the cache scope of the current session.
func (d *Dashboard) Scope() query.Scope {
	return d.scopeOf(d.store.State())
}

func (d *Dashboard) scopeOf(st session.State) query.Scope {
	return query.Scope{BaseURL: d.client.BaseURL(), Identity: st.Identity()}
}

// onSessionChange drops every cache entry of a previous identity.
func (d *Dashboard) onSessionChange(prev, next session.State) {
	if prev.Identity() == next.Identity() {
		return
	}
	n := d.cache.Purge(query.NotScope(d.scopeOf(next)))
	d.logger.Printf("session identity changed, purged %d cached queries", n)
}

// report routes a failure: auth loss is already handled by the store,
// benign failures are logged and the rest become notifications.
func (d *Dashboard) report(action string, err error) {
	switch {
	case err == nil, sdk.IsAuthError(err), errors.Is(err, ErrPlatoonRequired):
	case sdk.IsBenign(err):
		d.logger.Printf("%s: %v", action, err)
	default:
		if _, ok := ingest.AsValidationError(err); ok {
			return
		}
		d.notices.Failure(action, err)
	}
}
