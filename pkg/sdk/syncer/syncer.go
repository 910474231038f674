// Package syncer triggers backend synchronization from Google Sheets. The
// automatic sync runs at most once per session token; manual syncs always
// run. A successful sync marks the dependent cached queries stale.
package syncer

import (
	"context"
	"fmt"
	"log"
	"os"
	"sync"

	"github.com/ShakedSchnarch/spearhead/pkg/sdk"
	"github.com/ShakedSchnarch/spearhead/pkg/sdk/notify"
	"github.com/ShakedSchnarch/spearhead/pkg/sdk/query"
	"github.com/ShakedSchnarch/spearhead/pkg/sdk/session"
)

// TargetAll synchronizes every platoon.
const TargetAll = "all"

const (
	actionAutoSync   = "Automatic sync"
	actionManualSync = "Sync"
)

// InvalidatedResources are marked stale after every successful sync.
var InvalidatedResources = []string{
	query.ResourceSyncStatus,
	query.ResourceSummary,
	query.ResourceCoverage,
	query.ResourceTabularBundle,
}

// Client is the part of the gateway the coordinator needs.
type Client interface {
	BaseURL() string
	SyncGoogle(ctx context.Context, target string) (sdk.SyncResult, error)
}

// Coordinator guards automatic synchronization. It is safe for concurrent use.
type Coordinator struct {
	client  Client
	cache   *query.Cache
	notices *notify.Center
	logger  *log.Logger

	mu        sync.Mutex
	triggered map[string]bool
	wg        sync.WaitGroup
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithLogger sets the coordinator logger.
func WithLogger(logger *log.Logger) Option {
	return func(c *Coordinator) { c.logger = logger }
}

// WithNotices sets where sync failures are reported.
func WithNotices(center *notify.Center) Option {
	return func(c *Coordinator) { c.notices = center }
}

// New creates a coordinator that invalidates entries of cache.
func New(client Client, cache *query.Cache, optFns ...Option) *Coordinator {
	c := &Coordinator{
		client:    client,
		cache:     cache,
		triggered: make(map[string]bool),
	}
	for _, fn := range optFns {
		fn(c)
	}
	if c.logger == nil {
		c.logger = log.New(os.Stderr, "[syncer] ", log.LstdFlags)
	}
	if c.notices == nil {
		c.notices = notify.NewCenter()
	}
	return c
}

// Target is the unit an automatic sync covers: the user's platoon when the
// user is restricted to one, otherwise every platoon.
func Target(st session.State) string {
	if st.Restricted() {
		return st.User.Platoon
	}
	return TargetAll
}

// EnsureSynced runs the automatic sync for st's token unless it already
// ran. The token is marked before the request is issued and stays marked
// whatever the outcome. It reports whether a request was issued.
func (c *Coordinator) EnsureSynced(ctx context.Context, st session.State) (bool, error) {
	if st.Token == "" {
		return false, nil
	}

	c.mu.Lock()
	if c.triggered[st.Token] {
		c.mu.Unlock()
		return false, nil
	}
	c.triggered[st.Token] = true
	c.mu.Unlock()

	_, err := c.run(ctx, st, Target(st), actionAutoSync)
	return true, err
}

// Sync runs a user-initiated sync of target. It bypasses the automatic
// guard and is never retried.
func (c *Coordinator) Sync(ctx context.Context, st session.State, target string) (sdk.SyncResult, error) {
	if target == "" {
		target = Target(st)
	}
	return c.run(ctx, st, target, actionManualSync)
}

// Triggered reports whether the automatic sync already ran for token.
func (c *Coordinator) Triggered(token string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.triggered[token]
}

// Watch runs EnsureSynced in the background whenever the store's token
// changes. Call the returned func to stop watching; it waits for running syncs.
func (c *Coordinator) Watch(ctx context.Context, store *session.Store) func() {
	ctx, cancel := context.WithCancel(ctx)
	unsubscribe := store.Subscribe(func(prev, next session.State) {
		if next.Token == "" || next.Token == prev.Token {
			return
		}
		c.wg.Add(1)
		go func() {
			defer c.wg.Done()
			if _, err := c.EnsureSynced(ctx, next); err != nil {
				c.logger.Printf("automatic sync: %v", err)
			}
		}()
	})

	// A store that is already authenticated is synced right away.
	if st := store.State(); st.Token != "" {
		c.wg.Add(1)
		go func() {
			defer c.wg.Done()
			if _, err := c.EnsureSynced(ctx, st); err != nil {
				c.logger.Printf("automatic sync: %v", err)
			}
		}()
	}

	return func() {
		unsubscribe()
		cancel()
		c.wg.Wait()
	}
}

func (c *Coordinator) run(ctx context.Context, st session.State, target, action string) (sdk.SyncResult, error) {
	result, err := c.client.SyncGoogle(ctx, target)
	if err != nil {
		// Auth loss already raised the re-authentication banner.
		if sdk.IsBenign(err) || sdk.IsAuthError(err) {
			c.logger.Printf("%s of %s: %v", action, target, err)
		} else {
			c.notices.Failure(action, err)
		}
		return nil, fmt.Errorf("sync %s: %w", target, err)
	}

	scope := query.Scope{BaseURL: c.client.BaseURL(), Identity: st.Identity()}
	n := c.cache.Invalidate(query.Match(scope, InvalidatedResources...))
	c.logger.Printf("%s of %s done, %d cached queries marked stale", action, target, n)
	return result, nil
}
