package client

import (
	"context"
	"fmt"
	"io"
	"log"
	"sync"
	"time"

	"github.com/ShakedSchnarch/spearhead/pkg/sdk"
	"github.com/ShakedSchnarch/spearhead/pkg/sdk/dashboard"
	"github.com/ShakedSchnarch/spearhead/pkg/sdk/session"
	"github.com/ShakedSchnarch/spearhead/pkg/sdk/storage"
)

// Options configure the Provider.
type Options struct {
	APIBase       string
	Timeout       time.Duration
	SessionHeader string
	StorageKind   storage.Kind
	StoragePath   string
	Defaults      *session.Preferences
	// Login is applied once the dashboard is open. Nil stays anonymous.
	Login  *session.LoginPayload
	Logger *log.Logger
}

// Provider lazily opens the preference storage and the dashboard shared by
// every command of one invocation.
type Provider struct {
	opts Options

	backendOnce sync.Once
	backend     storage.Backend
	backendErr  error

	dashOnce sync.Once
	dash     *dashboard.Dashboard
	dashErr  error
}

// NewProvider constructs a Provider.
func NewProvider(opts Options) *Provider {
	if opts.Logger == nil {
		opts.Logger = log.New(io.Discard, "", 0)
	}
	return &Provider{opts: opts}
}

// Backend opens the preference storage.
func (p *Provider) Backend(ctx context.Context) (storage.Backend, error) {
	p.backendOnce.Do(func() {
		p.backend, p.backendErr = storage.Open(ctx, p.opts.StorageKind, p.opts.StoragePath)
		if p.backendErr != nil {
			p.backendErr = fmt.Errorf("open %s storage: %w", p.opts.StorageKind, p.backendErr)
		}
	})
	return p.backend, p.backendErr
}

// Dashboard opens the dashboard and applies the configured credentials.
func (p *Provider) Dashboard(ctx context.Context) (*dashboard.Dashboard, error) {
	p.dashOnce.Do(func() {
		backend, err := p.Backend(ctx)
		if err != nil {
			p.dashErr = err
			return
		}

		metrics, err := sdk.NewGatewayMetrics()
		if err != nil {
			p.opts.Logger.Printf("gateway metrics disabled: %v", err)
		}

		d, err := dashboard.Open(ctx, dashboard.Config{
			Gateway: sdk.Config{
				BaseURL:       p.opts.APIBase,
				Timeout:       p.opts.Timeout,
				SessionHeader: p.opts.SessionHeader,
			},
			Backend:  backend,
			Defaults: p.opts.Defaults,
			Metrics:  metrics,
			Logger:   p.opts.Logger,
		})
		if err != nil {
			p.dashErr = err
			return
		}
		if p.opts.Login != nil {
			if err := d.Store().Login(ctx, *p.opts.Login); err != nil {
				p.opts.Logger.Printf("apply configured credentials: %v", err)
			}
		}
		p.dash = d
	})
	return p.dash, p.dashErr
}

// FileBackend returns the file storage when that is the configured backend.
func (p *Provider) FileBackend(ctx context.Context) (*storage.File, bool) {
	backend, err := p.Backend(ctx)
	if err != nil {
		return nil, false
	}
	f, ok := backend.(*storage.File)
	return f, ok
}

// Close releases the dashboard and the storage.
func (p *Provider) Close() error {
	if p.dash != nil {
		p.dash.Close()
	}
	if p.backend == nil {
		return nil
	}
	return p.backend.Close()
}
