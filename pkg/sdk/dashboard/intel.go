package dashboard

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/ShakedSchnarch/spearhead/pkg/sdk"
	"github.com/ShakedSchnarch/spearhead/pkg/sdk/query"
)

// intelRetries is how many times an intelligence read is retried after a
// transient failure.
const intelRetries = 2

// intelBackoff is the delay before the first retry; it doubles after each.
var intelBackoff = 250 * time.Millisecond

// PlatoonIntel reads the readiness intelligence of platoon, or of the
// selected platoon when platoon is empty.
func (d *Dashboard) PlatoonIntel(ctx context.Context, platoon string) (*sdk.PlatoonIntelView, error) {
	st := d.store.State()
	if platoon == "" {
		platoon = st.Platoon
	}
	if platoon == "" {
		return nil, ErrPlatoonRequired
	}

	key := query.NewKey(d.scopeOf(st), query.ResourceIntelligence, map[string]string{
		"level":   "platoon",
		"platoon": platoon,
		"week":    st.Week,
	})
	view, err := query.Get(ctx, d.cache, key, func(ctx context.Context) (*sdk.PlatoonIntelView, error) {
		payload, err := retryTransient(ctx, func(ctx context.Context) (map[string]any, error) {
			return d.client.PlatoonIntelligence(ctx, platoon, st.Week)
		})
		if err != nil {
			return nil, err
		}
		return sdk.MapPlatoonIntel(payload)
	}, options(query.ResourceIntelligence))
	d.report("Platoon intelligence", err)
	return view, err
}

// BattalionIntel reads the battalion readiness intelligence.
func (d *Dashboard) BattalionIntel(ctx context.Context) (*sdk.BattalionIntelView, error) {
	st := d.store.State()
	key := query.NewKey(d.scopeOf(st), query.ResourceIntelligence, map[string]string{
		"level": "battalion",
		"week":  st.Week,
	})
	view, err := query.Get(ctx, d.cache, key, func(ctx context.Context) (*sdk.BattalionIntelView, error) {
		payload, err := retryTransient(ctx, func(ctx context.Context) (map[string]any, error) {
			return d.client.BattalionIntelligence(ctx, st.Week)
		})
		if err != nil {
			return nil, err
		}
		return sdk.MapBattalionIntel(payload)
	}, options(query.ResourceIntelligence))
	d.report("Battalion intelligence", err)
	return view, err
}

// TankScore reads the readiness score of one tank.
func (d *Dashboard) TankScore(ctx context.Context, tankID string) (*sdk.TankScoreView, error) {
	if tankID == "" {
		return nil, fmt.Errorf("tank ID is required")
	}
	st := d.store.State()
	key := query.NewKey(d.scopeOf(st), query.ResourceTankMetrics, map[string]string{
		"tank": tankID,
		"week": st.Week,
	})
	view, err := query.Get(ctx, d.cache, key, func(ctx context.Context) (*sdk.TankScoreView, error) {
		payload, err := d.client.TankIntelligence(ctx, tankID, st.Week)
		if err != nil {
			return nil, err
		}
		return sdk.MapTankScore(payload)
	}, options(query.ResourceTankMetrics))
	d.report("Tank score", err)
	return view, err
}

// retryTransient retries fn up to intelRetries times after a network
// failure, 429 or 5xx. A 403 stops immediately and for good; so do auth
// loss and cancellation.
func retryTransient[T any](ctx context.Context, fn func(context.Context) (T, error)) (T, error) {
	delay := intelBackoff
	for attempt := 0; ; attempt++ {
		v, err := fn(ctx)
		if err == nil || attempt == intelRetries || !transient(err) {
			return v, err
		}

		select {
		case <-ctx.Done():
			var zero T
			return zero, fmt.Errorf("intelligence retry: %w", sdk.ErrAborted)
		case <-time.After(delay):
		}
		delay *= 2
	}
}

func transient(err error) bool {
	if sdk.IsAborted(err) || sdk.IsAuthError(err) {
		return false
	}
	if sdk.IsNetworkError(err) {
		return true
	}
	status := sdk.StatusOf(err)
	return status == http.StatusTooManyRequests || status >= 500
}
