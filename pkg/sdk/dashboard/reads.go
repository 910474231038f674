package dashboard

import (
	"context"
	"strconv"

	"github.com/ShakedSchnarch/spearhead/pkg/sdk"
	"github.com/ShakedSchnarch/spearhead/pkg/sdk/query"
	"github.com/ShakedSchnarch/spearhead/pkg/sdk/session"
)

// Backend status shown in the header.
const (
	StatusOnline  = "online"
	StatusOffline = "offline"
)

// HealthStatus is the displayed backend status.
type HealthStatus struct {
	Status  string
	Version string
}

// Health probes the backend. An unreachable backend is reported as
// offline without an error.
func (d *Dashboard) Health(ctx context.Context) (HealthStatus, error) {
	key := query.NewKey(d.Scope(), query.ResourceHealth, nil)
	health, err := query.Get(ctx, d.cache, key, d.client.Health, options(query.ResourceHealth))
	if err != nil {
		d.report("Health check", err)
		if sdk.IsBenign(err) {
			return HealthStatus{Status: StatusOffline}, nil
		}
		return HealthStatus{Status: StatusOffline}, err
	}
	return HealthStatus{Status: StatusOnline, Version: health.Version}, nil
}

// SyncStatus reads the synchronization status.
func (d *Dashboard) SyncStatus(ctx context.Context) (*sdk.SyncStatus, error) {
	status, err := query.Get(ctx, d.cache, d.syncStatusKey(), d.client.SyncStatus, options(query.ResourceSyncStatus))
	d.report("Sync status", err)
	return status, err
}

// WatchSyncStatus calls fn with the sync status every time it is
// refreshed in the background, until the returned func is called.
func (d *Dashboard) WatchSyncStatus(ctx context.Context, fn func(query.Result[*sdk.SyncStatus])) func() {
	obs := query.NewObserver[*sdk.SyncStatus](ctx, d.cache, query.ObserverOptions{
		StaleTime:        query.StaleTimeFor(query.ResourceSyncStatus),
		KeepPreviousData: true,
		RefetchInterval:  query.SyncStatusRefetchInterval,
	})
	unsubscribe := obs.Subscribe(fn)
	obs.Use(query.Query[*sdk.SyncStatus]{Key: d.syncStatusKey(), Fetch: d.client.SyncStatus, Enabled: true})

	return func() {
		unsubscribe()
		obs.Close()
	}
}

// Summary reads the forms summary for the current view mode.
func (d *Dashboard) Summary(ctx context.Context) (*sdk.FormsSummary, error) {
	st := d.store.State()
	input := sdk.FormsSummaryInput{Mode: sdk.SummaryBattalion, Week: st.Week}
	if st.ViewMode == session.ViewPlatoon {
		if st.Platoon == "" {
			return nil, ErrPlatoonRequired
		}
		input.Mode = sdk.SummaryPlatoon
		input.Platoon = st.Platoon
	}

	key := query.NewKey(d.scopeOf(st), query.ResourceSummary, map[string]string{
		"mode":    string(input.Mode),
		"week":    input.Week,
		"platoon": input.Platoon,
	})
	summary, err := query.Get(ctx, d.cache, key, func(ctx context.Context) (*sdk.FormsSummary, error) {
		return d.client.FormsSummary(ctx, input)
	}, options(query.ResourceSummary))
	d.report("Summary", err)
	return summary, err
}

// Coverage reads weekly reporting coverage. When no week is selected the
// week the backend answered for becomes the selected week.
func (d *Dashboard) Coverage(ctx context.Context) (*sdk.Coverage, error) {
	st := d.store.State()
	key := query.NewKey(d.scopeOf(st), query.ResourceCoverage, map[string]string{"week": st.Week})
	coverage, err := query.Get(ctx, d.cache, key, func(ctx context.Context) (*sdk.Coverage, error) {
		return d.client.FormsCoverage(ctx, st.Week)
	}, options(query.ResourceCoverage))
	if err != nil {
		d.report("Coverage", err)
		return nil, err
	}

	if st.Week == "" && coverage.Week != "" {
		if err := d.store.Update(ctx, session.SetWeek(coverage.Week)); err != nil {
			d.logger.Printf("backfill week %s: %v", coverage.Week, err)
		}
	}
	return coverage, nil
}

// Bundle sub-resource names.
const (
	SubTotals      = "totals"
	SubGaps        = "gaps"
	SubDelta       = "delta"
	SubVariance    = "variance"
	SubTrends      = "trends"
	SubInsights    = "insights"
	SubFormsStatus = "forms-status"
)

// TabularView is the merged result of the tabular bundle. A sub-resource
// that failed is nil and its error is in Errors.
type TabularView struct {
	Totals      []sdk.Row
	Gaps        []sdk.Row
	Delta       []sdk.Row
	Variance    []sdk.Row
	Trends      []sdk.Row
	Insights    *sdk.Insights
	FormsStatus *sdk.FormsStatus
	Errors      map[string]error
}

// Tabular fetches the seven dashboard tables concurrently. Losing the
// session in any of them fails the whole bundle.
func (d *Dashboard) Tabular(ctx context.Context) (*TabularView, error) {
	st := d.store.State()
	scope := d.queryScope(st)

	key := query.NewKey(d.scopeOf(st), query.ResourceTabularBundle, map[string]string{
		"section": scope.Section,
		"top_n":   strconv.Itoa(scope.TopN),
		"platoon": scope.Platoon,
		"week":    scope.Week,
	})
	view, err := query.Get(ctx, d.cache, key, func(ctx context.Context) (*TabularView, error) {
		result, err := query.FetchBundle(ctx, d.bundleFetchers(scope))
		if err != nil {
			return nil, err
		}
		return tabularView(result), nil
	}, options(query.ResourceTabularBundle))
	d.report("Dashboard tables", err)
	return view, err
}

func (d *Dashboard) bundleFetchers(scope sdk.QueryScope) map[string]query.Fetcher {
	fetchers := make(map[string]query.Fetcher, 7)
	for _, kind := range sdk.TabularKinds {
		fetchers[string(kind)] = func(ctx context.Context) (any, error) {
			return d.client.Tabular(ctx, kind, scope)
		}
	}
	fetchers[SubTrends] = func(ctx context.Context) (any, error) {
		return d.client.Trends(ctx, scope)
	}
	fetchers[SubInsights] = func(ctx context.Context) (any, error) {
		return d.client.Insights(ctx, scope)
	}
	fetchers[SubFormsStatus] = func(ctx context.Context) (any, error) {
		return d.client.FormsStatus(ctx)
	}
	return fetchers
}

func tabularView(result *query.BundleResult) *TabularView {
	view := &TabularView{Errors: result.Errors}
	view.Totals, _ = query.BundleValue[[]sdk.Row](result, SubTotals)
	view.Gaps, _ = query.BundleValue[[]sdk.Row](result, SubGaps)
	view.Delta, _ = query.BundleValue[[]sdk.Row](result, SubDelta)
	view.Variance, _ = query.BundleValue[[]sdk.Row](result, SubVariance)
	view.Trends, _ = query.BundleValue[[]sdk.Row](result, SubTrends)
	view.Insights, _ = query.BundleValue[*sdk.Insights](result, SubInsights)
	view.FormsStatus, _ = query.BundleValue[*sdk.FormsStatus](result, SubFormsStatus)
	return view
}

// queryScope resolves the shared table filters from the current state.
func (d *Dashboard) queryScope(st session.State) sdk.QueryScope {
	scope := sdk.QueryScope{Section: st.Section, TopN: st.TopN, Week: st.Week}
	if st.ViewMode == session.ViewPlatoon {
		scope.Platoon = st.Platoon
	}
	return scope
}

func (d *Dashboard) syncStatusKey() query.Key {
	return query.NewKey(d.Scope(), query.ResourceSyncStatus, nil)
}

func options(resource string) query.Options {
	return query.Options{StaleTime: query.StaleTimeFor(resource)}
}
