package query_test

import (
	"context"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ShakedSchnarch/spearhead/pkg/sdk"
	"github.com/ShakedSchnarch/spearhead/pkg/sdk/query"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBundleClient(t *testing.T, handler http.HandlerFunc, unauthorized *atomic.Int32) *sdk.Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := sdk.NewClient(sdk.Config{BaseURL: server.URL},
		sdk.WithUnauthorizedHandler(func() { unauthorized.Add(1) }),
		sdk.WithLogger(log.New(io.Discard, "", 0)),
	)
	require.NoError(t, err)
	return client
}

func dashboardBundle(client *sdk.Client, scope sdk.QueryScope) map[string]query.Fetcher {
	fetchers := make(map[string]query.Fetcher, 7)
	for _, kind := range sdk.TabularKinds {
		fetchers[string(kind)] = func(ctx context.Context) (any, error) {
			return client.Tabular(ctx, kind, scope)
		}
	}
	fetchers["trends"] = func(ctx context.Context) (any, error) {
		return client.Trends(ctx, scope)
	}
	fetchers["insights"] = func(ctx context.Context) (any, error) {
		return client.Insights(ctx, scope)
	}
	fetchers["forms-status"] = func(ctx context.Context) (any, error) {
		return client.FormsStatus(ctx)
	}
	return fetchers
}

func TestFetchBundle_AuthLossShortCircuits(t *testing.T) {
	var unauthorized atomic.Int32
	client := newBundleClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/queries/tabular/delta" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"detail":"token expired"}`))
			return
		}
		select {
		case <-time.After(2 * time.Second):
		case <-r.Context().Done():
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[]`))
	}, &unauthorized)

	fetchers := dashboardBundle(client, sdk.QueryScope{Section: "armament", TopN: 5})
	require.Len(t, fetchers, 7)

	start := time.Now()
	result, err := query.FetchBundle(context.Background(), fetchers)

	require.Error(t, err)
	assert.Nil(t, result)
	assert.True(t, sdk.IsAuthError(err))
	assert.Equal(t, int32(1), unauthorized.Load())
	assert.Less(t, time.Since(start), time.Second, "the bundle must not wait for the other sub-requests")
}

func TestFetchBundle_OtherFailuresStayPerField(t *testing.T) {
	var unauthorized atomic.Int32
	client := newBundleClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/insights":
			w.WriteHeader(http.StatusBadGateway)
			_, _ = w.Write([]byte(`{"detail":"model unavailable"}`))
		case "/queries/forms/status":
			_, _ = w.Write([]byte(`{"ok":[{"tank":"צ-101"}],"gaps":[]}`))
		default:
			_, _ = w.Write([]byte(`[{"item":"optics","count":3}]`))
		}
	}, &unauthorized)

	result, err := query.FetchBundle(context.Background(), dashboardBundle(client, sdk.QueryScope{Section: "armament"}))
	require.NoError(t, err)

	assert.Len(t, result.Data, 6)
	require.Error(t, result.Err("insights"))
	assert.Equal(t, 502, sdk.StatusOf(result.Err("insights")))

	totals, ok := query.BundleValue[[]sdk.Row](result, "totals")
	require.True(t, ok)
	assert.Equal(t, "optics", totals[0]["item"])

	status, ok := query.BundleValue[*sdk.FormsStatus](result, "forms-status")
	require.True(t, ok)
	assert.Len(t, status.OK, 1)
	assert.Equal(t, int32(0), unauthorized.Load())
}

func TestFetchBundle_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := query.FetchBundle(ctx, map[string]query.Fetcher{
		"totals": func(ctx context.Context) (any, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		},
	})
	assert.True(t, sdk.IsAborted(err))
}
