package query_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ShakedSchnarch/spearhead/pkg/sdk"
	"github.com/ShakedSchnarch/spearhead/pkg/sdk/query"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func weekKey(week string) query.Key {
	return query.NewKey(testScope, query.ResourceCoverage, map[string]string{"week": week})
}

func constant(v string) func(context.Context) (string, error) {
	return func(ctx context.Context) (string, error) {
		return v, nil
	}
}

func TestObserver_UseFetchesInBackground(t *testing.T) {
	obs := query.NewObserver[string](context.Background(), query.New(), query.ObserverOptions{StaleTime: time.Minute})
	defer obs.Close()

	res := obs.Use(query.Query[string]{Key: weekKey("2026-W05"), Fetch: constant("w05"), Enabled: true})
	assert.True(t, res.IsFetching)
	assert.False(t, res.HasData)

	res = obs.Wait(context.Background())
	require.True(t, res.HasData)
	assert.Equal(t, "w05", res.Data)
	assert.False(t, res.IsFetching)
	assert.NoError(t, res.Err)
}

func TestObserver_DisabledKeepsPriorData(t *testing.T) {
	obs := query.NewObserver[string](context.Background(), query.New(), query.ObserverOptions{StaleTime: time.Minute})
	defer obs.Close()

	obs.Use(query.Query[string]{Key: weekKey("2026-W05"), Fetch: constant("w05"), Enabled: true})
	obs.Wait(context.Background())

	var calls atomic.Int32
	res := obs.Use(query.Query[string]{
		Key: query.NewKey(testScope, query.ResourceIntelligence, nil),
		Fetch: func(ctx context.Context) (string, error) {
			calls.Add(1)
			return "never", nil
		},
		Enabled: false,
	})
	assert.False(t, res.IsFetching)
	assert.Equal(t, "w05", res.Data)
	assert.Equal(t, int32(0), calls.Load())
}

func TestObserver_KeepPreviousData(t *testing.T) {
	obs := query.NewObserver[string](context.Background(), query.New(), query.ObserverOptions{
		StaleTime:        time.Minute,
		KeepPreviousData: true,
	})
	defer obs.Close()

	obs.Use(query.Query[string]{Key: weekKey("2026-W05"), Fetch: constant("w05"), Enabled: true})
	obs.Wait(context.Background())

	release := make(chan struct{})
	res := obs.Use(query.Query[string]{
		Key: weekKey("2026-W06"),
		Fetch: func(ctx context.Context) (string, error) {
			<-release
			return "w06", nil
		},
		Enabled: true,
	})
	assert.True(t, res.IsFetching)
	assert.True(t, res.IsPreviousData)
	assert.Equal(t, "w05", res.Data)

	close(release)
	res = obs.Wait(context.Background())
	assert.False(t, res.IsPreviousData)
	assert.Equal(t, "w06", res.Data)
}

func TestObserver_KeepPreviousDataOnFailure(t *testing.T) {
	obs := query.NewObserver[string](context.Background(), query.New(), query.ObserverOptions{KeepPreviousData: true})
	defer obs.Close()

	obs.Use(query.Query[string]{Key: weekKey("2026-W05"), Fetch: constant("w05"), Enabled: true})
	obs.Wait(context.Background())

	obs.Use(query.Query[string]{
		Key: weekKey("2026-W06"),
		Fetch: func(ctx context.Context) (string, error) {
			return "", &sdk.APIError{Status: 500}
		},
		Enabled: true,
	})
	res := obs.Wait(context.Background())
	assert.Equal(t, "w05", res.Data)
	assert.Equal(t, 500, sdk.StatusOf(res.Err))
}

func TestObserver_KeyChangeCancelsSupersededRequest(t *testing.T) {
	obs := query.NewObserver[string](context.Background(), query.New(), query.ObserverOptions{StaleTime: time.Minute})
	defer obs.Close()

	var canceled atomic.Bool
	started := make(chan struct{})
	obs.Use(query.Query[string]{
		Key: weekKey("2026-W05"),
		Fetch: func(ctx context.Context) (string, error) {
			close(started)
			<-ctx.Done()
			canceled.Store(true)
			return "", ctx.Err()
		},
		Enabled: true,
	})
	<-started

	obs.Use(query.Query[string]{Key: weekKey("2026-W06"), Fetch: constant("w06"), Enabled: true})
	res := obs.Wait(context.Background())

	assert.Equal(t, "w06", res.Data)
	assert.NoError(t, res.Err, "an aborted request is never surfaced")
	require.Eventually(t, canceled.Load, time.Second, 5*time.Millisecond)
}

func TestObserver_RefetchInterval(t *testing.T) {
	var calls atomic.Int32
	obs := query.NewObserver[string](context.Background(), query.New(), query.ObserverOptions{
		StaleTime:       time.Hour,
		RefetchInterval: 10 * time.Millisecond,
	})
	defer obs.Close()

	obs.Use(query.Query[string]{
		Key: query.NewKey(testScope, query.ResourceSyncStatus, nil),
		Fetch: func(ctx context.Context) (string, error) {
			calls.Add(1)
			return "status", nil
		},
		Enabled: true,
	})

	require.Eventually(t, func() bool { return calls.Load() >= 3 }, time.Second, 5*time.Millisecond)
}

func TestObserver_RefetchBypassesStaleTime(t *testing.T) {
	var calls atomic.Int32
	obs := query.NewObserver[string](context.Background(), query.New(), query.ObserverOptions{StaleTime: time.Hour})
	defer obs.Close()

	obs.Use(query.Query[string]{
		Key: query.NewKey(testScope, query.ResourceHealth, nil),
		Fetch: func(ctx context.Context) (string, error) {
			calls.Add(1)
			return "ok", nil
		},
		Enabled: true,
	})
	obs.Wait(context.Background())

	res := obs.Refetch(context.Background())
	assert.Equal(t, "ok", res.Data)
	assert.Equal(t, int32(2), calls.Load())
}

func TestObserver_InvalidateRetriesFailedKey(t *testing.T) {
	cache := query.New()
	obs := query.NewObserver[string](context.Background(), cache, query.ObserverOptions{StaleTime: time.Minute})
	defer obs.Close()

	var calls atomic.Int32
	q := query.Query[string]{
		Key: weekKey("2026-W05"),
		Fetch: func(ctx context.Context) (string, error) {
			if calls.Add(1) == 1 {
				return "", &sdk.APIError{Status: 502}
			}
			return "w05", nil
		},
		Enabled: true,
	}

	obs.Use(q)
	res := obs.Wait(context.Background())
	require.Error(t, res.Err)

	res = obs.Use(q)
	assert.False(t, res.IsFetching, "a failed key is not retried on every read")
	assert.Equal(t, int32(1), calls.Load())

	cache.Invalidate(query.Match(testScope, query.ResourceCoverage))

	res = obs.Use(q)
	assert.True(t, res.IsFetching)
	res = obs.Wait(context.Background())
	assert.NoError(t, res.Err)
	require.True(t, res.HasData)
	assert.Equal(t, "w05", res.Data)
	assert.Equal(t, int32(2), calls.Load())
}
