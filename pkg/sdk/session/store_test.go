package session_test

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"strings"
	"testing"
	"time"

	"github.com/ShakedSchnarch/spearhead/pkg/sdk/notify"
	"github.com/ShakedSchnarch/spearhead/pkg/sdk/session"
	"github.com/ShakedSchnarch/spearhead/pkg/sdk/storage"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStore(t *testing.T, backend storage.Backend, opts ...session.Option) *session.Store {
	t.Helper()
	opts = append([]session.Option{session.WithLogger(log.New(io.Discard, "", 0))}, opts...)
	return session.New(context.Background(), backend, opts...)
}

func storedPreferences(t *testing.T, backend storage.Backend) map[string]any {
	t.Helper()
	data, err := backend.Get(context.Background(), session.StorageKey)
	require.NoError(t, err)
	var out map[string]any
	require.NoError(t, json.Unmarshal(data, &out))
	return out
}

func TestNew_Defaults(t *testing.T) {
	store := newStore(t, storage.NewMemory())
	st := store.State()

	assert.Equal(t, session.DefaultTopN, st.TopN)
	assert.Equal(t, session.ViewBattalion, st.ViewMode)
	assert.Equal(t, session.PhaseAnonymous, st.Phase)
	assert.Nil(t, st.User)
	assert.True(t, store.Credentials().IsAnonymous())
}

func TestNew_DiscardsUnreadablePreferences(t *testing.T) {
	tests := []struct {
		name   string
		stored string
	}{
		{name: "not json", stored: "{{{"},
		{name: "wrong types", stored: `{"topN":"many","week":12}`},
		{name: "array", stored: `[1,2,3]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			backend := storage.NewMemory()
			require.NoError(t, backend.Put(context.Background(), session.StorageKey, []byte(tt.stored)))

			st := newStore(t, backend).State()
			assert.Equal(t, session.DefaultPreferences(), st.Preferences)
		})
	}
}

func TestNew_LoadsStoredPreferences(t *testing.T) {
	backend := storage.NewMemory()
	require.NoError(t, backend.Put(context.Background(), session.StorageKey,
		[]byte(`{"apiBase":"https://spearhead.example.com/api","section":"armament","topN":8,"week":"2026-W04","viewMode":"platoon"}`)))

	st := newStore(t, backend).State()
	assert.Equal(t, "https://spearhead.example.com/api", st.APIBase)
	assert.Equal(t, "armament", st.Section)
	assert.Equal(t, 8, st.TopN)
	assert.Equal(t, "2026-W04", st.Week)
	assert.Equal(t, session.ViewPlatoon, st.ViewMode)
}

func TestUpdate_TopNNormalization(t *testing.T) {
	tests := []struct {
		name   string
		change session.Change
		want   int
	}{
		{name: "negative", change: session.SetTopN("-5"), want: 5},
		{name: "not a number", change: session.SetTopN("abc"), want: 5},
		{name: "zero", change: session.SetTopN("0"), want: 5},
		{name: "empty", change: session.SetTopN(""), want: 5},
		{name: "valid", change: session.SetTopN("12"), want: 12},
		{name: "fraction", change: session.SetTopN(" 7.9 "), want: 7},
		{name: "value", change: session.SetTopNValue(-1), want: 5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			backend := storage.NewMemory()
			store := newStore(t, backend)

			require.NoError(t, store.Update(context.Background(), tt.change))
			assert.Equal(t, tt.want, store.State().TopN)
			assert.Equal(t, float64(tt.want), storedPreferences(t, backend)["topN"])
		})
	}
}

func TestUpdate_RawPreferenceChangeCannotStoreInvalidTopN(t *testing.T) {
	backend := storage.NewMemory()
	store := newStore(t, backend)

	raw := session.PreferenceChange(func(p *session.Preferences) { p.TopN = -3 })
	require.NoError(t, store.Update(context.Background(), raw))
	assert.Equal(t, session.DefaultTopN, store.State().TopN)
	assert.Equal(t, float64(session.DefaultTopN), storedPreferences(t, backend)["topN"])

	require.NoError(t, store.Update(context.Background(), session.SetTopNValue(9)))
	require.NoError(t, store.Update(context.Background(), session.SetSection("armament")))
	assert.Equal(t, 9, store.State().TopN)
}

func TestUpdate_SessionChangesAreNotPersisted(t *testing.T) {
	backend := storage.NewMemory()
	store := newStore(t, backend)

	require.NoError(t, store.Update(context.Background(), session.SetActiveTab("trends"), session.SetPlatoon("כפיר")))

	_, err := backend.Get(context.Background(), session.StorageKey)
	assert.ErrorIs(t, err, storage.ErrNotFound)
	assert.Equal(t, "trends", store.State().ActiveTab)
	assert.Equal(t, "כפיר", store.State().Platoon)
}

func TestUpdate_NeverPersistsSecrets(t *testing.T) {
	backend := storage.NewMemory()
	store := newStore(t, backend)
	ctx := context.Background()

	require.NoError(t, store.Login(ctx, session.LoginPayload{Token: "abc", OAuthSession: "sess-1", Email: "a@idf.example", Platoon: "כפיר"}))
	require.NoError(t, store.Update(ctx, session.SetSection("armament"), session.SetWeek("2026-W05"), session.SetActiveTab("trends")))

	data, err := backend.Get(ctx, session.StorageKey)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "abc")
	assert.NotContains(t, string(data), "sess-1")
	assert.NotContains(t, string(data), "a@idf.example")

	keys := make([]string, 0)
	for k := range storedPreferences(t, backend) {
		keys = append(keys, k)
	}
	assert.ElementsMatch(t, []string{"apiBase", "section", "topN", "week", "viewMode"}, keys)
}

func TestLogin_PlatoonSelectsPlatoonView(t *testing.T) {
	store := newStore(t, storage.NewMemory())

	var events int
	store.Subscribe(func(prev, next session.State) { events++ })

	require.NoError(t, store.Login(context.Background(), session.LoginPayload{Token: "abc", Platoon: "כפיר"}))

	st := store.State()
	assert.Equal(t, session.ViewPlatoon, st.ViewMode)
	assert.Equal(t, "כפיר", st.Platoon)
	require.NotNil(t, st.User)
	assert.Equal(t, "כפיר", st.User.Platoon)
	assert.True(t, st.Restricted())
	assert.Equal(t, session.TabDashboard, st.ActiveTab)
	assert.Equal(t, session.PhaseAuthenticated, st.Phase)
	assert.Equal(t, "abc", store.Credentials().AccessToken)
	assert.Equal(t, 1, events)
}

func TestLogin_FallsBackToExistingValues(t *testing.T) {
	store := newStore(t, storage.NewMemory())
	ctx := context.Background()

	require.NoError(t, store.Update(ctx, session.SetViewMode(session.ViewPlatoon), session.SetPlatoon("סופה")))
	require.NoError(t, store.Login(ctx, session.LoginPayload{Token: "t-2", Email: "cmd@idf.example"}))

	st := store.State()
	assert.Equal(t, "סופה", st.Platoon)
	assert.Equal(t, session.ViewPlatoon, st.ViewMode)
	assert.False(t, st.Restricted())
}

func TestLogout_KeepsPreferencesAcrossReload(t *testing.T) {
	backend := storage.NewMemory()
	store := newStore(t, backend)
	ctx := context.Background()

	require.NoError(t, store.Update(ctx,
		session.SetAPIBase("https://spearhead.example.com/api/"),
		session.SetSection("communication"),
		session.SetWeek("2026-W05"),
	))
	require.NoError(t, store.Login(ctx, session.LoginPayload{Token: "abc", Platoon: "כפיר", Email: "a@idf.example"}))
	require.NoError(t, store.Update(ctx, session.SetActiveTab("trends")))
	require.NoError(t, store.Logout(ctx))

	st := store.State()
	assert.Nil(t, st.User)
	assert.Empty(t, st.Token)
	assert.Empty(t, st.OAuthSession)
	assert.Empty(t, st.Platoon)
	assert.Equal(t, session.ViewBattalion, st.ViewMode)
	assert.Equal(t, "trends", st.ActiveTab)
	assert.Equal(t, session.PhaseAnonymous, st.Phase)

	reloaded := newStore(t, backend).State()
	assert.Equal(t, "https://spearhead.example.com/api", reloaded.APIBase)
	assert.Equal(t, "communication", reloaded.Section)
	assert.Equal(t, "2026-W05", reloaded.Week)
	assert.Empty(t, reloaded.Token)
}

func TestHandleUnauthorized_RaisesBanner(t *testing.T) {
	center := notify.NewCenter()
	store := newStore(t, storage.NewMemory(), session.WithNotices(center))
	ctx := context.Background()

	require.NoError(t, store.Login(ctx, session.LoginPayload{Token: "abc"}))
	store.HandleUnauthorized()

	assert.True(t, store.Credentials().IsAnonymous())
	assert.Equal(t, session.PhaseAnonymous, store.State().Phase)

	active := center.Active()
	require.Len(t, active, 1)
	assert.True(t, active[0].Persistent)
	assert.False(t, center.Dismiss(active[0].ID))

	require.NoError(t, store.Login(ctx, session.LoginPayload{Token: "def"}))
	assert.Empty(t, center.Active(), "a new login clears the banner")
}

func TestPhaseTransitions(t *testing.T) {
	store := newStore(t, storage.NewMemory())
	ctx := context.Background()

	require.NoError(t, store.BeginAuthentication())
	assert.Equal(t, session.PhaseAuthenticating, store.State().Phase)
	assert.ErrorIs(t, store.BeginAuthentication(), session.ErrInvalidTransition)

	store.CancelAuthentication()
	assert.Equal(t, session.PhaseAnonymous, store.State().Phase)

	require.NoError(t, store.BeginAuthentication())
	require.NoError(t, store.Login(ctx, session.LoginPayload{Token: "abc"}))
	assert.Equal(t, session.PhaseAuthenticated, store.State().Phase)
	assert.ErrorIs(t, store.BeginAuthentication(), session.ErrInvalidTransition)
}

func TestReload_PicksUpExternalChange(t *testing.T) {
	backend := storage.NewMemory()
	store := newStore(t, backend)
	ctx := context.Background()

	var changed bool
	store.Subscribe(func(prev, next session.State) {
		changed = prev.Week != next.Week
	})

	require.NoError(t, backend.Put(ctx, session.StorageKey, []byte(`{"week":"2026-W07","topN":3}`)))
	store.Reload(ctx)

	assert.True(t, changed)
	assert.Equal(t, "2026-W07", store.State().Week)
	assert.Equal(t, 3, store.State().TopN)
}

func TestTokenExpiry(t *testing.T) {
	exp := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "a@idf.example",
		"exp": exp.Unix(),
	}).SignedString([]byte("test-secret"))
	require.NoError(t, err)

	got, ok := session.Session{Token: token}.TokenExpiry()
	require.True(t, ok)
	assert.True(t, exp.Equal(got))

	_, ok = session.Session{Token: "opaque-token"}.TokenExpiry()
	assert.False(t, ok)

	_, ok = session.Session{Token: strings.Repeat("x", 3)}.TokenExpiry()
	assert.False(t, ok)
}
