package landing_test

import (
	"context"
	"io"
	"log"
	"net/http"
	"net/url"
	"testing"
	"time"

	"github.com/ShakedSchnarch/spearhead/pkg/sdk/landing"
	"github.com/ShakedSchnarch/spearhead/pkg/sdk/session"
	"github.com/ShakedSchnarch/spearhead/pkg/sdk/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func address(t *testing.T, raw string) *landing.MemoryAddress {
	t.Helper()
	addr, err := landing.NewMemoryAddress(raw)
	require.NoError(t, err)
	return addr
}

func TestConsume(t *testing.T) {
	tests := []struct {
		name    string
		address string
		want    *landing.Payload
	}{
		{
			name:    "token and platoon",
			address: "https://spearhead.example.com/?token=abc&session=s-1&email=a%40idf.example&platoon=%D7%9B%D7%A4%D7%99%D7%A8",
			want:    &landing.Payload{Token: "abc", Session: "s-1", Email: "a@idf.example", Platoon: "כפיר", ViewMode: session.ViewPlatoon},
		},
		{
			name:    "platoon override alias",
			address: "https://spearhead.example.com/?token=abc&platoon_override=%D7%A1%D7%95%D7%A4%D7%94",
			want:    &landing.Payload{Token: "abc", Platoon: "סופה", ViewMode: session.ViewPlatoon},
		},
		{
			name:    "token only defaults to battalion",
			address: "https://spearhead.example.com/?token=abc",
			want:    &landing.Payload{Token: "abc", ViewMode: session.ViewBattalion},
		},
		{
			name:    "explicit view mode wins",
			address: "https://spearhead.example.com/?email=a%40idf.example&platoon=%D7%9E%D7%97%D7%A5&viewMode=battalion",
			want:    &landing.Payload{Email: "a@idf.example", Platoon: "מחץ", ViewMode: session.ViewBattalion},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			addr := address(t, tt.address)
			var applied []landing.Payload

			got := landing.NewParser(addr).Consume(func(p landing.Payload) {
				applied = append(applied, p)
			})

			require.NotNil(t, got)
			assert.Equal(t, *tt.want, *got)
			assert.Equal(t, []landing.Payload{*tt.want}, applied)
			assert.Equal(t, "https://spearhead.example.com/", addr.String())
		})
	}
}

func TestConsume_SecondCallIsNoop(t *testing.T) {
	addr := address(t, "https://spearhead.example.com/dashboard?token=abc&platoon=%D7%9B%D7%A4%D7%99%D7%A8")
	parser := landing.NewParser(addr)
	calls := 0
	apply := func(landing.Payload) { calls++ }

	require.NotNil(t, parser.Consume(apply))
	assert.Nil(t, parser.Consume(apply))
	assert.Equal(t, 1, calls)
	assert.Equal(t, "https://spearhead.example.com/dashboard", addr.String())
}

func TestConsume_NoLandingParameters(t *testing.T) {
	raw := "https://spearhead.example.com/?session=s-1&viewMode=platoon&tab=trends"
	addr := address(t, raw)
	calls := 0

	assert.Nil(t, landing.NewParser(addr).Consume(func(landing.Payload) { calls++ }))
	assert.Zero(t, calls)
	assert.Equal(t, raw, addr.String(), "the address is not rewritten")
}

func TestLoginURL(t *testing.T) {
	got, err := landing.LoginURL("https://spearhead.example.com/api", "", "http://127.0.0.1:4567/callback")
	require.NoError(t, err)

	u, err := url.Parse(got)
	require.NoError(t, err)
	assert.Equal(t, "/api/auth/login", u.Path)
	assert.Equal(t, "http://127.0.0.1:4567/callback", u.Query().Get("redirect_uri"))
}

func TestAuthenticate_AppliesCallback(t *testing.T) {
	store := session.New(context.Background(), storage.NewMemory(), session.WithLogger(log.New(io.Discard, "", 0)))

	// Stands in for the browser: follow the login URL's redirect_uri with landing parameters.
	open := func(loginURL string) {
		u, err := url.Parse(loginURL)
		if !assert.NoError(t, err) {
			return
		}
		callback, err := url.Parse(u.Query().Get("redirect_uri"))
		if !assert.NoError(t, err) {
			return
		}
		callback.RawQuery = url.Values{"token": {"abc"}, "email": {"a@idf.example"}, "platoon": {"כפיר"}}.Encode()
		go func() {
			resp, err := http.Get(callback.String())
			if err == nil {
				resp.Body.Close()
			}
		}()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	payload, err := landing.Authenticate(ctx, store, landing.AuthOptions{APIBase: "https://spearhead.example.com/api", Open: open})
	require.NoError(t, err)
	assert.Equal(t, "abc", payload.Token)

	st := store.State()
	assert.Equal(t, session.PhaseAuthenticated, st.Phase)
	assert.Equal(t, "abc", st.Token)
	assert.Equal(t, "כפיר", st.Platoon)
	assert.Equal(t, session.ViewPlatoon, st.ViewMode)
}

func TestAuthenticate_TimeoutReturnsToAnonymous(t *testing.T) {
	store := session.New(context.Background(), storage.NewMemory(), session.WithLogger(log.New(io.Discard, "", 0)))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := landing.Authenticate(ctx, store, landing.AuthOptions{APIBase: "https://spearhead.example.com/api", Open: func(string) {}})
	require.Error(t, err)
	assert.Equal(t, session.PhaseAnonymous, store.State().Phase)
}
