package sdk_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ShakedSchnarch/spearhead/pkg/sdk"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type roundTripperFunc func(*http.Request) (*http.Response, error)

func (fn roundTripperFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return fn(req)
}

// newSDKClient routes requests straight into handler without a network listener.
func newSDKClient(t *testing.T, handler http.Handler, optFns ...sdk.ClientOption) *sdk.Client {
	t.Helper()
	transport := roundTripperFunc(func(req *http.Request) (*http.Response, error) {
		recorder := httptest.NewRecorder()
		handler.ServeHTTP(recorder, req)
		resp := recorder.Result()
		resp.Request = req
		return resp, nil
	})

	opts := append([]sdk.ClientOption{
		sdk.WithHTTPClient(&http.Client{Transport: transport}),
		sdk.WithLogger(discardLogger()),
	}, optFns...)
	client, err := sdk.NewClient(sdk.Config{BaseURL: "http://example.com/api"}, opts...)
	require.NoError(t, err)
	return client
}

func TestNewClient_RequiresValidBaseURL(t *testing.T) {
	_, err := sdk.NewClient(sdk.Config{})
	assert.Error(t, err)

	_, err = sdk.NewClient(sdk.Config{BaseURL: "ftp://example.com"})
	assert.Error(t, err)

	client, err := sdk.NewClient(sdk.Config{BaseURL: "https://example.com/api"})
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/api", client.BaseURL())
}

func TestClient_Do_UnauthorizedIsAlwaysAuthError(t *testing.T) {
	bodies := map[string]string{
		"json detail": `{"detail":"token expired"}`,
		"plain text":  "go away",
		"empty":       "",
		"html":        "<html><body>401</body></html>",
	}

	for name, body := range bodies {
		t.Run(name, func(t *testing.T) {
			var calls atomic.Int32
			client := newSDKClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusUnauthorized)
				_, _ = io.WriteString(w, body)
			}), sdk.WithUnauthorizedHandler(func() { calls.Add(1) }))

			_, err := client.Do(context.Background(), "/health", sdk.RequestOptions{})
			require.Error(t, err)

			var authErr *sdk.AuthError
			require.True(t, errors.As(err, &authErr), "expected AuthError, got %T", err)
			assert.Equal(t, http.StatusUnauthorized, authErr.Status)
			assert.True(t, sdk.IsAuthError(err))
			assert.Equal(t, int32(1), calls.Load(), "onUnauthorized must fire exactly once per call")
		})
	}
}

func TestClient_Do_APIErrorDetail(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		body       string
		wantDetail *string
	}{
		{name: "json detail", status: 500, body: `{"detail":"boom"}`, wantDetail: ptr("boom")},
		{name: "text fallback", status: 500, body: "boom", wantDetail: ptr("boom")},
		{name: "json without detail", status: 502, body: `{"error":"bad gateway"}`, wantDetail: ptr(`{"error":"bad gateway"}`)},
		{name: "structured detail", status: 422, body: `{"detail":[{"loc":["week"]}]}`, wantDetail: ptr(`[{"loc":["week"]}]`)},
		{name: "null detail", status: 404, body: `{"detail":null}`, wantDetail: ptr(`{"detail":null}`)},
		{name: "empty body", status: 503, body: "", wantDetail: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls atomic.Int32
			client := newSDKClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = io.WriteString(w, tt.body)
			}), sdk.WithUnauthorizedHandler(func() { calls.Add(1) }))

			_, err := client.Do(context.Background(), "/queries/forms/status", sdk.RequestOptions{})
			require.Error(t, err)

			var apiErr *sdk.APIError
			require.True(t, errors.As(err, &apiErr), "expected APIError, got %T", err)
			assert.Equal(t, tt.status, apiErr.Status)
			assert.Equal(t, tt.wantDetail, apiErr.Detail)
			assert.False(t, sdk.IsAuthError(err))
			assert.Equal(t, int32(0), calls.Load())
		})
	}
}

func TestClient_Do_AuthHeaders(t *testing.T) {
	var creds sdk.Credentials
	var gotAuth, gotSession, gotRequestID string
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotSession = r.Header.Get(sdk.DefaultSessionHeader)
		gotRequestID = r.Header.Get(sdk.RequestIDHeader)
		_, _ = io.WriteString(w, `{"version":"1.4.0"}`)
	})
	client := newSDKClient(t, handler, sdk.WithCredentials(sdk.CredentialFunc(func() sdk.Credentials { return creds })))

	t.Run("anonymous sends no auth headers", func(t *testing.T) {
		health, err := client.Health(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "1.4.0", health.Version)
		assert.Empty(t, gotAuth)
		assert.Empty(t, gotSession)
		assert.NotEmpty(t, gotRequestID)
	})

	t.Run("authenticated sends bearer and session", func(t *testing.T) {
		creds = sdk.Credentials{AccessToken: "abc", SessionID: "sess-1"}
		_, err := client.Health(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "Bearer abc", gotAuth)
		assert.Equal(t, "sess-1", gotSession)
	})

	t.Run("session only", func(t *testing.T) {
		creds = sdk.Credentials{SessionID: "sess-2"}
		_, err := client.Health(context.Background())
		require.NoError(t, err)
		assert.Empty(t, gotAuth)
		assert.Equal(t, "sess-2", gotSession)
	})
}

func TestClient_Do_OmitsEmptyParams(t *testing.T) {
	var gotPath string
	var gotQuery map[string][]string
	client := newSDKClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.Query()
		_, _ = io.WriteString(w, `[]`)
	}))

	_, err := client.Tabular(context.Background(), sdk.TabularGaps, sdk.QueryScope{Section: "armament", TopN: 5})
	require.NoError(t, err)

	assert.Equal(t, "/api/queries/tabular/gaps", gotPath)
	assert.Equal(t, []string{"armament"}, gotQuery["section"])
	assert.Equal(t, []string{"5"}, gotQuery["top_n"])
	assert.NotContains(t, gotQuery, "platoon")
	assert.NotContains(t, gotQuery, "week")
}

func TestClient_Do_NetworkError(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	client, err := sdk.NewClient(sdk.Config{BaseURL: url}, sdk.WithLogger(discardLogger()))
	require.NoError(t, err)

	_, err = client.Health(context.Background())
	require.Error(t, err)
	assert.True(t, sdk.IsNetworkError(err))
	assert.True(t, sdk.IsBenign(err))
}

func TestClient_Do_CanceledIsAborted(t *testing.T) {
	started := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		close(started)
		<-r.Context().Done()
	}))
	defer server.Close()

	client, err := sdk.NewClient(sdk.Config{BaseURL: server.URL}, sdk.WithLogger(discardLogger()))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		<-started
		cancel()
	}()

	_, err = client.Health(ctx)
	require.Error(t, err)
	assert.True(t, sdk.IsAborted(err))
	assert.True(t, sdk.IsBenign(err))
	assert.False(t, sdk.IsNetworkError(err))
}

func TestClient_Do_ResponseTypes(t *testing.T) {
	client := newSDKClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "plain body")
	}))

	resp, err := client.Do(context.Background(), "/anything", sdk.RequestOptions{ResponseType: sdk.ResponseText})
	require.NoError(t, err)
	assert.Equal(t, "plain body", resp.Text())

	resp, err = client.Do(context.Background(), "/anything", sdk.RequestOptions{ResponseType: sdk.ResponseBinary})
	require.NoError(t, err)
	assert.Equal(t, []byte("plain body"), resp.Body)

	_, err = client.Do(context.Background(), "/anything", sdk.RequestOptions{Out: &map[string]any{}})
	assert.Error(t, err, "non-JSON body must fail JSON decoding")
}

func TestClient_Export_StreamsBody(t *testing.T) {
	client := newSDKClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/exports/platoon", r.URL.Path)
		assert.Equal(t, "כפיר", r.URL.Query().Get("platoon"))
		w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		w.Header().Set("Content-Disposition", `attachment; filename="kfir-2026-W05.xlsx"`)
		_, _ = io.WriteString(w, "PK\x03\x04")
	}))

	stream, err := client.Export(context.Background(), sdk.ExportInput{Kind: sdk.ExportPlatoon, Platoon: "כפיר", Week: "2026-W05"})
	require.NoError(t, err)
	defer stream.Close()

	assert.Equal(t, "kfir-2026-W05.xlsx", stream.Filename)
	data, err := io.ReadAll(stream.Body)
	require.NoError(t, err)
	assert.Equal(t, "PK\x03\x04", string(data))

	_, err = client.Export(context.Background(), sdk.ExportInput{Kind: sdk.ExportPlatoon})
	assert.Error(t, err)
}

func TestClient_Import_Multipart(t *testing.T) {
	client := newSDKClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/imports/form-responses", r.URL.Path)
		file, header, err := r.FormFile("file")
		require.NoError(t, err)
		defer file.Close()
		data, _ := io.ReadAll(file)
		assert.Equal(t, "responses.xlsx", header.Filename)
		assert.Equal(t, "sheet-bytes", string(data))
		_, _ = io.WriteString(w, `{"inserted":12}`)
	}))

	result, err := client.Import(context.Background(), "form-responses", "responses.xlsx", strings.NewReader("sheet-bytes"))
	require.NoError(t, err)
	assert.Equal(t, 12, result.Inserted)
}

func TestClient_SyncGoogle(t *testing.T) {
	client := newSDKClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "all", r.URL.Query().Get("target"))
		_, _ = io.WriteString(w, `{"כפיר":{"inserted":3,"updated":1}}`)
	}))

	result, err := client.SyncGoogle(context.Background(), "all")
	require.NoError(t, err)
	assert.Equal(t, sdk.SyncCounts{Inserted: 3, Updated: 1}, result["כפיר"])

	_, err = client.SyncGoogle(context.Background(), "")
	assert.Error(t, err)
}

func TestClient_TimeoutIsNetworkError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer server.Close()

	client, err := sdk.NewClient(sdk.Config{BaseURL: server.URL, Timeout: 50 * time.Millisecond}, sdk.WithLogger(discardLogger()))
	require.NoError(t, err)

	_, err = client.Health(context.Background())
	require.Error(t, err)
	assert.True(t, sdk.IsNetworkError(err))
}
