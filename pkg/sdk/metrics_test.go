package sdk_test

import (
	"context"
	"net/http"
	"testing"

	"github.com/ShakedSchnarch/spearhead/pkg/sdk"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewGatewayMetrics(t *testing.T) {
	m, err := sdk.NewGatewayMetrics()
	require.NoError(t, err)
	assert.NotNil(t, m.RequestCounter)
	assert.NotNil(t, m.RequestDuration)
	assert.NotNil(t, m.FailureCounter)
	assert.NotNil(t, m.Unauthorized)
}

func TestGatewayMetrics_RecordedOnEveryOutcome(t *testing.T) {
	m, err := sdk.NewGatewayMetrics()
	require.NoError(t, err)

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/health":
			_, _ = w.Write([]byte(`{"version":"1.0"}`))
		case "/api/sync/status":
			w.WriteHeader(http.StatusUnauthorized)
		default:
			http.Error(w, "boom", http.StatusInternalServerError)
		}
	})
	client := newSDKClient(t, handler, sdk.WithMetrics(m))

	_, err = client.Health(context.Background())
	require.NoError(t, err)
	_, err = client.SyncStatus(context.Background())
	assert.True(t, sdk.IsAuthError(err))
	_, err = client.FormsStatus(context.Background())
	assert.Equal(t, http.StatusInternalServerError, sdk.StatusOf(err))
}

func TestGatewayMetrics_NilIsNoop(t *testing.T) {
	var m *sdk.GatewayMetrics
	assert.NotPanics(t, func() {
		m.RecordRequest(context.Background(), http.MethodGet, "health", sdk.OutcomeOK, 1)
	})
}
