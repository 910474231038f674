package telemetry

import (
	"bytes"
	"context"
	"log"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ShakedSchnarch/spearhead/pkg/sdk"
)

func TestInstall_RecordsGatewayRequests(t *testing.T) {
	var buf bytes.Buffer
	meter := Install(log.New(&buf, "", 0))

	metrics, err := sdk.NewGatewayMetrics()
	require.NoError(t, err)

	ctx := context.Background()
	metrics.RecordRequest(ctx, http.MethodGet, "health", sdk.OutcomeOK, 4)
	metrics.RecordRequest(ctx, http.MethodGet, "health", sdk.OutcomeOK, 6)
	metrics.RecordRequest(ctx, http.MethodGet, "sync", sdk.OutcomeUnauthorized, 2)

	totals, err := meter.Totals(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), totals["gateway.request.count health/ok"])
	assert.Equal(t, int64(1), totals["gateway.request.count sync/unauthorized"])
	assert.Equal(t, int64(1), totals["gateway.unauthorized.count sync/unauthorized"])

	require.NoError(t, meter.Close())
	assert.Contains(t, buf.String(), "metric gateway.request.count health/ok = 2")
}
