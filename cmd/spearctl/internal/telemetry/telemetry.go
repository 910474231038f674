// Package telemetry installs the meter provider behind the gateway
// instruments and logs the request totals when the command ends.
package telemetry

import (
	"context"
	"fmt"
	"log"
	"sort"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/ShakedSchnarch/spearhead/pkg/sdk"
)

// Meter owns the process meter provider.
type Meter struct {
	provider *sdkmetric.MeterProvider
	reader   *sdkmetric.ManualReader
	logger   *log.Logger
}

// Install sets a meter provider with a manual reader as the global one.
func Install(logger *log.Logger) *Meter {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	otel.SetMeterProvider(provider)
	return &Meter{provider: provider, reader: reader, logger: logger}
}

// Totals collects every int64 counter, keyed as "name resource/outcome".
func (m *Meter) Totals(ctx context.Context) (map[string]int64, error) {
	var rm metricdata.ResourceMetrics
	if err := m.reader.Collect(ctx, &rm); err != nil {
		return nil, fmt.Errorf("collect metrics: %w", err)
	}

	totals := make(map[string]int64)
	for _, sm := range rm.ScopeMetrics {
		for _, md := range sm.Metrics {
			sum, ok := md.Data.(metricdata.Sum[int64])
			if !ok {
				continue
			}
			for _, dp := range sum.DataPoints {
				totals[md.Name+" "+label(dp.Attributes)] += dp.Value
			}
		}
	}
	return totals, nil
}

// Close logs the totals and shuts the provider down.
func (m *Meter) Close() error {
	ctx := context.Background()
	totals, err := m.Totals(ctx)
	if err != nil {
		m.logger.Printf("%v", err)
	}

	keys := make([]string, 0, len(totals))
	for k := range totals {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		m.logger.Printf("metric %s = %d", k, totals[k])
	}
	return m.provider.Shutdown(ctx)
}

func label(attrs attribute.Set) string {
	resource, _ := attrs.Value(attribute.Key(sdk.AttrResource))
	outcome, _ := attrs.Value(attribute.Key(sdk.AttrOutcome))
	return resource.Emit() + "/" + outcome.Emit()
}
