package httpclient

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

type testTelemetry struct {
	exporter *tracetest.InMemoryExporter
	reader   *sdkmetric.ManualReader
	tp       *sdktrace.TracerProvider
	mp       *sdkmetric.MeterProvider
}

func newTestTelemetry(t *testing.T) *testTelemetry {
	t.Helper()

	exporter := tracetest.NewInMemoryExporter()
	reader := sdkmetric.NewManualReader()
	tel := &testTelemetry{
		exporter: exporter,
		reader:   reader,
		tp:       sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter)),
		mp:       sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader)),
	}
	t.Cleanup(func() {
		_ = tel.tp.Shutdown(context.Background())
		_ = tel.mp.Shutdown(context.Background())
	})
	return tel
}

func (tel *testTelemetry) options() []Option {
	return []Option{
		WithTracerProvider(tel.tp),
		WithMeterProvider(tel.mp),
	}
}

// metric returns the collected metric with the given name, or false.
func (tel *testTelemetry) metric(t *testing.T, name string) (metricdata.Metrics, bool) {
	t.Helper()

	var rm metricdata.ResourceMetrics
	require.NoError(t, tel.reader.Collect(context.Background(), &rm))
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name == name {
				return m, true
			}
		}
	}
	return metricdata.Metrics{}, false
}

// counterTotal sums every data point of an int64 sum metric.
func (tel *testTelemetry) counterTotal(t *testing.T, name string) int64 {
	t.Helper()

	m, ok := tel.metric(t, name)
	if !ok {
		return 0
	}
	sum, ok := m.Data.(metricdata.Sum[int64])
	require.True(t, ok, "metric %s is not an int64 sum", name)

	var total int64
	for _, dp := range sum.DataPoints {
		total += dp.Value
	}
	return total
}

// histogramCount returns the number of recordings of a float64 histogram.
func (tel *testTelemetry) histogramCount(t *testing.T, name string) uint64 {
	t.Helper()

	m, ok := tel.metric(t, name)
	if !ok {
		return 0
	}
	hist, ok := m.Data.(metricdata.Histogram[float64])
	require.True(t, ok, "metric %s is not a float64 histogram", name)

	var count uint64
	for _, dp := range hist.DataPoints {
		count += dp.Count
	}
	return count
}

func attrMap(kvs []attribute.KeyValue) map[string]any {
	out := make(map[string]any, len(kvs))
	for _, kv := range kvs {
		out[string(kv.Key)] = kv.Value.AsInterface()
	}
	return out
}
