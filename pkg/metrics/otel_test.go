package metrics

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]metricdata.Aggregation {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	out := make(map[string]metricdata.Aggregation)
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			out[m.Name] = m.Data
		}
	}
	return out
}

func sumValue(t *testing.T, data metricdata.Aggregation) int64 {
	t.Helper()
	sum, ok := data.(metricdata.Sum[int64])
	require.True(t, ok, "expected int64 sum, got %T", data)
	var total int64
	for _, dp := range sum.DataPoints {
		total += dp.Value
	}
	return total
}

func newTestOTelExporter(t *testing.T, config *Config) (*OTelExporter, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })

	exporter, err := NewOTelExporter(config, &OTelConfig{Meter: provider.Meter("test")})
	require.NoError(t, err)
	return exporter, reader
}

func TestOTelExportStats(t *testing.T) {
	exporter, reader := newTestOTelExporter(t, NewDefaultConfig().WithLabels(Labels{"env": "test"}))
	labels := Labels{"cache_name": "orders"}

	stats := &mockStats{hits: 6, misses: 4, keyCount: 3, hitRate: 0.6, memory: 300, prefetchOK: 2, ratio: 1}
	require.NoError(t, exporter.ExportStats(stats, labels))

	stats.hits = 9
	require.NoError(t, exporter.ExportStats(stats, labels))

	data := collect(t, reader)
	assert.Equal(t, int64(9), sumValue(t, data["adaptcache_hits_total"]))
	assert.Equal(t, int64(4), sumValue(t, data["adaptcache_misses_total"]))
	assert.Equal(t, int64(2), sumValue(t, data["adaptcache_prefetch_total"]))

	keys, ok := data["adaptcache_keys_count"].(metricdata.Gauge[int64])
	require.True(t, ok)
	require.Len(t, keys.DataPoints, 1)
	assert.Equal(t, int64(3), keys.DataPoints[0].Value)

	env, ok := keys.DataPoints[0].Attributes.Value("env")
	require.True(t, ok)
	assert.Equal(t, "test", env.AsString())
	name, ok := keys.DataPoints[0].Attributes.Value("cache_name")
	require.True(t, ok)
	assert.Equal(t, "orders", name.AsString())

	rate, ok := data["adaptcache_hit_rate"].(metricdata.Gauge[float64])
	require.True(t, ok)
	assert.Equal(t, 0.6, rate.DataPoints[0].Value)
}

func TestOTelOperationTimingsAndCustomMetrics(t *testing.T) {
	exporter, reader := newTestOTelExporter(t, NewDefaultConfig().WithDetailedTimings(true))

	require.NoError(t, exporter.RecordCacheOperation(OperationGet, 3*time.Millisecond, nil))
	require.NoError(t, exporter.IncrementCounter("refreshes", nil))
	require.NoError(t, exporter.IncrementCounter("refreshes", nil))
	require.NoError(t, exporter.SetGauge("queue_depth", 4, nil))
	require.NoError(t, exporter.RecordHistogram("payload_bytes", 128, nil))

	data := collect(t, reader)

	hist, ok := data["adaptcache_operation_duration_seconds"].(metricdata.Histogram[float64])
	require.True(t, ok)
	require.Len(t, hist.DataPoints, 1)
	assert.Equal(t, uint64(1), hist.DataPoints[0].Count)

	assert.Equal(t, int64(2), sumValue(t, data["adaptcache_refreshes"]))
	assert.Contains(t, data, "adaptcache_queue_depth")
	assert.Contains(t, data, "adaptcache_payload_bytes")
	assert.NoError(t, exporter.Close())
}

func TestOTelNoopMeter(t *testing.T) {
	exporter, err := NewOTelExporter(nil, &OTelConfig{Meter: noop.NewMeterProvider().Meter("noop")})
	require.NoError(t, err)
	assert.NoError(t, exporter.ExportStats(&mockStats{hits: 1}, nil))
	assert.NoError(t, exporter.RecordCacheOperation(OperationSet, time.Millisecond, nil))
}
