package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestPrometheusExporter(t *testing.T, config *Config) (*PrometheusExporter, *prometheus.Registry) {
	t.Helper()
	reg := prometheus.NewRegistry()
	exporter, err := NewPrometheusExporter(config, &PrometheusConfig{Registry: reg})
	require.NoError(t, err)
	t.Cleanup(func() { _ = exporter.Close() })
	return exporter, reg
}

func TestPrometheusExportStats(t *testing.T) {
	exporter, _ := newTestPrometheusExporter(t, NewDefaultConfig())
	labels := Labels{"cache_name": "users"}

	stats := &mockStats{
		hits: 8, misses: 2, evictions: 1, keyCount: 5, hitRate: 0.8,
		memory: 2048, prefetchOK: 3, prefetchErr: 1, ratio: 0.5,
		avgResponse: 2 * time.Millisecond,
	}
	require.NoError(t, exporter.ExportStats(stats, labels))

	assert.Equal(t, 8.0, testutil.ToFloat64(exporter.hits.WithLabelValues("users")))
	assert.Equal(t, 2.0, testutil.ToFloat64(exporter.misses.WithLabelValues("users")))
	assert.Equal(t, 1.0, testutil.ToFloat64(exporter.evictions.WithLabelValues("users")))
	assert.Equal(t, 3.0, testutil.ToFloat64(exporter.prefetch.WithLabelValues("users", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(exporter.prefetch.WithLabelValues("users", "failure")))
	assert.Equal(t, 5.0, testutil.ToFloat64(exporter.keys.WithLabelValues("users")))
	assert.Equal(t, 2048.0, testutil.ToFloat64(exporter.memory.WithLabelValues("users")))
	assert.Equal(t, 0.8, testutil.ToFloat64(exporter.hitRate.WithLabelValues("users")))
	assert.Equal(t, 0.5, testutil.ToFloat64(exporter.compression.WithLabelValues("users")))
	assert.InDelta(t, 0.002, testutil.ToFloat64(exporter.avgResponse.WithLabelValues("users")), 1e-9)

	// A second export only adds the growth since the first
	stats.hits = 10
	require.NoError(t, exporter.ExportStats(stats, labels))
	assert.Equal(t, 10.0, testutil.ToFloat64(exporter.hits.WithLabelValues("users")))

	// Reset stats restart the delta without going backwards
	stats.hits = 4
	require.NoError(t, exporter.ExportStats(stats, labels))
	assert.Equal(t, 14.0, testutil.ToFloat64(exporter.hits.WithLabelValues("users")))
}

func TestPrometheusDefaultCacheName(t *testing.T) {
	exporter, _ := newTestPrometheusExporter(t, NewDefaultConfig())
	require.NoError(t, exporter.ExportStats(&mockStats{hits: 1}, nil))
	assert.Equal(t, 1.0, testutil.ToFloat64(exporter.hits.WithLabelValues("default")))
}

func TestPrometheusOperationTimings(t *testing.T) {
	t.Run("disabled", func(t *testing.T) {
		exporter, _ := newTestPrometheusExporter(t, NewDefaultConfig())
		require.NoError(t, exporter.RecordCacheOperation(OperationGet, time.Millisecond, nil))
		assert.Equal(t, 0, testutil.CollectAndCount(exporter.duration))
	})

	t.Run("enabled", func(t *testing.T) {
		exporter, _ := newTestPrometheusExporter(t, NewDefaultConfig().WithDetailedTimings(true))
		require.NoError(t, exporter.RecordCacheOperation(OperationGet, time.Millisecond, nil))
		require.NoError(t, exporter.RecordCacheOperation(OperationSet, time.Millisecond, nil))
		assert.Equal(t, 2, testutil.CollectAndCount(exporter.duration))
	})
}

func TestPrometheusCustomMetrics(t *testing.T) {
	exporter, reg := newTestPrometheusExporter(t, NewDefaultConfig())
	labels := Labels{"source": "redis"}

	require.NoError(t, exporter.IncrementCounter("loader_calls", labels))
	require.NoError(t, exporter.IncrementCounter("loader_calls", labels))
	require.NoError(t, exporter.SetGauge("queue_depth", 7, nil))
	require.NoError(t, exporter.RecordHistogram("payload_bytes", 512, nil))

	count, err := testutil.GatherAndCount(reg, "adaptcache_loader_calls", "adaptcache_queue_depth", "adaptcache_payload_bytes")
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	counter := exporter.custom["loader_calls"].(*prometheus.CounterVec)
	assert.Equal(t, 2.0, testutil.ToFloat64(counter.WithLabelValues("redis")))

	// Reusing a name with a different kind is rejected
	assert.Error(t, exporter.SetGauge("loader_calls", 1, labels))
	// Label sets must match the first use
	assert.Error(t, exporter.IncrementCounter("loader_calls", Labels{"other": "x"}))
}

func TestPrometheusDuplicateRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	first, err := NewPrometheusExporter(NewDefaultConfig(), &PrometheusConfig{Registry: reg})
	require.NoError(t, err)

	_, err = NewPrometheusExporter(NewDefaultConfig(), &PrometheusConfig{Registry: reg})
	require.Error(t, err)

	// Closing the first exporter frees the names
	require.NoError(t, first.Close())
	second, err := NewPrometheusExporter(NewDefaultConfig(), &PrometheusConfig{Registry: reg})
	require.NoError(t, err)
	require.NoError(t, second.Close())
}
