package metrics

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/1mb-dev/adaptcache"

// OTelConfig configures the OpenTelemetry exporter
type OTelConfig struct {
	// Meter records the instruments. Defaults to the global meter provider.
	Meter metric.Meter
}

// OTelExporter exports cache statistics through the OpenTelemetry metric API
type OTelExporter struct {
	config *Config
	meter  metric.Meter
	names  MetricNames
	base   []attribute.KeyValue

	hits          metric.Int64Counter
	misses        metric.Int64Counter
	evictions     metric.Int64Counter
	invalidations metric.Int64Counter
	prefetch      metric.Int64Counter
	duration      metric.Float64Histogram
	keys          metric.Int64Gauge
	memory        metric.Int64Gauge
	inFlight      metric.Int64Gauge
	hitRate       metric.Float64Gauge
	compression   metric.Float64Gauge
	avgResponse   metric.Float64Gauge

	mu         sync.Mutex
	last       map[string]int64
	counters   map[string]metric.Int64Counter
	histograms map[string]metric.Float64Histogram
	gauges     map[string]metric.Float64Gauge
}

// NewOTelExporter creates the cache instruments on the configured meter
func NewOTelExporter(config *Config, otelConfig *OTelConfig) (*OTelExporter, error) {
	if config == nil {
		config = NewDefaultConfig()
	}
	meter := metric.Meter(nil)
	if otelConfig != nil {
		meter = otelConfig.Meter
	}
	if meter == nil {
		meter = otel.GetMeterProvider().Meter(instrumentationName)
	}

	namespace := config.Namespace
	if namespace == "" {
		namespace = "adaptcache"
	}

	e := &OTelExporter{
		config:     config,
		meter:      meter,
		names:      MetricNamesFor(namespace),
		base:       toAttributes(config.Labels),
		last:       make(map[string]int64),
		counters:   make(map[string]metric.Int64Counter),
		histograms: make(map[string]metric.Float64Histogram),
		gauges:     make(map[string]metric.Float64Gauge),
	}

	var err error
	if e.hits, err = meter.Int64Counter(e.names.CacheHitsTotal, metric.WithDescription("Total number of cache hits")); err != nil {
		return nil, fmt.Errorf("failed to create hits counter: %w", err)
	}
	if e.misses, err = meter.Int64Counter(e.names.CacheMissesTotal, metric.WithDescription("Total number of cache misses")); err != nil {
		return nil, fmt.Errorf("failed to create misses counter: %w", err)
	}
	if e.evictions, err = meter.Int64Counter(e.names.CacheEvictionsTotal, metric.WithDescription("Total number of cache evictions")); err != nil {
		return nil, fmt.Errorf("failed to create evictions counter: %w", err)
	}
	if e.invalidations, err = meter.Int64Counter(e.names.CacheInvalidationsTotal, metric.WithDescription("Total number of explicit invalidations")); err != nil {
		return nil, fmt.Errorf("failed to create invalidations counter: %w", err)
	}
	if e.prefetch, err = meter.Int64Counter(e.names.CachePrefetchTotal, metric.WithDescription("Total number of prefetch fills by result")); err != nil {
		return nil, fmt.Errorf("failed to create prefetch counter: %w", err)
	}
	if e.duration, err = meter.Float64Histogram(e.names.CacheOperationDuration,
		metric.WithDescription("Cache operation latency"), metric.WithUnit("s")); err != nil {
		return nil, fmt.Errorf("failed to create duration histogram: %w", err)
	}
	if e.keys, err = meter.Int64Gauge(e.names.CacheKeysCount, metric.WithDescription("Current number of entries in cache")); err != nil {
		return nil, fmt.Errorf("failed to create keys gauge: %w", err)
	}
	if e.memory, err = meter.Int64Gauge(e.names.CacheMemoryUsage,
		metric.WithDescription("Accounted size of resident entries"), metric.WithUnit("By")); err != nil {
		return nil, fmt.Errorf("failed to create memory gauge: %w", err)
	}
	if e.inFlight, err = meter.Int64Gauge(e.names.CacheInFlightRequests, metric.WithDescription("Coalesced fetches currently in flight")); err != nil {
		return nil, fmt.Errorf("failed to create in-flight gauge: %w", err)
	}
	if e.hitRate, err = meter.Float64Gauge(e.names.CacheHitRate, metric.WithDescription("Cache hit rate between 0 and 1")); err != nil {
		return nil, fmt.Errorf("failed to create hit rate gauge: %w", err)
	}
	if e.compression, err = meter.Float64Gauge(e.names.CacheCompressionRatio, metric.WithDescription("Stored bytes divided by uncompressed bytes")); err != nil {
		return nil, fmt.Errorf("failed to create compression gauge: %w", err)
	}
	if e.avgResponse, err = meter.Float64Gauge(e.names.CacheAverageResponse,
		metric.WithDescription("Average cache response time"), metric.WithUnit("s")); err != nil {
		return nil, fmt.Errorf("failed to create response time gauge: %w", err)
	}

	return e, nil
}

func toAttributes(labels Labels) []attribute.KeyValue {
	keys := make([]string, 0, len(labels))
	for k := range labels {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	attrs := make([]attribute.KeyValue, 0, len(keys))
	for _, k := range keys {
		attrs = append(attrs, attribute.String(k, labels[k]))
	}
	return attrs
}

// attrs merges the constant labels with per-call labels
func (e *OTelExporter) attrs(labels Labels, extra ...attribute.KeyValue) metric.MeasurementOption {
	all := make([]attribute.KeyValue, 0, len(e.base)+len(labels)+len(extra))
	all = append(all, e.base...)
	all = append(all, toAttributes(labels)...)
	all = append(all, extra...)
	return metric.WithAttributes(all...)
}

func (e *OTelExporter) delta(key string, value int64) int64 {
	prev := e.last[key]
	if value < prev {
		prev = 0
	}
	e.last[key] = value
	return value - prev
}

func (e *OTelExporter) ExportStats(stats Stats, labels Labels) error {
	ctx := context.Background()
	name := cacheName(labels)
	opt := e.attrs(labels)

	e.mu.Lock()
	hits := e.delta("hits/"+name, stats.Hits())
	misses := e.delta("misses/"+name, stats.Misses())
	evictions := e.delta("evictions/"+name, stats.Evictions())
	invalidations := e.delta("invalidations/"+name, stats.Invalidations())
	prefetchOK := e.delta("prefetch_ok/"+name, stats.PrefetchSuccesses())
	prefetchErr := e.delta("prefetch_err/"+name, stats.PrefetchFailures())
	e.mu.Unlock()

	if hits > 0 {
		e.hits.Add(ctx, hits, opt)
	}
	if misses > 0 {
		e.misses.Add(ctx, misses, opt)
	}
	if evictions > 0 {
		e.evictions.Add(ctx, evictions, opt)
	}
	if invalidations > 0 {
		e.invalidations.Add(ctx, invalidations, opt)
	}
	if prefetchOK > 0 {
		e.prefetch.Add(ctx, prefetchOK, e.attrs(labels, attribute.String("result", "success")))
	}
	if prefetchErr > 0 {
		e.prefetch.Add(ctx, prefetchErr, e.attrs(labels, attribute.String("result", "failure")))
	}

	e.keys.Record(ctx, stats.KeyCount(), opt)
	e.memory.Record(ctx, stats.MemoryUsage(), opt)
	e.inFlight.Record(ctx, stats.InFlight(), opt)
	e.hitRate.Record(ctx, stats.HitRate(), opt)
	e.compression.Record(ctx, stats.CompressionRatio(), opt)
	e.avgResponse.Record(ctx, stats.AverageResponseTime().Seconds(), opt)
	return nil
}

func (e *OTelExporter) RecordCacheOperation(operation Operation, duration time.Duration, labels Labels) error {
	if !e.config.IncludeDetailedTimings {
		return nil
	}
	e.duration.Record(context.Background(), duration.Seconds(),
		e.attrs(labels, attribute.String("operation", string(operation))))
	return nil
}

func (e *OTelExporter) IncrementCounter(name string, labels Labels) error {
	e.mu.Lock()
	c, ok := e.counters[name]
	if !ok {
		var err error
		c, err = e.meter.Int64Counter(e.config.Namespace + "_" + name)
		if err != nil {
			e.mu.Unlock()
			return fmt.Errorf("failed to create counter %s: %w", name, err)
		}
		e.counters[name] = c
	}
	e.mu.Unlock()

	c.Add(context.Background(), 1, e.attrs(labels))
	return nil
}

func (e *OTelExporter) RecordHistogram(name string, value float64, labels Labels) error {
	e.mu.Lock()
	h, ok := e.histograms[name]
	if !ok {
		var err error
		h, err = e.meter.Float64Histogram(e.config.Namespace + "_" + name)
		if err != nil {
			e.mu.Unlock()
			return fmt.Errorf("failed to create histogram %s: %w", name, err)
		}
		e.histograms[name] = h
	}
	e.mu.Unlock()

	h.Record(context.Background(), value, e.attrs(labels))
	return nil
}

func (e *OTelExporter) SetGauge(name string, value float64, labels Labels) error {
	e.mu.Lock()
	g, ok := e.gauges[name]
	if !ok {
		var err error
		g, err = e.meter.Float64Gauge(e.config.Namespace + "_" + name)
		if err != nil {
			e.mu.Unlock()
			return fmt.Errorf("failed to create gauge %s: %w", name, err)
		}
		e.gauges[name] = g
	}
	e.mu.Unlock()

	g.Record(context.Background(), value, e.attrs(labels))
	return nil
}

// Close is a no-op; the meter provider owns the instrument lifecycle
func (e *OTelExporter) Close() error {
	return nil
}
