package metrics

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// cacheNameLabel is the variable label carried by every built-in metric
const cacheNameLabel = "cache_name"

// PrometheusConfig configures the Prometheus exporter
type PrometheusConfig struct {
	// Registry receives the collectors. Defaults to prometheus.DefaultRegisterer.
	Registry prometheus.Registerer

	// Buckets for operation latency histograms. Defaults to prometheus.DefBuckets.
	Buckets []float64
}

// PrometheusExporter exports cache statistics as Prometheus metrics.
// Cumulative stats are applied to counters as deltas since the last export.
type PrometheusExporter struct {
	config   *Config
	registry prometheus.Registerer
	names    MetricNames
	buckets  []float64

	hits          *prometheus.CounterVec
	misses        *prometheus.CounterVec
	evictions     *prometheus.CounterVec
	invalidations *prometheus.CounterVec
	prefetch      *prometheus.CounterVec
	duration      *prometheus.HistogramVec
	keys          *prometheus.GaugeVec
	memory        *prometheus.GaugeVec
	inFlight      *prometheus.GaugeVec
	hitRate       *prometheus.GaugeVec
	compression   *prometheus.GaugeVec
	avgResponse   *prometheus.GaugeVec

	mu         sync.Mutex
	last       map[string]float64
	custom     map[string]prometheus.Collector
	registered []prometheus.Collector
}

// NewPrometheusExporter creates and registers the cache collectors
func NewPrometheusExporter(config *Config, promConfig *PrometheusConfig) (*PrometheusExporter, error) {
	if config == nil {
		config = NewDefaultConfig()
	}
	if promConfig == nil {
		promConfig = &PrometheusConfig{}
	}

	registry := promConfig.Registry
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}
	buckets := promConfig.Buckets
	if len(buckets) == 0 {
		buckets = prometheus.DefBuckets
	}

	namespace := config.Namespace
	if namespace == "" {
		namespace = "adaptcache"
	}

	e := &PrometheusExporter{
		config:   config,
		registry: registry,
		names:    MetricNamesFor(namespace),
		buckets:  buckets,
		last:     make(map[string]float64),
		custom:   make(map[string]prometheus.Collector),
	}

	constLabels := prometheus.Labels(config.Labels)
	counter := func(name, help string, extra ...string) *prometheus.CounterVec {
		return prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        name,
			Help:        help,
			ConstLabels: constLabels,
		}, append([]string{cacheNameLabel}, extra...))
	}
	gauge := func(name, help string) *prometheus.GaugeVec {
		return prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name:        name,
			Help:        help,
			ConstLabels: constLabels,
		}, []string{cacheNameLabel})
	}

	e.hits = counter(e.names.CacheHitsTotal, "Total number of cache hits")
	e.misses = counter(e.names.CacheMissesTotal, "Total number of cache misses")
	e.evictions = counter(e.names.CacheEvictionsTotal, "Total number of cache evictions")
	e.invalidations = counter(e.names.CacheInvalidationsTotal, "Total number of explicit invalidations")
	e.prefetch = counter(e.names.CachePrefetchTotal, "Total number of prefetch fills by result", "result")
	e.duration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:        e.names.CacheOperationDuration,
		Help:        "Cache operation latency in seconds",
		ConstLabels: constLabels,
		Buckets:     buckets,
	}, []string{cacheNameLabel, "operation"})
	e.keys = gauge(e.names.CacheKeysCount, "Current number of entries in cache")
	e.memory = gauge(e.names.CacheMemoryUsage, "Accounted size of resident entries in bytes")
	e.inFlight = gauge(e.names.CacheInFlightRequests, "Coalesced fetches currently in flight")
	e.hitRate = gauge(e.names.CacheHitRate, "Cache hit rate between 0 and 1")
	e.compression = gauge(e.names.CacheCompressionRatio, "Stored bytes divided by uncompressed bytes")
	e.avgResponse = gauge(e.names.CacheAverageResponse, "Average cache response time in seconds")

	for _, c := range []prometheus.Collector{
		e.hits, e.misses, e.evictions, e.invalidations, e.prefetch, e.duration,
		e.keys, e.memory, e.inFlight, e.hitRate, e.compression, e.avgResponse,
	} {
		if err := registry.Register(c); err != nil {
			e.unregisterAll()
			return nil, fmt.Errorf("failed to register prometheus collector: %w", err)
		}
		e.registered = append(e.registered, c)
	}

	return e, nil
}

func cacheName(labels Labels) string {
	if name := labels[cacheNameLabel]; name != "" {
		return name
	}
	return "default"
}

// addDelta applies the growth of a cumulative value to a counter
func (e *PrometheusExporter) addDelta(vec *prometheus.CounterVec, key string, value float64, lvs ...string) {
	prev := e.last[key]
	if value < prev {
		// Stats were reset; start counting again from the new value
		prev = 0
	}
	if d := value - prev; d > 0 {
		vec.WithLabelValues(lvs...).Add(d)
	}
	e.last[key] = value
}

func (e *PrometheusExporter) ExportStats(stats Stats, labels Labels) error {
	name := cacheName(labels)

	e.mu.Lock()
	e.addDelta(e.hits, "hits/"+name, float64(stats.Hits()), name)
	e.addDelta(e.misses, "misses/"+name, float64(stats.Misses()), name)
	e.addDelta(e.evictions, "evictions/"+name, float64(stats.Evictions()), name)
	e.addDelta(e.invalidations, "invalidations/"+name, float64(stats.Invalidations()), name)
	e.addDelta(e.prefetch, "prefetch_ok/"+name, float64(stats.PrefetchSuccesses()), name, "success")
	e.addDelta(e.prefetch, "prefetch_err/"+name, float64(stats.PrefetchFailures()), name, "failure")
	e.mu.Unlock()

	e.keys.WithLabelValues(name).Set(float64(stats.KeyCount()))
	e.memory.WithLabelValues(name).Set(float64(stats.MemoryUsage()))
	e.inFlight.WithLabelValues(name).Set(float64(stats.InFlight()))
	e.hitRate.WithLabelValues(name).Set(stats.HitRate())
	e.compression.WithLabelValues(name).Set(stats.CompressionRatio())
	e.avgResponse.WithLabelValues(name).Set(stats.AverageResponseTime().Seconds())
	return nil
}

func (e *PrometheusExporter) RecordCacheOperation(operation Operation, duration time.Duration, labels Labels) error {
	if !e.config.IncludeDetailedTimings {
		return nil
	}
	e.duration.WithLabelValues(cacheName(labels), string(operation)).Observe(duration.Seconds())
	return nil
}

// labelNames returns the sorted label keys, used to build custom vectors
func labelNames(labels Labels) []string {
	names := make([]string, 0, len(labels))
	for k := range labels {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// customCollector returns the collector registered for name, creating it
// with the label set of the first call
func (e *PrometheusExporter) customCollector(name string, labels Labels, create func(fullName string, labelNames []string) prometheus.Collector) (prometheus.Collector, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if c, ok := e.custom[name]; ok {
		return c, nil
	}

	fullName := e.config.Namespace + "_" + strings.ReplaceAll(name, ".", "_")
	c := create(fullName, labelNames(labels))
	if err := e.registry.Register(c); err != nil {
		return nil, fmt.Errorf("failed to register metric %s: %w", fullName, err)
	}
	e.custom[name] = c
	e.registered = append(e.registered, c)
	return c, nil
}

func (e *PrometheusExporter) IncrementCounter(name string, labels Labels) error {
	c, err := e.customCollector(name, labels, func(fullName string, names []string) prometheus.Collector {
		return prometheus.NewCounterVec(prometheus.CounterOpts{Name: fullName, Help: "Custom counter " + name}, names)
	})
	if err != nil {
		return err
	}
	vec, ok := c.(*prometheus.CounterVec)
	if !ok {
		return fmt.Errorf("metric %s is not a counter", name)
	}
	m, err := vec.GetMetricWith(prometheus.Labels(labels))
	if err != nil {
		return err
	}
	m.Inc()
	return nil
}

func (e *PrometheusExporter) RecordHistogram(name string, value float64, labels Labels) error {
	c, err := e.customCollector(name, labels, func(fullName string, names []string) prometheus.Collector {
		return prometheus.NewHistogramVec(prometheus.HistogramOpts{Name: fullName, Help: "Custom histogram " + name, Buckets: e.buckets}, names)
	})
	if err != nil {
		return err
	}
	vec, ok := c.(*prometheus.HistogramVec)
	if !ok {
		return fmt.Errorf("metric %s is not a histogram", name)
	}
	m, err := vec.GetMetricWith(prometheus.Labels(labels))
	if err != nil {
		return err
	}
	m.Observe(value)
	return nil
}

func (e *PrometheusExporter) SetGauge(name string, value float64, labels Labels) error {
	c, err := e.customCollector(name, labels, func(fullName string, names []string) prometheus.Collector {
		return prometheus.NewGaugeVec(prometheus.GaugeOpts{Name: fullName, Help: "Custom gauge " + name}, names)
	})
	if err != nil {
		return err
	}
	vec, ok := c.(*prometheus.GaugeVec)
	if !ok {
		return fmt.Errorf("metric %s is not a gauge", name)
	}
	m, err := vec.GetMetricWith(prometheus.Labels(labels))
	if err != nil {
		return err
	}
	m.Set(value)
	return nil
}

func (e *PrometheusExporter) unregisterAll() {
	for _, c := range e.registered {
		e.registry.Unregister(c)
	}
	e.registered = nil
}

// Close unregisters every collector created by the exporter
func (e *PrometheusExporter) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.unregisterAll()
	e.custom = make(map[string]prometheus.Collector)
	return nil
}
