// Package metrics defines the exporter interface through which cache
// statistics reach monitoring systems, plus Prometheus and OpenTelemetry
// implementations.
package metrics

import (
	"errors"
	"time"
)

// Labels are key/value pairs attached to exported metrics
type Labels map[string]string

// Operation names a cache operation for timing metrics
type Operation string

const (
	OperationGet        Operation = "get"
	OperationSet        Operation = "set"
	OperationDelete     Operation = "delete"
	OperationInvalidate Operation = "invalidate"
	OperationEvict      Operation = "evict"
	OperationCleanup    Operation = "cleanup"
	OperationCoalesce   Operation = "coalesce"
	OperationPrefetch   Operation = "prefetch"
)

// Result is the outcome of a cache lookup
type Result string

const (
	ResultHit   Result = "hit"
	ResultMiss  Result = "miss"
	ResultError Result = "error"
)

// Stats is the read side of the cache statistics exported on each report
type Stats interface {
	Hits() int64
	Misses() int64
	Evictions() int64
	Invalidations() int64
	KeyCount() int64
	InFlight() int64
	HitRate() float64
	MemoryUsage() int64
	PrefetchSuccesses() int64
	PrefetchFailures() int64
	CompressionRatio() float64
	AverageResponseTime() time.Duration
}

// Exporter publishes cache metrics to a monitoring backend
type Exporter interface {
	// ExportStats publishes a statistics snapshot
	ExportStats(stats Stats, labels Labels) error

	// RecordCacheOperation records the latency of one operation
	RecordCacheOperation(operation Operation, duration time.Duration, labels Labels) error

	// IncrementCounter increments a custom counter
	IncrementCounter(name string, labels Labels) error

	// RecordHistogram records a custom histogram observation
	RecordHistogram(name string, value float64, labels Labels) error

	// SetGauge sets a custom gauge
	SetGauge(name string, value float64, labels Labels) error

	// Close releases exporter resources
	Close() error
}

// Config holds exporter settings
type Config struct {
	Enabled           bool          `mapstructure:"enabled" json:"enabled"`
	Namespace         string        `mapstructure:"namespace" json:"namespace"`
	Labels            Labels        `mapstructure:"labels" json:"labels"`
	ReportingInterval time.Duration `mapstructure:"reporting_interval" json:"reporting_interval"`

	// IncludeDetailedTimings records per-operation latency histograms
	IncludeDetailedTimings bool `mapstructure:"include_detailed_timings" json:"include_detailed_timings"`
}

// NewDefaultConfig returns an enabled configuration reporting every 30s
func NewDefaultConfig() *Config {
	return &Config{
		Enabled:           true,
		Namespace:         "adaptcache",
		Labels:            make(Labels),
		ReportingInterval: 30 * time.Second,
	}
}

// WithNamespace sets the metric namespace
func (c *Config) WithNamespace(namespace string) *Config {
	c.Namespace = namespace
	return c
}

// WithLabels merges constant labels into the configuration
func (c *Config) WithLabels(labels Labels) *Config {
	if c.Labels == nil {
		c.Labels = make(Labels)
	}
	for k, v := range labels {
		c.Labels[k] = v
	}
	return c
}

// WithReportingInterval sets how often stats are exported
func (c *Config) WithReportingInterval(interval time.Duration) *Config {
	c.ReportingInterval = interval
	return c
}

// WithDetailedTimings toggles per-operation latency histograms
func (c *Config) WithDetailedTimings(enabled bool) *Config {
	c.IncludeDetailedTimings = enabled
	return c
}

// MetricNames are the metric names used by the built-in exporters
type MetricNames struct {
	CacheHitsTotal          string
	CacheMissesTotal        string
	CacheEvictionsTotal     string
	CacheInvalidationsTotal string
	CachePrefetchTotal      string
	CacheOperationDuration  string
	CacheKeysCount          string
	CacheMemoryUsage        string
	CacheInFlightRequests   string
	CacheHitRate            string
	CacheCompressionRatio   string
	CacheAverageResponse    string
}

// DefaultMetricNames returns names prefixed with the default namespace
func DefaultMetricNames() MetricNames {
	return MetricNamesFor("adaptcache")
}

// MetricNamesFor returns metric names prefixed with namespace
func MetricNamesFor(namespace string) MetricNames {
	p := namespace + "_"
	return MetricNames{
		CacheHitsTotal:          p + "hits_total",
		CacheMissesTotal:        p + "misses_total",
		CacheEvictionsTotal:     p + "evictions_total",
		CacheInvalidationsTotal: p + "invalidations_total",
		CachePrefetchTotal:      p + "prefetch_total",
		CacheOperationDuration:  p + "operation_duration_seconds",
		CacheKeysCount:          p + "keys_count",
		CacheMemoryUsage:        p + "memory_usage_bytes",
		CacheInFlightRequests:   p + "inflight_requests",
		CacheHitRate:            p + "hit_rate",
		CacheCompressionRatio:   p + "compression_ratio",
		CacheAverageResponse:    p + "average_response_seconds",
	}
}

// NoOpExporter discards everything
type NoOpExporter struct{}

// NewNoOpExporter creates an exporter that does nothing
func NewNoOpExporter() *NoOpExporter {
	return &NoOpExporter{}
}

func (n *NoOpExporter) ExportStats(Stats, Labels) error {
	return nil
}

func (n *NoOpExporter) RecordCacheOperation(Operation, time.Duration, Labels) error {
	return nil
}

func (n *NoOpExporter) IncrementCounter(string, Labels) error {
	return nil
}

func (n *NoOpExporter) RecordHistogram(string, float64, Labels) error {
	return nil
}

func (n *NoOpExporter) SetGauge(string, float64, Labels) error {
	return nil
}

func (n *NoOpExporter) Close() error {
	return nil
}

// MultiExporter fans every call out to several exporters
type MultiExporter struct {
	exporters []Exporter
}

// NewMultiExporter combines exporters; every exporter is called even if an
// earlier one fails, and the errors are joined
func NewMultiExporter(exporters ...Exporter) *MultiExporter {
	return &MultiExporter{exporters: exporters}
}

func (m *MultiExporter) each(fn func(Exporter) error) error {
	var errs []error
	for _, e := range m.exporters {
		if err := fn(e); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m *MultiExporter) ExportStats(stats Stats, labels Labels) error {
	return m.each(func(e Exporter) error { return e.ExportStats(stats, labels) })
}

func (m *MultiExporter) RecordCacheOperation(operation Operation, duration time.Duration, labels Labels) error {
	return m.each(func(e Exporter) error { return e.RecordCacheOperation(operation, duration, labels) })
}

func (m *MultiExporter) IncrementCounter(name string, labels Labels) error {
	return m.each(func(e Exporter) error { return e.IncrementCounter(name, labels) })
}

func (m *MultiExporter) RecordHistogram(name string, value float64, labels Labels) error {
	return m.each(func(e Exporter) error { return e.RecordHistogram(name, value, labels) })
}

func (m *MultiExporter) SetGauge(name string, value float64, labels Labels) error {
	return m.each(func(e Exporter) error { return e.SetGauge(name, value, labels) })
}

func (m *MultiExporter) Close() error {
	return m.each(func(e Exporter) error { return e.Close() })
}
