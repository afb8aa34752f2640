package adaptcache

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/1mb-dev/adaptcache/internal/entry"
	"github.com/1mb-dev/adaptcache/internal/eviction"
	"github.com/1mb-dev/adaptcache/internal/maintenance"
	"github.com/1mb-dev/adaptcache/internal/prefetch"
	"github.com/1mb-dev/adaptcache/pkg/compression"
	"github.com/1mb-dev/adaptcache/pkg/metrics"
)

// Strategy selects the eviction policy
type Strategy = eviction.EvictionType

const (
	StrategyLRU      = eviction.LRU
	StrategyLFU      = eviction.LFU
	StrategyTTL      = eviction.TTL
	StrategyAdaptive = eviction.Adaptive
)

// ParseStrategy converts a strategy name such as "lru" to a Strategy
func ParseStrategy(s string) (Strategy, bool) {
	return eviction.ParseType(s)
}

// Weights tune the Adaptive strategy
type Weights = eviction.Weights

// DefaultWeights returns age 0.3, recency 0.3, frequency 0.2, priority 0.2
func DefaultWeights() Weights {
	return eviction.DefaultWeights()
}

// Priority biases eviction order
type Priority = entry.Priority

const (
	PriorityBackground = entry.PriorityBackground
	PriorityLow        = entry.PriorityLow
	PriorityMedium     = entry.PriorityMedium
	PriorityHigh       = entry.PriorityHigh
	PriorityCritical   = entry.PriorityCritical
)

// ParsePriority converts a priority name such as "critical" to a Priority
func ParsePriority(s string) (Priority, bool) {
	return entry.ParsePriority(s)
}

// MaintenanceConfig holds the background task intervals
type MaintenanceConfig = maintenance.Config

// PrefetchConfig tunes the prefetch engine
type PrefetchConfig = prefetch.Config

// LoaderFunc fetches the authoritative value for key
type LoaderFunc func(ctx context.Context, key string) (any, error)

// MetricsConfig wires the cache to a metrics exporter
type MetricsConfig struct {
	// Exporter receives stats snapshots and operation timings
	Exporter metrics.Exporter

	Enabled   bool
	CacheName string
	Labels    metrics.Labels

	// ReportingInterval controls how often stats are exported. Zero disables
	// periodic export; a final export still happens on Destroy.
	ReportingInterval time.Duration
}

// Config defines the configuration for a Cache
type Config struct {
	// MaxSize is the byte budget across all entries. Zero means unlimited.
	MaxSize int64

	// MaxItems bounds the number of entries. Zero means unlimited.
	MaxItems int

	// DefaultTTL applies when Set is called without WithTTL. Zero means no expiry.
	DefaultTTL time.Duration

	// Strategy selects the eviction policy
	Strategy Strategy

	// Weights tune the Adaptive strategy; zero weights select the defaults
	Weights Weights

	// EnableCompression compresses serialized values above the compression
	// threshold. Compression carries the algorithm settings.
	EnableCompression bool
	Compression       *compression.Config

	// EnablePrefetching schedules fills of related keys on a miss using
	// Loader. Prefetch tunes the engine.
	EnablePrefetching bool
	Prefetch          PrefetchConfig
	Loader            LoaderFunc

	// EnableAnalytics records response-time samples and operation timings
	EnableAnalytics bool

	// BackgroundSyncEnabled runs the maintenance scheduler
	BackgroundSyncEnabled bool
	Maintenance           MaintenanceConfig

	Metrics *MetricsConfig
	Hooks   *Hooks
	Logger  logrus.FieldLogger

	// Clock overrides time.Now, mainly for tests
	Clock func() time.Time
}

// NewDefaultConfig returns a 10MB, 1000 item, Adaptive cache with a 5 minute
// default TTL, analytics and background maintenance enabled
func NewDefaultConfig() *Config {
	return &Config{
		MaxSize:               10 << 20,
		MaxItems:              1000,
		DefaultTTL:            5 * time.Minute,
		Strategy:              StrategyAdaptive,
		Weights:               DefaultWeights(),
		Compression:           compression.NewDefaultConfig(),
		Prefetch:              prefetch.DefaultConfig(),
		EnableAnalytics:       true,
		BackgroundSyncEnabled: true,
		Maintenance:           maintenance.DefaultConfig(),
	}
}

// NewSimpleConfig returns a count-bounded cache without background tasks
func NewSimpleConfig(maxItems int, defaultTTL time.Duration) *Config {
	return NewDefaultConfig().
		WithMaxSize(0).
		WithMaxItems(maxItems).
		WithDefaultTTL(defaultTTL).
		WithBackgroundSync(false)
}

// WithMaxSize sets the byte budget
func (c *Config) WithMaxSize(maxSize int64) *Config {
	c.MaxSize = maxSize
	return c
}

// WithMaxItems sets the entry limit
func (c *Config) WithMaxItems(maxItems int) *Config {
	c.MaxItems = maxItems
	return c
}

// WithDefaultTTL sets the default time-to-live
func (c *Config) WithDefaultTTL(ttl time.Duration) *Config {
	c.DefaultTTL = ttl
	return c
}

// WithStrategy sets the eviction strategy
func (c *Config) WithStrategy(strategy Strategy) *Config {
	c.Strategy = strategy
	return c
}

// WithWeights sets the Adaptive scoring weights
func (c *Config) WithWeights(weights Weights) *Config {
	c.Weights = weights
	return c
}

// WithCompression enables compression with the given settings. A nil config
// disables it.
func (c *Config) WithCompression(config *compression.Config) *Config {
	if config == nil {
		c.EnableCompression = false
		return c
	}
	c.Compression = config
	c.EnableCompression = config.Enabled
	return c
}

// WithPrefetching enables prefetching with loader as the fill source
func (c *Config) WithPrefetching(loader LoaderFunc) *Config {
	c.Loader = loader
	c.EnablePrefetching = loader != nil
	return c
}

// WithPrefetchConfig sets the prefetch tuning
func (c *Config) WithPrefetchConfig(config PrefetchConfig) *Config {
	c.Prefetch = config
	return c
}

// WithAnalytics toggles response-time sampling and operation timings
func (c *Config) WithAnalytics(enabled bool) *Config {
	c.EnableAnalytics = enabled
	return c
}

// WithBackgroundSync toggles the maintenance scheduler
func (c *Config) WithBackgroundSync(enabled bool) *Config {
	c.BackgroundSyncEnabled = enabled
	return c
}

// WithMaintenance sets the sweep and metrics refresh intervals
func (c *Config) WithMaintenance(config MaintenanceConfig) *Config {
	c.Maintenance = config
	return c
}

// WithMetrics sets the metrics exporter configuration
func (c *Config) WithMetrics(config *MetricsConfig) *Config {
	c.Metrics = config
	return c
}

// WithHooks sets the event hooks
func (c *Config) WithHooks(hooks *Hooks) *Config {
	c.Hooks = hooks
	return c
}

// WithLogger sets the logger used for background failures
func (c *Config) WithLogger(logger logrus.FieldLogger) *Config {
	c.Logger = logger
	return c
}

// WithClock overrides the time source
func (c *Config) WithClock(clock func() time.Time) *Config {
	c.Clock = clock
	return c
}

// Validate reports the first unusable setting
func (c *Config) Validate() error {
	if c.MaxSize < 0 {
		return fmt.Errorf("%w: max size must not be negative, got %d", ErrInvalidConfig, c.MaxSize)
	}
	if c.MaxItems < 0 {
		return fmt.Errorf("%w: max items must not be negative, got %d", ErrInvalidConfig, c.MaxItems)
	}
	if c.DefaultTTL < 0 {
		return fmt.Errorf("%w: default TTL must not be negative, got %s", ErrInvalidConfig, c.DefaultTTL)
	}
	if _, ok := eviction.ParseType(string(c.Strategy)); !ok {
		return fmt.Errorf("%w: unknown strategy %q", ErrInvalidConfig, c.Strategy)
	}
	w := c.Weights
	if w.Age < 0 || w.Recency < 0 || w.Frequency < 0 || w.Priority < 0 {
		return fmt.Errorf("%w: adaptive weights must not be negative", ErrInvalidConfig)
	}
	if c.EnablePrefetching && c.Loader == nil {
		return fmt.Errorf("%w: prefetching requires a loader", ErrInvalidConfig)
	}
	if c.Maintenance.SweepInterval < 0 || c.Maintenance.MetricsInterval < 0 {
		return fmt.Errorf("%w: maintenance intervals must not be negative", ErrInvalidConfig)
	}
	if c.EnableCompression && c.Compression != nil && c.Compression.MinSize < 0 {
		return fmt.Errorf("%w: compression threshold must not be negative", ErrInvalidConfig)
	}
	return nil
}

// defaultLogger writes warnings and above to stderr
func defaultLogger() logrus.FieldLogger {
	logger := logrus.New()
	logger.SetOutput(os.Stderr)
	logger.SetLevel(logrus.WarnLevel)
	return logger
}
