package adaptcache

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/1mb-dev/adaptcache/internal/maintenance"
	"github.com/1mb-dev/adaptcache/internal/prefetch"
	"github.com/1mb-dev/adaptcache/pkg/compression"
)

// EnvPrefix is the prefix for environment overrides, e.g.
// ADAPTCACHE_MAX_ITEMS or ADAPTCACHE_COMPRESSION_ALGORITHM
const EnvPrefix = "ADAPTCACHE"

// fileConfig is the on-disk shape of Config
type fileConfig struct {
	MaxSize    int64         `mapstructure:"max_size"`
	MaxItems   int           `mapstructure:"max_items"`
	DefaultTTL time.Duration `mapstructure:"default_ttl"`
	Strategy   string        `mapstructure:"strategy"`

	Weights     Weights            `mapstructure:"weights"`
	Compression compression.Config `mapstructure:"compression"`
	Prefetch    prefetch.Config    `mapstructure:"prefetch"`
	Maintenance maintenance.Config `mapstructure:"maintenance"`

	EnablePrefetching     bool `mapstructure:"enable_prefetching"`
	EnableAnalytics       bool `mapstructure:"enable_analytics"`
	BackgroundSyncEnabled bool `mapstructure:"background_sync_enabled"`
}

func setDefaults(v *viper.Viper) {
	d := NewDefaultConfig()
	v.SetDefault("max_size", d.MaxSize)
	v.SetDefault("max_items", d.MaxItems)
	v.SetDefault("default_ttl", d.DefaultTTL)
	v.SetDefault("strategy", string(d.Strategy))

	v.SetDefault("weights.age", d.Weights.Age)
	v.SetDefault("weights.recency", d.Weights.Recency)
	v.SetDefault("weights.frequency", d.Weights.Frequency)
	v.SetDefault("weights.priority", d.Weights.Priority)

	v.SetDefault("compression.enabled", d.Compression.Enabled)
	v.SetDefault("compression.algorithm", string(d.Compression.Algorithm))
	v.SetDefault("compression.min_size", d.Compression.MinSize)
	v.SetDefault("compression.level", d.Compression.Level)

	v.SetDefault("prefetch.max_candidates", d.Prefetch.MaxCandidates)
	v.SetDefault("prefetch.separator", d.Prefetch.Separator)
	v.SetDefault("prefetch.history_size", d.Prefetch.HistorySize)
	v.SetDefault("prefetch.queue_size", d.Prefetch.QueueSize)
	v.SetDefault("prefetch.concurrency", d.Prefetch.Concurrency)
	v.SetDefault("prefetch.fill_timeout", d.Prefetch.FillTimeout)
	v.SetDefault("prefetch.breaker_failures", d.Prefetch.BreakerFailures)
	v.SetDefault("prefetch.breaker_cooldown", d.Prefetch.BreakerCooldown)

	v.SetDefault("maintenance.sweep_interval", d.Maintenance.SweepInterval)
	v.SetDefault("maintenance.metrics_interval", d.Maintenance.MetricsInterval)

	v.SetDefault("enable_prefetching", d.EnablePrefetching)
	v.SetDefault("enable_analytics", d.EnableAnalytics)
	v.SetDefault("background_sync_enabled", d.BackgroundSyncEnabled)
}

// LoadConfig reads a cache configuration file (YAML, JSON or TOML, by
// extension) and applies ADAPTCACHE_* environment overrides. An empty path
// loads defaults plus environment overrides only. Runtime-only fields such
// as Loader, Hooks and Metrics are left unset.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	}

	var fc fileConfig
	if err := v.Unmarshal(&fc); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	strategy, ok := ParseStrategy(fc.Strategy)
	if !ok {
		return nil, fmt.Errorf("%w: unknown strategy %q", ErrInvalidConfig, fc.Strategy)
	}

	compressionCfg := fc.Compression
	config := NewDefaultConfig().
		WithMaxSize(fc.MaxSize).
		WithMaxItems(fc.MaxItems).
		WithDefaultTTL(fc.DefaultTTL).
		WithStrategy(strategy).
		WithWeights(fc.Weights).
		WithCompression(&compressionCfg).
		WithPrefetchConfig(fc.Prefetch).
		WithAnalytics(fc.EnableAnalytics).
		WithBackgroundSync(fc.BackgroundSyncEnabled).
		WithMaintenance(fc.Maintenance)

	// Prefetching needs a loader, which only code can supply
	config.EnablePrefetching = fc.EnablePrefetching

	return config, nil
}
