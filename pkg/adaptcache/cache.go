package adaptcache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/1mb-dev/adaptcache/internal/entry"
	"github.com/1mb-dev/adaptcache/internal/eviction"
	"github.com/1mb-dev/adaptcache/internal/maintenance"
	"github.com/1mb-dev/adaptcache/internal/prefetch"
	"github.com/1mb-dev/adaptcache/internal/singleflight"
	"github.com/1mb-dev/adaptcache/internal/store"
	"github.com/1mb-dev/adaptcache/pkg/compression"
	"github.com/1mb-dev/adaptcache/pkg/metrics"
)

// Cache is an in-process cache with pluggable eviction, optional
// compression, request coalescing and access-pattern prefetching.
// Instances are independent; construct one per use and Destroy it when done.
type Cache struct {
	id     string
	config *Config
	store  *store.Store
	stats  counters
	hooks  *Hooks
	sf     singleflight.Group[string, any]
	logger logrus.FieldLogger
	now    func() time.Time

	// Compression
	compressor     compression.Compressor
	compressByDflt bool
	minCompress    int

	prefetcher *prefetch.Engine
	scheduler  *maintenance.Scheduler
	snapshot   atomic.Pointer[Metrics]

	// Metrics
	metricsExporter metrics.Exporter
	metricsLabels   metrics.Labels
	metricsStop     chan struct{}
	metricsWg       sync.WaitGroup

	closed      atomic.Bool
	destroyOnce sync.Once
}

// New creates a Cache with the given configuration. A nil config uses
// NewDefaultConfig.
func New(config *Config) (*Cache, error) {
	if config == nil {
		config = NewDefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}

	c := &Cache{
		id:     uuid.NewString(),
		config: config,
		hooks:  config.Hooks,
		now:    config.Clock,
	}
	if c.hooks == nil {
		c.hooks = NewHooks()
	}
	if c.now == nil {
		c.now = time.Now
	}

	logger := config.Logger
	if logger == nil {
		logger = defaultLogger()
	}
	c.logger = logger.WithField("cache_id", c.id)

	st, err := store.New(store.Config{
		MaxSize:  config.MaxSize,
		MaxItems: config.MaxItems,
		Policy:   eviction.NewPolicy(eviction.Config{Type: config.Strategy, Weights: config.Weights}),
		Now:      c.now,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	c.store = st

	if err := c.initializeCompression(); err != nil {
		return nil, fmt.Errorf("failed to initialize compression: %w", err)
	}

	if config.EnablePrefetching {
		if err := c.initializePrefetch(); err != nil {
			return nil, fmt.Errorf("failed to initialize prefetching: %w", err)
		}
	}

	c.initializeMetrics()

	if config.BackgroundSyncEnabled {
		c.initializeMaintenance()
	}

	return c, nil
}

// NewSimple creates a count-bounded cache without background tasks
func NewSimple(maxItems int, defaultTTL time.Duration) (*Cache, error) {
	return New(NewSimpleConfig(maxItems, defaultTTL))
}

// ID returns the instance identifier used in logs and metric labels
func (c *Cache) ID() string {
	return c.id
}

// Get retrieves a value from the cache by key
func (c *Cache) Get(key string) (any, bool) {
	return c.GetContext(context.Background(), key)
}

// GetContext retrieves a value from the cache by key. The context is passed
// to hooks.
func (c *Cache) GetContext(ctx context.Context, key string) (any, bool) {
	if c.closed.Load() {
		return nil, false
	}
	start := time.Now()
	defer c.sample(start)
	defer c.recordCacheOperation(metrics.OperationGet, start)

	e := c.lookup(ctx, key)
	if e == nil {
		return nil, false
	}

	value, err := c.decode(e)
	if err != nil {
		c.dropCorrupted(ctx, key, e, err)
		return nil, false
	}

	c.hooks.invokeOnHit(ctx, key, value)
	return value, true
}

// lookup performs the store read and the hit/miss bookkeeping
func (c *Cache) lookup(ctx context.Context, key string) *entry.Entry {
	hit, expired := c.store.Get(key)
	if expired != nil {
		c.stats.expirations.Add(1)
		c.notifyEvicted(ctx, expired, EvictReasonExpired)
	}

	if c.prefetcher != nil {
		c.prefetcher.Record(key)
	}

	if hit == nil {
		c.stats.misses.Add(1)
		c.hooks.invokeOnMiss(ctx, key)
		if c.prefetcher != nil {
			c.prefetcher.OnMiss(key)
		}
		return nil
	}

	c.stats.hits.Add(1)
	return hit
}

// dropCorrupted removes an entry that can no longer be decoded. The read
// already counted as a hit, so it is reclassified as a miss.
func (c *Cache) dropCorrupted(ctx context.Context, key string, e *entry.Entry, err error) {
	c.stats.hits.Add(-1)
	c.stats.misses.Add(1)
	c.store.DeleteMatching(func(cur *entry.Entry) bool {
		return cur.Key == key && cur.Seq == e.Seq
	})
	c.logger.WithError(fmt.Errorf("%w: %w", ErrCacheOperationFailed, err)).
		WithField("key", key).Warn("dropping undecodable cache entry")
	c.hooks.invokeOnMiss(ctx, key)
	if c.prefetcher != nil {
		c.prefetcher.OnMiss(key)
	}
}

// GetInto decodes the value stored under key into dst, which must be a
// non-nil pointer. It reports whether the key was found.
func (c *Cache) GetInto(key string, dst any) (bool, error) {
	return c.GetIntoContext(context.Background(), key, dst)
}

// GetIntoContext is GetInto with a context passed to hooks
func (c *Cache) GetIntoContext(ctx context.Context, key string, dst any) (bool, error) {
	start := time.Now()
	rv := reflect.ValueOf(dst)
	if !rv.IsValid() || rv.Kind() != reflect.Pointer || rv.IsNil() {
		return false, opError("get", key, start, ErrCacheOperationFailed, errors.New("destination must be a non-nil pointer"))
	}

	value, found := c.GetContext(ctx, key)
	if !found {
		return false, nil
	}

	target := rv.Elem()
	if value != nil {
		v := reflect.ValueOf(value)
		if v.Type().AssignableTo(target.Type()) {
			target.Set(v)
			return true, nil
		}
	}

	// Compressed values come back as generic JSON; re-decode into dst
	data, err := json.Marshal(value)
	if err == nil {
		err = json.Unmarshal(data, dst)
	}
	if err != nil {
		return true, opError("get", key, start, ErrSerializationFailed, err)
	}
	return true, nil
}

// GetAs retrieves key decoded as T. Decode failures are reported as misses.
func GetAs[T any](c *Cache, key string) (T, bool) {
	var v T
	found, err := c.GetInto(key, &v)
	if err != nil || !found {
		var zero T
		return zero, false
	}
	return v, true
}

// Set stores value under key. Without WithTTL the configured DefaultTTL applies.
func (c *Cache) Set(key string, value any, opts ...SetOption) error {
	return c.SetContext(context.Background(), key, value, opts...)
}

// SetContext stores value under key. The context is passed to eviction hooks.
func (c *Cache) SetContext(ctx context.Context, key string, value any, opts ...SetOption) error {
	start := time.Now()
	defer c.recordCacheOperation(metrics.OperationSet, start)

	if c.closed.Load() {
		return opError("set", key, start, ErrCacheClosed, nil)
	}

	o := setOptions{priority: PriorityMedium}
	for _, opt := range opts {
		opt(&o)
	}
	if !o.ttlSet {
		o.ttl = c.config.DefaultTTL
	}

	data, raw, err := encodeValue(value)
	if err != nil {
		return opError("set", key, start, ErrSerializationFailed, err)
	}
	e, err := c.newEntry(key, value, data, raw, o)
	if err != nil {
		return opError("set", key, start, ErrCacheOperationFailed, err)
	}

	removals, err := c.store.Set(e)
	if err != nil {
		return opError("set", key, start, nil, err)
	}
	c.stats.sets.Add(1)
	c.handleRemovals(ctx, removals)
	return nil
}

// encodeValue returns the serialized form of value. Byte slices are
// stored as-is.
func encodeValue(value any) ([]byte, bool, error) {
	if raw, ok := value.([]byte); ok {
		return raw, true, nil
	}
	data, err := compression.Serialize(value)
	if err != nil {
		return nil, false, err
	}
	return data, false, nil
}

// newEntry builds the entry for value, compressing data when enabled and
// worthwhile
func (c *Cache) newEntry(key string, value any, data []byte, raw bool, o setOptions) (*entry.Entry, error) {
	e := entry.New(key, c.now(), o.ttl)
	e.Priority = o.priority
	e.SetTags(o.tags)
	e.Raw = raw
	e.OriginalSize = int64(len(data))

	compress := c.compressByDflt
	if o.compress != nil {
		compress = *o.compress
	}
	if compress {
		payload, ok, err := compression.CompressBytes(data, c.compressor, c.minCompress)
		if err != nil {
			return nil, fmt.Errorf("compress with %s: %w", c.compressor.Name(), err)
		}
		if ok {
			e.Payload = payload
			e.Compressed = true
			e.SizeBytes = int64(len(payload))
			return e, nil
		}
	}

	e.Value = value
	e.SizeBytes = int64(len(data))
	return e, nil
}

// decode returns the caller-facing value of e
func (c *Cache) decode(e *entry.Entry) (any, error) {
	if !e.Compressed {
		return e.Value, nil
	}

	data, err := c.compressor.Decompress(e.Payload)
	if err != nil {
		return nil, fmt.Errorf("decompress with %s: %w", c.compressor.Name(), err)
	}
	if e.Raw {
		return data, nil
	}

	var value any
	if err := json.Unmarshal(data, &value); err != nil {
		return nil, fmt.Errorf("decode payload: %w", err)
	}
	return value, nil
}

func (c *Cache) handleRemovals(ctx context.Context, removals []store.Removal) {
	for _, r := range removals {
		reason := EvictReasonCapacity
		if r.Reason == store.ReasonExpired {
			reason = EvictReasonExpired
			c.stats.expirations.Add(1)
		} else {
			c.stats.evictions.Add(1)
		}
		c.notifyEvicted(ctx, r.Entry, reason)
	}
}

func (c *Cache) notifyEvicted(ctx context.Context, e *entry.Entry, reason EvictReason) {
	if !c.hooks.hasEvict() {
		return
	}
	value, err := c.decode(e)
	if err != nil {
		value = nil
	}
	c.hooks.invokeOnEvict(ctx, e.Key, value, reason)
}

// Invalidate removes key. Removing an absent key is a no-op.
func (c *Cache) Invalidate(key string) {
	c.InvalidateContext(context.Background(), key)
}

// InvalidateContext removes key, passing ctx to invalidation hooks
func (c *Cache) InvalidateContext(ctx context.Context, key string) {
	start := time.Now()
	defer c.recordCacheOperation(metrics.OperationInvalidate, start)

	if _, ok := c.store.Delete(key); ok {
		c.stats.invalidations.Add(1)
		c.hooks.invokeOnInvalidate(ctx, key)
	}
}

// InvalidateByPattern removes every entry matching p and returns how many
// were removed
func (c *Cache) InvalidateByPattern(p Pattern) int {
	start := time.Now()
	defer c.recordCacheOperation(metrics.OperationInvalidate, start)

	if p.empty() {
		return 0
	}

	removed := c.store.DeleteMatching(func(e *entry.Entry) bool {
		return p.matches(e.Key, e.HasTag, e.TagList)
	})

	ctx := context.Background()
	for _, e := range removed {
		c.stats.invalidations.Add(1)
		c.hooks.invokeOnInvalidate(ctx, e.Key)
	}
	return len(removed)
}

// InvalidateByTag removes every entry carrying tag
func (c *Cache) InvalidateByTag(tag string) int {
	return c.InvalidateByPattern(TagPattern(tag))
}

// InvalidateByPrefix removes every key starting with prefix
func (c *Cache) InvalidateByPrefix(prefix string) int {
	return c.InvalidateByPattern(PrefixPattern(prefix))
}

// InvalidateByKeySubstring removes every key containing s
func (c *Cache) InvalidateByKeySubstring(s string) int {
	return c.InvalidateByPattern(SubstringPattern(s))
}

// Coalesce runs op for key unless an identical call is already in flight,
// in which case it waits for and shares that call's result. op sees a
// context that is cancelled only once every waiting caller has given up.
func (c *Cache) Coalesce(ctx context.Context, key string, op func(ctx context.Context) (any, error)) (any, error) {
	start := time.Now()
	defer c.recordCacheOperation(metrics.OperationCoalesce, start)

	if c.closed.Load() {
		return nil, opError("coalesce", key, start, ErrCacheClosed, nil)
	}

	v, _, err := c.coalesce(ctx, key, start, op)
	return v, err
}

func (c *Cache) coalesce(ctx context.Context, key string, start time.Time, op func(ctx context.Context) (any, error)) (any, bool, error) {
	v, err, shared := c.sf.Do(ctx, key, op)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
			return nil, shared, opError("coalesce", key, start, nil, err)
		}
		return nil, shared, opError("coalesce", key, start, ErrDeduplicatedOperationFailed, err)
	}
	return v, shared, nil
}

// CoalesceAs is a typed form of Cache.Coalesce
func CoalesceAs[T any](ctx context.Context, c *Cache, key string, op func(ctx context.Context) (T, error)) (T, error) {
	v, err := c.Coalesce(ctx, key, func(ctx context.Context) (any, error) {
		return op(ctx)
	})
	if err != nil {
		var zero T
		return zero, err
	}
	t, ok := v.(T)
	if !ok {
		var zero T
		return zero, fmt.Errorf("%w: coalesced result for %q is %T", ErrCacheOperationFailed, key, v)
	}
	return t, nil
}

// GetOrLoad returns the cached value for key or loads, stores and returns
// it. Concurrent loads of the same key are coalesced. A value that loads
// but cannot be cached is still returned; the storage failure is logged.
func (c *Cache) GetOrLoad(ctx context.Context, key string, loader LoaderFunc, opts ...SetOption) (any, error) {
	if v, ok := c.GetContext(ctx, key); ok {
		return v, nil
	}

	start := time.Now()
	defer c.recordCacheOperation(metrics.OperationCoalesce, start)
	if c.closed.Load() {
		return nil, opError("coalesce", key, start, ErrCacheClosed, nil)
	}

	var ran atomic.Bool
	v, _, err := c.coalesce(ctx, key, start, func(ctx context.Context) (any, error) {
		ran.Store(true)
		return c.load(ctx, key, loader, opts)
	})
	if err != nil || ran.Load() {
		return v, err
	}

	// Joined another caller's load, which stored the value under its own
	// options, e.g. a prefetch fill at background priority
	if err := c.SetContext(ctx, key, v, opts...); err != nil {
		c.logger.WithError(err).WithField("key", key).Warn("loaded value was not cached")
	}
	return v, nil
}

func (c *Cache) load(ctx context.Context, key string, loader LoaderFunc, opts []SetOption) (any, error) {
	v, err := loader(ctx, key)
	if err != nil {
		return nil, err
	}
	if err := c.SetContext(ctx, key, v, opts...); err != nil {
		c.logger.WithError(err).WithField("key", key).Warn("loaded value was not cached")
	}
	return v, nil
}

// Has reports whether a live entry exists for key without recording an access
func (c *Cache) Has(key string) bool {
	return c.store.Contains(key)
}

// TTL returns the remaining time-to-live for key. Entries without expiry
// report zero and true.
func (c *Cache) TTL(key string) (time.Duration, bool) {
	e, ok := c.store.Peek(key)
	if !ok {
		return 0, false
	}
	return e.Remaining(c.now()), true
}

// Keys returns resident keys, least recently used first
func (c *Cache) Keys() []string {
	return c.store.Keys()
}

// Len returns the number of resident entries
func (c *Cache) Len() int {
	return c.store.Len()
}

// Sweep removes expired entries and returns how many were removed
func (c *Cache) Sweep() int {
	start := time.Now()
	defer c.recordCacheOperation(metrics.OperationCleanup, start)

	removed := c.store.Sweep()
	if len(removed) == 0 {
		return 0
	}
	c.stats.expirations.Add(int64(len(removed)))

	ctx := context.Background()
	for _, e := range removed {
		c.notifyEvicted(ctx, e, EvictReasonExpired)
	}
	c.logger.WithField("removed", len(removed)).Debug("expired entries swept")
	return len(removed)
}

// Clear removes every entry. Each removal counts as an invalidation.
func (c *Cache) Clear() {
	keys := c.store.Clear()
	c.stats.invalidations.Add(int64(len(keys)))

	ctx := context.Background()
	for _, key := range keys {
		c.hooks.invokeOnInvalidate(ctx, key)
	}
}

// Metrics returns the snapshot kept by the metrics refresh task. Without a
// scheduled refresh task every call recomputes it.
func (c *Cache) Metrics() Metrics {
	if !c.metricsScheduled() {
		return c.RefreshMetrics()
	}
	if m := c.snapshot.Load(); m != nil {
		return *m
	}
	return c.RefreshMetrics()
}

func (c *Cache) metricsScheduled() bool {
	if c.scheduler == nil || c.closed.Load() {
		return false
	}
	_, ok := c.scheduler.EntryID(maintenance.TaskMetrics)
	return ok
}

// RefreshMetrics recomputes the derived metrics snapshot and returns it
func (c *Cache) RefreshMetrics() Metrics {
	hits := c.stats.hits.Load()
	misses := c.stats.misses.Load()
	total := hits + misses
	evictions := c.stats.evictions.Load()
	stored, original := c.store.Usage()

	m := Metrics{
		Hits:          hits,
		Misses:        misses,
		TotalRequests: total,
		Evictions:     evictions,
		Expirations:   c.stats.expirations.Load(),
		Invalidations: c.stats.invalidations.Load(),
		Sets:          c.stats.sets.Load(),
		HitRate:       ratio(hits, total),
		MissRate:      ratio(misses, total),
		EvictionRate:  ratio(evictions, total),
		MemoryUsage:   stored,
		KeyCount:      int64(c.store.Len()),
		InFlight:      int64(c.sf.InFlight()),
		ComputedAt:    c.now(),
	}

	m.CompressionRatio = 1
	if original > 0 {
		m.CompressionRatio = float64(stored) / float64(original)
	}

	m.AverageResponseTime, m.ResponseSamples = c.stats.averageResponse()

	if c.prefetcher != nil {
		m.PrefetchSuccesses = c.prefetcher.Successes()
		m.PrefetchFailures = c.prefetcher.Failures()
		m.PrefetchSuccessRate = ratio(m.PrefetchSuccesses, m.PrefetchSuccesses+m.PrefetchFailures)
	}

	c.snapshot.Store(&m)
	return m
}

// ResetStats zeroes the running counters and drops the current snapshot
func (c *Cache) ResetStats() {
	c.stats.reset()
	c.snapshot.Store(nil)
}

// Statistics returns structural information about the cache
func (c *Cache) Statistics() Statistics {
	s := Statistics{
		Size:              c.store.Len(),
		MemoryUsage:       c.store.Size(),
		AccessOrderLength: c.store.AccessOrderLen(),
		InFlight:          c.sf.InFlight(),
	}
	if c.prefetcher != nil {
		s.PrefetchQueueSize = c.prefetcher.QueueSize()
	}
	if c.scheduler != nil {
		s.BackgroundTaskCount = c.scheduler.TaskCount()
		s.MaintenanceVersion = c.scheduler.Config().Version
	}
	if c.metricsStop != nil && !c.closed.Load() {
		s.BackgroundTaskCount++
	}
	return s
}

// MaintenanceConfig returns the active maintenance configuration
func (c *Cache) MaintenanceConfig() MaintenanceConfig {
	if c.scheduler == nil {
		return c.config.Maintenance
	}
	return c.scheduler.Config()
}

// UpdateMaintenance changes the background task intervals. Only tasks whose
// interval changed are restarted.
func (c *Cache) UpdateMaintenance(config MaintenanceConfig) error {
	if c.scheduler == nil {
		return fmt.Errorf("%w: background maintenance is disabled", ErrInvalidConfig)
	}
	changed, err := c.scheduler.Update(config)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if len(changed) > 0 {
		c.logger.WithField("tasks", changed).Info("maintenance tasks restarted")
	}
	return nil
}

// Destroy stops all background work, exports final stats and empties the
// cache. Later operations behave as on an empty cache and Set fails with
// ErrCacheClosed.
func (c *Cache) Destroy() {
	c.destroyOnce.Do(func() {
		c.closed.Store(true)

		if c.scheduler != nil {
			c.scheduler.Stop()
		}
		if c.prefetcher != nil {
			c.prefetcher.Close()
		}
		if c.metricsStop != nil {
			close(c.metricsStop)
			c.metricsWg.Wait()
		}
		if c.metricsExporter != nil {
			if err := c.metricsExporter.Close(); err != nil {
				c.logger.WithError(err).Warn("failed to close metrics exporter")
			}
		}
		c.store.Clear()
	})
}

// Close implements io.Closer by calling Destroy
func (c *Cache) Close() error {
	c.Destroy()
	return nil
}

// initializeCompression builds the compressor. It is created even when
// compression is off by default, so WithCompress can opt single entries in.
func (c *Cache) initializeCompression() error {
	cfg := compression.NewDefaultConfig()
	if c.config.Compression != nil {
		copied := *c.config.Compression
		cfg = &copied
	}
	c.compressByDflt = c.config.EnableCompression
	c.minCompress = cfg.MinSize
	cfg.Enabled = true

	compressor, err := compression.NewCompressor(cfg)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	c.compressor = compressor
	return nil
}

func (c *Cache) initializePrefetch() error {
	loader := c.config.Loader
	fill := func(ctx context.Context, key string) error {
		_, err := c.Coalesce(ctx, key, func(ctx context.Context) (any, error) {
			return c.load(ctx, key, loader, []SetOption{WithPriority(PriorityBackground)})
		})
		return err
	}

	engine, err := prefetch.New(c.config.Prefetch, fill, c.store.Contains,
		prefetch.WithLogger(c.logger),
		prefetch.WithResultHandler(func(r prefetch.Result) {
			if c.config.EnableAnalytics {
				_ = c.metricsExporter.RecordCacheOperation(metrics.OperationPrefetch, r.Duration, c.metricsLabels)
			}
		}),
	)
	if err != nil {
		return err
	}
	c.prefetcher = engine
	return nil
}

func (c *Cache) initializeMaintenance() {
	c.scheduler = maintenance.New(c.config.Maintenance, c.logger)
	c.scheduler.Register(maintenance.TaskSweep, func() { c.Sweep() })
	c.scheduler.Register(maintenance.TaskMetrics, func() { c.RefreshMetrics() })
	c.scheduler.Start()
}

// initializeMetrics sets up the exporter and, if an interval is configured,
// the periodic stats reporter
func (c *Cache) initializeMetrics() {
	c.metricsExporter = metrics.NewNoOpExporter()
	c.metricsLabels = metrics.Labels{"cache_name": "default", "cache_id": c.id}

	mc := c.config.Metrics
	if mc == nil || !mc.Enabled || mc.Exporter == nil {
		return
	}

	c.metricsExporter = mc.Exporter
	if mc.CacheName != "" {
		c.metricsLabels["cache_name"] = mc.CacheName
	}
	for k, v := range mc.Labels {
		c.metricsLabels[k] = v
	}

	if mc.ReportingInterval > 0 {
		c.metricsStop = make(chan struct{})
		c.metricsWg.Add(1)
		go c.metricsReporter(mc.ReportingInterval)
	}
}

// metricsReporter periodically exports cache statistics
func (c *Cache) metricsReporter(interval time.Duration) {
	defer c.metricsWg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.exportCurrentStats()
		case <-c.metricsStop:
			// Final export before shutting down
			c.exportCurrentStats()
			return
		}
	}
}

// exportCurrentStats refreshes the snapshot and hands it to the exporter
func (c *Cache) exportCurrentStats() {
	m := c.RefreshMetrics()
	if err := c.metricsExporter.ExportStats(statsView{m: &m}, c.metricsLabels); err != nil {
		c.logger.WithError(err).Warn("failed to export cache metrics")
	}
}

// recordCacheOperation reports an operation's latency to the exporter
func (c *Cache) recordCacheOperation(op metrics.Operation, start time.Time) {
	if !c.config.EnableAnalytics {
		return
	}
	_ = c.metricsExporter.RecordCacheOperation(op, time.Since(start), c.metricsLabels)
}

// sample adds a response-time sample to the ring buffer
func (c *Cache) sample(start time.Time) {
	if !c.config.EnableAnalytics {
		return
	}
	c.stats.observe(time.Since(start))
}
