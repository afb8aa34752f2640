// Package adaptcache provides a thread-safe, in-process cache with TTL support,
// pluggable eviction (LRU/LFU/TTL/Adaptive), optional compression, request
// coalescing and access-pattern prefetching.
//
// # Overview
//
// A Cache holds entries bounded by a byte budget and an item count. When a
// write would exceed either limit, expired entries are removed first and the
// configured strategy then picks victims until the new entry fits. Critical
// priority entries are always evicted last.
//
// # Basic Usage
//
//	cache, err := adaptcache.New(adaptcache.NewDefaultConfig())
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer cache.Destroy()
//
//	err = cache.Set("user:123", user,
//	    adaptcache.WithTTL(time.Hour),
//	    adaptcache.WithPriority(adaptcache.PriorityHigh),
//	    adaptcache.WithTags("users"))
//
//	value, found := cache.Get("user:123")
//
//	// Typed reads decode into the requested type
//	u, found := adaptcache.GetAs[User](cache, "user:123")
//
// # Loading and Coalescing
//
// GetOrLoad returns the cached value or runs the loader once, no matter how
// many goroutines miss the same key at the same time:
//
//	v, err := cache.GetOrLoad(ctx, key, func(ctx context.Context, key string) (any, error) {
//	    return db.FetchUser(ctx, id)
//	}, adaptcache.WithTTL(10*time.Minute))
//
// Coalesce exposes the deduplicator directly for operations that should not
// be cached.
//
// # Eviction Strategies
//
//	config := adaptcache.NewDefaultConfig().WithStrategy(adaptcache.StrategyLFU)
//
//   - LRU evicts the least recently accessed entry
//   - LFU evicts the least frequently accessed entry
//   - TTL evicts the entry closest to expiry
//   - Adaptive combines age, recency, frequency and priority with tunable weights
//
// # Prefetching
//
// With a loader configured, a miss on "user:42:profile" schedules background
// fills of the most requested keys sharing the "user:42" prefix. Fills run
// through the same coalescing path, behind a circuit breaker, and never
// affect foreground calls. Key builds keys in this shape.
//
// # Invalidation
//
//	cache.InvalidateByTag("users")
//	cache.InvalidateByPrefix("session:")
//	cache.InvalidateByPattern(adaptcache.PredicatePattern(func(key string, tags []string) bool {
//	    return strings.HasSuffix(key, ":draft")
//	}))
//
// # Metrics
//
// Metrics returns the latest derived snapshot; the maintenance scheduler
// refreshes it in the background and RefreshMetrics forces a recompute.
// Snapshots can be exported to Prometheus or OpenTelemetry through the
// metrics package.
//
// # Configuration Files
//
// LoadConfig reads YAML, JSON or TOML with ADAPTCACHE_* environment overrides.
package adaptcache
