package adaptcache

import (
	"sync"
	"sync/atomic"
	"time"
)

// responseSamples is the capacity of the response-time ring buffer
const responseSamples = 1000

// counters holds the running totals updated on the hot path
type counters struct {
	hits          atomic.Int64
	misses        atomic.Int64
	evictions     atomic.Int64
	expirations   atomic.Int64
	invalidations atomic.Int64
	sets          atomic.Int64

	mu      sync.Mutex
	samples [responseSamples]time.Duration
	count   int
	next    int
}

func (c *counters) observe(d time.Duration) {
	c.mu.Lock()
	c.samples[c.next] = d
	c.next = (c.next + 1) % responseSamples
	if c.count < responseSamples {
		c.count++
	}
	c.mu.Unlock()
}

func (c *counters) averageResponse() (time.Duration, int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.count == 0 {
		return 0, 0
	}
	var total time.Duration
	for i := 0; i < c.count; i++ {
		total += c.samples[i]
	}
	return total / time.Duration(c.count), c.count
}

func (c *counters) reset() {
	c.hits.Store(0)
	c.misses.Store(0)
	c.evictions.Store(0)
	c.expirations.Store(0)
	c.invalidations.Store(0)
	c.sets.Store(0)

	c.mu.Lock()
	c.count = 0
	c.next = 0
	c.mu.Unlock()
}

// Metrics is a derived snapshot of cache behaviour. Snapshots are
// recomputed by the maintenance scheduler, not on every operation.
type Metrics struct {
	Hits          int64
	Misses        int64
	TotalRequests int64
	Evictions     int64
	Expirations   int64
	Invalidations int64
	Sets          int64

	HitRate      float64
	MissRate     float64
	EvictionRate float64

	// MemoryUsage is the accounted size of resident entries in bytes
	MemoryUsage int64
	KeyCount    int64
	InFlight    int64

	AverageResponseTime time.Duration
	ResponseSamples     int

	PrefetchSuccesses   int64
	PrefetchFailures    int64
	PrefetchSuccessRate float64

	// CompressionRatio is stored bytes over uncompressed bytes; 1 means no savings
	CompressionRatio float64

	ComputedAt time.Time
}

// Statistics describes the cache's current structure
type Statistics struct {
	Size                int
	MemoryUsage         int64
	AccessOrderLength   int
	PrefetchQueueSize   int
	BackgroundTaskCount int
	InFlight            int
	MaintenanceVersion  uint64
}

func ratio(num, den int64) float64 {
	if den == 0 {
		return 0
	}
	return float64(num) / float64(den)
}

// statsView adapts a snapshot to metrics.Stats
type statsView struct {
	m *Metrics
}

func (s statsView) Hits() int64                        { return s.m.Hits }
func (s statsView) Misses() int64                      { return s.m.Misses }
func (s statsView) Evictions() int64                   { return s.m.Evictions }
func (s statsView) Invalidations() int64               { return s.m.Invalidations }
func (s statsView) KeyCount() int64                    { return s.m.KeyCount }
func (s statsView) InFlight() int64                    { return s.m.InFlight }
func (s statsView) HitRate() float64                   { return s.m.HitRate }
func (s statsView) MemoryUsage() int64                 { return s.m.MemoryUsage }
func (s statsView) PrefetchSuccesses() int64           { return s.m.PrefetchSuccesses }
func (s statsView) PrefetchFailures() int64            { return s.m.PrefetchFailures }
func (s statsView) CompressionRatio() float64          { return s.m.CompressionRatio }
func (s statsView) AverageResponseTime() time.Duration { return s.m.AverageResponseTime }
