package eviction

import (
	"sort"
	"strings"
	"time"

	"github.com/1mb-dev/adaptcache/internal/entry"
)

// Policy scores entries for eviction. Entries with the lowest score are
// evicted first.
type Policy interface {
	// Type returns the strategy implemented by the policy
	Type() EvictionType

	// Score returns the retention score of e at the given instant
	Score(e *entry.Entry, now time.Time) float64
}

// EvictionType represents the type of eviction strategy
type EvictionType string

const (
	// LRU - Least Recently Used eviction
	LRU EvictionType = "lru"

	// LFU - Least Frequently Used eviction
	LFU EvictionType = "lfu"

	// TTL - oldest creation time first
	TTL EvictionType = "ttl"

	// Adaptive - weighted age, recency, frequency and priority
	Adaptive EvictionType = "adaptive"
)

// ParseType converts a strategy name to an EvictionType.
func ParseType(s string) (EvictionType, bool) {
	switch EvictionType(strings.ToLower(strings.TrimSpace(s))) {
	case LRU:
		return LRU, true
	case LFU:
		return LFU, true
	case TTL:
		return TTL, true
	case Adaptive, "":
		return Adaptive, true
	default:
		return Adaptive, false
	}
}

// Config holds configuration for eviction strategies
type Config struct {
	Type    EvictionType
	Weights Weights
}

// NewPolicy creates a new eviction policy based on the given config
func NewPolicy(config Config) Policy {
	switch config.Type {
	case LRU:
		return lruPolicy{}
	case LFU:
		return lfuPolicy{}
	case TTL:
		return ttlPolicy{}
	default:
		// Default to Adaptive
		w := config.Weights
		if w.IsZero() {
			w = DefaultWeights()
		}
		return &AdaptivePolicy{Weights: w}
	}
}

// Victims orders candidates for eviction and returns the shortest prefix
// that frees at least bytesNeeded bytes and itemsNeeded entries.
//
// Candidates must be supplied in access order, least recently used first.
// Critical entries are only selected once every other candidate is taken.
// Ties are broken by insertion order, except under LRU where the supplied
// access order is kept.
func Victims(p Policy, candidates []*entry.Entry, now time.Time, bytesNeeded int64, itemsNeeded int) []*entry.Entry {
	if len(candidates) == 0 || (bytesNeeded <= 0 && itemsNeeded <= 0) {
		return nil
	}

	type scored struct {
		e        *entry.Entry
		score    float64
		critical bool
	}

	ordered := make([]scored, len(candidates))
	for i, e := range candidates {
		ordered[i] = scored{
			e:        e,
			score:    p.Score(e, now),
			critical: e.Priority == entry.PriorityCritical,
		}
	}

	keepInputOrder := p.Type() == LRU
	sort.SliceStable(ordered, func(i, j int) bool {
		a, b := ordered[i], ordered[j]
		if a.critical != b.critical {
			return !a.critical
		}
		if a.score != b.score {
			return a.score < b.score
		}
		if keepInputOrder {
			return false
		}
		return a.e.Seq < b.e.Seq
	})

	var freed int64
	var victims []*entry.Entry
	for _, s := range ordered {
		if freed >= bytesNeeded && len(victims) >= itemsNeeded {
			break
		}
		victims = append(victims, s.e)
		freed += s.e.SizeBytes
	}
	return victims
}
