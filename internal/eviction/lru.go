package eviction

import (
	"time"

	"github.com/1mb-dev/adaptcache/internal/entry"
)

// lruPolicy evicts the entry with the oldest LastAccessedAt
type lruPolicy struct{}

func (lruPolicy) Type() EvictionType { return LRU }

func (lruPolicy) Score(e *entry.Entry, _ time.Time) float64 {
	return float64(e.LastAccessedAt.UnixNano())
}

// lfuPolicy evicts the entry with the lowest AccessCount
type lfuPolicy struct{}

func (lfuPolicy) Type() EvictionType { return LFU }

func (lfuPolicy) Score(e *entry.Entry, _ time.Time) float64 {
	return float64(e.AccessCount)
}

// ttlPolicy evicts the entry with the oldest CreatedAt
type ttlPolicy struct{}

func (ttlPolicy) Type() EvictionType { return TTL }

func (ttlPolicy) Score(e *entry.Entry, _ time.Time) float64 {
	return float64(e.CreatedAt.UnixNano())
}
