package entry

import (
	"time"
)

// Priority biases eviction order. Higher priorities are retained longer.
type Priority int

const (
	// PriorityBackground is for speculative or easily recomputed data
	PriorityBackground Priority = iota
	// PriorityLow is for data that is cheap to refetch
	PriorityLow
	// PriorityMedium is the default priority
	PriorityMedium
	// PriorityHigh is for data that is expensive to refetch
	PriorityHigh
	// PriorityCritical entries are evicted only after every other candidate
	PriorityCritical
)

// Weight maps a priority to its eviction weight.
func (p Priority) Weight() float64 {
	switch p {
	case PriorityCritical:
		return 10
	case PriorityHigh:
		return 7
	case PriorityMedium:
		return 5
	case PriorityLow:
		return 3
	case PriorityBackground:
		return 1
	default:
		return 5
	}
}

func (p Priority) String() string {
	switch p {
	case PriorityCritical:
		return "critical"
	case PriorityHigh:
		return "high"
	case PriorityMedium:
		return "medium"
	case PriorityLow:
		return "low"
	case PriorityBackground:
		return "background"
	default:
		return "unknown"
	}
}

// ParsePriority converts a priority name to a Priority.
func ParsePriority(s string) (Priority, bool) {
	switch s {
	case "critical", "Critical":
		return PriorityCritical, true
	case "high", "High":
		return PriorityHigh, true
	case "medium", "Medium", "":
		return PriorityMedium, true
	case "low", "Low":
		return PriorityLow, true
	case "background", "Background":
		return PriorityBackground, true
	default:
		return PriorityMedium, false
	}
}

// Entry is a single resident cache item together with its bookkeeping.
//
// Exactly one of Value and Payload carries the data: Value holds the live
// object for uncompressed entries, Payload holds the compressed bytes.
type Entry struct {
	Key   string
	Value any

	Payload    []byte
	Compressed bool
	// Raw reports that the original value was a []byte and must not be
	// JSON-decoded after decompression.
	Raw bool

	CreatedAt      time.Time
	LastAccessedAt time.Time
	TTL            time.Duration
	AccessCount    uint64

	// SizeBytes is the size used for capacity accounting.
	SizeBytes int64
	// OriginalSize is the serialized size before compression.
	OriginalSize int64

	Priority Priority
	Tags     map[string]struct{}

	// Seq is the insertion sequence number used to break eviction ties.
	Seq uint64
}

// New creates an entry. A ttl <= 0 means the entry never expires.
func New(key string, now time.Time, ttl time.Duration) *Entry {
	return &Entry{
		Key:            key,
		CreatedAt:      now,
		LastAccessedAt: now,
		TTL:            ttl,
		Priority:       PriorityMedium,
	}
}

// ExpiresAt returns the expiry instant, or the zero time if the entry never expires.
func (e *Entry) ExpiresAt() time.Time {
	if e.TTL <= 0 {
		return time.Time{}
	}
	return e.CreatedAt.Add(e.TTL)
}

// IsExpiredAt reports whether the entry is stale at the given instant.
func (e *Entry) IsExpiredAt(now time.Time) bool {
	if e.TTL <= 0 {
		return false
	}
	return !now.Before(e.CreatedAt.Add(e.TTL))
}

// Remaining returns the time left before expiry.
func (e *Entry) Remaining(now time.Time) time.Duration {
	if e.TTL <= 0 {
		return 0
	}
	d := e.CreatedAt.Add(e.TTL).Sub(now)
	if d < 0 {
		return 0
	}
	return d
}

// Touch records a successful read.
func (e *Entry) Touch(now time.Time) {
	e.LastAccessedAt = now
	e.AccessCount++
}

// HasTag reports whether the entry carries tag.
func (e *Entry) HasTag(tag string) bool {
	_, ok := e.Tags[tag]
	return ok
}

// SetTags replaces the entry's tag set.
func (e *Entry) SetTags(tags []string) {
	if len(tags) == 0 {
		e.Tags = nil
		return
	}
	e.Tags = make(map[string]struct{}, len(tags))
	for _, t := range tags {
		e.Tags[t] = struct{}{}
	}
}

// TagList returns the entry's tags in no particular order.
func (e *Entry) TagList() []string {
	if len(e.Tags) == 0 {
		return nil
	}
	out := make([]string, 0, len(e.Tags))
	for t := range e.Tags {
		out = append(out, t)
	}
	return out
}

// Clone returns a shallow copy of the entry. Tags and payload are shared and
// must be treated as read-only.
func (e *Entry) Clone() *Entry {
	c := *e
	return &c
}
