package store

import (
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/simplelru"

	"github.com/1mb-dev/adaptcache/internal/entry"
	"github.com/1mb-dev/adaptcache/internal/eviction"
)

// ErrTooLarge is returned when a single entry can never fit within MaxSize.
var ErrTooLarge = errors.New("entry exceeds maximum cache size")

// Reason tells why an entry left the store without being explicitly deleted.
type Reason int

const (
	// ReasonCapacity means the entry was evicted to make room
	ReasonCapacity Reason = iota
	// ReasonExpired means the entry's TTL elapsed
	ReasonExpired
)

// Removal describes an entry removed by the store on its own initiative.
type Removal struct {
	Entry  *entry.Entry
	Reason Reason
}

// Config holds store limits and collaborators.
type Config struct {
	// MaxSize is the byte budget across all entries. Zero means unlimited.
	MaxSize int64
	// MaxItems bounds the entry count. Zero means unlimited.
	MaxItems int
	Policy   eviction.Policy
	// Now is the clock used for expiry and scoring. Defaults to time.Now.
	Now func() time.Time
}

// Store is a mutex-guarded key to entry map with an access-order index and
// byte/item capacity accounting. Callbacks never run under its lock.
type Store struct {
	mu      sync.Mutex
	items   map[string]*entry.Entry
	order   *simplelru.LRU[string, struct{}]
	size    int64
	logical int64
	seq     uint64

	maxSize  int64
	maxItems int
	policy   eviction.Policy
	now      func() time.Time
}

// New creates a store.
func New(config Config) (*Store, error) {
	if config.MaxSize < 0 || config.MaxItems < 0 {
		return nil, fmt.Errorf("invalid store limits: max size %d, max items %d", config.MaxSize, config.MaxItems)
	}

	// The index never evicts on its own; capacity is enforced by ensureSpace.
	order, err := simplelru.NewLRU[string, struct{}](math.MaxInt32, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create access index: %w", err)
	}

	policy := config.Policy
	if policy == nil {
		policy = eviction.NewPolicy(eviction.Config{Type: eviction.Adaptive})
	}
	now := config.Now
	if now == nil {
		now = time.Now
	}

	return &Store{
		items:    make(map[string]*entry.Entry),
		order:    order,
		maxSize:  config.MaxSize,
		maxItems: config.MaxItems,
		policy:   policy,
		now:      now,
	}, nil
}

// Get returns a copy of the live entry for key and records the access.
// If the entry had expired it is removed and returned as expired.
func (s *Store) Get(key string) (hit *entry.Entry, expired *entry.Entry) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.items[key]
	if !ok {
		return nil, nil
	}

	now := s.now()
	if e.IsExpiredAt(now) {
		s.removeLocked(e)
		return nil, e
	}

	e.Touch(now)
	s.order.Get(key)
	return e.Clone(), nil
}

// Peek returns a copy of the live entry without recording an access.
func (s *Store) Peek(key string) (*entry.Entry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.items[key]
	if !ok || e.IsExpiredAt(s.now()) {
		return nil, false
	}
	return e.Clone(), true
}

// Contains reports whether a live entry exists for key.
func (s *Store) Contains(key string) bool {
	_, ok := s.Peek(key)
	return ok
}

// Set inserts or replaces e, evicting other entries first if the limits
// would otherwise be exceeded. It returns everything removed to make room.
func (s *Store) Set(e *entry.Entry) ([]Removal, error) {
	if s.maxSize > 0 && e.SizeBytes > s.maxSize {
		return nil, fmt.Errorf("%w: %d > %d bytes", ErrTooLarge, e.SizeBytes, s.maxSize)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if old, ok := s.items[e.Key]; ok {
		s.removeLocked(old)
	}

	removed := s.ensureSpaceLocked(e.SizeBytes)

	s.seq++
	e.Seq = s.seq
	s.items[e.Key] = e
	s.order.Add(e.Key, struct{}{})
	s.size += e.SizeBytes
	s.logical += e.OriginalSize

	return removed, nil
}

// ensureSpaceLocked frees room for an entry of requiredSize bytes. Expired
// entries go first, then policy-selected victims.
func (s *Store) ensureSpaceLocked(requiredSize int64) []Removal {
	bytesNeeded, itemsNeeded := s.shortfallLocked(requiredSize)
	if bytesNeeded <= 0 && itemsNeeded <= 0 {
		return nil
	}

	now := s.now()
	var removed []Removal
	for _, e := range s.items {
		if e.IsExpiredAt(now) {
			s.removeLocked(e)
			removed = append(removed, Removal{Entry: e, Reason: ReasonExpired})
		}
	}

	bytesNeeded, itemsNeeded = s.shortfallLocked(requiredSize)
	if bytesNeeded <= 0 && itemsNeeded <= 0 {
		return removed
	}

	keys := s.order.Keys()
	candidates := make([]*entry.Entry, 0, len(keys))
	for _, k := range keys {
		if e, ok := s.items[k]; ok {
			candidates = append(candidates, e)
		}
	}

	for _, victim := range eviction.Victims(s.policy, candidates, now, bytesNeeded, itemsNeeded) {
		s.removeLocked(victim)
		removed = append(removed, Removal{Entry: victim, Reason: ReasonCapacity})
	}
	return removed
}

func (s *Store) shortfallLocked(requiredSize int64) (bytesNeeded int64, itemsNeeded int) {
	if s.maxSize > 0 {
		bytesNeeded = s.size + requiredSize - s.maxSize
	}
	if s.maxItems > 0 {
		itemsNeeded = len(s.items) + 1 - s.maxItems
	}
	return bytesNeeded, itemsNeeded
}

func (s *Store) removeLocked(e *entry.Entry) {
	delete(s.items, e.Key)
	s.order.Remove(e.Key)
	s.size -= e.SizeBytes
	s.logical -= e.OriginalSize
}

// Delete removes key and returns the removed entry, if any.
func (s *Store) Delete(key string) (*entry.Entry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.items[key]
	if !ok {
		return nil, false
	}
	s.removeLocked(e)
	return e, true
}

// DeleteMatching removes every entry for which match returns true. The
// predicate is evaluated on copies outside the lock; an entry replaced in
// the meantime is left alone.
func (s *Store) DeleteMatching(match func(e *entry.Entry) bool) []*entry.Entry {
	s.mu.Lock()
	snapshot := make([]*entry.Entry, 0, len(s.items))
	for _, e := range s.items {
		snapshot = append(snapshot, e.Clone())
	}
	s.mu.Unlock()

	var matched []*entry.Entry
	for _, e := range snapshot {
		if match(e) {
			matched = append(matched, e)
		}
	}
	if len(matched) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	removed := make([]*entry.Entry, 0, len(matched))
	for _, m := range matched {
		current, ok := s.items[m.Key]
		if !ok || current.Seq != m.Seq {
			continue
		}
		s.removeLocked(current)
		removed = append(removed, current)
	}
	return removed
}

// Sweep removes every expired entry.
func (s *Store) Sweep() []*entry.Entry {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	var removed []*entry.Entry
	for _, e := range s.items {
		if e.IsExpiredAt(now) {
			s.removeLocked(e)
			removed = append(removed, e)
		}
	}
	return removed
}

// Clear removes all entries and returns their keys.
func (s *Store) Clear() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	keys := make([]string, 0, len(s.items))
	for k := range s.items {
		keys = append(keys, k)
	}
	s.items = make(map[string]*entry.Entry)
	s.order.Purge()
	s.size = 0
	s.logical = 0
	return keys
}

// Keys returns resident keys, least recently used first.
func (s *Store) Keys() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.order.Keys()
}

// Len returns the number of resident entries.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

// AccessOrderLen returns the length of the access-order index.
func (s *Store) AccessOrderLen() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.order.Len()
}

// Size returns the accounted byte size of all resident entries.
func (s *Store) Size() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.size
}

// Usage returns the stored and pre-compression byte totals.
func (s *Store) Usage() (stored, original int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.size, s.logical
}

// Limits returns the configured byte and item bounds.
func (s *Store) Limits() (maxSize int64, maxItems int) {
	return s.maxSize, s.maxItems
}
