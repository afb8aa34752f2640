package adaptcache

import (
	"context"
	"sort"
	"sync"
)

// Hook is a cache event handler with optional ordering and filtering
type Hook struct {
	// Order determines execution order (higher values execute first)
	Order int

	// Condition optionally filters hook execution. A nil condition always runs.
	Condition func(ctx context.Context, key string) bool

	// Exactly one of the handlers is set
	OnHit        func(ctx context.Context, key string, value any)
	OnMiss       func(ctx context.Context, key string)
	OnEvict      func(ctx context.Context, key string, value any, reason EvictReason)
	OnInvalidate func(ctx context.Context, key string)
}

// Hooks holds registered event hooks. Hooks run on the calling goroutine,
// never while the store lock is held.
type Hooks struct {
	mu           sync.RWMutex
	onHit        []Hook
	onMiss       []Hook
	onEvict      []Hook
	onInvalidate []Hook
}

// NewHooks creates an empty hook set
func NewHooks() *Hooks {
	return &Hooks{}
}

// EvictReason indicates why the cache removed an entry on its own
type EvictReason int

const (
	// EvictReasonCapacity means the entry was chosen by the eviction policy
	EvictReasonCapacity EvictReason = iota

	// EvictReasonExpired means the entry's TTL elapsed
	EvictReasonExpired
)

func (r EvictReason) String() string {
	switch r {
	case EvictReasonCapacity:
		return "Capacity"
	case EvictReasonExpired:
		return "Expired"
	default:
		return "Unknown"
	}
}

// HookOption configures a hook
type HookOption func(*Hook)

// WithHookOrder sets the hook execution order (higher values execute first)
func WithHookOrder(order int) HookOption {
	return func(h *Hook) {
		h.Order = order
	}
}

// WithHookCondition sets a condition that must hold for the hook to run
func WithHookCondition(condition func(ctx context.Context, key string) bool) HookOption {
	return func(h *Hook) {
		h.Condition = condition
	}
}

func newHook(h Hook, opts []HookOption) Hook {
	for _, opt := range opts {
		opt(&h)
	}
	return h
}

// insert returns a new slice sorted by descending order, so invocation
// iterates a stable snapshot without sorting
func insert(hooks []Hook, h Hook) []Hook {
	i := sort.Search(len(hooks), func(i int) bool { return hooks[i].Order < h.Order })
	out := make([]Hook, 0, len(hooks)+1)
	out = append(out, hooks[:i]...)
	out = append(out, h)
	return append(out, hooks[i:]...)
}

// AddOnHit registers a hook that runs on cache hits
func (h *Hooks) AddOnHit(fn func(ctx context.Context, key string, value any), opts ...HookOption) {
	h.mu.Lock()
	h.onHit = insert(h.onHit, newHook(Hook{OnHit: fn}, opts))
	h.mu.Unlock()
}

// AddOnMiss registers a hook that runs on cache misses
func (h *Hooks) AddOnMiss(fn func(ctx context.Context, key string), opts ...HookOption) {
	h.mu.Lock()
	h.onMiss = insert(h.onMiss, newHook(Hook{OnMiss: fn}, opts))
	h.mu.Unlock()
}

// AddOnEvict registers a hook that runs when entries are evicted or expire
func (h *Hooks) AddOnEvict(fn func(ctx context.Context, key string, value any, reason EvictReason), opts ...HookOption) {
	h.mu.Lock()
	h.onEvict = insert(h.onEvict, newHook(Hook{OnEvict: fn}, opts))
	h.mu.Unlock()
}

// AddOnInvalidate registers a hook that runs when entries are invalidated
func (h *Hooks) AddOnInvalidate(fn func(ctx context.Context, key string), opts ...HookOption) {
	h.mu.Lock()
	h.onInvalidate = insert(h.onInvalidate, newHook(Hook{OnInvalidate: fn}, opts))
	h.mu.Unlock()
}

func (h *Hooks) snapshot(hooks *[]Hook) []Hook {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return *hooks
}

func (h *Hooks) invokeOnHit(ctx context.Context, key string, value any) {
	for _, hook := range h.snapshot(&h.onHit) {
		if hook.Condition == nil || hook.Condition(ctx, key) {
			hook.OnHit(ctx, key, value)
		}
	}
}

func (h *Hooks) invokeOnMiss(ctx context.Context, key string) {
	for _, hook := range h.snapshot(&h.onMiss) {
		if hook.Condition == nil || hook.Condition(ctx, key) {
			hook.OnMiss(ctx, key)
		}
	}
}

func (h *Hooks) invokeOnEvict(ctx context.Context, key string, value any, reason EvictReason) {
	for _, hook := range h.snapshot(&h.onEvict) {
		if hook.Condition == nil || hook.Condition(ctx, key) {
			hook.OnEvict(ctx, key, value, reason)
		}
	}
}

func (h *Hooks) invokeOnInvalidate(ctx context.Context, key string) {
	for _, hook := range h.snapshot(&h.onInvalidate) {
		if hook.Condition == nil || hook.Condition(ctx, key) {
			hook.OnInvalidate(ctx, key)
		}
	}
}

// hasEvict reports whether eviction hooks are registered, so callers can
// skip decoding evicted values
func (h *Hooks) hasEvict() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.onEvict) > 0
}
