package adaptcache

import (
	"strings"
	"time"
)

type setOptions struct {
	ttl      time.Duration
	ttlSet   bool
	priority Priority
	tags     []string
	compress *bool
}

// SetOption customizes a single Set
type SetOption func(*setOptions)

// WithTTL overrides the default TTL. A zero TTL never expires.
func WithTTL(ttl time.Duration) SetOption {
	return func(o *setOptions) {
		o.ttl = ttl
		o.ttlSet = true
	}
}

// WithPriority sets the entry's eviction priority
func WithPriority(priority Priority) SetOption {
	return func(o *setOptions) {
		o.priority = priority
	}
}

// WithTags attaches tags used by InvalidateByTag
func WithTags(tags ...string) SetOption {
	return func(o *setOptions) {
		o.tags = append(o.tags, tags...)
	}
}

// WithCompress forces compression on or off for this entry, overriding
// EnableCompression. The size threshold still applies.
func WithCompress(enabled bool) SetOption {
	return func(o *setOptions) {
		o.compress = &enabled
	}
}

// Pattern selects entries for bulk invalidation. Every non-empty field must
// match; an empty Pattern matches nothing.
type Pattern struct {
	Tag       string
	Prefix    string
	Substring string
	Match     func(key string, tags []string) bool
}

// TagPattern matches entries carrying tag
func TagPattern(tag string) Pattern { return Pattern{Tag: tag} }

// PrefixPattern matches keys starting with prefix
func PrefixPattern(prefix string) Pattern { return Pattern{Prefix: prefix} }

// SubstringPattern matches keys containing s
func SubstringPattern(s string) Pattern { return Pattern{Substring: s} }

// PredicatePattern matches entries for which fn returns true
func PredicatePattern(fn func(key string, tags []string) bool) Pattern {
	return Pattern{Match: fn}
}

func (p Pattern) empty() bool {
	return p.Tag == "" && p.Prefix == "" && p.Substring == "" && p.Match == nil
}

func (p Pattern) matches(key string, hasTag func(string) bool, tags func() []string) bool {
	if p.empty() {
		return false
	}
	if p.Tag != "" && !hasTag(p.Tag) {
		return false
	}
	if p.Prefix != "" && !strings.HasPrefix(key, p.Prefix) {
		return false
	}
	if p.Substring != "" && !strings.Contains(key, p.Substring) {
		return false
	}
	if p.Match != nil && !p.Match(key, tags()) {
		return false
	}
	return true
}
