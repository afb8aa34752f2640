package entry

import (
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestExpiry(t *testing.T) {
	now := time.Unix(1000, 0)
	e := New("k", now, time.Second)

	assert.False(t, e.IsExpiredAt(now))
	assert.False(t, e.IsExpiredAt(now.Add(999*time.Millisecond)))
	assert.True(t, e.IsExpiredAt(now.Add(time.Second)), "entry must be expired exactly at createdAt+ttl")
	assert.Equal(t, now.Add(time.Second), e.ExpiresAt())
	assert.Equal(t, 400*time.Millisecond, e.Remaining(now.Add(600*time.Millisecond)))
	assert.Equal(t, time.Duration(0), e.Remaining(now.Add(2*time.Second)))
}

func TestNoExpiry(t *testing.T) {
	now := time.Unix(1000, 0)
	e := New("k", now, 0)

	assert.False(t, e.IsExpiredAt(now.Add(24*time.Hour)))
	assert.True(t, e.ExpiresAt().IsZero())
	assert.Equal(t, time.Duration(0), e.Remaining(now))
}

func TestTouch(t *testing.T) {
	now := time.Unix(1000, 0)
	e := New("k", now, 0)
	later := now.Add(time.Minute)

	e.Touch(later)
	e.Touch(later)

	assert.Equal(t, uint64(2), e.AccessCount)
	assert.Equal(t, later, e.LastAccessedAt)
	assert.Equal(t, now, e.CreatedAt)
}

func TestTags(t *testing.T) {
	e := New("k", time.Now(), 0)
	assert.Nil(t, e.TagList())
	assert.False(t, e.HasTag("a"))

	e.SetTags([]string{"b", "a", "a"})
	tags := e.TagList()
	sort.Strings(tags)
	assert.Equal(t, []string{"a", "b"}, tags)
	assert.True(t, e.HasTag("a"))

	e.SetTags(nil)
	assert.False(t, e.HasTag("a"))
}

func TestPriority(t *testing.T) {
	tests := []struct {
		name     string
		priority Priority
		weight   float64
	}{
		{"critical", PriorityCritical, 10},
		{"high", PriorityHigh, 7},
		{"medium", PriorityMedium, 5},
		{"low", PriorityLow, 3},
		{"background", PriorityBackground, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.weight, tt.priority.Weight())
			assert.Equal(t, tt.name, tt.priority.String())

			parsed, ok := ParsePriority(tt.name)
			assert.True(t, ok)
			assert.Equal(t, tt.priority, parsed)
		})
	}

	p, ok := ParsePriority("urgent")
	assert.False(t, ok)
	assert.Equal(t, PriorityMedium, p)
	assert.Equal(t, "unknown", Priority(42).String())
}

func TestClone(t *testing.T) {
	e := New("k", time.Now(), time.Minute)
	e.AccessCount = 3

	c := e.Clone()
	c.AccessCount = 9

	assert.Equal(t, uint64(3), e.AccessCount)
	assert.Equal(t, "k", c.Key)
}
