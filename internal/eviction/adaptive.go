package eviction

import (
	"time"

	"github.com/1mb-dev/adaptcache/internal/entry"
)

// maxPriorityWeight normalizes entry.Priority weights into [0,1].
const maxPriorityWeight = 10.0

// Weights are the coefficients of the adaptive score.
type Weights struct {
	Age       float64 `mapstructure:"age" json:"age"`
	Recency   float64 `mapstructure:"recency" json:"recency"`
	Frequency float64 `mapstructure:"frequency" json:"frequency"`
	Priority  float64 `mapstructure:"priority" json:"priority"`
}

// DefaultWeights returns age 0.3, recency 0.3, frequency 0.2, priority 0.2.
func DefaultWeights() Weights {
	return Weights{Age: 0.3, Recency: 0.3, Frequency: 0.2, Priority: 0.2}
}

// IsZero reports whether no weight is set.
func (w Weights) IsZero() bool {
	return w.Age == 0 && w.Recency == 0 && w.Frequency == 0 && w.Priority == 0
}

// AdaptivePolicy combines age, recency, frequency and priority into a
// single retention score. Each term is normalized into [0,1] so that a
// higher value means the entry is more worth keeping:
//
//	age       1/(1+ageSeconds)
//	recency   1/(1+idleSeconds)
//	frequency 1-1/(accessCount+1)
//	priority  priorityWeight/10
type AdaptivePolicy struct {
	Weights Weights
}

func (p *AdaptivePolicy) Type() EvictionType { return Adaptive }

// Score returns the weighted retention score of e.
func (p *AdaptivePolicy) Score(e *entry.Entry, now time.Time) float64 {
	age := now.Sub(e.CreatedAt).Seconds()
	if age < 0 {
		age = 0
	}
	idle := now.Sub(e.LastAccessedAt).Seconds()
	if idle < 0 {
		idle = 0
	}

	ageTerm := 1 / (1 + age)
	recencyTerm := 1 / (1 + idle)
	freqTerm := 1 - 1/(float64(e.AccessCount)+1)
	prioTerm := e.Priority.Weight() / maxPriorityWeight

	w := p.Weights
	return w.Age*ageTerm + w.Recency*recencyTerm + w.Frequency*freqTerm + w.Priority*prioTerm
}
