// Package prefetch speculatively fills keys related to a missed key.
//
// Related keys share the missed key's prefix up to the last separator and
// are ranked by how often they were requested, as recorded in a bounded
// access history. Fills run in the background with bounded concurrency
// behind a circuit breaker; their failures are counted, never returned.
package prefetch

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"
	"golang.org/x/sync/semaphore"
)

// ErrFailed marks a background fill that did not complete
var ErrFailed = errors.New("prefetch failed")

// FillFunc loads key from the authoritative source and stores it
type FillFunc func(ctx context.Context, key string) error

// ResidentFunc reports whether key is already cached
type ResidentFunc func(key string) bool

// Config holds prefetch tuning
type Config struct {
	// MaxCandidates is how many related keys are scheduled per miss
	MaxCandidates int `mapstructure:"max_candidates" json:"max_candidates"`
	// Separator splits the key prefix from its last segment
	Separator string `mapstructure:"separator" json:"separator"`
	// HistorySize bounds the number of keys whose access counts are kept
	HistorySize int `mapstructure:"history_size" json:"history_size"`
	// QueueSize bounds pending fills; candidates beyond it are dropped
	QueueSize int `mapstructure:"queue_size" json:"queue_size"`
	// Concurrency bounds fills running at once
	Concurrency int64 `mapstructure:"concurrency" json:"concurrency"`
	// FillTimeout bounds a single fill
	FillTimeout time.Duration `mapstructure:"fill_timeout" json:"fill_timeout"`
	// BreakerFailures consecutive failures open the breaker
	BreakerFailures uint32 `mapstructure:"breaker_failures" json:"breaker_failures"`
	// BreakerCooldown is how long the breaker stays open
	BreakerCooldown time.Duration `mapstructure:"breaker_cooldown" json:"breaker_cooldown"`
}

// DefaultConfig returns the default prefetch tuning
func DefaultConfig() Config {
	return Config{
		MaxCandidates:   3,
		Separator:       ":",
		HistorySize:     4096,
		QueueSize:       256,
		Concurrency:     4,
		FillTimeout:     10 * time.Second,
		BreakerFailures: 5,
		BreakerCooldown: 30 * time.Second,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.MaxCandidates <= 0 {
		c.MaxCandidates = d.MaxCandidates
	}
	if c.Separator == "" {
		c.Separator = d.Separator
	}
	if c.HistorySize <= 0 {
		c.HistorySize = d.HistorySize
	}
	if c.QueueSize <= 0 {
		c.QueueSize = d.QueueSize
	}
	if c.Concurrency <= 0 {
		c.Concurrency = d.Concurrency
	}
	if c.FillTimeout <= 0 {
		c.FillTimeout = d.FillTimeout
	}
	if c.BreakerFailures == 0 {
		c.BreakerFailures = d.BreakerFailures
	}
	if c.BreakerCooldown <= 0 {
		c.BreakerCooldown = d.BreakerCooldown
	}
	return c
}

// Result is reported after every attempted fill
type Result struct {
	Key      string
	Duration time.Duration
	Err      error
}

// Engine schedules and runs background fills
type Engine struct {
	config   Config
	fill     FillFunc
	resident ResidentFunc
	onResult func(Result)
	logger   logrus.FieldLogger

	history *lru.Cache[string, uint64]
	breaker *gobreaker.CircuitBreaker
	sem     *semaphore.Weighted

	mu     sync.Mutex
	queued map[string]struct{}
	queue  chan string
	closed bool

	successes atomic.Int64
	failures  atomic.Int64
	dropped   atomic.Int64

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// Option configures an Engine
type Option func(*Engine)

// WithLogger sets the logger used for fill failures
func WithLogger(logger logrus.FieldLogger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithResultHandler registers a callback invoked after each fill attempt
func WithResultHandler(fn func(Result)) Option {
	return func(e *Engine) {
		e.onResult = fn
	}
}

// New creates an engine and starts its dispatcher
func New(config Config, fill FillFunc, resident ResidentFunc, opts ...Option) (*Engine, error) {
	if fill == nil {
		return nil, fmt.Errorf("prefetch: fill function is required")
	}
	if resident == nil {
		resident = func(string) bool { return false }
	}
	config = config.withDefaults()

	history, err := lru.New[string, uint64](config.HistorySize)
	if err != nil {
		return nil, fmt.Errorf("prefetch: failed to create access history: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	e := &Engine{
		config:   config,
		fill:     fill,
		resident: resident,
		logger:   logrus.StandardLogger(),
		history:  history,
		sem:      semaphore.NewWeighted(config.Concurrency),
		queued:   make(map[string]struct{}),
		queue:    make(chan string, config.QueueSize),
		ctx:      ctx,
		cancel:   cancel,
	}
	for _, opt := range opts {
		opt(e)
	}

	e.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "prefetch",
		Timeout: config.BreakerCooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= config.BreakerFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			e.logger.WithFields(logrus.Fields{
				"breaker": name,
				"from":    from.String(),
				"to":      to.String(),
			}).Warn("prefetch circuit breaker state changed")
		},
	})

	e.wg.Add(1)
	go e.dispatch()
	return e, nil
}

// Record counts one request for key in the access history
func (e *Engine) Record(key string) {
	// Get+Add is not atomic; a lost increment under contention only
	// perturbs the ranking.
	count, _ := e.history.Get(key)
	e.history.Add(key, count+1)
}

// AccessCount returns the recorded request count for key
func (e *Engine) AccessCount(key string) uint64 {
	count, _ := e.history.Peek(key)
	return count
}

func (e *Engine) prefix(key string) (string, bool) {
	i := strings.LastIndex(key, e.config.Separator)
	if i <= 0 {
		return "", false
	}
	return key[:i+len(e.config.Separator)], true
}

// Candidates returns up to MaxCandidates related keys for missedKey, most
// requested first, skipping keys that are resident or already queued.
func (e *Engine) Candidates(missedKey string) []string {
	prefix, ok := e.prefix(missedKey)
	if !ok {
		return nil
	}

	type candidate struct {
		key   string
		count uint64
	}
	var found []candidate
	for _, k := range e.history.Keys() {
		if k == missedKey || !strings.HasPrefix(k, prefix) {
			continue
		}
		count, ok := e.history.Peek(k)
		if !ok {
			continue
		}
		found = append(found, candidate{key: k, count: count})
	}

	sort.Slice(found, func(i, j int) bool {
		if found[i].count != found[j].count {
			return found[i].count > found[j].count
		}
		return found[i].key < found[j].key
	})

	keys := make([]string, 0, e.config.MaxCandidates)
	for _, c := range found {
		if len(keys) == e.config.MaxCandidates {
			break
		}
		if e.isQueued(c.key) || e.resident(c.key) {
			continue
		}
		keys = append(keys, c.key)
	}
	return keys
}

func (e *Engine) isQueued(key string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, ok := e.queued[key]
	return ok
}

// OnMiss schedules fills for the keys related to missedKey and returns the
// keys that were queued.
func (e *Engine) OnMiss(missedKey string) []string {
	var scheduled []string
	for _, key := range e.Candidates(missedKey) {
		if e.Enqueue(key) {
			scheduled = append(scheduled, key)
		}
	}
	return scheduled
}

// Enqueue schedules a fill for key. It returns false if the key is already
// queued, the queue is full, or the engine is closed.
func (e *Engine) Enqueue(key string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return false
	}
	if _, ok := e.queued[key]; ok {
		return false
	}

	select {
	case e.queue <- key:
		e.queued[key] = struct{}{}
		return true
	default:
		e.dropped.Add(1)
		return false
	}
}

func (e *Engine) dispatch() {
	defer e.wg.Done()

	for {
		select {
		case <-e.ctx.Done():
			return
		case key := <-e.queue:
			if err := e.sem.Acquire(e.ctx, 1); err != nil {
				e.finish(key)
				return
			}
			e.wg.Add(1)
			go func() {
				defer e.wg.Done()
				defer e.sem.Release(1)
				e.run(key)
			}()
		}
	}
}

func (e *Engine) run(key string) {
	defer e.finish(key)

	if e.resident(key) {
		return
	}

	ctx, cancel := context.WithTimeout(e.ctx, e.config.FillTimeout)
	defer cancel()

	start := time.Now()
	_, err := e.breaker.Execute(func() (interface{}, error) {
		return nil, e.fill(ctx, key)
	})
	duration := time.Since(start)

	if err != nil {
		err = fmt.Errorf("%w: %s: %w", ErrFailed, key, err)
		e.failures.Add(1)
		e.logger.WithError(err).WithField("key", key).Debug("prefetch fill failed")
	} else {
		e.successes.Add(1)
	}

	if e.onResult != nil {
		e.onResult(Result{Key: key, Duration: duration, Err: err})
	}
}

func (e *Engine) finish(key string) {
	e.mu.Lock()
	delete(e.queued, key)
	e.mu.Unlock()
}

// QueueSize returns the number of fills queued or running
func (e *Engine) QueueSize() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.queued)
}

// Successes returns the number of completed fills
func (e *Engine) Successes() int64 { return e.successes.Load() }

// Failures returns the number of failed fills
func (e *Engine) Failures() int64 { return e.failures.Load() }

// Dropped returns the number of candidates rejected by a full queue
func (e *Engine) Dropped() int64 { return e.dropped.Load() }

// BreakerState returns the current circuit breaker state
func (e *Engine) BreakerState() gobreaker.State {
	return e.breaker.State()
}

// Reset forgets the access history
func (e *Engine) Reset() {
	e.history.Purge()
}

// Close stops scheduling, cancels running fills and waits for them
func (e *Engine) Close() {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.closed = true
	e.mu.Unlock()

	e.cancel()
	e.wg.Wait()

	e.mu.Lock()
	e.queued = make(map[string]struct{})
	e.mu.Unlock()
}
