// Package maintenance runs the cache's periodic background tasks on a cron
// scheduler driven by a versioned interval configuration.
package maintenance

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// Task names a periodic job
type Task string

const (
	// TaskSweep removes expired entries
	TaskSweep Task = "sweep"
	// TaskMetrics recomputes the metrics snapshot
	TaskMetrics Task = "metrics"
)

// Config holds the task intervals. A zero interval disables the task.
type Config struct {
	SweepInterval   time.Duration `mapstructure:"sweep_interval" json:"sweep_interval"`
	MetricsInterval time.Duration `mapstructure:"metrics_interval" json:"metrics_interval"`

	// Version increases on every accepted update
	Version uint64 `mapstructure:"-" json:"version"`
}

// DefaultConfig returns a 60s sweep and a 30s metrics refresh
func DefaultConfig() Config {
	return Config{
		SweepInterval:   60 * time.Second,
		MetricsInterval: 30 * time.Second,
	}
}

// Interval returns the configured interval for task
func (c Config) Interval(task Task) time.Duration {
	switch task {
	case TaskSweep:
		return c.SweepInterval
	case TaskMetrics:
		return c.MetricsInterval
	default:
		return 0
	}
}

// every fires at a fixed interval. cron.Every rounds to whole seconds,
// which is too coarse for short intervals.
type every time.Duration

func (e every) Next(t time.Time) time.Time {
	return t.Add(time.Duration(e))
}

// Scheduler owns the cron instance and the registered tasks
type Scheduler struct {
	cron   *cron.Cron
	config atomic.Pointer[Config]
	logger logrus.FieldLogger

	mu      sync.Mutex
	jobs    map[Task]func()
	entries map[Task]cron.EntryID
	runs    map[Task]*atomic.Int64
	started bool
	stopped bool
}

// New creates a scheduler. Tasks are registered with Register and begin
// running on Start.
func New(config Config, logger logrus.FieldLogger) *Scheduler {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	cronLogger := cron.PrintfLogger(logger)

	s := &Scheduler{
		cron: cron.New(
			cron.WithLogger(cronLogger),
			cron.WithChain(cron.Recover(cronLogger), cron.SkipIfStillRunning(cronLogger)),
		),
		logger:  logger,
		jobs:    make(map[Task]func()),
		entries: make(map[Task]cron.EntryID),
		runs:    make(map[Task]*atomic.Int64),
	}
	s.config.Store(&config)
	return s
}

// Register adds fn as the job for task, replacing any previous job. If the
// scheduler is running the task is scheduled immediately.
func (s *Scheduler) Register(task Task, fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.jobs[task] = fn
	if _, ok := s.runs[task]; !ok {
		s.runs[task] = &atomic.Int64{}
	}
	if s.started && !s.stopped {
		s.scheduleLocked(task, s.config.Load().Interval(task))
	}
}

func (s *Scheduler) scheduleLocked(task Task, interval time.Duration) {
	if id, ok := s.entries[task]; ok {
		s.cron.Remove(id)
		delete(s.entries, task)
	}

	fn, ok := s.jobs[task]
	if !ok || interval <= 0 {
		return
	}

	runs := s.runs[task]
	s.entries[task] = s.cron.Schedule(every(interval), cron.FuncJob(func() {
		runs.Add(1)
		fn()
	}))
	s.logger.WithFields(logrus.Fields{
		"task":     string(task),
		"interval": interval.String(),
	}).Debug("maintenance task scheduled")
}

// Start schedules every registered task and starts the cron loop
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started || s.stopped {
		return
	}
	s.started = true

	cfg := s.config.Load()
	for task := range s.jobs {
		s.scheduleLocked(task, cfg.Interval(task))
	}
	s.cron.Start()
}

// Config returns the current configuration
func (s *Scheduler) Config() Config {
	return *s.config.Load()
}

// Update swaps in new intervals and reschedules only the tasks whose
// interval changed. It returns the rescheduled tasks.
func (s *Scheduler) Update(next Config) ([]Task, error) {
	if next.SweepInterval < 0 || next.MetricsInterval < 0 {
		return nil, fmt.Errorf("maintenance intervals must not be negative")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	prev := s.config.Load()
	next.Version = prev.Version + 1
	s.config.Store(&next)

	var changed []Task
	for _, task := range []Task{TaskSweep, TaskMetrics} {
		if prev.Interval(task) == next.Interval(task) {
			continue
		}
		changed = append(changed, task)
		if s.started && !s.stopped {
			s.scheduleLocked(task, next.Interval(task))
		}
	}

	if len(changed) > 0 {
		s.logger.WithField("version", next.Version).Info("maintenance configuration updated")
	}
	return changed, nil
}

// RunNow runs task synchronously outside the schedule
func (s *Scheduler) RunNow(task Task) bool {
	s.mu.Lock()
	fn, ok := s.jobs[task]
	runs := s.runs[task]
	s.mu.Unlock()

	if !ok {
		return false
	}
	runs.Add(1)
	fn()
	return true
}

// Runs returns how many times task has run
func (s *Scheduler) Runs(task Task) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r, ok := s.runs[task]; ok {
		return r.Load()
	}
	return 0
}

// TaskCount returns the number of scheduled tasks
func (s *Scheduler) TaskCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// EntryID returns the cron entry for task, used to observe restarts
func (s *Scheduler) EntryID(task Task) (cron.EntryID, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.entries[task]
	return id, ok
}

// Stop cancels every task and waits for running jobs to return
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	for task, id := range s.entries {
		s.cron.Remove(id)
		delete(s.entries, task)
	}
	s.mu.Unlock()

	<-s.cron.Stop().Done()
}
