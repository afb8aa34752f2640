package maintenance

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietLogger() logrus.FieldLogger {
	logger, _ := test.NewNullLogger()
	return logger
}

func TestTasksRunPeriodically(t *testing.T) {
	s := New(Config{SweepInterval: 10 * time.Millisecond, MetricsInterval: 15 * time.Millisecond}, quietLogger())
	var sweeps, refreshes atomic.Int32
	s.Register(TaskSweep, func() { sweeps.Add(1) })
	s.Register(TaskMetrics, func() { refreshes.Add(1) })

	s.Start()
	defer s.Stop()

	require.Eventually(t, func() bool {
		return sweeps.Load() >= 2 && refreshes.Load() >= 2
	}, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, 2, s.TaskCount())
	assert.GreaterOrEqual(t, s.Runs(TaskSweep), int64(2))
}

func TestZeroIntervalDisablesTask(t *testing.T) {
	s := New(Config{SweepInterval: 10 * time.Millisecond}, quietLogger())
	var refreshes atomic.Int32
	s.Register(TaskSweep, func() {})
	s.Register(TaskMetrics, func() { refreshes.Add(1) })

	s.Start()
	defer s.Stop()

	_, ok := s.EntryID(TaskMetrics)
	assert.False(t, ok)
	assert.Equal(t, 1, s.TaskCount())

	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, int32(0), refreshes.Load())
}

func TestUpdateRestartsOnlyChangedTask(t *testing.T) {
	s := New(Config{SweepInterval: time.Hour, MetricsInterval: time.Hour}, quietLogger())
	s.Register(TaskSweep, func() {})
	var refreshes atomic.Int32
	s.Register(TaskMetrics, func() { refreshes.Add(1) })
	s.Start()
	defer s.Stop()

	sweepID, ok := s.EntryID(TaskSweep)
	require.True(t, ok)
	metricsID, ok := s.EntryID(TaskMetrics)
	require.True(t, ok)

	changed, err := s.Update(Config{SweepInterval: time.Hour, MetricsInterval: 10 * time.Millisecond})
	require.NoError(t, err)
	assert.Equal(t, []Task{TaskMetrics}, changed)

	newSweepID, _ := s.EntryID(TaskSweep)
	newMetricsID, _ := s.EntryID(TaskMetrics)
	assert.Equal(t, sweepID, newSweepID, "unchanged task must keep its entry")
	assert.NotEqual(t, metricsID, newMetricsID)

	cfg := s.Config()
	assert.Equal(t, uint64(1), cfg.Version)
	assert.Equal(t, 10*time.Millisecond, cfg.MetricsInterval)

	require.Eventually(t, func() bool { return refreshes.Load() >= 1 }, 2*time.Second, 5*time.Millisecond)

	changed, err = s.Update(s.Config())
	require.NoError(t, err)
	assert.Empty(t, changed)
	assert.Equal(t, uint64(2), s.Config().Version)
}

func TestUpdateRejectsNegativeIntervals(t *testing.T) {
	s := New(DefaultConfig(), quietLogger())
	_, err := s.Update(Config{SweepInterval: -time.Second})
	assert.Error(t, err)
	assert.Equal(t, uint64(0), s.Config().Version)
}

func TestPanickingTaskKeepsRunning(t *testing.T) {
	logger, hook := test.NewNullLogger()
	s := New(Config{SweepInterval: 10 * time.Millisecond}, logger)

	var runs atomic.Int32
	s.Register(TaskSweep, func() {
		runs.Add(1)
		panic("sweep failed")
	})
	s.Start()
	defer s.Stop()

	require.Eventually(t, func() bool { return runs.Load() >= 2 }, 2*time.Second, 5*time.Millisecond)
	assert.NotEmpty(t, hook.AllEntries(), "recovered panics should be logged")
}

func TestStopHaltsTasks(t *testing.T) {
	s := New(Config{SweepInterval: 5 * time.Millisecond}, quietLogger())
	var runs atomic.Int32
	s.Register(TaskSweep, func() { runs.Add(1) })
	s.Start()

	require.Eventually(t, func() bool { return runs.Load() >= 1 }, 2*time.Second, time.Millisecond)
	s.Stop()
	s.Stop()

	after := runs.Load()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, after, runs.Load())
	assert.Equal(t, 0, s.TaskCount())
}

func TestRunNow(t *testing.T) {
	s := New(DefaultConfig(), quietLogger())
	var runs atomic.Int32
	s.Register(TaskSweep, func() { runs.Add(1) })

	assert.True(t, s.RunNow(TaskSweep))
	assert.False(t, s.RunNow(TaskMetrics))
	assert.Equal(t, int32(1), runs.Load())
	assert.Equal(t, int64(1), s.Runs(TaskSweep))
}
