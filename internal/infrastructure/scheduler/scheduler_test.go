package scheduler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestScheduler(config SchedulerConfig) *Scheduler {
	config.Logger = testLogger()
	return NewScheduler(config)
}

// fakeJob counts executions and optionally fails.
type fakeJob struct {
	name string
	err  error
	runs atomic.Int64
}

func (f *fakeJob) Name() string        { return f.name }
func (f *fakeJob) Description() string { return "test job" }

func (f *fakeJob) Run(ctx context.Context) error {
	f.runs.Add(1)
	return f.err
}

// ─────────────────────────────────────────────────────────────────────────────
// Registration
// ─────────────────────────────────────────────────────────────────────────────

func TestRegisterAndListJobs(t *testing.T) {
	s := newTestScheduler(DefaultSchedulerConfig())

	err := s.Register(&fakeJob{name: "sweep"}, NewIntervalSchedule(time.Minute))
	require.NoError(t, err)

	jobs := s.ListJobs()
	require.Len(t, jobs, 1)
	assert.Equal(t, "sweep", jobs[0].Name)
	assert.Equal(t, "test job", jobs[0].Description)
	assert.Equal(t, "@every 1m0s", jobs[0].Schedule)
	assert.True(t, jobs[0].Enabled)
	assert.True(t, jobs[0].NextRun.After(time.Now()))
	assert.True(t, jobs[0].LastRun.IsZero())
}

func TestRegisterRejectsNilAndDuplicates(t *testing.T) {
	s := newTestScheduler(DefaultSchedulerConfig())
	sched := NewIntervalSchedule(time.Minute)

	assert.ErrorIs(t, s.Register(nil, sched), ErrNilJob)
	assert.ErrorIs(t, s.Register(&fakeJob{name: "sweep"}, nil), ErrNilSchedule)

	require.NoError(t, s.Register(&fakeJob{name: "sweep"}, sched))
	assert.ErrorIs(t, s.Register(&fakeJob{name: "sweep"}, sched), ErrJobAlreadyExists)
}

func TestUnregisterRemovesJob(t *testing.T) {
	s := newTestScheduler(DefaultSchedulerConfig())
	require.NoError(t, s.Register(&fakeJob{name: "sweep"}, NewIntervalSchedule(time.Minute)))

	require.NoError(t, s.Unregister("sweep"))
	assert.Empty(t, s.ListJobs())

	assert.ErrorIs(t, s.Unregister("sweep"), ErrJobNotFound)
}

func TestEnableDisableJob(t *testing.T) {
	s := newTestScheduler(DefaultSchedulerConfig())
	require.NoError(t, s.Register(&fakeJob{name: "sweep"}, NewIntervalSchedule(time.Minute)))

	require.NoError(t, s.DisableJob("sweep"))
	info, err := s.GetJobInfo("sweep")
	require.NoError(t, err)
	assert.False(t, info.Enabled)

	require.NoError(t, s.EnableJob("sweep"))
	info, err = s.GetJobInfo("sweep")
	require.NoError(t, err)
	assert.True(t, info.Enabled)

	assert.ErrorIs(t, s.EnableJob("ghost"), ErrJobNotFound)
	assert.ErrorIs(t, s.DisableJob("ghost"), ErrJobNotFound)
}

// ─────────────────────────────────────────────────────────────────────────────
// Lifecycle
// ─────────────────────────────────────────────────────────────────────────────

func TestStartStopLifecycle(t *testing.T) {
	s := newTestScheduler(DefaultSchedulerConfig())

	require.NoError(t, s.Start(context.Background()))
	assert.True(t, s.IsRunning())
	assert.ErrorIs(t, s.Start(context.Background()), ErrSchedulerAlreadyRunning)

	require.NoError(t, s.Stop())
	assert.False(t, s.IsRunning())
	assert.ErrorIs(t, s.Stop(), ErrSchedulerNotRunning)
}

func TestSchedulerRunsDueJobsAndFiresHooks(t *testing.T) {
	s := newTestScheduler(DefaultSchedulerConfig())

	ok := &fakeJob{name: "ok"}
	failing := &fakeJob{name: "failing", err: errors.New("boom")}
	require.NoError(t, s.Register(ok, NewIntervalSchedule(10*time.Millisecond)))
	require.NoError(t, s.Register(failing, NewIntervalSchedule(10*time.Millisecond)))

	var starts, completes, failures atomic.Int64
	s.OnJobStart(func(string) { starts.Add(1) })
	s.OnJobComplete(func(JobResult) { completes.Add(1) })
	s.OnJobError(func(string, error) { failures.Add(1) })

	require.NoError(t, s.Start(context.Background()))
	defer s.Stop()

	// The loop ticks once per second, so the first due check needs a beat.
	assert.Eventually(t, func() bool {
		return ok.runs.Load() >= 1 && failing.runs.Load() >= 1
	}, 5*time.Second, 50*time.Millisecond)

	require.NoError(t, s.Stop())

	assert.GreaterOrEqual(t, starts.Load(), int64(2))
	assert.GreaterOrEqual(t, completes.Load(), int64(2))
	assert.GreaterOrEqual(t, failures.Load(), int64(1))

	info, err := s.GetJobInfo("failing")
	require.NoError(t, err)
	assert.GreaterOrEqual(t, info.FailCount, int64(1))
	require.NotNil(t, info.LastResult)
	assert.False(t, info.LastResult.Success)
}

// ─────────────────────────────────────────────────────────────────────────────
// Manual execution
// ─────────────────────────────────────────────────────────────────────────────

func TestRunNowExecutesImmediately(t *testing.T) {
	s := newTestScheduler(DefaultSchedulerConfig())
	job := &fakeJob{name: "sweep"}
	require.NoError(t, s.Register(job, NewIntervalSchedule(time.Hour)))

	result, err := s.RunNow(context.Background(), "sweep")
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.True(t, result.Success)
	assert.Equal(t, int64(1), job.runs.Load())
	assert.Equal(t, true, result.Metadata["manual"])

	_, err = s.RunNow(context.Background(), "ghost")
	assert.ErrorIs(t, err, ErrJobNotFound)
}

func TestRunNowReportsJobFailure(t *testing.T) {
	s := newTestScheduler(DefaultSchedulerConfig())
	job := &fakeJob{name: "sweep", err: errors.New("boom")}
	require.NoError(t, s.Register(job, NewIntervalSchedule(time.Hour)))

	result, err := s.RunNow(context.Background(), "sweep")
	require.Error(t, err)
	require.NotNil(t, result)
	assert.False(t, result.Success)
	assert.Equal(t, "boom", result.Error.Error())
}

// ─────────────────────────────────────────────────────────────────────────────
// History and metrics
// ─────────────────────────────────────────────────────────────────────────────

func TestHistoryRespectsConfiguredLimit(t *testing.T) {
	config := DefaultSchedulerConfig()
	config.MaxHistorySize = 3
	s := newTestScheduler(config)

	job := &fakeJob{name: "sweep"}
	require.NoError(t, s.Register(job, NewIntervalSchedule(time.Hour)))

	for i := 0; i < 5; i++ {
		_, err := s.RunNow(context.Background(), "sweep")
		require.NoError(t, err)
	}

	assert.Len(t, s.GetHistory(0), 3)
	assert.Len(t, s.GetHistory(2), 2)
}

func TestMetricsTrackExecutions(t *testing.T) {
	s := newTestScheduler(DefaultSchedulerConfig())
	require.NoError(t, s.Register(&fakeJob{name: "ok"}, NewIntervalSchedule(time.Hour)))
	require.NoError(t, s.Register(&fakeJob{name: "failing", err: errors.New("boom")}, NewIntervalSchedule(time.Hour)))

	s.RunNow(context.Background(), "ok")
	s.RunNow(context.Background(), "ok")
	s.RunNow(context.Background(), "failing")

	snap := s.GetMetrics().Snapshot()
	assert.Equal(t, int64(3), snap.TotalExecutions)
	assert.Equal(t, int64(2), snap.TotalSuccesses)
	assert.Equal(t, int64(1), snap.TotalFailures)
	assert.InDelta(t, 0.666, snap.SuccessRate, 0.01)
}
