// Package scheduler runs the bot's background jobs: community event
// sweeps, database heartbeats, usage retention and birthday digests.
// One engine serves both interval and cron schedules.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

var (
	ErrNilJob                  = errors.New("job cannot be nil")
	ErrNilSchedule             = errors.New("schedule cannot be nil")
	ErrJobAlreadyExists        = errors.New("job already exists")
	ErrJobNotFound             = errors.New("job not found")
	ErrSchedulerAlreadyRunning = errors.New("scheduler is already running")
	ErrSchedulerNotRunning     = errors.New("scheduler is not running")
)

// ══════════════════════════════════════════════════════════════════════════════
// JOB CONTRACT
// ══════════════════════════════════════════════════════════════════════════════

// Job is a unit of periodic work. Run receives a context that is
// cancelled when the scheduler stops.
type Job interface {
	Name() string
	Run(ctx context.Context) error
	Description() string
}

// Schedule decides when a job is next due.
type Schedule interface {
	// Next returns the first run time strictly after t.
	Next(t time.Time) time.Time

	String() string
}

// JobResult records one finished execution.
type JobResult struct {
	JobName     string
	StartedAt   time.Time
	CompletedAt time.Time
	Duration    time.Duration
	Success     bool
	Error       error
	Metadata    map[string]interface{}
}

// ══════════════════════════════════════════════════════════════════════════════
// SCHEDULER
// ══════════════════════════════════════════════════════════════════════════════

// SchedulerConfig contains configuration for the Scheduler.
type SchedulerConfig struct {
	Logger *slog.Logger

	// Timezone anchors schedule arithmetic (default UTC). Cron fields
	// in particular are interpreted in this location.
	Timezone *time.Location

	// MaxHistorySize caps the retained JobResult ring.
	MaxHistorySize int

	EnableMetrics bool
}

// DefaultSchedulerConfig returns sensible defaults.
func DefaultSchedulerConfig() SchedulerConfig {
	return SchedulerConfig{
		Logger:         slog.Default(),
		Timezone:       time.UTC,
		MaxHistorySize: 1000,
		EnableMetrics:  true,
	}
}

// entry is a registered job plus its scheduling state.
type entry struct {
	job       Job
	schedule  Schedule
	enabled   bool
	lastRun   time.Time
	nextRun   time.Time
	runCount  int64
	failCount int64
}

type hooks struct {
	onStart    func(jobName string)
	onComplete func(result JobResult)
	onError    func(jobName string, err error)
}

// Scheduler owns the job table and the tick loop. All mutation goes
// through the mutex; jobs themselves run on their own goroutines.
type Scheduler struct {
	logger *slog.Logger
	loc    *time.Location

	mu       sync.RWMutex
	entries  map[string]*entry
	lastRuns map[string]*JobResult
	history  *resultRing
	hooks    hooks

	running   bool
	startedAt time.Time
	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup

	metrics *SchedulerMetrics
}

// NewScheduler creates a new Scheduler with the given configuration.
func NewScheduler(config SchedulerConfig) *Scheduler {
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	if config.Timezone == nil {
		config.Timezone = time.UTC
	}
	if config.MaxHistorySize <= 0 {
		config.MaxHistorySize = 1000
	}

	s := &Scheduler{
		logger:   config.Logger,
		loc:      config.Timezone,
		entries:  make(map[string]*entry),
		lastRuns: make(map[string]*JobResult),
		history:  newResultRing(config.MaxHistorySize),
	}
	if config.EnableMetrics {
		s.metrics = NewSchedulerMetrics()
	}
	return s
}

// ─────────────────────────────────────────────────────────────────────────────
// Registration
// ─────────────────────────────────────────────────────────────────────────────

// Register adds a job under the given schedule. Names must be unique.
func (s *Scheduler) Register(job Job, schedule Schedule) error {
	if job == nil {
		return ErrNilJob
	}
	if schedule == nil {
		return ErrNilSchedule
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	name := job.Name()
	if _, taken := s.entries[name]; taken {
		return fmt.Errorf("%w: %s", ErrJobAlreadyExists, name)
	}

	e := &entry{
		job:      job,
		schedule: schedule,
		enabled:  true,
		nextRun:  schedule.Next(s.now()),
	}
	s.entries[name] = e

	s.logger.Info("job registered",
		"job", name,
		"description", job.Description(),
		"next_run", e.nextRun.Format(time.RFC3339),
	)
	return nil
}

// Unregister removes a job from the table.
func (s *Scheduler) Unregister(jobName string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.entries[jobName]; !ok {
		return fmt.Errorf("%w: %s", ErrJobNotFound, jobName)
	}
	delete(s.entries, jobName)
	s.logger.Info("job unregistered", "job", jobName)
	return nil
}

// EnableJob re-enables a disabled job and recomputes its next run.
func (s *Scheduler) EnableJob(jobName string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[jobName]
	if !ok {
		return fmt.Errorf("%w: %s", ErrJobNotFound, jobName)
	}
	e.enabled = true
	e.nextRun = e.schedule.Next(s.now())
	s.logger.Info("job enabled", "job", jobName, "next_run", e.nextRun)
	return nil
}

// DisableJob keeps the job registered but stops scheduling it.
func (s *Scheduler) DisableJob(jobName string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[jobName]
	if !ok {
		return fmt.Errorf("%w: %s", ErrJobNotFound, jobName)
	}
	e.enabled = false
	s.logger.Info("job disabled", "job", jobName)
	return nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Lifecycle
// ─────────────────────────────────────────────────────────────────────────────

// Start launches the tick loop.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return ErrSchedulerAlreadyRunning
	}
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.running = true
	s.startedAt = time.Now()
	jobCount := len(s.entries)
	s.mu.Unlock()

	s.logger.Info("scheduler started", "jobs_count", jobCount)

	s.wg.Add(1)
	go s.loop()
	return nil
}

// Stop cancels the loop and waits for in-flight jobs to finish.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return ErrSchedulerNotRunning
	}
	s.running = false
	s.cancel()
	s.mu.Unlock()

	s.wg.Wait()
	s.logger.Info("scheduler stopped", "uptime", time.Since(s.startedAt).String())
	return nil
}

// IsRunning reports whether the loop is active.
func (s *Scheduler) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

func (s *Scheduler) now() time.Time {
	return time.Now().In(s.loc)
}

// loop wakes once per second and dispatches everything that came due.
func (s *Scheduler) loop() {
	defer s.wg.Done()

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			for _, e := range s.collectDue() {
				s.wg.Add(1)
				go func(e *entry) {
					defer s.wg.Done()
					s.execute(s.ctx, e, nil)
				}(e)
			}
		}
	}
}

// collectDue advances nextRun for every due entry and returns them.
// Advancing under the lock before dispatch keeps a slow job from being
// started twice.
func (s *Scheduler) collectDue() []*entry {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	var due []*entry
	for _, e := range s.entries {
		if !e.enabled || e.nextRun.IsZero() || now.Before(e.nextRun) {
			continue
		}
		e.lastRun = now
		e.nextRun = e.schedule.Next(now)
		e.runCount++
		due = append(due, e)
	}
	return due
}

// execute runs one job and records the outcome. Both the tick loop and
// RunNow funnel through here; metadata distinguishes manual runs.
func (s *Scheduler) execute(ctx context.Context, e *entry, metadata map[string]interface{}) JobResult {
	name := e.job.Name()

	if fn := s.startHook(); fn != nil {
		fn(name)
	}
	s.logger.Info("job started", "job", name)

	startedAt := time.Now()
	err := e.job.Run(ctx)
	completedAt := time.Now()

	result := JobResult{
		JobName:     name,
		StartedAt:   startedAt,
		CompletedAt: completedAt,
		Duration:    completedAt.Sub(startedAt),
		Success:     err == nil,
		Error:       err,
		Metadata:    metadata,
	}
	if result.Metadata == nil {
		result.Metadata = make(map[string]interface{})
	}

	if s.metrics != nil {
		s.metrics.RecordExecution(name, result.Duration, err == nil)
	}

	s.mu.Lock()
	if err != nil {
		e.failCount++
	}
	s.lastRuns[name] = &result
	s.history.push(result)
	completeFn := s.hooks.onComplete
	errorFn := s.hooks.onError
	s.mu.Unlock()

	if err != nil {
		s.logger.Error("job failed",
			"job", name,
			"duration", result.Duration.String(),
			"error", err,
		)
		if errorFn != nil {
			errorFn(name, err)
		}
	} else {
		s.logger.Info("job completed",
			"job", name,
			"duration", result.Duration.String(),
		)
	}
	if completeFn != nil {
		completeFn(result)
	}
	return result
}

func (s *Scheduler) startHook() func(string) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.hooks.onStart
}

// ─────────────────────────────────────────────────────────────────────────────
// Manual execution
// ─────────────────────────────────────────────────────────────────────────────

// RunNow executes a job immediately, outside its schedule. The job's
// error is returned alongside the result.
func (s *Scheduler) RunNow(ctx context.Context, jobName string) (*JobResult, error) {
	s.mu.RLock()
	e, ok := s.entries[jobName]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrJobNotFound, jobName)
	}

	result := s.execute(ctx, e, map[string]interface{}{"manual": true})
	return &result, result.Error
}

// ─────────────────────────────────────────────────────────────────────────────
// Introspection
// ─────────────────────────────────────────────────────────────────────────────

// JobInfo describes a registered job for operator surfaces.
type JobInfo struct {
	Name        string
	Description string
	Enabled     bool
	Schedule    string
	LastRun     time.Time
	NextRun     time.Time
	RunCount    int64
	FailCount   int64
	LastResult  *JobResult
}

// ListJobs returns info for every registered job.
func (s *Scheduler) ListJobs() []JobInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()

	infos := make([]JobInfo, 0, len(s.entries))
	for name, e := range s.entries {
		infos = append(infos, s.describe(name, e))
	}
	return infos
}

// GetJobInfo returns info for one job.
func (s *Scheduler) GetJobInfo(jobName string) (*JobInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.entries[jobName]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrJobNotFound, jobName)
	}
	info := s.describe(jobName, e)
	return &info, nil
}

// describe assumes s.mu is held.
func (s *Scheduler) describe(name string, e *entry) JobInfo {
	return JobInfo{
		Name:        name,
		Description: e.job.Description(),
		Enabled:     e.enabled,
		Schedule:    e.schedule.String(),
		LastRun:     e.lastRun,
		NextRun:     e.nextRun,
		RunCount:    e.runCount,
		FailCount:   e.failCount,
		LastResult:  s.lastRuns[name],
	}
}

// GetHistory returns up to limit recent results, oldest first.
// limit <= 0 means everything retained.
func (s *Scheduler) GetHistory(limit int) []JobResult {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.history.tail(limit)
}

// GetMetrics returns the metrics tracker (nil when disabled).
func (s *Scheduler) GetMetrics() *SchedulerMetrics {
	return s.metrics
}

// ─────────────────────────────────────────────────────────────────────────────
// Hooks
// ─────────────────────────────────────────────────────────────────────────────

// OnJobStart registers a callback fired before each execution.
func (s *Scheduler) OnJobStart(fn func(jobName string)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hooks.onStart = fn
}

// OnJobComplete registers a callback fired after each execution.
func (s *Scheduler) OnJobComplete(fn func(result JobResult)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hooks.onComplete = fn
}

// OnJobError registers a callback fired after failed executions.
func (s *Scheduler) OnJobError(fn func(jobName string, err error)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hooks.onError = fn
}

// ══════════════════════════════════════════════════════════════════════════════
// HISTORY RING
// ══════════════════════════════════════════════════════════════════════════════

// resultRing is a fixed-capacity ring of JobResults.
type resultRing struct {
	buf   []JobResult
	next  int
	count int
}

func newResultRing(capacity int) *resultRing {
	return &resultRing{buf: make([]JobResult, capacity)}
}

func (r *resultRing) push(result JobResult) {
	r.buf[r.next] = result
	r.next = (r.next + 1) % len(r.buf)
	if r.count < len(r.buf) {
		r.count++
	}
}

// tail returns up to limit most recent results in chronological order.
func (r *resultRing) tail(limit int) []JobResult {
	if limit <= 0 || limit > r.count {
		limit = r.count
	}
	out := make([]JobResult, 0, limit)
	start := r.next - limit
	if start < 0 {
		start += len(r.buf)
	}
	for i := 0; i < limit; i++ {
		out = append(out, r.buf[(start+i)%len(r.buf)])
	}
	return out
}

// ══════════════════════════════════════════════════════════════════════════════
// METRICS
// ══════════════════════════════════════════════════════════════════════════════

// SchedulerMetrics aggregates execution counters across jobs.
type SchedulerMetrics struct {
	mu sync.RWMutex

	executions int64
	successes  int64
	failures   int64
	total      time.Duration

	perJob map[string]*jobMetrics
}

type jobMetrics struct {
	executions int64
	failures   int64
	total      time.Duration
	lastRun    time.Time
}

// NewSchedulerMetrics creates a new metrics tracker.
func NewSchedulerMetrics() *SchedulerMetrics {
	return &SchedulerMetrics{perJob: make(map[string]*jobMetrics)}
}

// RecordExecution records one finished execution.
func (m *SchedulerMetrics) RecordExecution(jobName string, duration time.Duration, success bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	jm, ok := m.perJob[jobName]
	if !ok {
		jm = &jobMetrics{}
		m.perJob[jobName] = jm
	}

	m.executions++
	m.total += duration
	jm.executions++
	jm.total += duration
	jm.lastRun = time.Now()

	if success {
		m.successes++
	} else {
		m.failures++
		jm.failures++
	}
}

// MetricsSnapshot is a point-in-time view of the counters.
type MetricsSnapshot struct {
	TotalExecutions int64
	TotalSuccesses  int64
	TotalFailures   int64
	SuccessRate     float64
	AverageDuration time.Duration
}

// Snapshot returns the current aggregate counters.
func (m *SchedulerMetrics) Snapshot() MetricsSnapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	snap := MetricsSnapshot{
		TotalExecutions: m.executions,
		TotalSuccesses:  m.successes,
		TotalFailures:   m.failures,
	}
	if m.executions > 0 {
		snap.SuccessRate = float64(m.successes) / float64(m.executions)
		snap.AverageDuration = m.total / time.Duration(m.executions)
	}
	return snap
}
