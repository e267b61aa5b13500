package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/questline-hub/questline-bot/internal/infrastructure/persistence/postgres"
)

// ══════════════════════════════════════════════════════════════════════════════
// HEARTBEAT JOB
// ══════════════════════════════════════════════════════════════════════════════

// HealthReporter runs a database round-trip probe and reports pool state.
type HealthReporter interface {
	Health(ctx context.Context) (*postgres.HealthStatus, error)
}

// HeartbeatJob periodically probes the database and logs pool statistics.
// A failed probe makes the run fail, so the scheduler metrics and operator
// status commands surface database trouble without waiting for user traffic.
type HeartbeatJob struct {
	// Dependencies
	sessions HealthReporter
	logger   *slog.Logger

	// Configuration
	config HeartbeatConfig

	// State
	lastStatus atomic.Value // *postgres.HealthStatus
}

// HeartbeatConfig contains configuration for the heartbeat job.
type HeartbeatConfig struct {
	// Timeout bounds one probe round-trip.
	Timeout time.Duration
}

// DefaultHeartbeatConfig returns sensible defaults.
func DefaultHeartbeatConfig() HeartbeatConfig {
	return HeartbeatConfig{
		Timeout: 10 * time.Second,
	}
}

// NewHeartbeatJob creates a new heartbeat job.
func NewHeartbeatJob(sessions HealthReporter, logger *slog.Logger, config HeartbeatConfig) *HeartbeatJob {
	if logger == nil {
		logger = slog.Default()
	}
	if config.Timeout <= 0 {
		config.Timeout = 10 * time.Second
	}

	return &HeartbeatJob{
		sessions: sessions,
		logger:   logger,
		config:   config,
	}
}

// Name returns the job name.
func (j *HeartbeatJob) Name() string {
	return "heartbeat"
}

// Description returns a human-readable description.
func (j *HeartbeatJob) Description() string {
	return "Probes the database and logs connection pool statistics"
}

// Run executes one healthcheck round-trip.
func (j *HeartbeatJob) Run(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, j.config.Timeout)
	defer cancel()

	status, err := j.sessions.Health(ctx)
	if status != nil {
		j.lastStatus.Store(status)
	}
	if err != nil {
		j.logger.Error("heartbeat probe failed", "error", err)
		return fmt.Errorf("heartbeat probe: %w", err)
	}
	if !status.Healthy {
		j.logger.Error("heartbeat reports unhealthy database",
			"reason", status.Error,
			"breaker", status.Breaker,
		)
		return fmt.Errorf("database unhealthy: %s", status.Error)
	}

	j.logger.Info("heartbeat",
		"round_trip", status.RoundTrip.String(),
		"breaker", status.Breaker,
		"pool_size", status.Stats.Size,
		"in_use", status.Stats.InUse,
		"idle", status.Stats.Idle,
		"waits", status.Stats.Waits,
		"probe_failures", status.Stats.ProbeFailures,
	)

	return nil
}

// LastStatus returns the most recent probe result, or nil before the first run.
func (j *HeartbeatJob) LastStatus() *postgres.HealthStatus {
	status := j.lastStatus.Load()
	if status == nil {
		return nil
	}
	return status.(*postgres.HealthStatus)
}
