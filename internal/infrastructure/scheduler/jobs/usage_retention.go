package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"
)

// ══════════════════════════════════════════════════════════════════════════════
// USAGE RETENTION JOB
// ══════════════════════════════════════════════════════════════════════════════

// UsagePruner deletes command usage rows older than the cutoff.
type UsagePruner interface {
	PruneOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// UsageRetentionJob purges old command usage audit rows. The audit table
// grows with every dispatched command, so without retention it becomes the
// largest table in the database within months.
type UsageRetentionJob struct {
	// Dependencies
	usage  UsagePruner
	logger *slog.Logger

	// Configuration
	config UsageRetentionConfig

	// State
	lastRunStats atomic.Value // *UsageRetentionStats
}

// UsageRetentionConfig contains configuration for the usage retention job.
type UsageRetentionConfig struct {
	// RetentionDays keeps rows younger than this. Zero disables pruning.
	RetentionDays int

	// Timeout is the maximum duration for one purge.
	Timeout time.Duration
}

// DefaultUsageRetentionConfig returns sensible defaults.
func DefaultUsageRetentionConfig() UsageRetentionConfig {
	return UsageRetentionConfig{
		RetentionDays: 90,
		Timeout:       2 * time.Minute,
	}
}

// UsageRetentionStats contains statistics from a purge run.
type UsageRetentionStats struct {
	StartedAt   time.Time
	CompletedAt time.Time
	Duration    time.Duration
	Cutoff      time.Time
	RowsPruned  int64
}

// NewUsageRetentionJob creates a new usage retention job.
func NewUsageRetentionJob(usage UsagePruner, logger *slog.Logger, config UsageRetentionConfig) *UsageRetentionJob {
	if logger == nil {
		logger = slog.Default()
	}
	if config.Timeout <= 0 {
		config.Timeout = 2 * time.Minute
	}

	return &UsageRetentionJob{
		usage:  usage,
		logger: logger,
		config: config,
	}
}

// Name returns the job name.
func (j *UsageRetentionJob) Name() string {
	return "usage_retention"
}

// Description returns a human-readable description.
func (j *UsageRetentionJob) Description() string {
	return "Purges command usage rows older than the retention window"
}

// Run executes one purge.
func (j *UsageRetentionJob) Run(ctx context.Context) error {
	if j.config.RetentionDays <= 0 {
		j.logger.Info("usage retention is disabled")
		return nil
	}

	startedAt := time.Now()
	cutoff := time.Now().UTC().AddDate(0, 0, -j.config.RetentionDays)

	ctx, cancel := context.WithTimeout(ctx, j.config.Timeout)
	defer cancel()

	pruned, err := j.usage.PruneOlderThan(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("prune command usage: %w", err)
	}

	stats := &UsageRetentionStats{
		StartedAt:   startedAt,
		CompletedAt: time.Now(),
		Cutoff:      cutoff,
		RowsPruned:  pruned,
	}
	stats.Duration = stats.CompletedAt.Sub(startedAt)
	j.lastRunStats.Store(stats)

	j.logger.Info("usage_retention job completed",
		"duration", stats.Duration.String(),
		"cutoff", cutoff.Format(time.RFC3339),
		"rows_pruned", pruned,
	)

	return nil
}

// LastRunStats returns statistics from the last purge.
func (j *UsageRetentionJob) LastRunStats() *UsageRetentionStats {
	stats := j.lastRunStats.Load()
	if stats == nil {
		return nil
	}
	return stats.(*UsageRetentionStats)
}
