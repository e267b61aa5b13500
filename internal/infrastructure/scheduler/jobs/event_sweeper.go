// Package jobs contains implementations of scheduled jobs for the Questline bot.
package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/questline-hub/questline-bot/internal/domain/event"
	"github.com/questline-hub/questline-bot/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// EVENT SWEEPER JOB
// ══════════════════════════════════════════════════════════════════════════════

// EventStore is the slice of event storage the sweeper needs.
type EventStore interface {
	FindDueToOpen(ctx context.Context, now time.Time) ([]*event.Event, error)
	FindDueToComplete(ctx context.Context, now time.Time) ([]*event.Event, error)
	Update(ctx context.Context, e *event.Event) error
}

// EventSweeperJob moves community events through their scheduled lifecycle:
// pending events whose start time has passed become active, active events
// whose end time has passed become completed. Each transition is published
// on the event bus so announcements and counters follow automatically.
type EventSweeperJob struct {
	// Dependencies
	events    EventStore
	publisher shared.EventPublisher
	logger    *slog.Logger

	// Configuration
	config EventSweeperConfig

	// State
	lastRunStats atomic.Value // *EventSweeperStats
}

// EventSweeperConfig contains configuration for the event sweeper job.
type EventSweeperConfig struct {
	// Timeout is the maximum duration for one sweep.
	Timeout time.Duration
}

// DefaultEventSweeperConfig returns sensible defaults.
func DefaultEventSweeperConfig() EventSweeperConfig {
	return EventSweeperConfig{
		Timeout: time.Minute,
	}
}

// EventSweeperStats contains statistics from a sweep run.
type EventSweeperStats struct {
	StartedAt   time.Time
	CompletedAt time.Time
	Duration    time.Duration
	Opened      int
	Closed      int
	Failed      int
	Errors      []error
}

// NewEventSweeperJob creates a new event sweeper job.
func NewEventSweeperJob(
	events EventStore,
	publisher shared.EventPublisher,
	logger *slog.Logger,
	config EventSweeperConfig,
) *EventSweeperJob {
	if logger == nil {
		logger = slog.Default()
	}
	if config.Timeout <= 0 {
		config.Timeout = time.Minute
	}

	return &EventSweeperJob{
		events:    events,
		publisher: publisher,
		logger:    logger,
		config:    config,
	}
}

// Name returns the job name.
func (j *EventSweeperJob) Name() string {
	return "event_sweeper"
}

// Description returns a human-readable description.
func (j *EventSweeperJob) Description() string {
	return "Activates and completes community events by their scheduled times"
}

// Run executes one sweep over due events.
func (j *EventSweeperJob) Run(ctx context.Context) error {
	startedAt := time.Now()
	stats := &EventSweeperStats{
		StartedAt: startedAt,
		Errors:    make([]error, 0),
	}

	ctx, cancel := context.WithTimeout(ctx, j.config.Timeout)
	defer cancel()

	now := time.Now().UTC()

	if err := j.openDue(ctx, now, stats); err != nil {
		return err
	}
	if err := j.closeDue(ctx, now, stats); err != nil {
		return err
	}

	stats.CompletedAt = time.Now()
	stats.Duration = stats.CompletedAt.Sub(startedAt)
	j.lastRunStats.Store(stats)

	if stats.Opened > 0 || stats.Closed > 0 || stats.Failed > 0 {
		j.logger.Info("event_sweeper job completed",
			"duration", stats.Duration.String(),
			"opened", stats.Opened,
			"closed", stats.Closed,
			"failed", stats.Failed,
		)
	}

	return nil
}

// openDue activates pending events whose start time has passed.
func (j *EventSweeperJob) openDue(ctx context.Context, now time.Time, stats *EventSweeperStats) error {
	due, err := j.events.FindDueToOpen(ctx, now)
	if err != nil {
		return fmt.Errorf("find events due to open: %w", err)
	}

	for _, e := range due {
		if err := e.Open(); err != nil {
			stats.Failed++
			stats.Errors = append(stats.Errors, err)
			j.logger.Error("event cannot be opened",
				"event_id", int64(e.ID),
				"status", string(e.Status),
				"error", err,
			)
			continue
		}

		if err := j.events.Update(ctx, e); err != nil {
			stats.Failed++
			stats.Errors = append(stats.Errors, err)
			j.logger.Error("failed to persist event activation",
				"event_id", int64(e.ID),
				"error", err,
			)
			continue
		}

		stats.Opened++
		j.logger.Info("event opened",
			"event_id", int64(e.ID),
			"name", e.Name,
		)

		var endTime time.Time
		if e.EndTime != nil {
			endTime = *e.EndTime
		}
		j.publish(shared.NewCommunityEventOpenedEvent(int64(e.ID), e.Name, endTime))
	}

	return nil
}

// closeDue completes active events whose window has closed.
func (j *EventSweeperJob) closeDue(ctx context.Context, now time.Time, stats *EventSweeperStats) error {
	due, err := j.events.FindDueToComplete(ctx, now)
	if err != nil {
		return fmt.Errorf("find events due to complete: %w", err)
	}

	for _, e := range due {
		if err := e.Complete(); err != nil {
			stats.Failed++
			stats.Errors = append(stats.Errors, err)
			j.logger.Error("event cannot be completed",
				"event_id", int64(e.ID),
				"status", string(e.Status),
				"error", err,
			)
			continue
		}

		if err := j.events.Update(ctx, e); err != nil {
			stats.Failed++
			stats.Errors = append(stats.Errors, err)
			j.logger.Error("failed to persist event completion",
				"event_id", int64(e.ID),
				"error", err,
			)
			continue
		}

		stats.Closed++
		j.logger.Info("event closed",
			"event_id", int64(e.ID),
			"name", e.Name,
			"participants", e.Participants,
		)

		j.publish(shared.NewCommunityEventClosedEvent(int64(e.ID), e.Name, e.Participants))
	}

	return nil
}

// publish sends an event to the bus. The store update already committed,
// so delivery failures are logged rather than returned.
func (j *EventSweeperJob) publish(e shared.Event) {
	if j.publisher == nil {
		return
	}
	if err := j.publisher.Publish(e); err != nil {
		j.logger.Warn("event publish failed",
			"event_type", string(e.EventType()),
			"error", err,
		)
	}
}

// LastRunStats returns statistics from the last sweep.
func (j *EventSweeperJob) LastRunStats() *EventSweeperStats {
	stats := j.lastRunStats.Load()
	if stats == nil {
		return nil
	}
	return stats.(*EventSweeperStats)
}
