package middleware

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/questline-hub/questline-bot/internal/domain/usage"
)

// ══════════════════════════════════════════════════════════════════════════════
// BOT STATS
// In-memory counters since process start. Fed by the dispatch loop,
// read by the status command and the HTTP stats endpoint, so every
// method is safe for concurrent use.
// ══════════════════════════════════════════════════════════════════════════════

// BotStats tracks runtime counters for the bot process.
type BotStats struct {
	mu        sync.RWMutex
	startedAt time.Time
	messages  int64
	commands  int64
	errors    int64
	perCmd    map[string]int64
}

// NewBotStats creates stats anchored at the current time.
func NewBotStats() *BotStats {
	return &BotStats{
		startedAt: time.Now(),
		perCmd:    make(map[string]int64),
	}
}

// RecordMessage counts one observed message.
func (s *BotStats) RecordMessage() {
	s.mu.Lock()
	s.messages++
	s.mu.Unlock()
}

// RecordCommand counts one dispatched command.
func (s *BotStats) RecordCommand(name string, failed bool) {
	s.mu.Lock()
	s.commands++
	s.perCmd[name]++
	if failed {
		s.errors++
	}
	s.mu.Unlock()
}

// StatsSnapshot is a point-in-time copy of the counters.
type StatsSnapshot struct {
	StartedAt  time.Time        `json:"started_at"`
	Uptime     time.Duration    `json:"uptime"`
	Messages   int64            `json:"messages_seen"`
	Commands   int64            `json:"commands_executed"`
	Errors     int64            `json:"command_errors"`
	PerCommand map[string]int64 `json:"per_command"`
}

// Snapshot returns a consistent copy of all counters.
func (s *BotStats) Snapshot() StatsSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	perCmd := make(map[string]int64, len(s.perCmd))
	for name, count := range s.perCmd {
		perCmd[name] = count
	}

	return StatsSnapshot{
		StartedAt:  s.startedAt,
		Uptime:     time.Since(s.startedAt),
		Messages:   s.messages,
		Commands:   s.commands,
		Errors:     s.errors,
		PerCommand: perCmd,
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// METRICS MIDDLEWARE
// Counts dispatches in memory and journals every invocation to the
// command usage log, errors included. The journal write happens off
// the dispatch path; losing a row is better than slowing a reply.
// ══════════════════════════════════════════════════════════════════════════════

// MetricsConfig holds configuration for the metrics middleware.
type MetricsConfig struct {
	// RecordTimeout bounds the background usage journal write.
	RecordTimeout time.Duration

	// Logger for structured logging.
	Logger *slog.Logger
}

// DefaultMetricsConfig returns sensible defaults for metrics middleware.
func DefaultMetricsConfig() MetricsConfig {
	return MetricsConfig{
		RecordTimeout: 5 * time.Second,
	}
}

// MetricsMiddleware records command dispatch outcomes.
type MetricsMiddleware struct {
	stats  *BotStats
	usages usage.Repository
	config MetricsConfig
	logger *slog.Logger
	wg     sync.WaitGroup
}

// NewMetricsMiddleware creates a metrics middleware. The usage
// repository is optional; with nil only in-memory counters are kept.
func NewMetricsMiddleware(stats *BotStats, usages usage.Repository, config MetricsConfig) *MetricsMiddleware {
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	if config.RecordTimeout <= 0 {
		config.RecordTimeout = 5 * time.Second
	}

	return &MetricsMiddleware{
		stats:  stats,
		usages: usages,
		config: config,
		logger: config.Logger,
	}
}

// Stats exposes the underlying counters.
func (m *MetricsMiddleware) Stats() *BotStats {
	return m.stats
}

// ObserveCommand records one command outcome. A non-nil handlerErr or a
// recovered panic marks the invocation as failed in the journal.
func (m *MetricsMiddleware) ObserveCommand(
	userID int64,
	guildID *int64,
	command string,
	duration time.Duration,
	handlerErr error,
) {
	failed := handlerErr != nil
	m.stats.RecordCommand(command, failed)

	if m.usages == nil {
		return
	}

	record, err := usage.NewRecord(userID, command, guildID)
	if err != nil {
		m.logger.Warn("skip usage record", "command", command, "error", err)
		return
	}
	if handlerErr != nil {
		record.WithError(handlerErr.Error())
	}

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()

		ctx, cancel := context.WithTimeout(context.Background(), m.config.RecordTimeout)
		defer cancel()

		if err := m.usages.Record(ctx, record); err != nil {
			m.logger.Warn("record command usage",
				"command", command,
				"user_id", userID,
				"error", err,
			)
		}
	}()
}

// Flush waits for in-flight journal writes, bounded by the context.
func (m *MetricsMiddleware) Flush(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
