package middleware

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/questline-hub/questline-bot/internal/domain/usage"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeUsageRepo struct {
	usage.Repository

	mu      sync.Mutex
	records []*usage.Record
	block   chan struct{}
}

func (r *fakeUsageRepo) Record(ctx context.Context, rec *usage.Record) error {
	if r.block != nil {
		select {
		case <-r.block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, rec)
	return nil
}

func (r *fakeUsageRepo) all() []*usage.Record {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*usage.Record(nil), r.records...)
}

// ─────────────────────────────────────────────────────────────────────────────
// BotStats
// ─────────────────────────────────────────────────────────────────────────────

func TestBotStatsCountsConcurrently(t *testing.T) {
	stats := NewBotStats()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			stats.RecordMessage()
			stats.RecordCommand("profile", i%5 == 0)
		}(i)
	}
	wg.Wait()

	snap := stats.Snapshot()
	assert.Equal(t, int64(50), snap.Messages)
	assert.Equal(t, int64(50), snap.Commands)
	assert.Equal(t, int64(10), snap.Errors)
	assert.Equal(t, int64(50), snap.PerCommand["profile"])
}

func TestBotStatsSnapshotIsDetached(t *testing.T) {
	stats := NewBotStats()
	stats.RecordCommand("coins", false)

	snap := stats.Snapshot()
	snap.PerCommand["coins"] = 99

	assert.Equal(t, int64(1), stats.Snapshot().PerCommand["coins"])
}

func TestBotStatsTracksUptime(t *testing.T) {
	stats := NewBotStats()

	snap := stats.Snapshot()
	assert.False(t, snap.StartedAt.IsZero())
	assert.GreaterOrEqual(t, snap.Uptime, time.Duration(0))
}

// ─────────────────────────────────────────────────────────────────────────────
// Usage journal
// ─────────────────────────────────────────────────────────────────────────────

func TestMetricsJournalsCommandUsage(t *testing.T) {
	repo := &fakeUsageRepo{}
	m := NewMetricsMiddleware(NewBotStats(), repo, MetricsConfig{Logger: testLogger()})

	guildID := int64(100)
	m.ObserveCommand(42, &guildID, "profile", 12*time.Millisecond, nil)
	m.ObserveCommand(42, nil, "coins", 3*time.Millisecond, errors.New("boom"))

	assert.NoError(t, m.Flush(context.Background()))

	records := repo.all()
	assert.Len(t, records, 2)

	byCommand := make(map[string]*usage.Record)
	for _, rec := range records {
		byCommand[rec.CommandName] = rec
	}

	ok := byCommand["profile"]
	assert.Equal(t, int64(42), ok.UserID)
	assert.Equal(t, &guildID, ok.GuildID)
	assert.Nil(t, ok.ErrorMessage)

	failed := byCommand["coins"]
	assert.Nil(t, failed.GuildID)
	assert.NotNil(t, failed.ErrorMessage)
	assert.Equal(t, "boom", *failed.ErrorMessage)
}

func TestMetricsSkipsUnjournalableRecords(t *testing.T) {
	repo := &fakeUsageRepo{}
	m := NewMetricsMiddleware(NewBotStats(), repo, MetricsConfig{Logger: testLogger()})

	// A zero user ID cannot form a usage record; the command still counts.
	m.ObserveCommand(0, nil, "profile", time.Millisecond, nil)

	assert.NoError(t, m.Flush(context.Background()))
	assert.Empty(t, repo.all())
	assert.Equal(t, int64(1), m.Stats().Snapshot().Commands)
}

func TestMetricsCountsWithoutJournal(t *testing.T) {
	m := NewMetricsMiddleware(NewBotStats(), nil, MetricsConfig{Logger: testLogger()})

	m.ObserveCommand(42, nil, "profile", time.Millisecond, nil)

	snap := m.Stats().Snapshot()
	assert.Equal(t, int64(1), snap.Commands)
	assert.NoError(t, m.Flush(context.Background()))
}

func TestMetricsFlushHonorsContext(t *testing.T) {
	repo := &fakeUsageRepo{block: make(chan struct{})}
	m := NewMetricsMiddleware(NewBotStats(), repo, MetricsConfig{
		RecordTimeout: time.Minute,
		Logger:        testLogger(),
	})

	m.ObserveCommand(42, nil, "profile", time.Millisecond, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, m.Flush(ctx), context.DeadlineExceeded)

	// Release the writer and drain cleanly.
	close(repo.block)
	assert.NoError(t, m.Flush(context.Background()))
}

func TestMetricsJournalUnderLoad(t *testing.T) {
	repo := &fakeUsageRepo{}
	m := NewMetricsMiddleware(NewBotStats(), repo, MetricsConfig{Logger: testLogger()})

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			m.ObserveCommand(int64(i+1), nil, fmt.Sprintf("cmd%d", i%4), time.Millisecond, nil)
		}(i)
	}
	wg.Wait()

	assert.NoError(t, m.Flush(context.Background()))
	assert.Len(t, repo.all(), 20)
	assert.Equal(t, int64(20), m.Stats().Snapshot().Commands)
}
