package jobs

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakePruner records the cutoff it was asked to prune at.
type fakePruner struct {
	pruned    int64
	err       error
	calls     int
	gotCutoff time.Time
}

func (f *fakePruner) PruneOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	f.calls++
	f.gotCutoff = cutoff
	return f.pruned, f.err
}

func TestRetentionPrunesBeyondWindow(t *testing.T) {
	pruner := &fakePruner{pruned: 1234}
	config := UsageRetentionConfig{RetentionDays: 30, Timeout: time.Minute}
	job := NewUsageRetentionJob(pruner, testLogger(), config)

	require.NoError(t, job.Run(context.Background()))

	assert.Equal(t, 1, pruner.calls)
	expected := time.Now().UTC().AddDate(0, 0, -30)
	assert.WithinDuration(t, expected, pruner.gotCutoff, time.Minute)

	stats := job.LastRunStats()
	require.NotNil(t, stats)
	assert.Equal(t, int64(1234), stats.RowsPruned)
	assert.Equal(t, pruner.gotCutoff, stats.Cutoff)
}

func TestRetentionDisabledWithZeroWindow(t *testing.T) {
	pruner := &fakePruner{}
	job := NewUsageRetentionJob(pruner, testLogger(), UsageRetentionConfig{RetentionDays: 0})

	require.NoError(t, job.Run(context.Background()))
	assert.Zero(t, pruner.calls)
	assert.Nil(t, job.LastRunStats())
}

func TestRetentionPropagatesPruneError(t *testing.T) {
	pruner := &fakePruner{err: errors.New("lock timeout")}
	job := NewUsageRetentionJob(pruner, testLogger(), DefaultUsageRetentionConfig())

	err := job.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "prune command usage")
}
