package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/questline-hub/questline-bot/internal/domain/event"
	"github.com/questline-hub/questline-bot/internal/domain/shared"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeEventStore serves canned due lists and records updates.
type fakeEventStore struct {
	dueOpen     []*event.Event
	dueComplete []*event.Event
	updated     []*event.Event

	findOpenErr     error
	findCompleteErr error
	updateErr       error
}

func (f *fakeEventStore) FindDueToOpen(ctx context.Context, now time.Time) ([]*event.Event, error) {
	return f.dueOpen, f.findOpenErr
}

func (f *fakeEventStore) FindDueToComplete(ctx context.Context, now time.Time) ([]*event.Event, error) {
	return f.dueComplete, f.findCompleteErr
}

func (f *fakeEventStore) Update(ctx context.Context, e *event.Event) error {
	if f.updateErr != nil {
		return f.updateErr
	}
	f.updated = append(f.updated, e)
	return nil
}

// fakePublisher records published events.
type fakePublisher struct {
	events []shared.Event
	err    error
}

func (f *fakePublisher) Publish(e shared.Event) error {
	if f.err != nil {
		return f.err
	}
	f.events = append(f.events, e)
	return nil
}

func makeEvent(id int64, name string, status event.Status, participants int) *event.Event {
	start := time.Now().UTC().Add(-time.Hour)
	end := time.Now().UTC().Add(-time.Minute)
	return &event.Event{
		ID:           event.ID(id),
		Name:         name,
		StartTime:    &start,
		EndTime:      &end,
		Metadata:     json.RawMessage("{}"),
		Participants: participants,
		Status:       status,
	}
}

func newSweeper(store *fakeEventStore, bus *fakePublisher) *EventSweeperJob {
	return NewEventSweeperJob(store, bus, testLogger(), DefaultEventSweeperConfig())
}

// ─────────────────────────────────────────────────────────────────────────────
// Opening and closing
// ─────────────────────────────────────────────────────────────────────────────

func TestSweeperOpensDueEvents(t *testing.T) {
	store := &fakeEventStore{dueOpen: []*event.Event{makeEvent(7, "Autumn Quiz", event.StatusPending, 0)}}
	bus := &fakePublisher{}
	job := newSweeper(store, bus)

	require.NoError(t, job.Run(context.Background()))

	require.Len(t, store.updated, 1)
	assert.Equal(t, event.StatusActive, store.updated[0].Status)

	require.Len(t, bus.events, 1)
	opened, ok := bus.events[0].(shared.CommunityEventOpenedEvent)
	require.True(t, ok)
	assert.Equal(t, int64(7), opened.EventID)
	assert.Equal(t, "Autumn Quiz", opened.EventName)

	stats := job.LastRunStats()
	require.NotNil(t, stats)
	assert.Equal(t, 1, stats.Opened)
	assert.Equal(t, 0, stats.Closed)
}

func TestSweeperClosesExpiredEvents(t *testing.T) {
	store := &fakeEventStore{dueComplete: []*event.Event{makeEvent(9, "Game Night", event.StatusActive, 12)}}
	bus := &fakePublisher{}
	job := newSweeper(store, bus)

	require.NoError(t, job.Run(context.Background()))

	require.Len(t, store.updated, 1)
	assert.Equal(t, event.StatusCompleted, store.updated[0].Status)

	require.Len(t, bus.events, 1)
	closed, ok := bus.events[0].(shared.CommunityEventClosedEvent)
	require.True(t, ok)
	assert.Equal(t, int64(9), closed.EventID)
	assert.Equal(t, 12, closed.Participants)
}

func TestSweeperHandlesBothPhasesInOneRun(t *testing.T) {
	store := &fakeEventStore{
		dueOpen:     []*event.Event{makeEvent(1, "Opening", event.StatusPending, 0)},
		dueComplete: []*event.Event{makeEvent(2, "Closing", event.StatusActive, 3)},
	}
	bus := &fakePublisher{}
	job := newSweeper(store, bus)

	require.NoError(t, job.Run(context.Background()))

	stats := job.LastRunStats()
	require.NotNil(t, stats)
	assert.Equal(t, 1, stats.Opened)
	assert.Equal(t, 1, stats.Closed)

	require.Len(t, bus.events, 2)
	assert.Equal(t, shared.EventCommunityEventOpened, bus.events[0].EventType())
	assert.Equal(t, shared.EventCommunityEventClosed, bus.events[1].EventType())
}

func TestSweeperQuietWhenNothingDue(t *testing.T) {
	store := &fakeEventStore{}
	bus := &fakePublisher{}
	job := newSweeper(store, bus)

	require.NoError(t, job.Run(context.Background()))

	stats := job.LastRunStats()
	require.NotNil(t, stats)
	assert.Zero(t, stats.Opened)
	assert.Zero(t, stats.Closed)
	assert.Empty(t, bus.events)
}

// ─────────────────────────────────────────────────────────────────────────────
// Failure handling
// ─────────────────────────────────────────────────────────────────────────────

func TestSweeperSkipsInvalidTransitions(t *testing.T) {
	// A completed event in the due-to-open list means another sweep got
	// there first; the transition is rejected without touching the store.
	stale := makeEvent(3, "Stale", event.StatusCompleted, 0)
	store := &fakeEventStore{dueOpen: []*event.Event{stale}}
	bus := &fakePublisher{}
	job := newSweeper(store, bus)

	require.NoError(t, job.Run(context.Background()))

	assert.Empty(t, store.updated)
	assert.Empty(t, bus.events)

	stats := job.LastRunStats()
	require.NotNil(t, stats)
	assert.Equal(t, 1, stats.Failed)
	require.Len(t, stats.Errors, 1)
	assert.ErrorIs(t, stats.Errors[0], event.ErrInvalidTransition)
}

func TestSweeperReturnsListErrors(t *testing.T) {
	store := &fakeEventStore{findOpenErr: errors.New("connection reset")}
	job := newSweeper(store, &fakePublisher{})

	err := job.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "find events due to open")
	assert.Nil(t, job.LastRunStats())
}

func TestSweeperKeepsGoingWhenUpdateFails(t *testing.T) {
	store := &fakeEventStore{
		dueOpen: []*event.Event{
			makeEvent(1, "First", event.StatusPending, 0),
			makeEvent(2, "Second", event.StatusPending, 0),
		},
		updateErr: errors.New("write timeout"),
	}
	bus := &fakePublisher{}
	job := newSweeper(store, bus)

	require.NoError(t, job.Run(context.Background()))

	stats := job.LastRunStats()
	require.NotNil(t, stats)
	assert.Equal(t, 0, stats.Opened)
	assert.Equal(t, 2, stats.Failed)
	assert.Empty(t, bus.events)
}

func TestSweeperSurvivesPublishFailure(t *testing.T) {
	store := &fakeEventStore{dueOpen: []*event.Event{makeEvent(5, "Quiet Launch", event.StatusPending, 0)}}
	bus := &fakePublisher{err: errors.New("bus closed")}
	job := newSweeper(store, bus)

	require.NoError(t, job.Run(context.Background()))

	// The store update stands even though the announcement was lost.
	require.Len(t, store.updated, 1)
	stats := job.LastRunStats()
	require.NotNil(t, stats)
	assert.Equal(t, 1, stats.Opened)
	assert.Zero(t, stats.Failed)
}
