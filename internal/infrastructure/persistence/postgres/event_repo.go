package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/questline-hub/questline-bot/internal/domain/event"

	"github.com/jackc/pgx/v5"
)

// ══════════════════════════════════════════════════════════════════════════════
// EVENT REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// EventRepository implements event.Repository for PostgreSQL.
type EventRepository struct {
	q Querier
}

// NewEventRepository creates a new EventRepository.
func NewEventRepository(q Querier) *EventRepository {
	return &EventRepository{q: q}
}

// WithQuerier returns a copy bound to q, typically a transaction.
func (r *EventRepository) WithQuerier(q Querier) *EventRepository {
	return &EventRepository{q: q}
}

// ─────────────────────────────────────────────────────────────────────────────
// CRUD Operations
// ─────────────────────────────────────────────────────────────────────────────

// Create creates an event and fills in the generated ID.
func (r *EventRepository) Create(ctx context.Context, e *event.Event) error {
	query := `
		INSERT INTO events (event_name, event_description, start_time, end_time, metadata, participants, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING event_id
	`

	var id int64
	err := r.q.QueryRow(ctx, query,
		e.Name,
		e.Description,
		e.StartTime,
		e.EndTime,
		metadataParam(e.Metadata),
		e.Participants,
		string(e.Status),
	).Scan(&id)
	if err != nil {
		return fmt.Errorf("failed to create event: %w", err)
	}

	e.ID = event.ID(id)
	return nil
}

// GetByID returns an event by ID.
func (r *EventRepository) GetByID(ctx context.Context, id event.ID) (*event.Event, error) {
	query := `
		SELECT event_id, event_name, event_description, start_time, end_time, metadata, participants, status
		FROM events
		WHERE event_id = $1
	`

	row := r.q.QueryRow(ctx, query, int64(id))
	return r.scanEvent(row)
}

// Update saves all event fields.
func (r *EventRepository) Update(ctx context.Context, e *event.Event) error {
	query := `
		UPDATE events
		SET event_name = $2, event_description = $3, start_time = $4, end_time = $5,
			metadata = $6, participants = $7, status = $8
		WHERE event_id = $1
	`

	tag, err := r.q.Exec(ctx, query,
		int64(e.ID),
		e.Name,
		e.Description,
		e.StartTime,
		e.EndTime,
		metadataParam(e.Metadata),
		e.Participants,
		string(e.Status),
	)
	if err != nil {
		return fmt.Errorf("failed to update event: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return event.ErrEventNotFound
	}

	return nil
}

// Delete removes an event and cascades to its log.
func (r *EventRepository) Delete(ctx context.Context, id event.ID) error {
	query := `DELETE FROM events WHERE event_id = $1`

	tag, err := r.q.Exec(ctx, query, int64(id))
	if err != nil {
		return fmt.Errorf("failed to delete event: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return event.ErrEventNotFound
	}

	return nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Queries
// ─────────────────────────────────────────────────────────────────────────────

// GetByStatus returns events in the given status.
func (r *EventRepository) GetByStatus(ctx context.Context, status event.Status) ([]*event.Event, error) {
	query := `
		SELECT event_id, event_name, event_description, start_time, end_time, metadata, participants, status
		FROM events
		WHERE status = $1
		ORDER BY start_time NULLS LAST, event_id
	`

	rows, err := r.q.Query(ctx, query, string(status))
	if err != nil {
		return nil, fmt.Errorf("failed to query events by status: %w", err)
	}
	defer rows.Close()

	return r.scanEvents(rows)
}

// GetUpcoming returns pending events starting within the window.
func (r *EventRepository) GetUpcoming(ctx context.Context, within time.Duration) ([]*event.Event, error) {
	query := `
		SELECT event_id, event_name, event_description, start_time, end_time, metadata, participants, status
		FROM events
		WHERE status = 'pending'
		  AND start_time IS NOT NULL
		  AND start_time BETWEEN NOW() AND NOW() + $1
		ORDER BY start_time
	`

	rows, err := r.q.Query(ctx, query, within)
	if err != nil {
		return nil, fmt.Errorf("failed to query upcoming events: %w", err)
	}
	defer rows.Close()

	return r.scanEvents(rows)
}

// FindDueToOpen returns pending events whose start time has passed.
func (r *EventRepository) FindDueToOpen(ctx context.Context, now time.Time) ([]*event.Event, error) {
	query := `
		SELECT event_id, event_name, event_description, start_time, end_time, metadata, participants, status
		FROM events
		WHERE status = 'pending'
		  AND start_time IS NOT NULL
		  AND start_time <= $1
		ORDER BY start_time
	`

	rows, err := r.q.Query(ctx, query, now)
	if err != nil {
		return nil, fmt.Errorf("failed to query events due to open: %w", err)
	}
	defer rows.Close()

	return r.scanEvents(rows)
}

// FindDueToComplete returns active events whose window has closed.
func (r *EventRepository) FindDueToComplete(ctx context.Context, now time.Time) ([]*event.Event, error) {
	query := `
		SELECT event_id, event_name, event_description, start_time, end_time, metadata, participants, status
		FROM events
		WHERE status = 'active'
		  AND end_time IS NOT NULL
		  AND end_time <= $1
		ORDER BY end_time
	`

	rows, err := r.q.Query(ctx, query, now)
	if err != nil {
		return nil, fmt.Errorf("failed to query events due to complete: %w", err)
	}
	defer rows.Close()

	return r.scanEvents(rows)
}

// IncrementParticipants atomically bumps the participant counter.
func (r *EventRepository) IncrementParticipants(ctx context.Context, id event.ID) error {
	query := `UPDATE events SET participants = participants + 1 WHERE event_id = $1`

	tag, err := r.q.Exec(ctx, query, int64(id))
	if err != nil {
		return fmt.Errorf("failed to increment participants: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return event.ErrEventNotFound
	}

	return nil
}

// Count returns the total number of events.
func (r *EventRepository) Count(ctx context.Context) (int, error) {
	var count int
	err := r.q.QueryRow(ctx, `SELECT COUNT(*) FROM events`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count events: %w", err)
	}
	return count, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Helpers
// ─────────────────────────────────────────────────────────────────────────────

// scanEvent scans a single event.
func (r *EventRepository) scanEvent(row pgx.Row) (*event.Event, error) {
	var e event.Event
	var id int64
	var description *string
	var metadata []byte
	var status string

	err := row.Scan(
		&id,
		&e.Name,
		&description,
		&e.StartTime,
		&e.EndTime,
		&metadata,
		&e.Participants,
		&status,
	)

	if IsNoRows(err) {
		return nil, event.ErrEventNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan event: %w", err)
	}

	e.ID = event.ID(id)
	if description != nil {
		e.Description = *description
	}
	e.Metadata = metadata
	e.Status = event.Status(status)

	return &e, nil
}

// scanEvents scans multiple events.
func (r *EventRepository) scanEvents(rows pgx.Rows) ([]*event.Event, error) {
	var events []*event.Event

	for rows.Next() {
		e, err := r.scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	return events, nil
}

// metadataParam converts raw JSON to a parameter, mapping empty to NULL.
func metadataParam(raw []byte) interface{} {
	if len(raw) == 0 {
		return nil
	}
	return []byte(raw)
}

// ══════════════════════════════════════════════════════════════════════════════
// EVENT LOG REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// EventLogRepository implements event.LogRepository for PostgreSQL.
type EventLogRepository struct {
	q Querier
}

// NewEventLogRepository creates a new EventLogRepository.
func NewEventLogRepository(q Querier) *EventLogRepository {
	return &EventLogRepository{q: q}
}

// WithQuerier returns a copy bound to q, typically a transaction.
func (r *EventLogRepository) WithQuerier(q Querier) *EventLogRepository {
	return &EventLogRepository{q: q}
}

// Append adds a log entry and fills in the generated ID.
func (r *EventLogRepository) Append(ctx context.Context, entry *event.LogEntry) error {
	query := `
		INSERT INTO event_logs (event_id, user_id, data, logged_at)
		VALUES ($1, $2, $3, $4)
		RETURNING log_id
	`

	var id int64
	err := r.q.QueryRow(ctx, query,
		int64(entry.EventID),
		entry.UserID,
		metadataParam(entry.Data),
		entry.LoggedAt,
	).Scan(&id)
	if err != nil {
		if IsForeignKeyViolation(err) {
			return event.ErrEventNotFound
		}
		return fmt.Errorf("failed to append event log: %w", err)
	}

	entry.ID = event.LogID(id)
	return nil
}

// GetByEvent returns an event's log in chronological order.
func (r *EventLogRepository) GetByEvent(ctx context.Context, eventID event.ID, limit int) ([]*event.LogEntry, error) {
	query := `
		SELECT log_id, event_id, user_id, data, logged_at
		FROM event_logs
		WHERE event_id = $1
		ORDER BY logged_at, log_id
		LIMIT $2
	`

	rows, err := r.q.Query(ctx, query, int64(eventID), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query event log: %w", err)
	}
	defer rows.Close()

	return r.scanEntries(rows)
}

// GetByUser returns a user's entries across all events, newest first.
func (r *EventLogRepository) GetByUser(ctx context.Context, userID int64, limit int) ([]*event.LogEntry, error) {
	query := `
		SELECT log_id, event_id, user_id, data, logged_at
		FROM event_logs
		WHERE user_id = $1
		ORDER BY logged_at DESC, log_id DESC
		LIMIT $2
	`

	rows, err := r.q.Query(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query user event log: %w", err)
	}
	defer rows.Close()

	return r.scanEntries(rows)
}

// HasUserJoined checks whether a user has an entry in the event.
func (r *EventLogRepository) HasUserJoined(ctx context.Context, eventID event.ID, userID int64) (bool, error) {
	var exists bool
	err := r.q.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM event_logs WHERE event_id = $1 AND user_id = $2)`,
		int64(eventID), userID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check event participation: %w", err)
	}
	return exists, nil
}

// CountByEvent returns the number of log entries for an event.
func (r *EventLogRepository) CountByEvent(ctx context.Context, eventID event.ID) (int, error) {
	var count int
	err := r.q.QueryRow(ctx, `SELECT COUNT(*) FROM event_logs WHERE event_id = $1`, int64(eventID)).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count event log entries: %w", err)
	}
	return count, nil
}

// scanEntries scans multiple log entries.
func (r *EventLogRepository) scanEntries(rows pgx.Rows) ([]*event.LogEntry, error) {
	var entries []*event.LogEntry

	for rows.Next() {
		var entry event.LogEntry
		var id, eventID int64
		var data []byte

		err := rows.Scan(&id, &eventID, &entry.UserID, &data, &entry.LoggedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan event log entry: %w", err)
		}

		entry.ID = event.LogID(id)
		entry.EventID = event.ID(eventID)
		entry.Data = data

		entries = append(entries, &entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	return entries, nil
}
