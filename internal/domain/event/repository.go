package event

import (
	"context"
	"time"
)

// ══════════════════════════════════════════════════════════════════════════════
// REPOSITORY INTERFACES
// Реализации находятся в infrastructure/persistence.
// ══════════════════════════════════════════════════════════════════════════════

// Repository определяет операции для работы с событиями.
type Repository interface {
	// ─────────────────────────────────────────────────────────────────────────
	// CRUD Operations
	// ─────────────────────────────────────────────────────────────────────────

	// Create создаёт событие и заполняет его ID.
	Create(ctx context.Context, e *Event) error

	// GetByID возвращает событие по ID.
	// Возвращает ErrEventNotFound, если событие не найдено.
	GetByID(ctx context.Context, id ID) (*Event, error)

	// Update сохраняет все поля события.
	// Возвращает ErrEventNotFound, если событие не найдено.
	Update(ctx context.Context, e *Event) error

	// Delete удаляет событие вместе с журналом.
	// Возвращает ErrEventNotFound, если событие не найдено.
	Delete(ctx context.Context, id ID) error

	// ─────────────────────────────────────────────────────────────────────────
	// Queries
	// ─────────────────────────────────────────────────────────────────────────

	// GetByStatus возвращает события с указанным статусом.
	GetByStatus(ctx context.Context, status Status) ([]*Event, error)

	// GetUpcoming возвращает события, начинающиеся в ближайшее время.
	GetUpcoming(ctx context.Context, within time.Duration) ([]*Event, error)

	// FindDueToOpen возвращает pending-события, чьё время начала уже наступило.
	FindDueToOpen(ctx context.Context, now time.Time) ([]*Event, error)

	// FindDueToComplete возвращает active-события, чьё окно уже закрылось.
	FindDueToComplete(ctx context.Context, now time.Time) ([]*Event, error)

	// IncrementParticipants атомарно увеличивает счётчик участников.
	// Возвращает ErrEventNotFound, если событие не найдено.
	IncrementParticipants(ctx context.Context, id ID) error

	// Count возвращает общее количество событий.
	Count(ctx context.Context) (int, error)
}

// LogRepository определяет операции для журнала событий.
type LogRepository interface {
	// Append добавляет запись в журнал и заполняет её ID.
	Append(ctx context.Context, entry *LogEntry) error

	// GetByEvent возвращает журнал события в хронологическом порядке.
	GetByEvent(ctx context.Context, eventID ID, limit int) ([]*LogEntry, error)

	// GetByUser возвращает записи пользователя по всем событиям.
	GetByUser(ctx context.Context, userID int64, limit int) ([]*LogEntry, error)

	// HasUserJoined проверяет, отмечался ли пользователь в событии.
	HasUserJoined(ctx context.Context, eventID ID, userID int64) (bool, error)

	// CountByEvent возвращает количество записей в журнале события.
	CountByEvent(ctx context.Context, eventID ID) (int, error)
}
