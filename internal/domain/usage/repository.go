package usage

import (
	"context"
	"time"
)

// Repository определяет операции для журнала использования команд.
// Реализация находится в infrastructure/persistence.
type Repository interface {
	// Record добавляет запись в журнал и заполняет её ID.
	Record(ctx context.Context, r *Record) error

	// GetByUser возвращает последние записи пользователя.
	GetByUser(ctx context.Context, userID int64, limit int) ([]*Record, error)

	// GetRecent возвращает последние записи по всем пользователям.
	GetRecent(ctx context.Context, limit int) ([]*Record, error)

	// GetFailures возвращает последние неудачные вызовы.
	GetFailures(ctx context.Context, limit int) ([]*Record, error)

	// TopCommands возвращает самые популярные команды за период.
	TopCommands(ctx context.Context, since time.Time, limit int) ([]CommandCount, error)

	// CountSince возвращает количество вызовов с указанного момента.
	CountSince(ctx context.Context, since time.Time) (int, error)

	// PruneOlderThan удаляет записи старше порога и возвращает
	// количество удалённых строк. Используется ретенцией.
	PruneOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}
