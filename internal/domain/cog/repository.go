package cog

import "context"

// Repository определяет операции для реестра расширений.
// Реализация находится в infrastructure/persistence.
type Repository interface {
	// Get возвращает запись реестра по имени модуля.
	// Возвращает ErrRecordNotFound, если записи нет.
	Get(ctx context.Context, module Module) (*Record, error)

	// GetAll возвращает все записи реестра.
	GetAll(ctx context.Context) ([]*Record, error)

	// Upsert создаёт или обновляет запись реестра.
	Upsert(ctx context.Context, r *Record) error

	// SetEnabled выставляет флаг автозагрузки.
	// Возвращает ErrRecordNotFound, если записи нет.
	SetEnabled(ctx context.Context, module Module, enabled bool) error

	// Delete удаляет запись реестра.
	// Возвращает ErrRecordNotFound, если записи нет.
	Delete(ctx context.Context, module Module) error
}
