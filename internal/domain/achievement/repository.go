package achievement

import "context"

// ══════════════════════════════════════════════════════════════════════════════
// REPOSITORY INTERFACES
// Реализации находятся в infrastructure/persistence.
// ══════════════════════════════════════════════════════════════════════════════

// Repository определяет операции для каталога достижений.
type Repository interface {
	// ─────────────────────────────────────────────────────────────────────────
	// CRUD Operations
	// ─────────────────────────────────────────────────────────────────────────

	// Create создаёт достижение и заполняет его ID.
	// Возвращает ErrAlreadyExists при конфликте названия.
	Create(ctx context.Context, a *Achievement) error

	// GetByID возвращает достижение по ID.
	// Возвращает ErrNotFound, если достижение не найдено.
	GetByID(ctx context.Context, id ID) (*Achievement, error)

	// GetByName возвращает достижение по названию (без учёта регистра).
	// Возвращает ErrNotFound, если достижение не найдено.
	GetByName(ctx context.Context, name string) (*Achievement, error)

	// Update сохраняет все поля достижения.
	// Возвращает ErrNotFound, если достижение не найдено.
	Update(ctx context.Context, a *Achievement) error

	// ─────────────────────────────────────────────────────────────────────────
	// Queries
	// ─────────────────────────────────────────────────────────────────────────

	// GetAll возвращает достижения каталога.
	// При includeHidden=false скрытые достижения не возвращаются.
	GetAll(ctx context.Context, includeHidden bool) ([]*Achievement, error)

	// GetByCategory возвращает достижения указанной категории.
	GetByCategory(ctx context.Context, category string, includeHidden bool) ([]*Achievement, error)

	// Count возвращает общее количество достижений.
	Count(ctx context.Context) (int, error)
}

// UnlockRepository определяет операции для разблокировок пользователей.
type UnlockRepository interface {
	// Save сохраняет разблокировку.
	// Возвращает ErrAlreadyUnlocked, если достижение уже разблокировано.
	Save(ctx context.Context, u *Unlock) error

	// Get возвращает разблокировку пользователя.
	// Возвращает ErrNotFound, если разблокировки нет.
	Get(ctx context.Context, userID int64, achievementID ID) (*Unlock, error)

	// GetByUser возвращает все разблокировки пользователя,
	// отсортированные по времени разблокировки.
	GetByUser(ctx context.Context, userID int64) ([]*Unlock, error)

	// Has проверяет, разблокировано ли достижение.
	Has(ctx context.Context, userID int64, achievementID ID) (bool, error)

	// UpdateProgress обновляет прогресс частичной разблокировки.
	UpdateProgress(ctx context.Context, userID int64, achievementID ID, progress Progress) error

	// CountByUser возвращает количество разблокировок пользователя.
	CountByUser(ctx context.Context, userID int64) (int, error)

	// CountByAchievement возвращает, сколько пользователей разблокировали
	// достижение. Используется для статистики редкости.
	CountByAchievement(ctx context.Context, achievementID ID) (int, error)
}
