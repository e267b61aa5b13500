package game

import "context"

// ══════════════════════════════════════════════════════════════════════════════
// REPOSITORY INTERFACES
// Реализации находятся в infrastructure/persistence.
// ══════════════════════════════════════════════════════════════════════════════

// Repository определяет операции для работы с играми.
type Repository interface {
	// Create создаёт игру.
	// Возвращает ErrGameAlreadyExists при конфликте названия.
	Create(ctx context.Context, g *Game) error

	// GetByID возвращает игру по ID.
	// Возвращает ErrGameNotFound, если игра не найдена.
	GetByID(ctx context.Context, id ID) (*Game, error)

	// GetByName возвращает игру по названию (без учёта регистра).
	// Возвращает ErrGameNotFound, если игра не найдена.
	GetByName(ctx context.Context, name Name) (*Game, error)

	// GetAll возвращает все игры, отсортированные по названию.
	GetAll(ctx context.Context) ([]*Game, error)

	// Delete удаляет игру.
	// Возвращает ErrGameNotFound, если игра не найдена.
	Delete(ctx context.Context, id ID) error
}

// ProfileRepository определяет операции для работы с игровыми профилями.
type ProfileRepository interface {
	// Create создаёт профиль.
	// Возвращает ErrProfileAlreadyExists, если у пользователя уже есть
	// профиль для этой игры.
	Create(ctx context.Context, p *Profile) error

	// GetByID возвращает профиль по ID.
	// Возвращает ErrProfileNotFound, если профиль не найден.
	GetByID(ctx context.Context, id ProfileID) (*Profile, error)

	// GetByUser возвращает все профили пользователя.
	GetByUser(ctx context.Context, userID int64) ([]*Profile, error)

	// GetByUserAndGame возвращает профиль пользователя в конкретной игре.
	// Возвращает ErrProfileNotFound, если профиль не найден.
	GetByUserAndGame(ctx context.Context, userID int64, gameID ID) (*Profile, error)

	// Update сохраняет изменённый профиль.
	// Возвращает ErrProfileNotFound, если профиль не найден.
	Update(ctx context.Context, p *Profile) error

	// Delete удаляет профиль.
	// Возвращает ErrProfileNotFound, если профиль не найден.
	Delete(ctx context.Context, id ProfileID) error

	// CountByGame возвращает количество профилей в игре.
	CountByGame(ctx context.Context, gameID ID) (int, error)
}
