package role

import "context"

// Repository определяет операции для работы с ролями бота.
// Реализация находится в infrastructure/persistence.
type Repository interface {
	// Create создаёт роль и заполняет её ID.
	// Возвращает ErrRoleAlreadyExists при конфликте названия.
	Create(ctx context.Context, r *Role) error

	// GetByID возвращает роль по ID.
	// Возвращает ErrRoleNotFound, если роль не найдена.
	GetByID(ctx context.Context, id ID) (*Role, error)

	// GetByName возвращает роль по названию.
	// Возвращает ErrRoleNotFound, если роль не найдена.
	GetByName(ctx context.Context, name string) (*Role, error)

	// GetActive возвращает активные роли, отсортированные по битовому значению.
	GetActive(ctx context.Context) ([]*Role, error)

	// Update сохраняет все поля роли.
	// Возвращает ErrRoleNotFound, если роль не найдена.
	Update(ctx context.Context, r *Role) error

	// Delete удаляет роль.
	// Возвращает ErrRoleNotFound, если роль не найдена.
	Delete(ctx context.Context, id ID) error
}
