package user

import (
	"context"
	"time"
)

// ══════════════════════════════════════════════════════════════════════════════
// REPOSITORY INTERFACES
// Эти интерфейсы определяют контракт для работы с хранилищем данных.
// Реализации находятся в infrastructure/persistence.
// ══════════════════════════════════════════════════════════════════════════════

// Repository определяет основные операции CRUD для пользователей.
type Repository interface {
	// ─────────────────────────────────────────────────────────────────────────
	// CRUD Operations
	// ─────────────────────────────────────────────────────────────────────────

	// Create создаёт нового пользователя.
	// Возвращает ErrUserAlreadyExists, если пользователь уже существует.
	Create(ctx context.Context, u *User) error

	// GetByID возвращает пользователя по Discord ID.
	// Возвращает ErrUserNotFound, если пользователь не найден.
	GetByID(ctx context.Context, id ID) (*User, error)

	// Upsert создаёт пользователя или применяет патч к существующему.
	// Nil-поля патча не трогаются. Возвращает актуальное состояние.
	Upsert(ctx context.Context, id ID, patch Patch) (*User, error)

	// Update сохраняет все поля пользователя.
	// Возвращает ErrUserNotFound, если пользователь не найден.
	Update(ctx context.Context, u *User) error

	// Delete удаляет пользователя.
	// Возвращает ErrUserNotFound, если пользователь не найден.
	Delete(ctx context.Context, id ID) error

	// ─────────────────────────────────────────────────────────────────────────
	// Bulk Operations
	// ─────────────────────────────────────────────────────────────────────────

	// GetAll возвращает пользователей с пагинацией.
	GetAll(ctx context.Context, opts ListOptions) ([]*User, error)

	// GetByIDs возвращает пользователей по списку ID.
	GetByIDs(ctx context.Context, ids []ID) ([]*User, error)

	// Count возвращает общее количество пользователей.
	Count(ctx context.Context) (int, error)

	// CountBanned возвращает количество заблокированных пользователей.
	CountBanned(ctx context.Context) (int, error)

	// ─────────────────────────────────────────────────────────────────────────
	// Search & Filter
	// ─────────────────────────────────────────────────────────────────────────

	// FindByBirthday возвращает пользователей с днём рождения в указанный
	// день (месяц и день, год игнорируется).
	FindByBirthday(ctx context.Context, month time.Month, day int) ([]*User, error)

	// TopByCoins возвращает топ пользователей по балансу монет.
	TopByCoins(ctx context.Context, limit int) ([]*User, error)

	// TopByExp возвращает топ пользователей по опыту.
	TopByExp(ctx context.Context, limit int) ([]*User, error)

	// ─────────────────────────────────────────────────────────────────────────
	// Existence Checks
	// ─────────────────────────────────────────────────────────────────────────

	// Exists проверяет существование пользователя по ID.
	Exists(ctx context.Context, id ID) (bool, error)
}

// ListOptions содержит параметры для пагинации и сортировки.
type ListOptions struct {
	// Offset - смещение (для пагинации).
	Offset int

	// Limit - максимальное количество записей.
	Limit int

	// SortBy - поле для сортировки.
	SortBy string

	// SortDesc - сортировка по убыванию.
	SortDesc bool

	// IncludeBanned - включать заблокированных пользователей.
	IncludeBanned bool
}

// DefaultListOptions возвращает параметры по умолчанию.
func DefaultListOptions() ListOptions {
	return ListOptions{
		Offset:        0,
		Limit:         50,
		SortBy:        "exp",
		SortDesc:      true,
		IncludeBanned: false,
	}
}

// WithOffset устанавливает смещение.
func (o ListOptions) WithOffset(offset int) ListOptions {
	o.Offset = offset
	return o
}

// WithLimit устанавливает лимит.
func (o ListOptions) WithLimit(limit int) ListOptions {
	o.Limit = limit
	return o
}

// WithSort устанавливает сортировку.
func (o ListOptions) WithSort(field string, desc bool) ListOptions {
	o.SortBy = field
	o.SortDesc = desc
	return o
}

// WithBanned включает заблокированных пользователей.
func (o ListOptions) WithBanned() ListOptions {
	o.IncludeBanned = true
	return o
}

// ══════════════════════════════════════════════════════════════════════════════
// CACHE INTERFACE
// Для кеширования часто запрашиваемых данных (обычно Redis).
// ══════════════════════════════════════════════════════════════════════════════

// Cache определяет операции кеширования данных пользователей.
type Cache interface {
	// Get получает пользователя из кеша.
	Get(ctx context.Context, id ID) (*User, error)

	// Set сохраняет пользователя в кеш.
	Set(ctx context.Context, u *User, ttl time.Duration) error

	// Delete удаляет пользователя из кеша.
	Delete(ctx context.Context, id ID) error

	// InvalidateAll очищает весь кеш пользователей.
	InvalidateAll(ctx context.Context) error
}
