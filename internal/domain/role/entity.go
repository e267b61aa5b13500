// Package role содержит доменную модель внутренних ролей бота.
// Роли задаются битовой маской и используются для проверки прав
// на команды, не привязанные к ролям Discord-сервера.
package role

import (
	"errors"
	"strings"
	"unicode/utf8"
)

// ══════════════════════════════════════════════════════════════════════════════
// VALUE OBJECTS
// ══════════════════════════════════════════════════════════════════════════════

// ID представляет идентификатор роли (serial в БД).
type ID int32

// IsValid проверяет, что ID положительный.
func (id ID) IsValid() bool {
	return id > 0
}

// BitValue представляет битовое значение роли в маске прав.
type BitValue int64

// IsValid проверяет, что значение - положительная степень двойки.
func (b BitValue) IsValid() bool {
	return b > 0 && b&(b-1) == 0
}

// Mask представляет набор ролей как битовую маску.
type Mask int64

// Has проверяет наличие роли в маске.
func (m Mask) Has(bit BitValue) bool {
	return m&Mask(bit) != 0
}

// With добавляет роль в маску.
func (m Mask) With(bit BitValue) Mask {
	return m | Mask(bit)
}

// Without убирает роль из маски.
func (m Mask) Without(bit BitValue) Mask {
	return m &^ Mask(bit)
}

// ══════════════════════════════════════════════════════════════════════════════
// MAIN ENTITY: ROLE
// ══════════════════════════════════════════════════════════════════════════════

// Role - внутренняя роль бота с битовым значением.
type Role struct {
	// ID - идентификатор роли.
	ID ID

	// Name - уникальное название роли, например "moderator".
	Name string

	// Description - описание роли.
	Description string

	// BitValue - битовое значение в маске прав.
	BitValue BitValue

	// Active - учитывается ли роль при проверках.
	Active bool
}

// ══════════════════════════════════════════════════════════════════════════════
// DOMAIN ERRORS
// ══════════════════════════════════════════════════════════════════════════════

var (
	// ErrInvalidName - невалидное название роли.
	ErrInvalidName = errors.New("invalid role name: must be 1-50 chars")

	// ErrInvalidBitValue - значение не является степенью двойки.
	ErrInvalidBitValue = errors.New("invalid bit value: must be a positive power of two")

	// ErrRoleNotFound - роль не найдена.
	ErrRoleNotFound = errors.New("role not found")

	// ErrRoleAlreadyExists - роль уже существует.
	ErrRoleAlreadyExists = errors.New("role already exists")
)

// ══════════════════════════════════════════════════════════════════════════════
// FACTORY & VALIDATION
// ══════════════════════════════════════════════════════════════════════════════

// New создаёт новую роль с валидацией.
func New(name, description string, bit BitValue) (*Role, error) {
	name = strings.TrimSpace(strings.ToLower(name))
	if length := utf8.RuneCountInString(name); length < 1 || length > 50 {
		return nil, ErrInvalidName
	}

	if !bit.IsValid() {
		return nil, ErrInvalidBitValue
	}

	return &Role{
		Name:        name,
		Description: strings.TrimSpace(description),
		BitValue:    bit,
		Active:      true,
	}, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// DOMAIN METHODS
// ══════════════════════════════════════════════════════════════════════════════

// Deactivate исключает роль из проверок, не удаляя её.
func (r *Role) Deactivate() {
	r.Active = false
}

// Activate возвращает роль в проверки.
func (r *Role) Activate() {
	r.Active = true
}
