// Package game содержит доменную модель игр и игровых профилей участников.
package game

import (
	"encoding/json"
	"errors"
	"strings"
	"time"
	"unicode/utf8"
)

// ══════════════════════════════════════════════════════════════════════════════
// VALUE OBJECTS
// ══════════════════════════════════════════════════════════════════════════════

// ID представляет идентификатор игры (serial в БД).
type ID int32

// IsValid проверяет, что ID положительный.
func (id ID) IsValid() bool {
	return id > 0
}

// ProfileID представляет идентификатор игрового профиля.
type ProfileID int32

// IsValid проверяет, что ProfileID положительный.
func (id ProfileID) IsValid() bool {
	return id > 0
}

// Name представляет название игры.
type Name string

// IsValid проверяет корректность названия (1-100 символов).
func (n Name) IsValid() bool {
	s := strings.TrimSpace(string(n))
	length := utf8.RuneCountInString(s)
	return length >= 1 && length <= 100
}

// String возвращает строковое представление названия.
func (n Name) String() string {
	return string(n)
}

// ══════════════════════════════════════════════════════════════════════════════
// ENTITIES
// ══════════════════════════════════════════════════════════════════════════════

// Game - игра, для которой участники заводят профили.
type Game struct {
	// ID - идентификатор игры.
	ID ID

	// Name - уникальное название игры.
	Name Name

	// Description - описание игры.
	Description string
}

// Profile - игровой профиль участника в конкретной игре.
type Profile struct {
	// ID - идентификатор профиля.
	ID ProfileID

	// UserID - Discord ID владельца.
	UserID int64

	// GameID - игра, к которой относится профиль.
	GameID ID

	// ProfileName - имя персонажа или аккаунта в игре.
	ProfileName string

	// Data - произвольные данные профиля (ранг, сервер, статистика).
	Data json.RawMessage

	// CreatedAt - время создания записи.
	CreatedAt time.Time

	// UpdatedAt - время последнего обновления.
	UpdatedAt time.Time
}

// ══════════════════════════════════════════════════════════════════════════════
// DOMAIN ERRORS
// ══════════════════════════════════════════════════════════════════════════════

var (
	// ErrInvalidName - невалидное название игры.
	ErrInvalidName = errors.New("invalid game name: must be 1-100 chars")

	// ErrInvalidProfileName - невалидное имя профиля.
	ErrInvalidProfileName = errors.New("invalid profile name: must be 1-100 chars")

	// ErrInvalidProfileData - данные профиля не являются валидным JSON.
	ErrInvalidProfileData = errors.New("invalid profile data: must be valid JSON")

	// ErrGameNotFound - игра не найдена.
	ErrGameNotFound = errors.New("game not found")

	// ErrGameAlreadyExists - игра с таким названием уже есть.
	ErrGameAlreadyExists = errors.New("game already exists")

	// ErrProfileNotFound - профиль не найден.
	ErrProfileNotFound = errors.New("profile not found")

	// ErrProfileAlreadyExists - профиль для этой игры уже заведён.
	ErrProfileAlreadyExists = errors.New("profile already exists for this game")
)

// ══════════════════════════════════════════════════════════════════════════════
// FACTORY & VALIDATION
// ══════════════════════════════════════════════════════════════════════════════

// New создаёт новую игру с валидацией названия.
func New(name Name, description string) (*Game, error) {
	if !name.IsValid() {
		return nil, ErrInvalidName
	}

	return &Game{
		Name:        Name(strings.TrimSpace(name.String())),
		Description: strings.TrimSpace(description),
	}, nil
}

// NewProfileParams содержит параметры для создания игрового профиля.
type NewProfileParams struct {
	UserID      int64
	GameID      ID
	ProfileName string
	Data        json.RawMessage
}

// NewProfile создаёт новый игровой профиль с валидацией.
func NewProfile(params NewProfileParams) (*Profile, error) {
	if params.UserID <= 0 {
		return nil, errors.New("profile user id is required")
	}

	if !params.GameID.IsValid() {
		return nil, ErrGameNotFound
	}

	name := strings.TrimSpace(params.ProfileName)
	if length := utf8.RuneCountInString(name); length < 1 || length > 100 {
		return nil, ErrInvalidProfileName
	}

	data := params.Data
	if len(data) == 0 {
		data = json.RawMessage("{}")
	}
	if !json.Valid(data) {
		return nil, ErrInvalidProfileData
	}

	now := time.Now().UTC()

	return &Profile{
		UserID:      params.UserID,
		GameID:      params.GameID,
		ProfileName: name,
		Data:        data,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// DOMAIN METHODS
// ══════════════════════════════════════════════════════════════════════════════

// UpdateData заменяет данные профиля после проверки JSON.
func (p *Profile) UpdateData(data json.RawMessage) error {
	if !json.Valid(data) {
		return ErrInvalidProfileData
	}
	p.Data = data
	p.UpdatedAt = time.Now().UTC()
	return nil
}

// Rename меняет имя профиля с валидацией.
func (p *Profile) Rename(name string) error {
	name = strings.TrimSpace(name)
	if length := utf8.RuneCountInString(name); length < 1 || length > 100 {
		return ErrInvalidProfileName
	}
	p.ProfileName = name
	p.UpdatedAt = time.Now().UTC()
	return nil
}
