// Package achievement содержит доменную модель достижений и их разблокировок.
package achievement

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

// ID представляет идентификатор достижения (serial в БД).
type ID int32

// IsValid проверяет, что ID положительный.
func (id ID) IsValid() bool {
	return id > 0
}

// Progress представляет прогресс разблокировки в процентах (0-100).
type Progress int

const (
	// ProgressNone - достижение только начато.
	ProgressNone Progress = 0
	// ProgressComplete - достижение полностью разблокировано.
	ProgressComplete Progress = 100
)

// IsValid проверяет, что прогресс в диапазоне 0-100.
func (p Progress) IsValid() bool {
	return p >= ProgressNone && p <= ProgressComplete
}

// IsComplete возвращает true при полном прогрессе.
func (p Progress) IsComplete() bool {
	return p >= ProgressComplete
}

// ══════════════════════════════════════════════════════════════════════════════
// ENUMS
// ══════════════════════════════════════════════════════════════════════════════

// Rarity определяет редкость достижения.
type Rarity string

const (
	RarityCommon    Rarity = "common"
	RarityUncommon  Rarity = "uncommon"
	RarityRare      Rarity = "rare"
	RarityEpic      Rarity = "epic"
	RarityLegendary Rarity = "legendary"
)

// IsValid проверяет, что редкость известна.
func (r Rarity) IsValid() bool {
	switch r {
	case RarityCommon, RarityUncommon, RarityRare, RarityEpic, RarityLegendary:
		return true
	default:
		return false
	}
}

// String возвращает строковое представление редкости.
func (r Rarity) String() string {
	return string(r)
}

// ══════════════════════════════════════════════════════════════════════════════
// ENTITIES
// ══════════════════════════════════════════════════════════════════════════════

// Achievement - определение достижения: награды, редкость, видимость.
type Achievement struct {
	// ID - идентификатор достижения.
	ID ID

	// Name - уникальное название.
	Name string

	// Description - описание условия получения.
	Description string

	// Rarity - редкость достижения.
	Rarity Rarity

	// CoinReward - награда монетами при разблокировке.
	CoinReward int

	// ExpReward - награда опытом при разблокировке.
	ExpReward int

	// IconURL - ссылка на иконку (опционально).
	IconURL string

	// Category - категория для группировки (опционально).
	Category string

	// IsActive - можно ли сейчас разблокировать достижение.
	IsActive bool

	// IsHidden - скрыто ли достижение из списков до разблокировки.
	IsHidden bool

	// CreatedAt - время создания записи.
	CreatedAt time.Time
}

// Unlock - факт разблокировки достижения пользователем.
type Unlock struct {
	// UserID - Discord ID пользователя.
	UserID int64

	// AchievementID - разблокированное достижение.
	AchievementID ID

	// Progress - прогресс разблокировки (100 - полностью получено).
	Progress Progress

	// UnlockedAt - время разблокировки.
	UnlockedAt time.Time

	// UnlockData - произвольный контекст разблокировки.
	UnlockData json.RawMessage
}

// ══════════════════════════════════════════════════════════════════════════════
// DOMAIN ERRORS
// ══════════════════════════════════════════════════════════════════════════════

var (
	// ErrInvalidName - невалидное название достижения.
	ErrInvalidName = errors.New("invalid achievement name: must be 1-100 chars")

	// ErrEmptyDescription - описание обязательно.
	ErrEmptyDescription = errors.New("achievement description is required")

	// ErrInvalidRarity - неизвестная редкость.
	ErrInvalidRarity = errors.New("invalid rarity")

	// ErrNegativeReward - отрицательная награда.
	ErrNegativeReward = errors.New("invalid reward: must be non-negative")

	// ErrInvalidProgress - прогресс вне диапазона 0-100.
	ErrInvalidProgress = errors.New("invalid progress: must be between 0 and 100")

	// ErrNotFound - достижение не найдено.
	ErrNotFound = errors.New("achievement not found")

	// ErrAlreadyExists - достижение с таким названием уже есть.
	ErrAlreadyExists = errors.New("achievement already exists")

	// ErrNotActive - достижение отключено.
	ErrNotActive = errors.New("achievement is not active")

	// ErrAlreadyUnlocked - достижение уже разблокировано.
	ErrAlreadyUnlocked = errors.New("achievement already unlocked")
)

// ══════════════════════════════════════════════════════════════════════════════
// FACTORY & VALIDATION
// ══════════════════════════════════════════════════════════════════════════════

// NewParams содержит параметры для создания достижения.
type NewParams struct {
	Name        string
	Description string
	Rarity      Rarity
	CoinReward  int
	ExpReward   int
	IconURL     string
	Category    string
	IsHidden    bool
}

// New создаёт новое достижение с валидацией полей.
func New(params NewParams) (*Achievement, error) {
	name := strings.TrimSpace(params.Name)
	if length := utf8.RuneCountInString(name); length < 1 || length > 100 {
		return nil, ErrInvalidName
	}

	description := strings.TrimSpace(params.Description)
	if description == "" {
		return nil, ErrEmptyDescription
	}

	rarity := params.Rarity
	if rarity == "" {
		rarity = RarityCommon
	}
	if !rarity.IsValid() {
		return nil, ErrInvalidRarity
	}

	if params.CoinReward < 0 || params.ExpReward < 0 {
		return nil, ErrNegativeReward
	}

	return &Achievement{
		Name:        name,
		Description: description,
		Rarity:      rarity,
		CoinReward:  params.CoinReward,
		ExpReward:   params.ExpReward,
		IconURL:     strings.TrimSpace(params.IconURL),
		Category:    strings.TrimSpace(params.Category),
		IsActive:    true,
		IsHidden:    params.IsHidden,
		CreatedAt:   time.Now().UTC(),
	}, nil
}

// NewUnlock создаёт полную разблокировку достижения.
func NewUnlock(userID int64, achievementID ID, data json.RawMessage) (*Unlock, error) {
	if userID <= 0 {
		return nil, errors.New("unlock user id is required")
	}
	if !achievementID.IsValid() {
		return nil, ErrNotFound
	}

	if len(data) == 0 {
		data = json.RawMessage("{}")
	}
	if !json.Valid(data) {
		return nil, errors.New("invalid unlock data: must be valid JSON")
	}

	return &Unlock{
		UserID:        userID,
		AchievementID: achievementID,
		Progress:      ProgressComplete,
		UnlockedAt:    time.Now().UTC(),
		UnlockData:    data,
	}, nil
}

// NewPartialUnlock создаёт запись прогресса для ещё не полученного
// достижения. UnlockedAt фиксирует первый отчёт о прогрессе.
func NewPartialUnlock(userID int64, achievementID ID, p Progress) (*Unlock, error) {
	if userID <= 0 {
		return nil, errors.New("unlock user id is required")
	}
	if !achievementID.IsValid() {
		return nil, ErrNotFound
	}
	if !p.IsValid() {
		return nil, ErrInvalidProgress
	}

	return &Unlock{
		UserID:        userID,
		AchievementID: achievementID,
		Progress:      p,
		UnlockedAt:    time.Now().UTC(),
		UnlockData:    json.RawMessage("{}"),
	}, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// DOMAIN METHODS
// ══════════════════════════════════════════════════════════════════════════════

// CanUnlock возвращает true, если достижение доступно для разблокировки.
func (a *Achievement) CanUnlock() bool {
	return a.IsActive
}

// HasReward возвращает true, если за достижение положена награда.
func (a *Achievement) HasReward() bool {
	return a.CoinReward > 0 || a.ExpReward > 0
}

// Deactivate отключает достижение.
func (a *Achievement) Deactivate() {
	a.IsActive = false
}

// SetProgress обновляет прогресс разблокировки с валидацией.
func (u *Unlock) SetProgress(p Progress) error {
	if !p.IsValid() {
		return ErrInvalidProgress
	}
	if p > u.Progress {
		u.Progress = p
	}
	return nil
}
