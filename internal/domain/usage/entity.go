// Package usage содержит доменную модель журнала использования команд.
// Каждый вызов команды, успешный или нет, оставляет запись для аудита.
package usage

import (
	"errors"
	"strings"
	"time"
)

// ══════════════════════════════════════════════════════════════════════════════
// VALUE OBJECTS
// ══════════════════════════════════════════════════════════════════════════════

// ID представляет идентификатор записи (serial в БД).
type ID int32

// IsValid проверяет, что ID положительный.
func (id ID) IsValid() bool {
	return id > 0
}

// ══════════════════════════════════════════════════════════════════════════════
// MAIN ENTITY: RECORD
// ══════════════════════════════════════════════════════════════════════════════

// Record - запись об одном вызове команды.
type Record struct {
	// ID - идентификатор записи.
	ID ID

	// UserID - Discord ID вызвавшего пользователя.
	UserID int64

	// CommandName - имя команды без префикса, например "reload".
	CommandName string

	// GuildID - ID сервера (nil для личных сообщений).
	GuildID *int64

	// ErrorMessage - текст ошибки, если команда завершилась неудачей.
	ErrorMessage *string

	// ExecutedAt - время вызова.
	ExecutedAt time.Time
}

// ══════════════════════════════════════════════════════════════════════════════
// DOMAIN ERRORS
// ══════════════════════════════════════════════════════════════════════════════

var (
	// ErrInvalidCommandName - невалидное имя команды.
	ErrInvalidCommandName = errors.New("invalid command name: must be 1-100 chars")

	// ErrRecordNotFound - запись не найдена.
	ErrRecordNotFound = errors.New("usage record not found")
)

// ══════════════════════════════════════════════════════════════════════════════
// FACTORY & VALIDATION
// ══════════════════════════════════════════════════════════════════════════════

// NewRecord создаёт запись об успешном вызове команды.
func NewRecord(userID int64, commandName string, guildID *int64) (*Record, error) {
	if userID <= 0 {
		return nil, errors.New("usage record user id is required")
	}

	commandName = strings.TrimSpace(commandName)
	if len(commandName) < 1 || len(commandName) > 100 {
		return nil, ErrInvalidCommandName
	}

	return &Record{
		UserID:      userID,
		CommandName: commandName,
		GuildID:     guildID,
		ExecutedAt:  time.Now().UTC(),
	}, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// DOMAIN METHODS
// ══════════════════════════════════════════════════════════════════════════════

// WithError помечает запись как неудачную. Текст ошибки обрезается,
// чтобы не раздувать таблицу стектрейсами.
func (r *Record) WithError(text string) *Record {
	const maxErrorLen = 500
	if len(text) > maxErrorLen {
		text = text[:maxErrorLen]
	}
	r.ErrorMessage = &text
	return r
}

// IsFailure возвращает true, если команда завершилась ошибкой.
func (r *Record) IsFailure() bool {
	return r.ErrorMessage != nil
}

// ══════════════════════════════════════════════════════════════════════════════
// STATISTICS
// ══════════════════════════════════════════════════════════════════════════════

// CommandCount - агрегат: сколько раз вызывалась команда.
type CommandCount struct {
	// CommandName - имя команды.
	CommandName string

	// Total - общее количество вызовов.
	Total int

	// Failures - количество неудачных вызовов.
	Failures int
}

// FailureRate возвращает долю неудачных вызовов (0.0 - 1.0).
func (c CommandCount) FailureRate() float64 {
	if c.Total == 0 {
		return 0
	}
	return float64(c.Failures) / float64(c.Total)
}
