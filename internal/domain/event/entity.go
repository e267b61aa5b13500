// Package event содержит доменную модель событий сообщества:
// турниров, игровых вечеров и прочих активностей с участниками.
package event

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

// ID представляет идентификатор события (bigserial в БД).
type ID int64

// IsValid проверяет, что ID положительный.
func (id ID) IsValid() bool {
	return id > 0
}

// LogID представляет идентификатор записи журнала события.
type LogID int64

// IsValid проверяет, что LogID положительный.
func (id LogID) IsValid() bool {
	return id > 0
}

// ══════════════════════════════════════════════════════════════════════════════
// ENUMS
// ══════════════════════════════════════════════════════════════════════════════

// Status определяет текущий статус события.
type Status string

const (
	// StatusPending - событие создано, но ещё не началось.
	StatusPending Status = "pending"
	// StatusActive - событие идёт, участие открыто.
	StatusActive Status = "active"
	// StatusCompleted - событие завершено.
	StatusCompleted Status = "completed"
	// StatusCancelled - событие отменено организатором.
	StatusCancelled Status = "cancelled"
)

// IsValid проверяет, что статус корректен.
func (s Status) IsValid() bool {
	switch s {
	case StatusPending, StatusActive, StatusCompleted, StatusCancelled:
		return true
	default:
		return false
	}
}

// IsTerminal возвращает true, если из статуса нет переходов.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// CanTransitionTo проверяет допустимость перехода между статусами.
func (s Status) CanTransitionTo(next Status) bool {
	switch s {
	case StatusPending:
		return next == StatusActive || next == StatusCancelled
	case StatusActive:
		return next == StatusCompleted || next == StatusCancelled
	default:
		return false
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// MAIN ENTITY: EVENT
// ══════════════════════════════════════════════════════════════════════════════

// Event - событие сообщества с окном проведения и счётчиком участников.
type Event struct {
	// ID - идентификатор события.
	ID ID

	// Name - название события.
	Name string

	// Description - описание события.
	Description string

	// StartTime - время начала (nil - начало вручную).
	StartTime *time.Time

	// EndTime - время окончания (nil - без дедлайна).
	EndTime *time.Time

	// Metadata - произвольные данные события (призы, правила, ссылки).
	Metadata json.RawMessage

	// Participants - количество присоединившихся участников.
	Participants int

	// Status - текущий статус события.
	Status Status
}

// LogEntry - запись журнала события: кто и с какими данными отметился.
type LogEntry struct {
	// ID - идентификатор записи.
	ID LogID

	// EventID - событие, к которому относится запись.
	EventID ID

	// UserID - Discord ID участника.
	UserID int64

	// Data - произвольные данные записи (результат, команда, заметка).
	Data json.RawMessage

	// LoggedAt - время записи.
	LoggedAt time.Time
}

// ══════════════════════════════════════════════════════════════════════════════
// DOMAIN ERRORS
// ══════════════════════════════════════════════════════════════════════════════

var (
	// ErrInvalidName - невалидное название события.
	ErrInvalidName = errors.New("invalid event name: must be 1-200 chars")

	// ErrInvalidTimeWindow - окончание раньше начала.
	ErrInvalidTimeWindow = errors.New("invalid event window: end time must be after start time")

	// ErrInvalidMetadata - метаданные не являются валидным JSON.
	ErrInvalidMetadata = errors.New("invalid event metadata: must be valid JSON")

	// ErrInvalidTransition - недопустимый переход статуса.
	ErrInvalidTransition = errors.New("invalid event status transition")

	// ErrEventNotFound - событие не найдено.
	ErrEventNotFound = errors.New("event not found")

	// ErrNotJoinable - событие не принимает участников.
	ErrNotJoinable = errors.New("event is not open for participation")

	// ErrLogNotFound - запись журнала не найдена.
	ErrLogNotFound = errors.New("event log entry not found")
)

// ══════════════════════════════════════════════════════════════════════════════
// FACTORY & VALIDATION
// ══════════════════════════════════════════════════════════════════════════════

// NewEventParams содержит параметры для создания события.
type NewEventParams struct {
	Name        string
	Description string
	StartTime   *time.Time
	EndTime     *time.Time
	Metadata    json.RawMessage
}

// New создаёт новое событие в статусе pending с валидацией полей.
func New(params NewEventParams) (*Event, error) {
	name := strings.TrimSpace(params.Name)
	if length := utf8.RuneCountInString(name); length < 1 || length > 200 {
		return nil, ErrInvalidName
	}

	if params.StartTime != nil && params.EndTime != nil && !params.EndTime.After(*params.StartTime) {
		return nil, ErrInvalidTimeWindow
	}

	metadata := params.Metadata
	if len(metadata) == 0 {
		metadata = json.RawMessage("{}")
	}
	if !json.Valid(metadata) {
		return nil, ErrInvalidMetadata
	}

	return &Event{
		Name:         name,
		Description:  strings.TrimSpace(params.Description),
		StartTime:    params.StartTime,
		EndTime:      params.EndTime,
		Metadata:     metadata,
		Participants: 0,
		Status:       StatusPending,
	}, nil
}

// NewLogEntry создаёт запись журнала события.
func NewLogEntry(eventID ID, userID int64, data json.RawMessage) (*LogEntry, error) {
	if !eventID.IsValid() {
		return nil, ErrEventNotFound
	}
	if userID <= 0 {
		return nil, errors.New("log entry user id is required")
	}

	if len(data) == 0 {
		data = json.RawMessage("{}")
	}
	if !json.Valid(data) {
		return nil, ErrInvalidMetadata
	}

	return &LogEntry{
		EventID:  eventID,
		UserID:   userID,
		Data:     data,
		LoggedAt: time.Now().UTC(),
	}, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// DOMAIN METHODS (Business Logic)
// ══════════════════════════════════════════════════════════════════════════════

// Transition переводит событие в новый статус с проверкой допустимости.
func (e *Event) Transition(next Status) error {
	if !next.IsValid() {
		return ErrInvalidTransition
	}
	if !e.Status.CanTransitionTo(next) {
		return ErrInvalidTransition
	}
	e.Status = next
	return nil
}

// Open открывает событие для участия.
func (e *Event) Open() error {
	return e.Transition(StatusActive)
}

// Complete завершает событие.
func (e *Event) Complete() error {
	return e.Transition(StatusCompleted)
}

// Cancel отменяет событие.
func (e *Event) Cancel() error {
	return e.Transition(StatusCancelled)
}

// IsJoinable возвращает true, если к событию можно присоединиться.
func (e *Event) IsJoinable() bool {
	return e.Status == StatusActive
}

// ShouldOpen возвращает true, если пора открывать событие по расписанию.
func (e *Event) ShouldOpen(now time.Time) bool {
	return e.Status == StatusPending && e.StartTime != nil && !now.Before(*e.StartTime)
}

// ShouldComplete возвращает true, если окно события уже закрылось.
func (e *Event) ShouldComplete(now time.Time) bool {
	return e.Status == StatusActive && e.EndTime != nil && !now.Before(*e.EndTime)
}

// AddParticipant увеличивает счётчик участников.
// Возвращает ErrNotJoinable, если участие закрыто.
func (e *Event) AddParticipant() error {
	if !e.IsJoinable() {
		return ErrNotJoinable
	}
	e.Participants++
	return nil
}

// Duration возвращает длительность окна события или 0, если окно не задано.
func (e *Event) Duration() time.Duration {
	if e.StartTime == nil || e.EndTime == nil {
		return 0
	}
	return e.EndTime.Sub(*e.StartTime)
}
