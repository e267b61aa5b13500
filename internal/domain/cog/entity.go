// Package cog содержит доменную модель реестра расширений бота.
// Таблица cogs хранит, какие расширения включены, и переживает рестарты:
// выключенное оператором расширение не поднимется при следующем старте.
package cog

import (
	"errors"
	"regexp"
	"strings"
	"time"
)

// ══════════════════════════════════════════════════════════════════════════════
// VALUE OBJECTS
// ══════════════════════════════════════════════════════════════════════════════

// Module представляет имя модуля расширения, например "cogs.dev".
type Module string

var moduleRegex = regexp.MustCompile(`^[a-z][a-z0-9_]*(\.[a-z][a-z0-9_]*)*$`)

// IsValid проверяет корректность имени модуля.
func (m Module) IsValid() bool {
	s := string(m)
	return len(s) >= 1 && len(s) <= 100 && moduleRegex.MatchString(s)
}

// String возвращает строковое представление имени модуля.
func (m Module) String() string {
	return string(m)
}

// Short возвращает последний сегмент имени, например "dev" для "cogs.dev".
func (m Module) Short() string {
	s := string(m)
	if idx := strings.LastIndex(s, "."); idx >= 0 {
		return s[idx+1:]
	}
	return s
}

// ══════════════════════════════════════════════════════════════════════════════
// MAIN ENTITY: RECORD
// ══════════════════════════════════════════════════════════════════════════════

// Record - строка реестра расширений.
type Record struct {
	// Module - имя модуля расширения, первичный ключ.
	Module Module

	// IsEnabled - должно ли расширение подниматься при старте.
	IsEnabled bool

	// Version - версия расширения на момент последней загрузки.
	Version string

	// LoadedAt - время последней успешной загрузки.
	LoadedAt *time.Time
}

// ══════════════════════════════════════════════════════════════════════════════
// DOMAIN ERRORS
// ══════════════════════════════════════════════════════════════════════════════

var (
	// ErrInvalidModule - невалидное имя модуля.
	ErrInvalidModule = errors.New("invalid cog module name")

	// ErrRecordNotFound - запись реестра не найдена.
	ErrRecordNotFound = errors.New("cog record not found")
)

// ══════════════════════════════════════════════════════════════════════════════
// FACTORY & VALIDATION
// ══════════════════════════════════════════════════════════════════════════════

// NewRecord создаёт запись реестра для включённого расширения.
func NewRecord(module Module, version string) (*Record, error) {
	if !module.IsValid() {
		return nil, ErrInvalidModule
	}

	return &Record{
		Module:    module,
		IsEnabled: true,
		Version:   strings.TrimSpace(version),
	}, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// DOMAIN METHODS
// ══════════════════════════════════════════════════════════════════════════════

// Enable включает расширение для автозагрузки.
func (r *Record) Enable() {
	r.IsEnabled = true
}

// Disable выключает расширение: при следующем старте оно не поднимется.
func (r *Record) Disable() {
	r.IsEnabled = false
}

// MarkLoaded фиксирует успешную загрузку и версию.
func (r *Record) MarkLoaded(version string, at time.Time) {
	r.Version = version
	r.LoadedAt = &at
}
