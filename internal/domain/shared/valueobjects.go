// Package shared contains common domain types, errors, events, and value objects
// that are used across all domain packages.
package shared

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// ═══════════════════════════════════════════════════════════════════════════
// ID Value Objects (Discord snowflakes)
// ═══════════════════════════════════════════════════════════════════════════

// discordEpoch is the first second of 2015, the zero point of Discord snowflakes.
const discordEpoch = 1420070400000

// Snowflake is a Discord snowflake identifier. The upper 42 bits carry
// a millisecond timestamp relative to the Discord epoch.
type Snowflake int64

// IsValid checks if the snowflake is a plausible Discord ID.
func (s Snowflake) IsValid() bool {
	return s > 0
}

// Int64 returns the underlying int64 value.
func (s Snowflake) Int64() int64 {
	return int64(s)
}

// String returns the decimal string representation used on the wire.
func (s Snowflake) String() string {
	return strconv.FormatInt(int64(s), 10)
}

// CreatedAt extracts the creation time embedded in the snowflake.
func (s Snowflake) CreatedAt() time.Time {
	ms := (int64(s) >> 22) + discordEpoch
	return time.UnixMilli(ms).UTC()
}

// ParseSnowflake parses a decimal snowflake string.
func ParseSnowflake(raw string) (Snowflake, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || id <= 0 {
		return 0, NewDomainError("shared", "ParseSnowflake", ErrInvalidID, "invalid snowflake")
	}
	return Snowflake(id), nil
}

// UserID identifies a Discord user.
type UserID = Snowflake

// GuildID identifies a Discord guild (server).
type GuildID = Snowflake

// ChannelID identifies a Discord channel.
type ChannelID = Snowflake

// MessageID identifies a Discord message.
type MessageID = Snowflake

// NewUserID creates a validated UserID.
func NewUserID(id int64) (UserID, error) {
	if id <= 0 {
		return 0, ErrInvalidUserID
	}
	return UserID(id), nil
}

// ═══════════════════════════════════════════════════════════════════════════
// Coins Value Object (virtual currency)
// ═══════════════════════════════════════════════════════════════════════════

// Coins represents the virtual currency balance of a user.
type Coins int

const (
	// MinCoins is the floor for a balance. Balances never go negative.
	MinCoins Coins = 0
	// MaxCoins caps a balance to keep economy numbers sane.
	MaxCoins Coins = 1000000000
)

// IsValid checks if the balance is within valid range.
func (c Coins) IsValid() bool {
	return c >= MinCoins && c <= MaxCoins
}

// Int returns the underlying int value.
func (c Coins) Int() int {
	return int(c)
}

// Add adds coins and returns the result, clamped to the valid range.
func (c Coins) Add(amount int) Coins {
	result := Coins(int(c) + amount)
	if result > MaxCoins {
		return MaxCoins
	}
	if result < MinCoins {
		return MinCoins
	}
	return result
}

// CanAfford reports whether the balance covers a price.
func (c Coins) CanAfford(price int) bool {
	return price >= 0 && int(c) >= price
}

// Format returns a human-readable balance with the coin emoji.
func (c Coins) Format() string {
	return fmt.Sprintf("%d 🪙", int(c))
}

// NewCoins creates a new Coins value with validation.
func NewCoins(amount int) (Coins, error) {
	if amount < int(MinCoins) {
		return 0, NewDomainError("shared", "NewCoins", ErrNegativeValue, "coin balance cannot be negative")
	}
	if amount > int(MaxCoins) {
		return MaxCoins, nil
	}
	return Coins(amount), nil
}

// ═══════════════════════════════════════════════════════════════════════════
// Exp Value Object (experience points)
// ═══════════════════════════════════════════════════════════════════════════

// Exp represents experience points earned by a user.
type Exp int

const (
	MinExp Exp = 0
	MaxExp Exp = 1000000
)

// IsValid checks if the exp value is within valid range.
func (e Exp) IsValid() bool {
	return e >= MinExp && e <= MaxExp
}

// Int returns the underlying int value.
func (e Exp) Int() int {
	return int(e)
}

// Add adds exp and returns the result, clamped to the valid range.
func (e Exp) Add(amount int) Exp {
	result := Exp(int(e) + amount)
	if result > MaxExp {
		return MaxExp
	}
	if result < MinExp {
		return MinExp
	}
	return result
}

// Level calculates the level based on exp.
// Each level requires 100*level exp, so levels get progressively slower.
func (e Exp) Level() Level {
	if e <= 0 {
		return 1
	}
	level := 1
	requiredExp := 100
	totalRequired := 0
	for totalRequired+requiredExp <= int(e) {
		totalRequired += requiredExp
		level++
		requiredExp = 100 * level
	}
	return Level(level)
}

// ProgressToNextLevel returns percentage progress to the next level (0-100).
func (e Exp) ProgressToNextLevel() int {
	currentLevel := e.Level()
	currentLevelExp := currentLevel.RequiredExp()
	nextLevelExp := (currentLevel + 1).RequiredExp()

	expInCurrentLevel := int(e) - currentLevelExp
	expNeededForLevel := nextLevelExp - currentLevelExp

	if expNeededForLevel == 0 {
		return 100
	}

	return (expInCurrentLevel * 100) / expNeededForLevel
}

// NewExp creates a new Exp value with validation.
func NewExp(amount int) (Exp, error) {
	if amount < int(MinExp) {
		return 0, NewDomainError("shared", "NewExp", ErrNegativeValue, "exp cannot be negative")
	}
	if amount > int(MaxExp) {
		return MaxExp, nil
	}
	return Exp(amount), nil
}

// ═══════════════════════════════════════════════════════════════════════════
// Level Value Object
// ═══════════════════════════════════════════════════════════════════════════

// Level represents a user's level derived from exp.
type Level int

const (
	MinLevel Level = 1
	MaxLevel Level = 100
)

// IsValid checks if the level is within valid range.
func (l Level) IsValid() bool {
	return l >= MinLevel && l <= MaxLevel
}

// Int returns the underlying int value.
func (l Level) Int() int {
	return int(l)
}

// RequiredExp returns the total exp required to reach this level.
func (l Level) RequiredExp() int {
	if l <= 1 {
		return 0
	}
	total := 0
	for i := Level(1); i < l; i++ {
		total += 100 * int(i)
	}
	return total
}

// Title returns a human-readable title for the level.
func (l Level) Title() string {
	switch {
	case l < 5:
		return "Новичок"
	case l < 10:
		return "Искатель"
	case l < 20:
		return "Авантюрист"
	case l < 30:
		return "Ветеран"
	case l < 50:
		return "Герой"
	case l < 75:
		return "Чемпион"
	default:
		return "Легенда"
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Rarity Value Object (for achievements)
// ═══════════════════════════════════════════════════════════════════════════

// Rarity grades how hard an achievement is to unlock.
type Rarity string

const (
	RarityCommon    Rarity = "common"
	RarityUncommon  Rarity = "uncommon"
	RarityRare      Rarity = "rare"
	RarityEpic      Rarity = "epic"
	RarityLegendary Rarity = "legendary"
)

// IsValid checks if the rarity is one of the known grades.
func (r Rarity) IsValid() bool {
	switch r {
	case RarityCommon, RarityUncommon, RarityRare, RarityEpic, RarityLegendary:
		return true
	default:
		return false
	}
}

// String returns the string representation.
func (r Rarity) String() string {
	return string(r)
}

// Weight returns a sort weight, highest for legendary.
func (r Rarity) Weight() int {
	switch r {
	case RarityLegendary:
		return 5
	case RarityEpic:
		return 4
	case RarityRare:
		return 3
	case RarityUncommon:
		return 2
	default:
		return 1
	}
}

// Emoji returns a marker used in announcement messages.
func (r Rarity) Emoji() string {
	switch r {
	case RarityLegendary:
		return "🌟"
	case RarityEpic:
		return "💜"
	case RarityRare:
		return "💙"
	case RarityUncommon:
		return "💚"
	default:
		return "🤍"
	}
}

// NewRarity creates a Rarity with validation. Empty input defaults to common.
func NewRarity(value string) (Rarity, error) {
	r := Rarity(strings.ToLower(strings.TrimSpace(value)))
	if r == "" {
		return RarityCommon, nil
	}
	if !r.IsValid() {
		return "", ErrInvalidRarity
	}
	return r, nil
}

// ═══════════════════════════════════════════════════════════════════════════
// Timezone Value Object
// ═══════════════════════════════════════════════════════════════════════════

// Timezone is an IANA timezone name stored per user, e.g. "Asia/Almaty".
type Timezone string

// IsValid checks that the timezone resolves to a known location.
func (t Timezone) IsValid() bool {
	if t == "" {
		return false
	}
	_, err := time.LoadLocation(string(t))
	return err == nil
}

// String returns the string representation.
func (t Timezone) String() string {
	return string(t)
}

// Location resolves the timezone, falling back to UTC on failure.
func (t Timezone) Location() *time.Location {
	if t == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(string(t))
	if err != nil {
		return time.UTC
	}
	return loc
}

// NewTimezone creates a Timezone with validation.
func NewTimezone(name string) (Timezone, error) {
	tz := Timezone(strings.TrimSpace(name))
	if !tz.IsValid() {
		return "", ErrInvalidTimezone
	}
	return tz, nil
}

// ═══════════════════════════════════════════════════════════════════════════
// CommandName Value Object
// ═══════════════════════════════════════════════════════════════════════════

// CommandName is the canonical name of a bot command, e.g. "reload".
type CommandName string

// Command names are lowercase words, optionally with digits and underscores.
var commandNameRegex = regexp.MustCompile(`^[a-z][a-z0-9_]{0,99}$`)

// IsValid checks if the command name format is valid.
func (c CommandName) IsValid() bool {
	return commandNameRegex.MatchString(string(c))
}

// String returns the string representation.
func (c CommandName) String() string {
	return string(c)
}

// NewCommandName creates a CommandName with validation.
func NewCommandName(value string) (CommandName, error) {
	c := CommandName(strings.ToLower(strings.TrimSpace(value)))
	if !c.IsValid() {
		return "", ErrInvalidCommandName
	}
	return c, nil
}

// ═══════════════════════════════════════════════════════════════════════════
// CogModule Value Object
// ═══════════════════════════════════════════════════════════════════════════

// CogModule is the import-style name of a bot extension, e.g. "cogs.dev".
type CogModule string

var cogModuleRegex = regexp.MustCompile(`^[a-z][a-z0-9_]*(\.[a-z][a-z0-9_]*)*$`)

// IsValid checks if the module name format is valid.
func (m CogModule) IsValid() bool {
	s := string(m)
	return len(s) <= 100 && cogModuleRegex.MatchString(s)
}

// String returns the string representation.
func (m CogModule) String() string {
	return string(m)
}

// Short returns the last segment of the module path, e.g. "dev".
func (m CogModule) Short() string {
	s := string(m)
	if idx := strings.LastIndex(s, "."); idx >= 0 {
		return s[idx+1:]
	}
	return s
}

// NewCogModule creates a CogModule with validation.
func NewCogModule(value string) (CogModule, error) {
	m := CogModule(strings.ToLower(strings.TrimSpace(value)))
	if !m.IsValid() {
		return "", ErrInvalidCogID
	}
	return m, nil
}
