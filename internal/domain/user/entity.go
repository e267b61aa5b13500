// Package user содержит доменную модель участника сообщества.
// Это ядро бизнес-логики - здесь нет внешних зависимостей.
package user

import (
	"errors"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"
)

// ══════════════════════════════════════════════════════════════════════════════
// VALUE OBJECTS
// ══════════════════════════════════════════════════════════════════════════════

// ID представляет Discord snowflake пользователя.
type ID int64

// IsValid проверяет, что ID положительный.
func (id ID) IsValid() bool {
	return id > 0
}

// Int64 возвращает числовое представление ID.
func (id ID) Int64() int64 {
	return int64(id)
}

// Nickname представляет никнейм пользователя в сообществе.
type Nickname string

// IsValid проверяет корректность никнейма (1-32 символа, без переводов строк).
func (n Nickname) IsValid() bool {
	s := string(n)
	length := utf8.RuneCountInString(s)
	return length >= 1 && length <= 32 && !strings.ContainsAny(s, "\n\r\t")
}

// String возвращает строковое представление никнейма.
func (n Nickname) String() string {
	return string(n)
}

// Coins представляет баланс виртуальной валюты.
type Coins int

// IsValid проверяет, что баланс неотрицательный.
func (c Coins) IsValid() bool {
	return c >= 0
}

// Add складывает монеты, не опускаясь ниже нуля.
func (c Coins) Add(delta int) Coins {
	result := int(c) + delta
	if result < 0 {
		return 0
	}
	return Coins(result)
}

// Exp представляет очки опыта пользователя.
type Exp int

// IsValid проверяет, что опыт неотрицательный.
func (e Exp) IsValid() bool {
	return e >= 0
}

// Add складывает опыт, не опускаясь ниже нуля.
func (e Exp) Add(delta int) Exp {
	result := int(e) + delta
	if result < 0 {
		return 0
	}
	return Exp(result)
}

// Level вычисляет уровень на основе опыта.
// Каждый уровень требует 100*level опыта, прогрессия замедляется.
func (e Exp) Level() int {
	if e <= 0 {
		return 1
	}
	level := 1
	required := 100
	total := 0
	for total+required <= int(e) {
		total += required
		level++
		required = 100 * level
	}
	return level
}

// ══════════════════════════════════════════════════════════════════════════════
// MAIN ENTITY: USER
// ══════════════════════════════════════════════════════════════════════════════

// User - центральная сущность системы, представляющая участника Discord-сообщества.
type User struct {
	// ID - Discord snowflake пользователя, первичный ключ.
	ID ID

	// Nickname - никнейм в сообществе (может отличаться от Discord-имени).
	Nickname *Nickname

	// Timezone - IANA-имя часового пояса пользователя, например "Asia/Almaty".
	Timezone *string

	// Birthday - дата рождения (только дата, без времени).
	Birthday *time.Time

	// Coins - баланс виртуальной валюты.
	Coins Coins

	// Exp - очки опыта.
	Exp Exp

	// IsBanned - заблокирован ли пользователь в боте.
	IsBanned bool

	// CreatedAt - время создания записи.
	CreatedAt time.Time

	// UpdatedAt - время последнего обновления.
	UpdatedAt time.Time
}

// ══════════════════════════════════════════════════════════════════════════════
// DOMAIN ERRORS
// ══════════════════════════════════════════════════════════════════════════════

var (
	// ErrInvalidID - невалидный Discord ID.
	ErrInvalidID = errors.New("invalid user id: must be positive")

	// ErrInvalidNickname - невалидный никнейм.
	ErrInvalidNickname = errors.New("invalid nickname: must be 1-32 chars without control characters")

	// ErrInvalidTimezone - невалидный часовой пояс.
	ErrInvalidTimezone = errors.New("invalid timezone: must be a valid IANA name")

	// ErrFutureBirthday - дата рождения в будущем.
	ErrFutureBirthday = errors.New("invalid birthday: cannot be in the future")

	// ErrNegativeCoins - отрицательный баланс.
	ErrNegativeCoins = errors.New("invalid coins: must be non-negative")

	// ErrNegativeExp - отрицательный опыт.
	ErrNegativeExp = errors.New("invalid exp: must be non-negative")

	// ErrInsufficientCoins - недостаточно монет для списания.
	ErrInsufficientCoins = errors.New("insufficient coins")

	// ErrUserNotFound - пользователь не найден.
	ErrUserNotFound = errors.New("user not found")

	// ErrUserAlreadyExists - пользователь уже существует.
	ErrUserAlreadyExists = errors.New("user already exists")

	// ErrUserBanned - пользователь заблокирован.
	ErrUserBanned = errors.New("user is banned")
)

// ══════════════════════════════════════════════════════════════════════════════
// FACTORY & VALIDATION
// ══════════════════════════════════════════════════════════════════════════════

// New создаёт нового пользователя с дефолтными значениями.
func New(id ID) (*User, error) {
	if !id.IsValid() {
		return nil, ErrInvalidID
	}

	now := time.Now().UTC()

	return &User{
		ID:        id,
		Coins:     0,
		Exp:       0,
		IsBanned:  false,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// ValidateTimezone проверяет, что строка является валидным IANA-именем.
func ValidateTimezone(tz string) error {
	if tz == "" {
		return ErrInvalidTimezone
	}
	if _, err := time.LoadLocation(tz); err != nil {
		return ErrInvalidTimezone
	}
	return nil
}

// ValidateBirthday проверяет, что дата рождения не в будущем.
func ValidateBirthday(birthday time.Time, now time.Time) error {
	if birthday.After(now) {
		return ErrFutureBirthday
	}
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// PATCH (частичное обновление)
// ══════════════════════════════════════════════════════════════════════════════

// Patch описывает частичное обновление пользователя.
// Nil-поля не трогаются; заданные поля валидируются и применяются.
type Patch struct {
	Nickname *string
	Timezone *string
	Birthday *time.Time
	Coins    *int
	Exp      *int
	IsBanned *bool
}

// IsEmpty возвращает true, если патч не содержит ни одного поля.
func (p Patch) IsEmpty() bool {
	return p.Nickname == nil && p.Timezone == nil && p.Birthday == nil &&
		p.Coins == nil && p.Exp == nil && p.IsBanned == nil
}

// Apply применяет патч к пользователю с валидацией каждого поля.
// При любой ошибке пользователь остаётся неизменным.
func (u *User) Apply(p Patch, now time.Time) error {
	if p.IsEmpty() {
		return nil
	}

	// Сначала валидация всех полей, затем применение.
	var nickname *Nickname
	if p.Nickname != nil {
		n := Nickname(strings.TrimSpace(*p.Nickname))
		if !n.IsValid() {
			return ErrInvalidNickname
		}
		nickname = &n
	}

	if p.Timezone != nil {
		if err := ValidateTimezone(*p.Timezone); err != nil {
			return err
		}
	}

	if p.Birthday != nil {
		if err := ValidateBirthday(*p.Birthday, now); err != nil {
			return err
		}
	}

	if p.Coins != nil && *p.Coins < 0 {
		return ErrNegativeCoins
	}

	if p.Exp != nil && *p.Exp < 0 {
		return ErrNegativeExp
	}

	if nickname != nil {
		u.Nickname = nickname
	}
	if p.Timezone != nil {
		tz := *p.Timezone
		u.Timezone = &tz
	}
	if p.Birthday != nil {
		day := p.Birthday.Truncate(24 * time.Hour)
		u.Birthday = &day
	}
	if p.Coins != nil {
		u.Coins = Coins(*p.Coins)
	}
	if p.Exp != nil {
		u.Exp = Exp(*p.Exp)
	}
	if p.IsBanned != nil {
		u.IsBanned = *p.IsBanned
	}

	u.UpdatedAt = now
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// DOMAIN METHODS (Business Logic)
// ══════════════════════════════════════════════════════════════════════════════

// Level возвращает текущий уровень пользователя.
func (u *User) Level() int {
	return u.Exp.Level()
}

// AddCoins добавляет монеты и возвращает новый баланс.
// Отрицательная дельта списывает; баланс не уходит ниже нуля.
func (u *User) AddCoins(delta int) Coins {
	u.Coins = u.Coins.Add(delta)
	u.UpdatedAt = time.Now().UTC()
	return u.Coins
}

// SpendCoins списывает точную сумму или возвращает ErrInsufficientCoins.
func (u *User) SpendCoins(amount int) error {
	if amount < 0 {
		return ErrNegativeCoins
	}
	if int(u.Coins) < amount {
		return ErrInsufficientCoins
	}
	u.Coins = Coins(int(u.Coins) - amount)
	u.UpdatedAt = time.Now().UTC()
	return nil
}

// AddExp добавляет опыт и возвращает (старый уровень, новый уровень).
// Прошёл ли пользователь границу уровня, решает вызывающая сторона.
func (u *User) AddExp(delta int) (oldLevel, newLevel int) {
	oldLevel = u.Exp.Level()
	u.Exp = u.Exp.Add(delta)
	newLevel = u.Exp.Level()
	u.UpdatedAt = time.Now().UTC()
	return oldLevel, newLevel
}

// Ban блокирует пользователя.
func (u *User) Ban() {
	u.IsBanned = true
	u.UpdatedAt = time.Now().UTC()
}

// Unban снимает блокировку.
func (u *User) Unban() {
	u.IsBanned = false
	u.UpdatedAt = time.Now().UTC()
}

// CanInteract возвращает true, если пользователю разрешено пользоваться ботом.
func (u *User) CanInteract() bool {
	return !u.IsBanned
}

// HasBirthday возвращает true, если у пользователя указана дата рождения.
func (u *User) HasBirthday() bool {
	return u.Birthday != nil
}

// Location возвращает часовой пояс пользователя или UTC по умолчанию.
func (u *User) Location() *time.Location {
	if u.Timezone == nil {
		return time.UTC
	}
	loc, err := time.LoadLocation(*u.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// DisplayName возвращает никнейм или строковое представление ID.
func (u *User) DisplayName() string {
	if u.Nickname != nil && *u.Nickname != "" {
		return u.Nickname.String()
	}
	return "user-" + strconv.FormatInt(int64(u.ID), 10)
}
