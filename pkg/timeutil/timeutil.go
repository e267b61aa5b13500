// Package timeutil provides timezone-aware time utilities for the bot.
// The database stores UTC; users carry an optional IANA timezone, so most
// helpers take an explicit *time.Location and fall back to UTC.
// Handles date formatting, birthday parsing, and uptime display.
// No external dependencies - uses only standard library.
package timeutil

import (
	"fmt"
	"time"
)

// Now returns the current time in UTC.
func Now() time.Time {
	return time.Now().UTC()
}

// ToUTC converts a time to UTC.
func ToUTC(t time.Time) time.Time {
	return t.UTC()
}

// In converts a time to the given location, defaulting to UTC when loc is nil.
func In(t time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	return t.In(loc)
}

// LoadLocation resolves an IANA timezone name ("Europe/Berlin").
// Empty name resolves to UTC instead of an error.
func LoadLocation(name string) (*time.Location, error) {
	if name == "" {
		return time.UTC, nil
	}
	return time.LoadLocation(name)
}

// LocationOrUTC resolves an IANA timezone name, silently falling back to UTC
// on unknown names. For display paths where an error is not actionable.
func LocationOrUTC(name string) *time.Location {
	loc, err := LoadLocation(name)
	if err != nil {
		return time.UTC
	}
	return loc
}

// Date creates a UTC time with the given date.
func Date(year, month, day int) time.Time {
	return time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
}

// DateTime creates a UTC time with the given date and time.
func DateTime(year, month, day, hour, min, sec int) time.Time {
	return time.Date(year, time.Month(month), day, hour, min, sec, 0, time.UTC)
}

// StartOfDay returns the start of the day (00:00:00) in the given location.
func StartOfDay(t time.Time, loc *time.Location) time.Time {
	local := In(t, loc)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, local.Location())
}

// EndOfDay returns the end of the day (23:59:59.999999999) in the given location.
func EndOfDay(t time.Time, loc *time.Location) time.Time {
	local := In(t, loc)
	return time.Date(local.Year(), local.Month(), local.Day(), 23, 59, 59, 999999999, local.Location())
}

// IsToday checks if the given time is today in the given location.
func IsToday(t time.Time, loc *time.Location) bool {
	now := In(Now(), loc)
	local := In(t, loc)
	return local.Year() == now.Year() &&
		local.Month() == now.Month() &&
		local.Day() == now.Day()
}

// IsSameDay checks if two times fall on the same calendar day in the given location.
func IsSameDay(t1, t2 time.Time, loc *time.Location) bool {
	a, b := In(t1, loc), In(t2, loc)
	return a.Year() == b.Year() && a.YearDay() == b.YearDay()
}

// DaysBetween calculates the number of whole days between two times.
func DaysBetween(t1, t2 time.Time) int {
	a := StartOfDay(t1, time.UTC)
	b := StartOfDay(t2, time.UTC)
	days := int(b.Sub(a).Hours() / 24)
	if days < 0 {
		days = -days
	}
	return days
}

// Common date/time formats.
const (
	// FormatDate is the standard date format (YYYY-MM-DD).
	FormatDate = "2006-01-02"
	// FormatTime is the standard time format (HH:MM).
	FormatTime = "15:04"
	// FormatDateTime is the standard datetime format.
	FormatDateTime = "2006-01-02 15:04"
	// FormatDateTimeSeconds includes seconds.
	FormatDateTimeSeconds = "2006-01-02 15:04:05"
	// FormatHumanDate is a human-readable format.
	FormatHumanDate = "2 January 2006"
	// FormatShortDate is a short format (Jan 2).
	FormatShortDate = "Jan 2"
)

// FormatIn formats a time in the given location with the given layout.
func FormatIn(t time.Time, loc *time.Location, layout string) string {
	return In(t, loc).Format(layout)
}

// FormatDateStr formats a time as a date string (YYYY-MM-DD) in UTC.
func FormatDateStr(t time.Time) string {
	return ToUTC(t).Format(FormatDate)
}

// FormatDateTimeStr formats a time as a datetime string in UTC.
func FormatDateTimeStr(t time.Time) string {
	return ToUTC(t).Format(FormatDateTime)
}

// FormatRelative returns a human-readable relative time string ("5m ago").
func FormatRelative(t time.Time) string {
	d := Now().Sub(ToUTC(t))
	if d < 0 {
		return formatFutureDuration(-d)
	}
	return formatPastDuration(d)
}

func formatPastDuration(d time.Duration) string {
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	case d < 7*24*time.Hour:
		days := int(d.Hours() / 24)
		if days == 1 {
			return "yesterday"
		}
		return fmt.Sprintf("%dd ago", days)
	case d < 30*24*time.Hour:
		return fmt.Sprintf("%dw ago", int(d.Hours()/24/7))
	default:
		months := int(d.Hours() / 24 / 30)
		if months < 12 {
			return fmt.Sprintf("%dmo ago", months)
		}
		return fmt.Sprintf("%dy ago", months/12)
	}
}

func formatFutureDuration(d time.Duration) string {
	switch {
	case d < time.Minute:
		return "now"
	case d < time.Hour:
		return fmt.Sprintf("in %dm", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("in %dh", int(d.Hours()))
	default:
		days := int(d.Hours() / 24)
		if days == 1 {
			return "tomorrow"
		}
		return fmt.Sprintf("in %dd", days)
	}
}

// FormatUptime renders a duration as "3d 4h 12m 56s", dropping leading
// zero units. Used by the status command and the health endpoint.
func FormatUptime(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	d = d.Round(time.Second)

	days := int(d.Hours()) / 24
	hours := int(d.Hours()) % 24
	mins := int(d.Minutes()) % 60
	secs := int(d.Seconds()) % 60

	switch {
	case days > 0:
		return fmt.Sprintf("%dd %dh %dm %ds", days, hours, mins, secs)
	case hours > 0:
		return fmt.Sprintf("%dh %dm %ds", hours, mins, secs)
	case mins > 0:
		return fmt.Sprintf("%dm %ds", mins, secs)
	default:
		return fmt.Sprintf("%ds", secs)
	}
}

// ParseDate parses a date string (YYYY-MM-DD) as UTC midnight.
func ParseDate(value string) (time.Time, error) {
	return time.ParseInLocation(FormatDate, value, time.UTC)
}

// ParseClock parses a wall-clock string (HH:MM) and returns hour and minute.
func ParseClock(value string) (hour, minute int, err error) {
	t, err := time.Parse(FormatTime, value)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid clock time %q: %w", value, err)
	}
	return t.Hour(), t.Minute(), nil
}

// Birthday utilities.

// ParseBirthday parses a YYYY-MM-DD birthday and rejects future dates.
func ParseBirthday(value string) (time.Time, error) {
	t, err := ParseDate(value)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid birthday format (want YYYY-MM-DD): %w", err)
	}
	if t.After(Now()) {
		return time.Time{}, fmt.Errorf("birthday %s is in the future", value)
	}
	return t, nil
}

// IsBirthdayToday checks whether the stored birthday (year ignored) falls on
// today's date in the user's timezone.
func IsBirthdayToday(birthday, now time.Time, loc *time.Location) bool {
	local := In(now, loc)
	return birthday.Month() == local.Month() && birthday.Day() == local.Day()
}

// Age returns completed years since the birthday as of now.
func Age(birthday, now time.Time) int {
	years := now.Year() - birthday.Year()
	anniversary := time.Date(now.Year(), birthday.Month(), birthday.Day(), 0, 0, 0, 0, time.UTC)
	if ToUTC(now).Before(anniversary) {
		years--
	}
	if years < 0 {
		return 0
	}
	return years
}

// Notification timing helpers.

// IsSafeNotificationTime checks if it's appropriate to ping users (9:00-22:00
// in their local timezone).
func IsSafeNotificationTime(t time.Time, loc *time.Location) bool {
	hour := In(t, loc).Hour()
	return hour >= 9 && hour < 22
}

// NextSafeNotificationTime returns the next time when notifications are
// appropriate in the given location.
func NextSafeNotificationTime(t time.Time, loc *time.Location) time.Time {
	local := In(t, loc)
	hour := local.Hour()

	if hour < 9 {
		return time.Date(local.Year(), local.Month(), local.Day(), 9, 0, 0, 0, local.Location())
	}
	if hour >= 22 {
		tomorrow := local.AddDate(0, 0, 1)
		return time.Date(tomorrow.Year(), tomorrow.Month(), tomorrow.Day(), 9, 0, 0, 0, local.Location())
	}
	return local
}
