package timeutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestParseBirthday(t *testing.T) {
	bd, err := ParseBirthday("1995-06-15")
	assert.NoError(t, err)
	assert.Equal(t, 1995, bd.Year())
	assert.Equal(t, time.June, bd.Month())
	assert.Equal(t, 15, bd.Day())

	_, err = ParseBirthday("15.06.1995")
	assert.Error(t, err)

	future := Now().AddDate(1, 0, 0).Format(FormatDate)
	_, err = ParseBirthday(future)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "future")
}

func TestIsBirthdayToday(t *testing.T) {
	now := DateTime(2025, 6, 15, 12, 0, 0)
	birthday := Date(1995, 6, 15)

	assert.True(t, IsBirthdayToday(birthday, now, time.UTC))
	assert.False(t, IsBirthdayToday(Date(1995, 6, 16), now, time.UTC))

	// 23:30 UTC on the 14th is already the 15th in UTC+5
	almaty := time.FixedZone("UTC+5", 5*3600)
	eve := DateTime(2025, 6, 14, 23, 30, 0)
	assert.True(t, IsBirthdayToday(birthday, eve, almaty))
	assert.False(t, IsBirthdayToday(birthday, eve, time.UTC))
}

func TestAge(t *testing.T) {
	birthday := Date(1995, 6, 15)

	assert.Equal(t, 30, Age(birthday, DateTime(2025, 6, 15, 0, 0, 0)))
	assert.Equal(t, 29, Age(birthday, DateTime(2025, 6, 14, 23, 59, 0)))
	assert.Equal(t, 0, Age(Date(2030, 1, 1), DateTime(2025, 1, 1, 0, 0, 0)))
}

func TestFormatUptime(t *testing.T) {
	assert.Equal(t, "45s", FormatUptime(45*time.Second))
	assert.Equal(t, "2m 5s", FormatUptime(125*time.Second))
	assert.Equal(t, "1h 0m 30s", FormatUptime(time.Hour+30*time.Second))
	assert.Equal(t, "3d 4h 12m 56s", FormatUptime(3*24*time.Hour+4*time.Hour+12*time.Minute+56*time.Second))
	assert.Equal(t, "0s", FormatUptime(-time.Minute))
}

func TestParseClock(t *testing.T) {
	h, m, err := ParseClock("21:05")
	assert.NoError(t, err)
	assert.Equal(t, 21, h)
	assert.Equal(t, 5, m)

	_, _, err = ParseClock("9 pm")
	assert.Error(t, err)
}

func TestLocationOrUTC(t *testing.T) {
	assert.Equal(t, time.UTC, LocationOrUTC(""))
	assert.Equal(t, time.UTC, LocationOrUTC("Not/AZone"))

	loc := LocationOrUTC("Europe/Berlin")
	assert.Equal(t, "Europe/Berlin", loc.String())
}

func TestIsSafeNotificationTime(t *testing.T) {
	loc := time.FixedZone("UTC+5", 5*3600)

	// 04:00 UTC is 09:00 in UTC+5
	assert.True(t, IsSafeNotificationTime(DateTime(2025, 3, 1, 4, 0, 0), loc))
	// 17:30 UTC is 22:30 in UTC+5
	assert.False(t, IsSafeNotificationTime(DateTime(2025, 3, 1, 17, 30, 0), loc))

	next := NextSafeNotificationTime(DateTime(2025, 3, 1, 17, 30, 0), loc)
	assert.Equal(t, 9, next.Hour())
	assert.Equal(t, 2, next.Day())
}

func TestDaysBetween(t *testing.T) {
	a := DateTime(2025, 3, 1, 23, 50, 0)
	b := DateTime(2025, 3, 3, 0, 10, 0)

	assert.Equal(t, 2, DaysBetween(a, b))
	assert.Equal(t, 2, DaysBetween(b, a))
	assert.Equal(t, 0, DaysBetween(a, a))
}
