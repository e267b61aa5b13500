package scheduler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ─────────────────────────────────────────────────────────────────────────────
// Interval schedules
// ─────────────────────────────────────────────────────────────────────────────

func TestIntervalScheduleAdvancesFromGivenTime(t *testing.T) {
	s := NewIntervalSchedule(5 * time.Minute)

	base := time.Date(2026, time.March, 10, 12, 0, 0, 0, time.UTC)
	assert.Equal(t, base.Add(5*time.Minute), s.Next(base))
	assert.Equal(t, "@every 5m0s", s.String())
}

// ─────────────────────────────────────────────────────────────────────────────
// Cron parsing
// ─────────────────────────────────────────────────────────────────────────────

func TestParseCronExpressionFields(t *testing.T) {
	ce, err := ParseCronExpression("*/15 * * * *")
	require.NoError(t, err)
	assert.Equal(t, []int{0, 15, 30, 45}, ce.minutes)

	ce, err = ParseCronExpression("0 4 * * *")
	require.NoError(t, err)
	assert.Equal(t, []int{0}, ce.minutes)
	assert.Equal(t, []int{4}, ce.hours)

	ce, err = ParseCronExpression("1,5,9 10-12 * * 0")
	require.NoError(t, err)
	assert.Equal(t, []int{1, 5, 9}, ce.minutes)
	assert.Equal(t, []int{10, 11, 12}, ce.hours)
	assert.Equal(t, []int{0}, ce.weekdays)
}

func TestParseCronExpressionRejectsMalformed(t *testing.T) {
	cases := []string{
		"* * * *",        // four fields
		"* * * * * *",    // six fields
		"61 * * * *",     // minute out of range
		"* 25 * * *",     // hour out of range
		"*/0 * * * *",    // zero step
		"*/x * * * *",    // non-numeric step
		"5-x * * * *",    // non-numeric range end
		"a,b * * * *",    // non-numeric list
		"banana * * * *", // nonsense
	}

	for _, expr := range cases {
		_, err := ParseCronExpression(expr)
		assert.Error(t, err, "expression %q should not parse", expr)
	}
}

func TestCronPresetsAllParse(t *testing.T) {
	presets := []string{
		EveryMinute, Every5Minutes, Every15Minutes, Every30Minutes,
		EveryHour, EveryDay4AM, EveryDay9AM, EveryDayMidnight,
		EverySunday, FirstOfMonth,
	}

	for _, expr := range presets {
		assert.NotPanics(t, func() { MustParseCronExpression(expr) }, "preset %q", expr)
	}
}

func TestMustParseCronExpressionPanicsOnGarbage(t *testing.T) {
	assert.Panics(t, func() { MustParseCronExpression("not a cron") })
}

// ─────────────────────────────────────────────────────────────────────────────
// Cron next-occurrence calculation
// ─────────────────────────────────────────────────────────────────────────────

func TestCronNextFindsUpcomingMatch(t *testing.T) {
	ce := MustParseCronExpression("0 4 * * *")

	before := time.Date(2026, time.March, 10, 2, 30, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2026, time.March, 10, 4, 0, 0, 0, time.UTC), ce.Next(before))

	after := time.Date(2026, time.March, 10, 5, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2026, time.March, 11, 4, 0, 0, 0, time.UTC), ce.Next(after))
}

func TestCronNextStartsAtFollowingMinute(t *testing.T) {
	ce := MustParseCronExpression("* * * * *")

	at := time.Date(2026, time.March, 10, 12, 0, 30, 0, time.UTC)
	assert.Equal(t, time.Date(2026, time.March, 10, 12, 1, 0, 0, time.UTC), ce.Next(at))
}

func TestCronNextHonorsWeekday(t *testing.T) {
	ce := MustParseCronExpression(EverySunday)

	// 2026-03-11 is a Wednesday; the next Sunday is 2026-03-15.
	wednesday := time.Date(2026, time.March, 11, 10, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2026, time.March, 15, 0, 0, 0, 0, time.UTC), ce.Next(wednesday))
}

func TestCronExpressionSatisfiesSchedule(t *testing.T) {
	var s Schedule = MustParseCronExpression(EveryHour)
	assert.Equal(t, EveryHour, s.String())

	base := time.Date(2026, time.March, 10, 12, 30, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2026, time.March, 10, 13, 0, 0, 0, time.UTC), s.Next(base))
}
