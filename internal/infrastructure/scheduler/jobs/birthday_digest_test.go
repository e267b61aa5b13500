package jobs

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/questline-hub/questline-bot/internal/domain/user"
	"github.com/questline-hub/questline-bot/internal/infrastructure/external/discord"
)

// fakeDirectory serves users keyed by "MM-DD".
type fakeDirectory struct {
	byDate map[string][]*user.User
	err    error
	calls  []string
}

func dateKey(month time.Month, day int) string {
	return fmt.Sprintf("%02d-%02d", int(month), day)
}

func (f *fakeDirectory) FindByBirthday(ctx context.Context, month time.Month, day int) ([]*user.User, error) {
	if f.err != nil {
		return nil, f.err
	}
	key := dateKey(month, day)
	f.calls = append(f.calls, key)
	return f.byDate[key], nil
}

// fakeChannelSender records messages instead of calling Discord.
type fakeChannelSender struct {
	channelIDs []int64
	texts      []string
	err        error
}

func (f *fakeChannelSender) SendText(ctx context.Context, channelID int64, text string) (*discord.Message, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.channelIDs = append(f.channelIDs, channelID)
	f.texts = append(f.texts, text)
	return &discord.Message{}, nil
}

func birthdayUser(id int64, birthday time.Time, tz string) *user.User {
	u := &user.User{ID: user.ID(id), Birthday: &birthday}
	if tz != "" {
		u.Timezone = &tz
	}
	return u
}

// digestConfig aligns the digest hour with the current clock in loc so the
// greeting window is open during the test.
func digestConfig(channelID int64, loc *time.Location) BirthdayDigestConfig {
	return BirthdayDigestConfig{
		ChannelID: channelID,
		Hour:      time.Now().In(loc).Hour(),
		Enabled:   true,
		Timeout:   time.Minute,
	}
}

func TestDigestGreetsBirthdayUser(t *testing.T) {
	now := time.Now().UTC()
	birthday := time.Date(1995, now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)

	directory := &fakeDirectory{byDate: map[string][]*user.User{
		dateKey(now.Month(), now.Day()): {birthdayUser(42, birthday, "")},
	}}
	sender := &fakeChannelSender{}
	job := NewBirthdayDigestJob(directory, sender, testLogger(), digestConfig(555, time.UTC))

	require.NoError(t, job.Run(context.Background()))

	// Yesterday, today and tomorrow are all queried to cover every timezone.
	assert.Len(t, directory.calls, 3)
	assert.Contains(t, directory.calls, dateKey(now.Month(), now.Day()))

	require.Len(t, sender.texts, 1)
	assert.Equal(t, int64(555), sender.channelIDs[0])
	assert.Contains(t, sender.texts[0], "<@42>")
	assert.Contains(t, sender.texts[0], "Happy birthday")

	stats := job.LastRunStats()
	require.NotNil(t, stats)
	assert.Equal(t, 1, stats.Candidates)
	assert.Equal(t, 1, stats.Greeted)
}

func TestDigestSkipsOutsideLocalHour(t *testing.T) {
	now := time.Now().UTC()
	birthday := time.Date(1995, now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)

	directory := &fakeDirectory{byDate: map[string][]*user.User{
		dateKey(now.Month(), now.Day()): {birthdayUser(42, birthday, "")},
	}}
	sender := &fakeChannelSender{}
	config := digestConfig(555, time.UTC)
	config.Hour = (config.Hour + 2) % 24
	job := NewBirthdayDigestJob(directory, sender, testLogger(), config)

	require.NoError(t, job.Run(context.Background()))

	assert.Empty(t, sender.texts)
	stats := job.LastRunStats()
	require.NotNil(t, stats)
	assert.Equal(t, 1, stats.Skipped)
	assert.Zero(t, stats.Greeted)
}

func TestDigestHonorsUserTimezone(t *testing.T) {
	tokyo, err := time.LoadLocation("Asia/Tokyo")
	require.NoError(t, err)

	localNow := time.Now().In(tokyo)
	birthday := time.Date(1990, localNow.Month(), localNow.Day(), 0, 0, 0, 0, time.UTC)

	directory := &fakeDirectory{byDate: map[string][]*user.User{
		dateKey(localNow.Month(), localNow.Day()): {birthdayUser(7, birthday, "Asia/Tokyo")},
	}}
	sender := &fakeChannelSender{}
	job := NewBirthdayDigestJob(directory, sender, testLogger(), digestConfig(555, tokyo))

	require.NoError(t, job.Run(context.Background()))

	require.Len(t, sender.texts, 1)
	assert.Contains(t, sender.texts[0], "<@7>")
}

func TestDigestSkipsBannedUsers(t *testing.T) {
	now := time.Now().UTC()
	birthday := time.Date(1995, now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	banned := birthdayUser(13, birthday, "")
	banned.IsBanned = true

	directory := &fakeDirectory{byDate: map[string][]*user.User{
		dateKey(now.Month(), now.Day()): {banned},
	}}
	sender := &fakeChannelSender{}
	job := NewBirthdayDigestJob(directory, sender, testLogger(), digestConfig(555, time.UTC))

	require.NoError(t, job.Run(context.Background()))

	assert.Empty(t, sender.texts)
	assert.Equal(t, 1, job.LastRunStats().Skipped)
}

func TestDigestDeduplicatesAcrossDateQueries(t *testing.T) {
	now := time.Now().UTC()
	birthday := time.Date(1995, now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	u := birthdayUser(42, birthday, "")

	// The same user answers both the today and tomorrow lookups.
	tomorrow := now.AddDate(0, 0, 1)
	directory := &fakeDirectory{byDate: map[string][]*user.User{
		dateKey(now.Month(), now.Day()):           {u},
		dateKey(tomorrow.Month(), tomorrow.Day()): {u},
	}}
	sender := &fakeChannelSender{}
	job := NewBirthdayDigestJob(directory, sender, testLogger(), digestConfig(555, time.UTC))

	require.NoError(t, job.Run(context.Background()))

	assert.Len(t, sender.texts, 1)
	assert.Equal(t, 1, job.LastRunStats().Candidates)
}

func TestDigestDisabledDoesNothing(t *testing.T) {
	directory := &fakeDirectory{}
	config := digestConfig(555, time.UTC)
	config.Enabled = false
	job := NewBirthdayDigestJob(directory, &fakeChannelSender{}, testLogger(), config)

	require.NoError(t, job.Run(context.Background()))
	assert.Empty(t, directory.calls)
}

func TestDigestWithoutChannelStaysQuiet(t *testing.T) {
	directory := &fakeDirectory{}
	job := NewBirthdayDigestJob(directory, &fakeChannelSender{}, testLogger(), digestConfig(0, time.UTC))

	require.NoError(t, job.Run(context.Background()))
	assert.Empty(t, directory.calls)
}

func TestDigestContinuesAfterSendFailure(t *testing.T) {
	now := time.Now().UTC()
	birthday := time.Date(1995, now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)

	directory := &fakeDirectory{byDate: map[string][]*user.User{
		dateKey(now.Month(), now.Day()): {
			birthdayUser(1, birthday, ""),
			birthdayUser(2, birthday, ""),
		},
	}}
	sender := &fakeChannelSender{err: errors.New("rate limited")}
	job := NewBirthdayDigestJob(directory, sender, testLogger(), digestConfig(555, time.UTC))

	require.NoError(t, job.Run(context.Background()))

	stats := job.LastRunStats()
	require.NotNil(t, stats)
	assert.Zero(t, stats.Greeted)
	assert.Len(t, stats.Errors, 2)
}

func TestDigestPropagatesLookupError(t *testing.T) {
	directory := &fakeDirectory{err: errors.New("connection reset")}
	job := NewBirthdayDigestJob(directory, &fakeChannelSender{}, testLogger(), digestConfig(555, time.UTC))

	err := job.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "find users by birthday")
}
