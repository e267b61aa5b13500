package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/questline-hub/questline-bot/internal/domain/user"
	"github.com/questline-hub/questline-bot/internal/infrastructure/external/discord"
	"github.com/questline-hub/questline-bot/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// BIRTHDAY DIGEST JOB
// ══════════════════════════════════════════════════════════════════════════════

// UserDirectory looks up users by the month and day of their stored birthday.
type UserDirectory interface {
	FindByBirthday(ctx context.Context, month time.Month, day int) ([]*user.User, error)
}

// Announcer posts a text message to a channel.
type Announcer interface {
	SendText(ctx context.Context, channelID int64, text string) (*discord.Message, error)
}

// BirthdayDigestJob greets users on their birthday in the status channel.
// The job is meant to run hourly: each run greets only users whose local
// clock is at the configured digest hour, so a birthday in Tokyo and one
// in Lisbon are both announced at the same local time of day.
type BirthdayDigestJob struct {
	// Dependencies
	users     UserDirectory
	announcer Announcer
	logger    *slog.Logger

	// Configuration
	config BirthdayDigestConfig

	// State
	lastRunStats atomic.Value // *BirthdayDigestStats
}

// BirthdayDigestConfig contains configuration for the birthday digest job.
type BirthdayDigestConfig struct {
	// ChannelID is the channel greetings are posted to.
	ChannelID int64

	// Hour is the local hour (0-23) at which users get greeted.
	Hour int

	// Enabled toggles the digest without unregistering the job.
	Enabled bool

	// Timeout is the maximum duration for one run.
	Timeout time.Duration
}

// DefaultBirthdayDigestConfig returns sensible defaults.
func DefaultBirthdayDigestConfig() BirthdayDigestConfig {
	return BirthdayDigestConfig{
		Hour:    9,
		Enabled: true,
		Timeout: 2 * time.Minute,
	}
}

// BirthdayDigestStats contains statistics from a digest run.
type BirthdayDigestStats struct {
	StartedAt   time.Time
	CompletedAt time.Time
	Duration    time.Duration
	Candidates  int
	Greeted     int
	Skipped     int
	Errors      []error
}

// NewBirthdayDigestJob creates a new birthday digest job.
func NewBirthdayDigestJob(
	users UserDirectory,
	announcer Announcer,
	logger *slog.Logger,
	config BirthdayDigestConfig,
) *BirthdayDigestJob {
	if logger == nil {
		logger = slog.Default()
	}
	if config.Timeout <= 0 {
		config.Timeout = 2 * time.Minute
	}

	return &BirthdayDigestJob{
		users:     users,
		announcer: announcer,
		logger:    logger,
		config:    config,
	}
}

// Name returns the job name.
func (j *BirthdayDigestJob) Name() string {
	return "birthday_digest"
}

// Description returns a human-readable description.
func (j *BirthdayDigestJob) Description() string {
	return "Greets users on their birthday at a fixed local hour"
}

// Run executes one digest pass.
func (j *BirthdayDigestJob) Run(ctx context.Context) error {
	if !j.config.Enabled {
		j.logger.Debug("birthday digest is disabled")
		return nil
	}
	if j.announcer == nil || j.config.ChannelID == 0 {
		j.logger.Debug("birthday digest has no announce channel")
		return nil
	}

	startedAt := time.Now()
	stats := &BirthdayDigestStats{
		StartedAt: startedAt,
		Errors:    make([]error, 0),
	}

	ctx, cancel := context.WithTimeout(ctx, j.config.Timeout)
	defer cancel()

	now := time.Now().UTC()

	candidates, err := j.collectCandidates(ctx, now, stats)
	if err != nil {
		return err
	}

	for _, u := range candidates {
		if !j.shouldGreet(u, now) {
			stats.Skipped++
			continue
		}

		text := fmt.Sprintf("🎂 Happy birthday, <@%d>! Have an amazing day! 🎉", u.ID.Int64())
		if _, err := j.announcer.SendText(ctx, j.config.ChannelID, text); err != nil {
			stats.Errors = append(stats.Errors, err)
			j.logger.Error("failed to send birthday greeting",
				"user_id", u.ID.Int64(),
				"error", err,
			)
			continue
		}

		stats.Greeted++
		j.logger.Info("birthday greeting sent", "user_id", u.ID.Int64())
	}

	stats.CompletedAt = time.Now()
	stats.Duration = stats.CompletedAt.Sub(startedAt)
	j.lastRunStats.Store(stats)

	if stats.Candidates > 0 {
		j.logger.Info("birthday_digest job completed",
			"duration", stats.Duration.String(),
			"candidates", stats.Candidates,
			"greeted", stats.Greeted,
			"skipped", stats.Skipped,
		)
	}

	return nil
}

// collectCandidates gathers users whose birthday falls on any date that is
// currently "today" somewhere on the globe. A single UTC date misses users
// whose timezone has already rolled to the next day or still sits on the
// previous one, so the lookup spans three calendar dates.
func (j *BirthdayDigestJob) collectCandidates(ctx context.Context, now time.Time, stats *BirthdayDigestStats) ([]*user.User, error) {
	type monthDay struct {
		month time.Month
		day   int
	}

	dates := make([]monthDay, 0, 3)
	seen := make(map[monthDay]struct{}, 3)
	for _, delta := range []int{-1, 0, 1} {
		d := now.AddDate(0, 0, delta)
		key := monthDay{d.Month(), d.Day()}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		dates = append(dates, key)
	}

	candidates := make([]*user.User, 0)
	seenUsers := make(map[user.ID]struct{})
	for _, d := range dates {
		users, err := j.users.FindByBirthday(ctx, d.month, d.day)
		if err != nil {
			return nil, fmt.Errorf("find users by birthday %02d-%02d: %w", d.month, d.day, err)
		}
		for _, u := range users {
			if _, ok := seenUsers[u.ID]; ok {
				continue
			}
			seenUsers[u.ID] = struct{}{}
			candidates = append(candidates, u)
		}
	}

	stats.Candidates = len(candidates)
	return candidates, nil
}

// shouldGreet reports whether the user's local clock sits at the digest hour
// of their birthday right now.
func (j *BirthdayDigestJob) shouldGreet(u *user.User, now time.Time) bool {
	if u.Birthday == nil || u.IsBanned {
		return false
	}

	tz := ""
	if u.Timezone != nil {
		tz = *u.Timezone
	}
	loc := timeutil.LocationOrUTC(tz)

	if now.In(loc).Hour() != j.config.Hour {
		return false
	}
	return timeutil.IsBirthdayToday(*u.Birthday, now, loc)
}

// LastRunStats returns statistics from the last digest run.
func (j *BirthdayDigestJob) LastRunStats() *BirthdayDigestStats {
	stats := j.lastRunStats.Load()
	if stats == nil {
		return nil
	}
	return stats.(*BirthdayDigestStats)
}
