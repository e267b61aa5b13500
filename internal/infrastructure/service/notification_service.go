package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/questline-hub/questline-bot/internal/domain/shared"

	discordapi "github.com/questline-hub/questline-bot/internal/infrastructure/external/discord"
)

// ══════════════════════════════════════════════════════════════════════════════
// NOTIFICATION SERVICE
// Turns domain events from the bus into status channel announcements.
// Purely additive: when the status channel is not configured the
// handlers stay quiet and every workflow behaves the same.
// ══════════════════════════════════════════════════════════════════════════════

// announceTimeout bounds a single announcement call. Handlers run
// without a caller context, so the bound is local.
const announceTimeout = 10 * time.Second

// Announcer sends plain text to a Discord channel. Satisfied by the
// Discord REST client.
type Announcer interface {
	SendText(ctx context.Context, channelID int64, text string) (*discordapi.Message, error)
}

// NotificationService subscribes to the event bus and announces
// noteworthy moments to the status channel.
type NotificationService struct {
	client    Announcer
	channelID int64
	logger    *slog.Logger
}

// NewNotificationService creates the announcement subscriber. A nil
// client or zero channel ID disables announcements without error.
func NewNotificationService(client Announcer, channelID int64, logger *slog.Logger) *NotificationService {
	if logger == nil {
		logger = slog.Default()
	}
	return &NotificationService{
		client:    client,
		channelID: channelID,
		logger:    logger.With("component", "notifications"),
	}
}

// Enabled reports whether announcements will actually be sent.
func (s *NotificationService) Enabled() bool {
	return s.client != nil && s.channelID != 0
}

// Subscribe attaches the announcement handlers to the bus.
func (s *NotificationService) Subscribe(bus shared.EventBus) error {
	subscriptions := []struct {
		eventType shared.EventType
		handler   shared.EventHandler
	}{
		{shared.EventAchievementUnlocked, s.onAchievementUnlocked},
		{shared.EventLevelUp, s.onLevelUp},
		{shared.EventUserBanned, s.onUserBanned},
		{shared.EventCommunityEventOpened, s.onEventOpened},
		{shared.EventCommunityEventClosed, s.onEventClosed},
	}
	for _, sub := range subscriptions {
		if err := bus.Subscribe(sub.eventType, sub.handler); err != nil {
			return fmt.Errorf("subscribe %s: %w", sub.eventType, err)
		}
	}
	return nil
}

func (s *NotificationService) onAchievementUnlocked(e shared.Event) error {
	ev, ok := e.(shared.AchievementUnlockedEvent)
	if !ok {
		return nil
	}
	text := fmt.Sprintf("🏆 <@%d> unlocked **%s** (%s)!", ev.UserID, ev.AchievementName, ev.Rarity)
	if ev.CoinReward > 0 || ev.ExpReward > 0 {
		text += fmt.Sprintf(" Reward: %d coins, %d exp.", ev.CoinReward, ev.ExpReward)
	}
	return s.announce(text)
}

func (s *NotificationService) onLevelUp(e shared.Event) error {
	ev, ok := e.(shared.LevelUpEvent)
	if !ok {
		return nil
	}
	return s.announce(fmt.Sprintf("🎉 <@%d> reached level %d!", ev.UserID, ev.NewLevel))
}

func (s *NotificationService) onUserBanned(e shared.Event) error {
	ev, ok := e.(shared.UserBannedEvent)
	if !ok {
		return nil
	}
	text := fmt.Sprintf("🔨 <@%d> has been banned.", ev.UserID)
	if ev.Reason != "" {
		text += " Reason: " + ev.Reason
	}
	return s.announce(text)
}

func (s *NotificationService) onEventOpened(e shared.Event) error {
	ev, ok := e.(shared.CommunityEventOpenedEvent)
	if !ok {
		return nil
	}
	return s.announce(fmt.Sprintf("📅 **%s** is now open! Join with `!join %d`. Runs until %s.",
		ev.EventName, ev.EventID, ev.EndTime.Format("Jan 2 15:04 MST")))
}

func (s *NotificationService) onEventClosed(e shared.Event) error {
	ev, ok := e.(shared.CommunityEventClosedEvent)
	if !ok {
		return nil
	}
	return s.announce(fmt.Sprintf("🏁 **%s** has ended with %d participants. Thanks for playing!",
		ev.EventName, ev.Participants))
}

// announce sends text to the status channel. The error travels back to
// the bus so delivery failures show up in its metrics.
func (s *NotificationService) announce(text string) error {
	if !s.Enabled() {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), announceTimeout)
	defer cancel()

	if _, err := s.client.SendText(ctx, s.channelID, text); err != nil {
		s.logger.Warn("status announcement failed", "error", err)
		return err
	}
	return nil
}
