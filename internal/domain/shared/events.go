// Package shared contains common domain types, errors, events, and value objects
// that are used across all domain packages.
package shared

import (
	"encoding/json"
	"time"
)

// EventType represents the type of domain event.
type EventType string

// Domain event types - these drive the event-driven architecture.
// Each event represents something significant that happened in the domain.
const (
	// User events
	EventUserRegistered EventType = "user.registered"
	EventUserUpdated    EventType = "user.updated"
	EventUserBanned     EventType = "user.banned"
	EventUserUnbanned   EventType = "user.unbanned"

	// Economy events
	EventCoinsAdjusted EventType = "economy.coins_adjusted"
	EventExpGained     EventType = "economy.exp_gained"
	EventLevelUp       EventType = "economy.level_up"

	// Achievement events
	EventAchievementUnlocked   EventType = "achievement.unlocked"
	EventAchievementProgressed EventType = "achievement.progressed"

	// Community event events
	EventCommunityEventOpened EventType = "event.opened"
	EventCommunityEventClosed EventType = "event.closed"
	EventCommunityEventJoined EventType = "event.joined"

	// Command events
	EventCommandExecuted EventType = "command.executed"
	EventCommandFailed   EventType = "command.failed"

	// Cog lifecycle events
	EventCogLoaded   EventType = "cog.loaded"
	EventCogUnloaded EventType = "cog.unloaded"
	EventCogReloaded EventType = "cog.reloaded"
	EventCogFailed   EventType = "cog.failed"

	// System events
	EventBotStarted     EventType = "system.bot_started"
	EventBotStopping    EventType = "system.bot_stopping"
	EventHeartbeat      EventType = "system.heartbeat"
	EventBirthdayDigest EventType = "system.birthday_digest"
)

// Event is the base interface for all domain events.
type Event interface {
	// EventType returns the type of the event.
	EventType() EventType

	// OccurredAt returns when the event occurred.
	OccurredAt() time.Time

	// AggregateID returns the ID of the aggregate that produced this event.
	AggregateID() string

	// Payload returns the event data as a map for serialization.
	Payload() map[string]interface{}
}

// BaseEvent provides common event functionality.
type BaseEvent struct {
	Type          EventType `json:"type"`
	Timestamp     time.Time `json:"timestamp"`
	AggregateId   string    `json:"aggregate_id"`
	Version       int       `json:"version"`
	CorrelationID string    `json:"correlation_id,omitempty"`
}

// EventType implements Event interface.
func (e BaseEvent) EventType() EventType {
	return e.Type
}

// OccurredAt implements Event interface.
func (e BaseEvent) OccurredAt() time.Time {
	return e.Timestamp
}

// AggregateID implements Event interface.
func (e BaseEvent) AggregateID() string {
	return e.AggregateId
}

// NewBaseEvent creates a new base event.
func NewBaseEvent(eventType EventType, aggregateID string) BaseEvent {
	return BaseEvent{
		Type:        eventType,
		Timestamp:   time.Now(),
		AggregateId: aggregateID,
		Version:     1,
	}
}

// WithCorrelationID sets the correlation ID for tracing.
func (e BaseEvent) WithCorrelationID(id string) BaseEvent {
	e.CorrelationID = id
	return e
}

// ═══════════════════════════════════════════════════════════════════════════
// User Events
// ═══════════════════════════════════════════════════════════════════════════

// UserRegisteredEvent is emitted when a user row is created for the first time.
type UserRegisteredEvent struct {
	BaseEvent
	UserID   int64  `json:"user_id"`
	Nickname string `json:"nickname"`
	GuildID  int64  `json:"guild_id,omitempty"`
}

// Payload implements Event interface.
func (e UserRegisteredEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"user_id":  e.UserID,
		"nickname": e.Nickname,
		"guild_id": e.GuildID,
	}
}

// NewUserRegisteredEvent creates a new UserRegisteredEvent.
func NewUserRegisteredEvent(userID int64, nickname string, guildID int64) UserRegisteredEvent {
	return UserRegisteredEvent{
		BaseEvent: NewBaseEvent(EventUserRegistered, UserID(userID).String()),
		UserID:    userID,
		Nickname:  nickname,
		GuildID:   guildID,
	}
}

// UserBannedEvent is emitted when a user is banned from using the bot.
type UserBannedEvent struct {
	BaseEvent
	UserID   int64  `json:"user_id"`
	BannedBy int64  `json:"banned_by"`
	Reason   string `json:"reason,omitempty"`
}

// Payload implements Event interface.
func (e UserBannedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"user_id":   e.UserID,
		"banned_by": e.BannedBy,
		"reason":    e.Reason,
	}
}

// NewUserBannedEvent creates a new UserBannedEvent.
func NewUserBannedEvent(userID, bannedBy int64, reason string) UserBannedEvent {
	return UserBannedEvent{
		BaseEvent: NewBaseEvent(EventUserBanned, UserID(userID).String()),
		UserID:    userID,
		BannedBy:  bannedBy,
		Reason:    reason,
	}
}

// UserUnbannedEvent is emitted when a ban is lifted.
type UserUnbannedEvent struct {
	BaseEvent
	UserID     int64 `json:"user_id"`
	UnbannedBy int64 `json:"unbanned_by"`
}

// Payload implements Event interface.
func (e UserUnbannedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"user_id":     e.UserID,
		"unbanned_by": e.UnbannedBy,
	}
}

// NewUserUnbannedEvent creates a new UserUnbannedEvent.
func NewUserUnbannedEvent(userID, unbannedBy int64) UserUnbannedEvent {
	return UserUnbannedEvent{
		BaseEvent:  NewBaseEvent(EventUserUnbanned, UserID(userID).String()),
		UserID:     userID,
		UnbannedBy: unbannedBy,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Economy Events
// ═══════════════════════════════════════════════════════════════════════════

// CoinsAdjustedEvent is emitted when a user's coin balance changes.
type CoinsAdjustedEvent struct {
	BaseEvent
	UserID   int64  `json:"user_id"`
	Delta    int    `json:"delta"`
	NewTotal int    `json:"new_total"`
	Source   string `json:"source"` // e.g., "achievement_reward", "operator"
}

// Payload implements Event interface.
func (e CoinsAdjustedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"user_id":   e.UserID,
		"delta":     e.Delta,
		"new_total": e.NewTotal,
		"source":    e.Source,
	}
}

// NewCoinsAdjustedEvent creates a new CoinsAdjustedEvent.
func NewCoinsAdjustedEvent(userID int64, delta, newTotal int, source string) CoinsAdjustedEvent {
	return CoinsAdjustedEvent{
		BaseEvent: NewBaseEvent(EventCoinsAdjusted, UserID(userID).String()),
		UserID:    userID,
		Delta:     delta,
		NewTotal:  newTotal,
		Source:    source,
	}
}

// ExpGainedEvent is emitted when a user gains exp.
type ExpGainedEvent struct {
	BaseEvent
	UserID   int64  `json:"user_id"`
	Amount   int    `json:"amount"`
	NewTotal int    `json:"new_total"`
	Source   string `json:"source"`
}

// Payload implements Event interface.
func (e ExpGainedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"user_id":   e.UserID,
		"amount":    e.Amount,
		"new_total": e.NewTotal,
		"source":    e.Source,
	}
}

// NewExpGainedEvent creates a new ExpGainedEvent.
func NewExpGainedEvent(userID int64, amount, newTotal int, source string) ExpGainedEvent {
	return ExpGainedEvent{
		BaseEvent: NewBaseEvent(EventExpGained, UserID(userID).String()),
		UserID:    userID,
		Amount:    amount,
		NewTotal:  newTotal,
		Source:    source,
	}
}

// LevelUpEvent is emitted when accumulated exp crosses a level boundary.
type LevelUpEvent struct {
	BaseEvent
	UserID   int64 `json:"user_id"`
	OldLevel int   `json:"old_level"`
	NewLevel int   `json:"new_level"`
}

// Payload implements Event interface.
func (e LevelUpEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"user_id":   e.UserID,
		"old_level": e.OldLevel,
		"new_level": e.NewLevel,
	}
}

// NewLevelUpEvent creates a new LevelUpEvent.
func NewLevelUpEvent(userID int64, oldLevel, newLevel int) LevelUpEvent {
	return LevelUpEvent{
		BaseEvent: NewBaseEvent(EventLevelUp, UserID(userID).String()),
		UserID:    userID,
		OldLevel:  oldLevel,
		NewLevel:  newLevel,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Achievement Events
// ═══════════════════════════════════════════════════════════════════════════

// AchievementUnlockedEvent is emitted when a user unlocks an achievement.
type AchievementUnlockedEvent struct {
	BaseEvent
	UserID          int64  `json:"user_id"`
	AchievementID   int32  `json:"achievement_id"`
	AchievementName string `json:"achievement_name"`
	Rarity          string `json:"rarity"`
	CoinReward      int    `json:"coin_reward"`
	ExpReward       int    `json:"exp_reward"`
}

// Payload implements Event interface.
func (e AchievementUnlockedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"user_id":          e.UserID,
		"achievement_id":   e.AchievementID,
		"achievement_name": e.AchievementName,
		"rarity":           e.Rarity,
		"coin_reward":      e.CoinReward,
		"exp_reward":       e.ExpReward,
	}
}

// NewAchievementUnlockedEvent creates a new AchievementUnlockedEvent.
func NewAchievementUnlockedEvent(userID int64, achievementID int32, name, rarity string, coinReward, expReward int) AchievementUnlockedEvent {
	return AchievementUnlockedEvent{
		BaseEvent:       NewBaseEvent(EventAchievementUnlocked, UserID(userID).String()),
		UserID:          userID,
		AchievementID:   achievementID,
		AchievementName: name,
		Rarity:          rarity,
		CoinReward:      coinReward,
		ExpReward:       expReward,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Community Event Events
// ═══════════════════════════════════════════════════════════════════════════

// CommunityEventOpenedEvent is emitted when an event transitions to active.
type CommunityEventOpenedEvent struct {
	BaseEvent
	EventID   int64     `json:"event_id"`
	EventName string    `json:"event_name"`
	EndTime   time.Time `json:"end_time"`
}

// Payload implements Event interface.
func (e CommunityEventOpenedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"event_id":   e.EventID,
		"event_name": e.EventName,
		"end_time":   e.EndTime.Format(time.RFC3339),
	}
}

// NewCommunityEventOpenedEvent creates a new CommunityEventOpenedEvent.
func NewCommunityEventOpenedEvent(eventID int64, name string, endTime time.Time) CommunityEventOpenedEvent {
	return CommunityEventOpenedEvent{
		BaseEvent: NewBaseEvent(EventCommunityEventOpened, Snowflake(eventID).String()),
		EventID:   eventID,
		EventName: name,
		EndTime:   endTime,
	}
}

// CommunityEventClosedEvent is emitted when an event completes.
type CommunityEventClosedEvent struct {
	BaseEvent
	EventID      int64  `json:"event_id"`
	EventName    string `json:"event_name"`
	Participants int    `json:"participants"`
}

// Payload implements Event interface.
func (e CommunityEventClosedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"event_id":     e.EventID,
		"event_name":   e.EventName,
		"participants": e.Participants,
	}
}

// NewCommunityEventClosedEvent creates a new CommunityEventClosedEvent.
func NewCommunityEventClosedEvent(eventID int64, name string, participants int) CommunityEventClosedEvent {
	return CommunityEventClosedEvent{
		BaseEvent:    NewBaseEvent(EventCommunityEventClosed, Snowflake(eventID).String()),
		EventID:      eventID,
		EventName:    name,
		Participants: participants,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Command Events
// ═══════════════════════════════════════════════════════════════════════════

// CommandExecutedEvent is emitted after every command dispatch, success or not.
type CommandExecutedEvent struct {
	BaseEvent
	UserID      int64         `json:"user_id"`
	GuildID     int64         `json:"guild_id,omitempty"`
	CommandName string        `json:"command_name"`
	Duration    time.Duration `json:"duration"`
	Success     bool          `json:"success"`
	ErrorText   string        `json:"error_text,omitempty"`
}

// Payload implements Event interface.
func (e CommandExecutedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"user_id":      e.UserID,
		"guild_id":     e.GuildID,
		"command_name": e.CommandName,
		"duration_ms":  e.Duration.Milliseconds(),
		"success":      e.Success,
		"error_text":   e.ErrorText,
	}
}

// NewCommandExecutedEvent creates a new CommandExecutedEvent.
func NewCommandExecutedEvent(userID, guildID int64, command string, duration time.Duration) CommandExecutedEvent {
	return CommandExecutedEvent{
		BaseEvent:   NewBaseEvent(EventCommandExecuted, UserID(userID).String()),
		UserID:      userID,
		GuildID:     guildID,
		CommandName: command,
		Duration:    duration,
		Success:     true,
	}
}

// WithError marks the execution as failed and records the error text.
func (e CommandExecutedEvent) WithError(text string) CommandExecutedEvent {
	e.Type = EventCommandFailed
	e.Success = false
	e.ErrorText = text
	return e
}

// ═══════════════════════════════════════════════════════════════════════════
// Cog Lifecycle Events
// ═══════════════════════════════════════════════════════════════════════════

// CogLifecycleEvent is emitted on load, unload, reload and failure of a cog.
type CogLifecycleEvent struct {
	BaseEvent
	Module    string `json:"module"`
	ErrorText string `json:"error_text,omitempty"`
}

// Payload implements Event interface.
func (e CogLifecycleEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"module":     e.Module,
		"error_text": e.ErrorText,
	}
}

// NewCogLifecycleEvent creates a new CogLifecycleEvent.
func NewCogLifecycleEvent(eventType EventType, module string) CogLifecycleEvent {
	return CogLifecycleEvent{
		BaseEvent: NewBaseEvent(eventType, module),
		Module:    module,
	}
}

// WithFailure records the error that interrupted the lifecycle transition.
func (e CogLifecycleEvent) WithFailure(text string) CogLifecycleEvent {
	e.Type = EventCogFailed
	e.ErrorText = text
	return e
}

// ═══════════════════════════════════════════════════════════════════════════
// Event Envelope (for serialization and transport)
// ═══════════════════════════════════════════════════════════════════════════

// EventEnvelope wraps an event for transport/storage.
type EventEnvelope struct {
	ID            string          `json:"id"`
	Type          EventType       `json:"type"`
	AggregateID   string          `json:"aggregate_id"`
	Timestamp     time.Time       `json:"timestamp"`
	Version       int             `json:"version"`
	CorrelationID string          `json:"correlation_id,omitempty"`
	Payload       json.RawMessage `json:"payload"`
}

// EventHandler is a function that handles an event.
type EventHandler func(event Event) error

// EventPublisher defines the interface for publishing events.
type EventPublisher interface {
	// Publish sends an event to subscribers.
	Publish(event Event) error
}

// EventSubscriber defines the interface for subscribing to events.
type EventSubscriber interface {
	// Subscribe registers a handler for an event type.
	Subscribe(eventType EventType, handler EventHandler) error

	// SubscribeAll registers a handler for all events.
	SubscribeAll(handler EventHandler) error
}

// EventBus combines publishing and subscribing.
type EventBus interface {
	EventPublisher
	EventSubscriber
}
