package discord

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/questline-hub/questline-bot/internal/domain/usage"
	"github.com/questline-hub/questline-bot/internal/domain/user"
	"github.com/questline-hub/questline-bot/internal/infrastructure/external/discord"
	"github.com/questline-hub/questline-bot/internal/interface/discord/middleware"
)

// ══════════════════════════════════════════════════════════════════════════════
// BOT CONFIGURATION
// ══════════════════════════════════════════════════════════════════════════════

// BotConfig contains configuration for the Discord bot.
type BotConfig struct {
	// Prefix marks messages as commands.
	Prefix string

	// OwnerIDs are Discord IDs allowed to run owner-only commands.
	OwnerIDs []int64

	// StatusChannelID receives online/offline announcements (0 disables).
	StatusChannelID int64

	// MaxConcurrentCommands limits commands running at once.
	MaxConcurrentCommands int

	// GracefulShutdownTimeout bounds the wait for in-flight commands.
	GracefulShutdownTimeout time.Duration

	// Debug enables debug logging.
	Debug bool

	// Logger for structured logging.
	Logger *slog.Logger
}

// DefaultBotConfig returns sensible defaults.
func DefaultBotConfig() BotConfig {
	return BotConfig{
		Prefix:                  "!",
		MaxConcurrentCommands:   100,
		GracefulShutdownTimeout: 30 * time.Second,
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// BOT DEPENDENCIES
// ══════════════════════════════════════════════════════════════════════════════

// BotDependencies contains everything the dispatch pipeline needs.
type BotDependencies struct {
	// Client is the Discord REST client.
	Client *discord.Client

	// Gateway is the realtime event connection.
	Gateway *discord.Gateway

	// Provider resolves command names to extension handlers.
	Provider CommandProvider

	// Users is the user repository for auth resolution.
	Users user.Repository

	// UserCache is optional; nil disables auth caching.
	UserCache user.Cache

	// Usages is optional; nil disables the command usage journal.
	Usages usage.Repository

	// Stats receives dispatch counters.
	Stats *middleware.BotStats

	// Cooldowns is optional; nil disables per-command cooldowns.
	Cooldowns middleware.CooldownGate
}

// ══════════════════════════════════════════════════════════════════════════════
// BOT
// Consumes gateway events, runs the middleware chain, and hands
// commands to extension handlers. Handlers run in their own
// goroutines, bounded by a semaphore, so one slow command cannot
// stall the event loop or the heartbeat behind it.
// ══════════════════════════════════════════════════════════════════════════════

// Bot is the main Discord bot controller.
type Bot struct {
	config  BotConfig
	client  *discord.Client
	gateway *discord.Gateway
	router  *Router
	logger  *slog.Logger

	// Middleware chain
	authMiddleware     *middleware.AuthMiddleware
	rateLimiter        *middleware.RateLimiter
	cooldownMiddleware *middleware.CooldownMiddleware
	recoveryMiddleware *middleware.RecoveryMiddleware
	metricsMiddleware  *middleware.MetricsMiddleware

	// Lifecycle management
	running   bool
	runningMu sync.RWMutex
	cmdSem    chan struct{}
	wg        sync.WaitGroup

	// Gateway session state
	botUserID int64
	announced bool
	guildsMu  sync.Mutex
	guilds    map[int64]bool
}

// NewBot creates a new Discord bot with all dependencies.
func NewBot(config BotConfig, deps BotDependencies) (*Bot, error) {
	if deps.Client == nil {
		return nil, errors.New("discord client is required")
	}
	if deps.Provider == nil {
		return nil, errors.New("command provider is required")
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	if config.Prefix == "" {
		config.Prefix = "!"
	}
	if config.MaxConcurrentCommands <= 0 {
		config.MaxConcurrentCommands = 100
	}
	if config.GracefulShutdownTimeout <= 0 {
		config.GracefulShutdownTimeout = 30 * time.Second
	}

	authConfig := middleware.DefaultAuthConfig()
	authConfig.OwnerIDs = config.OwnerIDs

	rateLimitConfig := middleware.DefaultRateLimitConfig()
	for _, id := range config.OwnerIDs {
		rateLimitConfig.WhitelistedUsers[id] = true
	}

	stats := deps.Stats
	if stats == nil {
		stats = middleware.NewBotStats()
	}

	metricsConfig := middleware.DefaultMetricsConfig()
	metricsConfig.Logger = config.Logger

	router := NewRouter(deps.Provider, RouterConfig{
		Prefix: config.Prefix,
		Logger: config.Logger,
		Debug:  config.Debug,
	})

	return &Bot{
		config:             config,
		client:             deps.Client,
		gateway:            deps.Gateway,
		router:             router,
		logger:             config.Logger,
		authMiddleware:     middleware.NewAuthMiddleware(deps.Users, deps.UserCache, authConfig),
		rateLimiter:        middleware.NewRateLimiter(rateLimitConfig),
		cooldownMiddleware: middleware.NewCooldownMiddleware(deps.Cooldowns, middleware.DefaultCooldownConfig()),
		recoveryMiddleware: middleware.NewRecoveryMiddleware(middleware.DefaultRecoveryConfig()),
		metricsMiddleware:  middleware.NewMetricsMiddleware(stats, deps.Usages, metricsConfig),
		cmdSem:             make(chan struct{}, config.MaxConcurrentCommands),
		guilds:             make(map[int64]bool),
	}, nil
}

// Router exposes the command router, for help output.
func (b *Bot) Router() *Router {
	return b.router
}

// Stats exposes runtime counters.
func (b *Bot) Stats() *middleware.BotStats {
	return b.metricsMiddleware.Stats()
}

// ══════════════════════════════════════════════════════════════════════════════
// LIFECYCLE MANAGEMENT
// ══════════════════════════════════════════════════════════════════════════════

// Run verifies the token and consumes gateway events until the context
// is cancelled or the gateway stops.
func (b *Bot) Run(ctx context.Context) error {
	b.runningMu.Lock()
	if b.running {
		b.runningMu.Unlock()
		return errors.New("bot is already running")
	}
	b.running = true
	b.runningMu.Unlock()

	if err := b.verifyToken(ctx); err != nil {
		return fmt.Errorf("verify bot token: %w", err)
	}

	b.logger.Info("starting event loop", "prefix", b.config.Prefix)

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-b.gateway.Events():
			if !ok {
				return nil
			}
			b.handleEvent(ctx, event)
		}
	}
}

// Stop announces shutdown and waits for in-flight commands.
func (b *Bot) Stop(ctx context.Context) error {
	b.runningMu.Lock()
	if !b.running {
		b.runningMu.Unlock()
		return nil
	}
	b.running = false
	b.runningMu.Unlock()

	b.logger.Info("stopping discord bot")
	b.announce(ctx, "🔴 Bot is shutting down.")
	b.rateLimiter.Stop()

	done := make(chan struct{})
	go func() {
		b.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		b.logger.Info("all command handlers completed")
	case <-time.After(b.config.GracefulShutdownTimeout):
		b.logger.Warn("graceful shutdown timeout exceeded")
	case <-ctx.Done():
		b.logger.Warn("context cancelled during shutdown")
	}

	flushCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	return b.metricsMiddleware.Flush(flushCtx)
}

// IsRunning reports whether the event loop is active.
func (b *Bot) IsRunning() bool {
	b.runningMu.RLock()
	defer b.runningMu.RUnlock()
	return b.running
}

// verifyToken confirms the token works and learns the bot's own ID.
func (b *Bot) verifyToken(ctx context.Context) error {
	me, err := b.client.GetCurrentUser(ctx)
	if err != nil {
		return err
	}

	b.botUserID = me.ID.Int64()
	b.logger.Info("bot verified",
		"id", b.botUserID,
		"username", me.Username,
	)

	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// EVENT HANDLING
// ══════════════════════════════════════════════════════════════════════════════

// handleEvent reacts to one gateway dispatch.
func (b *Bot) handleEvent(ctx context.Context, event discord.Event) {
	switch event.Type {
	case "READY":
		b.handleReady(ctx, event.Data)
	case "GUILD_CREATE":
		b.handleGuildCreate(ctx, event.Data)
	case "GUILD_DELETE":
		b.handleGuildDelete(ctx, event.Data)
	case "MESSAGE_CREATE":
		b.handleMessageCreate(ctx, event.Data)
	}
}

func (b *Bot) handleReady(ctx context.Context, data json.RawMessage) {
	var ready discord.ReadyData
	if err := json.Unmarshal(data, &ready); err != nil {
		b.logger.Error("unmarshal ready", "error", err)
		return
	}

	if id := ready.User.ID.Int64(); id != 0 {
		b.botUserID = id
	}

	b.guildsMu.Lock()
	b.guilds = make(map[int64]bool, len(ready.Guilds))
	for _, g := range ready.Guilds {
		b.guilds[g.ID.Int64()] = true
	}
	b.guildsMu.Unlock()

	b.updatePresence()

	if !b.announced {
		b.announced = true
		b.announce(ctx, "🟢 Bot is online!")
	}
}

func (b *Bot) handleGuildCreate(ctx context.Context, data json.RawMessage) {
	var guild discord.Guild
	if err := json.Unmarshal(data, &guild); err != nil {
		return
	}

	b.guildsMu.Lock()
	known := b.guilds[guild.ID.Int64()]
	b.guilds[guild.ID.Int64()] = true
	b.guildsMu.Unlock()

	if !known {
		b.logger.Info("joined guild", "guild_id", guild.ID.Int64(), "name", guild.Name)
		b.updatePresence()
	}
}

func (b *Bot) handleGuildDelete(ctx context.Context, data json.RawMessage) {
	var guild discord.Guild
	if err := json.Unmarshal(data, &guild); err != nil {
		return
	}

	// Unavailable means an outage, not a removal
	if guild.Unavailable {
		return
	}

	b.guildsMu.Lock()
	delete(b.guilds, guild.ID.Int64())
	b.guildsMu.Unlock()

	b.logger.Info("left guild", "guild_id", guild.ID.Int64())
	b.updatePresence()
}

// updatePresence refreshes the "watching" status line.
func (b *Bot) updatePresence() {
	if b.gateway == nil {
		return
	}

	b.guildsMu.Lock()
	count := len(b.guilds)
	b.guildsMu.Unlock()

	err := b.gateway.UpdatePresence(discord.PresenceUpdate{
		Status: "online",
		Activities: []discord.Activity{{
			Name: fmt.Sprintf("%d servers | %shelp", count, b.config.Prefix),
			Type: discord.ActivityWatching,
		}},
	})
	if err != nil && b.config.Debug {
		b.logger.Debug("update presence", "error", err)
	}
}

// announce posts to the status channel when one is configured.
func (b *Bot) announce(ctx context.Context, text string) {
	if b.config.StatusChannelID == 0 {
		return
	}

	if _, err := b.client.SendText(ctx, b.config.StatusChannelID, text); err != nil {
		b.logger.Warn("status announcement failed", "error", err)
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// COMMAND DISPATCH
// ══════════════════════════════════════════════════════════════════════════════

// handleMessageCreate filters messages and spawns command dispatches.
func (b *Bot) handleMessageCreate(ctx context.Context, data json.RawMessage) {
	var msg discord.Message
	if err := json.Unmarshal(data, &msg); err != nil {
		b.logger.Error("unmarshal message", "error", err)
		return
	}

	// Never react to bots, ourselves included
	if msg.Author == nil || msg.Author.Bot || msg.Author.ID.Int64() == b.botUserID {
		return
	}

	b.metricsMiddleware.Stats().RecordMessage()

	inv, ok := b.router.Parse(msg.Content)
	if !ok {
		return
	}

	select {
	case b.cmdSem <- struct{}{}:
	case <-ctx.Done():
		return
	}

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		defer func() { <-b.cmdSem }()
		b.dispatch(ctx, &msg, inv)
	}()
}

// dispatch runs the middleware chain and the handler for one command.
func (b *Bot) dispatch(ctx context.Context, msg *discord.Message, inv Invocation) {
	userID := msg.Author.ID.Int64()
	channelID := msg.ChannelID.Int64()
	command := inv.Command.Name
	started := time.Now()

	if b.config.Debug {
		b.logger.Debug("command received",
			"command", command,
			"user_id", userID,
			"channel_id", channelID,
		)
	}

	// Rate limiting
	if result := b.rateLimiter.Check(userID); !result.Allowed {
		b.reply(ctx, channelID, result.ResponseMessage)
		return
	}

	// Authentication and authorization
	authResult, err := b.authMiddleware.Authorize(ctx, userID, msg.Author.DisplayName(), inv.Command.OwnerOnly)
	if err != nil {
		b.logger.Error("auth error", "command", command, "user_id", userID, "error", err)
		b.reply(ctx, channelID, "😔 Something went wrong, try again later.")
		return
	}
	if !authResult.ShouldContinue {
		b.reply(ctx, channelID, authResult.ResponseMessage)
		return
	}

	// Per-command cooldown
	if result := b.cooldownMiddleware.Check(ctx, userID, command, inv.Command.Cooldown); !result.Allowed {
		b.reply(ctx, channelID, result.ResponseMessage)
		return
	}

	ctx = middleware.ContextWithUser(ctx, authResult.User)

	var guildID *int64
	if id := msg.GuildID.Int64(); id != 0 {
		guildID = &id
	}

	cmdCtx := CommandContext{
		UserID:    userID,
		ChannelID: channelID,
		GuildID:   msg.GuildID.Int64(),
		MessageID: msg.ID.Int64(),
		Author:    msg.Author,
		Command:   command,
		Args:      inv.Args,
		ArgText:   inv.ArgText,
		Message:   msg,
		Client:    b.client,
	}

	// Recovery wrapper around the extension handler
	result := b.recoveryMiddleware.Run(ctx, userID, command, func() error {
		return inv.Command.Handler(ctx, cmdCtx)
	})

	duration := time.Since(started)

	switch {
	case result.Recovered:
		b.logger.Error("panic recovered in command handler",
			"command", command,
			"user_id", userID,
			"panic", result.PanicInfo.PanicValue,
			"stack", result.PanicInfo.StackTrace,
		)
		b.metricsMiddleware.ObserveCommand(userID, guildID, command, duration, result.PanicInfo.Error)
		b.reply(ctx, channelID, result.UserMessage)

	case result.Err != nil:
		b.logger.Error("command failed",
			"command", command,
			"user_id", userID,
			"duration", duration,
			"error", result.Err,
		)
		b.metricsMiddleware.ObserveCommand(userID, guildID, command, duration, result.Err)
		b.reply(ctx, channelID, "⚠️ Command failed, try again later.")

	default:
		b.metricsMiddleware.ObserveCommand(userID, guildID, command, duration, nil)
	}
}

// reply sends a response, swallowing delivery errors. Empty text means
// stay silent.
func (b *Bot) reply(ctx context.Context, channelID int64, text string) {
	if text == "" {
		return
	}
	if _, err := b.client.SendText(ctx, channelID, text); err != nil {
		b.logger.Warn("reply failed", "channel_id", channelID, "error", err)
	}
}
