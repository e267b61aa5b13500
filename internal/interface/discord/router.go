// Package discord implements the Discord chat interface for Questline.
package discord

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/questline-hub/questline-bot/internal/infrastructure/external/discord"
)

// ══════════════════════════════════════════════════════════════════════════════
// ROUTER CONFIGURATION
// ══════════════════════════════════════════════════════════════════════════════

// RouterConfig contains configuration for the router.
type RouterConfig struct {
	// Prefix marks messages as commands (default "!").
	Prefix string

	// Logger for structured logging.
	Logger *slog.Logger

	// Debug enables debug logging for routing decisions.
	Debug bool
}

// ══════════════════════════════════════════════════════════════════════════════
// COMMAND TYPES
// These types carry context information through the dispatch process.
// Handlers are contributed by extensions and resolved through a
// CommandProvider at dispatch time, so loading and unloading an
// extension immediately changes what the router can see.
// ══════════════════════════════════════════════════════════════════════════════

// HandlerFunc processes one command invocation.
type HandlerFunc func(ctx context.Context, cmdCtx CommandContext) error

// Command describes a chat command contributed by an extension.
type Command struct {
	// Name is the primary invocation name, without the prefix.
	Name string

	// Aliases are alternative invocation names.
	Aliases []string

	// Description is shown in help output.
	Description string

	// Usage documents the argument shape, e.g. "adduser <id> [birthday]".
	Usage string

	// OwnerOnly restricts the command to configured bot owners.
	OwnerOnly bool

	// Cooldown is the minimum interval between invocations per user.
	// Zero means no cooldown.
	Cooldown time.Duration

	// Handler executes the command.
	Handler HandlerFunc
}

// CommandContext contains context for command handling.
type CommandContext struct {
	// UserID is the invoking user's Discord ID.
	UserID int64

	// ChannelID is the channel where the command was sent.
	ChannelID int64

	// GuildID is the guild the channel belongs to (0 in direct messages).
	GuildID int64

	// MessageID is the ID of the message containing the command.
	MessageID int64

	// Author is the invoking user.
	Author *discord.User

	// Command is the resolved command name (primary name, not the alias).
	Command string

	// Args is the whitespace-split argument list.
	Args []string

	// ArgText is the raw text after the command name.
	ArgText string

	// Message is the original Discord message.
	Message *discord.Message

	// Client is the Discord client for sending responses.
	Client *discord.Client
}

// Reply sends a plain text response to the command's channel.
func (c CommandContext) Reply(ctx context.Context, text string) error {
	_, err := c.Client.SendText(ctx, c.ChannelID, text)
	return err
}

// ReplyEmbed sends an embed response to the command's channel.
func (c CommandContext) ReplyEmbed(ctx context.Context, embed discord.Embed) error {
	_, err := c.Client.SendEmbed(ctx, c.ChannelID, embed)
	return err
}

// React adds an emoji reaction to the invoking message.
func (c CommandContext) React(ctx context.Context, emoji string) error {
	return c.Client.AddReaction(ctx, c.ChannelID, c.MessageID, emoji)
}

// ══════════════════════════════════════════════════════════════════════════════
// COMMAND PROVIDER
// ══════════════════════════════════════════════════════════════════════════════

// CommandProvider resolves command names to handlers. The extension
// manager implements this over its table of loaded extensions.
type CommandProvider interface {
	// Lookup resolves a command by name or alias. The bool reports
	// whether a loaded extension currently provides the command.
	Lookup(name string) (Command, bool)

	// Commands returns every command currently available, sorted by name.
	Commands() []Command
}

// ══════════════════════════════════════════════════════════════════════════════
// ROUTER
// ══════════════════════════════════════════════════════════════════════════════

// Router turns raw messages into command invocations.
type Router struct {
	config   RouterConfig
	logger   *slog.Logger
	provider CommandProvider
}

// NewRouter creates a new router backed by the given provider.
func NewRouter(provider CommandProvider, config RouterConfig) *Router {
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	if config.Prefix == "" {
		config.Prefix = "!"
	}

	return &Router{
		config:   config,
		logger:   config.Logger,
		provider: provider,
	}
}

// Prefix returns the configured command prefix.
func (r *Router) Prefix() string {
	return r.config.Prefix
}

// Invocation is a parsed command message.
type Invocation struct {
	Command Command
	Args    []string
	ArgText string
}

// Parse extracts a command invocation from message content. The second
// return is false when the message is not a command or names a command
// no loaded extension provides. Unknown commands are ignored rather
// than answered, so the bot stays quiet when other bots share a prefix.
func (r *Router) Parse(content string) (Invocation, bool) {
	if !strings.HasPrefix(content, r.config.Prefix) {
		return Invocation{}, false
	}

	body := strings.TrimPrefix(content, r.config.Prefix)
	fields := strings.Fields(body)
	if len(fields) == 0 {
		return Invocation{}, false
	}

	name := strings.ToLower(fields[0])
	cmd, ok := r.provider.Lookup(name)
	if !ok {
		if r.config.Debug {
			r.logger.Debug("no handler for command", "command", name)
		}
		return Invocation{}, false
	}

	args := fields[1:]
	argText := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(body), fields[0]))

	return Invocation{
		Command: cmd,
		Args:    args,
		ArgText: argText,
	}, true
}

// Commands exposes the provider's current command list, for help output.
func (r *Router) Commands() []Command {
	return r.provider.Commands()
}
