// Package users exposes the member-facing profile commands: registration,
// profile display and the birthday/timezone self-service settings.
package users

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/questline-hub/questline-bot/internal/domain/cog"
	"github.com/questline-hub/questline-bot/internal/domain/user"
	"github.com/questline-hub/questline-bot/internal/extension"
	"github.com/questline-hub/questline-bot/internal/interface/discord"
	"github.com/questline-hub/questline-bot/pkg/timeutil"

	discordapi "github.com/questline-hub/questline-bot/internal/infrastructure/external/discord"
)

const (
	module  cog.Module = "cogs.users"
	version            = "1.1.0"
)

func init() {
	extension.Register(module, New)
}

// Cog serves the profile command surface.
type Cog struct {
	deps   extension.Deps
	logger *slog.Logger
}

func New(deps extension.Deps) extension.Extension {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Cog{
		deps:   deps,
		logger: logger.With("cog", module.Short()),
	}
}

func (c *Cog) Module() cog.Module { return module }
func (c *Cog) Version() string    { return version }

func (c *Cog) OnLoad(ctx context.Context) error {
	if c.deps.UserService == nil {
		return errors.New("users cog requires the user service")
	}
	if c.deps.Users == nil {
		return errors.New("users cog requires the user repository")
	}
	return nil
}

func (c *Cog) OnUnload(ctx context.Context) error { return nil }

func (c *Cog) Commands() []discord.Command {
	return []discord.Command{
		{
			Name:        "register",
			Description: "Create your profile (optionally set a nickname).",
			Usage:       "register [nickname]",
			Cooldown:    5 * time.Second,
			Handler:     c.handleRegister,
		},
		{
			Name:        "profile",
			Aliases:     []string{"me"},
			Description: "Show your profile.",
			Cooldown:    3 * time.Second,
			Handler:     c.handleProfile,
		},
		{
			Name:        "setbirthday",
			Description: "Set your birthday.",
			Usage:       "setbirthday <YYYY-MM-DD>",
			Cooldown:    5 * time.Second,
			Handler:     c.handleSetBirthday,
		},
		{
			Name:        "settimezone",
			Aliases:     []string{"settz"},
			Description: "Set your IANA timezone, e.g. Asia/Almaty.",
			Usage:       "settimezone <zone>",
			Cooldown:    5 * time.Second,
			Handler:     c.handleSetTimezone,
		},
	}
}

func (c *Cog) handleRegister(ctx context.Context, cmdCtx discord.CommandContext) error {
	patch := user.Patch{}
	if nick := strings.TrimSpace(cmdCtx.ArgText); nick != "" {
		patch.Nickname = &nick
	} else if cmdCtx.Author != nil {
		name := cmdCtx.Author.DisplayName()
		patch.Nickname = &name
	}

	u, err := c.deps.UserService.CreateOrUpdateUser(ctx, user.ID(cmdCtx.UserID), patch)
	if err != nil {
		if errors.Is(err, user.ErrInvalidNickname) {
			return cmdCtx.Reply(ctx, "⚠️ Nicknames are 1-32 printable characters.")
		}
		return err
	}

	return cmdCtx.Reply(ctx, fmt.Sprintf("✅ Welcome, **%s**! Your profile is ready — try `profile`.", u.DisplayName()))
}

func (c *Cog) handleProfile(ctx context.Context, cmdCtx discord.CommandContext) error {
	u, err := c.deps.Users.GetByID(ctx, user.ID(cmdCtx.UserID))
	if err != nil {
		if errors.Is(err, user.ErrUserNotFound) {
			return cmdCtx.Reply(ctx, "You don't have a profile yet. Use `register` first.")
		}
		return err
	}

	fields := []discordapi.EmbedField{
		{Name: "Level", Value: fmt.Sprintf("%d", u.Level()), Inline: true},
		{Name: "Exp", Value: fmt.Sprintf("%d", u.Exp), Inline: true},
		{Name: "Coins", Value: fmt.Sprintf("%d", u.Coins), Inline: true},
	}
	if u.Timezone != nil {
		fields = append(fields, discordapi.EmbedField{Name: "Timezone", Value: *u.Timezone, Inline: true})
	}
	if u.HasBirthday() {
		fields = append(fields, discordapi.EmbedField{
			Name:   "Birthday",
			Value:  u.Birthday.Format("January 2"),
			Inline: true,
		})
	}
	fields = append(fields, discordapi.EmbedField{
		Name:   "Member since",
		Value:  timeutil.FormatRelative(u.CreatedAt),
		Inline: true,
	})

	embed := discordapi.Embed{
		Title:  fmt.Sprintf("Profile: %s", u.DisplayName()),
		Color:  0x5865F2,
		Fields: fields,
	}
	return cmdCtx.ReplyEmbed(ctx, embed)
}

func (c *Cog) handleSetBirthday(ctx context.Context, cmdCtx discord.CommandContext) error {
	if len(cmdCtx.Args) == 0 {
		return cmdCtx.Reply(ctx, "Usage: `setbirthday <YYYY-MM-DD>`")
	}

	birthday, err := timeutil.ParseBirthday(cmdCtx.Args[0])
	if err != nil {
		return cmdCtx.Reply(ctx, "⚠️ I couldn't read that date. Use `YYYY-MM-DD`, e.g. `1998-04-17`.")
	}

	_, err = c.deps.UserService.CreateOrUpdateUser(ctx, user.ID(cmdCtx.UserID), user.Patch{
		Birthday: &birthday,
	})
	if err != nil {
		if errors.Is(err, user.ErrFutureBirthday) {
			return cmdCtx.Reply(ctx, "⚠️ That birthday is in the future.")
		}
		return err
	}

	return cmdCtx.Reply(ctx, fmt.Sprintf("🎂 Birthday saved: %s.", birthday.Format("January 2, 2006")))
}

func (c *Cog) handleSetTimezone(ctx context.Context, cmdCtx discord.CommandContext) error {
	if len(cmdCtx.Args) == 0 {
		return cmdCtx.Reply(ctx, "Usage: `settimezone <zone>` — e.g. `settimezone Asia/Almaty`")
	}

	zone := cmdCtx.Args[0]
	if _, err := time.LoadLocation(zone); err != nil {
		return cmdCtx.Reply(ctx, fmt.Sprintf("⚠️ `%s` is not a known IANA timezone.", zone))
	}

	_, err := c.deps.UserService.CreateOrUpdateUser(ctx, user.ID(cmdCtx.UserID), user.Patch{
		Timezone: &zone,
	})
	if err != nil {
		return err
	}

	now := time.Now().In(timeutil.LocationOrUTC(zone))
	return cmdCtx.Reply(ctx, fmt.Sprintf("🕐 Timezone saved: `%s` (local time %s).", zone, now.Format("15:04")))
}
