// Package greet is the smallest cog: a hello command and a daily
// check-in reward. It doubles as the smoke test for the extension
// lifecycle machinery, so keep it boring.
package greet

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/questline-hub/questline-bot/config"
	"github.com/questline-hub/questline-bot/internal/domain/cog"
	"github.com/questline-hub/questline-bot/internal/domain/user"
	"github.com/questline-hub/questline-bot/internal/extension"
	"github.com/questline-hub/questline-bot/internal/interface/discord"
)

const (
	module  cog.Module = "cogs.greet"
	version            = "1.0.0"
)

// Daily check-in reward.
const (
	dailyCoins = 25
	dailyExp   = 10
)

func init() {
	extension.Register(module, New)
}

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
		return errors.New("greet cog requires the user service")
	}
	return nil
}

func (c *Cog) OnUnload(ctx context.Context) error { return nil }

func (c *Cog) Commands() []discord.Command {
	return []discord.Command{
		{
			Name:        "hello",
			Aliases:     []string{"hi", "hey"},
			Description: "Say hello.",
			Cooldown:    3 * time.Second,
			Handler:     c.handleHello,
		},
		{
			Name:        "daily",
			Description: "Collect your daily check-in reward.",
			Cooldown:    24 * time.Hour,
			Handler:     c.handleDaily,
		},
	}
}

func (c *Cog) handleHello(ctx context.Context, cmdCtx discord.CommandContext) error {
	if !c.flagEnabled(config.FeatureGreetHello, cmdCtx) {
		return nil
	}

	name := "there"
	if cmdCtx.Author != nil {
		name = cmdCtx.Author.DisplayName()
	}
	return cmdCtx.Reply(ctx, fmt.Sprintf("👋 Hello, %s!", name))
}

func (c *Cog) handleDaily(ctx context.Context, cmdCtx discord.CommandContext) error {
	featureCtx := c.featureContext(cmdCtx)
	if c.deps.Flags != nil && !c.deps.Flags.EconomyEnabled(featureCtx) {
		return cmdCtx.Reply(ctx, "The economy is taking a nap. Check back later.")
	}

	coins := 0
	exp := 0
	if c.flagEnabled(config.FeatureEconomyCoins, cmdCtx) {
		coins = dailyCoins
	}
	if c.flagEnabled(config.FeatureEconomyExp, cmdCtx) {
		exp = dailyExp
	}

	u, err := c.deps.UserService.AdjustBalance(ctx, user.ID(cmdCtx.UserID), coins, exp, "daily")
	if err != nil {
		if errors.Is(err, user.ErrUserNotFound) {
			return cmdCtx.Reply(ctx, "You don't have a profile yet. Use `register` first.")
		}
		return err
	}

	return cmdCtx.Reply(ctx, fmt.Sprintf("☀️ Daily reward collected: +%d 🪙, +%d ✨. Balance: %d coins, level %d.",
		coins, exp, u.Coins, u.Level()))
}

func (c *Cog) flagEnabled(feature string, cmdCtx discord.CommandContext) bool {
	if c.deps.Flags == nil {
		return true
	}
	return c.deps.Flags.IsEnabled(feature, c.featureContext(cmdCtx))
}

func (c *Cog) featureContext(cmdCtx discord.CommandContext) *config.FeatureContext {
	fc := &config.FeatureContext{
		UserID:  cmdCtx.UserID,
		GuildID: cmdCtx.GuildID,
	}
	if c.deps.Config != nil {
		fc.IsOwner = c.deps.Config.Discord.IsOwner(cmdCtx.UserID)
	}
	return fc
}
