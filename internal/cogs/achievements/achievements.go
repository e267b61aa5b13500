// Package achievements lets members browse the achievement catalog and
// view their unlocks, and lets operators grant achievements by hand.
package achievements

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/questline-hub/questline-bot/internal/domain/achievement"
	"github.com/questline-hub/questline-bot/internal/domain/cog"
	"github.com/questline-hub/questline-bot/internal/domain/user"
	"github.com/questline-hub/questline-bot/internal/extension"
	"github.com/questline-hub/questline-bot/internal/interface/discord"
	"github.com/questline-hub/questline-bot/pkg/timeutil"

	discordapi "github.com/questline-hub/questline-bot/internal/infrastructure/external/discord"
)

const (
	module  cog.Module = "cogs.achievements"
	version            = "1.0.2"
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
	if c.deps.Achievements == nil || c.deps.Unlocks == nil {
		return errors.New("achievements cog requires the achievement repositories")
	}
	if c.deps.AchievementService == nil {
		return errors.New("achievements cog requires the achievement service")
	}
	return nil
}

func (c *Cog) OnUnload(ctx context.Context) error { return nil }

func (c *Cog) Commands() []discord.Command {
	return []discord.Command{
		{
			Name:        "achievements",
			Aliases:     []string{"achlist"},
			Description: "Browse the achievement catalog.",
			Usage:       "achievements [category]",
			Cooldown:    5 * time.Second,
			Handler:     c.handleList,
		},
		{
			Name:        "myachievements",
			Aliases:     []string{"unlocked"},
			Description: "Show achievements you have unlocked.",
			Cooldown:    5 * time.Second,
			Handler:     c.handleMine,
		},
		{
			Name:        "grant",
			Description: "Grant an achievement to a user by name.",
			Usage:       "grant <user_id> <achievement name>",
			OwnerOnly:   true,
			Handler:     c.handleGrant,
		},
	}
}

func (c *Cog) handleList(ctx context.Context, cmdCtx discord.CommandContext) error {
	var (
		catalog []*achievement.Achievement
		err     error
	)
	if category := strings.TrimSpace(cmdCtx.ArgText); category != "" {
		catalog, err = c.deps.Achievements.GetByCategory(ctx, category, false)
	} else {
		catalog, err = c.deps.Achievements.GetAll(ctx, false)
	}
	if err != nil {
		return err
	}
	if len(catalog) == 0 {
		return cmdCtx.Reply(ctx, "No achievements found.")
	}

	embed := discordapi.Embed{
		Title:       fmt.Sprintf("🏆 Achievements (%d)", len(catalog)),
		Description: FormatCatalog(catalog),
		Color:       0xFEE75C,
	}
	return cmdCtx.ReplyEmbed(ctx, embed)
}

func (c *Cog) handleMine(ctx context.Context, cmdCtx discord.CommandContext) error {
	unlocks, err := c.deps.Unlocks.GetByUser(ctx, cmdCtx.UserID)
	if err != nil {
		return err
	}
	if len(unlocks) == 0 {
		return cmdCtx.Reply(ctx, "You haven't unlocked any achievements yet.")
	}

	// The unlock rows carry only IDs; resolve names against the catalog.
	catalog, err := c.deps.Achievements.GetAll(ctx, true)
	if err != nil {
		return err
	}
	byID := make(map[achievement.ID]*achievement.Achievement, len(catalog))
	for _, a := range catalog {
		byID[a.ID] = a
	}

	var b strings.Builder
	for _, u := range unlocks {
		a, ok := byID[u.AchievementID]
		if !ok {
			continue
		}
		fmt.Fprintf(&b, "%s **%s** — %s", rarityIcon(a.Rarity), a.Name,
			timeutil.FormatRelative(u.UnlockedAt))
		b.WriteString("\n")
	}

	embed := discordapi.Embed{
		Title:       fmt.Sprintf("🏆 Your achievements (%d)", len(unlocks)),
		Description: b.String(),
		Color:       0xFEE75C,
	}
	return cmdCtx.ReplyEmbed(ctx, embed)
}

func (c *Cog) handleGrant(ctx context.Context, cmdCtx discord.CommandContext) error {
	if len(cmdCtx.Args) < 2 {
		return cmdCtx.Reply(ctx, "Usage: `grant <user_id> <achievement name>`")
	}

	targetID, err := strconv.ParseInt(cmdCtx.Args[0], 10, 64)
	if err != nil || targetID <= 0 {
		return cmdCtx.Reply(ctx, "⚠️ The first argument must be a Discord user ID.")
	}
	name := strings.TrimSpace(strings.Join(cmdCtx.Args[1:], " "))

	granted, err := c.deps.AchievementService.UnlockByName(ctx, targetID, name, nil)
	if err != nil {
		switch {
		case errors.Is(err, achievement.ErrNotFound):
			return cmdCtx.Reply(ctx, fmt.Sprintf("❓ No achievement named `%s`.", name))
		case errors.Is(err, achievement.ErrAlreadyUnlocked):
			return cmdCtx.Reply(ctx, "ℹ️ That user already has this achievement.")
		case errors.Is(err, achievement.ErrNotActive):
			return cmdCtx.Reply(ctx, "⚠️ That achievement is retired and can no longer be granted.")
		case errors.Is(err, user.ErrUserNotFound):
			return cmdCtx.Reply(ctx, "❓ That user has no profile.")
		default:
			return err
		}
	}

	c.logger.Info("achievement granted manually",
		"achievement", granted.Name,
		"to", targetID,
		"by", cmdCtx.UserID,
	)
	return cmdCtx.Reply(ctx, fmt.Sprintf("🏆 Granted **%s** to <@%d> (+%d coins, +%d exp).",
		granted.Name, targetID, granted.CoinReward, granted.ExpReward))
}

// FormatCatalog renders the public catalog as one line per achievement.
func FormatCatalog(catalog []*achievement.Achievement) string {
	var b strings.Builder
	for _, a := range catalog {
		fmt.Fprintf(&b, "%s **%s** — %s", rarityIcon(a.Rarity), a.Name, a.Description)
		if a.CoinReward > 0 || a.ExpReward > 0 {
			fmt.Fprintf(&b, " (+%d 🪙, +%d ✨)", a.CoinReward, a.ExpReward)
		}
		if !a.IsActive {
			b.WriteString(" *(retired)*")
		}
		b.WriteString("\n")
	}
	return b.String()
}

func rarityIcon(r achievement.Rarity) string {
	switch r {
	case achievement.RarityLegendary:
		return "🟠"
	case achievement.RarityEpic:
		return "🟣"
	case achievement.RarityRare:
		return "🔵"
	default:
		return "⚪"
	}
}
