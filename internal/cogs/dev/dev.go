// Package dev is the operator cog: runtime introspection, database
// round-trip checks and extension lifecycle control. Every command here
// is owner-gated; the bot stays useful to operators even when every
// other cog is down, so this cog depends on as little as possible.
package dev

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/questline-hub/questline-bot/internal/domain/cog"
	"github.com/questline-hub/questline-bot/internal/extension"
	"github.com/questline-hub/questline-bot/internal/infrastructure/persistence/postgres"
	"github.com/questline-hub/questline-bot/internal/interface/discord"
	"github.com/questline-hub/questline-bot/pkg/timeutil"

	discordapi "github.com/questline-hub/questline-bot/internal/infrastructure/external/discord"
)

const (
	module  cog.Module = "cogs.dev"
	version            = "1.3.0"
)

func init() {
	extension.Register(module, New)
}

// Cog implements the operator command surface.
type Cog struct {
	deps   extension.Deps
	logger *slog.Logger
}

// New creates a fresh dev cog instance.
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
	if c.deps.Sessions == nil {
		return errors.New("dev cog requires a session manager")
	}
	if c.deps.Manager == nil {
		return errors.New("dev cog requires the extension manager")
	}
	return nil
}

func (c *Cog) OnUnload(ctx context.Context) error { return nil }

func (c *Cog) Commands() []discord.Command {
	return []discord.Command{
		{
			Name:        "alive",
			Aliases:     []string{"status"},
			Description: "Uptime, dispatch counters and pool health.",
			OwnerOnly:   true,
			Handler:     c.handleAlive,
		},
		{
			Name:        "dbtest",
			Description: "Round-trip test through the session layer.",
			OwnerOnly:   true,
			Handler:     c.handleDBTest,
		},
		{
			Name:        "dbstats",
			Description: "Pool counters and pg_stat_database for the current DB.",
			OwnerOnly:   true,
			Handler:     c.handleDBStats,
		},
		{
			Name:        "load",
			Description: "Load an extension.",
			Usage:       "load <module>",
			OwnerOnly:   true,
			Handler:     c.handleLoad,
		},
		{
			Name:        "unload",
			Description: "Unload an extension.",
			Usage:       "unload <module>",
			OwnerOnly:   true,
			Handler:     c.handleUnload,
		},
		{
			Name:        "reload",
			Description: "Reload an extension in place.",
			Usage:       "reload <module>",
			OwnerOnly:   true,
			Handler:     c.handleReload,
		},
		{
			Name:        "disable",
			Description: "Unload an extension and keep it off across restarts.",
			Usage:       "disable <module>",
			OwnerOnly:   true,
			Handler:     c.handleDisable,
		},
		{
			Name:        "listcogs",
			Aliases:     []string{"cogs"},
			Description: "List every registered extension and its state.",
			OwnerOnly:   true,
			Handler:     c.handleListCogs,
		},
		{
			Name:        "loglevel",
			Description: "Change the process log level at runtime.",
			Usage:       "loglevel <debug|info|warn|error>",
			OwnerOnly:   true,
			Handler:     c.handleLogLevel,
		},
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Introspection commands
// ─────────────────────────────────────────────────────────────────────────────

func (c *Cog) handleAlive(ctx context.Context, cmdCtx discord.CommandContext) error {
	snap := c.deps.Stats.Snapshot()
	pool := c.deps.Sessions.Stats()
	sess := c.deps.Sessions.SessionStats()

	loaded := 0
	for _, st := range c.deps.Manager.Statuses() {
		if st.State == extension.StateLoaded {
			loaded++
		}
	}

	embed := discordapi.Embed{
		Title: "🟢 I'm alive",
		Color: 0x57F287,
		Fields: []discordapi.EmbedField{
			{Name: "Uptime", Value: timeutil.FormatUptime(snap.Uptime), Inline: true},
			{Name: "Version", Value: c.appVersion(), Inline: true},
			{Name: "Extensions", Value: fmt.Sprintf("%d loaded", loaded), Inline: true},
			{Name: "Commands", Value: fmt.Sprintf("%d (%d failed)", snap.Commands, snap.Errors), Inline: true},
			{Name: "Messages seen", Value: fmt.Sprintf("%d", snap.Messages), Inline: true},
			{Name: "DB pool", Value: fmt.Sprintf("%d in use / %d idle / max %d",
				pool.InUse, pool.Idle, pool.MaxConns), Inline: true},
			{Name: "DB sessions", Value: fmt.Sprintf("%d (%d commits, %d rollbacks)",
				sess.Sessions, sess.Commits, sess.Rollbacks), Inline: true},
			{Name: "Circuit", Value: c.deps.Sessions.BreakerState().String(), Inline: true},
		},
	}
	return cmdCtx.ReplyEmbed(ctx, embed)
}

func (c *Cog) handleDBTest(ctx context.Context, cmdCtx discord.CommandContext) error {
	var (
		database string
		server   string
		backends int
	)

	// Read path first: bare connection, no transaction.
	readStart := time.Now()
	err := c.deps.Sessions.RunReadOnly(ctx, func(ctx context.Context, q postgres.Querier) error {
		if err := q.QueryRow(ctx, "SELECT current_database(), version()").Scan(&database, &server); err != nil {
			return err
		}
		return q.QueryRow(ctx,
			"SELECT count(*) FROM pg_stat_activity WHERE datname = current_database()",
		).Scan(&backends)
	})
	if err != nil {
		return fmt.Errorf("read path: %w", err)
	}
	readLatency := time.Since(readStart)

	// Then the transactional path the handlers actually use.
	txStart := time.Now()
	err = c.deps.Sessions.Run(ctx, func(ctx context.Context, q postgres.Querier) error {
		var one int
		return q.QueryRow(ctx, "SELECT 1").Scan(&one)
	})
	if err != nil {
		return fmt.Errorf("transaction path: %w", err)
	}
	txLatency := time.Since(txStart)

	// version() is verbose; the first two words identify the server.
	if fields := strings.Fields(server); len(fields) >= 2 {
		server = fields[0] + " " + fields[1]
	}

	embed := discordapi.Embed{
		Title: "✅ Database round-trip OK",
		Color: 0x57F287,
		Fields: []discordapi.EmbedField{
			{Name: "Database", Value: database, Inline: true},
			{Name: "Server", Value: server, Inline: true},
			{Name: "Active connections", Value: fmt.Sprintf("%d", backends), Inline: true},
			{Name: "Read latency", Value: readLatency.Round(time.Microsecond).String(), Inline: true},
			{Name: "Tx latency", Value: txLatency.Round(time.Microsecond).String(), Inline: true},
		},
	}
	return cmdCtx.ReplyEmbed(ctx, embed)
}

func (c *Cog) handleDBStats(ctx context.Context, cmdCtx discord.CommandContext) error {
	var (
		backends                 int
		commits, rollbacks       int64
		blksRead, blksHit        int64
		tempFiles, tempBytes     int64
	)

	err := c.deps.Sessions.RunReadOnly(ctx, func(ctx context.Context, q postgres.Querier) error {
		return q.QueryRow(ctx, `
			SELECT numbackends, xact_commit, xact_rollback,
			       blks_read, blks_hit, temp_files, temp_bytes
			FROM pg_stat_database
			WHERE datname = current_database()`,
		).Scan(&backends, &commits, &rollbacks, &blksRead, &blksHit, &tempFiles, &tempBytes)
	})
	if err != nil {
		return err
	}

	hitRatio := 0.0
	if total := blksRead + blksHit; total > 0 {
		hitRatio = float64(blksHit) / float64(total) * 100
	}

	pool := c.deps.Sessions.Stats()

	embed := discordapi.Embed{
		Title: "📊 Database statistics",
		Color: 0x5865F2,
		Fields: []discordapi.EmbedField{
			{Name: "Backends", Value: fmt.Sprintf("%d", backends), Inline: true},
			{Name: "Commits", Value: fmt.Sprintf("%d", commits), Inline: true},
			{Name: "Rollbacks", Value: fmt.Sprintf("%d", rollbacks), Inline: true},
			{Name: "Cache hit ratio", Value: fmt.Sprintf("%.2f%%", hitRatio), Inline: true},
			{Name: "Blocks read/hit", Value: fmt.Sprintf("%d / %d", blksRead, blksHit), Inline: true},
			{Name: "Temp files", Value: fmt.Sprintf("%d (%d bytes)", tempFiles, tempBytes), Inline: true},
			{Name: "Pool", Value: fmt.Sprintf("size %d, in use %d, idle %d",
				pool.Size, pool.InUse, pool.Idle), Inline: true},
			{Name: "Acquires", Value: fmt.Sprintf("%d (%d waited)", pool.Acquires, pool.Waits), Inline: true},
			{Name: "Discards", Value: fmt.Sprintf("%d (%d probe failures)",
				pool.Discards, pool.ProbeFailures), Inline: true},
		},
	}
	return cmdCtx.ReplyEmbed(ctx, embed)
}

// ─────────────────────────────────────────────────────────────────────────────
// Lifecycle commands
// ─────────────────────────────────────────────────────────────────────────────

func (c *Cog) handleLoad(ctx context.Context, cmdCtx discord.CommandContext) error {
	target, err := c.targetModule(cmdCtx.Args)
	if err != nil {
		return cmdCtx.Reply(ctx, "Usage: `load <module>`")
	}

	if err := c.deps.Manager.Load(ctx, target); err != nil {
		return cmdCtx.Reply(ctx, lifecycleFailureMessage("load", target, err))
	}
	return cmdCtx.Reply(ctx, fmt.Sprintf("✅ Loaded `%s`.", target))
}

func (c *Cog) handleUnload(ctx context.Context, cmdCtx discord.CommandContext) error {
	target, err := c.targetModule(cmdCtx.Args)
	if err != nil {
		return cmdCtx.Reply(ctx, "Usage: `unload <module>`")
	}
	if target == module {
		return cmdCtx.Reply(ctx, "⚠️ Refusing to unload the operator cog; use `disable` from a restart if you really mean it.")
	}

	if err := c.deps.Manager.Unload(ctx, target); err != nil {
		return cmdCtx.Reply(ctx, lifecycleFailureMessage("unload", target, err))
	}
	return cmdCtx.Reply(ctx, fmt.Sprintf("✅ Unloaded `%s`.", target))
}

func (c *Cog) handleReload(ctx context.Context, cmdCtx discord.CommandContext) error {
	target, err := c.targetModule(cmdCtx.Args)
	if err != nil {
		return cmdCtx.Reply(ctx, "Usage: `reload <module>`")
	}

	started := time.Now()
	if err := c.deps.Manager.Reload(ctx, target); err != nil {
		return cmdCtx.Reply(ctx, lifecycleFailureMessage("reload", target, err))
	}
	return cmdCtx.Reply(ctx, fmt.Sprintf("🔄 Reloaded `%s` in %s.",
		target, time.Since(started).Round(time.Millisecond)))
}

func (c *Cog) handleDisable(ctx context.Context, cmdCtx discord.CommandContext) error {
	target, err := c.targetModule(cmdCtx.Args)
	if err != nil {
		return cmdCtx.Reply(ctx, "Usage: `disable <module>`")
	}
	if target == module {
		return cmdCtx.Reply(ctx, "⚠️ Refusing to disable the operator cog.")
	}

	if err := c.deps.Manager.Disable(ctx, target); err != nil {
		return cmdCtx.Reply(ctx, lifecycleFailureMessage("disable", target, err))
	}
	return cmdCtx.Reply(ctx, fmt.Sprintf("🚫 Disabled `%s`; it stays off across restarts.", target))
}

func (c *Cog) handleListCogs(ctx context.Context, cmdCtx discord.CommandContext) error {
	statuses := c.deps.Manager.Statuses()

	var b strings.Builder
	for _, st := range statuses {
		icon := stateIcon(st.State)
		fmt.Fprintf(&b, "%s `%s`", icon, st.Module)
		if st.Version != "" {
			fmt.Fprintf(&b, " v%s", st.Version)
		}
		if st.State == extension.StateLoaded {
			fmt.Fprintf(&b, " — %d commands", st.Commands)
			if st.LoadedAt != nil {
				fmt.Fprintf(&b, ", loaded %s", timeutil.FormatRelative(*st.LoadedAt))
			}
		}
		if st.Error != "" {
			fmt.Fprintf(&b, " — %s", st.Error)
		}
		b.WriteString("\n")
	}

	embed := discordapi.Embed{
		Title:       fmt.Sprintf("Extensions (%d registered)", len(statuses)),
		Description: b.String(),
		Color:       0x5865F2,
	}
	return cmdCtx.ReplyEmbed(ctx, embed)
}

func (c *Cog) handleLogLevel(ctx context.Context, cmdCtx discord.CommandContext) error {
	if c.deps.LogLevel == nil {
		return cmdCtx.Reply(ctx, "⚠️ Runtime log level is not wired on this deployment.")
	}
	if len(cmdCtx.Args) == 0 {
		return cmdCtx.Reply(ctx, fmt.Sprintf("Current log level: `%s`.", c.deps.LogLevel.Level()))
	}

	level, err := parseLevel(cmdCtx.Args[0])
	if err != nil {
		return cmdCtx.Reply(ctx, "Usage: `loglevel <debug|info|warn|error>`")
	}

	old := c.deps.LogLevel.Level()
	c.deps.LogLevel.Set(level)
	c.logger.Warn("log level changed",
		"from", old.String(),
		"to", level.String(),
		"changed_by", cmdCtx.UserID,
	)
	return cmdCtx.Reply(ctx, fmt.Sprintf("📝 Log level: `%s` → `%s`.", old, level))
}

// ─────────────────────────────────────────────────────────────────────────────
// Helpers
// ─────────────────────────────────────────────────────────────────────────────

// targetModule resolves the operator's argument to a module name. Bare
// names get the "cogs." prefix, so `reload greet` works.
func (c *Cog) targetModule(args []string) (cog.Module, error) {
	if len(args) == 0 {
		return "", errors.New("missing module name")
	}
	return NormalizeModule(args[0]), nil
}

// NormalizeModule maps an operator-typed name to a registry module name.
func NormalizeModule(name string) cog.Module {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return cog.Module(name)
	}
	if !strings.Contains(name, ".") {
		name = "cogs." + name
	}
	return cog.Module(name)
}

// lifecycleFailureMessage maps manager errors to operator-facing text.
func lifecycleFailureMessage(op string, module cog.Module, err error) string {
	switch {
	case errors.Is(err, extension.ErrExtensionNotFound):
		return fmt.Sprintf("❓ No extension named `%s`.", module)
	case errors.Is(err, extension.ErrAlreadyLoaded):
		return fmt.Sprintf("ℹ️ `%s` is already loaded.", module)
	case errors.Is(err, extension.ErrNotLoaded):
		return fmt.Sprintf("ℹ️ `%s` is not loaded.", module)
	case errors.Is(err, extension.ErrCommandConflict):
		return fmt.Sprintf("⚠️ %s of `%s` failed: %v", op, module, err)
	default:
		return fmt.Sprintf("❌ %s of `%s` failed: %v", op, module, err)
	}
}

func stateIcon(s extension.State) string {
	switch s {
	case extension.StateLoaded:
		return "🟢"
	case extension.StateFailed:
		return "🔴"
	case extension.StateUnloaded:
		return "⚪"
	default:
		return "⚫"
	}
}

func parseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("unknown level %q", s)
	}
}

func (c *Cog) appVersion() string {
	if c.deps.Config != nil && c.deps.Config.App.Version != "" {
		return c.deps.Config.App.Version
	}
	return "dev"
}
