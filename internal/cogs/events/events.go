// Package events serves community events: members can list open events
// and check in; operators create them from chat.
package events

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/questline-hub/questline-bot/internal/domain/cog"
	"github.com/questline-hub/questline-bot/internal/domain/event"
	"github.com/questline-hub/questline-bot/internal/extension"
	"github.com/questline-hub/questline-bot/internal/infrastructure/persistence/postgres"
	"github.com/questline-hub/questline-bot/internal/interface/discord"
	"github.com/questline-hub/questline-bot/pkg/timeutil"

	discordapi "github.com/questline-hub/questline-bot/internal/infrastructure/external/discord"
)

const (
	module  cog.Module = "cogs.events"
	version            = "1.2.0"
)

// eventTimeLayout is the local-time format operators type in createevent.
const eventTimeLayout = "2006-01-02 15:04"

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
	if c.deps.Events == nil || c.deps.EventLogs == nil {
		return errors.New("events cog requires the event repositories")
	}
	if c.deps.Sessions == nil {
		return errors.New("events cog requires a session manager")
	}
	return nil
}

func (c *Cog) OnUnload(ctx context.Context) error { return nil }

func (c *Cog) Commands() []discord.Command {
	return []discord.Command{
		{
			Name:        "events",
			Description: "List upcoming and active events.",
			Cooldown:    5 * time.Second,
			Handler:     c.handleList,
		},
		{
			Name:        "joinevent",
			Aliases:     []string{"checkin"},
			Description: "Check in to an active event.",
			Usage:       "joinevent <event_id>",
			Cooldown:    5 * time.Second,
			Handler:     c.handleJoin,
		},
		{
			Name:        "createevent",
			Description: "Create an event. Fields are separated by `|`.",
			Usage:       "createevent <name> | <start: YYYY-MM-DD HH:MM> | <end: YYYY-MM-DD HH:MM> | [description]",
			OwnerOnly:   true,
			Handler:     c.handleCreate,
		},
	}
}

func (c *Cog) handleList(ctx context.Context, cmdCtx discord.CommandContext) error {
	active, err := c.deps.Events.GetByStatus(ctx, event.StatusActive)
	if err != nil {
		return err
	}
	pending, err := c.deps.Events.GetByStatus(ctx, event.StatusPending)
	if err != nil {
		return err
	}
	if len(active) == 0 && len(pending) == 0 {
		return cmdCtx.Reply(ctx, "No events on the calendar right now.")
	}

	var b strings.Builder
	if len(active) > 0 {
		b.WriteString("**Active now**\n")
		for _, e := range active {
			b.WriteString(formatEventLine(e))
		}
	}
	if len(pending) > 0 {
		if b.Len() > 0 {
			b.WriteString("\n")
		}
		b.WriteString("**Upcoming**\n")
		for _, e := range pending {
			b.WriteString(formatEventLine(e))
		}
	}

	embed := discordapi.Embed{
		Title:       "📅 Events",
		Description: b.String(),
		Color:       0xEB459E,
	}
	return cmdCtx.ReplyEmbed(ctx, embed)
}

func (c *Cog) handleJoin(ctx context.Context, cmdCtx discord.CommandContext) error {
	if len(cmdCtx.Args) == 0 {
		return cmdCtx.Reply(ctx, "Usage: `joinevent <event_id>`")
	}
	rawID, err := strconv.ParseInt(cmdCtx.Args[0], 10, 64)
	if err != nil || rawID <= 0 {
		return cmdCtx.Reply(ctx, "⚠️ The event ID must be a positive number.")
	}
	eventID := event.ID(rawID)

	var joined *event.Event

	// One transaction covers the joinable check, the duplicate check,
	// the log append and the participant counter.
	err = c.deps.Sessions.Run(ctx, func(ctx context.Context, q postgres.Querier) error {
		events := postgres.NewEventRepository(q)
		logs := postgres.NewEventLogRepository(q)

		ev, err := events.GetByID(ctx, eventID)
		if err != nil {
			return err
		}
		if !ev.IsJoinable() {
			return event.ErrNotJoinable
		}

		already, err := logs.HasUserJoined(ctx, eventID, cmdCtx.UserID)
		if err != nil {
			return err
		}
		if already {
			return errAlreadyJoined
		}

		entry, err := event.NewLogEntry(eventID, cmdCtx.UserID, nil)
		if err != nil {
			return err
		}
		if err := logs.Append(ctx, entry); err != nil {
			return err
		}
		if err := events.IncrementParticipants(ctx, eventID); err != nil {
			return err
		}

		joined = ev
		return nil
	})
	if err != nil {
		switch {
		case errors.Is(err, event.ErrEventNotFound):
			return cmdCtx.Reply(ctx, fmt.Sprintf("❓ No event with ID %d.", eventID))
		case errors.Is(err, event.ErrNotJoinable):
			return cmdCtx.Reply(ctx, "⚠️ That event is not open for check-ins.")
		case errors.Is(err, errAlreadyJoined):
			return cmdCtx.Reply(ctx, "ℹ️ You are already checked in to that event.")
		default:
			return err
		}
	}

	return cmdCtx.Reply(ctx, fmt.Sprintf("✅ Checked in to **%s**! You are participant #%d.",
		joined.Name, joined.Participants+1))
}

var errAlreadyJoined = errors.New("user already joined this event")

func (c *Cog) handleCreate(ctx context.Context, cmdCtx discord.CommandContext) error {
	params, err := ParseCreateArgs(cmdCtx.ArgText)
	if err != nil {
		return cmdCtx.Reply(ctx, fmt.Sprintf("⚠️ %v\nUsage: `createevent <name> | <start> | <end> | [description]` with times as `YYYY-MM-DD HH:MM` UTC.", err))
	}

	ev, err := event.New(params)
	if err != nil {
		switch {
		case errors.Is(err, event.ErrInvalidName):
			return cmdCtx.Reply(ctx, "⚠️ Event names are 1-200 characters.")
		case errors.Is(err, event.ErrInvalidTimeWindow):
			return cmdCtx.Reply(ctx, "⚠️ The end time must be after the start time.")
		default:
			return err
		}
	}

	if err := c.deps.Events.Create(ctx, ev); err != nil {
		return err
	}

	c.logger.Info("event created",
		"event_id", ev.ID,
		"name", ev.Name,
		"created_by", cmdCtx.UserID,
	)

	window := "manual start"
	if ev.StartTime != nil {
		window = ev.StartTime.Format(eventTimeLayout)
		if ev.EndTime != nil {
			window += " → " + ev.EndTime.Format(eventTimeLayout)
		}
	}
	return cmdCtx.Reply(ctx, fmt.Sprintf("📅 Event **%s** created with ID %d (%s UTC).",
		ev.Name, ev.ID, window))
}

// ParseCreateArgs splits the pipe-separated createevent argument string
// into event parameters. Times are read as UTC; "-" skips a field.
func ParseCreateArgs(argText string) (event.NewEventParams, error) {
	parts := strings.Split(argText, "|")
	if len(parts) < 1 || strings.TrimSpace(parts[0]) == "" {
		return event.NewEventParams{}, errors.New("missing event name")
	}

	params := event.NewEventParams{
		Name: strings.TrimSpace(parts[0]),
	}

	parseAt := func(idx int) (*time.Time, error) {
		if len(parts) <= idx {
			return nil, nil
		}
		raw := strings.TrimSpace(parts[idx])
		if raw == "" || raw == "-" {
			return nil, nil
		}
		t, err := time.ParseInLocation(eventTimeLayout, raw, time.UTC)
		if err != nil {
			return nil, fmt.Errorf("bad time %q, expected YYYY-MM-DD HH:MM", raw)
		}
		return &t, nil
	}

	var err error
	if params.StartTime, err = parseAt(1); err != nil {
		return event.NewEventParams{}, err
	}
	if params.EndTime, err = parseAt(2); err != nil {
		return event.NewEventParams{}, err
	}
	if len(parts) > 3 {
		params.Description = strings.TrimSpace(strings.Join(parts[3:], "|"))
	}
	return params, nil
}

func formatEventLine(e *event.Event) string {
	var b strings.Builder
	fmt.Fprintf(&b, "`#%d` **%s** — %d participant(s)", e.ID, e.Name, e.Participants)
	switch {
	case e.Status == event.StatusActive && e.EndTime != nil:
		fmt.Fprintf(&b, ", ends %s", timeutil.FormatRelative(*e.EndTime))
	case e.Status == event.StatusPending && e.StartTime != nil:
		fmt.Fprintf(&b, ", starts %s", timeutil.FormatRelative(*e.StartTime))
	}
	b.WriteString("\n")
	return b.String()
}
