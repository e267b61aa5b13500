package discord

import (
	"context"
	"io"
	"log/slog"
	"sort"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

type fakeProvider struct {
	table map[string]Command
}

func newFakeProvider(commands ...Command) *fakeProvider {
	p := &fakeProvider{table: make(map[string]Command)}
	for _, c := range commands {
		p.table[strings.ToLower(c.Name)] = c
		for _, alias := range c.Aliases {
			p.table[strings.ToLower(alias)] = c
		}
	}
	return p
}

func (p *fakeProvider) Lookup(name string) (Command, bool) {
	c, ok := p.table[strings.ToLower(name)]
	return c, ok
}

func (p *fakeProvider) Commands() []Command {
	seen := make(map[string]bool)
	out := make([]Command, 0, len(p.table))
	for _, c := range p.table {
		if !seen[c.Name] {
			seen[c.Name] = true
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func noopHandler(ctx context.Context, cmdCtx CommandContext) error { return nil }

func newTestRouter(commands ...Command) *Router {
	return NewRouter(newFakeProvider(commands...), RouterConfig{
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
}

func TestRouterParsesCommand(t *testing.T) {
	r := newTestRouter(Command{Name: "profile", Handler: noopHandler})

	inv, ok := r.Parse("!profile 12345 full")
	assert.True(t, ok)
	assert.Equal(t, "profile", inv.Command.Name)
	assert.Equal(t, []string{"12345", "full"}, inv.Args)
	assert.Equal(t, "12345 full", inv.ArgText)
}

func TestRouterIgnoresPlainMessages(t *testing.T) {
	r := newTestRouter(Command{Name: "profile", Handler: noopHandler})

	_, ok := r.Parse("profile without prefix")
	assert.False(t, ok)

	_, ok = r.Parse("just chatting about !profile mid-sentence")
	assert.False(t, ok)
}

func TestRouterIgnoresBarePrefix(t *testing.T) {
	r := newTestRouter(Command{Name: "profile", Handler: noopHandler})

	_, ok := r.Parse("!")
	assert.False(t, ok)

	_, ok = r.Parse("!   ")
	assert.False(t, ok)
}

func TestRouterStaysQuietOnUnknownCommands(t *testing.T) {
	r := newTestRouter(Command{Name: "profile", Handler: noopHandler})

	_, ok := r.Parse("!fortune")
	assert.False(t, ok)
}

func TestRouterResolvesAliases(t *testing.T) {
	r := newTestRouter(Command{Name: "profile", Aliases: []string{"me", "whoami"}, Handler: noopHandler})

	inv, ok := r.Parse("!me")
	assert.True(t, ok)
	assert.Equal(t, "profile", inv.Command.Name)
}

func TestRouterIsCaseInsensitiveOnNamesOnly(t *testing.T) {
	r := newTestRouter(Command{Name: "say", Handler: noopHandler})

	inv, ok := r.Parse("!SAY Hello World")
	assert.True(t, ok)
	assert.Equal(t, "say", inv.Command.Name)
	// Argument case survives parsing untouched.
	assert.Equal(t, []string{"Hello", "World"}, inv.Args)
}

func TestRouterPreservesInnerSpacingInArgText(t *testing.T) {
	r := newTestRouter(Command{Name: "say", Handler: noopHandler})

	inv, ok := r.Parse("!say Hello   World")
	assert.True(t, ok)
	assert.Equal(t, "Hello   World", inv.ArgText)
	assert.Equal(t, []string{"Hello", "World"}, inv.Args)
}

func TestRouterParsesArgumentlessCommand(t *testing.T) {
	r := newTestRouter(Command{Name: "status", Handler: noopHandler})

	inv, ok := r.Parse("!status")
	assert.True(t, ok)
	assert.Empty(t, inv.Args)
	assert.Equal(t, "", inv.ArgText)
}

func TestRouterCustomPrefix(t *testing.T) {
	r := NewRouter(newFakeProvider(Command{Name: "ping", Handler: noopHandler}), RouterConfig{
		Prefix: "?",
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	})

	assert.Equal(t, "?", r.Prefix())

	_, ok := r.Parse("!ping")
	assert.False(t, ok)

	inv, ok := r.Parse("?ping")
	assert.True(t, ok)
	assert.Equal(t, "ping", inv.Command.Name)
}

func TestRouterDefaultsPrefix(t *testing.T) {
	r := newTestRouter()
	assert.Equal(t, "!", r.Prefix())
}

func TestRouterListsProviderCommands(t *testing.T) {
	r := newTestRouter(
		Command{Name: "profile", Aliases: []string{"me"}, Handler: noopHandler},
		Command{Name: "coins", Handler: noopHandler},
	)

	commands := r.Commands()
	assert.Len(t, commands, 2)
	assert.Equal(t, "coins", commands[0].Name)
	assert.Equal(t, "profile", commands[1].Name)
}
