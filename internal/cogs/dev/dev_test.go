package dev

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/questline-hub/questline-bot/internal/domain/cog"
	"github.com/questline-hub/questline-bot/internal/extension"
)

func TestNormalizeModule(t *testing.T) {
	tests := []struct {
		in   string
		want cog.Module
	}{
		{"greet", "cogs.greet"},
		{"cogs.greet", "cogs.greet"},
		{"  DEV  ", "cogs.dev"},
		{"Cogs.Users", "cogs.users"},
		{"", ""},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, NormalizeModule(tt.in), "input %q", tt.in)
	}
}

func TestLifecycleFailureMessage(t *testing.T) {
	module := cog.Module("cogs.greet")

	msg := lifecycleFailureMessage("load", module, extension.ErrExtensionNotFound)
	assert.Contains(t, msg, "cogs.greet")
	assert.Contains(t, msg, "No extension")

	msg = lifecycleFailureMessage("load", module, extension.ErrAlreadyLoaded)
	assert.Contains(t, msg, "already loaded")

	msg = lifecycleFailureMessage("unload", module, extension.ErrNotLoaded)
	assert.Contains(t, msg, "not loaded")

	msg = lifecycleFailureMessage("load", module, assert.AnError)
	assert.Contains(t, msg, "load")
	assert.Contains(t, msg, assert.AnError.Error())
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{" error ", slog.LevelError},
	}

	for _, tt := range tests {
		got, err := parseLevel(tt.in)
		require.NoError(t, err, "input %q", tt.in)
		assert.Equal(t, tt.want, got, "input %q", tt.in)
	}

	_, err := parseLevel("verbose")
	assert.Error(t, err)
}

func TestStateIcon(t *testing.T) {
	assert.Equal(t, "🟢", stateIcon(extension.StateLoaded))
	assert.Equal(t, "🔴", stateIcon(extension.StateFailed))
	assert.Equal(t, "⚪", stateIcon(extension.StateUnloaded))
	assert.Equal(t, "⚫", stateIcon(extension.StateRegistered))
}

func TestCommandsAreOwnerOnly(t *testing.T) {
	c := New(extension.Deps{}).(*Cog)
	for _, cmd := range c.Commands() {
		assert.True(t, cmd.OwnerOnly, "command %q must be owner-gated", cmd.Name)
	}
}
