package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/questline-hub/questline-bot/internal/extension"
	"github.com/questline-hub/questline-bot/internal/infrastructure/persistence/postgres"
	"github.com/questline-hub/questline-bot/internal/interface/discord/middleware"
)

// ─────────────────────────────────────────────────────────────────────────────
// Fakes
// ─────────────────────────────────────────────────────────────────────────────

type fakeHealth struct {
	status *postgres.HealthStatus
	err    error
}

func (f *fakeHealth) Health(ctx context.Context) (*postgres.HealthStatus, error) {
	return f.status, f.err
}

type fakeExtensions struct {
	statuses []extension.Status
	handlers int
}

func (f *fakeExtensions) Statuses() []extension.Status { return f.statuses }
func (f *fakeExtensions) HandlerCount() int            { return f.handlers }

func newTestServer(deps Dependencies) *Server {
	cfg := DefaultConfig()
	cfg.RateLimitPerSecond = 0 // tests control their own traffic
	return NewServer(cfg, deps)
}

func do(t *testing.T, s *Server, method, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	rec := httptest.NewRecorder()
	s.httpServer.Handler.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) JSONResponse {
	t.Helper()
	var resp JSONResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

// ─────────────────────────────────────────────────────────────────────────────
// Health endpoints
// ─────────────────────────────────────────────────────────────────────────────

func TestHandleLive_AlwaysOK(t *testing.T) {
	s := newTestServer(Dependencies{
		Health: &fakeHealth{err: errors.New("database is on fire")},
	})

	rec := do(t, s, http.MethodGet, "/health/live")

	assert.Equal(t, http.StatusOK, rec.Code)
	resp := decode(t, rec)
	assert.True(t, resp.Success)
}

func TestHandleReady_Healthy(t *testing.T) {
	s := newTestServer(Dependencies{
		Health: &fakeHealth{status: &postgres.HealthStatus{
			Healthy:   true,
			RoundTrip: 2 * time.Millisecond,
		}},
	})

	rec := do(t, s, http.MethodGet, "/health/ready")

	assert.Equal(t, http.StatusOK, rec.Code)
	resp := decode(t, rec)
	assert.True(t, resp.Success)
}

func TestHandleReady_UnhealthyDatabase(t *testing.T) {
	s := newTestServer(Dependencies{
		Health: &fakeHealth{status: &postgres.HealthStatus{
			Healthy: false,
			Error:   "connection refused",
		}},
	})

	rec := do(t, s, http.MethodGet, "/health/ready")

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	resp := decode(t, rec)
	assert.False(t, resp.Success)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "not_ready", resp.Error.Code)
	assert.Contains(t, resp.Error.Message, "connection refused")
}

func TestHandleReady_ProbeError(t *testing.T) {
	s := newTestServer(Dependencies{
		Health: &fakeHealth{err: errors.New("circuit open")},
	})

	rec := do(t, s, http.MethodGet, "/health/ready")

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestHandleHealth_FullReport(t *testing.T) {
	stats := middleware.NewBotStats()
	stats.RecordMessage()
	stats.RecordCommand("hello", false)

	now := time.Now()
	s := newTestServer(Dependencies{
		Health: &fakeHealth{status: &postgres.HealthStatus{
			Healthy:   true,
			RoundTrip: time.Millisecond,
			Breaker:   "closed",
			Stats:     postgres.Stats{Size: 5, InUse: 1, Idle: 4, MaxConns: 20},
		}},
		Stats: stats,
		Extensions: &fakeExtensions{
			statuses: []extension.Status{
				{Module: "cogs.greet", State: extension.StateLoaded, LoadedAt: &now},
				{Module: "cogs.dev", State: extension.StateFailed, Error: "boom"},
			},
			handlers: 2,
		},
		Version: "1.2.3",
	})

	rec := do(t, s, http.MethodGet, "/health")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Data healthReport `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))

	assert.Equal(t, "healthy", resp.Data.Status)
	assert.Equal(t, "1.2.3", resp.Data.Version)
	require.NotNil(t, resp.Data.Database)
	assert.True(t, resp.Data.Database.Healthy)
	assert.Equal(t, 5, resp.Data.Database.PoolSize)
	assert.Equal(t, "closed", resp.Data.Database.Breaker)
	require.NotNil(t, resp.Data.Bot)
	assert.Equal(t, int64(1), resp.Data.Bot.Messages)
	assert.Equal(t, int64(1), resp.Data.Bot.Commands)
	assert.Equal(t, 1, resp.Data.Bot.ExtensionsLoaded)
}

func TestHandleHealth_DegradedReturns503(t *testing.T) {
	s := newTestServer(Dependencies{
		Health: &fakeHealth{status: &postgres.HealthStatus{Healthy: false, Error: "timeout"}},
	})

	rec := do(t, s, http.MethodGet, "/health")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var resp struct {
		Data healthReport `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "degraded", resp.Data.Status)
}

// ─────────────────────────────────────────────────────────────────────────────
// Stats API
// ─────────────────────────────────────────────────────────────────────────────

func TestHandleStats(t *testing.T) {
	stats := middleware.NewBotStats()
	stats.RecordCommand("profile", false)
	stats.RecordCommand("profile", false)
	stats.RecordCommand("daily", true)

	s := newTestServer(Dependencies{
		Stats:      stats,
		Extensions: &fakeExtensions{handlers: 12},
	})

	rec := do(t, s, http.MethodGet, "/api/v1/stats")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Data statsReport `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))

	assert.Equal(t, int64(3), resp.Data.Commands)
	assert.Equal(t, int64(1), resp.Data.Errors)
	assert.Equal(t, int64(2), resp.Data.PerCommand["profile"])
	assert.Equal(t, 12, resp.Data.CommandsServed)
}

func TestHandleStats_NotWired(t *testing.T) {
	s := newTestServer(Dependencies{})

	rec := do(t, s, http.MethodGet, "/api/v1/stats")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestHandleExtensions(t *testing.T) {
	s := newTestServer(Dependencies{
		Extensions: &fakeExtensions{
			statuses: []extension.Status{
				{Module: "cogs.users", State: extension.StateLoaded, Version: "1.1.0", Commands: 4},
			},
			handlers: 4,
		},
	})

	rec := do(t, s, http.MethodGet, "/api/v1/extensions")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "cogs.users")
	assert.Contains(t, rec.Body.String(), "loaded")
}

// ─────────────────────────────────────────────────────────────────────────────
// Middleware
// ─────────────────────────────────────────────────────────────────────────────

func TestRequestIDHeader(t *testing.T) {
	s := newTestServer(Dependencies{})

	rec := do(t, s, http.MethodGet, "/health/live")
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestRequestIDPreserved(t *testing.T) {
	s := newTestServer(Dependencies{})

	req := httptest.NewRequest(http.MethodGet, "/health/live", nil)
	req.Header.Set("X-Request-ID", "test-id-123")
	rec := httptest.NewRecorder()
	s.httpServer.Handler.ServeHTTP(rec, req)

	assert.Equal(t, "test-id-123", rec.Header().Get("X-Request-ID"))
}

func TestUnknownPathReturns404(t *testing.T) {
	s := newTestServer(Dependencies{})

	rec := do(t, s, http.MethodGet, "/nope")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRateLimit(t *testing.T) {
	cfg := DefaultConfig()
	cfg.RateLimitPerSecond = 1
	cfg.RateLimitBurst = 2
	s := NewServer(cfg, Dependencies{})

	limited := false
	for i := 0; i < 5; i++ {
		rec := do(t, s, http.MethodGet, "/health/live")
		if rec.Code == http.StatusTooManyRequests {
			limited = true
			break
		}
	}
	assert.True(t, limited, "expected the limiter to kick in within the burst")
}
