package http

import (
	"context"
	"net/http"
	"time"

	"github.com/questline-hub/questline-bot/internal/extension"
	"github.com/questline-hub/questline-bot/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// HEALTH ENDPOINTS
// ══════════════════════════════════════════════════════════════════════════════

// healthReport is the /health response body.
type healthReport struct {
	Status    string          `json:"status"` // "healthy" or "degraded"
	Version   string          `json:"version,omitempty"`
	Uptime    string          `json:"uptime"`
	Database  *databaseHealth `json:"database,omitempty"`
	Bot       *botSummary     `json:"bot,omitempty"`
	CheckedAt time.Time       `json:"checked_at"`
}

type databaseHealth struct {
	Healthy   bool   `json:"healthy"`
	Error     string `json:"error,omitempty"`
	RoundTrip string `json:"round_trip"`
	Breaker   string `json:"breaker,omitempty"`

	PoolSize  int   `json:"pool_size"`
	PoolInUse int   `json:"pool_in_use"`
	PoolIdle  int   `json:"pool_idle"`
	PoolMax   int   `json:"pool_max"`
	Acquires  int64 `json:"acquires"`
	Discards  int64 `json:"discards"`
}

type botSummary struct {
	Messages         int64 `json:"messages_seen"`
	Commands         int64 `json:"commands_executed"`
	Errors           int64 `json:"command_errors"`
	ExtensionsLoaded int   `json:"extensions_loaded"`
	CommandsServed   int   `json:"command_names_served"`
}

// handleRoot serves a tiny index for humans poking at the port.
func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		writeJSONError(w, http.StatusNotFound, "not_found", "Unknown endpoint")
		return
	}
	s.writeJSON(w, r, http.StatusOK, map[string]interface{}{
		"service": "questline-bot",
		"version": s.deps.Version,
		"endpoints": []string{
			"/health", "/health/live", "/health/ready",
			"/api/v1/stats", "/api/v1/extensions",
		},
	})
}

// handleHealth reports the full health picture: database, pool, and
// dispatch counters. Degraded still returns a body, with 503.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	report := healthReport{
		Status:    "healthy",
		Version:   s.deps.Version,
		Uptime:    timeutil.FormatUptime(s.Uptime()),
		CheckedAt: time.Now().UTC(),
	}

	if s.deps.Health != nil {
		ctx, cancel := context.WithTimeout(r.Context(), s.config.HealthTimeout)
		defer cancel()

		health, err := s.deps.Health.Health(ctx)
		switch {
		case err != nil:
			report.Status = "degraded"
			report.Database = &databaseHealth{Healthy: false, Error: err.Error()}
		default:
			report.Database = &databaseHealth{
				Healthy:   health.Healthy,
				Error:     health.Error,
				RoundTrip: health.RoundTrip.String(),
				Breaker:   health.Breaker,
				PoolSize:  health.Stats.Size,
				PoolInUse: health.Stats.InUse,
				PoolIdle:  health.Stats.Idle,
				PoolMax:   health.Stats.MaxConns,
				Acquires:  health.Stats.Acquires,
				Discards:  health.Stats.Discards,
			}
			if !health.Healthy {
				report.Status = "degraded"
			}
		}
	}

	if s.deps.Stats != nil {
		snap := s.deps.Stats.Snapshot()
		summary := &botSummary{
			Messages: snap.Messages,
			Commands: snap.Commands,
			Errors:   snap.Errors,
		}
		if s.deps.Extensions != nil {
			summary.ExtensionsLoaded = countLoaded(s.deps.Extensions.Statuses())
			summary.CommandsServed = s.deps.Extensions.HandlerCount()
		}
		report.Bot = summary
	}

	status := http.StatusOK
	if report.Status != "healthy" {
		status = http.StatusServiceUnavailable
	}
	s.writeJSON(w, r, status, report)
}

// handleLive answers liveness probes. If this handler runs, the
// process is alive; nothing else is checked.
func (s *Server) handleLive(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, r, http.StatusOK, map[string]bool{"alive": true})
}

// handleReady answers readiness probes with a real database round-trip.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.deps.Health == nil {
		s.writeJSON(w, r, http.StatusOK, map[string]bool{"ready": true})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.config.HealthTimeout)
	defer cancel()

	health, err := s.deps.Health.Health(ctx)
	if err != nil || !health.Healthy {
		detail := "database probe failed"
		if err != nil {
			detail = err.Error()
		} else if health.Error != "" {
			detail = health.Error
		}
		writeJSONError(w, http.StatusServiceUnavailable, "not_ready", detail)
		return
	}

	s.writeJSON(w, r, http.StatusOK, map[string]interface{}{
		"ready":      true,
		"round_trip": health.RoundTrip.String(),
	})
}

// ══════════════════════════════════════════════════════════════════════════════
// STATS API
// ══════════════════════════════════════════════════════════════════════════════

// statsReport is the /api/v1/stats response body.
type statsReport struct {
	StartedAt      time.Time        `json:"started_at"`
	Uptime         string           `json:"uptime"`
	Messages       int64            `json:"messages_seen"`
	Commands       int64            `json:"commands_executed"`
	Errors         int64            `json:"command_errors"`
	PerCommand     map[string]int64 `json:"per_command"`
	CommandsServed int              `json:"command_names_served,omitempty"`
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	if s.deps.Stats == nil {
		writeJSONError(w, http.StatusServiceUnavailable, "stats_unavailable", "Stats are not wired on this deployment")
		return
	}

	snap := s.deps.Stats.Snapshot()
	report := statsReport{
		StartedAt:  snap.StartedAt,
		Uptime:     timeutil.FormatUptime(snap.Uptime),
		Messages:   snap.Messages,
		Commands:   snap.Commands,
		Errors:     snap.Errors,
		PerCommand: snap.PerCommand,
	}
	if s.deps.Extensions != nil {
		report.CommandsServed = s.deps.Extensions.HandlerCount()
	}

	s.writeJSON(w, r, http.StatusOK, report)
}

// extensionReport is one row of the /api/v1/extensions response.
type extensionReport struct {
	Module   string     `json:"module"`
	State    string     `json:"state"`
	Version  string     `json:"version,omitempty"`
	Commands int        `json:"commands"`
	LoadedAt *time.Time `json:"loaded_at,omitempty"`
	Error    string     `json:"error,omitempty"`
}

func (s *Server) handleExtensions(w http.ResponseWriter, r *http.Request) {
	if s.deps.Extensions == nil {
		writeJSONError(w, http.StatusServiceUnavailable, "extensions_unavailable", "Extension manager is not wired on this deployment")
		return
	}

	statuses := s.deps.Extensions.Statuses()
	reports := make([]extensionReport, 0, len(statuses))
	for _, st := range statuses {
		reports = append(reports, extensionReport{
			Module:   string(st.Module),
			State:    st.State.String(),
			Version:  st.Version,
			Commands: st.Commands,
			LoadedAt: st.LoadedAt,
			Error:    st.Error,
		})
	}

	s.writeJSON(w, r, http.StatusOK, map[string]interface{}{
		"extensions": reports,
		"loaded":     countLoaded(statuses),
	})
}

func countLoaded(statuses []extension.Status) int {
	n := 0
	for _, st := range statuses {
		if st.State == extension.StateLoaded {
			n++
		}
	}
	return n
}
