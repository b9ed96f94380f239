// Package handlers provides system monitoring endpoints: service health,
// host resource usage, and registry statistics.
package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/mr-valente/quacktuaries/internal/database"
	"github.com/mr-valente/quacktuaries/internal/domain"
	"github.com/mr-valente/quacktuaries/internal/modules/session"
)

// Handler handles system HTTP requests.
type Handler struct {
	db          *database.DB
	registry    *session.Registry
	startupTime time.Time
	log         zerolog.Logger
}

// NewHandler creates a new system handler.
func NewHandler(db *database.DB, registry *session.Registry, startupTime time.Time, log zerolog.Logger) *Handler {
	return &Handler{
		db:          db,
		registry:    registry,
		startupTime: startupTime,
		log:         log.With().Str("handler", "system").Logger(),
	}
}

// HandleHealth reports service liveness: database integrity, host CPU and
// memory usage, uptime, and how many sessions sit in each phase.
func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	dbStatus := "ok"
	if err := h.db.HealthCheck(r.Context()); err != nil {
		h.log.Error().Err(err).Msg("Database health check failed")
		status = "degraded"
		dbStatus = err.Error()
	}

	cpuPct, memPct := h.systemStats()
	counts := h.registry.CountByPhase()

	code := http.StatusOK
	if status != "ok" {
		code = http.StatusServiceUnavailable
	}
	h.writeJSON(w, code, map[string]interface{}{
		"status":         status,
		"database":       dbStatus,
		"uptime_seconds": int(time.Since(h.startupTime).Seconds()),
		"cpu_percent":    cpuPct,
		"memory_percent": memPct,
		"sessions": map[string]int{
			"lobby":   counts[domain.PhaseLobby],
			"running": counts[domain.PhaseRunning],
			"ended":   counts[domain.PhaseEnded],
		},
	})
}

// systemStats samples host CPU and memory usage. The 100ms CPU window keeps
// the endpoint responsive for pollers.
func (h *Handler) systemStats() (float64, float64) {
	cpuPercent, err := cpu.Percent(100*time.Millisecond, false)
	if err != nil {
		h.log.Warn().Err(err).Msg("Failed to get CPU percentage")
		cpuPercent = []float64{0}
	}
	cpuAvg := 0.0
	if len(cpuPercent) > 0 {
		cpuAvg = cpuPercent[0]
	}

	memStat, err := mem.VirtualMemory()
	if err != nil {
		h.log.Warn().Err(err).Msg("Failed to get memory statistics")
		return cpuAvg, 0
	}
	return cpuAvg, memStat.UsedPercent
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}
