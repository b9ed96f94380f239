// Package handlers provides HTTP handlers for the action audit trail.
package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/mr-valente/quacktuaries/internal/domain"
	"github.com/mr-valente/quacktuaries/internal/modules/history"
	"github.com/mr-valente/quacktuaries/internal/modules/session"
)

// Handler handles history HTTP requests.
type Handler struct {
	repo     *history.Repository
	registry *session.Registry
	log      zerolog.Logger
}

// NewHandler creates a new history handler.
func NewHandler(repo *history.Repository, registry *session.Registry, log zerolog.Logger) *Handler {
	return &Handler{
		repo:     repo,
		registry: registry,
		log:      log.With().Str("handler", "history").Logger(),
	}
}

// HandleGetHistory returns a session's action records in chronological
// order. The optional limit query parameter caps the result.
func (h *Handler) HandleGetHistory(w http.ResponseWriter, r *http.Request) {
	sessionID := h.resolveSessionID(r)

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			h.writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = parsed
	}

	records, err := h.repo.BySession(r.Context(), sessionID, limit)
	if err != nil {
		h.log.Error().Err(err).Str("session_id", sessionID).Msg("Failed to load history")
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if records == nil {
		records = []domain.ActionRecord{}
	}
	h.writeJSON(w, http.StatusOK, records)
}

// HandleExportCSV streams a session's audit trail as a CSV download.
func (h *Handler) HandleExportCSV(w http.ResponseWriter, r *http.Request) {
	sessionID := h.resolveSessionID(r)

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", "session-"+sessionID+".csv"))
	if err := h.repo.ExportCSV(r.Context(), w, sessionID); err != nil {
		// Headers may already be out; log rather than double-respond.
		h.log.Error().Err(err).Str("session_id", sessionID).Msg("CSV export failed")
	}
}

// HandleDeleteHistory purges a session's records, typically after the
// session itself was deleted.
func (h *Handler) HandleDeleteHistory(w http.ResponseWriter, r *http.Request) {
	sessionID := h.resolveSessionID(r)

	n, err := h.repo.DeleteBySession(r.Context(), sessionID)
	if err != nil {
		h.log.Error().Err(err).Str("session_id", sessionID).Msg("Failed to delete history")
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]interface{}{"deleted": n})
}

// resolveSessionID maps the {code} path segment to a session id via the
// registry; an unknown code is treated as a raw id so history of deleted
// sessions stays reachable.
func (h *Handler) resolveSessionID(r *http.Request) string {
	code := chi.URLParam(r, "code")
	if s, err := h.registry.GetByCode(code); err == nil {
		return s.ID()
	}
	if s, err := h.registry.Get(code); err == nil {
		return s.ID()
	}
	return code
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
