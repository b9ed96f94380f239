// Package handlers provides the HTTP surface for game sessions: lifecycle,
// joining, player actions, leaderboards, and the websocket live feed.
package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/mr-valente/quacktuaries/internal/config"
	"github.com/mr-valente/quacktuaries/internal/domain"
	"github.com/mr-valente/quacktuaries/internal/modules/session"
)

// Handler handles session HTTP requests.
type Handler struct {
	registry *session.Registry
	live     *LiveHub
	log      zerolog.Logger
}

// NewHandler creates a new session handler.
func NewHandler(registry *session.Registry, live *LiveHub, log zerolog.Logger) *Handler {
	return &Handler{
		registry: registry,
		live:     live,
		log:      log.With().Str("handler", "session").Logger(),
	}
}

// createSessionRequest carries the difficulty preset plus optional overrides
// of the default rule set. Absent fields keep their defaults.
type createSessionRequest struct {
	Difficulty               string                  `json:"difficulty"`
	BatchCount               *int                    `json:"batch_count"`
	MaxTurns                 *int                    `json:"max_turns"`
	InspectionBudget         *int                    `json:"inspection_budget"`
	MinSample                *int                    `json:"min_sample"`
	MaxSample                *int                    `json:"max_sample"`
	PremiumScale             *int                    `json:"premium_scale"`
	TimeLimitSeconds         *int                    `json:"time_limit_seconds"`
	RequireInspectBeforeSell *bool                   `json:"require_inspect_before_sell"`
	ConfidenceTiers          []domain.ConfidenceTier `json:"confidence_tiers"`
	PurchasePrices           *domain.PurchasePrices  `json:"purchase_prices"`
}

func (req createSessionRequest) apply(cfg domain.SessionConfig) domain.SessionConfig {
	if req.BatchCount != nil {
		cfg.BatchCount = *req.BatchCount
	}
	if req.MaxTurns != nil {
		cfg.MaxTurns = *req.MaxTurns
	}
	if req.InspectionBudget != nil {
		cfg.InspectionBudget = *req.InspectionBudget
	}
	if req.MinSample != nil {
		cfg.MinSample = *req.MinSample
	}
	if req.MaxSample != nil {
		cfg.MaxSample = *req.MaxSample
	}
	if req.PremiumScale != nil {
		cfg.PremiumScale = *req.PremiumScale
	}
	if req.TimeLimitSeconds != nil {
		cfg.TimeLimitSeconds = *req.TimeLimitSeconds
	}
	if req.RequireInspectBeforeSell != nil {
		cfg.RequireInspectBeforeSell = *req.RequireInspectBeforeSell
	}
	if len(req.ConfidenceTiers) > 0 {
		cfg.ConfidenceTiers = req.ConfidenceTiers
	}
	if req.PurchasePrices != nil {
		cfg.PurchasePrices = *req.PurchasePrices
	}
	return cfg
}

// applyPreset lays a difficulty's sizing over the defaults. Zero-valued
// preset fields leave the defaults alone.
func applyPreset(cfg domain.SessionConfig, p config.DifficultyPreset) domain.SessionConfig {
	if p.BatchCount > 0 {
		cfg.BatchCount = p.BatchCount
	}
	if p.MaxTurns > 0 {
		cfg.MaxTurns = p.MaxTurns
	}
	if p.InspectionBudget > 0 {
		cfg.InspectionBudget = p.InspectionBudget
	}
	if p.MinSample > 0 {
		cfg.MinSample = p.MinSample
	}
	if p.MaxSample > 0 {
		cfg.MaxSample = p.MaxSample
	}
	return cfg
}

// HandleCreateSession creates a new lobby-phase session. The rule set is
// resolved defaults -> difficulty preset -> explicit request overrides.
func (h *Handler) HandleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			h.writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}

	cfg := h.registry.Defaults()
	if preset, ok := h.registry.Preset(req.Difficulty); ok {
		cfg = applyPreset(cfg, preset)
	}

	s, err := h.registry.Create(req.apply(cfg), req.Difficulty, time.Now().UTC())
	if err != nil {
		h.writeGameError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, s.Summary())
}

// HandleListDifficulties returns the available difficulty presets. The
// hidden rate bands are excluded from serialization.
func (h *Handler) HandleListDifficulties(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"default": h.registry.DefaultDifficulty(),
		"presets": h.registry.Presets(),
	})
}

// HandleListSessions returns summaries of all registered sessions.
func (h *Handler) HandleListSessions(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.registry.List())
}

// HandleGetSession returns one session's summary plus its leaderboard and
// remaining clock.
func (h *Handler) HandleGetSession(w http.ResponseWriter, r *http.Request) {
	s, err := h.resolveSession(r)
	if err != nil {
		h.writeGameError(w, err)
		return
	}

	resp := map[string]interface{}{
		"session":     s.Summary(),
		"leaderboard": s.Leaderboard(),
	}
	if remaining, ok := s.RemainingSeconds(time.Now().UTC()); ok {
		resp["remaining_seconds"] = remaining
	}
	h.writeJSON(w, http.StatusOK, resp)
}

// HandleDeleteSession removes a session from the registry.
func (h *Handler) HandleDeleteSession(w http.ResponseWriter, r *http.Request) {
	s, err := h.resolveSession(r)
	if err != nil {
		h.writeGameError(w, err)
		return
	}
	if err := h.registry.Delete(s.ID()); err != nil {
		h.writeGameError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// HandleStartSession transitions lobby -> running.
func (h *Handler) HandleStartSession(w http.ResponseWriter, r *http.Request) {
	s, err := h.resolveSession(r)
	if err != nil {
		h.writeGameError(w, err)
		return
	}
	if err := s.Start(time.Now().UTC()); err != nil {
		h.writeGameError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, s.Summary())
}

// HandleEndSession transitions running -> ended.
func (h *Handler) HandleEndSession(w http.ResponseWriter, r *http.Request) {
	s, err := h.resolveSession(r)
	if err != nil {
		h.writeGameError(w, err)
		return
	}
	if err := s.End(time.Now().UTC()); err != nil {
		h.writeGameError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, s.Summary())
}

type joinRequest struct {
	Name        string `json:"name"`
	RejoinToken string `json:"rejoin_token"`
}

// HandleJoinSession adds a player to the lobby, or re-admits a token holder.
func (h *Handler) HandleJoinSession(w http.ResponseWriter, r *http.Request) {
	s, err := h.resolveSession(r)
	if err != nil {
		h.writeGameError(w, err)
		return
	}

	var req joinRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	info, err := s.Join(req.Name, req.RejoinToken, time.Now().UTC())
	if err != nil {
		h.writeGameError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, info)
}

// HandleGetTimer returns the remaining seconds on the session clock. Reading
// the timer also sweeps expiry, so a stale running session ends here even
// between scheduler passes.
func (h *Handler) HandleGetTimer(w http.ResponseWriter, r *http.Request) {
	s, err := h.resolveSession(r)
	if err != nil {
		h.writeGameError(w, err)
		return
	}

	now := time.Now().UTC()
	s.SweepExpired(now)

	resp := map[string]interface{}{"phase": s.Phase(), "time_limited": false}
	if remaining, ok := s.RemainingSeconds(now); ok {
		resp["time_limited"] = true
		resp["remaining_seconds"] = remaining
	}
	h.writeJSON(w, http.StatusOK, resp)
}

// HandleGetLeaderboard returns the ranked players.
func (h *Handler) HandleGetLeaderboard(w http.ResponseWriter, r *http.Request) {
	s, err := h.resolveSession(r)
	if err != nil {
		h.writeGameError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, s.Leaderboard())
}

// HandleReveal returns the hidden true rates of an ended session.
func (h *Handler) HandleReveal(w http.ResponseWriter, r *http.Request) {
	s, err := h.resolveSession(r)
	if err != nil {
		h.writeGameError(w, err)
		return
	}
	rates, err := s.RevealTrueRates()
	if err != nil {
		h.writeGameError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]interface{}{"true_rates": rates})
}

// HandleGetPlayer returns one player's resources plus their batch board.
func (h *Handler) HandleGetPlayer(w http.ResponseWriter, r *http.Request) {
	s, err := h.resolveSession(r)
	if err != nil {
		h.writeGameError(w, err)
		return
	}
	playerID := chi.URLParam(r, "playerID")

	snap, err := s.PlayerState(playerID)
	if err != nil {
		h.writeGameError(w, err)
		return
	}
	board, err := s.BatchBoard(playerID)
	if err != nil {
		h.writeGameError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"player":  snap,
		"batches": board,
	})
}

type inspectRequest struct {
	BatchIndex int `json:"batch_index"`
	SampleSize int `json:"sample_size"`
}

// HandleInspect runs one inspect action.
func (h *Handler) HandleInspect(w http.ResponseWriter, r *http.Request) {
	s, err := h.resolveSession(r)
	if err != nil {
		h.writeGameError(w, err)
		return
	}

	var req inspectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	res, err := s.Inspect(chi.URLParam(r, "playerID"), req.BatchIndex, req.SampleSize, time.Now().UTC())
	if err != nil {
		h.writeGameError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, res)
}

type sellRequest struct {
	BatchIndex int     `json:"batch_index"`
	Confidence float64 `json:"confidence"`
	Lower      float64 `json:"lower"`
	Upper      float64 `json:"upper"`
}

// HandleSell runs one sell action.
func (h *Handler) HandleSell(w http.ResponseWriter, r *http.Request) {
	s, err := h.resolveSession(r)
	if err != nil {
		h.writeGameError(w, err)
		return
	}

	var req sellRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	res, err := s.Sell(chi.URLParam(r, "playerID"), req.BatchIndex, req.Confidence, req.Lower, req.Upper, time.Now().UTC())
	if err != nil {
		h.writeGameError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, res)
}

type purchaseRequest struct {
	Kind domain.PurchaseKind `json:"kind"`
}

// HandlePurchase runs one purchase action.
func (h *Handler) HandlePurchase(w http.ResponseWriter, r *http.Request) {
	s, err := h.resolveSession(r)
	if err != nil {
		h.writeGameError(w, err)
		return
	}

	var req purchaseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	res, err := s.Purchase(chi.URLParam(r, "playerID"), req.Kind, time.Now().UTC())
	if err != nil {
		h.writeGameError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, res)
}

// resolveSession looks up the {code} path segment as a join code first, then
// as a raw session id.
func (h *Handler) resolveSession(r *http.Request) (*session.Session, error) {
	code := chi.URLParam(r, "code")
	if s, err := h.registry.GetByCode(code); err == nil {
		return s, nil
	}
	return h.registry.Get(code)
}

// writeGameError maps the domain error taxonomy onto HTTP status codes.
func (h *Handler) writeGameError(w http.ResponseWriter, err error) {
	switch {
	case domain.IsValidation(err):
		h.writeError(w, http.StatusBadRequest, err.Error())
	case domain.IsNotFound(err):
		h.writeError(w, http.StatusNotFound, err.Error())
	case domain.IsConflict(err), domain.IsInsufficient(err):
		h.writeError(w, http.StatusConflict, err.Error())
	default:
		h.log.Error().Err(err).Msg("Unexpected handler error")
		h.writeError(w, http.StatusInternalServerError, err.Error())
	}
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
