package handlers

import (
	"encoding/csv"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mr-valente/quacktuaries/internal/config"
	"github.com/mr-valente/quacktuaries/internal/database"
	"github.com/mr-valente/quacktuaries/internal/domain"
	"github.com/mr-valente/quacktuaries/internal/modules/history"
	"github.com/mr-valente/quacktuaries/internal/modules/session"
)

// playedSession runs a short game whose records land in a real sqlite store,
// then returns a router serving that store.
func playedSession(t *testing.T) (*chi.Mux, *session.Session) {
	t.Helper()

	db, err := database.New(database.Config{
		Path:    filepath.Join(t.TempDir(), "game.db"),
		Profile: database.ProfileLedger,
		Name:    "game",
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, db.Migrate())
	repo := history.NewRepository(db, zerolog.Nop())

	registry := session.NewRegistry(session.RegistryOptions{
		Defaults: domain.SessionConfig{
			BatchCount:       2,
			MaxTurns:         10,
			InspectionBudget: 200,
			MinSample:        5,
			MaxSample:        100,
			PremiumScale:     120,
			ConfidenceTiers:  []domain.ConfidenceTier{{Level: 0.90, Bonus: 1.2, Penalty: 200}},
			PurchasePrices:   domain.PurchasePrices{TurnCost: 150, BudgetCost: 100, BudgetAmount: 100},
		},
		Presets:           map[string]config.DifficultyPreset{"easy": {PRanges: [][2]float64{{0, 0}}}},
		DefaultDifficulty: "easy",
		Recorder:          repo,
		Log:               zerolog.Nop(),
	})

	now := time.Now().UTC()
	s, err := registry.Create(registry.Defaults(), "easy", now)
	require.NoError(t, err)
	alice, err := s.Join("alice", "", now)
	require.NoError(t, err)
	// Distinct timestamps keep the chronological ordering unambiguous.
	require.NoError(t, s.Start(now))
	_, err = s.Inspect(alice.PlayerID, 0, 20, now.Add(time.Second))
	require.NoError(t, err)
	_, err = s.Sell(alice.PlayerID, 0, 0.90, 0, 0.2, now.Add(2*time.Second))
	require.NoError(t, err)

	h := NewHandler(repo, registry, zerolog.Nop())
	router := chi.NewRouter()
	h.RegisterRoutes(router)
	return router, s
}

func TestGetHistoryByJoinCode(t *testing.T) {
	router, s := playedSession(t)

	req := httptest.NewRequest(http.MethodGet, "/history/"+s.JoinCode()+"/", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var records []domain.ActionRecord
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &records))
	// SYSTEM start + INSPECT + SELL.
	require.Len(t, records, 3)
	assert.Equal(t, domain.RecordSystem, records[0].Type)
	assert.Equal(t, domain.RecordInspect, records[1].Type)
	assert.Equal(t, domain.RecordSell, records[2].Type)
	assert.Equal(t, 92, records[2].DeltaScore)
}

func TestGetHistoryLimit(t *testing.T) {
	router, s := playedSession(t)

	req := httptest.NewRequest(http.MethodGet, "/history/"+s.ID()+"/?limit=1", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var records []domain.ActionRecord
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &records))
	assert.Len(t, records, 1)

	req = httptest.NewRequest(http.MethodGet, "/history/"+s.ID()+"/?limit=bogus", nil)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUnknownSessionReturnsEmptyList(t *testing.T) {
	router, _ := playedSession(t)

	req := httptest.NewRequest(http.MethodGet, "/history/NO5UCH/", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "[]\n", rec.Body.String())
}

func TestExportCSV(t *testing.T) {
	router, s := playedSession(t)

	req := httptest.NewRequest(http.MethodGet, "/history/"+s.JoinCode()+"/export", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/csv", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "attachment")

	rows, err := csv.NewReader(rec.Body).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 4) // header + 3 records
	assert.Equal(t, "type", rows[0][4])
}

func TestDeleteHistory(t *testing.T) {
	router, s := playedSession(t)

	req := httptest.NewRequest(http.MethodDelete, "/history/"+s.JoinCode()+"/", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, float64(3), body["deleted"])

	req = httptest.NewRequest(http.MethodGet, "/history/"+s.JoinCode()+"/", nil)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	var records []domain.ActionRecord
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &records))
	assert.Empty(t, records)
}
