package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/riskcore/internal/modules/universe"
	testingpkg "github.com/aristath/riskcore/internal/testing"
)

func setupRouter(t *testing.T) *chi.Mux {
	db, cleanup := testingpkg.NewTestDB(t, "history")
	t.Cleanup(cleanup)

	handler := NewUniverseHandlers(universe.NewHistoryDB(db.Conn(), zerolog.Nop()), zerolog.Nop())
	router := chi.NewRouter()
	router.Route("/api", handler.RegisterRoutes)
	return router
}

const pricesCSV = `instrument_id,date,close
AAA,2024-01-02,100
AAA,2024-01-03,101
AAA,2024-01-04,99.5
BBB,2024-01-02,50
BBB,2024-01-03,51
`

func TestImportAndGetPrices(t *testing.T) {
	router := setupRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/api/universe/prices/import", strings.NewReader(pricesCSV))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var summary universe.ImportSummary
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &summary))
	assert.Equal(t, 5, summary.Rows)
	assert.Equal(t, 5, summary.Saved)
	assert.Equal(t, map[string]int{"AAA": 3, "BBB": 2}, summary.Instruments)

	req = httptest.NewRequest(http.MethodGet, "/api/universe/instruments", nil)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"count":2`)

	req = httptest.NewRequest(http.MethodGet, "/api/universe/prices/AAA?as_of=2024-01-03", nil)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		InstrumentID string                `json:"instrument_id"`
		Prices       []universe.DailyPrice `json:"prices"`
		Count        int                   `json:"count"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "AAA", resp.InstrumentID)
	require.Equal(t, 2, resp.Count)
	assert.Equal(t, 101.0, resp.Prices[1].Close)
}

func TestImportPrices_BadCSV(t *testing.T) {
	router := setupRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/api/universe/prices/import", strings.NewReader("instrument_id,close\nAAA,1\n"))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "date")
}

func TestGetPrices_Errors(t *testing.T) {
	router := setupRouter(t)

	tests := []struct {
		path   string
		status int
	}{
		{"/api/universe/prices/AAA?as_of=yesterday", http.StatusBadRequest},
		{"/api/universe/prices/AAA?limit=0", http.StatusBadRequest},
		{"/api/universe/prices/UNKNOWN", http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)
			assert.Equal(t, tt.status, w.Code)
		})
	}
}
