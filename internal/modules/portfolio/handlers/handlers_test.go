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

	"github.com/aristath/riskcore/internal/modules/portfolio"
	testingpkg "github.com/aristath/riskcore/internal/testing"
)

func setupRouter(t *testing.T) *chi.Mux {
	db, cleanup := testingpkg.NewTestDB(t, "portfolio")
	t.Cleanup(cleanup)

	handler := NewHandler(portfolio.NewPositionRepository(db.Conn(), zerolog.Nop()), zerolog.Nop())
	router := chi.NewRouter()
	router.Route("/api", handler.RegisterRoutes)
	return router
}

func request(router http.Handler, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

const bookJSON = `{
	"name": "Main book",
	"as_of": "2024-03-28T00:00:00Z",
	"positions": [
		{"instrument_id": "AAA", "quantity": 100, "price": 60, "sector": "Tech", "region": "US", "currency": "USD", "asset_class": "equity"},
		{"instrument_id": "BBB", "quantity": 50, "price": 80, "sector": "Energy", "region": "EU", "currency": "EUR", "asset_class": "equity"}
	]
}`

func TestPortfolioLifecycle(t *testing.T) {
	router := setupRouter(t)

	w := request(router, http.MethodPut, "/api/portfolios/book", bookJSON)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var created PortfolioResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	assert.Equal(t, "Main book", created.Name)
	assert.Equal(t, 10_000.0, created.TotalValue)
	assert.Len(t, created.Positions, 2)

	w = request(router, http.MethodGet, "/api/portfolios", "")
	require.Equal(t, http.StatusOK, w.Code)
	var list struct {
		Portfolios []string `json:"portfolios"`
		Count      int      `json:"count"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	assert.Equal(t, []string{"book"}, list.Portfolios)

	w = request(router, http.MethodGet, "/api/portfolios/book", "")
	require.Equal(t, http.StatusOK, w.Code)
	var fetched PortfolioResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &fetched))
	assert.Equal(t, "2024-03-28", fetched.AsOf.Format("2006-01-02"))
	assert.Equal(t, 6000.0, fetched.Positions[0].MarketValue)

	w = request(router, http.MethodGet, "/api/portfolios/book/concentration", "")
	require.Equal(t, http.StatusOK, w.Code)
	var conc portfolio.ConcentrationAnalysis
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &conc))
	assert.InDelta(t, 0.52, conc.HerfindahlIndex, 1e-9)

	w = request(router, http.MethodDelete, "/api/portfolios/book", "")
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = request(router, http.MethodGet, "/api/portfolios/book", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestPutPortfolio_Invalid(t *testing.T) {
	router := setupRouter(t)

	tests := []struct {
		name string
		body string
	}{
		{"malformed", `{"positions": [`},
		{"no positions", `{"name": "empty", "positions": []}`},
		{"duplicate instrument", `{"positions": [{"instrument_id": "A", "quantity": 1, "price": 1}, {"instrument_id": "A", "quantity": 2, "price": 1}]}`},
		{"negative price", `{"positions": [{"instrument_id": "A", "quantity": 1, "price": -1}]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := request(router, http.MethodPut, "/api/portfolios/bad", tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
		})
	}
}

func TestDeletePortfolio_NotFound(t *testing.T) {
	router := setupRouter(t)
	w := request(router, http.MethodDelete, "/api/portfolios/missing", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}
