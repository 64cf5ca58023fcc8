// Package handlers provides HTTP handlers for the price history.
package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/aristath/riskcore/internal/modules/universe"
)

// maxImportBytes bounds the size of an uploaded CSV
const maxImportBytes = 32 << 20

// PriceStore is the part of universe.HistoryDB the handlers use
type PriceStore interface {
	ImportCSV(ctx context.Context, r io.Reader) (universe.ImportSummary, error)
	GetDailyPrices(ctx context.Context, instrumentID string, asOf time.Time, limit int) ([]universe.DailyPrice, error)
	InstrumentIDs(ctx context.Context) ([]string, error)
}

// UniverseHandlers handles price history HTTP requests
type UniverseHandlers struct {
	prices PriceStore
	log    zerolog.Logger
}

// NewUniverseHandlers creates a new universe handler
func NewUniverseHandlers(prices PriceStore, log zerolog.Logger) *UniverseHandlers {
	return &UniverseHandlers{
		prices: prices,
		log:    log.With().Str("handler", "universe").Logger(),
	}
}

// HandleImportPrices handles POST /api/universe/prices/import with a CSV body
func (h *UniverseHandlers) HandleImportPrices(w http.ResponseWriter, r *http.Request) {
	body := http.MaxBytesReader(w, r.Body, maxImportBytes)
	summary, err := h.prices.ImportCSV(r.Context(), body)
	if err != nil {
		h.log.Warn().Err(err).Msg("Price import rejected")
		h.writeJSON(w, http.StatusBadRequest, map[string]interface{}{
			"error":   err.Error(),
			"summary": summary,
		})
		return
	}

	h.log.Info().
		Int("rows", summary.Rows).
		Int("saved", summary.Saved).
		Int("instruments", len(summary.Instruments)).
		Msg("Prices imported")
	h.writeJSON(w, http.StatusOK, summary)
}

// HandleGetInstruments handles GET /api/universe/instruments
func (h *UniverseHandlers) HandleGetInstruments(w http.ResponseWriter, r *http.Request) {
	ids, err := h.prices.InstrumentIDs(r.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list instruments")
		h.writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"instruments": ids,
		"count":       len(ids),
	})
}

// HandleGetPrices handles GET /api/universe/prices/{instrument}. Optional
// parameters: as_of (YYYY-MM-DD, default today) and limit (default all).
func (h *UniverseHandlers) HandleGetPrices(w http.ResponseWriter, r *http.Request) {
	instrument := chi.URLParam(r, "instrument")

	asOf := time.Now().UTC()
	if raw := r.URL.Query().Get("as_of"); raw != "" {
		t, err := time.Parse("2006-01-02", raw)
		if err != nil {
			h.writeJSON(w, http.StatusBadRequest, map[string]string{"error": fmt.Sprintf("invalid as_of %q", raw)})
			return
		}
		asOf = t
	}
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			h.writeJSON(w, http.StatusBadRequest, map[string]string{"error": fmt.Sprintf("invalid limit %q", raw)})
			return
		}
		limit = n
	}

	prices, err := h.prices.GetDailyPrices(r.Context(), instrument, asOf, limit)
	if err != nil {
		h.log.Error().Err(err).Str("instrument", instrument).Msg("Failed to load prices")
		h.writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	if len(prices) == 0 {
		h.writeJSON(w, http.StatusNotFound, map[string]string{"error": fmt.Sprintf("no prices for %s", instrument)})
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"instrument_id": instrument,
		"prices":        prices,
		"count":         len(prices),
	})
}

// writeJSON writes a JSON response
func (h *UniverseHandlers) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}
