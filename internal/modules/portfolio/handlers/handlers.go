// Package handlers provides HTTP handlers for portfolio management.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/aristath/riskcore/internal/domain"
	"github.com/aristath/riskcore/internal/modules/portfolio"
)

// PortfolioStore is the part of portfolio.PositionRepository the handlers use
type PortfolioStore interface {
	GetPortfolio(ctx context.Context, portfolioID string) (*domain.Portfolio, error)
	ListPortfolioIDs(ctx context.Context) ([]string, error)
	Save(ctx context.Context, pf *domain.Portfolio) error
	Delete(ctx context.Context, portfolioID string) error
}

// Handler handles portfolio HTTP requests
type Handler struct {
	store PortfolioStore
	log   zerolog.Logger
}

// NewHandler creates a new portfolio handler
func NewHandler(store PortfolioStore, log zerolog.Logger) *Handler {
	return &Handler{
		store: store,
		log:   log.With().Str("handler", "portfolio").Logger(),
	}
}

// PositionInput is one position of a PUT request
type PositionInput struct {
	InstrumentID string  `json:"instrument_id"`
	Quantity     float64 `json:"quantity"`
	Price        float64 `json:"price"`
	Sector       string  `json:"sector"`
	Region       string  `json:"region"`
	Currency     string  `json:"currency"`
	AssetClass   string  `json:"asset_class"`
}

// PortfolioInput is the body of PUT /api/portfolios/{id}
type PortfolioInput struct {
	Name      string          `json:"name"`
	AsOf      *time.Time      `json:"as_of"`
	Positions []PositionInput `json:"positions"`
}

// PortfolioResponse is a stored portfolio snapshot
type PortfolioResponse struct {
	ID         string            `json:"id"`
	Name       string            `json:"name"`
	AsOf       time.Time         `json:"as_of"`
	TotalValue float64           `json:"total_value"`
	Positions  []domain.Position `json:"positions"`
}

// HandleListPortfolios handles GET /api/portfolios
func (h *Handler) HandleListPortfolios(w http.ResponseWriter, r *http.Request) {
	ids, err := h.store.ListPortfolioIDs(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"portfolios": ids,
		"count":      len(ids),
	})
}

// HandleGetPortfolio handles GET /api/portfolios/{id}
func (h *Handler) HandleGetPortfolio(w http.ResponseWriter, r *http.Request) {
	pf, err := h.store.GetPortfolio(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, toResponse(pf))
}

// HandlePutPortfolio handles PUT /api/portfolios/{id} and replaces the snapshot
func (h *Handler) HandlePutPortfolio(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var input PortfolioInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		h.writeError(w, domain.NewInvalidConfigurationError("body", err.Error()))
		return
	}

	pf, err := input.build(id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if err := h.store.Save(r.Context(), pf); err != nil {
		h.writeError(w, err)
		return
	}

	h.log.Info().
		Str("portfolio_id", id).
		Int("positions", pf.Len()).
		Msg("Portfolio snapshot replaced")
	h.writeJSON(w, http.StatusOK, toResponse(pf))
}

// HandleDeletePortfolio handles DELETE /api/portfolios/{id}
func (h *Handler) HandleDeletePortfolio(w http.ResponseWriter, r *http.Request) {
	if err := h.store.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleGetConcentration handles GET /api/portfolios/{id}/concentration
func (h *Handler) HandleGetConcentration(w http.ResponseWriter, r *http.Request) {
	pf, err := h.store.GetPortfolio(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, portfolio.Analyze(pf))
}

func (in PortfolioInput) build(id string) (*domain.Portfolio, error) {
	positions := make([]domain.Position, 0, len(in.Positions))
	for _, p := range in.Positions {
		pos, err := domain.NewPosition(p.InstrumentID, p.Quantity, p.Price, domain.PositionTags{
			Sector:     p.Sector,
			Region:     p.Region,
			Currency:   domain.Currency(p.Currency),
			AssetClass: p.AssetClass,
		})
		if err != nil {
			return nil, err
		}
		positions = append(positions, pos)
	}

	asOf := time.Now().UTC()
	if in.AsOf != nil {
		asOf = in.AsOf.UTC()
	}
	name := in.Name
	if name == "" {
		name = id
	}
	return domain.NewPortfolio(id, name, asOf, positions)
}

func toResponse(pf *domain.Portfolio) PortfolioResponse {
	return PortfolioResponse{
		ID:         pf.ID,
		Name:       pf.Name,
		AsOf:       pf.AsOf,
		TotalValue: pf.TotalValue(),
		Positions:  pf.Positions(),
	}
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrPortfolioNotFound):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrInvalidConfiguration):
		status = http.StatusBadRequest
	default:
		h.log.Error().Err(err).Msg("Portfolio request failed")
	}
	h.writeJSON(w, status, map[string]string{"error": err.Error()})
}

// writeJSON writes a JSON response
func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}
