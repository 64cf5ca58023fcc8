package handlers

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers the price history routes
func (h *UniverseHandlers) RegisterRoutes(r chi.Router) {
	r.Route("/universe", func(r chi.Router) {
		r.Get("/instruments", h.HandleGetInstruments)
		r.Post("/prices/import", h.HandleImportPrices)
		r.Get("/prices/{instrument}", h.HandleGetPrices)
	})
}
