package handlers

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers all risk routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/risk", func(r chi.Router) {
		r.Get("/scenarios", h.HandleGetScenarios)

		r.Route("/portfolios/{id}", func(r chi.Router) {
			r.Get("/var", h.HandleGetVaR)
			r.Get("/stress", h.HandleGetStress)
			r.Get("/compliance", h.HandleGetCompliance)
			r.Get("/beta", h.HandleGetBeta)
			r.Post("/analyze", h.HandleAnalyze)
			r.Get("/runs", h.HandleListRuns)
		})

		r.Get("/runs/{runID}", h.HandleGetRun)
	})
}
