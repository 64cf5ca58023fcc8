// Package handlers provides HTTP handlers for risk operations.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/aristath/riskcore/internal/config"
	"github.com/aristath/riskcore/internal/domain"
	"github.com/aristath/riskcore/internal/modules/analysis"
	"github.com/aristath/riskcore/internal/modules/compliance"
	"github.com/aristath/riskcore/internal/modules/risk"
)

// AnalysisService is the part of analysis.Service the handlers use
type AnalysisService interface {
	VaR(ctx context.Context, portfolioID string, cfg config.RiskConfig) (domain.VaRResult, error)
	Stress(ctx context.Context, portfolioID string, cfg config.RiskConfig, scenarios []domain.StressScenario) ([]domain.StressResult, error)
	Compliance(ctx context.Context, portfolioID string, cfg config.RiskConfig) (compliance.Assessment, error)
	Beta(ctx context.Context, portfolioID string, cfg config.RiskConfig) (*risk.BetaExposure, error)
	Run(ctx context.Context, portfolioID string, cfg config.RiskConfig) (*analysis.AnalysisResult, error)
	GetRun(ctx context.Context, runID string) (*analysis.AnalysisResult, error)
	ListRuns(ctx context.Context, portfolioID string, limit int) ([]analysis.RunSummary, error)
	Scenarios(cfg config.RiskConfig) ([]domain.StressScenario, error)
}

// ConfigLoader returns the risk configuration requests start from
type ConfigLoader func() (config.RiskConfig, error)

// Handler handles risk HTTP requests
type Handler struct {
	service    AnalysisService
	loadConfig ConfigLoader
	log        zerolog.Logger
}

// NewHandler creates a new risk handler
func NewHandler(service AnalysisService, loadConfig ConfigLoader, log zerolog.Logger) *Handler {
	return &Handler{
		service:    service,
		loadConfig: loadConfig,
		log:        log.With().Str("handler", "risk").Logger(),
	}
}

// errorBody is the payload of every error response
type errorBody struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// HandleGetScenarios handles GET /api/risk/scenarios
func (h *Handler) HandleGetScenarios(w http.ResponseWriter, r *http.Request) {
	cfg, ok := h.config(w)
	if !ok {
		return
	}
	scenarios, err := h.service.Scenarios(cfg)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeData(w, http.StatusOK, scenarios)
}

// HandleGetVaR handles GET /api/risk/portfolios/{id}/var
func (h *Handler) HandleGetVaR(w http.ResponseWriter, r *http.Request) {
	cfg, ok := h.requestConfig(w, r)
	if !ok {
		return
	}
	result, err := h.service.VaR(r.Context(), chi.URLParam(r, "id"), cfg)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeData(w, http.StatusOK, result)
}

// HandleGetStress handles GET /api/risk/portfolios/{id}/stress. Repeated
// scenario parameters restrict the run to the named scenarios.
func (h *Handler) HandleGetStress(w http.ResponseWriter, r *http.Request) {
	cfg, ok := h.config(w)
	if !ok {
		return
	}

	var selected []domain.StressScenario
	if names := r.URL.Query()["scenario"]; len(names) > 0 {
		available, err := h.service.Scenarios(cfg)
		if err != nil {
			h.writeError(w, err)
			return
		}
		selected = make([]domain.StressScenario, 0, len(names))
		for _, name := range names {
			scenario, found := findScenario(available, name)
			if !found {
				h.writeJSON(w, http.StatusNotFound, map[string]interface{}{
					"error": errorBody{Kind: "not_found", Message: fmt.Sprintf("unknown scenario %q", name)},
				})
				return
			}
			selected = append(selected, scenario)
		}
	}

	results, err := h.service.Stress(r.Context(), chi.URLParam(r, "id"), cfg, selected)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeData(w, http.StatusOK, results)
}

// HandleGetCompliance handles GET /api/risk/portfolios/{id}/compliance
func (h *Handler) HandleGetCompliance(w http.ResponseWriter, r *http.Request) {
	cfg, ok := h.requestConfig(w, r)
	if !ok {
		return
	}
	assessment, err := h.service.Compliance(r.Context(), chi.URLParam(r, "id"), cfg)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeData(w, http.StatusOK, assessment)
}

// HandleGetBeta handles GET /api/risk/portfolios/{id}/beta. The benchmark
// parameter overrides the configured benchmark instrument.
func (h *Handler) HandleGetBeta(w http.ResponseWriter, r *http.Request) {
	cfg, ok := h.config(w)
	if !ok {
		return
	}
	if raw := strings.TrimSpace(r.URL.Query().Get("benchmark")); raw != "" {
		cfg.Beta.Benchmark = raw
	}
	exposure, err := h.service.Beta(r.Context(), chi.URLParam(r, "id"), cfg)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeData(w, http.StatusOK, exposure)
}

// HandleAnalyze handles POST /api/risk/portfolios/{id}/analyze
func (h *Handler) HandleAnalyze(w http.ResponseWriter, r *http.Request) {
	cfg, ok := h.requestConfig(w, r)
	if !ok {
		return
	}
	result, err := h.service.Run(r.Context(), chi.URLParam(r, "id"), cfg)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeData(w, http.StatusCreated, result)
}

// HandleListRuns handles GET /api/risk/portfolios/{id}/runs
func (h *Handler) HandleListRuns(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			h.writeError(w, domain.NewInvalidConfigurationError("limit", fmt.Sprintf("must be a positive integer, got %q", raw)))
			return
		}
		limit = n
	}
	runs, err := h.service.ListRuns(r.Context(), chi.URLParam(r, "id"), limit)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeData(w, http.StatusOK, runs)
}

// HandleGetRun handles GET /api/risk/runs/{runID}
func (h *Handler) HandleGetRun(w http.ResponseWriter, r *http.Request) {
	result, err := h.service.GetRun(r.Context(), chi.URLParam(r, "runID"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeData(w, http.StatusOK, result)
}

func (h *Handler) config(w http.ResponseWriter) (config.RiskConfig, bool) {
	cfg, err := h.loadConfig()
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to load risk config")
		h.writeError(w, err)
		return config.RiskConfig{}, false
	}
	return cfg, true
}

// requestConfig applies the method, confidence and horizon query parameters
// to the configured defaults
func (h *Handler) requestConfig(w http.ResponseWriter, r *http.Request) (config.RiskConfig, bool) {
	cfg, ok := h.config(w)
	if !ok {
		return cfg, false
	}

	q := r.URL.Query()
	if raw := q.Get("method"); raw != "" {
		method, err := domain.ParseVaRMethod(raw)
		if err != nil {
			h.writeError(w, err)
			return cfg, false
		}
		cfg.VaR.Method = method
	}
	if raw := q.Get("confidence"); raw != "" {
		c, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			h.writeError(w, domain.NewInvalidConfigurationError("confidence", fmt.Sprintf("not a number: %q", raw)))
			return cfg, false
		}
		cfg.VaR.ConfidenceLevel = c
	}
	if raw := q.Get("horizon"); raw != "" {
		days, err := strconv.Atoi(raw)
		if err != nil {
			h.writeError(w, domain.NewInvalidConfigurationError("horizon", fmt.Sprintf("not an integer: %q", raw)))
			return cfg, false
		}
		cfg.VaR.HorizonDays = days
	}
	return cfg, true
}

func findScenario(scenarios []domain.StressScenario, name string) (domain.StressScenario, bool) {
	for _, s := range scenarios {
		if strings.EqualFold(s.Name, name) {
			return s, true
		}
	}
	return domain.StressScenario{}, false
}

// StatusCode maps a pipeline error to its HTTP status
func StatusCode(err error) int {
	switch analysis.ErrorKind(err) {
	case "insufficient_data", "dimension_mismatch":
		return http.StatusUnprocessableEntity
	case "invalid_configuration":
		return http.StatusBadRequest
	case "not_found":
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	status := StatusCode(err)
	if status == http.StatusInternalServerError && !errors.Is(err, domain.ErrNumericalInstability) {
		h.log.Error().Err(err).Msg("Risk request failed")
	}
	h.writeJSON(w, status, map[string]interface{}{
		"error": errorBody{Kind: analysis.ErrorKind(err), Message: err.Error()},
	})
}

func (h *Handler) writeData(w http.ResponseWriter, status int, data interface{}) {
	h.writeJSON(w, status, map[string]interface{}{
		"data": data,
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	})
}

// writeJSON writes a JSON response
func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}
