package handlers

import (
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
)

func TestRegisterRoutes(t *testing.T) {
	router := chi.NewRouter()
	handler := &Handler{}
	assert.NotPanics(t, func() {
		handler.RegisterRoutes(router)
	}, "RegisterRoutes should not panic")

	var routes []string
	_ = chi.Walk(router, func(method, route string, _ chi.Handler, _ ...func(chi.Handler) chi.Handler) error {
		routes = append(routes, method+" "+route)
		return nil
	})

	assert.Contains(t, routes, "GET /risk/scenarios")
	assert.Contains(t, routes, "GET /risk/portfolios/{id}/var")
	assert.Contains(t, routes, "GET /risk/portfolios/{id}/beta")
	assert.Contains(t, routes, "POST /risk/portfolios/{id}/analyze")
	assert.Contains(t, routes, "GET /risk/runs/{runID}")
}
