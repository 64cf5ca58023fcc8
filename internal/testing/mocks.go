package testing

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/aristath/riskcore/internal/domain"
)

// MockReturnSeriesProvider serves return series from memory
type MockReturnSeriesProvider struct {
	mu     sync.RWMutex
	series map[string]domain.ReturnSeries
	err    error
	calls  int
}

// NewMockReturnSeriesProvider creates a provider holding the given series
func NewMockReturnSeriesProvider(series ...domain.ReturnSeries) *MockReturnSeriesProvider {
	m := &MockReturnSeriesProvider{series: make(map[string]domain.ReturnSeries)}
	for _, s := range series {
		m.series[s.InstrumentID] = s
	}
	return m
}

// SetError makes every call fail with err
func (m *MockReturnSeriesProvider) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Calls returns the number of GetReturnSeries calls
func (m *MockReturnSeriesProvider) Calls() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.calls
}

// GetReturnSeries implements domain.ReturnSeriesProvider
func (m *MockReturnSeriesProvider) GetReturnSeries(_ context.Context, instrumentIDs []string, _ domain.ReturnKind, _ time.Time, _ int) (map[string]domain.ReturnSeries, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	out := make(map[string]domain.ReturnSeries, len(instrumentIDs))
	for _, id := range instrumentIDs {
		if s, ok := m.series[id]; ok {
			out[id] = s
		}
	}
	return out, nil
}

// MockPortfolioProvider serves portfolios from memory
type MockPortfolioProvider struct {
	mu         sync.RWMutex
	portfolios map[string]*domain.Portfolio
	order      []string
}

// NewMockPortfolioProvider creates a provider holding the given portfolios
func NewMockPortfolioProvider(portfolios ...*domain.Portfolio) *MockPortfolioProvider {
	m := &MockPortfolioProvider{portfolios: make(map[string]*domain.Portfolio)}
	for _, p := range portfolios {
		m.portfolios[p.ID] = p
		m.order = append(m.order, p.ID)
	}
	return m
}

// GetPortfolio implements domain.PortfolioProvider
func (m *MockPortfolioProvider) GetPortfolio(_ context.Context, portfolioID string) (*domain.Portfolio, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.portfolios[portfolioID]
	if !ok {
		return nil, fmt.Errorf("portfolio %s: %w", portfolioID, domain.ErrPortfolioNotFound)
	}
	return p, nil
}

// ListPortfolioIDs implements domain.PortfolioProvider
func (m *MockPortfolioProvider) ListPortfolioIDs(_ context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]string(nil), m.order...), nil
}
