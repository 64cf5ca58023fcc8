package analysis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/floats"

	"github.com/aristath/riskcore/internal/config"
	"github.com/aristath/riskcore/internal/domain"
	"github.com/aristath/riskcore/internal/events"
	"github.com/aristath/riskcore/internal/modules/compliance"
	"github.com/aristath/riskcore/internal/modules/portfolio"
	"github.com/aristath/riskcore/internal/modules/risk"
	"github.com/aristath/riskcore/internal/modules/riskmodel"
	"github.com/aristath/riskcore/internal/modules/stress"
	"github.com/aristath/riskcore/pkg/formulas"
)

// recentVolatilityWindow is the trailing window of Statistics.RecentVolatility
const recentVolatilityWindow = 20

// ResultStore persists analysis results
type ResultStore interface {
	Save(ctx context.Context, result *AnalysisResult) error
	Get(ctx context.Context, runID string) (*AnalysisResult, error)
	List(ctx context.Context, portfolioID string, limit int) ([]RunSummary, error)
}

// ReportArchiver copies finished reports to long-term storage
type ReportArchiver interface {
	Archive(ctx context.Context, key string, payload []byte) error
}

// EventPublisher receives run lifecycle events
type EventPublisher interface {
	Publish(event events.Event)
}

// Service runs the risk pipeline. The providers are its only source of data;
// the risk core it drives is synchronous and stateless.
type Service struct {
	portfolios domain.PortfolioProvider
	returns    domain.ReturnSeriesProvider
	builder    *riskmodel.Builder
	varEngine  *risk.Engine
	store      ResultStore
	archiver   ReportArchiver
	metrics    *Metrics
	events     EventPublisher
	now        func() time.Time
	log        zerolog.Logger
}

// Option configures a Service
type Option func(*Service)

// WithResultStore persists every successful run
func WithResultStore(store ResultStore) Option {
	return func(s *Service) { s.store = store }
}

// WithArchiver archives every successful run as a JSON report
func WithArchiver(archiver ReportArchiver) Option {
	return func(s *Service) { s.archiver = archiver }
}

// WithMetrics records run metrics
func WithMetrics(m *Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithEvents publishes a RUN_COMPLETED or RUN_FAILED event per run
func WithEvents(p EventPublisher) Option {
	return func(s *Service) { s.events = p }
}

// WithClock replaces time.Now for run timestamps
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService creates a new analysis service
func NewService(portfolios domain.PortfolioProvider, returns domain.ReturnSeriesProvider, log zerolog.Logger, opts ...Option) *Service {
	s := &Service{
		portfolios: portfolios,
		returns:    returns,
		builder:    riskmodel.NewBuilder(log),
		varEngine:  risk.NewEngine(log),
		now:        time.Now,
		log:        log.With().Str("service", "analysis").Logger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Portfolio loads a portfolio snapshot
func (s *Service) Portfolio(ctx context.Context, portfolioID string) (*domain.Portfolio, error) {
	return s.portfolios.GetPortfolio(ctx, portfolioID)
}

// model loads the portfolio and estimates its return distribution
func (s *Service) model(ctx context.Context, portfolioID string, cfg config.RiskConfig) (*domain.Portfolio, *riskmodel.Distribution, error) {
	pf, err := s.portfolios.GetPortfolio(ctx, portfolioID)
	if err != nil {
		return nil, nil, err
	}

	series, err := s.returns.GetReturnSeries(ctx, pf.InstrumentIDs(), cfg.Kind(), pf.AsOf, cfg.Model.LookbackWindow)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load return series: %w", err)
	}

	dist, err := s.builder.Build(pf, series, cfg.Model)
	if err != nil {
		return nil, nil, err
	}
	return pf, dist, nil
}

// VaR computes Value-at-Risk of a stored portfolio
func (s *Service) VaR(ctx context.Context, portfolioID string, cfg config.RiskConfig) (domain.VaRResult, error) {
	if err := cfg.Validate(); err != nil {
		return domain.VaRResult{}, err
	}
	pf, dist, err := s.model(ctx, portfolioID, cfg)
	if err != nil {
		return domain.VaRResult{}, err
	}
	return s.varEngine.Compute(pf, dist, cfg.VaR)
}

// Beta measures a stored portfolio against cfg.Beta.Benchmark
func (s *Service) Beta(ctx context.Context, portfolioID string, cfg config.RiskConfig) (*risk.BetaExposure, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if !cfg.Beta.Enabled() {
		return nil, domain.NewInvalidConfigurationError("beta.benchmark", "no benchmark instrument configured")
	}
	pf, dist, err := s.model(ctx, portfolioID, cfg)
	if err != nil {
		return nil, err
	}
	return s.beta(ctx, pf, dist, cfg)
}

func (s *Service) beta(ctx context.Context, pf *domain.Portfolio, dist *riskmodel.Distribution, cfg config.RiskConfig) (*risk.BetaExposure, error) {
	benchmark := cfg.Beta.Benchmark
	series, err := s.returns.GetReturnSeries(ctx, []string{benchmark}, cfg.Kind(), pf.AsOf, cfg.Model.LookbackWindow)
	if err != nil {
		return nil, fmt.Errorf("failed to load benchmark series: %w", err)
	}
	bench, ok := series[benchmark]
	if !ok {
		return nil, domain.NewInsufficientDataError(benchmark, cfg.Beta.MinObservations, 0, "benchmark has no price history")
	}
	return s.varEngine.BetaExposure(pf, dist, bench, cfg.Beta)
}

// Scenarios returns the scenarios a run applies: the library (when enabled)
// merged with the configured custom scenarios
func (s *Service) Scenarios(cfg config.RiskConfig) ([]domain.StressScenario, error) {
	custom, err := cfg.CustomScenarios()
	if err != nil {
		return nil, err
	}
	if !cfg.Stress.IncludeLibrary {
		return custom, nil
	}
	return stress.Resolve(custom), nil
}

// Stress applies scenarios to a stored portfolio. Nil scenarios means the
// configured set.
func (s *Service) Stress(ctx context.Context, portfolioID string, cfg config.RiskConfig, scenarios []domain.StressScenario) ([]domain.StressResult, error) {
	if scenarios == nil {
		var err error
		if scenarios, err = s.Scenarios(cfg); err != nil {
			return nil, err
		}
	}
	pf, err := s.portfolios.GetPortfolio(ctx, portfolioID)
	if err != nil {
		return nil, err
	}
	return s.stressEngine(cfg).ApplyAll(pf, scenarios)
}

// Compliance assesses a stored portfolio against the configured limits.
// VaR is only computed when a limit needs it.
func (s *Service) Compliance(ctx context.Context, portfolioID string, cfg config.RiskConfig) (compliance.Assessment, error) {
	if err := cfg.Validate(); err != nil {
		return compliance.Assessment{}, err
	}
	limits, err := cfg.ComplianceLimits()
	if err != nil {
		return compliance.Assessment{}, err
	}

	needsVaR := false
	for _, l := range limits {
		needsVaR = needsVaR || l.Metric.RequiresVaR()
	}

	var pf *domain.Portfolio
	var varResult *domain.VaRResult
	if needsVaR {
		p, dist, err := s.model(ctx, portfolioID, cfg)
		if err != nil {
			return compliance.Assessment{}, err
		}
		res, err := s.varEngine.Compute(p, dist, cfg.VaR)
		if err != nil {
			return compliance.Assessment{}, err
		}
		pf, varResult = p, &res
	} else if pf, err = s.portfolios.GetPortfolio(ctx, portfolioID); err != nil {
		return compliance.Assessment{}, err
	}

	return s.evaluator(cfg).Assess(pf, varResult, limits)
}

// Run executes the full pipeline for one portfolio: model, VaR, stress,
// compliance, concentration and historical statistics. A successful result is
// stored and archived when those collaborators are configured.
func (s *Service) Run(ctx context.Context, portfolioID string, cfg config.RiskConfig) (*AnalysisResult, error) {
	start := s.now()
	result, err := s.run(ctx, portfolioID, cfg, start)
	elapsed := s.now().Sub(start)
	if err != nil {
		s.metrics.RecordFailure(err, elapsed)
		s.log.Error().
			Err(err).
			Str("portfolio_id", portfolioID).
			Str("kind", ErrorKind(err)).
			Msg("Analysis run failed")
		s.publishFailure(portfolioID, err)
		return nil, err
	}

	result.DurationMS = elapsed.Milliseconds()
	if s.store != nil {
		if err := s.store.Save(ctx, result); err != nil {
			s.metrics.RecordFailure(err, elapsed)
			err = fmt.Errorf("failed to store run: %w", err)
			s.publishFailure(portfolioID, err)
			return nil, err
		}
	}
	s.archive(ctx, result)
	s.metrics.RecordRun(result, elapsed)
	s.publishCompleted(result)

	s.log.Info().
		Str("portfolio_id", portfolioID).
		Str("run_id", result.RunID).
		Float64("var", result.VaR.VaRAmount).
		Float64("es", result.VaR.ExpectedShortfall).
		Int("breaches", len(result.Compliance.Flags)).
		Dur("elapsed", elapsed).
		Msg("Analysis run completed")
	return result, nil
}

func (s *Service) run(ctx context.Context, portfolioID string, cfg config.RiskConfig, start time.Time) (*AnalysisResult, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	limits, err := cfg.ComplianceLimits()
	if err != nil {
		return nil, err
	}
	scenarios, err := s.Scenarios(cfg)
	if err != nil {
		return nil, err
	}

	pf, dist, err := s.model(ctx, portfolioID, cfg)
	if err != nil {
		return nil, err
	}

	varResult, err := s.varEngine.Compute(pf, dist, cfg.VaR)
	if err != nil {
		return nil, err
	}

	var components []risk.Contribution
	if cfg.ComponentVaR {
		if components, err = s.varEngine.ComponentVaR(pf, dist, cfg.VaR); err != nil {
			return nil, err
		}
	}

	stressResults, err := s.stressEngine(cfg).ApplyAll(pf, scenarios)
	if err != nil {
		return nil, err
	}

	assessment, err := s.evaluator(cfg).Assess(pf, &varResult, limits)
	if err != nil {
		return nil, err
	}

	var beta *risk.BetaExposure
	if cfg.Beta.Enabled() {
		if beta, err = s.beta(ctx, pf, dist, cfg); err != nil {
			return nil, err
		}
	}

	result := &AnalysisResult{
		RunID:            uuid.NewString(),
		PortfolioID:      pf.ID,
		PortfolioName:    pf.Name,
		AsOf:             pf.AsOf,
		CreatedAt:        start.UTC(),
		ReturnKind:       dist.Kind(),
		VaR:              varResult,
		Components:       components,
		Stress:           stressResults,
		Compliance:       assessment,
		Concentration:    portfolio.Analyze(pf),
		Statistics:       statistics(pf, dist),
		HighCorrelations: dist.Correlations(riskmodel.HighCorrelationThreshold),
		Beta:             beta,
	}
	if worst, ok := stress.WorstCase(stressResults); ok {
		result.WorstScenario = worst.ScenarioName
	}
	return result, nil
}

// RunBatch analyses the given portfolios concurrently, one goroutine per
// portfolio. An empty list analyses every portfolio the provider knows.
func (s *Service) RunBatch(ctx context.Context, portfolioIDs []string, cfg config.RiskConfig) (*BatchResult, error) {
	if len(portfolioIDs) == 0 {
		ids, err := s.portfolios.ListPortfolioIDs(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list portfolios: %w", err)
		}
		portfolioIDs = ids
	}

	results := make([]*AnalysisResult, len(portfolioIDs))
	errs := make([]error, len(portfolioIDs))

	var wg sync.WaitGroup
	for i, id := range portfolioIDs {
		wg.Add(1)
		go func(i int, id string) {
			defer wg.Done()
			results[i], errs[i] = s.Run(ctx, id, cfg)
		}(i, id)
	}
	wg.Wait()

	batch := &BatchResult{Errors: make(map[string]error)}
	for i, id := range portfolioIDs {
		if errs[i] != nil {
			batch.Errors[id] = errs[i]
			continue
		}
		batch.Results = append(batch.Results, results[i])
	}

	s.log.Info().
		Int("portfolios", len(portfolioIDs)).
		Int("failed", len(batch.Errors)).
		Msg("Batch analysis completed")
	return batch, nil
}

// GetRun loads a stored run
func (s *Service) GetRun(ctx context.Context, runID string) (*AnalysisResult, error) {
	if s.store == nil {
		return nil, fmt.Errorf("run %s: %w", runID, ErrRunNotFound)
	}
	return s.store.Get(ctx, runID)
}

// ListRuns lists stored runs of a portfolio, newest first
func (s *Service) ListRuns(ctx context.Context, portfolioID string, limit int) ([]RunSummary, error) {
	if s.store == nil {
		return []RunSummary{}, nil
	}
	return s.store.List(ctx, portfolioID, limit)
}

func (s *Service) stressEngine(cfg config.RiskConfig) *stress.Engine {
	var opts []stress.Option
	if cfg.Stress.StrictKeys {
		opts = append(opts, stress.WithStrictKeys())
	}
	return stress.NewEngine(s.log, opts...)
}

func (s *Service) evaluator(cfg config.RiskConfig) *compliance.Evaluator {
	return compliance.NewEvaluator(s.log, compliance.WithWarningRatio(cfg.WarningRatio))
}

func (s *Service) archive(ctx context.Context, result *AnalysisResult) {
	if s.archiver == nil {
		return
	}
	payload, err := json.MarshalIndent(result, "", "  ")
	if err == nil {
		err = s.archiver.Archive(ctx, ReportKey(result), payload)
	}
	if err != nil {
		s.metrics.RecordArchiveFailure()
		s.log.Error().Err(err).Str("run_id", result.RunID).Msg("Failed to archive report")
	}
}

func (s *Service) publishCompleted(result *AnalysisResult) {
	if s.events == nil {
		return
	}
	s.events.Publish(events.Event{
		Type:        events.RunCompleted,
		PortfolioID: result.PortfolioID,
		Timestamp:   result.CreatedAt,
		Data: map[string]interface{}{
			"run_id":             result.RunID,
			"method":             string(result.VaR.Method),
			"var_amount":         result.VaR.VaRAmount,
			"expected_shortfall": result.VaR.ExpectedShortfall,
			"compliance_status":  string(result.Compliance.Status),
			"breach_count":       len(result.Compliance.Flags),
			"worst_scenario":     result.WorstScenario,
			"duration_ms":        result.DurationMS,
		},
	})
}

func (s *Service) publishFailure(portfolioID string, err error) {
	if s.events == nil {
		return
	}
	s.events.Publish(events.Event{
		Type:        events.RunFailed,
		PortfolioID: portfolioID,
		Timestamp:   s.now().UTC(),
		Data: map[string]interface{}{
			"kind":  ErrorKind(err),
			"error": err.Error(),
		},
	})
}

// ReportKey is the archive object key of a result
func ReportKey(result *AnalysisResult) string {
	return fmt.Sprintf("%s/%s/%s.json", result.PortfolioID, result.AsOf.Format("2006-01-02"), result.RunID)
}

// statistics computes the historical behaviour of the current weights over the
// aligned history. Log returns are converted to simple returns first.
func statistics(pf *domain.Portfolio, dist *riskmodel.Distribution) Statistics {
	stats := Statistics{
		Observations:        dist.Observations(),
		ShrinkageIntensity:  dist.ShrinkageIntensity(),
		RegularizationShift: dist.RegularizationShift(),
	}

	ids := dist.Instruments()
	weights := make([]float64, len(ids))
	total := pf.TotalValue()
	if total == 0 {
		return stats
	}
	for i, id := range ids {
		if pos, ok := pf.Position(id); ok {
			weights[i] = pos.MarketValue / total
		}
	}

	history := dist.History()
	if len(history) == 0 {
		return stats
	}
	returns := make([]float64, len(history))
	simple := make([]float64, len(ids))
	for t, row := range history {
		for i, r := range row {
			if dist.Kind() == domain.LogReturns {
				simple[i] = math.Expm1(r)
			} else {
				simple[i] = r
			}
		}
		returns[t] = floats.Dot(weights, simple)
	}

	stats.AnnualizedVolatility = formulas.AnnualizedVolatility(returns)
	stats.RecentVolatility = formulas.LatestVolatility(returns, recentVolatilityWindow)
	stats.MaxDrawdown = formulas.MaxDrawdown(returns)
	return stats
}

// SortByPortfolio orders batch results by portfolio id
func (b *BatchResult) SortByPortfolio() {
	sort.Slice(b.Results, func(i, j int) bool {
		return b.Results[i].PortfolioID < b.Results[j].PortfolioID
	})
}

// Err joins the batch errors, nil when every portfolio succeeded
func (b *BatchResult) Err() error {
	if len(b.Errors) == 0 {
		return nil
	}
	ids := make([]string, 0, len(b.Errors))
	for id := range b.Errors {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	errs := make([]error, len(ids))
	for i, id := range ids {
		errs[i] = fmt.Errorf("portfolio %s: %w", id, b.Errors[id])
	}
	return errors.Join(errs...)
}
