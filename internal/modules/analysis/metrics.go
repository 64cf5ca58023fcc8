package analysis

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/aristath/riskcore/internal/domain"
)

// Metrics holds the Prometheus metrics of analysis runs
type Metrics struct {
	RunsTotal         *prometheus.CounterVec
	RunDuration       prometheus.Histogram
	VaRAmount         *prometheus.GaugeVec
	ExpectedShortfall *prometheus.GaugeVec
	ComplianceScore   *prometheus.GaugeVec
	Breaches          *prometheus.GaugeVec
	WorstStressLoss   *prometheus.GaugeVec
	ArchiveFailures   prometheus.Counter
}

// NewMetrics creates the metrics and registers them with reg
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		RunsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "riskcore_analysis_runs_total",
				Help: "Total number of analysis runs by outcome",
			},
			[]string{"status"},
		),
		RunDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "riskcore_analysis_duration_seconds",
				Help:    "Duration of a full analysis run in seconds",
				Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0},
			},
		),
		VaRAmount: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "riskcore_var_amount",
				Help: "Latest Value-at-Risk per portfolio",
			},
			[]string{"portfolio", "method"},
		),
		ExpectedShortfall: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "riskcore_expected_shortfall_amount",
				Help: "Latest Expected Shortfall per portfolio",
			},
			[]string{"portfolio"},
		),
		ComplianceScore: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "riskcore_compliance_score",
				Help: "Latest compliance score (0-100) per portfolio",
			},
			[]string{"portfolio"},
		),
		Breaches: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "riskcore_compliance_breaches",
				Help: "Number of breached limits in the latest run per portfolio",
			},
			[]string{"portfolio"},
		),
		WorstStressLoss: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "riskcore_worst_stress_loss",
				Help: "Largest stress scenario loss in the latest run per portfolio",
			},
			[]string{"portfolio"},
		),
		ArchiveFailures: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "riskcore_archive_failures_total",
				Help: "Total number of reports that could not be archived",
			},
		),
	}

	reg.MustRegister(
		m.RunsTotal,
		m.RunDuration,
		m.VaRAmount,
		m.ExpectedShortfall,
		m.ComplianceScore,
		m.Breaches,
		m.WorstStressLoss,
		m.ArchiveFailures,
	)
	return m
}

// RecordRun records a successful run
func (m *Metrics) RecordRun(result *AnalysisResult, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.RunsTotal.WithLabelValues("success").Inc()
	m.RunDuration.Observe(elapsed.Seconds())
	m.VaRAmount.WithLabelValues(result.PortfolioID, string(result.VaR.Method)).Set(result.VaR.VaRAmount)
	m.ExpectedShortfall.WithLabelValues(result.PortfolioID).Set(result.VaR.ExpectedShortfall)
	m.ComplianceScore.WithLabelValues(result.PortfolioID).Set(result.Compliance.Score)
	m.Breaches.WithLabelValues(result.PortfolioID).Set(float64(len(result.Compliance.Flags)))

	worst := 0.0
	for _, s := range result.Stress {
		if loss := -s.PortfolioPnL; loss > worst {
			worst = loss
		}
	}
	m.WorstStressLoss.WithLabelValues(result.PortfolioID).Set(worst)
}

// RecordFailure records a failed run by error kind
func (m *Metrics) RecordFailure(err error, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.RunsTotal.WithLabelValues(ErrorKind(err)).Inc()
	m.RunDuration.Observe(elapsed.Seconds())
}

// RecordArchiveFailure counts a report that could not be archived
func (m *Metrics) RecordArchiveFailure() {
	if m == nil {
		return
	}
	m.ArchiveFailures.Inc()
}

// ErrorKind names the class of a pipeline error for metrics and API responses
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, domain.ErrInsufficientData):
		return "insufficient_data"
	case errors.Is(err, domain.ErrDimensionMismatch):
		return "dimension_mismatch"
	case errors.Is(err, domain.ErrNumericalInstability):
		return "numerical_instability"
	case errors.Is(err, domain.ErrInvalidConfiguration):
		return "invalid_configuration"
	case errors.Is(err, domain.ErrPortfolioNotFound), errors.Is(err, ErrRunNotFound):
		return "not_found"
	}
	return "internal_error"
}
