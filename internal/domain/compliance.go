package domain

import (
	"fmt"
	"strings"
)

// Comparison is the direction a limit is enforced in
type Comparison string

const (
	// AtMost breaches when the observed value exceeds the threshold
	AtMost Comparison = "<="
	// AtLeast breaches when the observed value falls below the threshold
	AtLeast Comparison = ">="
)

// ParseComparison accepts the symbolic and the word form
func ParseComparison(s string) (Comparison, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "<=", "at_most", "max", "":
		return AtMost, nil
	case ">=", "at_least", "min":
		return AtLeast, nil
	}
	return "", NewInvalidConfigurationError("comparison", fmt.Sprintf("unknown comparison %q", s))
}

// Breaches reports whether observed violates threshold
func (c Comparison) Breaches(observed, threshold float64) bool {
	if c == AtLeast {
		return observed < threshold
	}
	return observed > threshold
}

// LimitScope is the level a limit is measured at
type LimitScope string

const (
	LimitScopePosition  LimitScope = "position"
	LimitScopeSector    LimitScope = "sector"
	LimitScopeRegion    LimitScope = "region"
	LimitScopePortfolio LimitScope = "portfolio"
)

// ParseLimitScope validates a textual limit scope
func ParseLimitScope(s string) (LimitScope, error) {
	switch scope := LimitScope(strings.ToLower(strings.TrimSpace(s))); scope {
	case LimitScopePosition, LimitScopeSector, LimitScopeRegion, LimitScopePortfolio:
		return scope, nil
	}
	return "", NewInvalidConfigurationError("limit_scope", fmt.Sprintf("unknown limit scope %q", s))
}

// LimitMetric is the observed quantity a limit constrains
type LimitMetric string

const (
	// MetricHHI is the Herfindahl-Hirschman index of position weights
	MetricHHI LimitMetric = "hhi"
	// MetricExposure is market value of matching positions / total value
	MetricExposure LimitMetric = "exposure"
	// MetricMarketValue is the absolute market value of matching positions
	MetricMarketValue LimitMetric = "market_value"
	// MetricVaRPercentage is VaR amount / total value
	MetricVaRPercentage LimitMetric = "var_percentage"
	// MetricESPercentage is expected shortfall / total value
	MetricESPercentage LimitMetric = "expected_shortfall_percentage"
)

// ParseLimitMetric validates a textual limit metric
func ParseLimitMetric(s string) (LimitMetric, error) {
	switch m := LimitMetric(strings.ToLower(strings.TrimSpace(s))); m {
	case MetricHHI, MetricExposure, MetricMarketValue, MetricVaRPercentage, MetricESPercentage:
		return m, nil
	}
	return "", NewInvalidConfigurationError("limit_metric", fmt.Sprintf("unknown limit metric %q", s))
}

// RequiresVaR reports whether the metric is read from a VaRResult
func (m LimitMetric) RequiresVaR() bool {
	return m == MetricVaRPercentage || m == MetricESPercentage
}

// ComplianceLimit is one threshold rule. An empty Key on a position, sector or
// region scope applies the limit to every group.
type ComplianceLimit struct {
	Name       string      `json:"name" msgpack:"name"`
	Metric     LimitMetric `json:"metric" msgpack:"metric"`
	Threshold  float64     `json:"threshold" msgpack:"threshold"`
	Comparison Comparison  `json:"comparison" msgpack:"comparison"`
	Scope      LimitScope  `json:"scope" msgpack:"scope"`
	Key        string      `json:"key,omitempty" msgpack:"key"`
}

// NewComplianceLimit validates a limit definition
func NewComplianceLimit(name string, metric LimitMetric, threshold float64, comparison Comparison, scope LimitScope, key string) (ComplianceLimit, error) {
	if strings.TrimSpace(name) == "" {
		return ComplianceLimit{}, NewInvalidConfigurationError("limit", "name must not be empty")
	}
	metric, err := ParseLimitMetric(string(metric))
	if err != nil {
		return ComplianceLimit{}, err
	}
	comparison, err = ParseComparison(string(comparison))
	if err != nil {
		return ComplianceLimit{}, err
	}
	scope, err = ParseLimitScope(string(scope))
	if err != nil {
		return ComplianceLimit{}, err
	}
	if !isFinite(threshold) || threshold < 0 {
		return ComplianceLimit{}, NewInvalidConfigurationError("limit",
			fmt.Sprintf("%q: threshold must be a finite non-negative number", name))
	}

	switch metric {
	case MetricHHI, MetricVaRPercentage, MetricESPercentage:
		if scope != LimitScopePortfolio {
			return ComplianceLimit{}, NewInvalidConfigurationError("limit",
				fmt.Sprintf("%q: metric %s is only defined at portfolio scope", name, metric))
		}
	case MetricExposure, MetricMarketValue:
		if scope == LimitScopePortfolio {
			return ComplianceLimit{}, NewInvalidConfigurationError("limit",
				fmt.Sprintf("%q: metric %s needs a position, sector or region scope", name, metric))
		}
	}
	if scope == LimitScopePortfolio {
		key = ""
	}

	return ComplianceLimit{
		Name:       name,
		Metric:     metric,
		Threshold:  threshold,
		Comparison: comparison,
		Scope:      scope,
		Key:        strings.TrimSpace(key),
	}, nil
}

// Severity grades how far a limit is breached
type Severity int

const (
	SeverityMinor Severity = iota + 1
	SeverityMajor
	SeverityCritical
)

func (s Severity) String() string {
	switch s {
	case SeverityMinor:
		return "minor"
	case SeverityMajor:
		return "major"
	case SeverityCritical:
		return "critical"
	}
	return "unknown"
}

// MarshalText encodes the severity by name
func (s Severity) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText decodes a severity name
func (s *Severity) UnmarshalText(text []byte) error {
	switch string(text) {
	case "minor":
		*s = SeverityMinor
	case "major":
		*s = SeverityMajor
	case "critical":
		*s = SeverityCritical
	default:
		return NewInvalidConfigurationError("severity", fmt.Sprintf("unknown severity %q", text))
	}
	return nil
}

// ComplianceFlag is one breached limit
type ComplianceFlag struct {
	LimitName     string   `json:"limit_name" msgpack:"limit_name"`
	ObservedValue float64  `json:"observed_value" msgpack:"observed_value"`
	Threshold     float64  `json:"threshold" msgpack:"threshold"`
	Severity      Severity `json:"severity" msgpack:"severity"`
	Subject       string   `json:"subject,omitempty" msgpack:"subject"`
}
