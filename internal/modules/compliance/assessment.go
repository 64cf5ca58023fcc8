package compliance

import (
	"sort"

	"github.com/aristath/riskcore/internal/domain"
)

// Status summarises an assessment
type Status string

const (
	StatusCompliant    Status = "COMPLIANT"
	StatusWarning      Status = "WARNING"
	StatusNonCompliant Status = "NON_COMPLIANT"
)

// Level is the band a compliance score falls in
type Level string

const (
	LevelExcellent        Level = "EXCELLENT"
	LevelGood             Level = "GOOD"
	LevelSatisfactory     Level = "SATISFACTORY"
	LevelNeedsImprovement Level = "NEEDS_IMPROVEMENT"
	LevelNonCompliant     Level = "NON_COMPLIANT"
)

// Score penalties
const (
	breachPenalty  = 10
	warningPenalty = 5
)

// Warning is a passing limit whose observed value is close to its threshold
type Warning struct {
	LimitName     string  `json:"limit_name" msgpack:"limit_name"`
	ObservedValue float64 `json:"observed_value" msgpack:"observed_value"`
	Threshold     float64 `json:"threshold" msgpack:"threshold"`
	Subject       string  `json:"subject,omitempty" msgpack:"subject"`
}

// Assessment is the scored outcome of a compliance check
type Assessment struct {
	Flags         []domain.ComplianceFlag `json:"flags" msgpack:"flags"`
	Warnings      []Warning               `json:"warnings" msgpack:"warnings"`
	Score         float64                 `json:"score" msgpack:"score"`
	Level         Level                   `json:"level" msgpack:"level"`
	Status        Status                  `json:"status" msgpack:"status"`
	LimitsChecked int                     `json:"limits_checked" msgpack:"limits_checked"`
}

// Assess evaluates the limits and scores the result:
// score = max(0, 100 - 10*breaches - 5*warnings)
func (e *Evaluator) Assess(portfolio *domain.Portfolio, varResult *domain.VaRResult, limits []domain.ComplianceLimit) (Assessment, error) {
	measurements, err := e.measure(portfolio, varResult, limits)
	if err != nil {
		return Assessment{}, err
	}

	warnings := make([]Warning, 0)
	for _, m := range measurements {
		if m.breached() || !e.nearThreshold(m) {
			continue
		}
		warnings = append(warnings, Warning{
			LimitName:     m.limit.Name,
			ObservedValue: m.observed,
			Threshold:     m.limit.Threshold,
			Subject:       m.subject,
		})
	}
	sort.SliceStable(warnings, func(i, j int) bool {
		return warnings[i].LimitName < warnings[j].LimitName
	})

	flags := flagsOf(measurements)
	score := 100.0 - float64(breachPenalty*len(flags)) - float64(warningPenalty*len(warnings))
	if score < 0 {
		score = 0
	}

	status := StatusCompliant
	switch {
	case len(flags) > 0:
		status = StatusNonCompliant
	case len(warnings) > 0:
		status = StatusWarning
	}

	return Assessment{
		Flags:         flags,
		Warnings:      warnings,
		Score:         score,
		Level:         LevelForScore(score),
		Status:        status,
		LimitsChecked: len(measurements),
	}, nil
}

func (e *Evaluator) nearThreshold(m measurement) bool {
	if m.limit.Threshold <= 0 {
		return false
	}
	if m.limit.Comparison == domain.AtLeast {
		return m.observed*e.warningRatio <= m.limit.Threshold
	}
	return m.observed >= e.warningRatio*m.limit.Threshold
}

// LevelForScore maps a 0-100 score to its level
func LevelForScore(score float64) Level {
	switch {
	case score >= 95:
		return LevelExcellent
	case score >= 85:
		return LevelGood
	case score >= 75:
		return LevelSatisfactory
	case score >= 65:
		return LevelNeedsImprovement
	}
	return LevelNonCompliant
}
