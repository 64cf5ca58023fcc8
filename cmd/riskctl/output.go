package main

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/aristath/riskcore/internal/domain"
	"github.com/aristath/riskcore/internal/modules/analysis"
)

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newTable(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
}

func printStress(w io.Writer, results []domain.StressResult) error {
	tw := newTable(w)
	fmt.Fprintln(tw, "SCENARIO\tP&L\tLOSS %\tMATCHED")
	for _, r := range results {
		fmt.Fprintf(tw, "%s\t%.2f\t%.2f%%\t%d\n", r.ScenarioName, r.PortfolioPnL, r.LossPercentage*100, r.MatchedPositions)
	}
	return tw.Flush()
}

func printScenarios(w io.Writer, scenarios []domain.StressScenario) error {
	tw := newTable(w)
	fmt.Fprintln(tw, "NAME\tSHOCKS\tDESCRIPTION")
	for _, s := range scenarios {
		fmt.Fprintf(tw, "%s\t%d\t%s\n", s.Name, len(s.Shocks), s.Description)
	}
	return tw.Flush()
}

func printRun(w io.Writer, r *analysis.AnalysisResult) error {
	tw := newTable(w)
	fmt.Fprintf(tw, "Run\t%s\n", r.RunID)
	fmt.Fprintf(tw, "Portfolio\t%s (%s)\n", r.PortfolioID, r.AsOf.Format("2006-01-02"))
	fmt.Fprintf(tw, "Value\t%.2f\n", r.VaR.PortfolioValue)
	fmt.Fprintf(tw, "VaR (%s, %.1f%%, %dd)\t%.2f (%.2f%%)\n",
		r.VaR.Method, r.VaR.ConfidenceLevel*100, r.VaR.HorizonDays, r.VaR.VaRAmount, r.VaR.VaRPercentage*100)
	fmt.Fprintf(tw, "Expected Shortfall\t%.2f\n", r.VaR.ExpectedShortfall)
	fmt.Fprintf(tw, "HHI\t%.4f (%s)\n", r.Concentration.HerfindahlIndex, r.Concentration.Level)
	if r.WorstScenario != "" {
		fmt.Fprintf(tw, "Worst scenario\t%s\n", r.WorstScenario)
	}
	if r.Beta != nil {
		fmt.Fprintf(tw, "Beta vs %s\t%.3f (high %v, low %v)\n",
			r.Beta.Benchmark, r.Beta.PortfolioBeta, r.Beta.HighBeta, r.Beta.LowBeta)
	}
	fmt.Fprintf(tw, "Compliance\t%s (score %.0f)\n", r.Compliance.Status, r.Compliance.Score)
	for _, f := range r.Compliance.Flags {
		subject := ""
		if f.Subject != "" {
			subject = " [" + f.Subject + "]"
		}
		fmt.Fprintf(tw, "  %s%s\t%.4f > %.4f (%s)\n", f.LimitName, subject, f.ObservedValue, f.Threshold, f.Severity)
	}
	return tw.Flush()
}
