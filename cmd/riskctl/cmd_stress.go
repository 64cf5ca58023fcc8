package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/aristath/riskcore/internal/domain"
	"github.com/aristath/riskcore/internal/modules/stress"
)

func newStressCmd(opts *options) *cobra.Command {
	var scenarioNames []string

	cmd := &cobra.Command{
		Use:   "stress <portfolio-id>",
		Short: "Apply stress scenarios to a portfolio",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := setup(cmd.Context(), opts, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer e.close()

			svc := e.container.AnalysisService
			available, err := svc.Scenarios(e.riskCfg)
			if err != nil {
				return err
			}

			scenarios := available
			if len(scenarioNames) > 0 {
				scenarios, err = pickScenarios(available, scenarioNames)
				if err != nil {
					return err
				}
			}

			results, err := svc.Stress(cmd.Context(), args[0], e.riskCfg, scenarios)
			if err != nil {
				return err
			}

			if opts.jsonOutput {
				return writeJSON(cmd.OutOrStdout(), results)
			}
			if err := printStress(cmd.OutOrStdout(), results); err != nil {
				return err
			}
			if worst, ok := stress.WorstCase(results); ok {
				fmt.Fprintf(cmd.OutOrStdout(), "\nWorst case: %s (%.2f)\n", worst.ScenarioName, worst.PortfolioPnL)
			}
			return nil
		},
	}

	cmd.Flags().StringSliceVarP(&scenarioNames, "scenario", "s", nil, "scenario name to apply (repeatable, default all)")
	return cmd
}

func pickScenarios(available []domain.StressScenario, names []string) ([]domain.StressScenario, error) {
	byName := make(map[string]domain.StressScenario, len(available))
	for _, s := range available {
		byName[s.Name] = s
	}
	picked := make([]domain.StressScenario, 0, len(names))
	for _, name := range names {
		s, ok := byName[name]
		if !ok {
			return nil, fmt.Errorf("unknown scenario %q", name)
		}
		picked = append(picked, s)
	}
	return picked, nil
}
