package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/aristath/riskcore/internal/config"
	"github.com/aristath/riskcore/internal/modules/stress"
)

func newScenariosCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "scenarios",
		Short: "List the stress scenarios of the risk configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := opts.riskConfig
			if path == "" {
				path = os.Getenv("RISK_CONFIG_PATH")
			}
			riskCfg, err := config.LoadRiskConfig(path)
			if err != nil {
				return err
			}

			scenarios, err := riskCfg.CustomScenarios()
			if err != nil {
				return err
			}
			if riskCfg.Stress.IncludeLibrary {
				scenarios = stress.Resolve(scenarios)
			}

			if opts.jsonOutput {
				return writeJSON(cmd.OutOrStdout(), scenarios)
			}
			return printScenarios(cmd.OutOrStdout(), scenarios)
		},
	}
}
