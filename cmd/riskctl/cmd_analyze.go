package main

import (
	"github.com/spf13/cobra"
)

func newAnalyzeCmd(opts *options) *cobra.Command {
	var (
		all       bool
		benchmark string
	)

	cmd := &cobra.Command{
		Use:   "analyze [portfolio-id...]",
		Short: "Run the full analysis for one or more portfolios and store the runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 && !all {
				return cmd.Usage()
			}

			e, err := setup(cmd.Context(), opts, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer e.close()
			if benchmark != "" {
				e.riskCfg.Beta.Benchmark = benchmark
			}

			ids := args
			if all {
				ids = nil
			}
			batch, err := e.container.AnalysisService.RunBatch(cmd.Context(), ids, e.riskCfg)
			if err != nil {
				return err
			}
			batch.SortByPortfolio()

			out := cmd.OutOrStdout()
			if opts.jsonOutput {
				if err := writeJSON(out, batch.Results); err != nil {
					return err
				}
			} else {
				for _, r := range batch.Results {
					if err := printRun(out, r); err != nil {
						return err
					}
				}
			}
			return batch.Err()
		},
	}

	cmd.Flags().BoolVar(&all, "all", false, "analyze every stored portfolio")
	cmd.Flags().StringVar(&benchmark, "benchmark", "", "instrument id to measure position betas against")
	return cmd
}
