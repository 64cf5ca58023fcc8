package main

import (
	"fmt"
	"os"
	"sort"

	"github.com/spf13/cobra"
)

func newImportPricesCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "import-prices <file.csv>",
		Short: "Import daily prices from CSV into the history database",
		Long: "The CSV header must name instrument_id, date (YYYY-MM-DD) and close.\n" +
			"open, high, low and volume columns are optional. Existing days are overwritten.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			e, err := setup(cmd.Context(), opts, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer e.close()

			summary, err := e.container.History.ImportCSV(cmd.Context(), f)
			if err != nil {
				return fmt.Errorf("import %s: %w", args[0], err)
			}

			out := cmd.OutOrStdout()
			if opts.jsonOutput {
				return writeJSON(out, summary)
			}

			ids := make([]string, 0, len(summary.Instruments))
			for id := range summary.Instruments {
				ids = append(ids, id)
			}
			sort.Strings(ids)

			tw := newTable(out)
			fmt.Fprintln(tw, "INSTRUMENT\tROWS")
			for _, id := range ids {
				fmt.Fprintf(tw, "%s\t%d\n", id, summary.Instruments[id])
			}
			if err := tw.Flush(); err != nil {
				return err
			}
			fmt.Fprintf(out, "\nImported %d rows (%d saved)\n", summary.Rows, summary.Saved)
			return nil
		},
	}
}
