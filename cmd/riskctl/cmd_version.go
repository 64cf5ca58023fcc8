package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/aristath/riskcore/internal/version"
)

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "riskctl %s (%s)\n", version.Version, version.Commit)
		},
	}
}
