// Package cli wires the command-line interface using Cobra.
package cli

import (
	"github.com/spf13/cobra"
)

func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "ingestor",
		Short: "Ingests supermarket catalog data into a common schema",
		Long: `ingestor pulls product and price data from supermarket source APIs,
normalizes it into a canonical schema and delivers it to a target store.
Unchanged records are skipped via a fingerprint cache and run progress is
checkpointed so interrupted runs can resume.`,
		SilenceUsage: true,
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Help()
		},
	}

	rootCmd.AddCommand(NewRunCmd())
	rootCmd.AddCommand(NewSourcesCmd())

	return rootCmd
}
