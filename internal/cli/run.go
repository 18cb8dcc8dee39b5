package cli

import (
	"github.com/spf13/cobra"
)

type RunOptions struct {
	Source      string
	SourcesFile string
	Resume      bool
	DryRun      bool
	Target      string
	CacheStore  string
	LedgerStore string
}

func NewRunCmd() *cobra.Command {
	opts := &RunOptions{}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run an ingestion pass for one source",
		RunE: func(c *cobra.Command, args []string) error {
			return runIngest(opts)
		},
	}

	cmd.Flags().StringVarP(&opts.Source, "source", "s", "", "Source name to ingest")
	cmd.Flags().StringVarP(&opts.SourcesFile, "sources-file", "f", "configs/sources.json", "Path to the sources settings file")
	cmd.Flags().BoolVar(&opts.Resume, "resume", true, "Resume an in-progress run for the source if one exists")
	cmd.Flags().BoolVar(&opts.DryRun, "dry-run", false, "Fetch and transform but skip delivery and checkpointing")
	cmd.Flags().StringVar(&opts.Target, "target", "postgres", "Delivery target: postgres or sqlserver")
	cmd.Flags().StringVar(&opts.CacheStore, "cache", "redis", "Cache backend: redis or memory")
	cmd.Flags().StringVar(&opts.LedgerStore, "ledger", "mongo", "Ledger backend: mongo or memory")
	cmd.MarkFlagRequired("source")

	return cmd
}

func NewSourcesCmd() *cobra.Command {
	var sourcesFile string

	cmd := &cobra.Command{
		Use:   "sources",
		Short: "List the sources defined in the settings file",
		RunE: func(c *cobra.Command, args []string) error {
			return listSources(c, sourcesFile)
		},
	}

	cmd.Flags().StringVarP(&sourcesFile, "sources-file", "f", "configs/sources.json", "Path to the sources settings file")

	return cmd
}
