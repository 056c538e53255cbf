package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sells-group/nonprofit-intel/internal/ingest"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show row counts and pending input files",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := initStore(cmd.Context())
		if err != nil {
			return err
		}
		defer s.Close()

		counts, err := s.Counts(cmd.Context())
		if err != nil {
			return err
		}

		fmt.Printf("Store (%s):\n", cfg.Store.Driver)
		for _, table := range []string{"organizations", "filings", "executive_compensation", "derived_metrics"} {
			fmt.Printf("  %-24s %d\n", table, counts[table])
		}

		if paths, err := ingest.CollectDocuments(cfg.Ingest.XMLDir); err == nil {
			fmt.Printf("XML files in %s: %d\n", cfg.Ingest.XMLDir, len(paths))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
