package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/sells-group/nonprofit-intel/internal/ingest"
	"github.com/sells-group/nonprofit-intel/internal/metrics"
)

var ingestDir string

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Parse and load Form 990 XML filings, then recompute metrics",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		s, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer s.Close()
		if err := s.Migrate(ctx); err != nil {
			return err
		}

		dir := ingestDir
		if dir == "" {
			dir = cfg.Ingest.XMLDir
		}
		paths, err := ingest.CollectDocuments(dir)
		if err != nil {
			return err
		}

		engine := metrics.NewEngine(s, cfg.Score)
		report, err := ingest.NewRunner(s, engine, cfg.Ingest).Run(ctx, paths)
		if err != nil {
			return err
		}

		fmt.Printf("Ingested %d filings (%d failed), wrote %d metric rows\n",
			report.Succeeded, len(report.Failed), report.Metrics)
		for i, f := range report.Failed {
			if cfg.Ingest.FailureDetail > 0 && i >= cfg.Ingest.FailureDetail {
				fmt.Printf("  ... and %d more failures\n", len(report.Failed)-i)
				break
			}
			fmt.Printf("  %s: %s\n", f.Name, f.Reason)
		}
		return nil
	},
}

func init() {
	ingestCmd.Flags().StringVar(&ingestDir, "dir", "", "XML directory (default from config)")
	rootCmd.AddCommand(ingestCmd)
}
