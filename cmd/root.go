package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/nonprofit-intel/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "nonprofit-intel",
	Short: "Nonprofit filing ingestion and prospect scoring pipeline",
	Long:  "Parses IRS Form 990 XML filings into a local financial record store, derives year-over-year metrics and a composite lead score, and mirrors results to a hosted database.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
