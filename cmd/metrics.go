package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sells-group/nonprofit-intel/internal/metrics"
)

var metricsCmd = &cobra.Command{
	Use:   "metrics",
	Short: "Recompute derived metrics over every stored filing",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := initStore(cmd.Context())
		if err != nil {
			return err
		}
		defer s.Close()

		n, err := metrics.NewEngine(s, cfg.Score).Recompute(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Printf("Wrote %d metric rows\n", n)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(metricsCmd)
}
