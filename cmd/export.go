package main

import (
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/nonprofit-intel/internal/export"
	"github.com/sells-group/nonprofit-intel/internal/store"
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Mirror the local store to the hosted Postgres database",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if cfg.Export.DatabaseURL == "" {
			return eris.New("export database URL is required (NPI_EXPORT_DATABASE_URL)")
		}

		src, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer src.Close()

		dst, err := store.NewPostgres(ctx, cfg.Export.DatabaseURL)
		if err != nil {
			return err
		}
		defer dst.Close()
		if err := dst.Migrate(ctx); err != nil {
			return err
		}

		counts, err := export.NewMirror(src, dst.Pool(), cfg.Export).Run(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("Mirrored %d organizations, %d filings, %d compensation rows, %d metric rows\n",
			counts["organizations"], counts["filings"],
			counts["executive_compensation"], counts["derived_metrics"])
		return nil
	},
}

func init() {
	rootCmd.AddCommand(exportCmd)
}
