package main

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/nonprofit-intel/internal/store"
)

var (
	reportFormat   string
	reportOut      string
	reportLimit    int
	reportMinScore float64
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "List top-scored prospect organizations",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := initStore(cmd.Context())
		if err != nil {
			return err
		}
		defer s.Close()

		prospects, err := s.TopProspects(cmd.Context(), reportMinScore, reportLimit)
		if err != nil {
			return err
		}

		switch reportFormat {
		case "table":
			return writeTable(prospects)
		case "csv":
			return writeCSV(prospects, reportOut)
		case "xlsx":
			if reportOut == "" {
				return eris.New("--out is required for xlsx output")
			}
			return writeXLSX(prospects, reportOut)
		default:
			return eris.Errorf("unsupported format: %s", reportFormat)
		}
	},
}

func init() {
	reportCmd.Flags().StringVar(&reportFormat, "format", "table", "output format: table, csv, xlsx")
	reportCmd.Flags().StringVar(&reportOut, "out", "", "output file (defaults to stdout for csv)")
	reportCmd.Flags().IntVar(&reportLimit, "limit", 25, "maximum rows")
	reportCmd.Flags().Float64Var(&reportMinScore, "min-score", 0, "minimum lead score")
	rootCmd.AddCommand(reportCmd)
}

var reportHeader = []string{"EIN", "Organization", "City", "State", "Year", "Lead Score", "Revenue Growth", "Program Ratio", "Revenue"}

func prospectRow(p store.Prospect) []string {
	return []string{
		p.EIN,
		strOr(p.LegalName),
		strOr(p.City),
		strOr(p.State),
		strconv.Itoa(p.TaxYear),
		fmt.Sprintf("%.1f", p.LeadScore),
		floatOr(p.RevenueGrowthYoY),
		floatOr(p.ProgramExpenseRatio),
		intOr(p.TotalRevenueCY),
	}
}

func writeTable(prospects []store.Prospect) error {
	fmt.Printf("%-11s %-40s %-5s %5s %7s %8s %8s %12s\n",
		"EIN", "Organization", "State", "Year", "Score", "Growth", "Program", "Revenue")
	for _, p := range prospects {
		fmt.Printf("%-11s %-40.40s %-5s %5d %7.1f %8s %8s %12s\n",
			p.EIN, strOr(p.LegalName), strOr(p.State), p.TaxYear, p.LeadScore,
			floatOr(p.RevenueGrowthYoY), floatOr(p.ProgramExpenseRatio), intOr(p.TotalRevenueCY))
	}
	fmt.Printf("\n%d prospects\n", len(prospects))
	return nil
}

func writeCSV(prospects []store.Prospect, out string) error {
	f := os.Stdout
	if out != "" {
		var err error
		f, err = os.Create(out)
		if err != nil {
			return eris.Wrapf(err, "create %s", out)
		}
		defer f.Close()
	}

	w := csv.NewWriter(f)
	if err := w.Write(reportHeader); err != nil {
		return eris.Wrap(err, "write csv header")
	}
	for _, p := range prospects {
		if err := w.Write(prospectRow(p)); err != nil {
			return eris.Wrap(err, "write csv row")
		}
	}
	w.Flush()
	return eris.Wrap(w.Error(), "flush csv")
}

func writeXLSX(prospects []store.Prospect, out string) error {
	f := xlsx.NewFile()
	sheet, err := f.AddSheet("Prospects")
	if err != nil {
		return eris.Wrap(err, "add sheet")
	}

	header := sheet.AddRow()
	for _, h := range reportHeader {
		header.AddCell().SetString(h)
	}
	for _, p := range prospects {
		row := sheet.AddRow()
		for _, v := range prospectRow(p) {
			row.AddCell().SetString(v)
		}
	}

	return eris.Wrapf(f.Save(out), "save %s", out)
}

func strOr(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func floatOr(f *float64) string {
	if f == nil {
		return ""
	}
	return fmt.Sprintf("%.3f", *f)
}

func intOr(i *int64) string {
	if i == nil {
		return ""
	}
	return strconv.FormatInt(*i, 10)
}
