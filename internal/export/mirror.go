// Package export mirrors the local filing store to a hosted Postgres
// database. Each collection is read in full and bulk-upserted, so a
// mirror run is idempotent and safe to re-run after partial failure.
package export

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/nonprofit-intel/internal/config"
	"github.com/sells-group/nonprofit-intel/internal/db"
	"github.com/sells-group/nonprofit-intel/internal/store"
)

// Mirror pushes the four entity collections from a source store into a
// Postgres pool.
type Mirror struct {
	src       store.Store
	pool      db.Pool
	batchSize int
	logger    *zap.Logger
}

func NewMirror(src store.Store, pool db.Pool, cfg config.ExportConfig) *Mirror {
	batch := cfg.BatchSize
	if batch <= 0 {
		batch = 2000
	}
	return &Mirror{
		src:       src,
		pool:      pool,
		batchSize: batch,
		logger:    zap.L().With(zap.String("component", "export")),
	}
}

// Run mirrors every collection concurrently and returns per-table row
// counts. The first failing collection cancels the rest.
func (m *Mirror) Run(ctx context.Context) (map[string]int64, error) {
	counts := make(map[string]int64, 4)
	g, ctx := errgroup.WithContext(ctx)
	results := make(chan [2]any, 4)

	for _, c := range []struct {
		table string
		push  func(context.Context) (int64, error)
	}{
		{"organizations", m.pushOrganizations},
		{"filings", m.pushFilings},
		{"executive_compensation", m.pushCompensation},
		{"derived_metrics", m.pushMetrics},
	} {
		g.Go(func() error {
			n, err := c.push(ctx)
			if err != nil {
				return eris.Wrapf(err, "export: mirror %s", c.table)
			}
			results <- [2]any{c.table, n}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	close(results)
	for r := range results {
		counts[r[0].(string)] = r[1].(int64)
	}
	m.logger.Info("mirror complete",
		zap.Int64("organizations", counts["organizations"]),
		zap.Int64("filings", counts["filings"]),
		zap.Int64("compensation", counts["executive_compensation"]),
		zap.Int64("metrics", counts["derived_metrics"]))
	return counts, nil
}

// upsertBatched splits rows into batches so one temp-table COPY never
// holds the whole dataset.
func (m *Mirror) upsertBatched(ctx context.Context, cfg db.UpsertConfig, rows [][]any) (int64, error) {
	var total int64
	for start := 0; start < len(rows); start += m.batchSize {
		end := start + m.batchSize
		if end > len(rows) {
			end = len(rows)
		}
		n, err := db.BulkUpsert(ctx, m.pool, cfg, rows[start:end])
		if err != nil {
			return total, err
		}
		total += n
	}
	return total, nil
}

func (m *Mirror) pushOrganizations(ctx context.Context) (int64, error) {
	orgs, err := m.src.ListOrganizations(ctx)
	if err != nil {
		return 0, err
	}
	rows := make([][]any, 0, len(orgs))
	for _, o := range orgs {
		rows = append(rows, []any{o.EIN, o.LegalName, o.City, o.State, o.NTEECode,
			o.MissionDesc, o.WebsiteURL, o.Phone, o.PrincipalOfficer})
	}
	return m.upsertBatched(ctx, db.UpsertConfig{
		Table: "organizations",
		Columns: []string{"ein", "legal_name", "city", "state", "ntee_code",
			"mission_desc", "website_url", "phone", "principal_officer"},
		ConflictKeys: []string{"ein"},
	}, rows)
}

func (m *Mirror) pushFilings(ctx context.Context) (int64, error) {
	filings, err := m.src.ListFilings(ctx)
	if err != nil {
		return 0, err
	}
	rows := make([][]any, 0, len(filings))
	for _, f := range filings {
		year := 0
		if f.TaxYear != nil {
			year = *f.TaxYear
		}
		rows = append(rows, []any{f.EIN, year, f.TaxPeriodEndDate, f.TotalAssetsEOY,
			f.TotalLiabilitiesEOY, f.NetAssetsEOY, f.TotalRevenueCY, f.TotalRevenuePY,
			f.TotalExpensesCY, f.TotalExpensesPY, f.ContributionsCY, f.ProgramServiceRevenueCY,
			f.InvestmentIncomeCY, f.OtherRevenueCY, f.SalariesCY, f.FundraisingExpensesCY,
			f.ProgramExpenses, f.SurplusDeficitCY, f.SourcePath})
	}
	return m.upsertBatched(ctx, db.UpsertConfig{
		Table: "filings",
		Columns: []string{"ein", "tax_year", "tax_period_end_date", "total_assets_eoy",
			"total_liabilities_eoy", "net_assets_eoy", "total_revenue_cy", "total_revenue_py",
			"total_expenses_cy", "total_expenses_py", "contributions_cy", "program_service_revenue_cy",
			"investment_income_cy", "other_revenue_cy", "salaries_cy", "fundraising_expenses_cy",
			"program_expenses", "surplus_deficit_cy", "source_path"},
		ConflictKeys: []string{"ein", "tax_year"},
	}, rows)
}

func (m *Mirror) pushCompensation(ctx context.Context) (int64, error) {
	comps, err := m.src.ListCompensation(ctx)
	if err != nil {
		return 0, err
	}
	rows := make([][]any, 0, len(comps))
	for _, c := range comps {
		year := 0
		if c.TaxYear != nil {
			year = *c.TaxYear
		}
		rows = append(rows, []any{c.EIN, year, c.Name, c.Title, c.AvgHoursPerWeek,
			c.CompFromOrg, c.CompFromRelatedOrg, c.OtherCompensation})
	}
	return m.upsertBatched(ctx, db.UpsertConfig{
		Table: "executive_compensation",
		Columns: []string{"ein", "tax_year", "officer_name", "title", "avg_hours_per_week",
			"comp_from_org", "comp_from_related_org", "other_compensation"},
		ConflictKeys: []string{"ein", "tax_year", "officer_name"},
	}, rows)
}

func (m *Mirror) pushMetrics(ctx context.Context) (int64, error) {
	metrics, err := m.src.ListMetrics(ctx)
	if err != nil {
		return 0, err
	}
	rows := make([][]any, 0, len(metrics))
	for _, d := range metrics {
		rows = append(rows, []any{d.EIN, d.TaxYear, d.RevenueGrowthYoY, d.AssetGrowthYoY,
			d.ProgramExpenseRatio, d.AdminExpenseRatio, d.FundraisingExpenseRatio,
			d.ExecCompPercentOfRevenue, d.LiabilityToAssetRatio, d.ContributionDependency,
			d.SurplusTrend, d.LeadScore})
	}
	return m.upsertBatched(ctx, db.UpsertConfig{
		Table: "derived_metrics",
		Columns: []string{"ein", "tax_year", "revenue_growth_yoy", "asset_growth_yoy",
			"program_expense_ratio", "admin_expense_ratio", "fundraising_expense_ratio",
			"exec_comp_percent_of_revenue", "liability_to_asset_ratio",
			"contribution_dependency_pct", "surplus_trend", "lead_score"},
		ConflictKeys: []string{"ein", "tax_year"},
	}, rows)
}
