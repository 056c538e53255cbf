package store

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/nonprofit-intel/internal/db"
	"github.com/sells-group/nonprofit-intel/internal/model"
)

// PostgresStore implements Store over a pgx pool. It backs the hosted
// mirror of the pipeline and the export target.
type PostgresStore struct {
	pool db.Pool
}

// NewPostgres connects to Postgres with the given DSN.
func NewPostgres(ctx context.Context, dsn string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: connect")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool}, nil
}

// NewPostgresFromPool wraps an existing pool (tests use pgxmock here).
func NewPostgresFromPool(pool db.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Pool exposes the underlying pool for bulk mirror writes.
func (s *PostgresStore) Pool() db.Pool { return s.pool }

const postgresMigration = `
CREATE TABLE IF NOT EXISTS organizations (
	ein               TEXT PRIMARY KEY,
	legal_name        TEXT,
	city              TEXT,
	state             TEXT,
	ntee_code         TEXT,
	mission_desc      TEXT,
	website_url       TEXT,
	phone             TEXT,
	principal_officer TEXT
);

CREATE TABLE IF NOT EXISTS filings (
	ein                        TEXT NOT NULL,
	tax_year                   INTEGER NOT NULL DEFAULT 0,
	tax_period_end_date        TEXT,
	total_assets_eoy           BIGINT,
	total_liabilities_eoy      BIGINT,
	net_assets_eoy             BIGINT,
	total_revenue_cy           BIGINT,
	total_revenue_py           BIGINT,
	total_expenses_cy          BIGINT,
	total_expenses_py          BIGINT,
	contributions_cy           BIGINT,
	program_service_revenue_cy BIGINT,
	investment_income_cy       BIGINT,
	other_revenue_cy           BIGINT,
	salaries_cy                BIGINT,
	fundraising_expenses_cy    BIGINT,
	program_expenses           BIGINT,
	surplus_deficit_cy         BIGINT,
	source_path                TEXT,
	PRIMARY KEY (ein, tax_year)
);

CREATE TABLE IF NOT EXISTS executive_compensation (
	ein                   TEXT NOT NULL,
	tax_year              INTEGER NOT NULL DEFAULT 0,
	officer_name          TEXT NOT NULL,
	title                 TEXT,
	avg_hours_per_week    DOUBLE PRECISION,
	comp_from_org         BIGINT,
	comp_from_related_org BIGINT,
	other_compensation    BIGINT,
	PRIMARY KEY (ein, tax_year, officer_name)
);

CREATE TABLE IF NOT EXISTS derived_metrics (
	ein                          TEXT NOT NULL,
	tax_year                     INTEGER NOT NULL,
	revenue_growth_yoy           DOUBLE PRECISION,
	asset_growth_yoy             DOUBLE PRECISION,
	program_expense_ratio        DOUBLE PRECISION,
	admin_expense_ratio          DOUBLE PRECISION,
	fundraising_expense_ratio    DOUBLE PRECISION,
	exec_comp_percent_of_revenue DOUBLE PRECISION,
	liability_to_asset_ratio     DOUBLE PRECISION,
	contribution_dependency_pct  DOUBLE PRECISION,
	surplus_trend                INTEGER,
	lead_score                   DOUBLE PRECISION,
	PRIMARY KEY (ein, tax_year)
);

CREATE TABLE IF NOT EXISTS ingest_runs (
	id           TEXT PRIMARY KEY,
	status       TEXT NOT NULL DEFAULT 'running',
	started_at   TIMESTAMPTZ NOT NULL,
	completed_at TIMESTAMPTZ,
	succeeded    INTEGER NOT NULL DEFAULT 0,
	failed       INTEGER NOT NULL DEFAULT 0,
	error        TEXT
);

CREATE INDEX IF NOT EXISTS idx_filings_ein ON filings(ein);
CREATE INDEX IF NOT EXISTS idx_comp_ein_year ON executive_compensation(ein, tax_year);
CREATE INDEX IF NOT EXISTS idx_metrics_score ON derived_metrics(lead_score);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

// taxYearOrZero maps a missing tax year onto the key sentinel 0 so the
// composite primary key stays NOT NULL. The metrics pass never touches
// these rows (they cannot join year-over-year).
func taxYearOrZero(y *int) int {
	if y == nil {
		return 0
	}
	return *y
}

func (s *PostgresStore) SaveFiling(ctx context.Context, snap *model.FilingSnapshot) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "postgres: begin save filing")
	}
	defer tx.Rollback(ctx)

	org := snap.Organization
	_, err = tx.Exec(ctx,
		`INSERT INTO organizations
		 (ein, legal_name, city, state, ntee_code, mission_desc, website_url, phone, principal_officer)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 ON CONFLICT (ein) DO UPDATE SET
		   legal_name = EXCLUDED.legal_name, city = EXCLUDED.city, state = EXCLUDED.state,
		   ntee_code = EXCLUDED.ntee_code, mission_desc = EXCLUDED.mission_desc,
		   website_url = EXCLUDED.website_url, phone = EXCLUDED.phone,
		   principal_officer = EXCLUDED.principal_officer`,
		org.EIN, org.LegalName, org.City, org.State, org.NTEECode,
		org.MissionDesc, org.WebsiteURL, org.Phone, org.PrincipalOfficer,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: upsert organization %s", org.EIN)
	}

	f := snap.Filing
	year := taxYearOrZero(f.TaxYear)
	_, err = tx.Exec(ctx,
		`INSERT INTO filings
		 (ein, tax_year, tax_period_end_date, total_assets_eoy, total_liabilities_eoy,
		  net_assets_eoy, total_revenue_cy, total_revenue_py, total_expenses_cy,
		  total_expenses_py, contributions_cy, program_service_revenue_cy,
		  investment_income_cy, other_revenue_cy, salaries_cy, fundraising_expenses_cy,
		  program_expenses, surplus_deficit_cy, source_path)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)
		 ON CONFLICT (ein, tax_year) DO UPDATE SET
		   tax_period_end_date = EXCLUDED.tax_period_end_date,
		   total_assets_eoy = EXCLUDED.total_assets_eoy,
		   total_liabilities_eoy = EXCLUDED.total_liabilities_eoy,
		   net_assets_eoy = EXCLUDED.net_assets_eoy,
		   total_revenue_cy = EXCLUDED.total_revenue_cy,
		   total_revenue_py = EXCLUDED.total_revenue_py,
		   total_expenses_cy = EXCLUDED.total_expenses_cy,
		   total_expenses_py = EXCLUDED.total_expenses_py,
		   contributions_cy = EXCLUDED.contributions_cy,
		   program_service_revenue_cy = EXCLUDED.program_service_revenue_cy,
		   investment_income_cy = EXCLUDED.investment_income_cy,
		   other_revenue_cy = EXCLUDED.other_revenue_cy,
		   salaries_cy = EXCLUDED.salaries_cy,
		   fundraising_expenses_cy = EXCLUDED.fundraising_expenses_cy,
		   program_expenses = EXCLUDED.program_expenses,
		   surplus_deficit_cy = EXCLUDED.surplus_deficit_cy,
		   source_path = EXCLUDED.source_path`,
		f.EIN, year, f.TaxPeriodEndDate, f.TotalAssetsEOY, f.TotalLiabilitiesEOY,
		f.NetAssetsEOY, f.TotalRevenueCY, f.TotalRevenuePY, f.TotalExpensesCY,
		f.TotalExpensesPY, f.ContributionsCY, f.ProgramServiceRevenueCY,
		f.InvestmentIncomeCY, f.OtherRevenueCY, f.SalariesCY, f.FundraisingExpensesCY,
		f.ProgramExpenses, f.SurplusDeficitCY, f.SourcePath,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: upsert filing %s", f.EIN)
	}

	if _, err = tx.Exec(ctx,
		`DELETE FROM executive_compensation WHERE ein = $1 AND tax_year = $2`,
		f.EIN, year,
	); err != nil {
		return eris.Wrapf(err, "postgres: clear compensation %s", f.EIN)
	}
	for _, o := range snap.Officers {
		if _, err = tx.Exec(ctx,
			`INSERT INTO executive_compensation
			 (ein, tax_year, officer_name, title, avg_hours_per_week,
			  comp_from_org, comp_from_related_org, other_compensation)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			f.EIN, year, o.Name, o.Title, o.AvgHoursPerWeek,
			o.CompFromOrg, o.CompFromRelatedOrg, o.OtherCompensation,
		); err != nil {
			return eris.Wrapf(err, "postgres: insert compensation %s/%s", f.EIN, o.Name)
		}
	}

	return eris.Wrapf(tx.Commit(ctx), "postgres: commit filing %s", f.EIN)
}

func (s *PostgresStore) UpsertDerivedMetrics(ctx context.Context, metrics []model.DerivedMetric) error {
	if len(metrics) == 0 {
		return nil
	}

	columns := []string{"ein", "tax_year", "revenue_growth_yoy", "asset_growth_yoy",
		"program_expense_ratio", "admin_expense_ratio", "fundraising_expense_ratio",
		"exec_comp_percent_of_revenue", "liability_to_asset_ratio",
		"contribution_dependency_pct", "surplus_trend", "lead_score"}

	rows := make([][]any, 0, len(metrics))
	for _, m := range metrics {
		rows = append(rows, []any{
			m.EIN, m.TaxYear, m.RevenueGrowthYoY, m.AssetGrowthYoY,
			m.ProgramExpenseRatio, m.AdminExpenseRatio, m.FundraisingExpenseRatio,
			m.ExecCompPercentOfRevenue, m.LiabilityToAssetRatio,
			m.ContributionDependency, m.SurplusTrend, m.LeadScore,
		})
	}

	_, err := db.BulkUpsert(ctx, s.pool, db.UpsertConfig{
		Table:        "derived_metrics",
		Columns:      columns,
		ConflictKeys: []string{"ein", "tax_year"},
	}, rows)
	return eris.Wrap(err, "postgres: upsert derived metrics")
}

const pgFilingColumns = `ein, tax_year, tax_period_end_date, total_assets_eoy,
	total_liabilities_eoy, net_assets_eoy, total_revenue_cy, total_revenue_py,
	total_expenses_cy, total_expenses_py, contributions_cy, program_service_revenue_cy,
	investment_income_cy, other_revenue_cy, salaries_cy, fundraising_expenses_cy,
	program_expenses, surplus_deficit_cy, source_path`

func (s *PostgresStore) ListFilings(ctx context.Context) ([]model.Filing, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+pgFilingColumns+` FROM filings ORDER BY ein, tax_year`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list filings")
	}
	defer rows.Close()
	return scanPgFilings(rows)
}

func (s *PostgresStore) ListFilingsByEIN(ctx context.Context, ein string) ([]model.Filing, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+pgFilingColumns+` FROM filings WHERE ein = $1 ORDER BY tax_year`, ein)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: list filings for %s", ein)
	}
	defer rows.Close()
	return scanPgFilings(rows)
}

func scanPgFilings(rows pgx.Rows) ([]model.Filing, error) {
	var filings []model.Filing
	for rows.Next() {
		var f model.Filing
		var year int
		var sourcePath *string
		err := rows.Scan(
			&f.EIN, &year, &f.TaxPeriodEndDate, &f.TotalAssetsEOY,
			&f.TotalLiabilitiesEOY, &f.NetAssetsEOY, &f.TotalRevenueCY, &f.TotalRevenuePY,
			&f.TotalExpensesCY, &f.TotalExpensesPY, &f.ContributionsCY, &f.ProgramServiceRevenueCY,
			&f.InvestmentIncomeCY, &f.OtherRevenueCY, &f.SalariesCY, &f.FundraisingExpensesCY,
			&f.ProgramExpenses, &f.SurplusDeficitCY, &sourcePath,
		)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan filing")
		}
		if year != 0 {
			f.TaxYear = &year
		}
		if sourcePath != nil {
			f.SourcePath = *sourcePath
		}
		filings = append(filings, f)
	}
	return filings, eris.Wrap(rows.Err(), "postgres: iterate filings")
}

func (s *PostgresStore) ListCompensation(ctx context.Context) ([]Compensation, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT ein, tax_year, officer_name, title, avg_hours_per_week,
		        comp_from_org, comp_from_related_org, other_compensation
		 FROM executive_compensation ORDER BY ein, tax_year, officer_name`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list compensation")
	}
	defer rows.Close()

	var comps []Compensation
	for rows.Next() {
		var c Compensation
		var year int
		err := rows.Scan(&c.EIN, &year, &c.Name, &c.Title, &c.AvgHoursPerWeek,
			&c.CompFromOrg, &c.CompFromRelatedOrg, &c.OtherCompensation)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan compensation")
		}
		if year != 0 {
			c.TaxYear = &year
		}
		comps = append(comps, c)
	}
	return comps, eris.Wrap(rows.Err(), "postgres: iterate compensation")
}

func (s *PostgresStore) ListOrganizations(ctx context.Context) ([]model.Organization, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT ein, legal_name, city, state, ntee_code, mission_desc,
		        website_url, phone, principal_officer
		 FROM organizations ORDER BY ein`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list organizations")
	}
	defer rows.Close()

	var orgs []model.Organization
	for rows.Next() {
		var o model.Organization
		err := rows.Scan(&o.EIN, &o.LegalName, &o.City, &o.State, &o.NTEECode,
			&o.MissionDesc, &o.WebsiteURL, &o.Phone, &o.PrincipalOfficer)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan organization")
		}
		orgs = append(orgs, o)
	}
	return orgs, eris.Wrap(rows.Err(), "postgres: iterate organizations")
}

func (s *PostgresStore) GetOrganization(ctx context.Context, ein string) (*model.Organization, error) {
	var o model.Organization
	err := s.pool.QueryRow(ctx,
		`SELECT ein, legal_name, city, state, ntee_code, mission_desc,
		        website_url, phone, principal_officer
		 FROM organizations WHERE ein = $1`, ein).
		Scan(&o.EIN, &o.LegalName, &o.City, &o.State, &o.NTEECode,
			&o.MissionDesc, &o.WebsiteURL, &o.Phone, &o.PrincipalOfficer)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get organization %s", ein)
	}
	return &o, nil
}

func (s *PostgresStore) ListMetrics(ctx context.Context) ([]model.DerivedMetric, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+metricColumns+` FROM derived_metrics ORDER BY ein, tax_year`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list metrics")
	}
	defer rows.Close()
	return scanPgMetrics(rows)
}

func (s *PostgresStore) ListMetricsByEIN(ctx context.Context, ein string) ([]model.DerivedMetric, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+metricColumns+` FROM derived_metrics WHERE ein = $1 ORDER BY tax_year`, ein)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: list metrics for %s", ein)
	}
	defer rows.Close()
	return scanPgMetrics(rows)
}

func scanPgMetrics(rows pgx.Rows) ([]model.DerivedMetric, error) {
	var metrics []model.DerivedMetric
	for rows.Next() {
		var m model.DerivedMetric
		err := rows.Scan(&m.EIN, &m.TaxYear, &m.RevenueGrowthYoY, &m.AssetGrowthYoY,
			&m.ProgramExpenseRatio, &m.AdminExpenseRatio, &m.FundraisingExpenseRatio,
			&m.ExecCompPercentOfRevenue, &m.LiabilityToAssetRatio, &m.ContributionDependency,
			&m.SurplusTrend, &m.LeadScore)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan metrics")
		}
		metrics = append(metrics, m)
	}
	return metrics, eris.Wrap(rows.Err(), "postgres: iterate metrics")
}

func (s *PostgresStore) TopProspects(ctx context.Context, minScore float64, limit int) ([]Prospect, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.pool.Query(ctx,
		`SELECT o.ein, o.legal_name, o.city, o.state, d.tax_year, d.lead_score,
		        d.revenue_growth_yoy, d.program_expense_ratio, f.total_revenue_cy
		 FROM organizations o
		 JOIN derived_metrics d ON d.ein = o.ein
		 LEFT JOIN filings f ON f.ein = d.ein AND f.tax_year = d.tax_year
		 WHERE d.lead_score IS NOT NULL
		   AND d.lead_score >= $1
		   AND d.tax_year = (SELECT MAX(tax_year) FROM derived_metrics WHERE ein = o.ein)
		 ORDER BY d.lead_score DESC
		 LIMIT $2`, minScore, limit)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: top prospects")
	}
	defer rows.Close()

	var prospects []Prospect
	for rows.Next() {
		var p Prospect
		err := rows.Scan(&p.EIN, &p.LegalName, &p.City, &p.State, &p.TaxYear,
			&p.LeadScore, &p.RevenueGrowthYoY, &p.ProgramExpenseRatio, &p.TotalRevenueCY)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan prospect")
		}
		prospects = append(prospects, p)
	}
	return prospects, eris.Wrap(rows.Err(), "postgres: iterate prospects")
}

func (s *PostgresStore) Counts(ctx context.Context) (map[string]int64, error) {
	counts := make(map[string]int64, 4)
	for _, table := range []string{"organizations", "filings", "executive_compensation", "derived_metrics"} {
		var n int64
		if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM `+table).Scan(&n); err != nil {
			return nil, eris.Wrapf(err, "postgres: count %s", table)
		}
		counts[table] = n
	}
	return counts, nil
}

func (s *PostgresStore) StartIngestRun(ctx context.Context) (string, error) {
	id := uuid.New().String()
	_, err := s.pool.Exec(ctx,
		`INSERT INTO ingest_runs (id, status, started_at) VALUES ($1, 'running', $2)`,
		id, time.Now().UTC(),
	)
	if err != nil {
		return "", eris.Wrap(err, "postgres: start ingest run")
	}
	return id, nil
}

func (s *PostgresStore) CompleteIngestRun(ctx context.Context, id string, succeeded, failed int) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE ingest_runs SET status = 'complete', completed_at = $1, succeeded = $2, failed = $3
		 WHERE id = $4`,
		time.Now().UTC(), succeeded, failed, id,
	)
	return eris.Wrapf(err, "postgres: complete ingest run %s", id)
}

func (s *PostgresStore) FailIngestRun(ctx context.Context, id, errMsg string) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE ingest_runs SET status = 'failed', completed_at = $1, error = $2 WHERE id = $3`,
		time.Now().UTC(), errMsg, id,
	)
	return eris.Wrapf(err, "postgres: fail ingest run %s", id)
}
