package store

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/nonprofit-intel/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite. This is the
// default file-backed store the ingestion pipeline writes to.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens (creating if needed) a SQLite database at the given
// path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	if dir := filepath.Dir(dsn); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, eris.Wrapf(err, "sqlite: create db dir %s", dir)
		}
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
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
	total_assets_eoy           INTEGER,
	total_liabilities_eoy      INTEGER,
	net_assets_eoy             INTEGER,
	total_revenue_cy           INTEGER,
	total_revenue_py           INTEGER,
	total_expenses_cy          INTEGER,
	total_expenses_py          INTEGER,
	contributions_cy           INTEGER,
	program_service_revenue_cy INTEGER,
	investment_income_cy       INTEGER,
	other_revenue_cy           INTEGER,
	salaries_cy                INTEGER,
	fundraising_expenses_cy    INTEGER,
	program_expenses           INTEGER,
	surplus_deficit_cy         INTEGER,
	source_path                TEXT,
	PRIMARY KEY (ein, tax_year)
);

CREATE TABLE IF NOT EXISTS executive_compensation (
	ein                   TEXT NOT NULL,
	tax_year              INTEGER NOT NULL DEFAULT 0,
	officer_name          TEXT NOT NULL,
	title                 TEXT,
	avg_hours_per_week    REAL,
	comp_from_org         INTEGER,
	comp_from_related_org INTEGER,
	other_compensation    INTEGER,
	PRIMARY KEY (ein, tax_year, officer_name)
);

CREATE TABLE IF NOT EXISTS derived_metrics (
	ein                          TEXT NOT NULL,
	tax_year                     INTEGER NOT NULL,
	revenue_growth_yoy           REAL,
	asset_growth_yoy             REAL,
	program_expense_ratio        REAL,
	admin_expense_ratio          REAL,
	fundraising_expense_ratio    REAL,
	exec_comp_percent_of_revenue REAL,
	liability_to_asset_ratio     REAL,
	contribution_dependency_pct  REAL,
	surplus_trend                INTEGER,
	lead_score                   REAL,
	PRIMARY KEY (ein, tax_year)
);

CREATE TABLE IF NOT EXISTS ingest_runs (
	id           TEXT PRIMARY KEY,
	status       TEXT NOT NULL DEFAULT 'running',
	started_at   DATETIME NOT NULL,
	completed_at DATETIME,
	succeeded    INTEGER NOT NULL DEFAULT 0,
	failed       INTEGER NOT NULL DEFAULT 0,
	error        TEXT
);

CREATE INDEX IF NOT EXISTS idx_filings_ein ON filings(ein);
CREATE INDEX IF NOT EXISTS idx_comp_ein_year ON executive_compensation(ein, tax_year);
CREATE INDEX IF NOT EXISTS idx_metrics_score ON derived_metrics(lead_score);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) SaveFiling(ctx context.Context, snap *model.FilingSnapshot) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin save filing")
	}
	defer tx.Rollback()

	org := snap.Organization
	_, err = tx.ExecContext(ctx,
		`INSERT OR REPLACE INTO organizations
		 (ein, legal_name, city, state, ntee_code, mission_desc, website_url, phone, principal_officer)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		org.EIN, org.LegalName, org.City, org.State, org.NTEECode,
		org.MissionDesc, org.WebsiteURL, org.Phone, org.PrincipalOfficer,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: upsert organization %s", org.EIN)
	}

	// Missing tax years share the 0 key sentinel with the Postgres
	// driver so re-ingesting the same document replaces the row.
	f := snap.Filing
	year := taxYearOrZero(f.TaxYear)
	_, err = tx.ExecContext(ctx,
		`INSERT OR REPLACE INTO filings
		 (ein, tax_year, tax_period_end_date, total_assets_eoy, total_liabilities_eoy,
		  net_assets_eoy, total_revenue_cy, total_revenue_py, total_expenses_cy,
		  total_expenses_py, contributions_cy, program_service_revenue_cy,
		  investment_income_cy, other_revenue_cy, salaries_cy, fundraising_expenses_cy,
		  program_expenses, surplus_deficit_cy, source_path)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		f.EIN, year, f.TaxPeriodEndDate, f.TotalAssetsEOY, f.TotalLiabilitiesEOY,
		f.NetAssetsEOY, f.TotalRevenueCY, f.TotalRevenuePY, f.TotalExpensesCY,
		f.TotalExpensesPY, f.ContributionsCY, f.ProgramServiceRevenueCY,
		f.InvestmentIncomeCY, f.OtherRevenueCY, f.SalariesCY, f.FundraisingExpensesCY,
		f.ProgramExpenses, f.SurplusDeficitCY, f.SourcePath,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: upsert filing %s", f.EIN)
	}

	// Replace the full compensation set for this filing period.
	_, err = tx.ExecContext(ctx,
		`DELETE FROM executive_compensation WHERE ein = ? AND tax_year = ?`,
		f.EIN, year,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: clear compensation %s", f.EIN)
	}
	for _, o := range snap.Officers {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO executive_compensation
			 (ein, tax_year, officer_name, title, avg_hours_per_week,
			  comp_from_org, comp_from_related_org, other_compensation)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			f.EIN, year, o.Name, o.Title, o.AvgHoursPerWeek,
			o.CompFromOrg, o.CompFromRelatedOrg, o.OtherCompensation,
		)
		if err != nil {
			return eris.Wrapf(err, "sqlite: insert compensation %s/%s", f.EIN, o.Name)
		}
	}

	return eris.Wrapf(tx.Commit(), "sqlite: commit filing %s", f.EIN)
}

func (s *SQLiteStore) UpsertDerivedMetrics(ctx context.Context, metrics []model.DerivedMetric) error {
	if len(metrics) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin metrics upsert")
	}
	defer tx.Rollback()

	for _, m := range metrics {
		_, err = tx.ExecContext(ctx,
			`INSERT OR REPLACE INTO derived_metrics
			 (ein, tax_year, revenue_growth_yoy, asset_growth_yoy, program_expense_ratio,
			  admin_expense_ratio, fundraising_expense_ratio, exec_comp_percent_of_revenue,
			  liability_to_asset_ratio, contribution_dependency_pct, surplus_trend, lead_score)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			m.EIN, m.TaxYear, m.RevenueGrowthYoY, m.AssetGrowthYoY, m.ProgramExpenseRatio,
			m.AdminExpenseRatio, m.FundraisingExpenseRatio, m.ExecCompPercentOfRevenue,
			m.LiabilityToAssetRatio, m.ContributionDependency, m.SurplusTrend, m.LeadScore,
		)
		if err != nil {
			return eris.Wrapf(err, "sqlite: upsert metrics %s/%d", m.EIN, m.TaxYear)
		}
	}

	return eris.Wrap(tx.Commit(), "sqlite: commit metrics")
}

const filingColumns = `ein, tax_year, tax_period_end_date, total_assets_eoy,
	total_liabilities_eoy, net_assets_eoy, total_revenue_cy, total_revenue_py,
	total_expenses_cy, total_expenses_py, contributions_cy, program_service_revenue_cy,
	investment_income_cy, other_revenue_cy, salaries_cy, fundraising_expenses_cy,
	program_expenses, surplus_deficit_cy, source_path`

func (s *SQLiteStore) ListFilings(ctx context.Context) ([]model.Filing, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+filingColumns+` FROM filings ORDER BY ein, tax_year`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list filings")
	}
	defer rows.Close()
	return scanFilings(rows)
}

func (s *SQLiteStore) ListFilingsByEIN(ctx context.Context, ein string) ([]model.Filing, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+filingColumns+` FROM filings WHERE ein = ? ORDER BY tax_year`, ein)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: list filings for %s", ein)
	}
	defer rows.Close()
	return scanFilings(rows)
}

func scanFilings(rows *sql.Rows) ([]model.Filing, error) {
	var filings []model.Filing
	for rows.Next() {
		var f model.Filing
		var year int
		var sourcePath sql.NullString
		err := rows.Scan(
			&f.EIN, &year, &f.TaxPeriodEndDate, &f.TotalAssetsEOY,
			&f.TotalLiabilitiesEOY, &f.NetAssetsEOY, &f.TotalRevenueCY, &f.TotalRevenuePY,
			&f.TotalExpensesCY, &f.TotalExpensesPY, &f.ContributionsCY, &f.ProgramServiceRevenueCY,
			&f.InvestmentIncomeCY, &f.OtherRevenueCY, &f.SalariesCY, &f.FundraisingExpensesCY,
			&f.ProgramExpenses, &f.SurplusDeficitCY, &sourcePath,
		)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan filing")
		}
		if year != 0 {
			f.TaxYear = &year
		}
		f.SourcePath = sourcePath.String
		filings = append(filings, f)
	}
	return filings, eris.Wrap(rows.Err(), "sqlite: iterate filings")
}

func (s *SQLiteStore) ListCompensation(ctx context.Context) ([]Compensation, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT ein, tax_year, officer_name, title, avg_hours_per_week,
		        comp_from_org, comp_from_related_org, other_compensation
		 FROM executive_compensation ORDER BY ein, tax_year, officer_name`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list compensation")
	}
	defer rows.Close()

	var comps []Compensation
	for rows.Next() {
		var c Compensation
		var year int
		err := rows.Scan(&c.EIN, &year, &c.Name, &c.Title, &c.AvgHoursPerWeek,
			&c.CompFromOrg, &c.CompFromRelatedOrg, &c.OtherCompensation)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan compensation")
		}
		if year != 0 {
			c.TaxYear = &year
		}
		comps = append(comps, c)
	}
	return comps, eris.Wrap(rows.Err(), "sqlite: iterate compensation")
}

func (s *SQLiteStore) ListOrganizations(ctx context.Context) ([]model.Organization, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT ein, legal_name, city, state, ntee_code, mission_desc,
		        website_url, phone, principal_officer
		 FROM organizations ORDER BY ein`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list organizations")
	}
	defer rows.Close()

	var orgs []model.Organization
	for rows.Next() {
		var o model.Organization
		err := rows.Scan(&o.EIN, &o.LegalName, &o.City, &o.State, &o.NTEECode,
			&o.MissionDesc, &o.WebsiteURL, &o.Phone, &o.PrincipalOfficer)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan organization")
		}
		orgs = append(orgs, o)
	}
	return orgs, eris.Wrap(rows.Err(), "sqlite: iterate organizations")
}

func (s *SQLiteStore) GetOrganization(ctx context.Context, ein string) (*model.Organization, error) {
	var o model.Organization
	err := s.db.QueryRowContext(ctx,
		`SELECT ein, legal_name, city, state, ntee_code, mission_desc,
		        website_url, phone, principal_officer
		 FROM organizations WHERE ein = ?`, ein).
		Scan(&o.EIN, &o.LegalName, &o.City, &o.State, &o.NTEECode,
			&o.MissionDesc, &o.WebsiteURL, &o.Phone, &o.PrincipalOfficer)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get organization %s", ein)
	}
	return &o, nil
}

const metricColumns = `ein, tax_year, revenue_growth_yoy, asset_growth_yoy, program_expense_ratio,
	admin_expense_ratio, fundraising_expense_ratio, exec_comp_percent_of_revenue,
	liability_to_asset_ratio, contribution_dependency_pct, surplus_trend, lead_score`

func (s *SQLiteStore) ListMetrics(ctx context.Context) ([]model.DerivedMetric, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+metricColumns+` FROM derived_metrics ORDER BY ein, tax_year`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list metrics")
	}
	defer rows.Close()
	return scanMetrics(rows)
}

func (s *SQLiteStore) ListMetricsByEIN(ctx context.Context, ein string) ([]model.DerivedMetric, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+metricColumns+` FROM derived_metrics WHERE ein = ? ORDER BY tax_year`, ein)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: list metrics for %s", ein)
	}
	defer rows.Close()
	return scanMetrics(rows)
}

func scanMetrics(rows *sql.Rows) ([]model.DerivedMetric, error) {
	var metrics []model.DerivedMetric
	for rows.Next() {
		var m model.DerivedMetric
		err := rows.Scan(&m.EIN, &m.TaxYear, &m.RevenueGrowthYoY, &m.AssetGrowthYoY,
			&m.ProgramExpenseRatio, &m.AdminExpenseRatio, &m.FundraisingExpenseRatio,
			&m.ExecCompPercentOfRevenue, &m.LiabilityToAssetRatio, &m.ContributionDependency,
			&m.SurplusTrend, &m.LeadScore)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan metrics")
		}
		metrics = append(metrics, m)
	}
	return metrics, eris.Wrap(rows.Err(), "sqlite: iterate metrics")
}

func (s *SQLiteStore) TopProspects(ctx context.Context, minScore float64, limit int) ([]Prospect, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT o.ein, o.legal_name, o.city, o.state, d.tax_year, d.lead_score,
		        d.revenue_growth_yoy, d.program_expense_ratio, f.total_revenue_cy
		 FROM organizations o
		 JOIN derived_metrics d ON d.ein = o.ein
		 LEFT JOIN filings f ON f.ein = d.ein AND f.tax_year = d.tax_year
		 WHERE d.lead_score IS NOT NULL
		   AND d.lead_score >= ?
		   AND d.tax_year = (SELECT MAX(tax_year) FROM derived_metrics WHERE ein = o.ein)
		 ORDER BY d.lead_score DESC
		 LIMIT ?`, minScore, limit)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: top prospects")
	}
	defer rows.Close()

	var prospects []Prospect
	for rows.Next() {
		var p Prospect
		err := rows.Scan(&p.EIN, &p.LegalName, &p.City, &p.State, &p.TaxYear,
			&p.LeadScore, &p.RevenueGrowthYoY, &p.ProgramExpenseRatio, &p.TotalRevenueCY)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan prospect")
		}
		prospects = append(prospects, p)
	}
	return prospects, eris.Wrap(rows.Err(), "sqlite: iterate prospects")
}

func (s *SQLiteStore) Counts(ctx context.Context) (map[string]int64, error) {
	counts := make(map[string]int64, 4)
	for _, table := range []string{"organizations", "filings", "executive_compensation", "derived_metrics"} {
		var n int64
		if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM `+table).Scan(&n); err != nil {
			return nil, eris.Wrapf(err, "sqlite: count %s", table)
		}
		counts[table] = n
	}
	return counts, nil
}

func (s *SQLiteStore) StartIngestRun(ctx context.Context) (string, error) {
	id := uuid.New().String()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO ingest_runs (id, status, started_at) VALUES (?, 'running', ?)`,
		id, time.Now().UTC(),
	)
	if err != nil {
		return "", eris.Wrap(err, "sqlite: start ingest run")
	}
	return id, nil
}

func (s *SQLiteStore) CompleteIngestRun(ctx context.Context, id string, succeeded, failed int) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE ingest_runs SET status = 'complete', completed_at = ?, succeeded = ?, failed = ?
		 WHERE id = ?`,
		time.Now().UTC(), succeeded, failed, id,
	)
	return eris.Wrapf(err, "sqlite: complete ingest run %s", id)
}

func (s *SQLiteStore) FailIngestRun(ctx context.Context, id, errMsg string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE ingest_runs SET status = 'failed', completed_at = ?, error = ? WHERE id = ?`,
		time.Now().UTC(), errMsg, id,
	)
	return eris.Wrapf(err, "sqlite: fail ingest run %s", id)
}
