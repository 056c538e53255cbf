package store

import (
	"context"
	"testing"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockPostgres(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return NewPostgresFromPool(mock), mock
}

func anyArgs(n int) []any {
	args := make([]any, n)
	for i := range args {
		args[i] = pgxmock.AnyArg()
	}
	return args
}

func TestPostgresSaveFiling_Commits(t *testing.T) {
	s, mock := newMockPostgres(t)
	snap := sampleSnapshot(2023)

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO organizations`).
		WithArgs(anyArgs(9)...).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(`INSERT INTO filings`).
		WithArgs(anyArgs(19)...).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(`DELETE FROM executive_compensation`).
		WithArgs("841234567", 2023).
		WillReturnResult(pgxmock.NewResult("DELETE", 0))
	for range snap.Officers {
		mock.ExpectExec(`INSERT INTO executive_compensation`).
			WithArgs(anyArgs(8)...).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))
	}
	mock.ExpectCommit()
	mock.ExpectRollback()

	require.NoError(t, s.SaveFiling(context.Background(), snap))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresSaveFiling_RollsBackOnFilingError(t *testing.T) {
	s, mock := newMockPostgres(t)

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO organizations`).
		WithArgs(anyArgs(9)...).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(`INSERT INTO filings`).
		WithArgs(anyArgs(19)...).
		WillReturnError(assert.AnError)
	mock.ExpectRollback()

	err := s.SaveFiling(context.Background(), sampleSnapshot(2023))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "upsert filing")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresSaveFiling_NilTaxYearUsesSentinel(t *testing.T) {
	s, mock := newMockPostgres(t)
	snap := sampleSnapshot(2023)
	snap.Filing.TaxYear = nil
	snap.Officers = nil

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO organizations`).
		WithArgs(anyArgs(9)...).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(`INSERT INTO filings`).
		WithArgs(anyArgs(19)...).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(`DELETE FROM executive_compensation`).
		WithArgs("841234567", 0).
		WillReturnResult(pgxmock.NewResult("DELETE", 0))
	mock.ExpectCommit()
	mock.ExpectRollback()

	require.NoError(t, s.SaveFiling(context.Background(), snap))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresGetOrganization_Missing(t *testing.T) {
	s, mock := newMockPostgres(t)

	mock.ExpectQuery(`SELECT ein, legal_name`).
		WithArgs("000000000").
		WillReturnRows(pgxmock.NewRows([]string{
			"ein", "legal_name", "city", "state", "ntee_code",
			"mission_desc", "website_url", "phone", "principal_officer",
		}))

	org, err := s.GetOrganization(context.Background(), "000000000")
	require.NoError(t, err)
	assert.Nil(t, org)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresMigrate(t *testing.T) {
	s, mock := newMockPostgres(t)

	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS organizations`).
		WillReturnResult(pgxmock.NewResult("CREATE", 0))

	require.NoError(t, s.Migrate(context.Background()))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresIngestRunLog(t *testing.T) {
	s, mock := newMockPostgres(t)
	ctx := context.Background()

	mock.ExpectExec(`INSERT INTO ingest_runs`).
		WithArgs(anyArgs(2)...).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	id, err := s.StartIngestRun(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, id)

	mock.ExpectExec(`UPDATE ingest_runs SET status = 'complete'`).
		WithArgs(anyArgs(4)...).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	require.NoError(t, s.CompleteIngestRun(ctx, id, 10, 1))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresListMetricsByEIN(t *testing.T) {
	s, mock := newMockPostgres(t)

	rows := pgxmock.NewRows([]string{
		"ein", "tax_year", "revenue_growth_yoy", "asset_growth_yoy", "program_expense_ratio",
		"admin_expense_ratio", "fundraising_expense_ratio", "exec_comp_percent_of_revenue",
		"liability_to_asset_ratio", "contribution_dependency_pct", "surplus_trend", "lead_score",
	}).AddRow("841234567", 2023, f64Ptr(0.2), nil, f64Ptr(0.8), nil, nil, nil, nil, nil, intPtr(1), f64Ptr(62.5))
	mock.ExpectQuery(`SELECT ein, tax_year, revenue_growth_yoy`).
		WithArgs("841234567").
		WillReturnRows(rows)

	metrics, err := s.ListMetricsByEIN(context.Background(), "841234567")
	require.NoError(t, err)
	require.Len(t, metrics, 1)
	assert.Equal(t, 2023, metrics[0].TaxYear)
	assert.Equal(t, 62.5, *metrics[0].LeadScore)
	assert.Nil(t, metrics[0].AssetGrowthYoY)
	require.NoError(t, mock.ExpectationsWereMet())
}
