package export

import (
	"context"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sells-group/nonprofit-intel/internal/config"
	"github.com/sells-group/nonprofit-intel/internal/model"
	"github.com/sells-group/nonprofit-intel/internal/store"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

type fakeSource struct {
	store.Store
	orgs    []model.Organization
	filings []model.Filing
	comps   []store.Compensation
	metrics []model.DerivedMetric
	orgErr  error
}

func (s *fakeSource) ListOrganizations(context.Context) ([]model.Organization, error) {
	return s.orgs, s.orgErr
}
func (s *fakeSource) ListFilings(context.Context) ([]model.Filing, error) {
	return s.filings, nil
}
func (s *fakeSource) ListCompensation(context.Context) ([]store.Compensation, error) {
	return s.comps, nil
}
func (s *fakeSource) ListMetrics(context.Context) ([]model.DerivedMetric, error) {
	return s.metrics, nil
}

func tmpOrgTable() pgx.Identifier { return pgx.Identifier{"_tmp_upsert_organizations"} }

func orgColumns() []string {
	return []string{"ein", "legal_name", "city", "state", "ntee_code",
		"mission_desc", "website_url", "phone", "principal_officer"}
}

func TestMirrorRun_SingleCollection(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()
	mock.MatchExpectationsInOrder(false)

	name := "RIVERBEND COMMUNITY TRUST"
	src := &fakeSource{
		orgs: []model.Organization{{EIN: "841234567", LegalName: &name}},
	}

	mock.ExpectBegin()
	mock.ExpectExec(`CREATE TEMP TABLE "_tmp_upsert_organizations"`).
		WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectCopyFrom(tmpOrgTable(), orgColumns()).
		WillReturnResult(1)
	mock.ExpectExec(`INSERT INTO "organizations"`).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()
	mock.ExpectRollback()

	counts, err := NewMirror(src, mock, config.ExportConfig{BatchSize: 100}).
		Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), counts["organizations"])
	assert.Equal(t, int64(0), counts["filings"])
	assert.Equal(t, int64(0), counts["derived_metrics"])
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMirrorRun_BatchesLargeCollections(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()
	mock.MatchExpectationsInOrder(false)

	src := &fakeSource{}
	for i := 0; i < 5; i++ {
		src.orgs = append(src.orgs, model.Organization{EIN: fmt.Sprintf("%d00000000", i)})
	}

	// Batch size 2 over 5 rows means three round trips.
	for i := 0; i < 3; i++ {
		mock.ExpectBegin()
		mock.ExpectExec(`CREATE TEMP TABLE "_tmp_upsert_organizations"`).
			WillReturnResult(pgxmock.NewResult("CREATE", 0))
		rows := int64(2)
		if i == 2 {
			rows = 1
		}
		mock.ExpectCopyFrom(tmpOrgTable(), orgColumns()).
			WillReturnResult(rows)
		mock.ExpectExec(`INSERT INTO "organizations"`).
			WillReturnResult(pgxmock.NewResult("INSERT", rows))
		mock.ExpectCommit()
		mock.ExpectRollback()
	}

	counts, err := NewMirror(src, mock, config.ExportConfig{BatchSize: 2}).
		Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(5), counts["organizations"])
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMirrorRun_SourceErrorAborts(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	src := &fakeSource{orgErr: eris.New("db locked")}

	_, err = NewMirror(src, mock, config.ExportConfig{}).Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mirror organizations")
}
