package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sells-group/nonprofit-intel/internal/model"
	"github.com/sells-group/nonprofit-intel/internal/store"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

type fakeAPIStore struct {
	store.Store
	orgs      map[string]*model.Organization
	filings   []model.Filing
	metrics   []model.DerivedMetric
	prospects []store.Prospect
	minScore  float64
	limit     int
	err       error
}

func (s *fakeAPIStore) ListOrganizations(context.Context) ([]model.Organization, error) {
	if s.err != nil {
		return nil, s.err
	}
	var orgs []model.Organization
	for _, o := range s.orgs {
		orgs = append(orgs, *o)
	}
	return orgs, nil
}

func (s *fakeAPIStore) GetOrganization(_ context.Context, ein string) (*model.Organization, error) {
	return s.orgs[ein], s.err
}

func (s *fakeAPIStore) ListFilingsByEIN(context.Context, string) ([]model.Filing, error) {
	return s.filings, nil
}

func (s *fakeAPIStore) ListMetricsByEIN(context.Context, string) ([]model.DerivedMetric, error) {
	return s.metrics, nil
}

func (s *fakeAPIStore) TopProspects(_ context.Context, minScore float64, limit int) ([]store.Prospect, error) {
	s.minScore = minScore
	s.limit = limit
	return s.prospects, s.err
}

func get(t *testing.T, fs *fakeAPIStore, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	NewServer(fs).Router().ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	rec := get(t, &fakeAPIStore{}, "/health")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestGetOrganization(t *testing.T) {
	name := "RIVERBEND COMMUNITY TRUST"
	year := 2023
	fs := &fakeAPIStore{
		orgs: map[string]*model.Organization{
			"841234567": {EIN: "841234567", LegalName: &name},
		},
		filings: []model.Filing{{EIN: "841234567", TaxYear: &year}},
		metrics: []model.DerivedMetric{{EIN: "841234567", TaxYear: 2023}},
	}

	rec := get(t, fs, "/organizations/841234567")
	require.Equal(t, http.StatusOK, rec.Code)

	var detail organizationDetail
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &detail))
	assert.Equal(t, "841234567", detail.Organization.EIN)
	require.Len(t, detail.Filings, 1)
	require.Len(t, detail.Metrics, 1)
}

func TestGetOrganization_NotFound(t *testing.T) {
	rec := get(t, &fakeAPIStore{}, "/organizations/000000000")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestProspects_QueryParams(t *testing.T) {
	fs := &fakeAPIStore{
		prospects: []store.Prospect{{EIN: "841234567", TaxYear: 2023, LeadScore: 85}},
	}

	rec := get(t, fs, "/prospects?min_score=60&limit=5")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 60.0, fs.minScore)
	assert.Equal(t, 5, fs.limit)

	var prospects []store.Prospect
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &prospects))
	require.Len(t, prospects, 1)
	assert.Equal(t, 85.0, prospects[0].LeadScore)
}

func TestProspects_BadMinScore(t *testing.T) {
	rec := get(t, &fakeAPIStore{}, "/prospects?min_score=high")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestProspects_EmptyIsArray(t *testing.T) {
	rec := get(t, &fakeAPIStore{}, "/prospects")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "[]\n", rec.Body.String())
}

func TestStoreErrorIs500(t *testing.T) {
	fs := &fakeAPIStore{err: eris.New("db gone")}
	rec := get(t, fs, "/organizations")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
