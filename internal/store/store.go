// Package store persists the four filing collections behind a driver-
// agnostic interface. All writes are upserts; compensation rows are
// replaced as a (EIN, TaxYear) set, and one document's organization,
// filing, and compensation writes land in a single transaction.
package store

import (
	"context"

	"github.com/sells-group/nonprofit-intel/internal/model"
)

// Compensation is one stored officer row with its filing key.
type Compensation struct {
	EIN     string `json:"ein"`
	TaxYear *int   `json:"tax_year"`
	model.Officer
}

// Prospect is the joined org + latest-year metrics row used by the
// report command and the read API.
type Prospect struct {
	EIN                 string   `json:"ein"`
	LegalName           *string  `json:"legal_name,omitempty"`
	City                *string  `json:"city,omitempty"`
	State               *string  `json:"state,omitempty"`
	TaxYear             int      `json:"tax_year"`
	LeadScore           float64  `json:"lead_score"`
	RevenueGrowthYoY    *float64 `json:"revenue_growth_yoy,omitempty"`
	ProgramExpenseRatio *float64 `json:"program_expense_ratio,omitempty"`
	TotalRevenueCY      *int64   `json:"total_revenue_cy,omitempty"`
}

// IngestRun is one recorded batch ingestion in the run log.
type IngestRun struct {
	ID        string `json:"id"`
	Status    string `json:"status"`
	Succeeded int    `json:"succeeded"`
	Failed    int    `json:"failed"`
	Error     string `json:"error,omitempty"`
}

// Store defines the persistence interface for the filing pipeline.
type Store interface {
	// SaveFiling upserts the organization, upserts the filing row, and
	// replaces the compensation set for the document's (EIN, TaxYear),
	// atomically with respect to crash failure.
	SaveFiling(ctx context.Context, snap *model.FilingSnapshot) error

	// UpsertDerivedMetrics overwrites every given (EIN, TaxYear) metric row.
	UpsertDerivedMetrics(ctx context.Context, metrics []model.DerivedMetric) error

	// Full scans for the metrics pass and downstream consumers.
	ListFilings(ctx context.Context) ([]model.Filing, error)
	ListCompensation(ctx context.Context) ([]Compensation, error)
	ListMetrics(ctx context.Context) ([]model.DerivedMetric, error)

	// Keyed and aggregate reads for the report command and read API.
	ListOrganizations(ctx context.Context) ([]model.Organization, error)
	GetOrganization(ctx context.Context, ein string) (*model.Organization, error)
	ListFilingsByEIN(ctx context.Context, ein string) ([]model.Filing, error)
	ListMetricsByEIN(ctx context.Context, ein string) ([]model.DerivedMetric, error)
	TopProspects(ctx context.Context, minScore float64, limit int) ([]Prospect, error)
	Counts(ctx context.Context) (map[string]int64, error)

	// Batch run log.
	StartIngestRun(ctx context.Context) (string, error)
	CompleteIngestRun(ctx context.Context, id string, succeeded, failed int) error
	FailIngestRun(ctx context.Context, id, errMsg string) error

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
