// Package model defines the entities stored by the nonprofit intelligence pipeline.
package model

// Organization is the identity record for a nonprofit, keyed by EIN.
// Each filing seen for an EIN overwrites the row wholesale; there is no
// historical versioning of identity fields.
type Organization struct {
	EIN              string  `json:"ein"`
	LegalName        *string `json:"legal_name,omitempty"`
	City             *string `json:"city,omitempty"`
	State            *string `json:"state,omitempty"`
	NTEECode         *string `json:"ntee_code,omitempty"`
	MissionDesc      *string `json:"mission_desc,omitempty"`
	WebsiteURL       *string `json:"website_url,omitempty"`
	Phone            *string `json:"phone,omitempty"`
	PrincipalOfficer *string `json:"principal_officer,omitempty"`
}

// Filing holds one tax period's financials for an organization,
// keyed by (EIN, TaxYear). Monetary fields are nil when the source
// document omits them or the value cannot be coerced.
type Filing struct {
	EIN                     string  `json:"ein"`
	TaxYear                 *int    `json:"tax_year"`
	TaxPeriodEndDate        *string `json:"tax_period_end_date,omitempty"`
	TotalAssetsEOY          *int64  `json:"total_assets_eoy,omitempty"`
	TotalLiabilitiesEOY     *int64  `json:"total_liabilities_eoy,omitempty"`
	NetAssetsEOY            *int64  `json:"net_assets_eoy,omitempty"`
	TotalRevenueCY          *int64  `json:"total_revenue_cy,omitempty"`
	TotalRevenuePY          *int64  `json:"total_revenue_py,omitempty"`
	TotalExpensesCY         *int64  `json:"total_expenses_cy,omitempty"`
	TotalExpensesPY         *int64  `json:"total_expenses_py,omitempty"`
	ContributionsCY         *int64  `json:"contributions_cy,omitempty"`
	ProgramServiceRevenueCY *int64  `json:"program_service_revenue_cy,omitempty"`
	InvestmentIncomeCY      *int64  `json:"investment_income_cy,omitempty"`
	OtherRevenueCY          *int64  `json:"other_revenue_cy,omitempty"`
	SalariesCY              *int64  `json:"salaries_cy,omitempty"`
	FundraisingExpensesCY   *int64  `json:"fundraising_expenses_cy,omitempty"`
	ProgramExpenses         *int64  `json:"program_expenses,omitempty"`
	SurplusDeficitCY        *int64  `json:"surplus_deficit_cy,omitempty"`
	SourcePath              string  `json:"source_path"`
}

// Officer is one row of the Part VII compensation table,
// keyed by (EIN, TaxYear, Name).
type Officer struct {
	Name               string   `json:"name"`
	Title              *string  `json:"title,omitempty"`
	AvgHoursPerWeek    *float64 `json:"avg_hours_per_week,omitempty"`
	CompFromOrg        *int64   `json:"comp_from_org,omitempty"`
	CompFromRelatedOrg *int64   `json:"comp_from_related_org,omitempty"`
	OtherCompensation  *int64   `json:"other_compensation,omitempty"`
}

// FilingSnapshot is everything parsed from one 990 document: the
// organization identity, the period financials, and the officer list.
// The store persists all three atomically.
type FilingSnapshot struct {
	Organization Organization `json:"organization"`
	Filing       Filing       `json:"filing"`
	Officers     []Officer    `json:"officers"`
}

// DerivedMetric holds the computed comparative metrics for one
// (EIN, TaxYear). Rows are never hand-edited; a metrics pass rewrites
// every row it touches.
type DerivedMetric struct {
	EIN                      string   `json:"ein"`
	TaxYear                  int      `json:"tax_year"`
	RevenueGrowthYoY         *float64 `json:"revenue_growth_yoy,omitempty"`
	AssetGrowthYoY           *float64 `json:"asset_growth_yoy,omitempty"`
	ProgramExpenseRatio      *float64 `json:"program_expense_ratio,omitempty"`
	AdminExpenseRatio        *float64 `json:"admin_expense_ratio,omitempty"`
	FundraisingExpenseRatio  *float64 `json:"fundraising_expense_ratio,omitempty"`
	ExecCompPercentOfRevenue *float64 `json:"exec_comp_percent_of_revenue,omitempty"`
	LiabilityToAssetRatio    *float64 `json:"liability_to_asset_ratio,omitempty"`
	ContributionDependency   *float64 `json:"contribution_dependency_pct,omitempty"`
	SurplusTrend             *int     `json:"surplus_trend,omitempty"`
	LeadScore                *float64 `json:"lead_score,omitempty"`
}

// FilingKey identifies one filing period.
type FilingKey struct {
	EIN     string
	TaxYear int
}

// Key returns the (EIN, TaxYear) key for a filing, or false when the
// filing has no tax year and cannot participate in year-over-year joins.
func (f *Filing) Key() (FilingKey, bool) {
	if f.TaxYear == nil {
		return FilingKey{}, false
	}
	return FilingKey{EIN: f.EIN, TaxYear: *f.TaxYear}, true
}
