// Package metrics recomputes the derived comparative metrics for every
// stored filing. The pass is always full-store: year-over-year joins
// need prior-year rows that may have arrived in a later batch than the
// current-year row, so incremental derivation would go stale.
package metrics

import (
	"github.com/sells-group/nonprofit-intel/internal/config"
	"github.com/sells-group/nonprofit-intel/internal/model"
	"github.com/sells-group/nonprofit-intel/internal/store"
)

// Derive computes one DerivedMetric per (EIN, TaxYear) filing. Filings
// without a tax year are skipped; they cannot join to a prior year.
func Derive(filings []model.Filing, comps []store.Compensation, weights config.ScoreConfig) []model.DerivedMetric {
	byKey := make(map[model.FilingKey]*model.Filing, len(filings))
	for i := range filings {
		if key, ok := filings[i].Key(); ok {
			byKey[key] = &filings[i]
		}
	}

	compSums := sumCompByKey(comps)

	metrics := make([]model.DerivedMetric, 0, len(byKey))
	for key, f := range byKey {
		prev := byKey[model.FilingKey{EIN: key.EIN, TaxYear: key.TaxYear - 1}]
		metrics = append(metrics, deriveOne(key, f, prev, compSums[key], weights))
	}
	return metrics
}

// sumCompByKey totals officer compensation from the organization per
// filing period. Rows without a tax year or a reported amount are
// ignored, matching SQL SUM over nullable columns.
func sumCompByKey(comps []store.Compensation) map[model.FilingKey]int64 {
	sums := make(map[model.FilingKey]int64)
	for _, c := range comps {
		if c.TaxYear == nil || c.CompFromOrg == nil {
			continue
		}
		sums[model.FilingKey{EIN: c.EIN, TaxYear: *c.TaxYear}] += *c.CompFromOrg
	}
	return sums
}

func deriveOne(key model.FilingKey, m, prev *model.Filing, execComp int64, weights config.ScoreConfig) model.DerivedMetric {
	d := model.DerivedMetric{EIN: key.EIN, TaxYear: key.TaxYear}

	if nonzero(m.TotalRevenueCY) && nonzero(m.TotalRevenuePY) {
		d.RevenueGrowthYoY = f64(float64(*m.TotalRevenueCY-*m.TotalRevenuePY) / float64(*m.TotalRevenuePY))
	}
	if nonzero(m.TotalAssetsEOY) && prev != nil && nonzero(prev.TotalAssetsEOY) {
		d.AssetGrowthYoY = f64(float64(*m.TotalAssetsEOY-*prev.TotalAssetsEOY) / float64(*prev.TotalAssetsEOY))
	}

	d.ProgramExpenseRatio = ratio(m.ProgramExpenses, m.TotalExpensesCY)
	d.FundraisingExpenseRatio = ratio(m.FundraisingExpensesCY, m.TotalExpensesCY)
	d.LiabilityToAssetRatio = ratio(m.TotalLiabilitiesEOY, m.TotalAssetsEOY)
	d.ContributionDependency = ratio(m.ContributionsCY, m.TotalRevenueCY)

	// Admin spend is the residual after program and fundraising. The
	// ratio is reported only when that residual lands strictly positive;
	// zero- and negative-residual periods stay null.
	if nonzero(m.TotalExpensesCY) && nonzero(m.ProgramExpenses) && nonzero(m.FundraisingExpensesCY) {
		admin := *m.TotalExpensesCY - *m.ProgramExpenses - *m.FundraisingExpensesCY
		if admin > 0 {
			d.AdminExpenseRatio = f64(float64(admin) / float64(*m.TotalExpensesCY))
		}
	}

	if execComp != 0 && nonzero(m.TotalRevenueCY) {
		d.ExecCompPercentOfRevenue = f64(float64(execComp) / float64(*m.TotalRevenueCY))
	}

	if nonzero(m.SurplusDeficitCY) && prev != nil && prev.SurplusDeficitCY != nil {
		cur, prior := *m.SurplusDeficitCY, *prev.SurplusDeficitCY
		switch {
		case cur > 0 && prior > 0:
			d.SurplusTrend = intP(1)
		case cur < 0 && prior < 0:
			d.SurplusTrend = intP(-1)
		default:
			d.SurplusTrend = intP(0)
		}
	}

	d.LeadScore = LeadScore(d.RevenueGrowthYoY, d.ProgramExpenseRatio, m.SurplusDeficitCY,
		d.LiabilityToAssetRatio, d.ExecCompPercentOfRevenue, weights)
	return d
}

func nonzero(v *int64) bool { return v != nil && *v != 0 }

// ratio divides two nullable amounts, nulling the result when either
// side is missing or zero.
func ratio(num, den *int64) *float64 {
	if !nonzero(num) || !nonzero(den) {
		return nil
	}
	return f64(float64(*num) / float64(*den))
}

func f64(v float64) *float64 { return &v }
func intP(v int) *int        { return &v }
