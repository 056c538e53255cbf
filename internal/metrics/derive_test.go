package metrics

import (
	"testing"

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

var defaultWeights = config.ScoreConfig{
	RevenueGrowthWeight: 25,
	ProgramRatioWeight:  30,
	SurplusWeight:       20,
	LiabilityWeight:     15,
	ExecCompWeight:      10,
}

func i64(v int64) *int64 { return &v }
func pint(v int) *int    { return &v }

func filing(ein string, year int, mutate func(*model.Filing)) model.Filing {
	f := model.Filing{EIN: ein, TaxYear: pint(year)}
	if mutate != nil {
		mutate(&f)
	}
	return f
}

func deriveSingle(t *testing.T, filings []model.Filing, comps []store.Compensation, ein string, year int) model.DerivedMetric {
	t.Helper()
	for _, d := range Derive(filings, comps, defaultWeights) {
		if d.EIN == ein && d.TaxYear == year {
			return d
		}
	}
	t.Fatalf("no derived metric for %s/%d", ein, year)
	return model.DerivedMetric{}
}

func TestDerive_RevenueGrowth(t *testing.T) {
	filings := []model.Filing{
		filing("111", 2023, func(f *model.Filing) {
			f.TotalRevenueCY = i64(120)
			f.TotalRevenuePY = i64(100)
		}),
	}
	d := deriveSingle(t, filings, nil, "111", 2023)
	require.NotNil(t, d.RevenueGrowthYoY)
	assert.InDelta(t, 0.20, *d.RevenueGrowthYoY, 1e-9)
}

func TestDerive_RevenueGrowthNullCases(t *testing.T) {
	cases := map[string]func(*model.Filing){
		"missing current": func(f *model.Filing) { f.TotalRevenuePY = i64(100) },
		"missing prior":   func(f *model.Filing) { f.TotalRevenueCY = i64(120) },
		"zero prior": func(f *model.Filing) {
			f.TotalRevenueCY = i64(120)
			f.TotalRevenuePY = i64(0)
		},
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			d := deriveSingle(t, []model.Filing{filing("111", 2023, mutate)}, nil, "111", 2023)
			assert.Nil(t, d.RevenueGrowthYoY)
		})
	}
}

func TestDerive_AssetGrowthNeedsPriorRow(t *testing.T) {
	current := filing("111", 2023, func(f *model.Filing) { f.TotalAssetsEOY = i64(1_100_000) })

	d := deriveSingle(t, []model.Filing{current}, nil, "111", 2023)
	assert.Nil(t, d.AssetGrowthYoY)

	prior := filing("111", 2022, func(f *model.Filing) { f.TotalAssetsEOY = i64(1_000_000) })
	d = deriveSingle(t, []model.Filing{current, prior}, nil, "111", 2023)
	require.NotNil(t, d.AssetGrowthYoY)
	assert.InDelta(t, 0.10, *d.AssetGrowthYoY, 1e-9)
}

func TestDerive_ExpenseRatios(t *testing.T) {
	filings := []model.Filing{
		filing("111", 2023, func(f *model.Filing) {
			f.TotalExpensesCY = i64(1_000_000)
			f.ProgramExpenses = i64(800_000)
			f.FundraisingExpensesCY = i64(100_000)
		}),
	}
	d := deriveSingle(t, filings, nil, "111", 2023)
	require.NotNil(t, d.ProgramExpenseRatio)
	assert.InDelta(t, 0.80, *d.ProgramExpenseRatio, 1e-9)
	require.NotNil(t, d.FundraisingExpenseRatio)
	assert.InDelta(t, 0.10, *d.FundraisingExpenseRatio, 1e-9)
	require.NotNil(t, d.AdminExpenseRatio)
	assert.InDelta(t, 0.10, *d.AdminExpenseRatio, 1e-9)
}

func TestDerive_AdminRatioNulledWhenResidualNotPositive(t *testing.T) {
	// Program plus fundraising consume the whole expense total, so the
	// admin residual is zero and the ratio stays null.
	filings := []model.Filing{
		filing("111", 2023, func(f *model.Filing) {
			f.TotalExpensesCY = i64(1_000_000)
			f.ProgramExpenses = i64(900_000)
			f.FundraisingExpensesCY = i64(100_000)
		}),
	}
	d := deriveSingle(t, filings, nil, "111", 2023)
	assert.Nil(t, d.AdminExpenseRatio)

	filings[0].ProgramExpenses = i64(950_000)
	d = deriveSingle(t, filings, nil, "111", 2023)
	assert.Nil(t, d.AdminExpenseRatio)
}

func TestDerive_ExecCompPercent(t *testing.T) {
	filings := []model.Filing{
		filing("111", 2023, func(f *model.Filing) { f.TotalRevenueCY = i64(2_000_000) }),
	}
	comps := []store.Compensation{
		{EIN: "111", TaxYear: pint(2023), Officer: model.Officer{Name: "A", CompFromOrg: i64(150_000)}},
		{EIN: "111", TaxYear: pint(2023), Officer: model.Officer{Name: "B", CompFromOrg: i64(50_000)}},
		{EIN: "111", TaxYear: pint(2023), Officer: model.Officer{Name: "C"}},
		{EIN: "111", TaxYear: pint(2022), Officer: model.Officer{Name: "A", CompFromOrg: i64(999_999)}},
	}
	d := deriveSingle(t, filings, comps, "111", 2023)
	require.NotNil(t, d.ExecCompPercentOfRevenue)
	assert.InDelta(t, 0.10, *d.ExecCompPercentOfRevenue, 1e-9)
}

func TestDerive_ExecCompNullWithoutComp(t *testing.T) {
	filings := []model.Filing{
		filing("111", 2023, func(f *model.Filing) { f.TotalRevenueCY = i64(2_000_000) }),
	}
	d := deriveSingle(t, filings, nil, "111", 2023)
	assert.Nil(t, d.ExecCompPercentOfRevenue)
}

func TestDerive_SurplusTrend(t *testing.T) {
	cases := []struct {
		name    string
		cur     *int64
		prior   *int64
		hasPrev bool
		want    *int
	}{
		{"both positive", i64(500), i64(300), true, pint(1)},
		{"both negative", i64(-500), i64(-300), true, pint(-1)},
		{"mixed signs", i64(500), i64(-300), true, pint(0)},
		{"no prior row", i64(500), nil, false, nil},
		{"prior surplus missing", i64(500), nil, true, nil},
		{"current surplus missing", nil, i64(300), true, nil},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			filings := []model.Filing{
				filing("111", 2023, func(f *model.Filing) { f.SurplusDeficitCY = tc.cur }),
			}
			if tc.hasPrev {
				filings = append(filings,
					filing("111", 2022, func(f *model.Filing) { f.SurplusDeficitCY = tc.prior }))
			}
			d := deriveSingle(t, filings, nil, "111", 2023)
			if tc.want == nil {
				assert.Nil(t, d.SurplusTrend)
			} else {
				require.NotNil(t, d.SurplusTrend)
				assert.Equal(t, *tc.want, *d.SurplusTrend)
			}
		})
	}
}

func TestDerive_SkipsFilingsWithoutTaxYear(t *testing.T) {
	filings := []model.Filing{
		{EIN: "111", TotalRevenueCY: i64(100)},
		filing("222", 2023, nil),
	}
	derived := Derive(filings, nil, defaultWeights)
	require.Len(t, derived, 1)
	assert.Equal(t, "222", derived[0].EIN)
}

func TestDerive_IndependentOrganizations(t *testing.T) {
	// Prior-year joins stay within one EIN.
	filings := []model.Filing{
		filing("111", 2022, func(f *model.Filing) { f.TotalAssetsEOY = i64(1_000_000) }),
		filing("222", 2023, func(f *model.Filing) { f.TotalAssetsEOY = i64(2_000_000) }),
	}
	d := deriveSingle(t, filings, nil, "222", 2023)
	assert.Nil(t, d.AssetGrowthYoY)
}
