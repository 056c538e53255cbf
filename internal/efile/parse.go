package efile

import (
	"io"

	"github.com/sells-group/nonprofit-intel/internal/model"
)

// Candidate paths for identity fields. The primary Filer section is
// preferred; real documents sometimes populate only the ReturnHeader
// copy, so each field falls back there.
var (
	pathsOrgName = []string{"Filer/BusinessName/BusinessNameLine1Txt"}
	pathsState   = []string{"Filer/USAddress/StateAbbreviationCd"}
	pathsCity    = []string{"Filer/USAddress/CityNm"}
)

// Parse reads one Form 990 document and assembles the organization
// snapshot, the filing-period financials, and the officer list.
//
// A document with no EIN anywhere returns (nil, nil): it cannot be
// attributed to an organization and is skipped, not an error. A document
// whose XML cannot be parsed returns an error wrapping ErrMalformed.
// A document missing the IRS990 financial section still yields the
// organization identity with all financial fields nil.
func Parse(r io.Reader, sourcePath string) (*model.FilingSnapshot, error) {
	doc, err := ParseDocument(r)
	if err != nil {
		return nil, err
	}
	root := doc.Root

	ein := doc.Extract(root, "Filer/EIN")
	if ein == "" {
		return nil, nil
	}

	snap := &model.FilingSnapshot{
		Organization: model.Organization{EIN: ein},
		Filing: model.Filing{
			EIN:              ein,
			TaxYear:          ParseYear(doc.Extract(root, "TaxYr")),
			TaxPeriodEndDate: textOrNil(doc.Extract(root, "TaxPeriodEndDt")),
			SourcePath:       sourcePath,
		},
	}

	org := &snap.Organization
	org.LegalName = textOrNil(doc.Extract(root, pathsOrgName...))
	org.State = textOrNil(doc.Extract(root, pathsState...))
	org.City = textOrNil(doc.Extract(root, pathsCity...))
	org.Phone = textOrNil(doc.Extract(root, "Filer/PhoneNum"))

	irs990 := doc.Find(root, "IRS990")
	if irs990 != nil {
		parseFinancials(doc, irs990, &snap.Filing)
		org.MissionDesc = textOrNil(doc.Extract(irs990, "MissionDesc", "ActivityOrMissionDesc"))
		org.WebsiteURL = textOrNil(doc.Extract(irs990, "WebsiteAddressTxt"))
		org.PrincipalOfficer = textOrNil(doc.Extract(irs990, "PrincipalOfficerNm"))
	}

	// Header fallback for identity fields the primary section left empty.
	if header := doc.Find(root, "ReturnHeader"); header != nil {
		if org.LegalName == nil {
			org.LegalName = textOrNil(doc.Extract(header, pathsOrgName...))
		}
		if org.State == nil {
			org.State = textOrNil(doc.Extract(header, pathsState...))
		}
		if org.City == nil {
			org.City = textOrNil(doc.Extract(header, pathsCity...))
		}
		if org.PrincipalOfficer == nil {
			org.PrincipalOfficer = textOrNil(doc.Extract(header, "BusinessOfficerGrp/PersonNm"))
		}
	}

	snap.Officers = parseOfficers(doc, root)

	return snap, nil
}

func parseFinancials(doc *Document, irs990 *Node, f *model.Filing) {
	f.TotalAssetsEOY = ParseInt(doc.Extract(irs990, "TotalAssetsEOYAmt"))
	f.TotalLiabilitiesEOY = ParseInt(doc.Extract(irs990, "TotalLiabilitiesEOYAmt"))
	f.NetAssetsEOY = ParseInt(doc.Extract(irs990, "NetAssetsOrFundBalancesEOYAmt"))
	f.TotalRevenueCY = ParseInt(doc.Extract(irs990, "CYTotalRevenueAmt"))
	f.TotalRevenuePY = ParseInt(doc.Extract(irs990, "PYTotalRevenueAmt"))
	f.TotalExpensesCY = ParseInt(doc.Extract(irs990, "CYTotalExpensesAmt"))
	f.TotalExpensesPY = ParseInt(doc.Extract(irs990, "PYTotalExpensesAmt"))
	f.ContributionsCY = ParseInt(doc.Extract(irs990, "CYContributionsGrantsAmt"))
	f.ProgramServiceRevenueCY = ParseInt(doc.Extract(irs990, "CYProgramServiceRevenueAmt"))
	f.InvestmentIncomeCY = ParseInt(doc.Extract(irs990, "CYInvestmentIncomeAmt"))
	f.SalariesCY = ParseInt(doc.Extract(irs990, "CYSalariesCompEmpBnftPaidAmt"))
	f.FundraisingExpensesCY = ParseInt(doc.Extract(irs990, "CYTotalProfFndrsngExpnsAmt"))
	f.ProgramExpenses = ParseInt(doc.Extract(irs990, "TotalProgramServiceExpensesAmt"))

	// Two distinct "other revenue" lines are folded into one amount,
	// kept only when the sum is positive.
	var otherRevenue int64
	for _, tag := range []string{"CYOtherRevenueAmt", "CYTotalOtherIncAmt"} {
		if v := ParseInt(doc.Extract(irs990, tag)); v != nil {
			otherRevenue += *v
		}
	}
	if otherRevenue > 0 {
		f.OtherRevenueCY = &otherRevenue
	}

	// A zero revenue or expense total leaves the surplus unset, matching
	// the downstream metric rules for absent figures.
	if f.TotalRevenueCY != nil && *f.TotalRevenueCY != 0 &&
		f.TotalExpensesCY != nil && *f.TotalExpensesCY != 0 {
		surplus := *f.TotalRevenueCY - *f.TotalExpensesCY
		f.SurplusDeficitCY = &surplus
	}
}

// parseOfficers extracts the Part VII Section A compensation table.
// A row without a person name is not a valid record and is dropped.
func parseOfficers(doc *Document, root *Node) []model.Officer {
	var officers []model.Officer
	for _, grp := range doc.FindAll(root, "Form990PartVIISectionAGrp") {
		name := doc.Extract(grp, "PersonNm")
		if name == "" {
			continue
		}
		officers = append(officers, model.Officer{
			Name:               name,
			Title:              textOrNil(doc.Extract(grp, "TitleTxt")),
			AvgHoursPerWeek:    ParseFloat(doc.Extract(grp, "AverageHoursPerWeekRt")),
			CompFromOrg:        ParseInt(doc.Extract(grp, "ReportableCompFromOrgAmt")),
			CompFromRelatedOrg: ParseInt(doc.Extract(grp, "ReportableCompFromRltdOrgAmt")),
			OtherCompensation:  ParseInt(doc.Extract(grp, "OtherCompensationAmt")),
		})
	}
	return officers
}
