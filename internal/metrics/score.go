package metrics

import "github.com/sells-group/nonprofit-intel/internal/config"

// LeadScore blends up to five financial-health components into a 0-100
// prospect ranking. A component with a missing input drops out of both
// the accumulated sum and the weight denominator, so a partially
// populated organization is scored on the axes it has rather than
// penalized for the ones it lacks. All components missing means no
// score at all.
func LeadScore(revenueGrowth, programRatio *float64, surplusDeficit *int64, liabilityRatio, execCompPct *float64, w config.ScoreConfig) *float64 {
	var score, weightSum float64

	if revenueGrowth != nil {
		score += *revenueGrowth * w.RevenueGrowthWeight
		weightSum += w.RevenueGrowthWeight
	}
	if programRatio != nil {
		score += *programRatio * w.ProgramRatioWeight
		weightSum += w.ProgramRatioWeight
	}
	if surplusDeficit != nil {
		if *surplusDeficit > 0 {
			score += w.SurplusWeight
		}
		weightSum += w.SurplusWeight
	}
	if liabilityRatio != nil {
		score -= *liabilityRatio * w.LiabilityWeight
		weightSum += w.LiabilityWeight
	}
	if execCompPct != nil {
		score -= *execCompPct * w.ExecCompWeight
		weightSum += w.ExecCompWeight
	}

	if weightSum == 0 {
		return nil
	}

	normalized := score / weightSum * 100
	if normalized < 0 {
		normalized = 0
	}
	if normalized > 100 {
		normalized = 100
	}
	return &normalized
}
