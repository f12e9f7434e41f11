package main

import "math"

// detectionResult is the detector's verdict for one evaluation window.
// State is one of outcomeNoSignal, outcomeBelowConfidence, outcomeFlagged;
// Type is set whenever a directional condition matched, even below the
// confidence floor.
type detectionResult struct {
	State        string
	Type         adaptationType
	DriftPercent float64
	Confidence   float64
}

// evaluateAdaptation compares the implied TDEE against the TDEE the current
// target assumed when it was set.
//
// deficit_stall: the target is a cut, implied TDEE sits at least
// DriftThreshold below the assumed TDEE, and intake still sits below implied
// (the user is nominally losing, just slower than planned). surplus_slow is
// the mirror case for a bulking target. A drift whose intake sits on the
// wrong side of implied usually means under- or over-logging, so it stays
// no_signal rather than producing a dangerous proposal.
func evaluateAdaptation(est energyEstimate, target calorieTarget, cfg engineConfig) detectionResult {
	res := detectionResult{State: outcomeNoSignal}
	if target.AssumedTDEE <= 0 {
		return res
	}
	res.DriftPercent = (est.ImpliedTDEE - float64(target.AssumedTDEE)) / float64(target.AssumedTDEE)

	// Estimates outside the human range mean garbage input, not adaptation.
	if est.ImpliedTDEE < float64(cfg.MinPlausibleTDEE) || est.ImpliedTDEE > float64(cfg.MaxPlausibleTDEE) {
		return res
	}

	switch {
	case target.DailyKcal < target.AssumedTDEE &&
		res.DriftPercent <= -cfg.DriftThreshold &&
		est.AvgIntakeKcal < est.ImpliedTDEE:
		res.Type = adaptDeficitStall
	case target.DailyKcal > target.AssumedTDEE &&
		res.DriftPercent >= cfg.DriftThreshold &&
		est.AvgIntakeKcal > est.ImpliedTDEE:
		res.Type = adaptSurplusSlow
	default:
		return res
	}

	res.Confidence = confidenceScore(res.DriftPercent, est, cfg)
	if res.Confidence < cfg.ConfidenceFloor {
		res.State = outcomeBelowConfidence
		return res
	}
	res.State = outcomeFlagged
	return res
}

// confidenceScore blends drift magnitude, logging density, and trend-slope
// stability into [0,1]. Drift saturates at twice the threshold, so a barely
// threshold-level drift alone cannot clear the confidence floor without
// dense logs and a quiet trend.
func confidenceScore(drift float64, est energyEstimate, cfg engineConfig) float64 {
	driftScore := math.Min(1, math.Abs(drift)/(2*cfg.DriftThreshold))
	density := float64(est.WeightDayCount+est.IntakeDayCount) / float64(2*est.WindowDays)
	if density > 1 {
		density = 1
	}
	stability := 1 - math.Min(1, est.ResidualStdKG/cfg.StabilityScaleKG)
	return 0.5*driftScore + 0.25*density + 0.25*stability
}
