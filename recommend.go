package main

import "math"

// proposal is the structured retargeting payload. Prose for the user is
// attached later, when the event is assembled; nothing in here is copy.
type proposal struct {
	Type          adaptationType
	MagnitudeKcal int
	OldDailyKcal  int
	NewDailyKcal  int
	ImpliedTDEE   int
	AssumedTDEE   int
	Confidence    float64
}

// buildProposal re-derives a daily target that keeps the user's originally
// intended energy gap against the newly implied TDEE:
//
//	intendedGap  = assumedTDEE - oldDailyKcal
//	newDailyKcal = impliedTDEE - intendedGap
//
// Two hard safety bounds are checked before emission: the new target may not
// sit below the calorie floor, and may not move more than cfg.MaxStepPct away
// from the old target in one step. When either bound would be violated the
// engine emits nothing (ok=false) and the case is left for manual review; it
// never clamps the number into range.
func buildProposal(res detectionResult, est energyEstimate, target calorieTarget, cfg engineConfig) (proposal, bool) {
	floor := target.CalorieFloor
	if floor <= 0 {
		floor = cfg.DefaultCalorieFloorKcal
	}

	implied := int(math.Round(est.ImpliedTDEE))
	intendedGap := target.AssumedTDEE - target.DailyKcal
	rawNew := implied - intendedGap

	if rawNew < floor {
		return proposal{}, false
	}
	if target.DailyKcal <= 0 ||
		math.Abs(float64(rawNew-target.DailyKcal))/float64(target.DailyKcal) > cfg.MaxStepPct {
		return proposal{}, false
	}

	return proposal{
		Type:          res.Type,
		MagnitudeKcal: int(math.Abs(float64(implied - target.AssumedTDEE))),
		OldDailyKcal:  target.DailyKcal,
		NewDailyKcal:  rawNew,
		ImpliedTDEE:   implied,
		AssumedTDEE:   target.AssumedTDEE,
		Confidence:    res.Confidence,
	}, true
}
