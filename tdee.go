package main

import (
	"math"
	"time"
)

// activityMultipliers maps activity level strings to their TDEE multiplier.
// This is the single source of truth for valid activity levels — also used for
// input validation in patchProfile.
var activityMultipliers = map[string]float64{
	"sedentary":   1.2,
	"light":       1.375,
	"moderate":    1.55,
	"active":      1.725,
	"very_active": 1.9,
}

// computeSeedTDEE computes BMR (Mifflin-St Jeor) and an activity-scaled TDEE
// from the body profile plus the latest weigh-in. This seeds assumed_tdee for
// users who set a calorie target before the engine has any implied estimate.
// Returns ok=false when any required profile field is nil, the weigh-in is
// missing, or age is implausible.
func computeSeedTDEE(t *calorieTarget, weightKG float64) (bmr, tdee int, ok bool) {
	if t.Sex == nil || t.DateOfBirth == nil || t.HeightCM == nil ||
		t.ActivityLevel == nil || weightKG <= 0 {
		return 0, 0, false
	}

	// Age derived from date of birth
	today := time.Now()
	age := today.Year() - t.DateOfBirth.Year()
	if today.Before(t.DateOfBirth.AddDate(age, 0, 0)) {
		age--
	}
	// Guard against implausible ages (e.g. DOB in the future, or over 130 years ago)
	if age < 0 || age > 130 {
		return 0, 0, false
	}

	// BMR via Mifflin-St Jeor: different constant for male vs female
	bmrF := 10*weightKG + 6.25**t.HeightCM - 5*float64(age)
	if *t.Sex == "male" {
		bmrF += 5
	} else {
		bmrF -= 161
	}

	// TDEE: multiply BMR by activity level multiplier
	mult, found := activityMultipliers[*t.ActivityLevel]
	if !found {
		return 0, 0, false
	}
	tdeeF := bmrF * mult

	// Use math.Round to avoid systematic under-reporting from truncation.
	return int(math.Round(bmrF)), int(math.Round(tdeeF)), true
}

// populateComputedEnergy fills the computed-only fields on t from the profile
// plus the latest weigh-in. No-ops if any required field is missing.
func populateComputedEnergy(t *calorieTarget, latestWeightKG float64) {
	if bmr, tdee, ok := computeSeedTDEE(t, latestWeightKG); ok {
		t.ComputedBMR = &bmr
		t.ComputedTDEE = &tdee
	}
}
