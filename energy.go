package main

import (
	"math"
	"time"
)

// energyEstimate is the output of the energy balance model over one window.
type energyEstimate struct {
	ImpliedTDEE    float64 // avg intake minus energy stored per day
	AvgIntakeKcal  float64 // mean over logged intake days only
	SlopeKGPerDay  float64 // least-squares slope of the trend
	ResidualStdKG  float64 // trend scatter around the fitted line
	WindowDays     int
	WeightDayCount int // observed weigh-ins inside the window
	IntakeDayCount int // logged intake days inside the window
	WindowStart    time.Time
	WindowEnd      time.Time
}

// energyBalance fits the last cfg.WindowDays of the trend series against the
// per-day intake totals. Weight change is converted to energy at cfg.KcalPerKG,
// so impliedTDEE = avgIntake - slope*kcalPerKG. Returns ok=false (cannot
// evaluate yet, never an error) when the series does not span a full window,
// the newest weigh-in is stale relative to asOf, or either signal has too few
// real observations inside the window. Counts are filled in either way so
// callers can report how far along the user is.
func energyBalance(points []trendPoint, intakeByDay map[string]int, asOf time.Time, cfg engineConfig) (energyEstimate, bool) {
	est := energyEstimate{WindowDays: cfg.WindowDays}
	if len(points) == 0 || cfg.WindowDays < 2 {
		return est, false
	}
	window := points
	full := len(points) >= cfg.WindowDays
	if full {
		window = points[len(points)-cfg.WindowDays:]
	}
	est.WindowStart = window[0].Date
	est.WindowEnd = window[len(window)-1].Date

	var intakeSum int
	for _, p := range window {
		if p.Observed {
			est.WeightDayCount++
		}
		if kcal, ok := intakeByDay[dateKey(p.Date)]; ok {
			est.IntakeDayCount++
			intakeSum += kcal
		}
	}

	stale := midnightUTC(asOf).Sub(est.WindowEnd) > time.Duration(cfg.MaxStaleDays)*24*time.Hour
	if !full || stale || est.WeightDayCount < cfg.MinWeightSamples || est.IntakeDayCount < cfg.MinIntakeDays {
		return est, false
	}
	est.AvgIntakeKcal = float64(intakeSum) / float64(est.IntakeDayCount)

	// Ordinary least squares y = a + b*x with x = day index within the window.
	n := float64(len(window))
	var sumX, sumY, sumXY, sumXX float64
	for i, p := range window {
		x, y := float64(i), p.TrendWeightKG
		sumX += x
		sumY += y
		sumXY += x * y
		sumXX += x * x
	}
	denom := n*sumXX - sumX*sumX
	if denom == 0 {
		return est, false
	}
	b := (n*sumXY - sumX*sumY) / denom
	a := (sumY - b*sumX) / n

	var ss float64
	for i, p := range window {
		r := p.TrendWeightKG - (a + b*float64(i))
		ss += r * r
	}
	est.SlopeKGPerDay = b
	est.ResidualStdKG = math.Sqrt(ss / n)
	est.ImpliedTDEE = est.AvgIntakeKcal - b*cfg.KcalPerKG
	return est, true
}
