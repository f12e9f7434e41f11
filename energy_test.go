package main

import (
	"math"
	"testing"
)

// linearTrend builds n consecutive daily trend points starting at day(0),
// with TrendWeightKG = startKG + slope*i, all marked observed.
func linearTrend(n int, startKG, slope float64) []trendPoint {
	points := make([]trendPoint, n)
	for i := 0; i < n; i++ {
		w := startKG + slope*float64(i)
		points[i] = trendPoint{Date: day(i), RawWeightKG: w, TrendWeightKG: w, Observed: true}
	}
	return points
}

// intakeEveryDay logs kcal on each of the given points' dates.
func intakeEveryDay(points []trendPoint, kcal int) map[string]int {
	totals := make(map[string]int, len(points))
	for _, p := range points {
		totals[dateKey(p.Date)] = kcal
	}
	return totals
}

/* ─── Happy path ─────────────────────────────────────────────────────── */

// TestEnergyBalance_KnownSlopeAndIntake checks the core identity on noiseless
// input: a perfectly linear 14-day trend at -0.05 kg/day with 2000 kcal logged
// daily implies TDEE = 2000 - (-0.05 * 7700) = 2385.
func TestEnergyBalance_KnownSlopeAndIntake(t *testing.T) {
	cfg := defaultEngineConfig()
	points := linearTrend(14, 80.0, -0.05)
	intake := intakeEveryDay(points, 2000)

	est, ok := energyBalance(points, intake, day(13), cfg)
	if !ok {
		t.Fatal("expected ok=true on a full clean window")
	}
	if math.Abs(est.SlopeKGPerDay-(-0.05)) > 1e-9 {
		t.Errorf("slope = %f, want -0.05", est.SlopeKGPerDay)
	}
	if math.Abs(est.ResidualStdKG) > 1e-9 {
		t.Errorf("residual std = %f, want 0 on a perfect line", est.ResidualStdKG)
	}
	if math.Abs(est.AvgIntakeKcal-2000) > 1e-9 {
		t.Errorf("avg intake = %f, want 2000", est.AvgIntakeKcal)
	}
	if math.Abs(est.ImpliedTDEE-2385) > 1e-6 {
		t.Errorf("implied TDEE = %f, want 2385", est.ImpliedTDEE)
	}
	if est.WeightDayCount != 14 || est.IntakeDayCount != 14 {
		t.Errorf("counts = %d/%d, want 14/14", est.WeightDayCount, est.IntakeDayCount)
	}
}

// TestEnergyBalance_WindowUsesNewestPoints verifies that only the trailing
// WindowDays points feed the fit: junk older than the window must not matter.
func TestEnergyBalance_WindowUsesNewestPoints(t *testing.T) {
	cfg := defaultEngineConfig()
	// 6 old days of wild noise, then 14 clean days.
	old := []trendPoint{}
	for i := 0; i < 6; i++ {
		w := 90.0 - 2.0*float64(i)
		old = append(old, trendPoint{Date: day(i - 6), RawWeightKG: w, TrendWeightKG: w, Observed: true})
	}
	clean := linearTrend(14, 80.0, -0.05)
	points := append(old, clean...)

	intake := intakeEveryDay(points, 2000)
	est, ok := energyBalance(points, intake, day(13), cfg)
	if !ok {
		t.Fatal("expected ok=true")
	}
	if !est.WindowStart.Equal(day(0)) || !est.WindowEnd.Equal(day(13)) {
		t.Errorf("window = %v..%v, want %v..%v", est.WindowStart, est.WindowEnd, day(0), day(13))
	}
	if math.Abs(est.ImpliedTDEE-2385) > 1e-6 {
		t.Errorf("implied TDEE = %f, want 2385 (old noise leaked into the window?)", est.ImpliedTDEE)
	}
}

// TestEnergyBalance_UnloggedDaysExcludedFromAverage verifies that days with no
// intake entries are excluded from the mean instead of counting as zero. Ten
// logged days at 2000 kcal and four unlogged days must average 2000, not 1428.
func TestEnergyBalance_UnloggedDaysExcludedFromAverage(t *testing.T) {
	cfg := defaultEngineConfig()
	points := linearTrend(14, 80.0, 0)
	intake := make(map[string]int)
	for i := 0; i < 10; i++ {
		intake[dateKey(points[i].Date)] = 2000
	}

	est, ok := energyBalance(points, intake, day(13), cfg)
	if !ok {
		t.Fatal("expected ok=true with exactly MinIntakeDays logged")
	}
	if math.Abs(est.AvgIntakeKcal-2000) > 1e-9 {
		t.Errorf("avg intake = %f, want 2000 (unlogged days must not count as zero)", est.AvgIntakeKcal)
	}
	if est.IntakeDayCount != 10 {
		t.Errorf("intake day count = %d, want 10", est.IntakeDayCount)
	}
}

/* ─── Insufficiency guards ───────────────────────────────────────────── */

// TestEnergyBalance_ShortSeries verifies that a series shorter than the window
// yields ok=false but still reports the partial counts for the summary panel.
func TestEnergyBalance_ShortSeries(t *testing.T) {
	cfg := defaultEngineConfig()
	points := linearTrend(4, 80.0, -0.05)
	intake := intakeEveryDay(points, 2000)

	est, ok := energyBalance(points, intake, day(3), cfg)
	if ok {
		t.Fatal("expected ok=false for a 4-day series against a 14-day window")
	}
	if est.WeightDayCount != 4 || est.IntakeDayCount != 4 {
		t.Errorf("partial counts = %d/%d, want 4/4", est.WeightDayCount, est.IntakeDayCount)
	}
}

func TestEnergyBalance_EmptySeries(t *testing.T) {
	cfg := defaultEngineConfig()
	if _, ok := energyBalance(nil, map[string]int{}, day(0), cfg); ok {
		t.Error("expected ok=false on an empty series")
	}
}

// TestEnergyBalance_StaleSeries verifies the staleness guard: a full, clean
// window whose newest weigh-in is older than MaxStaleDays relative to the run
// date cannot be evaluated.
func TestEnergyBalance_StaleSeries(t *testing.T) {
	cfg := defaultEngineConfig()
	points := linearTrend(14, 80.0, -0.05)
	intake := intakeEveryDay(points, 2000)

	// Run 5 days after the last weigh-in (limit is 3).
	if _, ok := energyBalance(points, intake, day(13+5), cfg); ok {
		t.Error("expected ok=false when the newest weigh-in is 5 days old")
	}
	// At exactly MaxStaleDays the window is still usable.
	if _, ok := energyBalance(points, intake, day(13+3), cfg); !ok {
		t.Error("expected ok=true at exactly the staleness limit")
	}
}

// TestEnergyBalance_SparseWeighIns verifies the observed-sample minimum:
// carried-forward days keep the series dense but do not count as data.
func TestEnergyBalance_SparseWeighIns(t *testing.T) {
	cfg := defaultEngineConfig()
	points := linearTrend(14, 80.0, -0.05)
	for i := 9; i < 14; i++ {
		points[i].Observed = false // 9 observed, minimum is 10
	}
	intake := intakeEveryDay(points, 2000)

	est, ok := energyBalance(points, intake, day(13), cfg)
	if ok {
		t.Fatal("expected ok=false with 9 observed weigh-ins")
	}
	if est.WeightDayCount != 9 {
		t.Errorf("weight day count = %d, want 9", est.WeightDayCount)
	}
}

// TestEnergyBalance_SparseIntake verifies the logged-intake minimum.
func TestEnergyBalance_SparseIntake(t *testing.T) {
	cfg := defaultEngineConfig()
	points := linearTrend(14, 80.0, -0.05)
	intake := make(map[string]int)
	for i := 0; i < 9; i++ { // minimum is 10
		intake[dateKey(points[i].Date)] = 2000
	}

	est, ok := energyBalance(points, intake, day(13), cfg)
	if ok {
		t.Fatal("expected ok=false with 9 logged intake days")
	}
	if est.IntakeDayCount != 9 {
		t.Errorf("intake day count = %d, want 9", est.IntakeDayCount)
	}
}
