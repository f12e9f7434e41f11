package main

import "time"

// trendPoint is one day of the smoothed weight series. Derived on demand,
// never persisted. Observed is false on calendar days with no weigh-in,
// where the previous raw value was carried forward before smoothing.
type trendPoint struct {
	Date          time.Time
	RawWeightKG   float64
	TrendWeightKG float64
	Observed      bool
}

// dateKey formats t as the canonical YYYY-MM-DD map key.
func dateKey(t time.Time) string { return t.Format("2006-01-02") }

// midnightUTC truncates t to its calendar date at UTC midnight.
func midnightUTC(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// computeTrendSeries turns raw weigh-ins into one smoothed point per calendar
// day between the first and last sample. Days with no weigh-in reuse the
// previous raw value, so a skipped morning cannot bend the trend. Smoothing
// is a plain EMA with alpha = 2/(smoothingDays+1); the first point seeds
// trend = raw. Input order does not matter and the same samples always
// produce the same series.
func computeTrendSeries(samples []weightSample, smoothingDays int) []trendPoint {
	if len(samples) == 0 {
		return nil
	}
	if smoothingDays < 1 {
		smoothingDays = 1
	}

	byDate := make(map[string]float64, len(samples))
	first := midnightUTC(samples[0].Date.Time)
	last := first
	for _, s := range samples {
		day := midnightUTC(s.Date.Time)
		byDate[dateKey(day)] = s.WeightKG
		if day.Before(first) {
			first = day
		}
		if day.After(last) {
			last = day
		}
	}

	alpha := 2.0 / (float64(smoothingDays) + 1)
	points := make([]trendPoint, 0, int(last.Sub(first).Hours()/24)+1)
	var raw, trend float64
	for day := first; !day.After(last); day = day.AddDate(0, 0, 1) {
		observed := false
		if w, ok := byDate[dateKey(day)]; ok {
			raw = w
			observed = true
		}
		if len(points) == 0 {
			trend = raw
		} else {
			trend += alpha * (raw - trend)
		}
		points = append(points, trendPoint{Date: day, RawWeightKG: raw, TrendWeightKG: trend, Observed: observed})
	}
	return points
}
