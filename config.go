package main

import (
	"log"
	"os"
	"strconv"
	"time"
)

// engineConfig holds every tunable of the detection pipeline. Defaults suit
// daily-resolution consumer logging data; any of them can be overridden per
// deployment through ADAPT_* environment variables.
type engineConfig struct {
	SmoothingDays int // EMA span N; alpha = 2/(N+1)
	WindowDays    int // rolling evaluation window, anchored at the newest trend point

	MinWeightSamples int // raw weigh-ins required inside the window
	MinIntakeDays    int // logged intake days required inside the window
	MaxStaleDays     int // max gap between the run date and the newest weigh-in
	HistoryDays      int // weight history loaded ahead of the window for smoothing warm-up

	KcalPerKG        float64 // energy content of one kg of body-mass change
	DriftThreshold   float64 // relative implied-vs-assumed gap that counts as adaptation
	ConfidenceFloor  float64 // minimum confidence to flag
	StabilityScaleKG float64 // trend residual (kg) at which slope stability bottoms out
	MinPlausibleTDEE int     // implied TDEE outside [min, max] is treated as noise
	MaxPlausibleTDEE int

	DefaultCalorieFloorKcal int     // used when the user has no calorie_floor override
	MaxStepPct              float64 // largest single target change that may be proposed
	MaxPaceKGPerWeek        float64 // steepest implied rate accepted when setting a target

	RedetectCooldown time.Duration // min time between detector verdicts per user
	PendingTTL       time.Duration // pending proposal lifetime before expiry
}

func defaultEngineConfig() engineConfig {
	return engineConfig{
		SmoothingDays:           7,
		WindowDays:              14,
		MinWeightSamples:        10,
		MinIntakeDays:           10,
		MaxStaleDays:            3,
		HistoryDays:             35,
		KcalPerKG:               7700,
		DriftThreshold:          0.08,
		ConfidenceFloor:         0.6,
		StabilityScaleKG:        0.5,
		MinPlausibleTDEE:        800,
		MaxPlausibleTDEE:        8000,
		DefaultCalorieFloorKcal: 1200,
		MaxStepPct:              0.15,
		MaxPaceKGPerWeek:        0.9,
		RedetectCooldown:        14 * 24 * time.Hour,
		PendingTTL:              14 * 24 * time.Hour,
	}
}

// engineConfigFromEnv starts from defaults and applies ADAPT_* overrides.
func engineConfigFromEnv() engineConfig {
	cfg := defaultEngineConfig()
	cfg.SmoothingDays = envInt("ADAPT_SMOOTHING_DAYS", cfg.SmoothingDays)
	cfg.WindowDays = envInt("ADAPT_WINDOW_DAYS", cfg.WindowDays)
	cfg.MinWeightSamples = envInt("ADAPT_MIN_WEIGHT_SAMPLES", cfg.MinWeightSamples)
	cfg.MinIntakeDays = envInt("ADAPT_MIN_INTAKE_DAYS", cfg.MinIntakeDays)
	cfg.MaxStaleDays = envInt("ADAPT_MAX_STALE_DAYS", cfg.MaxStaleDays)
	cfg.HistoryDays = envInt("ADAPT_HISTORY_DAYS", cfg.HistoryDays)
	cfg.KcalPerKG = envFloat("ADAPT_KCAL_PER_KG", cfg.KcalPerKG)
	cfg.DriftThreshold = envFloat("ADAPT_DRIFT_THRESHOLD", cfg.DriftThreshold)
	cfg.ConfidenceFloor = envFloat("ADAPT_CONFIDENCE_FLOOR", cfg.ConfidenceFloor)
	cfg.StabilityScaleKG = envFloat("ADAPT_STABILITY_SCALE_KG", cfg.StabilityScaleKG)
	cfg.MinPlausibleTDEE = envInt("ADAPT_MIN_PLAUSIBLE_TDEE", cfg.MinPlausibleTDEE)
	cfg.MaxPlausibleTDEE = envInt("ADAPT_MAX_PLAUSIBLE_TDEE", cfg.MaxPlausibleTDEE)
	cfg.DefaultCalorieFloorKcal = envInt("ADAPT_CALORIE_FLOOR_KCAL", cfg.DefaultCalorieFloorKcal)
	cfg.MaxStepPct = envFloat("ADAPT_MAX_STEP_PCT", cfg.MaxStepPct)
	cfg.MaxPaceKGPerWeek = envFloat("ADAPT_MAX_PACE_KG_PER_WEEK", cfg.MaxPaceKGPerWeek)
	cfg.RedetectCooldown = envDays("ADAPT_REDETECT_COOLDOWN_DAYS", cfg.RedetectCooldown)
	cfg.PendingTTL = envDays("ADAPT_PENDING_TTL_DAYS", cfg.PendingTTL)
	return cfg
}

func envInt(key string, def int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		log.Printf("[config] ignoring %s=%q: %v", key, raw, err)
		return def
	}
	return n
}

func envFloat(key string, def float64) float64 {
	raw := os.Getenv(key)
	if raw == "" {
		return def
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		log.Printf("[config] ignoring %s=%q: %v", key, raw, err)
		return def
	}
	return f
}

func envDays(key string, def time.Duration) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		log.Printf("[config] ignoring %s=%q: want a positive day count", key, raw)
		return def
	}
	return time.Duration(n) * 24 * time.Hour
}
