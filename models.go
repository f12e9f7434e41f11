package main

import (
	"time"

	"github.com/jackc/pgx/v5/pgtype"
)

// DateOnly wraps time.Time to serialize as "YYYY-MM-DD" in JSON.
type DateOnly struct{ time.Time }

func (d DateOnly) MarshalJSON() ([]byte, error) {
	return []byte(`"` + d.Time.Format("2006-01-02") + `"`), nil
}

func (d *DateOnly) UnmarshalJSON(b []byte) error {
	t, err := time.Parse(`"2006-01-02"`, string(b))
	if err != nil {
		return err
	}
	d.Time = t
	return nil
}

// ScanDate implements pgtype.DateScanner so pgx can scan PostgreSQL date
// columns (OID 1082) into DateOnly. NULL values zero the time and return nil
// so that *DateOnly pointer fields can be set to nil by pgx's NULL handling.
func (d *DateOnly) ScanDate(v pgtype.Date) error {
	if !v.Valid {
		d.Time = time.Time{}
		return nil
	}
	d.Time = v.Time
	return nil
}

/* ─── Closed enums ───────────────────────────────────────────────────── */

// adaptationType classifies the direction of a detected metabolic shift.
type adaptationType string

const (
	// adaptDeficitStall: user eats at a deficit but expenditure has dropped
	// toward intake, so the expected loss rate has stalled.
	adaptDeficitStall adaptationType = "deficit_stall"
	// adaptSurplusSlow: user eats at a surplus but expenditure has risen,
	// so the expected gain rate has slowed.
	adaptSurplusSlow adaptationType = "surplus_slow"
)

// eventStatus is the lifecycle state of an adaptationEvent.
// Transitions: pending -> approved | declined | expired. Terminal states never change.
type eventStatus string

const (
	statusPending  eventStatus = "pending"
	statusApproved eventStatus = "approved"
	statusDeclined eventStatus = "declined"
	statusExpired  eventStatus = "expired"
)

// Detection outcomes. The first five are verdicts recorded in detection_runs;
// insufficient_data is recorded but does not start a re-detection cooldown.
// The rest are short-circuit outcomes that never reach the detector.
const (
	outcomeFlagged          = "flagged"
	outcomeNoSignal         = "no_signal"
	outcomeBelowConfidence  = "below_confidence"
	outcomeSuppressed       = "suppressed"
	outcomeInsufficientData = "insufficient_data"
	outcomePendingExists    = "pending_exists"
	outcomeCooldown         = "cooldown"
	outcomeNoTarget         = "no_target"
)

/* ─── Domain structs ─────────────────────────────────────────────────── */

// user maps to the users table. AuthToken and Password are hidden from JSON responses.
type user struct {
	ID        int        `json:"id" db:"id"`
	Username  string     `json:"username" db:"username"`
	Email     string     `json:"email" db:"email"`
	AuthToken string     `json:"-" db:"auth_token"`
	Password  string     `json:"-" db:"password"`
	CreatedAt *time.Time `json:"created_at" db:"created_at"`
}

// weightSample maps to weight_samples. One morning weigh-in per user per date,
// enforced by a UNIQUE (user_id, date) constraint; re-posting a date overwrites.
type weightSample struct {
	ID        int        `json:"id" db:"id"`
	UserID    int        `json:"user_id" db:"user_id"`
	Date      DateOnly   `json:"date" db:"date"`
	WeightKG  float64    `json:"weight_kg" db:"weight_kg"`
	CreatedAt *time.Time `json:"created_at" db:"created_at"`
}

// intakeEntry maps to intake_entries. Multiple entries per day are allowed;
// detection only ever consumes the per-day kcal sum.
type intakeEntry struct {
	ID           int        `json:"id" db:"id"`
	UserID       int        `json:"user_id" db:"user_id"`
	Date         DateOnly   `json:"date" db:"date"`
	ItemName     string     `json:"item_name" db:"item_name"`
	ConsumedKcal int        `json:"consumed_kcal" db:"consumed_kcal"`
	CreatedAt    *time.Time `json:"created_at" db:"created_at"`
}

// intakeDayTotal is one row of the per-day GROUP BY over intake_entries.
type intakeDayTotal struct {
	Date         DateOnly `json:"date" db:"date"`
	ConsumedKcal int      `json:"consumed_kcal" db:"consumed_kcal"`
	EntryCount   int      `json:"entry_count" db:"entry_count"`
}

// calorieTarget maps to calorie_targets. One row per user holding the active
// daily budget, the TDEE that budget assumed when it was set, and the body
// profile used to seed an assumed TDEE for brand-new users.
type calorieTarget struct {
	UserID       int        `json:"user_id" db:"user_id"`
	DailyKcal    int        `json:"daily_kcal" db:"daily_kcal"`
	AssumedTDEE  int        `json:"assumed_tdee" db:"assumed_tdee"`
	CalorieFloor int        `json:"calorie_floor" db:"calorie_floor"`
	UpdatedBy    string     `json:"updated_by" db:"updated_by"`
	UpdatedAt    *time.Time `json:"updated_at" db:"updated_at"`

	// Profile fields — all nullable; zero-knowledge rows still work.
	Sex           *string   `json:"sex" db:"sex"`
	DateOfBirth   *DateOnly `json:"date_of_birth" db:"date_of_birth"`
	HeightCM      *float64  `json:"height_cm" db:"height_cm"`
	ActivityLevel *string   `json:"activity_level" db:"activity_level"`

	// Computed fields — populated server-side from the profile plus the
	// latest weight sample; not stored in DB.
	// db:"-" tells RowToStructByName to skip these during scanning.
	ComputedBMR  *int `json:"computed_bmr,omitempty" db:"-"`
	ComputedTDEE *int `json:"computed_tdee,omitempty" db:"-"`
}

// adaptationEvent maps to adaptation_events. A pending event is a proposal
// awaiting user review; approving it rewrites the calorie target, declining
// or expiring it leaves the target untouched. All resolved events are kept
// for audit.
type adaptationEvent struct {
	ID               string         `json:"id" db:"id"`
	UserID           int            `json:"user_id" db:"user_id"`
	Type             adaptationType `json:"type" db:"type"`
	MagnitudeKcal    int            `json:"magnitude_kcal" db:"magnitude_kcal"`
	Confidence       float64        `json:"confidence" db:"confidence"`
	OldDailyKcal     int            `json:"old_daily_kcal" db:"old_daily_kcal"`
	NewDailyKcal     int            `json:"new_daily_kcal" db:"new_daily_kcal"`
	ImpliedTDEE      int            `json:"implied_tdee" db:"implied_tdee"`
	CoachExplanation string         `json:"coach_explanation" db:"coach_explanation"`
	Status           eventStatus    `json:"status" db:"status"`
	DetectedAt       time.Time      `json:"detected_at" db:"detected_at"`
	ExpiresAt        time.Time      `json:"expires_at" db:"expires_at"`
	ResolvedAt       *time.Time     `json:"resolved_at" db:"resolved_at"`
}

// detectionRun maps to detection_runs, the audit log of every detector verdict.
// Drift, confidence, and event ID are nullable because insufficient-data runs
// produce none of them.
type detectionRun struct {
	ID           int       `json:"id" db:"id"`
	UserID       int       `json:"user_id" db:"user_id"`
	RanAt        time.Time `json:"ran_at" db:"ran_at"`
	Outcome      string    `json:"outcome" db:"outcome"`
	DriftPercent *float64  `json:"drift_percent" db:"drift_percent"`
	Confidence   *float64  `json:"confidence" db:"confidence"`
	EventID      *string   `json:"event_id" db:"event_id"`
}

// dailyIntakeSummary is the response shape for GET /api/intake-log.
type dailyIntakeSummary struct {
	Date         string        `json:"date"`
	DailyKcal    int           `json:"daily_kcal"`
	ConsumedKcal int           `json:"consumed_kcal"`
	KcalLeft     int           `json:"kcal_left"`
	Items        []intakeEntry `json:"items"`
}

// metabolicSummary is the response shape for GET /api/adaptation/summary.
// Pointer fields are nil while the window holds too little data to estimate.
type metabolicSummary struct {
	AssumedTDEE          int      `json:"assumed_tdee"`
	DailyKcal            int      `json:"daily_kcal"`
	CurrentTrendWeightKG *float64 `json:"current_trend_weight_kg"`
	ImpliedTDEE          *int     `json:"implied_tdee"`
	DriftPercent         *float64 `json:"drift_percent"`
	WindowDays           int      `json:"window_days"`
	WeightSampleCount    int      `json:"weight_sample_count"`
	IntakeDayCount       int      `json:"intake_day_count"`
}

/* ─── Request shapes ─────────────────────────────────────────────────── */

// createIntakeEntryRequest is the request body for POST /api/intake-log.
type createIntakeEntryRequest struct {
	Date         string `json:"date"`
	ItemName     string `json:"item_name"`
	ConsumedKcal int    `json:"consumed_kcal"`
}

// putCalorieTargetRequest is the request body for PUT /api/calorie-target.
// AssumedTDEE is optional: when nil the server seeds it from the body profile
// (Mifflin-St Jeor) or keeps the stored value.
type putCalorieTargetRequest struct {
	DailyKcal   int  `json:"daily_kcal"`
	AssumedTDEE *int `json:"assumed_tdee"`
}

// patchProfileRequest is the request body for PATCH /api/profile.
// All fields are pointers — only non-nil fields get written to the database.
type patchProfileRequest struct {
	Sex           *string  `json:"sex"`
	DateOfBirth   *string  `json:"date_of_birth"` // YYYY-MM-DD string, stored as date
	HeightCM      *float64 `json:"height_cm"`
	ActivityLevel *string  `json:"activity_level"`
	CalorieFloor  *int     `json:"calorie_floor"`
}
