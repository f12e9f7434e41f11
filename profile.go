package main

import (
	"errors"
	"fmt"
	"log"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5"
)

// latestWeightKG returns the user's most recent weigh-in, or 0 when none exists.
func (h *Handler) latestWeightKG(c *gin.Context, userID int) float64 {
	var kg float64
	err := h.db.QueryRow(c,
		"SELECT weight_kg FROM weight_samples WHERE user_id = $1 ORDER BY date DESC LIMIT 1",
		userID).Scan(&kg)
	if err != nil {
		if !errors.Is(err, pgx.ErrNoRows) {
			log.Printf("[profile] latest weight lookup failed for user %d: %v", userID, err)
		}
		return 0
	}
	return kg
}

// getCalorieTarget returns the calorie target and body profile for the
// authenticated user. Computed BMR/TDEE fields are populated when the profile
// and a weigh-in are present.
// GET /api/calorie-target.
func (h *Handler) getCalorieTarget(c *gin.Context) {
	userID := c.GetInt("user_id")

	t, err := queryOne[calorieTarget](h.db, c,
		"SELECT * FROM calorie_targets WHERE user_id = @userID",
		pgx.NamedArgs{"userID": userID})
	if err != nil {
		apiError(c, http.StatusNotFound, "calorie target not found")
		return
	}

	populateComputedEnergy(&t, h.latestWeightKG(c, userID))

	c.JSON(http.StatusOK, t)
}

// putCalorieTarget sets the daily calorie target.
// PUT /api/calorie-target. Body: { "daily_kcal": 2000, "assumed_tdee"?: 2500 }.
// When assumed_tdee is omitted the stored value is kept, or seeded from the
// body profile (Mifflin-St Jeor) for a first-time target. The write is
// recorded with updated_by='manual' so approval-driven changes stay
// distinguishable in the audit trail.
func (h *Handler) putCalorieTarget(c *gin.Context) {
	userID := c.GetInt("user_id")
	cfg := h.engine.cfg

	var body putCalorieTargetRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		apiError(c, http.StatusBadRequest, "invalid request body")
		return
	}
	if body.DailyKcal <= 0 {
		apiError(c, http.StatusBadRequest, "daily_kcal must be positive")
		return
	}

	existing, err := queryOne[calorieTarget](h.db, c,
		"SELECT * FROM calorie_targets WHERE user_id = @userID",
		pgx.NamedArgs{"userID": userID})
	hasExisting := err == nil
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		apiError(c, http.StatusInternalServerError, "failed to fetch calorie target")
		return
	}

	floor := existing.CalorieFloor
	if floor <= 0 {
		floor = cfg.DefaultCalorieFloorKcal
	}
	if body.DailyKcal < floor {
		apiError(c, http.StatusBadRequest, fmt.Sprintf("daily_kcal must not be below the %d kcal floor", floor))
		return
	}

	assumed := 0
	switch {
	case body.AssumedTDEE != nil:
		assumed = *body.AssumedTDEE
	case hasExisting && existing.AssumedTDEE > 0:
		assumed = existing.AssumedTDEE
	default:
		if _, tdee, ok := computeSeedTDEE(&existing, h.latestWeightKG(c, userID)); ok {
			assumed = tdee
		}
	}
	if assumed <= 0 {
		apiError(c, http.StatusBadRequest, "assumed_tdee is required until a body profile and a weigh-in exist")
		return
	}
	if assumed < cfg.MinPlausibleTDEE || assumed > cfg.MaxPlausibleTDEE {
		apiError(c, http.StatusBadRequest, fmt.Sprintf("assumed_tdee must be between %d and %d", cfg.MinPlausibleTDEE, cfg.MaxPlausibleTDEE))
		return
	}

	// Reject targets that imply a physiologically reckless rate of change.
	pace := math.Abs(float64(assumed-body.DailyKcal)) / cfg.KcalPerKG * 7
	if pace > cfg.MaxPaceKGPerWeek {
		apiError(c, http.StatusBadRequest,
			fmt.Sprintf("daily_kcal implies a rate of %.2f kg/week; max supported is %.2f", pace, cfg.MaxPaceKGPerWeek))
		return
	}

	t, err := queryOne[calorieTarget](h.db, c,
		`INSERT INTO calorie_targets (user_id, daily_kcal, assumed_tdee, updated_by)
		 VALUES (@userID, @dailyKcal, @assumedTDEE, 'manual')
		 ON CONFLICT (user_id) DO UPDATE SET
			daily_kcal = EXCLUDED.daily_kcal,
			assumed_tdee = EXCLUDED.assumed_tdee,
			updated_by = 'manual',
			updated_at = now()
		 RETURNING *`,
		pgx.NamedArgs{"userID": userID, "dailyKcal": body.DailyKcal, "assumedTDEE": assumed})
	if err != nil {
		apiError(c, http.StatusInternalServerError, "failed to save calorie target")
		return
	}

	populateComputedEnergy(&t, h.latestWeightKG(c, userID))

	c.JSON(http.StatusOK, t)
}

// patchProfile updates only the provided body-profile fields.
// PATCH /api/profile. Uses pointer fields in the request body to distinguish
// "not provided" from zero — only non-nil fields get updated.
func (h *Handler) patchProfile(c *gin.Context) {
	userID := c.GetInt("user_id")

	var body patchProfileRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		apiError(c, http.StatusBadRequest, "invalid request body")
		return
	}

	// Validate activity_level before saving — an unknown level silently breaks
	// all future TDEE seeding with no visible error.
	if body.ActivityLevel != nil {
		if _, ok := activityMultipliers[*body.ActivityLevel]; !ok {
			apiError(c, http.StatusBadRequest, "activity_level must be one of: sedentary, light, moderate, active, very_active")
			return
		}
	}
	if body.DateOfBirth != nil {
		if _, err := time.Parse("2006-01-02", *body.DateOfBirth); err != nil {
			apiError(c, http.StatusBadRequest, "invalid date_of_birth, expected YYYY-MM-DD")
			return
		}
	}
	if body.CalorieFloor != nil && (*body.CalorieFloor < 800 || *body.CalorieFloor > 4000) {
		apiError(c, http.StatusBadRequest, "calorie_floor must be between 800 and 4000")
		return
	}

	// Build SET clause dynamically — only update fields the client actually sent
	setClauses := []string{}
	args := pgx.NamedArgs{"userID": userID}

	if body.Sex != nil {
		setClauses = append(setClauses, "sex = @sex")
		args["sex"] = *body.Sex
	}
	if body.DateOfBirth != nil {
		setClauses = append(setClauses, "date_of_birth = @dateOfBirth")
		args["dateOfBirth"] = *body.DateOfBirth
	}
	if body.HeightCM != nil {
		setClauses = append(setClauses, "height_cm = @heightCM")
		args["heightCM"] = *body.HeightCM
	}
	if body.ActivityLevel != nil {
		setClauses = append(setClauses, "activity_level = @activityLevel")
		args["activityLevel"] = *body.ActivityLevel
	}
	if body.CalorieFloor != nil {
		setClauses = append(setClauses, "calorie_floor = @calorieFloor")
		args["calorieFloor"] = *body.CalorieFloor
	}

	if len(setClauses) == 0 {
		apiError(c, http.StatusBadRequest, "no fields to update")
		return
	}

	query := "UPDATE calorie_targets SET " +
		strings.Join(setClauses, ", ") +
		" WHERE user_id = @userID RETURNING *"

	t, err := queryOne[calorieTarget](h.db, c, query, args)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			apiError(c, http.StatusNotFound, "calorie target not found")
		} else {
			apiError(c, http.StatusInternalServerError, "failed to update profile")
		}
		return
	}

	populateComputedEnergy(&t, h.latestWeightKG(c, userID))

	c.JSON(http.StatusOK, t)
}
