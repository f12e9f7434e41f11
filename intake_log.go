package main

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5"
)

// getDailyIntake returns intake entries and the running total for a given date.
// GET /api/intake-log?date=YYYY-MM-DD (defaults to today).
func (h *Handler) getDailyIntake(c *gin.Context) {
	userID := c.GetInt("user_id")
	date := c.DefaultQuery("date", time.Now().Format("2006-01-02"))

	// Validate date format before querying — an invalid value silently returns no rows.
	if _, err := time.Parse("2006-01-02", date); err != nil {
		apiError(c, http.StatusBadRequest, "invalid date, expected YYYY-MM-DD")
		return
	}

	items, err := queryMany[intakeEntry](h.db, c,
		`SELECT * FROM intake_entries
		 WHERE user_id = @userID AND date = @date
		 ORDER BY created_at`,
		pgx.NamedArgs{"userID": userID, "date": date})
	if err != nil {
		apiError(c, http.StatusInternalServerError, "failed to fetch intake entries")
		return
	}
	// Ensure items is an empty array (not null) in JSON
	if items == nil {
		items = []intakeEntry{}
	}

	// A user who has not finished setup has no target row yet; the day view
	// still works, just without budget math.
	target, err := queryOne[calorieTarget](h.db, c,
		"SELECT * FROM calorie_targets WHERE user_id = @userID",
		pgx.NamedArgs{"userID": userID})
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		apiError(c, http.StatusInternalServerError, "failed to fetch calorie target")
		return
	}

	var consumed int
	for _, item := range items {
		consumed += item.ConsumedKcal
	}

	c.JSON(http.StatusOK, dailyIntakeSummary{
		Date:         date,
		DailyKcal:    target.DailyKcal,
		ConsumedKcal: consumed,
		KcalLeft:     target.DailyKcal - consumed,
		Items:        items,
	})
}

// getIntakeDayTotals returns per-day kcal totals for an arbitrary date range.
// GET /api/intake-log/daily-totals?start=YYYY-MM-DD&end=YYYY-MM-DD. Both params
// required. Only days with logged entries are returned (no gap-filling — an
// unlogged day means "unknown intake", not zero).
func (h *Handler) getIntakeDayTotals(c *gin.Context) {
	userID := c.GetInt("user_id")
	start := c.Query("start")
	end := c.Query("end")

	if start == "" || end == "" {
		apiError(c, http.StatusBadRequest, "start and end query params are required")
		return
	}
	if _, err := time.Parse("2006-01-02", start); err != nil {
		apiError(c, http.StatusBadRequest, "invalid start, expected YYYY-MM-DD")
		return
	}
	if _, err := time.Parse("2006-01-02", end); err != nil {
		apiError(c, http.StatusBadRequest, "invalid end, expected YYYY-MM-DD")
		return
	}
	if start > end {
		apiError(c, http.StatusBadRequest, "start must not be after end")
		return
	}

	totals, err := queryMany[intakeDayTotal](h.db, c,
		`SELECT date, SUM(consumed_kcal)::int AS consumed_kcal, COUNT(*)::int AS entry_count
		 FROM intake_entries
		 WHERE user_id = @userID AND date >= @start AND date <= @end
		 GROUP BY date
		 ORDER BY date ASC`,
		pgx.NamedArgs{"userID": userID, "start": start, "end": end})
	if err != nil {
		apiError(c, http.StatusInternalServerError, "failed to fetch intake totals")
		return
	}
	if totals == nil {
		totals = []intakeDayTotal{}
	}

	c.JSON(http.StatusOK, totals)
}

// createIntakeEntry inserts a new intake entry.
// POST /api/intake-log. Defaults date to today if omitted. A zero-kcal entry
// is allowed: it marks the day as logged (e.g. a fast) rather than unknown.
func (h *Handler) createIntakeEntry(c *gin.Context) {
	userID := c.GetInt("user_id")

	var body createIntakeEntryRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		apiError(c, http.StatusBadRequest, "invalid request body")
		return
	}
	if body.ItemName == "" {
		apiError(c, http.StatusBadRequest, "item_name is required")
		return
	}
	if body.ConsumedKcal < 0 || body.ConsumedKcal > 20000 {
		apiError(c, http.StatusBadRequest, "consumed_kcal must be between 0 and 20000")
		return
	}
	if body.Date == "" {
		body.Date = time.Now().Format("2006-01-02")
	}
	if _, err := time.Parse("2006-01-02", body.Date); err != nil {
		apiError(c, http.StatusBadRequest, "invalid date, expected YYYY-MM-DD")
		return
	}

	entry, err := queryOne[intakeEntry](h.db, c,
		`INSERT INTO intake_entries (user_id, date, item_name, consumed_kcal)
		 VALUES (@userID, @date, @itemName, @consumedKcal)
		 RETURNING *`,
		pgx.NamedArgs{
			"userID": userID, "date": body.Date,
			"itemName": body.ItemName, "consumedKcal": body.ConsumedKcal,
		})
	if err != nil {
		apiError(c, http.StatusInternalServerError, "failed to create intake entry")
		return
	}

	c.JSON(http.StatusCreated, entry)
}

// updateIntakeEntry updates an existing intake entry.
// PUT /api/intake-log/:id. Uses COALESCE so omitted fields keep their current value.
func (h *Handler) updateIntakeEntry(c *gin.Context) {
	userID := c.GetInt("user_id")
	id := c.Param("id")

	var body struct {
		Date         *string `json:"date"`
		ItemName     *string `json:"item_name"`
		ConsumedKcal *int    `json:"consumed_kcal"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		apiError(c, http.StatusBadRequest, "invalid request body")
		return
	}
	if body.Date != nil {
		if _, err := time.Parse("2006-01-02", *body.Date); err != nil {
			apiError(c, http.StatusBadRequest, "invalid date, expected YYYY-MM-DD")
			return
		}
	}
	if body.ConsumedKcal != nil && (*body.ConsumedKcal < 0 || *body.ConsumedKcal > 20000) {
		apiError(c, http.StatusBadRequest, "consumed_kcal must be between 0 and 20000")
		return
	}

	entry, err := queryOne[intakeEntry](h.db, c,
		`UPDATE intake_entries SET
			date = COALESCE(@date, date),
			item_name = COALESCE(@itemName, item_name),
			consumed_kcal = COALESCE(@consumedKcal, consumed_kcal)
		 WHERE id = @id AND user_id = @userID
		 RETURNING *`,
		pgx.NamedArgs{
			"id": id, "userID": userID,
			"date": body.Date, "itemName": body.ItemName, "consumedKcal": body.ConsumedKcal,
		})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			apiError(c, http.StatusNotFound, "intake entry not found")
		} else {
			apiError(c, http.StatusInternalServerError, "failed to update intake entry")
		}
		return
	}

	c.JSON(http.StatusOK, entry)
}

// deleteIntakeEntry removes an intake entry. Returns 204 on success.
// DELETE /api/intake-log/:id.
func (h *Handler) deleteIntakeEntry(c *gin.Context) {
	userID := c.GetInt("user_id")
	id := c.Param("id")

	result, err := h.db.Exec(c,
		"DELETE FROM intake_entries WHERE id = @id AND user_id = @userID",
		pgx.NamedArgs{"id": id, "userID": userID})
	if err != nil {
		apiError(c, http.StatusInternalServerError, "failed to delete intake entry")
		return
	}
	if result.RowsAffected() == 0 {
		apiError(c, http.StatusNotFound, "intake entry not found")
		return
	}

	c.Status(http.StatusNoContent)
}
