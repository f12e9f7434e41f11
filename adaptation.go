package main

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// runDetection triggers the detection pipeline for the authenticated user.
// POST /api/adaptation/detect. The response always carries an outcome string;
// only flagged and pending_exists outcomes include an event. A user without
// enough data gets outcome=insufficient_data, never an error.
func (h *Handler) runDetection(c *gin.Context) {
	userID := c.GetInt("user_id")

	result, err := h.engine.detectAdaptation(c, userID)
	if err != nil {
		apiError(c, http.StatusInternalServerError, "detection failed")
		return
	}

	c.JSON(http.StatusOK, result)
}

// getAdaptationEvents lists the user's adaptation history, newest first.
// GET /api/adaptation/events?limit=20 (max 100). Returns an empty array (not
// null) when the user has no events.
func (h *Handler) getAdaptationEvents(c *gin.Context) {
	userID := c.GetInt("user_id")

	limit := 20
	if s := c.Query("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 || n > 100 {
			apiError(c, http.StatusBadRequest, "limit must be an integer between 1 and 100")
			return
		}
		limit = n
	}

	events, err := h.engine.recentAdaptations(c, userID, limit)
	if err != nil {
		apiError(c, http.StatusInternalServerError, "failed to fetch adaptation events")
		return
	}
	if events == nil {
		events = []adaptationEvent{}
	}

	c.JSON(http.StatusOK, events)
}

// getMetabolicSummary returns the current trend weight, implied TDEE, and
// drift for the authenticated user.
// GET /api/adaptation/summary.
func (h *Handler) getMetabolicSummary(c *gin.Context) {
	userID := c.GetInt("user_id")

	sum, err := h.engine.metabolicSummary(c, userID)
	if err != nil {
		apiError(c, http.StatusInternalServerError, "failed to build metabolic summary")
		return
	}

	c.JSON(http.StatusOK, sum)
}

// approveAdaptation applies a pending proposal to the calorie target.
// POST /api/adaptation/events/:id/approve. 404 covers unknown ids, expired or
// already-resolved events, and the loser of a concurrent resolve race.
func (h *Handler) approveAdaptation(c *gin.Context) {
	userID := c.GetInt("user_id")
	id := c.Param("id")
	if _, err := uuid.Parse(id); err != nil {
		apiError(c, http.StatusBadRequest, "invalid event id")
		return
	}

	ev, err := h.engine.approvePending(c, userID, id)
	if err != nil {
		if errors.Is(err, ErrEventNotFound) {
			apiError(c, http.StatusNotFound, "no pending adaptation event with that id")
		} else {
			apiError(c, http.StatusInternalServerError, "failed to approve adaptation event")
		}
		return
	}

	c.JSON(http.StatusOK, ev)
}

// declineAdaptation resolves a pending proposal without changing the target.
// POST /api/adaptation/events/:id/decline.
func (h *Handler) declineAdaptation(c *gin.Context) {
	userID := c.GetInt("user_id")
	id := c.Param("id")
	if _, err := uuid.Parse(id); err != nil {
		apiError(c, http.StatusBadRequest, "invalid event id")
		return
	}

	ev, err := h.engine.declinePending(c, userID, id)
	if err != nil {
		if errors.Is(err, ErrEventNotFound) {
			apiError(c, http.StatusNotFound, "no pending adaptation event with that id")
		} else {
			apiError(c, http.StatusInternalServerError, "failed to decline adaptation event")
		}
		return
	}

	c.JSON(http.StatusOK, ev)
}
