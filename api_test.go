package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// setupAPITest builds a router over an engine + memStore, with a stub auth
// middleware that pins user_id=1. Handlers that only touch the engine run
// fully; DB-backed handlers are exercised on their validation paths.
func setupAPITest() (*gin.Engine, *memStore, *time.Time) {
	eng, store, clock := newTestEngine()

	gin.SetMode(gin.TestMode)
	h := &Handler{engine: eng}
	router := gin.New()
	api := router.Group("/api", func(c *gin.Context) {
		c.Set("user_id", 1)
		c.Next()
	})
	api.GET("/weight-log", h.getWeightLog)
	api.POST("/weight-log", h.upsertWeightSample)
	api.POST("/intake-log", h.createIntakeEntry)
	api.PUT("/calorie-target", h.putCalorieTarget)
	api.PATCH("/profile", h.patchProfile)
	api.POST("/adaptation/detect", h.runDetection)
	api.GET("/adaptation/events", h.getAdaptationEvents)
	api.GET("/adaptation/summary", h.getMetabolicSummary)
	api.POST("/adaptation/events/:id/approve", h.approveAdaptation)
	api.POST("/adaptation/events/:id/decline", h.declineAdaptation)

	return router, store, clock
}

// doRequest sends a request with an optional JSON body and returns the recorder.
func doRequest(router *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

/* ─── Detection endpoints ────────────────────────────────────────────── */

func TestAPI_DetectApproveFlow(t *testing.T) {
	router, store, clock := setupAPITest()
	seedStalledCut(store, 1, *clock)

	w := doRequest(router, "POST", "/api/adaptation/detect", "")
	if w.Code != http.StatusOK {
		t.Fatalf("detect: expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var res detectResult
	if err := json.Unmarshal(w.Body.Bytes(), &res); err != nil {
		t.Fatalf("failed to parse detect response: %v", err)
	}
	if res.Outcome != outcomeFlagged || res.Event == nil {
		t.Fatalf("expected a flagged outcome with event, got %+v", res)
	}

	w = doRequest(router, "GET", "/api/adaptation/events", "")
	if w.Code != http.StatusOK {
		t.Fatalf("events: expected 200, got %d", w.Code)
	}
	var events []adaptationEvent
	json.Unmarshal(w.Body.Bytes(), &events)
	if len(events) != 1 || events[0].Status != statusPending {
		t.Fatalf("expected one pending event, got %+v", events)
	}

	w = doRequest(router, "POST", "/api/adaptation/events/"+res.Event.ID+"/approve", "")
	if w.Code != http.StatusOK {
		t.Fatalf("approve: expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var approved adaptationEvent
	json.Unmarshal(w.Body.Bytes(), &approved)
	if approved.Status != statusApproved {
		t.Errorf("status = %s, want %s", approved.Status, statusApproved)
	}

	target, err := store.getCalorieTarget(context.Background(), 1)
	if err != nil {
		t.Fatalf("target: %v", err)
	}
	if target.DailyKcal != approved.NewDailyKcal || target.UpdatedBy != "user_approval" {
		t.Errorf("approval did not rewrite the target: %+v", target)
	}

	// A second approve finds nothing pending.
	w = doRequest(router, "POST", "/api/adaptation/events/"+res.Event.ID+"/approve", "")
	if w.Code != http.StatusNotFound {
		t.Errorf("re-approve: expected 404, got %d", w.Code)
	}
}

func TestAPI_DeclineLeavesTarget(t *testing.T) {
	router, store, clock := setupAPITest()
	seedStalledCut(store, 1, *clock)

	var res detectResult
	w := doRequest(router, "POST", "/api/adaptation/detect", "")
	json.Unmarshal(w.Body.Bytes(), &res)
	if res.Event == nil {
		t.Fatalf("setup: %s", w.Body.String())
	}

	w = doRequest(router, "POST", "/api/adaptation/events/"+res.Event.ID+"/decline", "")
	if w.Code != http.StatusOK {
		t.Fatalf("decline: expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var declined adaptationEvent
	json.Unmarshal(w.Body.Bytes(), &declined)
	if declined.Status != statusDeclined {
		t.Errorf("status = %s, want %s", declined.Status, statusDeclined)
	}

	target, _ := store.getCalorieTarget(context.Background(), 1)
	if target.DailyKcal != 2000 || target.AssumedTDEE != 2500 {
		t.Errorf("decline must leave the target alone, got %+v", target)
	}
}

func TestAPI_DetectWithoutData(t *testing.T) {
	router, store, clock := setupAPITest()
	store.putCalorieTarget(calorieTarget{UserID: 1, DailyKcal: 2000, AssumedTDEE: 2500, UpdatedBy: "manual"})
	seedDailyLogs(store, 1, 5, *clock, 82.0, -0.03, 2000)

	w := doRequest(router, "POST", "/api/adaptation/detect", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var raw map[string]interface{}
	json.Unmarshal(w.Body.Bytes(), &raw)
	if raw["outcome"] != outcomeInsufficientData {
		t.Errorf("outcome = %v, want %s", raw["outcome"], outcomeInsufficientData)
	}
	if _, ok := raw["event"]; ok {
		t.Error("insufficient_data responses must omit the event field")
	}
}

func TestAPI_EventsEmptyArray(t *testing.T) {
	router, _, _ := setupAPITest()

	w := doRequest(router, "GET", "/api/adaptation/events", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if strings.TrimSpace(w.Body.String()) != "[]" {
		t.Errorf("expected empty JSON array, got %s", w.Body.String())
	}
}

func TestAPI_EventsLimitValidation(t *testing.T) {
	router, _, _ := setupAPITest()

	for _, limit := range []string{"0", "101", "-3", "abc"} {
		w := doRequest(router, "GET", "/api/adaptation/events?limit="+limit, "")
		if w.Code != http.StatusBadRequest {
			t.Errorf("limit=%s: expected 400, got %d", limit, w.Code)
		}
	}
}

func TestAPI_EventIDValidation(t *testing.T) {
	router, _, _ := setupAPITest()

	for _, action := range []string{"approve", "decline"} {
		w := doRequest(router, "POST", "/api/adaptation/events/not-a-uuid/"+action, "")
		if w.Code != http.StatusBadRequest {
			t.Errorf("%s with junk id: expected 400, got %d: %s", action, w.Code, w.Body.String())
		}

		w = doRequest(router, "POST", "/api/adaptation/events/"+uuid.New().String()+"/"+action, "")
		if w.Code != http.StatusNotFound {
			t.Errorf("%s with unknown id: expected 404, got %d", action, w.Code)
		}
	}
}

func TestAPI_Summary(t *testing.T) {
	router, store, clock := setupAPITest()
	seedStalledCut(store, 1, *clock)

	w := doRequest(router, "GET", "/api/adaptation/summary", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var sum metabolicSummary
	if err := json.Unmarshal(w.Body.Bytes(), &sum); err != nil {
		t.Fatalf("failed to parse summary: %v", err)
	}
	if sum.WindowDays != 14 || sum.AssumedTDEE != 2500 {
		t.Errorf("summary basics wrong: %+v", sum)
	}
	if sum.ImpliedTDEE == nil || sum.DriftPercent == nil {
		t.Errorf("expected estimate fields on a full window: %+v", sum)
	}
}

/* ─── Input validation on the logging endpoints ──────────────────────── */

func TestAPI_WeightLogValidation(t *testing.T) {
	router, _, _ := setupAPITest()

	cases := []struct {
		name string
		body string
	}{
		{"malformed json", `{"date": `},
		{"missing date", `{"weight_kg": 80}`},
		{"bad date", `{"date":"15-03-2026","weight_kg":80}`},
		{"weight too low", `{"date":"2026-03-15","weight_kg":10}`},
		{"weight too high", `{"date":"2026-03-15","weight_kg":600}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := doRequest(router, "POST", "/api/weight-log", tc.body)
			if w.Code != http.StatusBadRequest {
				t.Errorf("expected 400, got %d: %s", w.Code, w.Body.String())
			}
		})
	}

	queries := []struct {
		name  string
		query string
	}{
		{"missing both params", ""},
		{"missing end", "?start=2026-03-01"},
		{"bad start", "?start=bogus&end=2026-03-10"},
		{"inverted range", "?start=2026-03-10&end=2026-03-01"},
		{"bad end", "?start=2026-03-01&end=2026-13-40"},
	}
	for _, tc := range queries {
		t.Run(tc.name, func(t *testing.T) {
			w := doRequest(router, "GET", "/api/weight-log"+tc.query, "")
			if w.Code != http.StatusBadRequest {
				t.Errorf("expected 400, got %d", w.Code)
			}
		})
	}
}

func TestAPI_IntakeLogValidation(t *testing.T) {
	router, _, _ := setupAPITest()

	cases := []struct {
		name string
		body string
	}{
		{"missing item name", `{"consumed_kcal":300}`},
		{"negative kcal", `{"item_name":"toast","consumed_kcal":-5}`},
		{"absurd kcal", `{"item_name":"toast","consumed_kcal":20001}`},
		{"bad date", fmt.Sprintf(`{"item_name":"toast","consumed_kcal":300,"date":%q}`, "03/15/2026")},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := doRequest(router, "POST", "/api/intake-log", tc.body)
			if w.Code != http.StatusBadRequest {
				t.Errorf("expected 400, got %d: %s", w.Code, w.Body.String())
			}
		})
	}
}

func TestAPI_ProfileValidation(t *testing.T) {
	router, _, _ := setupAPITest()

	cases := []struct {
		name   string
		method string
		path   string
		body   string
	}{
		{"target malformed json", "PUT", "/api/calorie-target", `{"daily_kcal"`},
		{"target zero kcal", "PUT", "/api/calorie-target", `{"daily_kcal":0}`},
		{"target negative kcal", "PUT", "/api/calorie-target", `{"daily_kcal":-100}`},
		{"profile malformed json", "PATCH", "/api/profile", `{"sex"`},
		{"profile unknown activity", "PATCH", "/api/profile", `{"activity_level":"heroic"}`},
		{"profile bad dob", "PATCH", "/api/profile", `{"date_of_birth":"31-12-1990"}`},
		{"profile floor too low", "PATCH", "/api/profile", `{"calorie_floor":500}`},
		{"profile floor too high", "PATCH", "/api/profile", `{"calorie_floor":5000}`},
		{"profile empty patch", "PATCH", "/api/profile", `{}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := doRequest(router, tc.method, tc.path, tc.body)
			if w.Code != http.StatusBadRequest {
				t.Errorf("expected 400, got %d: %s", w.Code, w.Body.String())
			}
		})
	}
}
