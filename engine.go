package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"time"

	"github.com/google/uuid"
)

// engine wires the trend smoother, energy balance model, detector, and
// recommendation step together against a store. The now func is injectable
// so tests can walk a simulated clock through cooldowns and TTLs.
type engine struct {
	store engineStore
	cfg   engineConfig
	now   func() time.Time
}

func newEngine(store engineStore, cfg engineConfig) *engine {
	return &engine{store: store, cfg: cfg, now: time.Now}
}

// detectResult is what one detectAdaptation call produced. Event is non-nil
// only for flagged and pending_exists outcomes.
type detectResult struct {
	Outcome string           `json:"outcome"`
	Event   *adaptationEvent `json:"event,omitempty"`
}

// detectAdaptation runs the full pipeline for one user. It never returns an
// error for a user who merely lacks data or signal; errors are reserved for
// store failures. Ordering matters: expiry first so an overdue proposal
// cannot block a fresh one, then the pending check, then the cooldown gate.
func (e *engine) detectAdaptation(ctx context.Context, userID int) (detectResult, error) {
	now := e.now()

	if _, err := e.store.expireOverdueEvents(ctx, userID, now); err != nil {
		return detectResult{}, err
	}
	pending, err := e.store.pendingEvent(ctx, userID)
	if err != nil {
		return detectResult{}, err
	}
	if pending != nil {
		return detectResult{Outcome: outcomePendingExists, Event: pending}, nil
	}

	last, err := e.store.lastVerdictAt(ctx, userID)
	if err != nil {
		return detectResult{}, err
	}
	if last != nil && now.Sub(*last) < e.cfg.RedetectCooldown {
		return detectResult{Outcome: outcomeCooldown}, nil
	}

	target, err := e.store.getCalorieTarget(ctx, userID)
	if errors.Is(err, ErrNoCalorieTarget) {
		return detectResult{Outcome: outcomeNoTarget}, nil
	}
	if err != nil {
		return detectResult{}, err
	}

	_, est, ok, err := e.estimate(ctx, userID, now)
	if err != nil {
		return detectResult{}, err
	}
	if !ok {
		// Recorded for audit but exempt from the cooldown: a user who just
		// needs more logging days should not wait two extra weeks.
		e.record(ctx, userID, now, outcomeInsufficientData, nil, nil, nil)
		return detectResult{Outcome: outcomeInsufficientData}, nil
	}

	res := evaluateAdaptation(est, target, e.cfg)
	switch res.State {
	case outcomeNoSignal:
		e.record(ctx, userID, now, outcomeNoSignal, &res.DriftPercent, nil, nil)
		return detectResult{Outcome: outcomeNoSignal}, nil
	case outcomeBelowConfidence:
		e.record(ctx, userID, now, outcomeBelowConfidence, &res.DriftPercent, &res.Confidence, nil)
		return detectResult{Outcome: outcomeBelowConfidence}, nil
	}

	p, safe := buildProposal(res, est, target, e.cfg)
	if !safe {
		log.Printf("[detect] user %d: %s retarget falls outside safety bounds (implied %d kcal, target %d kcal), leaving for manual review",
			userID, res.Type, int(math.Round(est.ImpliedTDEE)), target.DailyKcal)
		e.record(ctx, userID, now, outcomeSuppressed, &res.DriftPercent, &res.Confidence, nil)
		return detectResult{Outcome: outcomeSuppressed}, nil
	}

	ev := adaptationEvent{
		ID:               uuid.New().String(),
		UserID:           userID,
		Type:             p.Type,
		MagnitudeKcal:    p.MagnitudeKcal,
		Confidence:       p.Confidence,
		OldDailyKcal:     p.OldDailyKcal,
		NewDailyKcal:     p.NewDailyKcal,
		ImpliedTDEE:      p.ImpliedTDEE,
		CoachExplanation: coachExplanation(p, e.cfg.WindowDays),
		Status:           statusPending,
		DetectedAt:       now,
		ExpiresAt:        now.Add(e.cfg.PendingTTL),
	}
	if err := e.store.createPendingEvent(ctx, ev); err != nil {
		if errors.Is(err, ErrPendingExists) {
			// Lost a concurrent create race; surface the winner instead.
			winner, perr := e.store.pendingEvent(ctx, userID)
			if perr != nil {
				return detectResult{}, perr
			}
			return detectResult{Outcome: outcomePendingExists, Event: winner}, nil
		}
		return detectResult{}, err
	}
	e.record(ctx, userID, now, outcomeFlagged, &res.DriftPercent, &res.Confidence, &ev.ID)
	log.Printf("[detect] user %d: flagged %s, drift %.1f%%, confidence %.2f, proposing %d -> %d kcal",
		userID, ev.Type, res.DriftPercent*100, ev.Confidence, ev.OldDailyKcal, ev.NewDailyKcal)
	return detectResult{Outcome: outcomeFlagged, Event: &ev}, nil
}

// estimate loads the user's recent history and runs it through the smoother
// and the energy balance model.
func (e *engine) estimate(ctx context.Context, userID int, now time.Time) ([]trendPoint, energyEstimate, bool, error) {
	since := midnightUTC(now).AddDate(0, 0, -e.cfg.HistoryDays)
	samples, err := e.store.weightSamplesSince(ctx, userID, since)
	if err != nil {
		return nil, energyEstimate{}, false, err
	}
	intake, err := e.store.intakeTotalsBetween(ctx, userID, since, midnightUTC(now))
	if err != nil {
		return nil, energyEstimate{}, false, err
	}
	points := computeTrendSeries(samples, e.cfg.SmoothingDays)
	est, ok := energyBalance(points, intake, now, e.cfg)
	return points, est, ok, nil
}

// record appends a detection_runs row. Audit failures are logged, not
// returned: the verdict already happened and stays valid.
func (e *engine) record(ctx context.Context, userID int, now time.Time, outcome string, drift, confidence *float64, eventID *string) {
	run := detectionRun{
		UserID:       userID,
		RanAt:        now,
		Outcome:      outcome,
		DriftPercent: drift,
		Confidence:   confidence,
		EventID:      eventID,
	}
	if err := e.store.recordDetectionRun(ctx, run); err != nil {
		log.Printf("[detect] user %d: recording %s run failed: %v", userID, outcome, err)
	}
}

// metabolicSummary assembles the read-only diagnostics panel. Pointer fields
// stay nil while the window holds too little data; a user with no calorie
// target still gets their trend back.
func (e *engine) metabolicSummary(ctx context.Context, userID int) (metabolicSummary, error) {
	target, err := e.store.getCalorieTarget(ctx, userID)
	if err != nil && !errors.Is(err, ErrNoCalorieTarget) {
		return metabolicSummary{}, err
	}

	sum := metabolicSummary{
		AssumedTDEE: target.AssumedTDEE,
		DailyKcal:   target.DailyKcal,
		WindowDays:  e.cfg.WindowDays,
	}
	points, est, ok, err := e.estimate(ctx, userID, e.now())
	if err != nil {
		return sum, err
	}
	sum.WeightSampleCount = est.WeightDayCount
	sum.IntakeDayCount = est.IntakeDayCount
	if len(points) > 0 {
		cur := points[len(points)-1].TrendWeightKG
		sum.CurrentTrendWeightKG = &cur
	}
	if ok {
		implied := int(math.Round(est.ImpliedTDEE))
		sum.ImpliedTDEE = &implied
		if target.AssumedTDEE > 0 {
			drift := (est.ImpliedTDEE - float64(target.AssumedTDEE)) / float64(target.AssumedTDEE)
			sum.DriftPercent = &drift
		}
	}
	return sum, nil
}

// recentAdaptations lists the user's event history, newest first. Overdue
// pending events are expired first so the listing never shows a stale
// pending status.
func (e *engine) recentAdaptations(ctx context.Context, userID, limit int) ([]adaptationEvent, error) {
	if _, err := e.store.expireOverdueEvents(ctx, userID, e.now()); err != nil {
		return nil, err
	}
	return e.store.recentEvents(ctx, userID, limit)
}

// approvePending applies a pending proposal: the event flips to approved and
// the calorie target is rewritten in the same transaction. Expiry runs first
// so an overdue proposal can no longer be approved.
func (e *engine) approvePending(ctx context.Context, userID int, eventID string) (adaptationEvent, error) {
	now := e.now()
	if _, err := e.store.expireOverdueEvents(ctx, userID, now); err != nil {
		return adaptationEvent{}, err
	}
	ev, err := e.store.approvePendingEvent(ctx, userID, eventID, now)
	if err != nil {
		return ev, err
	}
	log.Printf("[adapt] user %d approved %s: daily target %d -> %d kcal, assumed TDEE -> %d",
		userID, ev.Type, ev.OldDailyKcal, ev.NewDailyKcal, ev.ImpliedTDEE)
	return ev, nil
}

// declinePending resolves a pending proposal without touching the target.
func (e *engine) declinePending(ctx context.Context, userID int, eventID string) (adaptationEvent, error) {
	now := e.now()
	if _, err := e.store.expireOverdueEvents(ctx, userID, now); err != nil {
		return adaptationEvent{}, err
	}
	ev, err := e.store.resolvePendingEvent(ctx, userID, eventID, statusDeclined, now)
	if err != nil {
		return ev, err
	}
	log.Printf("[adapt] user %d declined %s (%d -> %d kcal)", userID, ev.Type, ev.OldDailyKcal, ev.NewDailyKcal)
	return ev, nil
}

// coachExplanation renders the deterministic explanation stored with an
// event. Tone and personality live in the client; this stays factual so the
// numbers can be audited later.
func coachExplanation(p proposal, windowDays int) string {
	direction := "below"
	if p.Type == adaptSurplusSlow {
		direction = "above"
	}
	return fmt.Sprintf(
		"Over the last %d days your weight trend implies a daily burn of about %d kcal, %d kcal %s the %d kcal your current target assumed. Keeping your planned rate of progress means moving your daily target from %d to %d kcal.",
		windowDays, p.ImpliedTDEE, p.MagnitudeKcal, direction, p.AssumedTDEE, p.OldDailyKcal, p.NewDailyKcal)
}
