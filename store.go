package main

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Sentinel errors the HTTP layer maps to status codes with errors.Is.
var (
	// ErrPendingExists: the one-pending-per-user constraint rejected an insert.
	ErrPendingExists = errors.New("user already has a pending adaptation event")
	// ErrEventNotFound: no pending event matched the id. Covers unknown ids,
	// already-resolved events, and the loser of a concurrent resolve race.
	ErrEventNotFound = errors.New("no matching pending adaptation event")
	// ErrNoCalorieTarget: the user has not set a calorie target yet.
	ErrNoCalorieTarget = errors.New("no calorie target configured")
)

// engineStore is everything the detection engine needs from persistence.
// pgStore is the production implementation; memStore backs tests.
type engineStore interface {
	weightSamplesSince(ctx context.Context, userID int, since time.Time) ([]weightSample, error)
	intakeTotalsBetween(ctx context.Context, userID int, from, to time.Time) (map[string]int, error)

	getCalorieTarget(ctx context.Context, userID int) (calorieTarget, error)

	pendingEvent(ctx context.Context, userID int) (*adaptationEvent, error)
	createPendingEvent(ctx context.Context, ev adaptationEvent) error
	resolvePendingEvent(ctx context.Context, userID int, eventID string, to eventStatus, now time.Time) (adaptationEvent, error)
	approvePendingEvent(ctx context.Context, userID int, eventID string, now time.Time) (adaptationEvent, error)
	expireOverdueEvents(ctx context.Context, userID int, now time.Time) (int, error)
	recentEvents(ctx context.Context, userID, limit int) ([]adaptationEvent, error)

	lastVerdictAt(ctx context.Context, userID int) (*time.Time, error)
	recordDetectionRun(ctx context.Context, run detectionRun) error

	listUserIDs(ctx context.Context) ([]int, error)
}

/* ─── Postgres implementation ─────────────────────────────────────────── */

type pgStore struct {
	db *pgxpool.Pool
}

var _ engineStore = (*pgStore)(nil)

func newPGStore(db *pgxpool.Pool) *pgStore { return &pgStore{db: db} }

func (s *pgStore) weightSamplesSince(ctx context.Context, userID int, since time.Time) ([]weightSample, error) {
	return queryMany[weightSample](s.db, ctx,
		`SELECT * FROM weight_samples
		  WHERE user_id = @user_id AND date >= @since
		  ORDER BY date ASC`,
		pgx.NamedArgs{"user_id": userID, "since": since})
}

func (s *pgStore) intakeTotalsBetween(ctx context.Context, userID int, from, to time.Time) (map[string]int, error) {
	rows, err := queryMany[intakeDayTotal](s.db, ctx,
		`SELECT date, SUM(consumed_kcal)::int AS consumed_kcal, COUNT(*)::int AS entry_count
		   FROM intake_entries
		  WHERE user_id = @user_id AND date BETWEEN @from AND @to
		  GROUP BY date`,
		pgx.NamedArgs{"user_id": userID, "from": from, "to": to})
	if err != nil {
		return nil, err
	}
	totals := make(map[string]int, len(rows))
	for _, r := range rows {
		totals[dateKey(r.Date.Time)] = r.ConsumedKcal
	}
	return totals, nil
}

func (s *pgStore) getCalorieTarget(ctx context.Context, userID int) (calorieTarget, error) {
	t, err := queryOne[calorieTarget](s.db, ctx,
		`SELECT * FROM calorie_targets WHERE user_id = @user_id`,
		pgx.NamedArgs{"user_id": userID})
	if errors.Is(err, pgx.ErrNoRows) {
		return t, ErrNoCalorieTarget
	}
	return t, err
}

func (s *pgStore) pendingEvent(ctx context.Context, userID int) (*adaptationEvent, error) {
	ev, err := queryOne[adaptationEvent](s.db, ctx,
		`SELECT * FROM adaptation_events WHERE user_id = @user_id AND status = 'pending'`,
		pgx.NamedArgs{"user_id": userID})
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &ev, nil
}

// createPendingEvent inserts a pending event. The partial unique index on
// (user_id) WHERE status = 'pending' makes the one-pending-per-user rule
// atomic: a concurrent duplicate insert surfaces as ErrPendingExists.
func (s *pgStore) createPendingEvent(ctx context.Context, ev adaptationEvent) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO adaptation_events
			(id, user_id, type, magnitude_kcal, confidence, old_daily_kcal,
			 new_daily_kcal, implied_tdee, coach_explanation, status, detected_at, expires_at)
		VALUES
			(@id, @user_id, @type, @magnitude_kcal, @confidence, @old_daily_kcal,
			 @new_daily_kcal, @implied_tdee, @coach_explanation, @status, @detected_at, @expires_at)`,
		pgx.NamedArgs{
			"id":                ev.ID,
			"user_id":           ev.UserID,
			"type":              ev.Type,
			"magnitude_kcal":    ev.MagnitudeKcal,
			"confidence":        ev.Confidence,
			"old_daily_kcal":    ev.OldDailyKcal,
			"new_daily_kcal":    ev.NewDailyKcal,
			"implied_tdee":      ev.ImpliedTDEE,
			"coach_explanation": ev.CoachExplanation,
			"status":            ev.Status,
			"detected_at":       ev.DetectedAt,
			"expires_at":        ev.ExpiresAt,
		})
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return ErrPendingExists
	}
	return err
}

// resolvePendingEvent flips one pending event to a terminal status. The
// status = 'pending' guard in the WHERE clause is what makes concurrent
// approve/decline safe: only one caller sees an affected row, every other
// caller gets ErrEventNotFound.
func (s *pgStore) resolvePendingEvent(ctx context.Context, userID int, eventID string, to eventStatus, now time.Time) (adaptationEvent, error) {
	ev, err := queryOne[adaptationEvent](s.db, ctx, `
		UPDATE adaptation_events
		   SET status = @status, resolved_at = @now
		 WHERE id = @id AND user_id = @user_id AND status = 'pending'
		 RETURNING *`,
		pgx.NamedArgs{"status": to, "now": now, "id": eventID, "user_id": userID})
	if errors.Is(err, pgx.ErrNoRows) {
		return ev, ErrEventNotFound
	}
	return ev, err
}

// approvePendingEvent resolves the event and rewrites the calorie target in
// one transaction, so readers never observe an approved event whose target
// still carries the old numbers.
func (s *pgStore) approvePendingEvent(ctx context.Context, userID int, eventID string, now time.Time) (adaptationEvent, error) {
	var ev adaptationEvent
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return ev, err
	}
	defer tx.Rollback(ctx)

	rows, err := tx.Query(ctx, `
		UPDATE adaptation_events
		   SET status = 'approved', resolved_at = @now
		 WHERE id = @id AND user_id = @user_id AND status = 'pending'
		 RETURNING *`,
		pgx.NamedArgs{"now": now, "id": eventID, "user_id": userID})
	if err != nil {
		return ev, err
	}
	ev, err = pgx.CollectOneRow(rows, pgx.RowToStructByName[adaptationEvent])
	if errors.Is(err, pgx.ErrNoRows) {
		return ev, ErrEventNotFound
	}
	if err != nil {
		return ev, err
	}

	// The approved event's implied TDEE becomes the new assumed TDEE, so the
	// next detection window measures drift against the corrected baseline.
	if _, err := tx.Exec(ctx, `
		UPDATE calorie_targets
		   SET daily_kcal = @daily_kcal, assumed_tdee = @assumed_tdee,
		       updated_by = 'user_approval', updated_at = @now
		 WHERE user_id = @user_id`,
		pgx.NamedArgs{
			"daily_kcal":   ev.NewDailyKcal,
			"assumed_tdee": ev.ImpliedTDEE,
			"now":          now,
			"user_id":      userID,
		}); err != nil {
		return ev, err
	}
	return ev, tx.Commit(ctx)
}

func (s *pgStore) expireOverdueEvents(ctx context.Context, userID int, now time.Time) (int, error) {
	tag, err := s.db.Exec(ctx, `
		UPDATE adaptation_events
		   SET status = 'expired', resolved_at = @now
		 WHERE user_id = @user_id AND status = 'pending' AND expires_at <= @now`,
		pgx.NamedArgs{"user_id": userID, "now": now})
	return int(tag.RowsAffected()), err
}

// expireAllOverdue is the sweep variant of expireOverdueEvents, run once
// across every user before the -sweep fan-out starts.
func (s *pgStore) expireAllOverdue(ctx context.Context, now time.Time) (int, error) {
	tag, err := s.db.Exec(ctx, `
		UPDATE adaptation_events
		   SET status = 'expired', resolved_at = @now
		 WHERE status = 'pending' AND expires_at <= @now`,
		pgx.NamedArgs{"now": now})
	return int(tag.RowsAffected()), err
}

func (s *pgStore) recentEvents(ctx context.Context, userID, limit int) ([]adaptationEvent, error) {
	return queryMany[adaptationEvent](s.db, ctx,
		`SELECT * FROM adaptation_events
		  WHERE user_id = @user_id
		  ORDER BY detected_at DESC
		  LIMIT @limit`,
		pgx.NamedArgs{"user_id": userID, "limit": limit})
}

// lastVerdictAt returns when the detector last reached a verdict for the
// user. insufficient_data runs are excluded: a user who only just started
// logging should not be locked out for another cooldown period.
func (s *pgStore) lastVerdictAt(ctx context.Context, userID int) (*time.Time, error) {
	var ranAt time.Time
	err := s.db.QueryRow(ctx, `
		SELECT ran_at FROM detection_runs
		 WHERE user_id = $1 AND outcome <> 'insufficient_data'
		 ORDER BY ran_at DESC
		 LIMIT 1`, userID).Scan(&ranAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &ranAt, nil
}

func (s *pgStore) recordDetectionRun(ctx context.Context, run detectionRun) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO detection_runs (user_id, ran_at, outcome, drift_percent, confidence, event_id)
		VALUES (@user_id, @ran_at, @outcome, @drift_percent, @confidence, @event_id)`,
		pgx.NamedArgs{
			"user_id":       run.UserID,
			"ran_at":        run.RanAt,
			"outcome":       run.Outcome,
			"drift_percent": run.DriftPercent,
			"confidence":    run.Confidence,
			"event_id":      run.EventID,
		})
	return err
}

func (s *pgStore) listUserIDs(ctx context.Context) ([]int, error) {
	rows, err := s.db.Query(ctx, `SELECT id FROM users ORDER BY id`)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[int])
}
