package main

import (
	"context"
	"sort"
	"sync"
	"time"
)

// memStore is an in-memory engineStore backing the test suite. It mirrors
// pgStore semantics exactly: the one-pending-per-user rule, the pending-only
// resolve guard, and the atomic target rewrite on approval all behave the
// same, just under a mutex instead of Postgres constraints.
type memStore struct {
	mu        sync.Mutex
	weights   map[int][]weightSample
	intake    map[int][]intakeEntry
	targets   map[int]calorieTarget
	events    []adaptationEvent
	runs      []detectionRun
	nextRunID int
}

var _ engineStore = (*memStore)(nil)

func newMemStore() *memStore {
	return &memStore{
		weights: make(map[int][]weightSample),
		intake:  make(map[int][]intakeEntry),
		targets: make(map[int]calorieTarget),
	}
}

/* ─── Seeding helpers (not part of engineStore) ──────────────────────── */

func (m *memStore) addWeightSample(s weightSample) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.weights[s.UserID] = append(m.weights[s.UserID], s)
}

func (m *memStore) addIntakeEntry(e intakeEntry) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.intake[e.UserID] = append(m.intake[e.UserID], e)
}

func (m *memStore) putCalorieTarget(t calorieTarget) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.targets[t.UserID] = t
}

/* ─── engineStore implementation ─────────────────────────────────────── */

func (m *memStore) weightSamplesSince(ctx context.Context, userID int, since time.Time) ([]weightSample, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []weightSample
	for _, s := range m.weights[userID] {
		if !s.Date.Time.Before(since) {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Time.Before(out[j].Date.Time) })
	return out, nil
}

func (m *memStore) intakeTotalsBetween(ctx context.Context, userID int, from, to time.Time) (map[string]int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	totals := make(map[string]int)
	for _, e := range m.intake[userID] {
		d := e.Date.Time
		if d.Before(from) || d.After(to) {
			continue
		}
		totals[dateKey(d)] += e.ConsumedKcal
	}
	return totals, nil
}

func (m *memStore) getCalorieTarget(ctx context.Context, userID int) (calorieTarget, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.targets[userID]
	if !ok {
		return calorieTarget{}, ErrNoCalorieTarget
	}
	return t, nil
}

func (m *memStore) pendingEvent(ctx context.Context, userID int) (*adaptationEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.events {
		if m.events[i].UserID == userID && m.events[i].Status == statusPending {
			ev := m.events[i]
			return &ev, nil
		}
	}
	return nil, nil
}

func (m *memStore) createPendingEvent(ctx context.Context, ev adaptationEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.events {
		if m.events[i].UserID == ev.UserID && m.events[i].Status == statusPending {
			return ErrPendingExists
		}
	}
	m.events = append(m.events, ev)
	return nil
}

func (m *memStore) resolvePendingEvent(ctx context.Context, userID int, eventID string, to eventStatus, now time.Time) (adaptationEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.resolveLocked(userID, eventID, to, now)
}

func (m *memStore) resolveLocked(userID int, eventID string, to eventStatus, now time.Time) (adaptationEvent, error) {
	for i := range m.events {
		ev := &m.events[i]
		if ev.ID == eventID && ev.UserID == userID && ev.Status == statusPending {
			ev.Status = to
			resolved := now
			ev.ResolvedAt = &resolved
			return *ev, nil
		}
	}
	return adaptationEvent{}, ErrEventNotFound
}

func (m *memStore) approvePendingEvent(ctx context.Context, userID int, eventID string, now time.Time) (adaptationEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ev, err := m.resolveLocked(userID, eventID, statusApproved, now)
	if err != nil {
		return ev, err
	}
	if t, ok := m.targets[userID]; ok {
		t.DailyKcal = ev.NewDailyKcal
		t.AssumedTDEE = ev.ImpliedTDEE
		t.UpdatedBy = "user_approval"
		updated := now
		t.UpdatedAt = &updated
		m.targets[userID] = t
	}
	return ev, nil
}

func (m *memStore) expireOverdueEvents(ctx context.Context, userID int, now time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	expired := 0
	for i := range m.events {
		ev := &m.events[i]
		if ev.UserID == userID && ev.Status == statusPending && !ev.ExpiresAt.After(now) {
			ev.Status = statusExpired
			resolved := now
			ev.ResolvedAt = &resolved
			expired++
		}
	}
	return expired, nil
}

func (m *memStore) recentEvents(ctx context.Context, userID, limit int) ([]adaptationEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []adaptationEvent
	for _, ev := range m.events {
		if ev.UserID == userID {
			out = append(out, ev)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DetectedAt.After(out[j].DetectedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memStore) lastVerdictAt(ctx context.Context, userID int) (*time.Time, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var last *time.Time
	for i := range m.runs {
		r := m.runs[i]
		if r.UserID != userID || r.Outcome == outcomeInsufficientData {
			continue
		}
		if last == nil || r.RanAt.After(*last) {
			t := r.RanAt
			last = &t
		}
	}
	return last, nil
}

func (m *memStore) recordDetectionRun(ctx context.Context, run detectionRun) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextRunID++
	run.ID = m.nextRunID
	m.runs = append(m.runs, run)
	return nil
}

func (m *memStore) listUserIDs(ctx context.Context) ([]int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	seen := make(map[int]bool)
	for id := range m.targets {
		seen[id] = true
	}
	for id := range m.weights {
		seen[id] = true
	}
	for id := range m.intake {
		seen[id] = true
	}
	ids := make([]int, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids, nil
}
