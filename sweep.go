package main

import (
	"context"
	"log"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// sweepStats summarizes one detection sweep.
type sweepStats struct {
	Users    int
	Expired  int
	Failed   int
	Outcomes map[string]int
}

// bulkExpirer is an optional store upgrade: pgStore expires every overdue
// proposal in one statement before the per-user fan-out starts.
type bulkExpirer interface {
	expireAllOverdue(ctx context.Context, now time.Time) (int, error)
}

// runSweep runs detection once for every known user, at most maxParallel at a
// time. A failure for one user is counted and logged but never aborts the
// sweep; per-user cooldowns and pending checks inside detectAdaptation keep
// repeated sweeps harmless.
func runSweep(ctx context.Context, eng *engine, maxParallel int) (sweepStats, error) {
	stats := sweepStats{Outcomes: make(map[string]int)}

	if be, ok := eng.store.(bulkExpirer); ok {
		n, err := be.expireAllOverdue(ctx, eng.now())
		if err != nil {
			return stats, err
		}
		stats.Expired = n
	}

	ids, err := eng.store.listUserIDs(ctx)
	if err != nil {
		return stats, err
	}
	stats.Users = len(ids)

	if maxParallel < 1 {
		maxParallel = 1
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxParallel)

	var mu sync.Mutex
	for _, id := range ids {
		userID := id
		g.Go(func() error {
			res, err := eng.detectAdaptation(gctx, userID)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				stats.Failed++
				log.Printf("[sweep] user %d: %v", userID, err)
				return nil
			}
			stats.Outcomes[res.Outcome]++
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return stats, err
	}

	log.Printf("[sweep] %d users, %d expired, %d failed, outcomes %v",
		stats.Users, stats.Expired, stats.Failed, stats.Outcomes)
	return stats, nil
}
