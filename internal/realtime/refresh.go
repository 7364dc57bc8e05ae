package realtime

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"spendlens/internal/logger"
	"spendlens/internal/services"
)

// Publisher delivers a payload to one user's subscribers.
type Publisher interface {
	BroadcastTo(userID string, payload any) (Result, error)
}

// Refresher recomputes a user's home analytics after a write and publishes
// the snapshot. Each refresh runs in its own goroutine; errors are logged
// and never returned to the caller.
type Refresher struct {
	analytics services.AnalyticsServicer
	publisher Publisher
	timeout   time.Duration
	log       *zap.SugaredLogger
	wg        sync.WaitGroup
}

// NewRefresher creates a Refresher bounding each recompute by timeout.
func NewRefresher(analytics services.AnalyticsServicer, publisher Publisher, timeout time.Duration) *Refresher {
	return &Refresher{
		analytics: analytics,
		publisher: publisher,
		timeout:   timeout,
		log:       logger.Named("realtime.refresh"),
	}
}

// Trigger schedules a refresh for userID and returns immediately. Call it
// only after the triggering write has committed.
func (r *Refresher) Trigger(userID string) {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer func() {
			if rec := recover(); rec != nil {
				r.log.Errorw("analytics refresh panicked", "user_id", userID, "panic", rec)
			}
		}()
		r.refresh(userID)
	}()
}

// Wait blocks until every scheduled refresh has finished.
func (r *Refresher) Wait() {
	r.wg.Wait()
}

func (r *Refresher) refresh(userID string) {
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()

	start := time.Now()
	summary, err := r.analytics.HomeAnalytics(ctx, userID, r.analytics.DefaultWindow(), false)
	if err != nil {
		r.log.Errorw("analytics refresh failed", "user_id", userID, "error", err)
		return
	}

	res, err := r.publisher.BroadcastTo(userID, summary)
	if err != nil {
		r.log.Errorw("analytics publish failed", "user_id", userID, "error", err)
		return
	}

	r.log.Debugw("analytics refreshed",
		"user_id", userID,
		"delivered", res.Delivered,
		"dropped", res.Dropped,
		"skipped", res.Skipped,
		"duration", time.Since(start),
	)
}
