/*
scheduler.go - Background booking sweeps

PURPOSE:
  Two cron jobs keep the booking lifecycle honest without human action:

    expirePending: pending bookings older than the payment hold window
                   move to expired, releasing their rooms.
    markNoShows:   confirmed bookings whose check-in date has passed
                   without a check-in move to no_show.

  Both run through the store's normal transition path, so every swept
  booking gets its audit row with change_source=system.

SEE ALSO:
  - store/sqlite/status.go: ExpirePending / MarkNoShows
  - config/config.go: cron specs and the hold window
*/
package api

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/warp/booking-engine/booking"
	"github.com/warp/booking-engine/config"
	"github.com/warp/booking-engine/logger"
)

const sweepTimeout = time.Minute

// Scheduler runs the periodic booking sweeps.
type Scheduler struct {
	cron  *cron.Cron
	store booking.BookingStore
	hold  time.Duration
}

// NewScheduler registers both sweeps against the configured cron specs
// (six-field, with seconds).
func NewScheduler(store booking.BookingStore, cfg config.SchedulerConfig) (*Scheduler, error) {
	s := &Scheduler{
		cron:  cron.New(cron.WithSeconds(), cron.WithLocation(time.UTC)),
		store: store,
		hold:  time.Duration(cfg.PendingHoldHours) * time.Hour,
	}
	if _, err := s.cron.AddFunc(cfg.ExpirePendingCron, s.expirePending); err != nil {
		return nil, fmt.Errorf("invalid expire_pending_cron: %w", err)
	}
	if _, err := s.cron.AddFunc(cfg.MarkNoShowsCron, s.markNoShows); err != nil {
		return nil, fmt.Errorf("invalid mark_no_shows_cron: %w", err)
	}
	return s, nil
}

func (s *Scheduler) Start() {
	s.cron.Start()
	logger.Info("scheduler started", "pending_hold", s.hold.String())
}

// Stop halts the cron and waits for any running sweep to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	logger.Info("scheduler stopped")
}

func (s *Scheduler) expirePending() {
	ctx, cancel := context.WithTimeout(context.Background(), sweepTimeout)
	defer cancel()

	cutoff := time.Now().UTC().Add(-s.hold)
	moved, err := s.store.ExpirePending(ctx, cutoff)
	if err != nil {
		logger.Error("expire-pending sweep failed", "error", err)
		return
	}
	if moved > 0 {
		logger.Info("expired stale pending bookings", "count", moved)
	}
}

func (s *Scheduler) markNoShows() {
	ctx, cancel := context.WithTimeout(context.Background(), sweepTimeout)
	defer cancel()

	moved, err := s.store.MarkNoShows(ctx, booking.Today())
	if err != nil {
		logger.Error("no-show sweep failed", "error", err)
		return
	}
	if moved > 0 {
		logger.Info("marked no-show bookings", "count", moved)
	}
}
