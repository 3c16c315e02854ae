// Package scheduler runs the periodic waitlist expiry sweep.
package scheduler

import (
	"context"
	"log/slog"
	"time"
)

// waitlistSweeper is satisfied by *service.WaitlistManager.
type waitlistSweeper interface {
	SweepExpired(ctx context.Context) (int, error)
}

// Scheduler calls SweepExpired on a fixed interval until its context ends.
type Scheduler struct {
	waitlist waitlistSweeper
	interval time.Duration
	logger   *slog.Logger
}

// New returns a Scheduler. interval must be positive.
func New(waitlist waitlistSweeper, interval time.Duration, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{waitlist: waitlist, interval: interval, logger: logger}
}

// Start blocks, sweeping once per interval, and returns when ctx is done.
func (s *Scheduler) Start(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.Info("scheduler started", "interval", s.interval.String())

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("scheduler stopped")
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

func (s *Scheduler) tick(ctx context.Context) {
	promoted, err := s.waitlist.SweepExpired(ctx)
	if err != nil {
		s.logger.ErrorContext(ctx, "waitlist sweep failed", "error", err, "promoted", promoted)
		return
	}
	if promoted > 0 {
		s.logger.InfoContext(ctx, "waitlist sweep promoted divers", "promoted", promoted)
	}
}
