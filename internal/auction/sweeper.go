package auction

import (
	"context"
	"log/slog"
	"time"
)

// Sweeper periodically closes approved records whose deadline has
// passed. It is intended to run on the leader replica only; the lazy
// evaluation on read access covers records between sweeps.
type Sweeper struct {
	mgr      *Manager
	interval time.Duration
	logger   *slog.Logger
}

// NewSweeper creates a Sweeper that runs every interval.
func NewSweeper(mgr *Manager, interval time.Duration, logger *slog.Logger) *Sweeper {
	return &Sweeper{mgr: mgr, interval: interval, logger: logger}
}

// Run sweeps until ctx is done. One immediate sweep runs at startup so
// a fresh leader catches up on records that expired during failover.
func (s *Sweeper) Run(ctx context.Context) {
	s.sweep(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *Sweeper) sweep(ctx context.Context) {
	closed, err := s.mgr.SweepClosable(ctx)
	if err != nil {
		s.logger.ErrorContext(ctx, "closing sweep failed", slog.Any("error", err))
		return
	}
	if closed > 0 {
		s.logger.InfoContext(ctx, "closing sweep complete", slog.Int("closed", closed))
	}
}
