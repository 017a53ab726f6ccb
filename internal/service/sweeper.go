package service

import (
	"context"
	"time"

	"github.com/iliyamo/lottery-storefront/internal/logging"
)

// RunSweeper calls CleanupExpiredHolds every interval until ctx is done.
// Reads never depend on it; it only keeps the hold table small.  A
// non-positive interval returns immediately.
func (e *HoldEngine) RunSweeper(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		return nil
	}
	logger := logging.FromContext(ctx).WithField("component", "hold-sweeper")
	logger.WithField("interval", interval.String()).Info("hold sweeper started")

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			logger.Info("hold sweeper stopped")
			return nil
		case <-ticker.C:
			if _, err := e.CleanupExpiredHolds(ctx); err != nil && ctx.Err() == nil {
				// Already logged and counted by the engine; keep ticking.
				logger.WithError(err).Debug("sweep failed")
			}
		}
	}
}
