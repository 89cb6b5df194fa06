package flywheel

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// Scheduler triggers training runs on a fixed interval, nightly in the
// default configuration.
type Scheduler struct {
	interval time.Duration
	flywheel *Flywheel
}

func NewScheduler(interval time.Duration, flywheel *Flywheel) *Scheduler {
	return &Scheduler{interval: interval, flywheel: flywheel}
}

// Start runs training cycles until the context is cancelled.
func (s *Scheduler) Start(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	slog.Info("[Flywheel] Starting training scheduler", "interval", s.interval)

	for {
		select {
		case <-ticker.C:
			artifact, err := s.flywheel.Run(ctx)
			switch {
			case errors.Is(err, ErrNoChange):
				slog.Info("[Flywheel] Training cycle finished without promotion")
			case err != nil:
				slog.Error("[Flywheel] Training cycle failed", "error", err)
			default:
				slog.Info("[Flywheel] Training cycle promoted new model",
					"version", artifact.Version,
					"rmse", artifact.Metrics.RMSE,
				)
			}
		case <-ctx.Done():
			slog.Info("[Flywheel] Stopping training scheduler (context cancelled)")
			return nil
		}
	}
}
